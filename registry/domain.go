// Package registry stores sale and license assets and enforces ownership and
// pricing invariants at registration.
package registry

import "github.com/blockassets/marketplace/pkg/clarity"

// SaleAsset is a quantity-limited item transferable for a fixed price.
// Assets are never deleted, only disabled.
type SaleAsset struct {
	ID          uint64            `json:"id"`
	Owner       clarity.Principal `json:"owner"`
	Name        string            `json:"name"`
	MetadataURI string            `json:"metadata_uri"`
	Price       uint64            `json:"price"`    // micro-units
	Quantity    uint32            `json:"quantity"` // remaining units
	Disabled    bool              `json:"disabled"` // freezes all purchases
}

// LicenseAsset is a time-boxed usage right. Immutable after registration
// except for the disabled flag.
type LicenseAsset struct {
	ID          uint64            `json:"id"`
	Owner       clarity.Principal `json:"owner"`
	Name        string            `json:"name"`
	MetadataURI string            `json:"metadata_uri"`
	Price       uint64            `json:"price"`
	Duration    uint64            `json:"duration"` // license lifetime in block heights
	Disabled    bool              `json:"disabled"`
}
