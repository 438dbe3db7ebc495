package license

import (
	"context"

	"github.com/blockassets/marketplace/pkg/clarity"
	"github.com/blockassets/marketplace/registry"
)

// Store defines persistence for requests and grants. Request ids are
// sequential from 0 and never reused; grants are keyed by (assetID, licensee)
// and overwritten in place.
type Store interface {
	CreateRequest(ctx context.Context, req Request) (Request, error)
	GetRequest(ctx context.Context, id uint64) (Request, error)
	UpdateRequest(ctx context.Context, req Request) (Request, error)
	ListRequests(ctx context.Context, assetID uint64, limit int) ([]Request, error)

	PutGrant(ctx context.Context, grant Grant) error
	GetGrant(ctx context.Context, assetID uint64, licensee clarity.Principal) (Grant, error)
}

// AssetSource is the slice of the registry this service reads.
type AssetSource interface {
	GetLicenseAsset(ctx context.Context, id uint64) (registry.LicenseAsset, error)
}
