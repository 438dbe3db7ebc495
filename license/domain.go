// Package license records license requests, grants, and revocations, and
// evaluates license validity against the external block-height clock.
package license

import "github.com/blockassets/marketplace/pkg/clarity"

// Request is a licensee's pending application for a license. Approved flips
// exactly once, by the asset owner; Timestamp is the creation height, not the
// approval height.
type Request struct {
	ID        uint64            `json:"id"`
	AssetID   uint64            `json:"asset_id"`
	Requester clarity.Principal `json:"requester"`
	Approved  bool              `json:"approved"`
	Timestamp uint64            `json:"timestamp"`
}

// Grant is a recorded usage right, keyed by (AssetID, Licensee): at most one
// record per pair. Revocation tombstones the record rather than deleting it.
type Grant struct {
	AssetID   uint64            `json:"asset_id"`
	Licensee  clarity.Principal `json:"licensee"`
	GrantedAt uint64            `json:"granted_at"`
	ExpiresAt uint64            `json:"expires_at"`
	Revoked   bool              `json:"revoked"`
}

// Active reports whether the grant confers a usage right at the given height.
func (g Grant) Active(height uint64) bool {
	return !g.Revoked && height < g.ExpiresAt
}

// GrantMessage is the structured value an asset owner signs to authorize a
// grant off-ledger. Clients must build the identical tuple to reproduce the
// digest the verifier computes.
func GrantMessage(assetID uint64, licensee clarity.Principal) clarity.Value {
	return clarity.Tuple{
		"asset-id": clarity.UInt(assetID),
		"licensee": licensee,
	}
}
