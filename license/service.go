package license

import (
	"context"
	"fmt"

	"github.com/blockassets/marketplace/core"
	"github.com/blockassets/marketplace/pkg/clarity"
	"github.com/blockassets/marketplace/pkg/logger"
	"github.com/blockassets/marketplace/pkg/metrics"
	"github.com/blockassets/marketplace/pkg/sip018"
)

const defaultListLimit = 50

// Service maintains the license ledger. It performs no locking of its own:
// mutating operations are check-then-act across store calls, and a concurrent
// host must serialize them (the marketplace engine's critical section).
type Service struct {
	store  Store
	assets AssetSource
	engine *sip018.Engine
	clock  core.Clock
	log    *logger.Logger
}

// New constructs a license service.
func New(store Store, assets AssetSource, engine *sip018.Engine, clock core.Clock, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("license")
	}
	return &Service{store: store, assets: assets, engine: engine, clock: clock, log: log}
}

// RequestLicense files a pending request for the asset. A missing or disabled
// asset is reported as not found.
func (s *Service) RequestLicense(ctx context.Context, requester clarity.Principal, assetID uint64) (Request, error) {
	asset, err := s.assets.GetLicenseAsset(ctx, assetID)
	if err != nil {
		return Request{}, err
	}
	if asset.Disabled {
		return Request{}, fmt.Errorf("license asset %d is disabled: %w", assetID, core.ErrAssetNotFound)
	}

	created, err := s.store.CreateRequest(ctx, Request{
		AssetID:   assetID,
		Requester: requester,
		Timestamp: s.clock.Height(),
	})
	if err != nil {
		return Request{}, fmt.Errorf("create request: %w", err)
	}

	s.log.WithField("request_id", created.ID).
		WithField("asset_id", assetID).
		WithField("requester", requester.String()).
		Info("license requested")
	metrics.IncrementCounter("license_requests_total", nil)

	return created, nil
}

// GetRequest returns a snapshot of a license request.
func (s *Service) GetRequest(ctx context.Context, id uint64) (Request, error) {
	return s.store.GetRequest(ctx, id)
}

// ListRequests lists requests for an asset in id order.
func (s *Service) ListRequests(ctx context.Context, assetID uint64, limit int) ([]Request, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.store.ListRequests(ctx, assetID, limit)
}

// ApproveRequest marks a request approved. Asset owner only; a request is
// approved at most once. The request timestamp is left untouched.
func (s *Service) ApproveRequest(ctx context.Context, caller clarity.Principal, requestID uint64) (Request, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	asset, err := s.assets.GetLicenseAsset(ctx, req.AssetID)
	if err != nil {
		return Request{}, err
	}
	if err := core.EnsureOwnership(asset.Owner, caller, "license asset", req.AssetID); err != nil {
		return Request{}, err
	}
	if req.Approved {
		return Request{}, core.ErrAlreadyApproved
	}

	req.Approved = true
	updated, err := s.store.UpdateRequest(ctx, req)
	if err != nil {
		return Request{}, fmt.Errorf("update request: %w", err)
	}

	s.log.WithField("request_id", requestID).
		WithField("asset_id", req.AssetID).
		Info("license request approved")
	metrics.IncrementCounter("license_requests_approved_total", nil)

	return updated, nil
}

// GrantLicense records a grant authorized off-ledger: sig must be the asset
// owner's recoverable signature over GrantMessage(assetID, licensee) under
// this deployment's domain. An active grant for the pair is rejected as a
// duplicate; a revoked or expired record is overwritten.
func (s *Service) GrantLicense(ctx context.Context, assetID uint64, licensee clarity.Principal, sig []byte) (Grant, error) {
	asset, err := s.assets.GetLicenseAsset(ctx, assetID)
	if err != nil {
		return Grant{}, err
	}
	if asset.Disabled {
		return Grant{}, core.ErrAssetDisabled
	}

	digest, err := s.engine.Digest(GrantMessage(assetID, licensee))
	if err != nil {
		return Grant{}, fmt.Errorf("compute grant digest: %w", err)
	}
	ok, err := s.engine.Verify(digest, sig, asset.Owner)
	if err != nil {
		return Grant{}, err
	}
	if !ok {
		return Grant{}, fmt.Errorf("signer is not the owner of asset %d: %w", assetID, core.ErrNotAuthorized)
	}

	grant, err := s.recordGrant(ctx, assetID, licensee, asset.Duration)
	if err != nil {
		return Grant{}, err
	}

	s.log.WithField("asset_id", assetID).
		WithField("licensee", licensee.String()).
		WithField("expires_at", grant.ExpiresAt).
		Info("license granted by signature")
	metrics.IncrementCounter("license_grants_total", map[string]string{"path": "signature"})

	return grant, nil
}

// RecordGrant records a grant through the request/approval path. Callers are
// responsible for approval and payment checks; duplicate-grant rules are
// enforced here.
func (s *Service) RecordGrant(ctx context.Context, assetID uint64, licensee clarity.Principal) (Grant, error) {
	asset, err := s.assets.GetLicenseAsset(ctx, assetID)
	if err != nil {
		return Grant{}, err
	}
	if asset.Disabled {
		return Grant{}, core.ErrAssetDisabled
	}

	grant, err := s.recordGrant(ctx, assetID, licensee, asset.Duration)
	if err != nil {
		return Grant{}, err
	}

	s.log.WithField("asset_id", assetID).
		WithField("licensee", licensee.String()).
		WithField("expires_at", grant.ExpiresAt).
		Info("license granted by approval")
	metrics.IncrementCounter("license_grants_total", map[string]string{"path": "approval"})

	return grant, nil
}

func (s *Service) recordGrant(ctx context.Context, assetID uint64, licensee clarity.Principal, duration uint64) (Grant, error) {
	now := s.clock.Height()

	existing, err := s.store.GetGrant(ctx, assetID, licensee)
	if err == nil && existing.Active(now) {
		return Grant{}, core.ErrLicenseAlreadyExists
	}

	grant := Grant{
		AssetID:   assetID,
		Licensee:  licensee,
		GrantedAt: now,
		ExpiresAt: now + duration,
	}
	if err := s.store.PutGrant(ctx, grant); err != nil {
		return Grant{}, fmt.Errorf("put grant: %w", err)
	}
	return grant, nil
}

// RevokeLicense tombstones a grant. Asset owner only; revoking an
// already-revoked grant is not an error, and the record is never deleted so
// later duplicate attempts still see it.
func (s *Service) RevokeLicense(ctx context.Context, caller clarity.Principal, assetID uint64, licensee clarity.Principal) (Grant, error) {
	asset, err := s.assets.GetLicenseAsset(ctx, assetID)
	if err != nil {
		return Grant{}, err
	}
	if err := core.EnsureOwnership(asset.Owner, caller, "license asset", assetID); err != nil {
		return Grant{}, err
	}

	grant, err := s.store.GetGrant(ctx, assetID, licensee)
	if err != nil {
		return Grant{}, err
	}
	if !grant.Revoked {
		grant.Revoked = true
		if err := s.store.PutGrant(ctx, grant); err != nil {
			return Grant{}, fmt.Errorf("put grant: %w", err)
		}
	}

	s.log.WithField("asset_id", assetID).
		WithField("licensee", licensee.String()).
		Info("license revoked")
	metrics.IncrementCounter("license_revocations_total", nil)

	return grant, nil
}

// GetGrant returns the grant record for the pair, tombstoned or not.
func (s *Service) GetGrant(ctx context.Context, assetID uint64, licensee clarity.Principal) (Grant, error) {
	return s.store.GetGrant(ctx, assetID, licensee)
}

// IsLicensed reports whether licensee holds a valid license for the asset at
// the current height. It never errors: absence of any record is false.
func (s *Service) IsLicensed(ctx context.Context, assetID uint64, licensee clarity.Principal) bool {
	grant, err := s.store.GetGrant(ctx, assetID, licensee)
	if err != nil {
		return false
	}
	return grant.Active(s.clock.Height())
}

// UseLicensedAsset checks the caller's right to use the asset. Success has no
// state effect beyond the access-granted signal.
func (s *Service) UseLicensedAsset(ctx context.Context, caller clarity.Principal, assetID uint64) error {
	grant, err := s.store.GetGrant(ctx, assetID, caller)
	if err != nil {
		return err
	}
	if grant.Revoked {
		return core.ErrLicenseRevoked
	}
	if now := s.clock.Height(); now >= grant.ExpiresAt {
		return fmt.Errorf("license expired at height %d: %w", grant.ExpiresAt, core.ErrLicenseNotFound)
	}
	return nil
}
