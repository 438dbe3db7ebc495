package registry

import (
	"context"
	"fmt"

	"github.com/blockassets/marketplace/core"
	"github.com/blockassets/marketplace/pkg/clarity"
	"github.com/blockassets/marketplace/pkg/logger"
	"github.com/blockassets/marketplace/pkg/metrics"
)

const defaultListLimit = 50

// Service provides asset registration and lookup. Like the license service it
// holds no lock of its own; a concurrent host serializes mutations through the
// marketplace engine.
type Service struct {
	store Store
	log   *logger.Logger
}

// New constructs a registry service.
func New(store Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("registry")
	}
	return &Service{store: store, log: log}
}

// RegisterSaleAsset registers a quantity-limited asset owned by the caller.
func (s *Service) RegisterSaleAsset(ctx context.Context, caller clarity.Principal, name, metadataURI string, price uint64, quantity uint32) (SaleAsset, error) {
	if price == 0 {
		return SaleAsset{}, core.ErrInvalidPrice
	}
	if quantity == 0 {
		return SaleAsset{}, core.ErrInvalidQuantity
	}

	created, err := s.store.CreateSaleAsset(ctx, SaleAsset{
		Owner:       caller,
		Name:        name,
		MetadataURI: metadataURI,
		Price:       price,
		Quantity:    quantity,
	})
	if err != nil {
		return SaleAsset{}, fmt.Errorf("create sale asset: %w", err)
	}

	s.log.WithField("asset_id", created.ID).
		WithField("owner", caller.String()).
		Info("sale asset registered")
	metrics.IncrementCounter("registry_assets_registered_total", map[string]string{"kind": "sale"})

	return created, nil
}

// RegisterLicenseAsset registers a time-boxed licensable asset owned by the
// caller.
func (s *Service) RegisterLicenseAsset(ctx context.Context, caller clarity.Principal, name, metadataURI string, price, duration uint64) (LicenseAsset, error) {
	if price == 0 {
		return LicenseAsset{}, core.ErrInvalidPrice
	}
	if duration == 0 {
		return LicenseAsset{}, core.ErrInvalidDuration
	}

	created, err := s.store.CreateLicenseAsset(ctx, LicenseAsset{
		Owner:       caller,
		Name:        name,
		MetadataURI: metadataURI,
		Price:       price,
		Duration:    duration,
	})
	if err != nil {
		return LicenseAsset{}, fmt.Errorf("create license asset: %w", err)
	}

	s.log.WithField("asset_id", created.ID).
		WithField("owner", caller.String()).
		Info("license asset registered")
	metrics.IncrementCounter("registry_assets_registered_total", map[string]string{"kind": "license"})

	return created, nil
}

// GetSaleAsset returns a snapshot of a sale asset.
func (s *Service) GetSaleAsset(ctx context.Context, id uint64) (SaleAsset, error) {
	return s.store.GetSaleAsset(ctx, id)
}

// GetLicenseAsset returns a snapshot of a license asset.
func (s *Service) GetLicenseAsset(ctx context.Context, id uint64) (LicenseAsset, error) {
	return s.store.GetLicenseAsset(ctx, id)
}

// ListSaleAssets lists registered sale assets in id order.
func (s *Service) ListSaleAssets(ctx context.Context, limit int) ([]SaleAsset, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.store.ListSaleAssets(ctx, limit)
}

// ListLicenseAssets lists registered license assets in id order.
func (s *Service) ListLicenseAssets(ctx context.Context, limit int) ([]LicenseAsset, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.store.ListLicenseAssets(ctx, limit)
}

// DisableSaleAsset freezes all purchases of the asset. Owner only,
// irreversible, idempotent.
func (s *Service) DisableSaleAsset(ctx context.Context, caller clarity.Principal, id uint64) (SaleAsset, error) {
	asset, err := s.store.GetSaleAsset(ctx, id)
	if err != nil {
		return SaleAsset{}, err
	}
	if err := core.EnsureOwnership(asset.Owner, caller, "sale asset", id); err != nil {
		return SaleAsset{}, err
	}
	if asset.Disabled {
		return asset, nil
	}

	asset.Disabled = true
	updated, err := s.store.UpdateSaleAsset(ctx, asset)
	if err != nil {
		return SaleAsset{}, fmt.Errorf("update sale asset: %w", err)
	}

	s.log.WithField("asset_id", id).Info("sale asset disabled")
	return updated, nil
}

// DisableLicenseAsset blocks new license requests and grants for the asset.
// Already-issued grants are untouched; revocation is the owner's tool for
// those. Owner only, irreversible, idempotent.
func (s *Service) DisableLicenseAsset(ctx context.Context, caller clarity.Principal, id uint64) (LicenseAsset, error) {
	asset, err := s.store.GetLicenseAsset(ctx, id)
	if err != nil {
		return LicenseAsset{}, err
	}
	if err := core.EnsureOwnership(asset.Owner, caller, "license asset", id); err != nil {
		return LicenseAsset{}, err
	}
	if asset.Disabled {
		return asset, nil
	}

	asset.Disabled = true
	updated, err := s.store.UpdateLicenseAsset(ctx, asset)
	if err != nil {
		return LicenseAsset{}, fmt.Errorf("update license asset: %w", err)
	}

	s.log.WithField("asset_id", id).Info("license asset disabled")
	return updated, nil
}

// ApplyPurchase commits one unit of a successful purchase: decrements the
// quantity and reassigns ownership when transferOwnership is set. Payment is
// the marketplace engine's responsibility and must precede this call.
func (s *Service) ApplyPurchase(ctx context.Context, assetID uint64, buyer clarity.Principal, transferOwnership bool) (SaleAsset, error) {
	asset, err := s.store.GetSaleAsset(ctx, assetID)
	if err != nil {
		return SaleAsset{}, err
	}
	if asset.Disabled {
		return SaleAsset{}, core.ErrAssetDisabled
	}
	if asset.Quantity == 0 {
		return SaleAsset{}, core.ErrNoQuantity
	}

	asset.Quantity--
	if transferOwnership {
		asset.Owner = buyer
	}
	updated, err := s.store.UpdateSaleAsset(ctx, asset)
	if err != nil {
		return SaleAsset{}, fmt.Errorf("update sale asset: %w", err)
	}
	return updated, nil
}
