package registry

import "context"

// Store defines persistence for registered assets. Implementations own the
// per-kind id counters: Create assigns the next sequential id starting at 0
// and the counters are never reset.
type Store interface {
	// Sale assets
	CreateSaleAsset(ctx context.Context, asset SaleAsset) (SaleAsset, error)
	GetSaleAsset(ctx context.Context, id uint64) (SaleAsset, error)
	UpdateSaleAsset(ctx context.Context, asset SaleAsset) (SaleAsset, error)
	ListSaleAssets(ctx context.Context, limit int) ([]SaleAsset, error)

	// License assets
	CreateLicenseAsset(ctx context.Context, asset LicenseAsset) (LicenseAsset, error)
	GetLicenseAsset(ctx context.Context, id uint64) (LicenseAsset, error)
	UpdateLicenseAsset(ctx context.Context, asset LicenseAsset) (LicenseAsset, error)
	ListLicenseAssets(ctx context.Context, limit int) ([]LicenseAsset, error)
}
