package registry

import (
	"context"
	"sync"

	"github.com/blockassets/marketplace/core"
)

// MemoryStore is an in-memory Store. It backs tests and single-node
// deployments; ids are sequential from 0 per asset kind and never reused.
type MemoryStore struct {
	mu            sync.RWMutex
	saleAssets    map[uint64]SaleAsset
	licenseAssets map[uint64]LicenseAsset
	nextSaleID    uint64
	nextLicenseID uint64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		saleAssets:    make(map[uint64]SaleAsset),
		licenseAssets: make(map[uint64]LicenseAsset),
	}
}

func (s *MemoryStore) CreateSaleAsset(ctx context.Context, asset SaleAsset) (SaleAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset.ID = s.nextSaleID
	s.nextSaleID++
	s.saleAssets[asset.ID] = asset
	return asset, nil
}

func (s *MemoryStore) GetSaleAsset(ctx context.Context, id uint64) (SaleAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, ok := s.saleAssets[id]
	if !ok {
		return SaleAsset{}, core.NewNotFoundError("sale asset", id, core.ErrAssetNotFound)
	}
	return asset, nil
}

func (s *MemoryStore) UpdateSaleAsset(ctx context.Context, asset SaleAsset) (SaleAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.saleAssets[asset.ID]; !ok {
		return SaleAsset{}, core.NewNotFoundError("sale asset", asset.ID, core.ErrAssetNotFound)
	}
	s.saleAssets[asset.ID] = asset
	return asset, nil
}

func (s *MemoryStore) ListSaleAssets(ctx context.Context, limit int) ([]SaleAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]SaleAsset, 0, limit)
	for id := uint64(0); id < s.nextSaleID && len(result) < limit; id++ {
		if asset, ok := s.saleAssets[id]; ok {
			result = append(result, asset)
		}
	}
	return result, nil
}

func (s *MemoryStore) CreateLicenseAsset(ctx context.Context, asset LicenseAsset) (LicenseAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset.ID = s.nextLicenseID
	s.nextLicenseID++
	s.licenseAssets[asset.ID] = asset
	return asset, nil
}

func (s *MemoryStore) GetLicenseAsset(ctx context.Context, id uint64) (LicenseAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, ok := s.licenseAssets[id]
	if !ok {
		return LicenseAsset{}, core.NewNotFoundError("license asset", id, core.ErrAssetNotFound)
	}
	return asset, nil
}

func (s *MemoryStore) UpdateLicenseAsset(ctx context.Context, asset LicenseAsset) (LicenseAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.licenseAssets[asset.ID]; !ok {
		return LicenseAsset{}, core.NewNotFoundError("license asset", asset.ID, core.ErrAssetNotFound)
	}
	s.licenseAssets[asset.ID] = asset
	return asset, nil
}

func (s *MemoryStore) ListLicenseAssets(ctx context.Context, limit int) ([]LicenseAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]LicenseAsset, 0, limit)
	for id := uint64(0); id < s.nextLicenseID && len(result) < limit; id++ {
		if asset, ok := s.licenseAssets[id]; ok {
			result = append(result, asset)
		}
	}
	return result, nil
}
