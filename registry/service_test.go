package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/blockassets/marketplace/core"
	"github.com/blockassets/marketplace/pkg/clarity"
)

func testPrincipal(b byte) clarity.Principal {
	p := clarity.Principal{Version: clarity.VersionTestnet}
	for i := range p.Hash {
		p.Hash[i] = b
	}
	return p
}

func TestRegisterSaleAsset(t *testing.T) {
	ctx := context.Background()
	svc := New(NewMemoryStore(), nil)
	owner := testPrincipal(0x01)

	asset, err := svc.RegisterSaleAsset(ctx, owner, "Painting", "https://example.com/painting.jpg", 1_000_000, 2)
	if err != nil {
		t.Fatalf("RegisterSaleAsset failed: %v", err)
	}
	if asset.ID != 0 {
		t.Errorf("first asset id = %d, want 0", asset.ID)
	}

	got, err := svc.GetSaleAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetSaleAsset failed: %v", err)
	}
	if got.Owner != owner || got.Name != "Painting" || got.Price != 1_000_000 || got.Quantity != 2 || got.Disabled {
		t.Errorf("stored asset = %+v", got)
	}
}

func TestRegisterSaleAsset_MonotonicIDs(t *testing.T) {
	ctx := context.Background()
	svc := New(NewMemoryStore(), nil)
	owner := testPrincipal(0x01)

	for want := uint64(0); want < 5; want++ {
		asset, err := svc.RegisterSaleAsset(ctx, owner, "Painting", "uri", 100, 1)
		if err != nil {
			t.Fatalf("RegisterSaleAsset %d failed: %v", want, err)
		}
		if asset.ID != want {
			t.Errorf("asset id = %d, want %d", asset.ID, want)
		}
	}

	// License assets run an independent counter.
	lic, err := svc.RegisterLicenseAsset(ctx, owner, "Music", "uri", 100, 10)
	if err != nil {
		t.Fatalf("RegisterLicenseAsset failed: %v", err)
	}
	if lic.ID != 0 {
		t.Errorf("license asset id = %d, want 0", lic.ID)
	}
}

func TestRegisterSaleAsset_Validation(t *testing.T) {
	ctx := context.Background()
	svc := New(NewMemoryStore(), nil)
	owner := testPrincipal(0x01)

	if _, err := svc.RegisterSaleAsset(ctx, owner, "a", "uri", 0, 1); !errors.Is(err, core.ErrInvalidPrice) {
		t.Errorf("zero price: %v", err)
	}
	if _, err := svc.RegisterSaleAsset(ctx, owner, "a", "uri", 1, 0); !errors.Is(err, core.ErrInvalidQuantity) {
		t.Errorf("zero quantity: %v", err)
	}
}

func TestRegisterLicenseAsset(t *testing.T) {
	ctx := context.Background()
	svc := New(NewMemoryStore(), nil)
	owner := testPrincipal(0x01)

	asset, err := svc.RegisterLicenseAsset(ctx, owner, "Music", "https://example.com/music.mp3", 500_000, 100)
	if err != nil {
		t.Fatalf("RegisterLicenseAsset failed: %v", err)
	}
	if asset.ID != 0 || asset.Duration != 100 || asset.Owner != owner {
		t.Errorf("license asset = %+v", asset)
	}

	if _, err := svc.RegisterLicenseAsset(ctx, owner, "a", "uri", 0, 1); !errors.Is(err, core.ErrInvalidPrice) {
		t.Errorf("zero price: %v", err)
	}
	if _, err := svc.RegisterLicenseAsset(ctx, owner, "a", "uri", 1, 0); !errors.Is(err, core.ErrInvalidDuration) {
		t.Errorf("zero duration: %v", err)
	}
}

func TestGetAsset_NotFound(t *testing.T) {
	ctx := context.Background()
	svc := New(NewMemoryStore(), nil)

	if _, err := svc.GetSaleAsset(ctx, 99); !errors.Is(err, core.ErrAssetNotFound) {
		t.Errorf("GetSaleAsset: %v", err)
	}
	if _, err := svc.GetLicenseAsset(ctx, 99); !errors.Is(err, core.ErrAssetNotFound) {
		t.Errorf("GetLicenseAsset: %v", err)
	}
}

func TestDisableAsset(t *testing.T) {
	ctx := context.Background()
	svc := New(NewMemoryStore(), nil)
	owner := testPrincipal(0x01)
	stranger := testPrincipal(0x02)

	asset, err := svc.RegisterSaleAsset(ctx, owner, "Painting", "uri", 100, 1)
	if err != nil {
		t.Fatalf("RegisterSaleAsset failed: %v", err)
	}

	if _, err := svc.DisableSaleAsset(ctx, stranger, asset.ID); !errors.Is(err, core.ErrNotAuthorized) {
		t.Errorf("stranger disable: %v", err)
	}

	disabled, err := svc.DisableSaleAsset(ctx, owner, asset.ID)
	if err != nil {
		t.Fatalf("DisableSaleAsset failed: %v", err)
	}
	if !disabled.Disabled {
		t.Error("asset should be disabled")
	}

	// Idempotent.
	if _, err := svc.DisableSaleAsset(ctx, owner, asset.ID); err != nil {
		t.Errorf("second disable: %v", err)
	}

	if _, err := svc.ApplyPurchase(ctx, asset.ID, stranger, true); !errors.Is(err, core.ErrAssetDisabled) {
		t.Errorf("purchase of disabled asset: %v", err)
	}
}

func TestApplyPurchase(t *testing.T) {
	ctx := context.Background()
	svc := New(NewMemoryStore(), nil)
	owner := testPrincipal(0x01)
	buyer := testPrincipal(0x02)

	asset, err := svc.RegisterSaleAsset(ctx, owner, "Painting", "uri", 100, 2)
	if err != nil {
		t.Fatalf("RegisterSaleAsset failed: %v", err)
	}

	first, err := svc.ApplyPurchase(ctx, asset.ID, buyer, true)
	if err != nil {
		t.Fatalf("ApplyPurchase failed: %v", err)
	}
	if first.Quantity != 1 || first.Owner != buyer {
		t.Errorf("after first purchase: %+v", first)
	}

	second, err := svc.ApplyPurchase(ctx, asset.ID, owner, false)
	if err != nil {
		t.Fatalf("ApplyPurchase failed: %v", err)
	}
	if second.Quantity != 0 || second.Owner != buyer {
		t.Errorf("after second purchase: %+v", second)
	}

	if _, err := svc.ApplyPurchase(ctx, asset.ID, buyer, true); !errors.Is(err, core.ErrNoQuantity) {
		t.Errorf("exhausted purchase: %v", err)
	}
	got, _ := svc.GetSaleAsset(ctx, asset.ID)
	if got.Quantity != 0 {
		t.Errorf("failed purchase must leave quantity at 0, got %d", got.Quantity)
	}
}

func TestListAssets(t *testing.T) {
	ctx := context.Background()
	svc := New(NewMemoryStore(), nil)
	owner := testPrincipal(0x01)

	for i := 0; i < 3; i++ {
		if _, err := svc.RegisterSaleAsset(ctx, owner, "a", "uri", 100, 1); err != nil {
			t.Fatalf("RegisterSaleAsset failed: %v", err)
		}
	}

	assets, err := svc.ListSaleAssets(ctx, 2)
	if err != nil {
		t.Fatalf("ListSaleAssets failed: %v", err)
	}
	if len(assets) != 2 || assets[0].ID != 0 || assets[1].ID != 1 {
		t.Errorf("listed assets = %+v", assets)
	}

	all, err := svc.ListSaleAssets(ctx, 0)
	if err != nil {
		t.Fatalf("ListSaleAssets failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("default limit should list all 3, got %d", len(all))
	}
}
