// Package marketplace executes purchases and paid license claims: payment
// through the token ledger first, then the single state mutation.
package marketplace

import (
	"context"
	"fmt"
	"sync"

	"github.com/blockassets/marketplace/core"
	"github.com/blockassets/marketplace/license"
	"github.com/blockassets/marketplace/pkg/clarity"
	"github.com/blockassets/marketplace/pkg/logger"
	"github.com/blockassets/marketplace/pkg/metrics"
	"github.com/blockassets/marketplace/registry"
)

// TransferPolicy decides when a purchase reassigns asset ownership.
type TransferPolicy int

const (
	// TransferAlways reassigns the asset to the buyer on every purchase.
	TransferAlways TransferPolicy = iota
	// TransferOnExhaust reassigns only when the purchase takes the last unit.
	TransferOnExhaust
)

// ParseTransferPolicy maps a config string to a policy. Empty means the
// default, TransferAlways.
func ParseTransferPolicy(s string) (TransferPolicy, error) {
	switch s {
	case "", "always":
		return TransferAlways, nil
	case "on-exhaust":
		return TransferOnExhaust, nil
	default:
		return TransferAlways, fmt.Errorf("unknown transfer policy %q", s)
	}
}

func (p TransferPolicy) String() string {
	if p == TransferOnExhaust {
		return "on-exhaust"
	}
	return "always"
}

// Service is the marketplace engine and the host's single mutating entry
// point. One mutex serializes every mutating operation across the registry,
// license ledger, and token ledger, so each logical operation is one critical
// section; the underlying services perform no locking of their own.
type Service struct {
	mu       sync.Mutex
	registry *registry.Service
	licenses *license.Service
	ledger   core.TokenLedger
	policy   TransferPolicy
	log      *logger.Logger
}

// New constructs a marketplace engine.
func New(reg *registry.Service, lic *license.Service, ledger core.TokenLedger, policy TransferPolicy, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("marketplace")
	}
	return &Service{registry: reg, licenses: lic, ledger: ledger, policy: policy, log: log}
}

// RegisterSaleAsset registers a quantity-limited asset owned by the caller.
func (s *Service) RegisterSaleAsset(ctx context.Context, caller clarity.Principal, name, metadataURI string, price uint64, quantity uint32) (registry.SaleAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.RegisterSaleAsset(ctx, caller, name, metadataURI, price, quantity)
}

// RegisterLicenseAsset registers a time-boxed licensable asset owned by the
// caller.
func (s *Service) RegisterLicenseAsset(ctx context.Context, caller clarity.Principal, name, metadataURI string, price, duration uint64) (registry.LicenseAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.RegisterLicenseAsset(ctx, caller, name, metadataURI, price, duration)
}

// DisableSaleAsset freezes all purchases of the asset.
func (s *Service) DisableSaleAsset(ctx context.Context, caller clarity.Principal, id uint64) (registry.SaleAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.DisableSaleAsset(ctx, caller, id)
}

// DisableLicenseAsset blocks new license requests and grants for the asset.
func (s *Service) DisableLicenseAsset(ctx context.Context, caller clarity.Principal, id uint64) (registry.LicenseAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.DisableLicenseAsset(ctx, caller, id)
}

// RequestLicense files a pending license request for the asset.
func (s *Service) RequestLicense(ctx context.Context, requester clarity.Principal, assetID uint64) (license.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.licenses.RequestLicense(ctx, requester, assetID)
}

// ApproveRequest marks a license request approved.
func (s *Service) ApproveRequest(ctx context.Context, caller clarity.Principal, requestID uint64) (license.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.licenses.ApproveRequest(ctx, caller, requestID)
}

// GrantLicense records a signature-authorized grant.
func (s *Service) GrantLicense(ctx context.Context, assetID uint64, licensee clarity.Principal, sig []byte) (license.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.licenses.GrantLicense(ctx, assetID, licensee, sig)
}

// RevokeLicense tombstones a grant.
func (s *Service) RevokeLicense(ctx context.Context, caller clarity.Principal, assetID uint64, licensee clarity.Principal) (license.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.licenses.RevokeLicense(ctx, caller, assetID, licensee)
}

// UseLicensedAsset checks the caller's right to use the asset.
func (s *Service) UseLicensedAsset(ctx context.Context, caller clarity.Principal, assetID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.licenses.UseLicensedAsset(ctx, caller, assetID)
}

// BuySaleAsset pays the asset price to the current owner, decrements quantity,
// and applies the ownership policy. A payment failure leaves all state
// untouched; payment always precedes the mutation, and a mutation failure
// refunds the payment.
func (s *Service) BuySaleAsset(ctx context.Context, buyer clarity.Principal, assetID uint64) (registry.SaleAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, err := s.registry.GetSaleAsset(ctx, assetID)
	if err != nil {
		return registry.SaleAsset{}, err
	}
	if asset.Disabled {
		return registry.SaleAsset{}, core.ErrAssetDisabled
	}
	if asset.Quantity == 0 {
		return registry.SaleAsset{}, core.ErrNoQuantity
	}

	if err := s.ledger.Transfer(ctx, buyer, asset.Owner, asset.Price); err != nil {
		metrics.IncrementCounter("marketplace_payment_failures_total", map[string]string{"op": "buy"})
		return registry.SaleAsset{}, fmt.Errorf("pay %d to %s: %v: %w", asset.Price, asset.Owner, err, core.ErrPaymentFailed)
	}

	transfer := s.policy == TransferAlways || asset.Quantity == 1
	updated, err := s.registry.ApplyPurchase(ctx, assetID, buyer, transfer)
	if err != nil {
		s.refund(ctx, asset.Owner, buyer, asset.Price, "buy")
		return registry.SaleAsset{}, err
	}

	s.log.WithField("asset_id", assetID).
		WithField("buyer", buyer.String()).
		WithField("quantity", updated.Quantity).
		Info("sale asset purchased")
	metrics.IncrementCounter("marketplace_purchases_total", nil)

	return updated, nil
}

// ClaimLicense turns an approved request into a paid grant. The caller must be
// the requester and the request must already be approved by the asset owner.
func (s *Service) ClaimLicense(ctx context.Context, claimer clarity.Principal, requestID uint64) (license.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.licenses.GetRequest(ctx, requestID)
	if err != nil {
		return license.Grant{}, err
	}
	if req.Requester != claimer {
		return license.Grant{}, fmt.Errorf("request %d belongs to %s: %w", requestID, req.Requester, core.ErrNotAuthorized)
	}
	if !req.Approved {
		return license.Grant{}, fmt.Errorf("request %d is not approved: %w", requestID, core.ErrNotAuthorized)
	}

	asset, err := s.registry.GetLicenseAsset(ctx, req.AssetID)
	if err != nil {
		return license.Grant{}, err
	}
	if asset.Disabled {
		return license.Grant{}, core.ErrAssetDisabled
	}

	// Duplicate check before payment so a claimer with a live grant is not
	// charged for a claim that cannot be recorded.
	if s.licenses.IsLicensed(ctx, req.AssetID, claimer) {
		return license.Grant{}, core.ErrLicenseAlreadyExists
	}

	if err := s.ledger.Transfer(ctx, claimer, asset.Owner, asset.Price); err != nil {
		metrics.IncrementCounter("marketplace_payment_failures_total", map[string]string{"op": "claim"})
		return license.Grant{}, fmt.Errorf("pay %d to %s: %v: %w", asset.Price, asset.Owner, err, core.ErrPaymentFailed)
	}

	grant, err := s.licenses.RecordGrant(ctx, req.AssetID, claimer)
	if err != nil {
		s.refund(ctx, asset.Owner, claimer, asset.Price, "claim")
		return license.Grant{}, err
	}

	s.log.WithField("request_id", requestID).
		WithField("asset_id", req.AssetID).
		WithField("licensee", claimer.String()).
		Info("license claimed")
	metrics.IncrementCounter("marketplace_claims_total", nil)

	return grant, nil
}

// refund compensates a committed payment when the mutation that follows it
// fails, so a charge without the matching state change cannot persist.
func (s *Service) refund(ctx context.Context, from, to clarity.Principal, amount uint64, op string) {
	if err := s.ledger.Transfer(ctx, from, to, amount); err != nil {
		s.log.WithError(err).
			WithField("from", from.String()).
			WithField("to", to.String()).
			WithField("amount", amount).
			Error("refund failed")
		metrics.IncrementCounter("marketplace_refund_failures_total", map[string]string{"op": op})
	}
}
