package httpapi

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/blockassets/marketplace/core"
	"github.com/blockassets/marketplace/license"
	"github.com/blockassets/marketplace/marketplace"
	"github.com/blockassets/marketplace/pkg/clarity"
	"github.com/blockassets/marketplace/pkg/sip018"
	"github.com/blockassets/marketplace/registry"
)

type env struct {
	router   http.Handler
	engine   *sip018.Engine
	ledger   *core.InMemoryLedger
	clock    *core.ManualClock
	ownerKey *secp256k1.PrivateKey
	owner    clarity.Principal
}

func newEnv(t *testing.T) *env {
	t.Helper()

	engine, err := sip018.New(sip018.Domain{Name: "marketplace", Version: "1.0.0", ChainID: sip018.ChainIDTestnet})
	if err != nil {
		t.Fatalf("sip018.New failed: %v", err)
	}
	ownerKey := secp256k1.PrivKeyFromBytes(bytes.Repeat([]byte{0x11}, 32))
	owner, err := clarity.PrincipalFromPublicKey(ownerKey.PubKey().SerializeCompressed(), clarity.VersionTestnet)
	if err != nil {
		t.Fatalf("PrincipalFromPublicKey failed: %v", err)
	}

	clock := core.NewManualClock(1000)
	ledger := core.NewInMemoryLedger()
	reg := registry.New(registry.NewMemoryStore(), nil)
	lic := license.New(license.NewMemoryStore(), reg, engine, clock, nil)
	market := marketplace.New(reg, lic, ledger, marketplace.TransferAlways, nil)

	handler := New(reg, lic, market, nil)
	return &env{
		router:   handler.Router(1000, 1000),
		engine:   engine,
		ledger:   ledger,
		clock:    clock,
		ownerKey: ownerKey,
		owner:    owner,
	}
}

func (e *env) do(t *testing.T, method, path string, caller clarity.Principal, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if !caller.IsZero() {
		req.Header.Set(principalHeader, caller.String())
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), dst); err != nil {
		t.Fatalf("unmarshal response %q: %v", resp.Body.String(), err)
	}
}

func testPrincipal(b byte) clarity.Principal {
	p := clarity.Principal{Version: clarity.VersionTestnet}
	for i := range p.Hash {
		p.Hash[i] = b
	}
	return p
}

func TestSaleAssetLifecycle(t *testing.T) {
	e := newEnv(t)
	buyer := testPrincipal(0x02)
	e.ledger.Credit(buyer, 1_000)

	resp := e.do(t, http.MethodPost, "/sale-assets", e.owner, map[string]any{
		"name": "Painting", "metadata_uri": "https://example.com/p.jpg", "price": 400, "quantity": 2,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var asset registry.SaleAsset
	decodeBody(t, resp, &asset)

	resp = e.do(t, http.MethodGet, fmt.Sprintf("/sale-assets/%d", asset.ID), clarity.Principal{}, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.Code)
	}

	resp = e.do(t, http.MethodPost, fmt.Sprintf("/sale-assets/%d/buy", asset.ID), buyer, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("buy: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var bought registry.SaleAsset
	decodeBody(t, resp, &bought)
	if bought.Quantity != 1 || bought.Owner != buyer {
		t.Errorf("after purchase: %+v", bought)
	}

	resp = e.do(t, http.MethodGet, "/sale-assets", clarity.Principal{}, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.Code)
	}
	var listed []registry.SaleAsset
	decodeBody(t, resp, &listed)
	if len(listed) != 1 {
		t.Errorf("listed %d assets, want 1", len(listed))
	}
}

func TestLicenseRequestLifecycle(t *testing.T) {
	e := newEnv(t)
	claimer := testPrincipal(0x02)
	e.ledger.Credit(claimer, 1_000)

	resp := e.do(t, http.MethodPost, "/license-assets", e.owner, map[string]any{
		"name": "Music", "metadata_uri": "uri", "price": 300, "duration": 100,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var asset registry.LicenseAsset
	decodeBody(t, resp, &asset)

	resp = e.do(t, http.MethodPost, "/license-requests", claimer, map[string]any{"asset_id": asset.ID})
	if resp.Code != http.StatusCreated {
		t.Fatalf("request: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var req license.Request
	decodeBody(t, resp, &req)

	// Claim before approval is refused.
	resp = e.do(t, http.MethodPost, fmt.Sprintf("/license-requests/%d/claim", req.ID), claimer, nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("early claim: expected 403, got %d", resp.Code)
	}

	resp = e.do(t, http.MethodPost, fmt.Sprintf("/license-requests/%d/approve", req.ID), e.owner, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = e.do(t, http.MethodPost, fmt.Sprintf("/license-requests/%d/claim", req.ID), claimer, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("claim: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = e.do(t, http.MethodGet, fmt.Sprintf("/licenses/%d/%s", asset.ID, claimer), clarity.Principal{}, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("get license: expected 200, got %d", resp.Code)
	}
	var status struct {
		Licensed bool `json:"licensed"`
	}
	decodeBody(t, resp, &status)
	if !status.Licensed {
		t.Error("claimer should be licensed")
	}

	resp = e.do(t, http.MethodPost, fmt.Sprintf("/licenses/%d/use", asset.ID), claimer, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("use: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestGrantAndRevokeLicense(t *testing.T) {
	e := newEnv(t)
	licensee := testPrincipal(0x02)

	resp := e.do(t, http.MethodPost, "/license-assets", e.owner, map[string]any{
		"name": "Music", "metadata_uri": "uri", "price": 300, "duration": 100,
	})
	var asset registry.LicenseAsset
	decodeBody(t, resp, &asset)

	digest, err := e.engine.Digest(license.GrantMessage(asset.ID, licensee))
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	sig := sip018.Sign(digest, e.ownerKey)

	resp = e.do(t, http.MethodPost, "/licenses", clarity.Principal{}, map[string]any{
		"asset_id": asset.ID, "licensee": licensee.String(), "signature": hex.EncodeToString(sig),
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("grant: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = e.do(t, http.MethodDelete, fmt.Sprintf("/licenses/%d/%s", asset.ID, licensee), e.owner, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("revoke: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var grant license.Grant
	decodeBody(t, resp, &grant)
	if !grant.Revoked {
		t.Error("grant should be revoked")
	}
}

func TestGrantLicense_RSVSignature(t *testing.T) {
	e := newEnv(t)
	licensee := testPrincipal(0x02)

	resp := e.do(t, http.MethodPost, "/license-assets", e.owner, map[string]any{
		"name": "Music", "metadata_uri": "uri", "price": 300, "duration": 100,
	})
	var asset registry.LicenseAsset
	decodeBody(t, resp, &asset)

	digest, err := e.engine.Digest(license.GrantMessage(asset.ID, licensee))
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	rsv, err := sip018.ToRSV(sip018.Sign(digest, e.ownerKey))
	if err != nil {
		t.Fatalf("ToRSV failed: %v", err)
	}

	resp = e.do(t, http.MethodPost, "/licenses", clarity.Principal{}, map[string]any{
		"asset_id": asset.ID, "licensee": licensee.String(), "signature": hex.EncodeToString(rsv), "rsv": true,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("rsv grant: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestErrorStatusMapping(t *testing.T) {
	e := newEnv(t)
	stranger := testPrincipal(0x03)

	// Missing principal header.
	resp := e.do(t, http.MethodPost, "/sale-assets", clarity.Principal{}, map[string]any{"name": "a"})
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("no principal: expected 401, got %d", resp.Code)
	}

	// Unknown asset.
	resp = e.do(t, http.MethodGet, "/sale-assets/99", clarity.Principal{}, nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("unknown asset: expected 404, got %d", resp.Code)
	}

	// Invalid registration payload.
	resp = e.do(t, http.MethodPost, "/sale-assets", stranger, map[string]any{
		"name": "a", "metadata_uri": "uri", "price": 0, "quantity": 1,
	})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("zero price: expected 400, got %d", resp.Code)
	}

	// Stranger disabling someone else's asset.
	resp = e.do(t, http.MethodPost, "/sale-assets", e.owner, map[string]any{
		"name": "a", "metadata_uri": "uri", "price": 100, "quantity": 1,
	})
	var asset registry.SaleAsset
	decodeBody(t, resp, &asset)
	resp = e.do(t, http.MethodPost, fmt.Sprintf("/sale-assets/%d/disable", asset.ID), stranger, nil)
	if resp.Code != http.StatusForbidden {
		t.Errorf("stranger disable: expected 403, got %d", resp.Code)
	}

	// Underfunded purchase.
	resp = e.do(t, http.MethodPost, fmt.Sprintf("/sale-assets/%d/buy", asset.ID), stranger, nil)
	if resp.Code != http.StatusPaymentRequired {
		t.Errorf("underfunded buy: expected 402, got %d", resp.Code)
	}

	// Disabled asset purchase.
	e.do(t, http.MethodPost, fmt.Sprintf("/sale-assets/%d/disable", asset.ID), e.owner, nil)
	e.ledger.Credit(stranger, 1_000)
	resp = e.do(t, http.MethodPost, fmt.Sprintf("/sale-assets/%d/buy", asset.ID), stranger, nil)
	if resp.Code != http.StatusConflict {
		t.Errorf("disabled buy: expected 409, got %d", resp.Code)
	}
}

func TestRateLimit(t *testing.T) {
	handler := New(
		registry.New(registry.NewMemoryStore(), nil), nil, nil, nil,
	)
	limited := handler.Router(1, 1)

	caller := testPrincipal(0x02)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(principalHeader, caller.String())

	resp := httptest.NewRecorder()
	limited.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	limited.ServeHTTP(resp, req)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", resp.Code)
	}

	// A different caller has its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	other.Header.Set(principalHeader, testPrincipal(0x03).String())
	resp = httptest.NewRecorder()
	limited.ServeHTTP(resp, other)
	if resp.Code != http.StatusOK {
		t.Fatalf("other caller: expected 200, got %d", resp.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodGet, "/healthz", clarity.Principal{}, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.Code)
	}

	resp = e.do(t, http.MethodGet, "/metrics", clarity.Principal{}, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", resp.Code)
	}
	if resp.Body.Len() == 0 {
		t.Fatal("metrics output should not be empty")
	}

	resp = e.do(t, http.MethodGet, "/metrics", clarity.Principal{}, nil)
	if resp.Header().Get(requestIDHeader) == "" {
		t.Error("responses should carry a request id")
	}
}
