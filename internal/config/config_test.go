package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blockassets/marketplace/pkg/clarity"
	"github.com/blockassets/marketplace/pkg/sip018"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marketplace.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.App.Name != "marketplace" || cfg.App.Version != "1.0.0" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Chain.Network != "testnet" || cfg.Chain.ID != sip018.ChainIDTestnet || cfg.Chain.AddressVersion != clarity.VersionTestnet {
		t.Errorf("chain = %+v", cfg.Chain)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.HTTP.RatePerSecond != 50 || cfg.HTTP.Burst != 100 {
		t.Errorf("http = %+v", cfg.HTTP)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `
app:
  name: artchain
  version: 2.1.0
chain:
  network: mainnet
market:
  transfer_ownership: on-exhaust
http:
  addr: ":9090"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.App.Name != "artchain" || cfg.App.Version != "2.1.0" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Chain.ID != sip018.ChainIDMainnet || cfg.Chain.AddressVersion != clarity.VersionMainnet {
		t.Errorf("chain = %+v", cfg.Chain)
	}
	if cfg.Market.TransferOwnership != "on-exhaust" {
		t.Errorf("market = %+v", cfg.Market)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("http = %+v", cfg.HTTP)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "app:\n  name: artchain\n")
	t.Setenv("APP_NAME", "galleries")
	t.Setenv("CHAIN_NETWORK", "mainnet")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.App.Name != "galleries" {
		t.Errorf("app name = %q, want env override", cfg.App.Name)
	}
	if cfg.Chain.ID != sip018.ChainIDMainnet {
		t.Errorf("chain id = %d", cfg.Chain.ID)
	}
}

func TestLoad_UnknownNetwork(t *testing.T) {
	t.Setenv("CHAIN_NETWORK", "devnet")
	if _, err := Load(""); err == nil {
		t.Fatal("unknown network without explicit ids should fail")
	}

	t.Setenv("CHAIN_ID", "42")
	t.Setenv("CHAIN_ADDRESS_VERSION", "26")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chain.ID != 42 || cfg.Chain.AddressVersion != 26 {
		t.Errorf("chain = %+v", cfg.Chain)
	}
}

func TestDomain(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	domain := cfg.Domain()
	if domain.Name != "marketplace" || domain.Version != "1.0.0" || domain.ChainID != sip018.ChainIDTestnet {
		t.Errorf("domain = %+v", domain)
	}
}
