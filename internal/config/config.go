// Package config loads daemon configuration from the environment with an
// optional YAML overlay file.
package config

import (
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/blockassets/marketplace/pkg/clarity"
	"github.com/blockassets/marketplace/pkg/sip018"
)

// Config is the daemon configuration. Environment variables win over the
// YAML file; unset chain fields are resolved from the network name.
type Config struct {
	App    AppConfig    `yaml:"app"`
	Chain  ChainConfig  `yaml:"chain"`
	Market MarketConfig `yaml:"market"`
	HTTP   HTTPConfig   `yaml:"http"`
}

// AppConfig names the deployment. Name and version feed the signing domain,
// so changing either invalidates every outstanding signature.
type AppConfig struct {
	Name    string `yaml:"name" env:"APP_NAME"`
	Version string `yaml:"version" env:"APP_VERSION"`
}

// ChainConfig selects the network. ID and AddressVersion default from
// Network and only need setting for custom deployments.
type ChainConfig struct {
	Network        string `yaml:"network" env:"CHAIN_NETWORK"`
	ID             uint32 `yaml:"id" env:"CHAIN_ID"`
	AddressVersion byte   `yaml:"address_version" env:"CHAIN_ADDRESS_VERSION"`
}

// MarketConfig tunes marketplace behavior.
type MarketConfig struct {
	TransferOwnership string `yaml:"transfer_ownership" env:"MARKET_TRANSFER_OWNERSHIP"`
	LedgerEnabled     bool   `yaml:"ledger_enabled" env:"MARKET_LEDGER_ENABLED"`
}

// HTTPConfig tunes the HTTP listener.
type HTTPConfig struct {
	Addr          string  `yaml:"addr" env:"HTTP_ADDR"`
	RatePerSecond float64 `yaml:"rate_per_second" env:"HTTP_RATE_PER_SECOND"`
	Burst         int     `yaml:"burst" env:"HTTP_BURST"`
}

// Load reads configuration: .env if present, then the YAML file named by
// CONFIG_FILE (or path, if given), then environment variables on top.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.resolveChain(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "marketplace"
	}
	if c.App.Version == "" {
		c.App.Version = "1.0.0"
	}
	if c.Chain.Network == "" {
		c.Chain.Network = "testnet"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RatePerSecond <= 0 {
		c.HTTP.RatePerSecond = 50
	}
	if c.HTTP.Burst <= 0 {
		c.HTTP.Burst = 100
	}
}

func (c *Config) resolveChain() error {
	var id uint32
	var version byte
	switch c.Chain.Network {
	case "mainnet":
		id, version = sip018.ChainIDMainnet, clarity.VersionMainnet
	case "testnet":
		id, version = sip018.ChainIDTestnet, clarity.VersionTestnet
	default:
		if c.Chain.ID == 0 || c.Chain.AddressVersion == 0 {
			return fmt.Errorf("unknown network %q needs explicit chain id and address version", c.Chain.Network)
		}
	}
	if c.Chain.ID == 0 {
		c.Chain.ID = id
	}
	if c.Chain.AddressVersion == 0 {
		c.Chain.AddressVersion = version
	}
	return nil
}

// Domain returns the structured-data signing domain for this deployment.
func (c *Config) Domain() sip018.Domain {
	return sip018.Domain{
		Name:    c.App.Name,
		Version: c.App.Version,
		ChainID: c.Chain.ID,
	}
}
