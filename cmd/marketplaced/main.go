// Package main runs the marketplace daemon: the asset registry, license
// ledger, and marketplace engine behind one HTTP listener.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockassets/marketplace/core"
	"github.com/blockassets/marketplace/internal/config"
	"github.com/blockassets/marketplace/internal/httpapi"
	"github.com/blockassets/marketplace/license"
	"github.com/blockassets/marketplace/marketplace"
	"github.com/blockassets/marketplace/pkg/clarity"
	"github.com/blockassets/marketplace/pkg/logger"
	"github.com/blockassets/marketplace/pkg/sip018"
	"github.com/blockassets/marketplace/registry"
)

// loggingLedger wraps a TokenLedger so every transfer leaves a trace.
type loggingLedger struct {
	inner core.TokenLedger
	log   *logger.Logger
}

func (l *loggingLedger) Transfer(ctx context.Context, from, to clarity.Principal, amount uint64) error {
	err := l.inner.Transfer(ctx, from, to, amount)
	entry := l.log.WithFields(map[string]interface{}{
		"from":   from.String(),
		"to":     to.String(),
		"amount": amount,
	})
	if err != nil {
		entry.WithError(err).Warn("transfer rejected")
		return err
	}
	entry.Info("transfer applied")
	return nil
}

// nopLedger accepts every transfer. Used when no currency ledger is wired in,
// so payment checks become a no-op instead of blocking the whole flow.
type nopLedger struct{}

func (nopLedger) Transfer(context.Context, clarity.Principal, clarity.Principal, uint64) error {
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (overrides CONFIG_FILE)")
	flag.Parse()

	log := logger.NewDefault("marketplaced")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Error("load configuration")
		os.Exit(1)
	}

	engine, err := sip018.New(cfg.Domain())
	if err != nil {
		log.WithError(err).Error("build signing engine")
		os.Exit(1)
	}

	policy, err := marketplace.ParseTransferPolicy(cfg.Market.TransferOwnership)
	if err != nil {
		log.WithError(err).Error("parse transfer policy")
		os.Exit(1)
	}

	var ledger core.TokenLedger = nopLedger{}
	if cfg.Market.LedgerEnabled {
		ledger = core.NewInMemoryLedger()
	}

	clock := core.NewSystemClock(time.Now(), 0)
	reg := registry.New(registry.NewMemoryStore(), logger.NewDefault("registry"))
	lic := license.New(license.NewMemoryStore(), reg, engine, clock, logger.NewDefault("license"))
	market := marketplace.New(reg, lic, &loggingLedger{inner: ledger, log: log}, policy, logger.NewDefault("marketplace"))

	handler := httpapi.New(reg, lic, market, logger.NewDefault("httpapi"))

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(cfg.HTTP.RatePerSecond, cfg.HTTP.Burst),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTP.Addr).
			WithField("network", cfg.Chain.Network).
			WithField("policy", policy.String()).
			Info("marketplace daemon listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server error")
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}
