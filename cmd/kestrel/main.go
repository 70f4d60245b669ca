// Kestrel - Claims compliance screening that deploys in 60 seconds.
// Copyright (c) 2026 opensource.health
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-health/kestrel/internal/analysis"
	"github.com/opensource-health/kestrel/internal/api"
	"github.com/opensource-health/kestrel/internal/bus"
	"github.com/opensource-health/kestrel/internal/cache"
	"github.com/opensource-health/kestrel/internal/domain"
	"github.com/opensource-health/kestrel/internal/policy"
	"github.com/opensource-health/kestrel/internal/refdata"
	"github.com/opensource-health/kestrel/internal/repository"
	"github.com/opensource-health/kestrel/internal/rules"
	"github.com/opensource-health/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Store
	store, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("store initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Policy Engine
	policyEngine, err := policy.NewEngine()
	if err != nil {
		slog.Error("failed to initialize policy engine", "error", err)
		os.Exit(1)
	}

	// Load policies from database (no hardcoded defaults - configure via API)
	if err := loadPoliciesFromDatabase(ctx, store, policyEngine); err != nil {
		slog.Error("failed to load policies", "error", err)
		os.Exit(1)
	}
	slog.Info("policy engine initialized", "policies_count", policyEngine.Count())

	// Initialize Reference Resolver and Analyzer
	resolver := refdata.NewResolver(store, cacheImpl, cfg.Scoring)
	evaluators := rules.Registry(cfg.Scoring, policyEngine)
	analyzer := analysis.NewAnalyzer(resolver, evaluators, cfg.Scoring)
	slog.Info("analyzer initialized", "evaluators", len(evaluators))

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, store, analyzer)

		var tenantIDs []string
		if envTenants := os.Getenv("KESTREL_TENANTS"); envTenants != "" {
			for _, t := range strings.Split(envTenants, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tenantIDs = append(tenantIDs, t)
				}
			}
		}

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, store, cacheImpl, busImpl, analyzer, policyEngine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// GlobalTenantID is used for policies that apply to all tenants.
const GlobalTenantID = "*"

// loadPoliciesFromDatabase loads screening policies from the database into
// the engine. All policies must be configured via POST /policies API - no
// hardcoded defaults.
func loadPoliciesFromDatabase(ctx context.Context, store domain.ReferenceStore, engine *policy.Engine) error {
	configs, err := store.ListPolicyConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list policies from database", "error", err)
		return nil // Start with empty policies - they can be added via API
	}

	if len(configs) > 0 {
		slog.Info("loading policies from database", "count", len(configs))
		return engine.LoadAll(configs)
	}

	slog.Info("no policies in database - configure via POST /policies API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║     Claims Compliance & Fraud Engine      ║")
	fmt.Println("  ║       Eyes on every claim.                ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /analyze                   - Analyze a claim synchronously")
	fmt.Println("    POST /claims                    - Queue a claim for async analysis")
	fmt.Println("    GET  /analyses/{id}             - Get analysis by job ID")
	fmt.Println("    GET  /claims/{id}/analyses      - List analyses for a claim")
	fmt.Println("    GET  /policies                  - List screening policies")
	fmt.Println("    POST /policies                  - Create a screening policy")
	fmt.Println("    POST /policies/reload           - Hot-reload policies from database")
	fmt.Println("    PUT  /reference/providers       - Load provider registry")
	fmt.Println("    PUT  /reference/eligibility     - Load eligibility records")
	fmt.Println("    PUT  /reference/ncci-edits      - Load NCCI PTP edits")
	fmt.Println("    PUT  /reference/mue-limits      - Load MUE limits")
	fmt.Println("    GET  /health                    - Health check")
	fmt.Println()
}
