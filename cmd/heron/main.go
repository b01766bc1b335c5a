// Heron - Financial filing ETL that deploys in 60 seconds.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/opensource-finance/heron/internal/analytics"
	"github.com/opensource-finance/heron/internal/api"
	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/cache"
	"github.com/opensource-finance/heron/internal/classify"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/load"
	"github.com/opensource-finance/heron/internal/pipeline"
	"github.com/opensource-finance/heron/internal/repository"
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
	if os.Getenv("HERON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HERON_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"warehouse", cfg.Warehouse.Driver,
		"analytics", cfg.Analytics.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"input_list", cfg.InputList,
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

	// Initialize Warehouse
	warehouse, err := repository.NewWarehouse(cfg.Warehouse)
	if err != nil {
		slog.Error("failed to initialize warehouse", "error", err)
		os.Exit(1)
	}
	defer warehouse.Close()
	slog.Info("warehouse initialized", "driver", cfg.Warehouse.Driver)

	// Initialize Analytics store
	olap, err := repository.NewAnalytics(cfg.Analytics)
	if err != nil {
		slog.Error("failed to initialize analytics store", "error", err)
		os.Exit(1)
	}
	defer olap.Close()
	slog.Info("analytics store initialized", "driver", cfg.Analytics.Driver)

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

	// Initialize statement classifier with the built-in rules
	classifier, err := classify.NewDefaultClassifier()
	if err != nil {
		slog.Error("failed to initialize classifier", "error", err)
		os.Exit(1)
	}
	slog.Info("classifier initialized", "rules_count", classifier.RulesCount())

	// Wire the pipeline
	loader := load.NewService(warehouse, cacheImpl)
	builder := analytics.NewBuilder(warehouse, olap)
	validator := analytics.NewValidator(warehouse, olap)
	runner := pipeline.NewRunner(cfg.InputList, classifier, loader, builder, validator, busImpl)

	// Log pipeline progress events
	subscribeProgressLogging(ctx, busImpl)

	if os.Getenv("HERON_SERVE") != "true" {
		// One-shot mode: run the pipeline and exit.
		summary, err := runner.Run(ctx)
		if err != nil {
			slog.Error("pipeline run failed", "error", err)
			os.Exit(1)
		}
		printRunReport(summary)
		return
	}

	// Server mode: expose the pipeline over HTTP.
	handler := api.NewHandler(warehouse, olap, cacheImpl, busImpl, runner, validator, Version)
	srv := api.NewServer(cfg.Server, handler)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("heron shutdown complete")
}

// applyEnvOverrides applies HERON_* environment overrides on top of the
// tier defaults.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("HERON_INPUT_FILE"); v != "" {
		cfg.InputList = v
	}
	if v := os.Getenv("HERON_WAREHOUSE_PATH"); v != "" {
		cfg.Warehouse.SQLitePath = v
	}
	if v := os.Getenv("HERON_ANALYTICS_PATH"); v != "" {
		cfg.Analytics.SQLitePath = v
	}
	if v := os.Getenv("HERON_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("HERON_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// subscribeProgressLogging logs pipeline events as they arrive.
func subscribeProgressLogging(ctx context.Context, busImpl domain.EventBus) {
	topics := []string{
		domain.TopicDocumentProcessed,
		domain.TopicBatchLoaded,
		domain.TopicRunCompleted,
	}
	for _, topic := range topics {
		if _, err := busImpl.Subscribe(ctx, topic, func(ctx context.Context, msg *domain.Message) error {
			slog.Debug("pipeline event", "topic", msg.Topic, "payload", string(msg.Payload))
			return nil
		}); err != nil {
			slog.Warn("failed to subscribe to topic", "topic", topic, "error", err)
		}
	}
}

func printRunReport(summary *domain.RunSummary) {
	fmt.Println()
	fmt.Printf("  Run:        %s\n", summary.RunID)
	fmt.Printf("  Documents:  %d processed, %d skipped\n", summary.Documents, summary.DocumentsSkipped)
	fmt.Printf("  Statements: %d\n", summary.StatementsLoaded)
	fmt.Printf("  Warehouse:  %d companies, %d filings, %d line items, %d facts inserted\n",
		summary.Load.Companies, summary.Load.Filings, summary.Load.LineItems, summary.Load.FactsInserted)
	fmt.Printf("  Duration:   %dms\n", summary.DurationMs)
	fmt.Println()
	fmt.Println("  Quality checks:")
	for _, check := range []string{
		domain.CheckFutureDates,
		domain.CheckDuplicateFactIDs,
		domain.CheckRevenueNonPositive,
		domain.CheckMissingRequiredMetrics,
		domain.CheckOrphanedCompanyRefs,
	} {
		fmt.Printf("    %-26s %d\n", check, summary.Report[check])
	}
	fmt.Println()
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🐦 HERON                    ║")
	fmt.Println("  ║      Financial Filing ETL Engine          ║")
	fmt.Println("  ║     From filings to facts, fast.          ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /runs       - Trigger an ingestion run")
	fmt.Println("    GET  /runs/{id}  - Get a run summary by ID")
	fmt.Println("    GET  /report     - Current quality report")
	fmt.Println("    GET  /health     - Health check")
	fmt.Println("    GET  /ready      - Readiness probe")
	fmt.Println()
}
