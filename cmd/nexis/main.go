// Nexis - Behavioral credit trust scoring for people without a credit file.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/nexis/internal/api"
	"github.com/opensource-finance/nexis/internal/assessment"
	"github.com/opensource-finance/nexis/internal/auth"
	"github.com/opensource-finance/nexis/internal/bus"
	"github.com/opensource-finance/nexis/internal/cache"
	"github.com/opensource-finance/nexis/internal/config"
	"github.com/opensource-finance/nexis/internal/domain"
	"github.com/opensource-finance/nexis/internal/policy"
	"github.com/opensource-finance/nexis/internal/ratelimit"
	"github.com/opensource-finance/nexis/internal/repository"
	"github.com/opensource-finance/nexis/internal/rules"
	"github.com/opensource-finance/nexis/internal/telemetry"
	"github.com/opensource-finance/nexis/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	if err := run(); err != nil {
		slog.Error("nexis exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.SetDefault(config.NewLogger(cfg.Logging))

	slog.Info("starting nexis",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"require_consent", cfg.Assessment.RequireConsent,
		"auth", cfg.Auth.Enabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Tracing, telemetry.Service{
		Version:        Version,
		Tier:           cfg.Tier,
		CatalogVersion: rules.Default().Settings().Version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	processor := assessment.NewProcessor(rules.Default(), cfg.Assessment.Validity())
	if err := processor.Validate(); err != nil {
		return fmt.Errorf("scoring pipeline is misconfigured: %w", err)
	}
	catalog := processor.Catalog()
	slog.Info("rule catalog loaded",
		"rules", catalog.Len(),
		"max_points", catalog.MaxPoints(),
		"version", catalog.Settings().Version,
	)

	service := assessment.NewService(processor, assessment.ServiceOptions{
		Repository:     repo,
		Cache:          cacheImpl,
		Bus:            busImpl,
		RequireConsent: cfg.Assessment.RequireConsent,
		CacheTTL:       cfg.Cache.LocalTTL,
	})

	// Policies are loaded per tenant on first use.
	policies, err := policy.NewRegistry(repo.ListPolicies, cfg.Assessment.Workers)
	if err != nil {
		return fmt.Errorf("failed to initialize policy registry: %w", err)
	}
	defer policies.Close()

	opts := api.Options{
		Repository: repo,
		Cache:      cacheImpl,
		Bus:        busImpl,
		Service:    service,
		Policies:   policies,
		Version:    Version,
	}

	if cfg.Auth.Enabled() {
		manager, err := auth.NewManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("failed to initialize auth: %w", err)
		}
		opts.Auth = manager
		slog.Info("lender auth enabled", "issuer", cfg.Auth.Issuer)
	} else {
		slog.Warn("lender auth disabled, set NEXIS_AUTH_SECRET to require tokens")
	}

	if cfg.RateLimit.Enabled {
		assessLimiter, err := ratelimit.NewCounterLimiter(cacheImpl, "assessment", ratelimit.Rule{
			Limit:  cfg.RateLimit.AssessmentLimit,
			Window: cfg.RateLimit.AssessmentWindow,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize assessment rate limit: %w", err)
		}
		defer assessLimiter.Close()

		decisionLimiter, err := ratelimit.NewCounterLimiter(cacheImpl, "decision", ratelimit.Rule{
			Limit:  cfg.RateLimit.DecisionLimit,
			Window: cfg.RateLimit.DecisionWindow,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize decision rate limit: %w", err)
		}
		defer decisionLimiter.Close()

		opts.AssessmentLimiter = assessLimiter
		opts.DecisionLimiter = decisionLimiter
	}

	var asyncWorker *worker.Worker
	if cfg.Assessment.AsyncWorker {
		asyncWorker = worker.NewWorker(busImpl, service)
		workerCfg := worker.Config{
			TenantIDs:   cfg.Assessment.WorkerTenants,
			WorkerCount: cfg.Assessment.Workers,
		}
		if err := asyncWorker.Start(workerCfg); err != nil {
			return fmt.Errorf("failed to start async worker: %w", err)
		}
		slog.Info("async worker started",
			"tenants", len(workerCfg.TenantIDs),
			"workers", workerCfg.WorkerCount,
		)
	}

	srv := api.NewServer(cfg.Server, opts)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	slog.Info("nexis is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(cfg, Version)

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	// Stop taking queued work before the server goes away.
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("nexis shutdown complete")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  +-------------------------------------------+")
	fmt.Println("  |                  NEXIS                    |")
	fmt.Println("  |       Behavioral Credit Trust Scores      |")
	fmt.Println("  |    Credit for people without a file.      |")
	fmt.Println("  +-------------------------------------------+")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /assessments                  - Score a behavioral record")
	fmt.Println("    POST /assessments/async            - Queue a record for scoring")
	fmt.Println("    GET  /assessments/{id}             - Get assessment by ID")
	fmt.Println("    GET  /subjects/{id}/assessment     - Latest assessment of a subject")
	fmt.Println("    GET  /subjects/{id}/explanation    - Factors behind the score")
	fmt.Println("    GET  /subjects/{id}/improvement    - Recommendations")
	fmt.Println("    GET  /subjects/{id}/roadmap        - Improvement roadmap")
	fmt.Println("    POST /subjects/{id}/consent        - Record consent")
	fmt.Println("    GET  /rules                        - Rule catalog")
	fmt.Println("    POST /policies                     - Create a lender policy")
	fmt.Println("    POST /policies/reload              - Activate stored policies")
	fmt.Println("    GET  /lender/subjects/{id}         - Lender decision support")
	fmt.Println("    POST /lender/decisions             - Record a lender decision")
	fmt.Println("    GET  /health                       - Health check")
	fmt.Println()
}
