// Package main is the entry point for the reporting portal server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/apidoc"
	"github.com/pitabwire/reportal/internal/app"
	"github.com/pitabwire/reportal/internal/config"
	"github.com/pitabwire/reportal/internal/observability"
	"github.com/pitabwire/reportal/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.InitMetrics(prometheus.DefaultRegisterer)
	}

	// Step 4: Open stores and build services.
	portal, err := app.New(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("service initialization failed", zap.Error(err))
		return 1
	}
	defer portal.Close()

	// Step 5: Apply seed files.
	var seeded atomic.Bool
	if cfg.Seed.ApplyOnStart && len(cfg.Seed.Directories) > 0 {
		res, err := portal.Seed(ctx, cfg.Seed.Directories, logger.Named("seed"))
		if err != nil {
			metrics.RecordSeedApply("error", 0, 0)
			logger.Error("seed apply failed", zap.Error(err))
			return 1
		}
		metrics.RecordSeedApply("ok", res.CategoriesCreated, res.FormsSaved)
		logger.Info("seed applied",
			zap.Int("categories_created", res.CategoriesCreated),
			zap.Int("categories_skipped", res.CategoriesSkipped),
			zap.Int("forms_saved", res.FormsSaved),
		)
	}
	seeded.Store(true)

	// Step 6: Build the token verifier.
	var jwks *transport.JWKSClient
	if cfg.Identity.JWKSURL != "" {
		jwks = transport.NewJWKSClient(cfg.Identity.JWKSURL, cfg.Identity.JWKSCacheTTL, logger.Named("jwks"))
	}
	keyfunc := transport.NewKeyfunc(jwks, cfg.Identity.HMACSecret())

	// Step 7: Build HTTP router.
	doc, err := apidoc.Load(ctx)
	if err != nil {
		logger.Error("API document invalid", zap.Error(err))
		return 1
	}
	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Metrics:      metrics,
		Authenticate: transport.JWTAuthenticator(cfg.Identity, keyfunc),
		Access:       portal.Access,
		Policy:       portal.Policy,
		Categories:   portal.Categories,
		Configs:      portal.Configs,
		Locations:    portal.Locations,
		LocationDocs: portal.Stores.Primary,
		Classifier:   portal.Classifier,
		Runtime:      portal.Runtime,
		Submissions:  portal.Submissions,
		Idempotency:  portal.Idempotency,
		Reports:      portal.Reports,
		Readiness: observability.ReadinessChecks{
			Primary:      portal.Stores.Primary,
			Mirror:       portal.Stores.Mirror,
			AccessPolicy: portal.Policy,
			SeedApplied:  seeded.Load,
		},
		APIDoc: doc,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 8: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("primary_store", cfg.Stores.Primary.Driver),
		zap.String("mirror_store", cfg.Stores.Mirror.Driver),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			return 1
		}
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}
