// Package main is the entry point for the portal API server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/shaheenweb/portal/internal/cms"
	"github.com/shaheenweb/portal/internal/config"
	"github.com/shaheenweb/portal/internal/form"
	"github.com/shaheenweb/portal/internal/observability"
	"github.com/shaheenweb/portal/internal/search"
	"github.com/shaheenweb/portal/internal/transport"
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
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

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

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "portal-api", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Upstream clients.
	cmsClient := cms.NewClient(cfg.CMS.BaseURL, cfg.CMS.Timeout, metrics)
	meiliClient := search.NewMeiliClient(
		cfg.Meilisearch.Host,
		cfg.Meilisearch.SearchKey,
		cfg.Meilisearch.EffectiveAdminKey(),
		cfg.Meilisearch.Timeout,
	)

	// Search aggregation.
	indexCache := search.NewIndexCache(cfg.Search.IndexCacheTTL)
	aggregator := search.NewAggregator(meiliClient, indexCache, metrics, logger,
		cfg.Search.DefaultLimit, cfg.Search.MaxLimit)

	// Form wizard sessions.
	sessions := form.NewSessionStore(cfg.Session.TTL, metrics)

	router := transport.NewRouter(transport.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		CMS:      cmsClient,
		Search:   aggregator,
		Sessions: sessions,
		Ready: observability.ReadinessChecks{
			CMS:    cmsClient,
			Search: meiliClient,
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Background tasks.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	go sessions.RunSweeper(bgCtx, cfg.Session.SweepInterval)

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("cms", cfg.CMS.BaseURL),
		zap.String("meilisearch", cfg.Meilisearch.Host),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

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

	bgCancel()

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}
