package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/rankcrawl/internal/adapters/http/api"
	"github.com/okian/rankcrawl/internal/adapters/repository"
	"github.com/okian/rankcrawl/internal/adapters/riot"
	app "github.com/okian/rankcrawl/internal/app"
	"github.com/okian/rankcrawl/internal/config"
	"github.com/okian/rankcrawl/internal/crawl"
	"github.com/okian/rankcrawl/pkg/logger"
)

// HTTP server timeout constants for the ops listener.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	os.Exit(run())
}

// run executes one crawl cycle and returns the process exit code.
func run() int {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 2
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := newService(cfg, log)

	if cfg.MetricsAddr != "" {
		srv := newOpsServer(cfg.MetricsAddr, svc)
		go func() {
			log.Info(ctx, "serving ops endpoints", logger.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "ops server failed", logger.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn(ctx, "ops server shutdown failed", logger.Error(err))
			}
		}()
	}

	sum, err := svc.RunCycle(ctx)
	if err != nil {
		log.Error(ctx, "crawl cycle failed", logger.String("cycle_id", sum.CycleID), logger.Error(err))
		return 1
	}
	return 0
}

// newClient builds the remote client: HTTP transport, then rate limiting,
// then retry. Every attempt, retries included, waits for the limiter.
func newClient(cfg *config.Config, log logger.Logger) riot.API {
	var api riot.API = riot.New(
		riot.WithRegion(cfg.Region),
		riot.WithBaseURL(cfg.APIBaseURL),
		riot.WithAPIKey(cfg.APIKey),
		riot.WithQueue(cfg.QueueType, cfg.QueueID),
		riot.WithTimeout(cfg.HTTPTimeout()),
		riot.WithLogger(log.Named("riot")),
	)
	api = riot.NewRateLimited(api, cfg.RequestsPerSecond, cfg.RequestBurst)
	return riot.NewRetrying(api, log.Named("retry"), cfg.RetryAttempts, cfg.RetryDelay())
}

// newService wires one cycle's collaborators from configuration.
func newService(cfg *config.Config, log logger.Logger) *app.Service {
	store := repository.NewFS(cfg.DataDir, repository.WithLogger(log.Named("store")))
	return app.New(newClient(cfg, log), store,
		app.WithLogger(log.With(logger.String("region", cfg.Region))),
		app.WithUpdateSize(cfg.UpdateSize),
		app.WithPullRanks(cfg.PullRanks),
		app.WithBootstrap(cfg.Bootstrap),
		app.WithQueueSize(cfg.QueueSize),
		app.WithConsumerCount(cfg.ConsumerCount),
		app.WithCrawlOptions(
			crawl.WithPaginationBatch(cfg.PaginationBatchSize),
			crawl.WithAccountBatch(cfg.AccountBatchSize),
			crawl.WithMatchlistBatch(cfg.MatchlistBatchSize),
			crawl.WithMatchBatch(cfg.MatchBatchSize),
			crawl.WithLookbehind(cfg.Lookbehind()),
		),
	)
}

// newOpsServer serves health, cycle status and metrics for status.
func newOpsServer(addr string, status api.StatusProvider) *http.Server {
	mux := http.NewServeMux()
	api.NewServer(status).Register(mux)
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
