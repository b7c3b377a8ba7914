package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mall-dashboard/internal/cache"
	"mall-dashboard/internal/client"
	"mall-dashboard/internal/config"
	"mall-dashboard/internal/dashboard"
	"mall-dashboard/internal/daterange"
	"mall-dashboard/internal/metrics"
	"mall-dashboard/internal/middleware"
	"mall-dashboard/internal/observability"
	"mall-dashboard/internal/server"
	"mall-dashboard/internal/services"
)

const (
	csvLoadTimeout = 30 * time.Second
	sweepInterval  = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting application",
		"version", "1.0.0",
		"addr", cfg.Address(),
		"upstream", cfg.Upstream.BaseURL,
		"cache", cfg.Cache.Backend,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	store, err := loadStore(ctx, cfg, logger, m)
	if err != nil {
		return err
	}

	// background work and every open stream end with this context
	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	source, closeCache, err := buildSource(bgCtx, cfg, store, logger, m)
	if err != nil {
		return err
	}

	sessions := dashboard.NewSessions(source, dashboardConfig(cfg), cfg.Dashboard.SessionTTL, logger, m)
	go sessions.Run(bgCtx, sweepInterval)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)
	go rateLimiter.Run(bgCtx)

	srv := server.NewServer(server.Deps{
		Store:     store,
		Sessions:  sessions,
		Gatherer:  reg,
		StaticDir: cfg.Data.StaticDir,
	}, logger)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, srv, rateLimiter, logger, m),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return bgCtx },
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook("sessions", func(ctx context.Context) error {
		logger.Info("closing dashboard sessions", "open", sessions.Len())
		stopBackground()
		return sessions.Close(ctx)
	})
	gracefulServer.RegisterShutdownHook("cache", func(ctx context.Context) error {
		return closeCache()
	})

	return gracefulServer.ListenAndServe(ctx)
}

func newHandler(cfg *config.Config, srv http.Handler, rateLimiter *middleware.RateLimiter, logger *slog.Logger, m *metrics.Metrics) http.Handler {
	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
		middleware.Metrics(m),
	)
	return middlewareChain(srv)
}

func loadStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*services.Store, error) {
	opts := []services.StoreOption{
		services.WithLocation(cfg.Dashboard.Location()),
		services.WithLogger(logger),
		services.WithMetrics(m),
	}
	if cfg.Data.Snapshot {
		opts = append(opts, services.WithSnapshotDir(filepath.Join(os.TempDir(), "mall-dashboard")))
	}
	store := services.NewStore(opts...)

	if cfg.Data.CSVFile == "" {
		return store, nil
	}

	ctx, cancel := context.WithTimeout(ctx, csvLoadTimeout)
	defer cancel()

	start := time.Now()
	if err := store.LoadFromCSV(ctx, cfg.Data.CSVFile); err != nil {
		// the dashboard can still run against a remote API
		if cfg.Upstream.BaseURL != "" {
			logger.Warn("serving without local purchase data", "file", cfg.Data.CSVFile, "error", err)
			return store, nil
		}
		return nil, fmt.Errorf("failed to load CSV data: %w", err)
	}
	logger.Info("CSV data loaded successfully", "file", cfg.Data.CSVFile, "duration", time.Since(start))
	return store, nil
}

// buildSource picks where the dashboard reads from (the local store or a
// remote API) and puts the configured cache in front of it.
func buildSource(ctx context.Context, cfg *config.Config, store *services.Store, logger *slog.Logger, m *metrics.Metrics) (dashboard.Source, func() error, error) {
	var upstream cache.Upstream = store
	if cfg.Upstream.BaseURL != "" {
		c, err := client.New(cfg.Upstream.BaseURL,
			client.WithHTTPClient(&http.Client{Timeout: cfg.Upstream.Timeout}),
			client.WithLocation(cfg.Dashboard.Location()),
			client.WithRetryDelay(cfg.Upstream.RetryDelay),
			client.WithLogger(logger),
			client.WithMetrics(m),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build upstream client: %w", err)
		}
		upstream = c
	}

	noop := func() error { return nil }

	switch cfg.Cache.Backend {
	case "none":
		return upstream, noop, nil

	case "redis":
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		r, err := cache.NewRedis(pingCtx, cfg.Cache.RedisURL)
		if err == nil {
			logger.Info("response cache using redis")
			return cache.NewSource(upstream, r, logger, m), r.Close, nil
		}
		logger.Warn("redis unavailable, falling back to the in-memory cache", "error", err)
	}

	mem := cache.NewMemory()
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mem.Sweep()
			}
		}
	}()
	return cache.NewSource(upstream, mem, logger, m), mem.Close, nil
}

func dashboardConfig(cfg *config.Config) dashboard.Config {
	return dashboard.Config{
		PerPage:     cfg.Dashboard.PerPage,
		SearchDelay: cfg.Dashboard.SearchDebounce,
		DefaultRange: daterange.Range{
			From: cfg.Dashboard.DefaultFrom,
			To:   cfg.Dashboard.DefaultTo,
		},
	}
}
