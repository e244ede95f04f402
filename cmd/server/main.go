package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/faredesk/internal/adapter/authority"
	"github.com/pscheid92/faredesk/internal/adapter/backend"
	"github.com/pscheid92/faredesk/internal/adapter/httpserver"
	"github.com/pscheid92/faredesk/internal/adapter/memory"
	adaptermetrics "github.com/pscheid92/faredesk/internal/adapter/metrics"
	"github.com/pscheid92/faredesk/internal/adapter/postgres"
	"github.com/pscheid92/faredesk/internal/adapter/redis"
	"github.com/pscheid92/faredesk/internal/adapter/sqlite"
	"github.com/pscheid92/faredesk/internal/app"
	"github.com/pscheid92/faredesk/internal/domain"
	"github.com/pscheid92/faredesk/internal/metrics"
	"github.com/pscheid92/faredesk/internal/platform/config"
	"github.com/pscheid92/faredesk/internal/platform/logging"
	"github.com/pscheid92/faredesk/internal/platform/version"
)

// durableSetup is the selected durable store together with its readiness
// check and teardown.
type durableSetup struct {
	store      domain.DurableStore
	checks     []httpserver.HealthCheck
	collectors []prometheus.Collector
	closeFn    func()
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDurable(ctx context.Context, cfg *config.Config) durableSetup {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.StorageBackend {
	case config.StorageSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			slog.Error("Failed to open sqlite store", "path", cfg.SQLitePath, "error", err)
			os.Exit(1)
		}
		return durableSetup{
			store:      store,
			checks:     []httpserver.HealthCheck{{Name: "sqlite", Check: store.Ping}},
			collectors: []prometheus.Collector{store.StatsCollector()},
			closeFn:    func() { _ = store.Close() },
		}

	case config.StorageRedis:
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		return durableSetup{
			store: redis.NewStore(client, redis.DefaultKeyPrefix),
			checks: []httpserver.HealthCheck{{Name: "redis", Check: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}}},
			closeFn: func() { _ = client.Close() },
		}

	case config.StoragePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		return durableSetup{
			store:   postgres.NewStore(pool),
			checks:  []httpserver.HealthCheck{{Name: "postgres", Check: pool.Ping}},
			closeFn: pool.Close,
		}

	default:
		slog.Warn("Using in-memory task mirror; unfinished tasks will not survive a restart")
		return durableSetup{store: memory.NewStore(), closeFn: func() {}}
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	metrics.BuildInfo.WithLabelValues(info.Version, info.Commit, info.GoVersion).Set(1)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", info.Version, "storage", cfg.StorageBackend)

	durable := setupDurable(context.Background(), cfg)
	defer durable.closeFn()

	authorityClient, err := authority.NewClient(authority.Config{
		BaseURL:    cfg.AuthorityURL,
		CookieName: cfg.SessionCookieName,
		Timeout:    cfg.AuthorityTimeout,
	})
	if err != nil {
		slog.Error("Failed to create authority client", "error", err)
		os.Exit(1)
	}

	deps := app.ConsoleDeps{
		Authority: authorityClient,
		NewBackend: func(source domain.SessionSource) (domain.TaskBackend, error) {
			return backend.NewClient(backend.Config{BaseURL: cfg.BackendURL, CookieName: cfg.SessionCookieName}, source)
		},
		Durable:      durable.store,
		Clock:        clock,
		TaskTimeout:  cfg.TaskTimeout,
		PollInterval: cfg.PollInterval,
		HistoryLimit: cfg.TaskHistoryLimit,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := newConsoleRuntime(deps)
	if err := rt.start(ctx); err != nil {
		slog.Error("Failed to start console runtime", "error", err)
		os.Exit(1)
	}
	reloaderDone := rt.run(ctx)

	registry := adaptermetrics.NewRegistry()
	registry.MustRegister(durable.collectors...)

	srv := httpserver.NewServer(cfg, rt, registry, durable.checks, clock)

	done := runGracefulShutdown(srv, cancel, reloaderDone, rt)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

func runGracefulShutdown(srv *httpserver.Server, stopReloads context.CancelFunc, reloaderDone <-chan struct{}, rt *consoleRuntime) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopReloads()
		<-reloaderDone
		rt.stop()

		close(done)
	}()

	return done
}
