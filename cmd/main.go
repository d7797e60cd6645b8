// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Shivanand-hulikatti/sauna-signup/internal/config"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/database"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/handler"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/logger"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/metrics"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/outbox"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/repository"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(logger.Setup(cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Open the store ─────────────────────────────────────────────────
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// ── 2. Wire up layers ────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	policy := cfg.RetryPolicy()
	eventSvc := service.NewEventService(store, policy)
	signupSvc := service.NewSignupService(store, policy, cfg.SignupTxTimeout, collector)
	adminSvc := service.NewAdminService(store, policy, collector)

	var limiter *handler.RateLimiter
	if cfg.RateLimitSignupPerMin > 0 {
		limiter = handler.NewRateLimiter(cfg.RateLimitSignupPerMin, 5*time.Minute)
		defer limiter.Stop()
	}
	if cfg.AdminToken == "" {
		slog.Warn("ADMIN_TOKEN is empty, admin routes are disabled")
	}

	// ── 3. Build the router ───────────────────────────────────────────────
	router := handler.NewRouter(handler.RouterConfig{
		Handler:           handler.New(eventSvc, signupSvc, adminSvc, store),
		Metrics:           metrics.Handler(reg),
		Recorder:          collector,
		SignupLimiter:     limiter,
		AdminToken:        cfg.AdminToken,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
	})

	// ── 4. Outbox relay ───────────────────────────────────────────────────
	var wg sync.WaitGroup
	if cfg.RedisAddr != "" {
		client, err := outbox.NewRedisClient(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer client.Close()

		relay := outbox.NewRelay(store, outbox.NewStreamPublisher(client, cfg.OutboxStream),
			cfg.OutboxBatchSize, cfg.OutboxPollInterval, collector)
		wg.Add(1)
		go func() {
			defer wg.Done()
			relay.Run(ctx)
		}()
	} else {
		slog.Info("REDIS_ADDR is empty, outbox relay disabled")
	}

	// ── 5. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server listening",
			slog.String("addr", srv.Addr),
			slog.String("store", cfg.StoreBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	wg.Wait()
	slog.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.StoreBackend == config.BackendMemory {
		slog.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil
	}

	dbURL := cfg.DatabaseURL()
	pool, err := database.NewPool(ctx, database.PoolConfig{
		URL:      dbURL,
		MaxConns: cfg.DBMaxConns,
		Attempts: 5,
		Wait:     2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	slog.Info("connected to postgres", slog.String("host", cfg.DBHost), slog.String("db", cfg.DBName))

	// the pool is up, so the database accepts connections by now
	if cfg.MigrateOnStart {
		if err := database.RunMigrations(dbURL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("database: %w", err)
		}
		slog.Info("migrations applied")
	}
	return repository.NewPostgresStore(pool), nil
}
