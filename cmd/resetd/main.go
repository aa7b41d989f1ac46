// Command resetd serves the scheduled quota-reset endpoints: the cron-invoked
// reset and health-check jobs, the admin manual trigger, and operational
// health/metrics routes.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	firestoreapi "cloud.google.com/go/firestore"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/luminalens/quotareset/pkg/api"
	"github.com/luminalens/quotareset/pkg/quotareset"
	zerologadapter "github.com/luminalens/quotareset/pkg/quotareset/logger/zerolog"
	prommetrics "github.com/luminalens/quotareset/pkg/quotareset/metrics/prometheus"
	"github.com/luminalens/quotareset/storage/firestore"
	"github.com/luminalens/quotareset/storage/memory"
	"github.com/luminalens/quotareset/storage/postgres"
	"github.com/luminalens/quotareset/storage/redis"
)

func main() {
	// .env is optional; real deployments inject environment directly
	_ = godotenv.Load()

	zl := zerolog.New(os.Stdout).With().Timestamp().Str("service", "resetd").Logger()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zl = zl.Level(lvl)
	}
	logger := zerologadapter.NewLogger(zl)

	ctx := context.Background()

	store, cleanup, err := newStore(ctx)
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer cleanup()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := prommetrics.NewMetrics(registry, "quotareset")

	executor, err := quotareset.NewExecutor(store, quotareset.Config{
		DefaultAnonymousLimit: getEnvInt("DEFAULT_ANONYMOUS_LIMIT", 10),
		PageSize:              getEnvInt("RESET_PAGE_SIZE", 500),
		Logger:                logger,
		Metrics:               metrics,
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to create reset executor")
	}

	monitor, err := quotareset.NewMonitor(store, quotareset.MonitorConfig{
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to create health monitor")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		zl.Fatal().Msg("JWT_SECRET is required")
	}

	handler, err := api.NewHandler(api.Config{
		Executor:          executor,
		Monitor:           monitor,
		ClaimsFromRequest: api.ClaimsFromBearerToken(jwtSecret),
		Logger:            logger,
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to create API handler")
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(10 * time.Minute))

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/reset/daily", handler.ScheduledReset(quotareset.KindDaily))
		r.Post("/reset/weekly", handler.ScheduledReset(quotareset.KindWeekly))
		r.Post("/reset/monthly", handler.ScheduledReset(quotareset.KindMonthly))
		r.Post("/health-check", handler.HealthCheck)
	})
	r.Post("/admin/reset", handler.ManualReset)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	port := getEnv("PORT", "8080")
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info().Str("port", port).Msg("resetd listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error().Err(err).Msg("forced shutdown")
	}

	zl.Info().Msg("stopped")
}

// newStore picks the storage backend from STORAGE_BACKEND: memory (default),
// firestore, redis, or postgres.
func newStore(ctx context.Context) (quotareset.Store, func(), error) {
	noop := func() {}

	switch backend := getEnv("STORAGE_BACKEND", "memory"); backend {
	case "memory":
		return memory.New(), noop, nil

	case "firestore":
		projectID := os.Getenv("FIRESTORE_PROJECT_ID")
		if projectID == "" {
			return nil, noop, fmt.Errorf("FIRESTORE_PROJECT_ID is required for the firestore backend")
		}
		client, err := firestoreapi.NewClient(ctx, projectID)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create firestore client: %w", err)
		}
		store, err := firestore.New(client, firestore.Config{})
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return store, func() { _ = client.Close() }, nil

	case "redis":
		opts, err := goredis.ParseURL(getEnv("REDIS_URL", "redis://localhost:6379/0"))
		if err != nil {
			return nil, noop, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := goredis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, noop, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store, err := redis.New(client, redis.DefaultConfig())
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return store, func() { _ = client.Close() }, nil

	case "postgres":
		config := postgres.DefaultConfig()
		config.ConnectionString = os.Getenv("DATABASE_URL")
		if config.ConnectionString == "" {
			return nil, noop, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
		store, err := postgres.New(ctx, config)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, noop, fmt.Errorf("failed to run migrations: %w", err)
		}
		return store, store.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
