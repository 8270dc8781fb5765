package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/cors"

	"github.com/blogspy/backend/internal/auth"
	"github.com/blogspy/backend/internal/cache"
	"github.com/blogspy/backend/internal/config"
	"github.com/blogspy/backend/internal/database"
	"github.com/blogspy/backend/internal/execution"
	"github.com/blogspy/backend/internal/handlers"
	"github.com/blogspy/backend/internal/ledger"
	"github.com/blogspy/backend/internal/providers"
	"github.com/blogspy/backend/internal/router"
	"github.com/blogspy/backend/internal/scan"
	"github.com/blogspy/backend/internal/tracker"
	"github.com/blogspy/backend/internal/validation"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.StoreBackend == config.BackendPostgres || cfg.CacheBackend == config.BackendPostgres {
		pool, err = database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Cannot reach PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		slog.Info("Connected to PostgreSQL database successfully!")

		if err := database.Migrate(ctx, pool, logger); err != nil {
			slog.Error("Database migration failed", "error", err)
			os.Exit(1)
		}
	}

	// Stores
	var (
		ledgerStore ledger.Store  = ledger.NewMemoryStore()
		userStore   auth.Store    = auth.NewMemoryRepository()
		itemStore   tracker.Store = tracker.NewMemoryStore()
	)
	if cfg.StoreBackend == config.BackendPostgres {
		ledgerStore = ledger.NewPostgresStore(pool)
		userStore = auth.NewRepository(pool)
		itemStore = tracker.NewRepository(pool)
	} else {
		slog.Warn("Using in-memory stores; data is lost on restart")
	}

	// Result cache
	var (
		cacheStore cache.Store
		rdb        *redis.Client
	)
	switch cfg.CacheBackend {
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Cannot reach Redis", "error", err)
			os.Exit(1)
		}
		cacheStore = cache.NewRedisStore(rdb)
	case config.BackendPostgres:
		cacheStore = cache.NewPostgresStore(pool)
	default:
		cacheStore = cache.NewMemoryStore(cfg.CacheTTL)
	}
	resultCache := cache.New(cacheStore, cfg.CacheTTL, logger)
	slog.Info("Result cache ready", "backend", cfg.CacheBackend, "ttl", cfg.CacheTTL)

	// Services
	ledgerSvc := ledger.NewService(ledgerStore, logger)
	authSvc := auth.NewService(userStore, ledgerSvc, auth.Config{
		Secret:      cfg.JWTSecret,
		TokenTTL:    cfg.TokenTTL,
		SignupBonus: cfg.SignupBonus,
	}, logger)
	itemSvc := tracker.NewService(itemStore)

	adapters := providers.NewSet(cfg.Providers(), logger)
	orchestrator := scan.NewOrchestrator(adapters, ledgerSvc, resultCache, scan.Config{
		Cost:            cfg.ScanCreditCost,
		ProviderTimeout: cfg.ProviderTimeout,
	}, logger)

	validator, err := validation.New()
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	api := router.New(router.Handlers{
		Auth:    auth.NewHandler(authSvc, validator, logger),
		Scans:   &handlers.ScanHandler{Scanner: orchestrator, Items: itemSvc, Validator: validator, Logger: logger},
		Credits: &handlers.CreditHandler{Ledger: ledgerSvc, Validator: validator, Promos: cfg.PromoCodes, PurchasesEnabled: cfg.AllowDirectPurchase, Logger: logger},
		Items:   &handlers.TrackedItemHandler{Items: itemSvc, Cache: resultCache, Validator: validator, Logger: logger},
	}, router.Options{
		Tokens:         authSvc,
		Usage:          ledgerSvc,
		DailyScanLimit: cfg.DailyScanLimit,
		Ready:          readiness(pool, rdb),
		Logger:         logger,
	})

	// Background rescans run on River and therefore need Postgres.
	var riverClient *river.Client[pgx.Tx]
	if pool != nil {
		workers := river.NewWorkers()
		execution.Register(workers, orchestrator, itemSvc, cfg.CacheTTL, logger)

		riverClient, err = river.NewClient(riverpgxv5.New(pool), &river.Config{
			Queues: map[string]river.QueueConfig{
				river.QueueDefault: {MaxWorkers: 10},
			},
			Workers:      workers,
			PeriodicJobs: execution.PeriodicJobs(cfg.RescanInterval),
			Logger:       logger,
		})
		if err != nil {
			slog.Error("Failed to create River client", "error", err)
			os.Exit(1)
		}
		if err := riverClient.Start(ctx); err != nil {
			slog.Error("River client failed to start", "error", err)
			os.Exit(1)
		}
		slog.Info("Background rescans scheduled", "interval", cfg.RescanInterval)
	} else {
		slog.Warn("No database configured; background rescans disabled")
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(api)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting HTTP server", "addr", srv.Addr, "provider_mode", cfg.ProviderMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown", "error", err)
	}
	if riverClient != nil {
		if err := riverClient.Stop(shutdownCtx); err != nil {
			slog.Error("River shutdown", "error", err)
		}
	}
}

func readiness(pool *pgxpool.Pool, rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
		}
		if rdb != nil {
			return rdb.Ping(ctx).Err()
		}
		return nil
	}
}
