package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fxgate/fxgate/internal/api"
	"github.com/fxgate/fxgate/internal/auth"
	"github.com/fxgate/fxgate/internal/config"
	"github.com/fxgate/fxgate/internal/database"
	"github.com/fxgate/fxgate/internal/frankfurter"
	"github.com/fxgate/fxgate/internal/metering"
	mw "github.com/fxgate/fxgate/internal/middleware"
	inats "github.com/fxgate/fxgate/internal/nats"
	"github.com/fxgate/fxgate/internal/ratelimit"
	iredis "github.com/fxgate/fxgate/internal/redis"
	"github.com/fxgate/fxgate/internal/server"
	"github.com/fxgate/fxgate/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	checks := map[string]api.HealthCheck{}

	// Ledger
	var repo users.Repository
	switch cfg.Ledger.Backend {
	case config.LedgerBackendPostgres:
		pool, err := database.OpenLedger(ctx, cfg.DB, cfg.Ledger.MigrationsPath)
		if err != nil {
			return fmt.Errorf("opening postgres ledger: %w", err)
		}
		defer pool.Close()
		repo = users.NewPostgresRepository(pool)
	default:
		repo = users.NewMemoryRepository()
	}
	slog.Info("ledger ready", "backend", cfg.Ledger.Backend)

	userSvc := users.NewService(repo, users.WithInitialCredits(cfg.Quota.InitialCredits))
	userHandler := users.NewHandler(userSvc)
	checks["ledger"] = userSvc.Ping

	// Redis: registration throttle
	var registerLimiter func(http.Handler) http.Handler
	if cfg.Redis.Enabled {
		redisClient, err := iredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisClient.Close()

		throttle := mw.NewIPThrottle(redisClient, "throttle:register", cfg.RegisterLimit.Max, cfg.RegisterLimit.WindowSec)
		registerLimiter = throttle.Middleware
		checks["redis"] = iredis.HealthCheck(redisClient)
	}

	// NATS: usage events
	var meteringOpts []metering.Option
	if cfg.NATS.URL != "" {
		natsClient, err := inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer natsClient.Close()

		if name := cfg.NATS.UsageConsumer; name != "" {
			if _, err := inats.NewConsumerManager(natsClient.JetStream()).EnsureUsageConsumer(ctx, name); err != nil {
				return err
			}
			slog.Info("usage consumer ready", "consumer", name)
		}

		meteringOpts = append(meteringOpts, metering.WithUsageRecorder(inats.NewPublisher(natsClient.JetStream())))
		checks["nats"] = natsClient.Ping
	}

	// Metering
	limiter := ratelimit.New(cfg.Quota.RateLimit, cfg.Quota.RateWindow)
	limiter.StartJanitor(ctx, cfg.Quota.RateWindow)

	provider := frankfurter.NewClient(cfg.Upstream.BaseURL(), cfg.Upstream.Timeout)
	meteringSvc := metering.NewService(userSvc, limiter, provider, meteringOpts...)
	meteringHandler := metering.NewHandler(meteringSvc)

	// Admin
	adminTokens := auth.NewAdminTokenManager(cfg.Admin.JWTSecret, cfg.Admin.TokenExpiry)

	router := api.NewRouter(api.RouterConfig{
		CORSAllowedOrigins:  cfg.CORS.AllowedOrigins,
		RegisterRateLimiter: registerLimiter,
		Checks:              checks,
	}, api.HandlerSet{
		RegisterUser: userHandler.Register,
		ListUsers:    userHandler.List,
		UpdateUser:   userHandler.Update,
		DeleteUser:   userHandler.Delete,

		ListCurrencies:  meteringHandler.ListCurrencies,
		Convert:         meteringHandler.Convert,
		HistoricalRates: meteringHandler.HistoricalRates,

		AdminMiddleware: auth.RequireAdmin(adminTokens),
	})

	return server.New(cfg.Server, router).Run(ctx)
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
