package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/itrc/evaluation-workflow/internal/api/rest"
	"github.com/itrc/evaluation-workflow/internal/domain/workflow"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/cache"
	catalogseed "github.com/itrc/evaluation-workflow/internal/infrastructure/catalog"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/config"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/database"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/render"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/repository"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/storage"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/telemetry"
	"github.com/itrc/evaluation-workflow/internal/metrics"
	"github.com/itrc/evaluation-workflow/internal/service/evaluation"
	"github.com/itrc/evaluation-workflow/internal/service/intake"
	"github.com/itrc/evaluation-workflow/internal/service/reporting"
	"github.com/itrc/evaluation-workflow/internal/service/securitytarget"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		slog.Error("failed to setup logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting evaluation workflow",
		"version", cfg.Version,
		"environment", cfg.Environment,
		"port", cfg.Server.Port)

	zlog, err := telemetry.NewZapLogger(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		return fmt.Errorf("creating zap logger: %w", err)
	}
	defer func() { _ = zlog.Sync() }()

	provider, err := telemetry.InitializeOpenTelemetry(ctx, telemetry.FromAppConfig(cfg))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	workflowMetrics, err := metrics.NewRegistry("evaluation-workflow")
	if err != nil {
		return fmt.Errorf("creating workflow metrics: %w", err)
	}

	pool, err := database.NewConnectionPool(&cfg.Database, zlog.Named("database"))
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	repos := repository.NewRepositories(pool)

	cat, err := catalogseed.Load(cfg.Catalog.SeedPath)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	store, err := storage.NewStore(cfg.Storage.ArtifactDir, zlog.Named("storage"))
	if err != nil {
		return fmt.Errorf("opening artifact store: %w", err)
	}
	renderer, err := render.New(cfg.Reports.Format)
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	auth := rest.NewAuthenticator(rest.AuthConfig{
		JWTSecret:   []byte(cfg.Security.JWTSecret),
		Issuer:      cfg.Security.Issuer,
		TokenExpiry: cfg.Security.TokenExpiry,
	}, repos.Users)

	// Redis is optional: without it dashboards are computed on every request
	// and rate limiting stays in process.
	rdb, err := cache.NewRedisClient(&cfg.Redis, zlog.Named("redis"))
	if err != nil {
		logger.Warn("redis unavailable, continuing without cache", "error", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	// The hub needs the intake service to authorize subscriptions, and the
	// intake service publishes to the hub, so the hub is bound late.
	var hub *rest.EventHub
	broadcast := workflow.PublisherFunc(func(ctx context.Context, e *workflow.Event) {
		if hub != nil {
			hub.Publish(ctx, e)
		}
	})

	intakeOpts := []intake.Option{intake.WithPublisher(broadcast), intake.WithMetrics(workflowMetrics)}
	var limiter rest.DistributedLimiter
	if rdb != nil {
		statsCache, err := cache.NewRedisCache(rdb, zlog.Named("cache"))
		if err != nil {
			return fmt.Errorf("creating stats cache: %w", err)
		}
		intakeOpts = append(intakeOpts, intake.WithStatsCache(statsCache, cfg.Redis.StatsTTL))
		limiter = cache.WithCircuitBreaker(cache.NewRedisRateLimiter(rdb, zlog.Named("ratelimit")),
			cache.NewCircuitBreaker(5, 30*time.Second))
	}
	intakeSvc := intake.NewService(repos.Applications, repos.Evaluations, cat, zlog.Named("intake"), intakeOpts...)
	hub = rest.NewEventHub(auth, intakeSvc, rest.DefaultWebSocketConfig(), logger)

	publisher := workflow.Fanout(broadcast, intakeSvc.StatsInvalidator())

	targetSvc := securitytarget.NewService(repos.Applications, repos.SecurityTargets, pool, cat, zlog.Named("securitytarget"),
		securitytarget.WithPublisher(publisher),
		securitytarget.WithMetrics(workflowMetrics))

	evalSvc := evaluation.NewService(repos.Applications, repos.Evaluations, repos.SecurityTargets, repos.Users, pool, cat, zlog.Named("evaluation"),
		evaluation.WithPublisher(publisher),
		evaluation.WithMetrics(workflowMetrics))

	reportSvc := reporting.NewService(reporting.Dependencies{
		Applications:    repos.Applications,
		Evaluations:     repos.Evaluations,
		SecurityTargets: repos.SecurityTargets,
		Users:           repos.Users,
		Reports:         repos.Reports,
		Store:           store,
		Renderer:        renderer,
		Tx:              pool,
		Catalog:         cat,
	}, zlog.Named("reporting"),
		reporting.WithPublisher(publisher),
		reporting.WithMetrics(workflowMetrics))

	checks := map[string]rest.Pinger{"database": pool}
	if rdb != nil {
		checks["redis"] = redisPinger(rdb)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := rest.NewHTTPMetrics(reg)
	if err := registerRuntimeMetrics(reg, pool, hub); err != nil {
		return fmt.Errorf("registering runtime metrics: %w", err)
	}
	go trackPoolSize(ctx, pool, workflowMetrics, 15*time.Second)

	var contract *rest.ContractValidator
	if cfg.Server.ValidateContract {
		if contract, err = rest.NewContractValidator(); err != nil {
			return fmt.Errorf("loading api contract: %w", err)
		}
	}

	router := rest.NewRouter(rest.Dependencies{
		Logger:          logger,
		Auth:            auth,
		Catalog:         cat,
		Applications:    intakeSvc,
		SecurityTargets: targetSvc,
		Evaluations:     evalSvc,
		Reports:         reportSvc,
		Health:          rest.NewHealthHandler(cfg.Version, cfg.Environment, checks),
		Hub:             hub,
		Metrics:         httpMetrics,
		Gatherer:        reg,
		RateLimiter: rest.NewRateLimiter(rest.RateLimitConfig{
			RequestsPerSecond: cfg.Security.RateLimit.RequestsPerSecond,
			Burst:             cfg.Security.RateLimit.BurstSize,
		}, limiter, logger),
		Contract: contract,
	})

	server := rest.NewServer(rest.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, hub, logger)

	zlog.Info("services wired",
		zap.Int("product_types", len(cat.ProductTypes())),
		zap.String("report_format", renderer.Format()),
		zap.Bool("redis", rdb != nil))

	return server.Run(ctx)
}

func redisPinger(c *redis.Client) rest.Pinger {
	return rest.PingerFunc(func(ctx context.Context) error {
		return c.Ping(ctx).Err()
	})
}
