package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/thalibox/marketplace-backend/internal/audit"
	"github.com/thalibox/marketplace-backend/internal/cron"
	"github.com/thalibox/marketplace-backend/internal/notifications"
	"github.com/thalibox/marketplace-backend/internal/settlements"
	"github.com/thalibox/marketplace-backend/pkg/config"
	"github.com/thalibox/marketplace-backend/pkg/db"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/metrics"
	"github.com/thalibox/marketplace-backend/pkg/migrate"
	"github.com/thalibox/marketplace-backend/pkg/outbox"
	"github.com/thalibox/marketplace-backend/pkg/realtime"
	"github.com/thalibox/marketplace-backend/pkg/redis"
)

func main() {
	jobsFlag := flag.String("jobs", "", "comma-separated job names to run (default: all)")
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	// Publish-only hub: pushes raised here reach API instances over redis.
	hub := realtime.NewHub(realtime.Options{Config: cfg.Realtime, Logger: logg, Broker: redisClient})
	defer hub.Close()

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()), hub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	settlementService, err := settlements.NewService(settlements.ServiceParams{
		DB:       dbClient.DB(),
		Tx:       dbClient,
		Outbox:   outbox.NewService(outboxRepo, logg),
		Audit:    audit.NewRepository(dbClient.DB()),
		Rates:    settlements.NewRateResolver(cfg.Settlement),
		Realtime: hub,
		Notifier: notificationService,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, dbClient, outboxRepo, notificationService, settlementService)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}
	if *jobsFlag != "" {
		registry, err = registry.Only(strings.Split(*jobsFlag, ",")...)
		if err != nil {
			logg.Error(context.Background(), "invalid -jobs selection", err)
			os.Exit(1)
		}
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        registry.Names(),
	})

	if *once {
		logg.Info(ctx, "running a single cron cycle")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metrics.Serve(gctx, cfg.Service.MetricsAddr, reg, logg)
	})
	g.Go(func() error {
		return service.Run(gctx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	outboxRepo *outbox.Repository,
	notificationService notifications.Service,
	settlementService *settlements.Service,
) (*cron.Registry, error) {
	backfill, err := cron.NewSettlementBackfillJob(cron.SettlementBackfillJobParams{
		Logger:      logg,
		DB:          dbClient,
		Orders:      settlements.NewRepository(dbClient.DB()),
		Settlements: settlementService,
		Limit:       cfg.Cron.SettlementBackfillMax,
	})
	if err != nil {
		return nil, err
	}
	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:    logg,
		Purger:    notificationService,
		Retention: cfg.Notifications.RetentionDays,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(backfill, cleanup, retention)
}
