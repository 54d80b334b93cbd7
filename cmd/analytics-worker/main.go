package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/thalibox/marketplace-backend/internal/analytics/router"
	analyticstypes "github.com/thalibox/marketplace-backend/internal/analytics/types"
	"github.com/thalibox/marketplace-backend/internal/analytics/worker"
	"github.com/thalibox/marketplace-backend/internal/analytics/writer"
	"github.com/thalibox/marketplace-backend/pkg/bigquery"
	"github.com/thalibox/marketplace-backend/pkg/config"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/metrics"
	"github.com/thalibox/marketplace-backend/pkg/outbox/idempotency"
	"github.com/thalibox/marketplace-backend/pkg/pubsub"
	"github.com/thalibox/marketplace-backend/pkg/redis"
)

const serviceKind = "analytics-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    cfg.Service.InstanceID,
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "analytics worker failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "analytics worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg, pubsub.WithSubscriptionCheck())
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	marketplaceTable := bigquery.Table{
		Name:        cfg.BigQuery.MarketplaceEventsTable,
		Row:         analyticstypes.MarketplaceEventRow{},
		PartitionBy: "occurred_at",
	}
	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg, marketplaceTable)
	if err != nil {
		return fmt.Errorf("bootstrap bigquery: %w", err)
	}
	defer func() {
		if err := bqClient.Close(); err != nil {
			logg.Error(ctx, "failed to close bigquery client", err)
		}
	}()

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL,
		idempotency.WithLease(cfg.Eventing.ConsumerLease))
	if err != nil {
		return fmt.Errorf("idempotency manager: %w", err)
	}

	analyticsWriter, err := writer.New(bqClient, writer.Config{MarketplaceTable: marketplaceTable.Name})
	if err != nil {
		return fmt.Errorf("bigquery writer: %w", err)
	}
	routingHandler, err := router.NewRouter(analyticsWriter, logg)
	if err != nil {
		return fmt.Errorf("analytics router: %w", err)
	}
	service, err := worker.NewService(subscription, routingHandler, manager, logg)
	if err != nil {
		return fmt.Errorf("analytics worker service: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	logg.Info(ctx, "analytics worker ready")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metrics.Serve(gctx, cfg.Service.MetricsAddr, reg, logg)
	})
	g.Go(func() error {
		runErr := service.Run(gctx)
		// Rows still buffered when the subscription stops would otherwise be lost.
		if err := analyticsWriter.Flush(context.WithoutCancel(gctx)); err != nil {
			logg.Error(gctx, "failed to flush buffered analytics rows", err)
		}
		return runErr
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
