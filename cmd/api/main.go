package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thalibox/marketplace-backend/api/controllers"
	"github.com/thalibox/marketplace-backend/api/routes"
	"github.com/thalibox/marketplace-backend/internal/audit"
	"github.com/thalibox/marketplace-backend/internal/auth"
	"github.com/thalibox/marketplace-backend/internal/notifications"
	"github.com/thalibox/marketplace-backend/internal/orders"
	"github.com/thalibox/marketplace-backend/internal/payments"
	"github.com/thalibox/marketplace-backend/internal/sellers"
	"github.com/thalibox/marketplace-backend/internal/settlements"
	"github.com/thalibox/marketplace-backend/internal/users"
	"github.com/thalibox/marketplace-backend/pkg/auth/session"
	"github.com/thalibox/marketplace-backend/pkg/config"
	"github.com/thalibox/marketplace-backend/pkg/db"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/metrics"
	"github.com/thalibox/marketplace-backend/pkg/migrate"
	"github.com/thalibox/marketplace-backend/pkg/observability"
	"github.com/thalibox/marketplace-backend/pkg/outbox"
	"github.com/thalibox/marketplace-backend/pkg/razorpay"
	"github.com/thalibox/marketplace-backend/pkg/realtime"
	"github.com/thalibox/marketplace-backend/pkg/redis"
	"github.com/thalibox/marketplace-backend/pkg/sms"
	"github.com/thalibox/marketplace-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, err := observability.InitTracing(ctx, "api", *cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to init tracing", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "error flushing traces", err)
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hubOpts := realtime.Options{
		Config:  cfg.Realtime,
		Logger:  logg,
		Metrics: metrics.NewRealtimeMetrics(reg),
	}
	if cfg.Realtime.RedisFanout {
		hubOpts.Broker = redisClient
	}
	hub := realtime.NewHub(hubOpts)
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "realtime hub stopped", err)
		}
	}()
	defer hub.Close()

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(ctx, "failed to create register service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()), hub, logg)
	if err != nil {
		logg.Error(ctx, "failed to create notification service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	auditRepo := audit.NewRepository(dbClient.DB())

	settlementService, err := settlements.NewService(settlements.ServiceParams{
		DB:       dbClient.DB(),
		Tx:       dbClient,
		Outbox:   outboxService,
		Audit:    auditRepo,
		Rates:    settlements.NewRateResolver(cfg.Settlement),
		Realtime: hub,
		Notifier: notificationService,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create settlement service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		DB:          dbClient.DB(),
		Tx:          dbClient,
		Outbox:      outboxService,
		Audit:       auditRepo,
		Settlements: settlementService,
		Notifier:    notificationService,
		Realtime:    hub,
		SMS:         sms.NewSender(cfg.Twilio, logg),
		SMSTimeout:  cfg.Notifications.SMSTimeout,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create order service", err)
		os.Exit(1)
	}

	sellerService, err := sellers.NewService(sellers.ServiceParams{
		DB:       dbClient.DB(),
		Tx:       dbClient,
		Outbox:   outboxService,
		Audit:    auditRepo,
		Notifier: notificationService,
		Realtime: hub,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create seller service", err)
		os.Exit(1)
	}

	paymentParams := payments.ServiceParams{
		Orders:  orderService,
		Metrics: metrics.NewPaymentMetrics(reg),
		Logger:  logg,
	}
	// Gateways stay nil interfaces when unconfigured so the service reports NOT_CONFIGURED.
	if cfg.Stripe.Enabled() {
		stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			logg.Error(ctx, "failed to create stripe client", err)
			os.Exit(1)
		}
		paymentParams.Stripe = stripeClient
	}
	if cfg.Razorpay.Enabled() {
		razorpayClient, err := razorpay.NewClient(ctx, cfg.Razorpay, logg)
		if err != nil {
			logg.Error(ctx, "failed to create razorpay client", err)
			os.Exit(1)
		}
		paymentParams.Razorpay = razorpayClient
	}
	paymentService, err := payments.NewService(paymentParams)
	if err != nil {
		logg.Error(ctx, "failed to create payment service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config:         cfg,
		Logger:         logg,
		HTTPMetrics:    metrics.NewHTTPMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Readiness: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
		Sessions:      sessionManager,
		Limiter:       redisClient,
		Idempotency:   redisClient,
		Hub:           hub,
		Auth:          authService,
		Register:      registerService,
		Orders:        orderService,
		Settlements:   settlementService,
		Payments:      paymentService,
		Sellers:       sellerService,
		Audit:         auditRepo,
		Notifications: notificationService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": cfg.Service.InstanceID,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(logCtx, "graceful shutdown failed", err)
	}
	logg.Info(logCtx, "api server stopped")
}
