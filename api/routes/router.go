package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thalibox/marketplace-backend/api/controllers"
	admincontrollers "github.com/thalibox/marketplace-backend/api/controllers/admin"
	ordercontrollers "github.com/thalibox/marketplace-backend/api/controllers/orders"
	paymentcontrollers "github.com/thalibox/marketplace-backend/api/controllers/payments"
	"github.com/thalibox/marketplace-backend/api/middleware"
	"github.com/thalibox/marketplace-backend/api/responses"
	"github.com/thalibox/marketplace-backend/internal/auth"
	"github.com/thalibox/marketplace-backend/internal/notifications"
	"github.com/thalibox/marketplace-backend/pkg/auth/session"
	"github.com/thalibox/marketplace-backend/pkg/config"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/metrics"
	"github.com/thalibox/marketplace-backend/pkg/observability"
	"github.com/thalibox/marketplace-backend/pkg/realtime"
)

// OrderService is everything the order routes need from the order service.
type OrderService interface {
	ordercontrollers.BuyerService
	ordercontrollers.SellerService
	admincontrollers.OrderService
}

// SettlementService covers seller and admin settlement routes.
type SettlementService interface {
	ordercontrollers.SettlementLister
	admincontrollers.SettlementService
}

// Deps is the wired API surface. Nil optional fields disable what they back:
// no Limiter means no auth rate limiting, no Idempotency means no replay, no
// Hub means /ws answers NOT_CONFIGURED.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
	Readiness      map[string]controllers.Pinger

	Sessions    session.AccessSessionChecker
	Limiter     middleware.FixedWindowLimiter
	Idempotency middleware.IdempotencyStore
	Hub         *realtime.Hub

	Auth          auth.Service
	Register      auth.RegisterService
	Orders        OrderService
	Settlements   SettlementService
	Payments      paymentcontrollers.Service
	Sellers       admincontrollers.SellerService
	Audit         admincontrollers.AuditLister
	Notifications notifications.Service
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.HTTPMetrics),
		middleware.CORS(cfg.Realtime.AllowedOrigins),
		debugErrors(!cfg.App.IsProd()),
	)
	if cfg.Tracing.Enabled {
		r.Use(observability.Middleware("thalibox-api"))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Readiness))
	})
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	authn := middleware.Auth(cfg.JWT, d.Sessions, logg)
	loginPolicy := middleware.AuthRateLimitPolicy{
		Name:       "login",
		Window:     cfg.AuthRateLimit.LoginWindow,
		IPLimit:    cfg.AuthRateLimit.LoginIPLimit,
		EmailLimit: cfg.AuthRateLimit.LoginEmailLimit,
	}
	registerPolicy := middleware.AuthRateLimitPolicy{
		Name:       "register",
		Window:     cfg.AuthRateLimit.RegisterWindow,
		IPLimit:    cfg.AuthRateLimit.RegisterIPLimit,
		EmailLimit: cfg.AuthRateLimit.RegisterEmailLimit,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(d.Idempotency, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, d.Limiter, logg)).Post("/register", controllers.AuthRegister(d.Register, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, d.Limiter, logg)).Post("/login", controllers.AuthLogin(d.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(d.Auth, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(authn)

			r.Route("/orders", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleUser))
				r.Get("/", ordercontrollers.List(d.Orders, logg))
				r.Post("/", ordercontrollers.Place(d.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(d.Orders, logg))
				r.Post("/{orderId}/dispute", ordercontrollers.Dispute(d.Orders, logg))
				r.Post("/{orderId}/rating", ordercontrollers.Rate(d.Orders, logg))
			})

			r.Route("/seller", func(r chi.Router) {
				r.With(middleware.RequireRole(logg, enums.UserRoleSeller)).Get("/orders", ordercontrollers.SellerList(d.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.UserRoleSeller, enums.UserRoleAdmin)).Patch("/orders/{orderId}/status", ordercontrollers.UpdateStatus(d.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.UserRoleSeller)).Get("/settlements", ordercontrollers.SellerSettlements(d.Settlements, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleUser))
				r.Post("/stripe/create-intent", paymentcontrollers.StripeCreateIntent(d.Payments, logg))
				r.Post("/stripe/confirm", paymentcontrollers.StripeConfirm(d.Payments, logg))
				r.Post("/razorpay/create-order", paymentcontrollers.RazorpayCreateOrder(d.Payments, logg))
				r.Post("/razorpay/verify", paymentcontrollers.RazorpayVerify(d.Payments, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(d.Notifications, logg))
				r.Get("/unread-count", controllers.UnreadNotificationCount(d.Notifications, logg))
				r.Patch("/mark-all-read", controllers.MarkAllNotificationsRead(d.Notifications, logg))
				r.Patch("/{notificationId}/read", controllers.MarkNotificationRead(d.Notifications, logg))
				r.Delete("/{notificationId}", controllers.DeleteNotification(d.Notifications, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
				r.Get("/settlements", admincontrollers.ListSettlements(d.Settlements, logg))
				r.Post("/settlements/{settlementId}/process", admincontrollers.ProcessSettlement(d.Settlements, logg))
				r.Post("/settlements/{settlementId}/fail", admincontrollers.FailSettlement(d.Settlements, logg))
				r.Get("/orders", admincontrollers.ListOrders(d.Orders, logg))
				r.Post("/orders/{orderId}/refund", admincontrollers.RefundOrder(d.Orders, logg))
				r.Post("/orders/{orderId}/dispute/resolve", admincontrollers.ResolveDispute(d.Orders, logg))
				r.Post("/sellers/{sellerId}/kyc/approve", admincontrollers.ApproveKYC(d.Sellers, logg))
				r.Post("/sellers/{sellerId}/kyc/reject", admincontrollers.RejectKYC(d.Sellers, logg))
				r.Put("/sellers/{sellerId}/rates", admincontrollers.UpdateRates(d.Sellers, logg))
				r.Get("/audit-logs", admincontrollers.ListAuditLogs(d.Audit, logg))
			})
		})
	})

	r.With(middleware.Auth(cfg.JWT, d.Sessions, logg, middleware.AllowQueryToken())).
		Get("/ws", controllers.RealtimeConnect(d.Hub, logg))

	return r
}

func debugErrors(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(responses.WithDebug(r.Context(), enabled)))
		})
	}
}
