package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/controllers"
	balancecontrollers "github.com/Ali-hasan-sss/nux-loyalty-backend/api/controllers/balances"
	subscriptioncontrollers "github.com/Ali-hasan-sss/nux-loyalty-backend/api/controllers/subscriptions"
	webhookcontrollers "github.com/Ali-hasan-sss/nux-loyalty-backend/api/controllers/webhooks"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/middleware"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/billing"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/ledger"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/notifications"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/reconcile"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/restaurants"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/transfer"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/users"
	paypalwebhook "github.com/Ali-hasan-sss/nux-loyalty-backend/internal/webhooks/paypal"
	stripewebhook "github.com/Ali-hasan-sss/nux-loyalty-backend/internal/webhooks/stripe"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/config"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/logger"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/paypal"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/redis"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/stripe"
)

// Deps carries everything the router wires into handlers. Optional
// integrations (Stripe, PayPal, metrics) may be nil; their routes degrade
// to errors or are skipped.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	HealthPingers map[string]controllers.Pinger
	RedisClient   *redis.Client
	Registry      *prometheus.Registry

	Users         users.Service
	Restaurants   restaurants.Service
	Transfers     transfer.Service
	Ledger        ledger.Service
	Notifications notifications.Service
	Billing       billing.Service
	Reconcile     reconcile.Service

	StripeClient       *stripe.Client
	StripeWebhooks     *stripewebhook.Service
	StripeWebhookGuard *stripewebhook.IdempotencyGuard
	PayPalClient       *paypal.Client
	PayPalWebhooks     *paypalwebhook.Service
	PayPalWebhookGuard *stripewebhook.IdempotencyGuard
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	scanPolicy := middleware.NewRateLimitPolicy(
		"scan",
		cfg.RateLimit.ScanWindow,
		cfg.RateLimit.ScanIPLimit,
		cfg.RateLimit.ScanUserLimit,
	)
	registerPolicy := middleware.NewRateLimitPolicy(
		"register",
		cfg.RateLimit.RegisterWindow,
		cfg.RateLimit.RegisterIPLimit,
		cfg.RateLimit.RegisterUserLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.HealthPingers))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhooks, deps.StripeClient, deps.StripeWebhookGuard, logg))
		r.Post("/paypal", webhookcontrollers.PayPalWebhook(deps.PayPalWebhooks, deps.PayPalClient, deps.PayPalWebhookGuard, logg))
	})

	r.Route("/api/v1/register", func(r chi.Router) {
		r.With(middleware.RateLimit(registerPolicy, deps.RedisClient, logg)).
			Post("/user", controllers.RegisterUser(deps.Users, cfg.JWT, logg))
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.With(middleware.RateLimit(registerPolicy, deps.RedisClient, logg)).
				Post("/restaurant", controllers.RegisterRestaurant(deps.Restaurants, cfg.JWT, logg))
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/v1", func(r chi.Router) {
			r.With(middleware.RateLimit(scanPolicy, deps.RedisClient, logg)).
				Post("/scans", controllers.RecordScan(deps.Transfers, logg))
			r.Post("/payments", controllers.Pay(deps.Transfers, logg))
			r.Post("/gifts", controllers.Gift(deps.Transfers, logg))

			r.Route("/balances", func(r chi.Router) {
				r.Get("/", balancecontrollers.List(deps.Ledger, logg))
				r.Get("/{restaurantId}", balancecontrollers.Get(deps.Ledger, logg))
				r.Get("/{restaurantId}/transactions", balancecontrollers.Transactions(deps.Ledger, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			})

			r.Get("/restaurants/{restaurantId}", controllers.GetRestaurant(deps.Restaurants, logg))
			r.Get("/plans", subscriptioncontrollers.ListPlans(deps.Billing, logg))

			r.Route("/restaurants/groups", func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.UserRoleOwner), logg))
				r.Use(middleware.RequireRestaurant(logg))
				r.Post("/", controllers.CreateGroup(deps.Restaurants, logg))
				r.Post("/{groupId}/members", controllers.AddToGroup(deps.Restaurants, logg))
				r.Delete("/membership", controllers.LeaveGroup(deps.Restaurants, logg))
			})

			r.Route("/subscriptions", func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.UserRoleOwner), logg))
				r.Use(middleware.RequireRestaurant(logg))
				r.Get("/", subscriptioncontrollers.List(deps.Billing, logg))
				r.Post("/checkout", subscriptioncontrollers.Checkout(deps.Billing, logg))
				r.Post("/confirm", subscriptioncontrollers.Confirm(deps.Reconcile, logg))
			})
			r.With(
				middleware.RequireRole(string(enums.UserRoleOwner), logg),
				middleware.RequireRestaurant(logg),
			).Get("/invoices", subscriptioncontrollers.ListInvoices(deps.Billing, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
		r.Post("/plans", subscriptioncontrollers.CreatePlan(deps.Billing, logg))
	})

	return r
}
