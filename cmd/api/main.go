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

	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/controllers"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/routes"
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
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/db"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/logger"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/metrics"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/migrate"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/paypal"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/pubsub"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/redis"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/stripe"
)

const (
	webhookIdempotencyTTL = 24 * time.Hour
	shutdownTimeout       = 15 * time.Second
)

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

	registry := prometheus.NewRegistry()
	loyaltyMetrics := metrics.NewLoyaltyMetrics(registry)

	healthPingers := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
	}

	var eventsPublisher notifications.EventPublisher
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		healthPingers["pubsub"] = pubsubClient
		eventsPublisher = notifications.NewTopicPublisher(pubsubClient.EventsPublisher())
	}

	userRepo := users.NewRepository(dbClient.DB())
	userService, err := users.NewService(userRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	restaurantRepo := restaurants.NewRepository(dbClient.DB())
	restaurantService, err := restaurants.NewService(restaurantRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create restaurants service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()), eventsPublisher, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient, loyaltyMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	transferService, err := transfer.NewService(
		dbClient,
		ledgerService,
		restaurantService,
		userService,
		notificationService,
		cfg.Loyalty,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create transfer service", err)
		os.Exit(1)
	}

	var stripeClient *stripe.Client
	if cfg.Stripe.APIKey != "" {
		stripeClient, err = stripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap stripe", err)
			os.Exit(1)
		}
	}

	var paypalClient *paypal.Client
	if cfg.PayPal.ClientID != "" {
		paypalClient, err = paypal.NewClient(cfg.PayPal)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap paypal", err)
			os.Exit(1)
		}
	}

	providers := map[enums.PaymentProvider]billing.CheckoutProvider{}
	if stripeClient != nil {
		providers[enums.PaymentProviderStripe] = billing.NewStripeCheckout(stripeClient)
	}
	if paypalClient != nil {
		providers[enums.PaymentProviderPayPal] = billing.NewPayPalCheckout(paypalClient)
	}

	billingRepo := billing.NewRepository(dbClient.DB())
	billingService, err := billing.NewService(billingRepo, dbClient, providers)
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(
		billingRepo,
		dbClient,
		restaurantRepo,
		notificationService,
		loyaltyMetrics,
		cfg.Billing,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	deps := routes.Deps{
		Config:        cfg,
		Logger:        logg,
		HealthPingers: healthPingers,
		RedisClient:   redisClient,
		Registry:      registry,
		Users:         userService,
		Restaurants:   restaurantService,
		Transfers:     transferService,
		Ledger:        ledgerService,
		Notifications: notificationService,
		Billing:       billingService,
		Reconcile:     reconcileService,
	}

	if stripeClient != nil {
		stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
			Reconciler: reconcileService,
			Metrics:    loyaltyMetrics,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe webhook service", err)
			os.Exit(1)
		}
		stripeGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "stripe")
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe idempotency guard", err)
			os.Exit(1)
		}
		deps.StripeClient = stripeClient
		deps.StripeWebhooks = stripeWebhookService
		deps.StripeWebhookGuard = stripeGuard
	}

	if paypalClient != nil {
		paypalWebhookService, err := paypalwebhook.NewService(paypalwebhook.ServiceParams{
			Reconciler: reconcileService,
			Orders:     paypalClient,
			Metrics:    loyaltyMetrics,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create paypal webhook service", err)
			os.Exit(1)
		}
		paypalGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "paypal")
		if err != nil {
			logg.Error(context.Background(), "failed to create paypal idempotency guard", err)
			os.Exit(1)
		}
		deps.PayPalClient = paypalClient
		deps.PayPalWebhooks = paypalWebhookService
		deps.PayPalWebhookGuard = paypalGuard
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
