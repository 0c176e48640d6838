package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/schoolride/billing-backend/api"
	"github.com/schoolride/billing-backend/api/routes"
	"github.com/schoolride/billing-backend/internal/billing"
	"github.com/schoolride/billing-backend/internal/checkout"
	"github.com/schoolride/billing-backend/internal/ledger"
	"github.com/schoolride/billing-backend/internal/payments"
	"github.com/schoolride/billing-backend/internal/payroll"
	"github.com/schoolride/billing-backend/internal/settlement"
	stripewebhook "github.com/schoolride/billing-backend/internal/webhooks/stripe"
	"github.com/schoolride/billing-backend/pkg/config"
	"github.com/schoolride/billing-backend/pkg/db"
	"github.com/schoolride/billing-backend/pkg/env"
	"github.com/schoolride/billing-backend/pkg/logger"
	"github.com/schoolride/billing-backend/pkg/metrics"
	"github.com/schoolride/billing-backend/pkg/migrate"
	"github.com/schoolride/billing-backend/pkg/outbox"
	"github.com/schoolride/billing-backend/pkg/redis"
	"github.com/schoolride/billing-backend/pkg/stripe"
)

const webhookIdempotencyScope = "stripe-webhook"

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})
	boot := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(boot, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		fatal(logg, "failed to load config", err)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	loc, err := cfg.Billing.Location()
	if err != nil {
		fatal(logg, "invalid billing time zone", err)
	}
	platformFee, err := cfg.Billing.PlatformFee()
	if err != nil {
		fatal(logg, "invalid platform fee", err)
	}

	dbClient, err := db.New(boot, cfg.DB, logg)
	if err != nil {
		fatal(logg, "failed to bootstrap database", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(boot, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(boot, cfg, logg, dbClient); err != nil {
		fatal(logg, "failed to run dev migrations", err)
	}

	redisClient, err := redis.New(boot, cfg.Redis, logg)
	if err != nil {
		fatal(logg, "failed to bootstrap redis", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(boot, "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(boot, cfg.Stripe, logg)
	if err != nil {
		fatal(logg, "failed to bootstrap stripe", err)
	}

	billingMetrics := metrics.NewBillingMetrics(prometheus.DefaultRegisterer)
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	feeService, err := billing.NewService(billing.ServiceParams{
		Tx:       dbClient,
		Repo:     ledgerRepo,
		Outbox:   events,
		Location: loc,
		Metrics:  billingMetrics,
		Logger:   logg,
	})
	if err != nil {
		fatal(logg, "failed to create billing service", err)
	}

	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Tx:                 dbClient,
		Repo:               ledgerRepo,
		Outbox:             events,
		PlatformFeePercent: platformFee,
		Metrics:            billingMetrics,
		Logger:             logg,
	})
	if err != nil {
		fatal(logg, "failed to create settlement service", err)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Tx:        dbClient,
		Repo:      ledgerRepo,
		Outbox:    events,
		Processor: stripeClient,
		Location:  loc,
		Metrics:   billingMetrics,
		Logger:    logg,
	})
	if err != nil {
		fatal(logg, "failed to create payments service", err)
	}

	checkoutService, err := checkout.NewService(ledgerRepo, stripeClient, logg)
	if err != nil {
		fatal(logg, "failed to create checkout service", err)
	}

	payrollService, err := payroll.NewService(dbClient, ledgerRepo, events, logg)
	if err != nil {
		fatal(logg, "failed to create payroll service", err)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Payments: paymentService,
		Logger:   logg,
	})
	if err != nil {
		fatal(logg, "failed to create stripe webhook service", err)
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Billing.WebhookIdempotency, webhookIdempotencyScope)
	if err != nil {
		fatal(logg, "failed to create webhook idempotency guard", err)
	}

	router := routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
		Checkout:      checkoutService,
		Payments:      paymentService,
		Payroll:       payrollService,
		Billing:       feeService,
		Settlement:    settlementService,
		StripeWebhook: webhookService,
		StripeClient:  stripeClient,
		WebhookGuard:  webhookGuard,
		Metrics:       promhttp.Handler(),
	})

	// PORT wins when the platform injects one
	addr := ":" + env.Get("PORT", cfg.App.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"stripe_env":  stripeClient.Environment(),
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting api server")

	if err := api.Serve(ctx, api.NewServer(addr, router), logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func fatal(logg *logger.Logger, msg string, err error) {
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
