package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/schoolride/billing-backend/internal/billing"
	"github.com/schoolride/billing-backend/internal/cron"
	"github.com/schoolride/billing-backend/internal/ledger"
	"github.com/schoolride/billing-backend/internal/settlement"
	"github.com/schoolride/billing-backend/pkg/config"
	"github.com/schoolride/billing-backend/pkg/db"
	"github.com/schoolride/billing-backend/pkg/logger"
	"github.com/schoolride/billing-backend/pkg/metrics"
	"github.com/schoolride/billing-backend/pkg/migrate"
	"github.com/schoolride/billing-backend/pkg/outbox"
	"github.com/schoolride/billing-backend/pkg/redis"
)

const lockNameFormat = "cron-worker:%s"

func main() {
	once := flag.Bool("once", false, "run a single locked cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})
	boot := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(boot, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		exit(logg, "failed to load config", err)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	loc, err := cfg.Billing.Location()
	if err != nil {
		exit(logg, "invalid billing time zone", err)
	}
	platformFee, err := cfg.Billing.PlatformFee()
	if err != nil {
		exit(logg, "invalid platform fee", err)
	}

	dbClient, err := db.New(boot, cfg.DB, logg)
	if err != nil {
		exit(logg, "failed to bootstrap database", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(boot, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(boot, cfg, logg, dbClient); err != nil {
		exit(logg, "failed to run dev migrations", err)
	}

	redisClient, err := redis.New(boot, cfg.Redis, logg)
	if err != nil {
		exit(logg, "failed to bootstrap redis", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(boot, "error closing redis", err)
		}
	}()

	billingMetrics := metrics.NewBillingMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())
	events := outbox.NewService(outboxRepo, logg)

	feeService, err := billing.NewService(billing.ServiceParams{
		Tx:       dbClient,
		Repo:     ledgerRepo,
		Outbox:   events,
		Location: loc,
		Metrics:  billingMetrics,
		Logger:   logg,
	})
	if err != nil {
		exit(logg, "failed to create billing service", err)
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
		exit(logg, "failed to create settlement service", err)
	}

	feeJob, err := cron.NewFeeGenerationJob(cron.FeeGenerationJobParams{
		Logger:    logg,
		Generator: feeService,
	})
	if err != nil {
		exit(logg, "failed to create fee generation job", err)
	}
	settleJob, err := cron.NewSettlementJob(cron.SettlementJobParams{
		Logger:    logg,
		Settler:   settlementService,
		Location:  loc,
		GraceDays: cfg.Billing.SettlementGraceDays,
	})
	if err != nil {
		exit(logg, "failed to create settlement job", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionDays,
	})
	if err != nil {
		exit(logg, "failed to create outbox retention job", err)
	}

	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App.Env), 0)
	if err != nil {
		exit(logg, "failed to create cron lock", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(feeJob, settleJob, retentionJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		exit(logg, "failed to create cron service", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Cron.Interval.String(),
	})
	if *once {
		logg.Info(ctx, "running single cron cycle")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockNameFormat, env)
}

func exit(logg *logger.Logger, msg string, err error) {
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
