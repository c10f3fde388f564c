package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atlaspay-io/atlaspay-backend/internal/cashout"
	"github.com/atlaspay-io/atlaspay-backend/internal/chains"
	"github.com/atlaspay-io/atlaspay-backend/internal/chains/simnet"
	"github.com/atlaspay-io/atlaspay-backend/internal/conversion"
	"github.com/atlaspay-io/atlaspay-backend/internal/invoices"
	"github.com/atlaspay-io/atlaspay-backend/internal/pipeline"
	"github.com/atlaspay-io/atlaspay-backend/internal/quotes"
	"github.com/atlaspay-io/atlaspay-backend/internal/settlement"
	"github.com/atlaspay-io/atlaspay-backend/internal/watcher"
	"github.com/atlaspay-io/atlaspay-backend/pkg/config"
	"github.com/atlaspay-io/atlaspay-backend/pkg/db"
	"github.com/atlaspay-io/atlaspay-backend/pkg/fiatrail"
	"github.com/atlaspay-io/atlaspay-backend/pkg/instance"
	"github.com/atlaspay-io/atlaspay-backend/pkg/logger"
	"github.com/atlaspay-io/atlaspay-backend/pkg/metrics"
	"github.com/atlaspay-io/atlaspay-backend/pkg/migrate"
	"github.com/atlaspay-io/atlaspay-backend/pkg/outbox"
	"github.com/atlaspay-io/atlaspay-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "payment-watcher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "payment-watcher"

	logg = logger.New(logger.Options{
		ServiceName: "payment-watcher",
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

	rates, err := chains.NewStaticRateSource(cfg.Rates)
	if err != nil {
		logg.Error(context.Background(), "failed to load rate table", err)
		os.Exit(1)
	}
	registry, err := chains.NewRegistry(cfg.Chains, rates, simnet.NewStore())
	if err != nil {
		logg.Error(context.Background(), "failed to build chain registry", err)
		os.Exit(1)
	}

	quoteService, err := quotes.NewService(registry, cfg.Pipeline.QuoteTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create quote service", err)
		os.Exit(1)
	}

	invoiceRepo := invoices.NewRepository(dbClient.DB())
	businessRepo := invoices.NewBusinessRepository(dbClient.DB())
	conversionRepo := conversion.NewRepository(dbClient.DB())
	settlementRepo := settlement.NewRepository(dbClient.DB())
	cashoutRepo := cashout.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())

	conversionService, err := conversion.NewService(registry, conversionRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create conversion service", err)
		os.Exit(1)
	}
	settlementService, err := settlement.NewService(registry, settlementRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}
	railClient, err := fiatrail.NewClient(context.Background(), cfg.FiatRail, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create fiat rail client", err)
		os.Exit(1)
	}
	cashoutService, err := cashout.NewService(railClient, cashoutRepo, cfg.FiatRail.SimulateOnFailure, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cashout service", err)
		os.Exit(1)
	}

	pipelineService, err := pipeline.NewService(pipeline.Deps{
		Tx:            dbClient,
		Invoices:      invoiceRepo,
		Businesses:    businessRepo,
		Payments:      pipeline.NewPaymentRepository(dbClient.DB()),
		Registry:      registry,
		Conversions:   conversionService,
		Settlements:   settlementService,
		Cashouts:      cashoutService,
		ConversionLog: conversionRepo,
		SettlementLog: settlementRepo,
		CashoutLog:    cashoutRepo,
		Outbox:        outbox.NewService(outboxRepo, logg),
		Metrics:       metrics.NewPipelineMetrics(prometheus.DefaultRegisterer),
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pipeline service", err)
		os.Exit(1)
	}

	paymentCheck, err := watcher.NewPaymentCheckJob(watcher.PaymentCheckJobParams{
		Logger:    logg,
		Invoices:  invoiceRepo,
		Pipeline:  pipelineService,
		BatchSize: cfg.Watcher.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment check job", err)
		os.Exit(1)
	}
	quoteRefresh, err := watcher.NewQuoteRefreshJob(watcher.QuoteRefreshJobParams{
		Logger:    logg,
		Invoices:  invoiceRepo,
		Quotes:    quoteService,
		BatchSize: cfg.Watcher.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create quote refresh job", err)
		os.Exit(1)
	}
	outboxRetention, err := watcher.NewOutboxRetentionJob(watcher.OutboxRetentionJobParams{
		Logger:    logg,
		Outbox:    outboxRepo,
		Retention: cfg.Watcher.OutboxRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := watcher.NewRedisLock(redisClient, redisClient.LockKey("payment-watcher", cfg.App.Env), cfg.Watcher.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create watcher lock", err)
		os.Exit(1)
	}

	service, err := watcher.NewService(watcher.ServiceParams{
		Logger:   logg,
		Registry: watcher.NewRegistry(paymentCheck, quoteRefresh, outboxRetention),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Watcher.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create watcher service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting payment watcher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "payment watcher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "payment watcher shutting down gracefully")
}
