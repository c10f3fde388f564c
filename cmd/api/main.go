package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atlaspay-io/atlaspay-backend/api/routes"
	"github.com/atlaspay-io/atlaspay-backend/internal/cashout"
	"github.com/atlaspay-io/atlaspay-backend/internal/chains"
	"github.com/atlaspay-io/atlaspay-backend/internal/chains/simnet"
	"github.com/atlaspay-io/atlaspay-backend/internal/conversion"
	"github.com/atlaspay-io/atlaspay-backend/internal/invoices"
	"github.com/atlaspay-io/atlaspay-backend/internal/pipeline"
	"github.com/atlaspay-io/atlaspay-backend/internal/quotes"
	"github.com/atlaspay-io/atlaspay-backend/internal/settlement"
	"github.com/atlaspay-io/atlaspay-backend/pkg/config"
	"github.com/atlaspay-io/atlaspay-backend/pkg/db"
	"github.com/atlaspay-io/atlaspay-backend/pkg/fiatrail"
	"github.com/atlaspay-io/atlaspay-backend/pkg/logger"
	"github.com/atlaspay-io/atlaspay-backend/pkg/metrics"
	"github.com/atlaspay-io/atlaspay-backend/pkg/migrate"
	"github.com/atlaspay-io/atlaspay-backend/pkg/outbox"
	"github.com/atlaspay-io/atlaspay-backend/pkg/redis"
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

	rates, err := chains.NewStaticRateSource(cfg.Rates)
	if err != nil {
		logg.Error(context.Background(), "failed to load rate table", err)
		os.Exit(1)
	}
	simStore := simnet.NewStore()
	registry, err := chains.NewRegistry(cfg.Chains, rates, simStore)
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
	invoiceService, err := invoices.NewService(invoiceRepo, businessRepo, registry, quoteService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice service", err)
		os.Exit(1)
	}

	conversionRepo := conversion.NewRepository(dbClient.DB())
	conversionService, err := conversion.NewService(registry, conversionRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create conversion service", err)
		os.Exit(1)
	}

	settlementRepo := settlement.NewRepository(dbClient.DB())
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
	cashoutRepo := cashout.NewRepository(dbClient.DB())
	cashoutService, err := cashout.NewService(railClient, cashoutRepo, cfg.FiatRail.SimulateOnFailure, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cashout service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

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
		Outbox:        outboxService,
		Metrics:       pipelineMetrics,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pipeline service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"network": cfg.Chains.Network,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg,
			dbClient, redisClient, redisClient,
			businessRepo,
			invoiceRepo,
			invoiceService,
			pipelineService,
			registry, simStore,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
