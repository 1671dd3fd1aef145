package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gaardshagen/farmbox-backend/api/routes"
	"github.com/gaardshagen/farmbox-backend/internal/bulk"
	"github.com/gaardshagen/farmbox-backend/internal/catalog"
	"github.com/gaardshagen/farmbox-backend/internal/discounts"
	"github.com/gaardshagen/farmbox-backend/internal/inventory"
	"github.com/gaardshagen/farmbox-backend/internal/orders"
	squarewebhook "github.com/gaardshagen/farmbox-backend/internal/webhooks/square"
	"github.com/gaardshagen/farmbox-backend/pkg/config"
	"github.com/gaardshagen/farmbox-backend/pkg/db"
	"github.com/gaardshagen/farmbox-backend/pkg/logger"
	"github.com/gaardshagen/farmbox-backend/pkg/metrics"
	"github.com/gaardshagen/farmbox-backend/pkg/migrate"
	"github.com/gaardshagen/farmbox-backend/pkg/outbox"
	"github.com/gaardshagen/farmbox-backend/pkg/redis"
	"github.com/gaardshagen/farmbox-backend/pkg/square"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square client", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersRepo := orders.NewRepository(dbClient.DB())
	inventoryService := inventory.NewService(dbClient.DB())
	discountService := discounts.NewService(dbClient.DB())

	catalogService, err := catalog.NewService(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(
		ordersRepo,
		dbClient,
		outboxService,
		inventoryService,
		discountService,
		catalogService,
		cfg.Pricing,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	bulkRunner, err := bulk.NewRunner(ordersService, logg,
		metrics.NewBulkOperationMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		logg.Error(context.Background(), "failed to create bulk runner", err)
		os.Exit(1)
	}

	webhookService, err := squarewebhook.NewService(squarewebhook.ServiceParams{
		OrdersRepo:        ordersRepo,
		Orders:            ordersService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create square webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := squarewebhook.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, "square")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Catalog:       catalogService,
			Orders:        ordersService,
			OrdersRepo:    ordersRepo,
			Bulk:          bulkRunner,
			Square:        squareClient,
			SquareWebhook: webhookService,
			WebhookGuard:  webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
