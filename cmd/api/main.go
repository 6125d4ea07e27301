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

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/refunds"
	"github.com/angelmondragon/storefront-backend/internal/sellers"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/square"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
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

	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	cartStore, err := cart.NewStore(redisClient, cfg.Orders.CartTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart store", err)
		os.Exit(1)
	}

	feed, err := orders.NewFeed(redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order feed", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:               ordersRepo,
		TransactionRunner:  dbClient,
		Outbox:             outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Cart:               cartStore,
		Feed:               feed,
		Metrics:            orderMetrics,
		Logger:             logg,
		CancellationPolicy: cfg.Orders.Policy(),
		CancellationWindow: cfg.Orders.CancellationWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	registry, err := payments.NewRegistry(paymentAdapters(cfg, logg)...)
	if err != nil {
		logg.Error(context.Background(), "failed to register payment adapters", err)
		os.Exit(1)
	}
	confirmer, err := payments.NewConfirmer(payments.ConfirmerParams{
		Store:          redisClient,
		MaxAttempts:    cfg.Payments.MaxAttempts,
		RetryBase:      cfg.Payments.RetryBase,
		IdempotencyTTL: cfg.Payments.IdempotencyTTL,
		Metrics:        orderMetrics,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment confirmer", err)
		os.Exit(1)
	}
	paymentsService, err := payments.NewService(payments.ServiceParams{
		Orders:    ordersService,
		Registry:  registry,
		Confirmer: confirmer,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	sellerDirectory, err := sellers.NewDirectory(sellers.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create seller directory", err)
		os.Exit(1)
	}
	refundsService, err := refunds.NewService(refunds.ServiceParams{
		Source:  ordersRepo,
		Engine:  ordersService,
		Sellers: sellerDirectory,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	// no WriteTimeout: order event streams stay open
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:            dbClient,
			Redis:         redisClient,
			Orders:        ordersService,
			Feed:          feed,
			Payments:      paymentsService,
			Refunds:       refundsService,
			Carts:         cartStore,
			Notifications: notificationsService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown incomplete", err)
		}
	}
}

// paymentAdapters registers cash always; card and wallet only when their
// provider credentials are configured.
func paymentAdapters(cfg *config.Config, logg *logger.Logger) []payments.Adapter {
	ctx := context.Background()
	var adapters []payments.Adapter
	if cfg.Payments.CashEnabled {
		adapters = append(adapters, payments.NewCashAdapter(nil))
	} else {
		logg.Warn(ctx, "cash payments disabled")
	}

	if cfg.Stripe.APIKey != "" {
		client, err := stripe.NewClient(ctx, cfg.Stripe, cfg.Payments.Currency, logg)
		if err != nil {
			logg.Error(ctx, "failed to create stripe client", err)
			os.Exit(1)
		}
		card, err := payments.NewCardAdapter(client)
		if err != nil {
			logg.Error(ctx, "failed to create card adapter", err)
			os.Exit(1)
		}
		adapters = append(adapters, card)
	} else {
		logg.Warn(ctx, "stripe not configured; card payments disabled")
	}

	if cfg.Square.AccessToken != "" {
		client, err := square.NewClient(ctx, cfg.Square, cfg.Payments.Currency, logg)
		if err != nil {
			logg.Error(ctx, "failed to create square client", err)
			os.Exit(1)
		}
		wallet, err := payments.NewWalletAdapter(client)
		if err != nil {
			logg.Error(ctx, "failed to create wallet adapter", err)
			os.Exit(1)
		}
		adapters = append(adapters, wallet)
	} else {
		logg.Warn(ctx, "square not configured; wallet payments disabled")
	}

	return adapters
}
