package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rentaride/rentaride-backend/api/routes"
	"github.com/rentaride/rentaride-backend/internal/bookings"
	"github.com/rentaride/rentaride-backend/internal/payments"
	"github.com/rentaride/rentaride-backend/internal/vehicles"
	"github.com/rentaride/rentaride-backend/pkg/config"
	"github.com/rentaride/rentaride-backend/pkg/db"
	"github.com/rentaride/rentaride-backend/pkg/esewa"
	"github.com/rentaride/rentaride-backend/pkg/logger"
	"github.com/rentaride/rentaride-backend/pkg/migrate"
	"github.com/rentaride/rentaride-backend/pkg/redis"
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

	gateway, err := esewa.NewClient(cfg.Esewa.ProductCode, cfg.Esewa.SecretKey,
		esewa.WithBaseURL(cfg.Esewa.BaseURL),
		esewa.WithCallbackURLs(cfg.Esewa.SuccessURL, cfg.Esewa.FailureURL),
		esewa.WithVerifyRetries(uint(cfg.Esewa.VerifyRetries)),
		esewa.WithHTTPClient(&http.Client{Timeout: cfg.Esewa.VerifyTimeout}),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	vehicleRepo := vehicles.NewRepository(dbClient.DB())
	paymentRepo := payments.NewRepository(dbClient.DB())
	bookingService := bookings.NewService(bookings.NewRepository(dbClient.DB()), paymentRepo, vehicleRepo)
	paymentService := payments.NewService(
		paymentRepo,
		gateway,
		bookingService,
		vehicleRepo,
		redisClient,
		cfg.Reconcile.VerifyGuardTTL,
		logg,
	)

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
		Handler: routes.NewRouter(routes.Deps{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Payments: paymentService,
			Bookings: bookingService,
			Gatherer: prometheus.DefaultGatherer,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
