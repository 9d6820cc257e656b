package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rentaride/rentaride-backend/internal/bookings"
	"github.com/rentaride/rentaride-backend/internal/cron"
	"github.com/rentaride/rentaride-backend/internal/payments"
	"github.com/rentaride/rentaride-backend/internal/vehicles"
	"github.com/rentaride/rentaride-backend/pkg/config"
	"github.com/rentaride/rentaride-backend/pkg/db"
	"github.com/rentaride/rentaride-backend/pkg/esewa"
	"github.com/rentaride/rentaride-backend/pkg/logger"
	"github.com/rentaride/rentaride-backend/pkg/metrics"
	"github.com/rentaride/rentaride-backend/pkg/migrate"
	"github.com/rentaride/rentaride-backend/pkg/redis"
)

const lockKeyFormat = "rr:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	backfillJob, err := cron.NewBookingBackfillJob(cron.BookingBackfillJobParams{
		Logger:       logg,
		Ledger:       paymentRepo,
		Materializer: bookingService,
		Metrics:      jobMetrics,
		Grace:        cfg.Reconcile.BackfillGrace,
		BatchSize:    cfg.Reconcile.BackfillBatch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create booking backfill job", err)
		os.Exit(1)
	}

	stuckJob, err := cron.NewStuckPendingJob(cron.StuckPendingJobParams{
		Logger:     logg,
		Ledger:     paymentRepo,
		Reconciler: paymentService,
		TTL:        cfg.Reconcile.PendingTTL,
		BatchSize:  cfg.Reconcile.StuckBatchLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stuck pending job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(backfillJob, stuckJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Reconcile.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
