package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/cache"
	"github.com/Domenick1991/skybooking/internal/database"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/email"
	"github.com/Domenick1991/skybooking/internal/gateway"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/logging"
	"github.com/Domenick1991/skybooking/internal/metrics"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/Domenick1991/skybooking/internal/service/payment"
	"github.com/Domenick1991/skybooking/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const (
	sweepLock      = "reconcile-sweep"
	sweepBatchSize = 100
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracerProvider(cfg.Tracing.ServiceName+"-worker", cfg.Tracing.JaegerEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracing.Shutdown(context.Background(), tp)

	pool, err := database.NewPool(ctx, cfg.Database.DSN(), cfg.Database.ConnectRetries)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	if err := producer.CheckConnection(ctx); err != nil {
		log.Warn().Err(err).Msg("kafka not reachable at startup")
	}
	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
	defer redisCache.Close()

	gateways, err := gateway.NewRegistry(cfg.Payment)
	if err != nil {
		return fmt.Errorf("init payment gateways: %w", err)
	}
	paymentService := payment.NewPaymentService(
		database.NewTransactor(pool),
		repository.NewBookingRepository(pool),
		repository.NewPaymentRepository(pool),
		repository.NewPromoCodeRepository(pool),
		gateways,
		producer,
		payment.Config{
			Limits:             domain.AmountLimits{Min: cfg.Payment.MinAmount, Max: cfg.Payment.MaxAmount},
			Topic:              cfg.Kafka.PaymentTopic,
			NotificationsTopic: cfg.Kafka.NotificationsTopic,
		},
		payment.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
	)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()
	sender := email.NewSender(nil)

	go func() {
		if err := consumer.Consume(ctx, kafka.NotificationHandler(sender.Send)); err != nil {
			log.Error().Err(err).Msg("consumer stopped")
		}
	}()

	interval := time.Duration(cfg.Worker.ReconcileSweepMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sweep(ctx, redisCache, paymentService, interval)
		case <-ctx.Done():
			log.Info().Msg("worker shutting down")
			return nil
		}
	}
}

// sweep repairs SUCCESS payments whose booking is still unpaid. The Redis lock keeps
// concurrent workers from sweeping the same batch.
func sweep(ctx context.Context, locks *cache.RedisCache, svc payment.PaymentUseCase, ttl time.Duration) {
	acquired, err := locks.AcquireLock(ctx, sweepLock, ttl)
	if err != nil {
		log.Warn().Err(err).Msg("acquire sweep lock")
		return
	}
	if !acquired {
		log.Debug().Msg("sweep already running elsewhere")
		return
	}
	defer func() {
		if err := locks.ReleaseLock(context.Background(), sweepLock); err != nil {
			log.Warn().Err(err).Msg("release sweep lock")
		}
	}()

	repaired, err := svc.RepairPaidBookings(ctx, sweepBatchSize)
	if err != nil {
		log.Error().Err(err).Int("repaired", repaired).Msg("reconcile sweep failed")
		return
	}
	if repaired > 0 {
		log.Info().Int("repaired", repaired).Msg("reconcile sweep repaired bookings")
	}
}
