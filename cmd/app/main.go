package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/skybooking/api"
	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/audit"
	"github.com/Domenick1991/skybooking/internal/bootstrap"
	"github.com/Domenick1991/skybooking/internal/cache"
	"github.com/Domenick1991/skybooking/internal/database"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/gateway"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/logging"
	"github.com/Domenick1991/skybooking/internal/metrics"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/Domenick1991/skybooking/internal/service/booking"
	"github.com/Domenick1991/skybooking/internal/service/flights"
	"github.com/Domenick1991/skybooking/internal/service/payment"
	"github.com/Domenick1991/skybooking/internal/service/promo"
	"github.com/Domenick1991/skybooking/internal/tracing"
	"github.com/Domenick1991/skybooking/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("app stopped")
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
	if !cfg.Log.Pretty {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracerProvider(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracing.Shutdown(context.Background(), tp)

	pool, err := database.NewPool(ctx, cfg.Database.DSN(), cfg.Database.ConnectRetries)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
	defer redisCache.Close()
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	if err := producer.CheckConnection(ctx); err != nil {
		log.Warn().Err(err).Msg("kafka not reachable at startup")
	}

	recorder := audit.Recorder(audit.NopRecorder{})
	if cfg.Mongo.URI != "" {
		client, err := audit.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		defer client.Disconnect(context.Background())
		mongoRecorder := audit.NewMongoRecorder(client, cfg.Mongo.Database, cfg.Mongo.AuditCollection)
		if err := mongoRecorder.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("audit indexes")
		}
		recorder = mongoRecorder
	} else {
		log.Warn().Msg("mongo uri not set, callback audit disabled")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	gateways, err := gateway.NewRegistry(cfg.Payment, gateway.WithLatency(m.GatewayLatency))
	if err != nil {
		return fmt.Errorf("init payment gateways: %w", err)
	}

	tx := database.NewTransactor(pool)
	flightRepo := repository.NewFlightRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	promoRepo := repository.NewPromoCodeRepository(pool)

	flightService := flights.NewFlightService(flightRepo, redisCache)
	promoService := promo.NewPromoService(promoRepo, promo.WithMetrics(m))
	bookingService := booking.NewBookingService(
		tx,
		bookingRepo,
		flightRepo,
		paymentRepo,
		promoService,
		producer,
		cfg.Kafka.BookingTopic,
		booking.WithCache(redisCache),
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithMinChargeAmount(cfg.Payment.MinAmount),
	)
	paymentService := payment.NewPaymentService(
		tx,
		bookingRepo,
		paymentRepo,
		promoRepo,
		gateways,
		producer,
		payment.Config{
			ReturnURL:          cfg.Payment.ReturnURL,
			IPNBaseURL:         cfg.Payment.IPNBaseURL,
			Limits:             domain.AmountLimits{Min: cfg.Payment.MinAmount, Max: cfg.Payment.MaxAmount},
			Topic:              cfg.Kafka.PaymentTopic,
			NotificationsTopic: cfg.Kafka.NotificationsTopic,
		},
		payment.WithAudit(recorder),
		payment.WithMetrics(m),
	)

	validate := validator.New()
	router := api.NewRouter(api.Handlers{
		Bookings: api.NewBookingHandler(bookingService, validate),
		Flights:  api.NewFlightHandler(flightService),
		Payments: api.NewPaymentHandler(paymentService, validate),
		Promos:   api.NewPromoHandler(promoService, validate),
	}, cfg.Auth.JWTSecret, cfg.HTTP.CORSOrigins)

	return bootstrap.Run(ctx, cfg, router, pool, prometheus.DefaultGatherer)
}
