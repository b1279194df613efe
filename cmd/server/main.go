package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bike_booking/internal/booking"
	"bike_booking/internal/catalog"
	"bike_booking/internal/config"
	"bike_booking/internal/inventory"
	"bike_booking/internal/jobs"
	"bike_booking/internal/middleware"
	"bike_booking/internal/payment"
	"bike_booking/internal/queue"
	"bike_booking/internal/router"
	"bike_booking/internal/store"
	rediskey "bike_booking/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Database, migrated at startup.
	db, err := store.Open(cfg, log)
	if err != nil {
		log.Fatalf("db: %v", err)
	}

	// 2. Redis: booking locks, payment rate limit, webhook dedupe, event outbox.
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 3. Outbox relay to Kafka and the history consumer.
	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	relay := queue.NewRelay(rdb, producer, log, cfg.BookingEventStream, cfg.BookingEventGroup, cfg.BookingEventConsumer)
	go relay.Run(ctx)

	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, db, log)
	defer consumer.Close()
	go consumer.Run(ctx)

	// 4. Booking engine.
	st := store.New(db)
	ledger := inventory.NewLedger(db)
	directory := catalog.NewDirectory(db)
	svc := booking.NewService(booking.Deps{
		Store:     st,
		Ledger:    ledger,
		Directory: directory,
		Gateway:   newGateway(cfg, log),
		Locker:    rediskey.NewLocker(rdb, cfg.BookingLockTTL),
		Events:    queue.NewStreamOutbox(rdb, cfg.BookingEventStream),
		Logger:    log,
	}, booking.Options{
		RestoreStockOnCancel: cfg.RestoreStockOnCancel,
	})

	go jobs.NewAttemptExpiryJob(st, cfg.PaymentAttemptTTL, time.Minute, log).Run(ctx)

	// 5. HTTP.
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID", "X-Admin-Token", "X-Webhook-Id"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Setup(r, router.Deps{
		Service:   svc,
		Directory: directory,
		Ledger:    ledger,
		Redis:     rdb,
		Config:    cfg,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
}

func newLogger(cfg config.AppConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Warn("unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func newGateway(cfg config.AppConfig, log *logrus.Logger) payment.Gateway {
	if cfg.GatewayMode == config.GatewayRazorpay {
		return payment.NewRazorpay(payment.RazorpayConfig{
			BaseURL:     cfg.GatewayBaseURL,
			KeyID:       cfg.GatewayKeyID,
			Secret:      cfg.GatewaySecret,
			Currency:    cfg.Currency,
			Timeout:     cfg.GatewayTimeout,
			MaxAttempts: cfg.GatewayMaxAttempts,
		}, log)
	}
	log.Warn("using sandbox payment gateway")
	return payment.NewSandbox(cfg.GatewaySecret, 0)
}
