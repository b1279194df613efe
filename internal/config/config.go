package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Gateway modes.
const (
	GatewaySandbox  = "sandbox"
	GatewayRazorpay = "razorpay"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// AppConfig aggregates runtime configuration. Everything comes from the
// environment (optionally seeded from a .env file) with development defaults.
type AppConfig struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	RedisAddr string
	RedisDB   int

	// Kafka brokers (comma separated), topic and consumer group for booking events.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox: the API appends, the relay forwards to Kafka.
	BookingEventStream   string
	BookingEventGroup    string
	BookingEventConsumer string

	// Payment endpoint rate limit.
	PayRateLimit  int
	PayRateWindow time.Duration

	BookingLockTTL       time.Duration
	PaymentAttemptTTL    time.Duration
	RestoreStockOnCancel bool

	GatewayMode        string
	GatewayBaseURL     string
	GatewayKeyID       string
	GatewaySecret      string
	GatewayTimeout     time.Duration
	GatewayMaxAttempts int
	Currency           string

	// Simple admin token for dealer verification.
	AdminToken string

	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string
}

// Load reads and validates configuration. A missing .env file is not an error.
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := AppConfig{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DBDriver:             strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DBDSN:                getEnv("DB_DSN", "bike_booking.db"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              0,
		KafkaBrokers:         splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:           getEnv("KAFKA_TOPIC", "booking-events"),
		KafkaGroupID:         getEnv("KAFKA_GROUP_ID", "booking-history-consumer"),
		BookingEventStream:   getEnv("BOOKING_EVENT_STREAM", "bike_booking:booking_events"),
		BookingEventGroup:    getEnv("BOOKING_EVENT_GROUP", "bike-booking-relay-group"),
		BookingEventConsumer: getEnv("BOOKING_EVENT_CONSUMER", "bike-booking-relay-1"),
		PayRateLimit:         20,
		PayRateWindow:        time.Minute,
		BookingLockTTL:       10 * time.Second,
		PaymentAttemptTTL:    24 * time.Hour,
		GatewayMode:          strings.ToLower(getEnv("GATEWAY_MODE", GatewaySandbox)),
		GatewayBaseURL:       getEnv("GATEWAY_BASE_URL", "https://api.razorpay.com"),
		GatewayKeyID:         getEnv("GATEWAY_KEY_ID", "rzp_test_key"),
		GatewaySecret:        getEnv("GATEWAY_SECRET", "dev-gateway-secret"),
		GatewayTimeout:       10 * time.Second,
		GatewayMaxAttempts:   3,
		Currency:             getEnv("CURRENCY", "INR"),
		AdminToken:           getEnv("ADMIN_TOKEN", "dev-admin-token"),
		CORSAllowedOrigins:   splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("PAY_RATE_LIMIT", cfg.PayRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid PAY_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("PAY_RATE_LIMIT must be > 0")
	}
	cfg.PayRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("PAY_RATE_WINDOW_SEC", int(cfg.PayRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid PAY_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("PAY_RATE_WINDOW_SEC must be > 0")
	}
	cfg.PayRateWindow = time.Duration(rateWindowSec) * time.Second

	lockTTLSec, err := getEnvInt("BOOKING_LOCK_TTL_SEC", int(cfg.BookingLockTTL.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid BOOKING_LOCK_TTL_SEC: %w", err)
	}
	if lockTTLSec <= 0 {
		return AppConfig{}, fmt.Errorf("BOOKING_LOCK_TTL_SEC must be > 0")
	}
	cfg.BookingLockTTL = time.Duration(lockTTLSec) * time.Second

	attemptTTLMin, err := getEnvInt("PAYMENT_ATTEMPT_TTL_MIN", int(cfg.PaymentAttemptTTL.Minutes()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid PAYMENT_ATTEMPT_TTL_MIN: %w", err)
	}
	if attemptTTLMin <= 0 {
		return AppConfig{}, fmt.Errorf("PAYMENT_ATTEMPT_TTL_MIN must be > 0")
	}
	cfg.PaymentAttemptTTL = time.Duration(attemptTTLMin) * time.Minute

	restore, err := getEnvBool("RESTORE_STOCK_ON_CANCEL", false)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid RESTORE_STOCK_ON_CANCEL: %w", err)
	}
	cfg.RestoreStockOnCancel = restore

	timeoutSec, err := getEnvInt("GATEWAY_TIMEOUT_SEC", int(cfg.GatewayTimeout.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid GATEWAY_TIMEOUT_SEC: %w", err)
	}
	if timeoutSec <= 0 {
		return AppConfig{}, fmt.Errorf("GATEWAY_TIMEOUT_SEC must be > 0")
	}
	cfg.GatewayTimeout = time.Duration(timeoutSec) * time.Second

	maxAttempts, err := getEnvInt("GATEWAY_MAX_ATTEMPTS", cfg.GatewayMaxAttempts)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid GATEWAY_MAX_ATTEMPTS: %w", err)
	}
	if maxAttempts <= 0 {
		return AppConfig{}, fmt.Errorf("GATEWAY_MAX_ATTEMPTS must be > 0")
	}
	cfg.GatewayMaxAttempts = maxAttempts

	switch cfg.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return AppConfig{}, fmt.Errorf("DB_DRIVER must be %q or %q", DriverSQLite, DriverPostgres)
	}
	switch cfg.GatewayMode {
	case GatewaySandbox, GatewayRazorpay:
	default:
		return AppConfig{}, fmt.Errorf("GATEWAY_MODE must be %q or %q", GatewaySandbox, GatewayRazorpay)
	}
	if cfg.GatewaySecret == "" {
		return AppConfig{}, fmt.Errorf("GATEWAY_SECRET must not be empty")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.BookingEventStream == "" {
		return AppConfig{}, fmt.Errorf("BOOKING_EVENT_STREAM must not be empty")
	}
	if cfg.BookingEventGroup == "" {
		return AppConfig{}, fmt.Errorf("BOOKING_EVENT_GROUP must not be empty")
	}
	if cfg.BookingEventConsumer == "" {
		return AppConfig{}, fmt.Errorf("BOOKING_EVENT_CONSUMER must not be empty")
	}

	return cfg, nil
}

// getEnv returns the trimmed value of key, or fallback when unset.
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

// splitCSV turns "a, b,,c" into [a b c].
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
