package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	WebPort  string
	LogLevel string

	PublicDir     string
	PublicBaseURL string

	ComposerBaseURL            string
	ComposerTimeout            time.Duration
	ComposerRetryMaxAttempts   int
	ComposerBreakerEnabled     bool
	ComposerBreakerMinRequests int
	ComposerBreakerFailureRate float64
	ComposerBreakerOpenTimeout time.Duration

	UploadMaxBytes    int64
	PhotoMaxDimension int

	SessionTTL          time.Duration
	SessionCookieSecure bool

	APIRateLimitRPS             float64
	APIRateLimitBurst           int
	APIBackpressureMaxInFlight  int
	APIBackpressureWaitDuration time.Duration

	OrderSubmitter   string
	NATSURL          string
	NATSOrderSubject string

	WorkerMetricsPort string
}

const (
	OrderSubmitterStub = "stub"
	OrderSubmitterNATS = "nats"
)

func Load() Config {
	return Config{
		AppEnv:   mustEnv("APP_ENV", "development"),
		WebPort:  mustEnv("WEB_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		PublicDir:     mustEnv("PUBLIC_DIR", "./public"),
		PublicBaseURL: mustEnv("PUBLIC_BASE_URL", ""),

		ComposerBaseURL:            mustEnv("COMPOSER_BASE_URL", "http://localhost:8000"),
		ComposerTimeout:            mustEnvSeconds("COMPOSER_TIMEOUT_SECONDS", 120*time.Second),
		ComposerRetryMaxAttempts:   mustEnvInt("COMPOSER_RETRY_MAX_ATTEMPTS", 1),
		ComposerBreakerEnabled:     mustEnvBool("COMPOSER_BREAKER_ENABLED", true),
		ComposerBreakerMinRequests: mustEnvInt("COMPOSER_BREAKER_MIN_REQUESTS", 5),
		ComposerBreakerFailureRate: mustEnvFloat("COMPOSER_BREAKER_FAILURE_RATIO", 0.6),
		ComposerBreakerOpenTimeout: mustEnvSeconds("COMPOSER_BREAKER_OPEN_TIMEOUT_SECONDS", 30*time.Second),

		UploadMaxBytes:    int64(mustEnvInt("UPLOAD_MAX_BYTES", 10<<20)),
		PhotoMaxDimension: mustEnvInt("PHOTO_MAX_DIMENSION", 1600),

		SessionTTL:          time.Duration(mustEnvInt("SESSION_TTL_MINUTES", 120)) * time.Minute,
		SessionCookieSecure: mustEnvBool("SESSION_COOKIE_SECURE", false),

		APIRateLimitRPS:             mustEnvFloat("API_RATE_LIMIT_RPS", 5),
		APIRateLimitBurst:           mustEnvInt("API_RATE_LIMIT_BURST", 10),
		APIBackpressureMaxInFlight:  mustEnvInt("API_BACKPRESSURE_MAX_IN_FLIGHT", 32),
		APIBackpressureWaitDuration: time.Duration(mustEnvInt("API_BACKPRESSURE_WAIT_MS", 250)) * time.Millisecond,

		OrderSubmitter:   strings.ToLower(mustEnv("ORDER_SUBMITTER", OrderSubmitterStub)),
		NATSURL:          mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSOrderSubject: mustEnv("NATS_ORDER_SUBJECT", "tryon.custom_orders"),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func mustEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvSeconds(key string, fallback time.Duration) time.Duration {
	n := mustEnvInt(key, -1)
	if n < 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
