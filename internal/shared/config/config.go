package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      Server
	Database    Database
	Provider    Provider
	Webhook     Webhook
	Scheduler   Scheduler
	Encryption  Encryption
	Firebase    Firebase
	Telemetry   Telemetry
	Environment string
}

type Server struct {
	Port         string
	Host         string
	AllowedHosts []string
	// RateLimit is the inbound limit applied to the public API,
	// in ulule/limiter format (e.g. "120-M").
	RateLimit string
}

type Database struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Provider configures the Open Finance provider client.
type Provider struct {
	BaseURL string
	Timeout time.Duration
	// APIKeyTTL is the fallback broad-token lifetime when the provider
	// does not declare one in the auth response.
	APIKeyTTL time.Duration
	// ConnectTokenTTL is the lifetime of connect tokens handed to the
	// client-side linking widget.
	ConnectTokenTTL time.Duration
	// RateLimit is the number of outbound requests allowed per RateWindow.
	RateLimit  int
	RateWindow time.Duration
}

// Webhook configures the inbound webhook endpoint.
type Webhook struct {
	// Secret enables HMAC-SHA256 signature validation when non-empty.
	// When empty the payload is trusted as-is; this is an explicit
	// deployment choice, not a fallback.
	Secret string
	// RetryWindow is the trailing window in which repeated failures of
	// the same webhook id stop being retried.
	RetryWindow time.Duration
	// MaxAttempts is the number of failed attempts tolerated inside
	// RetryWindow before the webhook id is acknowledged without processing.
	MaxAttempts int
}

type Scheduler struct {
	Enabled       bool
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
}

type Encryption struct {
	Key string
}

type Firebase struct {
	CredentialsFile string
	MessagesFile    string
}

type Telemetry struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	MetricsPort  string
}

func Load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	providerTimeout, err := time.ParseDuration(getEnv("PROVIDER_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_TIMEOUT: %w", err)
	}
	providerRateLimit, err := strconv.Atoi(getEnv("PROVIDER_RATE_LIMIT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_RATE_LIMIT: %w", err)
	}

	schedulerWorkers, err := strconv.Atoi(getEnv("SCHEDULER_WORKERS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_WORKERS: %w", err)
	}
	schedulerJobDelay, err := time.ParseDuration(getEnv("SCHEDULER_JOB_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_JOB_DELAY: %w", err)
	}
	schedulerQueueSize, err := strconv.Atoi(getEnv("SCHEDULER_QUEUE_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_QUEUE_SIZE: %w", err)
	}

	webhookRetryWindow, err := time.ParseDuration(getEnv("WEBHOOK_RETRY_WINDOW", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_RETRY_WINDOW: %w", err)
	}
	webhookMaxAttempts, err := strconv.Atoi(getEnv("WEBHOOK_MAX_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_MAX_ATTEMPTS: %w", err)
	}

	var allowedHosts []string
	for _, host := range strings.Split(getEnv("ALLOWED_HOSTS", ""), ",") {
		host = strings.TrimSpace(host)
		if host != "" {
			allowedHosts = append(allowedHosts, host)
		}
	}

	cfg := &Config{
		Server: Server{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: allowedHosts,
			RateLimit:    getEnv("API_RATE_LIMIT", "120-M"),
		},
		Database: Database{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "agrego"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "agrego"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Provider: Provider{
			BaseURL:         getEnv("PROVIDER_BASE_URL", "https://api.openfinance.dev"),
			Timeout:         providerTimeout,
			APIKeyTTL:       2 * time.Hour,
			ConnectTokenTTL: 30 * time.Minute,
			RateLimit:       providerRateLimit,
			RateWindow:      time.Minute,
		},
		Webhook: Webhook{
			Secret:      getEnv("WEBHOOK_SECRET", ""),
			RetryWindow: webhookRetryWindow,
			MaxAttempts: webhookMaxAttempts,
		},
		Scheduler: Scheduler{
			Enabled:       getBoolEnv("SCHEDULER_ENABLED", true),
			ScheduleTimes: splitAndTrim(getEnv("SCHEDULER_TIMES", "05:00,10:00,14:00,20:00")),
			WorkerCount:   schedulerWorkers,
			JobDelay:      schedulerJobDelay,
			QueueSize:     schedulerQueueSize,
			RunOnStartup:  getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false),
		},
		Encryption: Encryption{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Firebase: Firebase{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			MessagesFile:    getEnv("NOTIFICATION_MESSAGES_FILE", "notifications.json"),
		},
		Telemetry: Telemetry{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "agrego-api"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9464"),
		},
		Environment: getEnv("APP_ENV", "development"),
	}

	if cfg.Encryption.Key == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(cfg.Encryption.Key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}
	if cfg.Provider.RateLimit <= 0 {
		return nil, fmt.Errorf("PROVIDER_RATE_LIMIT must be positive")
	}

	return cfg, nil
}

func (c *Database) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// MigrateURL returns the database URL in the form golang-migrate expects.
func (c *Database) MigrateURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
