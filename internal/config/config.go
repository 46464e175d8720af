package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides application configuration.
var Module = fx.Provide(Load)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Entitlement EntitlementConfig
	Webhook     WebhookConfig
	Email       EmailConfig

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string

	SeedDemoData bool
}

// EntitlementConfig tunes the evaluator and the usage ledger service.
type EntitlementConfig struct {
	// DelayedAfterMonths is the tenure required before delayed services unlock.
	DelayedAfterMonths int
	// SaveRetries bounds optimistic-concurrency retries on use-service writes.
	SaveRetries int
	// LockTTL bounds how long a per-subscription redis lock may be held.
	LockTTL time.Duration
	// GracePeriod is how long past next_reset_at a subscription may stay
	// unpaid before the sweep expires it.
	GracePeriod time.Duration
	// CatalogPath points at the directory holding catalog.yml. Empty means
	// built-in defaults only.
	CatalogPath string
}

// WebhookConfig configures inbound payment webhooks.
type WebhookConfig struct {
	StripeSecret string
	Tolerance    time.Duration
}

// EmailConfig configures the SMTP notification provider.
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "khaja"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "khaja"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		Entitlement: EntitlementConfig{
			DelayedAfterMonths: getenvInt("ENTITLEMENT_DELAYED_AFTER_MONTHS", 6),
			SaveRetries:        getenvInt("ENTITLEMENT_SAVE_RETRIES", 3),
			LockTTL:            getenvDuration("ENTITLEMENT_LOCK_TTL", 5*time.Second),
			GracePeriod:        getenvDuration("ENTITLEMENT_GRACE_PERIOD", 15*24*time.Hour),
			CatalogPath:        getenv("CATALOG_PATH", ""),
		},
		Webhook: WebhookConfig{
			StripeSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			Tolerance:    getenvDuration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
		},
		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", ""),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@khaja.app"),
		},

		OtelEnabled:          getenvBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: getenv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		OtelExporterProtocol: strings.ToLower(getenv("OTEL_EXPORTER_PROTOCOL", "grpc")),

		SeedDemoData: getenvBool("SEED_DEMO_DATA", false),
	}
}

func (c Config) IsDevelopment() bool {
	return c.Environment != "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d", key, value, def)
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("invalid %s=%q, using default %s", key, value, def)
		return def
	}
	return parsed
}
