package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/backend-partyshop/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	LogFormat          string
	LogLevel           string
	CORSAllowedOrigins []string
	MigrateOnStart     bool
	ShutdownTimeout    time.Duration
	DBMaxConns         int
	BodyLimitBytes     int64
	EnableHSTS         bool

	// StoreTimezone is the IANA zone used for delivery slot cut-offs.
	StoreTimezone *time.Location
	SessionTTL    time.Duration
	Pricing       pricing.Policy

	CatalogCacheTTL    time.Duration
	GroupOrderCacheTTL time.Duration
	IdempotencyTTL     time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	SettleQueue       string
	SettleMaxRetry    int
	WorkerConcurrency int

	AdminJWTSecret   string
	AdminJWTIssuer   string
	AdminJWTAudience string
	AdminAPIKeyHash  string

	// RateLimitVoucherRate uses the "<limit>-<period>" format, e.g. "30-M".
	RateLimitVoucherRate    string
	RateLimitCheckoutMax    int
	RateLimitCheckoutWindow time.Duration

	TenantHeader     string
	TenantRootDomain string
	DefaultTenant    string

	OTELEndpoint      string
	OTELExporter      string
	OTELSamplingRatio float64
	MetricsNamespace  string
	MetricsBucketsMS  string
	PprofEnabled      bool
	PprofUser         string
	PprofPass         string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	loc, err := time.LoadLocation(valueOrDefault(k.String("STORE_TIMEZONE"), "America/Chicago"))
	if err != nil {
		return nil, fmt.Errorf("STORE_TIMEZONE: %w", err)
	}

	policy := pricing.DefaultPolicy
	policy.PercentThreshold = parseMoney(k.String("PRICING_PERCENT_THRESHOLD"), policy.PercentThreshold)
	policy.FlatFee = parseMoney(k.String("PRICING_FLAT_FEE"), policy.FlatFee)
	policy.DeliveryBps = parseInt(k.String("PRICING_DELIVERY_BPS"), policy.DeliveryBps)
	policy.TaxBps = parseInt(k.String("PRICING_TAX_BPS"), policy.TaxBps)
	policy.TaxAfterDiscount = parseBool(k.String("PRICING_TAX_AFTER_DISCOUNT"))

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		MigrateOnStart:     parseBool(k.String("MIGRATE_ON_START")),
		ShutdownTimeout:    parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
		DBMaxConns:         parseInt(k.String("DB_MAX_CONNS"), 0),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		EnableHSTS:         parseBool(k.String("ENABLE_HSTS")),

		StoreTimezone: loc,
		SessionTTL:    parseDuration(k.String("SESSION_TTL"), "24h"),
		Pricing:       policy,

		CatalogCacheTTL:    parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		GroupOrderCacheTTL: parseDuration(k.String("GROUP_ORDER_CACHE_TTL"), "1m"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		KafkaBrokers: splitAndTrim(k.String("KAFKA_BROKERS")),
		KafkaTopic:   valueOrDefault(k.String("KAFKA_TOPIC"), "partyshop.domain-events"),

		SettleQueue:       valueOrDefault(k.String("SETTLE_QUEUE"), "default"),
		SettleMaxRetry:    parseInt(k.String("SETTLE_MAX_RETRY"), 10),
		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 10),

		AdminJWTSecret:   k.String("ADMIN_JWT_SECRET"),
		AdminJWTIssuer:   valueOrDefault(k.String("ADMIN_JWT_ISSUER"), "partyshop"),
		AdminJWTAudience: valueOrDefault(k.String("ADMIN_JWT_AUDIENCE"), "partyshop-admin"),
		AdminAPIKeyHash:  k.String("ADMIN_API_KEY_HASH"),

		RateLimitVoucherRate:    valueOrDefault(k.String("RATE_LIMIT_VOUCHER_RATE"), "30-M"),
		RateLimitCheckoutMax:    parseInt(k.String("RATE_LIMIT_CHECKOUT_MAX"), 10),
		RateLimitCheckoutWindow: parseDuration(k.String("RATE_LIMIT_CHECKOUT_WINDOW"), "1m"),

		TenantHeader:     valueOrDefault(k.String("TENANT_HEADER"), "X-Tenant-ID"),
		TenantRootDomain: k.String("TENANT_ROOT_DOMAIN"),
		DefaultTenant:    k.String("DEFAULT_TENANT"),

		OTELEndpoint:      k.String("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTELExporter:      valueOrDefault(k.String("OTEL_TRACES_EXPORTER"), "otlp"),
		OTELSamplingRatio: parseFloat(k.String("OTEL_TRACES_SAMPLER_RATIO"), 1),
		MetricsNamespace:  valueOrDefault(k.String("METRICS_NAMESPACE"), "partyshop"),
		MetricsBucketsMS:  k.String("METRICS_BUCKETS_MS"),
		PprofEnabled:      parseBool(k.String("PPROF_ENABLED")),
		PprofUser:         k.String("PPROF_BASIC_AUTH_USER"),
		PprofPass:         k.String("PPROF_BASIC_AUTH_PASS"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.Pricing.TaxBps < 0 || cfg.Pricing.DeliveryBps < 0 {
		return nil, errors.New("pricing basis points must not be negative")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// AdminEnabled reports whether any admin credential is configured.
func (c *Config) AdminEnabled() bool {
	return strings.TrimSpace(c.AdminJWTSecret) != "" || strings.TrimSpace(c.AdminAPIKeyHash) != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// parseMoney accepts dollar amounts such as "200" or "$20.00".
func parseMoney(value string, fallback pricing.Money) pricing.Money {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return pricing.ParseAmount(value)
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
