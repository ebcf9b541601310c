package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	IdempotencyStorage = "storage"
	IdempotencyRedis   = "redis"
)

// Config is the resolved runtime configuration for the donor ledger.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	StorageDriver       string
	MongoURI            string
	MongoDatabase       string
	MongoTransactions   bool
	MongoMaxPoolSize    uint64
	DatabaseURL         string
	MaxDBConns          int32
	RedisURL            string
	IdempotencyBackend  string
	KafkaBrokers        []string
	KafkaTopicPrefix    string
	StripeSecretKey     string
	PaymentCurrency     string
	BreakerFailures     uint32
	BreakerOpenDuration time.Duration

	JWTHMACSecret   string
	JWTPublicKeyPEM string
	JWTIssuer       string
	JWTAudience     string

	CORSAllowedOrigins []string
	RateLimitWrites    int
	RateLimitWindow    time.Duration

	RecomputeStatusOnRefund bool
	IdempotencyTTL          time.Duration
	RecommendCacheTTL       time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxRetries   int
	ReconcileInterval  time.Duration
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Storage struct {
		Driver string `yaml:"driver"`
		Mongo  struct {
			URI          string `yaml:"uri"`
			Database     string `yaml:"database"`
			Transactions *bool  `yaml:"transactions"`
		} `yaml:"mongo"`
		PostgresURL string `yaml:"postgres_url"`
	} `yaml:"storage"`
	Dependencies struct {
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		KafkaPrefix  string   `yaml:"kafka_topic_prefix"`
	} `yaml:"dependencies"`
	Ledger struct {
		RecomputeStatusOnRefund *bool  `yaml:"recompute_status_on_refund"`
		IdempotencyBackend      string `yaml:"idempotency_backend"`
		PaymentCurrency         string `yaml:"payment_currency"`
	} `yaml:"ledger"`
	HTTP struct {
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		RateLimitWrites    int      `yaml:"rate_limit_writes"`
	} `yaml:"http"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:               "Donor-Ledger-Service",
		HTTPPort:                8080,
		GRPCPort:                9090,
		StorageDriver:           StorageMongo,
		MongoDatabase:           "petAdoption",
		MongoMaxPoolSize:        50,
		MaxDBConns:              20,
		IdempotencyBackend:      IdempotencyStorage,
		PaymentCurrency:         "usd",
		BreakerFailures:         5,
		BreakerOpenDuration:     30 * time.Second,
		RateLimitWrites:         60,
		RateLimitWindow:         time.Minute,
		RecomputeStatusOnRefund: true,
		IdempotencyTTL:          24 * time.Hour,
		RecommendCacheTTL:       time.Minute,
		OutboxPollInterval:      2 * time.Second,
		OutboxBatchSize:         100,
		OutboxMaxRetries:        10,
		ReconcileInterval:       5 * time.Minute,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		applyFile(&cfg, f)
	}

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(envOrDefault("STORAGE_DRIVER", cfg.StorageDriver)))
	cfg.MongoURI = envOrDefault("MONGODB_URI", cfg.MongoURI)
	cfg.MongoDatabase = envOrDefault("MONGODB_DATABASE", cfg.MongoDatabase)
	cfg.MongoTransactions = envBool("MONGODB_TRANSACTIONS", cfg.MongoTransactions)
	cfg.MongoMaxPoolSize = uint64(envInt("MONGODB_MAX_POOL_SIZE", int(cfg.MongoMaxPoolSize)))
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.IdempotencyBackend = strings.ToLower(strings.TrimSpace(envOrDefault("IDEMPOTENCY_BACKEND", cfg.IdempotencyBackend)))
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopicPrefix = envOrDefault("KAFKA_TOPIC_PREFIX", cfg.KafkaTopicPrefix)
	cfg.StripeSecretKey = envOrDefault("STRIPE_SECRET_KEY", envOrDefault("PAYMENT_GATEWAY_KEY", cfg.StripeSecretKey))
	cfg.PaymentCurrency = envOrDefault("PAYMENT_CURRENCY", cfg.PaymentCurrency)
	cfg.BreakerFailures = uint32(envInt("STRIPE_BREAKER_FAILURES", int(cfg.BreakerFailures)))
	cfg.BreakerOpenDuration = time.Duration(envInt("STRIPE_BREAKER_OPEN_SECONDS", int(cfg.BreakerOpenDuration.Seconds()))) * time.Second

	cfg.JWTHMACSecret = envOrDefault("JWT_HMAC_SECRET", envOrDefault("ACCESS_TOKEN_SECRET", cfg.JWTHMACSecret))
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTAudience = envOrDefault("JWT_AUDIENCE", cfg.JWTAudience)

	cfg.CORSAllowedOrigins = envCSV("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)
	cfg.RateLimitWrites = envInt("RATE_LIMIT_WRITES", cfg.RateLimitWrites)
	cfg.RateLimitWindow = time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", int(cfg.RateLimitWindow.Seconds()))) * time.Second

	cfg.RecomputeStatusOnRefund = envBool("RECOMPUTE_STATUS_ON_REFUND", cfg.RecomputeStatusOnRefund)
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.RecommendCacheTTL = time.Duration(envInt("RECOMMEND_CACHE_TTL_SECONDS", int(cfg.RecommendCacheTTL.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.ReconcileInterval = time.Duration(envInt("RECONCILE_INTERVAL_SECONDS", int(cfg.ReconcileInterval.Seconds()))) * time.Second

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, f configFile) {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Storage.Driver != "" {
		cfg.StorageDriver = f.Storage.Driver
	}
	if f.Storage.Mongo.URI != "" {
		cfg.MongoURI = f.Storage.Mongo.URI
	}
	if f.Storage.Mongo.Database != "" {
		cfg.MongoDatabase = f.Storage.Mongo.Database
	}
	if f.Storage.Mongo.Transactions != nil {
		cfg.MongoTransactions = *f.Storage.Mongo.Transactions
	}
	if f.Storage.PostgresURL != "" {
		cfg.DatabaseURL = f.Storage.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	if f.Dependencies.KafkaPrefix != "" {
		cfg.KafkaTopicPrefix = f.Dependencies.KafkaPrefix
	}
	if f.Ledger.RecomputeStatusOnRefund != nil {
		cfg.RecomputeStatusOnRefund = *f.Ledger.RecomputeStatusOnRefund
	}
	if f.Ledger.IdempotencyBackend != "" {
		cfg.IdempotencyBackend = f.Ledger.IdempotencyBackend
	}
	if f.Ledger.PaymentCurrency != "" {
		cfg.PaymentCurrency = f.Ledger.PaymentCurrency
	}
	if len(f.HTTP.CORSAllowedOrigins) > 0 {
		cfg.CORSAllowedOrigins = f.HTTP.CORSAllowedOrigins
	}
	if f.HTTP.RateLimitWrites > 0 {
		cfg.RateLimitWrites = f.HTTP.RateLimitWrites
	}
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case StorageMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("missing MONGODB_URI")
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("missing MONGODB_DATABASE")
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("missing DB_URL/POSTGRES_URL")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.IdempotencyBackend {
	case IdempotencyStorage:
	case IdempotencyRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("IDEMPOTENCY_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown IDEMPOTENCY_BACKEND %q", c.IdempotencyBackend)
	}
	if c.JWTHMACSecret == "" && c.JWTPublicKeyPEM == "" {
		return fmt.Errorf("missing JWT_HMAC_SECRET or JWT_PUBLIC_KEY_PEM")
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt falls back on empty or invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
