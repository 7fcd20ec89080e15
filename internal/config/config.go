package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	Kafka     KafkaConfig
	Scheduler SchedulerConfig
	Payment   PaymentConfig

	NotifierDriver  string
	PricingPath     string
	RankingCacheTTL time.Duration
	// RankingCacheMaxEntries bounds distinct cached filters.
	RankingCacheMaxEntries int
	// MaxBoostWindow caps purchased windows. Zero leaves only the per-unit limits.
	MaxBoostWindow time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

type SchedulerConfig struct {
	Enabled                    bool
	TriggerSecret              string
	RunInterval                time.Duration
	BatchSize                  int
	JobTimeout                 time.Duration
	WarningWindow              time.Duration
	RenewalWindow              time.Duration
	PendingTTL                 time.Duration
	PerformanceRefreshInterval time.Duration
	ReconcileGrace             time.Duration
	LockTTL                    time.Duration
	EnabledJobs                []string
}

type PaymentConfig struct {
	DefaultProvider  string
	AcceptedMethods  []string
	WalletAutoCreate bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "boostd"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "boostd"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "boostd.db"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", false),
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Kafka: KafkaConfig{
			Brokers:      parseList(getenv("KAFKA_BROKERS", "")),
			Topic:        getenv("KAFKA_NOTIFICATION_TOPIC", "boost-notifications"),
			WriteTimeout: getenvDuration("KAFKA_WRITE_TIMEOUT", 5*time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:                    getenvBool("SCHEDULER_ENABLED", true),
			TriggerSecret:              strings.TrimSpace(getenv("SCHEDULER_TRIGGER_SECRET", "")),
			RunInterval:                getenvDuration("SCHEDULER_RUN_INTERVAL", time.Minute),
			BatchSize:                  int(getenvInt64("SCHEDULER_BATCH_SIZE", 100)),
			JobTimeout:                 getenvDuration("SCHEDULER_JOB_TIMEOUT", 30*time.Second),
			WarningWindow:              getenvDuration("SCHEDULER_WARNING_WINDOW", 24*time.Hour),
			RenewalWindow:              getenvDuration("SCHEDULER_RENEWAL_WINDOW", 24*time.Hour),
			PendingTTL:                 getenvDuration("SCHEDULER_PENDING_TTL", 0),
			PerformanceRefreshInterval: getenvDuration("SCHEDULER_PERFORMANCE_REFRESH_INTERVAL", time.Hour),
			ReconcileGrace:             getenvDuration("SCHEDULER_RECONCILE_GRACE", 15*time.Minute),
			LockTTL:                    getenvDuration("SCHEDULER_LOCK_TTL", 5*time.Minute),
			EnabledJobs:                parseList(getenv("SCHEDULER_ENABLED_JOBS", "")),
		},
		Payment: PaymentConfig{
			DefaultProvider:  strings.ToLower(getenv("PAYMENT_DEFAULT_PROVIDER", "wallet")),
			AcceptedMethods:  parseList(getenv("PAYMENT_ACCEPTED_METHODS", "wallet,card,mobile_money,bank_transfer")),
			WalletAutoCreate: getenvBool("PAYMENT_WALLET_AUTO_CREATE", true),
		},

		NotifierDriver: strings.ToLower(getenv("NOTIFIER_DRIVER", "log")),
		PricingPath:    strings.TrimSpace(getenv("PRICING_CONFIG_PATH", "")),

		RankingCacheTTL:        getenvDuration("RANKING_CACHE_TTL", 5*time.Second),
		RankingCacheMaxEntries: int(getenvInt64("RANKING_CACHE_MAX_ENTRIES", 10000)),
		MaxBoostWindow:         getenvDuration("BOOST_MAX_WINDOW", 366*24*time.Hour),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
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

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
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
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
