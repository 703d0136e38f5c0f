package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewReconciliationConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPPort    string
	// NodeID seeds the snowflake generator; it must be unique per running process.
	NodeID int64

	Logger    LoggerConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
	Redis     RedisConfig
	Reasoning ReasoningConfig
	Scheduler SchedulerConfig

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
	DBConnMaxIdleTime int
}

type LoggerConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
}

// TracingConfig shares the OTLP endpoint and protocol with MetricsConfig.
type TracingConfig struct {
	Enabled       bool
	SamplingRatio float64
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int

	TariffCacheTTL  time.Duration
	ShipmentLockTTL time.Duration
	// ReasoningRate is the per-org refill rate (requests per second) for reasoning calls.
	ReasoningRate  float64
	ReasoningBurst int
}

// ReasoningConfig configures the external reasoning service used for ambiguous item matches.
type ReasoningConfig struct {
	Enabled   bool
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	// MaxAttempts bounds retries of 429 and 5xx answers inside the fallback timeout.
	MaxAttempts int
}

type SchedulerConfig struct {
	Enabled       bool
	RematchSpec   string
	RematchBatch  int
	RematchMaxAge time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "clearline"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPPort:    getenv("HTTP_PORT", "8080"),
		NodeID:      int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		Logger: LoggerConfig{
			Level:  strings.ToLower(getenv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getenv("LOG_FORMAT", "json")),
		},
		Metrics: MetricsConfig{
			Enabled:          getenvBool("OTEL_ENABLED", false),
			ExporterEndpoint: strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
			ExporterProtocol: strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		},
		Tracing: TracingConfig{
			Enabled:       getenvBool("OTEL_TRACES_ENABLED", getenvBool("OTEL_ENABLED", false)),
			SamplingRatio: getenvFloat("OTEL_TRACES_SAMPLER_RATIO", 1),
		},
		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", false),
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),

			TariffCacheTTL:  getenvDuration("TARIFF_CACHE_TTL", 10*time.Minute),
			ShipmentLockTTL: getenvDuration("SHIPMENT_LOCK_TTL", 30*time.Second),
			ReasoningRate:   getenvFloat("REASONING_RATE", 0.2),
			ReasoningBurst:  getenvInt("REASONING_BURST", 5),
		},
		Reasoning: ReasoningConfig{
			Enabled:   getenvBool("REASONING_ENABLED", false),
			BaseURL:   strings.TrimRight(getenv("REASONING_BASE_URL", "https://api.anthropic.com"), "/"),
			APIKey:    strings.TrimSpace(getenv("REASONING_API_KEY", "")),
			Model:     getenv("REASONING_MODEL", "claude-3-5-haiku-latest"),
			MaxTokens: getenvInt("REASONING_MAX_TOKENS", 2048),
			Timeout:   getenvDuration("REASONING_TIMEOUT", 20*time.Second),

			MaxAttempts: getenvInt("REASONING_MAX_ATTEMPTS", 3),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getenvBool("SCHEDULER_ENABLED", false),
			RematchSpec:   getenv("SCHEDULER_REMATCH_SPEC", "*/15 * * * *"),
			RematchBatch:  getenvInt("SCHEDULER_REMATCH_BATCH", 50),
			RematchMaxAge: getenvDuration("SCHEDULER_REMATCH_MAX_AGE", 30*24*time.Hour),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "clearline"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
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
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
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
