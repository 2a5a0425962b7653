package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides the application Config loaded from the environment.
var Module = fx.Module("config",
	fx.Provide(Load),
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
	DBLogLevel        string

	RedisURL string

	SnowflakeNode int64

	Webhook    WebhookConfig
	Stream     StreamConfig
	Worker     WorkerConfig
	RawStore   RawStoreConfig
	Funnel     FunnelConfig
	KeywordSrc KeywordSourceConfig
	Push       MetricsPushConfig
}

// WebhookConfig tunes POST /webhook. A zero RateLimitPerSecond disables per-channel throttling.
type WebhookConfig struct {
	RateLimitPerSecond float64
	RateLimitBurst     int
	RawPutTimeout      time.Duration
}

// StreamConfig names the Redis stream and consumer group shared by gateway and worker.
type StreamConfig struct {
	Key    string
	Group  string
	MaxLen int64
}

type WorkerConfig struct {
	Consumer     string
	BatchSize    int
	Block        time.Duration
	Concurrency  int
	ClaimMinIdle time.Duration
	ErrorBackoff time.Duration
	EntryTimeout time.Duration

	// MaxDeliveries is how often a failing entry is attempted before it is
	// acked and logged as poison.
	MaxDeliveries int
}

type RawStoreConfig struct {
	Driver    string
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type FunnelConfig struct {
	Interval    time.Duration
	BatchSize   int
	Timezone    string
	LockTTL     time.Duration
	EnabledJobs []string
}

// MetricsPushConfig lets short-lived or unscraped processes hand their
// Prometheus metrics to a Pushgateway or a remote_write endpoint after each run.
type MetricsPushConfig struct {
	Exporter  string
	Endpoint  string
	AuthToken string
}

type KeywordSourceConfig struct {
	File         string
	SyncInterval time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "sparks"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "sparks"),
		DBUser:            getenv("DATABASE_USER", "sparks"),
		DBPassword:        getenv("DATABASE_PASSWORD", "sparks"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "sparks.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBLogLevel:        getenv("DATABASE_LOG_LEVEL", "warn"),

		RedisURL: getenv("REDIS_URL", "redis://localhost:6379/0"),

		SnowflakeNode: int64(getenvInt("SNOWFLAKE_NODE", 1)),

		Webhook: WebhookConfig{
			RateLimitPerSecond: getenvFloat("WEBHOOK_RATE_LIMIT_RPS", 0),
			RateLimitBurst:     getenvInt("WEBHOOK_RATE_LIMIT_BURST", 100),
			RawPutTimeout:      getenvDuration("WEBHOOK_RAW_PUT_TIMEOUT", 3*time.Second),
		},
		Stream: StreamConfig{
			Key:    getenv("STREAM_KEY", "incoming:messages"),
			Group:  getenv("STREAM_GROUP", "workers"),
			MaxLen: int64(getenvInt("STREAM_MAX_LEN", 0)),
		},
		Worker: WorkerConfig{
			Consumer:      getenv("WORKER_CONSUMER", defaultConsumerName()),
			BatchSize:     getenvInt("WORKER_BATCH_SIZE", 10),
			Block:         getenvDuration("WORKER_BLOCK", 5*time.Second),
			Concurrency:   getenvInt("WORKER_CONCURRENCY", 1),
			ClaimMinIdle:  getenvDuration("WORKER_CLAIM_MIN_IDLE", time.Minute),
			ErrorBackoff:  getenvDuration("WORKER_ERROR_BACKOFF", time.Second),
			EntryTimeout:  getenvDuration("WORKER_ENTRY_TIMEOUT", 15*time.Second),
			MaxDeliveries: getenvInt("WORKER_MAX_DELIVERIES", 5),
		},
		RawStore: RawStoreConfig{
			Driver:    strings.ToLower(getenv("RAW_STORE", "minio")),
			Endpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: strings.TrimSpace(getenv("MINIO_ACCESS_KEY", "")),
			SecretKey: strings.TrimSpace(getenv("MINIO_SECRET_KEY", "")),
			UseSSL:    getenvBool("MINIO_USE_SSL", false),
			Bucket:    getenv("RAW_BUCKET", "raw-payloads"),
		},
		Funnel: FunnelConfig{
			Interval:    getenvDuration("FUNNEL_INTERVAL", time.Minute),
			BatchSize:   getenvInt("FUNNEL_BATCH_SIZE", 100),
			Timezone:    getenv("FUNNEL_TIMEZONE", "UTC"),
			LockTTL:     getenvDuration("FUNNEL_LOCK_TTL", 5*time.Minute),
			EnabledJobs: getenvList("SCHEDULER_JOBS"),
		},
		Push: MetricsPushConfig{
			Exporter:  strings.ToLower(strings.TrimSpace(getenv("METRICS_PUSH_EXPORTER", ""))),
			Endpoint:  strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("METRICS_PUSH_AUTH_TOKEN", "")),
		},
		KeywordSrc: KeywordSourceConfig{
			File:         getenv("KEYWORDS_FILE", ""),
			SyncInterval: getenvDuration("KEYWORDS_SYNC_INTERVAL", time.Minute),
		},
	}

	return cfg
}

// IsProduction reports whether the service runs in the production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func defaultConsumerName() string {
	host := strings.TrimSpace(os.Getenv("HOSTNAME"))
	if host == "" {
		host = "1"
	}
	return "worker-" + host
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

// getenvList splits a comma separated variable, dropping blanks.
func getenvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getenvDuration accepts Go durations ("5s") or a bare number of seconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}
