package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// HTTP holds HTTP server configuration.
type HTTP struct {
	Host        string
	Port        int
	CORSOrigins []string
	// RateLimit is the sustained requests per second allowed per client; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// GRPC holds gRPC server configuration.
type GRPC struct {
	Enabled bool
	Host    string
	Port    int
}

// Cache configures caching behavior and backend selection.
type Cache struct {
	Enabled    bool
	Driver     string
	DefaultTTL time.Duration
	Redis      Redis
}

// Redis contains redis-specific connection settings.
type Redis struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
	// KeyPrefix namespaces every key so several deployments can share one server.
	KeyPrefix string
}

// Messaging configures the message bus used for order events.
type Messaging struct {
	Driver        string
	Enabled       bool
	Kafka         Kafka
	ConsumerGroup string
	Workers       Worker
}

// Kafka holds Kafka connection details.
type Kafka struct {
	Brokers        []string
	ClientID       string
	Topic          string
	CommitInterval time.Duration
	MinBytes       int
	MaxBytes       int
	ConnectTimeout time.Duration
}

// Worker configures background worker concurrency.
type Worker struct {
	Enabled     bool
	Concurrency int
}

// Database holds primary and read replica connection settings.
type Database struct {
	Driver          string
	WriterDSN       string
	ReaderDSN       string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
}

// Observability contains logging, tracing, and metrics configuration.
type Observability struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	LogLevel       string
	LogEncoding    string
	EnableTracing  bool
	TraceExporter  string
	TraceEndpoint  string
	TraceInsecure  bool
	// TraceSampleRatio applies to root spans; children follow their parent.
	TraceSampleRatio float64
	EnableMetrics    bool
	MetricsExporter  string
	PrometheusPath   string
}

// Config wraps all application configuration knobs.
type Config struct {
	HTTP          HTTP
	GRPC          GRPC
	Cache         Cache
	Messaging     Messaging
	Database      Database
	Observability Observability
}

// Module wires the configuration loader into the Fx graph.
var Module = fx.Provide(New)

var loadEnvOnce sync.Once

// New builds a Config from environment variables or defaults.
func New() (Config, error) {
	loadEnvOnce.Do(func() {
		_ = godotenv.Load()
	})

	cfg := Config{
		HTTP: HTTP{
			Host:        getEnv("HTTP_HOST", "0.0.0.0"),
			Port:        getEnvAsInt("HTTP_PORT", 8000),
			CORSOrigins: getEnvAsStringSlice("HTTP_CORS_ORIGINS", []string{"http://localhost:3000"}),
			RateLimit:   getEnvAsFloat("HTTP_RATE_LIMIT", 0),
			RateBurst:   getEnvAsInt("HTTP_RATE_BURST", 20),
		},
		GRPC: GRPC{
			Enabled: getEnvAsBool("GRPC_ENABLED", false),
			Host:    getEnv("GRPC_HOST", "0.0.0.0"),
			Port:    getEnvAsInt("GRPC_PORT", 9090),
		},
		Cache: Cache{
			Enabled:    getEnvAsBool("CACHE_ENABLED", false),
			Driver:     getEnv("CACHE_DRIVER", "redis"),
			DefaultTTL: getEnvAsDuration("CACHE_DEFAULT_TTL", time.Minute*5),
			Redis: Redis{
				Addr:        getEnv("REDIS_ADDR", "127.0.0.1:6379"),
				Password:    getEnv("REDIS_PASSWORD", ""),
				DB:          getEnvAsInt("REDIS_DB", 0),
				PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 10),
				DialTimeout: getEnvAsDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
				KeyPrefix:   getEnv("REDIS_KEY_PREFIX", "orderdesk:"),
			},
		},
		Messaging: Messaging{
			Driver:  getEnv("MESSAGING_DRIVER", "kafka"),
			Enabled: getEnvAsBool("MESSAGING_ENABLED", false),
			Kafka: Kafka{
				Brokers:        getEnvAsStringSlice("KAFKA_BROKERS", []string{"127.0.0.1:9092"}),
				ClientID:       getEnv("KAFKA_CLIENT_ID", "orderdesk"),
				Topic:          getEnv("KAFKA_TOPIC", "orders.events"),
				CommitInterval: getEnvAsDuration("KAFKA_COMMIT_INTERVAL", time.Second),
				MinBytes:       getEnvAsInt("KAFKA_MIN_BYTES", 10e3),
				MaxBytes:       getEnvAsInt("KAFKA_MAX_BYTES", 10e6),
				ConnectTimeout: getEnvAsDuration("KAFKA_CONNECT_TIMEOUT", 5*time.Second),
			},
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "orderdesk-worker"),
			Workers: Worker{
				Enabled:     getEnvAsBool("WORKER_ENABLED", true),
				Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 2),
			},
		},
		Database: Database{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			WriterDSN:       getEnv("DB_WRITER_DSN", "file:orderdesk.db"),
			ReaderDSN:       getEnv("DB_READER_DSN", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Minute*5),
		},
		Observability: Observability{
			ServiceName:      getEnv("OBS_SERVICE_NAME", "orderdesk"),
			ServiceVersion:   getEnv("OBS_SERVICE_VERSION", "0.1.0"),
			Environment:      getEnv("OBS_ENVIRONMENT", "local"),
			LogLevel:         getEnv("OBS_LOG_LEVEL", "info"),
			LogEncoding:      getEnv("OBS_LOG_ENCODING", "json"),
			EnableTracing:    getEnvAsBool("OBS_ENABLE_TRACING", false),
			TraceExporter:    getEnv("OBS_TRACE_EXPORTER", "stdout"),
			TraceEndpoint:    getEnv("OBS_OTLP_ENDPOINT", "localhost:4317"),
			TraceInsecure:    getEnvAsBool("OBS_OTLP_INSECURE", true),
			TraceSampleRatio: getEnvAsFloat("OBS_TRACE_SAMPLE_RATIO", 1),
			EnableMetrics:    getEnvAsBool("OBS_ENABLE_METRICS", true),
			MetricsExporter:  getEnv("OBS_METRICS_EXPORTER", "prometheus"),
			PrometheusPath:   getEnv("OBS_PROMETHEUS_PATH", "/metrics"),
		},
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.HTTP.Port <= 0 {
		return fmt.Errorf("invalid HTTP port: %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.RateLimit < 0 {
		return fmt.Errorf("invalid HTTP rate limit: %v", cfg.HTTP.RateLimit)
	}
	if cfg.HTTP.RateLimit > 0 && cfg.HTTP.RateBurst <= 0 {
		cfg.HTTP.RateBurst = int(cfg.HTTP.RateLimit) + 1
	}

	if cfg.GRPC.Enabled && cfg.GRPC.Port <= 0 {
		return fmt.Errorf("invalid gRPC port: %d", cfg.GRPC.Port)
	}

	if !cfg.Cache.Enabled {
		cfg.Cache.Driver = "noop"
	}
	switch cfg.Cache.Driver {
	case "redis", "noop":
	default:
		return fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
	if cfg.Cache.Driver == "redis" && cfg.Cache.Redis.Addr == "" {
		return fmt.Errorf("missing REDIS_ADDR for redis cache")
	}
	if cfg.Cache.DefaultTTL <= 0 {
		cfg.Cache.DefaultTTL = time.Minute * 5
	}

	if !cfg.Messaging.Enabled {
		cfg.Messaging.Driver = "noop"
	}
	switch cfg.Messaging.Driver {
	case "kafka":
		if len(cfg.Messaging.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS must be provided")
		}
		if cfg.Messaging.Kafka.Topic == "" {
			return fmt.Errorf("KAFKA_TOPIC must be provided")
		}
		if cfg.Messaging.ConsumerGroup == "" {
			return fmt.Errorf("KAFKA_CONSUMER_GROUP must be provided")
		}
	case "noop":
	default:
		return fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
	if cfg.Messaging.Workers.Concurrency <= 0 {
		cfg.Messaging.Workers.Concurrency = 1
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	switch cfg.Database.Driver {
	case "sqlite", "postgres", "pgx", "mysql":
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if cfg.Database.WriterDSN == "" {
		return fmt.Errorf("missing DB_WRITER_DSN")
	}
	if cfg.Database.ReaderDSN == "" {
		cfg.Database.ReaderDSN = cfg.Database.WriterDSN
	}

	obs := &cfg.Observability
	obs.LogLevel = lowerOr(obs.LogLevel, "info")
	obs.LogEncoding = lowerOr(obs.LogEncoding, "json")
	obs.TraceExporter = lowerOr(obs.TraceExporter, "stdout")
	obs.MetricsExporter = lowerOr(obs.MetricsExporter, "prometheus")
	if obs.TraceSampleRatio < 0 || obs.TraceSampleRatio > 1 {
		return fmt.Errorf("OBS_TRACE_SAMPLE_RATIO must be within [0, 1], got %v", obs.TraceSampleRatio)
	}
	if obs.PrometheusPath == "" {
		obs.PrometheusPath = "/metrics"
	} else if !strings.HasPrefix(obs.PrometheusPath, "/") {
		obs.PrometheusPath = "/" + obs.PrometheusPath
	}

	return nil
}
