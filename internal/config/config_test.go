package config

import (
	"reflect"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("database driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.ReaderDSN != cfg.Database.WriterDSN {
		t.Errorf("reader dsn = %q, want writer dsn %q", cfg.Database.ReaderDSN, cfg.Database.WriterDSN)
	}
	if cfg.Cache.Driver != "noop" {
		t.Errorf("cache driver = %q, want noop when cache disabled", cfg.Cache.Driver)
	}
	if cfg.Messaging.Driver != "noop" {
		t.Errorf("messaging driver = %q, want noop when messaging disabled", cfg.Messaging.Driver)
	}
	if cfg.Cache.Redis.KeyPrefix != "orderdesk:" {
		t.Errorf("redis key prefix = %q, want orderdesk:", cfg.Cache.Redis.KeyPrefix)
	}
	if cfg.Observability.TraceSampleRatio != 1 {
		t.Errorf("trace sample ratio = %v, want 1", cfg.Observability.TraceSampleRatio)
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("HTTP_CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("HTTP_RATE_LIMIT", "5")
	t.Setenv("HTTP_RATE_BURST", "0")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_WRITER_DSN", "postgres://u:p@db:5432/orders")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("CACHE_DEFAULT_TTL", "-1s")
	t.Setenv("OBS_PROMETHEUS_PATH", "prom")
	t.Setenv("OBS_LOG_LEVEL", " DEBUG ")

	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if cfg.HTTP.Port != 9100 {
		t.Errorf("http port = %d, want 9100", cfg.HTTP.Port)
	}
	if want := []string{"http://a.test", "http://b.test"}; !reflect.DeepEqual(cfg.HTTP.CORSOrigins, want) {
		t.Errorf("cors origins = %v, want %v", cfg.HTTP.CORSOrigins, want)
	}
	if cfg.HTTP.RateBurst != 6 {
		t.Errorf("rate burst = %d, want 6", cfg.HTTP.RateBurst)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("database driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Cache.Driver != "redis" {
		t.Errorf("cache driver = %q, want redis", cfg.Cache.Driver)
	}
	if cfg.Cache.DefaultTTL != 5*time.Minute {
		t.Errorf("cache ttl = %v, want 5m", cfg.Cache.DefaultTTL)
	}
	if cfg.Observability.PrometheusPath != "/prom" {
		t.Errorf("prometheus path = %q, want /prom", cfg.Observability.PrometheusPath)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Observability.LogLevel)
	}
}

func TestNewRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "port", env: map[string]string{"HTTP_PORT": "0"}},
		{name: "database driver", env: map[string]string{"DB_DRIVER": "oracle"}},
		{name: "cache driver", env: map[string]string{"CACHE_ENABLED": "true", "CACHE_DRIVER": "memcached"}},
		{name: "messaging driver", env: map[string]string{"MESSAGING_ENABLED": "true", "MESSAGING_DRIVER": "nats"}},
		{name: "rate limit", env: map[string]string{"HTTP_RATE_LIMIT": "-2"}},
		{name: "sample ratio", env: map[string]string{"OBS_TRACE_SAMPLE_RATIO": "1.5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := New(); err == nil {
				t.Fatal("New() error = nil, want error")
			}
		})
	}
}
