package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
)

// ErrCacheMiss is returned by Get when nothing is stored under the key.
var ErrCacheMiss = errors.New("cache miss")

var errEmptyKey = errors.New("cache key is required")

// Store holds serialized order snapshots keyed by order id.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete evicts every given key; missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// Module provides the cache store to the Fx graph.
var Module = fx.Provide(NewStore)

// NewStore picks the backend named by cfg.Cache.Driver. The noop backend always misses.
func NewStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Cache.Driver {
	case "noop":
		logger.Info("order cache disabled")
		return disabled{}, nil
	case "redis":
		return newRedis(lc, cfg.Cache, logger), nil
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
}

type disabled struct{}

func (disabled) Get(context.Context, string) ([]byte, error)              { return nil, ErrCacheMiss }
func (disabled) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (disabled) Delete(context.Context, ...string) error                  { return nil }

type redisStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

func newRedis(lc fx.Lifecycle, cfg config.Cache, logger *zap.Logger) *redisStore {
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		PoolSize:    cfg.Redis.PoolSize,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	s := &redisStore{client: client, prefix: cfg.Redis.KeyPrefix, ttl: cfg.DefaultTTL}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
			}
			logger.Info("order cache connected",
				zap.String("addr", cfg.Redis.Addr),
				zap.String("prefix", cfg.Redis.KeyPrefix),
				zap.Duration("ttl", cfg.DefaultTTL),
			)
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return s
}

func (s *redisStore) key(k string) string {
	return s.prefix + k
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrCacheMiss
	}
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, ErrCacheMiss
	case err != nil:
		return nil, err
	}
	return val, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errEmptyKey
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

// Delete unlinks the given keys; empty keys are skipped.
func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			full = append(full, s.key(k))
		}
	}
	if len(full) == 0 {
		return nil
	}
	return s.client.Unlink(ctx, full...).Err()
}
