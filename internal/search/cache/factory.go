package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	cacheopts "github.com/kart-io/sentinel-search/pkg/options/cache"
)

const (
	janitorInterval = time.Minute
	pingTimeout     = 3 * time.Second
)

// Open 按配置创建缓存。redis 不可达时降级为进程内缓存。
func Open(ctx context.Context, opts *cacheopts.Options) (*Store, error) {
	cfg := Config{TTL: opts.TTL, EmbeddingTTL: opts.EmbeddingTTL()}

	if !opts.Enabled {
		logger.Infow("cache disabled")
		return NewStore(noopBackend{}, cfg), nil
	}

	var backend Backend
	switch opts.Backend {
	case cacheopts.BackendMemory:
		backend = NewMemoryBackend(janitorInterval)
	case cacheopts.BackendBadger:
		b, err := OpenBadgerBackend(opts.Dir, false)
		if err != nil {
			return nil, err
		}
		backend = b
	case cacheopts.BackendRedis:
		backend = openRedis(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}

	logger.Infow("cache initialized",
		"backend", opts.Backend,
		"ttl", cfg.TTL,
		"embedding_ttl", cfg.EmbeddingTTL,
	)
	return NewStore(backend, cfg), nil
}

func openRedis(ctx context.Context, opts *cacheopts.Options) Backend {
	r := opts.Redis
	client := goredis.NewClient(&goredis.Options{
		Addr:         r.Addr(),
		Password:     r.Password,
		DB:           r.Database,
		MaxRetries:   r.MaxRetries,
		PoolSize:     r.PoolSize,
		MinIdleConns: r.MinIdleConns,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warnw("failed to connect to redis, falling back to memory cache",
			"addr", r.Addr(),
			"error", err.Error(),
		)
		_ = client.Close()
		return NewMemoryBackend(janitorInterval)
	}
	return NewRedisBackend(client, opts.KeyPrefix, true)
}

// noopBackend 缓存关闭时使用，所有读取均未命中。
type noopBackend struct{}

func (noopBackend) Get(context.Context, Partition, string) ([]byte, bool, error) {
	return nil, false, nil
}
func (noopBackend) Set(context.Context, Partition, string, []byte, time.Duration) error { return nil }
func (noopBackend) Len(context.Context, Partition) (int, error)                       { return 0, nil }
func (noopBackend) Clear(context.Context, Partition) error                            { return nil }
func (noopBackend) Close() error                                                      { return nil }
