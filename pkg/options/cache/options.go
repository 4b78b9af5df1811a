// Package cache provides cache configuration options.
package cache

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-search/pkg/options"
	redisopts "github.com/kart-io/sentinel-search/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

// 缓存后端类型
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// DirEnv 兼容旧部署的缓存目录环境变量。
const DirEnv = "CACHE_DIR"

// Options 查询/搜索/向量三分区缓存配置。
type Options struct {
	// Enabled 是否启用缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Backend 存储后端：memory、badger、redis。
	Backend string `json:"backend" mapstructure:"backend"`

	// Dir badger 后端的数据目录。
	Dir string `json:"dir" mapstructure:"dir"`

	// TTL 查询与搜索分区的过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// EmbeddingTTLFactor 向量分区 TTL 相对 TTL 的倍数。
	EmbeddingTTLFactor int `json:"embedding-ttl-factor" mapstructure:"embedding-ttl-factor"`

	// KeyPrefix 缓存键前缀（redis 后端）。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// Redis Redis 连接配置。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions 创建默认缓存配置。
func NewOptions() *Options {
	return &Options{
		Enabled:            true,
		Backend:            BackendMemory,
		Dir:                "./cache",
		TTL:                time.Hour,
		EmbeddingTTLFactor: 24,
		KeyPrefix:          "search:",
		Redis:              redisopts.NewOptions(),
	}
}

// EmbeddingTTL 返回向量分区的过期时间。
func (o *Options) EmbeddingTTL() time.Duration {
	return o.TTL * time.Duration(o.EmbeddingTTLFactor)
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "cache."

	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable the query/search/embedding cache.")
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Cache backend (memory|badger|redis).")
	fs.StringVar(&o.Dir, p+"dir", o.Dir, "Data directory for the badger backend (env "+DirEnv+").")
	fs.DurationVar(&o.TTL, p+"ttl", o.TTL, "TTL of query and search cache entries.")
	fs.IntVar(&o.EmbeddingTTLFactor, p+"embedding-ttl-factor", o.EmbeddingTTLFactor, "Embedding TTL as a multiple of cache.ttl.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Key prefix for the redis backend.")

	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	o.Redis.AddFlags(fs, append(prefixes, "cache")...)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	switch o.Backend {
	case BackendMemory:
	case BackendBadger:
		if o.Dir == "" {
			errs = append(errs, fmt.Errorf("cache.dir is required for the badger backend"))
		}
	case BackendRedis:
		errs = append(errs, o.Redis.Validate()...)
	default:
		errs = append(errs, fmt.Errorf("unknown cache.backend %q", o.Backend))
	}
	if o.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive"))
	}
	if o.EmbeddingTTLFactor <= 0 {
		errs = append(errs, fmt.Errorf("cache.embedding-ttl-factor must be positive"))
	}
	return errs
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if v := os.Getenv(DirEnv); v != "" && o.Dir == NewOptions().Dir {
		o.Dir = v
	}
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return o.Redis.Complete()
}
