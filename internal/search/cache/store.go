// Package cache implements the three-partition search cache: query results,
// search results and embeddings, each with its own TTL, plus hit/miss
// accounting for the query and search partitions.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-search/internal/model"
	"github.com/kart-io/sentinel-search/pkg/utils/json"
)

// Partition 缓存分区，各分区键空间与 TTL 相互独立。
type Partition string

const (
	PartitionQuery     Partition = "query"
	PartitionSearch    Partition = "search"
	PartitionEmbedding Partition = "embedding"
)

// Partitions lists every partition.
var Partitions = []Partition{PartitionQuery, PartitionSearch, PartitionEmbedding}

// Backend 分区化的字节存储。写入必须是整体替换。
type Backend interface {
	Get(ctx context.Context, p Partition, key string) ([]byte, bool, error)
	Set(ctx context.Context, p Partition, key string, value []byte, ttl time.Duration) error
	Len(ctx context.Context, p Partition) (int, error)
	Clear(ctx context.Context, p Partition) error
	Close() error
}

// QueryKey 归一化（trim + lower）后取 SHA-256 十六进制。
func QueryKey(query string) string {
	return hashKey(model.NormalizeQuery(query))
}

// TextKey 对原文取 SHA-256 十六进制，不做归一化。
func TextKey(text string) string {
	return hashKey(text)
}

func hashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Config 缓存 TTL 配置。
type Config struct {
	TTL          time.Duration
	EmbeddingTTL time.Duration
}

// DefaultConfig 查询与搜索 1 小时，向量 24 小时。
func DefaultConfig() Config {
	return Config{TTL: time.Hour, EmbeddingTTL: 24 * time.Hour}
}

// Store 三分区缓存。可被多个管线并发使用。
type Store struct {
	backend Backend
	cfg     Config

	hits   atomic.Int64
	misses atomic.Int64

	// ClearAll 持写锁，其余操作持读锁，使清空对调用方表现为原子操作。
	mu sync.RWMutex
}

// NewStore 创建缓存。
func NewStore(backend Backend, cfg Config) *Store {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.EmbeddingTTL <= 0 {
		cfg.EmbeddingTTL = cfg.TTL * 24
	}
	return &Store{backend: backend, cfg: cfg}
}

// GetQueryResult 查询分区读取，计入命中统计。
func (s *Store) GetQueryResult(ctx context.Context, query string) (*model.QueryResult, bool) {
	var out model.QueryResult
	if !s.getCounted(ctx, PartitionQuery, QueryKey(query), &out) || out.IsEmpty() {
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return &out, true
}

// SetQueryResult 查询分区写入。
func (s *Store) SetQueryResult(ctx context.Context, query string, result *model.QueryResult) error {
	return s.set(ctx, PartitionQuery, QueryKey(query), result, s.cfg.TTL)
}

// GetSearchResults 搜索分区读取，计入命中统计。
func (s *Store) GetSearchResults(ctx context.Context, query string) (*model.SearchBundle, bool) {
	var out model.SearchBundle
	if !s.getCounted(ctx, PartitionSearch, QueryKey(query), &out) || out.IsEmpty() {
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return &out, true
}

// SetSearchResults 搜索分区写入。
func (s *Store) SetSearchResults(ctx context.Context, query string, bundle *model.SearchBundle) error {
	return s.set(ctx, PartitionSearch, QueryKey(query), bundle, s.cfg.TTL)
}

// GetEmbedding 向量分区读取，不计入命中统计。
func (s *Store) GetEmbedding(ctx context.Context, text string) ([]float32, bool) {
	var vec []float32
	if !s.getCounted(ctx, PartitionEmbedding, TextKey(text), &vec) || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

// SetEmbedding 向量分区写入。
func (s *Store) SetEmbedding(ctx context.Context, text string, vec []float32) error {
	return s.set(ctx, PartitionEmbedding, TextKey(text), vec, s.cfg.EmbeddingTTL)
}

func (s *Store) getCounted(ctx context.Context, p Partition, key string, v any) bool {
	s.mu.RLock()
	data, ok, err := s.backend.Get(ctx, p, key)
	s.mu.RUnlock()

	if err != nil {
		logger.Warnw("cache get failed", "partition", string(p), "key", key, "error", err.Error())
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Warnw("failed to unmarshal cached value", "partition", string(p), "key", key, "error", err.Error())
		return false
	}
	return true
}

func (s *Store) set(ctx context.Context, p Partition, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s cache value: %w", p, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.backend.Set(ctx, p, key, data, ttl); err != nil {
		return fmt.Errorf("set %s cache: %w", p, err)
	}
	logger.Debugw("cache set", "partition", string(p), "key", key, "ttl", ttl)
	return nil
}

// Stats 返回命中统计与分区大小。
func (s *Store) Stats(ctx context.Context) model.CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, misses := s.hits.Load(), s.misses.Load()
	stats := model.CacheStats{
		Hits:    hits,
		Misses:  misses,
		HitRate: FormatHitRate(hits, misses),
	}
	stats.QueryCacheSize = s.size(ctx, PartitionQuery)
	stats.SearchCacheSize = s.size(ctx, PartitionSearch)
	stats.EmbeddingCacheSize = s.size(ctx, PartitionEmbedding)
	return stats
}

func (s *Store) size(ctx context.Context, p Partition) int {
	n, err := s.backend.Len(ctx, p)
	if err != nil {
		logger.Warnw("cache size failed", "partition", string(p), "error", err.Error())
		return 0
	}
	return n
}

// FormatHitRate 返回 "NN.NN%"，无请求时返回 "0%"。
func FormatHitRate(hits, misses int64) string {
	total := hits + misses
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(hits)/float64(total)*100)
}

// ClearAll 清空全部分区并重置计数器。重复调用安全。
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, p := range Partitions {
		if err := s.backend.Clear(ctx, p); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("clear %s cache: %w", p, err)
		}
	}
	s.hits.Store(0)
	s.misses.Store(0)

	logger.Infow("cache cleared")
	return firstErr
}

// Close 关闭底层存储。
func (s *Store) Close() error {
	return s.backend.Close()
}
