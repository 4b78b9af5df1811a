package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-search/internal/model"
)

func setupTestRedis(t *testing.T) *goredis.Client {
	client := goredis.NewClient(&goredis.Options{
		Addr: "localhost:6379",
		DB:   15, // 测试专用数据库
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis 不可用，跳过测试")
	}
	client.FlushDB(ctx)
	return client
}

// backends 返回所有可用后端，Redis 不可用时跳过对应子测试。
func forEachBackend(t *testing.T, fn func(t *testing.T, b Backend)) {
	t.Run("memory", func(t *testing.T) {
		b := NewMemoryBackend(0)
		defer func() { _ = b.Close() }()
		fn(t, b)
	})
	t.Run("badger", func(t *testing.T) {
		b, err := OpenBadgerBackend("", true)
		require.NoError(t, err)
		defer func() { _ = b.Close() }()
		fn(t, b)
	})
	t.Run("redis", func(t *testing.T) {
		client := setupTestRedis(t)
		b := NewRedisBackend(client, "test:search:", true)
		defer func() { _ = b.Close() }()
		fn(t, b)
	})
}

func TestQueryKey(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{"大小写与空白归一化", "  Hello World ", "hello world", true},
		{"不同查询", "golang", "rust", false},
		{"内部空白保留", "a b", "a  b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, QueryKey(tt.a) == QueryKey(tt.b))
			assert.Len(t, QueryKey(tt.a), 64)
		})
	}
}

func TestTextKey_NoNormalization(t *testing.T) {
	assert.NotEqual(t, TextKey("Hello"), TextKey("hello"))
	assert.NotEqual(t, TextKey(" x"), TextKey("x"))
}

func TestFormatHitRate(t *testing.T) {
	assert.Equal(t, "0%", FormatHitRate(0, 0))
	assert.Equal(t, "50.00%", FormatHitRate(1, 1))
	assert.Equal(t, "33.33%", FormatHitRate(1, 2))
	assert.Equal(t, "100.00%", FormatHitRate(3, 0))
}

func TestStore_QueryResult(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		s := NewStore(b, DefaultConfig())

		_, ok := s.GetQueryResult(ctx, "What is Go?")
		assert.False(t, ok)

		want := &model.QueryResult{
			Query:       "What is Go?",
			Answer:      "Go is a programming language [1].",
			Sources:     []model.Source{{Title: "Go", URL: "https://go.dev", Domain: "go.dev"}},
			Suggestions: []string{"go generics", "go modules"},
		}
		require.NoError(t, s.SetQueryResult(ctx, "What is Go?", want))

		got, ok := s.GetQueryResult(ctx, "  what is go?  ")
		require.True(t, ok)
		assert.Equal(t, want, got)

		stats := s.Stats(ctx)
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
		assert.Equal(t, "50.00%", stats.HitRate)
		assert.Equal(t, 1, stats.QueryCacheSize)
		assert.Equal(t, 0, stats.SearchCacheSize)
	})
}

func TestStore_EmptyValueIsMiss(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(0), DefaultConfig())

	require.NoError(t, s.SetQueryResult(ctx, "q", &model.QueryResult{Query: "q"}))
	_, ok := s.GetQueryResult(ctx, "q")
	assert.False(t, ok)

	require.NoError(t, s.SetSearchResults(ctx, "q", &model.SearchBundle{Query: "q"}))
	_, ok = s.GetSearchResults(ctx, "q")
	assert.False(t, ok)

	assert.Equal(t, int64(2), s.Stats(ctx).Misses)
}

func TestStore_SearchResults(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		s := NewStore(b, DefaultConfig())

		bundle := &model.SearchBundle{
			Query:         "golang",
			SearchResults: []model.SearchResult{{Title: "Go", URL: "https://go.dev", Snippet: "The Go language"}},
			ExtractedContents: []model.Document{
				{URL: "https://go.dev", Title: "Go", Content: "Go is an open source language.", Domain: "go.dev"},
			},
		}
		require.NoError(t, s.SetSearchResults(ctx, "golang", bundle))

		got, ok := s.GetSearchResults(ctx, "GOLANG")
		require.True(t, ok)
		assert.Equal(t, bundle, got)
		assert.Equal(t, 1, s.Stats(ctx).SearchCacheSize)
	})
}

func TestStore_EmbeddingNotCounted(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		s := NewStore(b, DefaultConfig())

		_, ok := s.GetEmbedding(ctx, "chunk text")
		assert.False(t, ok)

		vec := []float32{0.1, 0.2, 0.3}
		require.NoError(t, s.SetEmbedding(ctx, "chunk text", vec))

		got, ok := s.GetEmbedding(ctx, "chunk text")
		require.True(t, ok)
		assert.InDeltaSlice(t, vec, got, 1e-6)

		_, ok = s.GetEmbedding(ctx, "Chunk text")
		assert.False(t, ok)

		stats := s.Stats(ctx)
		assert.Zero(t, stats.Hits)
		assert.Zero(t, stats.Misses)
		assert.Equal(t, "0%", stats.HitRate)
		assert.Equal(t, 1, stats.EmbeddingCacheSize)
	})
}

func TestStore_ClearAll(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		s := NewStore(b, DefaultConfig())

		require.NoError(t, s.SetQueryResult(ctx, "a", &model.QueryResult{Query: "a", Answer: "x"}))
		require.NoError(t, s.SetSearchResults(ctx, "a", &model.SearchBundle{Query: "a", SearchResults: []model.SearchResult{{URL: "u"}}}))
		require.NoError(t, s.SetEmbedding(ctx, "a", []float32{1}))
		s.GetQueryResult(ctx, "a")
		s.GetQueryResult(ctx, "b")

		require.NoError(t, s.ClearAll(ctx))
		// 幂等
		require.NoError(t, s.ClearAll(ctx))

		stats := s.Stats(ctx)
		assert.Equal(t, model.CacheStats{HitRate: "0%"}, stats)
	})
}

func TestStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(0)
	s := NewStore(b, Config{TTL: 20 * time.Millisecond, EmbeddingTTL: time.Hour})

	require.NoError(t, s.SetQueryResult(ctx, "q", &model.QueryResult{Query: "q", Answer: "a"}))
	require.NoError(t, s.SetEmbedding(ctx, "q", []float32{1}))

	time.Sleep(40 * time.Millisecond)

	_, ok := s.GetQueryResult(ctx, "q")
	assert.False(t, ok)
	_, ok = s.GetEmbedding(ctx, "q")
	assert.True(t, ok)
}

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore(NewMemoryBackend(0), Config{TTL: time.Minute})
	assert.Equal(t, time.Minute, s.cfg.TTL)
	assert.Equal(t, 24*time.Minute, s.cfg.EmbeddingTTL)

	s = NewStore(NewMemoryBackend(0), Config{})
	assert.Equal(t, DefaultConfig(), s.cfg)
}

func TestStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(0), DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.SetQueryResult(ctx, "q", &model.QueryResult{Query: "q", Answer: "a"})
				s.GetQueryResult(ctx, "q")
				if j%10 == 0 {
					_ = s.ClearAll(ctx)
				}
			}
		}(i)
	}
	wg.Wait()

	stats := s.Stats(ctx)
	assert.GreaterOrEqual(t, stats.Hits+stats.Misses, int64(0))
}
