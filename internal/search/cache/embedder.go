package cache

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-search/pkg/llm"
)

var _ llm.EmbeddingProvider = (*CachedEmbedder)(nil)

// CachedEmbedder 在 embedding 分区上包装 EmbeddingProvider，
// 仅对未命中的文本调用底层供应商。
type CachedEmbedder struct {
	provider llm.EmbeddingProvider
	store    *Store
}

// NewCachedEmbedder 创建带缓存的 embedder。store 为 nil 时直接透传。
func NewCachedEmbedder(provider llm.EmbeddingProvider, store *Store) *CachedEmbedder {
	return &CachedEmbedder{provider: provider, store: store}
}

// EmbedSingle 生成单个文本的向量。
func (c *CachedEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Embed 批量生成向量，结果顺序与输入一致。
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.store == nil {
		return c.provider.Embed(ctx, texts)
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if vec, ok := c.store.GetEmbedding(ctx, text); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		logger.Debugw("all embeddings from cache", "total", len(texts))
		return out, nil
	}

	logger.Debugw("embedding cache miss", "total", len(texts), "uncached", len(missTexts))
	vecs, err := c.provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedding count mismatch: want %d, got %d", len(missTexts), len(vecs))
	}

	for i, idx := range missIdx {
		out[idx] = vecs[i]
		if err := c.store.SetEmbedding(ctx, missTexts[i], vecs[i]); err != nil {
			logger.Warnw("failed to cache embedding", "error", err.Error())
		}
	}
	return out, nil
}

// Name 返回底层供应商名称。
func (c *CachedEmbedder) Name() string {
	return c.provider.Name() + "-cached"
}
