package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls [][]string
	err   error
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls = append(e.calls, texts)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (e *countingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (e *countingEmbedder) Name() string { return "counting" }

func TestCachedEmbedder_OnlyMissesReachProvider(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend(0), DefaultConfig())
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, store)

	v, err := e.Embed(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, v)

	v, err = e.Embed(ctx, []string{"ccc", "a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3}, {1}, {2}}, v)

	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"ccc"}, inner.calls[1])

	single, err := e.EmbedSingle(ctx, "bb")
	require.NoError(t, err)
	assert.Equal(t, []float32{2}, single)
	assert.Len(t, inner.calls, 2)

	assert.Equal(t, "counting-cached", e.Name())
	assert.Equal(t, 3, store.Stats(ctx).EmbeddingCacheSize)
}

func TestCachedEmbedder_ProviderError(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("boom")}
	e := NewCachedEmbedder(inner, NewStore(NewMemoryBackend(0), DefaultConfig()))

	_, err := e.Embed(context.Background(), []string{"x"})
	assert.EqualError(t, err, "boom")
}

func TestCachedEmbedder_NilStore(t *testing.T) {
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, nil)

	_, err := e.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, inner.calls, 2)
}
