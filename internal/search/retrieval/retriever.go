package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-search/internal/model"
	"github.com/kart-io/sentinel-search/pkg/llm"
)

// DefaultMaxContextChunks 上下文最多拼接的分块数。
const DefaultMaxContextChunks = 5

// Config 检索器配置。
type Config struct {
	// ChunkSize 分块大小（字符）。
	ChunkSize int
	// ChunkOverlap 相邻分块重叠字符数。
	ChunkOverlap int
}

// Index 一次请求内建立的分块索引，请求结束即丢弃。
type Index struct {
	chunks []model.Chunk
	flat   *FlatIndex
}

// Len 返回分块数。
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.chunks)
}

// Retriever 负责分块、向量化与排序。
type Retriever struct {
	embedder llm.EmbeddingProvider
	config   Config
}

// NewRetriever 创建检索器。
func NewRetriever(embedder llm.EmbeddingProvider, config Config) *Retriever {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = DefaultChunkOverlap
	}
	return &Retriever{embedder: embedder, config: config}
}

// Chunk 切分全部文档，分块按文档顺序排列。
func (r *Retriever) Chunk(docs []model.Document) []model.Chunk {
	var chunks []model.Chunk
	for _, doc := range docs {
		for _, text := range ChunkText(doc.Content, r.config.ChunkSize, r.config.ChunkOverlap) {
			chunks = append(chunks, model.Chunk{Text: text, URL: doc.URL, Domain: doc.Domain})
		}
	}
	return chunks
}

// Index 为分块生成向量并建立扁平索引。
func (r *Retriever) Index(ctx context.Context, chunks []model.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return &Index{}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	start := time.Now()
	vecs, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: want %d, got %d", len(chunks), len(vecs))
	}
	if len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embedding provider returned empty vectors")
	}

	flat := NewFlatIndex(len(vecs[0]))
	if err := flat.Add(vecs...); err != nil {
		return nil, err
	}

	logger.Debugw("chunk index built",
		"chunks", len(chunks),
		"dim", flat.Dim(),
		"elapsed", time.Since(start),
	)
	return &Index{chunks: chunks, flat: flat}, nil
}

// Search 返回与查询最相近的 min(topK, 分块数) 个分块，Rank 从 1 开始。
func (r *Retriever) Search(ctx context.Context, idx *Index, query string, topK int) ([]model.RetrievedChunk, error) {
	if idx.Len() == 0 || topK <= 0 {
		return []model.RetrievedChunk{}, nil
	}

	qv, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := idx.flat.Search(qv, topK)
	if err != nil {
		return nil, err
	}

	out := make([]model.RetrievedChunk, len(hits))
	for i, h := range hits {
		c := idx.chunks[h.ID]
		out[i] = model.RetrievedChunk{
			Chunk: c.Text,
			Score: h.Distance,
			Rank:  i + 1,
			Index: h.ID,
			Source: model.Source{
				URL:    c.URL,
				Domain: c.Domain,
			},
		}
	}
	return out, nil
}

// Process 切分、索引并检索全部文档。
// Sources 为全部输入文档按 URL 去重后的列表，保持首次出现顺序。
func (r *Retriever) Process(ctx context.Context, docs []model.Document, query string, topK int) (*model.RetrievalResult, error) {
	chunks := r.Chunk(docs)
	if len(chunks) == 0 {
		return &model.RetrievalResult{
			Query:   query,
			Chunks:  []model.RetrievedChunk{},
			Sources: []model.Source{},
		}, nil
	}

	idx, err := r.Index(ctx, chunks)
	if err != nil {
		return nil, err
	}

	retrieved, err := r.Search(ctx, idx, query, topK)
	if err != nil {
		return nil, err
	}

	return &model.RetrievalResult{
		Query:       query,
		Chunks:      retrieved,
		TotalChunks: len(chunks),
		Sources:     DedupSources(docs),
	}, nil
}

// DedupSources 按 URL 去重。位置取首次出现，字段取最后一次出现。
func DedupSources(docs []model.Document) []model.Source {
	pos := make(map[string]int, len(docs))
	out := make([]model.Source, 0, len(docs))
	for _, d := range docs {
		if i, ok := pos[d.URL]; ok {
			out[i] = model.SourceOf(d)
			continue
		}
		pos[d.URL] = len(out)
		out = append(out, model.SourceOf(d))
	}
	return out
}

// ContextSources 返回为前 maxChunks 个分块提供内容的来源，保持 all 中的顺序。
// 没有任何分块进入上下文时返回 all。
func ContextSources(chunks []model.RetrievedChunk, maxChunks int, all []model.Source) []model.Source {
	if len(chunks) > maxChunks {
		chunks = chunks[:max(maxChunks, 0)]
	}
	used := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		used[c.Source.URL] = struct{}{}
	}
	if len(used) == 0 {
		return all
	}

	out := make([]model.Source, 0, len(used))
	for _, s := range all {
		if _, ok := used[s.URL]; ok {
			out = append(out, s)
		}
	}
	return out
}

// FormatContext 按排名拼接至多 maxChunks 个分块，每块以 "[Source N - domain]" 开头。
// 没有分块时返回空串。
func FormatContext(chunks []model.RetrievedChunk, maxChunks int) string {
	if len(chunks) == 0 || maxChunks <= 0 {
		return ""
	}
	if len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[Source %d - %s]\n%s\n", i+1, c.Source.Domain, c.Chunk)
	}
	return strings.Join(parts, "\n")
}
