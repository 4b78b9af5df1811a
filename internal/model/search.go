package model

import (
	"strings"
)

// ProviderAll 表示在固定供应商列表上并发扇出。
const ProviderAll = "all"

// Query 用户查询。Normalized 用于推导缓存键。
type Query struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
}

// NewQuery 创建查询并计算归一化形式。
func NewQuery(raw string) Query {
	return Query{Raw: raw, Normalized: NormalizeQuery(raw)}
}

// NormalizeQuery 去除首尾空白并转为小写。
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// QueryAnalysis 查询分析结果，创建后不再修改。
type QueryAnalysis struct {
	Intent        string   `json:"intent"`
	Entities      []string `json:"entities"`
	NeedsRealtime bool     `json:"needs_realtime"`
	SearchQueries []string `json:"search_queries"`
	ProviderHint  string   `json:"provider_hint,omitempty"`
}

// PrimaryQuery 返回首个改写查询。
func (a *QueryAnalysis) PrimaryQuery() string {
	if len(a.SearchQueries) == 0 {
		return ""
	}
	return a.SearchQueries[0]
}

// SearchResult 供应商返回的一条搜索结果。
type SearchResult struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Provider string `json:"provider,omitempty"`
}

// Document 抓取并抽取正文后的页面。
type Document struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Domain  string `json:"domain"`
}

// Source 返回给调用方的引用来源。
type Source struct {
	Title  string `json:"title,omitempty"`
	URL    string `json:"url"`
	Domain string `json:"domain"`
}

// Label 返回引用标签：标题、域名或 URL 中第一个非空者。
func (s Source) Label() string {
	switch {
	case s.Title != "":
		return s.Title
	case s.Domain != "":
		return s.Domain
	default:
		return s.URL
	}
}

// SourceOf 由文档生成来源。
func SourceOf(d Document) Source {
	return Source{Title: d.Title, URL: d.URL, Domain: d.Domain}
}

// Chunk 文档正文的一个分块，持有来源文档的引用。
type Chunk struct {
	Text   string `json:"text"`
	URL    string `json:"url"`
	Domain string `json:"domain"`
}

// RetrievedChunk 检索命中的分块。Score 为 L2 距离，越小越相似；Rank 从 1 开始。
type RetrievedChunk struct {
	Chunk  string  `json:"chunk"`
	Score  float32 `json:"score"`
	Rank   int     `json:"rank"`
	Index  int     `json:"index"`
	Source Source  `json:"source"`
}

// RetrievalResult 一次检索的输出。
type RetrievalResult struct {
	Query       string           `json:"query"`
	Chunks      []RetrievedChunk `json:"chunks"`
	TotalChunks int              `json:"total_chunks"`
	Sources     []Source         `json:"sources"`
}

// SearchBundle 搜索分区缓存的值，也是 search_and_extract 的输出。
type SearchBundle struct {
	Query             string         `json:"query"`
	SearchResults     []SearchResult `json:"search_results"`
	ExtractedContents []Document     `json:"extracted_contents"`
}

// IsEmpty 没有任何搜索结果。
func (b *SearchBundle) IsEmpty() bool {
	return b == nil || len(b.SearchResults) == 0
}

// QueryResult 查询分区缓存的值。
type QueryResult struct {
	Query       string   `json:"query"`
	Answer      string   `json:"answer"`
	Sources     []Source `json:"sources"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// IsEmpty 缓存值为空时视为未命中。
func (r *QueryResult) IsEmpty() bool {
	return r == nil || r.Answer == ""
}
