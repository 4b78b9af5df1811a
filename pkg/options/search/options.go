// Package search provides options for the retrieval pipeline.
package search

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-search/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 检索管线配置。
type Options struct {
	// DefaultProvider 未指定供应商时使用，且只有它的搜索结果会被缓存。
	DefaultProvider string `json:"default-provider" mapstructure:"default-provider"`
	// FanoutProviders provider=all 时并发查询的供应商列表。
	FanoutProviders []string `json:"fanout-providers" mapstructure:"fanout-providers"`
	// MaxResults 每个供应商返回的最大结果数。
	MaxResults int `json:"max-results" mapstructure:"max-results"`
	// MaxContentLength 单个页面正文的最大字符数。
	MaxContentLength int `json:"max-content-length" mapstructure:"max-content-length"`
	// FetchTimeout 单次供应商查询或页面抓取的超时。
	FetchTimeout time.Duration `json:"fetch-timeout" mapstructure:"fetch-timeout"`
	// FetchConcurrency 页面抓取并发度。
	FetchConcurrency int `json:"fetch-concurrency" mapstructure:"fetch-concurrency"`
	// FanoutWorkers 单个 provider=all 请求同时执行的供应商数。
	FanoutWorkers int `json:"fanout-workers" mapstructure:"fanout-workers"`
	// RateLimit 每个抓取型供应商每秒请求数，0 表示不限。
	RateLimit float64 `json:"rate-limit" mapstructure:"rate-limit"`
	// ChunkSize 分块窗口大小（字符）。
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`
	// ChunkOverlap 相邻分块重叠字符数。
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`
	// TopK 语义检索返回的分块数。
	TopK int `json:"top-k" mapstructure:"top-k"`
	// MaxContextChunks 拼入上下文的最大分块数。
	MaxContextChunks int `json:"max-context-chunks" mapstructure:"max-context-chunks"`
	// SuggestionCount 追问建议数量。
	SuggestionCount int `json:"suggestion-count" mapstructure:"suggestion-count"`
}

// NewOptions 创建默认检索配置。
func NewOptions() *Options {
	return &Options{
		DefaultProvider:  "wikipedia",
		FanoutProviders:  []string{"google", "duckduckgo", "wikipedia"},
		MaxResults:       10,
		MaxContentLength: 5000,
		FetchTimeout:     10 * time.Second,
		FetchConcurrency: 10,
		FanoutWorkers:    3,
		RateLimit:        2,
		ChunkSize:        500,
		ChunkOverlap:     50,
		TopK:             10,
		MaxContextChunks: 5,
		SuggestionCount:  3,
	}
}

// AddFlags adds flags for search options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "search."

	fs.StringVar(&o.DefaultProvider, p+"default-provider", o.DefaultProvider, "Default search provider.")
	fs.StringSliceVar(&o.FanoutProviders, p+"fanout-providers", o.FanoutProviders, "Providers queried when provider=all.")
	fs.IntVar(&o.MaxResults, p+"max-results", o.MaxResults, "Maximum results per provider.")
	fs.IntVar(&o.MaxContentLength, p+"max-content-length", o.MaxContentLength, "Maximum characters extracted per page.")
	fs.DurationVar(&o.FetchTimeout, p+"fetch-timeout", o.FetchTimeout, "Timeout of one provider call or page fetch.")
	fs.IntVar(&o.FetchConcurrency, p+"fetch-concurrency", o.FetchConcurrency, "Concurrent page fetches per query.")
	fs.IntVar(&o.FanoutWorkers, p+"fanout-workers", o.FanoutWorkers, "Concurrent providers per request when provider=all.")
	fs.Float64Var(&o.RateLimit, p+"rate-limit", o.RateLimit, "Requests per second per scraping provider, 0 disables.")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Chunk window size in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Overlap between consecutive chunks.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of chunks retrieved per query.")
	fs.IntVar(&o.MaxContextChunks, p+"max-context-chunks", o.MaxContextChunks, "Chunks included in the answer context.")
	fs.IntVar(&o.SuggestionCount, p+"suggestion-count", o.SuggestionCount, "Follow-up suggestions generated per query.")
}

// Validate validates the search options.
func (o *Options) Validate() []error {
	var errs []error
	if o.DefaultProvider == "" || o.DefaultProvider == "all" {
		errs = append(errs, fmt.Errorf("search.default-provider must name a single provider"))
	}
	if len(o.FanoutProviders) == 0 {
		errs = append(errs, fmt.Errorf("search.fanout-providers must not be empty"))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("search.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("search.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.TopK <= 0 || o.MaxContextChunks <= 0 {
		errs = append(errs, fmt.Errorf("search.top-k and search.max-context-chunks must be positive"))
	}
	if o.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("search.fetch-timeout must be positive"))
	}
	if o.FanoutWorkers <= 0 || o.FetchConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("search.fanout-workers and search.fetch-concurrency must be positive"))
	}
	return errs
}
