// Package fetcher 并发查询搜索供应商并抓取结果页面正文。
//
// 单个供应商或单个 URL 的失败只会被记录，不会中断整批请求。
package fetcher

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kart-io/sentinel-search/internal/model"
	"github.com/kart-io/sentinel-search/internal/search/metrics"
	"github.com/kart-io/sentinel-search/pkg/infra/pool"
	"github.com/kart-io/sentinel-search/pkg/infra/resilience"
	"github.com/kart-io/sentinel-search/pkg/utils/httpclient"
)

// Config 抓取器配置。
type Config struct {
	DefaultProvider  string
	FanoutProviders  []string
	MaxResults       int
	MaxContentLength int
	FetchTimeout     time.Duration
	FetchConcurrency int
	// FanoutWorkers 单个 provider=all 请求内同时执行的供应商数。
	FanoutWorkers int
	// RateLimit 每个抓取型供应商每秒请求数，0 表示不限。
	RateLimit float64
	Breaker   *resilience.CircuitBreakerConfig
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		DefaultProvider:  ProviderWikipedia,
		FanoutProviders:  []string{ProviderGoogle, ProviderDuckDuckGo, ProviderWikipedia},
		MaxResults:       10,
		MaxContentLength: 5000,
		FetchTimeout:     10 * time.Second,
		FetchConcurrency: 10,
		FanoutWorkers:    3,
		RateLimit:        2,
	}
}

// ProviderDone provider=all 时每个供应商完成后的回调，按完成顺序调用。
type ProviderDone func(provider string, bundle *model.SearchBundle)

// Fetcher 多供应商搜索与正文抓取。
type Fetcher struct {
	cfg       Config
	providers map[string]Provider
	client    *httpclient.Client
	fanout    *pool.Pool
	limiters  map[string]*rate.Limiter
	breakers  map[string]*resilience.CircuitBreaker
	metrics   *metrics.SearchMetrics
}

// New 创建抓取器。fanout 为 provider=all 使用的进程级共享池，可为 nil。
func New(cfg Config, client *httpclient.Client, fanout *pool.Pool, m *metrics.SearchMetrics, providers ...Provider) (*Fetcher, error) {
	def := DefaultConfig()
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = def.FetchConcurrency
	}
	if cfg.FanoutWorkers <= 0 {
		cfg.FanoutWorkers = def.FanoutWorkers
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.DefaultCircuitBreakerConfig()
	}

	f := &Fetcher{
		cfg:       cfg,
		providers: make(map[string]Provider, len(providers)),
		client:    client,
		fanout:    fanout,
		limiters:  make(map[string]*rate.Limiter),
		breakers:  make(map[string]*resilience.CircuitBreaker),
		metrics:   m,
	}

	breakerCfg := *cfg.Breaker
	if breakerCfg.OnStateChange == nil {
		breakerCfg.OnStateChange = m.BreakerHook()
	}

	for _, p := range providers {
		name := p.Name()
		f.providers[name] = p
		f.breakers[name] = resilience.NewCircuitBreaker("provider."+name, &breakerCfg)
		if cfg.RateLimit > 0 && name != ProviderWikipedia {
			f.limiters[name] = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
		}
	}

	if _, ok := f.providers[cfg.DefaultProvider]; !ok {
		return nil, fmt.Errorf("default provider %q is not registered", cfg.DefaultProvider)
	}
	for _, name := range cfg.FanoutProviders {
		if _, ok := f.providers[name]; !ok {
			return nil, fmt.Errorf("fan-out provider %q is not registered", name)
		}
	}
	return f, nil
}

// DefaultProvider 返回默认供应商名称。
func (f *Fetcher) DefaultProvider() string {
	return f.cfg.DefaultProvider
}

// Providers 返回已注册的供应商名称（排序）。
func (f *Fetcher) Providers() []string {
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve 解析供应商名称。空串或未知名称回退到默认供应商。
func (f *Fetcher) Resolve(name string) string {
	if name == "" {
		return f.cfg.DefaultProvider
	}
	if name == model.ProviderAll {
		return name
	}
	if _, ok := f.providers[name]; !ok {
		logger.Warnw("unknown provider, falling back to default",
			"provider", name,
			"default", f.cfg.DefaultProvider,
		)
		return f.cfg.DefaultProvider
	}
	return name
}

// Search 调用单个供应商，经过限流与熔断。
func (f *Fetcher) Search(ctx context.Context, name, query string) ([]model.SearchResult, error) {
	name = f.Resolve(name)
	p, ok := f.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not registered", name)
	}

	if l := f.limiters[name]; l != nil {
		if err := l.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var results []model.SearchResult
	err := f.breakers[name].Execute(func() error {
		callCtx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
		defer cancel()

		var err error
		results, err = p.Search(callCtx, query, f.cfg.MaxResults)
		return err
	})
	if err != nil {
		f.metrics.RecordProviderFailure(name)
		return nil, err
	}
	return results, nil
}

// SearchAndExtract 调用供应商并抓取全部结果页面正文。
// 供应商失败时记录日志并返回空结果。
func (f *Fetcher) SearchAndExtract(ctx context.Context, query, provider string) *model.SearchBundle {
	provider = f.Resolve(provider)
	bundle := &model.SearchBundle{
		Query:             query,
		SearchResults:     []model.SearchResult{},
		ExtractedContents: []model.Document{},
	}

	start := time.Now()
	results, err := f.Search(ctx, provider, query)
	if err != nil {
		logger.Warnw("provider search failed",
			"provider", provider,
			"query", query,
			"error", err.Error(),
		)
		return bundle
	}
	if len(results) == 0 {
		logger.Infow("provider returned no results", "provider", provider, "query", query)
		return bundle
	}

	bundle.SearchResults = results
	bundle.ExtractedContents = f.FetchContents(ctx, results)

	logger.Infow("search and extract completed",
		"provider", provider,
		"results", len(results),
		"documents", len(bundle.ExtractedContents),
		"elapsed", time.Since(start),
	)
	return bundle
}

// SearchAll 在 FanoutProviders 上并发执行 SearchAndExtract，按完成顺序合并结果。
// 每个请求最多 FanoutWorkers 个供应商同时执行，请求之间互不等待。
// 失败的供应商贡献空结果；ctx 取消时立即返回已完成部分。
func (f *Fetcher) SearchAll(ctx context.Context, query string, onDone ProviderDone) *model.SearchBundle {
	type done struct {
		provider string
		bundle   *model.SearchBundle
	}

	roster := f.cfg.FanoutProviders
	ch := make(chan done, len(roster))
	slots := make(chan struct{}, f.cfg.FanoutWorkers)
	for _, name := range roster {
		f.spawn(ctx, func() {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-slots }()
			ch <- done{provider: name, bundle: f.SearchAndExtract(ctx, query, name)}
		})
	}

	merged := &model.SearchBundle{
		Query:             query,
		SearchResults:     []model.SearchResult{},
		ExtractedContents: []model.Document{},
	}
	for range roster {
		select {
		case <-ctx.Done():
			logger.Warnw("fan-out search cancelled", "query", query, "error", ctx.Err().Error())
			return merged
		case d := <-ch:
			merged.SearchResults = append(merged.SearchResults, d.bundle.SearchResults...)
			merged.ExtractedContents = append(merged.ExtractedContents, d.bundle.ExtractedContents...)
			if onDone != nil {
				onDone(d.provider, d.bundle)
			}
		}
	}

	logger.Infow("fan-out search completed",
		"providers", len(roster),
		"results", len(merged.SearchResults),
		"documents", len(merged.ExtractedContents),
	)
	return merged
}

// spawn 在共享池上执行任务，不阻塞调用方。池满或已关闭时退化为独立 goroutine，
// ctx 已取消时不再提交。
func (f *Fetcher) spawn(ctx context.Context, task func()) {
	if ctx.Err() != nil {
		return
	}
	if f.fanout == nil {
		go task()
		return
	}
	if err := f.fanout.SubmitWithContext(ctx, task); err != nil && ctx.Err() == nil {
		logger.Debugw("fan-out pool unavailable, using goroutine", "error", err.Error())
		go task()
	}
}

// FetchContents 并发抓取结果页面，输出顺序与输入一致，失败的 URL 被丢弃。
func (f *Fetcher) FetchContents(ctx context.Context, results []model.SearchResult) []model.Document {
	docs := make([]*model.Document, len(results))

	var g errgroup.Group
	g.SetLimit(f.cfg.FetchConcurrency)
	for i, r := range results {
		g.Go(func() error {
			doc, err := f.FetchURL(ctx, r.URL)
			if err != nil {
				f.metrics.RecordFetchFailure()
				logger.Debugw("page fetch dropped", "url", r.URL, "error", err.Error())
				return nil
			}
			if r.Title != "" {
				doc.Title = r.Title
			}
			docs[i] = doc
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.Document, 0, len(results))
	for _, d := range docs {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}

// FetchURL 抓取单个页面并抽取正文。非 200、非 HTML 或无正文均视为失败。
func (f *Fetcher) FetchURL(ctx context.Context, rawURL string) (*model.Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	resp, err := f.client.Get(ctx, rawURL, map[string]string{"Accept": "text/html,application/xhtml+xml"})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mt, _, _ := mime.ParseMediaType(ct)
		if mt != "text/html" && mt != "application/xhtml+xml" {
			return nil, fmt.Errorf("unsupported content type %q", ct)
		}
	}

	root, err := parseHTML(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	ex := ExtractContent(root, f.cfg.MaxContentLength)
	if strings.TrimSpace(ex.Content) == "" {
		return nil, fmt.Errorf("no content extracted")
	}

	return &model.Document{
		URL:     rawURL,
		Title:   ex.Title,
		Content: ex.Content,
		Domain:  u.Host,
	}, nil
}
