package biz

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/sentinel-search/internal/model"
	"github.com/kart-io/sentinel-search/internal/search/cache"
	"github.com/kart-io/sentinel-search/internal/search/fetcher"
	"github.com/kart-io/sentinel-search/internal/search/metrics"
	"github.com/kart-io/sentinel-search/internal/search/retrieval"
	"github.com/kart-io/sentinel-search/pkg/infra/pool"
	"github.com/kart-io/sentinel-search/pkg/infra/tracing"
)

// Fetcher 编排器依赖的搜索与抓取能力。
type Fetcher interface {
	Resolve(name string) string
	DefaultProvider() string
	SearchAndExtract(ctx context.Context, query, provider string) *model.SearchBundle
	SearchAll(ctx context.Context, query string, onDone fetcher.ProviderDone) *model.SearchBundle
	FetchContents(ctx context.Context, results []model.SearchResult) []model.Document
}

// Config 编排器参数。
type Config struct {
	TopK             int
	MaxContextChunks int
}

// DefaultConfig 返回默认参数。
func DefaultConfig() Config {
	return Config{
		TopK:             10,
		MaxContextChunks: retrieval.DefaultMaxContextChunks,
	}
}

// Orchestrator 按 CacheCheck → AnalyzeQuery → Search → Retrieve → Generate → Complete 驱动一次查询。
type Orchestrator struct {
	cfg        Config
	cache      *cache.Store
	fetcher    Fetcher
	retriever  *retrieval.Retriever
	analyzer   *Analyzer
	generator  *Generator
	background *pool.Pool
	metrics    *metrics.SearchMetrics
}

// Deps 编排器的组件依赖。Background 为空时建议任务直接使用 goroutine。
type Deps struct {
	Cache      *cache.Store
	Fetcher    Fetcher
	Retriever  *retrieval.Retriever
	Analyzer   *Analyzer
	Generator  *Generator
	Background *pool.Pool
	Metrics    *metrics.SearchMetrics
}

// NewOrchestrator 创建编排器。
func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	def := DefaultConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.MaxContextChunks <= 0 {
		cfg.MaxContextChunks = def.MaxContextChunks
	}
	return &Orchestrator{
		cfg:        cfg,
		cache:      deps.Cache,
		fetcher:    deps.Fetcher,
		retriever:  deps.Retriever,
		analyzer:   deps.Analyzer,
		generator:  deps.Generator,
		background: deps.Background,
		metrics:    deps.Metrics,
	}
}

// Search 执行完整流水线并返回结果。任何错误或 panic 都转换为带 error 字段的结果。
func (o *Orchestrator) Search(ctx context.Context, req *model.SearchRequest) (resp *model.SearchResponse) {
	st := NewPipelineState(req.Query, req.CacheEnabled(), o.fetcher.Resolve(req.Provider))
	logger.Infow("search started",
		"query", req.Query,
		"provider", st.Provider,
		"use_cache", st.UseCache,
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("search pipeline panic",
				"query", req.Query,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err := fmt.Errorf("%v", r)
			o.metrics.RecordQuery("search", false, err)
			resp = o.failed(ctx, req.Query, err)
		}
	}()

	if err := o.run(ctx, st); err != nil {
		logger.Errorw("search pipeline failed", "query", req.Query, "error", err.Error())
		o.metrics.RecordQuery("search", false, err)
		return o.failed(ctx, req.Query, err)
	}

	o.metrics.RecordQuery("search", st.Cached, nil)
	return &model.SearchResponse{
		Query:      req.Query,
		Answer:     st.Answer,
		Sources:    st.Sources,
		Cached:     st.Cached,
		CacheStats: o.cache.Stats(ctx),
	}
}

func (o *Orchestrator) failed(ctx context.Context, query string, err error) *model.SearchResponse {
	return &model.SearchResponse{
		Query:      query,
		Answer:     pipelineErrorPrefix + err.Error(),
		Sources:    []model.Source{},
		Cached:     false,
		CacheStats: o.cache.Stats(ctx),
		Error:      err.Error(),
	}
}

// run 推进状态直到 Complete。
func (o *Orchestrator) run(ctx context.Context, st *PipelineState) error {
	for !st.Done() {
		if err := o.advance(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// advance 执行当前阶段并记录耗时。
func (o *Orchestrator) advance(ctx context.Context, st *PipelineState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stage := st.Stage
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "search."+stage.String(),
		attribute.String("search.query", st.Query.Raw))
	var err error
	switch stage {
	case StageCacheCheck:
		o.checkCache(ctx, st)
	case StageAnalyzeQuery:
		o.analyze(ctx, st)
	case StageSearch:
		o.search(ctx, st)
	case StageRetrieve:
		err = o.retrieve(ctx, st)
	case StageGenerate:
		o.generate(ctx, st)
	default:
		err = fmt.Errorf("unexpected stage %s", stage)
	}
	o.metrics.ObserveStage(stage.String(), time.Since(start))
	tracing.EndSpan(span, err)

	if err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return nil
}

func (o *Orchestrator) checkCache(ctx context.Context, st *PipelineState) {
	st.Stage = StageAnalyzeQuery
	if !st.UseCache {
		return
	}

	cached, ok := o.cache.GetQueryResult(ctx, st.Query.Raw)
	o.metrics.RecordCacheLookup(string(cache.PartitionQuery), ok)
	if !ok {
		logger.Debugw("query cache miss", "query", st.Query.Raw)
		return
	}

	logger.Infow("query cache hit", "query", st.Query.Raw)
	st.Answer = cached.Answer
	st.Sources = cached.Sources
	st.Cached = true
	st.Stage = StageComplete
}

func (o *Orchestrator) analyze(ctx context.Context, st *PipelineState) {
	analysis := o.analyzer.Analyze(ctx, st.Query.Raw)
	analysis.ProviderHint = st.Provider
	st.Analysis = analysis
	st.Stage = StageSearch
}

func (o *Orchestrator) search(ctx context.Context, st *PipelineState) {
	st.Stage = StageRetrieve

	primary := st.Analysis.PrimaryQuery()
	if primary == "" {
		primary = st.Query.Raw
	}

	if st.Provider == model.ProviderAll {
		st.Bundle = o.fetcher.SearchAll(ctx, primary, func(provider string, _ *model.SearchBundle) {
			if st.OnProviderDone != nil {
				st.OnProviderDone(provider)
			}
		})
		logger.Infow("fan-out search finished", "query", primary, "results", len(st.Bundle.SearchResults))
		return
	}

	// 仅默认供应商使用搜索结果缓存
	cacheable := st.Provider == o.fetcher.DefaultProvider()
	if cacheable && st.UseCache {
		cached, ok := o.cache.GetSearchResults(ctx, primary)
		o.metrics.RecordCacheLookup(string(cache.PartitionSearch), ok)
		if ok {
			logger.Infow("using cached search results", "query", primary, "results", len(cached.SearchResults))
			st.Bundle = cached
			return
		}
	}

	st.Bundle = o.fetcher.SearchAndExtract(ctx, primary, st.Provider)
	if cacheable && !st.Bundle.IsEmpty() {
		entry := &model.SearchBundle{Query: primary, SearchResults: st.Bundle.SearchResults}
		if err := o.cache.SetSearchResults(ctx, primary, entry); err != nil {
			logger.Warnw("failed to cache search results", "query", primary, "error", err.Error())
		}
	}
}

func (o *Orchestrator) retrieve(ctx context.Context, st *PipelineState) error {
	st.Stage = StageGenerate

	bundle := st.Bundle
	if bundle == nil {
		bundle = &model.SearchBundle{}
	}
	docs := bundle.ExtractedContents
	if len(docs) == 0 && len(bundle.SearchResults) > 0 {
		docs = o.fetcher.FetchContents(ctx, bundle.SearchResults)
	}

	if len(docs) == 0 {
		logger.Infow("no content extracted", "query", st.Query.Raw)
		st.Context = ""
		st.Sources = []model.Source{}
		return nil
	}

	result, err := o.retriever.Process(ctx, docs, st.Query.Raw, o.cfg.TopK)
	if err != nil {
		return err
	}
	st.Retrieval = result
	st.Context = retrieval.FormatContext(result.Chunks, o.cfg.MaxContextChunks)
	st.Sources = retrieval.ContextSources(result.Chunks, o.cfg.MaxContextChunks, result.Sources)

	logger.Infow("retrieved relevant chunks",
		"query", st.Query.Raw,
		"chunks", len(result.Chunks),
		"total_chunks", result.TotalChunks,
		"sources", len(result.Sources),
	)
	return nil
}

func (o *Orchestrator) generate(ctx context.Context, st *PipelineState) {
	st.Stage = StageComplete

	if st.Context == "" {
		st.Answer = InsufficientAnswer
		return
	}

	answer, err := o.generator.Answer(ctx, st.Query.Raw, st.Context, st.Sources)
	if err != nil {
		logger.Errorw("answer generation failed", "query", st.Query.Raw, "error", err.Error())
		st.Answer = generationErrorPrefix + err.Error()
		return
	}
	st.Answer = answer

	o.storeResult(ctx, &model.QueryResult{
		Query:   st.Query.Raw,
		Answer:  answer,
		Sources: st.Sources,
	})
}

func (o *Orchestrator) storeResult(ctx context.Context, result *model.QueryResult) {
	if err := o.cache.SetQueryResult(ctx, result.Query, result); err != nil {
		logger.Warnw("failed to cache query result", "query", result.Query, "error", err.Error())
	}
}

// CacheStats 返回缓存统计。
func (o *Orchestrator) CacheStats(ctx context.Context) model.CacheStats {
	return o.cache.Stats(ctx)
}

// ClearCache 清空所有缓存分区。
func (o *Orchestrator) ClearCache(ctx context.Context) error {
	return o.cache.ClearAll(ctx)
}
