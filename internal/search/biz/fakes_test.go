package biz

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-search/internal/model"
	"github.com/kart-io/sentinel-search/internal/search/cache"
	"github.com/kart-io/sentinel-search/internal/search/fetcher"
	"github.com/kart-io/sentinel-search/internal/search/metrics"
	"github.com/kart-io/sentinel-search/internal/search/retrieval"
	"github.com/kart-io/sentinel-search/pkg/infra/pool"
	"github.com/kart-io/sentinel-search/pkg/llm"
)

var fanoutRoster = []string{"google", "duckduckgo", "wikipedia"}

// fakeFetcher 按供应商返回预置结果。
type fakeFetcher struct {
	mu          sync.Mutex
	def         string
	bundles     map[string]*model.SearchBundle
	docs        []model.Document
	searchCalls map[string]int
	fetchCalls  int
	panicOn     string
}

func (f *fakeFetcher) Resolve(name string) string {
	if name == model.ProviderAll {
		return name
	}
	if _, ok := f.bundles[name]; ok {
		return name
	}
	return f.def
}

func (f *fakeFetcher) DefaultProvider() string { return f.def }

func (f *fakeFetcher) SearchAndExtract(_ context.Context, query, provider string) *model.SearchBundle {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.searchCalls[provider]++
	if provider == f.panicOn {
		panic("provider exploded")
	}
	out := &model.SearchBundle{Query: query, SearchResults: []model.SearchResult{}, ExtractedContents: []model.Document{}}
	if b := f.bundles[provider]; b != nil {
		out.SearchResults = b.SearchResults
		out.ExtractedContents = b.ExtractedContents
	}
	return out
}

func (f *fakeFetcher) SearchAll(ctx context.Context, query string, onDone fetcher.ProviderDone) *model.SearchBundle {
	merged := &model.SearchBundle{Query: query}
	for _, p := range fanoutRoster {
		b := f.SearchAndExtract(ctx, query, p)
		merged.SearchResults = append(merged.SearchResults, b.SearchResults...)
		merged.ExtractedContents = append(merged.ExtractedContents, b.ExtractedContents...)
		if onDone != nil {
			onDone(p, b)
		}
	}
	return merged
}

func (f *fakeFetcher) FetchContents(_ context.Context, _ []model.SearchResult) []model.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	return f.docs
}

func (f *fakeFetcher) calls(provider string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searchCalls[provider]
}

// fakePlanner 同时充当分析模型与建议模型。
type fakePlanner struct {
	analysis     string
	analysisErr  error
	suggestions  string
	release      chan struct{}
	suggestCalls atomic.Int32
}

func (p *fakePlanner) Generate(ctx context.Context, prompt string, _ ...llm.GenerateOption) (string, error) {
	if strings.HasPrefix(prompt, "Analyze this search query") {
		return p.analysis, p.analysisErr
	}
	p.suggestCalls.Add(1)
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.suggestions, nil
}

func (p *fakePlanner) GenerateStream(context.Context, string, func(string) error, ...llm.GenerateOption) error {
	return errors.New("not supported")
}

func (p *fakePlanner) Name() string { return "planner" }

// fakeAnswer 答案模型。
type fakeAnswer struct {
	answer      string
	err         error
	tokens      []string
	delay       time.Duration
	streamErr   error
	afterStream func()
	prompts     []string
	mu          sync.Mutex
}

func (a *fakeAnswer) Generate(_ context.Context, prompt string, _ ...llm.GenerateOption) (string, error) {
	a.mu.Lock()
	a.prompts = append(a.prompts, prompt)
	a.mu.Unlock()
	return a.answer, a.err
}

func (a *fakeAnswer) GenerateStream(ctx context.Context, _ string, onToken func(string) error, _ ...llm.GenerateOption) error {
	if a.streamErr != nil {
		return a.streamErr
	}
	for _, tok := range a.tokens {
		if a.delay > 0 {
			select {
			case <-time.After(a.delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := onToken(tok); err != nil {
			return err
		}
	}
	if a.afterStream != nil {
		a.afterStream()
	}
	return nil
}

func (a *fakeAnswer) Name() string { return "answer" }

// keywordEmbedder 按关键词出现次数生成向量。
type keywordEmbedder struct{ keywords []string }

func (e *keywordEmbedder) vec(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(e.keywords))
	for i, k := range e.keywords {
		v[i] = float32(strings.Count(lower, k))
	}
	return v
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vec(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	return e.vec(text), nil
}

func (e *keywordEmbedder) Name() string { return "keyword" }

func docsFor(provider string) []model.Document {
	return []model.Document{
		{
			URL:     "https://" + provider + ".example/python",
			Title:   "Python (" + provider + ")",
			Domain:  provider + ".example",
			Content: "Python is a high-level programming language known for readable syntax and a large ecosystem.",
		},
		{
			URL:     "https://" + provider + ".example/history",
			Title:   "History of Python",
			Domain:  provider + ".example",
			Content: "Python was created by Guido van Rossum and first released in 1991 as a successor to ABC.",
		},
	}
}

func bundleFor(provider string) *model.SearchBundle {
	docs := docsFor(provider)
	results := make([]model.SearchResult, len(docs))
	for i, d := range docs {
		results[i] = model.SearchResult{Title: d.Title, URL: d.URL, Provider: provider}
	}
	return &model.SearchBundle{SearchResults: results, ExtractedContents: docs}
}

type harness struct {
	orch    *Orchestrator
	store   *cache.Store
	fetcher *fakeFetcher
	planner *fakePlanner
	answer  *fakeAnswer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := cache.NewStore(cache.NewMemoryBackend(0), cache.DefaultConfig())
	t.Cleanup(func() { _ = store.Close() })

	bg, err := pool.NewPool("background-test", pool.BackgroundPool, pool.BackgroundPoolConfig())
	require.NoError(t, err)
	t.Cleanup(bg.Release)

	ff := &fakeFetcher{
		def: "wikipedia",
		bundles: map[string]*model.SearchBundle{
			"wikipedia":  bundleFor("wikipedia"),
			"duckduckgo": bundleFor("duckduckgo"),
			"google":     bundleFor("google"),
			"bing":       bundleFor("bing"),
		},
		docs:        docsFor("wikipedia"),
		searchCalls: map[string]int{},
	}
	planner := &fakePlanner{
		analysis:    "```json\n{\"intent\": \"learn python\", \"entities\": [\"Python\"], \"needs_realtime\": false, \"search_queries\": [\"python programming language\"]}\n```",
		suggestions: "1. What is Django?\n2. Python vs Go\n3. \"Learn Python fast\"",
	}
	answer := &fakeAnswer{
		answer: "Python is a programming language [1].",
		tokens: []string{"Python ", "is ", "great."},
	}

	m := metrics.New()
	orch := NewOrchestrator(DefaultConfig(), Deps{
		Cache:      store,
		Fetcher:    ff,
		Retriever:  retrieval.NewRetriever(&keywordEmbedder{keywords: []string{"python", "language", "history"}}, retrieval.Config{ChunkSize: 500, ChunkOverlap: 50}),
		Analyzer:   NewAnalyzer(planner, m),
		Generator:  NewGenerator(answer, planner, 3, m),
		Background: bg,
		Metrics:    m,
	})

	return &harness{orch: orch, store: store, fetcher: ff, planner: planner, answer: answer}
}

func request(query, provider string, useCache bool) *model.SearchRequest {
	return &model.SearchRequest{Query: query, Provider: provider, UseCache: &useCache}
}

// recorder 收集流式事件，failOn 指定类型的事件发送失败（模拟客户端断开）。
type recorder struct {
	mu     sync.Mutex
	events []model.Event
	failOn model.EventType
}

func (r *recorder) emit(e model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.failOn != "" && e.Type == r.failOn {
		return errors.New("client disconnected")
	}
	return nil
}

func (r *recorder) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Type == model.EventStatus {
			out = append(out, e.Message)
		}
	}
	return out
}

func (r *recorder) indexOf(t model.EventType) int {
	for i, typ := range r.types() {
		if typ == t {
			return i
		}
	}
	return -1
}

func (r *recorder) last() model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}
