// Package searchsvc wires the search service: cache, providers, LLM roles,
// retrieval pipeline and the HTTP surface.
package searchsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/spf13/viper"

	"github.com/kart-io/sentinel-search/internal/search/biz"
	"github.com/kart-io/sentinel-search/internal/search/cache"
	"github.com/kart-io/sentinel-search/internal/search/fetcher"
	"github.com/kart-io/sentinel-search/internal/search/handler"
	"github.com/kart-io/sentinel-search/internal/search/metrics"
	"github.com/kart-io/sentinel-search/internal/search/retrieval"
	"github.com/kart-io/sentinel-search/internal/search/router"
	"github.com/kart-io/sentinel-search/pkg/infra/app"
	"github.com/kart-io/sentinel-search/pkg/infra/config"
	infralogger "github.com/kart-io/sentinel-search/pkg/infra/logger"
	"github.com/kart-io/sentinel-search/pkg/infra/pool"
	"github.com/kart-io/sentinel-search/pkg/infra/resilience"
	"github.com/kart-io/sentinel-search/pkg/infra/server"
	httpserver "github.com/kart-io/sentinel-search/pkg/infra/server/http"
	"github.com/kart-io/sentinel-search/pkg/infra/tracing"
	"github.com/kart-io/sentinel-search/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/sentinel-search/pkg/llm/ollama"
	cacheopts "github.com/kart-io/sentinel-search/pkg/options/cache"
	llmopts "github.com/kart-io/sentinel-search/pkg/options/llm"
	logopts "github.com/kart-io/sentinel-search/pkg/options/logger"
	searchopts "github.com/kart-io/sentinel-search/pkg/options/search"
	httpopts "github.com/kart-io/sentinel-search/pkg/options/server/http"
	"github.com/kart-io/sentinel-search/pkg/utils/httpclient"
	"github.com/kart-io/sentinel-search/pkg/validator"
)

// Name is the name of the application.
const Name = "sentinel-search"

const poolReleaseTimeout = 5 * time.Second

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	PlannerOptions   *llmopts.ProviderOptions
	AnswerOptions    *llmopts.ProviderOptions
	EmbeddingOptions *llmopts.ProviderOptions
	CacheOptions     *cacheopts.Options
	SearchOptions    *searchopts.Options
	ShutdownTimeout  time.Duration
	// WatchConfig 配置文件变更时热更新日志配置。
	WatchConfig bool
}

// Server represents the search server.
type Server struct {
	srv *server.Manager
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if _, err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	tracing.SetupPropagation()
	logger.Info("Starting search service...")
	if cfg.WatchConfig {
		watchConfig(cfg.LogOptions)
	}

	m := metrics.Get()
	mgr := server.NewManager(cfg.ShutdownTimeout)

	// 2. 初始化缓存
	store, err := cache.Open(ctx, cfg.CacheOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	mgr.AddCloser(store.Close)

	// 3. 初始化 worker 池
	pools := pool.NewManager()
	mgr.AddCloser(func() error { return pools.Close(poolReleaseTimeout) })
	searchPool, err := pools.Register(pool.SearchPool, pool.SearchPoolConfig(pool.DefaultSearchPoolCapacity))
	if err != nil {
		_ = mgr.Close()
		return nil, fmt.Errorf("failed to create search pool: %w", err)
	}
	backgroundPool, err := pools.Register(pool.BackgroundPool, pool.BackgroundPoolConfig())
	if err != nil {
		_ = mgr.Close()
		return nil, fmt.Errorf("failed to create background pool: %w", err)
	}

	// 4. 初始化搜索供应商与抓取器
	so := cfg.SearchOptions
	client := httpclient.NewClient(
		httpclient.WithTimeout(so.FetchTimeout),
		httpclient.WithMaxRetries(1),
	)
	f, err := fetcher.New(fetcher.Config{
		DefaultProvider:  so.DefaultProvider,
		FanoutProviders:  so.FanoutProviders,
		MaxResults:       so.MaxResults,
		MaxContentLength: so.MaxContentLength,
		FetchTimeout:     so.FetchTimeout,
		FetchConcurrency: so.FetchConcurrency,
		FanoutWorkers:    so.FanoutWorkers,
		RateLimit:        so.RateLimit,
	}, client, searchPool, m, fetcher.NewProviders(client, nil)...)
	if err != nil {
		_ = mgr.Close()
		return nil, fmt.Errorf("failed to initialize fetcher: %w", err)
	}
	logger.Infow("Search providers initialized",
		"default", f.DefaultProvider(),
		"providers", f.Providers(),
	)

	// 5. 初始化 LLM 供应商
	planner, err := newChatProvider("planner", cfg.PlannerOptions, m)
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}
	answer, err := newChatProvider("answer", cfg.AnswerOptions, m)
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}
	embedder, err := newEmbeddingProvider(cfg.EmbeddingOptions, m)
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}

	// 6. 初始化 Biz 层
	retriever := retrieval.NewRetriever(cache.NewCachedEmbedder(embedder, store), retrieval.Config{
		ChunkSize:    so.ChunkSize,
		ChunkOverlap: so.ChunkOverlap,
	})
	orchestrator := biz.NewOrchestrator(biz.Config{
		TopK:             so.TopK,
		MaxContextChunks: so.MaxContextChunks,
	}, biz.Deps{
		Cache:      store,
		Fetcher:    f,
		Retriever:  retriever,
		Analyzer:   biz.NewAnalyzer(planner, m),
		Generator:  biz.NewGenerator(answer, planner, so.SuggestionCount, m),
		Background: backgroundPool,
		Metrics:    m,
	})
	logger.Infow("Search pipeline initialized",
		"cache.enabled", cfg.CacheOptions.Enabled,
		"cache.backend", cfg.CacheOptions.Backend,
		"top_k", so.TopK,
	)

	// 7. 初始化 Handler 层
	v, err := validator.Install()
	if err != nil {
		_ = mgr.Close()
		return nil, fmt.Errorf("failed to install validator: %w", err)
	}
	searchHandler := handler.NewSearchHandler(orchestrator, answer, v, m.Handler())

	// 8. 初始化服务器并注册路由
	httpSrv := httpserver.NewServer(cfg.HTTPOptions)
	router.Register(httpSrv.Engine(), searchHandler)
	mgr.AddServer(httpSrv)

	logger.Infow("Search service is ready", "addr", cfg.HTTPOptions.Addr)
	return &Server{srv: mgr}, nil
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer func() { _ = logger.Flush() }()
	return s.srv.Run(ctx)
}

// watchConfig 订阅 log 配置段，配置文件修改后重建全局 logger。
func watchConfig(opts *logopts.Options) {
	w := config.NewWatcher(viper.GetViper())
	config.Subscribe[*logopts.Options](w, "log", "log", logopts.NewOptions, infralogger.NewReloader(opts))
	if err := w.Start(); err != nil {
		if errors.Is(err, config.ErrNoConfigFile) {
			logger.Debug("No config file loaded, hot reload disabled")
			return
		}
		logger.Warnw("Failed to watch config file", "error", err)
	}
}

func newChatProvider(role string, opts *llmopts.ProviderOptions, m *metrics.SearchMetrics) (*llm.ResilientChatProvider, error) {
	p, err := llm.NewChatProvider(opts.Provider, opts.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s provider: %w", role, err)
	}
	logger.Infow("Chat provider initialized", "role", role, "provider", opts.Provider, "model", opts.Model)
	return llm.NewResilientChatProvider(p, retryConfig(opts), breaker("llm."+role, m)), nil
}

func newEmbeddingProvider(opts *llmopts.ProviderOptions, m *metrics.SearchMetrics) (*llm.ResilientEmbeddingProvider, error) {
	p, err := llm.NewEmbeddingProvider(opts.Provider, opts.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized", "provider", opts.Provider, "model", opts.Model)
	return llm.NewResilientEmbeddingProvider(p, retryConfig(opts), breaker("llm.embedding", m)), nil
}

func retryConfig(opts *llmopts.ProviderOptions) *resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.MaxAttempts = opts.MaxRetries + 1
	return rc
}

func breaker(name string, m *metrics.SearchMetrics) *resilience.CircuitBreaker {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.OnStateChange = m.BreakerHook()
	return resilience.NewCircuitBreaker(name, cfg)
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Planner: %s (%s)\n", cfg.PlannerOptions.Provider, cfg.PlannerOptions.Model)
	fmt.Printf("  Answer: %s (%s)\n", cfg.AnswerOptions.Provider, cfg.AnswerOptions.Model)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Cache: %s (enabled=%v)\n", cfg.CacheOptions.Backend, cfg.CacheOptions.Enabled)
}
