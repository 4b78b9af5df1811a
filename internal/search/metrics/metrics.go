// Package metrics 提供搜索服务的业务指标收集，以 Prometheus 格式导出。
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kart-io/sentinel-search/pkg/infra/resilience"
)

const namespace = "sentinel_search"

// SearchMetrics 搜索服务业务指标。所有方法对 nil 接收者安全。
type SearchMetrics struct {
	registry *prometheus.Registry

	queries          *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	fetchFailures    prometheus.Counter
	llmCalls         *prometheus.CounterVec
	llmDuration      *prometheus.HistogramVec
	stageDuration    *prometheus.HistogramVec
	breakerState     *prometheus.GaugeVec
}

var (
	global     *SearchMetrics
	globalOnce sync.Once
)

// Get 获取全局指标实例。
func Get() *SearchMetrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// New 创建使用独立 Registry 的指标实例。
func New() *SearchMetrics {
	m := &SearchMetrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of search queries.",
		}, []string{"mode", "result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Query and search cache lookups.",
		}, []string{"partition", "result"}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Search provider calls that failed.",
		}, []string{"provider"}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Page fetches that were dropped.",
		}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM calls by purpose.",
		}, []string{"purpose", "result"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "LLM call latency by purpose.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"purpose"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2.5, 10),
		}, []string{"stage"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per provider (0=closed, 1=open, 2=half-open).",
		}, []string{"name"}),
	}

	m.registry.MustRegister(
		m.queries,
		m.cacheLookups,
		m.providerFailures,
		m.fetchFailures,
		m.llmCalls,
		m.llmDuration,
		m.stageDuration,
		m.breakerState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 返回底层 Registry。
func (m *SearchMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器。
func (m *SearchMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordQuery 记录一次查询。mode 为 search、stream 或 ws。
func (m *SearchMetrics) RecordQuery(mode string, cached bool, err error) {
	if m == nil {
		return
	}
	r := result(err)
	if err == nil && cached {
		r = "cached"
	}
	m.queries.WithLabelValues(mode, r).Inc()
}

// RecordCacheLookup 记录缓存查找。
func (m *SearchMetrics) RecordCacheLookup(partition string, hit bool) {
	if m == nil {
		return
	}
	r := "miss"
	if hit {
		r = "hit"
	}
	m.cacheLookups.WithLabelValues(partition, r).Inc()
}

// RecordProviderFailure 记录供应商失败。
func (m *SearchMetrics) RecordProviderFailure(provider string) {
	if m == nil {
		return
	}
	m.providerFailures.WithLabelValues(provider).Inc()
}

// RecordFetchFailure 记录页面抓取失败。
func (m *SearchMetrics) RecordFetchFailure() {
	if m == nil {
		return
	}
	m.fetchFailures.Inc()
}

// RecordLLMCall 记录 LLM 调用。purpose 为 analyze、answer、suggest 或 embed。
func (m *SearchMetrics) RecordLLMCall(purpose string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(purpose, result(err)).Inc()
	m.llmDuration.WithLabelValues(purpose).Observe(d.Seconds())
}

// ObserveStage 记录管线阶段耗时。
func (m *SearchMetrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SetBreakerState 更新熔断器状态。
func (m *SearchMetrics) SetBreakerState(name string, state resilience.State) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// BreakerHook 返回熔断器状态变化回调。
func (m *SearchMetrics) BreakerHook() func(name string, from, to resilience.State) {
	return func(name string, _, to resilience.State) {
		m.SetBreakerState(name, to)
	}
}
