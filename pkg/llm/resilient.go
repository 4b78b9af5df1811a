package llm

import (
	"context"

	"github.com/kart-io/sentinel-search/pkg/infra/resilience"
)

// ResilientChatProvider 为文本生成加上重试与熔断。
// 流式生成只在首个片段到达前重试，避免重复输出。
type ResilientChatProvider struct {
	provider ChatProvider
	retry    *resilience.RetryConfig
	cb       *resilience.CircuitBreaker
}

// NewResilientChatProvider 创建带韧性功能的文本生成供应商。
func NewResilientChatProvider(provider ChatProvider, retry *resilience.RetryConfig, cb *resilience.CircuitBreaker) *ResilientChatProvider {
	if retry == nil {
		retry = resilience.DefaultRetryConfig()
	}
	if cb == nil {
		cb = resilience.NewCircuitBreaker(provider.Name(), nil)
	}
	return &ResilientChatProvider{provider: provider, retry: retry, cb: cb}
}

// Generate 带重试和熔断的生成。
func (r *ResilientChatProvider) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	var out string
	err := resilience.RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var err error
		out, err = r.provider.Generate(ctx, prompt, opts...)
		return err
	})
	return out, err
}

// GenerateStream 带熔断的流式生成。
func (r *ResilientChatProvider) GenerateStream(ctx context.Context, prompt string, onToken func(string) error, opts ...GenerateOption) error {
	started := false
	return resilience.RetryWithCircuitBreaker(ctx, r.retryUnlessStarted(&started), r.cb, func() error {
		return r.provider.GenerateStream(ctx, prompt, func(tok string) error {
			started = true
			return onToken(tok)
		}, opts...)
	})
}

func (r *ResilientChatProvider) retryUnlessStarted(started *bool) *resilience.RetryConfig {
	cfg := *r.retry
	base := cfg.Retryable
	if base == nil {
		base = resilience.IsRetryableError
	}
	cfg.Retryable = func(err error) bool {
		return !*started && base(err)
	}
	return &cfg
}

// Name 返回底层供应商名称。
func (r *ResilientChatProvider) Name() string {
	return r.provider.Name()
}

// Ping 透传底层供应商的可用性探测。
func (r *ResilientChatProvider) Ping(ctx context.Context) error {
	if p, ok := r.provider.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// CircuitBreaker 返回熔断器实例（用于监控）。
func (r *ResilientChatProvider) CircuitBreaker() *resilience.CircuitBreaker {
	return r.cb
}

// ResilientEmbeddingProvider 为向量嵌入加上重试与熔断。
type ResilientEmbeddingProvider struct {
	provider EmbeddingProvider
	retry    *resilience.RetryConfig
	cb       *resilience.CircuitBreaker
}

// NewResilientEmbeddingProvider 创建带韧性功能的 Embedding 供应商。
func NewResilientEmbeddingProvider(provider EmbeddingProvider, retry *resilience.RetryConfig, cb *resilience.CircuitBreaker) *ResilientEmbeddingProvider {
	if retry == nil {
		retry = resilience.DefaultRetryConfig()
	}
	if cb == nil {
		cb = resilience.NewCircuitBreaker(provider.Name()+"-embed", nil)
	}
	return &ResilientEmbeddingProvider{provider: provider, retry: retry, cb: cb}
}

// Embed 带重试和熔断的批量嵌入。
func (r *ResilientEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := resilience.RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var err error
		out, err = r.provider.Embed(ctx, texts)
		return err
	})
	return out, err
}

// EmbedSingle 带重试和熔断的单条嵌入。
func (r *ResilientEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := resilience.RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var err error
		out, err = r.provider.EmbedSingle(ctx, text)
		return err
	})
	return out, err
}

// Name 返回底层供应商名称。
func (r *ResilientEmbeddingProvider) Name() string {
	return r.provider.Name()
}
