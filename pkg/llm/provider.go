// Package llm 提供统一的 LLM 供应商抽象层。
// 查询分析、答案生成与向量嵌入可以使用不同供应商或不同模型。
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// EmbeddingProvider 定义 Embedding 供应商接口。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量嵌入。
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量嵌入。
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name 返回供应商名称。
	Name() string
}

// ChatProvider 定义文本生成供应商接口。
type ChatProvider interface {
	// Generate 根据提示生成完整文本。
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)

	// GenerateStream 流式生成文本，每个片段回调一次 onToken。
	// onToken 返回错误时终止生成并返回该错误。
	GenerateStream(ctx context.Context, prompt string, onToken func(token string) error, opts ...GenerateOption) error

	// Name 返回供应商名称。
	Name() string
}

// Pinger 可探测后端可用性的供应商。
type Pinger interface {
	Ping(ctx context.Context) error
}

// GenerateOptions 单次生成参数。
type GenerateOptions struct {
	System      string
	Temperature *float64
	Model       string
}

// GenerateOption 配置单次生成。
type GenerateOption func(*GenerateOptions)

// WithSystem 设置系统提示。
func WithSystem(system string) GenerateOption {
	return func(o *GenerateOptions) { o.System = system }
}

// WithTemperature 设置采样温度。
func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) { o.Temperature = &t }
}

// WithModel 覆盖供应商默认模型。
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) { o.Model = model }
}

// ApplyGenerateOptions 合并生成参数。
func ApplyGenerateOptions(opts ...GenerateOption) GenerateOptions {
	var o GenerateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Provider 同时支持 Embedding 和文本生成的完整供应商。
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// ProviderFactory 供应商工厂函数类型。
type ProviderFactory func(config map[string]any) (Provider, error)

var registry = &providerRegistry{
	providers: make(map[string]ProviderFactory),
}

type providerRegistry struct {
	mu        sync.RWMutex
	providers map[string]ProviderFactory
}

// RegisterProvider 注册完整供应商工厂。
func RegisterProvider(name string, factory ProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.providers[name] = factory
}

// NewProvider 根据名称创建完整供应商实例。
func NewProvider(name string, config map[string]any) (Provider, error) {
	registry.mu.RLock()
	factory, ok := registry.providers[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return factory(config)
}

// NewEmbeddingProvider 根据名称创建 Embedding 供应商实例。
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	p, err := NewProvider(name, config)
	if err != nil {
		return nil, fmt.Errorf("unknown embedding provider: %s", name)
	}
	return p, nil
}

// NewChatProvider 根据名称创建文本生成供应商实例。
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	p, err := NewProvider(name, config)
	if err != nil {
		return nil, fmt.Errorf("unknown chat provider: %s", name)
	}
	return p, nil
}

// ListProviders 列出所有已注册的供应商名称。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.providers))
	for name := range registry.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
