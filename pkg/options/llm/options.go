// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-search/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// BaseURLEnv 兼容旧部署的 Ollama 地址环境变量。
const BaseURLEnv = "OLLAMA_BASE_URL"

const defaultBaseURL = "http://localhost:11434"

// ProviderOptions 定义单个 LLM 角色（planner/answer/embedding）的供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
}

func newProviderOptions(model string) *ProviderOptions {
	return &ProviderOptions{
		Provider:   "ollama",
		BaseURL:    defaultBaseURL,
		Model:      model,
		Timeout:    120 * time.Second,
		MaxRetries: 2,
	}
}

// NewPlannerOptions 查询分析与追问建议使用的小模型。
func NewPlannerOptions() *ProviderOptions {
	return newProviderOptions("mistral:7b")
}

// NewAnswerOptions 答案生成使用的大模型。
func NewAnswerOptions() *ProviderOptions {
	return newProviderOptions("mistral:7b")
}

// NewEmbeddingOptions 向量嵌入模型。
func NewEmbeddingOptions() *ProviderOptions {
	return newProviderOptions("nomic-embed-text")
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}

// AddFlags registers flags under llm.<role>.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)

	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider name.")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL (env "+BaseURLEnv+").")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Maximum number of retries.")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("base-url is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	return errs
}

// Complete applies OLLAMA_BASE_URL when the base URL was left at its default.
func (o *ProviderOptions) Complete() error {
	if v := os.Getenv(BaseURLEnv); v != "" && o.BaseURL == defaultBaseURL {
		o.BaseURL = v
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return nil
}
