// Package options contains flags and options for initializing the search server.
package options

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	searchsvc "github.com/kart-io/sentinel-search/internal/search"
	cacheopts "github.com/kart-io/sentinel-search/pkg/options/cache"
	llmopts "github.com/kart-io/sentinel-search/pkg/options/llm"
	logopts "github.com/kart-io/sentinel-search/pkg/options/logger"
	searchopts "github.com/kart-io/sentinel-search/pkg/options/search"
	httpopts "github.com/kart-io/sentinel-search/pkg/options/server/http"
)

// LLMOptions groups the three model roles.
type LLMOptions struct {
	Planner   *llmopts.ProviderOptions `json:"planner" mapstructure:"planner"`
	Answer    *llmopts.ProviderOptions `json:"answer" mapstructure:"answer"`
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
}

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// LLM 各角色的模型配置。
	LLM *LLMOptions `json:"llm" mapstructure:"llm"`

	// CacheOptions contains cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// SearchOptions contains provider and retrieval configuration.
	SearchOptions *searchopts.Options `json:"search" mapstructure:"search"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`

	// WatchConfig reloads the log section when the config file changes.
	WatchConfig bool `json:"watch-config" mapstructure:"watch-config"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions: httpopts.NewOptions(),
		LogOptions:  logopts.NewOptions(),
		LLM: &LLMOptions{
			Planner:   llmopts.NewPlannerOptions(),
			Answer:    llmopts.NewAnswerOptions(),
			Embedding: llmopts.NewEmbeddingOptions(),
		},
		CacheOptions:    cacheopts.NewOptions(),
		SearchOptions:   searchopts.NewOptions(),
		ShutdownTimeout: 30 * time.Second,
		WatchConfig:     true,
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.LLM.Planner.AddFlags(fss.FlagSet("llm"), "llm", "planner")
	o.LLM.Answer.AddFlags(fss.FlagSet("llm"), "llm", "answer")
	o.LLM.Embedding.AddFlags(fss.FlagSet("llm"), "llm", "embedding")
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.SearchOptions.AddFlags(fss.FlagSet("search"))

	// misc flags
	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")
	fs.BoolVar(&o.WatchConfig, "watch-config", o.WatchConfig, "Reload log settings when the config file changes")

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	for role, p := range map[string]*llmopts.ProviderOptions{
		"planner":   o.LLM.Planner,
		"answer":    o.LLM.Answer,
		"embedding": o.LLM.Embedding,
	} {
		if err := p.Complete(); err != nil {
			return fmt.Errorf("llm.%s: %w", role, err)
		}
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, prefixed("llm.planner", o.LLM.Planner.Validate())...)
	errs = append(errs, prefixed("llm.answer", o.LLM.Answer.Validate())...)
	errs = append(errs, prefixed("llm.embedding", o.LLM.Embedding.Validate())...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.SearchOptions.Validate()...)
	if o.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("shutdown-timeout must not be negative"))
	}

	return utilerrors.NewAggregate(errs)
}

func prefixed(section string, errs []error) []error {
	for i, err := range errs {
		errs[i] = fmt.Errorf("%s: %w", section, err)
	}
	return errs
}

// Config builds a searchsvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*searchsvc.Config, error) {
	return &searchsvc.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		PlannerOptions:   o.LLM.Planner,
		AnswerOptions:    o.LLM.Answer,
		EmbeddingOptions: o.LLM.Embedding,
		CacheOptions:     o.CacheOptions,
		SearchOptions:    o.SearchOptions,
		ShutdownTimeout:  o.ShutdownTimeout,
		WatchConfig:      o.WatchConfig,
	}, nil
}
