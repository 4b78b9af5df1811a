package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmopts "github.com/kart-io/sentinel-search/pkg/options/llm"
)

func TestNewServerOptions_Defaults(t *testing.T) {
	o := NewServerOptions()
	require.NoError(t, o.Complete())
	require.NoError(t, o.Validate())

	assert.Equal(t, ":8000", o.HTTPOptions.Addr)
	assert.Equal(t, 30*time.Second, o.ShutdownTimeout)
	assert.Equal(t, "ollama", o.LLM.Planner.Provider)
	assert.Equal(t, "nomic-embed-text", o.LLM.Embedding.Model)
}

func TestFlags(t *testing.T) {
	fss := NewServerOptions().Flags()
	assert.Equal(t, []string{"http", "log", "llm", "cache", "search", "misc"}, fss.Order)

	tests := []struct {
		section string
		flag    string
	}{
		{"http", "http.addr"},
		{"log", "log.level"},
		{"llm", "llm.planner.model"},
		{"llm", "llm.answer.base-url"},
		{"llm", "llm.embedding.timeout"},
		{"cache", "cache.backend"},
		{"cache", "cache.redis.host"},
		{"search", "search.top-k"},
		{"misc", "shutdown-timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			assert.NotNil(t, fss.FlagSets[tt.section].Lookup(tt.flag))
		})
	}
}

func TestFlags_Parse(t *testing.T) {
	o := NewServerOptions()
	fs := o.Flags().FlagSets["llm"]
	require.NoError(t, fs.Parse([]string{"--llm.answer.model=qwen2.5:7b", "--llm.planner.max-retries=4"}))

	assert.Equal(t, "qwen2.5:7b", o.LLM.Answer.Model)
	assert.Equal(t, 4, o.LLM.Planner.MaxRetries)
	assert.NotEqual(t, "qwen2.5:7b", o.LLM.Planner.Model)
}

func TestComplete_BaseURLEnv(t *testing.T) {
	t.Setenv(llmopts.BaseURLEnv, "http://ollama:11434")

	o := NewServerOptions()
	o.LLM.Answer.BaseURL = "http://gpu-box:11434"
	require.NoError(t, o.Complete())

	assert.Equal(t, "http://ollama:11434", o.LLM.Planner.BaseURL)
	assert.Equal(t, "http://ollama:11434", o.LLM.Embedding.BaseURL)
	assert.Equal(t, "http://gpu-box:11434", o.LLM.Answer.BaseURL, "显式配置优先于环境变量")
}

func TestValidate_Aggregates(t *testing.T) {
	o := NewServerOptions()
	o.LLM.Embedding.Model = ""
	o.SearchOptions.ChunkOverlap = o.SearchOptions.ChunkSize
	o.ShutdownTimeout = -time.Second

	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.embedding: model is required")
	assert.Contains(t, err.Error(), "search.chunk-overlap")
	assert.Contains(t, err.Error(), "shutdown-timeout")
}

func TestConfig(t *testing.T) {
	o := NewServerOptions()
	cfg, err := o.Config()
	require.NoError(t, err)

	assert.Same(t, o.LLM.Planner, cfg.PlannerOptions)
	assert.Same(t, o.LLM.Answer, cfg.AnswerOptions)
	assert.Same(t, o.LLM.Embedding, cfg.EmbeddingOptions)
	assert.Same(t, o.CacheOptions, cfg.CacheOptions)
	assert.Equal(t, o.ShutdownTimeout, cfg.ShutdownTimeout)
}
