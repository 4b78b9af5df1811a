package search

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())
	assert.Equal(t, 500, o.ChunkSize)
	assert.Equal(t, 50, o.ChunkOverlap)
	assert.Equal(t, "wikipedia", o.DefaultProvider)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"默认供应商为 all", func(o *Options) { o.DefaultProvider = "all" }},
		{"重叠大于窗口", func(o *Options) { o.ChunkOverlap = o.ChunkSize }},
		{"top-k 为 0", func(o *Options) { o.TopK = 0 }},
		{"空扇出列表", func(o *Options) { o.FanoutProviders = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			assert.NotEmpty(t, o.Validate())
		})
	}
}

func TestAddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--search.top-k=4", "--search.default-provider=duckduckgo"}))
	assert.Equal(t, 4, o.TopK)
	assert.Equal(t, "duckduckgo", o.DefaultProvider)
}
