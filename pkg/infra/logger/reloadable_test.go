package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logopts "github.com/kart-io/sentinel-search/pkg/options/logger"
)

func newTestReloader(installErr error) (*Reloader, *[]string) {
	var installed []string
	r := NewReloader(logopts.NewOptions())
	r.install = func(opts *logopts.Options) error {
		installed = append(installed, opts.Level)
		return installErr
	}
	return r, &installed
}

func TestReloader_AppliesLevel(t *testing.T) {
	r, installed := newTestReloader(nil)
	engine := r.Current().Engine

	next := logopts.NewOptions()
	next.Level = "DEBUG"
	next.Engine = "zap"
	require.NoError(t, r.OnConfigChange(next))

	assert.Equal(t, []string{"DEBUG"}, *installed)
	assert.Equal(t, "DEBUG", r.Current().Level)
	assert.Equal(t, engine, r.Current().Engine, "engine 只在启动时生效")
}

func TestReloader_Unchanged(t *testing.T) {
	r, installed := newTestReloader(nil)
	require.NoError(t, r.OnConfigChange(logopts.NewOptions()))
	assert.Empty(t, *installed)
}

func TestReloader_InstallFailureKeepsCurrent(t *testing.T) {
	r, _ := newTestReloader(errors.New("open /nope: permission denied"))
	before := r.Current()

	next := logopts.NewOptions()
	next.Level = "ERROR"
	require.Error(t, r.OnConfigChange(next))
	assert.Same(t, before, r.Current())
	assert.Equal(t, "INFO", before.Level)
}

func TestReloader_EmptySection(t *testing.T) {
	r, _ := newTestReloader(nil)
	assert.Error(t, r.OnConfigChange(nil))
	assert.Error(t, r.OnConfigChange(&logopts.Options{}))
}
