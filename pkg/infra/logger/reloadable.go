// Package logger applies log settings changed at runtime.
package logger

import (
	"fmt"
	"slices"
	"sync"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/option"

	logopts "github.com/kart-io/sentinel-search/pkg/options/logger"
)

// InstallFunc builds a logger from opts and installs it globally.
type InstallFunc func(opts *logopts.Options) error

// Reloader swaps the global logger when the log section changes.
// Engine and initial fields are fixed at startup.
type Reloader struct {
	mu      sync.Mutex
	current *logopts.Options
	install InstallFunc
}

// NewReloader creates a Reloader seeded with the options used at startup.
func NewReloader(current *logopts.Options) *Reloader {
	return &Reloader{
		current: current,
		install: func(opts *logopts.Options) error {
			_, err := opts.Init()
			return err
		},
	}
}

// OnConfigChange validates next and installs a new logger. 失败时保留原 logger。
func (r *Reloader) OnConfigChange(next *logopts.Options) error {
	if next == nil || next.LogOption == nil {
		return fmt.Errorf("empty log section")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	merged := *r.current.LogOption
	merged.Level = next.Level
	merged.Format = next.Format
	merged.OutputPaths = slices.Clone(next.OutputPaths)
	merged.Development = next.Development
	merged.DisableCaller = next.DisableCaller
	merged.DisableStacktrace = next.DisableStacktrace

	if sameSettings(r.current.LogOption, &merged) {
		return nil
	}
	candidate := &logopts.Options{LogOption: &merged}
	if errs := candidate.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid log section: %w", errs[0])
	}
	if err := r.install(candidate); err != nil {
		return fmt.Errorf("failed to apply log section: %w", err)
	}

	r.current = candidate
	logger.Infow("Logger reloaded", "level", merged.Level, "format", merged.Format)
	return nil
}

// Current returns the options in effect.
func (r *Reloader) Current() *logopts.Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func sameSettings(a, b *option.LogOption) bool {
	return a.Level == b.Level &&
		a.Format == b.Format &&
		a.Development == b.Development &&
		a.DisableCaller == b.DisableCaller &&
		a.DisableStacktrace == b.DisableStacktrace &&
		slices.Equal(a.OutputPaths, b.OutputPaths)
}
