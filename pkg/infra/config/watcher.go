// Package config watches the loaded config file and hands changed sections
// to subscribers.
package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
	"github.com/spf13/viper"
)

// ErrNoConfigFile is returned by Start when viper has not loaded a file.
var ErrNoConfigFile = errors.New("no config file loaded")

// ChangeHandler reacts to a config file change.
type ChangeHandler func(v *viper.Viper) error

// Reloadable is a component that can apply a new version of its section.
type Reloadable[T any] interface {
	OnConfigChange(next T) error
}

// Watcher fans config file changes out to subscribed handlers.
type Watcher struct {
	viper *viper.Viper

	mu       sync.RWMutex
	handlers map[string]ChangeHandler
	watching bool
}

// NewWatcher creates a watcher over v. v must already have read its config file.
func NewWatcher(v *viper.Viper) *Watcher {
	return &Watcher{
		viper:    v,
		handlers: make(map[string]ChangeHandler),
	}
}

// Subscribe registers h under id, replacing any previous handler with that id.
func (w *Watcher) Subscribe(id string, h ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[id] = h
}

// Subscribe 订阅某个配置段：变更时解码到 newTarget() 并交给 r。
func Subscribe[T any](w *Watcher, id, key string, newTarget func() T, r Reloadable[T]) {
	w.Subscribe(id, func(v *viper.Viper) error {
		target := newTarget()
		if err := v.UnmarshalKey(key, target); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		return r.OnConfigChange(target)
	})
}

// Start begins watching. Calling it again is a no-op.
func (w *Watcher) Start() error {
	if w.viper.ConfigFileUsed() == "" {
		return ErrNoConfigFile
	}

	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	w.viper.OnConfigChange(func(e fsnotify.Event) {
		logger.Infow("Config file changed", "file", e.Name, "op", e.Op.String())
		w.dispatch()
	})
	w.viper.WatchConfig()
	logger.Infow("Watching config file", "file", w.viper.ConfigFileUsed())
	return nil
}

// dispatch runs every handler in id order; a failing handler does not stop the rest.
func (w *Watcher) dispatch() {
	w.mu.RLock()
	ids := make([]string, 0, len(w.handlers))
	handlers := make(map[string]ChangeHandler, len(w.handlers))
	for id, h := range w.handlers {
		ids = append(ids, id)
		handlers[id] = h
	}
	w.mu.RUnlock()
	sort.Strings(ids)

	for _, id := range ids {
		if err := handlers[id](w.viper); err != nil {
			logger.Errorw("Config reload rejected", "handler", id, "error", err)
		}
	}
}
