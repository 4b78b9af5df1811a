package pool

import (
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// Manager 池管理器，按类型管理多个池
type Manager struct {
	mu     sync.RWMutex
	pools  map[Type]*Pool
	closed bool
}

// NewManager 创建新的池管理器
func NewManager() *Manager {
	return &Manager{pools: make(map[Type]*Pool)}
}

// Register 按类型注册新池
func (m *Manager) Register(typ Type, config *Config) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrPoolClosed
	}
	if _, exists := m.pools[typ]; exists {
		return nil, fmt.Errorf("%w: %s", ErrPoolAlreadyExists, typ)
	}

	p, err := NewPool(string(typ), typ, config)
	if err != nil {
		return nil, err
	}
	m.pools[typ] = p
	return p, nil
}

// Get 获取指定类型的池
func (m *Manager) Get(typ Type) (*Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrPoolClosed
	}
	p, ok := m.pools[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, typ)
	}
	return p, nil
}

// Stats 返回全部池的统计信息
func (m *Manager) Stats() []Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Stats, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p.Stats())
	}
	return out
}

// Close 带超时关闭全部池
func (m *Manager) Close(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var firstErr error
	for typ, p := range m.pools {
		if err := p.ReleaseTimeout(timeout); err != nil {
			logger.Warnw("pool release timeout", "pool", string(typ), "error", err.Error())
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
