package cache

import (
	"context"
	"time"

	"github.com/kart-io/sentinel-search/pkg/cache"
)

var _ Backend = (*MemoryBackend)(nil)

// MemoryBackend 进程内后端，每个分区一个带 TTL 的 map。
type MemoryBackend struct {
	parts  map[Partition]*cache.MemoryCache[string, []byte]
	cancel context.CancelFunc
}

// NewMemoryBackend 创建进程内后端，并按 janitorInterval 清理过期条目。
func NewMemoryBackend(janitorInterval time.Duration) *MemoryBackend {
	b := &MemoryBackend{parts: make(map[Partition]*cache.MemoryCache[string, []byte], len(Partitions))}
	for _, p := range Partitions {
		b.parts[p] = cache.NewMemoryCache[string, []byte]()
	}

	if janitorInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		b.cancel = cancel
		for _, c := range b.parts {
			go c.RunJanitor(ctx, janitorInterval)
		}
	}
	return b
}

func (b *MemoryBackend) Get(_ context.Context, p Partition, key string) ([]byte, bool, error) {
	v, ok := b.parts[p].Get(key)
	return v, ok, nil
}

func (b *MemoryBackend) Set(_ context.Context, p Partition, key string, value []byte, ttl time.Duration) error {
	b.parts[p].Set(key, value, ttl)
	return nil
}

func (b *MemoryBackend) Len(_ context.Context, p Partition) (int, error) {
	return b.parts[p].Len(), nil
}

func (b *MemoryBackend) Clear(_ context.Context, p Partition) error {
	b.parts[p].Clear()
	return nil
}

func (b *MemoryBackend) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	return nil
}
