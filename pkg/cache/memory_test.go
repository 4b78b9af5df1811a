package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(clock *fakeClock) *MemoryCache[string, string] {
	c := NewMemoryCache[string, string]()
	c.now = clock.Now
	return c
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := newTestCache(&fakeClock{now: time.Unix(0, 0)})

	c.Set("k", "v", time.Hour)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	c.Set("k", "v2", time.Hour)
	v, _ = c.Get("k")
	assert.Equal(t, "v2", v, "写入是整体替换")

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	c := newTestCache(clock)

	c.Set("short", "a", time.Minute)
	c.Set("long", "b", time.Hour)
	c.Set("forever", "c", 0)
	assert.Equal(t, 3, c.Len())

	clock.Advance(2 * time.Minute)

	_, ok := c.Get("short")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
	assert.ElementsMatch(t, []string{"long", "forever"}, c.Keys())

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, c.PurgeExpired())
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_DelClear(t *testing.T) {
	c := NewMemoryCache[string, int]()
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	c.Del("a")
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set(i, i, time.Hour)
			_, _ = c.Get(i)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
}
