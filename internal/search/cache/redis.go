package cache

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var _ Backend = (*RedisBackend)(nil)

// RedisBackend 共享后端，多个实例共用缓存。
// 键格式：<prefix><partition>:<sha256>。
type RedisBackend struct {
	client *goredis.Client
	prefix string
	owned  bool
}

// NewRedisBackend 使用已有客户端；owned 为 true 时 Close 会关闭客户端。
func NewRedisBackend(client *goredis.Client, prefix string, owned bool) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix, owned: owned}
}

func (b *RedisBackend) key(p Partition, key string) string {
	return b.prefix + string(p) + ":" + key
}

func (b *RedisBackend) pattern(p Partition) string {
	return b.prefix + string(p) + ":*"
}

func (b *RedisBackend) Get(ctx context.Context, p Partition, key string) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, b.key(p, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, p Partition, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, b.key(p, key), value, ttl).Err()
}

func (b *RedisBackend) Len(ctx context.Context, p Partition) (int, error) {
	n := 0
	iter := b.client.Scan(ctx, 0, b.pattern(p), 200).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, iter.Err()
}

func (b *RedisBackend) Clear(ctx context.Context, p Partition) error {
	iter := b.client.Scan(ctx, 0, b.pattern(p), 200).Iterator()

	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := b.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return b.client.Del(ctx, batch...).Err()
	}
	return nil
}

func (b *RedisBackend) Close() error {
	if b.owned {
		return b.client.Close()
	}
	return nil
}
