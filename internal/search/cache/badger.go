package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/kart-io/logger"
)

var _ Backend = (*BadgerBackend)(nil)

// BadgerBackend 磁盘持久化后端，重启后缓存仍然有效。
// 键格式：<partition>:<sha256>。
type BadgerBackend struct {
	db *badger.DB
}

type badgerLogger struct{}

var _ badger.Logger = badgerLogger{}

func (badgerLogger) Errorf(msg string, args ...any)   { logger.Errorf("badger: "+msg, args...) }
func (badgerLogger) Warningf(msg string, args ...any) { logger.Warnf("badger: "+msg, args...) }
func (badgerLogger) Infof(msg string, args ...any)    { logger.Debugf("badger: "+msg, args...) }
func (badgerLogger) Debugf(msg string, args ...any)   { logger.Debugf("badger: "+msg, args...) }

// OpenBadgerBackend 打开 dir 下的数据库；inMemory 为 true 时忽略 dir。
func OpenBadgerBackend(dir string, inMemory bool) (*BadgerBackend, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = badgerLogger{}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

func badgerKey(p Partition, key string) []byte {
	return []byte(string(p) + ":" + key)
}

func badgerPrefix(p Partition) []byte {
	return []byte(string(p) + ":")
}

func (b *BadgerBackend) Get(_ context.Context, p Partition, key string) ([]byte, bool, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(p, key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (b *BadgerBackend) Set(_ context.Context, p Partition, key string, value []byte, ttl time.Duration) error {
	return b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(badgerKey(p, key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

func (b *BadgerBackend) Len(_ context.Context, p Partition) (int, error) {
	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = badgerPrefix(p)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (b *BadgerBackend) Clear(_ context.Context, p Partition) error {
	return b.db.DropPrefix(badgerPrefix(p))
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
