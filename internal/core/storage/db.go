package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-fabric/pkg/lib/log"
)

var logger = log.Logger("core/storage")

// DB BadgerDB 封装
type DB struct {
	db     *badger.DB
	cfg    Config
	closed atomic.Bool

	gcCtx    context.Context
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
}

// Open 打开数据库
func Open(cfg Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(cfg.SyncWrites)
	}
	opts = opts.WithLogger(badgerLogger{}).WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &DB{db: db, cfg: cfg, gcCtx: ctx, gcCancel: cancel}, nil
}

// badgerLogger 把 badger 日志转到子系统日志
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf(format, args...))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf(format, args...))
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...))
}

func (badgerLogger) Debugf(string, ...interface{}) {}

// Start 启动后台垃圾回收
func (d *DB) Start() error {
	if d.closed.Load() {
		return ErrClosed
	}
	if d.cfg.InMemory || d.cfg.GCInterval <= 0 {
		return nil
	}

	d.gcWg.Add(1)
	go func() {
		defer d.gcWg.Done()
		ticker := time.NewTicker(d.cfg.GCInterval)
		defer ticker.Stop()
		for {
			select {
			case <-d.gcCtx.Done():
				return
			case <-ticker.C:
				d.runGC()
			}
		}
	}()
	return nil
}

func (d *DB) runGC() {
	for !d.closed.Load() {
		// 返回错误表示没有可回收的空间
		if err := d.db.RunValueLogGC(d.cfg.GCDiscardRatio); err != nil {
			return
		}
	}
}

// Get 读取
func (d *DB) Get(key []byte) ([]byte, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	var value []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, convertError(err)
}

// Put 写入
func (d *DB) Put(key, value []byte) error {
	if d.closed.Load() {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return convertError(d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}))
}

// Delete 删除
func (d *DB) Delete(key []byte) error {
	if d.closed.Load() {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return convertError(d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}))
}

// Iterate 按键序遍历前缀下的所有键值，fn 返回错误即停止
func (d *DB) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	if d.closed.Load() {
		return ErrClosed
	}
	return d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close 关闭数据库
func (d *DB) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.gcCancel()
	d.gcWg.Wait()
	return d.db.Close()
}

func convertError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return ErrNotFound
	case errors.Is(err, badger.ErrEmptyKey):
		return ErrEmptyKey
	default:
		return err
	}
}
