package storage

import (
	"time"

	"github.com/dep2p/go-fabric/config"
)

// Config 存储配置
type Config struct {
	// Path BadgerDB 目录，InMemory 时忽略
	Path string

	// InMemory 仅内存，不落盘
	InMemory bool

	// SyncWrites 每次写入同步刷盘
	SyncWrites bool

	// GCInterval 值日志垃圾回收间隔，0 表示不回收
	GCInterval time.Duration

	// GCDiscardRatio 垃圾回收丢弃比例
	GCDiscardRatio float64
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Path:           "./data/fabric.db",
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// ConfigFromUnified 从统一配置创建
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	c.InMemory = cfg.Storage.InMemory
	if cfg.Storage.DataDir != "" {
		c.Path = cfg.Storage.DBPath()
	}
	return c
}

// Validate 验证配置
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return ErrInvalidConfig
	}
	if c.GCInterval != 0 && c.GCInterval < time.Minute {
		c.GCInterval = time.Minute
	}
	if c.GCDiscardRatio <= 0 || c.GCDiscardRatio > 1 {
		c.GCDiscardRatio = 0.5
	}
	return nil
}
