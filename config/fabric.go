package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ════════════════════════════════════════════════════════════════════════════
//                              拓扑发现
// ════════════════════════════════════════════════════════════════════════════

// DiscoveryConfig 拓扑发现配置
type DiscoveryConfig struct {
	// BatchSize 每帧携带的表条目数
	BatchSize int `json:"batch_size"`

	// ResendTimeout 未确认批次的重发间隔
	ResendTimeout Duration `json:"resend_timeout"`

	// PersistSnapshot 发现完成后写入拓扑快照
	PersistSnapshot bool `json:"persist_snapshot"`
}

// DefaultDiscoveryConfig 默认发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		BatchSize:       16,
		ResendTimeout:   Duration(50 * time.Millisecond),
		PersistSnapshot: true,
	}
}

// Validate 验证发现配置
func (c *DiscoveryConfig) Validate() error {
	if c.BatchSize < 1 || c.BatchSize > 256 {
		return fmt.Errorf("discovery: batch_size %d out of range", c.BatchSize)
	}
	if c.ResendTimeout <= 0 {
		return errors.New("discovery: resend_timeout must be positive")
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              路由
// ════════════════════════════════════════════════════════════════════════════

// RoutingConfig 路由表配置
type RoutingConfig struct {
	// PortSwitchThreshold 每方向切换活动端口前的事务数
	PortSwitchThreshold int `json:"port_switch_threshold"`

	// CacheSize 下一跳缓存条目数
	CacheSize int `json:"cache_size"`
}

// DefaultRoutingConfig 默认路由配置
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{PortSwitchThreshold: 50, CacheSize: 256}
}

// Validate 验证路由配置
func (c *RoutingConfig) Validate() error {
	if c.PortSwitchThreshold < 1 {
		return errors.New("routing: port_switch_threshold must be positive")
	}
	if c.CacheSize < 1 {
		return errors.New("routing: cache_size must be positive")
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              路由引擎
// ════════════════════════════════════════════════════════════════════════════

// EngineConfig 队列与路由引擎配置
type EngineConfig struct {
	// QueueCapacity 每个队列的槽位数
	QueueCapacity int `json:"queue_capacity"`
}

// DefaultEngineConfig 默认引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{QueueCapacity: 8}
}

// Validate 验证引擎配置
func (c *EngineConfig) Validate() error {
	if c.QueueCapacity < 2 || c.QueueCapacity > 128 {
		return fmt.Errorf("engine: queue_capacity %d out of range", c.QueueCapacity)
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              存储
// ════════════════════════════════════════════════════════════════════════════

// StorageConfig 拓扑快照存储配置
type StorageConfig struct {
	// DataDir 数据目录
	DataDir string `json:"data_dir"`

	// InMemory 仅内存存储，不落盘
	InMemory bool `json:"in_memory"`
}

// DefaultStorageConfig 默认存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{DataDir: "./data"}
}

// Validate 验证存储配置
func (c *StorageConfig) Validate() error {
	if !c.InMemory && c.DataDir == "" {
		return errors.New("storage: data_dir cannot be empty")
	}
	return nil
}

// DBPath BadgerDB 目录
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "fabric.db")
}

// ════════════════════════════════════════════════════════════════════════════
//                              指标与日志
// ════════════════════════════════════════════════════════════════════════════

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace"`
}

// DefaultMetricsConfig 默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Enabled: true, Namespace: "fabric"}
}

// Validate 验证指标配置
func (c *MetricsConfig) Validate() error {
	if c.Enabled && c.Namespace == "" {
		return errors.New("metrics: namespace cannot be empty")
	}
	return nil
}

// LogConfig 日志配置
//
// 为空时沿用 FABRIC_LOG_LEVEL 环境变量。
type LogConfig struct {
	Level string `json:"level"`
}

// DefaultLogConfig 默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{}
}

// Validate 验证日志配置
func (c *LogConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("log: unknown level %q", c.Level)
}
