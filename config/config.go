// Package config 提供 fabric 节点的统一配置
//
// 主 Config 嵌入各组件的子配置，每个子配置在独立文件中定义，
// 支持从 JSON 加载和保存：
//
//	cfg := config.NewConfig()
//	cfg.Node.ChipX, cfg.Node.ChipY = 1, 0
//	cfg.Link.TrainMode = "static"
//
//	cfg, err := config.LoadFile("node.json")
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/multierr"
)

// Config 节点完整配置
//
//   - Node: 芯片身份与层板几何
//   - Link: 链路训练与健康检查
//   - Discovery: 拓扑发现
//   - Routing: 路由表与端口轮换
//   - Engine: 队列与路由引擎
//   - Storage: 拓扑快照存储
//   - Metrics: 指标
//   - Log: 日志
type Config struct {
	Node      NodeConfig      `json:"node"`
	Link      LinkConfig      `json:"link"`
	Discovery DiscoveryConfig `json:"discovery"`
	Routing   RoutingConfig   `json:"routing"`
	Engine    EngineConfig    `json:"engine"`
	Storage   StorageConfig   `json:"storage"`
	Metrics   MetricsConfig   `json:"metrics"`
	Log       LogConfig       `json:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Node:      DefaultNodeConfig(),
		Link:      DefaultLinkConfig(),
		Discovery: DefaultDiscoveryConfig(),
		Routing:   DefaultRoutingConfig(),
		Engine:    DefaultEngineConfig(),
		Storage:   DefaultStorageConfig(),
		Metrics:   DefaultMetricsConfig(),
		Log:       DefaultLogConfig(),
	}
}

// Validate 验证所有子配置，返回合并后的错误
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	return multierr.Combine(
		c.Node.Validate(),
		c.Link.Validate(c.Node.NumPorts),
		c.Discovery.Validate(),
		c.Routing.Validate(),
		c.Engine.Validate(),
		c.Storage.Validate(),
		c.Metrics.Validate(),
		c.Log.Validate(),
	)
}

// Clone 深拷贝
func (c *Config) Clone() *Config {
	out := *c
	return &out
}

// FromJSON 从 JSON 解析，未出现的字段保持默认值
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ToJSON 编码为缩进 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// LoadFile 从文件加载
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return FromJSON(data)
}

// SaveFile 保存到文件
func (c *Config) SaveFile(path string) error {
	data, err := c.ToJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
