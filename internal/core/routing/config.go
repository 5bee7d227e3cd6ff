package routing

import (
	"fmt"

	"github.com/dep2p/go-fabric/config"
	"github.com/dep2p/go-fabric/internal/core/topology"
)

// Config 路由表配置
type Config struct {
	Geometry topology.Geometry

	// PortSwitchThreshold 罗盘方向切换活动端口前的非有序事务数
	PortSwitchThreshold int

	// CacheSize 下一跳缓存条目数
	CacheSize int

	// QueueCapacity 对端请求队列容量，决定每方向请求预算
	QueueCapacity int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFromUnified(config.NewConfig())
}

// ConfigFromUnified 从统一配置创建
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return Config{
		Geometry:            topology.Geometry{Width: cfg.Node.ShelfWidth, Height: cfg.Node.ShelfHeight},
		PortSwitchThreshold: cfg.Routing.PortSwitchThreshold,
		CacheSize:           cfg.Routing.CacheSize,
		QueueCapacity:       cfg.Engine.QueueCapacity,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := c.Geometry.Validate(); err != nil {
		return err
	}
	if c.PortSwitchThreshold < 1 {
		return fmt.Errorf("%w: port switch threshold %d", ErrInvalidConfig, c.PortSwitchThreshold)
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("%w: cache size %d", ErrInvalidConfig, c.CacheSize)
	}
	if c.QueueCapacity < 2 {
		return fmt.Errorf("%w: queue capacity %d", ErrInvalidConfig, c.QueueCapacity)
	}
	return nil
}
