package topology

import (
	"time"

	"github.com/dep2p/go-fabric/config"
)

// Config 拓扑发现配置
type Config struct {
	Geometry        Geometry
	BatchSize       int
	ResendTimeout   time.Duration
	PersistSnapshot bool
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
		Geometry:        Geometry{Width: cfg.Node.ShelfWidth, Height: cfg.Node.ShelfHeight},
		BatchSize:       cfg.Discovery.BatchSize,
		ResendTimeout:   cfg.Discovery.ResendTimeout.Duration(),
		PersistSnapshot: cfg.Discovery.PersistSnapshot,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := c.Geometry.Validate(); err != nil {
		return err
	}
	if c.BatchSize < 1 {
		c.BatchSize = 16
	}
	if c.ResendTimeout <= 0 {
		c.ResendTimeout = 50 * time.Millisecond
	}
	return nil
}
