package engine

import (
	"fmt"

	"github.com/dep2p/go-fabric/config"
	"github.com/dep2p/go-fabric/internal/core/queue"
)

// Config 引擎配置
type Config struct {
	// QueueCapacity 每个队列的槽位数，全集群一致
	QueueCapacity int

	// NumPorts 物理端口数
	NumPorts int

	// ShelfHeight 层板芯片行数，用于芯片排除位图
	ShelfHeight int

	// NocCols/NocRows 本地端点网格，广播时逐个写入
	NocCols int
	NocRows int
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
		QueueCapacity: cfg.Engine.QueueCapacity,
		NumPorts:      cfg.Node.NumPorts,
		ShelfHeight:   cfg.Node.ShelfHeight,
		NocCols:       cfg.Node.NocCols,
		NocRows:       cfg.Node.NocRows,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.QueueCapacity < 2 || c.QueueCapacity > queue.MaxCapacity {
		return fmt.Errorf("%w: queue capacity %d", ErrInvalidConfig, c.QueueCapacity)
	}
	if c.NumPorts < 0 || c.NumPorts > 32 {
		return fmt.Errorf("%w: num ports %d", ErrInvalidConfig, c.NumPorts)
	}
	if c.ShelfHeight < 1 {
		return fmt.Errorf("%w: shelf height %d", ErrInvalidConfig, c.ShelfHeight)
	}
	if c.NocCols < 1 || c.NocCols > 16 || c.NocRows < 1 || c.NocRows > 16 {
		return fmt.Errorf("%w: noc grid %dx%d", ErrInvalidConfig, c.NocCols, c.NocRows)
	}
	return nil
}
