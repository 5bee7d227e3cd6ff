package metrics

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-fabric/config"
)

// Params 指标模块依赖
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Clock      clock.Clock    `optional:"true"`
}

// Module 是 metrics 的 Fx 模块
//
// 指标关闭时提供 nil，调用方据此跳过观察者注册。
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(NewCollectorFromParams),
	)
}

// NewCollectorFromParams 从参数创建 Collector
func NewCollectorFromParams(p Params) *Collector {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if !cfg.Enabled {
		return nil
	}
	chip := "local"
	if p.UnifiedCfg != nil {
		chip = p.UnifiedCfg.Node.Identity().String()
	}
	return NewCollector(cfg, chip, p.Clock)
}
