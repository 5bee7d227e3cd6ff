package engine

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-fabric/config"
)

// Params 引擎模块依赖
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Module 返回引擎 Fx 模块
//
// 引擎需要端口发送器，由节点组装；模块只提供校验过的配置。
func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(ProvideConfig),
	)
}

// ProvideConfig 从统一配置提供引擎配置
func ProvideConfig(p Params) (Config, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
