package routing

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-fabric/config"
)

// Params 路由模块依赖
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Module 返回路由 Fx 模块
//
// 只提供校验过的 Config；路由表依赖发现结果，由节点在发现完成后 Build。
func Module() fx.Option {
	return fx.Module("routing",
		fx.Provide(ProvideConfig),
	)
}

// ProvideConfig 从统一配置提供路由配置
func ProvideConfig(p Params) (Config, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
