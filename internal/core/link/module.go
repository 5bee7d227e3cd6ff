package link

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-fabric/config"
	"github.com/dep2p/go-fabric/pkg/interfaces"
)

// Params 链路模块依赖
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Ports      []interfaces.Port
	Clock      clock.Clock `optional:"true"`
}

// NewManagerFromParams 从 Fx 参数创建 Manager
func NewManagerFromParams(p Params) (*Manager, error) {
	cfg := p.UnifiedCfg
	if cfg == nil {
		cfg = config.NewConfig()
	}
	phys := make([]interfaces.PHY, len(p.Ports))
	for i, port := range p.Ports {
		phys[i] = port.PHY
	}
	return NewManager(ConfigFromUnified(cfg), cfg.Node.Identity(), phys, p.Clock)
}

// Module 返回链路训练 Fx 模块
func Module() fx.Option {
	return fx.Module("link",
		fx.Provide(NewManagerFromParams),
	)
}
