package fabric

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-fabric/config"
	"github.com/dep2p/go-fabric/internal/core/engine"
	"github.com/dep2p/go-fabric/internal/core/lifecycle"
	"github.com/dep2p/go-fabric/internal/core/link"
	"github.com/dep2p/go-fabric/internal/core/metrics"
	"github.com/dep2p/go-fabric/internal/core/routing"
	"github.com/dep2p/go-fabric/internal/core/storage"
	"github.com/dep2p/go-fabric/internal/core/topology"
	"github.com/dep2p/go-fabric/internal/core/wire"
	"github.com/dep2p/go-fabric/pkg/interfaces"
	"github.com/dep2p/go-fabric/pkg/lib/log"
)

var fxLogger = log.Logger("fabric/fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 生命周期协调器
//  2. 链路训练、路由与引擎配置
//  3. 拓扑快照存储（仅在启用快照时加载 BadgerDB）
//  4. 指标
//  5. 节点组装：端口通道、发现器、路由引擎
func buildFxApp(o *options, node *Node) (*fx.App, error) {
	cfg := o.config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	modules := []fx.Option{
		fx.Supply(cfg),
		fx.Supply(o.ports),
		fx.Provide(func() clock.Clock { return node.clk }),

		lifecycle.Module(),
		link.Module(),
		routing.Module(),
		engine.Module(),
		topology.Module(),
		metrics.Module(),
	}

	if cfg.Discovery.PersistSnapshot {
		modules = append(modules, storage.Module())
		fxLogger.Debug("已加载快照存储", "in_memory", cfg.Storage.InMemory)
	}

	if len(o.fxOptions) > 0 {
		modules = append(modules, o.fxOptions...)
	}

	modules = append(modules,
		fx.Invoke(injectNodeComponents(node, o.transport)),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// nodeInjectParams 节点组件注入参数
type nodeInjectParams struct {
	fx.In

	UnifiedCfg  *config.Config
	Coordinator *lifecycle.Coordinator
	Links       *link.Manager
	Ports       []interfaces.Port
	EngineCfg   engine.Config
	RoutingCfg  routing.Config

	Store   *topology.Store    `optional:"true"`
	Metrics *metrics.Collector `optional:"true"`
}

// injectNodeComponents 创建 Node 组件注入函数
//
// 引擎与发现器依赖端口通道，在这里组装后交给 Node。
func injectNodeComponents(node *Node, transport interfaces.LocalTransport) interface{} {
	return func(p nodeInjectParams) error {
		node.coord = p.Coordinator
		node.links = p.Links
		node.routeCfg = p.RoutingCfg
		node.store = p.Store
		node.metrics = p.Metrics

		channels := make([]interfaces.Channel, len(p.Ports))
		for i, port := range p.Ports {
			channels[i] = port.Channel
			if p.Metrics != nil {
				channels[i] = metrics.MeterChannel(port.Channel, i, p.Metrics)
			}
		}
		node.ports = wire.NewPorts(channels)

		var obs engine.Observer
		if p.Metrics != nil {
			obs = p.Metrics
			p.Links.OnEvent(func(ev link.Event) {
				p.Metrics.SetLinkUp(ev.Port, ev.To == link.LinkUp)
			})
			p.Coordinator.OnPhaseChange(func(_, phase lifecycle.Phase) {
				p.Metrics.SetPhase(int(phase))
			})
		}

		eng, err := engine.New(p.EngineCfg, node.local, node.ports, transport, node.clk, obs)
		if err != nil {
			return fmt.Errorf("create engine: %w", err)
		}
		node.eng = eng

		disc, err := topology.NewDiscoverer(topology.ConfigFromUnified(p.UnifiedCfg), node.local, node.ports, node.clk)
		if err != nil {
			return fmt.Errorf("create discoverer: %w", err)
		}
		node.disc = disc
		return nil
	}
}
