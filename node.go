package fabric

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-fabric/config"
	"github.com/dep2p/go-fabric/internal/core/engine"
	"github.com/dep2p/go-fabric/internal/core/lifecycle"
	"github.com/dep2p/go-fabric/internal/core/link"
	"github.com/dep2p/go-fabric/internal/core/metrics"
	"github.com/dep2p/go-fabric/internal/core/routing"
	"github.com/dep2p/go-fabric/internal/core/topology"
	"github.com/dep2p/go-fabric/internal/core/wire"
	"github.com/dep2p/go-fabric/pkg/lib/log"
	"github.com/dep2p/go-fabric/pkg/types"
)

var logger = log.Logger("fabric")

// maxFramesPerPoll 每轮每端口最多处理的帧数
const maxFramesPerPoll = 32

// inbound 发现器启动前收到的发现帧
type inbound struct {
	port int
	msg  *wire.Message
}

// Node 单个芯片上的 fabric 节点
//
// 节点独占链路训练器、发现器、路由表和路由引擎，按轮询推进：
// 每次 Poll 依次做链路训练与健康检查、收帧分发、拓扑发现、
// 路由表安装和引擎调度。Submit/Poll/PopResponse 由互斥锁保护，
// 可以从不同 goroutine 调用。
type Node struct {
	mu sync.Mutex

	cfg   *config.Config
	local types.Identity
	clk   clock.Clock
	app   *fx.App

	coord    *lifecycle.Coordinator
	links    *link.Manager
	ports    *wire.Ports
	disc     *topology.Discoverer
	eng      *engine.Engine
	routes   *routing.Table
	routeCfg routing.Config
	store    *topology.Store
	metrics  *metrics.Collector

	// routesGen 已安装路由表对应的发现代数
	routesGen uint64
	early     []inbound

	started bool
	closed  bool
}

// ════════════════════════════════════════════════════════════════════════════
//                              构造函数
// ════════════════════════════════════════════════════════════════════════════

// New 创建节点
//
// 创建节点但不启动，需要调用 Start() 启动。
//
// 示例：
//
//	node, err := fabric.New(
//	    fabric.WithConfig(cfg),
//	    fabric.WithPorts(ports...),
//	    fabric.WithTransport(transport),
//	)
func New(opts ...Option) (*Node, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	cfg := o.unified()
	if len(o.ports) != cfg.Node.NumPorts {
		return nil, fmt.Errorf("%w: %d ports for num_ports %d", ErrPortCount, len(o.ports), cfg.Node.NumPorts)
	}

	clk := o.clock
	if clk == nil {
		clk = clock.New()
	}
	node := &Node{
		cfg:   cfg,
		local: cfg.Node.Identity(),
		clk:   clk,
	}

	var err error
	node.app, err = buildFxApp(o, node)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return node, nil
}

// Start 启动节点：打开存储并进入链路训练阶段
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrNodeClosed
	}
	if n.started {
		return ErrAlreadyStarted
	}
	if err := n.app.Start(ctx); err != nil {
		return fmt.Errorf("start fx app: %w", err)
	}
	n.started = true
	logger.Info("节点已启动", "chip", n.local, "ports", n.cfg.Node.NumPorts)
	return nil
}

// Close 停止节点并释放存储
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	if !n.started {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.app.Stop(ctx); err != nil {
		return fmt.Errorf("stop fx app: %w", err)
	}
	logger.Info("节点已关闭", "chip", n.local)
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              轮询
// ════════════════════════════════════════════════════════════════════════════

// Poll 执行一轮调度
//
// 路由引擎因协议错误停止时返回 engine.ErrProtocolViolation。
func (n *Node) Poll() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.usable(); err != nil {
		return err
	}
	return n.poll()
}

// Run 循环轮询直到上下文结束或引擎停止
func (n *Node) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := n.Poll(); err != nil {
			return err
		}
		runtime.Gosched()
	}
}

func (n *Node) usable() error {
	switch {
	case n.closed:
		return ErrNodeClosed
	case !n.started:
		return ErrNotStarted
	}
	return nil
}

func (n *Node) poll() error {
	n.pollLinks()
	if err := n.receive(); err != nil {
		return err
	}
	if n.disc.Started() {
		n.disc.Poll()
		n.syncRoutes()
	}
	return n.eng.Poll()
}

// pollLinks 推进链路训练；初始训练全部结束后开始拓扑发现
func (n *Node) pollLinks() {
	for _, ev := range n.links.Poll() {
		if ev.From == link.LinkUp {
			logger.Warn("链路断开，清空端口队列", "chip", n.local, "port", ev.Port, "state", ev.To)
			n.eng.ResetPort(ev.Port)
		}
	}
	if n.disc.Started() || !n.links.AllTerminal() {
		return
	}

	for p := 0; p < n.links.NumPorts(); p++ {
		if err := n.links.Err(p); err != nil {
			logger.Debug("端口未激活", "chip", n.local, "error", err)
		}
	}
	n.disc.Start(topology.ClassifyPorts(n.local, n.links))
	if err := n.coord.AdvanceTo(lifecycle.PhaseDiscovery); err != nil {
		logger.Warn("推进生命周期失败", "error", err)
	}
	early := n.early
	n.early = nil
	for _, in := range early {
		n.handleDiscovery(in.port, in.msg)
	}
}

// receive 从各端口收帧并分发给发现器或路由引擎
func (n *Node) receive() error {
	for port := 0; port < n.ports.Len(); port++ {
		for i := 0; i < maxFramesPerPoll; i++ {
			m, ok, err := n.ports.Receive(port)
			if !ok {
				break
			}
			if err != nil {
				logger.Warn("丢弃无法解码的帧", "chip", n.local, "port", port, "error", err)
				continue
			}
			switch m.Kind {
			case wire.KindHello, wire.KindEntries, wire.KindAck:
				if !n.disc.Started() {
					n.early = append(n.early, inbound{port: port, msg: m})
					continue
				}
				n.handleDiscovery(port, m)
			default:
				if err := n.eng.HandleMessage(port, m); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (n *Node) handleDiscovery(port int, m *wire.Message) {
	if err := n.disc.HandleMessage(port, m); err != nil {
		logger.Warn("处理发现帧失败", "chip", n.local, "port", port, "kind", m.Kind, "error", err)
	}
}

// syncRoutes 发现完成后安装路由表；发现被重置时暂停调度
func (n *Node) syncRoutes() {
	gen := n.disc.Generation()
	if n.eng.Ready() && gen != n.routesGen {
		logger.Info("拓扑重新发现，暂停调度", "chip", n.local, "epoch", n.disc.Epoch())
		n.eng.SetRoutes(nil)
		if err := n.coord.ResetTo(lifecycle.PhaseDiscovery); err != nil {
			logger.Warn("回退生命周期失败", "error", err)
		}
		if n.metrics != nil {
			n.metrics.Rediscovered()
		}
	}
	n.reportProgress()
	if n.eng.Ready() || !n.disc.Complete() {
		return
	}

	tables := n.disc.Tables()
	conns := n.disc.Conns()
	var err error
	if n.routes == nil {
		n.routes, err = routing.Build(n.routeCfg, n.local, conns, tables, n.links)
	} else {
		err = n.routes.Rebuild(conns, tables)
	}
	if err != nil {
		logger.Error("构建路由表失败", "chip", n.local, "error", err)
		return
	}
	n.routesGen = gen
	n.eng.SetRoutes(n.routes)
	for _, phase := range []lifecycle.Phase{lifecycle.PhaseRoutingReady, lifecycle.PhaseRunning} {
		if err := n.coord.AdvanceTo(phase); err != nil {
			logger.Warn("推进生命周期失败", "error", err)
		}
	}
	logger.Info("路由表已安装", "chip", n.local, "epoch", n.disc.Epoch())
	n.saveSnapshot()
}

func (n *Node) reportProgress() {
	if n.metrics == nil {
		return
	}
	shelf, rack := n.disc.Progress()
	g := topology.ConfigFromUnified(n.cfg).Geometry
	n.metrics.SetDiscoveryProgress("shelf", shelf, g.ShelfEntries())
	n.metrics.SetDiscoveryProgress("rack", rack, g.RackRouters())
}

func (n *Node) saveSnapshot() {
	if n.store == nil || !n.cfg.Discovery.PersistSnapshot {
		return
	}
	if err := n.store.Save(n.disc.Snapshot()); err != nil {
		logger.Warn("保存拓扑快照失败", "chip", n.local, "error", err)
	}
}

// Rediscover 以新纪元重新发现拓扑，完成前暂停调度
func (n *Node) Rediscover() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.usable(); err != nil {
		return err
	}
	if !n.disc.Started() {
		return topology.ErrNotStarted
	}
	if err := n.disc.Rediscover(topology.ClassifyPorts(n.local, n.links)); err != nil {
		return err
	}
	n.syncRoutes()
	return nil
}
