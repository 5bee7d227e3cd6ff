// Package sim 提供内存中的仿真集群
//
// 线缆实现 PHY 与链路通道，本地传输用稀疏内存，
// Cluster 按机架、层板和芯片网格组装一组 fabric 节点，
// 可以逐轮推进（Step）也可以每节点一个 goroutine 并发运行（Run）。
package sim

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	fabric "github.com/dep2p/go-fabric"
	"github.com/dep2p/go-fabric/config"
	"github.com/dep2p/go-fabric/pkg/interfaces"
	"github.com/dep2p/go-fabric/pkg/lib/log"
	"github.com/dep2p/go-fabric/pkg/types"
)

var logger = log.Logger("sim")

// 仿真芯片的端口布局
const (
	PortLeft = iota
	PortRight
	PortUp
	PortDown
	PortRackUp
	PortRackDown
	PortRackLeft
	PortRackRight

	NumPorts
)

// ErrNotSettled 轮数用尽仍未达到条件
var ErrNotSettled = errors.New("sim: cluster did not settle")

// Chip 层板内芯片坐标
type Chip struct {
	X, Y int
}

// Spec 仿真集群描述
type Spec struct {
	// Racks 机架数（Rack.X），Shelves 每个机架的层板数（Rack.Y）
	Racks   int
	Shelves int

	// Width/Height 层板芯片网格
	Width  int
	Height int

	// NocCols/NocRows 每个芯片的本地端点网格，路由器位于 (0,0)
	NocCols int
	NocRows int

	// RackYChips 层板间线缆所在芯片，必须在左右两列，默认 (0,0)。
	// 中间层板上这些芯片同时有向上和向下的线缆
	RackYChips []Chip
	// RackXChips 机架间线缆所在芯片，必须在顶底两行，默认 (Width-1,0)
	RackXChips []Chip
	// RackXShelves 有机架间线缆的层板，默认全部
	RackXShelves []int

	// ChannelDepth 每个方向的帧缓冲深度
	ChannelDepth int

	// Base 每个节点配置的模板，节点身份、几何和端口掩码会被覆盖
	Base *config.Config

	// Metrics 为每个节点创建指标收集器
	Metrics bool

	Clock clock.Clock
}

func (s *Spec) setDefaults() {
	if s.Racks == 0 {
		s.Racks = 1
	}
	if s.Shelves == 0 {
		s.Shelves = 1
	}
	if s.Width == 0 {
		s.Width = 2
	}
	if s.Height == 0 {
		s.Height = 2
	}
	if s.NocCols == 0 {
		s.NocCols = 2
	}
	if s.NocRows == 0 {
		s.NocRows = 2
	}
	if s.RackYChips == nil {
		s.RackYChips = []Chip{{0, 0}}
	}
	if s.RackXChips == nil {
		s.RackXChips = []Chip{{s.Width - 1, 0}}
	}
	if s.RackXShelves == nil {
		for y := 0; y < s.Shelves; y++ {
			s.RackXShelves = append(s.RackXShelves, y)
		}
	}
	if s.ChannelDepth == 0 {
		s.ChannelDepth = DefaultChannelDepth
	}
}

// Validate 校验集群描述
func (s *Spec) Validate() error {
	var err error
	if s.Racks < 1 || s.Racks > types.MaxRacks {
		err = multierr.Append(err, fmt.Errorf("sim: racks %d out of range", s.Racks))
	}
	if s.Shelves < 1 || s.Shelves > types.MaxShelves {
		err = multierr.Append(err, fmt.Errorf("sim: shelves %d out of range", s.Shelves))
	}
	if s.Width < 2 || s.Height < 2 || s.Width*s.Height > 64 {
		err = multierr.Append(err, fmt.Errorf("sim: shelf %dx%d out of range", s.Width, s.Height))
	}
	for _, c := range s.RackYChips {
		if c.X != 0 && c.X != s.Width-1 || c.Y < 0 || c.Y >= s.Height {
			err = multierr.Append(err, fmt.Errorf("sim: rack-y cable on chip %v is not a y router", c))
		}
	}
	for _, c := range s.RackXChips {
		if c.Y != 0 && c.Y != s.Height-1 || c.X < 0 || c.X >= s.Width {
			err = multierr.Append(err, fmt.Errorf("sim: rack-x cable on chip %v is not an x router", c))
		}
	}
	for _, y := range s.RackXShelves {
		if y < 0 || y >= s.Shelves {
			err = multierr.Append(err, fmt.Errorf("sim: rack-x shelf %d out of range", y))
		}
	}
	return err
}

// ════════════════════════════════════════════════════════════════════════════
//                              集群
// ════════════════════════════════════════════════════════════════════════════

type chipKey struct {
	rack types.Rack
	x, y int
}

type member struct {
	id        types.Identity
	ports     []interfaces.Port
	cables    []*Cable
	node      *fabric.Node
	transport *MemTransport
}

// Cluster 仿真集群
type Cluster struct {
	spec    Spec
	order   []chipKey
	members map[chipKey]*member
	cables  []*Cable
}

// New 按描述组装集群，节点尚未启动
func New(spec Spec) (*Cluster, error) {
	spec.setDefaults()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	c := &Cluster{spec: spec, members: make(map[chipKey]*member)}

	boardID := uint32(1)
	for rx := 0; rx < spec.Racks; rx++ {
		for ry := 0; ry < spec.Shelves; ry++ {
			for x := 0; x < spec.Width; x++ {
				for y := 0; y < spec.Height; y++ {
					k := chipKey{types.Rack{X: uint8(rx), Y: uint8(ry)}, x, y}
					c.members[k] = &member{
						id: types.Identity{
							BoardID:   boardID,
							BoardType: types.BoardGeneric,
							Rack:      k.rack,
							ChipX:     uint8(x),
							ChipY:     uint8(y),
						},
						ports:  make([]interfaces.Port, NumPorts),
						cables: make([]*Cable, NumPorts),
					}
					c.order = append(c.order, k)
					boardID++
				}
			}
		}
	}

	c.wire()
	for _, k := range c.order {
		if err := c.build(k); err != nil {
			return nil, multierr.Append(fmt.Errorf("sim: build %s: %w", c.members[k].id, err), c.Close())
		}
	}
	logger.Info("仿真集群已组装", "chips", len(c.order), "cables", len(c.cables))
	return c, nil
}

// wire 铺设线缆：层板内网格、层板间 Y 路由器、机架间 X 路由器
func (c *Cluster) wire() {
	s := c.spec
	for _, k := range c.order {
		if k.x+1 < s.Width {
			c.connect(k, PortRight, chipKey{k.rack, k.x + 1, k.y}, PortLeft)
		}
		if k.y+1 < s.Height {
			c.connect(k, PortUp, chipKey{k.rack, k.x, k.y + 1}, PortDown)
		}
	}
	for rx := 0; rx < s.Racks; rx++ {
		for ry := 0; ry+1 < s.Shelves; ry++ {
			for _, ch := range s.RackYChips {
				lo := chipKey{types.Rack{X: uint8(rx), Y: uint8(ry)}, ch.X, ch.Y}
				hi := chipKey{types.Rack{X: uint8(rx), Y: uint8(ry + 1)}, ch.X, ch.Y}
				c.connect(lo, PortRackUp, hi, PortRackDown)
			}
		}
	}
	for rx := 0; rx+1 < s.Racks; rx++ {
		for _, ry := range s.RackXShelves {
			for _, ch := range s.RackXChips {
				l := chipKey{types.Rack{X: uint8(rx), Y: uint8(ry)}, ch.X, ch.Y}
				r := chipKey{types.Rack{X: uint8(rx + 1), Y: uint8(ry)}, ch.X, ch.Y}
				c.connect(l, PortRackRight, r, PortRackLeft)
			}
		}
	}
}

func (c *Cluster) connect(a chipKey, pa int, b chipKey, pb int) {
	ma, mb := c.members[a], c.members[b]
	cable := NewCable(ma.id, mb.id, c.spec.ChannelDepth)
	ma.ports[pa] = interfaces.Port{PHY: cable.A(), Channel: cable.A()}
	mb.ports[pb] = interfaces.Port{PHY: cable.B(), Channel: cable.B()}
	ma.cables[pa], mb.cables[pb] = cable, cable
	c.cables = append(c.cables, cable)
}

// build 为芯片生成配置并创建节点；没有线缆的端口被屏蔽
func (c *Cluster) build(k chipKey) error {
	s := c.spec
	m := c.members[k]

	cfg := config.NewConfig()
	if s.Base != nil {
		cfg = s.Base.Clone()
	}
	cfg.Node.BoardID = m.id.BoardID
	cfg.Node.BoardType = m.id.BoardType.String()
	cfg.Node.RackX, cfg.Node.RackY = m.id.Rack.X, m.id.Rack.Y
	cfg.Node.ChipX, cfg.Node.ChipY = m.id.ChipX, m.id.ChipY
	cfg.Node.NocX, cfg.Node.NocY = 0, 0
	cfg.Node.ShelfWidth, cfg.Node.ShelfHeight = s.Width, s.Height
	cfg.Node.NocCols, cfg.Node.NocRows = s.NocCols, s.NocRows
	cfg.Node.NumPorts = NumPorts
	cfg.Metrics.Enabled = s.Metrics
	if s.Base == nil {
		cfg.Discovery.PersistSnapshot = false
	}
	if cfg.Discovery.PersistSnapshot && !cfg.Storage.InMemory {
		// 每个芯片独占一个 BadgerDB 目录
		cfg.Storage.DataDir = filepath.Join(cfg.Storage.DataDir,
			fmt.Sprintf("rack%d.%d-chip%d.%d", k.rack.X, k.rack.Y, k.x, k.y))
	}

	cfg.Link.PortDisableMask = 0
	for p := range m.ports {
		if m.ports[p].PHY == nil {
			cfg.Link.PortDisableMask |= 1 << uint(p)
			m.ports[p] = interfaces.Port{PHY: deadPort(m.id)}
		}
	}

	m.transport = NewMemTransport(s.NocCols, s.NocRows)
	opts := []fabric.Option{
		fabric.WithConfig(cfg),
		fabric.WithPorts(m.ports...),
		fabric.WithTransport(m.transport),
	}
	if s.Clock != nil {
		opts = append(opts, fabric.WithClock(s.Clock))
	}
	node, err := fabric.New(opts...)
	if err != nil {
		return err
	}
	m.node = node
	m.transport.Attach(0, 0, node.Memory())
	return nil
}

// deadPort 屏蔽端口使用的拔出线缆端
func deadPort(id types.Identity) *End {
	cable := NewCable(id, id, 1)
	cable.Unplug()
	return cable.A()
}

// ════════════════════════════════════════════════════════════════════════════
//                              运行
// ════════════════════════════════════════════════════════════════════════════

// Start 启动所有节点
func (c *Cluster) Start(ctx context.Context) error {
	for _, k := range c.order {
		if err := c.members[k].node.Start(ctx); err != nil {
			return fmt.Errorf("sim: start %s: %w", c.members[k].id, err)
		}
	}
	return nil
}

// Close 关闭所有节点
func (c *Cluster) Close() error {
	var err error
	for _, k := range c.order {
		if n := c.members[k].node; n != nil {
			err = multierr.Append(err, n.Close())
		}
	}
	return err
}

// Step 按固定顺序把每个节点推进一轮
func (c *Cluster) Step() error {
	for _, k := range c.order {
		m := c.members[k]
		if err := m.node.Poll(); err != nil {
			return fmt.Errorf("sim: %s: %w", m.id, err)
		}
	}
	return nil
}

// Settle 反复 Step 直到 done 返回 true，最多 rounds 轮
func (c *Cluster) Settle(rounds int, done func() bool) error {
	for i := 0; i < rounds; i++ {
		if done() {
			return nil
		}
		if err := c.Step(); err != nil {
			return err
		}
	}
	if done() {
		return nil
	}
	return fmt.Errorf("%w after %d rounds", ErrNotSettled, rounds)
}

// WaitRouting 推进直到所有节点安装了路由表
func (c *Cluster) WaitRouting(rounds int) error {
	return c.Settle(rounds, c.Ready)
}

// Ready 所有节点的路由表是否已安装
func (c *Cluster) Ready() bool {
	for _, k := range c.order {
		if !c.members[k].node.Ready() {
			return false
		}
	}
	return true
}

// Run 每个节点一个 goroutine 并发轮询，直到 ctx 结束或某个节点出错
func (c *Cluster) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, k := range c.order {
		node := c.members[k].node
		g.Go(func() error {
			return node.Run(ctx)
		})
	}
	return g.Wait()
}

// ════════════════════════════════════════════════════════════════════════════
//                              查询
// ════════════════════════════════════════════════════════════════════════════

// Spec 补全默认值后的集群描述
func (c *Cluster) Spec() Spec { return c.spec }

// Size 芯片数
func (c *Cluster) Size() int { return len(c.order) }

// Nodes 按 Step 顺序返回所有节点
func (c *Cluster) Nodes() []*fabric.Node {
	out := make([]*fabric.Node, len(c.order))
	for i, k := range c.order {
		out[i] = c.members[k].node
	}
	return out
}

// Node 返回指定芯片的节点，不存在时为 nil
func (c *Cluster) Node(rack types.Rack, x, y int) *fabric.Node {
	if m := c.members[chipKey{rack, x, y}]; m != nil {
		return m.node
	}
	return nil
}

// Transport 返回指定芯片的本地传输
func (c *Cluster) Transport(rack types.Rack, x, y int) *MemTransport {
	if m := c.members[chipKey{rack, x, y}]; m != nil {
		return m.transport
	}
	return nil
}

// Cable 返回指定芯片端口上的线缆，没有时为 nil
func (c *Cluster) Cable(rack types.Rack, x, y, port int) *Cable {
	m := c.members[chipKey{rack, x, y}]
	if m == nil || port < 0 || port >= NumPorts {
		return nil
	}
	return m.cables[port]
}

// Cables 所有线缆
func (c *Cluster) Cables() []*Cable {
	return append([]*Cable(nil), c.cables...)
}
