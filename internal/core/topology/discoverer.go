package topology

import (
	"bytes"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/dep2p/go-fabric/internal/core/wire"
	"github.com/dep2p/go-fabric/pkg/lib/log"
	"github.com/dep2p/go-fabric/pkg/types"
)

var logger = log.Logger("core/topology")

// Sender 按端口发送发现帧
type Sender interface {
	SendMessage(port int, m *wire.Message) error
}

// worker 某方向上负责推送条目的端口
type worker struct {
	port int
	dir  types.Direction
	// shelf 罗盘方向的 worker 同时推送层板表
	shelf bool
	sent  [2][]bool

	seq      uint32
	inflight []wire.Entry
	sentAt   time.Time
	hello    bool
}

// Discoverer 协作式拓扑发现
//
// 每个方向由该方向最小端口号的 worker 把本芯片已知的条目逐批推给邻居，
// 每批等待确认后再发下一批。接收端总是合并并确认，即使自己已完成。
// 所有条目已知且每个 worker 都推送完毕即完成。
//
// 纪元用于重新发现：收到更新的纪元时清空两张表并重新开始。
// 初始发现使用零纪元。
type Discoverer struct {
	cfg   Config
	local types.Identity
	out   Sender
	clk   clock.Clock

	tables     *Tables
	conns      []types.Conn
	epoch      uuid.UUID
	started    bool
	done       bool
	rackSeeded bool
	workers    []*worker
	acks       map[int]uint32
	generation uint64
}

// NewDiscoverer 创建发现器
func NewDiscoverer(cfg Config, local types.Identity, out Sender, clk clock.Clock) (*Discoverer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if int(local.ChipX) >= cfg.Geometry.Width || int(local.ChipY) >= cfg.Geometry.Height {
		return nil, fmt.Errorf("%w: chip (%d,%d) outside shelf", ErrInvalidGeometry, local.ChipX, local.ChipY)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Discoverer{
		cfg:    cfg,
		local:  local,
		out:    out,
		clk:    clk,
		tables: NewTables(cfg.Geometry),
		acks:   make(map[int]uint32),
	}, nil
}

// Start 以端口分类开始初始发现
func (d *Discoverer) Start(conns []types.Conn) {
	d.conns = append([]types.Conn(nil), conns...)
	d.epoch = uuid.Nil
	d.started = true
	d.restart(false)
	logger.Info("开始拓扑发现", "chip", d.local, "workers", len(d.workers))
}

// Rediscover 生成新纪元并重新发现，通知所有邻居
func (d *Discoverer) Rediscover(conns []types.Conn) error {
	epoch, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("new epoch: %w", err)
	}
	d.conns = append([]types.Conn(nil), conns...)
	d.epoch = epoch
	d.started = true
	d.restart(true)
	logger.Info("重新发现拓扑", "epoch", epoch)
	return nil
}

func (d *Discoverer) restart(announce bool) {
	d.tables.Reset()
	d.done = false
	d.rackSeeded = false
	clear(d.acks)
	d.generation++

	d.workers = d.workers[:0]
	add := func(dir types.Direction, shelf bool) {
		p := MinPort(d.conns, dir.Conn())
		if p < 0 {
			return
		}
		w := &worker{port: p, dir: dir, shelf: shelf, hello: announce}
		w.sent[TableShelf] = make([]bool, d.tables.Len(TableShelf))
		w.sent[TableRack] = make([]bool, d.tables.Len(TableRack))
		d.workers = append(d.workers, w)
	}
	for _, dir := range types.CompassDirections {
		add(dir, true)
	}
	add(types.DirRackUp, false)
	add(types.DirRackDown, false)

	d.seedShelf()
}

// ════════════════════════════════════════════════════════════════════════════
//                              本地条目
// ════════════════════════════════════════════════════════════════════════════

func (d *Discoverer) has(c types.Conn) bool {
	return MinPort(d.conns, c) >= 0
}

// routerEntry 优先 a 方向的最小端口，其次 b，都没有则未连接
func (d *Discoverer) routerEntry(a, b types.Conn) Entry {
	if p := MinPort(d.conns, a); p >= 0 {
		return MakeEntry(p, a)
	}
	if p := MinPort(d.conns, b); p >= 0 {
		return MakeEntry(p, b)
	}
	return Unconnected
}

func (d *Discoverer) set(id TableID, index int, e Entry) {
	if _, err := d.tables.Set(id, index, e); err != nil {
		logger.Error("写入拓扑表失败", "error", err)
	}
}

// seedShelf 填写本芯片负责的层板表条目
func (d *Discoverer) seedShelf() {
	g := d.cfg.Geometry
	x, y := int(d.local.ChipX), int(d.local.ChipY)

	if i := g.YRouterIndex(x, y); i >= 0 {
		d.set(TableShelf, i, d.routerEntry(types.ConnRackUp, types.ConnRackDown))
		down := Unconnected
		if p := MinPort(d.conns, types.ConnRackDown); p >= 0 {
			down = MakeEntry(p, types.ConnRackDown)
		}
		d.set(TableShelf, g.DownSlot(i), down)
	}
	if i := g.XRouterIndex(x, y); i >= 0 {
		d.set(TableShelf, i, d.routerEntry(types.ConnRackLeft, types.ConnRackRight))
	}

	// 部分布板时由占用区域的四角替缺失的芯片填占位
	left := !d.has(types.ConnLeft)
	right := !d.has(types.ConnRight)
	top := !d.has(types.ConnUp)
	bottom := !d.has(types.ConnDown)

	if bottom && left {
		d.fillColumnBelow(0, x == 0, y)
		d.fillRowBefore(0, y == 0, x)
	}
	if top && left {
		d.fillColumnAbove(0, x == 0, y)
		d.fillRowBefore(g.Height-1, y == g.Height-1, x)
	}
	if top && right {
		d.fillRowAfter(g.Height-1, y == g.Height-1, x)
		d.fillColumnAbove(g.Width-1, x == g.Width-1, y)
	}
	if bottom && right {
		d.fillColumnBelow(g.Width-1, x == g.Width-1, y)
		d.fillRowAfter(0, y == 0, x)
	}
}

// fillColumnBelow 列 col 上低于 y 的 Y 路由器；本芯片不在该列时整列
func (d *Discoverer) fillColumnBelow(col int, inCol bool, y int) {
	g := d.cfg.Geometry
	for yy := 0; yy < g.Height; yy++ {
		if !inCol || yy < y {
			d.fillYRouter(g.YRouterIndex(col, yy))
		}
	}
}

func (d *Discoverer) fillColumnAbove(col int, inCol bool, y int) {
	g := d.cfg.Geometry
	for yy := 0; yy < g.Height; yy++ {
		if !inCol || yy > y {
			d.fillYRouter(g.YRouterIndex(col, yy))
		}
	}
}

func (d *Discoverer) fillYRouter(i int) {
	d.set(TableShelf, i, Unconnected)
	d.set(TableShelf, d.cfg.Geometry.DownSlot(i), Unconnected)
}

// fillRowBefore 行 row 上 x 左侧的 X 路由器；本芯片不在该行时整行
func (d *Discoverer) fillRowBefore(row int, inRow bool, x int) {
	g := d.cfg.Geometry
	for xx := 0; xx < g.Width; xx++ {
		if !inRow || xx < x {
			d.set(TableShelf, g.XRouterIndex(xx, row), Unconnected)
		}
	}
}

func (d *Discoverer) fillRowAfter(row int, inRow bool, x int) {
	g := d.cfg.Geometry
	for xx := 0; xx < g.Width; xx++ {
		if !inRow || xx > x {
			d.set(TableShelf, g.XRouterIndex(xx, row), Unconnected)
		}
	}
}

// seedRack 层板表完整后，由左下角芯片把本层板的 X 路由器写入机架表
func (d *Discoverer) seedRack() {
	d.rackSeeded = true
	if d.has(types.ConnLeft) || d.has(types.ConnDown) {
		return
	}
	g := d.cfg.Geometry
	rackY := int(d.local.Rack.Y)
	if rackY >= types.MaxShelves {
		logger.Error("层板编号超出机架表", "rack_y", rackY)
		return
	}

	if !d.tables.HasShelfConn(types.ConnRackUp) {
		for yy := rackY + 1; yy < types.MaxShelves; yy++ {
			for s := 0; s < g.RackSlots(); s++ {
				d.set(TableRack, g.RackIndex(yy, s), Unconnected)
			}
		}
	}
	for i, e := range d.tables.Shelf {
		if g.IsXRouter(i) {
			d.set(TableRack, g.RackIndex(rackY, g.RackSlot(i)), e)
		}
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              推进
// ════════════════════════════════════════════════════════════════════════════

// Poll 推进一步：补发确认、推送条目、检查完成
func (d *Discoverer) Poll() {
	if !d.started {
		return
	}
	d.flushAcks()
	if !d.rackSeeded && d.tables.Complete(TableShelf) {
		d.seedRack()
	}
	for _, w := range d.workers {
		d.pump(w)
	}
	if !d.done && d.tables.Complete(TableShelf) && d.tables.Complete(TableRack) && d.allSent() {
		d.done = true
		logger.Info("拓扑发现完成", "chip", d.local, "epoch", d.epoch)
	}
}

func (d *Discoverer) pump(w *worker) {
	if w.hello {
		if err := d.out.SendMessage(w.port, &wire.Message{Kind: wire.KindHello, Epoch: d.epoch.String()}); err != nil {
			return
		}
		w.hello = false
	}

	if w.inflight != nil {
		if d.clk.Since(w.sentAt) >= d.cfg.ResendTimeout {
			d.sendEntries(w)
		}
		return
	}

	var batch []wire.Entry
	collect := func(id TableID) {
		tab := d.tables.table(id)
		for i, e := range tab {
			if len(batch) >= d.cfg.BatchSize {
				return
			}
			if e.Known() && !w.sent[id][i] {
				batch = append(batch, wire.Entry{Table: uint8(id), Index: uint16(i), Value: uint8(e)})
			}
		}
	}
	if w.shelf {
		collect(TableShelf)
	}
	collect(TableRack)
	if len(batch) == 0 {
		return
	}

	w.seq++
	w.inflight = batch
	w.sentAt = time.Time{}
	d.sendEntries(w)
}

func (d *Discoverer) sendEntries(w *worker) {
	msg := &wire.Message{Kind: wire.KindEntries, Epoch: d.epoch.String(), Seq: w.seq, Entries: w.inflight}
	if err := d.out.SendMessage(w.port, msg); err != nil {
		return
	}
	w.sentAt = d.clk.Now()
}

func (d *Discoverer) flushAcks() {
	for port, seq := range d.acks {
		msg := &wire.Message{Kind: wire.KindAck, Epoch: d.epoch.String(), Seq: seq}
		if err := d.out.SendMessage(port, msg); err == nil {
			delete(d.acks, port)
		}
	}
}

func (d *Discoverer) allSent() bool {
	for _, w := range d.workers {
		if w.inflight != nil {
			return false
		}
		for id := TableShelf; id <= TableRack; id++ {
			if id == TableShelf && !w.shelf {
				continue
			}
			for _, ok := range w.sent[id] {
				if !ok {
					return false
				}
			}
		}
	}
	return true
}

// ════════════════════════════════════════════════════════════════════════════
//                              接收
// ════════════════════════════════════════════════════════════════════════════

// HandleMessage 处理端口上收到的发现帧
func (d *Discoverer) HandleMessage(port int, m *wire.Message) error {
	if !d.started {
		return ErrNotStarted
	}
	epoch, err := uuid.Parse(m.Epoch)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadEpoch, m.Epoch)
	}

	switch m.Kind {
	case wire.KindHello:
		d.observe(epoch)
	case wire.KindEntries:
		if !d.observe(epoch) {
			return nil
		}
		for _, e := range m.Entries {
			if e.Table > uint8(TableRack) {
				return fmt.Errorf("%w: table %d", ErrBadEntry, e.Table)
			}
			if _, err := d.tables.Set(TableID(e.Table), int(e.Index), Entry(e.Value)); err != nil {
				return err
			}
		}
		d.acks[port] = m.Seq
		d.flushAcks()
	case wire.KindAck:
		if epoch != d.epoch {
			return nil
		}
		for _, w := range d.workers {
			if w.port == port && w.inflight != nil && w.seq == m.Seq {
				for _, e := range w.inflight {
					w.sent[e.Table][e.Index] = true
				}
				w.inflight = nil
			}
		}
	}
	return nil
}

// observe 比较纪元：更新的纪元触发重置，过期的返回 false
func (d *Discoverer) observe(epoch uuid.UUID) bool {
	switch c := bytes.Compare(epoch[:], d.epoch[:]); {
	case c < 0:
		return false
	case c > 0:
		logger.Info("采纳新的发现纪元", "epoch", epoch, "previous", d.epoch)
		d.epoch = epoch
		d.restart(true)
	}
	return true
}

// ════════════════════════════════════════════════════════════════════════════
//                              查询
// ════════════════════════════════════════════════════════════════════════════

// Started 是否已开始
func (d *Discoverer) Started() bool { return d.started }

// Complete 本轮发现是否完成
func (d *Discoverer) Complete() bool { return d.done }

// Generation 每次重置加一，调用方据此判断表是否失效
func (d *Discoverer) Generation() uint64 { return d.generation }

// Epoch 当前纪元
func (d *Discoverer) Epoch() string { return d.epoch.String() }

// Conns 端口分类
func (d *Discoverer) Conns() []types.Conn {
	return append([]types.Conn(nil), d.conns...)
}

// Tables 当前表的拷贝
func (d *Discoverer) Tables() *Tables {
	return d.tables.Clone()
}

// Progress 两张表的已知条目数
func (d *Discoverer) Progress() (shelf, rack int) {
	return d.tables.Known(TableShelf), d.tables.Known(TableRack)
}

// Snapshot 生成拓扑快照
func (d *Discoverer) Snapshot() *Snapshot {
	return &Snapshot{
		Epoch:    d.Epoch(),
		Identity: d.local,
		Conns:    d.Conns(),
		Shelf:    append([]Entry(nil), d.tables.Shelf...),
		Rack:     append([]Entry(nil), d.tables.Rack...),
		SavedAt:  d.clk.Now(),
	}
}
