package engine

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-fabric/internal/core/queue"
	"github.com/dep2p/go-fabric/internal/core/routing"
	"github.com/dep2p/go-fabric/internal/core/wire"
	"github.com/dep2p/go-fabric/pkg/interfaces"
	"github.com/dep2p/go-fabric/pkg/lib/log"
	"github.com/dep2p/go-fabric/pkg/types"
)

var logger = log.Logger("core/engine")

// Sender 按端口发送帧
type Sender interface {
	SendMessage(port int, m *wire.Message) error
}

// pair 一对请求/应答队列
//
// req 保存从该来源到达的请求，resp 保存这些请求的应答槽位，
// 应答送回同一来源。
type pair struct {
	id   types.QueueID
	port int
	req  *queue.Ring
	resp *queue.Ring
	// stale 链路重训前已调度的应答数，完成后直接出队，不再回送
	stale int
}

// slotKey 应答槽位
type slotKey struct {
	qid  types.QueueID
	slot int
}

// flight 已转发、等待下游应答的请求
type flight struct {
	port int
	// flags 链路失效时补给应答槽位的标志
	flags types.Flag
	// fault 有序序列中已有中间块失败，应答补上不可达
	fault bool
}

// Engine 路由引擎
//
// 单线程轮询：每次 Poll 依次执行请求遍历、广播补发、应答遍历和信用通告。
// 引擎本身不加锁，由节点保证只在一个 goroutine 中调用。
type Engine struct {
	cfg       Config
	local     types.Identity
	out       Sender
	transport interfaces.LocalTransport
	clk       clock.Clock
	obs       Observer
	mem       *Memory

	routes  *routing.Table
	pairs   []*pair
	windows []*queue.Window
	// creditDue 端口请求队列读指针前进后待通告
	creditDue []bool

	bcasts  map[slotKey]*bcastState
	flights map[slotKey]flight
	streams map[streamKey]*stream

	hostDone  []types.Command
	localDone []types.Command
	stamps    map[uint8]time.Time
	nextTxn   uint8

	halted error
}

// New 创建引擎
//
// transport 为 nil 时发往同芯片其他端点的命令返回不可达。
func New(cfg Config, local types.Identity, out Sender, transport interfaces.LocalTransport, clk clock.Clock, obs Observer) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	e := &Engine{
		cfg:       cfg,
		local:     local,
		out:       out,
		transport: transport,
		clk:       clk,
		obs:       obs,
		mem:       NewMemory(),
		windows:   make([]*queue.Window, cfg.NumPorts),
		creditDue: make([]bool, cfg.NumPorts),
		bcasts:    make(map[slotKey]*bcastState),
		flights:   make(map[slotKey]flight),
		streams:   make(map[streamKey]*stream),
		stamps:    make(map[uint8]time.Time),
	}
	e.pairs = append(e.pairs,
		e.newPair(types.QueueHost, -1),
		e.newPair(types.QueueLocal, -1),
	)
	for p := 0; p < cfg.NumPorts; p++ {
		e.pairs = append(e.pairs, e.newPair(types.PortQueue(p), p))
		e.windows[p] = queue.NewWindow(cfg.QueueCapacity, cfg.QueueCapacity)
	}
	return e, nil
}

func (e *Engine) newPair(id types.QueueID, port int) *pair {
	return &pair{
		id:   id,
		port: port,
		req:  queue.New(e.cfg.QueueCapacity),
		resp: queue.New(e.cfg.QueueCapacity),
	}
}

// Memory 本端点内存
func (e *Engine) Memory() *Memory { return e.mem }

// SetRoutes 安装路由表，nil 表示暂停调度（例如重新发现期间）
func (e *Engine) SetRoutes(t *routing.Table) {
	e.routes = t
	if t == nil {
		return
	}
	for p, w := range e.windows {
		if b := t.Budget(p); b > 0 {
			w.SetBudget(b)
		}
	}
}

// Ready 路由表是否已安装
func (e *Engine) Ready() bool { return e.routes != nil }

// Halted 协议错误导致的停止原因
func (e *Engine) Halted() error { return e.halted }

// ResetPort 链路重训后清空端口队列与信用窗口
//
// 对端已放弃经该链路送来的请求：未调度的直接丢弃，已调度的完成后不再回送。
// 经该链路转发而未应答的请求与广播分支以不可达完成。
func (e *Engine) ResetPort(port int) {
	if port < 0 || port >= e.cfg.NumPorts {
		return
	}
	p := e.pairs[types.PortQueue(port)]
	p.req.Reset()
	p.stale = p.resp.Len()
	e.windows[port].Reset()
	e.creditDue[port] = false

	lost := 0
	for k, fl := range e.flights {
		if fl.port != port {
			continue
		}
		delete(e.flights, k)
		if slot := e.pairs[k.qid].resp.Slot(k.slot); slot.Flags == 0 {
			slot.Flags = fl.flags | types.FlagDestUnreachable
		}
		lost++
	}
	lost += e.dropArcs(port)
	e.faultStreams(port)
	if lost > 0 {
		logger.Warn("链路重训，在途请求以不可达完成", "chip", e.local, "port", port, "lost", lost)
	}
}

// Pending 各队列中尚未完成的请求与应答数
func (e *Engine) Pending() int {
	n := len(e.bcasts)
	for _, p := range e.pairs {
		n += p.req.Len() + p.resp.Len()
	}
	return n
}

func (e *Engine) halt(format string, args ...any) error {
	if e.halted == nil {
		e.halted = fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
		logger.Error("协议错误，路由引擎停止", "chip", e.local, "error", e.halted)
		e.obs.ProtocolViolation()
	}
	return e.halted
}

// ════════════════════════════════════════════════════════════════════════════
//                              轮询
// ════════════════════════════════════════════════════════════════════════════

// Poll 执行一轮调度
//
// 路由表未就绪时只处理应答和信用，不调度新请求。
func (e *Engine) Poll() error {
	if e.halted != nil {
		return e.halted
	}
	if e.routes != nil {
		for _, p := range e.pairs {
			if err := e.requestPass(p); err != nil {
				return err
			}
		}
		e.flushBroadcasts()
	}
	for _, p := range e.pairs {
		e.responsePass(p)
	}
	e.flushCredits()
	return e.halted
}

// HandleMessage 处理端口上收到的命令与信用帧
func (e *Engine) HandleMessage(port int, m *wire.Message) error {
	if e.halted != nil {
		return e.halted
	}
	if port < 0 || port >= e.cfg.NumPorts {
		return e.halt("frame on port %d", port)
	}
	switch m.Kind {
	case wire.KindRequest:
		return e.acceptRequest(port, &m.Command)
	case wire.KindResponse:
		return e.acceptResponse(port, &m.Command)
	case wire.KindCredit:
		if err := e.windows[port].Credit(m.Credit); err != nil {
			return e.halt("port %d: %v", port, err)
		}
		return nil
	default:
		return e.halt("port %d: unexpected %s frame", port, m.Kind)
	}
}

func (e *Engine) acceptRequest(port int, c *types.Command) error {
	if c.Valid != types.ValidMarker {
		return e.halt("port %d: invalid command marker %#x", port, c.Valid)
	}
	if err := c.ValidateBlock(); err != nil {
		return e.halt("port %d: %v", port, err)
	}
	if c.IsBroadcast() && !c.IsWrite() {
		return e.halt("port %d: broadcast read", port)
	}
	if c.IsBroadcast() && c.BlockLen() < types.BroadcastHeaderSize {
		return e.halt("port %d: broadcast block %d bytes", port, c.BlockLen())
	}
	if int(c.SrcRespBufIndex) >= e.cfg.QueueCapacity {
		return e.halt("port %d: response slot %d", port, c.SrcRespBufIndex)
	}
	if _, err := e.pairs[types.PortQueue(port)].req.Push(c); err != nil {
		return e.halt("port %d: request into full queue", port)
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              主机接口
// ════════════════════════════════════════════════════════════════════════════

// Submit 主机提交命令，返回事务编号
//
// 主机请求队列已满返回 queue.ErrFull；块大小无效和广播读同步拒绝。
func (e *Engine) Submit(c types.Command) (uint8, error) {
	if err := e.admit(&c); err != nil {
		return 0, err
	}
	host := e.pairs[types.QueueHost]
	if host.req.Full() {
		return 0, queue.ErrFull
	}

	txn := e.nextTxn
	e.nextTxn++
	c.Valid = types.ValidMarker
	c.SrcRespQID = types.QueueHost
	c.HostTxnID = txn
	c.SrcNocX, c.SrcNocY = e.local.NocX, e.local.NocY
	if c.Flags.Has(types.FlagTimestamp) {
		now := e.clk.Now()
		c.Timestamp = uint8(now.UnixMilli())
		e.stamps[txn] = now
	}
	if _, err := host.req.Push(&c); err != nil {
		delete(e.stamps, txn)
		return 0, err
	}
	return txn, nil
}

// SubmitLocal 同芯片其他端点经本地传输送来的命令
func (e *Engine) SubmitLocal(c types.Command) error {
	if err := e.admit(&c); err != nil {
		return err
	}
	c.Valid = types.ValidMarker
	c.SrcRespQID = types.QueueLocal
	_, err := e.pairs[types.QueueLocal].req.Push(&c)
	return err
}

func (e *Engine) admit(c *types.Command) error {
	if !c.IsRequest() {
		return fmt.Errorf("%w: not a request (%s)", ErrInvalidCommand, c.Flags)
	}
	if err := c.ValidateBlock(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if c.IsBroadcast() {
		if !c.IsWrite() {
			return ErrBroadcastRead
		}
		if c.BlockLen() < types.BroadcastHeaderSize {
			return fmt.Errorf("%w: broadcast block shorter than header", ErrInvalidCommand)
		}
	}
	return nil
}

// HostSpace 主机请求队列剩余槽位
func (e *Engine) HostSpace() int {
	host := e.pairs[types.QueueHost]
	return host.req.Cap() - host.req.Len()
}

// PopResponse 按提交顺序取出主机应答
func (e *Engine) PopResponse() (types.Command, bool) {
	if len(e.hostDone) == 0 {
		return types.Command{}, false
	}
	c := e.hostDone[0]
	e.hostDone = e.hostDone[1:]
	return c, true
}

// PopLocalResponse 取出本地传输来源的应答，顺序不保证
func (e *Engine) PopLocalResponse() (types.Command, bool) {
	if len(e.localDone) == 0 {
		return types.Command{}, false
	}
	c := e.localDone[0]
	e.localDone = e.localDone[1:]
	return c, true
}
