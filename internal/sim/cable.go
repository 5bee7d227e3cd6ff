package sim

import (
	"errors"
	"sync"

	"github.com/dep2p/go-fabric/pkg/interfaces"
	"github.com/dep2p/go-fabric/pkg/types"
)

// ErrUnplugged 线缆已拔出，帧被丢弃
var ErrUnplugged = errors.New("sim: cable unplugged")

// DefaultChannelDepth 每个方向的帧缓冲深度
const DefaultChannelDepth = 64

// Cable 连接两个端口的仿真线缆
//
// 两端各自实现 interfaces.PHY 与 interfaces.Channel。
// 线缆并发安全，两端可以在不同 goroutine 中轮询。
type Cable struct {
	mu        sync.Mutex
	depth     int
	connected bool
	ends      [2]*End
}

// NewCable 创建一条已插好的线缆，a、b 为两端芯片身份
func NewCable(a, b types.Identity, depth int) *Cable {
	if depth <= 0 {
		depth = DefaultChannelDepth
	}
	c := &Cable{depth: depth, connected: true}
	c.ends[0] = &End{cable: c, side: 0, id: a}
	c.ends[1] = &End{cable: c, side: 1, id: b}
	return c
}

// A 第一端
func (c *Cable) A() *End { return c.ends[0] }

// B 第二端
func (c *Cable) B() *End { return c.ends[1] }

// Unplug 拔出线缆，在途帧丢失
func (c *Cable) Unplug() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	for _, e := range c.ends {
		e.inbox = nil
		e.dummySent = false
	}
}

// Plug 重新插上线缆
func (c *Cable) Plug() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
}

// Connected 线缆是否插好
func (c *Cable) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// End 线缆的一端
type End struct {
	cable *Cable
	side  int
	id    types.Identity

	// 以下字段受 cable.mu 保护
	inbox     [][]byte
	rxFrames  uint64
	crcErrors uint64
	symErrors uint32
	dummySent bool
}

var (
	_ interfaces.PHY     = (*End)(nil)
	_ interfaces.Channel = (*End)(nil)
)

func (e *End) peer() *End { return e.cable.ends[1-e.side] }

// InjectCRC 累加 CRC 错误计数
func (e *End) InjectCRC(n uint64) {
	e.cable.mu.Lock()
	defer e.cable.mu.Unlock()
	e.crcErrors += n
}

// InjectSymbolErrors 设置训练后的符号错误计数
func (e *End) InjectSymbolErrors(n uint32) {
	e.cable.mu.Lock()
	defer e.cable.mu.Unlock()
	e.symErrors = n
}

// Pending 接收缓冲中尚未取出的帧数
func (e *End) Pending() int {
	e.cable.mu.Lock()
	defer e.cable.mu.Unlock()
	return len(e.inbox)
}

func (e *End) up() bool {
	e.cable.mu.Lock()
	defer e.cable.mu.Unlock()
	return e.cable.connected
}

// ════════════════════════════════════════════════════════════════════════════
//                              PHY
// ════════════════════════════════════════════════════════════════════════════

// Reset 复位 PCS
func (e *End) Reset() error { return nil }

// MACLoopback 仿真端口不做 MAC 环回
func (e *End) MACLoopback() bool { return false }

// StartAutoneg 发起自协商
func (e *End) StartAutoneg() {}

// PageReceived 插好即收到对端页
func (e *End) PageReceived() bool { return e.up() }

// Train 链路均衡训练
func (e *End) Train(bool) error {
	if !e.up() {
		return ErrUnplugged
	}
	return nil
}

// AutonegComplete 自协商是否完成
func (e *End) AutonegComplete() bool { return e.up() }

// SignalDetected 是否检测到信号
func (e *End) SignalDetected() bool { return e.up() }

// PCSUp PCS 是否锁定
func (e *End) PCSUp() bool { return e.up() }

// SymbolErrors 符号错误计数
func (e *End) SymbolErrors() uint32 {
	e.cable.mu.Lock()
	defer e.cable.mu.Unlock()
	return e.symErrors
}

// RemoteIdentity 对端芯片身份
func (e *End) RemoteIdentity() (types.Identity, bool) {
	if !e.up() {
		return types.Identity{}, false
	}
	return e.peer().id, true
}

// CableLoopback 线缆两端是否同一芯片
func (e *End) CableLoopback() bool {
	p := e.peer().id
	return p.Rack == e.id.Rack && p.SameChip(e.id)
}

// SendDummyPacket 发送探测包
func (e *End) SendDummyPacket() {
	e.cable.mu.Lock()
	defer e.cable.mu.Unlock()
	e.dummySent = e.cable.connected
}

// DummyPacketEchoed 探测包是否回显
func (e *End) DummyPacketEchoed() bool {
	e.cable.mu.Lock()
	defer e.cable.mu.Unlock()
	return e.dummySent && e.cable.connected
}

// Health 健康采样
func (e *End) Health() interfaces.HealthSample {
	e.cable.mu.Lock()
	defer e.cable.mu.Unlock()
	return interfaces.HealthSample{
		LinkUp:    e.cable.connected,
		CRCErrors: e.crcErrors,
		RxFrames:  e.rxFrames,
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              Channel
// ════════════════════════════════════════════════════════════════════════════

// Send 把帧放入对端接收缓冲
func (e *End) Send(frame []byte) error {
	e.cable.mu.Lock()
	defer e.cable.mu.Unlock()
	if !e.cable.connected {
		return ErrUnplugged
	}
	p := e.peer()
	if len(p.inbox) >= e.cable.depth {
		return interfaces.ErrChannelBusy
	}
	p.inbox = append(p.inbox, append([]byte(nil), frame...))
	return nil
}

// Receive 取出一帧
func (e *End) Receive() ([]byte, bool) {
	e.cable.mu.Lock()
	defer e.cable.mu.Unlock()
	if len(e.inbox) == 0 {
		return nil, false
	}
	f := e.inbox[0]
	e.inbox[0] = nil
	e.inbox = e.inbox[1:]
	e.rxFrames++
	return f, true
}
