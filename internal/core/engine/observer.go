package engine

import (
	"time"

	"github.com/dep2p/go-fabric/pkg/types"
)

// Disposition 命令的终结方式
type Disposition string

const (
	DispositionLocal       Disposition = "local"
	DispositionTransport   Disposition = "transport"
	DispositionBroadcast   Disposition = "broadcast"
	DispositionForwarded   Disposition = "forwarded"
	DispositionUnreachable Disposition = "unreachable"
)

// Observer 引擎事件观察者，由指标模块实现
type Observer interface {
	// CommandDone 一个请求到达终结状态
	CommandDone(d Disposition)
	// Forwarded 请求从某方向转发
	Forwarded(dir types.Direction)
	// Retried 因信用不足或链路忙推迟到下一轮
	Retried()
	// ResponseDelivered 主机收到应答；带 Timestamp 标志的请求给出延迟
	ResponseDelivered(latency time.Duration, timed bool)
	// ProtocolViolation 引擎因协议错误停止
	ProtocolViolation()
}

type nopObserver struct{}

func (nopObserver) CommandDone(Disposition)               {}
func (nopObserver) Forwarded(types.Direction)             {}
func (nopObserver) Retried()                              {}
func (nopObserver) ResponseDelivered(time.Duration, bool) {}
func (nopObserver) ProtocolViolation()                    {}
