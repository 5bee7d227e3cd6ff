package types

import (
	"fmt"
	"strings"
)

// ════════════════════════════════════════════════════════════════════════════
//                              命令标志
// ════════════════════════════════════════════════════════════════════════════

// Flag 命令标志位，线上稳定
type Flag uint32

const (
	FlagWrReq Flag = 1 << iota
	FlagRdReq
	FlagWrAck
	FlagRdData
	FlagDataBlock
	FlagDataBlockDram
	FlagLastDataBlockDram
	FlagOrdered
	FlagBroadcast
	FlagTimestamp
	FlagDestUnreachable
)

// 有序块写组合
const (
	FlagOrderedBlockWrite     = FlagOrdered | FlagDataBlockDram | FlagDataBlock | FlagWrReq
	FlagLastOrderedBlockWrite = FlagOrderedBlockWrite | FlagLastDataBlockDram
	// FlagOrderedBlockWriteAck 中间块的占位应答，不向上游转发
	FlagOrderedBlockWriteAck = FlagOrdered | FlagDataBlockDram | FlagDataBlock | FlagWrAck
)

const (
	requestMask  = FlagWrReq | FlagRdReq
	responseMask = FlagWrAck | FlagRdData
)

// Has 是否包含全部指定位
func (f Flag) Has(x Flag) bool { return f&x == x }

// Any 是否包含任一指定位
func (f Flag) Any(x Flag) bool { return f&x != 0 }

// String 返回可读形式
func (f Flag) String() string {
	if f == 0 {
		return "none"
	}
	names := []string{"wr", "rd", "wr-ack", "rd-data", "block", "dram", "last", "ordered", "bcast", "ts", "unreachable"}
	var parts []string
	for i, n := range names {
		if f&(1<<i) != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "|")
}

// ════════════════════════════════════════════════════════════════════════════
//                              命令
// ════════════════════════════════════════════════════════════════════════════

const (
	// CommandSize 线上命令记录字节数（不含数据块）
	CommandSize = 32

	// MaxBlockSize 单个数据块上限
	MaxBlockSize = 1024

	// ValidMarker 有效命令标记
	ValidMarker uint32 = 0x600DF00D
)

// QueueID 队列对编号
//
// 0 为主机，1 为本地传输，2 起为各物理端口。
type QueueID uint8

const (
	QueueHost  QueueID = 0
	QueueLocal QueueID = 1
	queuePort0 QueueID = 2
)

// PortQueue 端口对应的队列编号
func PortQueue(port int) QueueID {
	return queuePort0 + QueueID(port)
}

// Port 返回端口号，非端口队列 ok 为 false
func (q QueueID) Port() (int, bool) {
	if q < queuePort0 {
		return 0, false
	}
	return int(q - queuePort0), true
}

func (q QueueID) String() string {
	switch q {
	case QueueHost:
		return "host"
	case QueueLocal:
		return "local"
	}
	p, _ := q.Port()
	return fmt.Sprintf("port%d", p)
}

// Command 路由命令/应答
//
// 固定字段编码为 32 字节记录；数据块（Block）随记录一同传输，
// 长度由 Data 给出，不超过 MaxBlockSize。
type Command struct {
	SysAddr uint64
	// Data 单字读写的数据，或数据块字节数
	Data            uint32
	Flags           Flag
	Rack            uint16
	SrcRespBufIndex uint16

	SrcNocX           uint8
	SrcNocY           uint8
	LocalRespBufIndex uint8
	Timestamp         uint8
	SrcRespQID        QueueID
	HostTxnID         uint8
	BroadcastHopDir   uint8
	RespForwardedOOO  uint8

	Valid uint32

	Block []byte
}

// Address 解析目的地址
func (c *Command) Address() Address {
	return ParseAddress(c.SysAddr, c.Rack)
}

// SetAddress 设置目的地址
func (c *Command) SetAddress(a Address) {
	c.SysAddr = a.SysAddr()
	c.Rack = a.Rack.ID()
}

// IsRequest 是否请求
func (c *Command) IsRequest() bool { return c.Flags.Any(requestMask) }

// IsResponse 是否应答
func (c *Command) IsResponse() bool { return c.Flags.Any(responseMask) }

// IsBlock 是否携带数据块
func (c *Command) IsBlock() bool { return c.Flags.Has(FlagDataBlock) }

// IsWrite 是否写请求
func (c *Command) IsWrite() bool { return c.Flags.Has(FlagWrReq) }

// IsBroadcast 是否广播
func (c *Command) IsBroadcast() bool { return c.Flags.Has(FlagBroadcast) }

// IsOrderedIntermediate 是否为有序块写的中间块
func (c *Command) IsOrderedIntermediate() bool {
	return c.Flags&FlagLastOrderedBlockWrite == FlagOrderedBlockWrite
}

// IsDummyAck 是否为中间块占位应答
func (c *Command) IsDummyAck() bool {
	return c.Flags == FlagOrderedBlockWriteAck
}

// Unreachable 是否目的不可达
func (c *Command) Unreachable() bool { return c.Flags.Has(FlagDestUnreachable) }

// BlockLen 数据块长度
func (c *Command) BlockLen() int {
	if !c.IsBlock() {
		return 0
	}
	return int(c.Data)
}

// Clone 深拷贝
func (c *Command) Clone() Command {
	out := *c
	if c.Block != nil {
		out.Block = append([]byte(nil), c.Block...)
	}
	return out
}

func (c *Command) String() string {
	return fmt.Sprintf("cmd{%s %s data=%d src=%s/%d}", c.Flags, c.Address(), c.Data, c.SrcRespQID, c.SrcRespBufIndex)
}

// ════════════════════════════════════════════════════════════════════════════
//                              构造
// ════════════════════════════════════════════════════════════════════════════

// NewWrite 单字写请求
func NewWrite(addr Address, word uint32) Command {
	c := Command{Data: word, Flags: FlagWrReq, Valid: ValidMarker}
	c.SetAddress(addr)
	return c
}

// NewRead 单字读请求
func NewRead(addr Address) Command {
	c := Command{Flags: FlagRdReq, Valid: ValidMarker}
	c.SetAddress(addr)
	return c
}

// NewBlockWrite 数据块写请求
func NewBlockWrite(addr Address, data []byte) Command {
	c := Command{
		Data:  uint32(len(data)),
		Flags: FlagWrReq | FlagDataBlock,
		Valid: ValidMarker,
		Block: append([]byte(nil), data...),
	}
	c.SetAddress(addr)
	return c
}

// NewBlockRead 数据块读请求
func NewBlockRead(addr Address, n int) Command {
	c := Command{Data: uint32(n), Flags: FlagRdReq | FlagDataBlock, Valid: ValidMarker}
	c.SetAddress(addr)
	return c
}

// ValidateBlock 校验数据块长度
func (c *Command) ValidateBlock() error {
	if !c.IsBlock() {
		return nil
	}
	if c.Data == 0 || c.Data > MaxBlockSize {
		return fmt.Errorf("block size %d out of range (1..%d)", c.Data, MaxBlockSize)
	}
	if c.IsWrite() && len(c.Block) != int(c.Data) {
		return fmt.Errorf("block length %d does not match size %d", len(c.Block), c.Data)
	}
	return nil
}
