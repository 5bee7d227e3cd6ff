package types

import "fmt"

// 系统地址布局：chipY | chipX | nocY | nocX | offset
const (
	// AddrOffsetBits 端点内偏移位数
	AddrOffsetBits = 36
	// AddrNodeIDBits 每个坐标字段位数
	AddrNodeIDBits = 6

	// NocWildcard 本地端点通配，用于广播
	NocWildcard = 0x3F

	// MaxOffset 端点内最大偏移
	MaxOffset = uint64(1)<<AddrOffsetBits - 1

	nodeIDMask = 1<<AddrNodeIDBits - 1
)

// Address 集群内任意字节的地址
type Address struct {
	Rack   Rack
	ChipX  uint8
	ChipY  uint8
	NocX   uint8
	NocY   uint8
	Offset uint64
}

// SysAddr 编码为 64 位系统地址（不含机架）
func (a Address) SysAddr() uint64 {
	return uint64(a.ChipY&nodeIDMask)<<(AddrOffsetBits+3*AddrNodeIDBits) |
		uint64(a.ChipX&nodeIDMask)<<(AddrOffsetBits+2*AddrNodeIDBits) |
		uint64(a.NocY&nodeIDMask)<<(AddrOffsetBits+AddrNodeIDBits) |
		uint64(a.NocX&nodeIDMask)<<AddrOffsetBits |
		a.Offset&MaxOffset
}

// ParseAddress 从系统地址和机架编码还原地址
func ParseAddress(sysAddr uint64, rack uint16) Address {
	field := func(shift uint) uint8 {
		return uint8(sysAddr >> shift & nodeIDMask)
	}
	return Address{
		Rack:   RackFromID(rack),
		ChipY:  field(AddrOffsetBits + 3*AddrNodeIDBits),
		ChipX:  field(AddrOffsetBits + 2*AddrNodeIDBits),
		NocY:   field(AddrOffsetBits + AddrNodeIDBits),
		NocX:   field(AddrOffsetBits),
		Offset: sysAddr & MaxOffset,
	}
}

// IsBroadcast 本地端点是否为通配
func (a Address) IsBroadcast() bool {
	return a.NocX == NocWildcard && a.NocY == NocWildcard
}

// SameChip 是否指向同一芯片
func (a Address) SameChip(b Address) bool {
	return a.Rack == b.Rack && a.ChipX == b.ChipX && a.ChipY == b.ChipY
}

// OnChip 是否位于 id 所在芯片
func (a Address) OnChip(id Identity) bool {
	return a.Rack == id.Rack && a.ChipX == id.ChipX && a.ChipY == id.ChipY
}

func (a Address) String() string {
	return fmt.Sprintf("%s chip(%d,%d) noc(%d,%d)+%#x", a.Rack, a.ChipX, a.ChipY, a.NocX, a.NocY, a.Offset)
}
