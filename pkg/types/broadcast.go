package types

import (
	"encoding/binary"
	"errors"
)

const (
	// MaxRacks 支持的机架数（Rack.X 上限）
	MaxRacks = 8
	// MaxShelves 每个机架的层板数（Rack.Y 上限）
	MaxShelves = 10

	// BroadcastHeaderSize 广播头字节数，位于首个数据块开头
	BroadcastHeaderSize = 48
)

// ErrShortHeader 数据块不足以容纳广播头
var ErrShortHeader = errors.New("data block shorter than broadcast header")

// BroadcastHeader 广播头
//
// 每一跳原地修改，飞行途中从不重新初始化。
type BroadcastHeader struct {
	// ShelfExclude 按机架索引，位 i 表示排除层板 i
	ShelfExclude [MaxRacks]uint16
	// ChipExclude 位 chipX*H+chipY 表示排除该芯片
	ChipExclude uint64
	// RowExclude 排除的本地端点行（NocY）
	RowExclude uint16
	// ColExclude 排除的本地端点列（NocX）
	ColExclude uint16
	// ShelfVisited 已访问层板
	ShelfVisited [MaxRacks]uint16
}

// MarshalTo 写入 b 的前 BroadcastHeaderSize 字节
func (h *BroadcastHeader) MarshalTo(b []byte) error {
	if len(b) < BroadcastHeaderSize {
		return ErrShortHeader
	}
	off := 0
	for _, v := range h.ShelfExclude {
		binary.LittleEndian.PutUint16(b[off:], v)
		off += 2
	}
	binary.LittleEndian.PutUint64(b[off:], h.ChipExclude)
	off += 8
	binary.LittleEndian.PutUint16(b[off:], h.RowExclude)
	binary.LittleEndian.PutUint16(b[off+2:], h.ColExclude)
	off += 4
	for _, v := range h.ShelfVisited {
		binary.LittleEndian.PutUint16(b[off:], v)
		off += 2
	}
	clear(b[off:BroadcastHeaderSize])
	return nil
}

// ParseBroadcastHeader 从数据块前缀解析
func ParseBroadcastHeader(b []byte) (BroadcastHeader, error) {
	var h BroadcastHeader
	if len(b) < BroadcastHeaderSize {
		return h, ErrShortHeader
	}
	off := 0
	for i := range h.ShelfExclude {
		h.ShelfExclude[i] = binary.LittleEndian.Uint16(b[off:])
		off += 2
	}
	h.ChipExclude = binary.LittleEndian.Uint64(b[off:])
	off += 8
	h.RowExclude = binary.LittleEndian.Uint16(b[off:])
	h.ColExclude = binary.LittleEndian.Uint16(b[off+2:])
	off += 4
	for i := range h.ShelfVisited {
		h.ShelfVisited[i] = binary.LittleEndian.Uint16(b[off:])
		off += 2
	}
	return h, nil
}

func shelfBit(r Rack) (int, uint16, bool) {
	if int(r.X) >= MaxRacks || int(r.Y) >= MaxShelves {
		return 0, 0, false
	}
	return int(r.X), 1 << r.Y, true
}

// Visited 层板是否已访问
func (h *BroadcastHeader) Visited(r Rack) bool {
	i, bit, ok := shelfBit(r)
	return ok && h.ShelfVisited[i]&bit != 0
}

// MarkVisited 标记层板已访问
func (h *BroadcastHeader) MarkVisited(r Rack) {
	if i, bit, ok := shelfBit(r); ok {
		h.ShelfVisited[i] |= bit
	}
}

// RackVisited 机架内是否有任一层板已访问
func (h *BroadcastHeader) RackVisited(rackX uint8) bool {
	return int(rackX) < MaxRacks && h.ShelfVisited[rackX] != 0
}

// ExcludeShelf 排除层板
func (h *BroadcastHeader) ExcludeShelf(r Rack) {
	if i, bit, ok := shelfBit(r); ok {
		h.ShelfExclude[i] |= bit
	}
}

// ShelfExcluded 层板是否被排除
func (h *BroadcastHeader) ShelfExcluded(r Rack) bool {
	i, bit, ok := shelfBit(r)
	return ok && h.ShelfExclude[i]&bit != 0
}

// ExcludeChip 排除芯片，height 为层板芯片行数
func (h *BroadcastHeader) ExcludeChip(x, y uint8, height int) {
	if bit := int(x)*height + int(y); bit < 64 {
		h.ChipExclude |= 1 << bit
	}
}

// ChipExcluded 芯片是否被排除
func (h *BroadcastHeader) ChipExcluded(x, y uint8, height int) bool {
	bit := int(x)*height + int(y)
	return bit < 64 && h.ChipExclude&(1<<bit) != 0
}

// EndpointExcluded 本地端点是否被行列掩码排除
func (h *BroadcastHeader) EndpointExcluded(nocX, nocY uint8) bool {
	return (nocX < 16 && h.ColExclude&(1<<nocX) != 0) ||
		(nocY < 16 && h.RowExclude&(1<<nocY) != 0)
}

// NewBroadcastWrite 构造广播写请求
//
// 数据块为广播头加负载，负载写入每个未排除端点的 offset 处。
func NewBroadcastWrite(rack Rack, offset uint64, h BroadcastHeader, payload []byte) Command {
	block := make([]byte, BroadcastHeaderSize+len(payload))
	_ = h.MarshalTo(block)
	copy(block[BroadcastHeaderSize:], payload)

	c := Command{
		Data:  uint32(len(block)),
		Flags: FlagWrReq | FlagDataBlock | FlagBroadcast,
		Valid: ValidMarker,
		Block: block,
	}
	c.SetAddress(Address{Rack: rack, NocX: NocWildcard, NocY: NocWildcard, Offset: offset})
	return c
}
