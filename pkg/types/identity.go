package types

import "fmt"

// BoardType 板卡型号，决定哪些端口实际布线
type BoardType uint8

const (
	// BoardGeneric 所有端口可用
	BoardGeneric BoardType = iota
	BoardNebulaX1
	BoardNebulaX2Left
	BoardNebulaX2Right
)

// IsNebula 是否 Nebula 系列板卡
func (b BoardType) IsNebula() bool {
	return b >= BoardNebulaX1 && b <= BoardNebulaX2Right
}

// String 返回型号名
func (b BoardType) String() string {
	switch b {
	case BoardGeneric:
		return "generic"
	case BoardNebulaX1:
		return "nebula-x1"
	case BoardNebulaX2Left:
		return "nebula-x2-left"
	case BoardNebulaX2Right:
		return "nebula-x2-right"
	default:
		return fmt.Sprintf("board(%d)", uint8(b))
	}
}

// ParseBoardType 解析型号名
func ParseBoardType(s string) (BoardType, error) {
	for b := BoardGeneric; b <= BoardNebulaX2Right; b++ {
		if b.String() == s {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown board type %q", s)
}

// Rack 层板坐标
//
// X 为机架编号，Y 为机架内层板编号。线上格式为 Y<<8 | X。
type Rack struct {
	X uint8
	Y uint8
}

// ID 返回 16 位机架编码
func (r Rack) ID() uint16 {
	return uint16(r.Y)<<8 | uint16(r.X)
}

// RackFromID 从 16 位编码解析
func RackFromID(id uint16) Rack {
	return Rack{X: uint8(id & 0xFF), Y: uint8(id >> 8)}
}

func (r Rack) String() string {
	return fmt.Sprintf("rack(%d,%d)", r.X, r.Y)
}

// Identity 芯片身份
//
// 链路训练期间与对端交换，用于校验布线和拓扑分类。
type Identity struct {
	BoardID   uint32
	BoardType BoardType
	Rack      Rack
	ChipX     uint8
	ChipY     uint8
	NocX      uint8
	NocY      uint8
}

// SameShelf 是否位于同一层板
func (id Identity) SameShelf(o Identity) bool {
	return id.Rack == o.Rack
}

// SameChip 芯片坐标是否相同
func (id Identity) SameChip(o Identity) bool {
	return id.ChipX == o.ChipX && id.ChipY == o.ChipY
}

// ChipDistance 同层板内曼哈顿距离
func (id Identity) ChipDistance(o Identity) int {
	return absDiff(id.ChipX, o.ChipX) + absDiff(id.ChipY, o.ChipY)
}

// Address 返回本芯片本端点上的地址
func (id Identity) Address(offset uint64) Address {
	return Address{Rack: id.Rack, ChipX: id.ChipX, ChipY: id.ChipY, NocX: id.NocX, NocY: id.NocY, Offset: offset}
}

func (id Identity) String() string {
	return fmt.Sprintf("%s chip(%d,%d)", id.Rack, id.ChipX, id.ChipY)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
