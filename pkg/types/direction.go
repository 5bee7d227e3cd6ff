package types

import "fmt"

// ════════════════════════════════════════════════════════════════════════════
//                              方向
// ════════════════════════════════════════════════════════════════════════════

// Direction 链路服务的方向
//
// 前 4 个是层板内的罗盘方向，后 4 个是跨层板/跨机架方向。
type Direction uint8

const (
	DirLeft Direction = iota
	DirRight
	DirUp
	DirDown
	DirRackLeft
	DirRackRight
	DirRackUp
	DirRackDown
)

// NumDirections 方向总数
const NumDirections = 8

// CompassDirections 层板内方向
var CompassDirections = [...]Direction{DirLeft, DirRight, DirUp, DirDown}

// RackDirections 跨层板方向
var RackDirections = [...]Direction{DirRackLeft, DirRackRight, DirRackUp, DirRackDown}

// IsCompass 是否层板内方向
func (d Direction) IsCompass() bool { return d <= DirDown }

// IsRack 是否跨层板方向
func (d Direction) IsRack() bool { return d >= DirRackLeft && d <= DirRackDown }

// Valid 是否有效
func (d Direction) Valid() bool { return d < NumDirections }

// Opposite 反方向
func (d Direction) Opposite() Direction {
	// 同组内成对相邻：L/R、U/D
	return d ^ 1
}

// Conn 返回该方向对应的连接分类
func (d Direction) Conn() Conn {
	return Conn(d) + ConnLeft
}

// String 返回方向名
func (d Direction) String() string {
	switch d {
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirRackLeft:
		return "rack-left"
	case DirRackRight:
		return "rack-right"
	case DirRackUp:
		return "rack-up"
	case DirRackDown:
		return "rack-down"
	default:
		return fmt.Sprintf("dir(%d)", uint8(d))
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              连接分类
// ════════════════════════════════════════════════════════════════════════════

// Conn 端口连接分类
//
// 取值与拓扑表条目低 4 位一致，必须保持稳定。
type Conn uint8

const (
	ConnUnknown Conn = iota
	ConnUnconnected
	ConnLeft
	ConnRight
	ConnUp
	ConnDown
	ConnRackLeft
	ConnRackRight
	ConnRackUp
	ConnRackDown
)

// Direction 返回连接对应的方向，未连接时 ok 为 false
func (c Conn) Direction() (Direction, bool) {
	if c < ConnLeft || c > ConnRackDown {
		return 0, false
	}
	return Direction(c - ConnLeft), true
}

// Connected 是否为有效连接
func (c Conn) Connected() bool {
	return c >= ConnLeft && c <= ConnRackDown
}

// String 返回分类名
func (c Conn) String() string {
	switch c {
	case ConnUnknown:
		return "unknown"
	case ConnUnconnected:
		return "unconnected"
	}
	if d, ok := c.Direction(); ok {
		return d.String()
	}
	return fmt.Sprintf("conn(%d)", uint8(c))
}
