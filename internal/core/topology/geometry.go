package topology

import (
	"fmt"

	"github.com/dep2p/go-fabric/pkg/types"
)

// Geometry 层板芯片网格尺寸
//
// 边缘路由器按逆时针编号：左列自下而上，顶行自左向右，
// 右列自上而下，底行自右向左。左右两列是 Y 路由器（跨层板），
// 顶底两行是 X 路由器（跨机架）。
type Geometry struct {
	Width  int
	Height int
}

// DefaultGeometry 4×8 层板
func DefaultGeometry() Geometry {
	return Geometry{Width: 4, Height: 8}
}

// Validate 校验尺寸
func (g Geometry) Validate() error {
	if g.Width < 2 || g.Height < 2 || g.Width*g.Height > 64 {
		return fmt.Errorf("%w: shelf %dx%d", ErrInvalidGeometry, g.Width, g.Height)
	}
	return nil
}

// ShelfRouters 边缘路由器数
func (g Geometry) ShelfRouters() int { return 2*g.Height + 2*g.Width }

// ShelfEntries 层板路由表条目数
//
// 边缘路由器之后，每个 Y 路由器另有一个 RackDown 条目，
// 同时具有上下线缆的芯片两个方向都能记录。
func (g Geometry) ShelfEntries() int { return g.ShelfRouters() + 2*g.Height }

// DownSlot Y 路由器 i 的 RackDown 条目下标
func (g Geometry) DownSlot(i int) int {
	if i < g.Height {
		return g.ShelfRouters() + i
	}
	return g.ShelfRouters() + i - g.Width
}

// ShelfChip 层板表下标对应的芯片坐标
func (g Geometry) ShelfChip(i int) (x, y int) {
	if j := i - g.ShelfRouters(); j >= 0 {
		if j < g.Height {
			return g.RouterChip(j)
		}
		return g.RouterChip(j + g.Width)
	}
	return g.RouterChip(i)
}

// RackSlots 每层板在机架表中的条目数
func (g Geometry) RackSlots() int { return 2 * g.Width }

// RackRouters 机架路由表条目数
func (g Geometry) RackRouters() int { return types.MaxShelves * g.RackSlots() }

// ContainsChip 坐标是否在层板内
func (g Geometry) ContainsChip(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// IsEdge 芯片是否位于层板边缘
func (g Geometry) IsEdge(x, y int) bool {
	return x == 0 || x == g.Width-1 || y == 0 || y == g.Height-1
}

// RouterChip 边缘路由器编号对应的芯片坐标
func (g Geometry) RouterChip(i int) (x, y int) {
	h, w := g.Height, g.Width
	switch {
	case i < h:
		return 0, i
	case i < h+w:
		return i - h, h - 1
	case i < 2*h+w:
		return w - 1, 2*h + w - 1 - i
	default:
		return 2*h + 2*w - 1 - i, 0
	}
}

// YRouterIndex 芯片作为 Y 路由器的编号，不在左右列返回 -1
func (g Geometry) YRouterIndex(x, y int) int {
	switch x {
	case 0:
		return y
	case g.Width - 1:
		return 2*g.Height + g.Width - 1 - y
	}
	return -1
}

// XRouterIndex 芯片作为 X 路由器的编号，不在顶底行返回 -1
func (g Geometry) XRouterIndex(x, y int) int {
	switch y {
	case g.Height - 1:
		return g.Height + x
	case 0:
		return 2*g.Height + 2*g.Width - 1 - x
	}
	return -1
}

// IsXRouter 编号是否属于顶行或底行
func (g Geometry) IsXRouter(i int) bool {
	h, w := g.Height, g.Width
	return (i >= h && i < h+w) || (i >= 2*h+w && i < 2*h+2*w)
}

// RackSlot X 路由器在本层板机架表行内的位置：顶行 0..W-1，底行 W..2W-1
func (g Geometry) RackSlot(i int) int {
	if i >= 2*g.Height+g.Width {
		return i - 2*g.Height
	}
	return i - g.Height
}

// RackIndex 机架表下标
func (g Geometry) RackIndex(rackY, slot int) int {
	return rackY*g.RackSlots() + slot
}

// RackShelf 机架表下标所属层板
func (g Geometry) RackShelf(i int) int {
	return i / g.RackSlots()
}

// SlotRouter 机架表行内位置对应的边缘路由器编号，RackSlot 的逆运算
func (g Geometry) SlotRouter(slot int) int {
	if slot < g.Width {
		return g.Height + slot
	}
	return 2*g.Height + slot
}
