package routing

import (
	"fmt"

	"github.com/dep2p/go-fabric/pkg/types"
)

// noRoute 缓存中的不可达标记
const noRoute types.Direction = 0xFF

func cacheKey(rack types.Rack, x, y uint8) uint32 {
	return uint32(rack.ID())<<16 | uint32(x)<<8 | uint32(y)
}

// NextHop 通往目的芯片的下一跳
//
// 跨机架时先走机架 X 再走机架 Y；到达出口芯片后从其端口出去，
// 否则在层板内按 XY 路由（先 X 后 Y）走向出口芯片。
// 罗盘方向返回当前活动端口，有序流量应改用 StaticPort。
func (t *Table) NextHop(rack types.Rack, x, y uint8) (Hop, error) {
	key := cacheKey(rack, x, y)
	d, ok := t.cache.Get(key)
	if !ok {
		var err error
		d, err = t.resolve(rack, x, y)
		switch err {
		case nil:
		case ErrUnreachable:
			d = noRoute
		default:
			return Hop{}, err
		}
		t.cache.Add(key, d)
	}
	if d == noRoute {
		return Hop{}, fmt.Errorf("%w: %s chip(%d,%d)", ErrUnreachable, rack, x, y)
	}
	if d.IsRack() {
		return Hop{Dir: d, Port: t.tags[t.tagFor(rack)].Port}, nil
	}
	return Hop{Dir: d, Port: t.activePort(d)}, nil
}

// tagFor 目的层板需要的跨层板方向
func (t *Table) tagFor(rack types.Rack) types.Direction {
	switch {
	case rack.X > t.local.Rack.X:
		return types.DirRackRight
	case rack.X < t.local.Rack.X:
		return types.DirRackLeft
	case rack.Y > t.local.Rack.Y:
		return types.DirRackUp
	default:
		return types.DirRackDown
	}
}

func (t *Table) resolve(rack types.Rack, x, y uint8) (types.Direction, error) {
	g := t.cfg.Geometry
	if !g.ContainsChip(int(x), int(y)) || int(rack.X) >= types.MaxRacks || int(rack.Y) >= types.MaxShelves {
		return 0, ErrUnreachable
	}

	tx, ty := x, y
	if rack != t.local.Rack {
		tag := t.tags[t.tagFor(rack)]
		if tag == nil {
			return 0, ErrUnreachable
		}
		if tag.ChipX == t.local.ChipX && tag.ChipY == t.local.ChipY {
			return tag.Dir, nil
		}
		tx, ty = tag.ChipX, tag.ChipY
	} else if x == t.local.ChipX && y == t.local.ChipY {
		return 0, ErrSelf
	}

	var d types.Direction
	switch {
	case tx > t.local.ChipX:
		d = types.DirRight
	case tx < t.local.ChipX:
		d = types.DirLeft
	case ty > t.local.ChipY:
		d = types.DirUp
	default:
		d = types.DirDown
	}
	if !t.routes[d].Valid() {
		return 0, ErrUnreachable
	}
	return d, nil
}
