package routing

import "github.com/dep2p/go-fabric/pkg/types"

// planBroadcast 计算本芯片是否为跨层板/跨机架方向的指定广播出口
//
// RackUp/RackDown 的出口是层板表中编号最小的对应条目，每个层板各有一个，
// 同时具有上下线缆的 Y 路由器可以同时是两个方向的出口。
// RackLeft/RackRight 的出口是机架表中编号最小的对应 X 路由器，
// 一个机架只有一个层板向相邻机架转发，其余层板由该层板经跨层板分支到达。
func (t *Table) planBroadcast() {
	g := t.cfg.Geometry
	self := func(x, y int) bool {
		return x == int(t.local.ChipX) && y == int(t.local.ChipY)
	}

	for _, d := range []types.Direction{types.DirRackUp, types.DirRackDown} {
		for i, e := range t.tables.Shelf {
			if e.Conn() != d.Conn() {
				continue
			}
			if x, y := g.ShelfChip(i); self(x, y) {
				t.bcast[d] = e.Port()
			}
			break
		}
	}
	for _, d := range []types.Direction{types.DirRackLeft, types.DirRackRight} {
		i := t.rackExit(d)
		if i < 0 || g.RackShelf(i) != int(t.local.Rack.Y) {
			continue
		}
		if x, y := g.RouterChip(g.SlotRouter(i % g.RackSlots())); self(x, y) {
			t.bcast[d] = t.tables.Rack[i].Port()
		}
	}
}

// rackExit 机架表中该方向编号最小的条目，没有返回 -1
func (t *Table) rackExit(d types.Direction) int {
	for i, e := range t.tables.Rack {
		if e.Conn() == d.Conn() {
			return i
		}
	}
	return -1
}

// BroadcastHops 广播在本芯片的后续分支
//
// arrived 为广播到达端口的分类；由主机或本地注入时传 ConnUnknown。
// 层板内沿入口行向两侧展开，行上每个芯片再向上下两列展开，
// 每个芯片恰好到达一次。跨层板与跨机架只由指定出口转发，
// 且只转发到广播头中尚未访问的层板或机架。
// 调用方应先把本层板标记为已访问。
func (t *Table) BroadcastHops(h *types.BroadcastHeader, arrived types.Conn) []Hop {
	var hops []Hop
	add := func(d types.Direction) {
		if r := &t.routes[d]; r.Valid() {
			hops = append(hops, Hop{Dir: d, Port: r.Static})
		}
	}

	switch arrived {
	case types.ConnLeft:
		add(types.DirRight)
		add(types.DirUp)
		add(types.DirDown)
	case types.ConnRight:
		add(types.DirLeft)
		add(types.DirUp)
		add(types.DirDown)
	case types.ConnDown:
		add(types.DirUp)
	case types.ConnUp:
		add(types.DirDown)
	default:
		for _, d := range types.CompassDirections {
			add(d)
		}
	}

	rack := t.local.Rack
	if p := t.bcast[types.DirRackUp]; p >= 0 && int(rack.Y)+1 < types.MaxShelves &&
		!h.Visited(types.Rack{X: rack.X, Y: rack.Y + 1}) {
		hops = append(hops, Hop{Dir: types.DirRackUp, Port: p})
	}
	if p := t.bcast[types.DirRackDown]; p >= 0 && rack.Y > 0 &&
		!h.Visited(types.Rack{X: rack.X, Y: rack.Y - 1}) {
		hops = append(hops, Hop{Dir: types.DirRackDown, Port: p})
	}
	if p := t.bcast[types.DirRackRight]; p >= 0 && int(rack.X)+1 < types.MaxRacks && !h.RackVisited(rack.X+1) {
		hops = append(hops, Hop{Dir: types.DirRackRight, Port: p})
	}
	if p := t.bcast[types.DirRackLeft]; p >= 0 && rack.X > 0 && !h.RackVisited(rack.X-1) {
		hops = append(hops, Hop{Dir: types.DirRackLeft, Port: p})
	}
	return hops
}

// BroadcastExit 本芯片是否为该方向的指定广播出口
func (t *Table) BroadcastExit(d types.Direction) (int, bool) {
	if !d.IsRack() || t.bcast[d] < 0 {
		return 0, false
	}
	return t.bcast[d], true
}
