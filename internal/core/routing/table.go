package routing

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-fabric/internal/core/topology"
	"github.com/dep2p/go-fabric/pkg/lib/log"
	"github.com/dep2p/go-fabric/pkg/types"
)

var logger = log.Logger("core/routing")

// Liveness 端口链路是否可用
type Liveness interface {
	Up(port int) bool
}

// Hop 下一跳：出方向与端口
type Hop struct {
	Dir  types.Direction
	Port int
}

func (h Hop) String() string {
	return fmt.Sprintf("%s@%d", h.Dir, h.Port)
}

// Route 单个方向的端口信息
type Route struct {
	Dir types.Direction
	// Min/Max 服务该方向的端口范围，没有端口时为 -1
	Min, Max int
	// Links 该方向实际连接的端口数
	Links int
	// Static 有序流量固定使用的端口
	Static int
	// Active 新事务起始端口，按事务数轮换
	Active int
	// Budget 每端口未确认请求上限
	Budget int

	count int
}

// Valid 该方向是否有链路
func (r Route) Valid() bool { return r.Links > 0 }

// Tag 跨层板/跨机架方向的出口芯片
//
// 本芯片不是出口时，先在层板内路由到 (ChipX, ChipY)。
// Detour 表示本层板没有该方向的机架线缆，
// 经 Dir 方向绕行到最近一个有线缆的层板。
type Tag struct {
	Dir    types.Direction
	ChipX  uint8
	ChipY  uint8
	Port   int
	Detour bool
}

// Table 本芯片的路由表
//
// 由完整的拓扑表构建，重新发现后调用 Rebuild。
// 不是并发安全的，只在节点轮询循环中使用。
type Table struct {
	cfg   Config
	local types.Identity
	links Liveness

	conns  []types.Conn
	tables *topology.Tables

	routes [types.NumDirections]Route
	tags   [types.NumDirections]*Tag
	// bcast 本芯片是否为各跨层板方向的指定广播出口，值为端口，-1 表示不是
	bcast [types.NumDirections]int

	cache *lru.Cache[uint32, types.Direction]
}

// Build 构建路由表
func Build(cfg Config, local types.Identity, conns []types.Conn, tables *topology.Tables, links Liveness) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cache, err := lru.New[uint32, types.Direction](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	t := &Table{cfg: cfg, local: local, links: links, cache: cache}
	if err := t.Rebuild(conns, tables); err != nil {
		return nil, err
	}
	return t, nil
}

// Rebuild 用新的端口分类与拓扑表重建，清空下一跳缓存
func (t *Table) Rebuild(conns []types.Conn, tables *topology.Tables) error {
	if !tables.Complete(topology.TableShelf) || !tables.Complete(topology.TableRack) {
		return ErrIncomplete
	}
	t.conns = append([]types.Conn(nil), conns...)
	t.tables = tables.Clone()
	t.cache.Purge()

	for d := types.Direction(0); d < types.NumDirections; d++ {
		t.routes[d] = t.buildRoute(d)
		t.tags[d] = nil
		t.bcast[d] = -1
	}
	for _, d := range []types.Direction{types.DirRackUp, types.DirRackDown} {
		t.tags[d] = t.nearestYRouter(d)
	}
	for _, d := range []types.Direction{types.DirRackLeft, types.DirRackRight} {
		t.tags[d] = t.rackXTag(d)
	}
	t.planBroadcast()

	logger.Debug("路由表已构建", "chip", t.local, "routes", t.summary())
	return nil
}

func (t *Table) buildRoute(d types.Direction) Route {
	r := Route{Dir: d, Min: -1, Max: -1, Static: -1, Active: -1}
	for p, c := range t.conns {
		if c != d.Conn() {
			continue
		}
		if r.Min < 0 {
			r.Min = p
		}
		r.Max = p
		r.Links++
	}
	r.Static, r.Active = r.Min, r.Min

	// 单根线缆同时承载双向流量时预算减半
	r.Budget = t.cfg.QueueCapacity
	if r.Links <= 1 {
		r.Budget = max(1, t.cfg.QueueCapacity/2)
	}
	return r
}

// nearestYRouter 层板表中距离最近且具有该跨层板连接的 Y 路由器
//
// RackDown 同时查主条目与 Y 路由器的 RackDown 条目。
func (t *Table) nearestYRouter(d types.Direction) *Tag {
	g := t.cfg.Geometry
	var best *Tag
	bestDist := 0
	for i, e := range t.tables.Shelf {
		if e.Conn() != d.Conn() {
			continue
		}
		x, y := g.ShelfChip(i)
		dist := t.chipDistance(x, y)
		if best == nil || dist < bestDist {
			best = &Tag{Dir: d, ChipX: uint8(x), ChipY: uint8(y), Port: e.Port()}
			bestDist = dist
		}
	}
	return best
}

// rackXTag 最近的 X 路由器；本层板没有时经 RackUp/RackDown 绕行
func (t *Table) rackXTag(d types.Direction) *Tag {
	g := t.cfg.Geometry
	var best *Tag
	bestDist := 0
	for i, e := range t.tables.Shelf {
		if e.Conn() != d.Conn() {
			continue
		}
		x, y := g.ShelfChip(i)
		dist := t.chipDistance(x, y)
		if best == nil || dist < bestDist {
			best = &Tag{Dir: d, ChipX: uint8(x), ChipY: uint8(y), Port: e.Port()}
			bestDist = dist
		}
	}
	if best != nil {
		return best
	}

	// 机架表中找最近的有该方向线缆的层板
	localY := int(t.local.Rack.Y)
	shelf := -1
	for i, e := range t.tables.Rack {
		if e.Conn() != d.Conn() {
			continue
		}
		s := g.RackShelf(i)
		if s == localY {
			continue
		}
		if shelf < 0 || abs(s-localY) < abs(shelf-localY) {
			shelf = s
		}
	}
	if shelf < 0 {
		return nil
	}
	via := types.DirRackDown
	if shelf > localY {
		via = types.DirRackUp
	}
	y := t.tags[via]
	if y == nil {
		return nil
	}
	return &Tag{Dir: via, ChipX: y.ChipX, ChipY: y.ChipY, Port: y.Port, Detour: true}
}

func (t *Table) chipDistance(x, y int) int {
	return abs(x-int(t.local.ChipX)) + abs(y-int(t.local.ChipY))
}

func (t *Table) summary() []string {
	var out []string
	for d := types.Direction(0); d < types.NumDirections; d++ {
		r := &t.routes[d]
		if r.Valid() {
			out = append(out, fmt.Sprintf("%s:[%d,%d]", d, r.Min, r.Max))
		}
	}
	return out
}

// ════════════════════════════════════════════════════════════════════════════
//                              查询
// ════════════════════════════════════════════════════════════════════════════

// Local 本芯片身份
func (t *Table) Local() types.Identity { return t.local }

// Geometry 层板尺寸
func (t *Table) Geometry() topology.Geometry { return t.cfg.Geometry }

// Route 方向的端口信息
func (t *Table) Route(d types.Direction) Route {
	if !d.Valid() {
		return Route{Dir: d, Min: -1, Max: -1, Static: -1, Active: -1}
	}
	return t.routes[d]
}

// Tag 跨层板方向的出口，没有路径时 ok 为 false
func (t *Table) Tag(d types.Direction) (Tag, bool) {
	if !d.Valid() || t.tags[d] == nil {
		return Tag{}, false
	}
	return *t.tags[d], true
}

// PortDirection 端口服务的方向
func (t *Table) PortDirection(port int) (types.Direction, bool) {
	if port < 0 || port >= len(t.conns) {
		return 0, false
	}
	return t.conns[port].Direction()
}

// Budget 端口的请求预算，端口未连接时为 0
func (t *Table) Budget(port int) int {
	d, ok := t.PortDirection(port)
	if !ok {
		return 0
	}
	return t.routes[d].Budget
}

// StaticPort 方向的固定端口
func (t *Table) StaticPort(d types.Direction) int {
	return t.Route(d).Static
}

func (t *Table) up(port int) bool {
	return t.links == nil || t.links.Up(port)
}

// Rotate 记录一次非有序事务，达到阈值后活动端口前进到下一个可用端口
//
// 只对罗盘方向生效；已发出的事务不受影响。
func (t *Table) Rotate(d types.Direction) {
	if !d.IsCompass() {
		return
	}
	r := &t.routes[d]
	if r.Links <= 1 {
		return
	}
	r.count++
	if r.count < t.cfg.PortSwitchThreshold {
		return
	}
	r.count = 0
	if next := t.nextLive(r, r.Active); next >= 0 {
		r.Active = next
	}
}

// nextLive 范围内 from 之后第一个可用端口（回绕），没有返回 -1
func (t *Table) nextLive(r *Route, from int) int {
	n := r.Max - r.Min + 1
	for i := 1; i <= n; i++ {
		p := r.Min + (from-r.Min+i)%n
		if t.conns[p] == r.Dir.Conn() && t.up(p) {
			return p
		}
	}
	return -1
}

// activePort 当前活动端口；它已失效时立即换到下一个可用端口
func (t *Table) activePort(d types.Direction) int {
	r := &t.routes[d]
	if r.Active >= 0 && !t.up(r.Active) {
		if next := t.nextLive(r, r.Active); next >= 0 {
			r.Active = next
		}
	}
	return r.Active
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
