package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-fabric/config"
	"github.com/dep2p/go-fabric/internal/core/topology"
	"github.com/dep2p/go-fabric/pkg/types"
)

// 3×3 层板，位于机架 1 的第 1 层：
//
//	(0,2) RackDown@5
//	(0,0) RackUp@4   (2,0) RackUp@6
//
// 本层板没有机架 X 线缆，第 3 层 (0,2) 有 RackRight@7。
var testGeom = topology.Geometry{Width: 3, Height: 3}

func testTables(t *testing.T) *topology.Tables {
	t.Helper()
	g := testGeom
	tab := topology.NewTables(g)
	set := func(id topology.TableID, i int, e topology.Entry) {
		_, err := tab.Set(id, i, e)
		require.NoError(t, err)
	}
	set(topology.TableShelf, g.YRouterIndex(0, 0), topology.MakeEntry(4, types.ConnRackUp))
	set(topology.TableShelf, g.YRouterIndex(2, 0), topology.MakeEntry(6, types.ConnRackUp))
	set(topology.TableShelf, g.YRouterIndex(0, 2), topology.MakeEntry(5, types.ConnRackDown))
	set(topology.TableShelf, g.DownSlot(g.YRouterIndex(0, 2)), topology.MakeEntry(5, types.ConnRackDown))
	set(topology.TableRack, g.RackIndex(3, g.RackSlot(g.XRouterIndex(0, 2))), topology.MakeEntry(7, types.ConnRackRight))
	for i := 0; i < tab.Len(topology.TableShelf); i++ {
		set(topology.TableShelf, i, topology.Unconnected)
	}
	for i := 0; i < tab.Len(topology.TableRack); i++ {
		set(topology.TableRack, i, topology.Unconnected)
	}
	return tab
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Geometry = testGeom
	cfg.PortSwitchThreshold = 3
	return cfg
}

func conns(m map[int]types.Conn) []types.Conn {
	out := make([]types.Conn, 8)
	for i := range out {
		out[i] = types.ConnUnconnected
	}
	for p, c := range m {
		out[p] = c
	}
	return out
}

// centerConns 中心芯片 (1,1)：左 0，右 1、2，上 3，下 4
func centerConns() []types.Conn {
	return conns(map[int]types.Conn{
		0: types.ConnLeft,
		1: types.ConnRight,
		2: types.ConnRight,
		3: types.ConnUp,
		4: types.ConnDown,
	})
}

func chip(rx, ry, x, y uint8) types.Identity {
	return types.Identity{BoardID: 1, Rack: types.Rack{X: rx, Y: ry}, ChipX: x, ChipY: y}
}

type downPorts map[int]bool

func (d downPorts) Up(port int) bool { return !d[port] }

func build(t *testing.T, local types.Identity, c []types.Conn, links Liveness) *Table {
	t.Helper()
	tbl, err := Build(testConfig(), local, c, testTables(t), links)
	require.NoError(t, err)
	return tbl
}

func TestBuild_Routes(t *testing.T) {
	tbl := build(t, chip(1, 1, 1, 1), centerConns(), nil)

	right := tbl.Route(types.DirRight)
	assert.Equal(t, 1, right.Min)
	assert.Equal(t, 2, right.Max)
	assert.Equal(t, 2, right.Links)
	assert.Equal(t, 1, right.Static)
	assert.Equal(t, 8, right.Budget)

	left := tbl.Route(types.DirLeft)
	assert.Equal(t, 1, left.Links)
	assert.Equal(t, 4, left.Budget)

	assert.False(t, tbl.Route(types.DirRackUp).Valid())
	assert.Equal(t, -1, tbl.StaticPort(types.DirRackUp))

	assert.Equal(t, 8, tbl.Budget(2))
	assert.Equal(t, 4, tbl.Budget(0))
	assert.Equal(t, 0, tbl.Budget(7))
	assert.Equal(t, 0, tbl.Budget(99))
}

func TestBuild_Tags(t *testing.T) {
	tbl := build(t, chip(1, 1, 1, 1), centerConns(), nil)

	up, ok := tbl.Tag(types.DirRackUp)
	require.True(t, ok)
	// (0,0) 与 (2,0) 等距，取编号小的
	assert.Equal(t, Tag{Dir: types.DirRackUp, ChipX: 0, ChipY: 0, Port: 4}, up)

	down, ok := tbl.Tag(types.DirRackDown)
	require.True(t, ok)
	assert.Equal(t, Tag{Dir: types.DirRackDown, ChipX: 0, ChipY: 2, Port: 5}, down)

	// 本层板没有 RackRight，向上绕行到第 3 层
	right, ok := tbl.Tag(types.DirRackRight)
	require.True(t, ok)
	assert.Equal(t, Tag{Dir: types.DirRackUp, ChipX: 0, ChipY: 0, Port: 4, Detour: true}, right)

	_, ok = tbl.Tag(types.DirRackLeft)
	assert.False(t, ok)
}

func TestBuild_Incomplete(t *testing.T) {
	_, err := Build(testConfig(), chip(1, 1, 1, 1), centerConns(), topology.NewTables(testGeom), nil)
	assert.ErrorIs(t, err, ErrIncomplete)

	cfg := testConfig()
	cfg.CacheSize = 0
	_, err = Build(cfg, chip(1, 1, 1, 1), centerConns(), testTables(t), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNextHop(t *testing.T) {
	tbl := build(t, chip(1, 1, 1, 1), centerConns(), nil)

	cases := []struct {
		name string
		rack types.Rack
		x, y uint8
		want Hop
	}{
		{"right", types.Rack{X: 1, Y: 1}, 2, 1, Hop{types.DirRight, 1}},
		{"up", types.Rack{X: 1, Y: 1}, 1, 2, Hop{types.DirUp, 3}},
		{"x first", types.Rack{X: 1, Y: 1}, 0, 0, Hop{types.DirLeft, 0}},
		{"shelf above", types.Rack{X: 1, Y: 4}, 2, 2, Hop{types.DirLeft, 0}},
		{"shelf below", types.Rack{X: 1, Y: 0}, 1, 1, Hop{types.DirLeft, 0}},
		{"rack right detour", types.Rack{X: 2, Y: 1}, 1, 1, Hop{types.DirLeft, 0}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := tbl.NextHop(c.rack, c.x, c.y)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)

			// 第二次命中缓存，结果不变
			got, err = tbl.NextHop(c.rack, c.x, c.y)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestNextHop_Errors(t *testing.T) {
	tbl := build(t, chip(1, 1, 1, 1), centerConns(), nil)

	_, err := tbl.NextHop(types.Rack{X: 0, Y: 1}, 0, 0)
	assert.ErrorIs(t, err, ErrUnreachable)

	_, err = tbl.NextHop(types.Rack{X: 1, Y: 1}, 5, 0)
	assert.ErrorIs(t, err, ErrUnreachable)

	_, err = tbl.NextHop(types.Rack{X: 9, Y: 1}, 0, 0)
	assert.ErrorIs(t, err, ErrUnreachable)

	_, err = tbl.NextHop(types.Rack{X: 1, Y: 1}, 1, 1)
	assert.ErrorIs(t, err, ErrSelf)
}

func TestNextHop_TagChipIsSelf(t *testing.T) {
	local := chip(1, 1, 0, 0)
	c := conns(map[int]types.Conn{1: types.ConnRight, 3: types.ConnUp, 4: types.ConnRackUp})
	tbl := build(t, local, c, nil)

	hop, err := tbl.NextHop(types.Rack{X: 1, Y: 2}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, Hop{types.DirRackUp, 4}, hop)

	// 机架 X 绕行也从本芯片的 RackUp 出去
	hop, err = tbl.NextHop(types.Rack{X: 3, Y: 0}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, Hop{types.DirRackUp, 4}, hop)

	// RackDown 出口在 (0,2)，向上走
	hop, err = tbl.NextHop(types.Rack{X: 1, Y: 0}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, Hop{types.DirUp, 3}, hop)
}

func TestNextHop_MissingDirection(t *testing.T) {
	c := conns(map[int]types.Conn{0: types.ConnLeft})
	tbl := build(t, chip(1, 1, 1, 1), c, nil)

	_, err := tbl.NextHop(types.Rack{X: 1, Y: 1}, 2, 1)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestRotate(t *testing.T) {
	down := downPorts{}
	tbl := build(t, chip(1, 1, 1, 1), centerConns(), down)
	port := func() int {
		hop, err := tbl.NextHop(types.Rack{X: 1, Y: 1}, 2, 1)
		require.NoError(t, err)
		return hop.Port
	}

	assert.Equal(t, 1, port())
	for i := 0; i < 3; i++ {
		tbl.Rotate(types.DirRight)
	}
	assert.Equal(t, 2, port())
	for i := 0; i < 3; i++ {
		tbl.Rotate(types.DirRight)
	}
	assert.Equal(t, 1, port(), "wraps to range start")

	// 固定端口不轮换
	assert.Equal(t, 1, tbl.StaticPort(types.DirRight))

	// 不可用端口被跳过
	down[2] = true
	for i := 0; i < 3; i++ {
		tbl.Rotate(types.DirRight)
	}
	assert.Equal(t, 1, port())

	// 活动端口失效时立即切换
	down[2] = false
	down[1] = true
	assert.Equal(t, 2, port())

	// 单链路方向与跨层板方向不轮换
	tbl.Rotate(types.DirLeft)
	tbl.Rotate(types.DirRackUp)
	assert.Equal(t, 0, tbl.Route(types.DirLeft).Active)
}

func TestRebuild_PurgesCache(t *testing.T) {
	tbl := build(t, chip(1, 1, 1, 1), centerConns(), nil)
	_, err := tbl.NextHop(types.Rack{X: 1, Y: 1}, 2, 1)
	require.NoError(t, err)

	require.NoError(t, tbl.Rebuild(conns(map[int]types.Conn{0: types.ConnLeft}), testTables(t)))
	_, err = tbl.NextHop(types.Rack{X: 1, Y: 1}, 2, 1)
	assert.ErrorIs(t, err, ErrUnreachable)

	assert.ErrorIs(t, tbl.Rebuild(centerConns(), topology.NewTables(testGeom)), ErrIncomplete)
}

func TestPortDirection(t *testing.T) {
	tbl := build(t, chip(1, 1, 1, 1), centerConns(), nil)
	d, ok := tbl.PortDirection(3)
	assert.True(t, ok)
	assert.Equal(t, types.DirUp, d)

	_, ok = tbl.PortDirection(6)
	assert.False(t, ok)
}

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Routing.PortSwitchThreshold = 7

	var rc Config
	app := fxtest.New(t, fx.Supply(cfg), Module(), fx.Populate(&rc))
	app.RequireStart()
	defer app.RequireStop()

	assert.Equal(t, 7, rc.PortSwitchThreshold)
	assert.Equal(t, cfg.Engine.QueueCapacity, rc.QueueCapacity)
}
