package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-fabric/internal/core/topology"
	"github.com/dep2p/go-fabric/pkg/types"
)

func dirs(hops []Hop) []types.Direction {
	out := make([]types.Direction, len(hops))
	for i, h := range hops {
		out[i] = h.Dir
	}
	return out
}

func TestBroadcastHops_Shelf(t *testing.T) {
	tbl := build(t, chip(1, 1, 1, 1), centerConns(), nil)
	var h types.BroadcastHeader

	// 入口芯片向四个方向展开，使用固定端口
	hops := tbl.BroadcastHops(&h, types.ConnUnknown)
	assert.Equal(t, []Hop{{types.DirLeft, 0}, {types.DirRight, 1}, {types.DirUp, 3}, {types.DirDown, 4}}, hops)

	// 沿入口行向右传播：继续向右，并向上下两列展开
	assert.Equal(t, []types.Direction{types.DirRight, types.DirUp, types.DirDown},
		dirs(tbl.BroadcastHops(&h, types.ConnLeft)))
	assert.Equal(t, []types.Direction{types.DirLeft, types.DirUp, types.DirDown},
		dirs(tbl.BroadcastHops(&h, types.ConnRight)))

	// 列上只沿原方向继续
	assert.Equal(t, []types.Direction{types.DirUp}, dirs(tbl.BroadcastHops(&h, types.ConnDown)))
	assert.Equal(t, []types.Direction{types.DirDown}, dirs(tbl.BroadcastHops(&h, types.ConnUp)))

	// 跨层板到达视为入口
	assert.Len(t, tbl.BroadcastHops(&h, types.ConnRackDown), 4)
}

func TestBroadcastHops_RackY(t *testing.T) {
	c := conns(map[int]types.Conn{1: types.ConnRight, 3: types.ConnUp, 4: types.ConnRackUp})
	tbl := build(t, chip(1, 1, 0, 0), c, nil)

	port, ok := tbl.BroadcastExit(types.DirRackUp)
	assert.True(t, ok)
	assert.Equal(t, 4, port)

	var h types.BroadcastHeader
	h.MarkVisited(types.Rack{X: 1, Y: 1})
	hops := tbl.BroadcastHops(&h, types.ConnUnknown)
	assert.Contains(t, hops, Hop{types.DirRackUp, 4})

	h.MarkVisited(types.Rack{X: 1, Y: 2})
	hops = tbl.BroadcastHops(&h, types.ConnUnknown)
	assert.NotContains(t, dirs(hops), types.DirRackUp)
}

// 同样有 RackUp 的 (2,0) 编号更大，不是指定出口
func TestBroadcastHops_NotDesignated(t *testing.T) {
	c := conns(map[int]types.Conn{0: types.ConnLeft, 3: types.ConnUp, 6: types.ConnRackUp})
	tbl := build(t, chip(1, 1, 2, 0), c, nil)

	_, ok := tbl.BroadcastExit(types.DirRackUp)
	assert.False(t, ok)

	var h types.BroadcastHeader
	assert.NotContains(t, dirs(tbl.BroadcastHops(&h, types.ConnUnknown)), types.DirRackUp)
}

func TestBroadcastHops_RackX(t *testing.T) {
	// 第 3 层左上角 (0,2) 是机架表中第一个 RackRight
	c := conns(map[int]types.Conn{1: types.ConnRight, 4: types.ConnDown, 7: types.ConnRackRight})
	tbl := build(t, chip(1, 3, 0, 2), c, nil)

	port, ok := tbl.BroadcastExit(types.DirRackRight)
	assert.True(t, ok)
	assert.Equal(t, 7, port)
	_, ok = tbl.BroadcastExit(types.DirRight)
	assert.False(t, ok)

	var h types.BroadcastHeader
	h.MarkVisited(types.Rack{X: 1, Y: 3})
	assert.Contains(t, tbl.BroadcastHops(&h, types.ConnDown), Hop{types.DirRackRight, 7})

	// 右侧机架已有层板访问过
	h.MarkVisited(types.Rack{X: 2, Y: 5})
	assert.NotContains(t, dirs(tbl.BroadcastHops(&h, types.ConnDown)), types.DirRackRight)

	// 其他层板上同一位置的芯片不是出口
	other := build(t, chip(1, 1, 0, 2), c, nil)
	_, ok = other.BroadcastExit(types.DirRackRight)
	assert.False(t, ok)
}

// rackYTables 同一层板上只有 (0,0) 有上下两根机架线缆：RackUp@4、RackDown@5
func rackYTables(t *testing.T) *topology.Tables {
	t.Helper()
	g := testGeom
	tab := topology.NewTables(g)
	y := g.YRouterIndex(0, 0)
	_, err := tab.Set(topology.TableShelf, y, topology.MakeEntry(4, types.ConnRackUp))
	require.NoError(t, err)
	_, err = tab.Set(topology.TableShelf, g.DownSlot(y), topology.MakeEntry(5, types.ConnRackDown))
	require.NoError(t, err)
	for i := 0; i < tab.Len(topology.TableShelf); i++ {
		_, _ = tab.Set(topology.TableShelf, i, topology.Unconnected)
	}
	for i := 0; i < tab.Len(topology.TableRack); i++ {
		_, _ = tab.Set(topology.TableRack, i, topology.Unconnected)
	}
	return tab
}

// 同时具有上下线缆的芯片两个方向都可达，也是两个方向的广播出口
func TestBuild_RackUpAndDownOnOneChip(t *testing.T) {
	c := conns(map[int]types.Conn{1: types.ConnRight, 3: types.ConnUp, 4: types.ConnRackUp, 5: types.ConnRackDown})
	tbl, err := Build(testConfig(), chip(0, 1, 0, 0), c, rackYTables(t), nil)
	require.NoError(t, err)

	down, ok := tbl.Tag(types.DirRackDown)
	require.True(t, ok)
	assert.Equal(t, Tag{Dir: types.DirRackDown, ChipX: 0, ChipY: 0, Port: 5}, down)

	port, ok := tbl.BroadcastExit(types.DirRackDown)
	assert.True(t, ok)
	assert.Equal(t, 5, port)

	var h types.BroadcastHeader
	h.MarkVisited(types.Rack{X: 0, Y: 1})
	hops := tbl.BroadcastHops(&h, types.ConnUnknown)
	assert.Contains(t, hops, Hop{types.DirRackUp, 4})
	assert.Contains(t, hops, Hop{types.DirRackDown, 5})

	// 从下层到达的广播只继续向上
	h.MarkVisited(types.Rack{X: 0, Y: 0})
	assert.NotContains(t, dirs(tbl.BroadcastHops(&h, types.ConnRackUp)), types.DirRackDown)

	// 层板内其他芯片经 (0,0) 向下
	other, err := Build(testConfig(), chip(0, 1, 2, 2), conns(map[int]types.Conn{0: types.ConnLeft, 4: types.ConnDown}), rackYTables(t), nil)
	require.NoError(t, err)
	tag, ok := other.Tag(types.DirRackDown)
	require.True(t, ok)
	assert.Equal(t, uint8(0), tag.ChipX)
	assert.Equal(t, uint8(0), tag.ChipY)
	_, ok = other.BroadcastExit(types.DirRackDown)
	assert.False(t, ok)
}
