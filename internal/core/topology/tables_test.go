package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-fabric/pkg/types"
)

func TestEntry(t *testing.T) {
	e := MakeEntry(5, types.ConnRackUp)
	assert.Equal(t, 5, e.Port())
	assert.Equal(t, types.ConnRackUp, e.Conn())
	assert.True(t, e.Known())
	assert.Equal(t, "rack-up@5", e.String())

	assert.False(t, EntryUnknown.Known())
	assert.True(t, Unconnected.Known())
	assert.Equal(t, "unconnected", Unconnected.String())
}

func TestTables_WriteOnce(t *testing.T) {
	tab := NewTables(Geometry{Width: 2, Height: 2})
	// 8 个边缘路由器加 4 个 Y 路由器的 RackDown 条目
	require.Equal(t, 12, tab.Len(TableShelf))

	ok, err := tab.Set(TableShelf, 3, MakeEntry(1, types.ConnRackUp))
	require.NoError(t, err)
	assert.True(t, ok)

	// 已知条目不会被覆盖
	ok, err = tab.Set(TableShelf, 3, Unconnected)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, MakeEntry(1, types.ConnRackUp), tab.Get(TableShelf, 3))

	// 写入未知值无效
	ok, err = tab.Set(TableShelf, 4, EntryUnknown)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = tab.Set(TableShelf, 12, Unconnected)
	assert.ErrorIs(t, err, ErrBadEntry)
	_, err = tab.Set(TableRack, -1, Unconnected)
	assert.ErrorIs(t, err, ErrBadEntry)

	assert.Equal(t, 1, tab.Known(TableShelf))
	assert.True(t, tab.HasShelfConn(types.ConnRackUp))
	assert.False(t, tab.HasShelfConn(types.ConnRackDown))
}

func TestTables_CompleteAndReset(t *testing.T) {
	tab := NewTables(Geometry{Width: 2, Height: 2})
	for i := 0; i < tab.Len(TableShelf); i++ {
		_, err := tab.Set(TableShelf, i, Unconnected)
		require.NoError(t, err)
	}
	assert.True(t, tab.Complete(TableShelf))
	assert.False(t, tab.Complete(TableRack))

	clone := tab.Clone()
	tab.Reset()
	assert.Equal(t, 0, tab.Known(TableShelf))
	assert.True(t, clone.Complete(TableShelf))
}

func TestClassify(t *testing.T) {
	local := types.Identity{Rack: types.Rack{X: 1, Y: 1}, ChipX: 1, ChipY: 1}
	at := func(rx, ry, x, y uint8) types.Identity {
		return types.Identity{Rack: types.Rack{X: rx, Y: ry}, ChipX: x, ChipY: y}
	}

	cases := []struct {
		remote types.Identity
		want   types.Conn
	}{
		{at(2, 0, 0, 0), types.ConnRackRight},
		{at(0, 5, 3, 3), types.ConnRackLeft},
		{at(1, 2, 1, 1), types.ConnRackUp},
		{at(1, 0, 1, 1), types.ConnRackDown},
		{at(1, 1, 2, 1), types.ConnRight},
		{at(1, 1, 0, 1), types.ConnLeft},
		{at(1, 1, 1, 2), types.ConnUp},
		{at(1, 1, 1, 0), types.ConnDown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(local, c.remote), "remote %s", c.remote)
	}
}

type fakeLinks map[int]types.Identity

func (f fakeLinks) NumPorts() int { return 4 }

func (f fakeLinks) Remote(port int) (types.Identity, bool) {
	id, ok := f[port]
	return id, ok
}

func TestClassifyPorts(t *testing.T) {
	local := types.Identity{ChipX: 1, ChipY: 1}
	links := fakeLinks{
		1: {ChipX: 2, ChipY: 1},
		2: {ChipX: 2, ChipY: 1},
		3: {ChipX: 1, ChipY: 0},
	}
	conns := ClassifyPorts(local, links)
	assert.Equal(t, []types.Conn{types.ConnUnconnected, types.ConnRight, types.ConnRight, types.ConnDown}, conns)

	assert.Equal(t, 1, MinPort(conns, types.ConnRight))
	assert.Equal(t, 3, MinPort(conns, types.ConnDown))
	assert.Equal(t, -1, MinPort(conns, types.ConnUp))
}
