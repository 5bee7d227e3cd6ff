package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-fabric/pkg/types"
)

func TestGeometry_Validate(t *testing.T) {
	assert.NoError(t, DefaultGeometry().Validate())
	assert.ErrorIs(t, Geometry{Width: 1, Height: 4}.Validate(), ErrInvalidGeometry)
	assert.ErrorIs(t, Geometry{Width: 8, Height: 9}.Validate(), ErrInvalidGeometry)
}

func TestGeometry_Sizes(t *testing.T) {
	g := DefaultGeometry()
	assert.Equal(t, 24, g.ShelfRouters())
	assert.Equal(t, 40, g.ShelfEntries())
	assert.Equal(t, 8, g.RackSlots())
	assert.Equal(t, types.MaxShelves*8, g.RackRouters())
}

func TestGeometry_RouterIndex(t *testing.T) {
	g := DefaultGeometry()

	assert.Equal(t, 0, g.YRouterIndex(0, 0))
	assert.Equal(t, 7, g.YRouterIndex(0, 7))
	assert.Equal(t, 12, g.YRouterIndex(3, 7))
	assert.Equal(t, 19, g.YRouterIndex(3, 0))
	assert.Equal(t, -1, g.YRouterIndex(1, 0))

	assert.Equal(t, 8, g.XRouterIndex(0, 7))
	assert.Equal(t, 11, g.XRouterIndex(3, 7))
	assert.Equal(t, 20, g.XRouterIndex(3, 0))
	assert.Equal(t, 23, g.XRouterIndex(0, 0))
	assert.Equal(t, -1, g.XRouterIndex(0, 3))
}

// 每个编号映射到的芯片再映射回同一编号
func TestGeometry_RouterChipRoundTrip(t *testing.T) {
	for _, g := range []Geometry{DefaultGeometry(), {Width: 2, Height: 2}, {Width: 5, Height: 3}} {
		for i := 0; i < g.ShelfRouters(); i++ {
			x, y := g.RouterChip(i)
			require.True(t, g.ContainsChip(x, y), "%v router %d", g, i)
			assert.True(t, g.IsEdge(x, y))
			if g.IsXRouter(i) {
				assert.Equal(t, i, g.XRouterIndex(x, y), "%v router %d", g, i)
			} else {
				assert.Equal(t, i, g.YRouterIndex(x, y), "%v router %d", g, i)
			}
		}
	}
}

// 每个 Y 路由器的 RackDown 条目位于边缘路由器之后，且对应同一芯片
func TestGeometry_DownSlot(t *testing.T) {
	for _, g := range []Geometry{DefaultGeometry(), {Width: 2, Height: 2}, {Width: 5, Height: 3}} {
		seen := make(map[int]bool)
		for i := 0; i < g.ShelfRouters(); i++ {
			if g.IsXRouter(i) {
				continue
			}
			j := g.DownSlot(i)
			assert.GreaterOrEqual(t, j, g.ShelfRouters(), "%v router %d", g, i)
			assert.Less(t, j, g.ShelfEntries(), "%v router %d", g, i)
			assert.False(t, seen[j], "%v slot %d reused", g, j)
			seen[j] = true

			x, y := g.RouterChip(i)
			dx, dy := g.ShelfChip(j)
			assert.Equal(t, [2]int{x, y}, [2]int{dx, dy}, "%v router %d", g, i)
		}
		assert.Len(t, seen, g.ShelfEntries()-g.ShelfRouters())
	}
}

func TestGeometry_RackSlot(t *testing.T) {
	g := DefaultGeometry()
	seen := make(map[int]bool)
	for i := 0; i < g.ShelfRouters(); i++ {
		if !g.IsXRouter(i) {
			continue
		}
		s := g.RackSlot(i)
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, g.RackSlots())
		assert.False(t, seen[s], "slot %d reused", s)
		seen[s] = true
	}
	assert.Len(t, seen, g.RackSlots())

	assert.Equal(t, 3*8+5, g.RackIndex(3, 5))
	assert.Equal(t, 3, g.RackShelf(g.RackIndex(3, 5)))
}

func TestGeometry_SlotRouter(t *testing.T) {
	g := Geometry{Width: 3, Height: 5}
	for s := 0; s < g.RackSlots(); s++ {
		i := g.SlotRouter(s)
		assert.True(t, g.IsXRouter(i), "slot %d", s)
		assert.Equal(t, s, g.RackSlot(i))
	}
}
