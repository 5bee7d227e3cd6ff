package queue

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-fabric/pkg/types"
)

func TestRing_FullEmpty(t *testing.T) {
	r := New(DefaultCapacity)
	assert.True(t, r.Empty())
	assert.False(t, r.Full())

	for i := 0; i < DefaultCapacity; i++ {
		c := types.NewWrite(types.Address{}, uint32(i))
		slot, err := r.Push(&c)
		require.NoError(t, err)
		assert.Equal(t, i, slot)
	}
	assert.True(t, r.Full())

	c := types.NewWrite(types.Address{}, 99)
	_, err := r.Push(&c)
	assert.ErrorIs(t, err, ErrFull)

	for i := 0; i < DefaultCapacity; i++ {
		_, head, ok := r.Head()
		require.True(t, ok)
		assert.Equal(t, uint32(i), head.Data)
		require.NoError(t, r.Pop())
	}
	assert.ErrorIs(t, r.Pop(), ErrEmpty)
}

// 任意入队/出队序列下，写指针领先读指针不超过容量，读指针不越过写指针
func TestRing_PointerInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, capacity := range []int{1, 2, 3, 8, 16} {
		r := New(capacity)
		model := 0
		var next, expect uint32

		for step := 0; step < 5000; step++ {
			if rng.Intn(2) == 0 {
				c := types.NewWrite(types.Address{}, next)
				_, err := r.Push(&c)
				if model == capacity {
					require.ErrorIs(t, err, ErrFull)
				} else {
					require.NoError(t, err)
					model++
					next++
				}
			} else {
				_, head, ok := r.Head()
				if model == 0 {
					require.False(t, ok)
					require.ErrorIs(t, r.Pop(), ErrEmpty)
				} else {
					require.True(t, ok)
					require.Equal(t, expect, head.Data)
					require.NoError(t, r.Pop())
					model--
					expect++
				}
			}
			require.Equal(t, model, r.Len())
			require.LessOrEqual(t, r.Len(), capacity)
			require.Less(t, int(r.WritePtr()), 2*capacity)
			require.Less(t, int(r.ReadPtr()), 2*capacity)
		}
	}
}

func TestRing_BlockCopy(t *testing.T) {
	r := New(2)
	data := []byte{1, 2, 3}
	c := types.NewBlockWrite(types.Address{}, data)
	slot, err := r.Push(&c)
	require.NoError(t, err)

	// 入队后修改源数据不影响槽位
	c.Block[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, r.Slot(slot).Block)

	assert.ErrorIs(t, r.SetBlock(slot, make([]byte, types.MaxBlockSize+1)), ErrBlockTooLarge)
}

func TestRing_TailCommit(t *testing.T) {
	r := New(2)
	i, slot, err := r.Tail()
	require.NoError(t, err)
	slot.Data = 5
	assert.True(t, r.Empty())

	r.Commit()
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.Contains(i))
	assert.False(t, r.Contains(1))
	assert.False(t, r.Contains(5))
}

func TestWindow(t *testing.T) {
	w := NewWindow(4, 4)
	for i := 0; i < 4; i++ {
		require.True(t, w.Available())
		require.NoError(t, w.Consume())
	}
	assert.False(t, w.Available())
	assert.ErrorIs(t, w.Consume(), ErrFull)

	require.NoError(t, w.Credit(2))
	assert.Equal(t, 2, w.Outstanding())
	assert.True(t, w.Available())

	// 读指针不能越过已发送数
	assert.ErrorIs(t, w.Credit(5), ErrBadCredit)
	assert.ErrorIs(t, w.Credit(8), ErrBadCredit)
}

func TestWindow_Wrap(t *testing.T) {
	w := NewWindow(2, 1)
	for i := 0; i < 100; i++ {
		require.NoError(t, w.Consume())
		require.False(t, w.Available())
		require.NoError(t, w.Credit(uint16((i+1)%4)))
		require.True(t, w.Available())
	}
}

func TestWindow_BudgetClamp(t *testing.T) {
	w := NewWindow(8, 20)
	assert.Equal(t, 8, w.Budget())
	w.SetBudget(0)
	assert.Equal(t, 1, w.Budget())
}
