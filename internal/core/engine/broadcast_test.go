package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-fabric/pkg/types"
)

func TestBroadcast_SingleChip(t *testing.T) {
	self := chipID(0, 0)
	lt := newMemTransport()
	n := newNode(t, self, lt, nil)
	n.eng.SetRoutes(routesFor(t, self))

	var h types.BroadcastHeader
	h.ColExclude = 1 << 1
	payload := []byte("hello fabric")
	_, err := n.eng.Submit(types.NewBroadcastWrite(self.Rack, 0x300, h, payload))
	require.NoError(t, err)
	run(t, 1, n)

	got := responses(n)
	require.Len(t, got, 1)
	assert.True(t, got[0].Flags.Has(types.FlagWrAck|types.FlagBroadcast))
	assert.False(t, got[0].Unreachable())

	buf := make([]byte, len(payload))
	n.eng.Memory().Read(0x300, buf)
	assert.Equal(t, payload, buf)
	// 2×2 端点去掉第 1 列，只剩 (0,1) 经本地传输
	assert.Equal(t, 1, lt.writes)
	lt.endpoint(0, 1).Read(0x300, buf)
	assert.Equal(t, payload, buf)
	assert.Equal(t, 1, n.obs.done[DispositionBroadcast])
}

func TestBroadcast_TwoChips(t *testing.T) {
	a, b := pairNodes(t)
	payload := bytes.Repeat([]byte{0x5A}, 32)
	_, err := a.eng.Submit(types.NewBroadcastWrite(types.Rack{}, 0x40, types.BroadcastHeader{}, payload))
	require.NoError(t, err)
	run(t, 6, a, b)

	got := responses(a)
	require.Len(t, got, 1)
	assert.True(t, got[0].Flags.Has(types.FlagWrAck|types.FlagBroadcast))

	for _, n := range []*node{a, b} {
		buf := make([]byte, len(payload))
		n.eng.Memory().Read(0x40, buf)
		assert.Equal(t, payload, buf)
	}
	assert.Equal(t, 1, a.obs.forwarded)
	assert.Zero(t, a.eng.Pending())
	assert.Zero(t, b.eng.Pending())
}

func TestBroadcast_ExcludedChipRelays(t *testing.T) {
	a, b := pairNodes(t)
	var h types.BroadcastHeader
	h.ExcludeChip(0, 0, 2)
	_, err := a.eng.Submit(types.NewBroadcastWrite(types.Rack{}, 0, h, []byte{1, 2, 3, 4}))
	require.NoError(t, err)
	run(t, 6, a, b)

	require.Len(t, responses(a), 1)
	assert.Zero(t, a.eng.Memory().ReadWord(0))
	assert.Equal(t, uint32(0x04030201), b.eng.Memory().ReadWord(0))
}

func TestBroadcast_WaitsForCredit(t *testing.T) {
	a, b := pairNodes(t)
	for i := 0; i < 4; i++ {
		_, err := a.eng.Submit(types.NewWrite(addrOn(chipID(1, 0), uint64(4*i)), 1))
		require.NoError(t, err)
	}
	_, err := a.eng.Submit(types.NewBroadcastWrite(types.Rack{}, 0x40, types.BroadcastHeader{}, []byte{9}))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, a.eng.Poll())
	}
	// 预算用尽，广播未写本地内存
	assert.Zero(t, a.eng.Memory().ReadWord(0x40))

	b.deliver(t)
	run(t, 10, a, b)
	assert.Len(t, responses(a), 5)
	assert.Equal(t, uint32(9), a.eng.Memory().ReadWord(0x40)&0xFF)
}
