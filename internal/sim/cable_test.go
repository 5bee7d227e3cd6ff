package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-fabric/internal/core/engine"
	"github.com/dep2p/go-fabric/pkg/interfaces"
	"github.com/dep2p/go-fabric/pkg/types"
)

var (
	idA = types.Identity{BoardID: 1, ChipX: 0, ChipY: 0}
	idB = types.Identity{BoardID: 2, ChipX: 1, ChipY: 0}
)

func TestCable_SendReceive(t *testing.T) {
	c := NewCable(idA, idB, 2)
	a, b := c.A(), c.B()

	require.NoError(t, a.Send([]byte{1}))
	require.NoError(t, a.Send([]byte{2}))
	assert.ErrorIs(t, a.Send([]byte{3}), interfaces.ErrChannelBusy)
	assert.Equal(t, 2, b.Pending())

	f, ok := b.Receive()
	require.True(t, ok)
	assert.Equal(t, []byte{1}, f)
	f, ok = b.Receive()
	require.True(t, ok)
	assert.Equal(t, []byte{2}, f)
	_, ok = b.Receive()
	assert.False(t, ok)
	_, ok = a.Receive()
	assert.False(t, ok)

	assert.Equal(t, uint64(2), b.Health().RxFrames)
	assert.Equal(t, uint64(0), a.Health().RxFrames)
}

func TestCable_SendCopiesFrame(t *testing.T) {
	c := NewCable(idA, idB, 0)
	buf := []byte{7, 7}
	require.NoError(t, c.A().Send(buf))
	buf[0] = 0

	f, ok := c.B().Receive()
	require.True(t, ok)
	assert.Equal(t, []byte{7, 7}, f)
}

func TestCable_PHY(t *testing.T) {
	c := NewCable(idA, idB, 0)
	a := c.A()

	assert.True(t, a.PageReceived())
	assert.True(t, a.PCSUp())
	assert.NoError(t, a.Train(false))
	id, ok := a.RemoteIdentity()
	require.True(t, ok)
	assert.Equal(t, idB, id)
	assert.False(t, a.CableLoopback())
	assert.False(t, a.MACLoopback())

	a.SendDummyPacket()
	assert.True(t, a.DummyPacketEchoed())

	a.InjectCRC(5)
	a.InjectSymbolErrors(3)
	assert.Equal(t, uint64(5), a.Health().CRCErrors)
	assert.Equal(t, uint32(3), a.SymbolErrors())

	loop := NewCable(idA, idA, 0)
	assert.True(t, loop.A().CableLoopback())
}

func TestCable_Unplug(t *testing.T) {
	c := NewCable(idA, idB, 0)
	a, b := c.A(), c.B()
	require.NoError(t, a.Send([]byte{1}))

	c.Unplug()
	assert.False(t, c.Connected())
	assert.Equal(t, 0, b.Pending())
	assert.ErrorIs(t, a.Send([]byte{2}), ErrUnplugged)
	assert.ErrorIs(t, a.Train(true), ErrUnplugged)
	assert.False(t, a.PCSUp())
	assert.False(t, a.Health().LinkUp)
	_, ok := a.RemoteIdentity()
	assert.False(t, ok)

	c.Plug()
	assert.True(t, a.Health().LinkUp)
	require.NoError(t, a.Send([]byte{3}))
	f, ok := b.Receive()
	require.True(t, ok)
	assert.Equal(t, []byte{3}, f)
}

func TestMemTransport(t *testing.T) {
	tr := NewMemTransport(2, 2)
	mem := engine.NewMemory()
	tr.Attach(0, 0, mem)

	ctx := context.Background()
	require.NoError(t, tr.Write(ctx, 0, 0, 0x10, []byte{1, 2, 3, 4}))
	assert.Equal(t, uint32(0x04030201), mem.ReadWord(0x10))

	require.NoError(t, tr.Write(ctx, 1, 1, 0x20, []byte{9}))
	buf := make([]byte, 1)
	require.NoError(t, tr.Read(ctx, 1, 1, 0x20, buf))
	assert.Equal(t, []byte{9}, buf)
	assert.Equal(t, 2, tr.Writes())

	assert.Error(t, tr.Write(ctx, 2, 0, 0, []byte{1}))
	assert.Error(t, tr.Read(ctx, 0, 5, 0, buf))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, tr.Read(cancelled, 0, 0, 0, buf), context.Canceled)
}
