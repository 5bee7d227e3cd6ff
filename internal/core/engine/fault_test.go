package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-fabric/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              有序写失败
// ════════════════════════════════════════════════════════════════════════════

// 入口芯片就不可达：中间块不产生主机应答，只有末块带不可达
func TestEngine_OrderedWriteUnreachableAtOrigin(t *testing.T) {
	a, _ := pairNodes(t)
	dst := types.Address{Rack: types.Rack{X: 1}, Offset: 0x100}

	cmds := SplitOrderedWrite(dst, make([]byte, 2*types.MaxBlockSize+1))
	require.Len(t, cmds, 3)
	for _, c := range cmds {
		_, err := a.eng.Submit(c)
		require.NoError(t, err)
	}
	run(t, 4, a)

	got := responses(a)
	require.Len(t, got, 1)
	assert.True(t, got[0].Unreachable())
	assert.True(t, got[0].Flags.Has(types.FlagWrAck|types.FlagLastDataBlockDram))
	assert.Equal(t, uint8(2), got[0].HostTxnID)
	assert.Equal(t, 3, a.obs.done[DispositionUnreachable])
	assert.Zero(t, a.eng.Pending())
	assert.Empty(t, a.eng.streams)
}

// 下游芯片没有本地传输：中间块在下游给占位应答，不回送上游
func TestEngine_OrderedWriteUnreachableDownstream(t *testing.T) {
	a, b := pairNodes(t)
	dst := chipID(1, 0).Address(0x100)
	dst.NocX = 1

	for _, c := range SplitOrderedWrite(dst, make([]byte, 2*types.MaxBlockSize+1)) {
		_, err := a.eng.Submit(c)
		require.NoError(t, err)
	}
	run(t, 10, a, b)

	require.NoError(t, a.eng.Halted())
	got := responses(a)
	require.Len(t, got, 1)
	assert.True(t, got[0].Unreachable())
	assert.Equal(t, uint8(2), got[0].HostTxnID)
	assert.Equal(t, 3, b.obs.done[DispositionUnreachable])
	assert.Zero(t, a.eng.Pending())
	assert.Zero(t, b.eng.Pending())
}

// 中间块失败而末块成功时，末块应答仍带不可达
func TestEngine_OrderedWriteIntermediateFault(t *testing.T) {
	self := chipID(0, 0)
	n := newNode(t, self, nil, nil)
	n.eng.SetRoutes(routesFor(t, self))
	dst := self.Address(0)
	dst.NocX = 1

	cmds := SplitOrderedWrite(dst, make([]byte, types.MaxBlockSize+1))
	require.Len(t, cmds, 2)
	_, err := n.eng.Submit(cmds[0])
	require.NoError(t, err)
	run(t, 1, n)
	assert.Empty(t, responses(n))

	// 末块到达前本地传输恢复
	n.eng.transport = newMemTransport()
	_, err = n.eng.Submit(cmds[1])
	require.NoError(t, err)
	run(t, 1, n)

	got := responses(n)
	require.Len(t, got, 1)
	assert.True(t, got[0].Unreachable())
	assert.Equal(t, 1, n.obs.done[DispositionTransport])
}

// ════════════════════════════════════════════════════════════════════════════
//                              链路重训
// ════════════════════════════════════════════════════════════════════════════

// 已转发未应答的请求在端口重训后以不可达完成，后续主机应答不被阻塞
func TestEngine_ResetPortCompletesInFlight(t *testing.T) {
	a, b := pairNodes(t)
	self := chipID(0, 0)

	_, err := a.eng.Submit(types.NewWrite(addrOn(chipID(1, 0), 0), 1))
	require.NoError(t, err)
	_, err = a.eng.Submit(types.NewWrite(addrOn(self, 0), 2))
	require.NoError(t, err)
	run(t, 2, a)
	// 请求随链路一起丢失
	b.out.inbox = nil
	assert.Empty(t, responses(a))
	assert.Equal(t, 2, a.eng.Pending())

	a.eng.ResetPort(0)
	run(t, 1, a)

	got := responses(a)
	require.Len(t, got, 2)
	assert.Equal(t, uint8(0), got[0].HostTxnID)
	assert.True(t, got[0].Unreachable())
	assert.True(t, got[0].Flags.Has(types.FlagWrAck))
	assert.Equal(t, uint8(1), got[1].HostTxnID)
	assert.False(t, got[1].Unreachable())
	assert.Zero(t, a.eng.Pending())
	assert.Empty(t, a.eng.flights)

	// 重训后链路照常可用
	_, err = a.eng.Submit(types.NewWrite(addrOn(chipID(1, 0), 4), 3))
	require.NoError(t, err)
	run(t, 4, a, b)
	got = responses(a)
	require.Len(t, got, 1)
	assert.False(t, got[0].Unreachable())
	assert.Equal(t, uint32(3), b.eng.Memory().ReadWord(4))
}

// 重训前已调度的应答完成后只出队，不再发给对端
func TestEngine_ResetPortDropsStaleResponses(t *testing.T) {
	a, b := pairNodes(t)
	_, err := a.eng.Submit(types.NewWrite(addrOn(chipID(1, 0), 0), 1))
	require.NoError(t, err)
	require.NoError(t, a.eng.Poll())
	b.deliver(t)

	b.out.busy = true
	require.NoError(t, b.eng.Poll())
	assert.Equal(t, 1, b.eng.Pending())

	b.eng.ResetPort(0)
	b.out.busy = false
	require.NoError(t, b.eng.Poll())
	assert.Zero(t, b.out.sent)
	assert.Zero(t, b.eng.Pending())
	assert.Equal(t, uint32(1), b.eng.Memory().ReadWord(0))
}

// 广播分支经重训端口丢失：按不可达合并后主机收到应答
func TestEngine_ResetPortSettlesBroadcast(t *testing.T) {
	a, b := pairNodes(t)
	_, err := a.eng.Submit(types.NewBroadcastWrite(types.Rack{}, 0x40, types.BroadcastHeader{}, []byte{7}))
	require.NoError(t, err)
	run(t, 2, a)
	b.out.inbox = nil
	assert.Empty(t, responses(a))

	a.eng.ResetPort(0)
	run(t, 1, a)

	got := responses(a)
	require.Len(t, got, 1)
	assert.True(t, got[0].Flags.Has(types.FlagWrAck|types.FlagBroadcast))
	assert.True(t, got[0].Unreachable())
	assert.Empty(t, a.eng.bcasts)
	assert.Zero(t, a.eng.Pending())
	assert.Equal(t, 1, a.obs.done[DispositionBroadcast])
}

// 中间块经重训端口丢失，末块的应答带不可达
func TestEngine_ResetPortFaultsOrderedStream(t *testing.T) {
	a, b := pairNodes(t)
	dst := addrOn(chipID(1, 0), 0x2000)
	cmds := SplitOrderedWrite(dst, make([]byte, types.MaxBlockSize+1))
	require.Len(t, cmds, 2)

	_, err := a.eng.Submit(cmds[0])
	require.NoError(t, err)
	run(t, 1, a)
	b.out.inbox = nil
	a.eng.ResetPort(0)
	b.eng.ResetPort(0)

	_, err = a.eng.Submit(cmds[1])
	require.NoError(t, err)
	run(t, 6, a, b)

	got := responses(a)
	require.Len(t, got, 1)
	assert.True(t, got[0].Unreachable())
	assert.Equal(t, uint8(1), got[0].HostTxnID)
	assert.Zero(t, a.eng.Pending())
	assert.Zero(t, b.eng.Pending())
}
