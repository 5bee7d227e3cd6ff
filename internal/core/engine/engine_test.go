package engine

import (
	"bytes"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-fabric/config"
	"github.com/dep2p/go-fabric/internal/core/queue"
	"github.com/dep2p/go-fabric/internal/core/wire"
	"github.com/dep2p/go-fabric/pkg/types"
)

func addrOn(id types.Identity, offset uint64) types.Address {
	return id.Address(offset)
}

func TestConfig_Validate(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.QueueCapacity = 1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = cfg
	bad.NocCols = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	_, err := New(bad, chipID(0, 0), &testSender{}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEngine_LocalWriteRead(t *testing.T) {
	a, _ := pairNodes(t)
	self := chipID(0, 0)

	_, err := a.eng.Submit(types.NewWrite(addrOn(self, 0x40), 0xCAFE))
	require.NoError(t, err)
	_, err = a.eng.Submit(types.NewRead(addrOn(self, 0x40)))
	require.NoError(t, err)
	run(t, 2, a)

	got := responses(a)
	require.Len(t, got, 2)
	assert.True(t, got[0].Flags.Has(types.FlagWrAck))
	assert.True(t, got[1].Flags.Has(types.FlagRdData))
	assert.Equal(t, uint32(0xCAFE), got[1].Data)
	assert.Equal(t, uint8(0), got[0].HostTxnID)
	assert.Equal(t, uint8(1), got[1].HostTxnID)
	assert.Equal(t, 2, a.obs.done[DispositionLocal])
	assert.Zero(t, a.out.sent)
}

func TestEngine_NotReady(t *testing.T) {
	n := newNode(t, chipID(0, 0), nil, nil)
	assert.False(t, n.eng.Ready())

	_, err := n.eng.Submit(types.NewWrite(addrOn(chipID(0, 0), 0), 1))
	require.NoError(t, err)
	run(t, 3, n)
	assert.Empty(t, responses(n))
	assert.Equal(t, 1, n.eng.Pending())

	n.eng.SetRoutes(routesFor(t, chipID(0, 0)))
	run(t, 1, n)
	assert.Len(t, responses(n), 1)
	assert.Zero(t, n.eng.Pending())
}

func TestEngine_RemoteBlockWrite(t *testing.T) {
	a, b := pairNodes(t)
	dst := addrOn(chipID(1, 0), 0x1000)
	data := bytes.Repeat([]byte{0xAB}, 64)

	_, err := a.eng.Submit(types.NewBlockWrite(dst, data))
	require.NoError(t, err)
	_, err = a.eng.Submit(types.NewBlockRead(dst, 64))
	require.NoError(t, err)
	run(t, 6, a, b)

	got := responses(a)
	require.Len(t, got, 2)
	assert.True(t, got[0].Flags.Has(types.FlagWrAck))
	assert.False(t, got[0].Unreachable())
	assert.True(t, got[1].Flags.Has(types.FlagRdData|types.FlagDataBlock))
	assert.Equal(t, data, got[1].Block)

	buf := make([]byte, 64)
	b.eng.Memory().Read(0x1000, buf)
	assert.Equal(t, data, buf)

	assert.Equal(t, 2, a.obs.done[DispositionForwarded])
	assert.Equal(t, 2, b.obs.done[DispositionLocal])
	assert.Zero(t, a.eng.Pending())
	assert.Zero(t, b.eng.Pending())
}

func TestEngine_Unreachable(t *testing.T) {
	a, b := pairNodes(t)

	// 机架 2 没有任何跨机架线缆
	far := types.Address{Rack: types.Rack{X: 2}, ChipX: 1, ChipY: 0}
	// (0,1) 在层板内但没有向上的链路
	above := addrOn(chipID(0, 1), 0)
	// 层板外
	outside := addrOn(chipID(5, 0), 0)

	for _, addr := range []types.Address{far, above, outside} {
		_, err := a.eng.Submit(types.NewWrite(addr, 1))
		require.NoError(t, err)
	}
	_, err := a.eng.Submit(types.NewRead(far))
	require.NoError(t, err)
	run(t, 5, a, b)

	got := responses(a)
	require.Len(t, got, 4)
	for _, c := range got[:3] {
		assert.True(t, c.Flags.Has(types.FlagWrAck|types.FlagDestUnreachable), c.String())
	}
	assert.True(t, got[3].Flags.Has(types.FlagRdData|types.FlagDestUnreachable))
	assert.Equal(t, 4, a.obs.done[DispositionUnreachable])
	assert.Zero(t, a.out.sent)
}

func TestEngine_SameChipTransport(t *testing.T) {
	self := chipID(0, 0)
	other := self.Address(0x80)
	other.NocX = 1

	t.Run("无本地传输", func(t *testing.T) {
		n := newNode(t, self, nil, nil)
		n.eng.SetRoutes(routesFor(t, self))
		_, err := n.eng.Submit(types.NewWrite(other, 7))
		require.NoError(t, err)
		run(t, 1, n)
		got := responses(n)
		require.Len(t, got, 1)
		assert.True(t, got[0].Unreachable())
	})

	t.Run("经本地传输", func(t *testing.T) {
		lt := newMemTransport()
		n := newNode(t, self, lt, nil)
		n.eng.SetRoutes(routesFor(t, self))
		_, err := n.eng.Submit(types.NewWrite(other, 7))
		require.NoError(t, err)
		_, err = n.eng.Submit(types.NewRead(other))
		require.NoError(t, err)
		run(t, 2, n)

		got := responses(n)
		require.Len(t, got, 2)
		assert.False(t, got[0].Unreachable())
		assert.Equal(t, uint32(7), got[1].Data)
		assert.Equal(t, uint32(7), lt.endpoint(1, 0).ReadWord(0x80))
		assert.Equal(t, 2, n.obs.done[DispositionTransport])
	})
}

func TestEngine_SubmitLocal(t *testing.T) {
	self := chipID(0, 0)
	n := newNode(t, self, nil, nil)
	n.eng.SetRoutes(routesFor(t, self))

	require.NoError(t, n.eng.SubmitLocal(types.NewWrite(self.Address(8), 3)))
	require.NoError(t, n.eng.SubmitLocal(types.NewRead(self.Address(8))))
	run(t, 2, n)

	var got []types.Command
	for {
		c, ok := n.eng.PopLocalResponse()
		if !ok {
			break
		}
		got = append(got, c)
	}
	require.Len(t, got, 2)
	assert.Equal(t, types.QueueLocal, got[0].SrcRespQID)
	assert.Empty(t, responses(n))
}

func TestEngine_Credits(t *testing.T) {
	a, b := pairNodes(t)
	dst := addrOn(chipID(1, 0), 0)

	for i := 0; i < 8; i++ {
		_, err := a.eng.Submit(types.NewWrite(types.Address{ChipX: dst.ChipX, Offset: uint64(4 * i)}, uint32(i)))
		require.NoError(t, err)
	}
	_, err := a.eng.Submit(types.NewWrite(dst, 0))
	assert.ErrorIs(t, err, queue.ErrFull)

	// B 不轮询：单根线缆预算为容量的一半
	for i := 0; i < 10; i++ {
		require.NoError(t, a.eng.Poll())
	}
	assert.Equal(t, 4, a.out.sent)
	assert.Positive(t, a.obs.retried)

	b.deliver(t)
	run(t, 16, a, b)
	got := responses(a)
	require.Len(t, got, 8)
	for i, c := range got {
		assert.Equal(t, uint8(i), c.HostTxnID)
		assert.True(t, c.Flags.Has(types.FlagWrAck))
	}
	assert.Equal(t, uint32(5), b.eng.Memory().ReadWord(20))
}

func TestEngine_BusyChannel(t *testing.T) {
	a, b := pairNodes(t)
	a.out.busy = true

	_, err := a.eng.Submit(types.NewWrite(addrOn(chipID(1, 0), 0), 9))
	require.NoError(t, err)
	run(t, 3, a, b)
	assert.Empty(t, responses(a))
	assert.Equal(t, 3, a.obs.retried)

	a.out.busy = false
	run(t, 4, a, b)
	assert.Len(t, responses(a), 1)
}

func TestEngine_OrderedWrite(t *testing.T) {
	a, b := pairNodes(t)
	dst := addrOn(chipID(1, 0), 0x2000)
	data := make([]byte, 2*types.MaxBlockSize+100)
	for i := range data {
		data[i] = byte(i)
	}

	cmds := SplitOrderedWrite(dst, data)
	require.Len(t, cmds, 3)
	for _, c := range cmds {
		_, err := a.eng.Submit(c)
		require.NoError(t, err)
	}
	run(t, 10, a, b)

	got := responses(a)
	require.Len(t, got, 1)
	assert.True(t, got[0].Flags.Has(types.FlagWrAck|types.FlagOrdered|types.FlagLastDataBlockDram))

	buf := make([]byte, len(data))
	b.eng.Memory().Read(0x2000, buf)
	assert.Equal(t, data, buf)
	assert.Zero(t, a.eng.Pending())
	assert.Zero(t, b.eng.Pending())
}

func TestEngine_OrderedWriteLocal(t *testing.T) {
	a, _ := pairNodes(t)
	cmds := SplitOrderedWrite(addrOn(chipID(0, 0), 0), make([]byte, types.MaxBlockSize+1))
	for _, c := range cmds {
		_, err := a.eng.Submit(c)
		require.NoError(t, err)
	}
	run(t, 2, a)
	assert.Len(t, responses(a), 1)
}

func TestEngine_Timestamp(t *testing.T) {
	clk := clock.NewMock()
	self := chipID(0, 0)
	n := newNode(t, self, nil, clk)
	n.eng.SetRoutes(routesFor(t, self))

	c := types.NewWrite(self.Address(0), 1)
	c.Flags |= types.FlagTimestamp
	_, err := n.eng.Submit(c)
	require.NoError(t, err)
	_, err = n.eng.Submit(types.NewWrite(self.Address(4), 1))
	require.NoError(t, err)
	run(t, 2, n)

	got := responses(n)
	require.Len(t, got, 2)
	assert.True(t, got[0].Flags.Has(types.FlagTimestamp))
	assert.Equal(t, 2, n.obs.delivered)
	assert.Equal(t, 1, n.obs.timed)
}

func TestEngine_SubmitValidation(t *testing.T) {
	self := chipID(0, 0)
	n := newNode(t, self, nil, nil)

	rd := types.NewBlockRead(self.Address(0), 8)
	rd.Flags |= types.FlagBroadcast
	_, err := n.eng.Submit(rd)
	assert.ErrorIs(t, err, ErrBroadcastRead)

	ack := types.Command{Flags: types.FlagWrAck}
	_, err = n.eng.Submit(ack)
	assert.ErrorIs(t, err, ErrInvalidCommand)

	big := types.NewBlockRead(self.Address(0), types.MaxBlockSize+1)
	_, err = n.eng.Submit(big)
	assert.ErrorIs(t, err, ErrInvalidCommand)

	short := types.NewBlockWrite(self.Address(0), make([]byte, 8))
	short.Flags |= types.FlagBroadcast
	_, err = n.eng.Submit(short)
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestEngine_ProtocolViolation(t *testing.T) {
	cases := map[string]*wire.Message{
		"无效标记": {Kind: wire.KindRequest, Command: types.Command{Flags: types.FlagWrReq}},
		"槽位越界": {Kind: wire.KindRequest, Command: types.Command{Flags: types.FlagWrReq, Valid: types.ValidMarker, SrcRespBufIndex: 8}},
		"广播读": {Kind: wire.KindRequest, Command: types.Command{Flags: types.FlagRdReq | types.FlagBroadcast, Valid: types.ValidMarker}},
		"空闲槽位应答": {Kind: wire.KindResponse, Command: types.Command{Flags: types.FlagWrAck, SrcRespQID: types.QueueHost}},
		"未知队列应答": {Kind: wire.KindResponse, Command: types.Command{Flags: types.FlagWrAck, SrcRespQID: 40}},
		"越界信用":   {Kind: wire.KindCredit, Credit: 3},
		"发现帧":    {Kind: wire.KindHello},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			n := newNode(t, chipID(0, 0), nil, nil)
			err := n.eng.HandleMessage(0, m)
			require.ErrorIs(t, err, ErrProtocolViolation)
			assert.ErrorIs(t, n.eng.Poll(), ErrProtocolViolation)
			assert.Equal(t, err, n.eng.Halted())
			assert.Equal(t, 1, n.obs.violation)
		})
	}
}

func TestEngine_RequestOverflow(t *testing.T) {
	n := newNode(t, chipID(0, 0), nil, nil)
	for i := 0; i < 8; i++ {
		m := wire.CommandMessage(&types.Command{Flags: types.FlagWrReq, Valid: types.ValidMarker, SrcRespBufIndex: uint16(i)})
		require.NoError(t, n.eng.HandleMessage(1, m))
	}
	m := wire.CommandMessage(&types.Command{Flags: types.FlagWrReq, Valid: types.ValidMarker})
	assert.ErrorIs(t, n.eng.HandleMessage(1, m), ErrProtocolViolation)
}

func TestEngine_ResetPort(t *testing.T) {
	a, b := pairNodes(t)
	_, err := a.eng.Submit(types.NewWrite(addrOn(chipID(1, 0), 0), 1))
	require.NoError(t, err)
	require.NoError(t, a.eng.Poll())
	b.deliver(t)
	assert.Equal(t, 1, b.eng.Pending())

	b.eng.ResetPort(0)
	assert.Zero(t, b.eng.Pending())
	b.eng.ResetPort(99)
}

func TestSplitOrderedWrite(t *testing.T) {
	addr := types.Address{ChipX: 1, Offset: 0x100}
	assert.Nil(t, SplitOrderedWrite(addr, nil))

	one := SplitOrderedWrite(addr, make([]byte, 10))
	require.Len(t, one, 1)
	assert.Equal(t, types.FlagLastOrderedBlockWrite, one[0].Flags)

	cmds := SplitOrderedWrite(addr, make([]byte, 2*types.MaxBlockSize))
	require.Len(t, cmds, 2)
	assert.True(t, cmds[0].IsOrderedIntermediate())
	assert.False(t, cmds[1].IsOrderedIntermediate())
	assert.Equal(t, uint64(0x100+types.MaxBlockSize), cmds[1].Address().Offset)
	assert.Equal(t, uint32(types.MaxBlockSize), cmds[1].Data)
}

func TestModule(t *testing.T) {
	var cfg Config
	app := fxtest.New(t,
		fx.Supply(config.NewConfig()),
		Module(),
		fx.Populate(&cfg),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.Equal(t, config.DefaultEngineConfig().QueueCapacity, cfg.QueueCapacity)
}
