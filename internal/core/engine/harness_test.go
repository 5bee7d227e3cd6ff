package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-fabric/internal/core/routing"
	"github.com/dep2p/go-fabric/internal/core/topology"
	"github.com/dep2p/go-fabric/internal/core/wire"
	"github.com/dep2p/go-fabric/pkg/interfaces"
	"github.com/dep2p/go-fabric/pkg/types"
)

// 2×2 层板上只连了 (0,0) 到 (1,0) 一条线缆，两端都是端口 0
var testGeom = topology.Geometry{Width: 2, Height: 2}

func testConfig() Config {
	return Config{QueueCapacity: 8, NumPorts: 2, ShelfHeight: 2, NocCols: 2, NocRows: 2}
}

func chipID(x, y uint8) types.Identity {
	return types.Identity{BoardID: 1 + uint32(x), ChipX: x, ChipY: y}
}

func completeTables(t *testing.T) *topology.Tables {
	t.Helper()
	tab := topology.NewTables(testGeom)
	for _, id := range []topology.TableID{topology.TableShelf, topology.TableRack} {
		for i := 0; i < tab.Len(id); i++ {
			_, err := tab.Set(id, i, topology.Unconnected)
			require.NoError(t, err)
		}
	}
	return tab
}

func routesFor(t *testing.T, local types.Identity, conns ...types.Conn) *routing.Table {
	t.Helper()
	cfg := routing.DefaultConfig()
	cfg.Geometry = testGeom
	cfg.QueueCapacity = testConfig().QueueCapacity
	all := make([]types.Conn, testConfig().NumPorts)
	for i := range all {
		all[i] = types.ConnUnconnected
	}
	copy(all, conns)
	tbl, err := routing.Build(cfg, local, all, completeTables(t), nil)
	require.NoError(t, err)
	return tbl
}

// ════════════════════════════════════════════════════════════════════════════
//                              测试链路
// ════════════════════════════════════════════════════════════════════════════

type frame struct {
	port int
	data []byte
}

// testSender 编码后投递到对端收件箱
type testSender struct {
	peer  *testSender
	inbox []frame
	busy  bool
	sent  int
}

func (s *testSender) SendMessage(port int, m *wire.Message) error {
	if s.busy {
		return interfaces.ErrChannelBusy
	}
	b, err := wire.Marshal(m)
	if err != nil {
		return err
	}
	s.sent++
	if s.peer != nil {
		// 对端也在端口 0
		s.peer.inbox = append(s.peer.inbox, frame{port: 0, data: b})
	}
	return nil
}

// countingObserver 统计引擎事件
type countingObserver struct {
	done      map[Disposition]int
	retried   int
	forwarded int
	delivered int
	timed     int
	violation int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{done: make(map[Disposition]int)}
}

func (o *countingObserver) CommandDone(d Disposition)       { o.done[d]++ }
func (o *countingObserver) Forwarded(types.Direction)       { o.forwarded++ }
func (o *countingObserver) Retried()                        { o.retried++ }
func (o *countingObserver) ProtocolViolation()              { o.violation++ }
func (o *countingObserver) ResponseDelivered(_ time.Duration, timed bool) {
	o.delivered++
	if timed {
		o.timed++
	}
}

// node 测试芯片
type node struct {
	eng *Engine
	out *testSender
	obs *countingObserver
}

func newNode(t *testing.T, id types.Identity, lt interfaces.LocalTransport, clk clock.Clock) *node {
	t.Helper()
	n := &node{out: &testSender{}, obs: newCountingObserver()}
	eng, err := New(testConfig(), id, n.out, lt, clk, n.obs)
	require.NoError(t, err)
	n.eng = eng
	return n
}

// deliver 把收件箱中的帧交给引擎
func (n *node) deliver(t *testing.T) {
	t.Helper()
	frames := n.out.inbox
	n.out.inbox = nil
	for _, f := range frames {
		m, err := wire.Unmarshal(f.data)
		require.NoError(t, err)
		require.NoError(t, n.eng.HandleMessage(f.port, m))
	}
}

// pairNodes A=(0,0) 与 B=(1,0) 经端口 0 相连
func pairNodes(t *testing.T) (*node, *node) {
	t.Helper()
	a := newNode(t, chipID(0, 0), nil, nil)
	b := newNode(t, chipID(1, 0), nil, nil)
	a.out.peer, b.out.peer = b.out, a.out
	a.eng.SetRoutes(routesFor(t, chipID(0, 0), types.ConnRight))
	b.eng.SetRoutes(routesFor(t, chipID(1, 0), types.ConnLeft))
	return a, b
}

func run(t *testing.T, rounds int, nodes ...*node) {
	t.Helper()
	for i := 0; i < rounds; i++ {
		for _, n := range nodes {
			require.NoError(t, n.eng.Poll())
		}
		for _, n := range nodes {
			n.deliver(t)
		}
	}
}

func responses(n *node) []types.Command {
	var out []types.Command
	for {
		c, ok := n.eng.PopResponse()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

// memTransport 同芯片其他端点
type memTransport struct {
	mu     sync.Mutex
	mem    map[[2]uint8]*Memory
	writes int
}

func newMemTransport() *memTransport {
	return &memTransport{mem: make(map[[2]uint8]*Memory)}
}

func (m *memTransport) endpoint(x, y uint8) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]uint8{x, y}
	if m.mem[k] == nil {
		m.mem[k] = NewMemory()
	}
	return m.mem[k]
}

func (m *memTransport) Read(_ context.Context, x, y uint8, off uint64, buf []byte) error {
	m.endpoint(x, y).Read(off, buf)
	return nil
}

func (m *memTransport) Write(_ context.Context, x, y uint8, off uint64, data []byte) error {
	m.endpoint(x, y).Write(off, data)
	m.mu.Lock()
	m.writes++
	m.mu.Unlock()
	return nil
}
