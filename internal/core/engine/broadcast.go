package engine

import (
	"context"

	"github.com/dep2p/go-fabric/internal/core/routing"
	"github.com/dep2p/go-fabric/internal/core/wire"
	"github.com/dep2p/go-fabric/pkg/types"
)

// bcastState 广播在本芯片的未完成分支
//
// arcs 为已发出或待发出但尚未应答的分支数，归零时应答槽位完成。
// ports 按出口端口计数，链路重训时据此扣除。
type bcastState struct {
	arcs   int
	ports  map[int]int
	flags  types.Flag
	unsent []pendingArc
}

type pendingArc struct {
	hop routing.Hop
	cmd types.Command
}

// broadcast 写入本芯片端点并向后续分支转发
//
// 所有分支的信用必须同时可用，否则整条广播留到下一轮。
func (e *Engine) broadcast(p *pair, req *types.Command, idx int, slot *types.Command) (outcome, error) {
	h, err := types.ParseBroadcastHeader(req.Block)
	if err != nil {
		return done, e.halt("broadcast from %s: %v", p.id, err)
	}
	h.MarkVisited(e.local.Rack)

	arrived := types.ConnUnknown
	if p.port >= 0 {
		if d, ok := e.routes.PortDirection(p.port); ok {
			arrived = d.Conn()
		}
	}
	hops := e.routes.BroadcastHops(&h, arrived)
	for _, hop := range hops {
		if !e.windows[hop.Port].Available() {
			return retry, nil
		}
	}

	if !h.ShelfExcluded(e.local.Rack) && !h.ChipExcluded(e.local.ChipX, e.local.ChipY, e.cfg.ShelfHeight) {
		e.multicast(&h, req)
	}

	st := &bcastState{
		ports: make(map[int]int),
		flags: types.FlagWrAck | types.FlagBroadcast | types.FlagDataBlock | req.Flags&types.FlagTimestamp,
	}
	fwd := req.Clone()
	_ = h.MarshalTo(fwd.Block)
	fwd.SrcRespQID = p.id
	fwd.SrcRespBufIndex = uint16(idx)
	for _, hop := range hops {
		_ = e.windows[hop.Port].Consume()
		out := fwd.Clone()
		out.BroadcastHopDir = uint8(hop.Dir)
		st.arcs++
		st.ports[hop.Port]++
		if err := e.out.SendMessage(hop.Port, wire.CommandMessage(&out)); err != nil {
			st.unsent = append(st.unsent, pendingArc{hop: hop, cmd: out})
			continue
		}
		e.obs.Forwarded(hop.Dir)
	}

	key := slotKey{p.id, idx}
	if st.arcs == 0 {
		e.settle(key, slot, st)
		return done, nil
	}
	e.bcasts[key] = st
	return done, nil
}

// multicast 把负载写入本芯片每个未排除的端点
func (e *Engine) multicast(h *types.BroadcastHeader, req *types.Command) {
	payload := req.Block[types.BroadcastHeaderSize:]
	if len(payload) == 0 {
		return
	}
	off := req.Address().Offset
	for y := 0; y < e.cfg.NocRows; y++ {
		for x := 0; x < e.cfg.NocCols; x++ {
			nx, ny := uint8(x), uint8(y)
			if h.EndpointExcluded(nx, ny) {
				continue
			}
			if nx == e.local.NocX && ny == e.local.NocY {
				e.mem.Write(off, payload)
				continue
			}
			if e.transport == nil {
				continue
			}
			if err := e.transport.Write(context.Background(), nx, ny, off, payload); err != nil {
				logger.Warn("广播写本地端点失败", "noc", [2]uint8{nx, ny}, "error", err)
			}
		}
	}
}

// mergeArc 合并从 port 返回的一个分支应答
func (e *Engine) mergeArc(port int, key slotKey, slot *types.Command, st *bcastState, c *types.Command) {
	st.arcs--
	if st.ports[port] > 0 {
		st.ports[port]--
	}
	st.flags |= c.Flags & types.FlagDestUnreachable
	if st.arcs > 0 {
		return
	}
	e.settle(key, slot, st)
}

// dropArcs 经该端口的分支不会再有应答，按不可达合并，返回丢弃的分支数
func (e *Engine) dropArcs(port int) int {
	lost := 0
	for key, st := range e.bcasts {
		n := st.ports[port]
		if n == 0 {
			continue
		}
		delete(st.ports, port)
		lost += n
		st.arcs -= n
		st.flags |= types.FlagDestUnreachable
		rest := st.unsent[:0]
		for _, a := range st.unsent {
			if a.hop.Port != port {
				rest = append(rest, a)
			}
		}
		st.unsent = rest
		if st.arcs <= 0 {
			e.settle(key, e.pairs[key.qid].resp.Slot(key.slot), st)
		}
	}
	return lost
}

func (e *Engine) settle(key slotKey, slot *types.Command, st *bcastState) {
	delete(e.bcasts, key)
	slot.Flags = st.flags
	e.obs.CommandDone(DispositionBroadcast)
}

// flushBroadcasts 补发链路忙时未能送出的分支
func (e *Engine) flushBroadcasts() {
	for _, st := range e.bcasts {
		if len(st.unsent) == 0 {
			continue
		}
		rest := st.unsent[:0]
		for _, a := range st.unsent {
			if err := e.out.SendMessage(a.hop.Port, wire.CommandMessage(&a.cmd)); err != nil {
				rest = append(rest, a)
				continue
			}
			e.obs.Forwarded(a.hop.Dir)
		}
		st.unsent = rest
	}
}
