package engine

import (
	"encoding/binary"
	"time"

	"github.com/dep2p/go-fabric/internal/core/wire"
	"github.com/dep2p/go-fabric/pkg/types"
)

func putWord(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

func word(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// sentMark 应答已送出但尚未出队（乱序送出的应答）
const sentMark = 1

// acceptResponse 下游应答写回本节点预留的槽位
func (e *Engine) acceptResponse(port int, c *types.Command) error {
	if int(c.SrcRespQID) >= len(e.pairs) {
		return e.halt("port %d: response for queue %d", port, c.SrcRespQID)
	}
	p := e.pairs[c.SrcRespQID]
	idx := int(c.SrcRespBufIndex)
	if !p.resp.Contains(idx) {
		return e.halt("port %d: response for idle slot %s/%d", port, p.id, idx)
	}
	if c.BlockLen() > types.MaxBlockSize {
		return e.halt("port %d: response block %d bytes", port, c.BlockLen())
	}
	slot := p.resp.Slot(idx)
	key := slotKey{p.id, idx}

	if st, ok := e.bcasts[key]; ok {
		if !c.IsResponse() {
			return e.halt("port %d: broadcast response without ack flags", port)
		}
		e.mergeArc(port, key, slot, st, c)
		return nil
	}
	if slot.Flags != 0 {
		return e.halt("port %d: duplicate response for %s/%d", port, p.id, idx)
	}
	if !c.IsResponse() {
		return e.halt("port %d: response without ack flags (%s)", port, c.Flags)
	}
	fl := e.flights[key]
	delete(e.flights, key)

	slot.Data = c.Data
	if len(c.Block) > 0 {
		_ = p.resp.SetBlock(idx, c.Block)
	}
	slot.Flags = c.Flags
	if fl.fault {
		slot.Flags |= types.FlagDestUnreachable
	}
	return nil
}

// responsePass 按来源送出已完成的应答
func (e *Engine) responsePass(p *pair) {
	switch p.id {
	case types.QueueHost:
		e.drainInOrder(p)
	default:
		e.drainOutOfOrder(p)
	}
}

// drainInOrder 主机应答严格按提交顺序交付
func (e *Engine) drainInOrder(p *pair) {
	for {
		_, head, ok := p.resp.Head()
		if !ok || head.Flags == 0 {
			return
		}
		if !head.IsDummyAck() {
			e.deliverHost(head)
		}
		_ = p.resp.Pop()
	}
}

func (e *Engine) deliverHost(c *types.Command) {
	var latency time.Duration
	stamp, timed := e.stamps[c.HostTxnID]
	if timed {
		latency = e.clk.Since(stamp)
		delete(e.stamps, c.HostTxnID)
	}
	e.obs.ResponseDelivered(latency, timed)
	e.hostDone = append(e.hostDone, c.Clone())
}

// drainOutOfOrder 链路与本地传输来源的应答可乱序送出，广播应答除外
//
// 链路重训前调度的 stale 个应答完成后只出队不送出。
func (e *Engine) drainOutOfOrder(p *pair) {
	head := true
	// i 相对读指针的位置，队首出队时不前进
	i := 0
	for ptr := p.resp.ReadPtr(); ptr != p.resp.WritePtr(); ptr = p.resp.Advance(ptr) {
		c := p.resp.Slot(p.resp.Index(ptr))
		switch {
		case c.Flags == 0 || c.RespForwardedOOO == sentMark || c.IsDummyAck():
		case i < p.stale:
			c.RespForwardedOOO = sentMark
		case c.IsBroadcast() && !head:
		default:
			if !e.sendResponse(p, c, head) {
				return
			}
		}
		if head && (c.RespForwardedOOO == sentMark || c.IsDummyAck()) {
			_ = p.resp.Pop()
			if p.stale > 0 {
				p.stale--
			}
			continue
		}
		head = false
		i++
	}
}

func (e *Engine) sendResponse(p *pair, c *types.Command, head bool) bool {
	if p.port < 0 {
		e.localDone = append(e.localDone, c.Clone())
		c.RespForwardedOOO = sentMark
		return true
	}
	out := c.Clone()
	if !head {
		out.RespForwardedOOO = sentMark
	}
	if err := e.out.SendMessage(p.port, wire.CommandMessage(&out)); err != nil {
		return false
	}
	c.RespForwardedOOO = sentMark
	return true
}

// flushCredits 通告端口请求队列的读指针
func (e *Engine) flushCredits() {
	for port, due := range e.creditDue {
		if !due {
			continue
		}
		rd := e.pairs[types.PortQueue(port)].req.ReadPtr()
		if err := e.out.SendMessage(port, &wire.Message{Kind: wire.KindCredit, Credit: rd}); err == nil {
			e.creditDue[port] = false
		}
	}
}
