package engine

import (
	"context"
	"errors"

	"github.com/dep2p/go-fabric/internal/core/routing"
	"github.com/dep2p/go-fabric/internal/core/wire"
	"github.com/dep2p/go-fabric/pkg/types"
)

// respFlags 应答保留的请求标志
const respFlags = types.FlagDataBlock | types.FlagDataBlockDram | types.FlagLastDataBlockDram |
	types.FlagOrdered | types.FlagBroadcast | types.FlagTimestamp

// outcome 一次调度尝试的结果
type outcome int

const (
	// done 应答槽位已提交，请求出队
	done outcome = iota
	// retry 资源不足，请求留在队首下一轮再试
	retry
)

// requestPass 处理队首请求
func (e *Engine) requestPass(p *pair) error {
	_, req, ok := p.req.Head()
	if !ok {
		return nil
	}
	idx, slot, err := p.resp.Tail()
	if err != nil {
		// 应答队列满，等下游应答排空
		return nil
	}
	reserve(slot, req)

	res, err := e.dispatch(p, req, idx, slot)
	if err != nil {
		return err
	}
	if res == retry {
		e.obs.Retried()
		return nil
	}
	p.resp.Commit()
	_ = p.req.Pop()
	if p.port >= 0 {
		e.creditDue[p.port] = true
	}
	return nil
}

// reserve 把请求的来源信息拷入应答槽位，标志置零表示未完成
func reserve(slot, req *types.Command) {
	*slot = types.Command{
		SysAddr:         req.SysAddr,
		Rack:            req.Rack,
		SrcRespBufIndex: req.SrcRespBufIndex,
		SrcNocX:         req.SrcNocX,
		SrcNocY:         req.SrcNocY,
		Timestamp:       req.Timestamp,
		SrcRespQID:      req.SrcRespQID,
		HostTxnID:       req.HostTxnID,
		Valid:           types.ValidMarker,
	}
}

func responseKind(req *types.Command) types.Flag {
	if req.IsWrite() {
		return types.FlagWrAck
	}
	return types.FlagRdData
}

// dispatch 分类并处理请求
func (e *Engine) dispatch(p *pair, req *types.Command, idx int, slot *types.Command) (outcome, error) {
	addr := req.Address()
	switch {
	case req.IsBroadcast():
		return e.broadcast(p, req, idx, slot)
	case addr.OnChip(e.local) && addr.NocX == e.local.NocX && addr.NocY == e.local.NocY:
		e.serviceMemory(p, req, idx, slot)
		e.obs.CommandDone(DispositionLocal)
		return done, nil
	case addr.OnChip(e.local):
		e.serviceTransport(p, req, idx, slot)
		return done, nil
	}

	hop, err := e.routes.NextHop(addr.Rack, addr.ChipX, addr.ChipY)
	if errors.Is(err, routing.ErrUnreachable) {
		logger.Debug("目的不可达", "chip", e.local, "dest", addr)
		e.unreachable(p, req, slot)
		return done, nil
	}
	if err != nil {
		return done, e.halt("route %s: %v", addr, err)
	}
	return e.forward(p, req, idx, slot, hop), nil
}

// unreachable 以不可达完成；有序中间块仍给占位应答，失败留给末块
func (e *Engine) unreachable(p *pair, req, slot *types.Command) {
	e.obs.CommandDone(DispositionUnreachable)
	if req.IsOrderedIntermediate() {
		e.noteIntermediate(p, req, -1, true)
		slot.Flags = types.FlagOrderedBlockWriteAck
		return
	}
	if orderedLast(req) {
		e.endStream(p, req)
	}
	slot.Flags = responseKind(req) | req.Flags&respFlags | types.FlagDestUnreachable
}

// serviceMemory 访问本端点内存
func (e *Engine) serviceMemory(p *pair, req *types.Command, idx int, slot *types.Command) {
	off := req.Address().Offset
	switch {
	case req.IsWrite() && req.IsBlock():
		e.mem.Write(off, req.Block)
	case req.IsWrite():
		e.mem.WriteWord(off, req.Data)
	case req.IsBlock():
		buf := make([]byte, req.Data)
		e.mem.Read(off, buf)
		_ = p.resp.SetBlock(idx, buf)
		slot.Data = req.Data
	default:
		slot.Data = e.mem.ReadWord(off)
	}
	e.complete(p, req, slot)
}

// serviceTransport 经本地传输访问同芯片的其他端点
func (e *Engine) serviceTransport(p *pair, req *types.Command, idx int, slot *types.Command) {
	if e.transport == nil {
		e.unreachable(p, req, slot)
		return
	}
	addr := req.Address()
	ctx := context.Background()
	var err error
	switch {
	case req.IsWrite() && req.IsBlock():
		err = e.transport.Write(ctx, addr.NocX, addr.NocY, addr.Offset, req.Block)
	case req.IsWrite():
		var b [4]byte
		putWord(b[:], req.Data)
		err = e.transport.Write(ctx, addr.NocX, addr.NocY, addr.Offset, b[:])
	case req.IsBlock():
		buf := make([]byte, req.Data)
		if err = e.transport.Read(ctx, addr.NocX, addr.NocY, addr.Offset, buf); err == nil {
			_ = p.resp.SetBlock(idx, buf)
			slot.Data = req.Data
		}
	default:
		var b [4]byte
		if err = e.transport.Read(ctx, addr.NocX, addr.NocY, addr.Offset, b[:]); err == nil {
			slot.Data = word(b[:])
		}
	}
	if err != nil {
		logger.Warn("本地传输失败", "dest", addr, "error", err)
		e.unreachable(p, req, slot)
		return
	}
	e.complete(p, req, slot)
	e.obs.CommandDone(DispositionTransport)
}

// complete 请求已在本地完成：有序中间块给占位应答，其余给正常应答
func (e *Engine) complete(p *pair, req, slot *types.Command) {
	if req.IsOrderedIntermediate() {
		slot.Flags = types.FlagOrderedBlockWriteAck
		return
	}
	slot.Flags = responseKind(req) | req.Flags&respFlags
	if orderedLast(req) && e.endStream(p, req) {
		slot.Flags |= types.FlagDestUnreachable
	}
}

// forward 经链路转发，需要出口端口的信用
func (e *Engine) forward(p *pair, req *types.Command, idx int, slot *types.Command, hop routing.Hop) outcome {
	ordered := req.Flags.Has(types.FlagOrdered)
	port := hop.Port
	if ordered && hop.Dir.IsCompass() {
		port = e.routes.StaticPort(hop.Dir)
	}
	if port < 0 || port >= len(e.windows) {
		e.unreachable(p, req, slot)
		return done
	}
	w := e.windows[port]
	if !w.Available() {
		return retry
	}

	fwd := req.Clone()
	fwd.SrcRespQID = p.id
	fwd.SrcRespBufIndex = uint16(idx)
	if err := e.out.SendMessage(port, wire.CommandMessage(&fwd)); err != nil {
		return retry
	}
	_ = w.Consume()
	if !ordered {
		e.routes.Rotate(hop.Dir)
	}

	// 有序中间块下游不回应答，本地直接给占位应答
	if req.IsOrderedIntermediate() {
		e.noteIntermediate(p, req, port, false)
		slot.Flags = types.FlagOrderedBlockWriteAck
	} else {
		e.flights[slotKey{p.id, idx}] = flight{
			port:  port,
			flags: responseKind(req) | req.Flags&respFlags,
			fault: orderedLast(req) && e.endStream(p, req),
		}
	}
	e.obs.Forwarded(hop.Dir)
	e.obs.CommandDone(DispositionForwarded)
	return done
}
