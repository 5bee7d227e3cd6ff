package engine

import "github.com/dep2p/go-fabric/pkg/types"

// SplitOrderedWrite 把连续数据拆成有序块写序列
//
// 中间块带 FlagOrderedBlockWrite，末块带 FlagLastOrderedBlockWrite。
// 整个序列按顺序提交后，主机只收到末块的一个应答。
func SplitOrderedWrite(addr types.Address, data []byte) []types.Command {
	if len(data) == 0 {
		return nil
	}
	n := (len(data) + types.MaxBlockSize - 1) / types.MaxBlockSize
	out := make([]types.Command, 0, n)
	for off := 0; off < len(data); off += types.MaxBlockSize {
		end := min(off+types.MaxBlockSize, len(data))
		a := addr
		a.Offset += uint64(off)
		c := types.NewBlockWrite(a, data[off:end])
		c.Flags = types.FlagOrderedBlockWrite
		if end == len(data) {
			c.Flags = types.FlagLastOrderedBlockWrite
		}
		out = append(out, c)
	}
	return out
}

// streamKey 有序块写序列：来源队列加目的端点
type streamKey struct {
	qid  types.QueueID
	dest types.Address
}

// stream 有序序列在本芯片的状态
//
// 中间块没有应答，失败只记在这里，由末块的应答带出。
type stream struct {
	// port 中间块转发所经端口，-1 表示没有经过链路
	port  int
	fault bool
}

func streamOf(p *pair, req *types.Command) streamKey {
	a := req.Address()
	a.Offset = 0
	return streamKey{qid: p.id, dest: a}
}

// orderedLast 是否有序块写的末块
func orderedLast(req *types.Command) bool {
	return req.Flags&types.FlagLastOrderedBlockWrite == types.FlagLastOrderedBlockWrite
}

// noteIntermediate 记录中间块的去向，port 为 -1 表示未经链路
func (e *Engine) noteIntermediate(p *pair, req *types.Command, port int, fault bool) {
	k := streamOf(p, req)
	s := e.streams[k]
	if s == nil {
		s = &stream{port: -1}
		e.streams[k] = s
	}
	if port >= 0 {
		s.port = port
	}
	s.fault = s.fault || fault
}

// endStream 末块结束序列，返回之前是否有中间块失败
func (e *Engine) endStream(p *pair, req *types.Command) bool {
	k := streamOf(p, req)
	s, ok := e.streams[k]
	if !ok {
		return false
	}
	delete(e.streams, k)
	return s.fault
}

// faultStreams 经该端口转发过中间块的序列记为失败
func (e *Engine) faultStreams(port int) {
	for _, s := range e.streams {
		if s.port == port {
			s.fault = true
		}
	}
}
