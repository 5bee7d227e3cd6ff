package fabric

import (
	"context"
	"fmt"

	"github.com/dep2p/go-fabric/internal/core/engine"
	"github.com/dep2p/go-fabric/internal/core/lifecycle"
	"github.com/dep2p/go-fabric/internal/core/link"
	"github.com/dep2p/go-fabric/internal/core/metrics"
	"github.com/dep2p/go-fabric/internal/core/topology"
	"github.com/dep2p/go-fabric/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              主机接口
// ════════════════════════════════════════════════════════════════════════════

// Submit 提交一条主机命令，返回事务编号
//
// 路由表就绪前提交的命令留在主机队列中，就绪后才调度。
func (n *Node) Submit(c types.Command) (uint8, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.usable(); err != nil {
		return 0, err
	}
	return n.eng.Submit(c)
}

// PopResponse 按提交顺序取出一条主机应答
func (n *Node) PopResponse() (types.Command, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.eng == nil {
		return types.Command{}, false
	}
	return n.eng.PopResponse()
}

// Write 块写 data 到 addr
func (n *Node) Write(addr types.Address, data []byte) (uint8, error) {
	if len(data) == 0 {
		return 0, ErrEmptyWrite
	}
	return n.Submit(types.NewBlockWrite(addr, data))
}

// WriteWord 单字写
func (n *Node) WriteWord(addr types.Address, v uint32) (uint8, error) {
	return n.Submit(types.NewWrite(addr, v))
}

// Read 块读 size 字节，数据随应答的 Block 返回
func (n *Node) Read(addr types.Address, size int) (uint8, error) {
	return n.Submit(types.NewBlockRead(addr, size))
}

// ReadWord 单字读，数据随应答的 Data 返回
func (n *Node) ReadWord(addr types.Address) (uint8, error) {
	return n.Submit(types.NewRead(addr))
}

// Broadcast 向 rack 机架发起广播写
//
// 负载写入每个未排除端点的 offset 处，h 给出排除位图。
func (n *Node) Broadcast(rack types.Rack, offset uint64, h types.BroadcastHeader, payload []byte) (uint8, error) {
	return n.Submit(types.NewBroadcastWrite(rack, offset, h, payload))
}

// WriteOrdered 有序块写
//
// data 按块拆分后一次性提交，只有最后一块产生应答，
// 返回最后一块的事务编号。主机队列放不下全部块时不提交任何块。
func (n *Node) WriteOrdered(addr types.Address, data []byte) (uint8, error) {
	blocks := engine.SplitOrderedWrite(addr, data)
	if len(blocks) == 0 {
		return 0, ErrEmptyWrite
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.usable(); err != nil {
		return 0, err
	}
	if space := n.eng.HostSpace(); space < len(blocks) {
		return 0, fmt.Errorf("%w: %d blocks, %d slots", ErrHostQueueFull, len(blocks), space)
	}
	var txn uint8
	for _, b := range blocks {
		var err error
		if txn, err = n.eng.Submit(b); err != nil {
			return 0, err
		}
	}
	return txn, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              状态查询
// ════════════════════════════════════════════════════════════════════════════

// Identity 芯片身份
func (n *Node) Identity() types.Identity { return n.local }

// Phase 当前生命周期阶段
func (n *Node) Phase() lifecycle.Phase { return n.coord.Phase() }

// WaitRouting 等待路由表就绪
func (n *Node) WaitRouting(ctx context.Context) error {
	return n.coord.WaitFor(ctx, lifecycle.PhaseRoutingReady)
}

// Ready 路由表是否已安装
func (n *Node) Ready() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.eng != nil && n.eng.Ready()
}

// Halted 路由引擎因协议错误停止的原因
func (n *Node) Halted() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.eng.Halted()
}

// Pending 各队列中尚未完成的命令数
func (n *Node) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.eng.Pending()
}

// Links 端口链路状态快照
func (n *Node) Links() []link.PortStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.links.Snapshot()
}

// Topology 当前拓扑快照
func (n *Node) Topology() *topology.Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.disc.Snapshot()
}

// SavedTopology 读取最近一次保存的本芯片拓扑快照
func (n *Node) SavedTopology() (*topology.Snapshot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.store == nil {
		return nil, ErrNoSnapshotStore
	}
	return n.store.Load(n.local.Rack, n.local.ChipX, n.local.ChipY)
}

// Memory 本端点内存
func (n *Node) Memory() *engine.Memory { return n.eng.Memory() }

// Metrics 指标收集器，关闭指标时为 nil
func (n *Node) Metrics() *metrics.Collector { return n.metrics }
