package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/dep2p/go-fabric/internal/core/engine"
	"github.com/dep2p/go-fabric/pkg/interfaces"
)

// MemTransport 片上本地传输的内存实现
//
// 每个本地端点一块稀疏内存；路由引擎所在端点的内存由节点登记，
// 其余端点按需创建。
type MemTransport struct {
	mu   sync.Mutex
	cols int
	rows int
	mem  map[[2]uint8]*engine.Memory

	writes int
}

var _ interfaces.LocalTransport = (*MemTransport)(nil)

// NewMemTransport 创建 cols×rows 端点网格的本地传输
func NewMemTransport(cols, rows int) *MemTransport {
	return &MemTransport{cols: cols, rows: rows, mem: make(map[[2]uint8]*engine.Memory)}
}

// Attach 登记端点内存，通常是路由引擎自己的内存
func (t *MemTransport) Attach(nocX, nocY uint8, m *engine.Memory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mem[[2]uint8{nocX, nocY}] = m
}

// Endpoint 返回端点内存，不存在时创建
func (t *MemTransport) Endpoint(nocX, nocY uint8) (*engine.Memory, error) {
	if int(nocX) >= t.cols || int(nocY) >= t.rows {
		return nil, fmt.Errorf("sim: endpoint (%d,%d) outside %dx%d grid", nocX, nocY, t.cols, t.rows)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	k := [2]uint8{nocX, nocY}
	m, ok := t.mem[k]
	if !ok {
		m = engine.NewMemory()
		t.mem[k] = m
	}
	return m, nil
}

// Read 从端点内存读取
func (t *MemTransport) Read(ctx context.Context, nocX, nocY uint8, offset uint64, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := t.Endpoint(nocX, nocY)
	if err != nil {
		return err
	}
	m.Read(offset, buf)
	return nil
}

// Write 写入端点内存
func (t *MemTransport) Write(ctx context.Context, nocX, nocY uint8, offset uint64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := t.Endpoint(nocX, nocY)
	if err != nil {
		return err
	}
	m.Write(offset, data)
	t.mu.Lock()
	t.writes++
	t.mu.Unlock()
	return nil
}

// Writes 经本地传输完成的写次数
func (t *MemTransport) Writes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes
}
