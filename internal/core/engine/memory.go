package engine

import (
	"encoding/binary"
	"sync"

	"github.com/dep2p/go-fabric/pkg/types"
)

const pageSize = 4096

// Memory 本端点的稀疏内存
//
// 按页惰性分配，未写过的地址读出为零。
// 可与仿真器的本地传输共享，因此带锁。
type Memory struct {
	mu    sync.RWMutex
	pages map[uint64]*[pageSize]byte
}

// NewMemory 创建空内存
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint64]*[pageSize]byte)}
}

// Read 读取 len(buf) 字节
func (m *Memory) Read(offset uint64, buf []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for len(buf) > 0 {
		off := offset & types.MaxOffset
		page, in := off/pageSize, off%pageSize
		n := min(len(buf), int(pageSize-in))
		if p := m.pages[page]; p != nil {
			copy(buf[:n], p[in:])
		} else {
			clear(buf[:n])
		}
		buf = buf[n:]
		offset += uint64(n)
	}
}

// Write 写入 data
func (m *Memory) Write(offset uint64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(data) > 0 {
		off := offset & types.MaxOffset
		page, in := off/pageSize, off%pageSize
		p := m.pages[page]
		if p == nil {
			p = new([pageSize]byte)
			m.pages[page] = p
		}
		n := copy(p[in:], data)
		data = data[n:]
		offset += uint64(n)
	}
}

// ReadWord 读取小端 32 位字
func (m *Memory) ReadWord(offset uint64) uint32 {
	var b [4]byte
	m.Read(offset, b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// WriteWord 写入小端 32 位字
func (m *Memory) WriteWord(offset uint64, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	m.Write(offset, b[:])
}
