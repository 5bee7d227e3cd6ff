package queue

import (
	"github.com/dep2p/go-fabric/pkg/types"
)

// Ring 定长命令环形队列
//
// 读写指针按 2 倍容量取模，满与空由指针距离区分：
// 距离等于容量为满，指针相等为空。一个生产者角色，一个消费者角色。
// 每个槽位自带 MaxBlockSize 大小的数据块缓冲，入队时做有界拷贝。
type Ring struct {
	slots  []types.Command
	arena  [][]byte
	size   uint16
	wrap   uint16
	wr, rd uint16
}

// New 创建容量为 capacity 的队列
func New(capacity int) *Ring {
	if capacity <= 0 || capacity > MaxCapacity {
		panic("queue: capacity out of range")
	}
	r := &Ring{
		slots: make([]types.Command, capacity),
		arena: make([][]byte, capacity),
		size:  uint16(capacity),
		wrap:  uint16(2 * capacity),
	}
	for i := range r.arena {
		r.arena[i] = make([]byte, types.MaxBlockSize)
	}
	return r
}

// Cap 容量
func (r *Ring) Cap() int { return int(r.size) }

// Len 当前元素数
func (r *Ring) Len() int { return Distance(r.wr, r.rd, r.wrap) }

// Full 是否已满
func (r *Ring) Full() bool { return r.Len() == int(r.size) }

// Empty 是否为空
func (r *Ring) Empty() bool { return r.wr == r.rd }

// WritePtr 写指针（模 2N）
func (r *Ring) WritePtr() uint16 { return r.wr }

// ReadPtr 读指针（模 2N）
func (r *Ring) ReadPtr() uint16 { return r.rd }

// Index 指针对应槽位
func (r *Ring) Index(ptr uint16) int { return int(ptr % r.size) }

// Advance 指针前进一格
func (r *Ring) Advance(ptr uint16) uint16 { return (ptr + 1) % r.wrap }

// Slot 按槽位访问
func (r *Ring) Slot(i int) *types.Command { return &r.slots[i] }

// Contains 槽位当前是否在读写指针之间
func (r *Ring) Contains(i int) bool {
	if i < 0 || i >= int(r.size) {
		return false
	}
	for p := r.rd; p != r.wr; p = r.Advance(p) {
		if r.Index(p) == i {
			return true
		}
	}
	return false
}

// Push 拷贝命令入队，返回槽位
func (r *Ring) Push(c *types.Command) (int, error) {
	i, slot, err := r.Tail()
	if err != nil {
		return 0, err
	}
	*slot = *c
	slot.Block = nil
	if len(c.Block) > 0 {
		if err := r.SetBlock(i, c.Block); err != nil {
			return 0, err
		}
	}
	r.Commit()
	return i, nil
}

// Tail 返回写指针处的槽位而不前进，用于原地构造
func (r *Ring) Tail() (int, *types.Command, error) {
	if r.Full() {
		return 0, nil, ErrFull
	}
	i := r.Index(r.wr)
	return i, &r.slots[i], nil
}

// Commit 写指针前进，提交 Tail 构造的槽位
func (r *Ring) Commit() {
	if r.Full() {
		panic("queue: commit on full ring")
	}
	r.wr = r.Advance(r.wr)
}

// Head 队首
func (r *Ring) Head() (int, *types.Command, bool) {
	if r.Empty() {
		return 0, nil, false
	}
	i := r.Index(r.rd)
	return i, &r.slots[i], true
}

// Pop 出队
func (r *Ring) Pop() error {
	if r.Empty() {
		return ErrEmpty
	}
	i := r.Index(r.rd)
	r.slots[i] = types.Command{}
	r.rd = r.Advance(r.rd)
	return nil
}

// SetBlock 把数据拷入槽位缓冲，并让槽位的 Block 指向它
func (r *Ring) SetBlock(i int, data []byte) error {
	if len(data) > types.MaxBlockSize {
		return ErrBlockTooLarge
	}
	buf := r.arena[i][:len(data)]
	copy(buf, data)
	r.slots[i].Block = buf
	return nil
}

// Reset 清空队列
func (r *Ring) Reset() {
	for i := range r.slots {
		r.slots[i] = types.Command{}
	}
	r.wr, r.rd = 0, 0
}

// Distance 计算模 wrap 的指针距离 wr-rd
func Distance(wr, rd, wrap uint16) int {
	return int((wr + wrap - rd) % wrap)
}
