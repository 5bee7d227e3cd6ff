package queue

import "errors"

// MaxCapacity 队列容量上限，指针以 uint16 存储
const MaxCapacity = 1 << 14

// DefaultCapacity 默认容量，与固件的节点命令缓冲一致
const DefaultCapacity = 8

var (
	// ErrFull 队列已满，调用方下一轮重试
	ErrFull = errors.New("queue full")

	// ErrEmpty 队列为空
	ErrEmpty = errors.New("queue empty")

	// ErrBlockTooLarge 数据块超过槽位缓冲
	ErrBlockTooLarge = errors.New("data block exceeds slot buffer")

	// ErrBadCredit 对端通告了不可能的读指针
	ErrBadCredit = errors.New("invalid credit")
)
