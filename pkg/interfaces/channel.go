package interfaces

import (
	"context"
	"errors"
)

// ErrChannelBusy 链路发送缓冲已满，调用方下一轮重试
var ErrChannelBusy = errors.New("channel busy")

// Channel 直连端口之间的帧交换
//
// 不保证可靠，但保证有序；重传与超时不在本层处理。
// Send 和 Receive 都不阻塞。
type Channel interface {
	// Send 发送一帧，缓冲已满返回 ErrChannelBusy
	Send(frame []byte) error

	// Receive 取出一帧，没有数据时 ok 为 false
	Receive() (frame []byte, ok bool)
}

// LocalTransport 片上本地传输（最后一跳）
//
// 读写是阻塞的，用于服务同芯片上其他端点的地址。
type LocalTransport interface {
	Read(ctx context.Context, nocX, nocY uint8, offset uint64, buf []byte) error
	Write(ctx context.Context, nocX, nocY uint8, offset uint64, data []byte) error
}

// Port 一个物理端口的外部资源
type Port struct {
	PHY     PHY
	Channel Channel
}
