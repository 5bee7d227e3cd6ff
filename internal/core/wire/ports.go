package wire

import (
	"fmt"

	"github.com/dep2p/go-fabric/pkg/interfaces"
)

// Ports 按端口号收发帧
type Ports struct {
	channels []interfaces.Channel
}

// NewPorts 包装各端口的链路通道，nil 表示该端口没有通道
func NewPorts(channels []interfaces.Channel) *Ports {
	return &Ports{channels: channels}
}

// Len 端口数
func (p *Ports) Len() int { return len(p.channels) }

func (p *Ports) channel(port int) (interfaces.Channel, error) {
	if port < 0 || port >= len(p.channels) || p.channels[port] == nil {
		return nil, fmt.Errorf("wire: no channel on port %d", port)
	}
	return p.channels[port], nil
}

// SendMessage 编码并发送一帧
//
// 发送缓冲已满时返回 interfaces.ErrChannelBusy，调用方应在下一轮重试。
func (p *Ports) SendMessage(port int, m *Message) error {
	ch, err := p.channel(port)
	if err != nil {
		return err
	}
	frame, err := Marshal(m)
	if err != nil {
		return err
	}
	return ch.Send(frame)
}

// Receive 取出并解码一帧，没有数据时 ok 为 false
//
// 解码失败时帧已被取出，返回错误且 ok 为 true。
func (p *Ports) Receive(port int) (*Message, bool, error) {
	ch, err := p.channel(port)
	if err != nil {
		return nil, false, err
	}
	frame, ok := ch.Receive()
	if !ok {
		return nil, false, nil
	}
	m, err := Unmarshal(frame)
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}
