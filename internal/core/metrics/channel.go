package metrics

import "github.com/dep2p/go-fabric/pkg/interfaces"

// meteredChannel 在链路通道上统计帧字节数
type meteredChannel struct {
	interfaces.Channel
	port     int
	reporter Reporter
}

// MeterChannel 包装端口通道，成功收发的帧计入 reporter
//
// ch 或 reporter 为 nil 时原样返回 ch。
func MeterChannel(ch interfaces.Channel, port int, reporter Reporter) interfaces.Channel {
	if ch == nil || reporter == nil {
		return ch
	}
	return &meteredChannel{Channel: ch, port: port, reporter: reporter}
}

func (m *meteredChannel) Send(frame []byte) error {
	if err := m.Channel.Send(frame); err != nil {
		return err
	}
	m.reporter.LogSentFrame(m.port, int64(len(frame)))
	return nil
}

func (m *meteredChannel) Receive() ([]byte, bool) {
	frame, ok := m.Channel.Receive()
	if ok {
		m.reporter.LogRecvFrame(m.port, int64(len(frame)))
	}
	return frame, ok
}
