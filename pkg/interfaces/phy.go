package interfaces

import "github.com/dep2p/go-fabric/pkg/types"

// PHY 单个物理端口的训练与健康探针
//
// 所有方法必须立即返回；链路训练状态机按轮询推进，
// 等待由调用方计时。寄存器级细节由具体目标实现。
type PHY interface {
	// Reset 复位 PCS，重新从上电开始
	Reset() error

	// MACLoopback 端口是否配置为 MAC 内环回
	MACLoopback() bool

	// StartAutoneg 发起（或重新发起）自协商
	StartAutoneg()

	// PageReceived 是否已收到对端自协商页
	PageReceived() bool

	// Train 执行链路均衡训练，fw 表示由固件驱动
	Train(fw bool) error

	// AutonegComplete 自协商是否完成
	AutonegComplete() bool

	// SignalDetected 静态模式下是否检测到信号
	SignalDetected() bool

	// PCSUp PCS 是否锁定
	PCSUp() bool

	// SymbolErrors 训练后符号错误计数
	SymbolErrors() uint32

	// RemoteIdentity 对端身份；链路未起或对端未上报时 ok 为 false
	RemoteIdentity() (types.Identity, bool)

	// CableLoopback 线缆是否接回本芯片
	CableLoopback() bool

	// SendDummyPacket 测试模式下发送探测包
	SendDummyPacket()

	// DummyPacketEchoed 探测包是否已回显
	DummyPacketEchoed() bool

	// Health 采样健康计数
	Health() HealthSample
}

// HealthSample 健康采样
type HealthSample struct {
	// LinkUp 接收侧链路状态
	LinkUp bool
	// CRCErrors 累计 CRC 错误
	CRCErrors uint64
	// RxFrames 累计收到的 MAC 帧
	RxFrames uint64
	// RxErrors 累计接收失败帧
	RxErrors uint64
}
