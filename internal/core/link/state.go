package link

import "fmt"

// ════════════════════════════════════════════════════════════════════════════
//                              训练状态
// ════════════════════════════════════════════════════════════════════════════

// TrainState 训练状态机内部状态
type TrainState uint8

const (
	StatePowerUp TrainState = iota
	StateAnConfig
	StateAnRestart
	StatePgRcv
	StateTraining
	StateTrainingFW
	StateAnCompleteWait
	StatePcsOnWait
	StateSymerrCheck
	StateRestartCheck
	StatePacketTestMode
	StateNoAnStart
	StatePcsReset
	StateActive
	StateNotActive
)

var trainStateNames = [...]string{
	StatePowerUp:        "power-up",
	StateAnConfig:       "an-config",
	StateAnRestart:      "an-restart",
	StatePgRcv:          "pg-rcv",
	StateTraining:       "training",
	StateTrainingFW:     "training-fw",
	StateAnCompleteWait: "an-complete-wait",
	StatePcsOnWait:      "pcs-on-wait",
	StateSymerrCheck:    "symerr-check",
	StateRestartCheck:   "restart-check",
	StatePacketTestMode: "packet-test",
	StateNoAnStart:      "no-an-start",
	StatePcsReset:       "pcs-reset",
	StateActive:         "active",
	StateNotActive:      "not-active",
}

func (s TrainState) String() string {
	if int(s) < len(trainStateNames) {
		return trainStateNames[s]
	}
	return fmt.Sprintf("train-state(%d)", uint8(s))
}

// Terminal 是否终态
func (s TrainState) Terminal() bool {
	return s == StateActive || s == StateNotActive
}

// ════════════════════════════════════════════════════════════════════════════
//                              链路状态
// ════════════════════════════════════════════════════════════════════════════

// State 对外可见的链路状态
type State uint8

const (
	// LinkDown 链路不可用（未训练成功或被配置关闭）
	LinkDown State = iota
	// LinkTraining 正在训练
	LinkTraining
	// LinkUp 可承载路由流量
	LinkUp
	// LinkTesting 探测包测试中
	LinkTesting
	// LinkFaulted 健康检查失败，正在重新训练
	LinkFaulted
)

func (s State) String() string {
	switch s {
	case LinkDown:
		return "down"
	case LinkTraining:
		return "training"
	case LinkUp:
		return "up"
	case LinkTesting:
		return "testing"
	case LinkFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              未激活原因
// ════════════════════════════════════════════════════════════════════════════

// InactiveReason 链路停在 NotActive 的原因
type InactiveReason uint8

const (
	ReasonNone InactiveReason = iota
	ReasonChipID
	ReasonRackID
	ReasonShelfID
	ReasonBoardID
	ReasonTimeoutLinkRestart
	ReasonMacLoopback
	ReasonPhyLoopback
	ReasonCableLoopback
	ReasonTimeoutAnAttempts
	ReasonFailDummyPacket
	ReasonTimeoutSigdet
	ReasonTimeoutPgRcv
	ReasonPortNotPopulated
	ReasonPortMaskedOff
)

var reasonNames = [...]string{
	ReasonNone:               "none",
	ReasonChipID:             "chip-id",
	ReasonRackID:             "rack-id",
	ReasonShelfID:            "shelf-id",
	ReasonBoardID:            "board-id",
	ReasonTimeoutLinkRestart: "timeout-link-restart",
	ReasonMacLoopback:        "mac-loopback",
	ReasonPhyLoopback:        "phy-loopback",
	ReasonCableLoopback:      "cable-loopback",
	ReasonTimeoutAnAttempts:  "timeout-an-attempts",
	ReasonFailDummyPacket:    "fail-dummy-packet",
	ReasonTimeoutSigdet:      "timeout-sigdet",
	ReasonTimeoutPgRcv:       "timeout-pg-rcv",
	ReasonPortNotPopulated:   "port-not-populated",
	ReasonPortMaskedOff:      "port-masked-off",
}

func (r InactiveReason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

// ConfigMismatch 是否为布线/身份配置错误
func (r InactiveReason) ConfigMismatch() bool {
	switch r {
	case ReasonChipID, ReasonRackID, ReasonShelfID, ReasonBoardID:
		return true
	}
	return false
}
