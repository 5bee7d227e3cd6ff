package engine

import "errors"

var (
	// ErrProtocolViolation 链路对端违反协议，引擎停止
	ErrProtocolViolation = errors.New("engine: protocol violation")

	// ErrBroadcastRead 不支持广播读
	ErrBroadcastRead = errors.New("engine: broadcast read not supported")

	// ErrInvalidCommand 命令无效
	ErrInvalidCommand = errors.New("engine: invalid command")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("engine: invalid config")

	// ErrNotReady 路由表尚未就绪
	ErrNotReady = errors.New("engine: routing not ready")
)
