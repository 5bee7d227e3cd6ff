package routing

import "errors"

var (
	// ErrUnreachable 没有通往目的地的路径
	ErrUnreachable = errors.New("routing: destination unreachable")

	// ErrSelf 目的芯片就是本芯片，不需要下一跳
	ErrSelf = errors.New("routing: destination is this chip")

	// ErrIncomplete 拓扑表尚未填满
	ErrIncomplete = errors.New("routing: topology tables incomplete")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("routing: invalid config")
)
