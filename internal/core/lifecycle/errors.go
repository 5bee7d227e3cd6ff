package lifecycle

import "errors"

var (
	// ErrInvalidPhase 阶段无效
	ErrInvalidPhase = errors.New("lifecycle: invalid phase")

	// ErrBackwards 阶段不能后退
	ErrBackwards = errors.New("lifecycle: cannot advance backwards")

	// ErrShutdown 协调器已停止
	ErrShutdown = errors.New("lifecycle: shut down")
)
