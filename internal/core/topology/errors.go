package topology

import "errors"

var (
	// ErrInvalidGeometry 层板尺寸无效
	ErrInvalidGeometry = errors.New("topology: invalid shelf geometry")

	// ErrBadEntry 条目下标越界或表编号无效
	ErrBadEntry = errors.New("topology: bad table entry")

	// ErrNotStarted 发现尚未开始
	ErrNotStarted = errors.New("topology: discovery not started")

	// ErrBadEpoch 纪元无法解析
	ErrBadEpoch = errors.New("topology: bad discovery epoch")

	// ErrSnapshotNotFound 没有该芯片的拓扑快照
	ErrSnapshotNotFound = errors.New("topology: snapshot not found")
)
