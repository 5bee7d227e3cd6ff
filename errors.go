package fabric

import "errors"

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 节点生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 节点未启动
	ErrNotStarted = errors.New("node not started")

	// ErrAlreadyStarted 节点已启动
	ErrAlreadyStarted = errors.New("node already started")

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("node closed")

	// ────────────────────────────────────────────────────────────────────────
	// 配置错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrPortCount 端口资源数量与配置的端口数不一致
	ErrPortCount = errors.New("port resources do not match num_ports")

	// ────────────────────────────────────────────────────────────────────────
	// 主机接口错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrHostQueueFull 主机请求队列没有足够槽位
	ErrHostQueueFull = errors.New("host request queue full")

	// ErrEmptyWrite 写入数据为空
	ErrEmptyWrite = errors.New("empty write")

	// ErrNoSnapshotStore 未启用拓扑快照存储
	ErrNoSnapshotStore = errors.New("topology snapshot store disabled")
)
