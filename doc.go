// Package fabric 实现多芯片互连的片上路由节点
//
// 每个芯片运行一个 Node。节点通过若干物理端口与相邻芯片直连，
// 端口训练完成后与邻居协作发现拓扑（层板表与机架表），
// 再据此构建路由表，把主机和链路上到达的读写命令转发到任意芯片的
// 任意端点。
//
// 组件：
//   - link：端口训练状态机与健康检查
//   - topology：协作式拓扑发现与快照存储
//   - routing：按方向的端口表、出口标签与广播树
//   - engine：请求/应答队列对、信用流控与广播合并
//   - lifecycle：Created → LinkTraining → Discovery → RoutingReady → Running
//
// 节点是单线程轮询模型：
//
//	node, err := fabric.New(fabric.WithConfig(cfg), fabric.WithPorts(ports...))
//	if err != nil { ... }
//	if err := node.Start(ctx); err != nil { ... }
//	defer node.Close()
//
//	go node.Run(ctx)
//	_ = node.WaitRouting(ctx)
//	txn, err := node.Write(addr, data)
//
// 物理层、链路通道和片上本地传输通过 pkg/interfaces 注入；
// internal/sim 提供内存实现用于测试与仿真。
package fabric
