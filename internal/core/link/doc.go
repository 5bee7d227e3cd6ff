// Package link 实现端口链路训练与健康监测
//
// 每个端口一个 Trainer，按轮询推进的状态机：
//
//	PowerUp → AnConfig → AnRestart → PgRcv → Training → AnCompleteWait
//	        → PcsOnWait → SymerrCheck → RestartCheck → Active
//
// 静态训练或强制端口走 NoAnStart 路径并在激活前交换探测包。
// 任何等待状态超时都回到 AnRestart，尝试次数超限则停在 NotActive
// 并记录原因。Active 链路由 CheckHealth 周期采样，故障时重训。
//
// Manager 聚合所有端口并把对外状态变化报告给节点。
package link
