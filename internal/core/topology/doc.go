// Package topology 实现层板与机架路由表的协作式发现
//
// # 路由表
//
// 层板表按逆时针给边缘芯片编号，每项记录该芯片通往相邻层板
// （左右两列，RackUp/RackDown）或相邻机架（顶底两行，RackLeft/RackRight）
// 的端口。机架表每层板一行，记录该层板顶底两行的 X 路由器。
//
// 条目为一个字节：高 4 位端口号，低 4 位连接分类，零值表示未知。
// 发现期间条目只写一次。
//
// # 发现
//
// 每个芯片先填写自己负责的条目，再经每个方向最小端口号的 worker
// 把已知条目逐批推给邻居：
//
//	Entries(epoch, seq, [...])  ──▶
//	                            ◀──  Ack(epoch, seq)
//
// 罗盘方向推送两张表，RackUp/RackDown 只推送机架表。
// 未确认的批次在 ResendTimeout 后重发。
//
// 重新发现时生成新的 UUIDv7 纪元并向所有邻居发 Hello，
// 收到更大纪元的节点清空两张表后重新开始。
//
// # 快照
//
// 发现完成后可把结果写入 BadgerDB（见 Store），用于诊断。
package topology
