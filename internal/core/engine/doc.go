// Package engine 实现每个芯片上的路由引擎
//
// 每个来源（主机、本地传输、各物理端口）对应一对请求/应答环形队列。
// 引擎轮询各请求队列的队首：本芯片端点直接读写内存或经本地传输访问，
// 其余请求按路由表转发，转发前在应答队列中预留槽位并消耗出口信用。
// 应答沿原路返回并写入预留槽位；主机应答按提交顺序交付，
// 其他来源可以乱序送回，广播应答只在队首送出。
//
// 协议错误（越界槽位、非法信用、满队列入队）使引擎停止，
// 之后 Poll 与 HandleMessage 都返回同一错误。
//
// Engine 不是并发安全的，由节点在单个 goroutine 中驱动。
package engine
