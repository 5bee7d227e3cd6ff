// Package queue 提供定长命令队列与出口信用窗口
//
// Ring 是固定容量的环形缓冲，读写指针按 2 倍容量计数，
// 以指针距离区分满和空，不需要额外标志位。每个 Ring 只有一个
// 生产者角色和一个消费者角色，依靠指针所有权而不是锁保证正确性。
//
// Window 在发送端镜像对端请求队列的读写指针，
// 保证转发前就能确认下一跳队列有空位。
package queue
