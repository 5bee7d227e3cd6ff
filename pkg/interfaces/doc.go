// Package interfaces 定义 fabric 依赖的外部协作方
//
// PHY、Channel、LocalTransport 分别抽象物理层训练、
// 直连链路的帧交换和片上本地传输。生产环境由硬件目标实现，
// 测试与仿真使用 internal/sim 中的内存实现。
package interfaces
