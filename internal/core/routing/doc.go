// Package routing 由拓扑表构建本芯片的路由表
//
// 每个方向（4 个罗盘方向加 4 个跨层板方向）记录服务它的端口范围、
// 有序流量使用的固定端口、按事务数轮换的活动端口和请求预算。
//
// 跨层板方向还记录出口芯片（Tag）：
//
//	RackUp/RackDown      最近的对应 Y 路由器
//	RackLeft/RackRight   最近的对应 X 路由器；本层板没有时
//	                     经 RackUp/RackDown 绕行到最近一个有线缆的层板
//
// NextHop 先跨机架再跨层板，层板内按 XY 路由走向出口芯片，
// 结果缓存在 LRU 中，Rebuild 时清空。
//
// 广播沿一棵生成树展开：层板内从入口芯片按行再按列扩散，
// 跨层板和跨机架只由指定出口芯片转发，广播头的已访问位图
// 保证每个层板只被访问一次。
package routing
