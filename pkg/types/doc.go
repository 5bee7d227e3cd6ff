// Package types 定义 fabric 的公共数据类型
//
// 包括：
//   - Address / Rack / Identity：集群寻址与芯片身份
//   - Direction / Conn：端口方向与连接分类
//   - Command / Flag / QueueID：路由命令与线上标志位
//   - BroadcastHeader：广播头
//
// 这些类型的数值在节点之间无协商地交换，取值必须保持稳定。
package types
