// Package storage 提供基于 BadgerDB 的键值存储
//
// 目前只有拓扑快照使用，键空间按前缀隔离：
//
//	topology/<rack>/<chipX>.<chipY>   拓扑快照（JSON）
//
// 默认落盘到 DataDir/fabric.db，InMemory 时不落盘。
package storage
