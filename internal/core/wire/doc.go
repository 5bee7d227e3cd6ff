// Package wire 实现链路帧格式
//
// 每帧是一个 protobuf 线格式信封：字段 1 为帧类型，字段 2 为帧体。
//
// 命令帧体是位稳定的 32 字节小端记录，后接可选数据块：
//
//	 0  SysAddr          u64
//	 8  Data             u32
//	12  Flags            u32
//	16  Rack             u16
//	18  SrcRespBufIndex  u16
//	20  SrcNocX          u8
//	21  SrcNocY          u8
//	22  LocalRespBufIdx  u8
//	23  Timestamp        u8
//	24  SrcRespQID       u8
//	25  HostTxnID        u8
//	26  BroadcastHopDir  u8
//	27  RespForwardedOOO u8
//	28  Valid            u32
//
// 信用帧与拓扑发现帧的帧体同样使用 protobuf 线格式编码，
// 未知字段会被跳过，便于后续扩展。
package wire
