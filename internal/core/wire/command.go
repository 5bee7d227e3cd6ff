package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/dep2p/go-fabric/pkg/types"
)

// 命令记录字段偏移（小端）
const (
	offSysAddr         = 0
	offData            = 8
	offFlags           = 12
	offRack            = 16
	offSrcRespBufIndex = 18
	offSrcNocX         = 20
	offSrcNocY         = 21
	offLocalRespBuf    = 22
	offTimestamp       = 23
	offSrcRespQID      = 24
	offHostTxnID       = 25
	offBroadcastHopDir = 26
	offRespFwdOOO      = 27
	offValid           = 28
)

// AppendCommand 追加 32 字节命令记录及其数据块
func AppendCommand(b []byte, c *types.Command) []byte {
	var rec [types.CommandSize]byte
	le := binary.LittleEndian
	le.PutUint64(rec[offSysAddr:], c.SysAddr)
	le.PutUint32(rec[offData:], c.Data)
	le.PutUint32(rec[offFlags:], uint32(c.Flags))
	le.PutUint16(rec[offRack:], c.Rack)
	le.PutUint16(rec[offSrcRespBufIndex:], c.SrcRespBufIndex)
	rec[offSrcNocX] = c.SrcNocX
	rec[offSrcNocY] = c.SrcNocY
	rec[offLocalRespBuf] = c.LocalRespBufIndex
	rec[offTimestamp] = c.Timestamp
	rec[offSrcRespQID] = uint8(c.SrcRespQID)
	rec[offHostTxnID] = c.HostTxnID
	rec[offBroadcastHopDir] = c.BroadcastHopDir
	rec[offRespFwdOOO] = c.RespForwardedOOO
	le.PutUint32(rec[offValid:], c.Valid)

	b = append(b, rec[:]...)
	return append(b, c.Block...)
}

// ParseCommand 解析命令记录，剩余字节视为数据块
func ParseCommand(b []byte) (types.Command, error) {
	var c types.Command
	if len(b) < types.CommandSize {
		return c, fmt.Errorf("%w: command record %d bytes", ErrTruncated, len(b))
	}
	if n := len(b) - types.CommandSize; n > types.MaxBlockSize {
		return c, fmt.Errorf("%w: %d bytes", ErrBlockTooLarge, n)
	}

	le := binary.LittleEndian
	c.SysAddr = le.Uint64(b[offSysAddr:])
	c.Data = le.Uint32(b[offData:])
	c.Flags = types.Flag(le.Uint32(b[offFlags:]))
	c.Rack = le.Uint16(b[offRack:])
	c.SrcRespBufIndex = le.Uint16(b[offSrcRespBufIndex:])
	c.SrcNocX = b[offSrcNocX]
	c.SrcNocY = b[offSrcNocY]
	c.LocalRespBufIndex = b[offLocalRespBuf]
	c.Timestamp = b[offTimestamp]
	c.SrcRespQID = types.QueueID(b[offSrcRespQID])
	c.HostTxnID = b[offHostTxnID]
	c.BroadcastHopDir = b[offBroadcastHopDir]
	c.RespForwardedOOO = b[offRespFwdOOO]
	c.Valid = le.Uint32(b[offValid:])

	if rest := b[types.CommandSize:]; len(rest) > 0 {
		c.Block = append([]byte(nil), rest...)
	}
	return c, nil
}
