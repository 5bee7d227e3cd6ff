package metrics

// Reporter 链路帧流量统计
type Reporter interface {
	// LogSentFrame 记录端口发出的帧大小
	LogSentFrame(port int, size int64)

	// LogRecvFrame 记录端口收到的帧大小
	LogRecvFrame(port int, size int64)

	// GetBandwidthForPort 获取端口带宽统计
	GetBandwidthForPort(port int) Stats

	// GetBandwidthTotals 获取总带宽统计
	GetBandwidthTotals() Stats

	// GetBandwidthByPort 获取所有端口带宽统计
	GetBandwidthByPort() map[int]Stats

	// Reset 重置所有统计
	Reset()
}

var _ Reporter = (*BandwidthCounter)(nil)
