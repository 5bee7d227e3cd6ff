package metrics

import (
	"context"
	"time"
)

// Snapshot 节点指标快照
//
// 周期性输出到日志，便于在没有 Prometheus 的环境下观察仿真。
type Snapshot struct {
	Timestamp  time.Time `json:"timestamp"`
	Chip       string    `json:"chip"`
	Phase      int       `json:"phase"`
	LinksUp    int       `json:"linksUp"`
	Commands   int64     `json:"commands"`
	Retries    int64     `json:"retries"`
	Violations int64     `json:"violations"`
	BytesSent  int64     `json:"bytesSent"`
	BytesRecv  int64     `json:"bytesRecv"`
	SendRate   float64   `json:"sendRateBps"`
	RecvRate   float64   `json:"recvRateBps"`
}

// Snapshot 采集当前快照
func (c *Collector) Snapshot() Snapshot {
	bw := c.GetBandwidthTotals()
	return Snapshot{
		Timestamp:  c.clk.Now(),
		Chip:       c.chip,
		Phase:      int(c.curPhase.Load()),
		LinksUp:    int(c.linksUp.Load()),
		Commands:   c.done.Load(),
		Retries:    c.retried.Load(),
		Violations: c.violated.Load(),
		BytesSent:  bw.TotalOut,
		BytesRecv:  bw.TotalIn,
		SendRate:   bw.RateOut,
		RecvRate:   bw.RateIn,
	}
}

// RunReporter 按间隔把快照写入日志，直到 ctx 取消
func (c *Collector) RunReporter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := c.clk.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := c.Snapshot()
			logger.Info("指标快照",
				"chip", s.Chip,
				"phase", s.Phase,
				"links", s.LinksUp,
				"commands", s.Commands,
				"retries", s.Retries,
				"sent", s.BytesSent,
				"recv", s.BytesRecv)
		}
	}
}
