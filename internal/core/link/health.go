package link

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/dep2p/go-fabric/pkg/interfaces"
)

// healthMonitor 激活链路的周期性健康采样
type healthMonitor struct {
	limiter *rate.Limiter
	last    interfaces.HealthSample
	// stalls 连续出现接收错误但没有新帧的采样次数
	stalls int
	faults int
}

func newHealthMonitor(interval time.Duration) healthMonitor {
	return healthMonitor{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (h *healthMonitor) reset(s interfaces.HealthSample) {
	h.last = s
	h.stalls = 0
}

// evaluate 对比上一次采样，返回故障描述；空串表示健康
func (h *healthMonitor) evaluate(s interfaces.HealthSample, cfg *Config) string {
	defer func() { h.last = s }()

	if !s.LinkUp {
		return "link-down"
	}

	crc := s.CRCErrors
	if crc >= h.last.CRCErrors {
		crc -= h.last.CRCErrors
	}
	if crc > cfg.CrcErrLimit {
		return "crc-errors"
	}

	switch {
	case s.RxFrames != h.last.RxFrames:
		h.stalls = 0
	case s.RxErrors > h.last.RxErrors:
		h.stalls++
		if h.stalls > cfg.MacRcvFailLimit {
			return "mac-rcv-fail"
		}
	}
	return ""
}

// CheckHealth 对激活链路做一次健康采样
//
// 采样按 HealthInterval 限速；发现故障时链路进入 Faulted
// 并从 PcsReset 开始重训。返回本次是否判定为故障。
func (t *Trainer) CheckHealth() bool {
	if !t.cfg.HealthCheckEnable || t.state != StateActive {
		return false
	}
	if !t.health.limiter.AllowN(t.clk.Now(), 1) {
		return false
	}

	reason := t.health.evaluate(t.phy.Health(), t.cfg)
	if reason == "" {
		return false
	}

	t.health.faults++
	t.retrains++
	t.faulted = true
	logger.Warn("链路健康检查失败，重新训练", "port", t.port, "reason", reason, "faults", t.health.faults)
	t.resetAttempts()
	t.hasRemote = false
	t.enter(StatePcsReset)
	return true
}

// Retrains 健康故障触发的重训次数
func (t *Trainer) Retrains() int { return t.retrains }
