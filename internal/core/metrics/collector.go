package metrics

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-fabric/internal/core/engine"
	"github.com/dep2p/go-fabric/pkg/lib/log"
	"github.com/dep2p/go-fabric/pkg/types"
)

var logger = log.Logger("core/metrics")

// Collector 单个芯片的指标
//
// 每个芯片使用独立的 Registry，仿真集群中多个节点互不干扰。
// 实现 engine.Observer 和 Reporter。
type Collector struct {
	*BandwidthCounter

	chip string
	clk  clock.Clock
	reg  *prometheus.Registry

	commands      *prometheus.CounterVec
	forwarded     *prometheus.CounterVec
	frames        *prometheus.CounterVec
	retries       prometheus.Counter
	violations    prometheus.Counter
	responses     prometheus.Counter
	latency       prometheus.Histogram
	links         *prometheus.GaugeVec
	discovery     *prometheus.GaugeVec
	phase         prometheus.Gauge
	rediscoveries prometheus.Counter

	// 快照用的计数
	done     atomic.Int64
	retried  atomic.Int64
	violated atomic.Int64
	linksUp  atomic.Int64
	upPorts  [64]atomic.Bool
	curPhase atomic.Int64
}

var _ engine.Observer = (*Collector)(nil)

// NewCollector 创建并注册指标
func NewCollector(cfg Config, chip string, clk clock.Clock) *Collector {
	if clk == nil {
		clk = clock.New()
	}
	ns := cfg.Namespace
	labels := prometheus.Labels{"chip": chip}
	c := &Collector{
		BandwidthCounter: NewBandwidthCounter(clk),
		chip:             chip,
		clk:              clk,
		reg:              prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "engine", Name: "commands_total",
			Help: "Requests that reached a terminal disposition.", ConstLabels: labels,
		}, []string{"disposition"}),
		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "engine", Name: "forwarded_total",
			Help: "Requests forwarded per direction.", ConstLabels: labels,
		}, []string{"direction"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "link", Name: "frame_bytes_total",
			Help: "Frame bytes per port and direction.", ConstLabels: labels,
		}, []string{"port", "dir"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "engine", Name: "retries_total",
			Help: "Scheduling attempts deferred for credit or a busy link.", ConstLabels: labels,
		}),
		violations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "engine", Name: "protocol_violations_total",
			Help: "Protocol violations that halted the engine.", ConstLabels: labels,
		}),
		responses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "engine", Name: "host_responses_total",
			Help: "Responses delivered to the host.", ConstLabels: labels,
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: "engine", Name: "response_latency_seconds",
			Help: "Host round-trip latency of timestamped requests.", ConstLabels: labels,
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		links: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "link", Name: "up",
			Help: "1 when the port link is active.", ConstLabels: labels,
		}, []string{"port"}),
		discovery: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "discovery", Name: "progress_ratio",
			Help: "Fraction of topology table entries known.", ConstLabels: labels,
		}, []string{"table"}),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "node", Name: "phase",
			Help: "Current lifecycle phase.", ConstLabels: labels,
		}),
		rediscoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "discovery", Name: "rediscoveries_total",
			Help: "Topology rediscoveries started.", ConstLabels: labels,
		}),
	}
	c.reg.MustRegister(
		c.commands, c.forwarded, c.frames, c.retries, c.violations,
		c.responses, c.latency, c.links, c.discovery, c.phase, c.rediscoveries,
	)
	return c
}

// Registry 指标注册表，用于 HTTP 导出
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Chip 芯片标签
func (c *Collector) Chip() string { return c.chip }

// ════════════════════════════════════════════════════════════════════════════
//                              引擎事件
// ════════════════════════════════════════════════════════════════════════════

// CommandDone 实现 engine.Observer
func (c *Collector) CommandDone(d engine.Disposition) {
	c.commands.WithLabelValues(string(d)).Inc()
	c.done.Add(1)
}

// Forwarded 实现 engine.Observer
func (c *Collector) Forwarded(dir types.Direction) {
	c.forwarded.WithLabelValues(dir.String()).Inc()
}

// Retried 实现 engine.Observer
func (c *Collector) Retried() {
	c.retries.Inc()
	c.retried.Add(1)
}

// ResponseDelivered 实现 engine.Observer
func (c *Collector) ResponseDelivered(latency time.Duration, timed bool) {
	c.responses.Inc()
	if timed {
		c.latency.Observe(latency.Seconds())
	}
}

// ProtocolViolation 实现 engine.Observer
func (c *Collector) ProtocolViolation() {
	c.violations.Inc()
	c.violated.Add(1)
}

// ════════════════════════════════════════════════════════════════════════════
//                              链路与发现
// ════════════════════════════════════════════════════════════════════════════

// LogSentFrame 记录端口发出的帧
func (c *Collector) LogSentFrame(port int, size int64) {
	c.BandwidthCounter.LogSentFrame(port, size)
	c.frames.WithLabelValues(strconv.Itoa(port), "out").Add(float64(size))
}

// LogRecvFrame 记录端口收到的帧
func (c *Collector) LogRecvFrame(port int, size int64) {
	c.BandwidthCounter.LogRecvFrame(port, size)
	c.frames.WithLabelValues(strconv.Itoa(port), "in").Add(float64(size))
}

// SetLinkUp 更新端口链路状态
func (c *Collector) SetLinkUp(port int, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	c.links.WithLabelValues(strconv.Itoa(port)).Set(v)
	if port < 0 || port >= len(c.upPorts) {
		return
	}
	if prev := c.upPorts[port].Swap(up); prev != up {
		if up {
			c.linksUp.Add(1)
		} else {
			c.linksUp.Add(-1)
		}
	}
}

// SetDiscoveryProgress 更新拓扑表完成度
func (c *Collector) SetDiscoveryProgress(table string, known, total int) {
	if total <= 0 {
		return
	}
	c.discovery.WithLabelValues(table).Set(float64(known) / float64(total))
}

// SetPhase 更新生命周期阶段
func (c *Collector) SetPhase(phase int) {
	c.phase.Set(float64(phase))
	c.curPhase.Store(int64(phase))
}

// Rediscovered 记录一次重新发现
func (c *Collector) Rediscovered() {
	c.rediscoveries.Inc()
}
