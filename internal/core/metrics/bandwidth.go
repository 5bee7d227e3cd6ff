package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
)

// portMeter 单个端口的计数
type portMeter struct {
	in, out         atomic.Int64
	inRate, outRate *RateMeter
}

// BandwidthCounter 按端口统计链路帧字节数
//
// 计数使用原子操作，端口表首次出现时加锁创建。
type BandwidthCounter struct {
	clk clock.Clock

	totalIn      atomic.Int64
	totalOut     atomic.Int64
	totalInRate  *RateMeter
	totalOutRate *RateMeter

	mu    sync.RWMutex
	ports map[int]*portMeter
}

// NewBandwidthCounter 创建计数器，clk 为 nil 时使用系统时钟
func NewBandwidthCounter(clk clock.Clock) *BandwidthCounter {
	if clk == nil {
		clk = clock.New()
	}
	return &BandwidthCounter{
		clk:          clk,
		totalInRate:  NewRateMeter(clk),
		totalOutRate: NewRateMeter(clk),
		ports:        make(map[int]*portMeter),
	}
}

func (b *BandwidthCounter) port(p int) *portMeter {
	b.mu.RLock()
	m, ok := b.ports[p]
	b.mu.RUnlock()
	if ok {
		return m
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok = b.ports[p]; !ok {
		m = &portMeter{inRate: NewRateMeter(b.clk), outRate: NewRateMeter(b.clk)}
		b.ports[p] = m
	}
	return m
}

// LogSentFrame 记录端口发出的帧大小
func (b *BandwidthCounter) LogSentFrame(port int, size int64) {
	b.totalOut.Add(size)
	b.totalOutRate.Add(size)
	m := b.port(port)
	m.out.Add(size)
	m.outRate.Add(size)
}

// LogRecvFrame 记录端口收到的帧大小
func (b *BandwidthCounter) LogRecvFrame(port int, size int64) {
	b.totalIn.Add(size)
	b.totalInRate.Add(size)
	m := b.port(port)
	m.in.Add(size)
	m.inRate.Add(size)
}

// GetBandwidthForPort 获取端口带宽统计
func (b *BandwidthCounter) GetBandwidthForPort(port int) Stats {
	b.mu.RLock()
	m, ok := b.ports[port]
	b.mu.RUnlock()
	if !ok {
		return Stats{}
	}
	return m.stats()
}

func (m *portMeter) stats() Stats {
	return Stats{
		TotalIn:  m.in.Load(),
		TotalOut: m.out.Load(),
		RateIn:   m.inRate.Rate(),
		RateOut:  m.outRate.Rate(),
	}
}

// GetBandwidthTotals 获取总带宽统计
func (b *BandwidthCounter) GetBandwidthTotals() Stats {
	return Stats{
		TotalIn:  b.totalIn.Load(),
		TotalOut: b.totalOut.Load(),
		RateIn:   b.totalInRate.Rate(),
		RateOut:  b.totalOutRate.Rate(),
	}
}

// GetBandwidthByPort 获取所有端口带宽统计
func (b *BandwidthCounter) GetBandwidthByPort() map[int]Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[int]Stats, len(b.ports))
	for p, m := range b.ports {
		out[p] = m.stats()
	}
	return out
}

// Reset 重置所有统计
func (b *BandwidthCounter) Reset() {
	b.totalIn.Store(0)
	b.totalOut.Store(0)
	b.totalInRate.Reset()
	b.totalOutRate.Reset()

	b.mu.Lock()
	b.ports = make(map[int]*portMeter)
	b.mu.Unlock()
}
