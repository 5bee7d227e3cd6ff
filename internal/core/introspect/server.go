// Package introspect 提供本地自省 HTTP 服务
//
// 该服务运行在本地端口，以 JSON 输出集群中每个芯片的诊断信息，
// 并汇总各芯片独立注册表中的 Prometheus 指标。默认绑定到 127.0.0.1。
//
// 端点：
//   - GET /debug/fabric        - 全部芯片的诊断报告 (JSON)
//   - GET /debug/fabric/links  - 各芯片端口链路状态
//   - GET /debug/fabric/chip   - 单个芯片，参数 rack_x/rack_y/x/y
//   - GET /metrics             - Prometheus 指标
//   - GET /health              - 路由表全部就绪时为 ok
//   - GET /debug/pprof/*       - Go pprof 端点
package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/dep2p/go-fabric/internal/core/lifecycle"
	"github.com/dep2p/go-fabric/internal/core/link"
	"github.com/dep2p/go-fabric/internal/core/metrics"
	"github.com/dep2p/go-fabric/internal/core/topology"
	"github.com/dep2p/go-fabric/pkg/lib/log"
	"github.com/dep2p/go-fabric/pkg/types"
)

var logger = log.Logger("introspect")

// DefaultAddr 默认监听地址
const DefaultAddr = "127.0.0.1:6060"

// Chip 可诊断的芯片节点，*fabric.Node 满足该接口
type Chip interface {
	Identity() types.Identity
	Phase() lifecycle.Phase
	Ready() bool
	Halted() error
	Pending() int
	Links() []link.PortStatus
	Topology() *topology.Snapshot
	Metrics() *metrics.Collector
}

// Source 提供待诊断的芯片列表
type Source interface {
	Chips() []Chip
}

// SourceFunc 函数形式的 Source
type SourceFunc func() []Chip

// Chips 实现 Source
func (f SourceFunc) Chips() []Chip { return f() }

// Server 本地自省 HTTP 服务
type Server struct {
	source Source
	addr   string

	server   *http.Server
	listener net.Listener

	running bool
	mu      sync.Mutex
}

// Config 服务配置
type Config struct {
	// Addr 监听地址，默认 "127.0.0.1:6060"
	Addr string

	// Source 必需的芯片来源
	Source Source
}

// New 创建自省服务
func New(cfg Config) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{source: cfg.Source, addr: addr}
}

// Handler 返回服务的路由，便于在测试或已有服务器中挂载
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/fabric", s.handleFabric)
	mux.HandleFunc("/debug/fabric/links", s.handleLinks)
	mux.HandleFunc("/debug/fabric/chip", s.handleChip)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherers(), promhttp.HandlerOpts{}))

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// Start 启动服务
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("自省服务异常退出", "error", err)
		}
	}()

	s.running = true
	logger.Info("自省服务已启动", "addr", listener.Addr().String())
	return nil
}

// Stop 停止服务
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Error("关闭自省服务失败", "error", err)
		return err
	}

	s.running = false
	logger.Info("自省服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ════════════════════════════════════════════════════════════════════════════
//                              HTTP 处理器
// ════════════════════════════════════════════════════════════════════════════

// ChipReport 单个芯片的诊断报告
type ChipReport struct {
	Chip    string            `json:"chip"`
	Phase   string            `json:"phase"`
	Ready   bool              `json:"ready"`
	Halted  string            `json:"halted,omitempty"`
	Pending int               `json:"pending"`
	Links   []link.PortStatus `json:"links"`
	Epoch   string            `json:"epoch"`
	Conns   []string          `json:"conns"`

	Metrics *metrics.Snapshot `json:"metrics,omitempty"`
}

func report(c Chip) ChipReport {
	r := ChipReport{
		Chip:    c.Identity().String(),
		Phase:   c.Phase().String(),
		Ready:   c.Ready(),
		Pending: c.Pending(),
		Links:   c.Links(),
	}
	if err := c.Halted(); err != nil {
		r.Halted = err.Error()
	}
	if snap := c.Topology(); snap != nil {
		r.Epoch = snap.Epoch
		for _, conn := range snap.Conns {
			r.Conns = append(r.Conns, conn.String())
		}
	}
	if m := c.Metrics(); m != nil {
		snap := m.Snapshot()
		r.Metrics = &snap
	}
	return r
}

func (s *Server) chips() []Chip {
	if s.source == nil {
		return nil
	}
	return s.source.Chips()
}

// handleFabric 处理完整诊断请求
func (s *Server) handleFabric(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	chips := s.chips()
	out := make([]ChipReport, 0, len(chips))
	for _, c := range chips {
		out = append(out, report(c))
	}
	s.writeJSON(w, out)
}

// handleLinks 处理链路状态请求
func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	out := make(map[string][]link.PortStatus)
	for _, c := range s.chips() {
		out[c.Identity().String()] = c.Links()
	}
	s.writeJSON(w, out)
}

// handleChip 处理单个芯片请求
func (s *Server) handleChip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	var want [4]uint8
	for i, key := range []string{"rack_x", "rack_y", "x", "y"} {
		v, err := strconv.ParseUint(q.Get(key), 10, 8)
		if err != nil {
			http.Error(w, "bad parameter "+key, http.StatusBadRequest)
			return
		}
		want[i] = uint8(v)
	}
	for _, c := range s.chips() {
		id := c.Identity()
		if id.Rack.X == want[0] && id.Rack.Y == want[1] && id.ChipX == want[2] && id.ChipY == want[3] {
			s.writeJSON(w, report(c))
			return
		}
	}
	http.Error(w, "chip not found", http.StatusNotFound)
}

// handleHealth 处理健康检查请求
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := struct {
		Status    string    `json:"status"`
		Chips     int       `json:"chips"`
		Ready     int       `json:"ready"`
		Timestamp time.Time `json:"timestamp"`
	}{
		Status:    "ok",
		Timestamp: time.Now(),
	}
	for _, c := range s.chips() {
		health.Chips++
		if c.Ready() {
			health.Ready++
		}
		if c.Halted() != nil {
			health.Status = "halted"
		}
	}
	if health.Status == "ok" && (health.Chips == 0 || health.Ready < health.Chips) {
		health.Status = "degraded"
	}
	s.writeJSON(w, health)
}

// gatherers 每次抓取时汇总各芯片的注册表
func (s *Server) gatherers() prometheus.Gatherer {
	return prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		var g prometheus.Gatherers
		for _, c := range s.chips() {
			if m := c.Metrics(); m != nil {
				g = append(g, m.Registry())
			}
		}
		return g.Gather()
	})
}

// writeJSON 写入 JSON 响应
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		logger.Error("编码 JSON 响应失败", "error", err)
	}
}
