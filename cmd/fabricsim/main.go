// Package main 提供 fabricsim 命令行入口
//
// fabricsim 在内存中组装一个仿真集群，每个芯片一个 goroutine 并发轮询，
// 等待链路训练、拓扑发现和路由表安装完成后执行一轮读写与广播演示，
// 可选地在本地端口输出诊断信息和 Prometheus 指标。
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	fabric "github.com/dep2p/go-fabric"
	"github.com/dep2p/go-fabric/config"
	"github.com/dep2p/go-fabric/internal/core/introspect"
	"github.com/dep2p/go-fabric/internal/sim"
	"github.com/dep2p/go-fabric/pkg/lib/log"
	"github.com/dep2p/go-fabric/pkg/types"
)

var logger = log.Logger("fabric/cmd")

// 构建信息，由 -ldflags 注入
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：集群形状与这次运行的行为
//   JSON 配置文件：每个节点共用的配置模板（训练、发现、队列等）
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	// ─────────────────────────────────────────────────────────────────────
	// 集群形状
	// ─────────────────────────────────────────────────────────────────────
	racks   = flag.Int("racks", 1, "机架数")
	shelves = flag.Int("shelves", 1, "每个机架的层板数")
	width   = flag.Int("width", 2, "层板芯片列数")
	height  = flag.Int("height", 2, "层板芯片行数")
	nocCols = flag.Int("noc-cols", 2, "每个芯片的本地端点列数")
	nocRows = flag.Int("noc-rows", 2, "每个芯片的本地端点行数")

	// ─────────────────────────────────────────────────────────────────────
	// 节点配置
	// ─────────────────────────────────────────────────────────────────────
	configFile = flag.String("config", "", "节点配置模板文件路径")
	dataDir    = flag.String("data-dir", "", "拓扑快照目录（为空则不保存快照）")
	logLevel   = flag.String("log-level", "", "日志级别 (debug/info/warn/error)")

	// ─────────────────────────────────────────────────────────────────────
	// 运行行为
	// ─────────────────────────────────────────────────────────────────────
	introspectAddr = flag.String("introspect", "", "诊断与指标 HTTP 地址（例如 127.0.0.1:6060，为空则不启动）")
	reportInterval = flag.Duration("report-interval", 0, "指标快照写入日志的间隔（0 = 不输出）")
	routingTimeout = flag.Duration("routing-timeout", 30*time.Second, "等待路由表就绪的超时")
	demo           = flag.Bool("demo", true, "路由就绪后执行读写与广播演示")
	stay           = flag.Bool("stay", false, "演示结束后继续运行直到收到退出信号")

	// ─────────────────────────────────────────────────────────────────────
	// 信息显示
	// ─────────────────────────────────────────────────────────────────────
	showVersion = flag.Bool("version", false, "显示版本信息")
	showHelp    = flag.Bool("help", false, "显示帮助信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		printVersion()
		return nil
	}
	if *showHelp {
		printHelp()
		return nil
	}

	spec, err := buildSpec()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("启动仿真集群", "version", Version, "commit", GitCommit,
		"racks", spec.Racks, "shelves", spec.Shelves, "shelf", fmt.Sprintf("%dx%d", spec.Width, spec.Height))

	cluster, err := sim.New(spec)
	if err != nil {
		return fmt.Errorf("组装集群失败: %w", err)
	}
	defer func() { _ = cluster.Close() }()

	if err := cluster.Start(ctx); err != nil {
		return err
	}

	if *introspectAddr != "" {
		srv := introspect.New(introspect.Config{Addr: *introspectAddr, Source: chipSource(cluster)})
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("启动诊断服务失败: %w", err)
		}
		defer func() { _ = srv.Stop() }()
		fmt.Printf("诊断服务: http://%s/debug/fabric  指标: http://%s/metrics\n", srv.Addr(), srv.Addr())
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return cluster.Run(gctx) })
	if *reportInterval > 0 {
		for _, n := range cluster.Nodes() {
			if m := n.Metrics(); m != nil {
				g.Go(func() error {
					m.RunReporter(gctx, *reportInterval)
					return nil
				})
			}
		}
	}

	g.Go(func() error {
		defer cancel()
		start := time.Now()
		if err := waitRouting(gctx, cluster); err != nil {
			return err
		}
		fmt.Printf("路由就绪: %d 个芯片, 用时 %s\n", cluster.Size(), time.Since(start).Round(time.Millisecond))
		printTopology(cluster)

		if *demo {
			if err := runDemo(gctx, cluster); err != nil {
				return err
			}
		}
		if *stay {
			fmt.Println("集群运行中，按 Ctrl+C 退出")
			<-gctx.Done()
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("正在关闭集群...")
	return nil
}

// chipSource 把集群节点暴露给诊断服务
func chipSource(c *sim.Cluster) introspect.Source {
	return introspect.SourceFunc(func() []introspect.Chip {
		nodes := c.Nodes()
		out := make([]introspect.Chip, len(nodes))
		for i, n := range nodes {
			out[i] = n
		}
		return out
	})
}

// buildSpec 构建集群描述
//
// 配置优先级（从高到低）：
//  1. 命令行参数
//  2. 环境变量（FABRIC_* 前缀）
//  3. 配置文件
//  4. 默认值
func buildSpec() (sim.Spec, error) {
	base := config.NewConfig()
	if *configFile != "" {
		var err error
		if base, err = config.LoadFile(*configFile); err != nil {
			return sim.Spec{}, fmt.Errorf("加载配置文件失败: %w", err)
		}
	}

	spec := sim.Spec{
		Racks:   *racks,
		Shelves: *shelves,
		Width:   *width,
		Height:  *height,
		NocCols: *nocCols,
		NocRows: *nocRows,
		Base:    base,
	}
	applyEnvOverrides(&spec)

	base.Discovery.PersistSnapshot = *dataDir != ""
	if *dataDir != "" {
		base.Storage.DataDir = *dataDir
		base.Storage.InMemory = false
	}
	if isFlagSet("log-level") {
		base.Log.Level = *logLevel
	}
	if base.Log.Level != "" {
		level, ok := log.ParseLevel(base.Log.Level)
		if !ok {
			return sim.Spec{}, fmt.Errorf("未知日志级别 %q", base.Log.Level)
		}
		log.SetGlobalLevel(level)
	}
	spec.Metrics = base.Metrics.Enabled || *introspectAddr != "" || *reportInterval > 0
	return spec, nil
}

// isFlagSet 检查命令行参数是否被显式设置
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// waitRouting 等待所有芯片安装路由表
func waitRouting(ctx context.Context, c *sim.Cluster) error {
	ctx, cancel := context.WithTimeout(ctx, *routingTimeout)
	defer cancel()
	for _, n := range c.Nodes() {
		if err := n.WaitRouting(ctx); err != nil {
			return fmt.Errorf("等待 %s 路由就绪: %w", n.Identity(), err)
		}
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              演示
// ════════════════════════════════════════════════════════════════════════════

// runDemo 从第一个芯片写最远的芯片、读回校验，再向全集群广播
func runDemo(ctx context.Context, c *sim.Cluster) error {
	nodes := c.Nodes()
	src, dst := nodes[0], nodes[len(nodes)-1]
	id := dst.Identity()
	target := types.Address{Rack: id.Rack, ChipX: id.ChipX, ChipY: id.ChipY, Offset: 0x1000}

	data := make([]byte, 2*types.MaxBlockSize+17)
	for i := range data {
		data[i] = byte(i * 31)
	}

	start := time.Now()
	if _, err := src.WriteOrdered(target, data); err != nil {
		return err
	}
	resp, err := awaitResponse(ctx, src)
	if err != nil {
		return err
	}
	fmt.Printf("有序写 %d 字节 %s -> %s: %s (%s)\n", len(data), src.Identity(), id, status(resp), time.Since(start).Round(time.Microsecond))

	if _, err := src.Read(target, types.MaxBlockSize); err != nil {
		return err
	}
	if resp, err = awaitResponse(ctx, src); err != nil {
		return err
	}
	match := bytes.Equal(resp.Block, data[:types.MaxBlockSize])
	fmt.Printf("读回 %d 字节: %s, 校验一致: %v\n", len(resp.Block), status(resp), match)

	payload := []byte("fabric broadcast")
	if _, err := src.Broadcast(src.Identity().Rack, 0x2000, types.BroadcastHeader{}, payload); err != nil {
		return err
	}
	if resp, err = awaitResponse(ctx, src); err != nil {
		return err
	}
	written := 0
	buf := make([]byte, len(payload))
	for _, n := range nodes {
		n.Memory().Read(0x2000, buf)
		if bytes.Equal(buf, payload) {
			written++
		}
	}
	fmt.Printf("广播: %s, %d/%d 个芯片已写入\n", status(resp), written, len(nodes))
	return nil
}

func status(c types.Command) string {
	if c.Unreachable() {
		return "不可达"
	}
	return "完成"
}

// awaitResponse 轮询主机应答
func awaitResponse(ctx context.Context, n *fabric.Node) (types.Command, error) {
	ticker := time.NewTicker(100 * time.Microsecond)
	defer ticker.Stop()
	for {
		if resp, ok := n.PopResponse(); ok {
			return resp, nil
		}
		if err := n.Halted(); err != nil {
			return types.Command{}, err
		}
		select {
		case <-ctx.Done():
			return types.Command{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              输出
// ════════════════════════════════════════════════════════════════════════════

func printTopology(c *sim.Cluster) {
	for _, n := range c.Nodes() {
		snap := n.Topology()
		up := 0
		for _, st := range n.Links() {
			if st.StateName == "up" {
				up++
			}
		}
		fmt.Printf("  %-28s phase=%-13s links=%d epoch=%s\n", n.Identity(), n.Phase(), up, snap.Epoch)
	}
}

func printVersion() {
	fmt.Printf("fabricsim %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}

func printHelp() {
	fmt.Println("用法: fabricsim [选项]")
	fmt.Println()
	fmt.Println("在内存中运行一个多芯片互连仿真集群。")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  FABRIC_RACKS, FABRIC_SHELVES, FABRIC_SHELF  集群形状（FABRIC_SHELF 形如 4x8）")
	fmt.Println("  FABRIC_LOG_LEVEL, FABRIC_LOG_FORMAT        日志级别与格式")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  fabricsim -racks 2 -shelves 3 -width 4 -height 8")
	fmt.Println("  fabricsim -introspect 127.0.0.1:6060 -stay")
}
