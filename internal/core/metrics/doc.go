// Package metrics 提供芯片级监控指标
//
// Collector 为每个芯片维护一个独立的 Prometheus 注册表：
//   - 引擎：按终结方式统计命令、按方向统计转发、重试与协议错误、主机往返延迟
//   - 链路：端口状态与帧字节数
//   - 发现：拓扑表完成度与重新发现次数
//
// BandwidthCounter 按端口累计帧字节并用 60 秒滑动窗口计算速率，
// 时钟可注入，便于在仿真中用 mock 时钟验证。
//
//	c := metrics.NewCollector(metrics.DefaultConfig(), "rack(0,0) chip(1,0)", nil)
//	eng, _ := engine.New(cfg, id, out, nil, nil, c)
//	http.Handle("/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{}))
package metrics
