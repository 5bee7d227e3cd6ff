// Package log 提供 fabric 统一日志接口
//
// 每个组件在包级声明自己的 logger：
//
//	var logger = log.Logger("core/link")
//	logger.Info("链路进入活动状态", "port", port)
//
// 级别与格式由 FABRIC_LOG_LEVEL / FABRIC_LOG_FORMAT 控制，
// 见 internal/util/logger。
package log

import (
	"context"
	"io"
	"log/slog"

	"github.com/dep2p/go-fabric/internal/util/logger"
)

// 日志级别常量
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// LazyLogger 懒加载 logger
//
// 首次输出时才创建子系统 Logger，因此包级变量初始化时
// 环境变量尚未就绪也没有关系。
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) get() *slog.Logger {
	return logger.Logger(l.component)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) { l.get().Debug(msg, args...) }

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) { l.get().Info(msg, args...) }

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) { l.get().Warn(msg, args...) }

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) { l.get().Error(msg, args...) }

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.get().DebugContext(ctx, msg, args...)
}

// InfoContext 带 context 的 Info 日志
func (l *LazyLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.get().InfoContext(ctx, msg, args...)
}

// Enabled 判断级别是否输出
func (l *LazyLogger) Enabled(level slog.Level) bool {
	return l.get().Enabled(context.Background(), level)
}

// With 添加额外属性
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return l.get().With(args...)
}

// Component 返回组件名
func (l *LazyLogger) Component() string {
	return l.component
}

// SetOutput 设置日志输出目标
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// SetLevel 设置组件级别
func SetLevel(component string, level slog.Level) {
	logger.SetLevel(component, level)
}

// SetGlobalLevel 设置所有组件级别
func SetGlobalLevel(level slog.Level) {
	logger.SetGlobalLevel(level)
}

// ParseLevel 解析级别名称（debug/info/warn/error）
func ParseLevel(name string) (slog.Level, bool) {
	return logger.ParseLevel(name)
}
