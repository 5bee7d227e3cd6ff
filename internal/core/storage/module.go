package storage

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-fabric/config"
)

// Params 存储模块依赖
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Module 返回存储 Fx 模块
//
// 提供 *DB；OnStart 启动垃圾回收，OnStop 关闭数据库。
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideDB),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideDB 按统一配置打开数据库
func ProvideDB(p Params) (*DB, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	logger.Debug("打开存储", "path", cfg.Path, "in_memory", cfg.InMemory)
	return Open(cfg)
}

func registerLifecycle(lc fx.Lifecycle, db *DB) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return db.Start()
		},
		OnStop: func(_ context.Context) error {
			if err := db.Close(); err != nil {
				logger.Warn("关闭存储失败", "error", err)
				return err
			}
			return nil
		},
	})
}
