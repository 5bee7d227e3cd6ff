package topology

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-fabric/internal/core/storage"
)

// StoreParams 快照存储依赖
type StoreParams struct {
	fx.In

	DB *storage.DB `optional:"true"`
}

// Module 返回拓扑 Fx 模块
//
// 只提供快照存储；发现器依赖链路分类，由节点在链路训练后创建。
// 没有数据库时 *Store 为 nil，快照被跳过。
func Module() fx.Option {
	return fx.Module("topology",
		fx.Provide(ProvideStore),
	)
}

// ProvideStore 提供快照存储
func ProvideStore(p StoreParams) *Store {
	if p.DB == nil {
		return nil
	}
	return NewStore(p.DB)
}
