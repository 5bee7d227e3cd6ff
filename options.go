package fabric

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-fabric/config"
	"github.com/dep2p/go-fabric/pkg/interfaces"
	"github.com/dep2p/go-fabric/pkg/types"
)

// Option 节点配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 统一配置，未设置时使用默认值
	config *config.Config

	// 每个物理端口的 PHY 与链路通道
	ports []interfaces.Port

	// 片上本地传输，可为空
	transport interfaces.LocalTransport

	clock clock.Clock

	// 用户自定义 Fx 选项
	fxOptions []fx.Option
}

func newOptions() *options {
	return &options{}
}

func (o *options) unified() *config.Config {
	if o.config == nil {
		o.config = config.NewConfig()
	}
	return o.config
}

// WithConfig 使用给定的统一配置（拷贝一份）
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}
		o.config = cfg.Clone()
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载统一配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithIdentity 覆盖芯片身份
func WithIdentity(id types.Identity) Option {
	return func(o *options) error {
		n := &o.unified().Node
		n.BoardID = id.BoardID
		n.BoardType = id.BoardType.String()
		n.RackX, n.RackY = id.Rack.X, id.Rack.Y
		n.ChipX, n.ChipY = id.ChipX, id.ChipY
		n.NocX, n.NocY = id.NocX, id.NocY
		return nil
	}
}

// WithPorts 设置物理端口资源，数量必须等于 num_ports
func WithPorts(ports ...interfaces.Port) Option {
	return func(o *options) error {
		o.ports = append([]interfaces.Port(nil), ports...)
		return nil
	}
}

// WithTransport 设置片上本地传输
func WithTransport(t interfaces.LocalTransport) Option {
	return func(o *options) error {
		o.transport = t
		return nil
	}
}

// WithClock 注入时钟，测试中通常为 clock.NewMock()
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// WithMetrics 开关指标收集
func WithMetrics(enabled bool) Option {
	return func(o *options) error {
		o.unified().Metrics.Enabled = enabled
		return nil
	}
}

// WithSnapshotStore 发现完成后把拓扑快照写入 dataDir，dataDir 为空时仅内存存储
func WithSnapshotStore(dataDir string) Option {
	return func(o *options) error {
		cfg := o.unified()
		cfg.Discovery.PersistSnapshot = true
		cfg.Storage.InMemory = dataDir == ""
		if dataDir != "" {
			cfg.Storage.DataDir = dataDir
		}
		return nil
	}
}

// WithFxOption 追加自定义 Fx 选项
func WithFxOption(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
