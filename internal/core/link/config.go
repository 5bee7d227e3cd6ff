package link

import (
	"fmt"
	"time"

	"github.com/dep2p/go-fabric/config"
)

// TrainMode 训练模式
type TrainMode uint8

const (
	// TrainHWAuto 硬件自协商并自动训练
	TrainHWAuto TrainMode = iota
	// TrainFW 自协商后由固件训练
	TrainFW
	// TrainStatic 不做自协商，直接等待信号
	TrainStatic
)

func (m TrainMode) String() string {
	switch m {
	case TrainHWAuto:
		return "hw-auto"
	case TrainFW:
		return "fw"
	case TrainStatic:
		return "static"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseTrainMode 解析训练模式
func ParseTrainMode(s string) (TrainMode, error) {
	for m := TrainHWAuto; m <= TrainStatic; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown train mode %q", s)
}

// Config 链路训练配置
type Config struct {
	NumPorts        int
	PortDisableMask uint32
	PortForceMask   uint32
	TrainMode       TrainMode
	TestMode        bool

	AnAttemptsBeforePcsReset int
	TimeoutAnAttempts        int
	PgRcvFailLimit           int
	PgRcvStaticFallback      bool

	PgRcvWaitTimeout   time.Duration
	AnCompleteTimeout  time.Duration
	PcsOnWaitTimeout   time.Duration
	SigdetTimeout      time.Duration
	RestartCheckTime   time.Duration
	DummyPacketTimeout time.Duration

	RestartCheckRetries int
	DummyPacketRetries  int
	SymerrMax           uint32
	CrcErrLinkRestart   bool

	HealthCheckEnable bool
	HealthInterval    time.Duration
	CrcErrLimit       uint64
	MacRcvFailLimit   int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	cfg := config.NewConfig()
	return ConfigFromUnified(cfg)
}

// ConfigFromUnified 从统一配置创建
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	lc := cfg.Link
	mode, _ := ParseTrainMode(lc.TrainMode)
	return Config{
		NumPorts:                 cfg.Node.NumPorts,
		PortDisableMask:          lc.PortDisableMask,
		PortForceMask:            lc.PortForceMask,
		TrainMode:                mode,
		TestMode:                 lc.TestMode,
		AnAttemptsBeforePcsReset: lc.AnAttemptsBeforePcsReset,
		TimeoutAnAttempts:        lc.TimeoutAnAttempts,
		PgRcvFailLimit:           lc.PgRcvFailLimit,
		PgRcvStaticFallback:      lc.PgRcvStaticFallback,
		PgRcvWaitTimeout:         lc.PgRcvWaitTimeout.Duration(),
		AnCompleteTimeout:        lc.AnCompleteTimeout.Duration(),
		PcsOnWaitTimeout:         lc.PcsOnWaitTimeout.Duration(),
		SigdetTimeout:            lc.SigdetTimeout.Duration(),
		RestartCheckTime:         lc.RestartCheckTime.Duration(),
		DummyPacketTimeout:       lc.DummyPacketTimeout.Duration(),
		RestartCheckRetries:      lc.RestartCheckRetries,
		DummyPacketRetries:       lc.DummyPacketRetries,
		SymerrMax:                lc.SymerrMax,
		CrcErrLinkRestart:        lc.CrcErrLinkRestart,
		HealthCheckEnable:        lc.HealthCheckEnable,
		HealthInterval:           lc.HealthInterval.Duration(),
		CrcErrLimit:              lc.CrcErrLimit,
		MacRcvFailLimit:          lc.MacRcvFailLimit,
	}
}

// Validate 校验并修正配置
func (c *Config) Validate() error {
	if c.NumPorts < 1 || c.NumPorts > 32 {
		return fmt.Errorf("%w: num ports %d", ErrInvalidConfig, c.NumPorts)
	}
	if c.TrainMode > TrainStatic {
		return fmt.Errorf("%w: train mode %d", ErrInvalidConfig, c.TrainMode)
	}
	def := DefaultConfig()
	if c.TimeoutAnAttempts <= 0 {
		c.TimeoutAnAttempts = def.TimeoutAnAttempts
	}
	if c.PgRcvFailLimit <= 0 {
		c.PgRcvFailLimit = def.PgRcvFailLimit
	}
	if c.AnAttemptsBeforePcsReset <= 0 {
		c.AnAttemptsBeforePcsReset = def.AnAttemptsBeforePcsReset
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = def.HealthInterval
	}
	if c.MacRcvFailLimit <= 0 {
		c.MacRcvFailLimit = def.MacRcvFailLimit
	}
	return nil
}

func (c *Config) forced(port int) bool {
	return c.PortForceMask&(1<<uint(port)) != 0
}

func (c *Config) disabled(port int) bool {
	return c.PortDisableMask&(1<<uint(port)) != 0
}

// static 端口是否走静态训练路径
func (c *Config) static(port int) bool {
	return c.TrainMode == TrainStatic || c.forced(port)
}
