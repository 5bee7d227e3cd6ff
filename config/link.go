package config

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// LinkConfig 链路训练与健康检查配置
type LinkConfig struct {
	// PortDisableMask 置位的端口不训练
	PortDisableMask uint32 `json:"port_disable_mask"`

	// PortForceMask 置位的端口强制静态训练
	PortForceMask uint32 `json:"port_force_mask"`

	// TrainMode 训练模式: hw-auto, fw, static
	TrainMode string `json:"train_mode"`

	// TestMode 训练后进入探测包测试
	TestMode bool `json:"test_mode"`

	AnAttemptsBeforePcsReset int `json:"an_attempts_before_pcs_reset"`
	TimeoutAnAttempts        int `json:"timeout_an_attempts"`
	PgRcvFailLimit           int `json:"pg_rcv_fail_limit"`

	// PgRcvStaticFallback 页接收失败超限后退回静态训练而不是放弃
	PgRcvStaticFallback bool `json:"pg_rcv_static_fallback"`

	PgRcvWaitTimeout   Duration `json:"pg_rcv_wait_timeout"`
	AnCompleteTimeout  Duration `json:"an_complete_timeout"`
	PcsOnWaitTimeout   Duration `json:"pcs_on_wait_timeout"`
	SigdetTimeout      Duration `json:"sigdet_timeout"`
	RestartCheckTime   Duration `json:"restart_check_time"`
	DummyPacketTimeout Duration `json:"dummy_packet_timeout"`

	RestartCheckRetries int    `json:"restart_check_retries"`
	DummyPacketRetries  int    `json:"dummy_packet_retries"`
	SymerrMax           uint32 `json:"symerr_max"`
	CrcErrLinkRestart   bool   `json:"crc_err_link_restart"`

	// HealthCheckEnable 链路活动后周期性健康检查
	HealthCheckEnable bool     `json:"health_check_enable"`
	HealthInterval    Duration `json:"health_interval"`
	CrcErrLimit       uint64   `json:"crc_err_limit"`
	MacRcvFailLimit   int      `json:"mac_rcv_fail_limit"`
}

// DefaultLinkConfig 默认链路配置
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		TrainMode:                "hw-auto",
		AnAttemptsBeforePcsReset: 3,
		TimeoutAnAttempts:        50,
		PgRcvFailLimit:           100,
		PgRcvStaticFallback:      true,
		PgRcvWaitTimeout:         Duration(500 * time.Millisecond),
		AnCompleteTimeout:        Duration(100 * time.Millisecond),
		PcsOnWaitTimeout:         Duration(100 * time.Millisecond),
		SigdetTimeout:            Duration(5 * time.Second),
		RestartCheckTime:         Duration(100 * time.Millisecond),
		DummyPacketTimeout:       Duration(100 * time.Millisecond),
		RestartCheckRetries:      5,
		DummyPacketRetries:       3,
		SymerrMax:                0,
		HealthCheckEnable:        true,
		HealthInterval:           Duration(time.Second),
		CrcErrLimit:              100,
		MacRcvFailLimit:          3,
	}
}

// Validate 验证链路配置
func (c *LinkConfig) Validate(numPorts int) error {
	var err error
	switch c.TrainMode {
	case "hw-auto", "fw", "static":
	default:
		err = multierr.Append(err, fmt.Errorf("link: unknown train_mode %q", c.TrainMode))
	}
	if numPorts < 32 && c.PortDisableMask>>uint(numPorts) != 0 {
		err = multierr.Append(err, fmt.Errorf("link: port_disable_mask %#x names ports beyond %d", c.PortDisableMask, numPorts))
	}
	if c.TimeoutAnAttempts < 1 || c.PgRcvFailLimit < 1 {
		err = multierr.Append(err, fmt.Errorf("link: attempt limits must be positive"))
	}
	for name, d := range map[string]Duration{
		"pg_rcv_wait_timeout":  c.PgRcvWaitTimeout,
		"an_complete_timeout":  c.AnCompleteTimeout,
		"pcs_on_wait_timeout":  c.PcsOnWaitTimeout,
		"sigdet_timeout":       c.SigdetTimeout,
		"restart_check_time":   c.RestartCheckTime,
		"dummy_packet_timeout": c.DummyPacketTimeout,
		"health_interval":      c.HealthInterval,
	} {
		if d <= 0 {
			err = multierr.Append(err, fmt.Errorf("link: %s must be positive", name))
		}
	}
	return err
}
