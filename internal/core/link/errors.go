package link

import "errors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("link: invalid config")

	// ErrPortCount PHY 数量与端口数不一致
	ErrPortCount = errors.New("link: phy count does not match port count")

	// ErrInvalidPort 端口号越界
	ErrInvalidPort = errors.New("link: invalid port")

	// ErrNotActive 端口训练结束但未激活
	ErrNotActive = errors.New("link: port not active")
)
