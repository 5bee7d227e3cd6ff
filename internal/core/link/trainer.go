package link

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-fabric/pkg/interfaces"
	"github.com/dep2p/go-fabric/pkg/lib/log"
	"github.com/dep2p/go-fabric/pkg/types"
)

var logger = log.Logger("core/link")

// pgRcvRestartEvery 每累计这么多次页接收失败重新发起一次自协商
const pgRcvRestartEvery = 10

// 各板卡型号实际布线的端口
var populatedPorts = map[types.BoardType]uint32{
	types.BoardNebulaX1:      portBits(0, 1, 6, 7, 14, 15),
	types.BoardNebulaX2Left:  portBits(0, 1, 6, 7, 8, 9, 14, 15),
	types.BoardNebulaX2Right: portBits(0, 1, 6, 7),
}

func portBits(ports ...int) uint32 {
	var m uint32
	for _, p := range ports {
		m |= 1 << uint(p)
	}
	return m
}

// PortPopulated 端口在该板卡上是否布线
func PortPopulated(board types.BoardType, port int) bool {
	mask, ok := populatedPorts[board]
	if !ok {
		return true
	}
	return mask&(1<<uint(port)) != 0
}

// Trainer 单端口链路训练状态机
//
// 每次 Poll 只推进一步且不阻塞；等待状态用注入的时钟计时，
// 超时后按状态转移表处理。进入 Active 后由 CheckHealth
// 周期性采样，发现故障即从 PcsReset 重新训练直到成功。
type Trainer struct {
	port  int
	cfg   *Config
	phy   interfaces.PHY
	local types.Identity
	clk   clock.Clock

	state     TrainState
	enteredAt time.Time
	reason    InactiveReason
	remote    types.Identity
	hasRemote bool

	anAttempts     int
	currAnAttempts int
	pgRcvFails     int
	restartChecks  int
	dummyTries     int
	dummySent      bool

	// faulted 健康检查失败后的重训过程中为 true
	faulted  bool
	retrains int
	health   healthMonitor
}

// NewTrainer 创建端口训练器
func NewTrainer(port int, cfg *Config, phy interfaces.PHY, local types.Identity, clk clock.Clock) *Trainer {
	t := &Trainer{
		port:  port,
		cfg:   cfg,
		phy:   phy,
		local: local,
		clk:   clk,
	}
	t.health = newHealthMonitor(cfg.HealthInterval)
	t.enter(StatePowerUp)
	return t
}

// Port 端口号
func (t *Trainer) Port() int { return t.port }

// TrainState 内部状态
func (t *Trainer) TrainState() TrainState { return t.state }

// Reason 未激活原因
func (t *Trainer) Reason() InactiveReason { return t.reason }

// Terminal 本次训练是否已结束（Active 或 NotActive）
func (t *Trainer) Terminal() bool {
	return t.state.Terminal()
}

// Up 链路是否可承载流量
func (t *Trainer) Up() bool { return t.state == StateActive }

// Remote 对端身份，仅在链路 Up 时有效
func (t *Trainer) Remote() (types.Identity, bool) {
	if !t.Up() {
		return types.Identity{}, false
	}
	return t.remote, t.hasRemote
}

// State 对外状态
func (t *Trainer) State() State {
	switch {
	case t.state == StateActive:
		return LinkUp
	case t.faulted:
		return LinkFaulted
	case t.state == StateNotActive:
		return LinkDown
	case t.state == StatePacketTestMode:
		return LinkTesting
	default:
		return LinkTraining
	}
}

// Poll 推进一步
func (t *Trainer) Poll() TrainState {
	switch t.state {
	case StateActive, StateNotActive:
		return t.state
	case StatePowerUp:
		t.powerUp()
	case StateAnConfig:
		t.phy.StartAutoneg()
		t.enter(StateAnRestart)
	case StateAnRestart:
		t.anRestart()
	case StatePgRcv:
		t.pgRcv()
	case StateTraining, StateTrainingFW:
		if err := t.phy.Train(t.state == StateTrainingFW); err != nil {
			logger.Debug("链路训练失败", "port", t.port, "error", err)
			t.enter(StateAnRestart)
		} else {
			t.enter(StateAnCompleteWait)
		}
	case StateAnCompleteWait:
		t.waitFor(t.phy.AutonegComplete(), StatePcsOnWait, t.cfg.AnCompleteTimeout)
	case StatePcsOnWait:
		t.waitFor(t.phy.PCSUp(), StateSymerrCheck, t.cfg.PcsOnWaitTimeout)
	case StateSymerrCheck:
		t.symerrCheck()
	case StateRestartCheck:
		t.restartCheck()
	case StatePacketTestMode:
		t.packetTest()
	case StateNoAnStart:
		if t.phy.SignalDetected() {
			t.enter(StatePcsOnWait)
		} else if t.elapsed() >= t.cfg.SigdetTimeout {
			t.fail(ReasonTimeoutSigdet)
		}
	case StatePcsReset:
		if err := t.phy.Reset(); err != nil {
			logger.Warn("PCS 复位失败", "port", t.port, "error", err)
		}
		t.enter(StatePowerUp)
	}

	// 故障重训不接受失败，循环直到链路重新激活
	if t.faulted && t.state == StateNotActive {
		logger.Debug("故障重训未成功，继续重试", "port", t.port, "reason", t.reason)
		t.resetAttempts()
		t.enter(StatePcsReset)
	}
	return t.state
}

func (t *Trainer) powerUp() {
	switch {
	case !PortPopulated(t.local.BoardType, t.port):
		t.fail(ReasonPortNotPopulated)
	case t.cfg.disabled(t.port):
		t.fail(ReasonPortMaskedOff)
	case t.phy.MACLoopback():
		t.fail(ReasonMacLoopback)
	case t.cfg.static(t.port):
		t.enter(StateNoAnStart)
	default:
		t.enter(StateAnConfig)
	}
}

func (t *Trainer) anRestart() {
	t.anAttempts++
	if t.anAttempts > t.cfg.TimeoutAnAttempts {
		t.fail(ReasonTimeoutAnAttempts)
		return
	}
	if t.cfg.static(t.port) {
		t.enter(StatePcsReset)
		return
	}
	if t.currAnAttempts == t.cfg.AnAttemptsBeforePcsReset {
		t.currAnAttempts = 0
		t.enter(StatePcsReset)
		return
	}
	t.currAnAttempts++
	t.phy.StartAutoneg()
	t.enter(StatePgRcv)
}

func (t *Trainer) pgRcv() {
	if t.phy.PageReceived() {
		t.pgRcvFails = 0
		if t.cfg.TrainMode == TrainFW {
			t.enter(StateTrainingFW)
		} else {
			t.enter(StateTraining)
		}
		return
	}
	if t.elapsed() < t.cfg.PgRcvWaitTimeout {
		return
	}

	t.pgRcvFails++
	switch {
	case t.pgRcvFails > t.cfg.PgRcvFailLimit:
		if t.cfg.PgRcvStaticFallback {
			logger.Info("页接收失败超限，退回静态训练", "port", t.port)
			t.pgRcvFails = 0
			t.enter(StateNoAnStart)
			return
		}
		t.fail(ReasonTimeoutPgRcv)
	case t.pgRcvFails%pgRcvRestartEvery == 0:
		t.enter(StateAnRestart)
	default:
		// 对端可能还在上电，继续等待而不是重启自协商
		t.enter(StatePgRcv)
	}
}

func (t *Trainer) symerrCheck() {
	if t.phy.SymbolErrors() > t.cfg.SymerrMax || !t.phy.PCSUp() {
		t.enter(StateAnRestart)
		return
	}
	if t.cfg.CrcErrLinkRestart && t.phy.Health().CRCErrors > 0 {
		t.enter(StateAnRestart)
		return
	}
	t.enter(StateRestartCheck)
}

func (t *Trainer) restartCheck() {
	if !t.phy.PCSUp() {
		t.enter(StateAnRestart)
		return
	}
	remote, ok := t.phy.RemoteIdentity()
	if !ok {
		if t.elapsed() >= t.cfg.RestartCheckTime {
			t.restartChecks++
			if t.restartChecks > t.cfg.RestartCheckRetries {
				t.fail(ReasonTimeoutLinkRestart)
				return
			}
			t.enter(StateAnRestart)
		}
		return
	}
	t.remote, t.hasRemote = remote, true

	if t.cfg.TestMode || t.cfg.static(t.port) {
		t.enter(StatePacketTestMode)
		return
	}
	t.finish()
}

func (t *Trainer) packetTest() {
	if !t.dummySent {
		t.phy.SendDummyPacket()
		t.dummySent = true
	}
	if t.phy.DummyPacketEchoed() {
		t.dummySent = false
		t.finish()
		return
	}
	if t.elapsed() < t.cfg.DummyPacketTimeout {
		return
	}
	t.dummySent = false
	t.dummyTries++
	if t.dummyTries > t.cfg.DummyPacketRetries {
		t.fail(ReasonFailDummyPacket)
		return
	}
	t.enter(StateAnRestart)
}

// finish 校验对端身份并激活链路
func (t *Trainer) finish() {
	if t.phy.CableLoopback() {
		t.fail(ReasonCableLoopback)
		return
	}
	if r := ValidateRemote(t.local, t.remote); r != ReasonNone {
		t.fail(r)
		return
	}

	if t.faulted {
		logger.Info("链路重训成功", "port", t.port, "retrains", t.retrains)
		t.faulted = false
	} else {
		logger.Info("链路激活", "port", t.port, "remote", t.remote, "attempts", t.anAttempts)
	}
	t.resetAttempts()
	t.health.reset(t.phy.Health())
	t.enter(StateActive)
}

// waitFor 条件满足则转到 next，超时回到 AnRestart
func (t *Trainer) waitFor(cond bool, next TrainState, timeout time.Duration) {
	if cond {
		t.enter(next)
	} else if t.elapsed() >= timeout {
		t.enter(StateAnRestart)
	}
}

func (t *Trainer) fail(reason InactiveReason) {
	t.reason = reason
	t.hasRemote = false
	t.enter(StateNotActive)
	if !t.faulted {
		logger.Warn("链路未激活", "port", t.port, "reason", reason)
	}
}

func (t *Trainer) enter(s TrainState) {
	if s != t.state {
		logger.Debug("链路状态转移", "port", t.port, "from", t.state, "to", s)
	}
	if s != StateNotActive {
		t.reason = ReasonNone
	}
	t.state = s
	t.enteredAt = t.clk.Now()
}

func (t *Trainer) elapsed() time.Duration {
	return t.clk.Since(t.enteredAt)
}

func (t *Trainer) resetAttempts() {
	t.anAttempts = 0
	t.currAnAttempts = 0
	t.pgRcvFails = 0
	t.restartChecks = 0
	t.dummyTries = 0
	t.dummySent = false
}

// ValidateRemote 校验对端芯片身份与布线是否一致
func ValidateRemote(local, remote types.Identity) InactiveReason {
	if remote.BoardID == 0 {
		return ReasonBoardID
	}
	if local.SameShelf(remote) {
		switch {
		case local.SameChip(remote) && local.BoardID != remote.BoardID:
			return ReasonChipID
		case !local.SameChip(remote) && (local.BoardID == remote.BoardID || local.ChipDistance(remote) > 1):
			return ReasonChipID
		}
		return ReasonNone
	}
	if local.BoardType.IsNebula() && remote.BoardType.IsNebula() && local.Rack.X != remote.Rack.X {
		return ReasonRackID
	}
	dx := int(local.Rack.X) - int(remote.Rack.X)
	dy := int(local.Rack.Y) - int(remote.Rack.Y)
	if abs(dx)+abs(dy) != 1 {
		return ReasonShelfID
	}
	return ReasonNone
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
