package link

import (
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-fabric/pkg/interfaces"
	"github.com/dep2p/go-fabric/pkg/types"
)

// Event 端口对外状态变化
type Event struct {
	Port   int
	From   State
	To     State
	Reason InactiveReason
}

// PortStatus 端口状态快照
type PortStatus struct {
	Port       int            `json:"port"`
	State      State          `json:"-"`
	StateName  string         `json:"state"`
	TrainState string         `json:"train_state"`
	Reason     InactiveReason `json:"-"`
	ReasonName string         `json:"reason,omitempty"`
	Remote     types.Identity `json:"-"`
	RemoteName string         `json:"remote,omitempty"`
	Retrains   int            `json:"retrains"`
}

// Manager 管理本芯片所有端口的训练器
//
// 非并发安全，由节点的轮询循环独占调用。
type Manager struct {
	cfg      Config
	local    types.Identity
	trainers []*Trainer
	last     []State
	onEvent  []func(Event)
}

// NewManager 为每个 PHY 创建一个训练器
func NewManager(cfg Config, local types.Identity, phys []interfaces.PHY, clk clock.Clock) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(phys) != cfg.NumPorts {
		return nil, fmt.Errorf("%w: %d phys for %d ports", ErrPortCount, len(phys), cfg.NumPorts)
	}
	if clk == nil {
		clk = clock.New()
	}

	m := &Manager{
		cfg:      cfg,
		local:    local,
		trainers: make([]*Trainer, len(phys)),
		last:     make([]State, len(phys)),
	}
	for p, phy := range phys {
		m.trainers[p] = NewTrainer(p, &m.cfg, phy, local, clk)
		m.last[p] = m.trainers[p].State()
	}
	return m, nil
}

// NumPorts 端口数
func (m *Manager) NumPorts() int { return len(m.trainers) }

// OnEvent 注册状态变化回调
func (m *Manager) OnEvent(fn func(Event)) {
	m.onEvent = append(m.onEvent, fn)
}

// Poll 推进所有端口一步并做健康采样，返回对外状态变化
func (m *Manager) Poll() []Event {
	var events []Event
	for p, t := range m.trainers {
		t.Poll()
		t.CheckHealth()

		cur := t.State()
		if cur == m.last[p] {
			continue
		}
		ev := Event{Port: p, From: m.last[p], To: cur, Reason: t.Reason()}
		m.last[p] = cur
		events = append(events, ev)
		for _, fn := range m.onEvent {
			fn(ev)
		}
	}
	return events
}

// AllTerminal 所有端口的初始训练是否都已结束
func (m *Manager) AllTerminal() bool {
	for _, t := range m.trainers {
		if !t.Terminal() {
			return false
		}
	}
	return true
}

// Trainer 返回端口训练器
func (m *Manager) Trainer(port int) (*Trainer, error) {
	if port < 0 || port >= len(m.trainers) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	return m.trainers[port], nil
}

// Err 端口训练结果：已激活或仍在训练返回 nil，训练结束未激活返回 ErrNotActive
func (m *Manager) Err(port int) error {
	t, err := m.Trainer(port)
	if err != nil {
		return err
	}
	if t.Terminal() && !t.Up() {
		return fmt.Errorf("%w: port %d: %s", ErrNotActive, port, t.Reason())
	}
	return nil
}

// Up 端口链路是否可用
func (m *Manager) Up(port int) bool {
	if port < 0 || port >= len(m.trainers) {
		return false
	}
	return m.trainers[port].Up()
}

// Remote 端口对端身份
func (m *Manager) Remote(port int) (types.Identity, bool) {
	if port < 0 || port >= len(m.trainers) {
		return types.Identity{}, false
	}
	return m.trainers[port].Remote()
}

// State 端口对外状态
func (m *Manager) State(port int) State {
	if port < 0 || port >= len(m.trainers) {
		return LinkDown
	}
	return m.trainers[port].State()
}

// Reason 端口未激活原因
func (m *Manager) Reason(port int) InactiveReason {
	if port < 0 || port >= len(m.trainers) {
		return ReasonNone
	}
	return m.trainers[port].Reason()
}

// UpPorts 返回所有可用端口
func (m *Manager) UpPorts() []int {
	var ports []int
	for p, t := range m.trainers {
		if t.Up() {
			ports = append(ports, p)
		}
	}
	return ports
}

// Snapshot 所有端口的状态快照
func (m *Manager) Snapshot() []PortStatus {
	out := make([]PortStatus, len(m.trainers))
	for p, t := range m.trainers {
		st := PortStatus{
			Port:       p,
			State:      t.State(),
			StateName:  t.State().String(),
			TrainState: t.TrainState().String(),
			Reason:     t.Reason(),
			Retrains:   t.Retrains(),
		}
		if st.Reason != ReasonNone {
			st.ReasonName = st.Reason.String()
		}
		if id, ok := t.Remote(); ok {
			st.Remote = id
			st.RemoteName = id.String()
		}
		out[p] = st
	}
	return out
}
