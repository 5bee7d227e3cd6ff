// Package lifecycle 提供芯片节点的生命周期协调器
//
// 阶段依次为：
//   - Created：节点已创建
//   - LinkTraining：各端口链路训练
//   - Discovery：拓扑发现，交换层板表与机架表
//   - RoutingReady：路由表已构建，引擎开始调度
//   - Running：稳态运行
//   - Shutdown：已关闭
//
// 阶段只能前进；重新发现时通过 ResetTo 回到 Discovery，
// 之后阶段的信号重新打开。
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dep2p/go-fabric/pkg/lib/log"
)

var logger = log.Logger("core/lifecycle")

// ════════════════════════════════════════════════════════════════════════════
//                              阶段定义
// ════════════════════════════════════════════════════════════════════════════

// Phase 生命周期阶段
type Phase int

const (
	// PhaseCreated 节点已创建，未启动
	PhaseCreated Phase = iota
	// PhaseLinkTraining 链路训练中
	PhaseLinkTraining
	// PhaseDiscovery 拓扑发现中
	PhaseDiscovery
	// PhaseRoutingReady 路由表已就绪
	PhaseRoutingReady
	// PhaseRunning 稳态运行
	PhaseRunning
	// PhaseShutdown 已关闭
	PhaseShutdown
)

// String 返回阶段字符串表示
func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseLinkTraining:
		return "link-training"
	case PhaseDiscovery:
		return "discovery"
	case PhaseRoutingReady:
		return "routing-ready"
	case PhaseRunning:
		return "running"
	case PhaseShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

func (p Phase) valid() bool { return p >= PhaseCreated && p <= PhaseShutdown }

// ════════════════════════════════════════════════════════════════════════════
//                              协调器
// ════════════════════════════════════════════════════════════════════════════

// Coordinator 生命周期协调器
//
// 追踪当前阶段，提供阶段 gate（WaitFor）与变更通知。
type Coordinator struct {
	mu sync.RWMutex

	phase Phase

	// signals 已关闭的 channel 表示该阶段已到达
	signals map[Phase]chan struct{}

	onPhaseChange []func(old, new Phase)

	ctx    context.Context
	cancel context.CancelFunc
}

// NewCoordinator 创建生命周期协调器
func NewCoordinator() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		phase:   PhaseCreated,
		signals: make(map[Phase]chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	for p := PhaseCreated; p <= PhaseShutdown; p++ {
		c.signals[p] = make(chan struct{})
	}
	close(c.signals[PhaseCreated])
	return c
}

// Phase 返回当前阶段
func (c *Coordinator) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// AdvanceTo 推进到指定阶段
//
// 只能向前推进，中间阶段的信号一并完成。
func (c *Coordinator) AdvanceTo(target Phase) error {
	if !target.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPhase, int(target))
	}

	c.mu.Lock()
	if target < c.phase {
		cur := c.phase
		c.mu.Unlock()
		return fmt.Errorf("%w: current=%s target=%s", ErrBackwards, cur, target)
	}
	if target == c.phase {
		c.mu.Unlock()
		return nil
	}

	old := c.phase
	for p := old; p <= target; p++ {
		closeOnce(c.signals[p])
	}
	c.phase = target
	callbacks := c.callbacksLocked()
	c.mu.Unlock()

	logger.Info("生命周期阶段推进", "from", old.String(), "to", target.String())
	c.notify(callbacks, old, target)
	return nil
}

// ResetTo 回退到 Discovery 或更早的阶段，用于重新发现
//
// 目标之后的阶段信号重新打开，等待者会再次阻塞直到重新到达。
// 已关闭的节点不能回退。
func (c *Coordinator) ResetTo(target Phase) error {
	if !target.valid() || target > PhaseDiscovery {
		return fmt.Errorf("%w: reset to %s", ErrInvalidPhase, target)
	}

	c.mu.Lock()
	if c.phase == PhaseShutdown {
		c.mu.Unlock()
		return ErrShutdown
	}
	old := c.phase
	if target >= old {
		c.mu.Unlock()
		return c.AdvanceTo(target)
	}
	for p := target + 1; p <= PhaseShutdown; p++ {
		select {
		case <-c.signals[p]:
			c.signals[p] = make(chan struct{})
		default:
		}
	}
	c.phase = target
	callbacks := c.callbacksLocked()
	c.mu.Unlock()

	logger.Info("生命周期阶段回退", "from", old.String(), "to", target.String())
	c.notify(callbacks, old, target)
	return nil
}

// callbacksLocked 复制回调列表，调用方持有锁
func (c *Coordinator) callbacksLocked() []func(old, new Phase) {
	callbacks := make([]func(old, new Phase), len(c.onPhaseChange))
	copy(callbacks, c.onPhaseChange)
	return callbacks
}

// notify 同步调用回调，回调不应阻塞
func (c *Coordinator) notify(callbacks []func(old, new Phase), old, target Phase) {
	for _, cb := range callbacks {
		cb(old, target)
	}
}

func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// WaitFor 等待到达指定阶段
//
// 阻塞直到目标阶段到达、上下文取消或协调器停止。
func (c *Coordinator) WaitFor(ctx context.Context, phase Phase) error {
	if !phase.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPhase, int(phase))
	}
	c.mu.RLock()
	ch := c.signals[phase]
	c.mu.RUnlock()

	select {
	case <-ch:
		return nil
	default:
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrShutdown
	}
}

// WaitForWithTimeout 带超时等待
func (c *Coordinator) WaitForWithTimeout(phase Phase, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.WaitFor(ctx, phase)
}

// Reached 是否已到达指定阶段
func (c *Coordinator) Reached(phase Phase) bool {
	if !phase.valid() {
		return false
	}
	c.mu.RLock()
	ch := c.signals[phase]
	c.mu.RUnlock()
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// OnPhaseChange 注册阶段变更回调
func (c *Coordinator) OnPhaseChange(callback func(old, new Phase)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPhaseChange = append(c.onPhaseChange, callback)
}

// Stop 推进到 Shutdown 并唤醒所有等待者
func (c *Coordinator) Stop() {
	_ = c.AdvanceTo(PhaseShutdown)
	c.cancel()
}

// Context 协调器上下文，Stop 后取消
func (c *Coordinator) Context() context.Context {
	return c.ctx
}
