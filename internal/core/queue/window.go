package queue

import "fmt"

// Window 出口信用窗口
//
// 镜像对端请求队列的指针：sent 为已发出的请求数（模 2N），
// remoteRd 为对端最近通告的读指针。未确认请求数不超过 budget，
// budget 不超过对端队列容量，因此对端队列永不溢出。
type Window struct {
	wrap     uint16
	capacity int
	budget   int
	sent     uint16
	remoteRd uint16
}

// NewWindow 创建窗口，capacity 为对端队列容量
func NewWindow(capacity, budget int) *Window {
	w := &Window{wrap: uint16(2 * capacity), capacity: capacity}
	w.SetBudget(budget)
	return w
}

// SetBudget 调整预算，限制在 [1, capacity]
func (w *Window) SetBudget(budget int) {
	if budget < 1 {
		budget = 1
	}
	if budget > w.capacity {
		budget = w.capacity
	}
	w.budget = budget
}

// Budget 当前预算
func (w *Window) Budget() int { return w.budget }

// Outstanding 对端尚未消费的请求数
func (w *Window) Outstanding() int {
	return Distance(w.sent, w.remoteRd, w.wrap)
}

// Available 是否还能发送一个请求
func (w *Window) Available() bool {
	return w.Outstanding() < w.budget
}

// Consume 记录一次发送
func (w *Window) Consume() error {
	if !w.Available() {
		return ErrFull
	}
	w.sent = (w.sent + 1) % w.wrap
	return nil
}

// Credit 处理对端通告的读指针
//
// 读指针只能在 [remoteRd, sent] 之间前进，否则是协议错误。
func (w *Window) Credit(rd uint16) error {
	if rd >= w.wrap {
		return fmt.Errorf("%w: read pointer %d out of range", ErrBadCredit, rd)
	}
	if Distance(rd, w.remoteRd, w.wrap) > w.Outstanding() {
		return fmt.Errorf("%w: read pointer %d beyond sent %d", ErrBadCredit, rd, w.sent)
	}
	w.remoteRd = rd
	return nil
}

// Reset 链路重训后清零
func (w *Window) Reset() {
	w.sent, w.remoteRd = 0, 0
}
