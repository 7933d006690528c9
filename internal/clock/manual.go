package clock

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Manual is a Clock that only moves when Advance is called. Callbacks whose
// deadline is reached run synchronously on the goroutine calling Advance, in
// deadline order.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending []*manualTimer
}

type manualTimer struct {
	clock    *Manual
	deadline time.Time
	seq      uint64
	f        func()
	stopped  bool
	fired    bool
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTimer{clock: m, deadline: m.now.Add(d), seq: m.seq, f: f}
	m.pending = append(m.pending, t)
	return t
}

// Advance moves the clock forward by d, firing every callback that comes due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		t.f()
	}

	m.mu.Lock()
	if target.After(m.now) {
		m.now = target
	}
	m.mu.Unlock()
}

// Sleep advances the clock by d instead of blocking, firing whatever comes
// due. It may be called from inside a callback.
func (m *Manual) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Advance(d)
	return nil
}

// Pending reports how many callbacks are scheduled and not yet fired or stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Manual) nextDue(target time.Time) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return nil
	}

	sort.SliceStable(m.pending, func(i, j int) bool {
		if m.pending[i].deadline.Equal(m.pending[j].deadline) {
			return m.pending[i].seq < m.pending[j].seq
		}
		return m.pending[i].deadline.Before(m.pending[j].deadline)
	})

	t := m.pending[0]
	if t.deadline.After(target) {
		return nil
	}

	m.pending = m.pending[1:]
	t.fired = true
	if t.deadline.After(m.now) {
		m.now = t.deadline
	}
	return t
}

func (t *manualTimer) Stop() bool {
	m := t.clock
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true

	for i, p := range m.pending {
		if p == t {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			break
		}
	}
	return true
}
