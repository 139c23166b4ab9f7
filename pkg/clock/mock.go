package clock

import (
	"sync"
	"time"
)

// Mock is a Clock that only moves when told to. Advancing it fires any
// tickers and After channels whose deadlines fall inside the advanced
// window, in deadline order.
type Mock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
}

type waiter struct {
	at       time.Time
	ch       chan time.Time
	interval time.Duration // zero for one-shot After waiters
	stopped  bool
}

// NewMock returns a Mock frozen at start.
func NewMock(start time.Time) *Mock {
	return &Mock{now: start}
}

// Now returns the mock's current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Since returns the elapsed mock time since t.
func (m *Mock) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

// After returns a channel that fires once the mock has advanced past d.
func (m *Mock) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- m.now
		return ch
	}
	m.waiters = append(m.waiters, &waiter{at: m.now.Add(d), ch: ch})
	return ch
}

// NewTicker returns a Ticker that fires on mock advances. Like
// time.NewTicker it panics on a non-positive interval.
func (m *Mock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w := &waiter{at: m.now.Add(d), ch: make(chan time.Time, 1), interval: d}
	m.waiters = append(m.waiters, w)
	return &mockTicker{m: m, w: w}
}

// Advance moves the mock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(m.now.Add(d))
}

// Set moves the mock to t, delivering every deadline in (now, t] in order.
// Moving backwards only rewinds the reading; nothing fires.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(t)
}

func (m *Mock) setLocked(t time.Time) {
	for {
		next := m.nextDeadlineLocked(t)
		if next == nil {
			break
		}
		m.now = next.at
		select {
		case next.ch <- next.at:
		default: // receiver is behind, drop the tick like time.Ticker does
		}
		if next.interval > 0 {
			next.at = next.at.Add(next.interval)
		} else {
			next.stopped = true
		}
	}
	m.now = t
	m.compactLocked()
}

// nextDeadlineLocked returns the live waiter with the earliest deadline at
// or before limit, or nil if none is due.
func (m *Mock) nextDeadlineLocked(limit time.Time) *waiter {
	var due *waiter
	for _, w := range m.waiters {
		if w.stopped || w.at.After(limit) {
			continue
		}
		if due == nil || w.at.Before(due.at) {
			due = w
		}
	}
	return due
}

func (m *Mock) compactLocked() {
	live := m.waiters[:0]
	for _, w := range m.waiters {
		if !w.stopped {
			live = append(live, w)
		}
	}
	m.waiters = live
}

type mockTicker struct {
	m *Mock
	w *waiter
}

func (t *mockTicker) C() <-chan time.Time { return t.w.ch }

func (t *mockTicker) Stop() {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.w.stopped = true
}
