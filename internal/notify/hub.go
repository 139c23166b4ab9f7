// Package notify is the in-process notice center: fetch failures, abort
// outcomes, and relay results are published here and fanned out to
// subscribers (the console view, the CLI watch loop). Delivery is
// non-blocking; a slow subscriber drops notices rather than stalling
// the publisher.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/logware/soar/pkg/clock"
)

// Severity grades a notice.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Notice is one transient notification.
type Notice struct {
	ID       string    `json:"id"`
	Severity Severity  `json:"severity"`
	Source   string    `json:"source"`
	Title    string    `json:"title"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
}

// DefaultCapacity is the number of recent notices retained when no
// explicit capacity is given.
const DefaultCapacity = 256

// Center retains a bounded ring of recent notices and fans new ones
// out to subscribers.
type Center struct {
	clock clock.Clock

	mu     sync.RWMutex
	ring   []Notice
	start  int
	count  int
	subs   map[int]chan Notice
	nextID int
}

// NewCenter creates a notice center retaining up to capacity notices.
func NewCenter(capacity int, clk clock.Clock) *Center {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Center{
		clock: clk,
		ring:  make([]Notice, capacity),
		subs:  make(map[int]chan Notice),
	}
}

// Publish records a notice and delivers it to all subscribers. A zero
// ID and Time are filled in.
func (c *Center) Publish(n Notice) Notice {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Time.IsZero() {
		n.Time = c.clock.Now()
	}

	c.mu.Lock()
	idx := (c.start + c.count) % len(c.ring)
	if c.count == len(c.ring) {
		// Ring is full: overwrite the oldest.
		c.start = (c.start + 1) % len(c.ring)
		idx = (c.start + c.count - 1) % len(c.ring)
	} else {
		c.count++
	}
	c.ring[idx] = n

	for _, ch := range c.subs {
		select {
		case ch <- n:
		default: // subscriber is behind, drop for them
		}
	}
	c.mu.Unlock()

	return n
}

// Recent returns up to limit of the most recent notices, newest first.
// A non-positive limit returns everything retained.
func (c *Center) Recent(limit int) []Notice {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := c.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Notice, n)
	for i := 0; i < n; i++ {
		// Walk backwards from the newest entry.
		idx := (c.start + c.count - 1 - i + len(c.ring)) % len(c.ring)
		out[i] = c.ring[idx]
	}
	return out
}

// Subscribe registers a listener. The returned cancel function must be
// called to release it; after cancel the channel is closed.
func (c *Center) Subscribe() (<-chan Notice, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan Notice, 16)
	c.subs[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Infof publishes an info notice from source.
func (c *Center) Infof(source, title, message string) {
	c.Publish(Notice{Severity: SeverityInfo, Source: source, Title: title, Message: message})
}

// Warnf publishes a warning notice from source.
func (c *Center) Warnf(source, title, message string) {
	c.Publish(Notice{Severity: SeverityWarning, Source: source, Title: title, Message: message})
}

// Errorf publishes an error notice from source.
func (c *Center) Errorf(source, title, message string) {
	c.Publish(Notice{Severity: SeverityError, Source: source, Title: title, Message: message})
}
