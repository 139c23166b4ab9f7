package relay

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when a delivery is suppressed because the
// target host's breaker is open.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerState represents the state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed allows deliveries through.
	BreakerClosed BreakerState = iota
	// BreakerOpen suppresses all deliveries.
	BreakerOpen
	// BreakerHalfOpen allows limited deliveries to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int
	// SuccessThreshold is the number of successes in half-open to close.
	SuccessThreshold int
	// OpenFor is how long the breaker stays open before probing again.
	OpenFor time.Duration
	// MaxProbes is the max concurrent deliveries allowed in half-open state.
	MaxProbes int
	// OnStateChange is called whenever the breaker state changes (optional).
	OnStateChange func(host string, from, to BreakerState)
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenFor:          30 * time.Second,
		MaxProbes:        1,
	}
}

// Breaker guards deliveries to a single engine host.
type Breaker struct {
	mu     sync.RWMutex
	config *BreakerConfig
	host   string

	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
	probes      int
}

// NewBreaker creates a breaker for host with the given config.
func NewBreaker(host string, config *BreakerConfig) *Breaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	return &Breaker{
		config: config,
		host:   host,
		state:  BreakerClosed,
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.currentState()
}

// currentState returns the state, checking for timeout transitions.
// Must be called with at least a read lock held.
func (b *Breaker) currentState() BreakerState {
	if b.state == BreakerOpen && time.Since(b.lastFailure) > b.config.OpenFor {
		return BreakerHalfOpen
	}
	return b.state
}

// Allow reports whether a delivery should be attempted.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case BreakerClosed:
		return true
	case BreakerHalfOpen:
		if b.probes < b.config.MaxProbes {
			b.probes++
			return true
		}
	}
	return false
}

// RecordSuccess records a successful delivery.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch state := b.currentState(); state {
	case BreakerHalfOpen:
		b.successes++
		b.probes--
		if b.successes >= b.config.SuccessThreshold {
			b.transition(state, BreakerClosed)
		}
	case BreakerClosed:
		b.failures = 0
	}
}

// RecordFailure records a failed delivery.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch state := b.currentState(); state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transition(state, BreakerOpen)
		}
	case BreakerHalfOpen:
		b.probes--
		b.transition(state, BreakerOpen)
	}
}

// transition changes the breaker state. Must be called with the lock held.
func (b *Breaker) transition(from, to BreakerState) {
	if from == to {
		return
	}

	b.state = to
	b.failures = 0
	b.successes = 0
	b.probes = 0
	if to == BreakerOpen {
		b.lastFailure = time.Now()
	}

	if b.config.OnStateChange != nil {
		// Outside the lock to avoid re-entrant deadlocks.
		go b.config.OnStateChange(b.host, from, to)
	}
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(b.currentState(), BreakerClosed)
}

// BreakerRegistry manages one breaker per engine host.
type BreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	config   *BreakerConfig
}

// NewBreakerRegistry creates a registry with the given default config.
func NewBreakerRegistry(config *BreakerConfig) *BreakerRegistry {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	return &BreakerRegistry{
		breakers: make(map[string]*Breaker),
		config:   config,
	}
}

// Get returns the breaker for host, creating it on first use.
func (r *BreakerRegistry) Get(host string) *Breaker {
	r.mu.RLock()
	b, exists := r.breakers[host]
	r.mu.RUnlock()
	if exists {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, exists = r.breakers[host]; exists {
		return b
	}
	b = NewBreaker(host, r.config)
	r.breakers[host] = b
	return b
}

// States returns the current state of every known breaker.
func (r *BreakerRegistry) States() map[string]BreakerState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[string]BreakerState, len(r.breakers))
	for host, b := range r.breakers {
		states[host] = b.State()
	}
	return states
}

// ResetAll resets every breaker to closed.
func (r *BreakerRegistry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}
