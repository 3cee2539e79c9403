package resilience

import (
	"sync"
	"time"
)

// BreakerState is the current circuit breaker state.
type BreakerState int32

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	RecoveryTimeout  time.Duration // wait before probing a half-open circuit
	SuccessThreshold int           // successes needed to close again
}

// Breaker guards an upstream source against cascading failure.
type Breaker struct {
	config BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	nextAttempt time.Time
}

// NewBreaker creates a circuit breaker, filling zero thresholds with
// defaults.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}
	return &Breaker{config: config, state: StateClosed}
}

// BreakerOpenError is returned while the circuit refuses calls.
type BreakerOpenError struct {
	RetryAt time.Time
}

func (e *BreakerOpenError) Error() string {
	return "circuit breaker is open"
}

// Call executes fn under breaker protection.
func (b *Breaker) Call(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := fn()
	b.after(err == nil)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Now().Before(b.nextAttempt) {
			return &BreakerOpenError{RetryAt: b.nextAttempt}
		}
		b.state = StateHalfOpen
		b.successes = 0
	}
	return nil
}

func (b *Breaker) after(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !success {
		b.failures++
		b.successes = 0
		if b.failures >= b.config.FailureThreshold || b.state == StateHalfOpen {
			b.state = StateOpen
			b.nextAttempt = time.Now().Add(b.config.RecoveryTimeout)
		}
		return
	}

	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = StateClosed
		}
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot for the health endpoint.
func (b *Breaker) Stats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]interface{}{
		"state":    b.state.String(),
		"failures": b.failures,
	}
}
