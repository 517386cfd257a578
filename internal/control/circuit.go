package control

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects new work.
var ErrCircuitOpen = errors.New("circuit open: model provider temporarily unavailable")

type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitBreaker is a minimal per-error-class breaker, safe for concurrent use.
type CircuitBreaker struct {
	Threshold int
	Cooldown  time.Duration

	mu          sync.Mutex
	state       CircuitState
	failures    map[string]int
	openedAt    time.Time
	openedClass string

	// A half-open breaker admits one trial call at a time. A trial that
	// never reports back is given up after Cooldown.
	trialActive bool
	trialAt     time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		Threshold: threshold,
		Cooldown:  cooldown,
		state:     CircuitClosed,
		failures:  map[string]int{},
	}
}

func (c *CircuitBreaker) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Allow returns whether new work is allowed at this instant. An open breaker
// moves to half-open once the cooldown has elapsed. While half-open only one
// caller is let through until it reports via RecordSuccess, RecordFailure or
// Release.
func (c *CircuitBreaker) Allow(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case CircuitOpen:
		if now.Sub(c.openedAt) < c.Cooldown {
			return false
		}
		c.state = CircuitHalfOpen
	case CircuitHalfOpen:
		if c.trialActive && now.Sub(c.trialAt) < c.Cooldown {
			return false
		}
	default:
		return true
	}
	c.trialActive = true
	c.trialAt = now
	return true
}

// Release gives up an admitted half-open trial without a verdict, letting
// the next caller try.
func (c *CircuitBreaker) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trialActive = false
}

// RecordSuccess closes the breaker and returns the state it left.
func (c *CircuitBreaker) RecordSuccess() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state
	c.state = CircuitClosed
	c.trialActive = false
	c.openedClass = ""
	c.failures = map[string]int{}
	return prev
}

// RecordFailure updates state after an error in the given class and reports
// whether this failure opened the breaker.
func (c *CircuitBreaker) RecordFailure(errClass string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if errClass == "" {
		errClass = "unknown"
	}
	prev := c.state
	if c.state == CircuitHalfOpen {
		c.open(errClass, now)
		return true
	}
	c.failures[errClass]++
	if c.failures[errClass] >= c.Threshold {
		c.open(errClass, now)
	}
	return prev != CircuitOpen && c.state == CircuitOpen
}

func (c *CircuitBreaker) open(errClass string, now time.Time) {
	c.state = CircuitOpen
	c.trialActive = false
	c.openedAt = now
	c.openedClass = errClass
}

func (c *CircuitBreaker) OpenedClass() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openedClass
}
