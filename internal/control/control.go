package control

import "time"

// Policy defines retry behavior at the model boundary.
type Policy struct {
	MaxRetries  int
	BackoffUnit time.Duration
}

// DefaultPolicy returns the default model-call policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  2,
		BackoffUnit: time.Second,
	}
}

// RetryBackoffSeconds computes exponential backoff with a fixed cap.
func RetryBackoffSeconds(attempt int) int {
	if attempt <= 0 {
		return 0
	}
	if attempt > 6 {
		return 30
	}
	seconds := 1 << (attempt - 1)
	if seconds > 30 {
		return 30
	}
	return seconds
}

// Backoff returns how long to wait after the given failed attempt, scaled by
// BackoffUnit (one second when unset).
func (p Policy) Backoff(attempt int) time.Duration {
	unit := p.BackoffUnit
	if unit <= 0 {
		unit = time.Second
	}
	return time.Duration(RetryBackoffSeconds(attempt)) * unit
}

// ShouldRetry returns whether a failed attempt should be retried.
func ShouldRetry(p Policy, attempts int) bool {
	return attempts <= p.MaxRetries
}
