package ratelimit

import "sync"

// breaker opens after failureThreshold consecutive store errors and closes
// again after successThreshold consecutive successes against the primary.
type breaker struct {
	mu               sync.Mutex
	open             bool
	failures         int
	successes        int
	failureThreshold int
	successThreshold int
}

func newBreaker(failureThreshold, successThreshold int) *breaker {
	return &breaker{failureThreshold: failureThreshold, successThreshold: successThreshold}
}

func (b *breaker) isOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// recordFailure reports whether the breaker is open afterwards.
func (b *breaker) recordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.successes = 0
	if b.failures >= b.failureThreshold {
		b.open = true
	}
	return b.open
}

// recordSuccess reports whether the breaker just closed.
func (b *breaker) recordSuccess() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		b.failures = 0
		return false
	}
	b.successes++
	if b.successes < b.successThreshold {
		return false
	}
	b.open = false
	b.failures = 0
	b.successes = 0
	return true
}
