package resilience

import (
	"errors"
	"sync"
	"time"
)

// RateLimitError marks a provider 429. The retry and breaker wrappers key
// off this type: it is what counts toward opening the breaker.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e RateLimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "rate limit"
}

// IsRateLimit reports whether err is or wraps a RateLimitError.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}

// CircuitBreaker opens after threshold consecutive rate limit errors and
// denies requests for one cooldown. Once the cooldown lapses requests
// flow again, but the strike count is kept: a single further rate limit
// re-opens immediately, and only a success clears it.
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration

	mu        sync.Mutex
	strikes   int
	openUntil time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown}
}

// Allow reports whether a request may proceed right now.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !time.Now().Before(c.openUntil)
}

// OnSuccess closes the breaker and clears the strike count.
func (c *CircuitBreaker) OnSuccess() {
	c.mu.Lock()
	c.strikes = 0
	c.openUntil = time.Time{}
	c.mu.Unlock()
}

// OnError counts rate limit errors toward opening. Other failures leave
// the breaker untouched.
func (c *CircuitBreaker) OnError(err error) {
	if !IsRateLimit(err) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strikes++
	if c.strikes >= c.threshold {
		c.openUntil = time.Now().Add(c.cooldown)
	}
}
