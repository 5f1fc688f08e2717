package services

import (
	"log/slog"
	"sync"
	"time"
)

// circuitBreaker opens after threshold consecutive failures and lets a call
// through again once cooldown has passed.
type circuitBreaker struct {
	name      string
	mu        sync.Mutex
	failures  int
	threshold int
	openedAt  time.Time
	cooldown  time.Duration
}

func newCircuitBreaker(name string, threshold int, cooldown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	return &circuitBreaker{name: name, threshold: threshold, cooldown: cooldown}
}

func (c *circuitBreaker) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures < c.threshold {
		return true
	}
	if time.Since(c.openedAt) > c.cooldown {
		c.failures = 0
		c.openedAt = time.Time{}
		slog.Info("circuit breaker half-open", "name", c.name)
		return true
	}
	return false
}

func (c *circuitBreaker) success() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
	c.openedAt = time.Time{}
}

func (c *circuitBreaker) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures == c.threshold {
		c.openedAt = time.Now()
		slog.Warn("circuit breaker open", "name", c.name, "failures", c.failures)
	}
}

func (c *circuitBreaker) state() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures < c.threshold {
		return "closed"
	}
	if time.Since(c.openedAt) > c.cooldown {
		return "half_open"
	}
	return "open"
}
