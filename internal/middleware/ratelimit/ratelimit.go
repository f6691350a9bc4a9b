// Package ratelimit provides a per-client request limiter keyed by IP.
package ratelimit

import (
	"sync"
	"time"
)

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

// window counts requests within a rolling minute.
type window struct {
	seen  time.Time
	count int
}

// Limiter tracks request counts per client.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	perMin   int
	interval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a new rate limiter
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config = DefaultConfig()
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	rl := &Limiter{
		windows:  make(map[string]*window),
		perMin:   config.RequestsPerMinute,
		interval: config.CleanupInterval,
		stop:     make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow reports whether a request from the given client fits the limit.
func (rl *Limiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w := rl.windows[clientIP]

	// First sighting, or the previous window aged out.
	if w == nil || now.Sub(w.seen) > time.Minute {
		rl.windows[clientIP] = &window{seen: now, count: 1}
		return true
	}

	w.count++
	w.seen = now
	return w.count <= rl.perMin
}

// sweep drops clients idle for more than 10 minutes.
func (rl *Limiter) sweep() {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-10 * time.Minute)
			for ip, w := range rl.windows {
				if w.seen.Before(cutoff) {
					delete(rl.windows, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// Stop halts the background sweep.
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stop)
	})
}
