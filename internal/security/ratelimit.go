package security

import (
	"sync"
	"time"
)

// FailureLimiter counts failed attempts per key (source address) in a
// sliding window. Once the limit is reached further attempts are
// rejected regardless of whether the submitted credential would have
// been correct, so an attacker cannot use the limiter as an oracle.
type FailureLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewFailureLimiter creates a limiter allowing up to limit failures per
// key within the window.
func NewFailureLimiter(limit int, window time.Duration) *FailureLimiter {
	fl := &FailureLimiter{
		failures: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
	go fl.cleanup()
	return fl
}

// Allow reports whether an attempt from key should be processed at all.
func (fl *FailureLimiter) Allow(key string) bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return len(fl.recent(key)) < fl.limit
}

// RecordFailure notes one failed attempt from key.
func (fl *FailureLimiter) RecordFailure(key string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.failures[key] = append(fl.recent(key), fl.now())
}

// recent prunes entries older than the window. Caller holds the lock.
func (fl *FailureLimiter) recent(key string) []time.Time {
	cutoff := fl.now().Add(-fl.window)
	kept := fl.failures[key][:0]
	for _, t := range fl.failures[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(fl.failures, key)
		return nil
	}
	fl.failures[key] = kept
	return kept
}

// cleanup periodically drops keys whose failures have all aged out
func (fl *FailureLimiter) cleanup() {
	ticker := time.NewTicker(fl.window)
	defer ticker.Stop()

	for range ticker.C {
		fl.mu.Lock()
		for key := range fl.failures {
			fl.recent(key)
		}
		fl.mu.Unlock()
	}
}
