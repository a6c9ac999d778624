package security

import (
	"testing"
	"time"
)

// newTestLimiter builds a limiter with a controllable clock and no
// cleanup goroutine
func newTestLimiter(limit int, window time.Duration, now *time.Time) *FailureLimiter {
	return &FailureLimiter{
		failures: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      func() time.Time { return *now },
	}
}

func TestFailureLimiterBlocksAtLimit(t *testing.T) {
	now := time.Now()
	fl := newTestLimiter(3, time.Hour, &now)

	for i := 0; i < 3; i++ {
		if !fl.Allow("1.2.3.4") {
			t.Fatalf("attempt %d blocked before limit reached", i)
		}
		fl.RecordFailure("1.2.3.4")
	}

	if fl.Allow("1.2.3.4") {
		t.Error("allowed after reaching failure limit")
	}
}

func TestFailureLimiterWindowSlides(t *testing.T) {
	now := time.Now()
	fl := newTestLimiter(2, time.Hour, &now)

	fl.RecordFailure("k")
	fl.RecordFailure("k")
	if fl.Allow("k") {
		t.Fatal("allowed at limit")
	}

	now = now.Add(61 * time.Minute)
	if !fl.Allow("k") {
		t.Error("still blocked after window passed")
	}
}

func TestFailureLimiterKeysAreIndependent(t *testing.T) {
	now := time.Now()
	fl := newTestLimiter(1, time.Hour, &now)

	fl.RecordFailure("a")
	if fl.Allow("a") {
		t.Error("key a should be blocked")
	}
	if !fl.Allow("b") {
		t.Error("key b should be unaffected")
	}
}

func TestFailureLimiterPartialExpiry(t *testing.T) {
	now := time.Now()
	fl := newTestLimiter(3, time.Hour, &now)

	fl.RecordFailure("k")
	now = now.Add(40 * time.Minute)
	fl.RecordFailure("k")
	fl.RecordFailure("k")
	if fl.Allow("k") {
		t.Fatal("allowed at limit")
	}

	// First failure ages out, the later two remain
	now = now.Add(25 * time.Minute)
	if !fl.Allow("k") {
		t.Error("blocked although only two failures remain in window")
	}
}
