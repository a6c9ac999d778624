package service

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"familytalk/internal/models"
	"familytalk/internal/signal"
)

func strPtr(s string) *string { return &s }

func TestCallStartRinging(t *testing.T) {
	env := newTestEnv(t)
	parent, _, child := env.seedFamily(t, "mom@example.com", "Alice")

	call, err := env.calls.Start(principalOf(parent), child.ID, "offer-sdp")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if call.Status != models.CallRinging {
		t.Errorf("status = %v, want ringing", call.Status)
	}
	if call.Version != 0 {
		t.Errorf("initial version = %d, want 0", call.Version)
	}
	if call.CallerType != models.CallerAdult {
		t.Errorf("caller type = %v, want adult", call.CallerType)
	}
	if call.AdultID != parent.ID || call.ChildID != child.ID {
		t.Errorf("endpoints = (%d, %d)", call.AdultID, call.ChildID)
	}
}

func TestChildInitiatedCall(t *testing.T) {
	env := newTestEnv(t)
	parent, _, child := env.seedFamily(t, "mom@example.com", "Alice")

	call, err := env.calls.Start(childPrincipal(child), parent.ID, "offer-sdp")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if call.CallerType != models.CallerChild {
		t.Errorf("caller type = %v, want child", call.CallerType)
	}

	// The adult is the callee, so the call shows up as incoming for it
	incoming, err := env.calls.Incoming(principalOf(parent))
	if err != nil {
		t.Fatalf("Incoming failed: %v", err)
	}
	if len(incoming) != 1 || incoming[0].ID != call.ID {
		t.Errorf("incoming = %v, want the started call", incoming)
	}

	// Not incoming for the initiating child
	fromChild, err := env.calls.Incoming(childPrincipal(child))
	if err != nil {
		t.Fatalf("Incoming for caller failed: %v", err)
	}
	if len(fromChild) != 0 {
		t.Errorf("caller sees its own call as incoming: %v", fromChild)
	}
}

func TestCrossFamilyCallDenied(t *testing.T) {
	env := newTestEnv(t)
	parentA, _, _ := env.seedFamily(t, "mom-a@example.com", "Alice")
	_, _, childB := env.seedFamily(t, "mom-b@example.com", "Bob")

	if _, err := env.calls.Start(principalOf(parentA), childB.ID, "offer"); !errors.Is(err, ErrDenied) {
		t.Errorf("cross-family call: err = %v, want ErrDenied", err)
	}
}

func TestCallAnswerFlow(t *testing.T) {
	env := newTestEnv(t)
	parent, _, child := env.seedFamily(t, "mom@example.com", "Alice")

	call, err := env.calls.Start(principalOf(parent), child.ID, "offer-sdp")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	answered, err := env.calls.Update(childPrincipal(child), call.ID, 0, signal.Patch{Answer: strPtr("answer-sdp")})
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if answered.Status != models.CallActive {
		t.Errorf("status = %v, want active", answered.Status)
	}
	if answered.Version != 1 {
		t.Errorf("version after answer = %d, want 1", answered.Version)
	}

	ended, err := env.calls.Update(principalOf(parent), call.ID, 1, signal.Patch{End: &signal.End{Reason: models.EndHangup}})
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if ended.Status != models.CallEnded || ended.Missed {
		t.Errorf("ended = %v missed = %v, want ended and not missed", ended.Status, ended.Missed)
	}
	if ended.EndedBy != "adult" {
		t.Errorf("ended_by = %q, want adult", ended.EndedBy)
	}
	if ended.Version != 2 {
		t.Errorf("version after end = %d, want 2", ended.Version)
	}
}

func TestStaleVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	parent, _, child := env.seedFamily(t, "mom@example.com", "Alice")

	call, err := env.calls.Start(principalOf(parent), child.ID, "offer-sdp")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := env.calls.Update(principalOf(parent), call.ID, 0, signal.Patch{Candidates: []string{"a1"}}); err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	// The child still holds version 0; its write must lose, not apply
	_, err = env.calls.Update(childPrincipal(child), call.ID, 0, signal.Patch{Answer: strPtr("late")})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale update: err = %v, want ErrVersionConflict", err)
	}

	// Re-read and resubmit at the current version succeeds
	current, err := env.calls.Get(childPrincipal(child), call.ID)
	if err != nil {
		t.Fatalf("re-read failed: %v", err)
	}
	if _, err := env.calls.Update(childPrincipal(child), call.ID, current.Version, signal.Patch{Answer: strPtr("answer")}); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
}

func TestConcurrentUpdatesOnlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	parent, _, child := env.seedFamily(t, "mom@example.com", "Alice")

	call, err := env.calls.Start(principalOf(parent), child.ID, "offer-sdp")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	const workers = 6
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := env.calls.Update(principalOf(parent), call.ID, 0, signal.Patch{Candidates: []string{"cand"}})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrVersionConflict):
				conflicts.Add(1)
			default:
				t.Errorf("worker %d: unexpected error %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("wins = %d, want exactly 1", wins.Load())
	}
	if conflicts.Load() != workers-1 {
		t.Errorf("conflicts = %d, want %d", conflicts.Load(), workers-1)
	}

	final, err := env.calls.Get(principalOf(parent), call.ID)
	if err != nil {
		t.Fatalf("final read failed: %v", err)
	}
	if final.Version != 1 {
		t.Errorf("final version = %d, want 1", final.Version)
	}
	if len(final.AdultCandidates) != 1 {
		t.Errorf("adult candidates = %v, want one entry", final.AdultCandidates)
	}
}

func TestEndWhileRingingIsMissed(t *testing.T) {
	env := newTestEnv(t)
	parent, _, child := env.seedFamily(t, "mom@example.com", "Alice")

	call, err := env.calls.Start(principalOf(parent), child.ID, "offer-sdp")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ended, err := env.calls.Update(childPrincipal(child), call.ID, 0, signal.Patch{End: &signal.End{Reason: models.EndDeclined}})
	if err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	if !ended.Missed {
		t.Error("declined ringing call should be missed")
	}
	if ended.EndReason != models.EndDeclined {
		t.Errorf("end reason = %v, want declined", ended.EndReason)
	}
}

func TestCallAccessDeniedForOutsiders(t *testing.T) {
	env := newTestEnv(t)
	parent, _, child := env.seedFamily(t, "mom@example.com", "Alice")
	grandma := env.seedFamilyMember(t, parent, "grandma@example.com")

	call, err := env.calls.Start(principalOf(parent), child.ID, "offer-sdp")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := env.calls.Get(principalOf(grandma), call.ID); !errors.Is(err, ErrDenied) {
		t.Errorf("Get by non-endpoint: err = %v, want ErrDenied", err)
	}
	if _, err := env.calls.Update(principalOf(grandma), call.ID, 0, signal.Patch{Candidates: []string{"x"}}); !errors.Is(err, ErrDenied) {
		t.Errorf("Update by non-endpoint: err = %v, want ErrDenied", err)
	}
}

func TestSweepStaleRinging(t *testing.T) {
	env := newTestEnv(t)
	parent, _, child := env.seedFamily(t, "mom@example.com", "Alice")

	call, err := env.calls.Start(principalOf(parent), child.ID, "offer-sdp")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Age the call past the ring timeout
	if _, err := env.db.Exec("UPDATE calls SET created_at = ? WHERE id = ?", time.Now().Add(-5*time.Minute), call.ID); err != nil {
		t.Fatalf("failed to age call: %v", err)
	}

	swept, err := env.calls.SweepStaleRinging()
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	ended, err := env.calls.Get(principalOf(parent), call.ID)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if ended.Status != models.CallEnded || !ended.Missed {
		t.Errorf("swept call: status %v missed %v", ended.Status, ended.Missed)
	}
	if ended.EndedBy != models.EndedBySystem {
		t.Errorf("ended_by = %q, want system", ended.EndedBy)
	}
	if ended.EndReason != models.EndMissed {
		t.Errorf("end reason = %v, want missed", ended.EndReason)
	}
}

func TestSweepLeavesFreshAndActiveCalls(t *testing.T) {
	env := newTestEnv(t)
	parent, _, child := env.seedFamily(t, "mom@example.com", "Alice")

	fresh, err := env.calls.Start(principalOf(parent), child.ID, "offer-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	swept, err := env.calls.SweepStaleRinging()
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if swept != 0 {
		t.Errorf("swept fresh ringing call")
	}

	got, err := env.calls.Get(principalOf(parent), fresh.ID)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Status != models.CallRinging {
		t.Errorf("fresh call status = %v, want ringing", got.Status)
	}
}

func TestCandidateCleanupPreservesCallState(t *testing.T) {
	env := newTestEnv(t)
	parent, _, child := env.seedFamily(t, "mom@example.com", "Alice")

	call, err := env.calls.Start(principalOf(parent), child.ID, "offer-sdp")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := env.calls.Update(principalOf(parent), call.ID, 0, signal.Patch{Candidates: []string{"a1", "a2"}}); err != nil {
		t.Fatalf("candidates failed: %v", err)
	}
	ended, err := env.calls.Update(childPrincipal(child), call.ID, 1, signal.Patch{End: &signal.End{Reason: models.EndHangup}})
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}

	// Age the end past the retention period
	if _, err := env.db.Exec("UPDATE calls SET ended_at = ? WHERE id = ?", time.Now().Add(-2*time.Hour), call.ID); err != nil {
		t.Fatalf("failed to age ended call: %v", err)
	}

	cleared, err := env.calls.CleanupEndedCandidates()
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("cleared = %d, want 1", cleared)
	}

	after, err := env.calls.Get(principalOf(parent), call.ID)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(after.AdultCandidates) != 0 || len(after.ChildCandidates) != 0 {
		t.Errorf("candidates not cleared: %v / %v", after.AdultCandidates, after.ChildCandidates)
	}
	// Cleanup reclaims space only; the record's history stays intact
	if after.Status != models.CallEnded || after.Version != ended.Version {
		t.Errorf("cleanup changed state: status %v version %d", after.Status, after.Version)
	}
	if after.EndedAt == nil {
		t.Error("cleanup dropped ended_at")
	}
}
