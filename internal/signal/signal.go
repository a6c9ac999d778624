// Package signal implements the call signaling state machine:
// ringing -> active -> ended, with ringing -> ended inferred as a missed
// call. The transition rules are pure; persistence and the optimistic
// version guard live in the call service.
package signal

import (
	"errors"
	"time"

	"familytalk/internal/models"
)

var (
	// ErrTerminal means the call is ended and no field may change.
	ErrTerminal = errors.New("call already ended")

	// ErrNotRinging means an answer arrived for a call that is not ringing.
	ErrNotRinging = errors.New("call is not ringing")

	// ErrCallerCannotAnswer means the initiating side tried to answer
	// its own call.
	ErrCallerCannotAnswer = errors.New("caller cannot answer own call")

	// ErrEmptyPatch means the update carried no changes.
	ErrEmptyPatch = errors.New("empty call patch")

	// ErrInvalidReason means the end reason is not a known variant.
	ErrInvalidReason = errors.New("invalid end reason")
)

// End requests the terminal transition.
type End struct {
	Reason models.EndReason `json:"reason"`
}

// Patch is one endpoint's requested update to the shared call record.
// Candidates are additive; Answer moves ringing -> active; End is
// terminal. A single patch may combine candidates with an answer or an
// end.
type Patch struct {
	Answer     *string  `json:"answer,omitempty"`
	Candidates []string `json:"add_candidates,omitempty"`
	End        *End     `json:"end,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Answer == nil && len(p.Candidates) == 0 && p.End == nil
}

// Apply mutates call in place with the patch submitted by the given
// side, enforcing transition legality. The caller persists the result
// under the version guard; Apply itself does not touch Version.
func Apply(call *models.Call, side models.CallerType, patch Patch, now time.Time) error {
	if patch.IsZero() {
		return ErrEmptyPatch
	}
	if call.Status == models.CallEnded {
		return ErrTerminal
	}

	// Candidate exchange: either endpoint appends to its own side's
	// list at any time before ended.
	if len(patch.Candidates) > 0 {
		if side == models.CallerAdult {
			call.AdultCandidates = append(call.AdultCandidates, patch.Candidates...)
		} else {
			call.ChildCandidates = append(call.ChildCandidates, patch.Candidates...)
		}
	}

	if patch.Answer != nil {
		if call.Status != models.CallRinging {
			return ErrNotRinging
		}
		if side == call.CallerType {
			return ErrCallerCannotAnswer
		}
		call.Answer = *patch.Answer
		call.Status = models.CallActive
		answeredAt := now
		call.AnsweredAt = &answeredAt
	}

	if patch.End != nil {
		if !patch.End.Reason.Valid() {
			return ErrInvalidReason
		}
		// A call that never went active is a missed call.
		call.Missed = call.AnsweredAt == nil
		call.Status = models.CallEnded
		call.EndedBy = string(side)
		call.EndReason = patch.End.Reason
		endedAt := now
		call.EndedAt = &endedAt
	}

	call.UpdatedAt = now
	return nil
}

// SweepEnd is the server-side termination applied to calls left ringing
// past the configured timeout. It records the system, not an endpoint,
// as the terminator.
func SweepEnd(call *models.Call, now time.Time) error {
	if call.Status != models.CallRinging {
		return ErrNotRinging
	}
	call.Missed = true
	call.Status = models.CallEnded
	call.EndedBy = models.EndedBySystem
	call.EndReason = models.EndMissed
	endedAt := now
	call.EndedAt = &endedAt
	call.UpdatedAt = now
	return nil
}
