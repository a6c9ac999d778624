package models

import "time"

// CallStatus is the signaling lifecycle state of a call record.
type CallStatus string

const (
	CallRinging CallStatus = "ringing"
	CallActive  CallStatus = "active"
	CallEnded   CallStatus = "ended"
)

// CallerType records which side initiated the call.
type CallerType string

const (
	CallerAdult CallerType = "adult"
	CallerChild CallerType = "child"
)

// Counterpart returns the other side.
func (c CallerType) Counterpart() CallerType {
	if c == CallerAdult {
		return CallerChild
	}
	return CallerAdult
}

// EndReason explains why a call reached the terminal state.
type EndReason string

const (
	EndHangup   EndReason = "hangup"
	EndMissed   EndReason = "missed"
	EndDeclined EndReason = "declined"
	EndError    EndReason = "error"
)

// Valid reports whether the end reason is one of the known variants.
func (r EndReason) Valid() bool {
	switch r {
	case EndHangup, EndMissed, EndDeclined, EndError:
		return true
	}
	return false
}

// EndedBySystem marks calls ended by the server-side ring-timeout sweep
// rather than by either endpoint.
const EndedBySystem = "system"

// Call is the shared signaling record between exactly one adult and one
// child. Both endpoints poll/subscribe to it and race to update it; the
// Version counter is the optimistic-concurrency guard: every mutating
// update must name the version it last observed, and a stale write is
// rejected rather than applied.
type Call struct {
	ID         int64      `json:"id"`
	FamilyID   int64      `json:"family_id"`
	AdultID    int64      `json:"adult_id"`
	ChildID    int64      `json:"child_id"`
	CallerType CallerType `json:"caller_type"`
	Status     CallStatus `json:"status"`
	Offer      string     `json:"offer"`
	Answer     string     `json:"answer"`

	// Network candidates are additive per side, never replaced, so
	// delayed duplicate delivery is harmless.
	AdultCandidates []string `json:"adult_candidates"`
	ChildCandidates []string `json:"child_candidates"`

	Version    int64      `json:"version"`
	Missed     bool       `json:"missed"`
	EndedBy    string     `json:"ended_by,omitempty"`
	EndReason  EndReason  `json:"end_reason,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// EndpointFor maps a caller-type side to the endpoint id on that side.
func (c *Call) EndpointFor(side CallerType) int64 {
	if side == CallerAdult {
		return c.AdultID
	}
	return c.ChildID
}
