package service

import "errors"

// Sentinel errors shared across services. Handlers translate these to
// HTTP statuses; notably ErrDenied maps to the same 404 a missing record
// produces, so callers cannot probe for records they may not see.
var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrSuspended          = errors.New("account suspended")

	// ErrDenied covers both "does not exist" and "exists but not yours".
	ErrDenied = errors.New("not found")

	// ErrVersionConflict means an optimistic call update lost the race;
	// the caller should re-read and resubmit.
	ErrVersionConflict = errors.New("version conflict")

	// ErrRateLimited means child login attempts from this source are
	// temporarily rejected without being evaluated.
	ErrRateLimited = errors.New("too many attempts")

	ErrInvitationInvalid = errors.New("invitation invalid or expired")
	ErrNotParent         = errors.New("parent role required")
)
