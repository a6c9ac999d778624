package models

import "time"

// Child is a profile owned by exactly one family for its lifetime.
// Children have no account credential; they log in with a shared
// word-number code unique within their family.
type Child struct {
	ID          int64     `json:"id"`
	FamilyID    int64     `json:"family_id"`
	Name        string    `json:"name"`
	AvatarColor string    `json:"avatar_color"`
	LoginCode   string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChildSession is the ephemeral bearer credential minted on a successful
// login-code exchange. Many sessions may exist per child (multi-device).
type ChildSession struct {
	Token      string    `json:"-"`
	ChildID    int64     `json:"child_id"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// IsExpired checks if the session has expired
func (s *ChildSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
