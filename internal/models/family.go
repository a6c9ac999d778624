package models

import "time"

// AdultRole distinguishes the primary parent from invited relatives.
type AdultRole string

const (
	RoleParent       AdultRole = "parent"
	RoleFamilyMember AdultRole = "family_member"
)

// Valid reports whether the role is one of the known variants.
func (r AdultRole) Valid() bool {
	switch r {
	case RoleParent, RoleFamilyMember:
		return true
	}
	return false
}

// AdultStatus is the lifecycle state of an adult profile.
type AdultStatus string

const (
	StatusActive    AdultStatus = "active"
	StatusSuspended AdultStatus = "suspended"
)

// Family is the billing/grouping unit: one primary parent plus zero or
// more invited relatives, owning some children.
type Family struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	FamilyCode string    `json:"family_code"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Adult is a credentialed grown-up profile: the parent or a family member.
type Adult struct {
	ID            int64       `json:"id"`
	FamilyID      int64       `json:"family_id"`
	Email         string      `json:"email"`
	PasswordHash  string      `json:"-"`
	Name          string      `json:"name"`
	Role          AdultRole   `json:"role"`
	Relationship  string      `json:"relationship"`
	Status        AdultStatus `json:"status"`
	OAuthProvider string      `json:"-"`
	OAuthSubject  string      `json:"-"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// AdultSession is a bearer credential for an adult.
type AdultSession struct {
	ID        string    `json:"id"`
	AdultID   int64     `json:"adult_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired checks if the session has expired
func (s *AdultSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Invitation is a single-use emailed code that lets a relative join a
// family as a family_member.
type Invitation struct {
	ID           int64      `json:"id"`
	Code         string     `json:"code"`
	FamilyID     int64      `json:"family_id"`
	Email        string     `json:"email"`
	Relationship string     `json:"relationship"`
	InvitedBy    int64      `json:"invited_by"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	UsedBy       *int64     `json:"used_by,omitempty"`
}

func (i *Invitation) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

func (i *Invitation) IsUsed() bool {
	return i.UsedAt != nil
}

func (i *Invitation) IsValid() bool {
	return !i.IsExpired() && !i.IsUsed()
}
