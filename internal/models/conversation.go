package models

import "time"

// SenderType is the typed identity of a message author.
type SenderType string

const (
	SenderParent       SenderType = "parent"
	SenderFamilyMember SenderType = "family_member"
	SenderChild        SenderType = "child"
)

// Valid reports whether the sender type is one of the known variants.
func (s SenderType) Valid() bool {
	switch s {
	case SenderParent, SenderFamilyMember, SenderChild:
		return true
	}
	return false
}

// Conversation is the exclusive 1:1 channel between one adult and one
// child. At most one conversation exists per (adult, child) pair, ever;
// conversations are never deleted.
type Conversation struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	AdultID   int64     `json:"adult_id"`
	AdultRole AdultRole `json:"adult_role"`
	ChildID   int64     `json:"child_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message belongs to exactly one conversation. The sender must be one of
// the conversation's two participants.
type Message struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	SenderType     SenderType `json:"sender_type"`
	SenderID       int64      `json:"sender_id"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
}
