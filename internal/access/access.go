// Package access is the authorization layer: pure predicates evaluated
// against (principal, record) before every repository call. A predicate
// returning false is not an exception; it surfaces as "not found" so a
// caller can never distinguish a record it may not see from one that
// does not exist.
package access

import "familytalk/internal/models"

// Kind is the typed identity class of a caller.
type Kind string

const (
	KindParent       Kind = "parent"
	KindFamilyMember Kind = "family_member"
	KindChild        Kind = "child"
)

// Principal is a resolved caller: an adult (parent or family member)
// identified by profile id, or a child identified by a session-resolved
// child id. FamilyID is the family the principal belongs to.
type Principal struct {
	Kind     Kind
	ID       int64
	FamilyID int64
}

// IsAdult reports whether the principal is a parent or family member.
func (p Principal) IsAdult() bool {
	return p.Kind == KindParent || p.Kind == KindFamilyMember
}

// SenderType maps the principal to the message sender-type variant.
func (p Principal) SenderType() models.SenderType {
	switch p.Kind {
	case KindParent:
		return models.SenderParent
	case KindFamilyMember:
		return models.SenderFamilyMember
	default:
		return models.SenderChild
	}
}

// CallSide maps the principal to its side of a call record.
func (p Principal) CallSide() models.CallerType {
	if p.IsAdult() {
		return models.CallerAdult
	}
	return models.CallerChild
}

// AdultPrincipal builds a principal from an adult profile.
func AdultPrincipal(a *models.Adult) Principal {
	kind := KindFamilyMember
	if a.Role == models.RoleParent {
		kind = KindParent
	}
	return Principal{Kind: kind, ID: a.ID, FamilyID: a.FamilyID}
}

// ChildPrincipal builds a principal from a child profile.
func ChildPrincipal(c *models.Child) Principal {
	return Principal{Kind: KindChild, ID: c.ID, FamilyID: c.FamilyID}
}

// CanReadConversation is true iff the principal is one of the
// conversation's two participants. No adult is ever granted visibility
// into another adult's conversation with the same child, even within
// one family.
func CanReadConversation(p Principal, conv *models.Conversation) bool {
	if conv == nil {
		return false
	}
	if p.IsAdult() {
		return conv.AdultID == p.ID
	}
	return conv.ChildID == p.ID
}

// CanWriteMessage is true iff the claimed sender identity matches the
// calling principal exactly and that sender is a participant of the
// target conversation. Identity is matched, never inferred.
func CanWriteMessage(p Principal, conv *models.Conversation, senderType models.SenderType, senderID int64) bool {
	if senderType != p.SenderType() || senderID != p.ID {
		return false
	}
	return CanReadConversation(p, conv)
}

// CanAccessCall is true iff the principal is one of the call's two
// endpoints. Read and write share the predicate: endpoints are static
// once the call record exists.
func CanAccessCall(p Principal, call *models.Call) bool {
	if call == nil {
		return false
	}
	if p.IsAdult() {
		return call.AdultID == p.ID
	}
	return call.ChildID == p.ID
}

// CanReadAdultName decides the narrowed profile projection: an adult may
// read its own profile; a child may read only the display name of an
// adult it shares a conversation with. conv may be nil when no
// conversation links the pair.
func CanReadAdultName(p Principal, adultID int64, conv *models.Conversation) bool {
	if p.IsAdult() {
		return p.ID == adultID
	}
	if conv == nil {
		return false
	}
	return conv.ChildID == p.ID && conv.AdultID == adultID
}
