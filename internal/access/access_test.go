package access

import (
	"testing"

	"familytalk/internal/models"
)

var (
	mom     = Principal{Kind: KindParent, ID: 1, FamilyID: 1}
	grandma = Principal{Kind: KindFamilyMember, ID: 2, FamilyID: 1}
	kid     = Principal{Kind: KindChild, ID: 5, FamilyID: 1}
	otherKid = Principal{Kind: KindChild, ID: 6, FamilyID: 1}

	momKidConv = &models.Conversation{ID: 100, FamilyID: 1, AdultID: 1, AdultRole: models.RoleParent, ChildID: 5}
)

func TestCanReadConversation(t *testing.T) {
	tests := []struct {
		name string
		p    Principal
		conv *models.Conversation
		want bool
	}{
		{"adult participant", mom, momKidConv, true},
		{"child participant", kid, momKidConv, true},
		{"other adult in same family", grandma, momKidConv, false},
		{"other child in same family", otherKid, momKidConv, false},
		{"nil conversation", mom, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanReadConversation(tt.p, tt.conv); got != tt.want {
				t.Errorf("CanReadConversation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanWriteMessage(t *testing.T) {
	tests := []struct {
		name       string
		p          Principal
		senderType models.SenderType
		senderID   int64
		want       bool
	}{
		{"parent as itself", mom, models.SenderParent, 1, true},
		{"child as itself", kid, models.SenderChild, 5, true},
		{"parent claiming child identity", mom, models.SenderChild, 5, false},
		{"child claiming parent identity", kid, models.SenderParent, 1, false},
		{"parent claiming other id", mom, models.SenderParent, 2, false},
		{"family member not participant", grandma, models.SenderFamilyMember, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanWriteMessage(tt.p, momKidConv, tt.senderType, tt.senderID); got != tt.want {
				t.Errorf("CanWriteMessage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanAccessCall(t *testing.T) {
	call := &models.Call{ID: 1, FamilyID: 1, AdultID: 1, ChildID: 5, CallerType: models.CallerAdult}

	tests := []struct {
		name string
		p    Principal
		call *models.Call
		want bool
	}{
		{"adult endpoint", mom, call, true},
		{"child endpoint", kid, call, true},
		{"other adult", grandma, call, false},
		{"other child", otherKid, call, false},
		{"nil call", mom, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAccessCall(tt.p, tt.call); got != tt.want {
				t.Errorf("CanAccessCall() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanReadAdultName(t *testing.T) {
	tests := []struct {
		name    string
		p       Principal
		adultID int64
		conv    *models.Conversation
		want    bool
	}{
		{"adult reads own name", mom, 1, nil, true},
		{"adult reads other adult", mom, 2, nil, false},
		{"child with shared conversation", kid, 1, momKidConv, true},
		{"child without conversation", kid, 2, nil, false},
		{"other child with someone else's conversation", otherKid, 1, momKidConv, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanReadAdultName(tt.p, tt.adultID, tt.conv); got != tt.want {
				t.Errorf("CanReadAdultName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdultPrincipal(t *testing.T) {
	parent := &models.Adult{ID: 1, FamilyID: 1, Role: models.RoleParent}
	member := &models.Adult{ID: 2, FamilyID: 1, Role: models.RoleFamilyMember}

	if p := AdultPrincipal(parent); p.Kind != KindParent || !p.IsAdult() {
		t.Errorf("AdultPrincipal(parent) = %+v", p)
	}
	if p := AdultPrincipal(member); p.Kind != KindFamilyMember || !p.IsAdult() {
		t.Errorf("AdultPrincipal(member) = %+v", p)
	}
	if p := ChildPrincipal(&models.Child{ID: 5, FamilyID: 1}); p.Kind != KindChild || p.IsAdult() {
		t.Errorf("ChildPrincipal() = %+v", p)
	}
}

func TestSenderTypeAndCallSide(t *testing.T) {
	if mom.SenderType() != models.SenderParent {
		t.Errorf("parent sender type = %v", mom.SenderType())
	}
	if grandma.SenderType() != models.SenderFamilyMember {
		t.Errorf("family member sender type = %v", grandma.SenderType())
	}
	if kid.SenderType() != models.SenderChild {
		t.Errorf("child sender type = %v", kid.SenderType())
	}
	if mom.CallSide() != models.CallerAdult || kid.CallSide() != models.CallerChild {
		t.Error("call side mapping wrong")
	}
}
