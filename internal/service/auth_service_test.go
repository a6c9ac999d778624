package service

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"familytalk/internal/models"
)

func TestRegisterParentCreatesFamily(t *testing.T) {
	env := newTestEnv(t)

	parent, family, err := env.auth.RegisterParent("mom@example.com", "password123", "Mom", "The Smiths")
	if err != nil {
		t.Fatalf("RegisterParent failed: %v", err)
	}

	if parent.Role != models.RoleParent {
		t.Errorf("role = %v, want parent", parent.Role)
	}
	if parent.Status != models.StatusActive {
		t.Errorf("status = %v, want active", parent.Status)
	}
	if parent.FamilyID != family.ID {
		t.Errorf("parent family %d != family %d", parent.FamilyID, family.ID)
	}
	if family.Name != "The Smiths" {
		t.Errorf("family name = %q", family.Name)
	}
	if len(family.FamilyCode) != 8 {
		t.Errorf("family code = %q, want 8 chars", family.FamilyCode)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedFamily(t, "mom@example.com", "Alice")

	if _, _, err := env.auth.RegisterParent("mom@example.com", "password123", "Other Mom", ""); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email: err = %v, want ErrEmailTaken", err)
	}
}

func TestLoginAndValidateSession(t *testing.T) {
	env := newTestEnv(t)
	env.seedFamily(t, "mom@example.com", "Alice")

	session, adult, err := env.auth.Login("mom@example.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	validated, err := env.auth.ValidateSession(session.ID)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if validated.ID != adult.ID {
		t.Errorf("validated adult %d, want %d", validated.ID, adult.ID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedFamily(t, "mom@example.com", "Alice")

	if _, _, err := env.auth.Login("mom@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := env.auth.Login("nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	env.seedFamily(t, "mom@example.com", "Alice")

	session, _, err := env.auth.Login("mom@example.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := env.auth.Logout(session.ID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := env.auth.ValidateSession(session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("revoked session: err = %v, want ErrSessionNotFound", err)
	}
}

func TestInvitationJoinFlow(t *testing.T) {
	env := newTestEnv(t)
	parent, _, _ := env.seedFamily(t, "mom@example.com", "Alice")

	invitation, err := env.family.InviteMember(parent, "grandma@example.com", "grandmother")
	if err != nil {
		t.Fatalf("InviteMember failed: %v", err)
	}

	grandma, err := env.auth.RegisterFamilyMember(invitation.Code, "grandma@example.com", "password123", "Grandma")
	if err != nil {
		t.Fatalf("RegisterFamilyMember failed: %v", err)
	}

	if grandma.Role != models.RoleFamilyMember {
		t.Errorf("role = %v, want family_member", grandma.Role)
	}
	if grandma.FamilyID != parent.FamilyID {
		t.Errorf("joined family %d, want %d", grandma.FamilyID, parent.FamilyID)
	}
	if grandma.Relationship != "grandmother" {
		t.Errorf("relationship = %q", grandma.Relationship)
	}

	// Invitations are single-use
	if _, err := env.auth.RegisterFamilyMember(invitation.Code, "uncle@example.com", "password123", "Uncle"); !errors.Is(err, ErrInvitationInvalid) {
		t.Errorf("reused invitation: err = %v, want ErrInvitationInvalid", err)
	}
}

func TestConcurrentJoinsConsumeInvitationOnce(t *testing.T) {
	env := newTestEnv(t)
	parent, _, _ := env.seedFamily(t, "mom@example.com", "Alice")

	invitation, err := env.family.InviteMember(parent, "relatives@example.com", "relative")
	if err != nil {
		t.Fatalf("InviteMember failed: %v", err)
	}

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			email := fmt.Sprintf("relative%d@example.com", n)
			_, errs[n] = env.auth.RegisterFamilyMember(invitation.Code, email, "password123", "Relative")
		}(i)
	}
	wg.Wait()

	joined := 0
	for n, err := range errs {
		if err == nil {
			joined++
			continue
		}
		if !errors.Is(err, ErrInvitationInvalid) {
			t.Errorf("worker %d: err = %v, want ErrInvitationInvalid", n, err)
		}
	}
	if joined != 1 {
		t.Fatalf("invitation admitted %d members, want exactly 1", joined)
	}

	adults, err := env.adultRepo.GetFamilyAdults(parent.FamilyID)
	if err != nil {
		t.Fatalf("GetFamilyAdults failed: %v", err)
	}
	if len(adults) != 2 {
		t.Errorf("family has %d adults, want parent plus one member", len(adults))
	}
}

func TestInvalidInvitationCode(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.auth.RegisterFamilyMember("deadbeef", "x@example.com", "password123", "X"); !errors.Is(err, ErrInvitationInvalid) {
		t.Errorf("bad code: err = %v, want ErrInvitationInvalid", err)
	}
}

func TestSuspendedMemberCannotLogIn(t *testing.T) {
	env := newTestEnv(t)
	parent, _, _ := env.seedFamily(t, "mom@example.com", "Alice")
	grandma := env.seedFamilyMember(t, parent, "grandma@example.com")

	session, _, err := env.auth.Login("grandma@example.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := env.family.SetMemberStatus(parent, grandma.ID, models.StatusSuspended); err != nil {
		t.Fatalf("SetMemberStatus failed: %v", err)
	}

	// Fresh logins and existing sessions are both cut off
	if _, _, err := env.auth.Login("grandma@example.com", "password123"); !errors.Is(err, ErrSuspended) {
		t.Errorf("suspended login: err = %v, want ErrSuspended", err)
	}
	if _, err := env.auth.ValidateSession(session.ID); !errors.Is(err, ErrSuspended) {
		t.Errorf("suspended session: err = %v, want ErrSuspended", err)
	}
}

func TestOnlyParentManagesMembers(t *testing.T) {
	env := newTestEnv(t)
	parent, _, child := env.seedFamily(t, "mom@example.com", "Alice")
	grandma := env.seedFamilyMember(t, parent, "grandma@example.com")

	if err := env.family.SetMemberStatus(grandma, parent.ID, models.StatusSuspended); !errors.Is(err, ErrNotParent) {
		t.Errorf("member suspending parent: err = %v, want ErrNotParent", err)
	}
	if _, err := env.family.InviteMember(grandma, "uncle@example.com", "uncle"); !errors.Is(err, ErrNotParent) {
		t.Errorf("member inviting: err = %v, want ErrNotParent", err)
	}
	if _, err := env.family.CreateChild(grandma, "Extra", "red"); !errors.Is(err, ErrNotParent) {
		t.Errorf("member creating child: err = %v, want ErrNotParent", err)
	}
	if _, err := env.family.RegenerateLoginCode(grandma, child.ID); !errors.Is(err, ErrNotParent) {
		t.Errorf("member rotating code: err = %v, want ErrNotParent", err)
	}
}

func TestLoginCodesHiddenFromFamilyMembers(t *testing.T) {
	env := newTestEnv(t)
	parent, _, _ := env.seedFamily(t, "mom@example.com", "Alice")
	grandma := env.seedFamilyMember(t, parent, "grandma@example.com")

	forParent, err := env.family.ListChildren(parent)
	if err != nil {
		t.Fatalf("ListChildren(parent) failed: %v", err)
	}
	if forParent[0].LoginCode == "" {
		t.Error("parent should see login codes")
	}

	forMember, err := env.family.ListChildren(grandma)
	if err != nil {
		t.Fatalf("ListChildren(member) failed: %v", err)
	}
	if forMember[0].LoginCode != "" {
		t.Error("family member must not see login codes")
	}
}
