package service

import (
	"path/filepath"
	"testing"
	"time"

	"familytalk/internal/access"
	"familytalk/internal/database"
	"familytalk/internal/models"
	"familytalk/internal/repository"
	"familytalk/internal/security"
	"familytalk/migrations"
)

// testEnv wires the full service stack against a throwaway SQLite file
type testEnv struct {
	db *database.DB

	adultRepo        *repository.AdultRepository
	childRepo        *repository.ChildRepository
	conversationRepo *repository.ConversationRepository
	callRepo         *repository.CallRepository

	auth          *AuthService
	family        *FamilyService
	childSessions *ChildSessionService
	conversations *ConversationService
	calls         *CallService

	limiter *security.FailureLimiter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database-backed test in short mode")
	}

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(migrations.FS); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	familyRepo := repository.NewFamilyRepository(db)
	adultRepo := repository.NewAdultRepository(db)
	childRepo := repository.NewChildRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	callRepo := repository.NewCallRepository(db)

	limiter := security.NewFailureLimiter(3, time.Hour)

	return &testEnv{
		db:               db,
		adultRepo:        adultRepo,
		childRepo:        childRepo,
		conversationRepo: conversationRepo,
		callRepo:         callRepo,
		auth:             NewAuthService(adultRepo, familyRepo, invitationRepo, time.Hour),
		family:           NewFamilyService(familyRepo, adultRepo, childRepo, invitationRepo, nil, 7*24*time.Hour),
		childSessions:    NewChildSessionService(familyRepo, childRepo, limiter, 30*24*time.Hour),
		conversations:    NewConversationService(conversationRepo, adultRepo, childRepo, nil, 2000),
		calls:            NewCallService(callRepo, adultRepo, childRepo, nil, 90*time.Second, time.Hour),
		limiter:          limiter,
	}
}

// seedFamily registers a parent with one child and returns them with the
// family
func (env *testEnv) seedFamily(t *testing.T, email, childName string) (*models.Adult, *models.Family, *models.Child) {
	t.Helper()

	parent, family, err := env.auth.RegisterParent(email, "password123", "Parent "+email, "")
	if err != nil {
		t.Fatalf("failed to register parent: %v", err)
	}

	child, err := env.family.CreateChild(parent, childName, "blue")
	if err != nil {
		t.Fatalf("failed to create child: %v", err)
	}

	return parent, family, child
}

// seedFamilyMember joins a family member via invitation
func (env *testEnv) seedFamilyMember(t *testing.T, parent *models.Adult, email string) *models.Adult {
	t.Helper()

	invitation, err := env.family.InviteMember(parent, email, "grandparent")
	if err != nil {
		t.Fatalf("failed to invite member: %v", err)
	}

	member, err := env.auth.RegisterFamilyMember(invitation.Code, email, "password123", "Member "+email)
	if err != nil {
		t.Fatalf("failed to register family member: %v", err)
	}

	return member
}

func principalOf(a *models.Adult) access.Principal { return access.AdultPrincipal(a) }

func childPrincipal(c *models.Child) access.Principal { return access.ChildPrincipal(c) }
