package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"familytalk/internal/models"
	"familytalk/internal/repository"
	"familytalk/internal/security"
	"familytalk/internal/validation"
)

// AuthService handles adult authentication: registration, password
// login, OAuth login, and session lifecycle.
type AuthService struct {
	adultRepo       *repository.AdultRepository
	familyRepo      *repository.FamilyRepository
	invitationRepo  *repository.InvitationRepository
	sessionDuration time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(adultRepo *repository.AdultRepository, familyRepo *repository.FamilyRepository, invitationRepo *repository.InvitationRepository, sessionDuration time.Duration) *AuthService {
	return &AuthService{
		adultRepo:       adultRepo,
		familyRepo:      familyRepo,
		invitationRepo:  invitationRepo,
		sessionDuration: sessionDuration,
	}
}

// RegisterParent creates a new family and its primary parent in one step.
// The parent is active immediately; the returned family carries the share
// code children use to log in.
func (s *AuthService) RegisterParent(email, password, name, familyName string) (*models.Adult, *models.Family, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, nil, err
	}
	if familyName == "" {
		familyName = name + "'s Family"
	}

	existing, err := s.adultRepo.GetAdultByEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check existing adult: %w", err)
	}
	if existing != nil {
		return nil, nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	familyCode, err := generateFamilyCode()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate family code: %w", err)
	}

	family, err := s.familyRepo.CreateFamily(familyName, familyCode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create family: %w", err)
	}

	adult, err := s.adultRepo.CreateAdult(family.ID, email, passwordHash, name, models.RoleParent, "parent", models.StatusActive)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create adult: %w", err)
	}

	return adult, family, nil
}

// RegisterFamilyMember creates a family-member profile from an invitation
// code. The profile joins the inviting family and starts active. The
// invitation is consumed atomically, so a code admits exactly one member
// no matter how many joins race on it.
func (s *AuthService) RegisterFamilyMember(invitationCode, email, password, name string) (*models.Adult, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}

	invitation, err := s.invitationRepo.GetInvitationByCode(invitationCode)
	if err != nil {
		return nil, fmt.Errorf("failed to check invitation: %w", err)
	}
	if invitation == nil || !invitation.IsValid() {
		return nil, ErrInvitationInvalid
	}

	existing, err := s.adultRepo.GetAdultByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing adult: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	adult, err := s.invitationRepo.ConsumeAndCreateMember(invitation.Code, email, passwordHash, name)
	if err != nil {
		// A racing registration can take the email between the check
		// above and the insert.
		if s.invitationRepo.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to join family: %w", err)
	}
	if adult == nil {
		// A concurrent join claimed the code first.
		return nil, ErrInvitationInvalid
	}

	return adult, nil
}

// Login authenticates an adult and creates a session
func (s *AuthService) Login(email, password string) (*models.AdultSession, *models.Adult, error) {
	adult, err := s.adultRepo.GetAdultByEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get adult: %w", err)
	}
	if adult == nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !security.CheckPassword(password, adult.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}
	if adult.Status == models.StatusSuspended {
		return nil, nil, ErrSuspended
	}

	session, err := s.createSession(adult.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, adult, nil
}

// LoginOAuth resolves or links an adult for a verified OAuth identity.
// Matching order is identity first, then email: an existing password
// account with the same verified email gets the identity linked rather
// than duplicated. Unknown identities are rejected; OAuth cannot create
// a family by itself.
func (s *AuthService) LoginOAuth(provider, subject, email string) (*models.AdultSession, *models.Adult, error) {
	adult, err := s.adultRepo.GetAdultByOAuth(provider, subject)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get adult by identity: %w", err)
	}

	if adult == nil && email != "" {
		adult, err = s.adultRepo.GetAdultByEmail(email)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get adult by email: %w", err)
		}
		if adult != nil {
			if err := s.adultRepo.LinkOAuthProvider(adult.ID, provider, subject); err != nil {
				return nil, nil, fmt.Errorf("failed to link identity: %w", err)
			}
		}
	}

	if adult == nil {
		return nil, nil, ErrInvalidCredentials
	}
	if adult.Status == models.StatusSuspended {
		return nil, nil, ErrSuspended
	}

	session, err := s.createSession(adult.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, adult, nil
}

func (s *AuthService) createSession(adultID int64) (*models.AdultSession, error) {
	sessionID := security.GenerateSessionID()
	expiresAt := time.Now().Add(s.sessionDuration)

	session, err := s.adultRepo.CreateSession(sessionID, adultID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Logout deletes a session
func (s *AuthService) Logout(sessionID string) error {
	return s.adultRepo.DeleteSession(sessionID)
}

// ValidateSession checks a session and returns the associated adult.
// Expired sessions are deleted on sight.
func (s *AuthService) ValidateSession(sessionID string) (*models.Adult, error) {
	session, err := s.adultRepo.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.IsExpired() {
		_ = s.adultRepo.DeleteSession(sessionID)
		return nil, ErrSessionExpired
	}

	adult, err := s.adultRepo.GetAdultByID(session.AdultID)
	if err != nil {
		return nil, fmt.Errorf("failed to get adult: %w", err)
	}
	if adult == nil {
		return nil, ErrSessionNotFound
	}
	if adult.Status == models.StatusSuspended {
		return nil, ErrSuspended
	}

	return adult, nil
}

// CleanupExpiredSessions removes expired adult and child sessions
func (s *AuthService) CleanupExpiredSessions() error {
	return s.adultRepo.DeleteExpiredSessions()
}

const familyCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// generateFamilyCode returns an 8-character share code. The alphabet
// drops lookalike characters (I, L, O, 0, 1) because parents read these
// codes aloud to children.
func generateFamilyCode() (string, error) {
	var sb strings.Builder
	for i := 0; i < 8; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(familyCodeAlphabet))))
		if err != nil {
			return "", err
		}
		sb.WriteByte(familyCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
