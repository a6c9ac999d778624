package service

import (
	"fmt"
	"strings"
	"time"

	"familytalk/internal/credentials"
	"familytalk/internal/models"
	"familytalk/internal/repository"
	"familytalk/internal/security"
)

// ChildSessionService exchanges a (family code, login code) pair for a
// long-lived anonymous bearer token, and validates those tokens on every
// child request. Within the limit, a wrong family code and a wrong login
// code produce the same ErrInvalidCredentials so the endpoint leaks
// nothing about which part was wrong; past the limit the source gets
// ErrRateLimited without the codes being evaluated at all, correct or
// not.
type ChildSessionService struct {
	familyRepo      *repository.FamilyRepository
	childRepo       *repository.ChildRepository
	limiter         *security.FailureLimiter
	sessionDuration time.Duration
}

// NewChildSessionService creates a new child session service
func NewChildSessionService(familyRepo *repository.FamilyRepository, childRepo *repository.ChildRepository, limiter *security.FailureLimiter, sessionDuration time.Duration) *ChildSessionService {
	return &ChildSessionService{
		familyRepo:      familyRepo,
		childRepo:       childRepo,
		limiter:         limiter,
		sessionDuration: sessionDuration,
	}
}

// Login validates a family-scoped login code and mints a session token.
// sourceKey is the client address used for failure accounting.
func (s *ChildSessionService) Login(familyCode, loginCode, sourceKey string) (string, *models.Child, error) {
	if !s.limiter.Allow(sourceKey) {
		return "", nil, ErrRateLimited
	}

	familyCode = strings.ToUpper(strings.TrimSpace(familyCode))
	loginCode = strings.ToLower(strings.TrimSpace(loginCode))

	if familyCode == "" || !credentials.ValidLoginCode(loginCode) {
		s.limiter.RecordFailure(sourceKey)
		return "", nil, ErrInvalidCredentials
	}

	family, err := s.familyRepo.GetFamilyByCode(familyCode)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get family: %w", err)
	}
	if family == nil {
		s.limiter.RecordFailure(sourceKey)
		return "", nil, ErrInvalidCredentials
	}

	child, err := s.childRepo.GetChildByLoginCode(family.ID, loginCode)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get child: %w", err)
	}
	if child == nil {
		s.limiter.RecordFailure(sourceKey)
		return "", nil, ErrInvalidCredentials
	}

	token, err := security.GenerateToken(32)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	expiresAt := time.Now().Add(s.sessionDuration)
	if _, err := s.childRepo.CreateSession(token, child.ID, expiresAt); err != nil {
		return "", nil, err
	}

	return token, child, nil
}

// Validate checks a session token and returns the associated child.
// Expired sessions are deleted on sight; valid ones get their
// last_used_at bumped.
func (s *ChildSessionService) Validate(token string) (*models.Child, error) {
	session, err := s.childRepo.GetSession(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.IsExpired() {
		_ = s.childRepo.DeleteSession(token)
		return nil, ErrSessionExpired
	}

	child, err := s.childRepo.GetChildByID(session.ChildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	if child == nil {
		return nil, ErrSessionNotFound
	}

	if err := s.childRepo.TouchSession(token); err != nil {
		return nil, err
	}

	return child, nil
}

// Logout revokes one session token
func (s *ChildSessionService) Logout(token string) error {
	return s.childRepo.DeleteSession(token)
}

// CleanupExpiredSessions removes expired child sessions
func (s *ChildSessionService) CleanupExpiredSessions() error {
	return s.childRepo.DeleteExpiredSessions()
}
