package service

import (
	"context"
	"fmt"
	"time"

	"familytalk/internal/credentials"
	"familytalk/internal/models"
	"familytalk/internal/repository"
	"familytalk/internal/validation"
)

// FamilyService handles family administration: child profiles and their
// login codes, member invitations, and member lifecycle. Mutations are
// parent-only; family members get read access to the roster.
type FamilyService struct {
	familyRepo         *repository.FamilyRepository
	adultRepo          *repository.AdultRepository
	childRepo          *repository.ChildRepository
	invitationRepo     *repository.InvitationRepository
	emailService       *EmailService
	invitationDuration time.Duration
}

// NewFamilyService creates a new family service
func NewFamilyService(familyRepo *repository.FamilyRepository, adultRepo *repository.AdultRepository, childRepo *repository.ChildRepository, invitationRepo *repository.InvitationRepository, emailService *EmailService, invitationDuration time.Duration) *FamilyService {
	return &FamilyService{
		familyRepo:         familyRepo,
		adultRepo:          adultRepo,
		childRepo:          childRepo,
		invitationRepo:     invitationRepo,
		emailService:       emailService,
		invitationDuration: invitationDuration,
	}
}

// GetFamily returns the family an adult belongs to
func (s *FamilyService) GetFamily(adult *models.Adult) (*models.Family, error) {
	family, err := s.familyRepo.GetFamilyByID(adult.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	if family == nil {
		return nil, ErrDenied
	}
	return family, nil
}

// RenameFamily updates the family name. Parent only.
func (s *FamilyService) RenameFamily(adult *models.Adult, name string) error {
	if adult.Role != models.RoleParent {
		return ErrNotParent
	}
	if err := validation.ValidateName(name); err != nil {
		return err
	}
	return s.familyRepo.UpdateFamily(adult.FamilyID, name)
}

// ListAdults returns all adult profiles in the caller's family
func (s *FamilyService) ListAdults(adult *models.Adult) ([]models.Adult, error) {
	return s.adultRepo.GetFamilyAdults(adult.FamilyID)
}

// SetMemberStatus suspends or reactivates a family member. Parent only;
// the parent cannot change its own status.
func (s *FamilyService) SetMemberStatus(adult *models.Adult, memberID int64, status models.AdultStatus) error {
	if adult.Role != models.RoleParent {
		return ErrNotParent
	}
	if memberID == adult.ID {
		return ErrDenied
	}

	member, err := s.adultRepo.GetAdultByID(memberID)
	if err != nil {
		return fmt.Errorf("failed to get member: %w", err)
	}
	if member == nil || member.FamilyID != adult.FamilyID {
		return ErrDenied
	}

	return s.adultRepo.UpdateStatus(memberID, status)
}

// CreateChild adds a child profile with a freshly generated login code.
// Generation retries on the rare within-family collision.
func (s *FamilyService) CreateChild(adult *models.Adult, name, avatarColor string) (*models.Child, error) {
	if adult.Role != models.RoleParent {
		return nil, ErrNotParent
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 10; attempt++ {
		code, err := credentials.GenerateLoginCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate login code: %w", err)
		}

		child, err := s.childRepo.CreateChild(adult.FamilyID, name, avatarColor, code)
		if err == nil {
			return child, nil
		}
		if !s.childRepo.IsUniqueViolation(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to assign a unique login code")
}

// ListChildren returns all children in the caller's family. Login codes
// are included only for the parent; family members see the roster
// without credentials.
func (s *FamilyService) ListChildren(adult *models.Adult) ([]models.Child, error) {
	children, err := s.childRepo.GetFamilyChildren(adult.FamilyID)
	if err != nil {
		return nil, err
	}
	if adult.Role != models.RoleParent {
		for i := range children {
			children[i].LoginCode = ""
		}
	}
	return children, nil
}

// GetChild returns one child in the caller's family
func (s *FamilyService) GetChild(adult *models.Adult, childID int64) (*models.Child, error) {
	child, err := s.childRepo.GetChildByID(childID)
	if err != nil {
		return nil, err
	}
	if child == nil || child.FamilyID != adult.FamilyID {
		return nil, ErrDenied
	}
	if adult.Role != models.RoleParent {
		child.LoginCode = ""
	}
	return child, nil
}

// UpdateChild changes a child's name and avatar color. Parent only.
func (s *FamilyService) UpdateChild(adult *models.Adult, childID int64, name, avatarColor string) (*models.Child, error) {
	if adult.Role != models.RoleParent {
		return nil, ErrNotParent
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}

	child, err := s.childRepo.GetChildByID(childID)
	if err != nil {
		return nil, err
	}
	if child == nil || child.FamilyID != adult.FamilyID {
		return nil, ErrDenied
	}

	if err := s.childRepo.UpdateChild(childID, name, avatarColor); err != nil {
		return nil, err
	}
	child.Name = name
	child.AvatarColor = avatarColor
	return child, nil
}

// RegenerateLoginCode replaces a child's login code, for example when a
// code leaks outside the family. Existing sessions stay valid; only new
// logins need the new code. Parent only.
func (s *FamilyService) RegenerateLoginCode(adult *models.Adult, childID int64) (*models.Child, error) {
	if adult.Role != models.RoleParent {
		return nil, ErrNotParent
	}

	child, err := s.childRepo.GetChildByID(childID)
	if err != nil {
		return nil, err
	}
	if child == nil || child.FamilyID != adult.FamilyID {
		return nil, ErrDenied
	}

	for attempt := 0; attempt < 10; attempt++ {
		code, err := credentials.GenerateLoginCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate login code: %w", err)
		}

		taken, err := s.childRepo.IsLoginCodeTaken(adult.FamilyID, code)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		if err := s.childRepo.UpdateLoginCode(childID, code); err != nil {
			return nil, err
		}
		child.LoginCode = code
		return child, nil
	}
	return nil, fmt.Errorf("failed to assign a unique login code")
}

// InviteMember issues a single-use invitation for a relative and emails
// the join link when email delivery is configured. Parent only.
func (s *FamilyService) InviteMember(adult *models.Adult, email, relationship string) (*models.Invitation, error) {
	if adult.Role != models.RoleParent {
		return nil, ErrNotParent
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if relationship == "" {
		relationship = "family member"
	}

	family, err := s.familyRepo.GetFamilyByID(adult.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}

	expiresAt := time.Now().Add(s.invitationDuration)
	invitation, err := s.invitationRepo.CreateInvitation(adult.FamilyID, email, relationship, adult.ID, expiresAt)
	if err != nil {
		return nil, err
	}

	if s.emailService != nil {
		if err := s.emailService.SendInvitation(context.Background(), email, adult.Name, family.Name, invitation.Code); err != nil {
			// The invitation stands; the code can still be shared by hand.
			fmt.Printf("Warning: failed to send invitation email to %s: %v\n", email, err)
		}
	}

	return invitation, nil
}

// ListInvitations returns the family's invitations. Parent only.
func (s *FamilyService) ListInvitations(adult *models.Adult) ([]models.Invitation, error) {
	if adult.Role != models.RoleParent {
		return nil, ErrNotParent
	}
	return s.invitationRepo.ListFamilyInvitations(adult.FamilyID)
}
