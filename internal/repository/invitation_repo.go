package repository

import (
	"database/sql"
	"fmt"
	"time"

	"familytalk/internal/database"
	"familytalk/internal/models"
	"familytalk/internal/security"
)

// InvitationRepository handles database operations for family-member
// invitations
type InvitationRepository struct {
	db *database.DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *database.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// CreateInvitation creates a new single-use invitation
func (r *InvitationRepository) CreateInvitation(familyID int64, email, relationship string, invitedBy int64, expiresAt time.Time) (*models.Invitation, error) {
	code, err := security.GenerateToken(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invitation code: %w", err)
	}

	query := `
		INSERT INTO invitations (code, family_id, email, relationship, invited_by, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, code, familyID, email, relationship, invitedBy, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	return &models.Invitation{
		ID:           id,
		Code:         code,
		FamilyID:     familyID,
		Email:        email,
		Relationship: relationship,
		InvitedBy:    invitedBy,
		CreatedAt:    time.Now(),
		ExpiresAt:    expiresAt,
	}, nil
}

// GetInvitationByCode retrieves an invitation by code
func (r *InvitationRepository) GetInvitationByCode(code string) (*models.Invitation, error) {
	query := `
		SELECT id, code, family_id, email, relationship, invited_by, created_at, expires_at, used_at, used_by
		FROM invitations
		WHERE code = ?
	`
	inv := &models.Invitation{}
	err := r.db.QueryRow(query, code).Scan(
		&inv.ID,
		&inv.Code,
		&inv.FamilyID,
		&inv.Email,
		&inv.Relationship,
		&inv.InvitedBy,
		&inv.CreatedAt,
		&inv.ExpiresAt,
		&inv.UsedAt,
		&inv.UsedBy,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	return inv, nil
}

// ConsumeAndCreateMember claims an unused invitation and creates the
// joining family-member profile in one transaction. The conditional
// update is the single-use guard: when a concurrent join already claimed
// the code, no row matches and the result is (nil, nil) with nothing
// written.
func (r *InvitationRepository) ConsumeAndCreateMember(code, email, passwordHash, name string) (*models.Adult, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	result, err := tx.Exec(
		"UPDATE invitations SET used_at = ? WHERE code = ? AND used_at IS NULL AND expires_at > ?",
		now, code, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim invitation: %w", err)
	}
	claimed, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check invitation claim: %w", err)
	}
	if claimed == 0 {
		return nil, nil
	}

	// Read the family and relationship inside the transaction; the row
	// the caller pre-checked may be stale.
	var familyID int64
	var relationship string
	query := "SELECT family_id, relationship FROM invitations WHERE code = ?"
	if err := tx.QueryRow(query, code).Scan(&familyID, &relationship); err != nil {
		return nil, fmt.Errorf("failed to read invitation: %w", err)
	}

	adultID, err := insertAdult(tx, familyID, email, passwordHash, name, models.RoleFamilyMember, relationship, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to create adult: %w", err)
	}

	if _, err := tx.Exec("UPDATE invitations SET used_by = ? WHERE code = ?", adultID, code); err != nil {
		return nil, fmt.Errorf("failed to record invitation use: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.Adult{
		ID:           adultID,
		FamilyID:     familyID,
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         models.RoleFamilyMember,
		Relationship: relationship,
		Status:       models.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsUniqueViolation reports whether err is a unique-constraint failure
func (r *InvitationRepository) IsUniqueViolation(err error) bool {
	return r.db.IsUniqueViolation(err)
}

// ListFamilyInvitations retrieves all invitations issued for a family
func (r *InvitationRepository) ListFamilyInvitations(familyID int64) ([]models.Invitation, error) {
	query := `
		SELECT id, code, family_id, email, relationship, invited_by, created_at, expires_at, used_at, used_by
		FROM invitations
		WHERE family_id = ?
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invitations: %w", err)
	}
	defer rows.Close()

	var invitations []models.Invitation
	for rows.Next() {
		var inv models.Invitation
		if err := rows.Scan(
			&inv.ID,
			&inv.Code,
			&inv.FamilyID,
			&inv.Email,
			&inv.Relationship,
			&inv.InvitedBy,
			&inv.CreatedAt,
			&inv.ExpiresAt,
			&inv.UsedAt,
			&inv.UsedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}

	return invitations, rows.Err()
}
