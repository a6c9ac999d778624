package repository

import (
	"database/sql"
	"fmt"
	"time"

	"familytalk/internal/database"
	"familytalk/internal/models"
)

// ChildRepository handles database operations for children and their
// anonymous sessions
type ChildRepository struct {
	db *database.DB
}

// NewChildRepository creates a new child repository
func NewChildRepository(db *database.DB) *ChildRepository {
	return &ChildRepository{db: db}
}

// CreateChild creates a new child profile with its login code
func (r *ChildRepository) CreateChild(familyID int64, name, avatarColor, loginCode string) (*models.Child, error) {
	query := "INSERT INTO children (family_id, name, avatar_color, login_code) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(query, familyID, name, avatarColor, loginCode)
	if err != nil {
		if r.db.IsUniqueViolation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create child: %w", err)
	}

	return &models.Child{
		ID:          id,
		FamilyID:    familyID,
		Name:        name,
		AvatarColor: avatarColor,
		LoginCode:   loginCode,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}, nil
}

// IsUniqueViolation reports whether err is a unique-constraint failure
func (r *ChildRepository) IsUniqueViolation(err error) bool {
	return r.db.IsUniqueViolation(err)
}

// IsLoginCodeTaken reports whether a code is already assigned within a family
func (r *ChildRepository) IsLoginCodeTaken(familyID int64, loginCode string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM children WHERE family_id = ? AND login_code = ?"
	if err := r.db.QueryRow(query, familyID, loginCode).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check login code: %w", err)
	}
	return count > 0, nil
}

func (r *ChildRepository) scanChild(row *sql.Row) (*models.Child, error) {
	child := &models.Child{}
	err := row.Scan(
		&child.ID,
		&child.FamilyID,
		&child.Name,
		&child.AvatarColor,
		&child.LoginCode,
		&child.CreatedAt,
		&child.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	return child, nil
}

// GetChildByID retrieves a child by ID
func (r *ChildRepository) GetChildByID(childID int64) (*models.Child, error) {
	query := "SELECT id, family_id, name, avatar_color, login_code, created_at, updated_at FROM children WHERE id = ?"
	return r.scanChild(r.db.QueryRow(query, childID))
}

// GetChildByLoginCode retrieves a child by its family-scoped login code
func (r *ChildRepository) GetChildByLoginCode(familyID int64, loginCode string) (*models.Child, error) {
	query := "SELECT id, family_id, name, avatar_color, login_code, created_at, updated_at FROM children WHERE family_id = ? AND login_code = ?"
	return r.scanChild(r.db.QueryRow(query, familyID, loginCode))
}

// GetFamilyChildren retrieves all children in a family
func (r *ChildRepository) GetFamilyChildren(familyID int64) ([]models.Child, error) {
	query := `
		SELECT id, family_id, name, avatar_color, login_code, created_at, updated_at
		FROM children
		WHERE family_id = ?
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var children []models.Child
	for rows.Next() {
		var child models.Child
		if err := rows.Scan(
			&child.ID,
			&child.FamilyID,
			&child.Name,
			&child.AvatarColor,
			&child.LoginCode,
			&child.CreatedAt,
			&child.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		children = append(children, child)
	}

	return children, rows.Err()
}

// UpdateChild updates a child's name and avatar color
func (r *ChildRepository) UpdateChild(childID int64, name, avatarColor string) error {
	query := "UPDATE children SET name = ?, avatar_color = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	if _, err := r.db.Exec(query, name, avatarColor, childID); err != nil {
		return fmt.Errorf("failed to update child: %w", err)
	}
	return nil
}

// UpdateLoginCode replaces a child's login code
func (r *ChildRepository) UpdateLoginCode(childID int64, loginCode string) error {
	query := "UPDATE children SET login_code = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	if _, err := r.db.Exec(query, loginCode, childID); err != nil {
		return fmt.Errorf("failed to update login code: %w", err)
	}
	return nil
}

// CreateSession persists a new child session token
func (r *ChildRepository) CreateSession(token string, childID int64, expiresAt time.Time) (*models.ChildSession, error) {
	query := "INSERT INTO child_sessions (token, child_id, expires_at) VALUES (?, ?, ?)"
	if _, err := r.db.Exec(query, token, childID, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to create child session: %w", err)
	}

	now := time.Now()
	return &models.ChildSession{
		Token:      token,
		ChildID:    childID,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
		LastUsedAt: now,
	}, nil
}

// GetSession retrieves a child session by token
func (r *ChildRepository) GetSession(token string) (*models.ChildSession, error) {
	query := "SELECT token, child_id, created_at, expires_at, last_used_at FROM child_sessions WHERE token = ?"
	session := &models.ChildSession{}
	err := r.db.QueryRow(query, token).Scan(
		&session.Token,
		&session.ChildID,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastUsedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child session: %w", err)
	}

	return session, nil
}

// TouchSession bumps last_used_at on successful validation
func (r *ChildRepository) TouchSession(token string) error {
	query := "UPDATE child_sessions SET last_used_at = CURRENT_TIMESTAMP WHERE token = ?"
	if _, err := r.db.Exec(query, token); err != nil {
		return fmt.Errorf("failed to touch child session: %w", err)
	}
	return nil
}

// DeleteSession removes a child session (logout)
func (r *ChildRepository) DeleteSession(token string) error {
	if _, err := r.db.Exec("DELETE FROM child_sessions WHERE token = ?", token); err != nil {
		return fmt.Errorf("failed to delete child session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all expired child sessions. Expiry is
// checked at validation time regardless; this only reclaims storage.
func (r *ChildRepository) DeleteExpiredSessions() error {
	if _, err := r.db.Exec("DELETE FROM child_sessions WHERE expires_at < CURRENT_TIMESTAMP"); err != nil {
		return fmt.Errorf("failed to delete expired child sessions: %w", err)
	}
	return nil
}
