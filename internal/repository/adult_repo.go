package repository

import (
	"database/sql"
	"fmt"
	"time"

	"familytalk/internal/database"
	"familytalk/internal/models"
)

const adultColumns = `id, family_id, email, password_hash, name, role, relationship, status,
	COALESCE(oauth_provider, ''), COALESCE(oauth_subject, ''), created_at, updated_at`

// AdultRepository handles database operations for adult profiles and
// their sessions
type AdultRepository struct {
	db *database.DB
}

// NewAdultRepository creates a new adult repository
func NewAdultRepository(db *database.DB) *AdultRepository {
	return &AdultRepository{db: db}
}

// insertAdult runs the adult INSERT against the database or an open
// transaction.
func insertAdult(q database.DBTX, familyID int64, email, passwordHash, name string, role models.AdultRole, relationship string, status models.AdultStatus) (int64, error) {
	query := `
		INSERT INTO adults (family_id, email, password_hash, name, role, relationship, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	return q.ExecReturningID(query, familyID, email, passwordHash, name, string(role), relationship, string(status))
}

// CreateAdult inserts a new adult profile
func (r *AdultRepository) CreateAdult(familyID int64, email, passwordHash, name string, role models.AdultRole, relationship string, status models.AdultStatus) (*models.Adult, error) {
	id, err := insertAdult(r.db, familyID, email, passwordHash, name, role, relationship, status)
	if err != nil {
		return nil, fmt.Errorf("failed to create adult: %w", err)
	}

	return &models.Adult{
		ID:           id,
		FamilyID:     familyID,
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		Relationship: relationship,
		Status:       status,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}, nil
}

func (r *AdultRepository) scanAdult(row *sql.Row) (*models.Adult, error) {
	adult := &models.Adult{}
	err := row.Scan(
		&adult.ID,
		&adult.FamilyID,
		&adult.Email,
		&adult.PasswordHash,
		&adult.Name,
		&adult.Role,
		&adult.Relationship,
		&adult.Status,
		&adult.OAuthProvider,
		&adult.OAuthSubject,
		&adult.CreatedAt,
		&adult.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get adult: %w", err)
	}
	return adult, nil
}

// GetAdultByID retrieves an adult by ID
func (r *AdultRepository) GetAdultByID(id int64) (*models.Adult, error) {
	query := "SELECT " + adultColumns + " FROM adults WHERE id = ?"
	return r.scanAdult(r.db.QueryRow(query, id))
}

// GetAdultByEmail retrieves an adult by email address
func (r *AdultRepository) GetAdultByEmail(email string) (*models.Adult, error) {
	query := "SELECT " + adultColumns + " FROM adults WHERE email = ?"
	return r.scanAdult(r.db.QueryRow(query, email))
}

// GetAdultByOAuth retrieves an adult by linked OAuth identity
func (r *AdultRepository) GetAdultByOAuth(provider, subject string) (*models.Adult, error) {
	query := "SELECT " + adultColumns + " FROM adults WHERE oauth_provider = ? AND oauth_subject = ?"
	return r.scanAdult(r.db.QueryRow(query, provider, subject))
}

// GetFamilyAdults retrieves all adult profiles in a family
func (r *AdultRepository) GetFamilyAdults(familyID int64) ([]models.Adult, error) {
	query := "SELECT " + adultColumns + " FROM adults WHERE family_id = ? ORDER BY created_at ASC"
	rows, err := r.db.Query(query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query adults: %w", err)
	}
	defer rows.Close()

	var adults []models.Adult
	for rows.Next() {
		var adult models.Adult
		if err := rows.Scan(
			&adult.ID,
			&adult.FamilyID,
			&adult.Email,
			&adult.PasswordHash,
			&adult.Name,
			&adult.Role,
			&adult.Relationship,
			&adult.Status,
			&adult.OAuthProvider,
			&adult.OAuthSubject,
			&adult.CreatedAt,
			&adult.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan adult: %w", err)
		}
		adults = append(adults, adult)
	}

	return adults, rows.Err()
}

// UpdateStatus transitions an adult's lifecycle status
func (r *AdultRepository) UpdateStatus(adultID int64, status models.AdultStatus) error {
	query := "UPDATE adults SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	if _, err := r.db.Exec(query, string(status), adultID); err != nil {
		return fmt.Errorf("failed to update adult status: %w", err)
	}
	return nil
}

// LinkOAuthProvider attaches an OAuth identity to an existing adult
func (r *AdultRepository) LinkOAuthProvider(adultID int64, provider, subject string) error {
	query := "UPDATE adults SET oauth_provider = ?, oauth_subject = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	if _, err := r.db.Exec(query, provider, subject, adultID); err != nil {
		return fmt.Errorf("failed to link oauth provider: %w", err)
	}
	return nil
}

// CreateSession creates a new session for an adult
func (r *AdultRepository) CreateSession(sessionID string, adultID int64, expiresAt time.Time) (*models.AdultSession, error) {
	query := "INSERT INTO adult_sessions (id, adult_id, expires_at) VALUES (?, ?, ?)"
	if _, err := r.db.Exec(query, sessionID, adultID, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.AdultSession{
		ID:        sessionID,
		AdultID:   adultID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// GetSession retrieves a session by ID
func (r *AdultRepository) GetSession(sessionID string) (*models.AdultSession, error) {
	query := "SELECT id, adult_id, expires_at, created_at FROM adult_sessions WHERE id = ?"
	session := &models.AdultSession{}
	err := r.db.QueryRow(query, sessionID).Scan(
		&session.ID,
		&session.AdultID,
		&session.ExpiresAt,
		&session.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// DeleteSession removes a session
func (r *AdultRepository) DeleteSession(sessionID string) error {
	if _, err := r.db.Exec("DELETE FROM adult_sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all expired adult sessions
func (r *AdultRepository) DeleteExpiredSessions() error {
	if _, err := r.db.Exec("DELETE FROM adult_sessions WHERE expires_at < CURRENT_TIMESTAMP"); err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return nil
}
