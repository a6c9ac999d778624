package repository

import (
	"database/sql"
	"fmt"
	"time"

	"familytalk/internal/database"
	"familytalk/internal/models"
)

// FamilyRepository handles database operations for families
type FamilyRepository struct {
	db *database.DB
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *database.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// CreateFamily creates a new family with its share code
func (r *FamilyRepository) CreateFamily(name, familyCode string) (*models.Family, error) {
	query := "INSERT INTO families (name, family_code) VALUES (?, ?)"
	id, err := r.db.ExecReturningID(query, name, familyCode)
	if err != nil {
		return nil, fmt.Errorf("failed to create family: %w", err)
	}

	return &models.Family{
		ID:         id,
		Name:       name,
		FamilyCode: familyCode,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}, nil
}

// GetFamilyByID retrieves a family by ID
func (r *FamilyRepository) GetFamilyByID(familyID int64) (*models.Family, error) {
	query := "SELECT id, name, family_code, created_at, updated_at FROM families WHERE id = ?"
	family := &models.Family{}
	err := r.db.QueryRow(query, familyID).Scan(
		&family.ID,
		&family.Name,
		&family.FamilyCode,
		&family.CreatedAt,
		&family.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}

	return family, nil
}

// GetFamilyByCode retrieves a family by its share code
func (r *FamilyRepository) GetFamilyByCode(familyCode string) (*models.Family, error) {
	query := "SELECT id, name, family_code, created_at, updated_at FROM families WHERE family_code = ?"
	family := &models.Family{}
	err := r.db.QueryRow(query, familyCode).Scan(
		&family.ID,
		&family.Name,
		&family.FamilyCode,
		&family.CreatedAt,
		&family.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family by code: %w", err)
	}

	return family, nil
}

// UpdateFamily updates a family's name
func (r *FamilyRepository) UpdateFamily(familyID int64, name string) error {
	query := "UPDATE families SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	if _, err := r.db.Exec(query, name, familyID); err != nil {
		return fmt.Errorf("failed to update family: %w", err)
	}
	return nil
}
