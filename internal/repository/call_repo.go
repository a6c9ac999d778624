package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"familytalk/internal/database"
	"familytalk/internal/models"
)

// CallRepository handles database operations for call signaling records
type CallRepository struct {
	db *database.DB
}

// NewCallRepository creates a new call repository
func NewCallRepository(db *database.DB) *CallRepository {
	return &CallRepository{db: db}
}

// CreateCall inserts a new call record in the ringing state with
// version 0.
func (r *CallRepository) CreateCall(familyID, adultID, childID int64, callerType models.CallerType, offer string) (*models.Call, error) {
	query := `
		INSERT INTO calls (family_id, adult_id, child_id, caller_type, status, offer, answer, adult_candidates, child_candidates, version)
		VALUES (?, ?, ?, ?, ?, ?, '', '[]', '[]', 0)
	`
	id, err := r.db.ExecReturningID(query, familyID, adultID, childID, string(callerType), string(models.CallRinging), offer)
	if err != nil {
		return nil, fmt.Errorf("failed to create call: %w", err)
	}

	now := time.Now()
	return &models.Call{
		ID:              id,
		FamilyID:        familyID,
		AdultID:         adultID,
		ChildID:         childID,
		CallerType:      callerType,
		Status:          models.CallRinging,
		Offer:           offer,
		AdultCandidates: []string{},
		ChildCandidates: []string{},
		Version:         0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

const callColumns = `id, family_id, adult_id, child_id, caller_type, status, offer, answer,
	adult_candidates, child_candidates, version, missed, ended_by, end_reason,
	created_at, answered_at, ended_at, updated_at`

type callScanner interface {
	Scan(dest ...interface{}) error
}

func scanCall(row callScanner) (*models.Call, error) {
	call := &models.Call{}
	var adultCandidates, childCandidates string
	err := row.Scan(
		&call.ID,
		&call.FamilyID,
		&call.AdultID,
		&call.ChildID,
		&call.CallerType,
		&call.Status,
		&call.Offer,
		&call.Answer,
		&adultCandidates,
		&childCandidates,
		&call.Version,
		&call.Missed,
		&call.EndedBy,
		&call.EndReason,
		&call.CreatedAt,
		&call.AnsweredAt,
		&call.EndedAt,
		&call.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(adultCandidates), &call.AdultCandidates); err != nil {
		return nil, fmt.Errorf("corrupt adult candidate list on call %d: %w", call.ID, err)
	}
	if err := json.Unmarshal([]byte(childCandidates), &call.ChildCandidates); err != nil {
		return nil, fmt.Errorf("corrupt child candidate list on call %d: %w", call.ID, err)
	}

	return call, nil
}

// GetCallByID retrieves a call by ID
func (r *CallRepository) GetCallByID(callID int64) (*models.Call, error) {
	query := "SELECT " + callColumns + " FROM calls WHERE id = ?"
	call, err := scanCall(r.db.QueryRow(query, callID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	return call, nil
}

// UpdateGuarded persists a mutated call under the optimistic version
// guard: the write succeeds only if the stored version still equals
// expectedVersion, and then bumps it by one. Returns false when the
// guard failed (a concurrent writer got there first).
func (r *CallRepository) UpdateGuarded(call *models.Call, expectedVersion int64) (bool, error) {
	adultCandidates, err := json.Marshal(call.AdultCandidates)
	if err != nil {
		return false, fmt.Errorf("failed to encode adult candidates: %w", err)
	}
	childCandidates, err := json.Marshal(call.ChildCandidates)
	if err != nil {
		return false, fmt.Errorf("failed to encode child candidates: %w", err)
	}

	query := `
		UPDATE calls
		SET status = ?, answer = ?, adult_candidates = ?, child_candidates = ?,
		    missed = ?, ended_by = ?, end_reason = ?,
		    answered_at = ?, ended_at = ?, updated_at = CURRENT_TIMESTAMP,
		    version = version + 1
		WHERE id = ? AND version = ?
	`
	result, err := r.db.Exec(query,
		string(call.Status), call.Answer, string(adultCandidates), string(childCandidates),
		call.Missed, call.EndedBy, string(call.EndReason),
		call.AnsweredAt, call.EndedAt,
		call.ID, expectedVersion,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update call: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check call update: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	call.Version = expectedVersion + 1
	return true, nil
}

// ListRingingFor returns ringing calls whose endpoint on the given side
// is the given id. Callees poll this to discover incoming calls.
func (r *CallRepository) ListRingingFor(side models.CallerType, endpointID int64) ([]models.Call, error) {
	column := "child_id"
	if side == models.CallerAdult {
		column = "adult_id"
	}
	query := "SELECT " + callColumns + " FROM calls WHERE status = ? AND " + column + " = ? ORDER BY created_at ASC"
	rows, err := r.db.Query(query, string(models.CallRinging), endpointID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ringing calls: %w", err)
	}
	defer rows.Close()

	var calls []models.Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, *call)
	}

	return calls, rows.Err()
}

// ListStaleRinging returns calls still ringing that were created before
// the cutoff. Used by the ring-timeout sweep.
func (r *CallRepository) ListStaleRinging(cutoff time.Time) ([]models.Call, error) {
	query := "SELECT " + callColumns + " FROM calls WHERE status = ? AND created_at < ?"
	rows, err := r.db.Query(query, string(models.CallRinging), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale calls: %w", err)
	}
	defer rows.Close()

	var calls []models.Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, *call)
	}

	return calls, rows.Err()
}

// ClearEndedCandidates empties the candidate lists of calls that ended
// before the cutoff. Space reclamation only: status, timestamps and
// version are left untouched.
func (r *CallRepository) ClearEndedCandidates(cutoff time.Time) (int64, error) {
	query := `
		UPDATE calls
		SET adult_candidates = '[]', child_candidates = '[]'
		WHERE status = ? AND ended_at < ?
		  AND (adult_candidates != '[]' OR child_candidates != '[]')
	`
	result, err := r.db.Exec(query, string(models.CallEnded), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clear candidates: %w", err)
	}
	return result.RowsAffected()
}
