package repository

import (
	"database/sql"
	"fmt"
	"time"

	"familytalk/internal/database"
	"familytalk/internal/models"
)

// ConversationRepository handles database operations for conversations
// and their messages
type ConversationRepository struct {
	db *database.DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *database.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Insert creates a conversation row for an (adult, child) pair. The
// UNIQUE(adult_id, child_id) constraint makes a racing duplicate insert
// fail; callers detect that with IsUniqueViolation and re-fetch.
func (r *ConversationRepository) Insert(familyID, adultID int64, adultRole models.AdultRole, childID int64) (*models.Conversation, error) {
	query := "INSERT INTO conversations (family_id, adult_id, adult_role, child_id) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(query, familyID, adultID, string(adultRole), childID)
	if err != nil {
		return nil, err
	}

	return &models.Conversation{
		ID:        id,
		FamilyID:  familyID,
		AdultID:   adultID,
		AdultRole: adultRole,
		ChildID:   childID,
		CreatedAt: time.Now(),
	}, nil
}

// IsUniqueViolation reports whether err is a unique-constraint failure
func (r *ConversationRepository) IsUniqueViolation(err error) bool {
	return r.db.IsUniqueViolation(err)
}

func (r *ConversationRepository) scanConversation(row *sql.Row) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := row.Scan(
		&conv.ID,
		&conv.FamilyID,
		&conv.AdultID,
		&conv.AdultRole,
		&conv.ChildID,
		&conv.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// GetByID retrieves a conversation by ID
func (r *ConversationRepository) GetByID(conversationID int64) (*models.Conversation, error) {
	query := "SELECT id, family_id, adult_id, adult_role, child_id, created_at FROM conversations WHERE id = ?"
	return r.scanConversation(r.db.QueryRow(query, conversationID))
}

// GetByPair retrieves the conversation for an (adult, child) pair
func (r *ConversationRepository) GetByPair(adultID, childID int64) (*models.Conversation, error) {
	query := "SELECT id, family_id, adult_id, adult_role, child_id, created_at FROM conversations WHERE adult_id = ? AND child_id = ?"
	return r.scanConversation(r.db.QueryRow(query, adultID, childID))
}

// ListForAdult retrieves all conversations where the adult is the
// participant
func (r *ConversationRepository) ListForAdult(adultID int64) ([]models.Conversation, error) {
	query := "SELECT id, family_id, adult_id, adult_role, child_id, created_at FROM conversations WHERE adult_id = ? ORDER BY created_at ASC"
	return r.listConversations(query, adultID)
}

// ListForChild retrieves all conversations where the child is the
// participant
func (r *ConversationRepository) ListForChild(childID int64) ([]models.Conversation, error) {
	query := "SELECT id, family_id, adult_id, adult_role, child_id, created_at FROM conversations WHERE child_id = ? ORDER BY created_at ASC"
	return r.listConversations(query, childID)
}

func (r *ConversationRepository) listConversations(query string, arg int64) ([]models.Conversation, error) {
	rows, err := r.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(
			&conv.ID,
			&conv.FamilyID,
			&conv.AdultID,
			&conv.AdultRole,
			&conv.ChildID,
			&conv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}

	return conversations, rows.Err()
}

// CreateMessage appends a message to a conversation
func (r *ConversationRepository) CreateMessage(conversationID int64, senderType models.SenderType, senderID int64, content string) (*models.Message, error) {
	query := "INSERT INTO messages (conversation_id, sender_type, sender_id, content) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(query, conversationID, string(senderType), senderID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return &models.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderType:     senderType,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now(),
	}, nil
}

// ListMessages retrieves a conversation's messages ordered by creation
// time ascending
func (r *ConversationRepository) ListMessages(conversationID int64) ([]models.Message, error) {
	query := `
		SELECT id, conversation_id, sender_type, sender_id, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderType,
			&msg.SenderID,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
