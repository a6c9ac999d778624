package service

import (
	"fmt"

	"familytalk/internal/access"
	"familytalk/internal/models"
	"familytalk/internal/repository"
	"familytalk/internal/validation"
)

// Notifier publishes change events to live subscribers. Topics are
// "conversation:<id>" and "call:<id>".
type Notifier interface {
	Publish(topic string, event string, payload interface{})
}

// ConversationService resolves (adult, child) pairs to conversations and
// mediates message access through the authorization predicates.
type ConversationService struct {
	conversationRepo *repository.ConversationRepository
	adultRepo        *repository.AdultRepository
	childRepo        *repository.ChildRepository
	notifier         Notifier
	messageMaxLength int
}

// NewConversationService creates a new conversation service
func NewConversationService(conversationRepo *repository.ConversationRepository, adultRepo *repository.AdultRepository, childRepo *repository.ChildRepository, notifier Notifier, messageMaxLength int) *ConversationService {
	return &ConversationService{
		conversationRepo: conversationRepo,
		adultRepo:        adultRepo,
		childRepo:        childRepo,
		notifier:         notifier,
		messageMaxLength: messageMaxLength,
	}
}

// GetOrCreate resolves the conversation for an (adult, child) pair,
// creating it on first contact. The caller must be one of the pair and
// both endpoints must belong to the caller's family. Racing duplicate
// creates converge on the single stored row via the unique pair
// constraint.
func (s *ConversationService) GetOrCreate(p access.Principal, adultID, childID int64) (*models.Conversation, error) {
	if p.IsAdult() {
		if adultID != p.ID {
			return nil, ErrDenied
		}
	} else if childID != p.ID {
		return nil, ErrDenied
	}

	adult, err := s.adultRepo.GetAdultByID(adultID)
	if err != nil {
		return nil, fmt.Errorf("failed to get adult: %w", err)
	}
	if adult == nil || adult.FamilyID != p.FamilyID {
		return nil, ErrDenied
	}
	if adult.Status != models.StatusActive {
		return nil, ErrDenied
	}

	child, err := s.childRepo.GetChildByID(childID)
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	if child == nil || child.FamilyID != p.FamilyID {
		return nil, ErrDenied
	}

	conv, err := s.conversationRepo.GetByPair(adultID, childID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	conv, err = s.conversationRepo.Insert(p.FamilyID, adultID, adult.Role, childID)
	if err != nil {
		// A concurrent resolver won the insert; the stored row is the
		// conversation for this pair.
		if s.conversationRepo.IsUniqueViolation(err) {
			return s.conversationRepo.GetByPair(adultID, childID)
		}
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// Get returns a conversation the principal participates in
func (s *ConversationService) Get(p access.Principal, conversationID int64) (*models.Conversation, error) {
	conv, err := s.conversationRepo.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if !access.CanReadConversation(p, conv) {
		return nil, ErrDenied
	}
	return conv, nil
}

// List returns the principal's conversations
func (s *ConversationService) List(p access.Principal) ([]models.Conversation, error) {
	if p.IsAdult() {
		return s.conversationRepo.ListForAdult(p.ID)
	}
	return s.conversationRepo.ListForChild(p.ID)
}

// SendMessage appends a message authored by the principal. The stored
// sender identity is the principal's own, never taken from the request.
func (s *ConversationService) SendMessage(p access.Principal, conversationID int64, content string) (*models.Message, error) {
	if err := validation.ValidateMessageContent(content, s.messageMaxLength); err != nil {
		return nil, err
	}

	conv, err := s.conversationRepo.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if !access.CanWriteMessage(p, conv, p.SenderType(), p.ID) {
		return nil, ErrDenied
	}

	msg, err := s.conversationRepo.CreateMessage(conversationID, p.SenderType(), p.ID, content)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Publish(fmt.Sprintf("conversation:%d", conversationID), "message", msg)
	}

	return msg, nil
}

// ListMessages returns a conversation's messages in creation order
func (s *ConversationService) ListMessages(p access.Principal, conversationID int64) ([]models.Message, error) {
	conv, err := s.conversationRepo.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if !access.CanReadConversation(p, conv) {
		return nil, ErrDenied
	}
	return s.conversationRepo.ListMessages(conversationID)
}

// AdultName is the narrowed profile projection for children: the display
// name of an adult the child shares a conversation with, and nothing
// else. Adults may read their own name through it.
func (s *ConversationService) AdultName(p access.Principal, adultID int64) (string, error) {
	var conv *models.Conversation
	if !p.IsAdult() {
		var err error
		conv, err = s.conversationRepo.GetByPair(adultID, p.ID)
		if err != nil {
			return "", err
		}
	}
	if !access.CanReadAdultName(p, adultID, conv) {
		return "", ErrDenied
	}

	adult, err := s.adultRepo.GetAdultByID(adultID)
	if err != nil {
		return "", fmt.Errorf("failed to get adult: %w", err)
	}
	if adult == nil {
		return "", ErrDenied
	}
	return adult.Name, nil
}
