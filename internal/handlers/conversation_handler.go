package handlers

import (
	"fmt"
	"net/http"

	"familytalk/internal/notify"
	"familytalk/internal/service"
)

// ConversationHandler handles conversation and message endpoints for
// both adult and child principals
type ConversationHandler struct {
	conversationService *service.ConversationService
	hub                 *notify.Hub
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversationService *service.ConversationService, hub *notify.Hub) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		hub:                 hub,
	}
}

// Resolve handles POST /api/conversations: returns the conversation for
// an (adult, child) pair, creating it on first contact
func (h *ConversationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	p, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		AdultID int64 `json:"adult_id"`
		ChildID int64 `json:"child_id"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// The caller's own side may be omitted from the request.
	if p.IsAdult() && req.AdultID == 0 {
		req.AdultID = p.ID
	}
	if !p.IsAdult() && req.ChildID == 0 {
		req.ChildID = p.ID
	}

	conv, err := h.conversationService.GetOrCreate(p, req.AdultID, req.ChildID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

// List handles GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conversations, err := h.conversationService.List(p)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conversations)
}

// Get handles GET /api/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conversationID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	conv, err := h.conversationService.Get(p, conversationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

// SendMessage handles POST /api/conversations/{id}/messages
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	p, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conversationID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	msg, err := h.conversationService.SendMessage(p, conversationID, req.Content)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// ListMessages handles GET /api/conversations/{id}/messages
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	p, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conversationID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	messages, err := h.conversationService.ListMessages(p, conversationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

// Subscribe handles GET /api/conversations/{id}/ws: live message events
// for one conversation the principal participates in
func (h *ConversationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	p, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conversationID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	// Authorize the topic before the upgrade
	if _, err := h.conversationService.Get(p, conversationID); err != nil {
		respondServiceError(w, err)
		return
	}

	h.hub.Subscribe(w, r, fmt.Sprintf("conversation:%d", conversationID))
}

// AdultName handles GET /api/adults/{id}/name: the narrow projection a
// child may read of an adult it shares a conversation with
func (h *ConversationHandler) AdultName(w http.ResponseWriter, r *http.Request) {
	p, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	adultID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid adult id")
		return
	}

	name, err := h.conversationService.AdultName(p, adultID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"name": name})
}
