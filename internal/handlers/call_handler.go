package handlers

import (
	"fmt"
	"net/http"

	"familytalk/internal/notify"
	"familytalk/internal/service"
	"familytalk/internal/signal"
)

// CallHandler handles call signaling endpoints for both adult and child
// principals
type CallHandler struct {
	callService *service.CallService
	hub         *notify.Hub
}

// NewCallHandler creates a new call handler
func NewCallHandler(callService *service.CallService, hub *notify.Hub) *CallHandler {
	return &CallHandler{
		callService: callService,
		hub:         hub,
	}
}

// Start handles POST /api/calls
func (h *CallHandler) Start(w http.ResponseWriter, r *http.Request) {
	p, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		CounterpartID int64  `json:"counterpart_id"`
		Offer         string `json:"offer"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	call, err := h.callService.Start(p, req.CounterpartID, req.Offer)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, call)
}

// Incoming handles GET /api/calls/incoming
func (h *CallHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	p, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	calls, err := h.callService.Incoming(p)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, calls)
}

// Get handles GET /api/calls/{id}
func (h *CallHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	callID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid call id")
		return
	}

	call, err := h.callService.Get(p, callID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, call)
}

// Update handles PATCH /api/calls/{id}: one endpoint's signaling patch
// at the version it last observed. A 409 means re-read and resubmit.
func (h *CallHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	callID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid call id")
		return
	}

	var req struct {
		ExpectedVersion int64        `json:"expected_version"`
		Patch           signal.Patch `json:"patch"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	call, err := h.callService.Update(p, callID, req.ExpectedVersion, req.Patch)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, call)
}

// Subscribe handles GET /api/calls/{id}/ws: live state events for one
// call the principal is an endpoint of
func (h *CallHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	p, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	callID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid call id")
		return
	}

	if _, err := h.callService.Get(p, callID); err != nil {
		respondServiceError(w, err)
		return
	}

	h.hub.Subscribe(w, r, fmt.Sprintf("call:%d", callID))
}
