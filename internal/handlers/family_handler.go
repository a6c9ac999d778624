package handlers

import (
	"net/http"

	"familytalk/internal/models"
	"familytalk/internal/service"
)

// FamilyHandler handles family administration endpoints. All routes
// require an adult session; parent-only rules are enforced in the
// service.
type FamilyHandler struct {
	familyService *service.FamilyService
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(familyService *service.FamilyService) *FamilyHandler {
	return &FamilyHandler{familyService: familyService}
}

// GetFamily handles GET /api/family
func (h *FamilyHandler) GetFamily(w http.ResponseWriter, r *http.Request) {
	adult := GetAdultFromContext(r.Context())

	family, err := h.familyService.GetFamily(adult)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// The share code is a child login credential; family members see
	// the family without it.
	if adult.Role != models.RoleParent {
		family.FamilyCode = ""
	}
	respondJSON(w, http.StatusOK, family)
}

// RenameFamily handles PATCH /api/family
func (h *FamilyHandler) RenameFamily(w http.ResponseWriter, r *http.Request) {
	adult := GetAdultFromContext(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.familyService.RenameFamily(adult, req.Name); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// ListAdults handles GET /api/family/adults
func (h *FamilyHandler) ListAdults(w http.ResponseWriter, r *http.Request) {
	adult := GetAdultFromContext(r.Context())

	adults, err := h.familyService.ListAdults(adult)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, adults)
}

// SetMemberStatus handles PATCH /api/family/adults/{id}/status
func (h *FamilyHandler) SetMemberStatus(w http.ResponseWriter, r *http.Request) {
	adult := GetAdultFromContext(r.Context())

	memberID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid adult id")
		return
	}

	var req struct {
		Status models.AdultStatus `json:"status"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Status != models.StatusActive && req.Status != models.StatusSuspended {
		respondError(w, http.StatusBadRequest, "status must be active or suspended")
		return
	}

	if err := h.familyService.SetMemberStatus(adult, memberID, req.Status); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// CreateInvitation handles POST /api/family/invitations
func (h *FamilyHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	adult := GetAdultFromContext(r.Context())

	var req struct {
		Email        string `json:"email"`
		Relationship string `json:"relationship"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	invitation, err := h.familyService.InviteMember(adult, req.Email, req.Relationship)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, invitation)
}

// ListInvitations handles GET /api/family/invitations
func (h *FamilyHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	adult := GetAdultFromContext(r.Context())

	invitations, err := h.familyService.ListInvitations(adult)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, invitations)
}
