package handlers

import (
	"net/http"

	"familytalk/internal/models"
	"familytalk/internal/security"
	"familytalk/internal/service"
)

// ChildHandler handles child profile management (adult side) and the
// anonymous child login exchange
type ChildHandler struct {
	familyService       *service.FamilyService
	childSessionService *service.ChildSessionService
}

// NewChildHandler creates a new child handler
func NewChildHandler(familyService *service.FamilyService, childSessionService *service.ChildSessionService) *ChildHandler {
	return &ChildHandler{
		familyService:       familyService,
		childSessionService: childSessionService,
	}
}

// childView exposes the login code to the parent; the model hides it
// from every other serialization.
type childView struct {
	*models.Child
	LoginCode string `json:"login_code,omitempty"`
}

func viewChild(child *models.Child) childView {
	return childView{Child: child, LoginCode: child.LoginCode}
}

// CreateChild handles POST /api/family/children
func (h *ChildHandler) CreateChild(w http.ResponseWriter, r *http.Request) {
	adult := GetAdultFromContext(r.Context())

	var req struct {
		Name        string `json:"name"`
		AvatarColor string `json:"avatar_color"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	child, err := h.familyService.CreateChild(adult, req.Name, req.AvatarColor)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, viewChild(child))
}

// ListChildren handles GET /api/family/children
func (h *ChildHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	adult := GetAdultFromContext(r.Context())

	children, err := h.familyService.ListChildren(adult)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	views := make([]childView, len(children))
	for i := range children {
		views[i] = viewChild(&children[i])
	}
	respondJSON(w, http.StatusOK, views)
}

// GetChild handles GET /api/family/children/{id}
func (h *ChildHandler) GetChild(w http.ResponseWriter, r *http.Request) {
	adult := GetAdultFromContext(r.Context())

	childID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	child, err := h.familyService.GetChild(adult, childID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, viewChild(child))
}

// UpdateChild handles PATCH /api/family/children/{id}
func (h *ChildHandler) UpdateChild(w http.ResponseWriter, r *http.Request) {
	adult := GetAdultFromContext(r.Context())

	childID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	var req struct {
		Name        string `json:"name"`
		AvatarColor string `json:"avatar_color"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	child, err := h.familyService.UpdateChild(adult, childID, req.Name, req.AvatarColor)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, viewChild(child))
}

// RegenerateLoginCode handles POST /api/family/children/{id}/login-code
func (h *ChildHandler) RegenerateLoginCode(w http.ResponseWriter, r *http.Request) {
	adult := GetAdultFromContext(r.Context())

	childID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	child, err := h.familyService.RegenerateLoginCode(adult, childID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, viewChild(child))
}

// Login handles POST /api/child/login: exchanges (family code, login
// code) for a bearer token
func (h *ChildHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FamilyCode string `json:"family_code"`
		LoginCode  string `json:"login_code"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	token, child, err := h.childSessionService.Login(req.FamilyCode, req.LoginCode, security.GetClientIP(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"child": child,
	})
}

// Logout handles POST /api/child/logout
func (h *ChildHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token != "" {
		if err := h.childSessionService.Logout(token); err != nil {
			respondServiceError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Me handles GET /api/child/me
func (h *ChildHandler) Me(w http.ResponseWriter, r *http.Request) {
	child := GetChildFromContext(r.Context())
	if child == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	respondJSON(w, http.StatusOK, child)
}
