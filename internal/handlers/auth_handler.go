package handlers

import (
	"net/http"

	"familytalk/internal/models"
	"familytalk/internal/service"
)

// AuthHandler handles adult authentication endpoints
type AuthHandler struct {
	authService          *service.AuthService
	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, oauthProviders map[string]OAuthProvider, oauthRedirectBaseURL string) *AuthHandler {
	return &AuthHandler{
		authService:          authService,
		oauthProviders:       oauthProviders,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
	}
}

type sessionResponse struct {
	Token     string        `json:"token"`
	ExpiresAt string        `json:"expires_at"`
	Adult     *models.Adult `json:"adult"`
}

// Register handles POST /api/auth/register: new family, new parent
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		Name       string `json:"name"`
		FamilyName string `json:"family_name"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	adult, family, err := h.authService.RegisterParent(req.Email, req.Password, req.Name, req.FamilyName)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	session, _, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"token":      session.ID,
		"expires_at": session.ExpiresAt,
		"adult":      adult,
		"family":     family,
	})
}

// Join handles POST /api/auth/join: family member joins via invitation
func (h *AuthHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InvitationCode string `json:"invitation_code"`
		Email          string `json:"email"`
		Password       string `json:"password"`
		Name           string `json:"name"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	adult, err := h.authService.RegisterFamilyMember(req.InvitationCode, req.Email, req.Password, req.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	session, _, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"token":      session.ID,
		"expires_at": session.ExpiresAt,
		"adult":      adult,
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	session, adult, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":      session.ID,
		"expires_at": session.ExpiresAt,
		"adult":      adult,
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token != "" {
		if err := h.authService.Logout(token); err != nil {
			respondServiceError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	adult := GetAdultFromContext(r.Context())
	if adult == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	respondJSON(w, http.StatusOK, adult)
}
