package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"familytalk/internal/service"
	"familytalk/internal/signal"
	"familytalk/internal/validation"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("failed to encode response: %v", err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service sentinels to HTTP statuses. ErrDenied
// deliberately yields the same 404 a nonexistent record does.
func respondServiceError(w http.ResponseWriter, err error) {
	var verr validation.ValidationError
	switch {
	case errors.Is(err, service.ErrDenied):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrVersionConflict):
		respondError(w, http.StatusConflict, "version conflict")
	case errors.Is(err, service.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, "too many attempts")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrSessionExpired):
		respondError(w, http.StatusUnauthorized, "invalid or expired session")
	case errors.Is(err, service.ErrSuspended):
		respondError(w, http.StatusForbidden, "account suspended")
	case errors.Is(err, service.ErrNotParent):
		respondError(w, http.StatusForbidden, "parent role required")
	case errors.Is(err, service.ErrEmailTaken):
		respondError(w, http.StatusConflict, "email already taken")
	case errors.Is(err, service.ErrInvitationInvalid):
		respondError(w, http.StatusBadRequest, "invitation invalid or expired")
	case errors.Is(err, signal.ErrTerminal),
		errors.Is(err, signal.ErrNotRinging),
		errors.Is(err, signal.ErrCallerCannotAnswer),
		errors.Is(err, signal.ErrEmptyPatch),
		errors.Is(err, signal.ErrInvalidReason):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Error())
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func parseJSONBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}
