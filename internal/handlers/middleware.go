package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"familytalk/internal/access"
	"familytalk/internal/models"
	"familytalk/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	AdultContextKey     ContextKey = "adult"
	ChildContextKey     ContextKey = "child"
	PrincipalContextKey ContextKey = "principal"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	authService         *service.AuthService
	childSessionService *service.ChildSessionService
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(authService *service.AuthService, childSessionService *service.ChildSessionService) *Middleware {
	return &Middleware{
		authService:         authService,
		childSessionService: childSessionService,
	}
}

// bearerToken extracts the credential from the Authorization header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}

// RequireAdult admits only adult sessions and puts the adult and its
// principal on the context
func (m *Middleware) RequireAdult(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		adult, err := m.authService.ValidateSession(token)
		if err != nil {
			respondServiceError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), AdultContextKey, adult)
		ctx = context.WithValue(ctx, PrincipalContextKey, access.AdultPrincipal(adult))
		next(w, r.WithContext(ctx))
	}
}

// RequireChild admits only child session tokens
func (m *Middleware) RequireChild(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		child, err := m.childSessionService.Validate(token)
		if err != nil {
			respondServiceError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), ChildContextKey, child)
		ctx = context.WithValue(ctx, PrincipalContextKey, access.ChildPrincipal(child))
		next(w, r.WithContext(ctx))
	}
}

// RequirePrincipal admits either kind of session. Adult session ids are
// tried first; anything they reject is retried as a child token.
func (m *Middleware) RequirePrincipal(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := r.Context()
		if adult, err := m.authService.ValidateSession(token); err == nil {
			ctx = context.WithValue(ctx, AdultContextKey, adult)
			ctx = context.WithValue(ctx, PrincipalContextKey, access.AdultPrincipal(adult))
			next(w, r.WithContext(ctx))
			return
		}

		child, err := m.childSessionService.Validate(token)
		if err != nil {
			respondServiceError(w, err)
			return
		}

		ctx = context.WithValue(ctx, ChildContextKey, child)
		ctx = context.WithValue(ctx, PrincipalContextKey, access.ChildPrincipal(child))
		next(w, r.WithContext(ctx))
	}
}

// Logging middleware logs HTTP requests
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// GetAdultFromContext retrieves the adult from the request context
func GetAdultFromContext(ctx context.Context) *models.Adult {
	adult, ok := ctx.Value(AdultContextKey).(*models.Adult)
	if !ok {
		return nil
	}
	return adult
}

// GetChildFromContext retrieves the child from the request context
func GetChildFromContext(ctx context.Context) *models.Child {
	child, ok := ctx.Value(ChildContextKey).(*models.Child)
	if !ok {
		return nil
	}
	return child
}

// GetPrincipalFromContext retrieves the resolved principal from the
// request context
func GetPrincipalFromContext(ctx context.Context) (access.Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(access.Principal)
	return p, ok
}
