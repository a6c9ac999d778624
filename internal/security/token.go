package security

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/google/uuid"
)

// GenerateSessionID creates a new UUID for adult session identification
func GenerateSessionID() string {
	return uuid.New().String()
}

// GenerateToken returns a hex-encoded cryptographically random token of
// the given byte length. Child session tokens use 32 bytes (256 bits).
func GenerateToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GetClientIP extracts the client IP from the request
func GetClientIP(r *http.Request) string {
	// Behind a proxy
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
