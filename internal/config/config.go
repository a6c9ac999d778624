package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	ServerPort string

	// Database: sqlite (default), postgres, or mysql
	DatabaseType string
	DatabasePath string
	DatabaseURL  string

	// Adult sessions are bearer credentials for parents and family
	// members; child sessions are long-lived device tokens.
	AdultSessionDuration time.Duration
	ChildSessionDuration time.Duration

	// Child login brute-force protection: failures allowed per source
	// address within the window.
	LoginFailureLimit  int
	LoginFailureWindow time.Duration

	// A ringing call nobody answers is swept to ended/missed after this.
	RingTimeout time.Duration

	// Candidate lists on ended calls are emptied after this grace period.
	CandidateRetention time.Duration

	MessageMaxLength int

	InvitationDuration time.Duration

	CORSAllowedOrigins []string

	// Email (invitations) via SES; disabled when SESFromEmail is empty.
	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	AppBaseURL   string

	// OAuth sign-in for adults
	GoogleClientID       string
	GoogleClientSecret   string
	AppleClientID        string
	AppleClientSecret    string
	OAuthRedirectBaseURL string
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		ServerPort:           getEnv("PORT", "8080"),
		DatabaseType:         getEnv("DB_TYPE", "sqlite"),
		DatabasePath:         getEnv("DB_PATH", "./familytalk.db"),
		DatabaseURL:          getEnv("DB_URL", ""),
		AdultSessionDuration: getDuration("ADULT_SESSION_DURATION", 24*time.Hour),
		ChildSessionDuration: getDuration("CHILD_SESSION_DURATION", 30*24*time.Hour),
		LoginFailureLimit:    getInt("LOGIN_FAILURE_LIMIT", 30),
		LoginFailureWindow:   getDuration("LOGIN_FAILURE_WINDOW", time.Hour),
		RingTimeout:          getDuration("RING_TIMEOUT", 90*time.Second),
		CandidateRetention:   getDuration("CANDIDATE_RETENTION", time.Hour),
		MessageMaxLength:     getInt("MESSAGE_MAX_LENGTH", 2000),
		InvitationDuration:   getDuration("INVITATION_DURATION", 7*24*time.Hour),
		CORSAllowedOrigins:   []string{getEnv("CORS_ALLOWED_ORIGIN", "*")},
		AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:         getEnv("SES_FROM_EMAIL", ""),
		SESFromName:          getEnv("SES_FROM_NAME", "FamilyTalk"),
		AppBaseURL:           getEnv("APP_BASE_URL", "http://localhost:8080"),
		GoogleClientID:       getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:   getEnv("GOOGLE_CLIENT_SECRET", ""),
		AppleClientID:        getEnv("APPLE_CLIENT_ID", ""),
		AppleClientSecret:    getEnv("APPLE_CLIENT_SECRET", ""),
		OAuthRedirectBaseURL: getEnv("OAUTH_REDIRECT_BASE_URL", ""),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
