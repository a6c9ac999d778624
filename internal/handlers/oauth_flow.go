package handlers

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"familytalk/internal/config"
	"familytalk/internal/security"
)

// OAuthProvider defines provider configuration and metadata
type OAuthProvider struct {
	Name        string
	Config      *oauth2.Config
	UserInfoURL string
	AuthParams  map[string]string
}

type oauthUserInfo struct {
	Subject string
	Email   string
}

// BuildOAuthProviders assembles the configured sign-in providers
func BuildOAuthProviders(cfg *config.Config) map[string]OAuthProvider {
	return map[string]OAuthProvider{
		"google": {
			Name: "google",
			Config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{"openid", "email", "profile"},
			},
			UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		},
		"apple": {
			Name: "apple",
			Config: &oauth2.Config{
				ClientID:     cfg.AppleClientID,
				ClientSecret: cfg.AppleClientSecret,
				Scopes:       []string{"email"},
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://appleid.apple.com/auth/authorize",
					TokenURL: "https://appleid.apple.com/auth/token",
				},
			},
			AuthParams: map[string]string{"response_mode": "query"},
		},
	}
}

// StartOAuth initiates the OAuth flow for a provider
func (h *AuthHandler) StartOAuth(w http.ResponseWriter, r *http.Request) {
	providerKey := r.PathValue("provider")
	provider, ok := h.oauthProviders[providerKey]
	if !ok || provider.Config == nil || provider.Config.ClientID == "" || provider.Config.ClientSecret == "" {
		respondError(w, http.StatusBadRequest, "OAuth provider not configured")
		return
	}

	state := security.GenerateSessionID()
	nonce := security.GenerateSessionID()

	h.setTempCookie(w, "oauth_state", state, 10*time.Minute)
	h.setTempCookie(w, "oauth_provider", providerKey, 10*time.Minute)
	h.setTempCookie(w, "oauth_nonce", nonce, 10*time.Minute)

	config := *provider.Config
	config.RedirectURL = h.oauthRedirectURL(r, providerKey)

	options := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	for key, value := range provider.AuthParams {
		options = append(options, oauth2.SetAuthURLParam(key, value))
	}
	if providerKey == "apple" {
		options = append(options, oauth2.SetAuthURLParam("nonce", nonce))
	}

	http.Redirect(w, r, config.AuthCodeURL(state, options...), http.StatusFound)
}

// OAuthCallback handles the OAuth provider callback and mints an adult
// session for a recognized identity
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	providerKey := r.PathValue("provider")
	provider, ok := h.oauthProviders[providerKey]
	if !ok || provider.Config == nil || provider.Config.ClientID == "" || provider.Config.ClientSecret == "" {
		respondError(w, http.StatusBadRequest, "OAuth provider not configured")
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		respondError(w, http.StatusBadRequest, "invalid OAuth state")
		return
	}
	if providerCookie, err := r.Cookie("oauth_provider"); err == nil {
		if providerCookie.Value != providerKey {
			respondError(w, http.StatusBadRequest, "OAuth provider mismatch")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	config := *provider.Config
	config.RedirectURL = h.oauthRedirectURL(r, providerKey)

	token, err := config.Exchange(ctx, code)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to exchange OAuth code")
		return
	}

	userInfo, err := h.fetchOAuthUserInfo(ctx, providerKey, provider, token, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.clearTempCookie(w, "oauth_state")
	h.clearTempCookie(w, "oauth_provider")
	h.clearTempCookie(w, "oauth_nonce")

	session, adult, err := h.authService.LoginOAuth(providerKey, userInfo.Subject, userInfo.Email)
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

func (h *AuthHandler) fetchOAuthUserInfo(ctx context.Context, providerKey string, provider OAuthProvider, token *oauth2.Token, r *http.Request) (oauthUserInfo, error) {
	switch providerKey {
	case "google":
		return fetchGoogleUser(ctx, provider, token)
	case "apple":
		return fetchAppleUser(ctx, provider, token, r)
	default:
		return oauthUserInfo{}, errors.New("unsupported OAuth provider")
	}
}

func fetchGoogleUser(ctx context.Context, provider OAuthProvider, token *oauth2.Token) (oauthUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	resp, err := client.Get(provider.UserInfoURL)
	if err != nil {
		return oauthUserInfo{}, fmt.Errorf("failed to fetch Google user info")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return oauthUserInfo{}, fmt.Errorf("failed to fetch Google user info")
	}

	var payload struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return oauthUserInfo{}, fmt.Errorf("failed to parse Google user info")
	}

	return oauthUserInfo{Subject: payload.ID, Email: payload.Email}, nil
}

func fetchAppleUser(ctx context.Context, provider OAuthProvider, token *oauth2.Token, r *http.Request) (oauthUserInfo, error) {
	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return oauthUserInfo{}, errors.New("missing Apple id_token")
	}

	nonce := ""
	if cookie, err := r.Cookie("oauth_nonce"); err == nil {
		nonce = cookie.Value
	}

	claims, err := parseAppleIDToken(ctx, idToken, provider.Config.ClientID, nonce)
	if err != nil {
		return oauthUserInfo{}, err
	}

	return oauthUserInfo{Subject: claims.Subject, Email: claims.Email}, nil
}

func (h *AuthHandler) oauthRedirectURL(r *http.Request, providerKey string) string {
	baseURL := strings.TrimSpace(h.oauthRedirectBaseURL)
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}
	return fmt.Sprintf("%s/api/auth/%s/callback", strings.TrimRight(baseURL, "/"), providerKey)
}

func (h *AuthHandler) setTempCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
	})
}

func (h *AuthHandler) clearTempCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

type appleTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Nonce         string `json:"nonce"`
}

type appleJWK struct {
	Keys []appleJWKKey `json:"keys"`
}

type appleJWKKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type appleParsedClaims struct {
	Subject string
	Email   string
}

func parseAppleIDToken(ctx context.Context, idToken, clientID, nonce string) (appleParsedClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	claims := &appleTokenClaims{}

	parsedToken, err := parser.ParseWithClaims(idToken, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing key id")
		}
		return fetchApplePublicKey(ctx, kid)
	})
	if err != nil || !parsedToken.Valid {
		return appleParsedClaims{}, errors.New("invalid Apple token")
	}

	if claims.Issuer != "https://appleid.apple.com" {
		return appleParsedClaims{}, errors.New("invalid Apple issuer")
	}
	if !audienceContains(claims.Audience, clientID) {
		return appleParsedClaims{}, errors.New("invalid Apple audience")
	}
	if nonce != "" && claims.Nonce != "" && claims.Nonce != nonce {
		return appleParsedClaims{}, errors.New("invalid Apple nonce")
	}
	if claims.Email == "" {
		return appleParsedClaims{}, errors.New("Apple email not available")
	}

	return appleParsedClaims{Subject: claims.Subject, Email: claims.Email}, nil
}

func audienceContains(audience jwt.ClaimStrings, value string) bool {
	for _, entry := range audience {
		if entry == value {
			return true
		}
	}
	return false
}

func fetchApplePublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://appleid.apple.com/auth/keys", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("failed to fetch Apple public keys")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var jwk appleJWK
	if err := json.Unmarshal(body, &jwk); err != nil {
		return nil, err
	}

	for _, key := range jwk.Keys {
		if key.Kid != kid {
			continue
		}
		if key.Kty != "RSA" {
			return nil, errors.New("unexpected key type")
		}
		modulusBytes, err := base64.RawURLEncoding.DecodeString(key.N)
		if err != nil {
			return nil, err
		}
		exponentBytes, err := base64.RawURLEncoding.DecodeString(key.E)
		if err != nil {
			return nil, err
		}
		exponent := 0
		for _, b := range exponentBytes {
			exponent = exponent*256 + int(b)
		}
		return &rsa.PublicKey{
			N: new(big.Int).SetBytes(modulusBytes),
			E: exponent,
		}, nil
	}

	return nil, errors.New("Apple public key not found")
}
