package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"familytalk/internal/database"
	"familytalk/internal/notify"
	"familytalk/internal/repository"
	"familytalk/internal/security"
	"familytalk/internal/service"
	"familytalk/migrations"
)

// newTestServer wires the API against a throwaway SQLite file, mirroring
// the production route table for the endpoints under test
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database-backed test in short mode")
	}

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(migrations.FS); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	familyRepo := repository.NewFamilyRepository(db)
	adultRepo := repository.NewAdultRepository(db)
	childRepo := repository.NewChildRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	callRepo := repository.NewCallRepository(db)

	hub := notify.NewHub()
	go hub.Run()

	limiter := security.NewFailureLimiter(3, time.Hour)
	authService := service.NewAuthService(adultRepo, familyRepo, invitationRepo, time.Hour)
	familyService := service.NewFamilyService(familyRepo, adultRepo, childRepo, invitationRepo, nil, 7*24*time.Hour)
	childSessionService := service.NewChildSessionService(familyRepo, childRepo, limiter, 30*24*time.Hour)
	conversationService := service.NewConversationService(conversationRepo, adultRepo, childRepo, hub, 2000)
	callService := service.NewCallService(callRepo, adultRepo, childRepo, hub, 90*time.Second, time.Hour)

	middleware := NewMiddleware(authService, childSessionService)
	authHandler := NewAuthHandler(authService, nil, "")
	familyHandler := NewFamilyHandler(familyService)
	childHandler := NewChildHandler(familyService, childSessionService)
	conversationHandler := NewConversationHandler(conversationService, hub)
	callHandler := NewCallHandler(callService, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/join", authHandler.Join)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/auth/me", middleware.RequireAdult(authHandler.Me))
	mux.HandleFunc("GET /api/family", middleware.RequireAdult(familyHandler.GetFamily))
	mux.HandleFunc("POST /api/family/invitations", middleware.RequireAdult(familyHandler.CreateInvitation))
	mux.HandleFunc("POST /api/family/children", middleware.RequireAdult(childHandler.CreateChild))
	mux.HandleFunc("GET /api/family/children", middleware.RequireAdult(childHandler.ListChildren))
	mux.HandleFunc("POST /api/child/login", childHandler.Login)
	mux.HandleFunc("GET /api/child/me", middleware.RequireChild(childHandler.Me))
	mux.HandleFunc("POST /api/conversations", middleware.RequirePrincipal(conversationHandler.Resolve))
	mux.HandleFunc("GET /api/conversations/{id}", middleware.RequirePrincipal(conversationHandler.Get))
	mux.HandleFunc("POST /api/conversations/{id}/messages", middleware.RequirePrincipal(conversationHandler.SendMessage))
	mux.HandleFunc("GET /api/conversations/{id}/messages", middleware.RequirePrincipal(conversationHandler.ListMessages))
	mux.HandleFunc("POST /api/calls", middleware.RequirePrincipal(callHandler.Start))
	mux.HandleFunc("GET /api/calls/{id}", middleware.RequirePrincipal(callHandler.Get))
	mux.HandleFunc("PATCH /api/calls/{id}", middleware.RequirePrincipal(callHandler.Update))

	server := httptest.NewServer(Logging(mux))
	t.Cleanup(server.Close)
	return server
}

// doJSON issues a JSON request and decodes the response body into out
func doJSON(t *testing.T, server *httptest.Server, method, path, token string, body, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request: %v", err)
		}
	}

	req, err := http.NewRequest(method, server.URL+path, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

// registerParent registers a parent with one child and returns the adult
// token, family code, child id and child login code
func registerParent(t *testing.T, server *httptest.Server, email string) (token, familyCode string, childID int64, loginCode string) {
	t.Helper()

	var reg struct {
		Token  string `json:"token"`
		Family struct {
			FamilyCode string `json:"family_code"`
		} `json:"family"`
	}
	status := doJSON(t, server, "POST", "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "password123",
		"name":     "Parent",
	}, &reg)
	if status != http.StatusCreated {
		t.Fatalf("register status = %d", status)
	}

	var child struct {
		ID        int64  `json:"id"`
		LoginCode string `json:"login_code"`
	}
	status = doJSON(t, server, "POST", "/api/family/children", reg.Token, map[string]string{
		"name":         "Alice",
		"avatar_color": "blue",
	}, &child)
	if status != http.StatusCreated {
		t.Fatalf("create child status = %d", status)
	}

	return reg.Token, reg.Family.FamilyCode, child.ID, child.LoginCode
}

func childLogin(t *testing.T, server *httptest.Server, familyCode, loginCode string) string {
	t.Helper()

	var resp struct {
		Token string `json:"token"`
	}
	status := doJSON(t, server, "POST", "/api/child/login", "", map[string]string{
		"family_code": familyCode,
		"login_code":  loginCode,
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("child login status = %d", status)
	}
	return resp.Token
}

func TestRegisterAndAuthenticatedMe(t *testing.T) {
	server := newTestServer(t)
	token, _, _, _ := registerParent(t, server, "mom@example.com")

	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if status := doJSON(t, server, "GET", "/api/auth/me", token, nil, &me); status != http.StatusOK {
		t.Fatalf("me status = %d", status)
	}
	if me.Email != "mom@example.com" || me.Role != "parent" {
		t.Errorf("me = %+v", me)
	}

	if status := doJSON(t, server, "GET", "/api/auth/me", "bogus-token", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("bogus token status = %d, want 401", status)
	}
}

func TestChildLoginAndMe(t *testing.T) {
	server := newTestServer(t)
	_, familyCode, childID, loginCode := registerParent(t, server, "mom@example.com")

	token := childLogin(t, server, familyCode, loginCode)

	var me struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if status := doJSON(t, server, "GET", "/api/child/me", token, nil, &me); status != http.StatusOK {
		t.Fatalf("child me status = %d", status)
	}
	if me.ID != childID || me.Name != "Alice" {
		t.Errorf("child me = %+v", me)
	}
}

func TestChildLoginRateLimitReturns429(t *testing.T) {
	server := newTestServer(t)
	_, familyCode, _, loginCode := registerParent(t, server, "mom@example.com")

	wrongCode := "raven-3"
	if wrongCode == loginCode {
		wrongCode = "raven-4"
	}

	body := map[string]string{"family_code": familyCode, "login_code": wrongCode}
	for i := 0; i < 3; i++ {
		if status := doJSON(t, server, "POST", "/api/child/login", "", body, nil); status != http.StatusUnauthorized {
			t.Fatalf("failure %d status = %d, want 401", i, status)
		}
	}

	good := map[string]string{"family_code": familyCode, "login_code": loginCode}
	if status := doJSON(t, server, "POST", "/api/child/login", "", good, nil); status != http.StatusTooManyRequests {
		t.Errorf("limited login status = %d, want 429", status)
	}
}

func TestMessagingRoundTrip(t *testing.T) {
	server := newTestServer(t)
	parentToken, familyCode, childID, loginCode := registerParent(t, server, "mom@example.com")
	childToken := childLogin(t, server, familyCode, loginCode)

	var conv struct {
		ID int64 `json:"id"`
	}
	status := doJSON(t, server, "POST", "/api/conversations", parentToken, map[string]int64{"child_id": childID}, &conv)
	if status != http.StatusOK {
		t.Fatalf("resolve status = %d", status)
	}

	status = doJSON(t, server, "POST", fmt.Sprintf("/api/conversations/%d/messages", conv.ID), parentToken,
		map[string]string{"content": "hi Alice"}, nil)
	if status != http.StatusCreated {
		t.Fatalf("send status = %d", status)
	}

	var messages []struct {
		SenderType string `json:"sender_type"`
		Content    string `json:"content"`
	}
	status = doJSON(t, server, "GET", fmt.Sprintf("/api/conversations/%d/messages", conv.ID), childToken, nil, &messages)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if len(messages) != 1 || messages[0].Content != "hi Alice" || messages[0].SenderType != "parent" {
		t.Errorf("messages = %+v", messages)
	}
}

func TestNonParticipantGets404(t *testing.T) {
	server := newTestServer(t)
	parentToken, _, childID, _ := registerParent(t, server, "mom@example.com")

	var inv struct {
		Code string `json:"code"`
	}
	if status := doJSON(t, server, "POST", "/api/family/invitations", parentToken,
		map[string]string{"email": "grandma@example.com", "relationship": "grandmother"}, &inv); status != http.StatusCreated {
		t.Fatalf("invite status = %d", status)
	}

	var join struct {
		Token string `json:"token"`
	}
	if status := doJSON(t, server, "POST", "/api/auth/join", "", map[string]string{
		"invitation_code": inv.Code,
		"email":           "grandma@example.com",
		"password":        "password123",
		"name":            "Grandma",
	}, &join); status != http.StatusCreated {
		t.Fatalf("join status = %d", status)
	}

	var conv struct {
		ID int64 `json:"id"`
	}
	if status := doJSON(t, server, "POST", "/api/conversations", parentToken, map[string]int64{"child_id": childID}, &conv); status != http.StatusOK {
		t.Fatalf("resolve status = %d", status)
	}

	// Grandma is in the family but not in this conversation; the response
	// is the same 404 a nonexistent id would produce
	status := doJSON(t, server, "GET", fmt.Sprintf("/api/conversations/%d", conv.ID), join.Token, nil, nil)
	if status != http.StatusNotFound {
		t.Errorf("non-participant status = %d, want 404", status)
	}
	status = doJSON(t, server, "GET", "/api/conversations/999999", join.Token, nil, nil)
	if status != http.StatusNotFound {
		t.Errorf("missing conversation status = %d, want 404", status)
	}
}

func TestCallVersionConflictReturns409(t *testing.T) {
	server := newTestServer(t)
	parentToken, familyCode, childID, loginCode := registerParent(t, server, "mom@example.com")
	childToken := childLogin(t, server, familyCode, loginCode)

	var call struct {
		ID      int64 `json:"id"`
		Version int64 `json:"version"`
	}
	status := doJSON(t, server, "POST", "/api/calls", parentToken, map[string]interface{}{
		"counterpart_id": childID,
		"offer":          "offer-sdp",
	}, &call)
	if status != http.StatusCreated {
		t.Fatalf("start status = %d", status)
	}

	patch := func(expected int64, body map[string]interface{}) int {
		return doJSON(t, server, "PATCH", fmt.Sprintf("/api/calls/%d", call.ID), childToken, map[string]interface{}{
			"expected_version": expected,
			"patch":            body,
		}, nil)
	}

	if status := patch(0, map[string]interface{}{"add_candidates": []string{"c1"}}); status != http.StatusOK {
		t.Fatalf("candidate patch status = %d", status)
	}

	// Version 0 is stale now
	if status := patch(0, map[string]interface{}{"answer": "answer-sdp"}); status != http.StatusConflict {
		t.Errorf("stale patch status = %d, want 409", status)
	}

	// Re-read and resubmit
	var current struct {
		Version int64 `json:"version"`
	}
	if status := doJSON(t, server, "GET", fmt.Sprintf("/api/calls/%d", call.ID), childToken, nil, &current); status != http.StatusOK {
		t.Fatalf("re-read status = %d", status)
	}
	if status := patch(current.Version, map[string]interface{}{"answer": "answer-sdp"}); status != http.StatusOK {
		t.Errorf("resubmit status = %d, want 200", status)
	}
}

func TestCallerCannotAnswerOwnCall(t *testing.T) {
	server := newTestServer(t)
	parentToken, _, childID, _ := registerParent(t, server, "mom@example.com")

	var call struct {
		ID int64 `json:"id"`
	}
	status := doJSON(t, server, "POST", "/api/calls", parentToken, map[string]interface{}{
		"counterpart_id": childID,
		"offer":          "offer-sdp",
	}, &call)
	if status != http.StatusCreated {
		t.Fatalf("start status = %d", status)
	}

	status = doJSON(t, server, "PATCH", fmt.Sprintf("/api/calls/%d", call.ID), parentToken, map[string]interface{}{
		"expected_version": 0,
		"patch":            map[string]interface{}{"answer": "self-answer"},
	}, nil)
	if status != http.StatusUnprocessableEntity {
		t.Errorf("self-answer status = %d, want 422", status)
	}
}
