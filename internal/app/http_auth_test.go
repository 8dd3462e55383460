package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"brainstorm/api/internal/auth"
	"brainstorm/api/internal/store"
)

func issueTestToken(t *testing.T, role string, ttl time.Duration) string {
	t.Helper()
	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:  "user-1",
		Name: "Robin",
		Role: role,
		JTI:  "jti-1",
		Exp:  time.Now().Add(ttl).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func assertUnauthorizedCode(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED code, got %v", body["code"])
	}
}

func TestProtectedRouteWithoutBearer(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	assertUnauthorizedCode(t, rr)
}

func TestProtectedRouteWithInvalidBearer(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "")

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	assertUnauthorizedCode(t, rr)
}

func TestProtectedRouteWithExpiredBearer(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "")

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, "author", -time.Minute))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	assertUnauthorizedCode(t, rr)
}

func TestReaderCannotCreateIdea(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, DisplayName: "Robin", Role: "reader"}, nil
		},
	}
	svc, _, _, _ := newTestService(fs)
	server := NewHTTPServer(svc, "")

	req := httptest.NewRequest(http.MethodPost, "/api/ideas", bytes.NewBufferString(`{"name":"Go"}`))
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, "reader", time.Hour))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN code, got %v", body["code"])
	}
	if len(fs.inserted) != 0 {
		t.Fatal("reader writes must not reach the store")
	}
}

func TestAuthorCanCreateIdea(t *testing.T) {
	fs := &fakeStore{}
	svc, _, _, _ := newTestService(fs)
	server := NewHTTPServer(svc, "")

	req := httptest.NewRequest(http.MethodPost, "/api/ideas", bytes.NewBufferString(`{"name":"Deep Work"}`))
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, "author", time.Hour))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["slug"] != "deep-work" {
		t.Fatalf("expected slug deep-work, got %v", body["slug"])
	}
}

func TestAnonymousCanListIdeas(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ideas", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
}

func TestSessionEndpointAnonymous(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["authenticated"] != false {
		t.Fatalf("expected authenticated=false, got %v", body["authenticated"])
	}
}

func TestSessionEndpointWithBearer(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "")

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, "author", time.Hour))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["authenticated"] != true {
		t.Fatalf("expected authenticated=true, got %v", body["authenticated"])
	}
	if body["userName"] != "Robin" {
		t.Fatalf("expected userName Robin, got %v", body["userName"])
	}
}

func TestRefreshEndpointRotatesTokens(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "")

	first, err := svc.CreateSession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	payload, _ := json.Marshal(map[string]string{"refreshToken": first.RefreshToken})
	req := httptest.NewRequest(http.MethodPost, "/api/session/refresh", bytes.NewBuffer(payload))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["refreshToken"] == first.RefreshToken {
		t.Fatal("refresh must return a new refresh token")
	}

	// The rotated-out token stops working.
	req = httptest.NewRequest(http.MethodPost, "/api/session/refresh", bytes.NewBuffer(payload))
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	assertUnauthorizedCode(t, rr)
}

func TestSignInUnavailableWithoutAuthService(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin",
		bytes.NewBufferString(`{"email":"robin@example.com","password":"secret"}`))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != "AUTH_UNAVAILABLE" {
		t.Fatalf("expected AUTH_UNAVAILABLE code, got %v", body["code"])
	}
}

func TestSearchRejectsBadLimit(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/search?q=go&limit=abc", nil))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR code, got %v", body["code"])
	}
}

func TestUnknownRouteNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/widgets", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
