package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "http://localhost:3000")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body["ok"])
	}
}

func TestReadyEndpoint(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ready" {
		t.Fatalf("expected status ready, got %v", body["status"])
	}
	checks, _ := body["checks"].(map[string]any)
	for _, name := range []string{"database", "sessions"} {
		check, _ := checks[name].(map[string]any)
		if check["status"] != "ok" {
			t.Fatalf("expected %s check ok, got %v", name, check)
		}
	}
}

func TestReadyEndpointDatabaseDown(t *testing.T) {
	fs := &fakeStore{
		pingFn: func(context.Context) error {
			return errors.New("connection refused")
		},
	}
	svc, _, _, _ := newTestService(fs)
	server := NewHTTPServer(svc, "")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "not_ready" {
		t.Fatalf("expected status not_ready, got %v", body["status"])
	}
	checks, _ := body["checks"].(map[string]any)
	database, _ := checks["database"].(map[string]any)
	if database["status"] != "error" {
		t.Fatalf("expected database check error, got %v", database)
	}
	sessions, _ := checks["sessions"].(map[string]any)
	if sessions["status"] != "ok" {
		t.Fatalf("expected sessions check ok, got %v", sessions)
	}
}

func TestReadyEndpointSessionStoreDown(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})
	svc.sessions.(*fakeSessions).pingFn = func(context.Context) error {
		return errors.New("redis unreachable")
	}
	server := NewHTTPServer(svc, "")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	checks, _ := body["checks"].(map[string]any)
	sessions, _ := checks["sessions"].(map[string]any)
	if sessions["status"] != "error" {
		t.Fatalf("expected sessions check error, got %v", sessions)
	}
}

func TestOptionsPreflight(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "http://localhost:3000")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/ideas", nil))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "http://localhost:3000" {
		t.Fatalf("expected CORS origin header, got %q", origin)
	}
	if methods := rr.Header().Get("Access-Control-Allow-Methods"); methods == "" {
		t.Fatal("expected CORS methods header")
	}
}

func TestResponsesCarryRequestID(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	server.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected request id echoed back, got %q", got)
	}

	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a generated request id")
	}
}
