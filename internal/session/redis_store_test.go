package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	sessions, err := NewRedisStore("redis://" + mini.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })
	return sessions, mini
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	sessions, _ := setupTestRedis(t)
	ctx := context.Background()

	err := sessions.SaveRefreshSession(ctx, "hash-1", "user-123", time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	user, err := sessions.LookupRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if user.ID != "user-123" {
		t.Errorf("expected user-123, got %s", user.ID)
	}
	if user.Role != "reader" {
		t.Errorf("expected reader fallback role, got %s", user.Role)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	sessions, mini := setupTestRedis(t)
	ctx := context.Background()

	err := sessions.SaveRefreshSession(ctx, "hash-exp", "user-456", time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	mini.FastForward(2 * time.Second)

	if _, err := sessions.LookupRefreshSession(ctx, "hash-exp"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound after TTL, got %v", err)
	}
}

func TestSaveAlreadyExpiredSessionFails(t *testing.T) {
	sessions, _ := setupTestRedis(t)

	err := sessions.SaveRefreshSession(context.Background(), "hash-past", "user-1", time.Now().Add(-time.Minute))
	if err == nil {
		t.Error("expected error for expiry in the past")
	}
}

func TestLookupNonExistentSession(t *testing.T) {
	sessions, _ := setupTestRedis(t)

	if _, err := sessions.LookupRefreshSession(context.Background(), "no-such-hash"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	sessions, _ := setupTestRedis(t)
	ctx := context.Background()

	err := sessions.SaveRefreshSession(ctx, "hash-revoke", "user-789", time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	if err := sessions.RevokeRefreshSession(ctx, "hash-revoke"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}
	if _, err := sessions.LookupRefreshSession(ctx, "hash-revoke"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound after revoke, got %v", err)
	}

	// revoking again is a no-op, not an error
	if err := sessions.RevokeRefreshSession(ctx, "hash-revoke"); err != nil {
		t.Errorf("second revoke failed: %v", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	sessions, _ := setupTestRedis(t)
	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	if err := sessions.SaveRefreshSession(ctx, "hash-a", "user-a", expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession a failed: %v", err)
	}
	if err := sessions.SaveRefreshSession(ctx, "hash-b", "user-b", expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession b failed: %v", err)
	}

	if err := sessions.RevokeRefreshSession(ctx, "hash-a"); err != nil {
		t.Fatalf("Revoke hash-a failed: %v", err)
	}

	if _, err := sessions.LookupRefreshSession(ctx, "hash-a"); err != ErrSessionNotFound {
		t.Errorf("expected hash-a gone, got %v", err)
	}
	user, err := sessions.LookupRefreshSession(ctx, "hash-b")
	if err != nil {
		t.Fatalf("Lookup hash-b failed: %v", err)
	}
	if user.ID != "user-b" {
		t.Errorf("expected user-b to survive, got %s", user.ID)
	}
}
