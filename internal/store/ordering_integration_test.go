package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// openMigratedTestDB connects to the database named by TEST_DATABASE_URL,
// resets the public schema and applies every migration. Tests using it are
// integration tests and skip when no database is configured.
func openMigratedTestDB(ctx context.Context, t *testing.T) *sql.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func assertIdeaRank(ctx context.Context, t *testing.T, store *PostgresStore, slug string, want int) {
	t.Helper()
	idea, err := store.GetIdea(ctx, slug)
	if err != nil {
		t.Fatalf("get idea %s: %v", slug, err)
	}
	if idea.Order != want {
		t.Fatalf("idea %s has rank %d, want %d", slug, idea.Order, want)
	}
}

func TestIdeaRanksDenseAndSwapInvolution(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db := openMigratedTestDB(ctx, t)
	defer db.Close()
	store := NewPostgresStore(db)

	games, err := store.InsertIdea(ctx, Idea{Slug: "games", Name: "Games"})
	if err != nil {
		t.Fatalf("insert games: %v", err)
	}
	if games.Order != 1 {
		t.Fatalf("first idea must take rank 1, got %d", games.Order)
	}

	art, err := store.InsertIdea(ctx, Idea{Slug: "art", Name: "Art"})
	if err != nil {
		t.Fatalf("insert art: %v", err)
	}
	if art.Order != 2 {
		t.Fatalf("second idea must take rank 2, got %d", art.Order)
	}

	code, err := store.InsertIdea(ctx, Idea{Slug: "code", Name: "Code"})
	if err != nil {
		t.Fatalf("insert code: %v", err)
	}
	if code.Order != 3 {
		t.Fatalf("third idea must take rank 3, got %d", code.Order)
	}

	// Swapping moves both ranks and leaves the third idea untouched.
	if err := store.SwapIdeaOrder(ctx, "games", "art"); err != nil {
		t.Fatalf("swap games/art: %v", err)
	}
	assertIdeaRank(ctx, t, store, "games", 2)
	assertIdeaRank(ctx, t, store, "art", 1)
	assertIdeaRank(ctx, t, store, "code", 3)

	// Swapping the same pair again restores the original layout.
	if err := store.SwapIdeaOrder(ctx, "games", "art"); err != nil {
		t.Fatalf("swap games/art back: %v", err)
	}
	assertIdeaRank(ctx, t, store, "games", 1)
	assertIdeaRank(ctx, t, store, "art", 2)
	assertIdeaRank(ctx, t, store, "code", 3)

	// The next insert always extends from the current maximum rank.
	if err := store.DeleteIdea(ctx, "code"); err != nil {
		t.Fatalf("delete code: %v", err)
	}
	music, err := store.InsertIdea(ctx, Idea{Slug: "music", Name: "Music"})
	if err != nil {
		t.Fatalf("insert music: %v", err)
	}
	if music.Order != 3 {
		t.Fatalf("insert after delete must take max+1 = 3, got %d", music.Order)
	}
}

func TestNextAndPrevIdeaAtBoundaries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db := openMigratedTestDB(ctx, t)
	defer db.Close()
	store := NewPostgresStore(db)

	for _, slug := range []string{"one", "two", "three"} {
		if _, err := store.InsertIdea(ctx, Idea{Slug: slug, Name: slug}); err != nil {
			t.Fatalf("insert %s: %v", slug, err)
		}
	}

	next, err := store.NextIdea(ctx, 1)
	if err != nil {
		t.Fatalf("next of rank 1: %v", err)
	}
	if next.Slug != "two" {
		t.Fatalf("next of rank 1 should be two, got %s", next.Slug)
	}

	if _, err := store.PrevIdea(ctx, 1); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("prev of the first rank must be sql.ErrNoRows, got %v", err)
	}
	if _, err := store.NextIdea(ctx, 3); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("next of the last rank must be sql.ErrNoRows, got %v", err)
	}
}

func TestDeleteIdeaGuardInDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db := openMigratedTestDB(ctx, t)
	defer db.Close()
	store := NewPostgresStore(db)

	seedAuthor(ctx, t, store)
	if _, err := store.InsertIdea(ctx, Idea{Slug: "games", Name: "Games"}); err != nil {
		t.Fatalf("insert idea: %v", err)
	}
	if err := store.InsertThought(ctx, Thought{
		Slug: "hello", Title: "Hello", IdeaSlug: "games", AuthorID: "user-1", IsDraft: true,
	}); err != nil {
		t.Fatalf("insert thought: %v", err)
	}

	if err := store.DeleteIdea(ctx, "games"); !errors.Is(err, ErrIdeaNotEmpty) {
		t.Fatalf("delete of a non-empty idea must fail with ErrIdeaNotEmpty, got %v", err)
	}

	if err := store.DeleteThought(ctx, "hello"); err != nil {
		t.Fatalf("delete thought: %v", err)
	}
	if err := store.DeleteIdea(ctx, "games"); err != nil {
		t.Fatalf("delete of an emptied idea must succeed, got %v", err)
	}
}

func TestCountThoughtsWithImageMatchesKeysLiterally(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db := openMigratedTestDB(ctx, t)
	defer db.Close()
	store := NewPostgresStore(db)

	seedAuthor(ctx, t, store)
	if _, err := store.InsertIdea(ctx, Idea{Slug: "games", Name: "Games"}); err != nil {
		t.Fatalf("insert idea: %v", err)
	}
	thoughts := []Thought{
		{Slug: "a", Title: "a", Content: `<img src="images/a_b.png">`, IdeaSlug: "games", AuthorID: "user-1"},
		{Slug: "b", Title: "b", Content: `<img src="images/aXb.png">`, IdeaSlug: "games", AuthorID: "user-1"},
	}
	for _, item := range thoughts {
		if err := store.InsertThought(ctx, item); err != nil {
			t.Fatalf("insert thought %s: %v", item.Slug, err)
		}
	}

	// The underscore in the key must match literally, not as a wildcard.
	count, err := store.CountThoughtsWithImage(ctx, "images/a_b.png", "a")
	if err != nil {
		t.Fatalf("count image references: %v", err)
	}
	if count != 0 {
		t.Fatalf("images/a_b.png is only embedded by the excluded thought, got count %d", count)
	}

	count, err = store.CountThoughtsWithImage(ctx, "images/a_b.png", "b")
	if err != nil {
		t.Fatalf("count image references: %v", err)
	}
	if count != 1 {
		t.Fatalf("images/a_b.png is embedded by one other thought, got count %d", count)
	}
}

func seedAuthor(ctx context.Context, t *testing.T, store *PostgresStore) {
	t.Helper()
	err := store.CreateUser(ctx, User{
		ID:           "user-1",
		DisplayName:  "Robin",
		Email:        "robin@example.com",
		PasswordHash: "x",
		Role:         "author",
	})
	if err != nil {
		t.Fatalf("seed author: %v", err)
	}
}
