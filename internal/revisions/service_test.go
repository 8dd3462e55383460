package revisions

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestThoughtRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Snapshot{
		Title:    "Why slugs",
		Content:  "<p>first draft</p>",
		IdeaSlug: "engineering",
	}

	if err := svc.EnsureRepo("why-slugs", initial, "Robin"); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "why-slugs")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	// second call is a no-op
	if err := svc.EnsureRepo("why-slugs", initial, "Robin"); err != nil {
		t.Fatalf("EnsureRepo() second call error = %v", err)
	}

	updated := initial
	updated.Content = "<p>second draft</p>"
	commit, err := svc.Commit("why-slugs", updated, "Robin", "Edit thought")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}

	history, err := svc.History("why-slugs", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Message != "Edit thought" {
		t.Fatalf("expected newest commit first, got %q", history[0].Message)
	}

	recovered, err := svc.GetByHash("why-slugs", commit.Hash)
	if err != nil {
		t.Fatalf("GetByHash() error = %v", err)
	}
	if recovered.Content != "<p>second draft</p>" {
		t.Fatalf("unexpected snapshot: %+v", recovered)
	}

	head, info, err := svc.Head("why-slugs")
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if head != updated {
		t.Fatalf("head snapshot mismatch: %+v", head)
	}
	if info.Hash != commit.Hash {
		t.Fatalf("head hash mismatch: %s != %s", info.Hash, commit.Hash)
	}
}

func TestCommitSkipsUnchangedSnapshot(t *testing.T) {
	svc := New(t.TempDir())

	snapshot := Snapshot{Title: "Same", Content: "<p>same</p>", IdeaSlug: "art"}
	if err := svc.EnsureRepo("same", snapshot, "Robin"); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}

	first, err := svc.Commit("same", snapshot, "Robin", "No change")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	history, err := svc.History("same", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("identical snapshot should not add a commit, got %d entries", len(history))
	}
	if first.Hash != history[0].Hash {
		t.Fatalf("expected head hash back, got %s", first.Hash)
	}
}

func TestConcurrentCommits(t *testing.T) {
	svc := New(t.TempDir())

	initial := Snapshot{Title: "Busy", Content: "<p>v0</p>", IdeaSlug: "games"}
	if err := svc.EnsureRepo("busy", initial, "Robin"); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			next := initial
			next.Content = fmt.Sprintf("<p>v%02d</p>", idx+1)
			if _, err := svc.Commit("busy", next, "Robin", fmt.Sprintf("Edit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("Commit() concurrent error = %v", err)
		}
	}

	head, _, err := svc.Head("busy")
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if !strings.HasPrefix(head.Content, "<p>v") {
		t.Fatalf("unexpected head after concurrent commits: %+v", head)
	}
}

func TestRemoveDeletesRepository(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	snapshot := Snapshot{Title: "Gone", Content: "<p>bye</p>", IdeaSlug: "art"}
	if err := svc.EnsureRepo("gone", snapshot, "Robin"); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}
	if err := svc.Remove("gone"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "gone")); !os.IsNotExist(err) {
		t.Fatal("expected repository directory to be gone")
	}
}
