package activity

import (
	"strings"
	"testing"
)

func TestRenderMessageSingleActions(t *testing.T) {
	tests := []struct {
		kind   Type
		tokens Tokens
		want   string
	}{
		{TypeIdeaCreated, Tokens{"name": "Games"}, `created the idea "Games"`},
		{TypeThoughtPublished, Tokens{"title": "Hello", "idea": "Games"}, `published "Hello" under "Games"`},
		{TypeThoughtMoved, Tokens{"title": "Hello", "old_idea": "Games", "new_idea": "Art"}, `moved "Hello" from "Games" to "Art"`},
		{TypeReadingListFinished, Tokens{"title": "Dune"}, `finished reading "Dune"`},
		{TypeTaskCompleted, Tokens{"content": "ship it"}, `completed the task "ship it"`},
		{TypeSignedIn, nil, "signed in"},
	}

	for _, tt := range tests {
		if got := RenderMessage(tt.kind, tt.tokens); got != tt.want {
			t.Errorf("RenderMessage(%s) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestRenderMessagePluralization(t *testing.T) {
	got := RenderMessage(TypeThoughtsTrashed, Tokens{"length": "1"})
	if got != "moved 1 thought to the trash" {
		t.Errorf("singular phrasing wrong: %q", got)
	}

	got = RenderMessage(TypeThoughtsTrashed, Tokens{"length": "4"})
	if got != "moved 4 thoughts to the trash" {
		t.Errorf("plural phrasing wrong: %q", got)
	}
}

func TestRenderMessageUnknownTypeIsTagged(t *testing.T) {
	got := RenderMessage(Type("time_travelled"), Tokens{})
	if !strings.Contains(got, "unknown activity") || !strings.Contains(got, "time_travelled") {
		t.Errorf("expected tagged fallback, got %q", got)
	}
}

func TestRenderMessageMissingTokenStaysVisible(t *testing.T) {
	got := RenderMessage(TypeIdeaCreated, Tokens{})
	if !strings.Contains(got, "{name}") {
		t.Errorf("missing token should remain as placeholder, got %q", got)
	}
}

func TestEveryDeclaredTypeIsKnown(t *testing.T) {
	all := []Type{
		TypeIdeaCreated, TypeIdeaEdited, TypeIdeaDeleted, TypeIdeaReordered,
		TypeThoughtCreated, TypeThoughtEdited, TypeThoughtPublished,
		TypeThoughtUnpublished, TypeThoughtTrashed, TypeThoughtUntrashed,
		TypeThoughtMoved, TypeThoughtDeleted,
		TypeThoughtsPublished, TypeThoughtsUnpublished, TypeThoughtsTrashed,
		TypeThoughtsUntrashed, TypeThoughtsMoved, TypeThoughtsDeleted,
		TypeHighlightCreated, TypeHighlightEdited, TypeHighlightDeleted,
		TypeReadingListAdded, TypeReadingListEdited, TypeReadingListDeleted,
		TypeReadingListFavorited, TypeReadingListUnfavorited, TypeReadingListFinished,
		TypeTaskCreated, TypeTaskEdited, TypeTaskCompleted, TypeTaskReopened, TypeTaskDeleted,
		TypeNoteCreated, TypeNoteEdited, TypeNoteDeleted, TypeNoteAttached,
		TypeSignedIn, TypeSignedOut,
	}
	for _, kind := range all {
		if !Known(kind) {
			t.Errorf("type %s has no renderer", kind)
		}
	}
}
