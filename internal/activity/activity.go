// Package activity defines the append-only action log: the closed set of
// action types and the rendering of their token payloads into feed messages.
package activity

import (
	"fmt"
	"strconv"
)

// Type tags one kind of user action. The set is closed: the renderer carries
// a formatting entry per type and tags anything it does not recognize.
type Type string

const (
	TypeIdeaCreated   Type = "idea_created"
	TypeIdeaEdited    Type = "idea_edited"
	TypeIdeaDeleted   Type = "idea_deleted"
	TypeIdeaReordered Type = "idea_reordered"

	TypeThoughtCreated     Type = "thought_created"
	TypeThoughtEdited      Type = "thought_edited"
	TypeThoughtPublished   Type = "thought_published"
	TypeThoughtUnpublished Type = "thought_unpublished"
	TypeThoughtTrashed     Type = "thought_trashed"
	TypeThoughtUntrashed   Type = "thought_untrashed"
	TypeThoughtMoved       Type = "thought_moved"
	TypeThoughtDeleted     Type = "thought_deleted"

	TypeThoughtsPublished   Type = "thoughts_published"
	TypeThoughtsUnpublished Type = "thoughts_unpublished"
	TypeThoughtsTrashed     Type = "thoughts_trashed"
	TypeThoughtsUntrashed   Type = "thoughts_untrashed"
	TypeThoughtsMoved       Type = "thoughts_moved"
	TypeThoughtsDeleted     Type = "thoughts_deleted"

	TypeHighlightCreated Type = "highlight_created"
	TypeHighlightEdited  Type = "highlight_edited"
	TypeHighlightDeleted Type = "highlight_deleted"

	TypeReadingListAdded       Type = "readinglist_added"
	TypeReadingListEdited      Type = "readinglist_edited"
	TypeReadingListDeleted     Type = "readinglist_deleted"
	TypeReadingListFavorited   Type = "readinglist_favorited"
	TypeReadingListUnfavorited Type = "readinglist_unfavorited"
	TypeReadingListFinished    Type = "readinglist_finished"

	TypeTaskCreated   Type = "task_created"
	TypeTaskEdited    Type = "task_edited"
	TypeTaskCompleted Type = "task_completed"
	TypeTaskReopened  Type = "task_reopened"
	TypeTaskDeleted   Type = "task_deleted"

	TypeNoteCreated  Type = "note_created"
	TypeNoteEdited   Type = "note_edited"
	TypeNoteDeleted  Type = "note_deleted"
	TypeNoteAttached Type = "note_attached"

	TypeSignedIn  Type = "signed_in"
	TypeSignedOut Type = "signed_out"
)

// Tokens is the flat contextual payload recorded with each activity. It is
// serialized to JSON on the row and must round-trip unchanged.
type Tokens map[string]string

func (t Tokens) get(key string) string {
	if value, ok := t[key]; ok {
		return value
	}
	// unknown tokens are left visible rather than silently blanked
	return "{" + key + "}"
}

func (t Tokens) length() int {
	n, err := strconv.Atoi(t["length"])
	if err != nil {
		return 1
	}
	return n
}

func plural(count int, singular, pluralForm string) string {
	if count == 1 {
		return fmt.Sprintf("1 %s", singular)
	}
	return fmt.Sprintf("%d %s", count, pluralForm)
}

var renderers = map[Type]func(Tokens) string{
	TypeIdeaCreated: func(t Tokens) string {
		return fmt.Sprintf("created the idea \"%s\"", t.get("name"))
	},
	TypeIdeaEdited: func(t Tokens) string {
		return fmt.Sprintf("edited the idea \"%s\"", t.get("name"))
	},
	TypeIdeaDeleted: func(t Tokens) string {
		return fmt.Sprintf("deleted the idea \"%s\"", t.get("name"))
	},
	TypeIdeaReordered: func(t Tokens) string {
		return fmt.Sprintf("moved the idea \"%s\" %s", t.get("name"), t.get("direction"))
	},

	TypeThoughtCreated: func(t Tokens) string {
		return fmt.Sprintf("started a draft \"%s\" under \"%s\"", t.get("title"), t.get("idea"))
	},
	TypeThoughtEdited: func(t Tokens) string {
		return fmt.Sprintf("edited \"%s\"", t.get("title"))
	},
	TypeThoughtPublished: func(t Tokens) string {
		return fmt.Sprintf("published \"%s\" under \"%s\"", t.get("title"), t.get("idea"))
	},
	TypeThoughtUnpublished: func(t Tokens) string {
		return fmt.Sprintf("reverted \"%s\" to a draft", t.get("title"))
	},
	TypeThoughtTrashed: func(t Tokens) string {
		return fmt.Sprintf("moved \"%s\" to the trash", t.get("title"))
	},
	TypeThoughtUntrashed: func(t Tokens) string {
		return fmt.Sprintf("restored \"%s\" from the trash", t.get("title"))
	},
	TypeThoughtMoved: func(t Tokens) string {
		return fmt.Sprintf("moved \"%s\" from \"%s\" to \"%s\"",
			t.get("title"), t.get("old_idea"), t.get("new_idea"))
	},
	TypeThoughtDeleted: func(t Tokens) string {
		return fmt.Sprintf("permanently deleted \"%s\"", t.get("title"))
	},

	TypeThoughtsPublished: func(t Tokens) string {
		return fmt.Sprintf("published %s", plural(t.length(), "thought", "thoughts"))
	},
	TypeThoughtsUnpublished: func(t Tokens) string {
		return fmt.Sprintf("reverted %s to drafts", plural(t.length(), "thought", "thoughts"))
	},
	TypeThoughtsTrashed: func(t Tokens) string {
		return fmt.Sprintf("moved %s to the trash", plural(t.length(), "thought", "thoughts"))
	},
	TypeThoughtsUntrashed: func(t Tokens) string {
		return fmt.Sprintf("restored %s from the trash", plural(t.length(), "thought", "thoughts"))
	},
	TypeThoughtsMoved: func(t Tokens) string {
		return fmt.Sprintf("moved %s to \"%s\"",
			plural(t.length(), "thought", "thoughts"), t.get("new_idea"))
	},
	TypeThoughtsDeleted: func(t Tokens) string {
		return fmt.Sprintf("permanently deleted %s", plural(t.length(), "thought", "thoughts"))
	},

	TypeHighlightCreated: func(t Tokens) string {
		return fmt.Sprintf("added the highlight \"%s\"", t.get("title"))
	},
	TypeHighlightEdited: func(t Tokens) string {
		return fmt.Sprintf("edited the highlight \"%s\"", t.get("title"))
	},
	TypeHighlightDeleted: func(t Tokens) string {
		return fmt.Sprintf("removed the highlight \"%s\"", t.get("title"))
	},

	TypeReadingListAdded: func(t Tokens) string {
		return fmt.Sprintf("added \"%s\" to the reading list", t.get("title"))
	},
	TypeReadingListEdited: func(t Tokens) string {
		return fmt.Sprintf("edited \"%s\" on the reading list", t.get("title"))
	},
	TypeReadingListDeleted: func(t Tokens) string {
		return fmt.Sprintf("removed \"%s\" from the reading list", t.get("title"))
	},
	TypeReadingListFavorited: func(t Tokens) string {
		return fmt.Sprintf("starred \"%s\"", t.get("title"))
	},
	TypeReadingListUnfavorited: func(t Tokens) string {
		return fmt.Sprintf("unstarred \"%s\"", t.get("title"))
	},
	TypeReadingListFinished: func(t Tokens) string {
		return fmt.Sprintf("finished reading \"%s\"", t.get("title"))
	},

	TypeTaskCreated: func(t Tokens) string {
		return fmt.Sprintf("added the task \"%s\"", t.get("content"))
	},
	TypeTaskEdited: func(t Tokens) string {
		return fmt.Sprintf("edited the task \"%s\"", t.get("content"))
	},
	TypeTaskCompleted: func(t Tokens) string {
		return fmt.Sprintf("completed the task \"%s\"", t.get("content"))
	},
	TypeTaskReopened: func(t Tokens) string {
		return fmt.Sprintf("reopened the task \"%s\"", t.get("content"))
	},
	TypeTaskDeleted: func(t Tokens) string {
		return fmt.Sprintf("deleted the task \"%s\"", t.get("content"))
	},

	TypeNoteCreated: func(t Tokens) string {
		return "wrote a note"
	},
	TypeNoteEdited: func(t Tokens) string {
		return "edited a note"
	},
	TypeNoteDeleted: func(t Tokens) string {
		return "deleted a note"
	},
	TypeNoteAttached: func(t Tokens) string {
		return fmt.Sprintf("attached a note to %s", plural(t.length(), "item", "items"))
	},

	TypeSignedIn:  func(Tokens) string { return "signed in" },
	TypeSignedOut: func(Tokens) string { return "signed out" },
}

// RenderMessage maps (type, tokens) to the human-readable feed message. It is
// a pure function; unknown types yield a clearly tagged fallback instead of
// failing, so feed rendering survives a type/table mismatch.
func RenderMessage(kind Type, tokens Tokens) string {
	render, ok := renderers[kind]
	if !ok {
		return fmt.Sprintf("unknown activity (%s)", kind)
	}
	if tokens == nil {
		tokens = Tokens{}
	}
	return render(tokens)
}

// Known reports whether kind has a rendering entry.
func Known(kind Type) bool {
	_, ok := renderers[kind]
	return ok
}
