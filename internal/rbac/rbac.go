// Package rbac holds the two-role permission model. Readers see published
// content; the author manages everything behind the dashboard.
package rbac

type Role string
type Action string

const (
	RoleReader Role = "reader"
	RoleAuthor Role = "author"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionExport Action = "export"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAuthor:
		return true
	case RoleReader:
		return action == ActionRead
	default:
		return false
	}
}

// Normalize maps an untrusted role string onto a defined role, falling back
// to reader.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleReader, RoleAuthor:
		return Role(role)
	default:
		return RoleReader
	}
}
