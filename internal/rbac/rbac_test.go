package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "reader read", role: RoleReader, action: ActionRead, allow: true},
		{name: "reader write", role: RoleReader, action: ActionWrite, allow: false},
		{name: "reader export", role: RoleReader, action: ActionExport, allow: false},
		{name: "author read", role: RoleAuthor, action: ActionRead, allow: true},
		{name: "author write", role: RoleAuthor, action: ActionWrite, allow: true},
		{name: "author export", role: RoleAuthor, action: ActionExport, allow: true},
		{name: "unknown role", role: Role("ghost"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("author") != RoleAuthor {
		t.Fatal("author should survive normalization")
	}
	if Normalize("superuser") != RoleReader {
		t.Fatal("unknown roles should fall back to reader")
	}
}
