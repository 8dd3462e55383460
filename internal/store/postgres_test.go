package store

import "testing"

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"images/pic.png", "images/pic.png"},
		{"images/a_b.png", `images/a\_b.png`},
		{"files/100%.pdf", `files/100\%.pdf`},
		{`files/back\slash`, `files/back\\slash`},
		{"files/_%_", `files/\_\%\_`},
	}

	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
