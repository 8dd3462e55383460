package media

import "testing"

func TestFolderFor(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/png", "images"},
		{"image/jpeg", "images"},
		{"video/mp4", "videos"},
		{"application/pdf", "files"},
		{"text/plain", "files"},
		{"", "files"},
	}

	for _, tt := range tests {
		if got := folderFor(tt.contentType); got != tt.want {
			t.Errorf("folderFor(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

func TestCandidateKey(t *testing.T) {
	tests := []struct {
		folder   string
		filename string
		attempt  int
		want     string
	}{
		{"images", "pic.png", 0, "images/pic.png"},
		{"images", "pic.png", 1, "images/pic-1.png"},
		{"images", "pic.png", 2, "images/pic-2.png"},
		{"files", "notes", 1, "files/notes-1"},
		{"files", "archive.tar.gz", 1, "files/archive.tar-1.gz"},
	}

	for _, tt := range tests {
		if got := candidateKey(tt.folder, tt.filename, tt.attempt); got != tt.want {
			t.Errorf("candidateKey(%q, %q, %d) = %q, want %q",
				tt.folder, tt.filename, tt.attempt, got, tt.want)
		}
	}
}
