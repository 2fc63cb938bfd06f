package upload

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"trimmed", "  report.pdf \t", "report.pdf"},
		{"empty", "", DefaultFilename},
		{"whitespace only", " \t\n ", DefaultFilename},
		{"traversal", "../secret.txt", ".._secret.txt"},
		{"backslash", `..\..\boot.ini`, ".._.._boot.ini"},
		{"nested dirs", "a/b/c.txt", "a_b_c.txt"},
		{"control chars", "bad\x00na\x1fme.txt", "bad_na_me.txt"},
		{"tab inside", "a\tb.txt", "a_b.txt"},
		{"unicode kept", "スクリーンショット 2024.png", "スクリーンショット 2024.png"},
		{"emoji kept", "🎮 save.dat", "🎮 save.dat"},
		{"del kept", "a\x7fb", "a\x7fb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilenameLength(t *testing.T) {
	long := strings.Repeat("a", 300) + ".txt"
	got := SanitizeFilename(long)
	if len(got) != maxNameBytes {
		t.Fatalf("len = %d, want %d", len(got), maxNameBytes)
	}
	if !strings.HasSuffix(got, ".txt") {
		t.Fatalf("extension lost: %q", got[len(got)-10:])
	}

	// Multi-byte runes must not be split.
	wide := strings.Repeat("é", 200) + ".png"
	got = SanitizeFilename(wide)
	if len(got) > maxNameBytes {
		t.Fatalf("len = %d, exceeds %d", len(got), maxNameBytes)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, ".png") {
		t.Fatalf("extension lost: %q", got)
	}

	// An absurd "extension" is not preserved at the expense of the name.
	odd := "x." + strings.Repeat("y", 300)
	got = SanitizeFilename(odd)
	if len(got) != maxNameBytes || !strings.HasPrefix(got, "x.") {
		t.Fatalf("unexpected truncation: len=%d prefix=%q", len(got), got[:2])
	}
}

func TestStorageKey(t *testing.T) {
	tests := []struct {
		owner, file, name string
		want              string
	}{
		{"u1", "f1", "a.txt", "files/u1/f1/a.txt"},
		{"u1", "f1", "../secret.txt", "files/u1/f1/.._secret.txt"},
		{"../u1", "f1", "a.txt", "files/.._u1/f1/a.txt"},
		{"u1", "f1", "", "files/u1/f1/" + DefaultFilename},
	}

	for _, tt := range tests {
		got := StorageKey(tt.owner, tt.file, tt.name)
		if got != tt.want {
			t.Errorf("StorageKey(%q, %q, %q) = %q, want %q", tt.owner, tt.file, tt.name, got, tt.want)
		}
		if strings.Count(got, "/") != 3 {
			t.Errorf("StorageKey(%q, %q, %q) = %q has extra separators", tt.owner, tt.file, tt.name, got)
		}
	}
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		base, key, want string
	}{
		{"https://cdn.example.com", "files/u1/f1/a.txt", "https://cdn.example.com/files/u1/f1/a.txt"},
		{"https://cdn.example.com/", "files/u1/f1/a.txt", "https://cdn.example.com/files/u1/f1/a.txt"},
		{"https://cdn.example.com", "files/u1/f1/my map.zip", "https://cdn.example.com/files/u1/f1/my%20map.zip"},
		{"", "files/u1/f1/a.txt", "/files/u1/f1/a.txt"},
	}

	for _, tt := range tests {
		if got := PublicURL(tt.base, tt.key); got != tt.want {
			t.Errorf("PublicURL(%q, %q) = %q, want %q", tt.base, tt.key, got, tt.want)
		}
	}
}
