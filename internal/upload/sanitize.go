package upload

import (
	"net/url"
	"path"
	"strings"
	"unicode/utf8"
)

// DefaultFilename replaces names that are empty after trimming.
const DefaultFilename = "file"

// maxNameBytes bounds a sanitized name to what common filesystems and
// object stores accept as a single path segment.
const maxNameBytes = 255

// SanitizeFilename makes name safe to use as one segment of a storage key.
// Path separators and control characters become '_', everything else
// (including non-ASCII) is kept.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultFilename
	}

	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, name)

	return truncateName(name, maxNameBytes)
}

// truncateName cuts name to at most max bytes on a rune boundary, keeping a
// short extension intact.
func truncateName(name string, max int) string {
	if len(name) <= max {
		return name
	}

	ext := path.Ext(name)
	if len(ext) > max/4 {
		ext = ""
	}
	base := name[:len(name)-len(ext)]

	limit := max - len(ext)
	for limit > 0 && !utf8.RuneStart(base[limit]) {
		limit--
	}
	return base[:limit] + ext
}

// StorageKey is the object key for a file: files/{owner}/{fileID}/{name}.
// Both owner and name are sanitized so the prefix always has exactly three
// separators.
func StorageKey(ownerID, fileID, filename string) string {
	return "files/" + SanitizeFilename(ownerID) + "/" + fileID + "/" + SanitizeFilename(filename)
}

// PublicURL derives the public download URL of key under base. An empty base
// yields a root-relative path.
func PublicURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
