package security

import (
	"path/filepath"
	"strings"
)

// ExpandHome replaces a leading "~" or "~/" with home and cleans the result.
// Other paths are only cleaned.
func ExpandHome(path, home string) string {
	switch {
	case path == "":
		return ""
	case path == "~":
		return filepath.Clean(home)
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(home, path[2:])
	default:
		return filepath.Clean(path)
	}
}

// IsWithin reports whether path is equal to or a child of dir.
func IsWithin(path, dir string) bool {
	if path == dir {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, "../")
}

// IsStrictlyWithin reports whether path is a child of dir, not dir itself.
func IsStrictlyWithin(path, dir string) bool {
	return path != dir && IsWithin(path, dir)
}

// TrimHome returns path relative to home and whether path lies under it.
func TrimHome(path, home string) (string, bool) {
	if !IsWithin(path, home) {
		return "", false
	}
	rel, _ := filepath.Rel(home, path)
	return rel, true
}
