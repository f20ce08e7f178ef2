package utils

import (
	"strings"
)

// SanitizeFilename strips any directory components from a client supplied
// filename. Both forward and back slashes are treated as separators.
// Returns "" when nothing usable is left.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// FileExtension returns the lowercased extension after the last dot,
// without the dot. Returns "" when the name has no dot.
func FileExtension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}
