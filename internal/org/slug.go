package org

import (
	"regexp"
	"strings"
)

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[\s_-]+`)
)

// Slugify turns a display name into the path segment used in materialised
// paths: lowercased, special characters stripped, whitespace/underscore runs
// collapsed to single hyphens, leading and trailing hyphens trimmed.
// Returns "" when nothing slug-worthy remains.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ParentPath returns the materialised path one segment up, or "" for roots.
func ParentPath(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ""
	}
	return path[:idx]
}
