package index

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IsExcluded reports whether a workspace-relative path matches any of the
// user-supplied exclude patterns. A pattern excludes on substring, on exact
// path-component equality (when it has no glob syntax), on filename glob,
// and on full-path glob.
func IsExcluded(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	slashPath := filepath.ToSlash(relPath)
	parts := strings.Split(slashPath, "/")

	for _, pat := range patterns {
		if strings.Contains(slashPath, pat) {
			return true
		}
		if !strings.ContainsAny(pat, "/*?") {
			for _, part := range parts {
				if part == pat {
					return true
				}
			}
		}
		if ok, _ := doublestar.Match(pat, filepath.Base(slashPath)); ok {
			return true
		}
		if ok, _ := doublestar.Match(pat, slashPath); ok {
			return true
		}
	}
	return false
}
