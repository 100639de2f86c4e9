package resolve

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// matchesPath decides whether a workspace-relative path satisfies a user
// path filter. Glob semantics: ** crosses path segments, * stays within
// one, ? matches one character. A pattern also matches when anchored at any
// depth or as a directory prefix; a no-slash pattern additionally matches
// the bare filename and any directory component equal to the pattern.
func matchesPath(relPath, filter string) bool {
	relPath = filepath.ToSlash(relPath)

	if ok, _ := doublestar.Match(filter, relPath); ok {
		return true
	}
	if ok, _ := doublestar.Match("**/"+filter, relPath); ok {
		return true
	}
	if ok, _ := doublestar.Match(filter+"/**", relPath); ok {
		return true
	}
	if !strings.Contains(filter, "/") {
		if ok, _ := doublestar.Match(filter, filepath.Base(relPath)); ok {
			return true
		}
		for _, part := range strings.Split(relPath, "/") {
			if part == filter {
				return true
			}
		}
	}
	return false
}
