package rule

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// admits reports whether path is admitted by f: (no includes OR at least
// one include glob matches) AND no exclude glob matches. Globs use `*`
// within a path segment and `**` across segments, matched case-sensitively
// against the POSIX-normalized path.
func (f *PathFilter) admits(path string) bool {
	if f == nil {
		return true
	}
	normalized := filepath.ToSlash(path)

	if len(f.Includes) > 0 {
		included := false
		for _, glob := range f.Includes {
			if globMatch(glob, normalized) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	for _, glob := range f.Excludes {
		if globMatch(glob, normalized) {
			return false
		}
	}
	return true
}

func globMatch(glob, path string) bool {
	ok, err := doublestar.Match(glob, path)
	return err == nil && ok
}
