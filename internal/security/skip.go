package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidGlobPattern is returned for malformed glob syntax.
var ErrInvalidGlobPattern = errors.New("invalid glob pattern")

// DefaultSkipMounts applies when runtime.skip_mounts is absent from the
// configuration. An explicit empty list disables skipping altogether.
var DefaultSkipMounts = []string{
	"~/.gnupg",
	"~/.gnupg/**",
	"~/.netrc",
	"~/.docker/config.json",
	"~/.kube/config",
	"~/.aws/credentials",
}

// SkipMatcher tests host paths against skip patterns.
type SkipMatcher struct {
	raw      []string
	patterns []string
}

// NewSkipMatcher expands a leading "~" in each pattern to home and checks
// the glob syntax.
func NewSkipMatcher(patterns []string, home string) (*SkipMatcher, error) {
	m := &SkipMatcher{}
	for _, p := range patterns {
		expanded := ExpandHome(p, home)
		if !doublestar.ValidatePattern(expanded) {
			return nil, fmt.Errorf("%w in skip_mounts: %q", ErrInvalidGlobPattern, p)
		}
		m.raw = append(m.raw, p)
		m.patterns = append(m.patterns, expanded)
	}
	return m, nil
}

// Match returns the configured pattern that matches path, if any.
func (m *SkipMatcher) Match(path string) (string, bool) {
	if m == nil {
		return "", false
	}
	for i, p := range m.patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return m.raw[i], true
		}
	}
	return "", false
}

// HasGlobMeta reports whether s contains glob metacharacters.
func HasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}
