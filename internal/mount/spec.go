// Package mount parses mount tokens and resolves them into the bind
// mounts handed to the container runtime.
package mount

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jakenelson/agentbox/internal/config"
	"github.com/jakenelson/agentbox/internal/security"
)

var (
	ErrInvalidMountPath     = errors.New("invalid mount path")
	ErrAmbiguousGlobMapping = errors.New("glob source cannot map to an explicit destination")
	ErrKindMismatch         = errors.New("mount path does not match its declared family")
	ErrInvalidGlobPattern   = security.ErrInvalidGlobPattern
)

// Mode is the access mode of one mount. The zero value is ReadWrite.
type Mode int

const (
	ReadWrite Mode = iota
	ReadOnly
	Overlay
)

// String returns the mode as it appears in a bind string.
func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "ro"
	case Overlay:
		return "O"
	default:
		return "rw"
	}
}

// Token returns the mode as it is written in a mount token prefix.
func (m Mode) Token() string {
	if m == Overlay {
		return "o"
	}
	return m.String()
}

// MarshalText renders the bind form so reports show "ro", "rw" or "O".
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode accepts "ro", "rw", "o" and "O".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "ro":
		return ReadOnly, nil
	case "rw":
		return ReadWrite, nil
	case "o", "O":
		return Overlay, nil
	default:
		return ReadWrite, fmt.Errorf("unknown mount mode %q (allowed: ro, rw, o)", s)
	}
}

// Kind selects how the container path is derived when no destination is
// given.
type Kind int

const (
	// Absolute mounts appear at the same path inside the container.
	Absolute Kind = iota
	// HomeRelative mounts have the host home prefix replaced by the
	// container home.
	HomeRelative
)

func (k Kind) String() string {
	if k == HomeRelative {
		return "home_relative"
	}
	return "absolute"
}

// Request is one declared mount before expansion. Source and Dest are
// unresolved: they may start with "~" and Source may hold glob
// metacharacters.
type Request struct {
	Spec   string // the token as written
	Source string
	Dest   string // empty when the container path is derived
	Mode   Mode
	Kind   Kind
}

// HasDest reports whether an explicit destination was given.
func (r Request) HasDest() bool {
	return r.Dest != ""
}

// ParseToken parses a CLI token of the form [mode:]path or [mode:]src:dst.
// The mode defaults to ReadWrite.
func ParseToken(token string, kind Kind) (Request, error) {
	mode := ReadWrite
	body := token
	if m, rest, ok := cutModePrefix(token); ok {
		mode, body = m, rest
	}
	if body == "" {
		return Request{}, fmt.Errorf("%w: empty path in %q", ErrInvalidMountPath, token)
	}
	return parse(token, body, mode, kind)
}

// ParseEntry parses a config list entry (path or src:dst). The mode comes
// from the table the entry was declared in.
func ParseEntry(entry string, mode Mode, kind Kind) (Request, error) {
	if entry == "" {
		return Request{}, fmt.Errorf("%w: empty path", ErrInvalidMountPath)
	}
	return parse(entry, entry, mode, kind)
}

// ParseCLI parses the home-relative flag family followed by the absolute
// one, each in the order given.
func ParseCLI(homeRelative, absolute []string) ([]Request, error) {
	reqs := make([]Request, 0, len(homeRelative)+len(absolute))
	for _, t := range homeRelative {
		r, err := ParseToken(t, HomeRelative)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	for _, t := range absolute {
		r, err := ParseToken(t, Absolute)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}

// FromConfig parses every list of a mounts table in the fixed order
// ro, rw, o with the absolute family before the home-relative one.
func FromConfig(m config.MountsConfig) ([]Request, error) {
	tables := []struct {
		name  string
		mode  Mode
		lists config.MountLists
	}{
		{config.ModeTableReadOnly, ReadOnly, m.RO},
		{config.ModeTableReadWrite, ReadWrite, m.RW},
		{config.ModeTableOverlay, Overlay, m.O},
	}

	var reqs []Request
	for _, tbl := range tables {
		for _, p := range tbl.lists.Absolute {
			r, err := ParseEntry(p, tbl.mode, Absolute)
			if err != nil {
				return nil, fmt.Errorf("mounts.%s.absolute: %w", tbl.name, err)
			}
			reqs = append(reqs, r)
		}
		for _, p := range tbl.lists.HomeRelative {
			r, err := ParseEntry(p, tbl.mode, HomeRelative)
			if err != nil {
				return nil, fmt.Errorf("mounts.%s.home_relative: %w", tbl.name, err)
			}
			reqs = append(reqs, r)
		}
	}
	return reqs, nil
}

func cutModePrefix(s string) (Mode, string, bool) {
	for _, p := range []struct {
		prefix string
		mode   Mode
	}{
		{"ro:", ReadOnly},
		{"rw:", ReadWrite},
		{"o:", Overlay},
	} {
		if rest, ok := strings.CutPrefix(s, p.prefix); ok {
			return p.mode, rest, true
		}
	}
	return ReadWrite, s, false
}

func parse(spec, body string, mode Mode, kind Kind) (Request, error) {
	src, dst, hasDst := splitSpec(body)
	if !validPath(src) {
		return Request{}, fmt.Errorf("%w: %q must be absolute (/...) or home-relative (~/...)", ErrInvalidMountPath, spec)
	}

	req := Request{Spec: spec, Source: src, Mode: mode, Kind: kind}
	if hasDst {
		if !validPath(dst) {
			return Request{}, fmt.Errorf("%w: destination of %q must be absolute (/...) or home-relative (~/...)", ErrInvalidMountPath, spec)
		}
		if security.HasGlobMeta(src) {
			return Request{}, fmt.Errorf("%w: %q", ErrAmbiguousGlobMapping, spec)
		}
		req.Dest = dst
		return req, nil
	}

	if kind == HomeRelative && !strings.HasPrefix(src, "~/") {
		return Request{}, fmt.Errorf("%w: %q is declared home-relative but does not start with ~/", ErrKindMismatch, spec)
	}
	if security.HasGlobMeta(src) && !doublestar.ValidatePattern(src) {
		return Request{}, fmt.Errorf("%w: %q", ErrInvalidGlobPattern, spec)
	}
	return req, nil
}

func validPath(p string) bool {
	return strings.HasPrefix(p, "/") || strings.HasPrefix(p, "~/")
}

// splitSpec splits on the first unescaped ':'. "\:" stands for a literal
// colon in either half.
func splitSpec(s string) (src, dst string, ok bool) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && s[i+1] == ':' {
			b.WriteByte(':')
			i++
			continue
		}
		if c == ':' {
			return b.String(), unescape(s[i+1:]), true
		}
		b.WriteByte(c)
	}
	return b.String(), "", false
}

func unescape(s string) string {
	return strings.ReplaceAll(s, `\:`, ":")
}
