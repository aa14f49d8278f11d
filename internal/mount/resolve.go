package mount

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jakenelson/agentbox/internal/log"
	"github.com/jakenelson/agentbox/internal/security"
	"github.com/spf13/afero"
)

// maxHops bounds symlink resolution, mirroring the kernel's ELOOP limit.
const maxHops = 40

// Entry is one resolved bind mount.
type Entry struct {
	Host      string `json:"host" yaml:"host"`
	Container string `json:"container" yaml:"container"`
	Mode      Mode   `json:"mode" yaml:"mode"`
	Spec      string `json:"spec" yaml:"spec"`
}

// Bind renders the entry as host:container:mode.
func (e Entry) Bind() string {
	return fmt.Sprintf("%s:%s:%s", e.Host, e.Container, e.Mode)
}

// Resolver turns ordered mount requests into bind entries. Requests are
// processed strictly in order; the first request producing a host path
// wins.
type Resolver struct {
	Fs            afero.Fs
	HostHome      string
	ContainerHome string
	Skip          *security.SkipMatcher
	// NoSkip keeps mounts that lie under an already accepted mount. Skip
	// patterns still apply.
	NoSkip bool

	realHome string
}

// NewResolver returns a resolver over the host filesystem.
func NewResolver(hostHome, containerHome string, skip *security.SkipMatcher, noSkip bool) *Resolver {
	return &Resolver{
		Fs:            afero.NewOsFs(),
		HostHome:      hostHome,
		ContainerHome: containerHome,
		Skip:          skip,
		NoSkip:        noSkip,
	}
}

// Resolve runs every request through the pipeline:
// glob expansion, path derivation, skip filter, existence filter, symlink
// chain expansion, deduplication and coverage elision.
func (r *Resolver) Resolve(reqs []Request) ([]Entry, error) {
	acc := newAcceptor(r.NoSkip)
	for _, req := range reqs {
		expanded, err := r.expandGlob(req)
		if err != nil {
			return nil, err
		}
		for _, one := range expanded {
			host, container := r.derive(one)
			host = r.canonical(host)

			if r.skipped(host) {
				continue
			}
			if !r.exists(host) {
				log.Debug("skipping mount of missing path", "path", host, "spec", one.Spec)
				continue
			}
			for _, e := range r.chain(Entry{Host: host, Container: container, Mode: one.Mode, Spec: one.Spec}, one.Kind) {
				if !r.skipped(e.Host) {
					acc.offer(e)
				}
			}
		}
	}
	return acc.entries, nil
}

// expandGlob enumerates the filesystem matches of a glob source. Requests
// without glob metacharacters pass through unchanged. Zero matches yield
// zero requests.
func (r *Resolver) expandGlob(req Request) ([]Request, error) {
	if !security.HasGlobMeta(req.Source) {
		return []Request{req}, nil
	}

	pattern := security.ExpandHome(req.Source, r.HostHome)
	base, rel := doublestar.SplitPattern(pattern)

	fsys := afero.NewIOFS(afero.NewBasePathFs(r.Fs, base))
	matches, err := doublestar.Glob(fsys, rel)
	if err != nil {
		if errors.Is(err, doublestar.ErrBadPattern) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidGlobPattern, req.Spec)
		}
		if errors.Is(err, fs.ErrNotExist) {
			matches = nil
		} else {
			return nil, fmt.Errorf("failed to expand %q: %w", req.Spec, err)
		}
	}
	if len(matches) == 0 {
		log.Debug("glob matched nothing", "pattern", pattern)
		return nil, nil
	}
	sort.Strings(matches)

	out := make([]Request, 0, len(matches))
	for _, m := range matches {
		one := req
		one.Source = filepath.Join(base, filepath.FromSlash(m))
		out = append(out, one)
	}
	return out, nil
}

// skipped reports whether host matches a skip pattern. NoSkip does not
// disable this check. host is canonical, so a path under the resolved home
// is also matched in its HostHome spelling.
func (r *Resolver) skipped(host string) bool {
	candidates := []string{host}
	if home := r.canonicalHome(); home != r.HostHome {
		if rel, ok := security.TrimHome(host, home); ok {
			candidates = append(candidates, filepath.Join(r.HostHome, rel))
		}
	}
	for _, p := range candidates {
		if pattern, ok := r.Skip.Match(p); ok {
			log.Debug("skipping mount matching skip pattern", "path", host, "pattern", pattern)
			return true
		}
	}
	return false
}

// canonicalHome returns HostHome with every symlink resolved, or HostHome
// itself when it cannot be resolved.
func (r *Resolver) canonicalHome() string {
	if r.realHome != "" {
		return r.realHome
	}
	r.realHome = r.HostHome
	if r.Fs != nil && r.HostHome != "" {
		if resolved, err := r.realpath(r.HostHome); err == nil {
			r.realHome = resolved
		}
	}
	return r.realHome
}

// derive returns the host and container paths of a single request.
func (r *Resolver) derive(req Request) (host, container string) {
	host = security.ExpandHome(req.Source, r.HostHome)
	if req.HasDest() {
		return host, security.ExpandHome(req.Dest, r.ContainerHome)
	}
	return host, r.containerPath(host, req.Kind)
}

func (r *Resolver) containerPath(host string, kind Kind) string {
	if kind != HomeRelative {
		return host
	}
	for _, home := range []string{r.HostHome, r.canonicalHome()} {
		if rel, ok := security.TrimHome(host, home); ok {
			return filepath.Join(r.ContainerHome, rel)
		}
	}
	return host
}

// canonical resolves symlinks in the parent directories of p but not in p
// itself, so that a symlink keeps its own identity as a chain hop. Paths
// whose parents cannot be resolved are returned cleaned.
func (r *Resolver) canonical(p string) string {
	p = filepath.Clean(p)
	if p == "/" {
		return p
	}
	dir, err := r.realpath(filepath.Dir(p))
	if err != nil {
		return p
	}
	return filepath.Join(dir, filepath.Base(p))
}

// realpath resolves every symlink in p.
func (r *Resolver) realpath(p string) (string, error) {
	hops := 0
	pending := strings.Split(strings.TrimPrefix(filepath.Clean(p), "/"), "/")
	cur := "/"
	for len(pending) > 0 {
		part := pending[0]
		pending = pending[1:]
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			cur = filepath.Dir(cur)
			continue
		}

		next := filepath.Join(cur, part)
		target, isLink, err := r.readlink(next)
		if err != nil {
			return "", err
		}
		if !isLink {
			cur = next
			continue
		}

		hops++
		if hops > maxHops {
			return "", fmt.Errorf("too many levels of symbolic links: %s", p)
		}
		if filepath.IsAbs(target) {
			cur = "/"
		}
		pending = append(strings.Split(filepath.ToSlash(target), "/"), pending...)
	}
	return cur, nil
}

// readlink reports whether p is a symlink and returns its raw target.
func (r *Resolver) readlink(p string) (string, bool, error) {
	lstater, ok := r.Fs.(afero.Lstater)
	if !ok {
		if _, err := r.Fs.Stat(p); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	info, _, err := lstater.LstatIfPossible(p)
	if err != nil {
		return "", false, err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return "", false, nil
	}
	reader, ok := r.Fs.(afero.LinkReader)
	if !ok {
		return "", false, nil
	}
	target, err := reader.ReadlinkIfPossible(p)
	if err != nil {
		return "", false, err
	}
	return target, true, nil
}

// exists follows symlinks; a dangling link does not exist.
func (r *Resolver) exists(p string) bool {
	_, err := r.Fs.Stat(p)
	return err == nil
}

// chain expands first into the symlink chain starting at it: first itself,
// then every link target in order, ending with the real path. Every hop
// keeps the mode; hops after the first derive their container path from
// their own host path.
func (r *Resolver) chain(first Entry, kind Kind) []Entry {
	entries := []Entry{first}
	seen := map[string]bool{first.Host: true}
	cur := first.Host
	for hops := 0; hops < maxHops; hops++ {
		target, isLink, err := r.readlink(cur)
		if err != nil || !isLink {
			break
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(cur), target)
		}
		next := r.canonical(target)
		if seen[next] {
			break
		}
		seen[next] = true
		entries = append(entries, Entry{
			Host:      next,
			Container: r.containerPath(next, kind),
			Mode:      first.Mode,
			Spec:      first.Spec,
		})
		cur = next
	}
	return entries
}

// acceptor keeps the ordered result, dropping duplicates of an accepted
// host path and, unless noSkip, paths beneath an accepted one. A covered
// path is dropped whatever the modes of parent and child.
type acceptor struct {
	noSkip  bool
	entries []Entry
	index   map[string]int
}

func newAcceptor(noSkip bool) *acceptor {
	return &acceptor{noSkip: noSkip, index: map[string]int{}}
}

func (a *acceptor) offer(e Entry) bool {
	if i, dup := a.index[e.Host]; dup {
		log.Debug("dropping duplicate mount", "path", e.Host, "kept_mode", a.entries[i].Mode.String(), "spec", e.Spec)
		return false
	}
	if !a.noSkip {
		for _, accepted := range a.entries {
			if security.IsStrictlyWithin(e.Host, accepted.Host) {
				log.Debug("dropping covered mount", "path", e.Host, "covered_by", accepted.Host)
				return false
			}
		}
	}
	a.index[e.Host] = len(a.entries)
	a.entries = append(a.entries, e)
	return true
}
