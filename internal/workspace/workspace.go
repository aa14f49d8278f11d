// Package workspace locates the directory a container works in and the
// source repository it was created from.
package workspace

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jakenelson/agentbox/internal/config"
	"github.com/jakenelson/agentbox/internal/mount"
	"github.com/jakenelson/agentbox/internal/security"
	"github.com/spf13/afero"
)

var (
	// ErrNoRepository is returned when no repository root is found above a directory.
	ErrNoRepository = errors.New("not inside a git or jj repository")
	// ErrNotUnderBase is returned when a repository lies outside base_repo_dir.
	ErrNotUnderBase = errors.New("repository is not under base_repo_dir")
	// ErrSessionRequired is returned when a non-local workspace has no session.
	ErrSessionRequired = errors.New("session name required")
	// ErrNotFound is returned when the session workspace does not exist.
	ErrNotFound = errors.New("workspace not found")
)

// Kind is the version control flavour of a session workspace.
type Kind int

const (
	Jj Kind = iota
	Git
)

func (k Kind) String() string {
	if k == Git {
		return "git"
	}
	return "jj"
}

// Workspace is the directory mounted as the container's working directory.
type Workspace struct {
	Root   string
	Source string
	// Local is set when Root is the source repository itself.
	Local    bool
	ReadOnly bool
}

// Options selects a workspace.
type Options struct {
	// Dir is where repository discovery starts, usually the current directory.
	Dir      string
	Repo     string
	Session  string
	Kind     Kind
	Local    bool
	ReadOnly bool
}

// Path returns workspace_dir/<kind>/<repo>/<session>.
func Path(cfg *config.Config, kind Kind, repo, session string) string {
	return filepath.Join(cfg.WorkspaceDir, kind.String(), repo, session)
}

// FindRoot walks up from dir to the first directory holding .git or .jj.
func FindRoot(fsys afero.Fs, dir string) (string, error) {
	cur := filepath.Clean(dir)
	for {
		for _, marker := range []string{".git", ".jj"} {
			if ok, _ := afero.Exists(fsys, filepath.Join(cur, marker)); ok {
				return cur, nil
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("%w: %s", ErrNoRepository, dir)
		}
		cur = parent
	}
}

// RepoName returns the repository path relative to base_repo_dir.
func RepoName(cfg *config.Config, root string) (string, error) {
	if cfg.BaseRepoDir == "" || !security.IsStrictlyWithin(root, cfg.BaseRepoDir) {
		return "", fmt.Errorf("%w: %s (base_repo_dir %q)", ErrNotUnderBase, root, cfg.BaseRepoDir)
	}
	rel, err := filepath.Rel(cfg.BaseRepoDir, root)
	if err != nil {
		return "", fmt.Errorf("failed to compute repository name: %w", err)
	}
	return rel, nil
}

// Open resolves the workspace for opts. It does not create anything: a
// session workspace must already exist.
func Open(fsys afero.Fs, cfg *config.Config, opts Options) (*Workspace, error) {
	if opts.Local {
		root, err := FindRoot(fsys, opts.Dir)
		if err != nil {
			return nil, err
		}
		return &Workspace{Root: root, Source: root, Local: true, ReadOnly: opts.ReadOnly}, nil
	}

	if opts.Session == "" {
		return nil, ErrSessionRequired
	}
	repo := opts.Repo
	if repo == "" {
		root, err := FindRoot(fsys, opts.Dir)
		if err != nil {
			return nil, err
		}
		if repo, err = RepoName(cfg, root); err != nil {
			return nil, err
		}
	}

	root := Path(cfg, opts.Kind, repo, opts.Session)
	if ok, _ := afero.DirExists(fsys, root); !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
	}
	return &Workspace{
		Root:     root,
		Source:   filepath.Join(cfg.BaseRepoDir, repo),
		ReadOnly: opts.ReadOnly,
	}, nil
}

// Requests returns the workspace mounts: the root, then the source
// repository's .git and .jj unless the workspace is the source itself.
// Missing directories are dropped later by the mount resolver.
func (w *Workspace) Requests() []mount.Request {
	mode := mount.ReadWrite
	if w.ReadOnly {
		mode = mount.ReadOnly
	}
	reqs := []mount.Request{{Spec: w.Root, Source: w.Root, Mode: mode, Kind: mount.Absolute}}
	if w.Local {
		return reqs
	}
	for _, dir := range []string{".git", ".jj"} {
		p := filepath.Join(w.Source, dir)
		reqs = append(reqs, mount.Request{Spec: p, Source: p, Mode: mount.ReadWrite, Kind: mount.Absolute})
	}
	return reqs
}
