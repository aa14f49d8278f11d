// Package resolve combines configuration, profiles, the workspace and
// command-line overrides into the final container configuration.
package resolve

import (
	"errors"
	"fmt"

	"github.com/jakenelson/agentbox/internal/config"
	"github.com/jakenelson/agentbox/internal/hostenv"
	"github.com/jakenelson/agentbox/internal/log"
	"github.com/jakenelson/agentbox/internal/mount"
	"github.com/jakenelson/agentbox/internal/profile"
	"github.com/jakenelson/agentbox/internal/security"
	"github.com/jakenelson/agentbox/internal/workspace"
	"github.com/spf13/afero"
)

// ErrUnknownBackend is returned for a backend override that is not supported.
var ErrUnknownBackend = errors.New("unknown backend")

// BackendUnsupportedModeError is returned when a mount asks for a mode the
// selected backend cannot provide.
type BackendUnsupportedModeError struct {
	Backend string
	Mode    mount.Mode
	Spec    string
}

func (e *BackendUnsupportedModeError) Error() string {
	return fmt.Sprintf("mount %q uses mode %s which backend %q does not support (overlay mounts need %s)",
		e.Spec, e.Mode.Token(), e.Backend, config.BackendPodman)
}

// Input is everything a resolution depends on.
type Input struct {
	Config    *config.Config
	Workspace *workspace.Workspace

	// Command-line selections. Each list is applied after the configured
	// values of the same kind.
	Profiles []string
	Mounts   []mount.Request
	Ports    []string
	Hosts    []string
	Env      []string
	Command  []string

	NoSkip     bool
	Backend    string
	Entrypoint string
	Network    string

	HostHome string
	Identity hostenv.Identity
	Lookup   hostenv.LookupFunc
	Fs       afero.Fs
}

// Config is a fully resolved container configuration.
type Config struct {
	Backend     string        `json:"backend" yaml:"backend"`
	Image       string        `json:"image" yaml:"image"`
	Entrypoint  string        `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`
	Command     []string      `json:"command,omitempty" yaml:"command,omitempty"`
	User        string        `json:"user" yaml:"user"`
	WorkDir     string        `json:"workdir,omitempty" yaml:"workdir,omitempty"`
	Network     string        `json:"network,omitempty" yaml:"network,omitempty"`
	MemoryLimit string        `json:"memory_limit,omitempty" yaml:"memory_limit,omitempty"`
	Profiles    []string      `json:"profiles" yaml:"profiles"`
	Mounts      []mount.Entry `json:"mounts" yaml:"mounts"`
	Env         []string      `json:"env" yaml:"env"`
	Ports       []string      `json:"ports" yaml:"ports"`
	Hosts       []string      `json:"hosts" yaml:"hosts"`
	// Passthrough lists env_passthrough names missing on the host.
	Passthrough []string `json:"missing_passthrough,omitempty" yaml:"missing_passthrough,omitempty"`
}

// Binds renders every mount as host:container:mode.
func (c *Config) Binds() []string {
	out := make([]string, 0, len(c.Mounts))
	for _, m := range c.Mounts {
		out = append(out, m.Bind())
	}
	return out
}

// Resolve computes the container configuration. Mount precedence is:
// workspace, runtime mounts, default profile, command-line profiles,
// command-line mounts. Env, ports and hosts follow the same order and are
// deduplicated with the first occurrence kept.
func Resolve(in Input) (*Config, error) {
	cfg := in.Config
	rt := cfg.Runtime

	backend := rt.Backend
	if in.Backend != "" {
		if !config.ValidBackend(in.Backend) {
			return nil, fmt.Errorf("%w %q", ErrUnknownBackend, in.Backend)
		}
		backend = in.Backend
	}

	var names []string
	if cfg.DefaultProfile != "" {
		names = append(names, cfg.DefaultProfile)
	}
	names = append(names, in.Profiles...)
	bundle, err := profile.Resolve(cfg.Profiles, names)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve profiles: %w", err)
	}

	runtimeMounts, err := mount.FromConfig(rt.Mounts)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}

	var reqs []mount.Request
	if in.Workspace != nil {
		reqs = append(reqs, in.Workspace.Requests()...)
	}
	reqs = append(reqs, runtimeMounts...)
	reqs = append(reqs, bundle.Mounts...)
	reqs = append(reqs, in.Mounts...)

	if !config.SupportsOverlay(backend) {
		for _, r := range reqs {
			if r.Mode == mount.Overlay {
				return nil, &BackendUnsupportedModeError{Backend: backend, Mode: r.Mode, Spec: r.Spec}
			}
		}
	}

	skipPatterns := security.DefaultSkipMounts
	if rt.SkipMounts != nil {
		skipPatterns = *rt.SkipMounts
	}
	skip, err := security.NewSkipMatcher(skipPatterns, in.HostHome)
	if err != nil {
		return nil, err
	}

	fsys := in.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	resolver := &mount.Resolver{
		Fs:            fsys,
		HostHome:      in.HostHome,
		ContainerHome: in.Identity.Home,
		Skip:          skip,
		NoSkip:        in.NoSkip,
	}
	entries, err := resolver.Resolve(reqs)
	if err != nil {
		return nil, err
	}

	passNames := Dedup(rt.EnvPassthrough, bundle.EnvPassthrough)
	passEnv, missing := hostenv.Passthrough(passNames, in.Lookup)

	out := &Config{
		Backend:     backend,
		Image:       rt.Image,
		Entrypoint:  rt.Entrypoint,
		Command:     in.Command,
		User:        in.Identity.User(),
		Network:     rt.Network,
		MemoryLimit: rt.MemoryLimit,
		Profiles:    Dedup(bundle.Applied),
		Mounts:      entries,
		Env:         Dedup(in.Identity.Env(), rt.Env, bundle.Env, in.Env, passEnv),
		Ports:       Dedup(rt.Ports, bundle.Ports, in.Ports),
		Hosts:       Dedup(rt.Hosts, bundle.Hosts, in.Hosts),
		Passthrough: missing,
	}
	if in.Entrypoint != "" {
		out.Entrypoint = in.Entrypoint
	}
	if in.Network != "" {
		out.Network = in.Network
	}
	if in.Workspace != nil {
		out.WorkDir = in.Workspace.Root
	}

	log.Debug("resolved container config",
		"backend", out.Backend,
		"profiles", out.Profiles,
		"mounts", len(out.Mounts),
		"env", len(out.Env),
		"ports", len(out.Ports))
	return out, nil
}
