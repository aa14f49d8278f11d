package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/jakenelson/agentbox/internal/log"
	"github.com/jakenelson/agentbox/internal/security"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

var (
	// ErrMissingGlobalConfig is returned when the global document does not exist.
	ErrMissingGlobalConfig = errors.New("global config not found")
	// ErrMalformedConfig is returned when a document cannot be parsed or decoded.
	ErrMalformedConfig = errors.New("malformed config")
)

// Config is the merged view of the global and repo-local documents
type Config struct {
	WorkspaceDir   string             `mapstructure:"workspace_dir"`
	BaseRepoDir    string             `mapstructure:"base_repo_dir"`
	DefaultProfile string             `mapstructure:"default_profile"`
	Runtime        RuntimeConfig      `mapstructure:"runtime"`
	Profiles       map[string]Profile `mapstructure:"profiles"`

	// Tree is the merged document the struct was decoded from.
	Tree map[string]any `mapstructure:"-"`
	// GlobalPath and LocalPath are the documents that were read. LocalPath is
	// empty when no repo-local document exists.
	GlobalPath string `mapstructure:"-"`
	LocalPath  string `mapstructure:"-"`
}

// RuntimeConfig configures the container runtime and the base settings that
// apply before any profile
type RuntimeConfig struct {
	Backend     string `mapstructure:"backend"`
	Image       string `mapstructure:"image"`
	Entrypoint  string `mapstructure:"entrypoint"`
	Network     string `mapstructure:"network"`
	MemoryLimit string `mapstructure:"memory_limit"` // e.g., "4g"

	// SkipMounts is nil when the key is absent (default skip list applies)
	// and empty when skipping is disabled.
	SkipMounts *[]string `mapstructure:"skip_mounts"`

	Ports          []string     `mapstructure:"ports"`
	Env            []string     `mapstructure:"env"`
	Hosts          []string     `mapstructure:"hosts"`
	EnvPassthrough []string     `mapstructure:"env_passthrough"`
	Mounts         MountsConfig `mapstructure:"mounts"`
}

// MountsConfig groups mount paths by mode table
type MountsConfig struct {
	RO MountLists `mapstructure:"ro"`
	RW MountLists `mapstructure:"rw"`
	O  MountLists `mapstructure:"o"`
}

// MountLists holds the two path families of one mode table
type MountLists struct {
	Absolute     []string `mapstructure:"absolute"`
	HomeRelative []string `mapstructure:"home_relative"`
}

// Empty reports whether no path is declared in any table.
func (m MountsConfig) Empty() bool {
	for _, l := range []MountLists{m.RO, m.RW, m.O} {
		if len(l.Absolute) > 0 || len(l.HomeRelative) > 0 {
			return false
		}
	}
	return true
}

// Profile is a named, inheritable bundle of settings
type Profile struct {
	Name           string       `mapstructure:"-"`
	Description    string       `mapstructure:"description"`
	Extends        []string     `mapstructure:"extends"`
	Mounts         MountsConfig `mapstructure:"mounts"`
	Env            []string     `mapstructure:"env"`
	Ports          []string     `mapstructure:"ports"`
	Hosts          []string     `mapstructure:"hosts"`
	EnvPassthrough []string     `mapstructure:"env_passthrough"`
}

// Empty reports whether the profile contributes nothing.
func (p Profile) Empty() bool {
	return len(p.Extends) == 0 && p.Mounts.Empty() && len(p.Env) == 0 &&
		len(p.Ports) == 0 && len(p.Hosts) == 0 && len(p.EnvPassthrough) == 0
}

// ProfileNames returns the defined profile names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultGlobalPath returns the global document path under home
func DefaultGlobalPath(home string) string {
	return filepath.Join(home, ConfigFileName)
}

// LocalPathFor returns the repo-local document path for a repository root
func LocalPathFor(repoRoot string) string {
	return filepath.Join(repoRoot, ConfigFileName)
}

// defaultTree is the layer beneath the global document.
func defaultTree() map[string]any {
	return map[string]any{
		"runtime": map[string]any{
			"backend": BackendDocker,
		},
	}
}

// Load reads the global document (required) and the repo-local document
// (optional, may be ""), merges them and decodes the result. home is used
// to expand "~" in workspace_dir and base_repo_dir.
func Load(fsys afero.Fs, globalPath, localPath, home string) (*Config, error) {
	global, err := readTree(fsys, globalPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingGlobalConfig, globalPath)
		}
		return nil, err
	}

	tree := MergeTrees(defaultTree(), global)

	usedLocal := ""
	if localPath != "" {
		local, err := readTree(fsys, localPath)
		switch {
		case err == nil:
			tree = MergeTrees(tree, local)
			usedLocal = localPath
		case errors.Is(err, fs.ErrNotExist):
			log.Debug("no repo-local config", "path", localPath)
		default:
			return nil, err
		}
	}

	cfg, err := Decode(tree)
	if err != nil {
		return nil, err
	}
	cfg.GlobalPath = globalPath
	cfg.LocalPath = usedLocal
	cfg.WorkspaceDir = security.ExpandHome(cfg.WorkspaceDir, home)
	cfg.BaseRepoDir = security.ExpandHome(cfg.BaseRepoDir, home)
	return cfg, nil
}

// Decode converts a merged tree into a Config.
func Decode(tree map[string]any) (*Config, error) {
	cfg := &Config{}
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:   cfg,
		Metadata: &md,
		TagName:  "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create config decoder: %w", err)
	}
	if err := decoder.Decode(tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	for _, key := range md.Unused {
		log.Warn("unknown config key", "key", key)
	}
	if !ValidBackend(cfg.Runtime.Backend) {
		return nil, fmt.Errorf("%w: unknown runtime.backend %q (allowed: %s, %s)",
			ErrMalformedConfig, cfg.Runtime.Backend, BackendDocker, BackendPodman)
	}

	for name, p := range cfg.Profiles {
		p.Name = name
		cfg.Profiles[name] = p
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	cfg.Tree = tree
	return cfg, nil
}

func readTree(fsys afero.Fs, path string) (map[string]any, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	tree := map[string]any{}
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedConfig, path, err)
	}
	return tree, nil
}
