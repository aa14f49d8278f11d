package container

import (
	"context"
	"errors"
	"fmt"

	"github.com/jakenelson/agentbox/internal/config"
	"github.com/jakenelson/agentbox/internal/mount"
	"github.com/jakenelson/agentbox/internal/resolve"
)

// ErrNoImage is returned when no runtime.image is configured.
var ErrNoImage = errors.New("no image configured (set runtime.image)")

// RunOptions configures container execution
type RunOptions struct {
	Image       string
	Entrypoint  string
	Command     []string
	User        string
	WorkDir     string
	Network     string
	MemoryLimit string
	Mounts      []mount.Entry
	Env         []string
	Ports       []string
	Hosts       []string
}

// NewRunOptions converts a resolved configuration into run options.
func NewRunOptions(cfg *resolve.Config) (RunOptions, error) {
	if cfg.Image == "" {
		return RunOptions{}, ErrNoImage
	}
	return RunOptions{
		Image:       cfg.Image,
		Entrypoint:  cfg.Entrypoint,
		Command:     cfg.Command,
		User:        cfg.User,
		WorkDir:     cfg.WorkDir,
		Network:     cfg.Network,
		MemoryLimit: cfg.MemoryLimit,
		Mounts:      cfg.Mounts,
		Env:         cfg.Env,
		Ports:       cfg.Ports,
		Hosts:       cfg.Hosts,
	}, nil
}

// Backend starts a container and waits for it to exit.
type Backend interface {
	Run(ctx context.Context, opts RunOptions) error
	Close() error
}

// NewBackend returns the backend named by runtime.backend.
func NewBackend(name string) (Backend, error) {
	switch name {
	case config.BackendDocker:
		return NewDockerRunner()
	case config.BackendPodman:
		return NewPodmanRunner(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}
