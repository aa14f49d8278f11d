package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/docker/go-units"
	"github.com/jakenelson/agentbox/internal/log"
	"github.com/moby/term"
)

// PodmanRunner runs containers with the podman CLI. The container keeps the
// invoking user's uid and gid through --userns keep-id.
type PodmanRunner struct {
	Binary string
	TTY    bool
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewPodmanRunner returns a runner wired to the process stdio.
func NewPodmanRunner() *PodmanRunner {
	return &PodmanRunner{
		Binary: "podman",
		TTY:    term.IsTerminal(os.Stdin.Fd()),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Close is a no-op; podman holds no connection.
func (r *PodmanRunner) Close() error {
	return nil
}

// Args builds the podman run argument list.
func (r *PodmanRunner) Args(opts RunOptions) ([]string, error) {
	args := []string{"run", "--rm", "-i"}
	if r.TTY {
		args = append(args, "-t")
	}
	args = append(args, "--userns", "keep-id")
	if opts.User != "" {
		args = append(args, "--user", opts.User)
	}
	if opts.WorkDir != "" {
		args = append(args, "--workdir", opts.WorkDir)
	}
	if opts.Network != "" {
		args = append(args, "--network", opts.Network)
	}
	if opts.MemoryLimit != "" {
		if _, err := units.RAMInBytes(opts.MemoryLimit); err != nil {
			return nil, fmt.Errorf("invalid memory limit %q: %w", opts.MemoryLimit, err)
		}
		args = append(args, "--memory", opts.MemoryLimit)
	}
	for _, m := range opts.Mounts {
		args = append(args, "-v", m.Bind())
	}
	for _, p := range opts.Ports {
		args = append(args, "-p", p)
	}
	for _, h := range opts.Hosts {
		args = append(args, "--add-host", h)
	}
	for _, e := range opts.Env {
		args = append(args, "-e", e)
	}
	if opts.Entrypoint != "" {
		args = append(args, "--entrypoint", opts.Entrypoint)
	}
	args = append(args, opts.Image)
	return append(args, opts.Command...), nil
}

// Run executes podman run with the runner's stdio and waits for it to exit.
func (r *PodmanRunner) Run(ctx context.Context, opts RunOptions) error {
	args, err := r.Args(opts)
	if err != nil {
		return err
	}
	log.Debug("running podman", "command", r.Binary+" "+strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("container exited with code %d", exitErr.ExitCode())
		}
		return fmt.Errorf("failed to execute %s: %w", r.Binary, err)
	}
	return nil
}
