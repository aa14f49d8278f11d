package container

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	containerTypes "github.com/docker/docker/api/types/container"
	mountTypes "github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/docker/go-units"
	"github.com/jakenelson/agentbox/internal/log"
	"github.com/jakenelson/agentbox/internal/mount"
	"github.com/moby/term"
)

// DockerRunner runs containers through the Docker Engine API
type DockerRunner struct {
	client *client.Client
}

// NewDockerRunner connects to the Docker daemon configured by the environment
func NewDockerRunner() (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	if _, err := cli.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect to Docker: %w", err)
	}

	return &DockerRunner{client: cli}, nil
}

// Close closes the Docker client
func (r *DockerRunner) Close() error {
	return r.client.Close()
}

// dockerConfig translates run options into Docker API configuration.
func dockerConfig(opts RunOptions, tty bool) (*containerTypes.Config, *containerTypes.HostConfig, error) {
	var mounts []mountTypes.Mount
	for _, m := range opts.Mounts {
		if m.Mode == mount.Overlay {
			return nil, nil, fmt.Errorf("overlay mount %s is not supported by docker", m.Host)
		}
		mounts = append(mounts, mountTypes.Mount{
			Type:     mountTypes.TypeBind,
			Source:   m.Host,
			Target:   m.Container,
			ReadOnly: m.Mode == mount.ReadOnly,
		})
	}

	exposed, bindings, err := nat.ParsePortSpecs(opts.Ports)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid port mapping: %w", err)
	}

	var memoryLimit int64
	if opts.MemoryLimit != "" {
		limit, err := units.RAMInBytes(opts.MemoryLimit)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid memory limit %q: %w", opts.MemoryLimit, err)
		}
		memoryLimit = limit
	}

	var entrypoint strslice.StrSlice
	if opts.Entrypoint != "" {
		entrypoint = strslice.StrSlice{opts.Entrypoint}
	}

	// For non-TTY mode, don't attach stdout/stderr - use ContainerLogs instead
	cfg := &containerTypes.Config{
		Image:        opts.Image,
		Entrypoint:   entrypoint,
		Cmd:          strslice.StrSlice(opts.Command),
		Env:          opts.Env,
		WorkingDir:   opts.WorkDir,
		User:         opts.User,
		ExposedPorts: exposed,
		Tty:          tty,
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: tty,
		AttachStderr: tty,
	}

	hostCfg := &containerTypes.HostConfig{
		Mounts:       mounts,
		PortBindings: bindings,
		ExtraHosts:   opts.Hosts,
		NetworkMode:  containerTypes.NetworkMode(opts.Network),
		AutoRemove:   false, // removed explicitly once the container exits
		Resources: containerTypes.Resources{
			Memory: memoryLimit,
		},
	}
	return cfg, hostCfg, nil
}

// Run creates and runs a container, streaming stdio until it exits
func (r *DockerRunner) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	isTTY := term.IsTerminal(os.Stdin.Fd())

	containerConfig, hostConfig, err := dockerConfig(opts, isTTY)
	if err != nil {
		return err
	}

	exists, err := r.ImageExists(ctx, opts.Image)
	if err != nil {
		return fmt.Errorf("failed to inspect image %q: %w", opts.Image, err)
	}
	if !exists {
		return fmt.Errorf("image %q not found; pull or build it first", opts.Image)
	}

	resp, err := r.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	containerID := resp.ID
	log.Debug("created container", "id", containerID, "image", opts.Image, "mounts", len(opts.Mounts))

	defer func() {
		_ = r.client.ContainerRemove(context.Background(), containerID, containerTypes.RemoveOptions{
			Force: true,
		})
	}()

	// Attach to container (stdin always, stdout/stderr only for TTY)
	attachResp, err := r.client.ContainerAttach(ctx, containerID, containerTypes.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: isTTY,
		Stderr: isTTY,
	})
	if err != nil {
		return fmt.Errorf("failed to attach to container: %w", err)
	}
	defer attachResp.Close()

	outputDone := make(chan error, 1)
	if isTTY {
		go func() {
			buf := make([]byte, 32*1024)
			for {
				n, err := attachResp.Reader.Read(buf)
				if n > 0 {
					os.Stdout.Write(buf[:n])
				}
				if err != nil {
					outputDone <- err
					return
				}
			}
		}()
	}

	if err := r.client.ContainerStart(ctx, containerID, containerTypes.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	if !isTTY {
		go func() {
			logs, err := r.client.ContainerLogs(ctx, containerID, containerTypes.LogsOptions{
				ShowStdout: true,
				ShowStderr: true,
				Follow:     true,
			})
			if err != nil {
				outputDone <- err
				return
			}
			defer logs.Close()
			_, err = stdcopy.StdCopy(os.Stdout, os.Stderr, logs)
			outputDone <- err
		}()
	}

	// Set up TTY after output goroutine is reading
	if isTTY {
		r.resizeTty(ctx, containerID)

		oldState, err := term.SetRawTerminal(os.Stdin.Fd())
		if err != nil {
			return fmt.Errorf("failed to set raw terminal: %w", err)
		}
		defer term.RestoreTerminal(os.Stdin.Fd(), oldState)

		go r.monitorTtySize(ctx, containerID)
	}

	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				break
			}
			if _, err := attachResp.Conn.Write(buf[:n]); err != nil {
				break
			}
		}
		attachResp.CloseWrite()
	}()

	statusCh, errCh := r.client.ContainerWait(ctx, containerID, containerTypes.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		<-outputDone
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("error waiting for container: %w", err)
		}
	case status := <-statusCh:
		<-outputDone
		if status.StatusCode != 0 {
			return fmt.Errorf("container exited with code %d", status.StatusCode)
		}
	case <-ctx.Done():
		timeout := 5
		_ = r.client.ContainerStop(context.Background(), containerID, containerTypes.StopOptions{Timeout: &timeout})
		return ctx.Err()
	}

	return nil
}

// resizeTty resizes the container TTY to match the current terminal size
func (r *DockerRunner) resizeTty(ctx context.Context, containerID string) {
	winsize, err := term.GetWinsize(os.Stdout.Fd())
	if err != nil {
		return
	}
	r.client.ContainerResize(ctx, containerID, containerTypes.ResizeOptions{
		Height: uint(winsize.Height),
		Width:  uint(winsize.Width),
	})
}

// monitorTtySize resizes the container TTY on SIGWINCH
func (r *DockerRunner) monitorTtySize(ctx context.Context, containerID string) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-sigCh:
			r.resizeTty(ctx, containerID)
		case <-ctx.Done():
			return
		}
	}
}

// ImageExists checks if an image exists locally
func (r *DockerRunner) ImageExists(ctx context.Context, image string) (bool, error) {
	_, _, err := r.client.ImageInspectWithRaw(ctx, image)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
