package container

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/jakenelson/agentbox/internal/mount"
	"github.com/jakenelson/agentbox/internal/resolve"
)

func sampleOptions() RunOptions {
	return RunOptions{
		Image:       "agent:latest",
		Entrypoint:  "/bin/zsh",
		Command:     []string{"-c", "make test"},
		User:        "1000:1000",
		WorkDir:     "/ws/app",
		Network:     "bridge",
		MemoryLimit: "4g",
		Mounts: []mount.Entry{
			{Host: "/ws/app", Container: "/ws/app", Mode: mount.ReadWrite},
			{Host: "/home/alice/.gitconfig", Container: "/home/agent/.gitconfig", Mode: mount.ReadOnly},
		},
		Env:   []string{"USER=agent", "HOME=/home/agent"},
		Ports: []string{"8080:80"},
		Hosts: []string{"db:10.0.0.2"},
	}
}

func TestNewRunOptions(t *testing.T) {
	_, err := NewRunOptions(&resolve.Config{})
	if !errors.Is(err, ErrNoImage) {
		t.Errorf("NewRunOptions() error = %v, want %v", err, ErrNoImage)
	}

	cfg := &resolve.Config{
		Image:   "agent:latest",
		User:    "1000:1000",
		WorkDir: "/ws/app",
		Mounts:  []mount.Entry{{Host: "/a", Container: "/a", Mode: mount.ReadOnly}},
		Env:     []string{"A=1"},
	}
	opts, err := NewRunOptions(cfg)
	if err != nil {
		t.Fatalf("NewRunOptions() error = %v", err)
	}
	if opts.Image != cfg.Image || opts.WorkDir != cfg.WorkDir || len(opts.Mounts) != 1 {
		t.Errorf("NewRunOptions() = %+v, want fields copied from %+v", opts, cfg)
	}
}

func TestPodmanArgs(t *testing.T) {
	tests := []struct {
		name string
		tty  bool
		opts RunOptions
		want []string
	}{
		{
			name: "full",
			tty:  true,
			opts: sampleOptions(),
			want: []string{
				"run", "--rm", "-i", "-t",
				"--userns", "keep-id",
				"--user", "1000:1000",
				"--workdir", "/ws/app",
				"--network", "bridge",
				"--memory", "4g",
				"-v", "/ws/app:/ws/app:rw",
				"-v", "/home/alice/.gitconfig:/home/agent/.gitconfig:ro",
				"-p", "8080:80",
				"--add-host", "db:10.0.0.2",
				"-e", "USER=agent",
				"-e", "HOME=/home/agent",
				"--entrypoint", "/bin/zsh",
				"agent:latest",
				"-c", "make test",
			},
		},
		{
			name: "minimal without tty",
			opts: RunOptions{Image: "agent:latest"},
			want: []string{"run", "--rm", "-i", "--userns", "keep-id", "agent:latest"},
		},
		{
			name: "overlay bind",
			opts: RunOptions{
				Image:  "agent:latest",
				Mounts: []mount.Entry{{Host: "/tmp/o", Container: "/tmp/o", Mode: mount.Overlay}},
			},
			want: []string{"run", "--rm", "-i", "--userns", "keep-id", "-v", "/tmp/o:/tmp/o:O", "agent:latest"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &PodmanRunner{Binary: "podman", TTY: tt.tty}
			got, err := r.Args(tt.opts)
			if err != nil {
				t.Fatalf("Args() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Args() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPodmanArgsInvalidMemory(t *testing.T) {
	r := &PodmanRunner{Binary: "podman"}
	if _, err := r.Args(RunOptions{Image: "x", MemoryLimit: "lots"}); err == nil {
		t.Error("Args() error = nil, want error for invalid memory limit")
	}
}

func TestPodmanRunMissingBinary(t *testing.T) {
	r := &PodmanRunner{Binary: "agentbox-no-such-podman"}
	if err := r.Run(context.Background(), RunOptions{Image: "x"}); err == nil {
		t.Error("Run() error = nil, want error for missing binary")
	}
}

func TestDockerConfig(t *testing.T) {
	cfg, hostCfg, err := dockerConfig(sampleOptions(), false)
	if err != nil {
		t.Fatalf("dockerConfig() error = %v", err)
	}

	if got := []string(cfg.Entrypoint); !reflect.DeepEqual(got, []string{"/bin/zsh"}) {
		t.Errorf("Entrypoint = %v, want [/bin/zsh]", got)
	}
	if got := []string(cfg.Cmd); !reflect.DeepEqual(got, []string{"-c", "make test"}) {
		t.Errorf("Cmd = %v, want [-c make test]", got)
	}
	if cfg.User != "1000:1000" || cfg.WorkingDir != "/ws/app" {
		t.Errorf("User, WorkingDir = %q, %q", cfg.User, cfg.WorkingDir)
	}
	if cfg.Tty || cfg.AttachStdout {
		t.Errorf("Tty = %v, AttachStdout = %v, want false for non-TTY", cfg.Tty, cfg.AttachStdout)
	}
	if _, ok := cfg.ExposedPorts[nat.Port("80/tcp")]; !ok {
		t.Errorf("ExposedPorts = %v, want 80/tcp", cfg.ExposedPorts)
	}

	if len(hostCfg.Mounts) != 2 {
		t.Fatalf("Mounts = %d, want 2", len(hostCfg.Mounts))
	}
	if hostCfg.Mounts[0].ReadOnly || !hostCfg.Mounts[1].ReadOnly {
		t.Errorf("Mounts ReadOnly = %v, %v, want false, true", hostCfg.Mounts[0].ReadOnly, hostCfg.Mounts[1].ReadOnly)
	}
	if hostCfg.Mounts[1].Target != "/home/agent/.gitconfig" {
		t.Errorf("Mounts[1].Target = %q", hostCfg.Mounts[1].Target)
	}
	bindings := hostCfg.PortBindings[nat.Port("80/tcp")]
	if len(bindings) != 1 || bindings[0].HostPort != "8080" {
		t.Errorf("PortBindings = %v, want 8080 -> 80/tcp", hostCfg.PortBindings)
	}
	if !reflect.DeepEqual(hostCfg.ExtraHosts, []string{"db:10.0.0.2"}) {
		t.Errorf("ExtraHosts = %v", hostCfg.ExtraHosts)
	}
	if hostCfg.Resources.Memory != 4*1024*1024*1024 {
		t.Errorf("Memory = %d, want 4GiB", hostCfg.Resources.Memory)
	}
	if string(hostCfg.NetworkMode) != "bridge" {
		t.Errorf("NetworkMode = %q, want bridge", hostCfg.NetworkMode)
	}
}

func TestDockerConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		opts RunOptions
	}{
		{"overlay", RunOptions{Image: "x", Mounts: []mount.Entry{{Host: "/a", Container: "/a", Mode: mount.Overlay}}}},
		{"bad port", RunOptions{Image: "x", Ports: []string{"not-a-port"}}},
		{"bad memory", RunOptions{Image: "x", MemoryLimit: "4q"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := dockerConfig(tt.opts, false); err == nil {
				t.Error("dockerConfig() error = nil, want error")
			}
		})
	}
}

func TestNewBackendUnknown(t *testing.T) {
	if _, err := NewBackend("lxc"); err == nil {
		t.Error("NewBackend(lxc) error = nil, want error")
	}
	b, err := NewBackend("podman")
	if err != nil {
		t.Fatalf("NewBackend(podman) error = %v", err)
	}
	if _, ok := b.(*PodmanRunner); !ok {
		t.Errorf("NewBackend(podman) = %T, want *PodmanRunner", b)
	}
}
