package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jakenelson/agentbox/internal/container"
	"github.com/jakenelson/agentbox/internal/hostenv"
	"github.com/jakenelson/agentbox/internal/log"
	"github.com/jakenelson/agentbox/internal/mount"
	"github.com/jakenelson/agentbox/internal/resolve"
	"github.com/jakenelson/agentbox/internal/workspace"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errNoWorkspace = errors.New("either --local or --session is required")

// selection holds the flags shared by spawn and resolve.
type selection struct {
	local      bool
	session    string
	repo       string
	git        bool
	readOnly   bool
	profiles   []string
	homeMounts []string
	absMounts  []string
	ports      []string
	hosts      []string
	env        []string
	noSkip     bool
	entrypoint string
	network    string
}

func (s *selection) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&s.local, "local", false, "use the current repository as the workspace")
	f.StringVarP(&s.session, "session", "s", "", "session workspace name")
	f.StringVarP(&s.repo, "repo", "r", "", "repository path under base_repo_dir (default: current repository)")
	f.BoolVar(&s.git, "git", false, "use the git worktree session instead of the jj workspace")
	f.BoolVar(&s.readOnly, "ro", false, "mount the workspace read-only")
	f.StringArrayVarP(&s.profiles, "profile", "p", nil, "profile to apply (repeatable, applied in order)")
	f.StringArrayVarP(&s.homeMounts, "mount", "m", nil, "home-relative mount [mode:]~/path[:dst] (repeatable)")
	f.StringArrayVarP(&s.absMounts, "mount-abs", "M", nil, "absolute mount [mode:]/path[:dst] (repeatable)")
	f.StringArrayVar(&s.ports, "port", nil, "publish a port [host_ip:]host:container (repeatable)")
	f.StringArrayVar(&s.hosts, "add-host", nil, "add a host entry host:ip (repeatable)")
	f.StringArrayVarP(&s.env, "env", "e", nil, "set an environment variable KEY=VALUE (repeatable)")
	f.BoolVar(&s.noSkip, "no-skip", false, "keep mounts already covered by a parent mount")
	f.StringVar(&s.entrypoint, "entrypoint", "", "override runtime.entrypoint")
	f.StringVar(&s.network, "network", "", "override runtime.network")

	cmd.MarkFlagsMutuallyExclusive("local", "session")
	cmd.MarkFlagsMutuallyExclusive("local", "repo")
	cmd.RegisterFlagCompletionFunc("profile", completeProfiles)
}

// resolve loads the configuration and computes the container configuration.
// requireWorkspace is false for previews, which may omit the workspace.
func (s *selection) resolve(command []string, requireWorkspace bool) (*resolve.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to find home directory: %w", err)
	}

	var ws *workspace.Workspace
	if s.local || s.session != "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		kind := workspace.Jj
		if s.git {
			kind = workspace.Git
		}
		ws, err = workspace.Open(appFs, cfg, workspace.Options{
			Dir:      cwd,
			Repo:     s.repo,
			Session:  s.session,
			Kind:     kind,
			Local:    s.local,
			ReadOnly: s.readOnly,
		})
		if err != nil {
			return nil, err
		}
	} else if requireWorkspace {
		return nil, errNoWorkspace
	}

	cliMounts, err := mount.ParseCLI(s.homeMounts, s.absMounts)
	if err != nil {
		return nil, err
	}

	return resolve.Resolve(resolve.Input{
		Config:     cfg,
		Workspace:  ws,
		Profiles:   s.profiles,
		Mounts:     cliMounts,
		Ports:      s.ports,
		Hosts:      s.hosts,
		Env:        s.env,
		Command:    command,
		NoSkip:     s.noSkip,
		Backend:    viper.GetString(keyBackend),
		Entrypoint: s.entrypoint,
		Network:    s.network,
		HostHome:   home,
		Identity:   hostenv.CurrentIdentity(os.LookupEnv),
		Lookup:     os.LookupEnv,
		Fs:         appFs,
	})
}

var spawnSel selection

var spawnCmd = &cobra.Command{
	Use:   "spawn [flags] [-- command...]",
	Short: "Resolve the configuration and run a container",
	Long: `Resolve mounts, environment and ports for a workspace and run a container.

Examples:
  agentbox spawn --local                        # Current repository, default profile
  agentbox spawn -s fix-login                   # jj session workspace of the current repository
  agentbox spawn -r work/api -s s1 --git        # git worktree session of another repository
  agentbox spawn --local -p rust -p gpu         # Apply profiles in order
  agentbox spawn --local -M ro:/nix/store       # Absolute read-only mount
  agentbox spawn --local --port 8080:8080       # Publish a port
  agentbox spawn --local -- make test           # Run a command instead of the default`,
	Args: cobra.ArbitraryArgs,
	RunE: runSpawn,
}

func init() {
	rootCmd.AddCommand(spawnCmd)
	spawnSel.addFlags(spawnCmd)
}

func runSpawn(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	resolved, err := spawnSel.resolve(args, true)
	if err != nil {
		return err
	}
	opts, err := container.NewRunOptions(resolved)
	if err != nil {
		return err
	}

	backend, err := container.NewBackend(resolved.Backend)
	if err != nil {
		return fmt.Errorf("failed to create container backend: %w", err)
	}
	defer backend.Close()

	log.Info("spawning container", "backend", resolved.Backend, "image", resolved.Image, "workdir", resolved.WorkDir)
	return backend.Run(ctx, opts)
}

func completeProfiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return cfg.ProfileNames(), cobra.ShellCompDirectiveNoFileComp
}
