package cli

import (
	"fmt"
	"os"

	"github.com/jakenelson/agentbox/internal/config"
	"github.com/jakenelson/agentbox/internal/log"
	"github.com/jakenelson/agentbox/internal/workspace"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Setting keys held by viper. Each can be set by flag or by the matching
// AGENTBOX_* environment variable.
const (
	keyConfig      = "config"
	keyLocalConfig = "local_config"
	keyLogLevel    = "log_level"
	keyVerbose     = "verbose"
	keyBackend     = "backend"
)

var appFs = afero.NewOsFs()

var rootCmd = &cobra.Command{
	Use:   "agentbox",
	Short: "Spawn sandboxed containers for repository workspaces",
	Long: `agentbox starts a container for a repository workspace. Mounts, environment
variables and published ports come from layered configuration: the global
~/.agent-box.toml, an optional .agent-box.toml at the repository root,
named profiles and command-line flags.

Examples:
  agentbox spawn --local                    # Run in the current repository
  agentbox spawn -s fix-login -p rust       # Run in a session workspace with a profile
  agentbox spawn --local -m ro:~/.gitconfig # Add a read-only home mount
  agentbox resolve --local -o yaml          # Show what spawn would run
  agentbox validate                         # Check profiles and mounts`,
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
}

// Execute runs the root command
func Execute() error {
	defer log.Sync()
	return rootCmd.Execute()
}

// Main runs the CLI and returns the process exit code.
func Main() int {
	if err := Execute(); err != nil {
		return 1
	}
	return 0
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "global config file (default is $HOME/"+config.ConfigFileName+")")
	flags.String("local-config", "", "repo-local config file (default is <repo root>/"+config.ConfigFileName+")")
	flags.String("log-level", "", "log level: debug, info, warn, error (default warn)")
	flags.BoolP("verbose", "v", false, "shorthand for --log-level=debug")
	flags.String("backend", "", "override runtime.backend: docker or podman")

	viper.BindPFlag(keyConfig, flags.Lookup("config"))
	viper.BindPFlag(keyLocalConfig, flags.Lookup("local-config"))
	viper.BindPFlag(keyLogLevel, flags.Lookup("log-level"))
	viper.BindPFlag(keyVerbose, flags.Lookup("verbose"))
	viper.BindPFlag(keyBackend, flags.Lookup("backend"))

	viper.SetEnvPrefix("AGENTBOX")
	viper.AutomaticEnv()
}

func initLogging(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(viper.GetString(keyLogLevel))
	if err != nil {
		return err
	}
	if viper.GetBool(keyVerbose) {
		level = log.LevelDebug
	}
	log.Init(log.Config{Level: level, Output: cmd.ErrOrStderr()})
	return nil
}

// configPaths returns the global and repo-local document paths. The local
// path is empty outside a repository.
func configPaths() (global, local string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("failed to find home directory: %w", err)
	}

	global = viper.GetString(keyConfig)
	if global == "" {
		global = config.DefaultGlobalPath(home)
	}

	local = viper.GetString(keyLocalConfig)
	if local == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", "", fmt.Errorf("failed to get current directory: %w", err)
		}
		if root, err := workspace.FindRoot(appFs, cwd); err == nil {
			local = config.LocalPathFor(root)
		}
	}
	return global, local, nil
}

// loadConfig reads and merges the configuration documents.
func loadConfig() (*config.Config, error) {
	global, local, err := configPaths()
	if err != nil {
		return nil, err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to find home directory: %w", err)
	}
	cfg, err := config.Load(appFs, global, local, home)
	if err != nil {
		return nil, err
	}
	log.Debug("loaded config", "global", cfg.GlobalPath, "local", cfg.LocalPath, "profiles", len(cfg.Profiles))
	return cfg, nil
}
