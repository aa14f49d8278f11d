package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect agentbox configuration",
	Long: `Inspect agentbox configuration.

Commands:
  path    Show the global and repo-local config file paths
  show    Print the merged configuration
  init    Create a starter global config file

Examples:
  agentbox config path
  agentbox config show
  agentbox --config /tmp/agent-box.toml config init`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		global, local, err := configPaths()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "global: %s%s\n", global, existsNote(global))
		if local == "" {
			fmt.Fprintln(out, "local:  (not in a repository)")
		} else {
			fmt.Fprintf(out, "local:  %s%s\n", local, existsNote(local))
		}
		return nil
	},
}

func existsNote(path string) string {
	if ok, _ := afero.Exists(appFs, path); ok {
		return ""
	}
	return " (missing)"
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg.Tree); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return enc.Close()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter global config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _, err := configPaths()
		if err != nil {
			return err
		}

		if exists, _ := afero.Exists(appFs, configPath); exists {
			return fmt.Errorf("config file already exists at %s", configPath)
		}
		if err := appFs.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := afero.WriteFile(appFs, configPath, []byte(defaultConfig), 0644); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configPath)
		return nil
	},
}

const defaultConfig = `# agentbox configuration
#
# A repository may carry its own .agent-box.toml at its root. It is merged
# over this file: values replace, lists append, tables merge.

workspace_dir = "~/workspaces"
base_repo_dir = "~/src"
# default_profile = "base"

[runtime]
backend = "docker"         # docker | podman (overlay mounts need podman)
image = "agentbox:latest"
# entrypoint = "/bin/bash"
# network = "bridge"       # bridge | host | none
# memory_limit = "4g"

# Paths never mounted, even with --no-skip. Leave the key out to use the
# built-in list of credential files; set it to [] to disable skipping.
# skip_mounts = ["~/.gnupg/**", "~/.ssh/id_*"]

env = []
ports = []
hosts = []
env_passthrough = ["TERM", "COLORTERM"]

[runtime.mounts.ro]
absolute = []
home_relative = ["~/.gitconfig"]

[runtime.mounts.rw]
absolute = []
home_relative = []

# [profiles.rust]
# description = "Rust toolchain caches"
# extends = ["base"]
# env = ["CARGO_HOME=~/.cargo"]
# ports = ["8080:8080"]
#
# [profiles.rust.mounts.rw]
# home_relative = ["~/.cargo/registry", "~/.rustup"]
`
