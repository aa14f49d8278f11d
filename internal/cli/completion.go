package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(completionCmd)
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for agentbox. Profile names complete
from the loaded configuration.

To load completions:

Bash:
  $ source <(agentbox completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ agentbox completion bash > /etc/bash_completion.d/agentbox
  # macOS:
  $ agentbox completion bash > $(brew --prefix)/etc/bash_completion.d/agentbox

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ agentbox completion zsh > "${fpath[1]}/_agentbox"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ agentbox completion fish | source

  # To load completions for each session, execute once:
  $ agentbox completion fish > ~/.config/fish/completions/agentbox.fish

PowerShell:
  PS> agentbox completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> agentbox completion powershell > agentbox.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(out, true)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		default:
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
	},
}
