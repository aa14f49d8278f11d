package cli

import (
	"github.com/jakenelson/agentbox/internal/resolve"
	"github.com/spf13/cobra"
)

var (
	resolveSel    selection
	resolveOutput string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [flags] [-- command...]",
	Short: "Show the container configuration spawn would use",
	Long: `Resolve the configuration exactly as spawn does and print the result
without starting a container. Without --local or --session the workspace
mounts are left out.

Examples:
  agentbox resolve --local
  agentbox resolve -s fix-login -p rust -o yaml
  agentbox resolve -p rust -o json`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, err := resolveSel.resolve(args, false)
		if err != nil {
			return err
		}
		return resolve.Render(cmd.OutOrStdout(), resolved, resolveOutput)
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveSel.addFlags(resolveCmd)
	resolveCmd.Flags().StringVarP(&resolveOutput, "output", "o", resolve.FormatText, "output format: text, yaml, json")
	resolveCmd.RegisterFlagCompletionFunc("output", cobra.FixedCompletions(
		[]string{resolve.FormatText, resolve.FormatYAML, resolve.FormatJSON}, cobra.ShellCompDirectiveNoFileComp))
}
