package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jakenelson/agentbox/internal/profile"
	"github.com/jakenelson/agentbox/internal/resolve"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var validateOutput string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check profiles, extends chains and mount entries",
	Long: `Load the merged configuration and report every problem found: unknown
profiles, circular or self-referencing extends, invalid mount entries and
skip patterns. Empty profiles are reported as warnings.

Exits non-zero only when errors are found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		report := profile.Validate(cfg)
		if err := writeReport(cmd.OutOrStdout(), report, validateOutput); err != nil {
			return err
		}
		if report.HasErrors() {
			return fmt.Errorf("configuration has %d error(s)", len(report.Errors))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateOutput, "output", "o", resolve.FormatText, "output format: text, yaml, json")
}

func writeReport(w io.Writer, r *profile.Report, format string) error {
	switch format {
	case resolve.FormatText, "":
		_, err := io.WriteString(w, reportText(lipgloss.NewRenderer(w), r))
		return err
	case resolve.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case resolve.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		return fmt.Errorf("%w %q", resolve.ErrUnknownFormat, format)
	}
}

func reportText(re *lipgloss.Renderer, r *profile.Report) string {
	bad := re.NewStyle().Foreground(lipgloss.Color("9"))
	warn := re.NewStyle().Foreground(lipgloss.Color("11"))
	good := re.NewStyle().Foreground(lipgloss.Color("10"))
	name := re.NewStyle().Bold(true)
	dim := re.NewStyle().Faint(true)

	var b strings.Builder
	if r.DefaultProfile != "" {
		b.WriteString("default profile: " + name.Render(r.DefaultProfile) + "\n")
	}
	b.WriteString(fmt.Sprintf("profiles (%d):\n", len(r.Profiles)))
	for _, p := range r.Profiles {
		line := "  " + name.Render(p.Name)
		if len(p.Chain) > 1 {
			line += dim.Render(" (" + strings.Join(p.Chain, " -> ") + ")")
		}
		if p.Description != "" {
			line += "  " + p.Description
		}
		b.WriteString(line + "\n")
	}
	for _, e := range r.Errors {
		b.WriteString(bad.Render("error: "+e) + "\n")
	}
	for _, w := range r.Warnings {
		b.WriteString(warn.Render("warning: "+w) + "\n")
	}
	if !r.HasErrors() {
		b.WriteString(good.Render("configuration is valid") + "\n")
	}
	return b.String()
}
