package resolve

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by Render.
const (
	FormatText = "text"
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ErrUnknownFormat is returned by Render for an unsupported format.
var ErrUnknownFormat = errors.New("unknown output format")

// Render writes cfg to w as text, yaml or json.
func Render(w io.Writer, cfg *Config, format string) error {
	switch format {
	case FormatText, "":
		_, err := io.WriteString(w, renderText(lipgloss.NewRenderer(w), cfg))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w %q (allowed: %s, %s, %s)", ErrUnknownFormat, format, FormatText, FormatYAML, FormatJSON)
	}
}

func renderText(r *lipgloss.Renderer, cfg *Config) string {
	heading := r.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	label := r.NewStyle().Bold(true).Width(12)
	dim := r.NewStyle().Faint(true)
	warn := r.NewStyle().Foreground(lipgloss.Color("11"))

	var b strings.Builder
	field := func(name, value string) {
		if value == "" {
			value = dim.Render("-")
		}
		b.WriteString(label.Render(name) + value + "\n")
	}

	field("backend", cfg.Backend)
	field("image", cfg.Image)
	field("entrypoint", cfg.Entrypoint)
	field("command", strings.Join(cfg.Command, " "))
	field("user", cfg.User)
	field("workdir", cfg.WorkDir)
	field("network", cfg.Network)
	field("memory", cfg.MemoryLimit)
	field("profiles", strings.Join(cfg.Profiles, ", "))

	b.WriteString("\n" + heading.Render(fmt.Sprintf("Mounts (%d)", len(cfg.Mounts))) + "\n")
	if len(cfg.Mounts) > 0 {
		hostWidth := len("HOST")
		for _, m := range cfg.Mounts {
			hostWidth = max(hostWidth, lipgloss.Width(m.Host))
		}
		mode := r.NewStyle().Width(4)
		host := r.NewStyle().Width(hostWidth + 2)
		b.WriteString("  " + dim.Render(mode.Render("MODE")+host.Render("HOST")+"CONTAINER") + "\n")
		for _, m := range cfg.Mounts {
			line := mode.Render(m.Mode.String()) + host.Render(m.Host) + m.Container
			if m.Container == m.Host {
				line = mode.Render(m.Mode.String()) + host.Render(m.Host) + dim.Render("(same)")
			}
			b.WriteString("  " + line + "\n")
		}
	}

	list := func(title string, items []string) {
		b.WriteString("\n" + heading.Render(fmt.Sprintf("%s (%d)", title, len(items))) + "\n")
		for _, item := range items {
			b.WriteString("  " + item + "\n")
		}
	}
	list("Env", cfg.Env)
	list("Ports", cfg.Ports)
	list("Hosts", cfg.Hosts)

	if len(cfg.Passthrough) > 0 {
		b.WriteString("\n" + warn.Render("missing env_passthrough: "+strings.Join(cfg.Passthrough, ", ")) + "\n")
	}
	return b.String()
}
