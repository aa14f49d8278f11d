package profile

import (
	"errors"
	"fmt"

	"github.com/jakenelson/agentbox/internal/config"
	"github.com/jakenelson/agentbox/internal/mount"
	"github.com/jakenelson/agentbox/internal/security"
)

// Summary describes one profile in a validation report.
type Summary struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Extends     []string `json:"extends,omitempty" yaml:"extends,omitempty"`
	// Chain is the application order of the profile's extends chain,
	// ending with the profile. Empty when the chain does not resolve.
	Chain []string `json:"chain,omitempty" yaml:"chain,omitempty"`
}

// Report collects every problem found in a configuration. Validation never
// stops at the first error.
type Report struct {
	DefaultProfile string    `json:"default_profile,omitempty" yaml:"default_profile,omitempty"`
	Profiles       []Summary `json:"profiles" yaml:"profiles"`
	Errors         []string  `json:"errors" yaml:"errors"`
	Warnings       []string  `json:"warnings" yaml:"warnings"`

	causes []error
	seen   map[string]bool
}

// HasErrors reports whether the configuration is invalid.
func (r *Report) HasErrors() bool {
	return len(r.Errors) > 0
}

// Causes returns the errors behind Errors, in the same order.
func (r *Report) Causes() []error {
	return r.causes
}

func (r *Report) fail(key string, err error) {
	if r.seen[key] {
		return
	}
	r.seen[key] = true
	r.Errors = append(r.Errors, err.Error())
	r.causes = append(r.causes, err)
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks the merged configuration: the default profile, every
// extends reference and cycle, and every mount entry. Each cycle is reported
// once however many profiles lead into it.
func Validate(cfg *config.Config) *Report {
	r := &Report{
		DefaultProfile: cfg.DefaultProfile,
		Profiles:       []Summary{},
		Errors:         []string{},
		Warnings:       []string{},
		seen:           map[string]bool{},
	}
	g := NewGraph(cfg.Profiles)
	links := g.resolvable()

	if cfg.DefaultProfile != "" && !g.Defined(cfg.DefaultProfile) {
		err := fmt.Errorf("default_profile: %w", &UnknownProfileError{Name: cfg.DefaultProfile})
		r.fail(err.Error(), err)
	}

	if _, err := mount.FromConfig(cfg.Runtime.Mounts); err != nil {
		err = fmt.Errorf("runtime: %w", err)
		r.fail(err.Error(), err)
	}
	if cfg.Runtime.SkipMounts != nil {
		if _, err := security.NewSkipMatcher(*cfg.Runtime.SkipMounts, ""); err != nil {
			err = fmt.Errorf("runtime.skip_mounts: %w", err)
			r.fail(err.Error(), err)
		}
	}

	if n := cfg.Runtime.Network; n != "" && !config.BuiltinNetwork(n) {
		r.warn("runtime.network %q is not bridge, host or none; it must name an existing network", n)
	}

	for _, name := range cfg.ProfileNames() {
		p := cfg.Profiles[name]
		summary := Summary{Name: name, Description: p.Description, Extends: p.Extends}

		if _, err := mount.FromConfig(p.Mounts); err != nil {
			err = fmt.Errorf("profile %q: %w", name, err)
			r.fail(err.Error(), err)
		}
		if p.Empty() {
			r.warn("profile %q is empty", name)
		}

		for _, parent := range p.Extends {
			switch {
			case parent == name:
				err := &SelfReferenceError{Name: name}
				r.fail(err.Error(), err)
			case !g.Defined(parent):
				err := &UnknownProfileError{Name: parent, Referrer: name}
				r.fail(err.Error(), err)
			}
		}

		var chain []string
		if err := g.walk(name, map[string]bool{}, func(p config.Profile) error {
			chain = append(chain, p.Name)
			return nil
		}); err == nil {
			summary.Chain = chain
		}

		var cycle *CircularExtendsError
		if err := links.walk(name, map[string]bool{}, noop); errors.As(err, &cycle) {
			r.fail("cycle:"+cycle.key(), err)
		}
		r.Profiles = append(r.Profiles, summary)
	}
	return r
}

func noop(config.Profile) error { return nil }

// resolvable returns a copy of g without self and unknown extends, so a walk
// over it can only fail on a cycle.
func (g *Graph) resolvable() *Graph {
	nodes := make(map[string]config.Profile, len(g.nodes))
	for name, p := range g.nodes {
		var extends []string
		for _, parent := range p.Extends {
			if parent != name && g.Defined(parent) {
				extends = append(extends, parent)
			}
		}
		p.Extends = extends
		nodes[name] = p
	}
	return &Graph{nodes: nodes}
}
