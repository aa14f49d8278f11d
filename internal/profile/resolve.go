// Package profile flattens profile inheritance into ordered settings.
package profile

import (
	"fmt"

	"github.com/jakenelson/agentbox/internal/config"
	"github.com/jakenelson/agentbox/internal/log"
	"github.com/jakenelson/agentbox/internal/mount"
)

// Bundle is the flattened contribution of one or more profiles, in
// application order. Lists are not deduplicated.
type Bundle struct {
	Applied        []string
	Mounts         []mount.Request
	Env            []string
	Ports          []string
	Hosts          []string
	EnvPassthrough []string
}

func (b *Bundle) add(p config.Profile) error {
	reqs, err := mount.FromConfig(p.Mounts)
	if err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	b.Applied = append(b.Applied, p.Name)
	b.Mounts = append(b.Mounts, reqs...)
	b.Env = append(b.Env, p.Env...)
	b.Ports = append(b.Ports, p.Ports...)
	b.Hosts = append(b.Hosts, p.Hosts...)
	b.EnvPassthrough = append(b.EnvPassthrough, p.EnvPassthrough...)
	return nil
}

// Graph is the extends graph keyed by profile name.
type Graph struct {
	nodes map[string]config.Profile
}

// NewGraph wraps a merged profile mapping.
func NewGraph(profiles map[string]config.Profile) *Graph {
	return &Graph{nodes: profiles}
}

// Defined reports whether name is a known profile.
func (g *Graph) Defined(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

type frame struct {
	name string
	next int
}

// walk visits root's extends chain depth first: parents in listed order
// before the profile itself. Profiles already in applied are not visited
// again; every visited profile is added to applied.
func (g *Graph) walk(root string, applied map[string]bool, visit func(config.Profile) error) error {
	if !g.Defined(root) {
		return &UnknownProfileError{Name: root}
	}
	if applied[root] {
		return nil
	}

	stack := []frame{{name: root}}
	onStack := map[string]bool{root: true}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		p := g.nodes[top.name]

		if top.next < len(p.Extends) {
			parent := p.Extends[top.next]
			top.next++
			switch {
			case parent == top.name:
				return &SelfReferenceError{Name: top.name}
			case !g.Defined(parent):
				return &UnknownProfileError{Name: parent, Referrer: top.name}
			case onStack[parent]:
				return &CircularExtendsError{Chain: cycleFrom(stack, parent)}
			case applied[parent]:
				continue
			}
			onStack[parent] = true
			stack = append(stack, frame{name: parent})
			continue
		}

		name := top.name
		stack = stack[:len(stack)-1]
		delete(onStack, name)
		applied[name] = true
		if err := visit(g.nodes[name]); err != nil {
			return err
		}
	}
	return nil
}

func cycleFrom(stack []frame, name string) []string {
	var chain []string
	for i, f := range stack {
		if f.name == name {
			for _, f := range stack[i:] {
				chain = append(chain, f.name)
			}
			break
		}
	}
	return append(chain, name)
}

// Resolve flattens the requested profiles in order. Each name contributes
// its whole extends chain after the previous name's contribution. A profile
// reached twice is applied once, at its first position.
func Resolve(profiles map[string]config.Profile, names []string) (*Bundle, error) {
	g := NewGraph(profiles)
	b := &Bundle{}
	applied := map[string]bool{}
	for _, name := range names {
		if err := g.walk(name, applied, b.add); err != nil {
			return nil, err
		}
	}
	log.Debug("resolved profiles", "requested", names, "applied", b.Applied)
	return b, nil
}
