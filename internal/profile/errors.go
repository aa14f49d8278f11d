package profile

import (
	"fmt"
	"strings"
)

// UnknownProfileError is returned when a referenced profile is not defined.
type UnknownProfileError struct {
	Name string
	// Referrer is the profile whose extends list holds Name. Empty when the
	// name was requested directly.
	Referrer string
}

func (e *UnknownProfileError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("profile %q extends unknown profile %q", e.Referrer, e.Name)
	}
	return fmt.Sprintf("unknown profile %q", e.Name)
}

// CircularExtendsError is returned when the extends graph has a cycle.
// Chain starts and ends with the same name.
type CircularExtendsError struct {
	Chain []string
}

func (e *CircularExtendsError) Error() string {
	return "circular extends: " + strings.Join(e.Chain, " -> ")
}

// key identifies the cycle independently of where the walk entered it.
func (e *CircularExtendsError) key() string {
	cycle := e.Chain
	if n := len(cycle); n > 1 && cycle[0] == cycle[n-1] {
		cycle = cycle[:n-1]
	}
	start := 0
	for i, name := range cycle {
		if name < cycle[start] {
			start = i
		}
	}
	rotated := append(append([]string{}, cycle[start:]...), cycle[:start]...)
	return strings.Join(rotated, "\x00")
}

// SelfReferenceError is returned when a profile lists itself in extends.
type SelfReferenceError struct {
	Name string
}

func (e *SelfReferenceError) Error() string {
	return fmt.Sprintf("profile %q extends itself", e.Name)
}
