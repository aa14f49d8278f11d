// Package hostenv reads what the container inherits from the host process:
// passthrough environment variables and the invoking user's identity.
package hostenv

import (
	"fmt"
	"os"

	"github.com/jakenelson/agentbox/internal/log"
)

// LookupFunc looks up a host environment variable.
type LookupFunc func(key string) (string, bool)

// Passthrough turns host variable names into KEY=VALUE entries, in order.
// Names not set on the host are returned in missing and logged as warnings.
func Passthrough(names []string, lookup LookupFunc) (env []string, missing []string) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, name := range names {
		val, ok := lookup(name)
		if !ok {
			log.Warn("env_passthrough variable not found in host environment", "name", name)
			missing = append(missing, name)
			continue
		}
		env = append(env, name+"="+val)
	}
	return env, missing
}

// Identity is the host user the container runs as.
type Identity struct {
	Name string
	UID  int
	GID  int
	// Home is the user's home inside the container.
	Home string
}

// User returns the uid:gid form accepted by docker and podman.
func (i Identity) User() string {
	return fmt.Sprintf("%d:%d", i.UID, i.GID)
}

// Env returns the USER and HOME entries for the container.
func (i Identity) Env() []string {
	return []string{"USER=" + i.Name, "HOME=" + i.Home}
}

// CurrentIdentity describes the invoking user. The name comes from USER,
// then LOGNAME, then "user".
func CurrentIdentity(lookup LookupFunc) Identity {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	name := "user"
	for _, key := range []string{"USER", "LOGNAME"} {
		if v, ok := lookup(key); ok && v != "" {
			name = v
			break
		}
	}
	return Identity{
		Name: name,
		UID:  os.Getuid(),
		GID:  os.Getgid(),
		Home: "/home/" + name,
	}
}
