package config

// Runtime backends
const (
	BackendDocker = "docker"
	BackendPodman = "podman"
)

// Mount mode tables in the document
const (
	ModeTableReadOnly  = "ro"
	ModeTableReadWrite = "rw"
	ModeTableOverlay   = "o"
)

// Network modes
const (
	NetworkBridge = "bridge"
	NetworkHost   = "host"
	NetworkNone   = "none"
)

// ConfigFileName is the name of both the global and the repo-local document
const ConfigFileName = ".agent-box.toml"

// SupportsOverlay reports whether backend can run overlay ("O") mounts.
func SupportsOverlay(backend string) bool {
	return backend == BackendPodman
}

// ValidBackend reports whether backend is known.
func ValidBackend(backend string) bool {
	return backend == BackendDocker || backend == BackendPodman
}

// BuiltinNetwork reports whether network is one of the runtime's own modes
// rather than the name of a user-defined network.
func BuiltinNetwork(network string) bool {
	switch network {
	case NetworkBridge, NetworkHost, NetworkNone:
		return true
	}
	return false
}
