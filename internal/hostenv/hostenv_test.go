package hostenv

import (
	"reflect"
	"testing"
)

func fakeEnv(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestPassthrough(t *testing.T) {
	lookup := fakeEnv(map[string]string{
		"TERM":   "xterm-256color",
		"EDITOR": "vim",
		"EMPTY":  "",
	})

	tests := []struct {
		name        string
		names       []string
		wantEnv     []string
		wantMissing []string
	}{
		{
			name:    "all present keep order",
			names:   []string{"EDITOR", "TERM"},
			wantEnv: []string{"EDITOR=vim", "TERM=xterm-256color"},
		},
		{
			name:        "missing reported",
			names:       []string{"TERM", "GH_TOKEN"},
			wantEnv:     []string{"TERM=xterm-256color"},
			wantMissing: []string{"GH_TOKEN"},
		},
		{
			name:    "empty value passes through",
			names:   []string{"EMPTY"},
			wantEnv: []string{"EMPTY="},
		},
		{
			name: "no names",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, missing := Passthrough(tt.names, lookup)
			if !reflect.DeepEqual(env, tt.wantEnv) {
				t.Errorf("Passthrough() env = %v, want %v", env, tt.wantEnv)
			}
			if !reflect.DeepEqual(missing, tt.wantMissing) {
				t.Errorf("Passthrough() missing = %v, want %v", missing, tt.wantMissing)
			}
		})
	}
}

func TestCurrentIdentity(t *testing.T) {
	tests := []struct {
		name     string
		vars     map[string]string
		wantName string
	}{
		{"USER wins", map[string]string{"USER": "alice", "LOGNAME": "bob"}, "alice"},
		{"LOGNAME fallback", map[string]string{"LOGNAME": "bob"}, "bob"},
		{"empty USER skipped", map[string]string{"USER": "", "LOGNAME": "bob"}, "bob"},
		{"default", map[string]string{}, "user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := CurrentIdentity(fakeEnv(tt.vars))
			if id.Name != tt.wantName {
				t.Errorf("CurrentIdentity().Name = %q, want %q", id.Name, tt.wantName)
			}
			if id.Home != "/home/"+tt.wantName {
				t.Errorf("CurrentIdentity().Home = %q, want %q", id.Home, "/home/"+tt.wantName)
			}
		})
	}
}

func TestIdentityRendering(t *testing.T) {
	id := Identity{Name: "alice", UID: 1000, GID: 100, Home: "/home/alice"}
	if got := id.User(); got != "1000:100" {
		t.Errorf("User() = %q, want %q", got, "1000:100")
	}
	want := []string{"USER=alice", "HOME=/home/alice"}
	if got := id.Env(); !reflect.DeepEqual(got, want) {
		t.Errorf("Env() = %v, want %v", got, want)
	}
}
