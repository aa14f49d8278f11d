package mount

import (
	"errors"
	"testing"

	"github.com/jakenelson/agentbox/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		kind  Kind
		want  Request
	}{
		{
			name:  "no mode defaults to rw",
			token: "~/data",
			kind:  HomeRelative,
			want:  Request{Spec: "~/data", Source: "~/data", Mode: ReadWrite, Kind: HomeRelative},
		},
		{
			name:  "absolute no mode",
			token: "/nix/store",
			kind:  Absolute,
			want:  Request{Spec: "/nix/store", Source: "/nix/store", Mode: ReadWrite, Kind: Absolute},
		},
		{
			name:  "ro prefix",
			token: "ro:~/config",
			kind:  HomeRelative,
			want:  Request{Spec: "ro:~/config", Source: "~/config", Mode: ReadOnly, Kind: HomeRelative},
		},
		{
			name:  "overlay prefix",
			token: "o:/tmp/overlay",
			kind:  Absolute,
			want:  Request{Spec: "o:/tmp/overlay", Source: "/tmp/overlay", Mode: Overlay, Kind: Absolute},
		},
		{
			name:  "src dst",
			token: "rw:~/src:/app",
			kind:  HomeRelative,
			want:  Request{Spec: "rw:~/src:/app", Source: "~/src", Dest: "/app", Mode: ReadWrite, Kind: HomeRelative},
		},
		{
			name:  "absolute src tilde dst in home family",
			token: "/run/user/1000/gnupg:~/.gnupg",
			kind:  HomeRelative,
			want:  Request{Spec: "/run/user/1000/gnupg:~/.gnupg", Source: "/run/user/1000/gnupg", Dest: "~/.gnupg", Mode: ReadWrite, Kind: HomeRelative},
		},
		{
			name:  "tilde in absolute family",
			token: "ro:~/.config",
			kind:  Absolute,
			want:  Request{Spec: "ro:~/.config", Source: "~/.config", Mode: ReadOnly, Kind: Absolute},
		},
		{
			name:  "escaped colon",
			token: `/data/a\:b:/mnt/c\:d`,
			kind:  Absolute,
			want:  Request{Spec: `/data/a\:b:/mnt/c\:d`, Source: "/data/a:b", Dest: "/mnt/c:d", Mode: ReadWrite, Kind: Absolute},
		},
		{
			name:  "glob without dst",
			token: "ro:~/.config/*.toml",
			kind:  HomeRelative,
			want:  Request{Spec: "ro:~/.config/*.toml", Source: "~/.config/*.toml", Mode: ReadOnly, Kind: HomeRelative},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseToken(tt.token, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTokenErrors(t *testing.T) {
	tests := []struct {
		name  string
		token string
		kind  Kind
		want  error
	}{
		{"empty after mode", "ro:", Absolute, ErrInvalidMountPath},
		{"relative path", "data/dir", Absolute, ErrInvalidMountPath},
		{"bare tilde", "~", HomeRelative, ErrInvalidMountPath},
		{"relative dst", "/a:b", Absolute, ErrInvalidMountPath},
		{"empty dst", "/a:", Absolute, ErrInvalidMountPath},
		{"unknown mode reads as path", "xx:/a", Absolute, ErrInvalidMountPath},
		{"glob with dst", "~/.config/*:/cfg", HomeRelative, ErrAmbiguousGlobMapping},
		{"absolute path in home family", "/nix/store", HomeRelative, ErrKindMismatch},
		{"bad glob", "/tmp/[abc", Absolute, ErrInvalidGlobPattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, tt.kind)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseToken(%q) error = %v, want %v", tt.token, err, tt.want)
			}
		})
	}
}

func TestParseCLIOrder(t *testing.T) {
	reqs, err := ParseCLI([]string{"~/.config", "ro:~/data"}, []string{"/nix/store", "o:/tmp/overlay"})
	require.NoError(t, err)
	require.Len(t, reqs, 4)

	assert.Equal(t, "~/.config", reqs[0].Source)
	assert.Equal(t, HomeRelative, reqs[0].Kind)
	assert.Equal(t, ReadOnly, reqs[1].Mode)
	assert.Equal(t, Absolute, reqs[2].Kind)
	assert.Equal(t, "/tmp/overlay", reqs[3].Source)
	assert.Equal(t, Overlay, reqs[3].Mode)
}

func TestParseCLIEmpty(t *testing.T) {
	reqs, err := ParseCLI(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestFromConfigOrder(t *testing.T) {
	reqs, err := FromConfig(config.MountsConfig{
		RO: config.MountLists{Absolute: []string{"/nix/store"}, HomeRelative: []string{"~/.gitconfig"}},
		RW: config.MountLists{HomeRelative: []string{"~/.cache/go"}},
		O:  config.MountLists{Absolute: []string{"/srv/cache"}},
	})
	require.NoError(t, err)

	var got []string
	for _, r := range reqs {
		got = append(got, r.Mode.Token()+":"+r.Kind.String()+":"+r.Source)
	}
	assert.Equal(t, []string{
		"ro:absolute:/nix/store",
		"ro:home_relative:~/.gitconfig",
		"rw:home_relative:~/.cache/go",
		"o:absolute:/srv/cache",
	}, got)
}

func TestFromConfigReportsTable(t *testing.T) {
	_, err := FromConfig(config.MountsConfig{RW: config.MountLists{HomeRelative: []string{"/etc"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.Contains(t, err.Error(), "mounts.rw.home_relative")

	_, err = FromConfig(config.MountsConfig{O: config.MountLists{Absolute: []string{"relative"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mounts.o.absolute")
}

func TestModeStrings(t *testing.T) {
	tests := []struct {
		mode        Mode
		bind, token string
	}{
		{ReadOnly, "ro", "ro"},
		{ReadWrite, "rw", "rw"},
		{Overlay, "O", "o"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.bind {
			t.Errorf("Mode.String() = %q, want %q", got, tt.bind)
		}
		if got := tt.mode.Token(); got != tt.token {
			t.Errorf("Mode.Token() = %q, want %q", got, tt.token)
		}
		parsed, err := ParseMode(tt.token)
		if err != nil || parsed != tt.mode {
			t.Errorf("ParseMode(%q) = %v, %v, want %v", tt.token, parsed, err, tt.mode)
		}
	}
	if _, err := ParseMode("x"); err == nil {
		t.Error("ParseMode(x) error = nil, want error")
	}
}
