package config

import (
	"reflect"
	"testing"
)

func TestMergeTrees(t *testing.T) {
	tests := []struct {
		name string
		g    map[string]any
		l    map[string]any
		want map[string]any
	}{
		{
			name: "scalar overridden by local",
			g:    map[string]any{"runtime": map[string]any{"entrypoint": "/bin/bash"}},
			l:    map[string]any{"runtime": map[string]any{"entrypoint": "/bin/zsh"}},
			want: map[string]any{"runtime": map[string]any{"entrypoint": "/bin/zsh"}},
		},
		{
			name: "scalar kept when local silent",
			g:    map[string]any{"default_profile": "dev"},
			l:    map[string]any{"workspace_dir": "~/ws"},
			want: map[string]any{"default_profile": "dev", "workspace_dir": "~/ws"},
		},
		{
			name: "arrays concatenated global first",
			g:    map[string]any{"env": []any{"A=1"}},
			l:    map[string]any{"env": []any{"B=2", "A=1"}},
			want: map[string]any{"env": []any{"A=1", "B=2", "A=1"}},
		},
		{
			name: "profile fields merged",
			g: map[string]any{"profiles": map[string]any{
				"git": map[string]any{"env": []any{"A=1"}, "extends": []any{"base"}},
			}},
			l: map[string]any{"profiles": map[string]any{
				"git":  map[string]any{"env": []any{"B=2"}},
				"rust": map[string]any{"ports": []any{"8080:8080"}},
			}},
			want: map[string]any{"profiles": map[string]any{
				"git":  map[string]any{"env": []any{"A=1", "B=2"}, "extends": []any{"base"}},
				"rust": map[string]any{"ports": []any{"8080:8080"}},
			}},
		},
		{
			name: "kind change takes local value",
			g:    map[string]any{"x": []any{"a"}},
			l:    map[string]any{"x": "b"},
			want: map[string]any{"x": "b"},
		},
		{
			name: "nil local",
			g:    map[string]any{"x": int64(1)},
			l:    nil,
			want: map[string]any{"x": int64(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeTrees(tt.g, tt.l)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MergeTrees() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestMergeTreesDoesNotMutateInputs(t *testing.T) {
	g := map[string]any{"runtime": map[string]any{"env": []any{"A=1"}}}
	l := map[string]any{"runtime": map[string]any{"env": []any{"B=2"}}}

	merged := MergeTrees(g, l)
	merged["runtime"].(map[string]any)["env"].([]any)[0] = "CHANGED"

	if got := g["runtime"].(map[string]any)["env"].([]any); len(got) != 1 || got[0] != "A=1" {
		t.Errorf("global tree mutated: %v", got)
	}
	if got := l["runtime"].(map[string]any)["env"].([]any); len(got) != 1 || got[0] != "B=2" {
		t.Errorf("local tree mutated: %v", got)
	}
}
