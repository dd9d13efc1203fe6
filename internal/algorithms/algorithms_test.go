package algorithms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	t.Run("nil slice", func(t *testing.T) {
		require := require.New(t)
		var s []string
		require.Equal([]string{}, Map(s, strings.ToUpper))
	})
	t.Run("urls", func(t *testing.T) {
		require := require.New(t)
		got := Map([]string{"alice", "bob"}, func(h string) string { return "https://example.com/users/" + h })
		require.Equal([]string{"https://example.com/users/alice", "https://example.com/users/bob"}, got)
	})
}

func TestUniq(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"distinct", []string{"go", "fediverse"}, []string{"go", "fediverse"}},
		{"repeats keep first position", []string{"go", "rust", "go", "zig", "rust"}, []string{"go", "rust", "zig"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Uniq(tt.in))
		})
	}
}
