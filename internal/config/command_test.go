package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{name: "empty", input: "", want: nil},
		{name: "commented out", input: "  # gnome-control-center", want: nil},
		{name: "simple", input: "gnome-control-center notifications", want: []string{"gnome-control-center", "notifications"}},
		{name: "double quotes", input: `xdg-open "settings://notifications page"`, want: []string{"xdg-open", "settings://notifications page"}},
		{name: "single quotes", input: `mycmd --name 'hello world'`, want: []string{"mycmd", "--name", "hello world"}},
		{name: "escaped space", input: `mycmd hello\ world`, want: []string{"mycmd", "hello world"}},
		{name: "empty quoted word", input: `mycmd ""`, want: []string{"mycmd", ""}},
		{name: "home program", input: "~/bin/open-settings --page=notifications", want: []string{filepath.Join(home, "bin/open-settings"), "--page=notifications"}},
		{name: "home only expands program", input: "open ~/x", want: []string{"open", "~/x"}},
		{name: "unterminated quote", input: `mycmd "oops`, wantErr: "unterminated \" quote"},
		{name: "trailing backslash", input: `mycmd hello\`, wantErr: "trailing backslash"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseCommand(tc.input)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.input, got.Raw)
			require.Equal(t, tc.want, got.Argv)
		})
	}
}

func TestMustParseCommandPanicsOnInvalidInput(t *testing.T) {
	require.Panics(t, func() {
		_ = mustParseCommand(`mycmd "unterminated`)
	})
}
