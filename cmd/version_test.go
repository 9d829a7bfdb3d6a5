package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{
			name:     "version command shows version info",
			args:     []string{"version"},
			contains: []string{"podcast-dl", "Version:      v" + Version, "Git Commit:", "OS/Arch:"},
		},
		{
			name:     "version command with --short flag",
			args:     []string{"version", "--short"},
			contains: []string{"v" + Version + "\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestVersionCommandFlags(t *testing.T) {
	cmd := NewRootCmd()
	versionCmd, _, err := cmd.Find([]string{"version"})
	require.NoError(t, err)

	shortFlag := versionCmd.Flags().Lookup("short")
	require.NotNil(t, shortFlag, "Expected short flag to be registered")
	assert.Equal(t, "s", shortFlag.Shorthand)
}
