package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/portfolio/internal/config"
)

func TestAskCommand(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"Hello", "there"}, "Hello! Nice to meet you!\n"},
		{[]string{"Can", "I", "see", "your", "work?"}, "Check out my portfolio projects section!\n"},
		{[]string{"   "}, ""},
	}
	for _, tt := range tests {
		cmd := newAskCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(tt.args)
		require.NoError(t, cmd.Execute())
		assert.Equal(t, tt.want, out.String())
	}
}

func TestLoadProfile(t *testing.T) {
	p, err := loadProfile(&config.Config{GitHubUsername: "octocat"})
	require.NoError(t, err)
	assert.Equal(t, "https://ghchart.rshah.org/octocat", p.ChartURL())

	path := filepath.Join(t.TempDir(), "github.yaml")
	require.NoError(t, os.WriteFile(path, []byte("username: gopher\nrepos:\n  - name: demo\n"), 0o644))
	p, err = loadProfile(&config.Config{GitHubProfileFile: path})
	require.NoError(t, err)
	assert.Equal(t, "gopher", p.Username)
	assert.Equal(t, "https://github.com/gopher/demo", p.Repos[0].URL)

	_, err = loadProfile(&config.Config{GitHubProfileFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}
