package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"machine-bootstrap/internal/config"
	"machine-bootstrap/internal/logger"
	"machine-bootstrap/internal/platform"
	"machine-bootstrap/internal/runner"
)

func TestRunPrivileged(t *testing.T) {
	t.Run("root runs directly", func(t *testing.T) {
		fr := newFakeRunner()
		k := newKit(t, fr)

		_, err := RunPrivileged(context.Background(), k, "apt-get", []string{"install", "-y", "jq"}, runner.Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"apt-get install -y jq"}, fr.lines())
	})

	t.Run("sudo when available", func(t *testing.T) {
		fr := newFakeRunner()
		fr.bins["sudo"] = "/usr/bin/sudo"
		k := newKit(t, fr)
		k.UID = func() int { return 1000 }

		_, err := RunPrivileged(context.Background(), k, "dnf", []string{"install", "-y", "jq"}, runner.Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"sudo dnf install -y jq"}, fr.lines())
	})

	t.Run("neither root nor sudo", func(t *testing.T) {
		fr := newFakeRunner()
		k := newKit(t, fr)
		k.UID = func() int { return 1000 }

		_, err := RunPrivileged(context.Background(), k, "dnf", []string{"install", "-y", "jq"}, runner.Options{})
		assert.ErrorContains(t, err, "need root or sudo")
		assert.Empty(t, fr.lines())
	})
}

func TestHasSearchesUserDirs(t *testing.T) {
	k := newKit(t, newFakeRunner())
	fzfBin := filepath.Join(k.Home, ".fzf", "bin")
	require.NoError(t, os.MkdirAll(fzfBin, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(fzfBin, "fzf"), []byte("#!/bin/sh\n"), 0o755))

	assert.True(t, k.Has("fzf"))
	assert.False(t, k.Has("lazygit"))
}

func TestNewToolkit(t *testing.T) {
	cfg := &config.Config{Home: "/home/me", Skip: []string{"fish"}}

	k := NewToolkit(cfg, newFakeRunner(), logger.Discard(), platform.Fedora)

	assert.Equal(t, "/home/me/.local/bin", k.BinDir)
	assert.Equal(t, platform.Fedora, k.Platform)
	assert.True(t, k.Skipped("FISH"))
	assert.False(t, k.Skipped("jq"))
	assert.Equal(t, DefaultGitHubAPI, k.GitHubAPI)
	assert.Equal(t, 1, k.FzfCloneDepth)
}
