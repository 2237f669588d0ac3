package installer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fzfUpstream is a local stand-in for the fzf repository.
type fzfUpstream struct {
	dir string
	wt  *git.Worktree
}

func newFzfUpstream(t *testing.T) *fzfUpstream {
	t.Helper()
	// Local clones go through git-upload-pack.
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	u := &fzfUpstream{dir: dir, wt: wt}
	u.commit(t, "install", "#!/bin/sh\nexit 0\n", 0o755)
	return u
}

func (u *fzfUpstream) commit(t *testing.T, name, body string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(u.dir, name), []byte(body), mode))
	_, err := u.wt.Add(name)
	require.NoError(t, err)
	_, err = u.wt.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "fzf", Email: "fzf@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestUpstreamFzfCloneUpdateAndReclone(t *testing.T) {
	upstream := newFzfUpstream(t)
	fr := newFakeRunner()
	k := newKit(t, fr)
	k.FzfRepo = upstream.dir
	k.FzfCloneDepth = 1

	checkout := filepath.Join(k.Home, ".fzf")
	installLine := filepath.Join(checkout, "install") + " --key-bindings --completion --no-update-rc"
	ctx := context.Background()

	// Fresh machine: shallow clone, then the install script.
	require.NoError(t, UpstreamFzf(ctx, k, "install-fzf-ubuntu"))
	assert.FileExists(t, filepath.Join(checkout, "install"))
	assert.Equal(t, []string{installLine}, fr.lines())

	// A new upstream commit is fast-forwarded into the checkout.
	upstream.commit(t, "VERSION", "0.2\n", 0o644)
	require.NoError(t, UpstreamFzf(ctx, k, "install-fzf-ubuntu"))
	assert.FileExists(t, filepath.Join(checkout, "VERSION"))

	// A checkout that is no longer a repository is cloned again.
	require.NoError(t, os.RemoveAll(filepath.Join(checkout, ".git")))
	require.NoError(t, UpstreamFzf(ctx, k, "install-fzf-ubuntu"))
	assert.DirExists(t, filepath.Join(checkout, ".git"))
	assert.FileExists(t, filepath.Join(checkout, "VERSION"))

	assert.Equal(t, []string{installLine, installLine, installLine}, fr.lines())
}
