package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"

	"machine-bootstrap/internal/runner"
)

var fzfInstallFlags = []string{"--key-bindings", "--completion", "--no-update-rc"}

// UpstreamFzf keeps ~/.fzf as a shallow clone of the fzf repository and runs
// its install script. An existing checkout is fast-forwarded; one that cannot
// be updated is removed and cloned again.
func UpstreamFzf(ctx context.Context, k *Toolkit, step string) error {
	dir := filepath.Join(k.Home, ".fzf")

	if err := pullFzf(ctx, dir); err != nil {
		if !errors.Is(err, git.ErrRepositoryNotExists) {
			k.Log.Warn(step, "updating %s failed, cloning again: %v", dir, err)
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
		_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:   k.FzfRepo,
			Depth: k.FzfCloneDepth,
		})
		if err != nil {
			return fmt.Errorf("clone %s: %w", k.FzfRepo, err)
		}
	}

	_, err := k.Runner.Run(ctx, filepath.Join(dir, "install"), fzfInstallFlags, runner.Options{})
	return err
}

func pullFzf(ctx context.Context, dir string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// BrewFzfIntegration runs the install script shipped with the Homebrew fzf
// package to set up key bindings and completion.
func BrewFzfIntegration(ctx context.Context, k *Toolkit) error {
	prefix, err := BrewPrefix(ctx, k)
	if err != nil {
		return err
	}
	_, err = k.Runner.Run(ctx, filepath.Join(prefix, "opt", "fzf", "install"), fzfInstallFlags, runner.Options{})
	return err
}
