package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// toolTask is the shared shape of every tool installer: skip when the binary
// already resolves, otherwise walk the fallback chain, then verify.
type toolTask struct {
	kit     *Toolkit
	name    string // task name, e.g. "bat-ubuntu"
	tool    string // tool name matched against the skip list
	bin     string // binary that must resolve afterwards
	methods []Method

	// prepare runs in Pre after the bin directory exists.
	prepare func(ctx context.Context) error
	// fixup runs in Post before verification, e.g. to create a shim.
	fixup func(ctx context.Context) error
	// configure runs in Post after successful verification.
	configure func(ctx context.Context)
}

var (
	_ Task        = (*toolTask)(nil)
	_ Conditional = (*toolTask)(nil)
)

func (t *toolTask) Name() string { return t.name }

func (t *toolTask) step() string { return StepName(t.name) }

// Tool is the tool this task installs.
func (t *toolTask) Tool() string { return t.tool }

// Methods lists the fallback chain in the order it is tried.
func (t *toolTask) Methods() []string {
	names := make([]string, len(t.methods))
	for i, m := range t.methods {
		names[i] = m.Name
	}
	return names
}

func (t *toolTask) ShouldRun(context.Context) (bool, error) {
	return !t.kit.Skipped(t.tool), nil
}

func (t *toolTask) Pre(ctx context.Context) error {
	if err := t.kit.EnsureBinDir(); err != nil {
		return err
	}
	if t.prepare != nil {
		return t.prepare(ctx)
	}
	return nil
}

func (t *toolTask) Run(ctx context.Context) error {
	if t.kit.Has(t.bin) {
		t.kit.Log.Info(t.step(), "%s already installed; skipping", t.tool)
		return nil
	}
	return Chain(ctx, t.kit.Log, t.step(), t.methods...)
}

func (t *toolTask) Post(ctx context.Context) error {
	if t.fixup != nil {
		if err := t.fixup(ctx); err != nil {
			t.kit.Log.Warn(t.step(), "%v", err)
		}
	}
	if !t.kit.Has(t.bin) {
		return fmt.Errorf("%w: %s missing on PATH", ErrVerify, t.bin)
	}
	if t.configure != nil {
		t.configure(ctx)
	}
	return nil
}

// Method constructors.

func aptMethod(k *Toolkit, pkgs ...string) Method {
	return Method{
		Name: "apt " + strings.Join(pkgs, " "),
		Install: func(ctx context.Context) error {
			if err := AptUpdate(ctx, k); err != nil {
				return err
			}
			return AptInstall(ctx, k, pkgs...)
		},
	}
}

func dnfMethod(k *Toolkit, pkgs ...string) Method {
	return Method{
		Name:    "dnf " + strings.Join(pkgs, " "),
		Install: func(ctx context.Context) error { return DnfInstall(ctx, k, pkgs...) },
	}
}

func coprMethod(k *Toolkit, repo, pkg string) Method {
	return Method{
		Name: "copr " + repo,
		Install: func(ctx context.Context) error {
			if err := DnfCoprEnable(ctx, k, repo); err != nil {
				return err
			}
			return DnfInstall(ctx, k, pkg)
		},
	}
}

func brewMethod(k *Toolkit, pkg string) Method {
	return Method{
		Name:    "brew " + pkg,
		Install: func(ctx context.Context) error { return BrewInstall(ctx, k, pkg) },
	}
}

func releaseMethod(k *Toolkit, step string, rel Release) Method {
	return Method{
		Name:    "github release " + rel.Repo,
		Install: func(ctx context.Context) error { return InstallRelease(ctx, k, step, rel) },
	}
}

func upstreamFzfMethod(k *Toolkit, step string) Method {
	return Method{
		Name:    "upstream git",
		Install: func(ctx context.Context) error { return UpstreamFzf(ctx, k, step) },
	}
}

// shim links BinDir/name to the resolved target when name does not resolve
// but target does, e.g. bat -> batcat on Debian.
func shim(k *Toolkit, name, target string) func(context.Context) error {
	return func(context.Context) error {
		if k.Has(name) {
			return nil
		}
		path, err := k.Which(target)
		if err != nil {
			return nil
		}
		dst := filepath.Join(k.BinDir, name)
		if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", dst, err)
		}
		if err := os.Symlink(path, dst); err != nil {
			return fmt.Errorf("create %s shim: %w", name, err)
		}
		return nil
	}
}

// defaultShell makes the installed shell the login shell.
func defaultShell(k *Toolkit, step, shell string) func(context.Context) {
	return func(ctx context.Context) {
		EnsureDefaultShell(ctx, k, step, shell)
	}
}
