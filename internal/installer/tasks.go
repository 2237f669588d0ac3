package installer

import (
	"context"
	"fmt"
	"strings"

	"machine-bootstrap/internal/platform"
)

// lazygitRelease is the lazygit GitHub release layout, e.g.
// lazygit_0.54.2_Linux_x86_64.tar.gz or lazygit_Linux_x86_64.tar.gz.
var lazygitRelease = Release{
	Repo:   "jesseduffield/lazygit",
	Binary: "lazygit",
	Asset: func(version, osName, arch string) string {
		if version == "" {
			return fmt.Sprintf("lazygit_%s_%s.tar.gz", osName, arch)
		}
		return fmt.Sprintf("lazygit_%s_%s_%s.tar.gz", version, osName, arch)
	},
}

// fishRelease is the static fish build published since fish 4, e.g.
// fish-4.0.2-linux-x86_64.tar.xz. Only Linux builds are archives and there is
// no unversioned asset.
var fishRelease = Release{
	Repo:   "fish-shell/fish-shell",
	Binary: "fish",
	Asset: func(version, osName, arch string) string {
		if arch == "arm64" {
			arch = "aarch64"
		}
		if version == "" {
			return fmt.Sprintf("fish-%s-%s.tar.xz", strings.ToLower(osName), arch)
		}
		return fmt.Sprintf("fish-%s-%s-%s.tar.xz", version, strings.ToLower(osName), arch)
	},
}

// newTool starts a task for tool on the toolkit's platform.
func newTool(k *Toolkit, tool, bin string) *toolTask {
	return &toolTask{
		kit:  k,
		name: tool + "-" + k.Platform.Suffix(),
		tool: tool,
		bin:  bin,
	}
}

func starshipScriptMethod(k *Toolkit) Method {
	return Method{
		Name: "install script",
		Install: func(ctx context.Context) error {
			return RunScript(ctx, k, k.StarshipScript, "sh", []string{"-y", "-b", k.BinDir}, nil)
		},
	}
}

// Debian and Ubuntu.

func debianPackage(tool, bin, pkg string) func(*Toolkit) Task {
	return func(k *Toolkit) Task {
		t := newTool(k, tool, bin)
		t.methods = []Method{aptMethod(k, pkg)}
		return t
	}
}

func debianFzf(k *Toolkit) Task {
	t := newTool(k, "fzf", "fzf")
	t.methods = []Method{upstreamFzfMethod(k, t.step()), aptMethod(k, "fzf")}
	return t
}

func linuxStarship(k *Toolkit) Task {
	t := newTool(k, "starship", "starship")
	t.methods = []Method{starshipScriptMethod(k)}
	return t
}

func debianLazygit(k *Toolkit) Task {
	t := newTool(k, "lazygit", "lazygit")
	t.methods = []Method{aptMethod(k, "lazygit"), releaseMethod(k, t.step(), lazygitRelease)}
	return t
}

func debianBat(k *Toolkit) Task {
	t := newTool(k, "bat", "bat")
	t.methods = []Method{aptMethod(k, "bat")}
	t.fixup = shim(k, "bat", "batcat")
	return t
}

func debianFd(k *Toolkit) Task {
	t := newTool(k, "fd", "fd")
	t.methods = []Method{aptMethod(k, "fd-find")}
	t.fixup = shim(k, "fd", "fdfind")
	return t
}

func debianFish(k *Toolkit) Task {
	t := newTool(k, "fish", "fish")
	t.methods = []Method{aptMethod(k, "fish"), releaseMethod(k, t.step(), fishRelease)}
	t.configure = defaultShell(k, t.step(), "fish")
	return t
}

// Fedora and the RHEL family.

func fedoraPackage(tool, bin string, pkgs ...string) func(*Toolkit) Task {
	return func(k *Toolkit) Task {
		t := newTool(k, tool, bin)
		for _, p := range pkgs {
			t.methods = append(t.methods, dnfMethod(k, p))
		}
		return t
	}
}

func fedoraFzf(k *Toolkit) Task {
	t := newTool(k, "fzf", "fzf")
	t.methods = []Method{dnfMethod(k, "fzf"), upstreamFzfMethod(k, t.step())}
	return t
}

func fedoraLazygit(k *Toolkit) Task {
	t := newTool(k, "lazygit", "lazygit")
	t.methods = []Method{
		dnfMethod(k, "lazygit"),
		coprMethod(k, "atim/lazygit", "lazygit"),
		releaseMethod(k, t.step(), lazygitRelease),
	}
	return t
}

func fedoraFish(k *Toolkit) Task {
	t := newTool(k, "fish", "fish")
	t.methods = []Method{dnfMethod(k, "fish"), releaseMethod(k, t.step(), fishRelease)}
	t.configure = defaultShell(k, t.step(), "fish")
	return t
}

// macOS. Every task makes sure Homebrew is present first.

func brewTool(k *Toolkit, tool, bin string) *toolTask {
	t := newTool(k, tool, bin)
	step := t.step()
	t.prepare = func(ctx context.Context) error { return EnsureBrew(ctx, k, step) }
	t.methods = []Method{brewMethod(k, tool)}
	return t
}

func darwinPackage(tool, bin string) func(*Toolkit) Task {
	return func(k *Toolkit) Task { return brewTool(k, tool, bin) }
}

func darwinFzf(k *Toolkit) Task {
	t := brewTool(k, "fzf", "fzf")
	t.methods = []Method{{
		Name: "brew fzf",
		Install: func(ctx context.Context) error {
			if err := BrewInstall(ctx, k, "fzf"); err != nil {
				return err
			}
			if err := BrewFzfIntegration(ctx, k); err != nil {
				k.Log.Warn(t.step(), "fzf shell integration failed: %v", err)
			}
			return nil
		},
	}}
	return t
}

func darwinFish(k *Toolkit) Task {
	t := brewTool(k, "fish", "fish")
	t.configure = defaultShell(k, t.step(), "fish")
	return t
}

// registry lists the task constructors per platform, in execution order.
var registry = map[platform.Platform][]func(*Toolkit) Task{
	platform.Debian: {
		debianPackage("unzip", "unzip", "unzip"),
		debianPackage("jq", "jq", "jq"),
		debianFzf,
		linuxStarship,
		debianLazygit,
		debianBat,
		debianFd,
		debianPackage("neovim", "nvim", "neovim"),
		debianFish,
	},
	platform.Fedora: {
		fedoraPackage("unzip", "unzip", "unzip"),
		fedoraPackage("jq", "jq", "jq"),
		fedoraFzf,
		linuxStarship,
		fedoraLazygit,
		fedoraPackage("bat", "bat", "bat"),
		fedoraPackage("fd", "fd", "fd", "fd-find"),
		fedoraPackage("neovim", "nvim", "neovim"),
		fedoraFish,
	},
	platform.Darwin: {
		darwinPackage("unzip", "unzip"),
		darwinPackage("jq", "jq"),
		darwinFzf,
		darwinPackage("starship", "starship"),
		darwinPackage("lazygit", "lazygit"),
		darwinPackage("bat", "bat"),
		darwinPackage("fd", "fd"),
		darwinPackage("neovim", "nvim"),
		darwinFish,
	},
}

// For returns freshly constructed tasks for p in registry order. The
// toolkit's Platform is set to p.
func For(p platform.Platform, k *Toolkit) []Task {
	kit := *k
	kit.Platform = p
	ctors := registry[p]
	tasks := make([]Task, 0, len(ctors))
	for _, ctor := range ctors {
		tasks = append(tasks, ctor(&kit))
	}
	return tasks
}

// Describer is implemented by tasks that can list their install methods.
type Describer interface {
	Tool() string
	Methods() []string
}
