package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"machine-bootstrap/internal/config"
	"machine-bootstrap/internal/logger"
	"machine-bootstrap/internal/platform"
	"machine-bootstrap/internal/runner"
)

// Well-known upstream locations.
const (
	DefaultGitHubAPI      = "https://api.github.com"
	DefaultGitHubWeb      = "https://github.com"
	DefaultFzfRepo        = "https://github.com/junegunn/fzf.git"
	DefaultStarshipScript = "https://starship.rs/install.sh"
	DefaultBrewScript     = "https://raw.githubusercontent.com/Homebrew/install/HEAD/install.sh"
	DefaultShellsFile     = "/etc/shells"
)

// Toolkit is the read-only context shared by every task of a run.
type Toolkit struct {
	Runner   runner.Runner
	Log      *logger.Logger
	Platform platform.Platform
	HTTP     *http.Client

	Home   string
	BinDir string // user-local bin directory, e.g. ~/.local/bin
	User   string // login name for privileged chsh
	Shell  string // $SHELL at startup
	Skip   []string

	GOOS   string
	GOARCH string

	GitHubAPI      string
	GitHubWeb      string
	FzfRepo        string
	FzfCloneDepth  int
	StarshipScript string
	BrewScript     string
	ShellsFile     string

	// UID reports the effective user id; os.Geteuid when nil.
	UID func() int
}

// NewToolkit builds a Toolkit for the host from cfg.
func NewToolkit(cfg *config.Config, r runner.Runner, log *logger.Logger, p platform.Platform) *Toolkit {
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("LOGNAME")
	}
	return &Toolkit{
		Runner:         r,
		Log:            log,
		Platform:       p,
		HTTP:           &http.Client{Timeout: 5 * time.Minute},
		Home:           cfg.Home,
		BinDir:         cfg.BinDir(),
		User:           user,
		Shell:          os.Getenv("SHELL"),
		Skip:           cfg.Skip,
		GOOS:           runtime.GOOS,
		GOARCH:         runtime.GOARCH,
		GitHubAPI:      DefaultGitHubAPI,
		GitHubWeb:      DefaultGitHubWeb,
		FzfRepo:        DefaultFzfRepo,
		FzfCloneDepth:  1,
		StarshipScript: DefaultStarshipScript,
		BrewScript:     DefaultBrewScript,
		ShellsFile:     DefaultShellsFile,
	}
}

// SearchDirs are prefixed to PATH when checking whether a tool resolves.
func (k *Toolkit) SearchDirs() []string {
	return []string{k.BinDir, filepath.Join(k.Home, ".fzf", "bin")}
}

// Which resolves name on the extended search path.
func (k *Toolkit) Which(name string) (string, error) {
	return k.Runner.LookPath(name, k.SearchDirs()...)
}

// Has reports whether name resolves on the extended search path.
func (k *Toolkit) Has(name string) bool {
	_, err := k.Which(name)
	return err == nil
}

// Skipped reports whether tool was excluded through SKIP_TOOLS or --skip.
func (k *Toolkit) Skipped(tool string) bool {
	for _, s := range k.Skip {
		if strings.EqualFold(s, tool) {
			return true
		}
	}
	return false
}

// EnsureBinDir creates the user-local bin directory.
func (k *Toolkit) EnsureBinDir() error {
	if err := os.MkdirAll(k.BinDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", k.BinDir, err)
	}
	return nil
}

func (k *Toolkit) uid() int {
	if k.UID != nil {
		return k.UID()
	}
	return os.Geteuid()
}

// RunPrivileged runs name directly as root, through sudo otherwise.
func RunPrivileged(ctx context.Context, k *Toolkit, name string, args []string, opts runner.Options) (string, error) {
	if k.uid() == 0 {
		return k.Runner.Run(ctx, name, args, opts)
	}
	if _, err := k.Runner.LookPath("sudo"); err != nil {
		return "", fmt.Errorf("need root or sudo: %s %s", name, strings.Join(args, " "))
	}
	return k.Runner.Run(ctx, "sudo", append([]string{name}, args...), opts)
}

// AptUpdate refreshes the apt package index.
func AptUpdate(ctx context.Context, k *Toolkit) error {
	_, err := RunPrivileged(ctx, k, "apt-get", []string{"update", "-y"}, runner.Options{})
	return err
}

// AptInstall installs pkgs with apt-get.
func AptInstall(ctx context.Context, k *Toolkit, pkgs ...string) error {
	if len(pkgs) == 0 {
		return nil
	}
	_, err := RunPrivileged(ctx, k, "apt-get", append([]string{"install", "-y"}, pkgs...), runner.Options{
		Env: map[string]string{"DEBIAN_FRONTEND": "noninteractive"},
	})
	return err
}

// DnfInstall installs pkgs with dnf.
func DnfInstall(ctx context.Context, k *Toolkit, pkgs ...string) error {
	if len(pkgs) == 0 {
		return nil
	}
	_, err := RunPrivileged(ctx, k, "dnf", append([]string{"install", "-y"}, pkgs...), runner.Options{})
	return err
}

// DnfCoprEnable enables a COPR repository, installing the dnf plugins first.
func DnfCoprEnable(ctx context.Context, k *Toolkit, repo string) error {
	if err := DnfInstall(ctx, k, "dnf-plugins-core"); err != nil {
		return err
	}
	_, err := RunPrivileged(ctx, k, "dnf", []string{"-y", "copr", "enable", repo}, runner.Options{})
	return err
}

var brewEnv = map[string]string{"HOMEBREW_NO_AUTO_UPDATE": "1"}

// EnsureBrew installs Homebrew with the official script unless brew resolves.
func EnsureBrew(ctx context.Context, k *Toolkit, step string) error {
	if k.Has("brew") {
		return nil
	}
	k.Log.Info(step, "installing Homebrew")
	return RunScript(ctx, k, k.BrewScript, "bash", nil, map[string]string{"NONINTERACTIVE": "1"})
}

// BrewInstalled reports whether brew already manages pkg.
func BrewInstalled(ctx context.Context, k *Toolkit, pkg string) bool {
	_, err := k.Runner.Run(ctx, "brew", []string{"list", "--versions", pkg}, runner.Options{Quiet: true, Env: brewEnv})
	return err == nil
}

// BrewInstall installs pkg with Homebrew unless it is already installed.
func BrewInstall(ctx context.Context, k *Toolkit, pkg string) error {
	if BrewInstalled(ctx, k, pkg) {
		return nil
	}
	_, err := k.Runner.Run(ctx, "brew", []string{"install", pkg}, runner.Options{Env: brewEnv})
	return err
}

// BrewPrefix returns the Homebrew installation prefix.
func BrewPrefix(ctx context.Context, k *Toolkit) (string, error) {
	return k.Runner.Run(ctx, "brew", []string{"--prefix"}, runner.Options{Quiet: true, Env: brewEnv})
}

// RunScript downloads an installer script and runs it with interpreter.
func RunScript(ctx context.Context, k *Toolkit, url, interpreter string, args []string, env map[string]string) error {
	dir, err := os.MkdirTemp("", "machine-bootstrap-script-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	script := filepath.Join(dir, "install.sh")
	if err := k.download(ctx, url, script); err != nil {
		return err
	}
	_, err = k.Runner.Run(ctx, interpreter, append([]string{script}, args...), runner.Options{Env: env})
	return err
}

// download saves url to dest. A 404 wraps ErrAssetNotFound.
func (k *Toolkit) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := k.client().Do(req)
	if err != nil {
		return fmt.Errorf("failed to GET %s: %w", url, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			k.Log.Debug("", "close response body: %v", cerr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrAssetNotFound, url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("GET %s: HTTP status %d", url, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", dest, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("failed to write response to file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}
	k.Log.Debug("", "downloaded %s to %s", url, dest)
	return nil
}

func (k *Toolkit) client() *http.Client {
	if k.HTTP != nil {
		return k.HTTP
	}
	return http.DefaultClient
}
