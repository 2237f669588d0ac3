package installer

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"machine-bootstrap/internal/runner"
)

// EnsureDefaultShell makes the tool called shell the login shell of the
// current user. Every step is best effort: failures are logged as warnings and
// never returned. It reports whether the login shell was changed.
func EnsureDefaultShell(ctx context.Context, k *Toolkit, step, shell string) bool {
	path, err := k.Which(shell)
	if err != nil {
		k.Log.Warn(step, "cannot resolve %s: %v", shell, err)
		return false
	}

	if err := registerShell(ctx, k, path); err != nil {
		k.Log.Warn(step, "could not add %s to %s: %v", path, k.ShellsFile, err)
	}

	current := currentLoginShell(ctx, k)
	if current == path {
		k.Log.Info(step, "default shell already %s; skipping chsh", path)
		return false
	}

	// chsh may prompt for the user's password.
	_, err = k.Runner.Run(ctx, "chsh", []string{"-s", path}, runner.Options{Stdin: os.Stdin})
	if err == nil {
		k.Log.Success(step, "set default shell to %s", path)
		return true
	}
	k.Log.Debug(step, "chsh without privileges failed: %v", err)

	args := []string{"-s", path}
	if k.User != "" {
		args = append(args, k.User)
	}
	if _, err := RunPrivileged(ctx, k, "chsh", args, runner.Options{Quiet: true}); err != nil {
		k.Log.Warn(step, "failed to change default shell to %s: %v", path, err)
		return false
	}
	k.Log.Success(step, "set default shell to %s", path)
	return true
}

// registerShell appends path to the shells file unless it is listed already.
func registerShell(ctx context.Context, k *Toolkit, path string) error {
	listed, err := shellListed(k.ShellsFile, path)
	if err != nil {
		return err
	}
	if listed {
		return nil
	}
	_, err = RunPrivileged(ctx, k, "tee", []string{"-a", k.ShellsFile}, runner.Options{
		Quiet: true,
		Stdin: strings.NewReader(path + "\n"),
	})
	return err
}

func shellListed(file, path string) (bool, error) {
	f, err := os.Open(file)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == path {
			return true, nil
		}
	}
	return false, sc.Err()
}

// currentLoginShell asks the user database for the login shell and falls
// back to $SHELL.
func currentLoginShell(ctx context.Context, k *Toolkit) string {
	if k.User != "" {
		switch k.GOOS {
		case "darwin":
			out, err := k.Runner.Run(ctx, "dscl", []string{".", "-read", "/Users/" + k.User, "UserShell"}, runner.Options{Quiet: true})
			if err == nil {
				// "UserShell: /bin/zsh"
				if fields := strings.Fields(out); len(fields) >= 2 {
					return fields[1]
				}
			}
		default:
			out, err := k.Runner.Run(ctx, "getent", []string{"passwd", k.User}, runner.Options{Quiet: true})
			if err == nil {
				if parts := strings.Split(out, ":"); len(parts) >= 7 {
					return strings.TrimSpace(parts[6])
				}
			}
		}
	}
	return k.Shell
}

// ReloadHint tells the user how to pick up the new environment in the shell
// they are running.
func ReloadHint(shell string) string {
	switch filepath.Base(shell) {
	case "fish":
		return "exec fish -l"
	case "zsh":
		return "source ~/.zshrc"
	case "bash":
		return "source ~/.bashrc"
	}
	return "exec $SHELL -l"
}
