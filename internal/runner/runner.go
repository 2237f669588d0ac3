// Package runner is the only place that spawns external processes.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Options tweaks a single invocation.
type Options struct {
	// Quiet suppresses streaming of the child's output to the terminal.
	// Output is still captured.
	Quiet bool
	// Env overrides variables for this invocation only.
	Env map[string]string
	// Dir is the working directory, the current one when empty.
	Dir string
	// Stdin feeds the child's standard input.
	Stdin io.Reader
}

// Runner executes commands and resolves binaries on the search path.
type Runner interface {
	// Run executes name with args and returns its standard output with
	// trailing whitespace trimmed.
	Run(ctx context.Context, name string, args []string, opts Options) (string, error)
	// LookPath resolves name in extraDirs followed by the runner's PATH.
	LookPath(name string, extraDirs ...string) (string, error)
}

// Exec runs commands on the host.
type Exec struct {
	// Path is the hardened PATH every child starts with.
	Path   string
	Stdout io.Writer
	Stderr io.Writer
}

// NewExec returns an Exec bound to path that streams to the process's
// standard output and error.
func NewExec(path string) *Exec {
	return &Exec{Path: path, Stdout: os.Stdout, Stderr: os.Stderr}
}

var _ Runner = (*Exec)(nil)

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, name string, args []string, opts Options) (string, error) {
	env := e.environ(opts.Env)

	bin := name
	if !strings.ContainsRune(name, os.PathSeparator) {
		resolved, err := e.LookPath(name, splitPath(opts.Env["PATH"])...)
		if err != nil {
			return "", err
		}
		bin = resolved
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Args[0] = name
	cmd.Env = env
	cmd.Dir = opts.Dir
	cmd.Stdin = opts.Stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if !opts.Quiet {
		if e.Stdout != nil {
			cmd.Stdout = io.MultiWriter(&stdout, e.Stdout)
		}
		if e.Stderr != nil {
			cmd.Stderr = io.MultiWriter(&stderr, e.Stderr)
		}
	}

	err := cmd.Run()
	out := strings.TrimRight(stdout.String(), " \t\r\n")
	if err != nil {
		return out, describe(name, args, err, stderr.String())
	}
	return out, nil
}

// environ builds the child environment: the process environment with PATH
// replaced by the hardened value, then the per-call overrides.
func (e *Exec) environ(overrides map[string]string) []string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			vars[k] = v
		}
	}
	if e.Path != "" {
		vars["PATH"] = e.Path
	}
	for k, v := range overrides {
		vars[k] = v
	}

	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// LookPath implements Runner. The first executable regular file wins.
func (e *Exec) LookPath(name string, extraDirs ...string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		if isExecutable(name) {
			return name, nil
		}
		return "", &NotFoundError{Name: name}
	}
	dirs := append(append([]string{}, extraDirs...), splitPath(e.Path)...)
	for _, dir := range dirs {
		// Relative entries would resolve against the working directory.
		if dir == "" || !filepath.IsAbs(dir) {
			continue
		}
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", &NotFoundError{Name: name}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	return filepath.SplitList(p)
}

// NotFoundError reports a binary missing from the search path.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string { return "command not found: " + e.Name }

// Unwrap lets errors.Is(err, exec.ErrNotFound) match.
func (e *NotFoundError) Unwrap() error { return exec.ErrNotFound }

// describe turns a failed Run into an error carrying the command line and
// the tail of its standard error.
func describe(name string, args []string, err error, stderr string) error {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if tail := lastLines(stderr, 5); tail != "" {
			return fmt.Errorf("%s: exit code %d: %s: %w", line, exitErr.ExitCode(), tail, err)
		}
		return fmt.Errorf("%s: exit code %d: %w", line, exitErr.ExitCode(), err)
	}
	return fmt.Errorf("%s: %w", line, err)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ExitCode extracts the exit status of a failed process from err.
func ExitCode(err error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return 0, false
}
