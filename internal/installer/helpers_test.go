package installer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"machine-bootstrap/internal/logger"
	"machine-bootstrap/internal/platform"
	"machine-bootstrap/internal/runner"
)

// call is one recorded Run invocation.
type call struct {
	line  string
	env   map[string]string
	stdin string
	quiet bool
	// interactive is set when the child would read the terminal.
	interactive bool
}

// fakeRunner records commands instead of running them. Binaries resolve
// when registered in bins or when an executable exists in one of the extra
// directories passed to LookPath.
type fakeRunner struct {
	mu       sync.Mutex
	bins     map[string]string
	calls    []call
	handlers map[string]func() (string, error)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{bins: map[string]string{}, handlers: map[string]func() (string, error){}}
}

var _ runner.Runner = (*fakeRunner)(nil)

func (f *fakeRunner) Run(_ context.Context, name string, args []string, opts runner.Options) (string, error) {
	c := call{line: strings.Join(append([]string{name}, args...), " "), env: opts.Env, quiet: opts.Quiet}
	switch {
	case opts.Stdin == os.Stdin:
		c.interactive = true
	case opts.Stdin != nil:
		data, _ := io.ReadAll(opts.Stdin)
		c.stdin = string(data)
	}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	h := f.handlers[c.line]
	f.mu.Unlock()
	if h != nil {
		return h()
	}
	return "", nil
}

func (f *fakeRunner) LookPath(name string, extraDirs ...string) (string, error) {
	f.mu.Lock()
	p, ok := f.bins[name]
	f.mu.Unlock()
	if ok {
		return p, nil
	}
	for _, dir := range extraDirs {
		candidate := filepath.Join(dir, name)
		// Shims may point at binaries that only exist in bins.
		if info, err := os.Lstat(candidate); err == nil && (info.Mode()&os.ModeSymlink != 0 || info.Mode()&0o111 != 0) {
			return candidate, nil
		}
	}
	return "", &runner.NotFoundError{Name: name}
}

// on registers the result of the exact command line.
func (f *fakeRunner) on(line string, h func() (string, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[line] = h
}

// provides makes line succeed and bin resolve afterwards.
func (f *fakeRunner) provides(line, bin string) {
	f.on(line, func() (string, error) {
		f.mu.Lock()
		f.bins[bin] = "/usr/bin/" + bin
		f.mu.Unlock()
		return "", nil
	})
}

func (f *fakeRunner) fails(line string) {
	f.on(line, func() (string, error) { return "", exitError(1) })
}

func (f *fakeRunner) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.line
	}
	return out
}

// exitError produces a genuine *exec.ExitError with the given code.
func exitError(code int) error {
	return exec.Command("sh", "-c", "exit "+strconv.Itoa(code)).Run()
}

func newKit(t *testing.T, r runner.Runner) *Toolkit {
	t.Helper()
	home := t.TempDir()
	return &Toolkit{
		Runner:         r,
		Log:            logger.Discard(),
		Platform:       platform.Debian,
		Home:           home,
		BinDir:         filepath.Join(home, ".local", "bin"),
		User:           "me",
		Shell:          "/bin/bash",
		GOOS:           "linux",
		GOARCH:         "amd64",
		GitHubAPI:      "http://127.0.0.1:1",
		GitHubWeb:      "http://127.0.0.1:1",
		FzfRepo:        filepath.Join(home, "missing-fzf-repo"),
		StarshipScript: "http://127.0.0.1:1/install.sh",
		BrewScript:     "http://127.0.0.1:1/brew.sh",
		ShellsFile:     filepath.Join(home, "shells"),
		UID:            func() int { return 0 },
	}
}

// tarGz builds a gzip-compressed tar holding the given files.
func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	writeTar(t, gz, files)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func writeTar(t *testing.T, w io.Writer, files map[string]string) {
	t.Helper()
	tw := tar.NewWriter(w)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o755,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
}
