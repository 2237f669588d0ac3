package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"machine-bootstrap/internal/config"
	"machine-bootstrap/internal/logger"
	"machine-bootstrap/internal/platform"
	"machine-bootstrap/internal/runner"
	"machine-bootstrap/internal/state"
)

// debug flag indicates whether debug logging should be enabled.
// It can be toggled via the `--debug` command-line flag.
var debug bool

// env holds what every subcommand needs. It is built in PersistentPreRunE.
type env struct {
	cfg       *config.Config
	log       *logger.Logger
	run       runner.Runner
	statePath string
}

var app *env

// rootCmd is the base command for the CLI tool `machine-bootstrap`.
// Without a subcommand it behaves like `install`.
var rootCmd = &cobra.Command{
	Use:   "machine-bootstrap",
	Short: "Link dotfiles and install the CLI tool set for this machine",
	Long: `machine-bootstrap links the dotfiles in this repository into $HOME and
$XDG_CONFIG_HOME, then installs fish, fzf, starship, lazygit, bat, fd, jq,
neovim and unzip with the native package manager (apt, dnf or Homebrew),
falling back to install scripts, GitHub releases or upstream git.`,
	SilenceUsage:  true,
	SilenceErrors: true,

	// PersistentPreRunE loads the configuration and opens the logger before
	// any subcommand runs.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		app = e
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall(cmd.Context())
	},
}

// readOnly marks commands that only report. They log to stderr and never
// touch the record file.
var readOnly = map[string]string{"readonly": "true"}

// newRunner and detectPlatform are replaced in tests.
var (
	newRunner = func(path string) runner.Runner { return runner.NewExec(path) }

	detectPlatform = func() platform.Platform {
		return platform.Detect(runtime.GOOS, platform.OSReleasePath)
	}
)

// newEnv reads the environment and wires the logger and the command runner.
func newEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	opts := logger.Options{
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
		Color:  colorEnabled(cfg, os.Stdout),
		Emoji:  cfg.Emoji,
		Debug:  debug,
		Out:    cmd.OutOrStdout(),
	}
	if cmd.Annotations["readonly"] == "true" {
		opts.Format = logger.FormatPretty
		opts.File = ""
		opts.Color = colorEnabled(cfg, os.Stderr)
		opts.Out = cmd.ErrOrStderr()
	}
	log := logger.New(opts)

	shims, err := cfg.ShadowingShims()
	if err != nil {
		log.Debug("", "checking for env shims: %v", err)
	}
	for _, s := range shims {
		log.Warn("", "%s may shadow /usr/bin/env and break installer scripts", s)
	}

	statePath, err := state.DefaultPath()
	if err != nil {
		_ = log.Close()
		return nil, err
	}
	log.Debug("", "PATH=%s", cfg.Path)

	return &env{
		cfg:       cfg,
		log:       log,
		run:       newRunner(cfg.Path),
		statePath: statePath,
	}, nil
}

func colorEnabled(cfg *config.Config, f *os.File) bool {
	if cfg.NoColor {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// withState loads the state record, runs fn and saves the record even when
// fn fails.
func withState(fn func(st *state.State) error) error {
	st, err := state.Load(app.statePath)
	if err != nil {
		app.log.Warn("", "starting with empty state: %v", err)
		st = state.New()
	}
	runErr := fn(st)
	if err := state.Save(app.statePath, st); err != nil {
		app.log.Warn("", "could not save state: %v", err)
	}
	if runErr != nil {
		return &loggedError{runErr}
	}
	return nil
}

// loggedError wraps failures that the step log already reports.
type loggedError struct{ error }

func (e *loggedError) Unwrap() error { return e.error }

// Execute runs the command selected by the process arguments and returns the
// process exit code. SIGINT and SIGTERM cancel the running command.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, os.Args[1:])
}

func execute(ctx context.Context, args []string) int {
	app = nil
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if app != nil {
		_ = app.log.Close()
	}
	if err != nil {
		var logged *loggedError
		if !errors.As(err, &logged) {
			fmt.Fprintln(rootCmd.ErrOrStderr(), color.RedString("error:"), err)
		}
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
