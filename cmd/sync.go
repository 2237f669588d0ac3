package cmd

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"machine-bootstrap/internal/config"
	"machine-bootstrap/internal/dotfiles"
	"machine-bootstrap/internal/installer"
	"machine-bootstrap/internal/logger"
	"machine-bootstrap/internal/state"
)

// Top-level log steps.
const (
	stepFiles     = "install-files"
	stepUninstall = "uninstall-files"
)

// skip holds tools passed with --skip; merged with SKIP_TOOLS.
var skip []string

// installCmd links the dotfiles, then installs the tools.
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Link dotfiles and install all tools (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall(cmd.Context())
	},
}

// filesCmd only links the dotfiles.
var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Link dotfiles into $HOME and the config directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withState(installFiles)
	},
}

// softwareCmd only installs the tools.
var softwareCmd = &cobra.Command{
	Use:   "software",
	Short: "Install the tool set for the detected platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := withState(func(st *state.State) error {
			return installSoftware(cmd.Context(), st)
		})
		if err == nil {
			printReloadHint()
		}
		return err
	},
}

// uninstallCmd removes the dotfile links this tool owns.
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove dotfile symlinks that point into this repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withState(uninstallFiles)
	},
}

func runInstall(ctx context.Context) error {
	err := withState(func(st *state.State) error {
		if err := installFiles(st); err != nil {
			return err
		}
		return installSoftware(ctx, st)
	})
	if err == nil {
		printReloadHint()
	}
	return err
}

func mappings(cfg *config.Config) ([]dotfiles.Mapping, error) {
	return dotfiles.Mappings(dotfiles.Roots{
		Dotfiles: cfg.DotfilesDir(),
		Home:     cfg.Home,
		Config:   cfg.ConfigHome,
	}, runtime.GOOS)
}

// installFiles runs the install-files step.
func installFiles(st *state.State) error {
	log := app.log
	log.StepBegin(stepFiles)
	log.Info(stepFiles, "linking dotfiles from %s", app.cfg.DotfilesDir())

	err := func() error {
		maps, err := mappings(app.cfg)
		if err != nil {
			return err
		}
		linked, err := dotfiles.NewOsLinker().Apply(log, stepFiles, maps)
		now := time.Now()
		for _, m := range linked {
			st.RecordLink(m.Destination, m.Source, now)
		}
		return err
	}()
	return endStep(stepFiles, err)
}

// uninstallFiles runs the uninstall-files step.
func uninstallFiles(st *state.State) error {
	log := app.log
	log.StepBegin(stepUninstall)
	log.Info(stepUninstall, "removing dotfile symlinks")

	err := func() error {
		maps, err := mappings(app.cfg)
		if err != nil {
			return err
		}
		removed, err := dotfiles.NewOsLinker().Revert(log, stepUninstall, maps)
		for _, m := range removed {
			st.ForgetLink(m.Destination)
		}
		return err
	}()
	return endStep(stepUninstall, err)
}

// endStep logs the outcome of a top-level step and passes err through.
func endStep(step string, err error) error {
	if err != nil {
		app.log.Error(step, "failed: %v", err)
		app.log.StepEnd(step, logger.End{OK: false, Error: err.Error()})
		return err
	}
	app.log.Success(step, "done")
	app.log.StepEnd(step, logger.End{OK: true})
	return nil
}

// installSoftware runs the installer pipeline for the detected platform.
func installSoftware(ctx context.Context, st *state.State) error {
	cfg := *app.cfg
	cfg.Skip = append(append([]string{}, cfg.Skip...), skip...)

	kit := installer.NewToolkit(&cfg, app.run, app.log, detectPlatform())
	_, err := installer.SyncSoftware(ctx, kit, st)
	return err
}

func printReloadHint() {
	app.log.Success("", "all done; reload your shell with: %s", installer.ReloadHint(os.Getenv("SHELL")))
}

// init registers the install-related subcommands.
func init() {
	softwareCmd.Flags().StringSliceVar(&skip, "skip", nil, "Tools to skip (comma separated, adds to SKIP_TOOLS)")
	installCmd.Flags().StringSliceVar(&skip, "skip", nil, "Tools to skip (comma separated, adds to SKIP_TOOLS)")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(softwareCmd)
	rootCmd.AddCommand(uninstallCmd)
}
