package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"machine-bootstrap/internal/installer"
	"machine-bootstrap/internal/platform"
	"machine-bootstrap/internal/state"
)

var listPlatform string

// detectCmd prints the detected platform.
var detectCmd = &cobra.Command{
	Use:         "detect",
	Short:       "Print the detected platform",
	Args:        cobra.NoArgs,
	Annotations: readOnly,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), detectPlatform())
	},
}

// statusCmd prints the state record of the last runs.
var statusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show the outcome of previous runs",
	Args:        cobra.NoArgs,
	Annotations: readOnly,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := state.Load(app.statePath)
		if err != nil {
			return err
		}
		printStatus(cmd, st)
		return nil
	},
}

// listCmd prints the task registry with each task's fallback chain.
var listCmd = &cobra.Command{
	Use:         "list",
	Short:       "List the install tasks for this or another platform",
	Args:        cobra.NoArgs,
	Annotations: readOnly,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := detectPlatform()
		if listPlatform != "" {
			parsed, ok := platform.Parse(listPlatform)
			if !ok {
				return fmt.Errorf("unknown platform %q (want debian, fedora or darwin)", listPlatform)
			}
			p = parsed
		}
		kit := installer.NewToolkit(app.cfg, app.run, app.log, p)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s\t%s\n", color.New(color.Bold).Sprint("TASK"), color.New(color.Bold).Sprint("TOOL"), color.New(color.Bold).Sprint("METHODS"))
		for _, t := range installer.For(p, kit) {
			tool, methods := "", ""
			if d, ok := t.(installer.Describer); ok {
				tool, methods = d.Tool(), strings.Join(d.Methods(), " -> ")
			}
			if kit.Skipped(tool) {
				methods = color.YellowString("skipped")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name(), tool, methods)
		}
		return w.Flush()
	},
}

func printStatus(cmd *cobra.Command, st *state.State) {
	out := cmd.OutOrStdout()
	if st.LastRun.IsZero() && len(st.Links) == 0 {
		fmt.Fprintln(out, "no runs recorded yet")
		return
	}
	fmt.Fprintf(out, "platform: %s\nlast run: %s\n\n", st.Platform, st.LastRun.Format("2006-01-02 15:04:05"))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, name := range st.TaskNames() {
		ts := st.Tasks[name]
		fmt.Fprintf(w, "%s\t%s\t%d ms\t%s\n", name, statusLabel(ts.Status), ts.DurationMS, ts.Error)
	}
	_ = w.Flush()

	if len(st.Links) > 0 {
		fmt.Fprintf(out, "\n%d dotfile links:\n", len(st.Links))
		for _, dst := range st.LinkDestinations() {
			fmt.Fprintf(out, "  %s -> %s\n", dst, st.Links[dst].Source)
		}
	}
}

func statusLabel(s string) string {
	switch installer.Status(s) {
	case installer.StatusSucceeded:
		return color.GreenString(s)
	case installer.StatusSkipped:
		return color.CyanString(s)
	case installer.StatusFailed:
		return color.RedString(s)
	}
	return s
}

// init registers the inspection subcommands.
func init() {
	listCmd.Flags().StringVar(&listPlatform, "platform", "", "Platform to list (debian, fedora, darwin); detected when empty")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
}
