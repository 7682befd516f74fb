package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"astra-setup/internal/logger"
	"astra-setup/internal/state"
)

// validateCmd pre-flights an install request without executing anything.
var validateCmd = &cobra.Command{
	Use:   "validate [component...]",
	Short: "Check the requested components for missing and circular dependencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := loadTracker(settings)
		if err != nil {
			return err
		}
		v := tracker.ValidateDependencies(requested(tracker, args))
		out := cmd.OutOrStdout()
		if v.Valid {
			fmt.Fprintln(out, green("valid"))
			return nil
		}
		if len(v.MissingDependencies) > 0 {
			fmt.Fprintf(out, "%s %s\n", red("missing:"), strings.Join(v.MissingDependencies, ", "))
		}
		if len(v.CircularDependencies) > 0 {
			fmt.Fprintf(out, "%s %s\n", red("cycle:"), strings.Join(v.CircularDependencies, " -> "))
		}
		return errors.New("validation failed")
	},
}

// installCmd installs the requested components (all selectable ones by
// default) with their dependencies, then saves the run report.
var installCmd = &cobra.Command{
	Use:   "install [component...]",
	Short: "Install components and everything they depend on",
	Long: `Install the given components, or every top-level component when none are
named. Dependencies are installed first; components already present are
skipped. Interactive questions from apt, dpkg and debconf are answered
automatically. Use --dry-run to see what would happen.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := loadTracker(settings)
		if err != nil {
			return err
		}
		inst, err := newInstaller(settings, tracker)
		if err != nil {
			return err
		}

		report, installErr := inst.Install(cmd.Context(), requested(tracker, args))
		printReport(cmd, report)

		// Dry runs write nothing, not even the report.
		if !report.DryRun {
			if err := state.SaveReport(settings.StateFile, report); err != nil {
				logger.Error("[ERROR] Failed to save run report: %v\n", err)
			}
		}

		switch {
		case installErr != nil:
			return installErr
		case report.Cancelled:
			return cmd.Context().Err()
		case !report.OK():
			return fmt.Errorf("%d component(s) failed", len(report.With(state.Failure)))
		}
		return nil
	},
}

// reportCmd prints the report saved by the last install.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the result of the last installation run",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := state.LoadReport(settings.StateFile)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("[WARN] No installation has been recorded yet (%s)\n", settings.StateFile)
				return nil
			}
			return err
		}
		printReport(cmd, report)
		return nil
	},
}

func printReport(cmd *cobra.Command, r *state.Report) {
	out := cmd.OutOrStdout()
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(out, "\n%s %s%s\n", bold("Run"), r.RunID, mode)
	fmt.Fprintf(out, "Started %s, took %s\n", r.Started.Format("2006-01-02 15:04:05"), r.Duration().Round(time.Second))

	for _, id := range r.Order {
		o, ok := r.Results[id]
		if !ok {
			continue
		}
		line := fmt.Sprintf("  %-28s %s", id, colorOutcome(o))
		if reason := r.Reasons[id]; reason != "" {
			line += "  " + reason
		}
		fmt.Fprintln(out, line)
	}
	// Ids outside the order were rejected before resolution.
	for _, id := range r.With(state.Failure) {
		if !slices.Contains(r.Order, id) {
			fmt.Fprintf(out, "  %-28s %s  %s\n", id, colorOutcome(state.Failure), r.Reasons[id])
		}
	}

	counts := r.Counts()
	fmt.Fprintf(out, "%s %d succeeded, %d failed, %d skipped\n", bold("Summary:"),
		counts[state.Success], counts[state.Failure], counts[state.Skipped])
	if r.Cancelled {
		fmt.Fprintln(out, yellow("Run was cancelled before completion."))
	}
}
