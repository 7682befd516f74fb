package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"astra-setup/internal/component"
)

var statusJSON bool

// statusCmd probes every component and prints its state with the overall
// progress of leaf components.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which components are installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := loadTracker(settings)
		if err != nil {
			return err
		}
		snap := tracker.AllStatuses(cmd.Context())
		out := cmd.OutOrStdout()
		if statusJSON {
			return writeJSON(out, snap)
		}

		g := tracker.Graph()
		for _, id := range tracker.Selectable() {
			c, _ := g.Get(id)
			fmt.Fprintf(out, "%-28s %s\n", bold(label(c)), colorStatus(snap.Statuses[id]))
			for _, child := range g.SortByPriority(c.Children) {
				cc, ok := g.Get(child)
				if !ok {
					fmt.Fprintf(out, "  %-26s %s\n", child, red("unknown"))
					continue
				}
				fmt.Fprintf(out, "  %-26s %s\n", label(cc), colorStatus(snap.Statuses[child]))
			}
		}
		fmt.Fprintf(out, "\n%s %d/%d installed (%.0f%%), %d missing\n",
			bold("Progress:"), snap.Installed, snap.Total, snap.ProgressPercent, snap.Missing)
		return nil
	},
}

// listCmd prints the catalog grouped by category.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List components by category",
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := loadTracker(settings)
		if err != nil {
			return err
		}
		g := tracker.Graph()
		out := cmd.OutOrStdout()

		// categories in the order their first component appears
		var order []component.Category
		groups := tracker.ByCategory()
		seen := make(map[component.Category]bool)
		for _, id := range g.IDs() {
			c, _ := g.Get(id)
			if !seen[c.Category] {
				seen[c.Category] = true
				order = append(order, c.Category)
			}
		}
		for _, cat := range order {
			fmt.Fprintln(out, bold(string(cat)))
			for _, id := range groups[cat] {
				c, _ := g.Get(id)
				line := "  " + label(c)
				if len(c.Dependencies) > 0 {
					line += "  <- " + strings.Join(c.Dependencies, ", ")
				}
				if c.IsParent() {
					line += "  [" + strings.Join(c.Children, ", ") + "]"
				}
				fmt.Fprintln(out, line)
			}
		}
		fmt.Fprintf(out, "\n%s %s\n", bold("Selectable:"), strings.Join(tracker.Selectable(), ", "))
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the snapshot as JSON")
}
