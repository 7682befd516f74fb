package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"astra-setup/internal/component"
	"astra-setup/internal/config"
	"astra-setup/internal/installer"
	"astra-setup/internal/session"
	"astra-setup/internal/state"
	"astra-setup/internal/status"
)

var (
	green   = color.New(color.FgGreen).SprintFunc()
	red     = color.New(color.FgRed).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	magenta = color.New(color.FgHiMagenta).SprintFunc()
	bold    = color.New(color.Bold).SprintFunc()
)

// loadTracker builds the component graph from the configured catalog.
func loadTracker(s *config.Settings) (*status.Tracker, error) {
	cat, err := config.LoadCatalog(s.ComponentsFile)
	if err != nil {
		return nil, err
	}
	g, err := cat.Build(s.Vars(), s.CacheDir)
	if err != nil {
		return nil, err
	}
	return status.NewTracker(g), nil
}

// newInstaller wires the prompt registry, session runner and executor.
func newInstaller(s *config.Settings, tracker *status.Tracker) (*installer.Installer, error) {
	registry, err := s.Registry()
	if err != nil {
		return nil, err
	}
	runner := session.NewRunner(registry, session.Options{
		DryRun:      s.DryRun,
		IdleTimeout: s.LineTimeout,
		MaxBuffer:   s.MaxBuffer,
	})
	return installer.New(tracker, installer.NewSessionExecutor(runner)), nil
}

// requested returns args, or every selectable component when args is empty.
func requested(tracker *status.Tracker, args []string) []string {
	if len(args) > 0 {
		return args
	}
	return tracker.Selectable()
}

func colorStatus(st status.Status) string {
	switch st {
	case status.Installed:
		return green(string(st))
	case status.Missing:
		return red(string(st))
	case status.Partial:
		return yellow(string(st))
	default:
		return magenta(string(st))
	}
}

func colorOutcome(o state.Outcome) string {
	switch o {
	case state.Success:
		return green(string(o))
	case state.Failure:
		return red(string(o))
	default:
		return yellow(string(o))
	}
}

func label(c *component.Component) string {
	if c.Name == "" || c.Name == c.ID {
		return c.ID
	}
	return fmt.Sprintf("%s (%s)", c.ID, c.Name)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
