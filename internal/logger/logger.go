package logger

import (
	"github.com/fatih/color" // Colored console output for every log level
)

// Colorized printing functions for the different log levels.
// Each one behaves like fmt.Printf; the caller includes the level prefix
// (e.g. "[INFO]") and the trailing newline in the format string.

// Info logs informational messages in green.
var Info = color.New(color.FgGreen).PrintfFunc()

// Warn logs warnings in bright magenta.
var Warn = color.New(color.FgHiMagenta).PrintfFunc()

// Error logs errors in red.
var Error = color.New(color.FgRed).PrintfFunc()

// Dry logs rehearsal-mode markers in blue, so a dry run is visibly distinct
// from a real one even though both report the same outcomes.
var Dry = color.New(color.FgBlue).PrintfFunc()

// Reply logs a synthesized answer written to a child process in yellow.
var Reply = color.New(color.FgYellow).PrintfFunc()

// Line logs one line of child process output, faint so that it does not
// drown the tool's own messages.
var Line = color.New(color.Faint).PrintfFunc()

// Debug logs debug messages in cyan when enabled by Init, otherwise it is a no-op.
// It starts as a no-op so packages can log before the CLI has called Init.
var Debug = func(format string, a ...any) {}

// Init enables or disables debug logging.
// Parameters:
// - enableDebug: when true Debug prints cyan messages, otherwise it discards them.
func Init(enableDebug bool) {
	if enableDebug {
		// Replace the no-op with a cyan printer
		Debug = color.New(color.FgCyan).PrintfFunc()
	} else {
		// Discard debug output
		Debug = func(format string, a ...any) {}
	}
}
