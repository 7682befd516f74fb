package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"astra-setup/cmd"
)

// main is the program entry point. It delegates to the cmd package, which
// handles command line parsing and execution.
//
// astra-setup provisions a Linux workstation for a Wine-hosted IDE:
//   - repairs the package repository and upgrades the system
//   - installs Wine, prepares a prefix and its Windows runtimes and fonts
//   - unpacks the IDE into the prefix, configures it and adds a desktop shortcut
//
// apt, dpkg and debconf ask questions even in scripts; every command runs in
// a session that recognises those prompts and answers them. Each component
// is checked against the live system before and after it is installed, so
// runs are idempotent.
//
// Errors are logged extensively and the run continues where that is safe.
// A failed or interrupted run exits non-zero.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
