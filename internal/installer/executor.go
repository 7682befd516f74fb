package installer

import (
	"context"
	"fmt"
	"os"

	"astra-setup/internal/component"
	"astra-setup/internal/logger"
	"astra-setup/internal/session"
)

// SessionExecutor runs action steps through an interactive session runner.
// Privileged steps are wrapped with non-interactive sudo unless the process
// already runs as root; sudo asking for a password would otherwise hang the
// session with a prompt no rule answers.
type SessionExecutor struct {
	runner *session.Runner
	root   bool
}

// NewSessionExecutor returns an executor backed by runner.
func NewSessionExecutor(runner *session.Runner) *SessionExecutor {
	return &SessionExecutor{runner: runner, root: os.Geteuid() == 0}
}

// DryRun reports the runner's rehearsal mode.
func (e *SessionExecutor) DryRun() bool { return e.runner.DryRun() }

// Command converts a step into the command line actually launched.
func (e *SessionExecutor) Command(step component.Step) session.Command {
	if !step.Privileged || e.root {
		return session.Command{Name: step.Name, Args: step.Args, Env: step.Env}
	}
	// sudo resets the environment, so the step's variables go through env.
	args := []string{"-n", "env"}
	args = append(args, step.Env...)
	args = append(args, step.Name)
	args = append(args, step.Args...)
	return session.Command{Name: "sudo", Args: args}
}

// Run executes step and turns a non-zero exit into an error.
func (e *SessionExecutor) Run(ctx context.Context, step component.Step) error {
	cmd := e.Command(step)
	logger.Debug("[DEBUG] Running command: %s\n", cmd)

	res := e.runner.Run(ctx, cmd)
	if res.Err != nil {
		return fmt.Errorf("%s: %w", step.Name, res.Err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s exited with code %d", step.Name, res.ExitCode)
	}
	return nil
}
