// Package actions implements the install steps components are built from.
//
// Command-style actions hand their steps to the executor, which runs them
// through the interactive session runner. File-style actions work in
// process and honour Executor.DryRun themselves.
package actions

import (
	"context"
	"fmt"
	"strings"

	"astra-setup/internal/component"
)

// debconf asks its questions as plain text with the readline frontend,
// which is what the prompt registry understands.
const debianFrontend = "DEBIAN_FRONTEND=readline"

// AptInstall installs packages with apt-get, answering its questions.
type AptInstall struct {
	Packages []string
}

func (a AptInstall) Apply(ctx context.Context, ex component.Executor) error {
	if len(a.Packages) == 0 {
		return fmt.Errorf("apt install: no packages given")
	}
	return ex.Run(ctx, component.Step{
		Name:       "apt-get",
		Args:       append([]string{"install"}, a.Packages...),
		Env:        []string{debianFrontend},
		Privileged: true,
	})
}

func (a AptInstall) String() string {
	return "apt-get install " + strings.Join(a.Packages, " ")
}

// AptUpgrade refreshes package lists and upgrades the system.
type AptUpgrade struct {
	// Dist selects dist-upgrade over upgrade.
	Dist bool
}

func (a AptUpgrade) Apply(ctx context.Context, ex component.Executor) error {
	if err := ex.Run(ctx, component.Step{Name: "apt-get", Args: []string{"update"}, Env: []string{debianFrontend}, Privileged: true}); err != nil {
		return err
	}
	return ex.Run(ctx, component.Step{Name: "apt-get", Args: []string{a.verb()}, Env: []string{debianFrontend}, Privileged: true})
}

func (a AptUpgrade) verb() string {
	if a.Dist {
		return "dist-upgrade"
	}
	return "upgrade"
}

func (a AptUpgrade) String() string { return "apt-get update && apt-get " + a.verb() }

// Script runs a bash script.
type Script struct {
	Script     string
	Env        []string
	Privileged bool
}

func (s Script) Apply(ctx context.Context, ex component.Executor) error {
	return ex.Run(ctx, component.Step{
		Name:       "bash",
		Args:       []string{"-c", s.Script},
		Env:        append([]string{debianFrontend}, s.Env...),
		Privileged: s.Privileged,
	})
}

func (s Script) String() string {
	first, _, _ := strings.Cut(strings.TrimSpace(s.Script), "\n")
	return "bash -c " + first
}

func wineEnv(prefix string, extra ...string) []string {
	env := []string{"WINEPREFIX=" + prefix, "WINEDEBUG=-all"}
	return append(env, extra...)
}

// WineBoot creates or updates a Wine prefix.
type WineBoot struct {
	Prefix string
	// Arch is "win32" or "win64"; empty keeps Wine's default.
	Arch string
}

func (w WineBoot) Apply(ctx context.Context, ex component.Executor) error {
	var extra []string
	if w.Arch != "" {
		extra = append(extra, "WINEARCH="+w.Arch)
	}
	return ex.Run(ctx, component.Step{Name: "wineboot", Args: []string{"--init"}, Env: wineEnv(w.Prefix, extra...)})
}

func (w WineBoot) String() string { return "wineboot --init in " + w.Prefix }

// Wine runs a Windows program, typically an installer, inside a prefix.
type Wine struct {
	Prefix  string
	Program string
	Args    []string
}

func (w Wine) Apply(ctx context.Context, ex component.Executor) error {
	return ex.Run(ctx, component.Step{
		Name: "wine",
		Args: append([]string{w.Program}, w.Args...),
		Env:  wineEnv(w.Prefix),
	})
}

func (w Wine) String() string {
	return strings.TrimSpace("wine " + w.Program + " " + strings.Join(w.Args, " "))
}

// Winetricks installs runtime verbs (vcrun2019, corefonts, ...) into a prefix.
type Winetricks struct {
	Prefix string
	Verbs  []string
}

func (w Winetricks) Apply(ctx context.Context, ex component.Executor) error {
	if len(w.Verbs) == 0 {
		return fmt.Errorf("winetricks: no verbs given")
	}
	return ex.Run(ctx, component.Step{
		Name: "winetricks",
		Args: append([]string{"-q", "--unattended"}, w.Verbs...),
		Env:  wineEnv(w.Prefix),
	})
}

func (w Winetricks) String() string { return "winetricks " + strings.Join(w.Verbs, " ") }

// Sequence applies actions in order and stops at the first failure.
type Sequence []component.Action

func (s Sequence) Apply(ctx context.Context, ex component.Executor) error {
	for _, a := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.Apply(ctx, ex); err != nil {
			return fmt.Errorf("%s: %w", a, err)
		}
	}
	return nil
}

func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, a := range s {
		parts[i] = a.String()
	}
	return strings.Join(parts, "; ")
}
