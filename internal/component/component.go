// Package component describes the installable units of a workstation and
// the contracts used to probe and install them.
//
// A Graph is built once and never mutated; it is passed explicitly to the
// resolver and status tracker and is safe for concurrent reads.
package component

import (
	"context"
	"errors"
)

var (
	// ErrUnknownComponent is returned when an id is not present in the graph.
	ErrUnknownComponent = errors.New("unknown component")
	// ErrDuplicateComponent is returned when two components share an id.
	ErrDuplicateComponent = errors.New("duplicate component id")
)

// Category groups components for display and selection.
type Category string

const (
	CategorySystem   Category = "system"
	CategoryPackage  Category = "package"
	CategoryWine     Category = "wine"
	CategoryPrefix   Category = "prefix"
	CategoryFont     Category = "font"
	CategoryIDE      Category = "ide"
	CategoryConfig   Category = "config"
	CategoryShortcut Category = "shortcut"
)

// Checker probes the live system and reports whether a component is present.
// Implementations must be read-only and idempotent.
type Checker interface {
	Installed(ctx context.Context) (bool, error)
}

// CheckFunc adapts a plain function to the Checker interface.
type CheckFunc func(ctx context.Context) (bool, error)

// Installed calls f(ctx).
func (f CheckFunc) Installed(ctx context.Context) (bool, error) { return f(ctx) }

// Step is one external command an Action asks to run.
type Step struct {
	Name string
	Args []string
	// Env entries ("KEY=value") are added to the inherited environment.
	Env []string
	// Privileged steps need root and are wrapped by the executor when the
	// tool itself is not running as root.
	Privileged bool
}

// Executor carries out the side effects an Action asks for. The installer
// provides one backed by the interactive session runner.
type Executor interface {
	// Run executes a step, answering its interactive prompts. A non-zero
	// exit is an error.
	Run(ctx context.Context, step Step) error
	// DryRun reports whether in-process side effects (file writes,
	// downloads) must be suppressed as well.
	DryRun() bool
}

// Action installs a component.
type Action interface {
	Apply(ctx context.Context, ex Executor) error
	// String describes the action for logs.
	String() string
}

// Component is a single node of the graph.
type Component struct {
	ID           string
	Name         string
	Category     Category
	Priority     int
	Dependencies []string
	// Children makes the component a parent: its own Check and Install are
	// ignored and its state is derived from the children.
	Children []string
	Check    Checker
	Install  Action
}

// IsParent reports whether the component groups other components.
func (c *Component) IsParent() bool {
	return len(c.Children) > 0
}

// DisplayName returns Name, falling back to ID.
func (c *Component) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
