// Package installer drives a full installation run: validate the request,
// resolve it into an order, then install each component and confirm the
// result by probing the system again.
package installer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"astra-setup/internal/component"
	"astra-setup/internal/logger"
	"astra-setup/internal/resolver"
	"astra-setup/internal/state"
	"astra-setup/internal/status"
)

const (
	reasonAlreadyInstalled = "already installed"
	reasonCancelled        = "cancelled"
	reasonDryRun           = "dry run"
)

// ValidationError is returned when the requested set has unknown references
// or dependency cycles. Nothing has been executed when it is returned.
type ValidationError struct {
	Validation status.Validation
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Validation.MissingDependencies) > 0 {
		parts = append(parts, "missing dependencies: "+strings.Join(e.Validation.MissingDependencies, ", "))
	}
	if len(e.Validation.CircularDependencies) > 0 {
		parts = append(parts, "circular dependency: "+strings.Join(e.Validation.CircularDependencies, " -> "))
	}
	if len(parts) == 0 {
		return "invalid installation request"
	}
	return "invalid installation request: " + strings.Join(parts, "; ")
}

// Installer installs components strictly one after another.
type Installer struct {
	tracker  *status.Tracker
	executor component.Executor
}

// New returns an installer reporting through tracker and running actions
// with executor.
func New(tracker *status.Tracker, executor component.Executor) *Installer {
	return &Installer{tracker: tracker, executor: executor}
}

// Install installs ids and everything they depend on. A report is always
// returned, including when validation fails or ctx is cancelled midway.
func (in *Installer) Install(ctx context.Context, ids []string) (*state.Report, error) {
	report := state.NewReport(in.executor.DryRun())
	defer func() { report.Finished = time.Now() }()

	if v := in.tracker.ValidateDependencies(ids); !v.Valid {
		err := &ValidationError{Validation: v}
		in.rejectAll(report, ids, err)
		return report, err
	}

	order, err := resolver.Resolve(in.tracker.Graph(), ids)
	if err != nil {
		in.rejectAll(report, ids, err)
		return report, fmt.Errorf("resolve: %w", err)
	}
	report.Order = order
	logger.Info("[INFO] Installation plan: %s\n", strings.Join(order, ", "))

	// blocked holds components whose dependents must not run: failures
	// and anything skipped because of a failure.
	blocked := make(map[string]bool)
	for i, id := range order {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			report.Record(id, state.Skipped, reasonCancelled)
			continue
		}

		c, _ := in.tracker.Graph().Get(id)
		logger.Info("[INFO] [%d/%d] %s\n", i+1, len(order), c.DisplayName())

		if dep := in.blockingDependency(c, blocked); dep != "" {
			blocked[id] = true
			logger.Warn("[WARN] Skipping %s: dependency %s did not install\n", id, dep)
			report.Record(id, state.Skipped, fmt.Sprintf("dependency %s failed", dep))
			continue
		}

		outcome, reason := in.installOne(ctx, c)
		report.Record(id, outcome, reason)
		if outcome == state.Failure {
			blocked[id] = true
			if ctx.Err() != nil {
				report.Cancelled = true
			}
		}
	}

	counts := report.Counts()
	logger.Info("[INFO] Finished: %d succeeded, %d failed, %d skipped\n",
		counts[state.Success], counts[state.Failure], counts[state.Skipped])
	return report, nil
}

func (in *Installer) rejectAll(report *state.Report, ids []string, err error) {
	logger.Error("[ERROR] %v\n", err)
	for _, id := range ids {
		report.Record(id, state.Failure, err.Error())
	}
}

// installOne runs one leaf component and returns its outcome.
func (in *Installer) installOne(ctx context.Context, c *component.Component) (state.Outcome, string) {
	if st, _ := in.tracker.StatusOf(ctx, c.ID); st == status.Installed {
		logger.Info("[INFO] %s is already installed. Skipping.\n", c.ID)
		return state.Skipped, reasonAlreadyInstalled
	}
	if c.Install == nil {
		logger.Error("[ERROR] %s has no install action\n", c.ID)
		return state.Failure, "no install action defined"
	}

	in.tracker.SetPending(c.ID)
	err := in.apply(ctx, c)
	in.tracker.ClearPending(c.ID)

	// Nothing changed in dry mode and an interrupted run cannot be probed,
	// so both trust the action.
	if err != nil && (in.executor.DryRun() || ctx.Err() != nil) {
		logger.Error("[ERROR] Failed to install %s: %v\n", c.ID, err)
		return state.Failure, err.Error()
	}
	if in.executor.DryRun() {
		return state.Success, reasonDryRun
	}

	// The check decides; an action error only explains a failure.
	st, perr := in.tracker.StatusOf(ctx, c.ID)
	if perr == nil && st == status.Installed {
		if err != nil {
			logger.Warn("[WARN] %s reported %v, but the check passes\n", c.ID, err)
		}
		logger.Info("[INFO] Installed %s\n", c.DisplayName())
		return state.Success, ""
	}
	if err != nil {
		logger.Error("[ERROR] Failed to install %s: %v\n", c.ID, err)
		return state.Failure, err.Error()
	}
	logger.Error("[ERROR] %s still reports %s after installation\n", c.ID, st)
	return state.Failure, fmt.Sprintf("check reports %s after installation", st)
}

// apply runs the component's action, converting a panic into an error so
// one broken action cannot abort the run.
func (in *Installer) apply(ctx context.Context, c *component.Component) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()

	logger.Debug("[DEBUG] %s: %s\n", c.ID, c.Install)
	err = c.Install.Apply(ctx, in.executor)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("interrupted: %w", err)
	}
	return err
}

// blockingDependency returns the first dependency of c (parents expanded to
// their leaves) that is blocked, or "". Dependencies declared on any parent
// of c count as dependencies of c.
func (in *Installer) blockingDependency(c *component.Component, blocked map[string]bool) string {
	g := in.tracker.Graph()
	seen := make(map[string]bool)
	var walk func(id string) string
	walk = func(id string) string {
		if seen[id] {
			return ""
		}
		seen[id] = true
		if blocked[id] {
			return id
		}
		dep, ok := g.Get(id)
		if !ok || !dep.IsParent() {
			return ""
		}
		for _, child := range dep.Children {
			if b := walk(child); b != "" {
				return b
			}
		}
		return ""
	}

	deps := append([]string(nil), c.Dependencies...)
	ancestors := make(map[string]bool)
	queue := g.ParentsOf(c.ID)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if ancestors[id] {
			continue
		}
		ancestors[id] = true
		if p, ok := g.Get(id); ok {
			deps = append(deps, p.Dependencies...)
		}
		queue = append(queue, g.ParentsOf(id)...)
	}

	for _, id := range deps {
		if b := walk(id); b != "" {
			return b
		}
	}
	return ""
}
