// Package status reports the live installation state of components.
//
// Nothing is cached between calls: other processes (or a human with a
// terminal) may change the system at any time, so every query re-probes.
package status

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"astra-setup/internal/component"
	"astra-setup/internal/logger"
	"astra-setup/internal/resolver"
)

// Status is the state of one component.
type Status string

const (
	Installed Status = "installed"
	Missing   Status = "missing"
	// Pending is set explicitly while a component is being installed.
	Pending Status = "pending"
	// Partial is reported for a parent whose children disagree.
	Partial Status = "partial"
)

// Snapshot is the state of every component at one point in time.
// The counters cover leaf components only.
type Snapshot struct {
	Statuses        map[string]Status `json:"statuses"`
	Total           int               `json:"total"`
	Installed       int               `json:"installed"`
	Missing         int               `json:"missing"`
	Pending         int               `json:"pending"`
	ProgressPercent float64           `json:"progress_percent"`
}

// Progress summarises leaf components.
type Progress struct {
	Total           int     `json:"total"`
	Installed       int     `json:"installed"`
	Missing         int     `json:"missing"`
	Pending         int     `json:"pending"`
	ProgressPercent float64 `json:"progress_percent"`
}

// Validation is the pre-flight report for a requested install set.
type Validation struct {
	Valid                bool     `json:"valid"`
	MissingDependencies  []string `json:"missing_dependencies"`
	CircularDependencies []string `json:"circular_dependencies"`
}

// Tracker computes statuses over an immutable graph. Pending overrides are
// the only mutable state and are safe for concurrent use.
type Tracker struct {
	graph *component.Graph

	mu      sync.RWMutex
	pending map[string]bool
}

// NewTracker creates a tracker for g.
func NewTracker(g *component.Graph) *Tracker {
	return &Tracker{
		graph:   g,
		pending: make(map[string]bool),
	}
}

// Graph returns the graph the tracker reports on.
func (t *Tracker) Graph() *component.Graph { return t.graph }

// SetPending marks id as being installed until ClearPending is called.
func (t *Tracker) SetPending(id string) {
	t.mu.Lock()
	t.pending[id] = true
	t.mu.Unlock()
}

// ClearPending removes the override set by SetPending.
func (t *Tracker) ClearPending(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

func (t *Tracker) isPending(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pending[id]
}

// StatusOf probes id. Leaves run their check; parents are derived from
// their children.
func (t *Tracker) StatusOf(ctx context.Context, id string) (Status, error) {
	if _, err := t.graph.Lookup(id); err != nil {
		return Missing, err
	}
	return t.statusOf(ctx, id, make(map[string]Status), make(map[string]bool)), nil
}

// statusOf memoizes within one call only; visiting guards against a parent
// that (invalidly) contains itself.
func (t *Tracker) statusOf(ctx context.Context, id string, memo map[string]Status, visiting map[string]bool) Status {
	if s, ok := memo[id]; ok {
		return s
	}
	var s Status
	switch {
	case t.isPending(id):
		s = Pending
	default:
		c, ok := t.graph.Get(id)
		switch {
		case !ok:
			s = Missing
		case c.IsParent():
			if visiting[id] {
				return Missing
			}
			visiting[id] = true
			s = t.deriveParent(ctx, c, memo, visiting)
			visiting[id] = false
		default:
			s = t.probe(ctx, c)
		}
	}
	memo[id] = s
	return s
}

func (t *Tracker) deriveParent(ctx context.Context, c *component.Component, memo map[string]Status, visiting map[string]bool) Status {
	installed, missing := 0, 0
	for _, child := range c.Children {
		switch t.statusOf(ctx, child, memo, visiting) {
		case Installed:
			installed++
		case Missing:
			missing++
		}
	}
	switch {
	case installed == len(c.Children):
		return Installed
	case missing == len(c.Children):
		return Missing
	default:
		return Partial
	}
}

// probe runs a leaf's check. A failing check counts as missing.
func (t *Tracker) probe(ctx context.Context, c *component.Component) Status {
	if c.Check == nil {
		logger.Warn("[WARN] %s has no check, reporting it as missing\n", c.ID)
		return Missing
	}
	ok, err := c.Check.Installed(ctx)
	if err != nil {
		logger.Warn("[WARN] Check for %s failed, treating it as missing: %v\n", c.ID, err)
		return Missing
	}
	if ok {
		return Installed
	}
	return Missing
}

// AllStatuses probes every component once.
func (t *Tracker) AllStatuses(ctx context.Context) Snapshot {
	memo := make(map[string]Status, t.graph.Len())
	visiting := make(map[string]bool)
	snap := Snapshot{Statuses: make(map[string]Status, t.graph.Len())}

	for _, id := range t.graph.IDs() {
		snap.Statuses[id] = t.statusOf(ctx, id, memo, visiting)
	}
	p := t.count(snap.Statuses)
	snap.Total, snap.Installed, snap.Missing, snap.Pending, snap.ProgressPercent =
		p.Total, p.Installed, p.Missing, p.Pending, p.ProgressPercent
	return snap
}

// Progress counts leaf components only; parents would double count work
// already counted in their children.
func (t *Tracker) Progress(ctx context.Context) Progress {
	memo := make(map[string]Status, t.graph.Len())
	visiting := make(map[string]bool)
	statuses := make(map[string]Status)
	for _, id := range t.graph.Leaves() {
		statuses[id] = t.statusOf(ctx, id, memo, visiting)
	}
	return t.count(statuses)
}

func (t *Tracker) count(statuses map[string]Status) Progress {
	var p Progress
	for _, id := range t.graph.Leaves() {
		p.Total++
		switch statuses[id] {
		case Installed:
			p.Installed++
		case Pending:
			p.Pending++
		default:
			p.Missing++
		}
	}
	if p.Total > 0 {
		p.ProgressPercent = float64(p.Installed) / float64(p.Total) * 100
	}
	return p
}

// ValidateDependencies pre-flights a requested install set without
// executing anything.
func (t *Tracker) ValidateDependencies(ids []string) Validation {
	v := Validation{
		MissingDependencies:  []string{},
		CircularDependencies: []string{},
	}

	for _, m := range resolver.Missing(t.graph, ids) {
		v.MissingDependencies = append(v.MissingDependencies, m.ID)
	}
	if len(v.MissingDependencies) > 0 {
		return v
	}

	if _, err := resolver.Resolve(t.graph, ids); err != nil {
		var cycleErr *resolver.CycleError
		var missingErr *resolver.MissingError
		switch {
		case errors.As(err, &cycleErr):
			v.CircularDependencies = cycleErr.Cycle
		case errors.As(err, &missingErr):
			v.MissingDependencies = append(v.MissingDependencies, missingErr.ID)
		default:
			logger.Error("[ERROR] Unexpected resolution error: %v\n", err)
			v.MissingDependencies = append(v.MissingDependencies, fmt.Sprint(err))
		}
		return v
	}

	v.Valid = true
	return v
}

// ByCategory groups component ids by category, each group by priority.
func (t *Tracker) ByCategory() map[component.Category][]string {
	out := make(map[component.Category][]string)
	for _, id := range t.graph.IDs() {
		c, _ := t.graph.Get(id)
		out[c.Category] = append(out[c.Category], id)
	}
	return out
}

// Selectable returns the components a user can pick independently:
// parents, and leaves that belong to no parent.
func (t *Tracker) Selectable() []string {
	var out []string
	for _, id := range t.graph.IDs() {
		c, _ := t.graph.Get(id)
		if c.IsParent() || len(t.graph.ParentsOf(id)) == 0 {
			out = append(out, id)
		}
	}
	return out
}
