// Package resolver turns a requested set of component ids into an ordered
// installation plan in which every dependency precedes its dependents.
package resolver

import (
	"fmt"
	"strings"

	"astra-setup/internal/component"
)

// CycleError reports a dependency loop. Cycle starts and ends with the same id.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

// MissingError reports a reference to an id that is not in the graph.
// RequiredBy is empty when the id was requested directly.
type MissingError struct {
	ID         string
	RequiredBy string
}

func (e *MissingError) Error() string {
	if e.RequiredBy == "" {
		return fmt.Sprintf("unknown component %q requested", e.ID)
	}
	return fmt.Sprintf("component %q depends on unknown component %q", e.RequiredBy, e.ID)
}

// Resolve expands ids into an installation order.
//
// Dependencies are visited depth-first and emitted post-order, so each id
// appears once, after everything it needs. Parents expand to their children
// and never appear in the result. Siblings are visited by ascending
// priority, keeping declared order on ties.
func Resolve(g *component.Graph, ids []string) ([]string, error) {
	r := &resolution{
		graph:     g,
		expanding: make(map[string]bool),
		resolved:  make(map[string]bool),
	}
	for _, id := range g.SortByPriority(ids) {
		if err := r.visit(id, ""); err != nil {
			return nil, err
		}
	}
	return r.order, nil
}

type resolution struct {
	graph     *component.Graph
	expanding map[string]bool // ids on the current DFS path
	resolved  map[string]bool
	path      []string
	order     []string
}

func (r *resolution) visit(id, requiredBy string) error {
	if r.resolved[id] {
		return nil
	}
	if r.expanding[id] {
		return &CycleError{Cycle: r.cycleTo(id)}
	}

	c, ok := r.graph.Get(id)
	if !ok {
		return &MissingError{ID: id, RequiredBy: requiredBy}
	}

	r.expanding[id] = true
	r.path = append(r.path, id)

	for _, dep := range r.graph.SortByPriority(c.Dependencies) {
		if err := r.visit(dep, id); err != nil {
			return err
		}
	}
	if c.IsParent() {
		for _, child := range r.graph.SortByPriority(c.Children) {
			if err := r.visit(child, id); err != nil {
				return err
			}
		}
	} else {
		r.order = append(r.order, id)
	}

	r.path = r.path[:len(r.path)-1]
	r.expanding[id] = false
	r.resolved[id] = true
	return nil
}

// cycleTo returns the path from the first entry of id back to id.
func (r *resolution) cycleTo(id string) []string {
	for i, p := range r.path {
		if p == id {
			cycle := append([]string(nil), r.path[i:]...)
			return append(cycle, id)
		}
	}
	return []string{id, id}
}

// Missing walks everything reachable from ids, through dependencies and
// children, and returns every reference to an unknown component. Unlike
// Resolve it does not stop at the first problem and ignores cycles.
func Missing(g *component.Graph, ids []string) []*MissingError {
	var missing []*MissingError
	seen := make(map[string]bool)
	reported := make(map[string]bool)

	var walk func(id, requiredBy string)
	walk = func(id, requiredBy string) {
		c, ok := g.Get(id)
		if !ok {
			key := requiredBy + "\x00" + id
			if !reported[key] {
				reported[key] = true
				missing = append(missing, &MissingError{ID: id, RequiredBy: requiredBy})
			}
			return
		}
		if seen[id] {
			return
		}
		seen[id] = true
		for _, dep := range c.Dependencies {
			walk(dep, id)
		}
		for _, child := range c.Children {
			walk(child, id)
		}
	}

	for _, id := range ids {
		walk(id, "")
	}
	return missing
}
