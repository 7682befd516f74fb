package component

import (
	"fmt"
	"sort"
)

// Graph is an immutable, id-keyed set of components.
// References to unknown ids are kept as declared so that validation can
// report them; only duplicate ids are rejected at construction.
type Graph struct {
	byID     map[string]*Component
	order    []string // declaration order
	parentOf map[string][]string
}

// NewGraph builds a graph from components in declaration order.
func NewGraph(components ...Component) (*Graph, error) {
	g := &Graph{
		byID:     make(map[string]*Component, len(components)),
		order:    make([]string, 0, len(components)),
		parentOf: make(map[string][]string),
	}
	for i := range components {
		c := components[i]
		if c.ID == "" {
			return nil, fmt.Errorf("component at index %d has an empty id", i)
		}
		if _, ok := g.byID[c.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateComponent, c.ID)
		}
		c.Dependencies = append([]string(nil), c.Dependencies...)
		c.Children = append([]string(nil), c.Children...)
		g.byID[c.ID] = &c
		g.order = append(g.order, c.ID)
	}
	for _, id := range g.order {
		for _, child := range g.byID[id].Children {
			g.parentOf[child] = append(g.parentOf[child], id)
		}
	}
	return g, nil
}

// Get returns the component with the given id.
// The returned value must be treated as read-only.
func (g *Graph) Get(id string) (*Component, bool) {
	c, ok := g.byID[id]
	return c, ok
}

// Lookup is like Get but returns ErrUnknownComponent for a missing id.
func (g *Graph) Lookup(id string) (*Component, error) {
	c, ok := g.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, id)
	}
	return c, nil
}

// Has reports whether id is part of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.byID[id]
	return ok
}

// Len returns the number of components.
func (g *Graph) Len() int { return len(g.order) }

// IDs returns every id ordered by priority, then declaration order.
func (g *Graph) IDs() []string {
	return g.SortByPriority(g.order)
}

// Leaves returns the ids of every non-parent component, by priority.
func (g *Graph) Leaves() []string {
	var out []string
	for _, id := range g.order {
		if !g.byID[id].IsParent() {
			out = append(out, id)
		}
	}
	return g.SortByPriority(out)
}

// Parents returns the ids of every parent component, by priority.
func (g *Graph) Parents() []string {
	var out []string
	for _, id := range g.order {
		if g.byID[id].IsParent() {
			out = append(out, id)
		}
	}
	return g.SortByPriority(out)
}

// ParentsOf returns the parents that list id as a child.
func (g *Graph) ParentsOf(id string) []string {
	return append([]string(nil), g.parentOf[id]...)
}

// SortByPriority returns a copy of ids ordered by ascending priority; ties
// keep their relative order. Unknown ids sort last.
func (g *Graph) SortByPriority(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.SliceStable(out, func(i, j int) bool {
		ci, iok := g.byID[out[i]]
		cj, jok := g.byID[out[j]]
		switch {
		case !iok || !jok:
			return iok && !jok
		default:
			return ci.Priority < cj.Priority
		}
	})
	return out
}
