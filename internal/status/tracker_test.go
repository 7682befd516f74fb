package status

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astra-setup/internal/component"
)

// fakeSystem is a mutable stand-in for the live machine.
type fakeSystem struct {
	present map[string]bool
	failing map[string]bool
	probes  atomic.Int64
}

func newFakeSystem(present ...string) *fakeSystem {
	s := &fakeSystem{present: make(map[string]bool), failing: make(map[string]bool)}
	for _, id := range present {
		s.present[id] = true
	}
	return s
}

func (s *fakeSystem) check(id string) component.Checker {
	return component.CheckFunc(func(context.Context) (bool, error) {
		s.probes.Add(1)
		if s.failing[id] {
			return false, errors.New("permission denied")
		}
		return s.present[id], nil
	})
}

func (s *fakeSystem) leaf(id string, deps ...string) component.Component {
	return component.Component{ID: id, Dependencies: deps, Check: s.check(id)}
}

func newTracker(t *testing.T, comps ...component.Component) *Tracker {
	t.Helper()
	g, err := component.NewGraph(comps...)
	require.NoError(t, err)
	return NewTracker(g)
}

func TestStatusOfLeaf(t *testing.T) {
	sys := newFakeSystem("wine")
	sys.failing["locked"] = true
	tr := newTracker(t, sys.leaf("wine"), sys.leaf("fonts"), sys.leaf("locked"))
	ctx := context.Background()

	s, err := tr.StatusOf(ctx, "wine")
	require.NoError(t, err)
	assert.Equal(t, Installed, s)

	s, err = tr.StatusOf(ctx, "fonts")
	require.NoError(t, err)
	assert.Equal(t, Missing, s)

	s, err = tr.StatusOf(ctx, "locked")
	require.NoError(t, err, "probe errors are reported as missing, not returned")
	assert.Equal(t, Missing, s)
}

func TestStatusOfUnknown(t *testing.T) {
	tr := newTracker(t)
	_, err := tr.StatusOf(context.Background(), "ghost")
	assert.True(t, errors.Is(err, component.ErrUnknownComponent))
}

func TestStatusOfLeafWithoutCheck(t *testing.T) {
	tr := newTracker(t, component.Component{ID: "bare"})
	s, err := tr.StatusOf(context.Background(), "bare")
	require.NoError(t, err)
	assert.Equal(t, Missing, s)
}

func TestStatusOfIsIdempotent(t *testing.T) {
	sys := newFakeSystem("a")
	tr := newTracker(t, sys.leaf("a"), sys.leaf("b"),
		component.Component{ID: "p", Children: []string{"a", "b"}})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "p"} {
		first, err := tr.StatusOf(ctx, id)
		require.NoError(t, err)
		second, err := tr.StatusOf(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, first, second, id)
	}
}

func TestParentDerivation(t *testing.T) {
	tests := []struct {
		name    string
		present []string
		want    Status
	}{
		{name: "all installed", present: []string{"a", "b", "c"}, want: Installed},
		{name: "none installed", present: nil, want: Missing},
		{name: "one installed", present: []string{"b"}, want: Partial},
		{name: "two installed", present: []string{"a", "c"}, want: Partial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := newFakeSystem(tt.present...)
			tr := newTracker(t, sys.leaf("a"), sys.leaf("b"), sys.leaf("c"),
				component.Component{ID: "p", Children: []string{"a", "b", "c"}, Check: sys.check("p")})

			s, err := tr.StatusOf(context.Background(), "p")
			require.NoError(t, err)
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestParentIgnoresOwnCheck(t *testing.T) {
	sys := newFakeSystem("p")
	tr := newTracker(t, sys.leaf("a"),
		component.Component{ID: "p", Children: []string{"a"}, Check: sys.check("p")})

	s, err := tr.StatusOf(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, Missing, s)
}

func TestNestedParent(t *testing.T) {
	sys := newFakeSystem("a", "b")
	tr := newTracker(t, sys.leaf("a"), sys.leaf("b"),
		component.Component{ID: "inner", Children: []string{"b"}},
		component.Component{ID: "outer", Children: []string{"a", "inner"}})

	s, err := tr.StatusOf(context.Background(), "outer")
	require.NoError(t, err)
	assert.Equal(t, Installed, s)
}

func TestPendingOverride(t *testing.T) {
	sys := newFakeSystem()
	tr := newTracker(t, sys.leaf("wine"), sys.leaf("prefix"),
		component.Component{ID: "env", Children: []string{"wine", "prefix"}})
	ctx := context.Background()

	tr.SetPending("wine")
	s, _ := tr.StatusOf(ctx, "wine")
	assert.Equal(t, Pending, s)

	env, _ := tr.StatusOf(ctx, "env")
	assert.Equal(t, Partial, env, "a pending child is neither installed nor missing")

	sys.present["wine"] = true
	s, _ = tr.StatusOf(ctx, "wine")
	assert.Equal(t, Pending, s, "pending wins over the live check")

	tr.ClearPending("wine")
	s, _ = tr.StatusOf(ctx, "wine")
	assert.Equal(t, Installed, s)
}

func TestProgressCountsLeavesOnly(t *testing.T) {
	sys := newFakeSystem("l0", "l1", "l2", "l3")
	var comps []component.Component
	for i := 0; i < 10; i++ {
		comps = append(comps, sys.leaf(fmt.Sprintf("l%d", i)))
	}
	comps = append(comps,
		component.Component{ID: "p1", Children: []string{"l0", "l1", "l2"}},
		component.Component{ID: "p2", Children: []string{"l3", "l4", "l5", "l6"}},
	)
	tr := newTracker(t, comps...)
	tr.SetPending("l9")

	p := tr.Progress(context.Background())
	assert.Equal(t, 10, p.Total)
	assert.Equal(t, 4, p.Installed)
	assert.Equal(t, 5, p.Missing)
	assert.Equal(t, 1, p.Pending)
	assert.InDelta(t, 40.0, p.ProgressPercent, 0.001)

	snap := tr.AllStatuses(context.Background())
	assert.Len(t, snap.Statuses, 12)
	assert.Equal(t, 10, snap.Total)
	assert.Equal(t, Installed, snap.Statuses["p1"])
	assert.Equal(t, Partial, snap.Statuses["p2"])
	assert.InDelta(t, 40.0, snap.ProgressPercent, 0.001)
}

func TestProgressEmptyGraph(t *testing.T) {
	p := newTracker(t).Progress(context.Background())
	assert.Zero(t, p.Total)
	assert.Zero(t, p.ProgressPercent)
}

func TestAllStatusesReprobesEveryCall(t *testing.T) {
	sys := newFakeSystem()
	tr := newTracker(t, sys.leaf("a"), sys.leaf("b"),
		component.Component{ID: "p", Children: []string{"a", "b"}})
	ctx := context.Background()

	first := tr.AllStatuses(ctx)
	assert.Equal(t, int64(2), sys.probes.Load(), "each leaf probed once per call")
	assert.Equal(t, Missing, first.Statuses["a"])

	sys.present["a"] = true
	second := tr.AllStatuses(ctx)
	assert.Equal(t, int64(4), sys.probes.Load())
	assert.Equal(t, Installed, second.Statuses["a"])
	assert.Equal(t, Partial, second.Statuses["p"])
}

func TestValidateDependencies(t *testing.T) {
	sys := newFakeSystem()
	tr := newTracker(t,
		sys.leaf("a"),
		sys.leaf("b", "a"),
		sys.leaf("broken", "ghost"),
		sys.leaf("x", "y"),
		sys.leaf("y", "x"),
	)

	v := tr.ValidateDependencies([]string{"b"})
	assert.True(t, v.Valid)
	assert.Empty(t, v.MissingDependencies)
	assert.Empty(t, v.CircularDependencies)

	v = tr.ValidateDependencies([]string{"b", "broken"})
	assert.False(t, v.Valid)
	assert.Equal(t, []string{"ghost"}, v.MissingDependencies)

	v = tr.ValidateDependencies([]string{"x"})
	assert.False(t, v.Valid)
	assert.Equal(t, []string{"x", "y", "x"}, v.CircularDependencies)
	assert.Empty(t, v.MissingDependencies)
}

func TestViews(t *testing.T) {
	tr := newTracker(t,
		component.Component{ID: "repo", Category: component.CategorySystem, Priority: 1},
		component.Component{ID: "wine", Category: component.CategoryPackage, Priority: 10},
		component.Component{ID: "prefix", Category: component.CategoryPrefix, Priority: 20},
		component.Component{ID: "env", Category: component.CategoryWine, Priority: 15, Children: []string{"wine", "prefix"}},
		component.Component{ID: "fonts", Category: component.CategoryPackage, Priority: 5},
	)

	assert.Equal(t, []string{"repo", "fonts", "env"}, tr.Selectable())

	groups := tr.ByCategory()
	assert.Equal(t, []string{"fonts", "wine"}, groups[component.CategoryPackage])
	assert.Equal(t, []string{"repo"}, groups[component.CategorySystem])
	assert.Equal(t, []string{"env"}, groups[component.CategoryWine])
}
