package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/di/internal/scopestack"
)

// fakeDep is a minimal Dep used to exercise the solver in isolation from
// the root di package's reflection-based Descriptor.
type fakeDep struct {
	name   string
	scope  ScopeToken
	shared bool
	kind   Kind
	deps   []Param
}

func (f *fakeDep) Callable() any         { return func() {} }
func (f *fakeDep) Scope() ScopeToken     { return f.scope }
func (f *fakeDep) Shared() bool          { return f.shared }
func (f *fakeDep) Kind() Kind            { return f.kind }
func (f *fakeDep) Dependencies() []Param { return f.deps }
func (f *fakeDep) EquivalenceKey() any   { return f.name }

func leaf(name string, scope ScopeToken) *fakeDep {
	return &fakeDep{name: name, scope: scope, shared: true, kind: SyncValue}
}

// P1: topological order respects declared prerequisites (invariant I1).
func TestSolve_LinearChain_OrdersPrerequisitesFirst(t *testing.T) {
	a := leaf("a", "app")
	b := &fakeDep{name: "b", scope: "app", shared: true, deps: []Param{{Name: "a", Dep: a}}}
	c := &fakeDep{name: "c", scope: "app", shared: true, deps: []Param{{Name: "b", Dep: b}}}

	plan, err := Solve(c, nil)
	require.NoError(t, err)
	require.Len(t, plan.Order, 3)

	index := map[string]int{}
	for i, task := range plan.Order {
		index[task.Dep.EquivalenceKey().(string)] = i
	}
	assert.Less(t, index["a"], index["b"])
	assert.Less(t, index["b"], index["c"])
	assert.Equal(t, c, plan.Root.Dep)
}

// P2: a diamond-shaped graph dedupicates the shared ancestor into one task.
func TestSolve_Diamond_DedupesSharedAncestor(t *testing.T) {
	shared := leaf("shared", "app")
	left := &fakeDep{name: "left", scope: "app", shared: true, deps: []Param{{Name: "s", Dep: shared}}}
	right := &fakeDep{name: "right", scope: "app", shared: true, deps: []Param{{Name: "s", Dep: shared}}}
	top := &fakeDep{name: "top", scope: "app", shared: true, deps: []Param{
		{Name: "left", Dep: left},
		{Name: "right", Dep: right},
	}}

	plan, err := Solve(top, nil)
	require.NoError(t, err)
	assert.Len(t, plan.Order, 4, "shared ancestor must appear once, not twice")

	seen := map[string]int{}
	for _, task := range plan.Order {
		seen[task.Dep.EquivalenceKey().(string)]++
	}
	assert.Equal(t, 1, seen["shared"])

	sharedIdx, leftIdx, rightIdx, topIdx := -1, -1, -1, -1
	for i, task := range plan.Order {
		switch task.Dep.EquivalenceKey().(string) {
		case "shared":
			sharedIdx = i
		case "left":
			leftIdx = i
		case "right":
			rightIdx = i
		case "top":
			topIdx = i
		}
	}
	assert.Less(t, sharedIdx, leftIdx)
	assert.Less(t, sharedIdx, rightIdx)
	assert.Less(t, leftIdx, topIdx)
	assert.Less(t, rightIdx, topIdx)
}

func TestSolve_DirectCycle_ReturnsCircularDependencyError(t *testing.T) {
	a := &fakeDep{name: "a", scope: "app", shared: true}
	b := &fakeDep{name: "b", scope: "app", shared: true}
	a.deps = []Param{{Name: "b", Dep: b}}
	b.deps = []Param{{Name: "a", Dep: a}}

	_, err := Solve(a, nil)
	require.Error(t, err)
	var cycleErr *CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
}

func TestSolve_SelfCycle_ReturnsCircularDependencyError(t *testing.T) {
	a := &fakeDep{name: "a", scope: "app", shared: true}
	a.deps = []Param{{Name: "self", Dep: a}}

	_, err := Solve(a, nil)
	require.Error(t, err)
	var cycleErr *CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
}

// The same EquivalenceKey reached under two different scopes is ambiguous:
// which scope's frame should cache it?
func TestSolve_EquivalentDepDifferentScopes_ReturnsScopeConflictError(t *testing.T) {
	appScoped := &fakeDep{name: "shared-key", scope: "app", shared: true}
	requestScoped := &fakeDep{name: "shared-key", scope: "request", shared: true}
	top := &fakeDep{name: "top", scope: "app", shared: true, deps: []Param{
		{Name: "a", Dep: appScoped},
		{Name: "b", Dep: requestScoped},
	}}

	_, err := Solve(top, nil)
	require.Error(t, err)
	var scopeErr *ScopeConflictError
	require.ErrorAs(t, err, &scopeErr)
}

func TestSolve_NilCallable_ReturnsInvalidProviderError(t *testing.T) {
	bad := &nilCallableDep{fakeDep: &fakeDep{name: "bad", scope: "app", shared: true}}
	_, err := Solve(bad, nil)
	require.Error(t, err)
	var invalidErr *InvalidProviderError
	require.ErrorAs(t, err, &invalidErr)
}

type nilCallableDep struct {
	*fakeDep
}

func (n *nilCallableDep) Callable() any { return nil }

// paramAwareDep exercises the ParamAware finalization path used by
// late-binding descriptors (grounded on
// original_source/docs/src/headers_example.py's HeaderDependant). Its
// EquivalenceKey incorporates the bound parameter name, since two distinct
// bindings of the same template (one per use site) must not be deduped
// into a single cached task.
type paramAwareDep struct {
	fakeDep
	bound string
}

func (p *paramAwareDep) WithParam(param Param) Dep {
	clone := *p
	clone.bound = param.Name
	return &clone
}

func (p *paramAwareDep) EquivalenceKey() any {
	return p.name + ":" + p.bound
}

func TestSolve_ParamAwareDep_FinalizesPerUseSiteWithoutMutatingOriginal(t *testing.T) {
	template := &paramAwareDep{fakeDep: fakeDep{name: "late", scope: "app", shared: false, kind: SyncValue}}
	a := &fakeDep{name: "a", scope: "app", shared: true, deps: []Param{{Name: "x-user", Dep: template}}}
	b := &fakeDep{name: "b", scope: "app", shared: true, deps: []Param{{Name: "x-trace", Dep: template}}}
	top := &fakeDep{name: "top", scope: "app", shared: true, deps: []Param{
		{Name: "a", Dep: a},
		{Name: "b", Dep: b},
	}}

	_, err := Solve(top, nil)
	require.NoError(t, err)
	assert.Equal(t, "", template.bound, "the template descriptor itself must never be mutated")
}

// fakeHierarchy is a minimal ScopeHierarchy backed by a plain parent map,
// standing in for *scopestack.Registry so the solver's I2 check can be
// exercised without a real container.
type fakeHierarchy map[any]any

func (h fakeHierarchy) Parent(token ScopeToken) (ScopeToken, error) {
	parent, ok := h[token]
	if !ok {
		return nil, &scopestack.ScopeNotFoundError{Token: token}
	}
	return parent, nil
}

// P3: invariant I2 -- a provider may not depend on a provider scoped to a
// descendant scope. "app" is the parent of "request"; an app-scoped
// provider depending on a request-scoped one is a downward reference.
func TestSolve_DownwardScopeReference_ReturnsScopeViolationError(t *testing.T) {
	hierarchy := fakeHierarchy{"app": nil, "request": "app"}

	requestScoped := &fakeDep{name: "req", scope: "request", shared: true}
	appScoped := &fakeDep{name: "app-top", scope: "app", shared: true, deps: []Param{
		{Name: "req", Dep: requestScoped},
	}}

	_, err := Solve(appScoped, hierarchy)
	require.Error(t, err)
	var violation *scopestack.ScopeViolationError
	require.ErrorAs(t, err, &violation)
}

// A child scope depending on its own ancestor (the normal direction) must
// still solve cleanly under the same hierarchy.
func TestSolve_UpwardScopeReference_Succeeds(t *testing.T) {
	hierarchy := fakeHierarchy{"app": nil, "request": "app"}

	appScoped := leaf("app-dep", "app")
	requestScoped := &fakeDep{name: "req-top", scope: "request", shared: true, deps: []Param{
		{Name: "a", Dep: appScoped},
	}}

	_, err := Solve(requestScoped, hierarchy)
	require.NoError(t, err)
}
