package solver

import (
	"fmt"

	"github.com/junioryono/di/internal/scopestack"
)

// ScopeHierarchy resolves a declared scope token's parent, used to check
// invariant I2 (a task may depend on a parameter only if the parameter's
// scope is an ancestor of, or equal to, the task's own scope).
// *scopestack.Registry satisfies this.
type ScopeHierarchy interface {
	Parent(token ScopeToken) (ScopeToken, error)
}

// Task is the solve-time wrapper of one Dep: its classification plus
// pre-resolved parameter Tasks, so the execution engine never has to walk
// Dep.Dependencies() again at call time.
//
// Grounded on original_source/di/_utils/task.py's Task/AsyncTask/SyncTask
// (there built per-call; here built once, at solve time, and shared across
// calls -- spec.md's SolvedPlan is meant to be reusable).
type Task struct {
	Dep    Dep
	Kind   Kind
	Params []TaskParam

	// index is this task's position in the plan's topological order.
	index int
}

// TaskParam is a Param resolved to the Task that fills it.
type TaskParam struct {
	Name string
	Kind ParamKind
	Task *Task
}

// SolvedPlan is the immutable output of Solve: a root task, its topological
// order (prerequisites before dependants, invariant I1), and the adjacency
// maps an execution planner needs to seed per-call prerequisite counters.
type SolvedPlan struct {
	Root  *Task
	Order []*Task

	// Dependants maps a task to the tasks that declared it as a parameter.
	Dependants map[*Task][]*Task

	// Shared is the set of tasks whose Dep.Shared() is true.
	Shared map[*Task]bool
}

// CircularDependencyError reports a cycle discovered while walking the
// declared graph, with the path (in declaration order) that closes it.
type CircularDependencyError struct {
	Path []Dep
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected across %d providers", len(e.Path))
}

// ScopeConflictError reports that the same logical provider (by
// EquivalenceKey) was reached through two different scopes, which would
// make its cache location ambiguous.
type ScopeConflictError struct {
	Dep    Dep
	ScopeA ScopeToken
	ScopeB ScopeToken
}

func (e *ScopeConflictError) Error() string {
	return fmt.Sprintf("provider bound to scope %v elsewhere, but reached again under scope %v", e.ScopeA, e.ScopeB)
}

// InvalidProviderError reports a Dep whose declared shape the solver cannot
// use: a nil Callable, or (via WithParam) a late-binding descriptor that
// failed to finalize.
type InvalidProviderError struct {
	Dep    Dep
	Reason string
}

func (e *InvalidProviderError) Error() string {
	return fmt.Sprintf("invalid provider: %s", e.Reason)
}

// node is the solver's internal, deduplicated view of one Dep.
type node struct {
	key      any
	dep      Dep
	task     *Task
	children []*node // prerequisites, in declared param order
	state    visitState
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// Solve walks the graph rooted at root, deduplicating by EquivalenceKey,
// checking scope consistency (invariant I2, when hierarchy is non-nil) and
// cache-location consistency, detecting cycles, and emitting a SolvedPlan
// whose Order is topologically sorted with prerequisites before
// dependants.
//
// Grounded on original_source/di/container.py's Container.solve, which
// walks dep_registry/dep_dag/param_graph with check_equivalent raising on a
// scope mismatch for an equivalent Dep already seen. container.solve uses
// an explicit deque for BFS registration order; here the same walk is a
// recursive DFS instead (buildNode recurses into each parameter as it is
// declared) since nothing downstream depends on registration order --
// topoSort derives the plan's actual Order independently, so the traversal
// shape is an implementation detail, not an invariant.
//
// hierarchy may be nil, in which case I2 is not checked (e.g. tests
// exercising the graph/cycle/dedup logic in isolation from a real scope
// registry); Container.Solve always supplies its *scopestack.Registry.
func Solve(root Dep, hierarchy ScopeHierarchy) (*SolvedPlan, error) {
	nodes := map[any]*node{}

	n, err := buildNode(root, nodes, hierarchy)
	if err != nil {
		return nil, err
	}

	order, err := topoSort(n)
	if err != nil {
		return nil, err
	}

	dependants := map[*Task][]*Task{}
	shared := map[*Task]bool{}
	for _, t := range order {
		if t.Dep.Shared() {
			shared[t] = true
		}
		for _, p := range t.Params {
			dependants[p.Task] = append(dependants[p.Task], t)
		}
	}

	return &SolvedPlan{
		Root:       n.task,
		Order:      order,
		Dependants: dependants,
		Shared:     shared,
	}, nil
}

// buildNode dedupicates dep by EquivalenceKey, recursing into its declared
// parameters (finalizing ParamAware deps against the Param site that names
// them), checking that any previously-seen equivalent Dep agrees on scope,
// and checking each parameter's scope against invariant I2.
func buildNode(dep Dep, nodes map[any]*node, hierarchy ScopeHierarchy) (*node, error) {
	if dep == nil || dep.Callable() == nil {
		return nil, &InvalidProviderError{Dep: dep, Reason: "nil callable"}
	}

	key := dep.EquivalenceKey()
	if existing, ok := nodes[key]; ok {
		if existing.dep.Scope() != dep.Scope() {
			return nil, &ScopeConflictError{Dep: dep, ScopeA: existing.dep.Scope(), ScopeB: dep.Scope()}
		}
		return existing, nil
	}

	n := &node{key: key, dep: dep}
	nodes[key] = n

	params := dep.Dependencies()
	task := &Task{Dep: dep, Kind: dep.Kind(), Params: make([]TaskParam, 0, len(params))}
	n.task = task

	for _, p := range params {
		childDep := p.Dep
		if pa, ok := childDep.(ParamAware); ok {
			childDep = pa.WithParam(p)
		}
		if err := checkScopeAncestry(hierarchy, dep.Scope(), childDep.Scope()); err != nil {
			return nil, err
		}
		child, err := buildNode(childDep, nodes, hierarchy)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, child)
		task.Params = append(task.Params, TaskParam{Name: p.Name, Kind: p.Kind, Task: child.task})
	}

	return n, nil
}

// checkScopeAncestry enforces invariant I2: a task scoped to ownerScope may
// only depend on a parameter scoped to ownerScope itself or one of its
// declared ancestors. hierarchy nil disables the check. Walking begins at
// ownerScope rather than paramScope so that nil (the unscoped/root token,
// which is never itself a Declare'd token) is reached naturally as the top
// of the chain instead of requiring a special case.
func checkScopeAncestry(hierarchy ScopeHierarchy, ownerScope, paramScope ScopeToken) error {
	if hierarchy == nil || paramScope == ownerScope {
		return nil
	}
	for s := ownerScope; s != nil; {
		parent, err := hierarchy.Parent(s)
		if err != nil {
			return err
		}
		if parent == paramScope {
			return nil
		}
		s = parent
	}
	return &scopestack.ScopeViolationError{Token: paramScope, DeclaredParent: paramScope, ActualParent: ownerScope}
}

// topoSort runs Kahn's algorithm over the node graph reachable from root,
// ordering prerequisites before dependants (invariant I1).
//
// The teacher's internal/graph/graph.go computes in-degree as "number of
// edges into a node from the nodes that depend on it" and peels
// zero-in-degree nodes first, which orders roots (no dependants) before
// leaves (no prerequisites) -- the opposite of what a solve-then-execute
// engine needs, since a task cannot run before the prerequisites it reads
// results from. Here in-degree is the number of NOT-yet-emitted
// prerequisites a node has; a node becomes ready (in-degree 0) only once
// every child it depends on has already been emitted, and emitting it then
// decrements its parents' counters -- so leaves come out first and the
// root comes out last, as a reverse-topological build order expects
// (original_source/di/container.py's _build_tasks walks child-first for
// exactly this reason).
func topoSort(root *node) ([]*Task, error) {
	indegree := map[*node]int{}
	parents := map[*node][]*node{}

	var collect func(n *node) error
	visitedAll := map[*node]bool{}
	collect = func(n *node) error {
		if visitedAll[n] {
			return nil
		}
		visitedAll[n] = true
		if _, ok := indegree[n]; !ok {
			indegree[n] = len(n.children)
		}
		for _, c := range n.children {
			parents[c] = append(parents[c], n)
			if err := collect(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := detectCycles(root); err != nil {
		return nil, err
	}
	if err := collect(root); err != nil {
		return nil, err
	}

	queue := make([]*node, 0, len(indegree))
	for n, deg := range indegree {
		if deg == 0 {
			queue = append(queue, n)
		}
	}

	order := make([]*Task, 0, len(indegree))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n.task)

		for _, p := range parents[n] {
			indegree[p]--
			if indegree[p] == 0 {
				queue = append(queue, p)
			}
		}
	}

	if len(order) != len(indegree) {
		return nil, &CircularDependencyError{}
	}
	return order, nil
}

// detectCycles performs an iterative, stack-based DFS over the node graph,
// mirroring the shape of the teacher's internal/graph/graph.go
// detectCyclesFrom/findCyclePath (explicit visiting/visited coloring plus a
// path stack instead of a recursive call stack), adapted to our
// child-pointer node instead of its reflect.Type-keyed NodeKey.
func detectCycles(root *node) error {
	type frame struct {
		n   *node
		idx int
	}

	for n := range collectAll(root) {
		if n.state == visited {
			continue
		}

		path := []*node{}
		stack := []frame{{n: n}}
		n.state = visiting
		path = append(path, n)

		for len(stack) > 0 {
			top := &stack[len(stack)-1]

			if top.idx < len(top.n.children) {
				c := top.n.children[top.idx]
				top.idx++

				switch c.state {
				case visiting:
					cyclePath := append([]*node{}, path...)
					cyclePath = append(cyclePath, c)
					deps := make([]Dep, len(cyclePath))
					for i, cn := range cyclePath {
						deps[i] = cn.dep
					}
					return &CircularDependencyError{Path: deps}
				case unvisited:
					c.state = visiting
					path = append(path, c)
					stack = append(stack, frame{n: c})
				}
			} else {
				top.n.state = visited
				path = path[:len(path)-1]
				stack = stack[:len(stack)-1]
			}
		}
	}
	return nil
}

func collectAll(root *node) map[*node]bool {
	seen := map[*node]bool{}
	var walk func(n *node)
	walk = func(n *node) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(root)
	return seen
}
