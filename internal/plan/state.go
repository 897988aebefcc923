package plan

import "github.com/junioryono/di/internal/solver"

// ExecutionState is the per-call bookkeeping seeded from a SolvedPlan:
// results gathered so far, how many prerequisites each task still has
// outstanding, and which tasks are immediately ready to run.
//
// Grounded on original_source/di/_utils/task.py's ExecutionState
// (results/dependency_counts/dependants), rebuilt fresh for every call so
// that the same SolvedPlan can back many concurrent executions (invariant
// I5: each task invoked at most once per call).
type ExecutionState struct {
	plan      *solver.SolvedPlan
	remaining map[*solver.Task]int
	results   map[*solver.Task]any
	done      map[*solver.Task]bool
}

// NewExecutionState seeds remaining-prerequisite counters from plan, and
// pre-populates results with any caller-supplied overrides (the
// SUPPLEMENTED-FEATURES values-override ExecOption) so those tasks are
// treated as already computed. An overridden task's dependants have their
// remaining counters decremented exactly as Complete would, since they
// never go through Complete themselves -- without this, a task whose only
// prerequisite was overridden would never reach remaining==0 and Ready
// would never return it. Tasks reachable from the root only through
// overridden tasks are marked done without being computed, so an
// override also skips the prerequisites that only it needed.
func NewExecutionState(p *solver.SolvedPlan, overrides map[*solver.Task]any) *ExecutionState {
	s := &ExecutionState{
		plan:      p,
		remaining: make(map[*solver.Task]int, len(p.Order)),
		results:   make(map[*solver.Task]any, len(p.Order)),
		done:      make(map[*solver.Task]bool, len(p.Order)),
	}
	for _, t := range p.Order {
		s.remaining[t] = len(t.Params)
	}
	for t, v := range overrides {
		s.results[t] = v
		s.done[t] = true
		for _, dependant := range p.Dependants[t] {
			s.remaining[dependant]--
		}
	}
	live := make(map[*solver.Task]bool, len(p.Order))
	var mark func(t *solver.Task)
	mark = func(t *solver.Task) {
		if !live[t] && !s.done[t] {
			live[t] = true
			for _, param := range t.Params {
				mark(param.Task)
			}
		}
	}
	mark(p.Root)
	for _, t := range p.Order {
		if !live[t] {
			s.done[t] = true
		}
	}
	return s
}

// Ready returns the tasks with no outstanding prerequisites that have not
// yet been computed, in plan order (stable scheduling).
func (s *ExecutionState) Ready() []*solver.Task {
	var ready []*solver.Task
	for _, t := range s.plan.Order {
		if !s.done[t] && s.remaining[t] == 0 {
			ready = append(ready, t)
		}
	}
	return ready
}

// Complete records task's result and decrements every dependant's
// remaining-prerequisite counter, returning the dependants that became
// newly ready.
func (s *ExecutionState) Complete(task *solver.Task, value any) []*solver.Task {
	s.results[task] = value
	s.done[task] = true

	var newlyReady []*solver.Task
	for _, dependant := range s.plan.Dependants[task] {
		s.remaining[dependant]--
		if s.remaining[dependant] == 0 && !s.done[dependant] {
			newlyReady = append(newlyReady, dependant)
		}
	}
	return newlyReady
}

// Results exposes the results map for the engine to read parameter values
// from.
func (s *ExecutionState) Results() map[*solver.Task]any {
	return s.results
}

// Value returns the root task's computed result. It must only be called
// once the root is Done.
func (s *ExecutionState) Value() any {
	return s.results[s.plan.Root]
}

// Done reports whether every task in the plan has been computed, overridden
// or skipped.
func (s *ExecutionState) Done() bool {
	return len(s.done) == len(s.plan.Order)
}
