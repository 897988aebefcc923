package plan

import (
	"context"
	"fmt"
	"sync"

	"github.com/junioryono/di/internal/solver"
)

// ExecutorKindMismatch reports that a plan contains a provider whose Kind
// the chosen executor cannot run: ExecuteSync refuses AsyncValue/
// AsyncResource tasks rather than silently blocking the caller's goroutine
// on what was declared as an async provider.
type ExecutorKindMismatch struct {
	Dep  solver.Dep
	Kind solver.Kind
}

func (e *ExecutorKindMismatch) Error() string {
	return fmt.Sprintf("provider declared as an async kind (%v) cannot be run by the synchronous executor", e.Kind)
}

// Executor runs a SolvedPlan to completion for one call. Grounded on
// original_source/di/container.py's execute_sync/execute_async, which
// share the same gather/compute/dispatch loop and differ only in how a
// single task's generator is driven.
type Executor interface {
	ExecuteSync(ctx context.Context, p *solver.SolvedPlan, overrides map[*solver.Task]any, frames FrameResolver) (any, error)
	ExecuteAsync(ctx context.Context, p *solver.SolvedPlan, overrides map[*solver.Task]any, frames FrameResolver) (any, error)
}

// DefaultExecutor drives a plan's ready-queue to completion: ExecuteSync
// runs tasks one at a time in topological order (no provider may declare
// itself async); ExecuteAsync dispatches every newly ready task onto its
// own goroutine and waits for all of them, so independent branches of the
// graph run concurrently while a task's prerequisites still gate it.
type DefaultExecutor struct{}

// ExecuteSync implements Executor.
func (DefaultExecutor) ExecuteSync(ctx context.Context, p *solver.SolvedPlan, overrides map[*solver.Task]any, frames FrameResolver) (any, error) {
	for _, t := range p.Order {
		if t.Kind.IsAsync() {
			return nil, &ExecutorKindMismatch{Dep: t.Dep, Kind: t.Kind}
		}
	}

	state := NewExecutionState(p, overrides)
	for !state.Done() {
		ready := state.Ready()
		if len(ready) == 0 {
			return nil, fmt.Errorf("execution stalled: no ready tasks but plan is incomplete")
		}
		for _, t := range ready {
			v, err := computeTask(ctx, t, state.Results(), frames)
			if err != nil {
				return nil, err
			}
			state.Complete(t, v)
		}
	}
	return state.Value(), nil
}

// ExecuteAsync implements Executor.
func (DefaultExecutor) ExecuteAsync(ctx context.Context, p *solver.SolvedPlan, overrides map[*solver.Task]any, frames FrameResolver) (any, error) {
	state := NewExecutionState(p, overrides)

	type outcome struct {
		task  *solver.Task
		value any
		err   error
	}

	var mu sync.Mutex
	for !state.Done() {
		ready := state.Ready()
		if len(ready) == 0 {
			return nil, fmt.Errorf("execution stalled: no ready tasks but plan is incomplete")
		}

		results := make(chan outcome, len(ready))
		for _, t := range ready {
			t := t
			go func() {
				mu.Lock()
				snapshot := make(map[*solver.Task]any, len(state.Results()))
				for k, v := range state.Results() {
					snapshot[k] = v
				}
				mu.Unlock()

				v, err := computeTask(ctx, t, snapshot, frames)
				results <- outcome{task: t, value: v, err: err}
			}()
		}

		var firstErr error
		for range ready {
			o := <-results
			if o.err != nil && firstErr == nil {
				firstErr = o.err
				continue
			}
			if o.err == nil {
				mu.Lock()
				state.Complete(o.task, o.value)
				mu.Unlock()
			}
		}
		if firstErr != nil {
			return nil, firstErr
		}
	}
	return state.Value(), nil
}
