// Package plan turns a solver.SolvedPlan into one call's execution: seeding
// an ExecutionState from prerequisite counts, invoking each provider's
// callable once its parameters are ready, caching shared results in their
// declared scope frame, and tracking resource teardowns for release when
// that frame unwinds.
//
// Grounded on original_source/di/_utils/task.py's ExecutionState/Task
// (decrement-and-enqueue-ready scheduling) and scope.go's
// wrapConstructorForTracking/Resolve (reflect-based callable invocation
// and disposable capture), adapted from godi's reflect.Type+dig resolution
// to our explicit solver.Param-driven argument gathering.
package plan

import (
	"context"
	"fmt"
	"reflect"

	"github.com/junioryono/di/internal/scopestack"
	"github.com/junioryono/di/internal/solver"
)

var (
	errType    = reflect.TypeOf((*error)(nil)).Elem()
	ctxType    = reflect.TypeOf((*context.Context)(nil)).Elem()
	teardownGo = reflect.TypeOf(solver.Teardown(nil))
)

// FrameResolver returns the scope frame currently entered for token, or an
// error if that scope is not active for this call (e.g. scopestack's
// ScopeNotFoundError/ScopeViolationError).
type FrameResolver func(token solver.ScopeToken) (*scopestack.Frame, error)

// computeTask invokes task's callable with already-resolved parameter
// values, consulting and populating the scope cache when the provider is
// shared. frames resolves a Dep's declared scope to its live frame for
// this call.
func computeTask(ctx context.Context, task *solver.Task, results map[*solver.Task]any, frames FrameResolver) (any, error) {
	frame, err := frames(task.Dep.Scope())
	if err != nil {
		return nil, err
	}
	if task.Kind.IsAsync() && !frame.AllowsSuspension {
		return nil, &scopestack.ScopeIncompatibilityError{Token: frame.Token}
	}

	compute := func() (any, error) {
		value, teardown, err := invoke(ctx, task, results)
		if err != nil {
			return nil, err
		}
		if teardown != nil {
			frame.Track(scopestack.Teardown(teardown))
		}
		return value, nil
	}

	if !task.Dep.Shared() {
		return compute()
	}
	return frame.ComputeShared(task.Dep.EquivalenceKey(), compute)
}

// invoke calls task.Dep.Callable() via reflection, assembling its arguments
// from task.Params (in declared order) and results, per the calling
// conventions for each Kind:
//
//	SyncValue:      func(args...) (T, error)        or func(args...) T
//	AsyncValue:     func(ctx, args...) (T, error)
//	SyncResource:   func(args...) (T, Teardown, error)
//	AsyncResource:  func(ctx, args...) (T, Teardown, error)
//
// Keyword params are gathered by name into the callable's trailing struct
// argument instead of positionally -- the primitive this engine needs
// (spec.md explicitly leaves elaborate struct-tag sugar like godi's In/Out
// out of scope; this is the minimal mechanism that still lets a provider
// declare named parameters).
func invoke(ctx context.Context, task *solver.Task, results map[*solver.Task]any) (any, solver.Teardown, error) {
	fn := reflect.ValueOf(task.Dep.Callable())
	if fn.Kind() != reflect.Func {
		return nil, nil, &solver.InvalidProviderError{Dep: task.Dep, Reason: "callable is not a func"}
	}
	fnType := fn.Type()

	args, err := gatherArgs(ctx, task, fnType, results)
	if err != nil {
		return nil, nil, err
	}

	out := fn.Call(args)
	return splitResults(task, out)
}

func gatherArgs(ctx context.Context, task *solver.Task, fnType reflect.Type, results map[*solver.Task]any) ([]reflect.Value, error) {
	var positional []solver.TaskParam
	var keyword []solver.TaskParam
	for _, p := range task.Params {
		if p.Kind == solver.Keyword {
			keyword = append(keyword, p)
		} else {
			positional = append(positional, p)
		}
	}

	args := make([]reflect.Value, 0, fnType.NumIn())
	argIdx := 0

	if task.Kind.IsAsync() {
		if fnType.NumIn() == 0 || !fnType.In(0).Implements(ctxType) && fnType.In(0) != ctxType {
			return nil, &solver.InvalidProviderError{Dep: task.Dep, Reason: "async provider must take a leading context.Context parameter"}
		}
		args = append(args, reflect.ValueOf(ctx))
		argIdx = 1
	}

	for _, p := range positional {
		if argIdx >= fnType.NumIn() {
			return nil, &solver.InvalidProviderError{Dep: task.Dep, Reason: fmt.Sprintf("callable has too few parameters for declared dependency %q", p.Name)}
		}
		v, ok := results[p.Task]
		if !ok {
			return nil, &solver.InvalidProviderError{Dep: task.Dep, Reason: fmt.Sprintf("dependency %q was not resolved before its dependant", p.Name)}
		}
		args = append(args, coerce(v, fnType.In(argIdx)))
		argIdx++
	}

	if len(keyword) > 0 {
		if argIdx >= fnType.NumIn() {
			return nil, &solver.InvalidProviderError{Dep: task.Dep, Reason: "callable has no trailing struct parameter for keyword dependencies"}
		}
		bagType := fnType.In(argIdx)
		if bagType.Kind() != reflect.Struct {
			return nil, &solver.InvalidProviderError{Dep: task.Dep, Reason: "trailing keyword parameter must be a struct"}
		}
		bag := reflect.New(bagType).Elem()
		for _, p := range keyword {
			field := bag.FieldByName(p.Name)
			if !field.IsValid() {
				return nil, &solver.InvalidProviderError{Dep: task.Dep, Reason: fmt.Sprintf("keyword dependency %q has no matching struct field", p.Name)}
			}
			v, ok := results[p.Task]
			if !ok {
				return nil, &solver.InvalidProviderError{Dep: task.Dep, Reason: fmt.Sprintf("dependency %q was not resolved before its dependant", p.Name)}
			}
			field.Set(coerce(v, field.Type()))
		}
		args = append(args, bag)
		argIdx++
	}

	return args, nil
}

func coerce(v any, target reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(target)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(target) {
		return rv
	}
	if rv.Type().ConvertibleTo(target) {
		return rv.Convert(target)
	}
	return rv
}

func splitResults(task *solver.Task, out []reflect.Value) (any, solver.Teardown, error) {
	var value any
	var teardown solver.Teardown
	var callErr error

	i := 0
	if len(out) > i {
		value = out[i].Interface()
		i++
	}
	if task.Kind.IsResource() && len(out) > i {
		if td, ok := out[i].Interface().(func(context.Context) error); ok {
			teardown = td
		} else if !out[i].IsNil() {
			td, _ := out[i].Interface().(solver.Teardown)
			teardown = td
		}
		i++
	}
	if len(out) > i {
		if e, ok := out[i].Interface().(error); ok {
			callErr = e
		}
	}
	if callErr != nil {
		return nil, nil, callErr
	}
	return value, teardown, nil
}
