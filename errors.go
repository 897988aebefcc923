package di

import (
	"errors"

	"github.com/junioryono/di/internal/plan"
	"github.com/junioryono/di/internal/scopestack"
	"github.com/junioryono/di/internal/solver"
)

// Re-exported error types. Each is produced deep inside internal/solver,
// internal/scopestack, or internal/plan; re-exporting lets callers
// errors.As into the concrete type without importing an internal package.

// CircularDependencyError reports a cycle in the declared provider graph.
type CircularDependencyError = solver.CircularDependencyError

// ScopeConflictError reports the same provider reached through two
// different declared scopes.
type ScopeConflictError = solver.ScopeConflictError

// InvalidProviderError reports a Dep the solver or engine cannot use: a nil
// callable, an unfinalized late-binding descriptor, or a callable whose
// signature does not match its declared Kind.
type InvalidProviderError = solver.InvalidProviderError

// DuplicateScopeError reports a scope token declared more than once, or
// re-entered (via EnterGlobalScope/EnterLocalScope) while already active
// somewhere on the same stack.
type DuplicateScopeError = scopestack.DuplicateScopeError

// ScopeNotFoundError reports a reference to an undeclared scope token, or
// to a declared one that is not currently entered.
type ScopeNotFoundError = scopestack.ScopeNotFoundError

// ScopeViolationError reports either entering a scope whose declared
// parent does not match the scope currently active, or (at Solve time) a
// provider depending on a parameter scoped to a descendant of its own
// scope (invariant I2).
type ScopeViolationError = scopestack.ScopeViolationError

// ScopeIncompatibilityError reports an async provider declared against a
// scope that does not permit suspension (a scope declared with SyncOnly).
type ScopeIncompatibilityError = scopestack.ScopeIncompatibilityError

// TeardownAggregateError joins every error raised while releasing a scope
// frame's tracked resources (invariant I4).
type TeardownAggregateError = scopestack.TeardownAggregateError

// ExecutorKindMismatch reports a plan containing an async provider run
// through ExecuteSync.
type ExecutorKindMismatch = plan.ExecutorKindMismatch

// ErrContainerDisposed is returned by any Container method called after
// Dispose.
var ErrContainerDisposed = errors.New("di: container has been disposed")

// IsCircularDependency reports whether err is or wraps a
// CircularDependencyError.
func IsCircularDependency(err error) bool {
	var e *CircularDependencyError
	return errors.As(err, &e)
}

// IsScopeConflict reports whether err is or wraps a ScopeConflictError.
func IsScopeConflict(err error) bool {
	var e *ScopeConflictError
	return errors.As(err, &e)
}

// IsScopeViolation reports whether err is or wraps a ScopeViolationError.
func IsScopeViolation(err error) bool {
	var e *ScopeViolationError
	return errors.As(err, &e)
}

// IsScopeNotFound reports whether err is or wraps a ScopeNotFoundError.
func IsScopeNotFound(err error) bool {
	var e *ScopeNotFoundError
	return errors.As(err, &e)
}

// IsScopeIncompatible reports whether err is or wraps a
// ScopeIncompatibilityError.
func IsScopeIncompatible(err error) bool {
	var e *ScopeIncompatibilityError
	return errors.As(err, &e)
}

// IsInvalidProvider reports whether err is or wraps an
// InvalidProviderError.
func IsInvalidProvider(err error) bool {
	var e *InvalidProviderError
	return errors.As(err, &e)
}

// IsTeardownAggregate reports whether err is or wraps a
// TeardownAggregateError.
func IsTeardownAggregate(err error) bool {
	var e *TeardownAggregateError
	return errors.As(err, &e)
}

// IsDisposed reports whether err is ErrContainerDisposed.
func IsDisposed(err error) bool {
	return errors.Is(err, ErrContainerDisposed)
}
