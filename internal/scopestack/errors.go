package scopestack

import "fmt"

// DuplicateScopeError reports a scope token declared more than once, or
// re-entered via Enter/EnterLocal while already active on the same stack.
type DuplicateScopeError struct {
	Token any
}

func (e *DuplicateScopeError) Error() string {
	return fmt.Sprintf("scope %v already declared or active", e.Token)
}

// ScopeNotFoundError reports a reference to a scope token that was never
// declared, or (from GlobalStack.Frame) one that is not currently entered.
type ScopeNotFoundError struct {
	Token any
}

func (e *ScopeNotFoundError) Error() string {
	return fmt.Sprintf("scope %v not declared or not entered", e.Token)
}

// ScopeViolationError reports a broken scope-ancestry relationship
// (invariant I2): an attempt to enter a scope whose declared parent does
// not match the scope currently on top of the stack, an attempt to exit a
// global scope that is not the innermost one, or, raised by
// internal/solver at Solve time, a provider depending on a parameter whose
// declared scope is not an ancestor of (or equal to) the provider's own.
type ScopeViolationError struct {
	Token          any
	DeclaredParent any
	ActualParent   any
}

func (e *ScopeViolationError) Error() string {
	return fmt.Sprintf("scope %v violates scope ancestry: declared parent %v, current scope %v",
		e.Token, e.DeclaredParent, e.ActualParent)
}

// ScopeIncompatibilityError reports an async (suspending) provider
// declared against a scope that does not permit suspension -- a scope
// declared with the SyncOnly option, entered only so a caller can run a
// strictly synchronous plan without a goroutine ever blocking on it.
type ScopeIncompatibilityError struct {
	Token any
}

func (e *ScopeIncompatibilityError) Error() string {
	return fmt.Sprintf("scope %v does not permit suspension: async provider declared against it", e.Token)
}

// TeardownAggregateError joins every error raised while releasing a scope
// frame's resources in reverse acquisition order (invariant I4). Grounded
// on internal/lifetime/lifetime.go's Manager.disposeScope, which joins
// instance-disposal failures with fmt.Errorf rather than errors.Join; here
// we use errors.Join (as internal/lifetime/scope.go's ServiceScope.Dispose
// and scope.go's serviceProviderScope.Close both do) so callers can
// errors.Is/As into any one of the underlying failures.
type TeardownAggregateError struct {
	Token  any
	Errors []error
}

func (e *TeardownAggregateError) Error() string {
	return fmt.Sprintf("releasing scope %v: %d teardown error(s): %v", e.Token, len(e.Errors), joinedErr(e.Errors))
}

func (e *TeardownAggregateError) Unwrap() []error {
	return e.Errors
}
