// Package di is a dependency-injection runtime core: declare providers as
// plain Go functions, bind them into a graph, solve the graph once into an
// immutable execution plan, and run that plan as many times as you like.
//
// # Overview
//
// di separates declaring what depends on what from actually running
// anything:
//
//   - A Dep describes one provider: its callable, its scope, whether its
//     result is shared, and its declared parameters.
//   - Container.Solve walks a root Dep's parameter tree into a SolvedPlan:
//     deduplicated, checked for scope consistency, and topologically
//     ordered with prerequisites before dependants.
//   - Container.ExecuteSync / ExecuteAsync run a SolvedPlan, caching shared
//     results in their declared scope and tracking resource teardowns for
//     release when that scope's frame unwinds.
//
// # Basic Usage
//
//	c := di.NewContainer()
//
//	openDB := di.New(func() (*sql.DB, di.Teardown, error) {
//	    db, err := sql.Open("postgres", dsn)
//	    return db, func(context.Context) error { return db.Close() }, err
//	}, di.AsResource(), di.WithScope("app"))
//
//	newUserService := di.New(func(db *sql.DB) (*UserService, error) {
//	    return &UserService{db: db}, nil
//	}, di.DependsOn("db", openDB), di.WithScope("app"))
//
//	if err := c.DeclareScope("app", nil); err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.EnterGlobalScope("app"); err != nil {
//	    log.Fatal(err)
//	}
//
//	plan, err := c.Solve(newUserService)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	v, err := c.ExecuteSync(context.Background(), plan)
//	userService := v.(*UserService)
//
// # Scopes
//
// A scope is any comparable token, declared once with DeclareScope and
// entered either globally (EnterGlobalScope, visible to every goroutine
// sharing the Container) or locally (EnterLocalScope, which returns a new
// context.Context carrying its own scope frame and never mutates the one
// it was derived from). A shared provider's result is cached in its
// declared scope's frame; a resource provider's teardown runs when that
// frame is released, in reverse acquisition order, at most once.
//
// # Async providers
//
// A provider declared with Async() takes a leading context.Context
// parameter and may only be run through ExecuteAsync, which dispatches
// every task whose prerequisites are satisfied onto its own goroutine.
// Running a plan containing an async provider through ExecuteSync fails
// with ExecutorKindMismatch. DeclareScope's SyncOnly option marks a scope
// as never permitting suspension at all: an async provider declared
// against it fails with ScopeIncompatibilityError even under ExecuteAsync.
//
// # Late binding
//
// Unwired returns a placeholder Dep with no callable of its own.
// Container.Bind rebinds a target (matched by its callable's pointer
// identity, or the Dep's own identity for a callable-less placeholder
// like Unwired) to a concrete replacement before Solve runs, which is how
// a provider declared once against, say, "the header named after this
// parameter" gets a different concrete binding at each call site without
// the template itself ever being mutated. Bind returns a release closure;
// if a global scope is active when Bind is called, the bind is also
// dropped automatically when that scope's frame is released.
//
// # Error Handling
//
// di returns typed errors for each failure mode named in its invariants:
//   - CircularDependencyError: the declared graph has a cycle
//   - ScopeConflictError: the same provider was reached through two scopes
//   - InvalidProviderError: a Dep's callable doesn't match its declared Kind
//   - DuplicateScopeError: a scope token declared, or entered, twice
//   - ScopeNotFoundError: a reference to a scope token that is undeclared
//     or not currently entered
//   - ScopeViolationError: scope nesting or ancestry broken -- entering a
//     scope out of declared-parent order, or (invariant I2) a provider
//     depending on a parameter scoped to one of its own descendants
//   - ScopeIncompatibilityError: an async provider declared against a
//     SyncOnly scope
//   - TeardownAggregateError: one or more resource teardowns failed when a
//     scope frame was released
//
// Each except DuplicateScopeError has an Is* helper (IsCircularDependency,
// IsScopeConflict, ...) for errors.As-style checks without importing di's
// internal packages; DuplicateScopeError is checked with errors.As
// directly.
package di
