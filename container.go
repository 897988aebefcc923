package di

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/junioryono/di/internal/plan"
	"github.com/junioryono/di/internal/scopestack"
	"github.com/junioryono/di/internal/solver"
)

// containerScope is the scope of the Dep returned by Container.Self, which
// resolves from the Container's private frame. The token is not part of
// the declared scope hierarchy, so Solve's ancestry check (invariant I2)
// accepts a Self Dep only as the root of a plan or as a parameter of a
// provider that is itself scoped to "container".
const containerScope = "container"

// Container is the facade over the solver, scope stack, and executor: bind
// providers, solve a root Dep into a reusable plan, and run that plan as
// many times as needed.
//
// Grounded on internal/container/container.go's Container (mutex-guarded
// options/build/dispose lifecycle, CAS-guarded disposed flag, functional
// Options) -- adapted from a reflect.Type-registry-backed facade to one
// backed by our Dep graph, solver, and scope stack.
type Container struct {
	mu       sync.RWMutex
	registry *scopestack.Registry
	global   *scopestack.GlobalStack
	binder   *Binder
	executor plan.Executor

	disposed  int32
	selfFrame *scopestack.Frame

	onResolved func(Dep)
	onError    func(Dep, error)
}

// ContainerOption configures a Container built by NewContainer.
type ContainerOption interface {
	applyContainer(*Container)
}

type containerOptionFunc func(*Container)

func (f containerOptionFunc) applyContainer(c *Container) { f(c) }

// WithBinder installs a Binder so New-declared Unwired placeholders (or any
// Dep) can be rebound before solving.
func WithBinder(b *Binder) ContainerOption {
	return containerOptionFunc(func(c *Container) { c.binder = b })
}

// WithExecutor overrides the default Executor (DefaultExecutor), chiefly
// for tests that need to observe or constrain scheduling.
func WithExecutor(e plan.Executor) ContainerOption {
	return containerOptionFunc(func(c *Container) { c.executor = e })
}

// OnResolved registers a callback invoked after every successful Solve +
// Execute of dep's plan. Grounded on
// internal/container/container.go's ContainerOptions.OnServiceResolved --
// the teacher favors callback hooks over a logging dependency, so di does
// too (see DESIGN.md).
func OnResolved(fn func(Dep)) ContainerOption {
	return containerOptionFunc(func(c *Container) { c.onResolved = fn })
}

// OnError registers a callback invoked whenever Solve or Execute fails,
// except when the call fails with ErrContainerDisposed.
func OnError(fn func(Dep, error)) ContainerOption {
	return containerOptionFunc(func(c *Container) { c.onError = fn })
}

// NewContainer returns a Container with a private frame for the
// "container" scope, from which Self resolves (SUPPLEMENTED FEATURES:
// container self-registration). The "container" token is not declared in
// the scope registry, and its frame is kept apart from the global scope
// stack so that it never participates in the caller's own scope nesting (a
// root-level "app" scope's declared parent is still nil, not "container").
func NewContainer(opts ...ContainerOption) *Container {
	registry := scopestack.NewRegistry()
	c := &Container{
		registry:  registry,
		global:    scopestack.NewGlobalStack(registry),
		executor:  plan.DefaultExecutor{},
		selfFrame: scopestack.NewFrame(containerScope, nil),
	}
	for _, o := range opts {
		o.applyContainer(c)
	}
	return c
}

// Self returns a Dep resolving to this Container, cached in the
// "container" scope.
func (c *Container) Self() Dep {
	return New(func() (*Container, error) { return c, nil }, WithScope(containerScope))
}

// Bind registers replacement as the Dep used wherever a Dep whose
// Callable matches target's pointer identity is referenced in a declared
// parameter tree, via this Container's Binder (creating one if none was
// supplied via WithBinder). The bind is tied to whichever global scope is
// active when Bind is called: if one is active, the returned release
// closure is also invoked automatically when that scope's frame is
// released (ExitGlobalScope/Dispose), so a scope-local override does not
// outlive its scope. If no global scope is active, the bind lives for the
// Container's lifetime unless release is called explicitly.
func (c *Container) Bind(target any, replacement Dep) (release func()) {
	c.mu.Lock()
	if c.binder == nil {
		c.binder = NewBinder()
	}
	binder := c.binder
	c.mu.Unlock()

	return binder.bind(target, replacement, c.global.Top())
}

// Solve walks root's declared parameter tree (after applying this
// Container's Binder, if any) into an immutable SolvedPlan: deduplicated by
// EquivalenceKey, checked for scope consistency (a shared provider cached
// under two different scopes is a ScopeConflictError; a dependency on a
// descendant scope is a ScopeViolationError, invariant I2), and
// topologically ordered with prerequisites before dependants.
func (c *Container) Solve(root Dep) (*SolvedPlan, error) {
	if c.isDisposed() {
		return nil, ErrContainerDisposed
	}

	c.mu.RLock()
	binder := c.binder
	c.mu.RUnlock()

	if binder != nil {
		root = binder.Apply(root)
	}

	p, err := solver.Solve(root, c.registry)
	if err != nil {
		if c.onError != nil {
			c.onError(root, err)
		}
		return nil, err
	}
	return &SolvedPlan{inner: p}, nil
}

// SolvedPlan is an immutable, reusable execution plan produced by Solve.
type SolvedPlan struct {
	inner *solver.SolvedPlan
}

// ExecOption configures one ExecuteSync/ExecuteAsync call.
type ExecOption interface {
	applyExec(*execOptions)
}

type execOptions struct {
	rawValues map[Dep]any
}

type execOptionFunc func(*execOptions)

func (f execOptionFunc) applyExec(o *execOptions) { f(o) }

// WithValues overrides the given Dep's computed value for this call only,
// skipping its provider and every prerequisite reachable from the root
// only through overridden Deps.
// SUPPLEMENTED FEATURES: values-seeding, grounded on
// original_source/di/container.py's solve(..., values=...).
func WithValues(values map[Dep]any) ExecOption {
	return execOptionFunc(func(o *execOptions) { o.rawValues = values })
}

func taskOverrides(p *SolvedPlan, values map[Dep]any) map[*solver.Task]any {
	out := make(map[*solver.Task]any, len(values))
	for dep, v := range values {
		key := dep.EquivalenceKey()
		for _, t := range p.inner.Order {
			if t.Dep.EquivalenceKey() == key {
				out[t] = v
				break
			}
		}
	}
	return out
}

// frameResolver builds a plan.FrameResolver backed by ctx's local scope
// stack layered over this Container's global stack: a task's declared
// scope is looked up as a local frame first, falling back to the global
// frame for that token.
func (c *Container) frameResolver(ctx context.Context) plan.FrameResolver {
	return func(token solver.ScopeToken) (*scopestack.Frame, error) {
		if token == containerScope {
			return c.selfFrame, nil
		}
		if local := scopestack.FrameFromContext(ctx); local != nil {
			if local.HasAncestor(token) {
				f := local
				for f != nil && f.Token != token {
					f = f.Parent
				}
				if f != nil {
					return f, nil
				}
			}
		}
		return c.global.Frame(token)
	}
}

// ExecuteSync runs plan synchronously in topological order. It fails with
// ExecutorKindMismatch if the plan contains any async provider.
func (c *Container) ExecuteSync(ctx context.Context, p *SolvedPlan, opts ...ExecOption) (any, error) {
	if c.isDisposed() {
		return nil, ErrContainerDisposed
	}
	overrides := resolveExecOverrides(p, opts)
	v, err := c.executor.ExecuteSync(ctx, p.inner, overrides, c.frameResolver(ctx))
	c.notify(p, err)
	return v, err
}

// ExecuteAsync runs plan, dispatching every newly-ready task concurrently.
func (c *Container) ExecuteAsync(ctx context.Context, p *SolvedPlan, opts ...ExecOption) (any, error) {
	if c.isDisposed() {
		return nil, ErrContainerDisposed
	}
	overrides := resolveExecOverrides(p, opts)
	v, err := c.executor.ExecuteAsync(ctx, p.inner, overrides, c.frameResolver(ctx))
	c.notify(p, err)
	return v, err
}

func resolveExecOverrides(p *SolvedPlan, opts []ExecOption) map[*solver.Task]any {
	eo := &execOptions{}
	for _, o := range opts {
		o.applyExec(eo)
	}
	if len(eo.rawValues) == 0 {
		return nil
	}
	return taskOverrides(p, eo.rawValues)
}

func (c *Container) notify(p *SolvedPlan, err error) {
	if err != nil {
		if c.onError != nil {
			c.onError(p.inner.Root.Dep, err)
		}
		return
	}
	if c.onResolved != nil {
		c.onResolved(p.inner.Root.Dep)
	}
}

func (c *Container) isDisposed() bool {
	return atomic.LoadInt32(&c.disposed) == 1
}

// Dispose releases every global scope frame this Container entered, in
// reverse (LIFO) order, joining any teardown failures. A Container must
// not be used after Dispose.
func (c *Container) Dispose(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.disposed, 0, 1) {
		return nil
	}

	var errs []error
	for {
		frame := c.global.Top()
		if frame == nil {
			break
		}
		if _, err := c.global.Exit(frame.Token); err != nil {
			errs = append(errs, err)
			break
		}
		if c.binder != nil {
			c.binder.releaseFrame(frame)
		}
		if err := frame.Release(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.selfFrame.Release(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return &TeardownAggregateError{Token: containerScope, Errors: errs}
}
