package di

import (
	"context"

	"github.com/junioryono/di/internal/scopestack"
)

// ScopeOption configures a scope at DeclareScope time.
type ScopeOption interface {
	applyScope(*scopeOptions)
}

type scopeOptions struct {
	syncOnly bool
}

type scopeOptionFunc func(*scopeOptions)

func (f scopeOptionFunc) applyScope(o *scopeOptions) { f(o) }

// SyncOnly marks a scope as not permitting suspension: an async provider
// declared against it fails at execution time with
// ScopeIncompatibilityError, so a caller can guarantee a plan entered
// under this scope never blocks a goroutine on a suspending call.
func SyncOnly() ScopeOption {
	return scopeOptionFunc(func(o *scopeOptions) { o.syncOnly = true })
}

// DeclareScope registers token as a child of parent (nil for a top-level
// scope) so it can later be entered with EnterGlobalScope or
// EnterLocalScope. Declaring the same token twice returns
// DuplicateScopeError.
//
// Grounded on scope.go's newScope (teacher's per-scope uuid identity),
// adapted here to an explicit parent-declaration step since our scopes are
// caller-named tokens rather than uuid.NewString() values generated on
// every CreateScope call.
func (c *Container) DeclareScope(token, parent ScopeToken, opts ...ScopeOption) error {
	o := &scopeOptions{}
	for _, opt := range opts {
		opt.applyScope(o)
	}
	return c.registry.Declare(token, parent, !o.syncOnly)
}

// EnterGlobalScope pushes token onto the container-wide scope stack,
// visible to every goroutine sharing this Container until ExitGlobalScope
// is called. Use this for scopes whose lifetime is the whole process or a
// long-lived subsystem (spec.md's global-visibility scopes); prefer
// EnterLocalScope for anything request-shaped.
func (c *Container) EnterGlobalScope(token ScopeToken) error {
	_, err := c.global.Enter(token)
	return err
}

// ExitGlobalScope pops token off the container-wide scope stack and
// releases its frame's tracked resources in reverse acquisition order,
// joining any failures into a TeardownAggregateError.
func (c *Container) ExitGlobalScope(ctx context.Context, token ScopeToken) error {
	frame, err := c.global.Exit(token)
	if err != nil {
		return err
	}
	c.mu.RLock()
	binder := c.binder
	c.mu.RUnlock()
	if binder != nil {
		binder.releaseFrame(frame)
	}
	return frame.Release(ctx)
}

// EnterLocalScope returns a new Context with token pushed onto its local
// scope stack, parented to whatever scope ctx already carries (or to the
// global stack's current top). The returned Context is independent of ctx:
// entering a local scope never mutates state another goroutine can
// observe, the Go stand-in for Python's contextvars.ContextVar (spec.md
// §9's Design Notes).
func (c *Container) EnterLocalScope(ctx context.Context, token ScopeToken) (context.Context, error) {
	newCtx, _, err := scopestack.EnterLocal(ctx, c.global, c.registry, token)
	return newCtx, err
}

// ExitLocalScope releases the innermost local scope frame carried by ctx in
// reverse acquisition order. It does not return a Context: callers should
// discard ctx after calling this, since its frame is now released.
func ExitLocalScope(ctx context.Context) error {
	frame := scopestack.FrameFromContext(ctx)
	if frame == nil {
		return nil
	}
	return frame.Release(ctx)
}
