package scopestack

import "context"

// localKey is the context.Context key under which the local scope stack is
// threaded. Local scope entry never mutates shared state -- it returns a
// new Context carrying a new stack node, Go's stand-in for Python's
// contextvars.ContextVar (spec.md §9 sanctions context.WithValue as the
// fallback for runtimes without implicit task-local storage).
type localKey struct{}

// EnterLocal returns a new Context whose local scope stack has token
// pushed on top, parented to whatever local frame ctx already carried (or
// to the global stack's current top, if ctx carries no local frame yet --
// a local scope may nest under the ambient global scope). token must
// already be declared, must not already be active on this chain
// (DuplicateScopeError), and its declared parent must match the current
// frame, else ScopeViolationError.
func EnterLocal(ctx context.Context, global *GlobalStack, registry *Registry, token any) (context.Context, *Frame, error) {
	declaredParent, err := registry.Parent(token)
	if err != nil {
		return ctx, nil, err
	}
	allowsSuspension, err := registry.AllowsSuspension(token)
	if err != nil {
		return ctx, nil, err
	}

	current := FrameFromContext(ctx)
	if current == nil {
		current = global.Top()
	}

	if current != nil && current.HasAncestor(token) {
		return ctx, nil, &DuplicateScopeError{Token: token}
	}

	var currentToken any
	if current != nil {
		currentToken = current.Token
	}
	if declaredParent != currentToken {
		return ctx, nil, &ScopeViolationError{Token: token, DeclaredParent: declaredParent, ActualParent: currentToken}
	}

	frame := NewFrame(token, current)
	frame.AllowsSuspension = allowsSuspension
	return context.WithValue(ctx, localKey{}, frame), frame, nil
}

// FrameFromContext returns the innermost local scope frame carried by ctx,
// or nil if ctx carries none.
func FrameFromContext(ctx context.Context) *Frame {
	f, _ := ctx.Value(localKey{}).(*Frame)
	return f
}

// CurrentFrame returns the innermost frame visible to ctx: its local
// frame if one was entered, otherwise the global stack's current top.
func CurrentFrame(ctx context.Context, global *GlobalStack) *Frame {
	if f := FrameFromContext(ctx); f != nil {
		return f
	}
	return global.Top()
}
