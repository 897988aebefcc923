// Package scopestack implements the scope frame, result cache, and
// resource-release stack that back di's global and local scope entry
// points.
//
// Grounded on internal/lifetime/lifetime.go (Manager: singleton/scope
// instance tracking, recursive child-first then LIFO-reversed-instance
// disposal joined with errors) and internal/lifetime/scope.go
// (ScopeManager/ServiceScope: per-scope resolving/parent/context
// bookkeeping). Both are adapted here from a reflect.Type-keyed instance
// cache into a Dep-keyed one, and from recursive child-scope trees into
// the two propagation mechanisms spec.md calls for: a container-wide
// mutex-guarded stack for global scopes, and a context-threaded linked
// list for local scopes (Design Notes, spec.md §9).
package scopestack

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Teardown releases one resource. It must be idempotent-safe to call
// at most once; Frame.Release guarantees exactly that.
type Teardown func(context.Context) error

// cacheEntry guards one cached computation with a sync.Once, so concurrent
// callers racing to resolve the same shared provider block on the first
// caller's compute instead of invoking the provider more than once
// (spec.md's 25-concurrent-requests scenario: an app-scoped singleton must
// be computed exactly once across every goroutine that reaches it).
type cacheEntry struct {
	once  sync.Once
	value any
	err   error
}

// Frame is one scope's result cache and resource-release stack (spec.md's
// "Scope frame"). A Frame's cache and release stack are independent of its
// parent's -- only ancestor *lookup* walks the parent chain.
type Frame struct {
	Token  any
	Parent *Frame

	// AllowsSuspension reports whether this frame's scope permits async
	// (suspending) providers. True by default; Enter/EnterLocal set it
	// from the scope's declared registration (see Registry.Declare's
	// allowsSuspension parameter, surfaced via a container's SyncOnly
	// ScopeOption).
	AllowsSuspension bool

	mu        sync.Mutex
	cache     map[any]*cacheEntry
	teardowns []Teardown
	disposed  int32
}

// NewFrame creates a frame for token, chained to parent (nil for a root
// frame), permitting suspension by default.
func NewFrame(token any, parent *Frame) *Frame {
	return &Frame{
		Token:            token,
		Parent:           parent,
		AllowsSuspension: true,
		cache:            make(map[any]*cacheEntry),
	}
}

// Lookup returns a cached value by key, searching this frame then walking
// up the parent chain -- a shared provider bound to an ancestor scope is
// visible (and cached once) from any descendant frame.
func (f *Frame) Lookup(key any) (any, bool) {
	for frame := f; frame != nil; frame = frame.Parent {
		frame.mu.Lock()
		entry, ok := frame.cache[key]
		frame.mu.Unlock()
		if ok {
			return entry.value, true
		}
	}
	return nil, false
}

// Store caches value under key in this exact frame (invariant I3: a shared
// provider's cache lives in its declared scope, not in whichever scope
// happened to trigger resolution).
func (f *Frame) Store(key, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.cache[key]
	if !ok {
		entry = &cacheEntry{}
		f.cache[key] = entry
	}
	entry.once.Do(func() { entry.value = value })
}

// ComputeShared returns the cached value for key, searching this frame and
// its ancestors, computing it with compute exactly once if no caller has
// computed it yet anywhere in the chain. Concurrent callers for the same
// key block on the same sync.Once rather than each invoking compute.
func (f *Frame) ComputeShared(key any, compute func() (any, error)) (any, error) {
	for frame := f; frame != nil; frame = frame.Parent {
		frame.mu.Lock()
		entry, ok := frame.cache[key]
		frame.mu.Unlock()
		if ok {
			entry.once.Do(func() { entry.value, entry.err = compute() })
			return entry.value, entry.err
		}
	}

	f.mu.Lock()
	entry, ok := f.cache[key]
	if !ok {
		entry = &cacheEntry{}
		f.cache[key] = entry
	}
	f.mu.Unlock()

	entry.once.Do(func() { entry.value, entry.err = compute() })
	return entry.value, entry.err
}

// Track registers a teardown to run, in LIFO order, when this frame is
// released (invariant I4: resource teardown runs at most once, in reverse
// acquisition order).
func (f *Frame) Track(t Teardown) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teardowns = append(f.teardowns, t)
}

// HasAncestor reports whether token belongs to f or any of its ancestors.
func (f *Frame) HasAncestor(token any) bool {
	for frame := f; frame != nil; frame = frame.Parent {
		if frame.Token == token {
			return true
		}
	}
	return false
}

// Release runs this frame's tracked teardowns in reverse order exactly
// once, joining every failure into a TeardownAggregateError. A second call
// is a no-op returning nil, matching internal/lifetime/lifetime.go's
// disposed-guarded Dispose.
func (f *Frame) Release(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&f.disposed, 0, 1) {
		return nil
	}

	f.mu.Lock()
	teardowns := f.teardowns
	f.teardowns = nil
	f.mu.Unlock()

	var errs []error
	for i := len(teardowns) - 1; i >= 0; i-- {
		if err := teardowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &TeardownAggregateError{Token: f.Token, Errors: errs}
}

// Released reports whether Release has already run for this frame.
func (f *Frame) Released() bool {
	return atomic.LoadInt32(&f.disposed) == 1
}

func joinedErr(errs []error) error {
	return errors.Join(errs...)
}
