// Package di is a dependency-injection runtime: declare providers as plain
// Go functions, bind them into a graph, solve the graph once into an
// immutable execution plan, and run that plan as many times as needed --
// concurrently, with per-scope caching and deterministic resource
// teardown.
package di

import (
	"reflect"

	"github.com/junioryono/di/internal/solver"
)

// ScopeToken identifies a scope. Any comparable value works; uuid.New()
// (github.com/google/uuid) is the idiomatic choice for a fresh per-call
// scope, and a package-level string constant for a long-lived named scope
// such as "app" or "request".
type ScopeToken = solver.ScopeToken

// ParamKind distinguishes how a dependency is threaded into its
// dependant's callable: see Positional and Keyword.
type ParamKind = solver.ParamKind

const (
	Positional = solver.Positional
	Keyword    = solver.Keyword
)

// Param pairs a parameter name and kind with the Dep that fills it.
type Param = solver.Param

// Kind is the solve-time classification of a provider.
type Kind = solver.Kind

const (
	SyncValue     = solver.SyncValue
	AsyncValue    = solver.AsyncValue
	SyncResource  = solver.SyncResource
	AsyncResource = solver.AsyncResource
)

// Teardown releases a resource produced by a resource provider.
type Teardown = solver.Teardown

// Dep is a provider descriptor: a callable plus its scope, sharing flag,
// and declared parameters. *Descriptor is the concrete implementation
// returned by New; user code may also implement Dep directly (and
// optionally ParamAware) for late-binding providers.
type Dep = solver.Dep

// ParamAware is implemented by late-binding descriptors that finalize
// themselves against the Param site that names them (see Unwired).
type ParamAware = solver.ParamAware

// Descriptor is the default Dep implementation built by New.
type Descriptor struct {
	callable  any
	scope     ScopeToken
	shared    bool
	kind      Kind
	params    []Param
	equivOver any
}

// New builds a Descriptor around callable, defaulting to SyncValue, shared,
// and scoped to nil (the root/unscoped token). Apply Options to change any
// of those.
//
// callable's shape must match the eventual Kind (set via Async/AsResource):
//
//	SyncValue:     func(args...) (T, error)        or func(args...) T
//	AsyncValue:    func(ctx context.Context, args...) (T, error)
//	SyncResource:  func(args...) (T, Teardown, error)
//	AsyncResource: func(ctx context.Context, args...) (T, Teardown, error)
//
// Keyword-kind Params are gathered by name into callable's trailing struct
// argument; see DependsOnKeyword.
func New(callable any, opts ...Option) *Descriptor {
	d := &Descriptor{callable: callable, shared: true, kind: SyncValue}
	for _, o := range opts {
		o.apply(d)
	}
	return d
}

func (d *Descriptor) Callable() any         { return d.callable }
func (d *Descriptor) Scope() ScopeToken     { return d.scope }
func (d *Descriptor) Shared() bool          { return d.shared }
func (d *Descriptor) Kind() Kind            { return d.kind }
func (d *Descriptor) Dependencies() []Param { return d.params }

// EquivalenceKey defaults to the callable's code pointer plus its declared
// scope, so the same function bound twice with the same scope collapses
// into one node (the teacher's registry looks up providers by this same
// "callable identity" rule), while WithEquivalenceKey lets a provider opt
// into structural equivalence instead.
func (d *Descriptor) EquivalenceKey() any {
	if d.equivOver != nil {
		return d.equivOver
	}
	return struct {
		ptr   uintptr
		scope ScopeToken
	}{reflect.ValueOf(d.callable).Pointer(), d.scope}
}

// Option configures a Descriptor built by New.
type Option interface {
	apply(*Descriptor)
}

type optionFunc func(*Descriptor)

func (f optionFunc) apply(d *Descriptor) { f(d) }

// WithScope binds the provider to token: its result is cached in (and its
// teardown released by) that scope's frame.
func WithScope(token ScopeToken) Option {
	return optionFunc(func(d *Descriptor) { d.scope = token })
}

// NotShared marks the provider as not cached: it runs again on every call.
// Within one call it still runs once, and every dependant that names it
// receives that one result.
func NotShared() Option {
	return optionFunc(func(d *Descriptor) { d.shared = false })
}

// Async marks the provider as asynchronous: its callable's first parameter
// must be context.Context, and it may only run under ExecuteAsync.
func Async() Option {
	return optionFunc(func(d *Descriptor) {
		if d.kind == SyncResource {
			d.kind = AsyncResource
		} else {
			d.kind = AsyncValue
		}
	})
}

// AsResource marks the provider as a resource: its callable returns a
// Teardown alongside its value, tracked for release when its scope frame
// unwinds.
func AsResource() Option {
	return optionFunc(func(d *Descriptor) {
		if d.kind == AsyncValue {
			d.kind = AsyncResource
		} else {
			d.kind = SyncResource
		}
	})
}

// DependsOn appends a positional parameter, resolved before callable is
// invoked and passed as callable's next positional argument.
func DependsOn(name string, dep Dep) Option {
	return optionFunc(func(d *Descriptor) {
		d.params = append(d.params, Param{Name: name, Kind: Positional, Dep: dep})
	})
}

// DependsOnKeyword appends a keyword parameter, gathered by name into
// callable's trailing struct argument.
func DependsOnKeyword(name string, dep Dep) Option {
	return optionFunc(func(d *Descriptor) {
		d.params = append(d.params, Param{Name: name, Kind: Keyword, Dep: dep})
	})
}

// WithEquivalenceKey overrides the default callable-identity equivalence
// key with key, so two distinct Descriptor values that declare the same
// key are deduplicated into one provider when solved.
func WithEquivalenceKey(key any) Option {
	return optionFunc(func(d *Descriptor) { d.equivOver = key })
}

// unwired is a placeholder Dep with no callable of its own: WithParam only
// records the name of the Param that names it, and a bind must replace it
// before Solve for the plan to be usable. Grounded on
// original_source/docs/src/manual_wiring.py's Unwired marker and
// original_source/docs/src/headers_example.py's HeaderDependant.
type unwired struct {
	scope  ScopeToken
	shared bool
	bind   func(paramName string) any
	name   string
}

// Unwired returns a Dep with no callable of its own: it is a placeholder
// that a Binder replacement must fill in before solving (see Binder.Bind).
// Solving a plan that still contains an Unwired Dep fails with
// InvalidProviderError.
func Unwired(scope ScopeToken) Dep {
	return &unwired{scope: scope, shared: true}
}

func (u *unwired) Callable() any         { return nil }
func (u *unwired) Scope() ScopeToken     { return u.scope }
func (u *unwired) Shared() bool          { return u.shared }
func (u *unwired) Kind() Kind            { return SyncValue }
func (u *unwired) Dependencies() []Param { return nil }
func (u *unwired) EquivalenceKey() any   { return u }

// WithParam implements ParamAware: an Unwired Dep bound directly (without
// a Binder replacement) finalizes against the parameter's name but still
// has no callable, so it will surface as InvalidProviderError at solve
// time -- the intended path is always through Binder.Bind.
func (u *unwired) WithParam(p Param) Dep {
	clone := *u
	clone.name = p.Name
	return &clone
}
