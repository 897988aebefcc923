// Package solver walks a declared dependency graph, deduplicates equivalent
// descriptors, checks scope consistency, and emits a topologically ordered,
// immutable SolvedPlan.
//
// The canonical Dep/Param/Kind types live here rather than in the root di
// package so that the solver has no import-cycle dependency on its caller;
// the di package re-exports them as type aliases (the same split the
// teacher draws between internal/graph's Provider interface and the
// top-level Descriptor).
package solver

import "context"

// ScopeToken identifies a scope. It must be comparable. nil is the
// unscoped/root token.
type ScopeToken = any

// ParamKind distinguishes how a dependency is threaded into its dependant's
// callable.
type ParamKind int

const (
	// Positional dependencies are gathered, in declaration order, into the
	// leading positional arguments of the callable.
	Positional ParamKind = iota
	// Keyword dependencies are gathered by name into a single trailing
	// struct argument whose exported field names match Param.Name.
	Keyword
)

func (k ParamKind) String() string {
	if k == Keyword {
		return "keyword"
	}
	return "positional"
}

// Param pairs a parameter descriptor with the Dep that fills it.
type Param struct {
	Name string
	Kind ParamKind
	Dep  Dep
}

// Kind is the solve-time classification of a provider, derived from its
// declared sync/async and value/resource flags (Design Notes, spec.md §9:
// "pre-classify each provider into a tagged variant at solve time").
type Kind int

const (
	SyncValue Kind = iota
	AsyncValue
	SyncResource
	AsyncResource
)

func (k Kind) IsAsync() bool {
	return k == AsyncValue || k == AsyncResource
}

func (k Kind) IsResource() bool {
	return k == SyncResource || k == AsyncResource
}

// Teardown releases a resource produced by a resource provider. It runs at
// most once, when the owning scope frame unwinds (invariant I4).
type Teardown func(context.Context) error

// Dep is a provider descriptor: a callable plus its scope, sharing flag,
// and declared parameters. Implementations may compute Dependencies()
// dynamically (e.g. from reflection) -- the solver treats it as opaque.
type Dep interface {
	// Callable is the underlying provider function. Its shape must match
	// Kind(): see the callable conventions documented on di.Descriptor.
	Callable() any

	// Scope is the scope this provider's value is resolved and (if Shared)
	// cached in.
	Scope() ScopeToken

	// Shared reports whether a successful resolution is cached in Scope()
	// and reused by later calls that still have that scope frame entered.
	Shared() bool

	// Kind is the solve-time provider classification.
	Kind() Kind

	// Dependencies returns this provider's declared parameters. Called once
	// per unique (by EquivalenceKey) descriptor during solving.
	Dependencies() []Param

	// EquivalenceKey is compared for equality to deduplicate descriptors
	// reached more than once while walking the graph. The default
	// implementation on di.Descriptor keys on callable identity; callers
	// may override this to opt into structural equivalence.
	EquivalenceKey() any
}

// ParamAware is implemented by late-binding descriptors that must finalize
// themselves against the parameter they are filling (e.g. "read the header
// named after this parameter"). The solver calls WithParam once per site of
// use and must never mutate a shared descriptor in place -- two call sites
// naming the same late-binding Dep would otherwise race to overwrite each
// other's binding (spec.md §9, grounded on
// original_source/docs/src/headers_example.py's HeaderDependant).
type ParamAware interface {
	Dep
	WithParam(p Param) Dep
}
