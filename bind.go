package di

import (
	"reflect"
	"sync"

	"github.com/junioryono/di/internal/scopestack"
)

// Binder rebinds a target callable's identity to a replacement Dep, so
// providers can be declared once -- e.g. as an Unwired placeholder -- and
// wired differently per environment. Grounded on
// original_source/docs/src/manual_wiring.py, which binds an Unwired
// descriptor to a concrete implementation at wiring time instead of import
// time, and original_source/di/container.py's Container.bind, whose binds
// "are only identified by the identity of the callable ... and do not take
// into account the scope ... of the dependency they are replacing" and are
// scoped to the ContextManager's enter/exit -- here, to whichever global
// frame is active when Bind is called.
type Binder struct {
	mu           sync.Mutex
	replacements map[any]*bindEntry
}

// bindEntry pairs a replacement with the global frame it was installed
// under, if any, so it can be dropped when that frame is released.
type bindEntry struct {
	replacement Dep
	frame       *scopestack.Frame
}

// NewBinder returns an empty Binder.
func NewBinder() *Binder {
	return &Binder{replacements: make(map[any]*bindEntry)}
}

// bind registers replacement under target's callable-pointer identity (see
// bindKey), tying the bind to frame (nil for process-lifetime), and
// returns a release closure that removes it, unless a later bind for the
// same target has since installed a non-equivalent replacement. frame's own
// release (via releaseFrame) removes it too, whichever comes first; both
// are safe to call any number of times.
func (b *Binder) bind(target any, replacement Dep, frame *scopestack.Frame) func() {
	key := bindKey(target)

	b.mu.Lock()
	b.replacements[key] = &bindEntry{replacement: replacement, frame: frame}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if entry, ok := b.replacements[key]; ok && entry.replacement.EquivalenceKey() == replacement.EquivalenceKey() {
			delete(b.replacements, key)
		}
	}
}

// Bind registers replacement as the Dep to use wherever a Dep whose
// Callable matches target's pointer identity is referenced in a declared
// parameter tree. It never ties the bind to a scope; callers needing
// scope-tied cleanup should use Container.Bind instead, which calls bind
// with the container's active global frame.
func (b *Binder) Bind(original Dep, replacement Dep) {
	b.bind(original, replacement, nil)
}

// releaseFrame drops every bind installed under frame, called when frame
// is released (scope exit) so a scope-scoped bind does not outlive the
// scope that installed it.
func (b *Binder) releaseFrame(frame *scopestack.Frame) {
	if frame == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, entry := range b.replacements {
		if entry.frame == frame {
			delete(b.replacements, key)
		}
	}
}

// Resolve returns the replacement bound for dep's callable identity, if
// any, and whether one was found.
func (b *Binder) Resolve(dep Dep) (Dep, bool) {
	if b == nil {
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.replacements[bindKey(dep)]
	if !ok {
		return nil, false
	}
	return entry.replacement, true
}

// Apply walks dep's declared parameter tree, replacing any Dep (including
// dep itself) that has a Binder replacement, and recursing into whatever
// replacement or original subtree remains. It returns a new Dep tree,
// never mutating dep or its parameters in place.
func (b *Binder) Apply(dep Dep) Dep {
	if b == nil {
		return dep
	}
	b.mu.Lock()
	empty := len(b.replacements) == 0
	b.mu.Unlock()
	if empty {
		return dep
	}

	resolved := dep
	if r, ok := b.Resolve(dep); ok {
		resolved = r
	}

	params := resolved.Dependencies()
	if len(params) == 0 {
		return resolved
	}

	newParams := make([]Param, len(params))
	changed := false
	for i, p := range params {
		newDep := b.Apply(p.Dep)
		newParams[i] = Param{Name: p.Name, Kind: p.Kind, Dep: newDep}
		if newDep != p.Dep {
			changed = true
		}
	}
	if resolved != dep {
		changed = true
	}
	if !changed {
		return resolved
	}

	return &rebound{Dep: resolved, params: newParams}
}

// bindKey reduces target to the stable identity Bind keys on: a bare
// callable's pointer value via reflect.ValueOf(fn).Pointer(), or, when
// target is a Dep, its Callable()'s pointer -- falling back to the Dep's
// own EquivalenceKey when Callable() is nil (an Unwired placeholder has no
// callable to take the pointer of).
func bindKey(target any) any {
	if d, ok := target.(Dep); ok {
		c := d.Callable()
		if c == nil {
			return d.EquivalenceKey()
		}
		target = c
	}
	if rv := reflect.ValueOf(target); rv.Kind() == reflect.Func {
		return rv.Pointer()
	}
	return target
}

// rebound overlays a replacement parameter list onto an existing Dep
// without mutating it, so the same underlying Descriptor can be reused
// across multiple Binders/graphs safely.
type rebound struct {
	Dep
	params []Param
}

func (r *rebound) Dependencies() []Param { return r.params }

func (r *rebound) EquivalenceKey() any {
	return struct {
		base any
		n    int
	}{r.Dep.EquivalenceKey(), len(r.params)}
}
