package typesystem

import (
	"sync"
	"weak"

	"github.com/funvibe/typecore/internal/diagnostics"
)

// Registry interns type descriptors by canonical name. Registries form a
// scope chain; a name interned in an outer scope is visible to every inner
// scope and is never duplicated there.
type Registry struct {
	outer *Registry

	mu    sync.RWMutex
	types map[string]*Type
}

// Interner publishes descriptors. Registry is the only production
// implementation; the Specializer depends on this interface so that callers
// can interpose.
type Interner interface {
	Intern(name string, build func() *Type) *Type
}

func NewRegistry(outer *Registry) *Registry {
	return &Registry{
		outer: outer,
		types: make(map[string]*Type),
	}
}

// Outer returns the enclosing registry.
func (r *Registry) Outer() *Registry {
	return r.outer
}

// Encloses reports whether s is r or a scope nested inside r.
func (r *Registry) Encloses(s *Registry) bool {
	for ; s != nil; s = s.outer {
		if s == r {
			return true
		}
	}
	return false
}

// Innermost returns the one of regs that every other encloses. Nil entries
// are skipped. It reports false when two of regs lie on different branches
// of the scope tree.
func Innermost(regs ...*Registry) (*Registry, bool) {
	var in *Registry
	for _, r := range regs {
		switch {
		case r == nil:
		case in == nil, in.Encloses(r):
			in = r
		case !r.Encloses(in):
			return nil, false
		}
	}
	return in, true
}

// Lookup finds a descriptor in the scope chain.
func (r *Registry) Lookup(name string) (*Type, bool) {
	for s := r; s != nil; s = s.outer {
		if t, ok := s.local(name); ok {
			return t, true
		}
	}
	return nil, false
}

func (r *Registry) local(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Len returns the number of descriptors interned in this scope only.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// Intern returns the descriptor registered under name in the scope chain, or
// publishes the result of build in this scope. build runs at most once per
// name and scope and must not intern into r itself.
func (r *Registry) Intern(name string, build func() *Type) *Type {
	if t, ok := r.Lookup(name); ok {
		return t
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.types[name]; ok {
		return t
	}
	// An outer scope may have published the name while we waited.
	if r.outer != nil {
		if t, ok := r.outer.Lookup(name); ok {
			return t
		}
	}
	t := build()
	if t == nil {
		return nil
	}
	t.registry = weak.Make(r)
	r.types[name] = t
	return t
}

// Declare publishes the descriptor of a declared entity in this scope. A
// different descriptor already published locally under the same name is a
// redeclaration; shadowing an outer declaration is allowed.
func (r *Registry) Declare(t *Type) (*Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.types[t.name]; ok {
		if old == t {
			return t, nil
		}
		return old, diagnostics.New(diagnostics.CodeRedeclared, t.name, "").WithTypes(old.kind.String(), t.kind.String())
	}
	t.registry = weak.Make(r)
	r.types[t.name] = t
	return t, nil
}

func (r *Registry) intern(t *Type) *Type {
	return r.Intern(t.name, func() *Type { return t })
}

// Primitive returns the descriptor of a scalar kind, "any" or "?".
func (r *Registry) Primitive(k Kind) *Type {
	if !k.IsPrimitive() && k != KindAny && k != KindUnset {
		return nil
	}
	return r.intern(newType(k, "", nil, nil, nil, nil, 0))
}

func (r *Registry) Any() *Type { return r.Primitive(KindAny) }
func (r *Registry) Unset() *Type { return r.Primitive(KindUnset) }
func (r *Registry) None() *Type { return r.Primitive(KindNone) }
func (r *Registry) Bool() *Type { return r.Primitive(KindBool) }
func (r *Registry) Int() *Type { return r.Primitive(KindInt) }
func (r *Registry) Float() *Type { return r.Primitive(KindFloat) }
func (r *Registry) Double() *Type { return r.Primitive(KindDouble) }
func (r *Registry) StringType() *Type { return r.Primitive(KindString) }

// Holder returns the type variable "@name".
func (r *Registry) Holder(name string) *Type {
	return r.intern(newType(KindHolder, name, nil, nil, nil, nil, 0))
}

// Container returns a container descriptor of kind k with the given element
// types. It returns nil if k is not a container kind or the element count
// does not fit the kind.
func (r *Registry) Container(k Kind, elems ...*Type) *Type {
	if !k.IsContainer() {
		return nil
	}
	if n := k.arity(); n >= 0 && len(elems) != 0 && len(elems) != n {
		return nil
	}
	return r.intern(newType(k, "", append([]*Type(nil), elems...), nil, nil, nil, 0))
}

func (r *Registry) List(elem *Type) *Type { return r.Container(KindList, elem) }
func (r *Registry) Array(elem *Type) *Type { return r.Container(KindArray, elem) }
func (r *Registry) Map(k, v *Type) *Type { return r.Container(KindMap, k, v) }
func (r *Registry) TypeOf(t *Type) *Type { return r.Container(KindTypeOf, t) }
func (r *Registry) Future(t *Type) *Type { return r.Container(KindFuture, t) }
func (r *Registry) Tuple(items ...*Type) *Type { return r.Container(KindTuple, items...) }

// Empty returns the type of an empty container literal of kind k, e.g. list<>.
func (r *Registry) Empty(k Kind) *Type {
	if !k.IsContainer() {
		return nil
	}
	return r.intern(newType(k, "", nil, nil, nil, nil, AttrEmpty))
}

// Named wraps t as the named field or parameter "field:t".
func (r *Registry) Named(field string, t *Type) *Type {
	return r.intern(newType(KindNamed, field, nil, t, nil, nil, 0))
}

// Default wraps t as the defaulted parameter "field=t".
func (r *Registry) Default(field string, t *Type) *Type {
	return r.intern(newType(KindDefault, field, nil, t, nil, nil, 0))
}

// Routine returns the routine type with the given parameters and return type.
// ret may be nil for routines without a declared return type.
func (r *Registry) Routine(params []*Type, ret *Type) *Type {
	return r.intern(newType(KindRoutine, "", append([]*Type(nil), params...), ret, nil, nil, 0))
}

// Coroutine is Routine for routines run as coroutines.
func (r *Registry) Coroutine(params []*Type, ret *Type) *Type {
	return r.intern(newType(KindRoutine, "", append([]*Type(nil), params...), ret, nil, nil, AttrCoroutine))
}

// RoutineWithCallback returns a routine type taking a code-section callback
// of type cb.
func (r *Registry) RoutineWithCallback(params []*Type, ret, cb *Type) *Type {
	return r.intern(newType(KindRoutine, "", append([]*Type(nil), params...), ret, cb, nil, 0))
}

// Variant returns the union of alts. Nested variants are flattened and
// duplicate alternatives dropped; a single alternative is returned as is.
func (r *Registry) Variant(alts ...*Type) *Type {
	flat := flattenAlts(alts)
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return r.intern(newType(KindVariant, "", flat, nil, nil, nil, 0))
}

// flattenAlts inlines the alternatives of nested variants and drops
// duplicates, keeping first occurrences in order.
func flattenAlts(alts []*Type) []*Type {
	var flat []*Type
	seen := make(map[*Type]bool)
	var add func(ts []*Type)
	add = func(ts []*Type) {
		for _, a := range ts {
			if a.kind == KindVariant {
				add(a.nested)
				continue
			}
			if !seen[a] {
				seen[a] = true
				flat = append(flat, a)
			}
		}
	}
	add(alts)
	return flat
}

// rebuild returns an unpublished descriptor of the same shape as t with
// nested, aux and callback replaced.
func rebuild(t *Type, nested []*Type, aux, cb *Type) *Type {
	return newType(t.kind, t.field, nested, aux, cb, t.decl, t.attrib&(AttrEmpty|AttrCoroutine))
}

// builtinKinds lists the kinds whose descriptors exist in every root
// registry.
var builtinKinds = []Kind{
	KindAny, KindUnset, KindNone, KindBool, KindInt, KindFloat,
	KindDouble, KindComplex, KindString, KindEnum,
}

// NewRootRegistry returns a registry with the built-in scalar descriptors
// pre-published.
func NewRootRegistry() *Registry {
	r := NewRegistry(nil)
	for _, k := range builtinKinds {
		r.Primitive(k)
	}
	return r
}

// BuiltinNames returns the canonical names of the built-in scalar types.
func BuiltinNames() []string {
	names := make([]string, len(builtinKinds))
	for i, k := range builtinKinds {
		names[i] = k.String()
	}
	return names
}
