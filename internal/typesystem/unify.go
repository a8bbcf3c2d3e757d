package typesystem

import (
	"github.com/funvibe/typecore/internal/diagnostics"
)

// Bindings maps type variables to the types they were unified with. The
// matcher only ever adds entries; a nil Bindings disables binding.
type Bindings map[*Type]*Type

// Lookup returns the direct binding of v.
func (b Bindings) Lookup(v *Type) (*Type, bool) {
	if b == nil {
		return nil, false
	}
	t, ok := b[v]
	return t, ok
}

// Resolve follows the binding chain of v to the first type that is not a
// bound variable. A chain that returns to a variable already visited is
// reported as a cyclic binding.
func (b Bindings) Resolve(v *Type) (*Type, error) {
	visited := make(map[*Type]bool)
	t := v
	for t.kind.IsVariable() {
		next, ok := b.Lookup(t)
		if !ok || next == t {
			return t, nil
		}
		if visited[t] {
			return nil, diagnostics.New(diagnostics.CodeCyclicBinding, "", v.name)
		}
		visited[t] = true
		t = next
	}
	return t, nil
}

// Bind records v := t. It refuses self-bindings, bindings of non-variables
// and bindings that would create an infinite type.
func (b Bindings) Bind(v, t *Type) bool {
	if b == nil || v == nil || t == nil || !v.kind.IsVariable() {
		return false
	}
	if v == t {
		return true
	}
	if Occurs(v, t) {
		return false
	}
	b[v] = t
	return true
}

// Clone returns a copy of b.
func (b Bindings) Clone() Bindings {
	out := make(Bindings, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Occurs reports whether the variable v appears inside t (but is not t).
func Occurs(v, t *Type) bool {
	if t == v || !t.Unbound() {
		return false
	}
	return contains(t, v, make(map[*Type]bool))
}

func contains(t, v *Type, seen map[*Type]bool) bool {
	if t == nil || seen[t] {
		return false
	}
	if t == v {
		return true
	}
	seen[t] = true
	for _, n := range t.nested {
		if contains(n, v, seen) {
			return true
		}
	}
	return contains(t.aux, v, seen) || contains(t.cb, v, seen)
}

// Holders returns the distinct type variables of t in first-occurrence order.
func Holders(t *Type) []*Type {
	var out []*Type
	seen := make(map[*Type]bool)
	var walk func(*Type)
	walk = func(t *Type) {
		if t == nil || seen[t] || !t.Unbound() {
			return
		}
		seen[t] = true
		if t.kind.IsVariable() {
			out = append(out, t)
			return
		}
		for _, n := range t.nested {
			walk(n)
		}
		if t.kind != KindClass {
			walk(t.aux)
		}
		walk(t.cb)
	}
	walk(t)
	return out
}
