package typesystem

import (
	"github.com/funvibe/typecore/internal/diagnostics"
)

// Session tracks the template instantiations in progress on one call chain,
// so that an instantiation that refers back to itself, directly or through
// another template, reuses the descriptor being built. A Session must not be
// shared between goroutines.
type Session struct {
	inflight map[string]*Type
}

func NewSession() *Session {
	return &Session{inflight: make(map[string]*Type)}
}

// Inflight returns the descriptor of an instantiation in progress.
func (s *Session) Inflight(name string) (*Type, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.inflight[name]
	return t, ok
}

// Begin records that name is being instantiated as t.
func (s *Session) Begin(name string, t *Type) {
	s.inflight[name] = t
}

// End removes name from the instantiations in progress.
func (s *Session) End(name string) {
	delete(s.inflight, name)
}

// Specialize substitutes the bound type variables of t and returns the
// interned result. Unbound variables are left in place. Object descriptors of
// templates are instantiated through their Template. When in is nil the
// registry t was published in is used.
//
// On error no descriptor for t is published, though fully built nested
// descriptors may already have been.
func Specialize(t *Type, in Interner, b Bindings) (*Type, error) {
	if t == nil || !t.Unbound() {
		return t, nil
	}
	if in == nil {
		r := t.Registry()
		if r == nil {
			return nil, diagnostics.New(diagnostics.CodeUnresolved, "", t.name)
		}
		in = r
	}
	return NewSpecializer(in, b, nil).Specialize(t)
}

// Specializer rewrites descriptors under one set of bindings, memoizing
// results across calls.
type Specializer struct {
	in      Interner
	b       Bindings
	session *Session
	// active holds the descriptors being rebuilt. A structural descriptor met
	// again is a recursive reference and is reused as is; a variable met
	// again is a cyclic binding.
	active map[*Type]bool
	done   map[*Type]*Type
}

// NewSpecializer returns a specializer interning into in. session may be nil.
func NewSpecializer(in Interner, b Bindings, session *Session) *Specializer {
	if session == nil {
		session = NewSession()
	}
	return &Specializer{
		in:      in,
		b:       b,
		session: session,
		active:  make(map[*Type]bool),
		done:    make(map[*Type]*Type),
	}
}

// Session returns the session instantiations run in.
func (sp *Specializer) Session() *Session { return sp.session }

// Preset fixes the result for from, bypassing the rewrite rules.
func (sp *Specializer) Preset(from, to *Type) {
	sp.done[from] = to
}

// Specialize rewrites t. See the package-level Specialize.
func (sp *Specializer) Specialize(t *Type) (*Type, error) {
	if t == nil || !t.Unbound() {
		return t, nil
	}
	if r, ok := sp.done[t]; ok {
		return r, nil
	}
	if sp.active[t] {
		if t.kind.IsVariable() {
			return nil, diagnostics.New(diagnostics.CodeCyclicBinding, "", t.name)
		}
		return t, nil
	}
	sp.active[t] = true
	defer delete(sp.active, t)

	r, err := sp.rewrite(t)
	if err != nil {
		return nil, err
	}
	sp.done[t] = r
	return r, nil
}

func (sp *Specializer) rewrite(t *Type) (*Type, error) {
	switch t.kind {
	case KindUnset, KindHolder:
		bound, ok := sp.b.Lookup(t)
		if !ok || bound == t {
			return t, nil
		}
		return sp.Specialize(bound)
	case KindClass:
		obj, err := sp.Specialize(t.aux)
		if err != nil {
			return nil, err
		}
		if obj == t.aux {
			return t, nil
		}
		cls := NewClassOf(obj)
		return sp.in.Intern(cls.name, func() *Type { return cls }), nil
	case KindObject:
		tmpl, ok := t.decl.(Template)
		if !ok {
			return t, nil
		}
		args, changed, err := sp.list(t.nested)
		if err != nil {
			return nil, err
		}
		if !changed {
			return t, nil
		}
		obj, err := tmpl.Instantiate(args, sp.session)
		if err != nil {
			return nil, diagnostics.New(diagnostics.CodeUnresolved, t.decl.DeclName(), "").WithCause(err)
		}
		return obj, nil
	case KindForeign, KindInterface, KindAny:
		return t, nil
	}

	nested, changed, err := sp.list(t.nested)
	if err != nil {
		return nil, err
	}
	aux, err := sp.Specialize(t.aux)
	if err != nil {
		return nil, err
	}
	cb, err := sp.Specialize(t.cb)
	if err != nil {
		return nil, err
	}
	if !changed && aux == t.aux && cb == t.cb {
		return t, nil
	}
	if t.kind == KindVariant {
		nested = flattenAlts(nested)
		if len(nested) == 1 {
			return nested[0], nil
		}
	}
	nt := rebuild(t, nested, aux, cb)
	return sp.in.Intern(nt.name, func() *Type { return nt }), nil
}

func (sp *Specializer) list(ts []*Type) ([]*Type, bool, error) {
	out := make([]*Type, len(ts))
	changed := false
	for i, n := range ts {
		r, err := sp.Specialize(n)
		if err != nil {
			return nil, false, err
		}
		out[i] = r
		changed = changed || r != n
	}
	return out, changed, nil
}
