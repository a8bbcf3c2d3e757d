package typesystem

import (
	"strings"
	"sync"
	"weak"

	"github.com/google/uuid"

	"github.com/funvibe/typecore/internal/config"
)

// Attrib is the attribute bitset of a type descriptor.
type Attrib uint16

const (
	AttrUnbound   Attrib = 1 << iota // contains a type variable
	AttrInterface                    // is or contains an interface type
	AttrEmpty                        // empty container literal type, e.g. list<>
	AttrCoroutine                    // routine runs as a coroutine
)

// Declared is a nominal entity named by class, object, foreign and interface
// descriptors. Implementations live outside this package.
type Declared interface {
	DeclName() string
	// Bases returns the descriptors of the direct supers.
	Bases() []*Type
	// FindMethods returns the routines bound to name, used for interface
	// binding. Nil when the entity has no such member.
	FindMethods(name string) []*Routine
}

// Template is a declared entity with type parameters. Specialization of its
// descriptors goes through Instantiate instead of a structural rebuild.
type Template interface {
	Declared
	// Origin returns the template this entity was instantiated from, or the
	// entity itself.
	Origin() Declared
	// Instantiate returns the object descriptor of the entity specialized for
	// args. session carries the instantiations in progress on the caller's
	// chain and may be nil.
	Instantiate(args []*Type, session *Session) (*Type, error)
}

// Type is a type descriptor. Published descriptors are shared and compared by
// pointer; the only state that changes after publication is the write-once
// default value and the interface memo.
type Type struct {
	kind   Kind
	name   string
	field  string
	nested []*Type
	aux    *Type
	cb     *Type
	decl   Declared
	attrib Attrib
	fields map[string]int

	registry weak.Pointer[Registry]

	mu         sync.Mutex
	dflt       any
	hasDefault bool
	interfaces map[uuid.UUID]*Interface
}

func (t *Type) Kind() Kind { return t.kind }

// Name returns the canonical name.
func (t *Type) Name() string { return t.name }

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.name
}

// FieldName returns the field name of a wrapper or the name of a holder.
func (t *Type) FieldName() string { return t.field }

// Len returns the number of nested descriptors.
func (t *Type) Len() int { return len(t.nested) }

// At returns the i-th nested descriptor.
func (t *Type) At(i int) *Type { return t.nested[i] }

// Nested returns a copy of the nested descriptors.
func (t *Type) Nested() []*Type {
	out := make([]*Type, len(t.nested))
	copy(out, t.nested)
	return out
}

// Aux returns the return type of a routine or the inner type of a wrapper.
func (t *Type) Aux() *Type { return t.aux }

// Return is Aux for routine descriptors.
func (t *Type) Return() *Type { return t.aux }

// Inner unwraps parameter wrappers.
func (t *Type) Inner() *Type {
	if t.kind.IsWrapper() {
		return t.aux
	}
	return t
}

// Callback returns the code-section callback type of a routine.
func (t *Type) Callback() *Type { return t.cb }

// Decl returns the declared entity for class, object, foreign and interface
// descriptors.
func (t *Type) Decl() Declared { return t.decl }

func (t *Type) Attrib() Attrib { return t.attrib }

func (t *Type) Has(a Attrib) bool { return t.attrib&a != 0 }

// Unbound reports whether the descriptor still contains type variables.
func (t *Type) Unbound() bool { return t.attrib&AttrUnbound != 0 }

// Empty reports whether the descriptor is an empty container literal type.
func (t *Type) Empty() bool { return t.attrib&AttrEmpty != 0 }

// FieldIndex returns the position of a named field or parameter.
func (t *Type) FieldIndex(name string) (int, bool) {
	i, ok := t.fields[name]
	return i, ok
}

// Registry returns the registry the descriptor was published in, or nil if
// it is unpublished or the registry is gone.
func (t *Type) Registry() *Registry {
	return t.registry.Value()
}

// Default returns the default value of the type.
func (t *Type) Default() (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dflt, t.hasDefault
}

// SetDefault sets the default value once. It returns false if a default was
// already present.
func (t *Type) SetDefault(v any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasDefault {
		return false
	}
	t.dflt = v
	t.hasDefault = true
	return true
}

// newType assembles a descriptor and derives its canonical name, attributes
// and field index.
func newType(kind Kind, field string, nested []*Type, aux, cb *Type, decl Declared, extra Attrib) *Type {
	t := &Type{
		kind:   kind,
		field:  field,
		nested: nested,
		aux:    aux,
		cb:     cb,
		decl:   decl,
		attrib: extra,
	}
	switch kind {
	case KindUnset, KindHolder:
		t.attrib |= AttrUnbound
	case KindInterface:
		t.attrib |= AttrInterface
	}
	for _, n := range nested {
		t.attrib |= n.attrib & (AttrUnbound | AttrInterface)
	}
	for _, n := range []*Type{aux, cb} {
		if n != nil {
			t.attrib |= n.attrib & (AttrUnbound | AttrInterface)
		}
	}
	if kind == KindTuple || kind == KindRoutine {
		for i, n := range nested {
			if n.kind.IsWrapper() {
				if t.fields == nil {
					t.fields = make(map[string]int)
				}
				t.fields[n.field] = i
			}
		}
	}
	t.name = canonicalName(t)
	if v, ok := zeroValue(kind); ok {
		t.dflt, t.hasDefault = v, true
	}
	return t
}

// NewDeclared creates an unpublished descriptor for a declared entity. args
// are the template arguments of a class instance, if any.
func NewDeclared(kind Kind, decl Declared, args []*Type) *Type {
	return newType(kind, "", args, nil, nil, decl, 0)
}

// NewClassOf creates the class descriptor for an object descriptor.
func NewClassOf(obj *Type) *Type {
	return newType(KindClass, "", obj.nested, obj, nil, obj.decl, 0)
}

// ObjectType returns the object descriptor of a class descriptor.
func (t *Type) ObjectType() *Type {
	if t.kind == KindClass {
		return t.aux
	}
	return t
}

func canonicalName(t *Type) string {
	switch t.kind {
	case KindHolder:
		return config.HolderPrefix + t.field
	case KindNamed:
		return t.field + ":" + t.aux.name
	case KindDefault:
		return t.field + "=" + t.aux.name
	case KindVariant:
		return joinNames(t.nested, "|")
	case KindObject, KindForeign, KindInterface:
		return t.decl.DeclName()
	case KindClass:
		return config.ClassTypeName + "<" + t.decl.DeclName() + ">"
	case KindRoutine:
		return routineName(t)
	}
	if t.kind.IsContainer() {
		switch {
		case t.attrib&AttrEmpty != 0:
			return t.kind.String() + "<>"
		case len(t.nested) == 0:
			return t.kind.String()
		}
		return t.kind.String() + "<" + joinNames(t.nested, ",") + ">"
	}
	return t.kind.String()
}

func routineName(t *Type) string {
	var sb strings.Builder
	if t.attrib&AttrCoroutine != 0 {
		sb.WriteString(config.CoroutineTypeName)
	} else {
		sb.WriteString(config.RoutineTypeName)
	}
	if len(t.nested) == 0 && t.aux == nil && t.cb == nil {
		return sb.String()
	}
	sb.WriteByte('<')
	sb.WriteString(signature(t))
	sb.WriteByte('>')
	if t.cb != nil {
		sb.WriteByte('[')
		sb.WriteString(signature(t.cb))
		sb.WriteByte(']')
	}
	return sb.String()
}

// signature renders the parameter list and return type of a routine.
func signature(t *Type) string {
	s := joinNames(t.nested, ",")
	if t.aux != nil {
		s += "=>" + t.aux.name
	}
	return s
}

func joinNames(ts []*Type, sep string) string {
	names := make([]string, len(ts))
	for i, n := range ts {
		names[i] = n.name
	}
	return strings.Join(names, sep)
}

func zeroValue(k Kind) (any, bool) {
	switch k {
	case KindNone:
		return nil, true
	case KindBool:
		return false, true
	case KindInt:
		return int64(0), true
	case KindFloat:
		return float32(0), true
	case KindDouble:
		return float64(0), true
	case KindComplex:
		return complex128(0), true
	case KindString:
		return "", true
	}
	return nil, false
}
