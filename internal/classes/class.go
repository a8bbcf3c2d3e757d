// Package classes composes classes from their declared supers: it merges
// inherited constants, class variables and methods, lays out instance
// variables, and instantiates class templates.
package classes

import (
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/funvibe/typecore/internal/config"
	"github.com/funvibe/typecore/internal/diagnostics"
	"github.com/funvibe/typecore/internal/typesystem"
)

// Phase is the derivation state of a class.
type Phase uint8

const (
	Open Phase = iota
	ClassDerived
	ObjectDerived
)

func (p Phase) String() string {
	switch p {
	case Open:
		return "open"
	case ClassDerived:
		return "class-derived"
	case ObjectDerived:
		return "object-derived"
	}
	return "unknown"
}

// Attrib holds flags computed when a class is finished.
type Attrib uint8

const (
	// AutoDefault marks classes constructible without arguments.
	AutoDefault Attrib = 1 << iota
	// TemplateClass marks classes with unbound type parameters.
	TemplateClass
)

// Super is an entry of a class super list. Exactly one of Class and Foreign
// is set.
type Super struct {
	Class   *Class
	Foreign *Foreign
	Alias   string
}

// Name returns the declared name of the super.
func (s Super) Name() string {
	if s.Class != nil {
		return s.Class.name
	}
	return s.Foreign.name
}

// Type returns the object or foreign descriptor of the super.
func (s Super) Type() *typesystem.Type {
	if s.Class != nil {
		return s.Class.objType
	}
	return s.Foreign.typ
}

// Param is a template parameter: a type variable and an optional default.
type Param struct {
	Holder  *typesystem.Type
	Default *typesystem.Type
}

// Class is a class definition. Classes are read-only; they are built and
// derived through a Builder.
type Class struct {
	name    string
	base    string
	objType *typesystem.Type
	clsType *typesystem.Type
	reg     *typesystem.Registry
	opts    options

	supers    []Super
	lookup    map[string]Member
	constants []*Constant
	variables []*Variable
	layout    []*Variable
	own       []*Variable
	inherited int
	ctors     *typesystem.Overloads
	vtable    map[*typesystem.Routine]*typesystem.Routine

	params   []Param
	args     []*typesystem.Type
	template *Class

	phase     Phase
	attrib    Attrib
	operators uint32
	dflt      *Object

	mu        sync.Mutex
	instances map[string]*Class
	group     singleflight.Group
}

type options struct {
	maxParents int
	log        *slog.Logger
	recheck    func(*typesystem.Routine, typesystem.Bindings) error
}

// Option configures a Builder.
type Option func(*options)

// WithLogger sets the logger used for derivation and instantiation events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMaxParents bounds the number of direct supers.
func WithMaxParents(n int) Option {
	return func(o *options) { o.maxParents = n }
}

// WithRecheck installs a hook run on every routine copied into a template
// instance, with the bindings of the instance. The interpreter uses it to
// re-type-check bodies; an error aborts the instantiation.
func WithRecheck(fn func(*typesystem.Routine, typesystem.Bindings) error) Option {
	return func(o *options) { o.recheck = fn }
}

func newOptions(opts []Option) options {
	o := options{maxParents: config.DefaultMaxParents}
	for _, fn := range opts {
		fn(&o)
	}
	if o.maxParents <= 0 {
		o.maxParents = config.DefaultMaxParents
	}
	if o.log == nil {
		o.log = slog.New(slog.DiscardHandler)
	}
	return o
}

func (c *Class) Name() string { return c.name }

// BaseName returns the name without template arguments.
func (c *Class) BaseName() string { return c.base }

func (c *Class) DeclName() string { return c.name }

// ObjectType returns the descriptor of the class instances.
func (c *Class) ObjectType() *typesystem.Type { return c.objType }

// ClassType returns the descriptor of the class itself.
func (c *Class) ClassType() *typesystem.Type { return c.clsType }

func (c *Class) Phase() Phase { return c.phase }

func (c *Class) Derived() bool { return c.phase == ObjectDerived }

func (c *Class) Attrib() Attrib { return c.attrib }

func (c *Class) Has(a Attrib) bool { return c.attrib&a != 0 }

// Supers returns the direct supers in declaration order.
func (c *Class) Supers() []Super {
	return append([]Super(nil), c.supers...)
}

// Bases returns the descriptors of the direct supers.
func (c *Class) Bases() []*typesystem.Type {
	out := make([]*typesystem.Type, len(c.supers))
	for i, s := range c.supers {
		out[i] = s.Type()
	}
	return out
}

// Origin returns the template the class was instantiated from, or the class.
func (c *Class) Origin() typesystem.Declared {
	if c.template != nil {
		return c.template
	}
	return c
}

// Params returns the template parameters.
func (c *Class) Params() []Param {
	return append([]Param(nil), c.params...)
}

// Args returns the template arguments of an instance.
func (c *Class) Args() []*typesystem.Type {
	return append([]*typesystem.Type(nil), c.args...)
}

// Lookup returns the lookup table entry for name without permission checks.
func (c *Class) Lookup(name string) (Member, bool) {
	m, ok := c.lookup[name]
	return m, ok
}

// MemberNames returns the names in the lookup table, sorted.
func (c *Class) MemberNames() []string {
	names := make([]string, 0, len(c.lookup))
	for n := range c.lookup {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Layout returns the instance variable layout.
func (c *Class) Layout() []*Variable {
	return append([]*Variable(nil), c.layout...)
}

// Constants returns the constant slots.
func (c *Class) Constants() []*Constant {
	return append([]*Constant(nil), c.constants...)
}

// Variables returns the class variable slots.
func (c *Class) Variables() []*Variable {
	return append([]*Variable(nil), c.variables...)
}

// Constructors returns the constructor overload set.
func (c *Class) Constructors() *typesystem.Overloads { return c.ctors }

// VirtualTarget returns the routine a virtual inherited routine dispatches to.
func (c *Class) VirtualTarget(r *typesystem.Routine) (*typesystem.Routine, bool) {
	t, ok := c.vtable[r]
	return t, ok
}

// Default returns the immutable default instance.
func (c *Class) Default() *Object { return c.dflt }

// OverloadsOperator reports whether the class defines the operator op.
func (c *Class) OverloadsOperator(op string) bool {
	for i, name := range config.OperatorMethodNames {
		if name == op {
			return c.operators&(1<<uint(i)) != 0
		}
	}
	return false
}

// ChildOf reports whether c is super, or derives from super directly or
// indirectly.
func (c *Class) ChildOf(super *Class) bool {
	if c == super {
		return true
	}
	for _, s := range c.supers {
		if s.Class != nil && s.Class.ChildOf(super) {
			return true
		}
	}
	return false
}

// FindMethods returns the non-private routines of the method constant name.
func (c *Class) FindMethods(name string) []*typesystem.Routine {
	m, ok := c.lookup[name]
	if !ok || m.Storage != ClassConst || m.Permission == Private {
		return nil
	}
	o, ok := c.constants[m.Index].Value.Overloads()
	if !ok {
		return nil
	}
	var out []*typesystem.Routine
	for _, r := range o.Routines() {
		if !r.Is(typesystem.RoutinePrivate) {
			out = append(out, r)
		}
	}
	return out
}

func (c *Class) visibleTo(m Member, requester *Class) bool {
	switch {
	case requester == c, m.Permission == Public:
		return true
	case m.Permission == Protected && requester != nil:
		return requester.ChildOf(c)
	}
	return false
}

// GetMember returns the value of a member as seen from requester, which may
// be nil for access from outside any class. Instance variables yield their
// default. The class sees all of its members, public members are visible to
// all, protected members to subclasses. Lookups fail with CodeNotDerived
// until the class is object-derived.
func (c *Class) GetMember(name string, requester *Class) (Value, error) {
	if !c.Derived() {
		return Value{}, diagnostics.New(diagnostics.CodeNotDerived, c.name, name)
	}
	m, ok := c.lookup[name]
	if !ok {
		return Value{}, diagnostics.New(diagnostics.CodeNoSuchMember, c.name, name)
	}
	if !c.visibleTo(m, requester) {
		d := diagnostics.New(diagnostics.CodeNotPermitted, c.name, name)
		if requester != nil {
			d.Got = requester.name
		}
		return Value{}, d
	}
	switch m.Storage {
	case ClassConst:
		return c.constants[m.Index].Value, nil
	case ClassVar:
		return c.variables[m.Index].Value, nil
	}
	return c.dflt.Field(m.Index), nil
}

// MemberType returns the declared type of a member as seen from requester.
func (c *Class) MemberType(name string, requester *Class) (*typesystem.Type, error) {
	if !c.Derived() {
		return nil, diagnostics.New(diagnostics.CodeNotDerived, c.name, name)
	}
	m, ok := c.lookup[name]
	if !ok {
		return nil, diagnostics.New(diagnostics.CodeNoSuchMember, c.name, name)
	}
	if !c.visibleTo(m, requester) {
		return nil, diagnostics.New(diagnostics.CodeNotPermitted, c.name, name)
	}
	switch m.Storage {
	case ClassConst:
		return c.constants[m.Index].Value.Type, nil
	case ClassVar:
		return c.variables[m.Index].Type, nil
	}
	return c.layout[m.Index].Type, nil
}

// Object is the immutable default instance of a class.
type Object struct {
	class  *Class
	fields []Value
}

func (o *Object) Class() *Class { return o.class }

func (o *Object) Len() int { return len(o.fields) }

// Field returns the value in slot i.
func (o *Object) Field(i int) Value { return o.fields[i] }
