package classes

import (
	"errors"
	"strings"

	"github.com/funvibe/typecore/internal/diagnostics"
	"github.com/funvibe/typecore/internal/typesystem"
)

// ErrFinished is returned by Builder methods called after Finish, and by
// member additions after object derivation.
var ErrFinished = errors.New("classes: class is already finished")

// ErrNotOpen is returned when supers are added after class derivation.
var ErrNotOpen = errors.New("classes: super list is closed")

// Builder owns a class under construction. Supers and members are added
// while the class is open; DeriveClassData merges inherited class data,
// DeriveObjectData lays out instances, and Finish publishes the class.
type Builder struct {
	c        *Class
	finished bool
}

// NewBuilder starts a class named name whose descriptors are published in
// reg.
func NewBuilder(reg *typesystem.Registry, name string, opts ...Option) *Builder {
	return newBuilder(reg, name, nil, nil, newOptions(opts))
}

// NewTemplate starts a class template. The class is named after its
// parameters, e.g. "Box<@T>".
func NewTemplate(reg *typesystem.Registry, name string, params []Param, opts ...Option) *Builder {
	args := make([]*typesystem.Type, len(params))
	for i, p := range params {
		args[i] = p.Holder
	}
	return newBuilder(reg, name, params, args, newOptions(opts))
}

func newBuilder(reg *typesystem.Registry, base string, params []Param, args []*typesystem.Type, o options) *Builder {
	c := &Class{
		name:      instanceName(base, args),
		base:      base,
		reg:       reg,
		opts:      o,
		lookup:    make(map[string]Member),
		vtable:    make(map[*typesystem.Routine]*typesystem.Routine),
		params:    params,
		args:      args,
		instances: make(map[string]*Class),
	}
	c.objType = typesystem.NewDeclared(typesystem.KindObject, c, args)
	c.clsType = typesystem.NewClassOf(c.objType)
	c.ctors = typesystem.NewOverloads(base)
	return &Builder{c: c}
}

func instanceName(base string, args []*typesystem.Type) string {
	if len(args) == 0 {
		return base
	}
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.Name()
	}
	return base + "<" + strings.Join(names, ",") + ">"
}

// Class returns the class under construction. Its read methods reflect the
// current phase.
func (b *Builder) Class() *Class { return b.c }

// ObjectType returns the descriptor of the instances, for typing members
// that refer to the class itself.
func (b *Builder) ObjectType() *typesystem.Type { return b.c.objType }

func (b *Builder) Phase() Phase { return b.c.phase }

func (b *Builder) writable() error {
	if b.finished || b.c.phase == ObjectDerived {
		return ErrFinished
	}
	return nil
}

// AddSuper appends a class to the super list. alias, if not empty and
// different from the super's name, is declared as a private constant naming
// the super.
func (b *Builder) AddSuper(super *Class, alias string) error {
	if !super.Derived() {
		return diagnostics.New(diagnostics.CodeNotDerived, super.name, "")
	}
	return b.addSuper(Super{Class: super, Alias: alias})
}

// AddForeignSuper appends a foreign type to the super list.
func (b *Builder) AddForeignSuper(super *Foreign, alias string) error {
	return b.addSuper(Super{Foreign: super, Alias: alias})
}

func (b *Builder) addSuper(s Super) error {
	c := b.c
	if b.finished || c.phase != Open {
		return ErrNotOpen
	}
	if len(c.supers) >= c.opts.maxParents {
		c.opts.log.Warn("too many parents", "class", c.name, "super", s.Name(), "max", c.opts.maxParents)
		return diagnostics.New(diagnostics.CodeTooManyParents, c.name, s.Name())
	}
	c.supers = append(c.supers, s)
	return nil
}

func (c *Class) redeclared(d Decl, m Member) *diagnostics.Error {
	e := diagnostics.New(diagnostics.CodeRedeclared, c.name, d.Name).AtLine(d.Line)
	if t := c.slotType(m); t != nil {
		e.Want = t.Name()
	}
	return e
}

func (c *Class) slotType(m Member) *typesystem.Type {
	switch m.Storage {
	case ClassConst:
		return c.constants[m.Index].Value.Type
	case ClassVar:
		return c.variables[m.Index].Type
	}
	if m.Own() && c.phase < ObjectDerived {
		return c.own[m.Index].Type
	}
	return c.layout[m.Index].Type
}

// AddConst declares a class constant. A constant holding an overload set is
// a method group and merges like AddMethod.
func (b *Builder) AddConst(d Decl, v Value) error {
	if err := b.writable(); err != nil {
		return err
	}
	if o, ok := v.Overloads(); ok {
		for _, r := range o.Routines() {
			if err := b.AddMethod(d, r); err != nil {
				return err
			}
		}
		return nil
	}
	c := b.c
	if m, ok := c.lookup[d.Name]; ok && m.Own() {
		e := c.redeclared(d, m)
		if v.Type != nil {
			e.Got = v.Type.Name()
		}
		return e
	}
	c.lookup[d.Name] = Member{Storage: ClassConst, Permission: d.Permission, Index: len(c.constants)}
	c.constants = append(c.constants, &Constant{Name: d.Name, Value: v, Line: d.Line})
	return nil
}

// AddMethod declares a method. Same-named methods form one overload set; a
// method named like an inherited method group extends a local copy of it, and
// overrides compatible inherited virtual routines.
func (b *Builder) AddMethod(d Decl, r *typesystem.Routine) error {
	if err := b.writable(); err != nil {
		return err
	}
	c := b.c
	if r.Name == "" {
		r.Name = d.Name
	}
	if r.Host == nil {
		r.Host = c.objType
	}
	if r.Line == 0 {
		r.Line = d.Line
	}
	if d.Permission == Private {
		r.Attrib |= typesystem.RoutinePrivate
	}
	if m, ok := c.lookup[d.Name]; ok {
		if m.Storage == ClassConst {
			if o, isMethods := c.constants[m.Index].Value.Overloads(); isMethods {
				if m.Own() {
					o.Add(r)
					c.bindOverride(r)
					return nil
				}
				local := typesystem.NewOverloads(d.Name, o.Routines()...)
				local.Add(r)
				c.lookup[d.Name] = Member{Storage: ClassConst, Permission: d.Permission, Index: len(c.constants)}
				c.constants = append(c.constants, &Constant{Name: d.Name, Value: Value{Type: r.Type, Data: local}, Line: d.Line})
				c.bindOverride(r)
				return nil
			}
		}
		if m.Own() {
			e := c.redeclared(d, m)
			e.Got = r.Type.Name()
			return e
		}
	}
	set := typesystem.NewOverloads(d.Name, r)
	c.lookup[d.Name] = Member{Storage: ClassConst, Permission: d.Permission, Index: len(c.constants)}
	c.constants = append(c.constants, &Constant{Name: d.Name, Value: Value{Type: r.Type, Data: set}, Line: d.Line})
	c.bindOverride(r)
	return nil
}

// bindOverride points inherited virtual routines that r can replace at r.
func (c *Class) bindOverride(r *typesystem.Routine) {
	for virt := range c.vtable {
		if virt == r || virt.Name != r.Name || virt.Host == c.objType {
			continue
		}
		if typesystem.Match(r.Type, virt.Type, nil).AtLeast(typesystem.Subtype) {
			c.vtable[virt] = r
		}
	}
}

// AddClassVar declares a class variable of type t with initial value init.
// A nil t takes the type of init.
func (b *Builder) AddClassVar(d Decl, t *typesystem.Type, init Value) error {
	if err := b.writable(); err != nil {
		return err
	}
	c := b.c
	t, err := c.checkSlot(d, t, init)
	if err != nil {
		return err
	}
	c.lookup[d.Name] = Member{Storage: ClassVar, Permission: d.Permission, Index: len(c.variables)}
	c.variables = append(c.variables, &Variable{Name: d.Name, Type: t, Value: init, Line: d.Line})
	return nil
}

// AddInstanceVar declares an instance variable of type t with default value
// deflt.
func (b *Builder) AddInstanceVar(d Decl, t *typesystem.Type, deflt Value) error {
	if err := b.writable(); err != nil {
		return err
	}
	c := b.c
	t, err := c.checkSlot(d, t, deflt)
	if err != nil {
		return err
	}
	// Own instance variables are indexed locally until the layout is built.
	c.lookup[d.Name] = Member{Storage: InstanceVar, Permission: d.Permission, Index: len(c.own)}
	c.own = append(c.own, &Variable{Name: d.Name, Type: t, Value: deflt, Line: d.Line})
	return nil
}

func (c *Class) checkSlot(d Decl, t *typesystem.Type, v Value) (*typesystem.Type, error) {
	if m, ok := c.lookup[d.Name]; ok && m.Own() {
		e := c.redeclared(d, m)
		if t != nil {
			e.Got = t.Name()
		}
		return nil, e
	}
	if t == nil {
		return v.Type, nil
	}
	if v.Type != nil && !typesystem.Match(v.Type, t, nil).Accepts() {
		return nil, diagnostics.New(diagnostics.CodeTypeMismatch, c.name, d.Name).
			WithTypes(t.Name(), v.Type.Name()).AtLine(d.Line)
	}
	return t, nil
}

// AddConstructor adds a constructor overload.
func (b *Builder) AddConstructor(r *typesystem.Routine) error {
	if err := b.writable(); err != nil {
		return err
	}
	if r.Name == "" {
		r.Name = b.c.base
	}
	if r.Host == nil {
		r.Host = b.c.objType
	}
	r.Attrib |= typesystem.RoutineInitor
	b.c.ctors.Add(r)
	return nil
}

// GetMember is Class.GetMember on the class under construction.
func (b *Builder) GetMember(name string, requester *Class) (Value, error) {
	return b.c.GetMember(name, requester)
}

// Finish derives the class if needed and publishes its descriptors. The
// builder cannot be used afterwards.
func (b *Builder) Finish() (*Class, error) {
	if b.finished {
		return nil, ErrFinished
	}
	if err := b.DeriveObjectData(); err != nil {
		return nil, err
	}
	c := b.c
	if _, err := c.reg.Declare(c.objType); err != nil {
		return nil, err
	}
	c.clsType = c.reg.Intern(c.clsType.Name(), func() *typesystem.Type { return c.clsType })
	b.finished = true
	c.opts.log.Debug("class finished", "class", c.name, "members", len(c.lookup), "layout", len(c.layout))
	return c, nil
}
