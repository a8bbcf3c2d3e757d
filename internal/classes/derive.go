package classes

import (
	"sort"

	"github.com/funvibe/typecore/internal/config"
	"github.com/funvibe/typecore/internal/typesystem"
)

// ancestor is an entry of the breadth-first walk over a class's supers. For
// classes, offset is the start of the ancestor's block in the instance
// layout of the class being derived.
type ancestor struct {
	class   *Class
	foreign *Foreign
	offset  int
}

// ancestors walks the super graph breadth first. The class itself comes
// first; an ancestor reachable along several paths appears once per path.
func (c *Class) ancestors() []ancestor {
	out := []ancestor{{class: c}}
	for i := 0; i < len(out); i++ {
		a := out[i]
		if a.class == nil {
			for _, s := range a.foreign.supers {
				out = append(out, ancestor{foreign: s})
			}
			continue
		}
		off := a.offset
		for _, s := range a.class.supers {
			out = append(out, ancestor{class: s.Class, foreign: s.Foreign, offset: off})
			if s.Class != nil {
				off += len(s.Class.layout)
			}
		}
	}
	return out
}

type namedMember struct {
	name string
	Member
}

// orderedMembers returns the lookup table ordered by storage and slot.
func (c *Class) orderedMembers() []namedMember {
	out := make([]namedMember, 0, len(c.lookup))
	for n, m := range c.lookup {
		out = append(out, namedMember{n, m})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Storage != b.Storage {
			return a.Storage > b.Storage
		}
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.name < b.name
	})
	return out
}

// DeriveClassData merges the inherited constants, class variables and
// methods into the lookup table. Private members are never imported and
// names the class declares itself are never overwritten. It is idempotent.
func (b *Builder) DeriveClassData() error {
	if b.finished {
		return ErrFinished
	}
	c := b.c
	if c.phase >= ClassDerived {
		return nil
	}
	c.addAliases()
	anc := c.ancestors()
	for i := 1; i < len(anc); i++ {
		if a := anc[i]; a.class != nil {
			c.inheritClass(i, a.class)
		} else {
			c.inheritForeign(i, a.foreign)
		}
	}
	for _, nm := range c.orderedMembers() {
		if nm.Storage != ClassConst || !nm.Own() {
			continue
		}
		if o, ok := c.constants[nm.Index].Value.Overloads(); ok {
			for _, r := range o.HostedBy(c.objType) {
				c.bindOverride(r)
			}
		}
	}
	c.phase = ClassDerived
	c.opts.log.Debug("class data derived", "class", c.name, "ancestors", len(anc)-1, "constants", len(c.constants))
	return nil
}

func (c *Class) addAliases() {
	for _, s := range c.supers {
		if s.Alias == "" || s.Alias == s.Name() {
			continue
		}
		if _, ok := c.lookup[s.Alias]; ok {
			continue
		}
		v := Value{Type: s.Type()}
		if s.Class != nil {
			v = Value{Type: s.Class.clsType, Data: s.Class}
		} else {
			v.Data = s.Foreign
		}
		c.lookup[s.Alias] = Member{Storage: ClassConst, Permission: Private, Index: len(c.constants)}
		c.constants = append(c.constants, &Constant{Name: s.Alias, Value: v})
	}
}

func (c *Class) inheritClass(super int, k *Class) {
	for virt, target := range k.vtable {
		if _, ok := c.vtable[virt]; !ok {
			c.vtable[virt] = target
		}
	}
	for _, nm := range k.orderedMembers() {
		if nm.Permission == Private || nm.Storage == InstanceVar {
			continue
		}
		existing, has := c.lookup[nm.name]
		switch nm.Storage {
		case ClassConst:
			cst := k.constants[nm.Index]
			src, isMethods := cst.Value.Overloads()
			if has {
				if !isMethods || existing.Storage != ClassConst {
					continue
				}
				if dst, ok := c.constants[existing.Index].Value.Overloads(); ok {
					c.mergeHosted(dst, src, k.objType)
				}
				continue
			}
			if isMethods {
				dst := typesystem.NewOverloads(nm.name)
				c.mergeHosted(dst, src, k.objType)
				cst = &Constant{Name: cst.Name, Value: Value{Type: cst.Value.Type, Data: dst}, Line: cst.Line}
			}
			c.lookup[nm.name] = Member{Storage: ClassConst, Permission: nm.Permission, Super: super, Index: len(c.constants)}
			c.constants = append(c.constants, cst)
		case ClassVar:
			if has {
				continue
			}
			c.lookup[nm.name] = Member{Storage: ClassVar, Permission: nm.Permission, Super: super, Index: len(c.variables)}
			c.variables = append(c.variables, k.variables[nm.Index])
		}
	}
}

// mergeHosted adds the non-private routines of src declared by host itself.
func (c *Class) mergeHosted(dst, src *typesystem.Overloads, host *typesystem.Type) {
	for _, r := range src.HostedBy(host) {
		if r.Is(typesystem.RoutinePrivate) {
			continue
		}
		dst.Add(r)
		if r.Is(typesystem.RoutineVirtual) {
			if _, ok := c.vtable[r]; !ok {
				c.vtable[r] = r
			}
		}
	}
}

func (c *Class) inheritForeign(super int, f *Foreign) {
	for _, nv := range f.valueList() {
		if _, ok := c.lookup[nv.name]; ok {
			continue
		}
		c.lookup[nv.name] = Member{Storage: ClassConst, Permission: Public, Super: super, Index: len(c.constants)}
		c.constants = append(c.constants, &Constant{Name: nv.name, Value: nv.value})
	}
	for _, o := range f.methodList() {
		var rs []*typesystem.Routine
		for _, r := range o.HostedBy(f.typ) {
			if !r.Is(typesystem.RoutineInitor) {
				rs = append(rs, r)
			}
		}
		if len(rs) == 0 {
			continue
		}
		if m, ok := c.lookup[o.Name]; ok {
			if m.Storage != ClassConst {
				continue
			}
			if dst, isMethods := c.constants[m.Index].Value.Overloads(); isMethods {
				for _, r := range rs {
					dst.Add(r)
				}
			}
			continue
		}
		dst := typesystem.NewOverloads(o.Name, rs...)
		c.lookup[o.Name] = Member{Storage: ClassConst, Permission: Public, Super: super, Index: len(c.constants)}
		c.constants = append(c.constants, &Constant{Name: o.Name, Value: Value{Type: rs[0].Type, Data: dst}})
	}
}

// DeriveObjectData lays out the instance variables: the layouts of the
// direct supers in order, then the class's own variables. Inherited
// non-private variables are entered into the lookup table at their offset
// unless the name is taken. The class attributes and its default instance
// are computed last. Only the first call has an effect.
func (b *Builder) DeriveObjectData() error {
	c := b.c
	if c.phase == ObjectDerived {
		return nil
	}
	if err := b.DeriveClassData(); err != nil {
		return err
	}
	var layout []*Variable
	for _, s := range c.supers {
		if s.Class != nil {
			layout = append(layout, s.Class.layout...)
		}
	}
	c.inherited = len(layout)
	for name, m := range c.lookup {
		if m.Storage == InstanceVar && m.Own() {
			m.Index += c.inherited
			c.lookup[name] = m
		}
	}
	c.layout = append(layout, c.own...)

	anc := c.ancestors()
	for i := 1; i < len(anc); i++ {
		k := anc[i].class
		if k == nil {
			continue
		}
		for j, v := range k.own {
			m, ok := k.lookup[v.Name]
			if !ok || m.Storage != InstanceVar || !m.Own() || m.Permission == Private {
				continue
			}
			if _, taken := c.lookup[v.Name]; taken {
				continue
			}
			c.lookup[v.Name] = Member{
				Storage:    InstanceVar,
				Permission: m.Permission,
				Super:      i,
				Index:      anc[i].offset + k.inherited + j,
			}
		}
	}
	c.resetAttributes()
	c.buildDefault()
	c.phase = ObjectDerived
	c.opts.log.Debug("object data derived", "class", c.name, "layout", len(c.layout), "inherited", c.inherited)
	return nil
}

func (c *Class) resetAttributes() {
	auto := true
	for _, r := range c.ctors.Routines() {
		if !allDefaulted(r.Type) {
			auto = false
		}
	}
	for _, s := range c.supers {
		switch {
		case s.Class != nil && !s.Class.Has(AutoDefault):
			auto = false
		case s.Foreign != nil && !s.Foreign.ZeroConstructible:
			auto = false
		}
	}
	if auto {
		c.attrib |= AutoDefault
	}
	if c.objType.Unbound() {
		c.attrib |= TemplateClass
	}
	c.operators = 0
	for i, op := range config.OperatorMethodNames {
		m, ok := c.lookup[op]
		if !ok || m.Storage != ClassConst {
			continue
		}
		if _, isMethods := c.constants[m.Index].Value.Overloads(); isMethods {
			c.operators |= 1 << uint(i)
		}
	}
}

func allDefaulted(t *typesystem.Type) bool {
	if t == nil {
		return true
	}
	for i := 0; i < t.Len(); i++ {
		if t.At(i).Kind() != typesystem.KindDefault {
			return false
		}
	}
	return true
}

func (c *Class) buildDefault() {
	fields := make([]Value, len(c.layout))
	for i, v := range c.layout {
		if v.Value.Type != nil || v.Value.Data != nil {
			fields[i] = v.Value
			continue
		}
		fields[i] = Value{Type: v.Type}
		if v.Type != nil {
			fields[i].Data, _ = v.Type.Default()
		}
	}
	c.dflt = &Object{class: c, fields: fields}
	c.objType.SetDefault(c.dflt)
}
