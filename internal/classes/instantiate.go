package classes

import (
	"errors"
	"fmt"

	"github.com/funvibe/typecore/internal/diagnostics"
	"github.com/funvibe/typecore/internal/typesystem"
)

// ErrUnrelatedScopes is the cause of a failed instantiation whose arguments
// are declared in sibling scopes.
var ErrUnrelatedScopes = errors.New("classes: template arguments come from unrelated scopes")

// Instantiate returns the object descriptor of the instance of c's template
// for args. It implements typesystem.Template.
func (c *Class) Instantiate(args []*typesystem.Type, session *typesystem.Session) (*typesystem.Type, error) {
	inst, err := c.instantiate(args, session)
	if err != nil {
		return nil, err
	}
	return inst.objType, nil
}

// InstantiateClass returns the instance of c's template for args. Missing
// trailing arguments take the parameter default, or stay unbound. The
// instance and the descriptors built for it are published in the innermost
// of the template's scope and the arguments' scopes. Instances are cached
// per template and scope: concurrent and repeated requests for the same
// arguments yield the same class.
func (c *Class) InstantiateClass(args ...*typesystem.Type) (*Class, error) {
	return c.instantiate(args, nil)
}

func (c *Class) instantiate(args []*typesystem.Type, session *typesystem.Session) (*Class, error) {
	root := c
	if c.template != nil {
		root = c.template
	}
	if len(args) > len(root.params) {
		return nil, diagnostics.New(diagnostics.CodeTemplateArgs, root.name, "").
			WithTypes(root.name, instanceName(root.base, args))
	}
	if len(root.params) == 0 {
		return root, nil
	}
	if !root.Derived() {
		return nil, diagnostics.New(diagnostics.CodeNotDerived, root.name, "")
	}
	full := make([]*typesystem.Type, len(root.params))
	for i, p := range root.params {
		switch {
		case i < len(args) && args[i] != nil:
			full[i] = args[i]
		case p.Default != nil:
			full[i] = p.Default
		default:
			full[i] = p.Holder
		}
	}
	name := instanceName(root.base, full)
	if name == root.name {
		return root, nil
	}
	reg, err := root.scopeFor(full)
	if err != nil {
		return nil, err
	}
	key := instanceKey(name, reg)
	if t, ok := session.Inflight(key); ok {
		return t.Decl().(*Class), nil
	}

	root.mu.Lock()
	inst, ok := root.instances[key]
	root.mu.Unlock()
	if ok {
		return inst, nil
	}
	if session == nil {
		session = typesystem.NewSession()
	}
	v, err, _ := root.group.Do(key, func() (any, error) {
		root.mu.Lock()
		inst, ok := root.instances[key]
		root.mu.Unlock()
		if ok {
			return inst, nil
		}
		inst, err := root.build(name, key, reg, full, session)
		if err != nil {
			return nil, err
		}
		root.mu.Lock()
		root.instances[key] = inst
		root.mu.Unlock()
		return inst, nil
	})
	if err != nil {
		root.opts.log.Warn("template instantiation failed", "template", root.name, "instance", name, "error", err)
		return nil, err
	}
	return v.(*Class), nil
}

// scopeFor returns the registry an instance for args is published in.
func (root *Class) scopeFor(args []*typesystem.Type) (*typesystem.Registry, error) {
	regs := []*typesystem.Registry{root.reg}
	for _, a := range args {
		regs = append(regs, a.Registry())
	}
	reg, ok := typesystem.Innermost(regs...)
	if !ok {
		return nil, diagnostics.New(diagnostics.CodeTemplateArgs, root.name, "").
			WithTypes(root.name, instanceName(root.base, args)).
			WithCause(ErrUnrelatedScopes)
	}
	return reg, nil
}

// instanceKey identifies an instance by canonical name and scope.
func instanceKey(name string, reg *typesystem.Registry) string {
	return fmt.Sprintf("%s@%p", name, reg)
}

// Instances returns the number of cached instances of the template.
func (c *Class) Instances() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.instances)
}

// build copies the template's supers and own members into a new class with
// every parameter replaced by its argument.
func (root *Class) build(name, key string, reg *typesystem.Registry, args []*typesystem.Type, session *typesystem.Session) (*Class, error) {
	b := typesystem.Bindings{}
	for i, p := range root.params {
		if !typesystem.Match(args[i], p.Holder, b).Accepts() {
			return nil, diagnostics.New(diagnostics.CodeTemplateArgs, root.name, p.Holder.Name()).
				WithTypes(p.Holder.Name(), args[i].Name())
		}
	}

	nb := newBuilder(reg, root.base, root.params, args, root.opts)
	nc := nb.c
	nc.template = root
	session.Begin(key, nc.objType)
	defer session.End(key)

	sp := typesystem.NewSpecializer(reg, b, session)
	sp.Preset(root.objType, nc.objType)
	sp.Preset(root.clsType, nc.clsType)

	aliases := make(map[string]bool)
	for _, s := range root.supers {
		if s.Alias != "" {
			aliases[s.Alias] = true
		}
		if s.Foreign != nil {
			if err := nb.AddForeignSuper(s.Foreign, s.Alias); err != nil {
				return nil, err
			}
			continue
		}
		t, err := sp.Specialize(s.Class.objType)
		if err != nil {
			return nil, err
		}
		super, ok := t.Decl().(*Class)
		if !ok {
			return nil, diagnostics.New(diagnostics.CodeUnresolved, root.name, s.Name())
		}
		if err := nb.AddSuper(super, s.Alias); err != nil {
			return nil, err
		}
	}

	for _, nm := range root.orderedMembers() {
		if !nm.Own() {
			continue
		}
		d := Decl{Name: nm.name, Permission: nm.Permission}
		var err error
		switch nm.Storage {
		case ClassConst:
			cst := root.constants[nm.Index]
			if aliases[nm.name] {
				continue
			}
			d.Line = cst.Line
			err = root.copyConst(nb, d, cst.Value, sp, b)
		case ClassVar:
			v := root.variables[nm.Index]
			d.Line = v.Line
			err = root.copyVar(nb.AddClassVar, d, v, sp)
		}
		if err != nil {
			return nil, err
		}
	}
	for _, v := range root.own {
		m := root.lookup[v.Name]
		if err := root.copyVar(nb.AddInstanceVar, Decl{Name: v.Name, Permission: m.Permission, Line: v.Line}, v, sp); err != nil {
			return nil, err
		}
	}
	for _, r := range root.ctors.HostedBy(root.objType) {
		nr, err := root.rehost(r, nc.objType, sp, b)
		if err != nil {
			return nil, err
		}
		if err := nb.AddConstructor(nr); err != nil {
			return nil, err
		}
	}

	inst, err := nb.Finish()
	if err != nil {
		return nil, err
	}
	root.opts.log.Debug("template instantiated", "template", root.name, "instance", name)
	return inst, nil
}

func (root *Class) copyConst(nb *Builder, d Decl, v Value, sp *typesystem.Specializer, b typesystem.Bindings) error {
	if o, ok := v.Overloads(); ok {
		for _, r := range o.HostedBy(root.objType) {
			nr, err := root.rehost(r, nb.c.objType, sp, b)
			if err != nil {
				return err
			}
			if err := nb.AddMethod(d, nr); err != nil {
				return err
			}
		}
		return nil
	}
	nv, err := specializeValue(v, sp)
	if err != nil {
		return err
	}
	return nb.AddConst(d, nv)
}

func (root *Class) copyVar(add func(Decl, *typesystem.Type, Value) error, d Decl, v *Variable, sp *typesystem.Specializer) error {
	t, err := sp.Specialize(v.Type)
	if err != nil {
		return err
	}
	nv, err := specializeValue(v.Value, sp)
	if err != nil {
		return err
	}
	return add(d, t, nv)
}

// rehost copies r onto the instance and hands it to the recheck hook.
func (root *Class) rehost(r *typesystem.Routine, host *typesystem.Type, sp *typesystem.Specializer, b typesystem.Bindings) (*typesystem.Routine, error) {
	t, err := sp.Specialize(r.Type)
	if err != nil {
		return nil, err
	}
	nr := r.WithHost(host, t)
	if root.opts.recheck != nil {
		if err := root.opts.recheck(nr, b); err != nil {
			return nil, diagnostics.New(diagnostics.CodeTemplateArgs, root.name, r.Name).AtLine(r.Line).WithCause(err)
		}
	}
	return nr, nil
}

func specializeValue(v Value, sp *typesystem.Specializer) (Value, error) {
	t, err := sp.Specialize(v.Type)
	if err != nil {
		return Value{}, err
	}
	out := Value{Type: t, Data: v.Data}
	if dt, ok := v.Data.(*typesystem.Type); ok {
		if out.Data, err = sp.Specialize(dt); err != nil {
			return Value{}, err
		}
	}
	return out, nil
}
