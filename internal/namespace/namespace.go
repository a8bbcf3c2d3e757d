// Package namespace ties a type registry to the classes, interfaces and
// foreign types declared in one scope. Namespaces nest: lookups fall back to
// the enclosing namespace, declarations are always local.
package namespace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/funvibe/typecore/internal/classes"
	"github.com/funvibe/typecore/internal/config"
	"github.com/funvibe/typecore/internal/ctxlog"
	"github.com/funvibe/typecore/internal/diagnostics"
	"github.com/funvibe/typecore/internal/typesystem"
)

// Namespace is a declaration scope.
type Namespace struct {
	Name  string
	Types *typesystem.Registry

	outer   *Namespace
	cfg     config.Config
	log     *slog.Logger
	out     io.Writer
	recheck func(*typesystem.Routine, typesystem.Bindings) error
	cache   *typesystem.MatchCache
	matcher *typesystem.Matcher

	mu         sync.RWMutex
	classes    map[string]*classes.Class
	interfaces map[string]*typesystem.Interface
	foreign    map[string]*classes.Foreign
}

// Option configures a root Namespace.
type Option func(*Namespace)

// WithConfig replaces config.Default().
func WithConfig(cfg config.Config) Option {
	return func(ns *Namespace) { ns.cfg = cfg }
}

// WithLogger sets the logger. It takes precedence over WithLogOutput.
func WithLogger(l *slog.Logger) Option {
	return func(ns *Namespace) { ns.log = l }
}

// WithLogOutput logs text records to w at the configured level.
func WithLogOutput(w io.Writer) Option {
	return func(ns *Namespace) { ns.out = w }
}

// WithRecheck installs the hook run on routines copied into template
// instances. See classes.WithRecheck.
func WithRecheck(fn func(*typesystem.Routine, typesystem.Bindings) error) Option {
	return func(ns *Namespace) { ns.recheck = fn }
}

// New creates a root namespace over a fresh root registry.
func New(name string, opts ...Option) *Namespace {
	ns := newNamespace(name, nil, typesystem.NewRootRegistry())
	ns.cfg = config.Default()
	for _, opt := range opts {
		opt(ns)
	}
	switch {
	case ns.log != nil:
	case ns.out != nil:
		ns.log = slog.New(slog.NewTextHandler(ns.out, &slog.HandlerOptions{Level: ns.cfg.SlogLevel()}))
	default:
		ns.log = slog.New(slog.DiscardHandler)
	}
	if ns.cfg.MatchCache {
		ns.cache = typesystem.NewMatchCache()
	}
	ns.matcher = typesystem.NewMatcher(ns.cache)
	ns.log = ns.log.With("namespace", name)
	return ns
}

// Load creates a root namespace configured from a YAML file.
func Load(path, name string, opts ...Option) (*Namespace, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(name, append([]Option{WithConfig(cfg)}, opts...)...), nil
}

func newNamespace(name string, outer *Namespace, reg *typesystem.Registry) *Namespace {
	return &Namespace{
		Name:       name,
		Types:      reg,
		outer:      outer,
		classes:    make(map[string]*classes.Class),
		interfaces: make(map[string]*typesystem.Interface),
		foreign:    make(map[string]*classes.Foreign),
	}
}

// Enclose returns a namespace nested in ns. It shares the configuration,
// logger and match cache of ns.
func (ns *Namespace) Enclose(name string) *Namespace {
	inner := newNamespace(name, ns, typesystem.NewRegistry(ns.Types))
	inner.cfg = ns.cfg
	inner.recheck = ns.recheck
	inner.cache = ns.cache
	inner.matcher = ns.matcher
	inner.log = ns.log.With("scope", name)
	return inner
}

func (ns *Namespace) Outer() *Namespace { return ns.outer }

func (ns *Namespace) Config() config.Config { return ns.cfg }

func (ns *Namespace) Logger() *slog.Logger { return ns.log }

// MatchCache returns the typing cache, nil when disabled.
func (ns *Namespace) MatchCache() *typesystem.MatchCache { return ns.cache }

func (ns *Namespace) classOptions() []classes.Option {
	opts := []classes.Option{
		classes.WithLogger(ns.log),
		classes.WithMaxParents(ns.cfg.MaxParents),
	}
	if ns.recheck != nil {
		opts = append(opts, classes.WithRecheck(ns.recheck))
	}
	return opts
}

// NewClass starts a class publishing into the namespace registry.
func (ns *Namespace) NewClass(name string) *classes.Builder {
	return classes.NewBuilder(ns.Types, name, ns.classOptions()...)
}

// NewTemplate starts a class template with one parameter per name. The
// parameters have no defaults.
func (ns *Namespace) NewTemplate(name string, params ...string) *classes.Builder {
	ps := make([]classes.Param, len(params))
	for i, p := range params {
		ps[i] = classes.Param{Holder: ns.Types.Holder(p)}
	}
	return classes.NewTemplate(ns.Types, name, ps, ns.classOptions()...)
}

// NewTemplateWithDefaults is NewTemplate with explicit parameters.
func (ns *Namespace) NewTemplateWithDefaults(name string, params []classes.Param) *classes.Builder {
	return classes.NewTemplate(ns.Types, name, params, ns.classOptions()...)
}

func (ns *Namespace) taken(name string) bool {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	_, c := ns.classes[name]
	_, i := ns.interfaces[name]
	_, f := ns.foreign[name]
	return c || i || f
}

// DefineClass finishes b and declares the class under its name.
func (ns *Namespace) DefineClass(b *classes.Builder) (*classes.Class, error) {
	name := b.Class().Name()
	if ns.taken(name) {
		return nil, fmt.Errorf("namespace %s: %w", ns.Name, diagnostics.New(diagnostics.CodeRedeclared, name, ""))
	}
	c, err := b.Finish()
	if err != nil {
		return nil, fmt.Errorf("namespace %s: %w", ns.Name, err)
	}
	ns.mu.Lock()
	ns.classes[name] = c
	ns.mu.Unlock()
	ns.log.Debug("class defined", "class", name, "template", c.Has(classes.TemplateClass))
	return c, nil
}

// DefineClassContext is DefineClass logging to the logger carried by ctx.
func (ns *Namespace) DefineClassContext(ctx context.Context, b *classes.Builder) (*classes.Class, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)
	c, err := ns.DefineClass(b)
	if err != nil {
		logger.Warn("class definition failed", "namespace", ns.Name, "class", b.Class().Name(), "error", err)
		return nil, err
	}
	logger.Debug("class defined", "namespace", ns.Name, "class", c.Name(), "layout", len(c.Layout()))
	return c, nil
}

// DefineInterface derives the methods of i and declares it.
func (ns *Namespace) DefineInterface(i *typesystem.Interface) error {
	name := i.DeclName()
	if ns.taken(name) {
		return diagnostics.New(diagnostics.CodeRedeclared, name, "")
	}
	i.DeriveMethods()
	if _, err := ns.Types.Declare(i.Type()); err != nil {
		return err
	}
	ns.mu.Lock()
	ns.interfaces[name] = i
	ns.mu.Unlock()
	ns.log.Debug("interface defined", "interface", name, "methods", len(i.Methods()))
	return nil
}

// NewForeign creates a foreign type bounded by the configured maximum
// number of supers. It is not declared until DefineForeign.
func (ns *Namespace) NewForeign(name string, supers ...*classes.Foreign) (*classes.Foreign, error) {
	return classes.NewForeign(name, ns.cfg.MaxForeignSupers, supers...)
}

// DefineForeign declares f.
func (ns *Namespace) DefineForeign(f *classes.Foreign) error {
	name := f.DeclName()
	if ns.taken(name) {
		return diagnostics.New(diagnostics.CodeRedeclared, name, "")
	}
	if _, err := ns.Types.Declare(f.Type()); err != nil {
		return err
	}
	ns.mu.Lock()
	ns.foreign[name] = f
	ns.mu.Unlock()
	return nil
}

// FindClass looks a class up in ns and its enclosing namespaces.
func (ns *Namespace) FindClass(name string) (*classes.Class, bool) {
	for s := ns; s != nil; s = s.outer {
		s.mu.RLock()
		c, ok := s.classes[name]
		s.mu.RUnlock()
		if ok {
			return c, true
		}
	}
	return nil, false
}

func (ns *Namespace) FindInterface(name string) (*typesystem.Interface, bool) {
	for s := ns; s != nil; s = s.outer {
		s.mu.RLock()
		i, ok := s.interfaces[name]
		s.mu.RUnlock()
		if ok {
			return i, true
		}
	}
	return nil, false
}

func (ns *Namespace) FindForeign(name string) (*classes.Foreign, bool) {
	for s := ns; s != nil; s = s.outer {
		s.mu.RLock()
		f, ok := s.foreign[name]
		s.mu.RUnlock()
		if ok {
			return f, true
		}
	}
	return nil, false
}

// Resolve looks a descriptor up by canonical name.
func (ns *Namespace) Resolve(name string) (*typesystem.Type, bool) {
	return ns.Types.Lookup(name)
}

// Instantiate instantiates the template class named name.
func (ns *Namespace) Instantiate(name string, args ...*typesystem.Type) (*classes.Class, error) {
	c, ok := ns.FindClass(name)
	if !ok {
		return nil, diagnostics.New(diagnostics.CodeUnresolved, name, "")
	}
	inst, err := c.InstantiateClass(args...)
	if err != nil {
		return nil, err
	}
	ns.log.Debug("instantiated", "template", name, "instance", inst.Name(), "cached", c.Instances())
	return inst, nil
}

// Match grades src against dst, using the typing cache when enabled.
func (ns *Namespace) Match(src, dst *typesystem.Type, b typesystem.Bindings) typesystem.Grade {
	return ns.matcher.Match(src, dst, b)
}

// Specialize substitutes b in t, interning into the namespace registry.
func (ns *Namespace) Specialize(t *typesystem.Type, b typesystem.Bindings) (*typesystem.Type, error) {
	return typesystem.Specialize(t, ns.Types, b)
}

// Bind checks that t satisfies i. On failure the returned error wraps
// diagnostics.ErrInterfaceUnsatisfied and the missing methods are listed.
func (ns *Namespace) Bind(t *typesystem.Type, i *typesystem.Interface) ([]diagnostics.MissingMethod, error) {
	ok, missing := i.BindReport(t)
	ns.log.Debug("interface bind", "type", t.Name(), "interface", i.DeclName(), "ok", ok, "missing", len(missing))
	if ok {
		return nil, nil
	}
	return missing, diagnostics.New(diagnostics.CodeInterfaceUnsatisfied, t.Name(), "").WithTypes(i.DeclName(), t.Name())
}
