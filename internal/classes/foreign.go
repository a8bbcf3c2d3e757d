package classes

import (
	"sort"
	"sync"

	"github.com/funvibe/typecore/internal/config"
	"github.com/funvibe/typecore/internal/diagnostics"
	"github.com/funvibe/typecore/internal/typesystem"
)

// Foreign is a type provided by native code. Its constant and method tables
// may be filled lazily by a setup hook, which runs once before the tables are
// first read.
type Foreign struct {
	// ZeroConstructible reports whether the type can be built without
	// arguments.
	ZeroConstructible bool

	name   string
	supers []*Foreign
	typ    *typesystem.Type

	once  sync.Once
	setup func(*Foreign)

	mu         sync.RWMutex
	valueNames []string
	values     map[string]Value
	methods    map[string]*typesystem.Overloads
}

// NewForeign creates a foreign type. At most max supers are accepted; a
// non-positive max means config.DefaultMaxForeignSupers.
func NewForeign(name string, max int, supers ...*Foreign) (*Foreign, error) {
	if max <= 0 {
		max = config.DefaultMaxForeignSupers
	}
	if len(supers) > max {
		return nil, diagnostics.New(diagnostics.CodeTooManyParents, name, "")
	}
	f := &Foreign{
		name:    name,
		supers:  append([]*Foreign(nil), supers...),
		values:  make(map[string]Value),
		methods: make(map[string]*typesystem.Overloads),
	}
	f.typ = typesystem.NewDeclared(typesystem.KindForeign, f, nil)
	return f, nil
}

// OnSetup installs the hook that populates the tables. It has no effect once
// the tables were read.
func (f *Foreign) OnSetup(fn func(*Foreign)) {
	f.setup = fn
}

// Setup runs the setup hook once.
func (f *Foreign) Setup() {
	f.once.Do(func() {
		if f.setup != nil {
			f.setup(f)
		}
	})
}

func (f *Foreign) DeclName() string { return f.name }

// Type returns the descriptor of the foreign type.
func (f *Foreign) Type() *typesystem.Type { return f.typ }

func (f *Foreign) Supers() []*Foreign {
	return append([]*Foreign(nil), f.supers...)
}

func (f *Foreign) Bases() []*typesystem.Type {
	out := make([]*typesystem.Type, len(f.supers))
	for i, s := range f.supers {
		out[i] = s.typ
	}
	return out
}

// AddValue adds a named constant. Later values with the same name are
// ignored.
func (f *Foreign) AddValue(name string, v Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[name]; ok {
		return
	}
	f.valueNames = append(f.valueNames, name)
	f.values[name] = v
}

// AddMethod adds a method hosted by the foreign type.
func (f *Foreign) AddMethod(r *typesystem.Routine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Host == nil {
		r.Host = f.typ
	}
	o, ok := f.methods[r.Name]
	if !ok {
		o = typesystem.NewOverloads(r.Name)
		f.methods[r.Name] = o
	}
	o.Add(r)
}

type namedValue struct {
	name  string
	value Value
}

func (f *Foreign) valueList() []namedValue {
	f.Setup()
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]namedValue, len(f.valueNames))
	for i, n := range f.valueNames {
		out[i] = namedValue{n, f.values[n]}
	}
	return out
}

func (f *Foreign) methodList() []*typesystem.Overloads {
	f.Setup()
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*typesystem.Overloads, 0, len(f.methods))
	for _, o := range f.methods {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Value returns a constant of the type or of one of its supers.
func (f *Foreign) Value(name string) (Value, bool) {
	f.Setup()
	f.mu.RLock()
	v, ok := f.values[name]
	f.mu.RUnlock()
	if ok {
		return v, true
	}
	for _, s := range f.supers {
		if v, ok := s.Value(name); ok {
			return v, true
		}
	}
	return Value{}, false
}

// FindMethods returns the methods named name, searching supers when the type
// itself has none.
func (f *Foreign) FindMethods(name string) []*typesystem.Routine {
	f.Setup()
	f.mu.RLock()
	o, ok := f.methods[name]
	f.mu.RUnlock()
	if ok {
		return o.Routines()
	}
	for _, s := range f.supers {
		if rs := s.FindMethods(name); rs != nil {
			return rs
		}
	}
	return nil
}
