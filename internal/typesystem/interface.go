package typesystem

import (
	"sync"

	"github.com/google/uuid"

	"github.com/funvibe/typecore/internal/diagnostics"
)

// Interface is a named set of required methods. Method types take the
// receiver as their first parameter, typed as the interface itself.
type Interface struct {
	ID uuid.UUID

	name   string
	supers []*Interface
	typ    *Type

	mu      sync.RWMutex
	methods map[string]*Overloads
	derived bool
}

// NewInterface creates an interface with the given super interfaces. Its
// descriptor is unpublished; declare it in a Registry to make it visible.
func NewInterface(name string, supers ...*Interface) *Interface {
	i := &Interface{
		ID:      uuid.New(),
		name:    name,
		supers:  append([]*Interface(nil), supers...),
		methods: make(map[string]*Overloads),
	}
	i.typ = newType(KindInterface, "", nil, nil, nil, i, 0)
	return i
}

func (i *Interface) DeclName() string { return i.name }

// Type returns the interface descriptor.
func (i *Interface) Type() *Type { return i.typ }

func (i *Interface) Supers() []*Interface {
	return append([]*Interface(nil), i.supers...)
}

func (i *Interface) Bases() []*Type {
	out := make([]*Type, len(i.supers))
	for k, s := range i.supers {
		out[k] = s.typ
	}
	return out
}

// AddMethod declares a required method. The routine is hosted by the
// interface.
func (i *Interface) AddMethod(r *Routine) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if r.Host == nil {
		r.Host = i.typ
	}
	o, ok := i.methods[r.Name]
	if !ok {
		o = NewOverloads(r.Name)
		i.methods[r.Name] = o
	}
	o.Add(r)
	i.derived = false
}

// DeriveMethods merges the methods of all super interfaces into the method
// table. It is idempotent.
func (i *Interface) DeriveMethods() {
	i.mu.Lock()
	if i.derived {
		i.mu.Unlock()
		return
	}
	i.mu.Unlock()
	for _, s := range i.supers {
		s.DeriveMethods()
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, s := range i.supers {
		for _, r := range s.Methods() {
			o, ok := i.methods[r.Name]
			if !ok {
				o = NewOverloads(r.Name)
				i.methods[r.Name] = o
			}
			o.Add(r)
		}
	}
	i.derived = true
}

func (i *Interface) FindMethods(name string) []*Routine {
	i.DeriveMethods()
	i.mu.RLock()
	defer i.mu.RUnlock()
	if o, ok := i.methods[name]; ok {
		return o.Routines()
	}
	return nil
}

// Methods returns every required method, inherited ones included, sorted by
// name and signature with duplicates removed.
func (i *Interface) Methods() []*Routine {
	i.DeriveMethods()
	i.mu.RLock()
	var all []*Routine
	for _, o := range i.methods {
		all = append(all, o.Routines()...)
	}
	i.mu.RUnlock()
	return SortRoutines(all)
}

// HasSuper reports whether o is a transitive super interface of i.
func (i *Interface) HasSuper(o *Interface) bool {
	for _, s := range i.supers {
		if s == o || s.HasSuper(o) {
			return true
		}
	}
	return false
}

// TryBind reports whether t provides every method of i. Results are memoized
// on t.
func (i *Interface) TryBind(t *Type) bool {
	return i.bind(t, newMatchState(nil), nil)
}

// BindReport is TryBind that also lists the methods t fails to provide.
func (i *Interface) BindReport(t *Type) (bool, []diagnostics.MissingMethod) {
	var missing []diagnostics.MissingMethod
	ok := i.bind(t, newMatchState(nil), &missing)
	return ok, missing
}

// Satisfies reports whether t is recorded as satisfying i, directly or
// through one of its supers.
func (t *Type) Satisfies(i *Interface) bool {
	return t.hasInterface(i, make(map[*Type]bool))
}

func (t *Type) hasInterface(i *Interface, seen map[*Type]bool) bool {
	if seen[t] {
		return false
	}
	seen[t] = true
	t.mu.Lock()
	_, ok := t.interfaces[i.ID]
	t.mu.Unlock()
	if ok {
		return true
	}
	if t.decl == nil {
		return false
	}
	for _, b := range t.decl.Bases() {
		if b.hasInterface(i, seen) {
			return true
		}
	}
	return false
}

func (t *Type) recordInterface(i *Interface) {
	t.mu.Lock()
	if t.interfaces == nil {
		t.interfaces = make(map[uuid.UUID]*Interface)
	}
	t.interfaces[i.ID] = i
	t.mu.Unlock()
	for _, s := range i.supers {
		t.recordInterface(s)
	}
}

// tempBind marks t as satisfying i and its supers for the rest of the
// check. It returns the pairs it added.
func (i *Interface) tempBind(t *Type, st *matchState, added []typePair) []typePair {
	key := typePair{t, i.typ}
	if !st.binds[key] {
		st.binds[key] = true
		added = append(added, key)
	}
	for _, s := range i.supers {
		added = s.tempBind(t, st, added)
	}
	return added
}

func (i *Interface) bind(t *Type, st *matchState, missing *[]diagnostics.MissingMethod) bool {
	if t == nil || t.decl == nil {
		return false
	}
	switch t.kind {
	case KindObject, KindForeign:
	default:
		return false
	}
	if t.Satisfies(i) {
		return true
	}
	outermost := len(st.binds) == 0
	added := i.tempBind(t, st, nil)
	ok := true
	for _, m := range i.Methods() {
		cands := t.decl.FindMethods(m.Name)
		if compatible(cands, m, st) {
			continue
		}
		ok = false
		if missing == nil {
			break
		}
		mm := diagnostics.MissingMethod{Interface: i.name, Method: m.Name, Want: m.Type.String()}
		for _, c := range cands {
			mm.Got = append(mm.Got, c.Type.String())
		}
		*missing = append(*missing, mm)
	}
	for _, k := range added {
		delete(st.binds, k)
	}
	// Nested successes may rest on tentative assumptions of an outer check,
	// so only the outermost result is recorded.
	if ok && outermost {
		t.recordInterface(i)
	}
	return ok
}

func compatible(cands []*Routine, want *Routine, st *matchState) bool {
	for _, c := range cands {
		if c.Type == nil {
			continue
		}
		if st.with(Bindings{}).match(c.Type, want.Type).AtLeast(Subtype) {
			return true
		}
	}
	return false
}
