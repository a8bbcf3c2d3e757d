package typesystem

import (
	"sort"
	"sync"
)

// RoutineAttrib flags a routine.
type RoutineAttrib uint8

const (
	RoutineVirtual RoutineAttrib = 1 << iota
	RoutinePrivate
	RoutineInitor // constructor
	RoutineStatic
)

// Routine is a callable member as seen by the type engine: a name, a routine
// type and the descriptor of the type hosting it. Bodies belong to the
// interpreter and are carried opaquely.
type Routine struct {
	Name   string
	Type   *Type
	Host   *Type
	Attrib RoutineAttrib
	Body   any
	Line   int
}

func (r *Routine) Is(a RoutineAttrib) bool { return r.Attrib&a != 0 }

// Signature identifies a routine within an overload set.
func (r *Routine) Signature() string {
	if r.Type == nil {
		return r.Name
	}
	return r.Name + " " + r.Type.name
}

// WithHost returns a copy of r hosted by host with type typ.
func (r *Routine) WithHost(host, typ *Type) *Routine {
	cp := *r
	cp.Host = host
	cp.Type = typ
	return &cp
}

// Overloads is a set of same-named routines. Adding is safe for concurrent
// use; the set never holds the same routine twice.
type Overloads struct {
	Name string

	mu       sync.RWMutex
	routines []*Routine
}

func NewOverloads(name string, rs ...*Routine) *Overloads {
	o := &Overloads{Name: name}
	for _, r := range rs {
		o.Add(r)
	}
	return o
}

// Add appends r unless it is already present. It reports whether r was added.
func (o *Overloads) Add(r *Routine) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, x := range o.routines {
		if x == r {
			return false
		}
	}
	o.routines = append(o.routines, r)
	return true
}

// Routines returns the members in insertion order.
func (o *Overloads) Routines() []*Routine {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*Routine, len(o.routines))
	copy(out, o.routines)
	return out
}

func (o *Overloads) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.routines)
}

// HostedBy returns the members declared by host itself.
func (o *Overloads) HostedBy(host *Type) []*Routine {
	var out []*Routine
	for _, r := range o.Routines() {
		if r.Host == host {
			out = append(out, r)
		}
	}
	return out
}

// Resolve returns the member whose type best accepts a call of type call, and
// the grade. Ties keep the earliest member. Each member is matched on a copy
// of b; only the bindings of the chosen member are copied back into b.
func (o *Overloads) Resolve(call *Type, b Bindings) (*Routine, Grade) {
	var best *Routine
	var bestBinds Bindings
	bestGrade := NoMatch
	for _, r := range o.Routines() {
		cb := b.Clone()
		if g := Match(call, r.Type, cb).clamp(); g > bestGrade {
			best, bestGrade, bestBinds = r, g, cb
		}
	}
	if b != nil {
		for k, v := range bestBinds {
			b[k] = v
		}
	}
	return best, bestGrade
}

// SortRoutines orders routines by name and signature and drops duplicates.
func SortRoutines(rs []*Routine) []*Routine {
	out := make([]*Routine, 0, len(rs))
	seen := make(map[string]bool)
	for _, r := range rs {
		sig := r.Signature()
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Signature() < out[j].Signature() })
	return out
}
