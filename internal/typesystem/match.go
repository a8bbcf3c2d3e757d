package typesystem

import "sync"

// MatchCache memoizes grades of fully resolved, interface-free pairs. It is
// safe for concurrent use.
type MatchCache struct {
	m sync.Map
}

func NewMatchCache() *MatchCache {
	return &MatchCache{}
}

func (c *MatchCache) get(s, d *Type) (Grade, bool) {
	v, ok := c.m.Load(typePair{s, d})
	if !ok {
		return NoMatch, false
	}
	return v.(Grade), true
}

func (c *MatchCache) put(s, d *Type, g Grade) {
	c.m.Store(typePair{s, d}, g)
}

// Len returns the number of cached pairs.
func (c *MatchCache) Len() int {
	n := 0
	c.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func cacheable(s, d *Type) bool {
	const skip = AttrUnbound | AttrInterface
	return s.attrib&skip == 0 && d.attrib&skip == 0
}

// Matcher decides type compatibility. The zero value and nil are usable and
// do not cache.
type Matcher struct {
	cache *MatchCache
}

func NewMatcher(cache *MatchCache) *Matcher {
	return &Matcher{cache: cache}
}

// Match grades src against dst without a cache. b receives the bindings of
// type variables made along the way; when b is nil bindings are still kept
// consistent within the call but discarded afterwards.
func Match(src, dst *Type, b Bindings) Grade {
	return (*Matcher)(nil).Match(src, dst, b)
}

// Match grades src against dst. The result is never one of the exact-like
// markers; see Grade.
func (m *Matcher) Match(src, dst *Type, b Bindings) Grade {
	st := newMatchState(b)
	if m != nil {
		st.cache = m.cache
	}
	return st.match(src, dst).clamp()
}

// typePair represents a pair of types being compared for co-induction
type typePair struct {
	src *Type
	dst *Type
}

type matchState struct {
	b     Bindings
	cache *MatchCache
	// stack holds the pairs being compared; a pair met again is assumed to
	// match.
	stack map[typePair]bool
	// binds holds tentative (type, interface) satisfactions.
	binds map[typePair]bool
}

func newMatchState(b Bindings) *matchState {
	if b == nil {
		b = Bindings{}
	}
	return &matchState{
		b:     b,
		stack: make(map[typePair]bool),
		binds: make(map[typePair]bool),
	}
}

// with returns a state sharing the recursion bookkeeping of st but binding
// into b.
func (st *matchState) with(b Bindings) *matchState {
	return &matchState{b: b, cache: st.cache, stack: st.stack, binds: st.binds}
}

func (st *matchState) match(s, d *Type) Grade {
	if s == nil || d == nil {
		return NoMatch
	}
	if s == d {
		return Exact
	}
	useCache := st.cache != nil && cacheable(s, d)
	if useCache {
		if g, ok := st.cache.get(s, d); ok {
			return g
		}
	}
	key := typePair{s, d}
	if st.stack[key] {
		return Exact
	}
	st.stack[key] = true
	g := st.dispatch(s, d)
	delete(st.stack, key)
	if useCache {
		st.cache.put(s, d, g)
	}
	return g
}

func (st *matchState) dispatch(s, d *Type) Grade {
	if s.kind.IsVariable() || d.kind.IsVariable() {
		return st.matchVariable(s, d)
	}
	if d.kind == KindAny {
		if s.kind == KindAny {
			return Exact
		}
		return Any
	}
	if s.kind == KindAny {
		return NoMatch
	}
	switch kindRule(s.kind, d.kind) {
	case Similar:
		return Similar
	case Exact:
		return Exact
	case ExactNamed:
		return st.matchParam(s, d, KindNone)
	case ExactWrapped:
		return st.matchStructure(s, d)
	}
	return NoMatch
}

// kindRule is the precedence table over pairs of kinds. Exact-like markers
// select the structural rule that decides the final grade.
func kindRule(sk, dk Kind) Grade {
	switch {
	case sk == KindVariant || dk == KindVariant:
		return ExactWrapped
	case dk == KindInterface:
		switch sk {
		case KindObject, KindForeign, KindInterface:
			return ExactWrapped
		}
		return NoMatch
	case sk.IsWrapper() || dk.IsWrapper():
		return ExactNamed
	case sk == dk:
		if sk.IsPrimitive() {
			return Exact
		}
		return ExactWrapped
	case sk.IsNumeric() && dk.IsNumeric():
		return Similar
	case sk == KindObject && dk == KindForeign:
		return ExactWrapped
	}
	return NoMatch
}

func (st *matchState) matchVariable(s, d *Type) Grade {
	if s.kind.IsVariable() {
		if t, ok := st.b.Lookup(s); ok && t != s {
			return st.match(t, d)
		}
	}
	if d.kind.IsVariable() {
		if t, ok := st.b.Lookup(d); ok && t != d {
			return st.match(s, t)
		}
	}
	switch {
	case s.kind.IsVariable() && d.kind.IsVariable():
		st.b.Bind(d, s)
		return AnyUnbound
	case d.kind.IsVariable():
		if !st.b.Bind(d, s.Inner()) {
			return NoMatch
		}
		if s.kind == KindAny {
			return AnyUnbound
		}
		return Unbound
	}
	if !st.b.Bind(s, d.Inner()) {
		return NoMatch
	}
	if d.kind == KindAny {
		return AnyUnbound
	}
	return Unbound
}

// matchParam compares a parameter or field of a container of kind host.
// KindNone means a top-level comparison.
func (st *matchState) matchParam(s, d *Type, host Kind) Grade {
	sw, dw := s.kind.IsWrapper(), d.kind.IsWrapper()
	if sw && dw && s.field != d.field {
		return NoMatch
	}
	switch host {
	case KindTuple:
	case KindRoutine:
		if d.kind == KindDefault && s.kind != KindDefault {
			return NoMatch
		}
	case KindNone:
		if dw && !sw {
			return NoMatch
		}
	default:
		if sw != dw {
			return NoMatch
		}
	}
	g := st.match(s.Inner(), d.Inner())
	// A named source field keeps its grade against an unnamed target field.
	if host == KindTuple && g.clamp() == Exact && dw && !sw {
		return Subtype
	}
	return g
}

func (st *matchState) matchStructure(s, d *Type) Grade {
	switch {
	case d.kind == KindVariant:
		if s.kind == KindVariant {
			g := Exact
			for _, alt := range s.nested {
				k := st.matchToVariant(alt, d)
				if !k.Accepts() {
					return NoMatch
				}
				g = minGrade(g, k)
			}
			return g
		}
		return st.matchToVariant(s, d)
	case s.kind == KindVariant:
		return st.best(s.nested, func(alt *Type) []*Type { return []*Type{alt, d} })
	case d.kind == KindInterface:
		return st.matchInterface(s, d)
	}
	switch s.kind {
	case KindRoutine:
		return st.matchRoutine(s, d)
	case KindClass, KindObject, KindForeign:
		return st.matchDeclared(s, d)
	}
	if s.kind.IsContainer() {
		return st.matchContainer(s, d)
	}
	return NoMatch
}

func (st *matchState) matchToVariant(s, d *Type) Grade {
	return st.best(d.nested, func(alt *Type) []*Type { return []*Type{s, alt} })
}

// best tries each candidate pair on a copy of the bindings and keeps the
// bindings of the best grade.
func (st *matchState) best(cands []*Type, pair func(*Type) []*Type) Grade {
	bestGrade := NoMatch
	var bestBinds Bindings
	for _, c := range cands {
		p := pair(c)
		b := st.b.Clone()
		g := st.with(b).match(p[0], p[1]).clamp()
		if g > bestGrade {
			bestGrade, bestBinds = g, b
		}
	}
	for k, v := range bestBinds {
		st.b[k] = v
	}
	return bestGrade
}

func (st *matchState) matchContainer(s, d *Type) Grade {
	switch {
	case s.Empty() && d.Empty():
		return Exact
	case s.Empty():
		return Subtype
	case d.Empty():
		return NoMatch
	case len(d.nested) == 0:
		return Subtype
	case len(s.nested) != len(d.nested):
		return NoMatch
	}
	g := Exact
	for i := range s.nested {
		k := st.matchParam(s.nested[i], d.nested[i], s.kind)
		if !k.Accepts() {
			return NoMatch
		}
		g = minGrade(g, k.clamp())
	}
	return g
}

func (st *matchState) matchRoutine(s, d *Type) Grade {
	if s.Has(AttrCoroutine) != d.Has(AttrCoroutine) {
		return NoMatch
	}
	if len(d.nested) == 0 && d.aux == nil && d.cb == nil {
		return Subtype
	}
	if (s.cb == nil) != (d.cb == nil) {
		return NoMatch
	}
	g := Exact
	if s.cb != nil {
		k := st.match(s.cb, d.cb)
		if !k.Accepts() {
			return NoMatch
		}
		g = minGrade(g, k.clamp())
	}
	if len(s.nested) < len(d.nested) {
		return NoMatch
	}
	for _, extra := range s.nested[len(d.nested):] {
		if extra.kind != KindDefault {
			return NoMatch
		}
	}
	if len(s.nested) > len(d.nested) {
		g = minGrade(g, Subtype)
	}
	for i := range d.nested {
		k := st.matchParam(s.nested[i], d.nested[i], KindRoutine)
		if !k.Accepts() {
			return NoMatch
		}
		g = minGrade(g, k.clamp())
	}
	if d.aux != nil {
		if s.aux == nil {
			return NoMatch
		}
		k := st.match(s.aux, d.aux)
		if !k.Accepts() {
			return NoMatch
		}
		g = minGrade(g, k.clamp())
	}
	return g
}

func (st *matchState) matchDeclared(s, d *Type) Grade {
	if (s.kind == KindClass) != (d.kind == KindClass) {
		return NoMatch
	}
	if s.decl == d.decl {
		return Exact
	}
	if g := st.matchTemplate(s, d); g.Accepts() {
		return g
	}
	return st.matchAncestors(s, d)
}

// matchAncestors walks the supers of s breadth first.
func (st *matchState) matchAncestors(s, d *Type) Grade {
	seen := make(map[Declared]bool)
	queue := []Declared{s.decl}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == nil || seen[cur] {
			continue
		}
		seen[cur] = true
		for _, base := range cur.Bases() {
			if base.decl == d.decl {
				return Subtype
			}
			if g := st.matchTemplate(base, d); g.Accepts() {
				return minGrade(g, Subtype)
			}
			queue = append(queue, base.decl)
		}
	}
	return NoMatch
}

// matchTemplate matches two instances of the same template argument-wise.
// Arguments are invariant unless the target argument is a variable.
func (st *matchState) matchTemplate(s, d *Type) Grade {
	sd, ok1 := s.decl.(Template)
	dd, ok2 := d.decl.(Template)
	if !ok1 || !ok2 || sd.Origin() != dd.Origin() {
		return NoMatch
	}
	if len(s.nested) == 0 || len(s.nested) != len(d.nested) {
		return NoMatch
	}
	g := Subtype
	for i, arg := range s.nested {
		par := d.nested[i]
		k := st.match(arg, par).clamp()
		if !k.Accepts() || (!par.kind.IsVariable() && k < Exact) {
			return NoMatch
		}
		g = minGrade(g, k)
	}
	return g
}

func (st *matchState) matchInterface(s, d *Type) Grade {
	iface, ok := d.decl.(*Interface)
	if !ok {
		return NoMatch
	}
	if s.kind == KindInterface {
		if s.decl == d.decl {
			return Exact
		}
		if si, ok := s.decl.(*Interface); ok && si.HasSuper(iface) {
			return Subtype
		}
		return NoMatch
	}
	if st.binds[typePair{s, d}] {
		return Subtype
	}
	if iface.bind(s, st, nil) {
		return Subtype
	}
	return NoMatch
}
