package typesystem

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/typecore/internal/diagnostics"
)

type shapes struct {
	r     *Registry
	named *Interface
	shape *Interface
}

func newShapes(t *testing.T) shapes {
	t.Helper()
	r := NewRootRegistry()
	named := NewInterface("Named")
	named.AddMethod(&Routine{Name: "name", Type: r.Routine([]*Type{named.Type()}, r.StringType())})
	shape := NewInterface("Shape", named)
	shape.AddMethod(&Routine{Name: "area", Type: r.Routine([]*Type{shape.Type()}, r.Double())})
	for _, i := range []*Interface{named, shape} {
		_, err := r.Declare(i.Type())
		require.NoError(t, err)
	}
	return shapes{r: r, named: named, shape: shape}
}

// object declares a type with one method per name -> return type pair.
func (s shapes) object(t *testing.T, name string, methods map[string]*Type) *Type {
	t.Helper()
	typ, d := declare(t, s.r, name)
	for m, ret := range methods {
		d.methods[m] = []*Routine{{Name: m, Type: s.r.Routine([]*Type{typ}, ret), Host: typ}}
	}
	return typ
}

func TestInterfaceMethods(t *testing.T) {
	s := newShapes(t)
	got := s.shape.Methods()
	require.Len(t, got, 2)
	want := []string{"area routine<Shape=>double>", "name routine<Named=>string>"}
	sigs := []string{got[0].Signature(), got[1].Signature()}
	if diff := cmp.Diff(want, sigs); diff != "" {
		t.Errorf("Methods mismatch (-want +got):\n%s", diff)
	}
	assert.Same(t, s.named.Type(), got[1].Host)
	assert.Equal(t, s.shape.Methods(), got, "method order is stable")
	assert.Len(t, s.shape.FindMethods("name"), 1)
	assert.Nil(t, s.shape.FindMethods("perimeter"))
	assert.True(t, s.shape.HasSuper(s.named))
	assert.False(t, s.named.HasSuper(s.shape))
}

func TestTryBind(t *testing.T) {
	s := newShapes(t)
	circle := s.object(t, "Circle", map[string]*Type{"area": s.r.Double(), "name": s.r.StringType()})

	assert.False(t, circle.Satisfies(s.shape))
	assert.True(t, s.shape.TryBind(circle))
	assert.True(t, circle.Satisfies(s.shape))
	assert.True(t, circle.Satisfies(s.named), "supers are recorded too")
	assert.True(t, s.shape.TryBind(circle), "memoized")

	assert.Equal(t, Subtype, Match(circle, s.shape.Type(), nil))
	assert.Equal(t, Subtype, Match(circle, s.named.Type(), nil))
	assert.Equal(t, NoMatch, Match(s.shape.Type(), circle, nil))
}

func TestTryBindThroughBase(t *testing.T) {
	s := newShapes(t)
	circle := s.object(t, "Circle", map[string]*Type{"area": s.r.Double(), "name": s.r.StringType()})
	require.True(t, s.shape.TryBind(circle))
	ring, _ := declare(t, s.r, "Ring", circle)
	assert.True(t, ring.Satisfies(s.shape))
	assert.Equal(t, Subtype, Match(ring, s.shape.Type(), nil))
}

func TestBindReport(t *testing.T) {
	s := newShapes(t)
	tests := []struct {
		name    string
		typ     string
		methods map[string]*Type
		want    []diagnostics.MissingMethod
	}{
		{
			name:    "missing method",
			typ:     "Square",
			methods: map[string]*Type{"name": s.r.StringType()},
			want: []diagnostics.MissingMethod{
				{Interface: "Shape", Method: "area", Want: "routine<Shape=>double>"},
			},
		},
		{
			name:    "incompatible return",
			typ:     "Blob",
			methods: map[string]*Type{"area": s.r.StringType(), "name": s.r.StringType()},
			want: []diagnostics.MissingMethod{
				{Interface: "Shape", Method: "area", Want: "routine<Shape=>double>", Got: []string{"routine<Blob=>string>"}},
			},
		},
		{
			name:    "inherited method incompatible",
			typ:     "Dot",
			methods: map[string]*Type{"area": s.r.Int(), "name": s.r.Bool()},
			want: []diagnostics.MissingMethod{
				{Interface: "Shape", Method: "name", Want: "routine<Named=>string>", Got: []string{"routine<Dot=>bool>"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ := s.object(t, tt.typ, tt.methods)
			ok, missing := s.shape.BindReport(typ)
			assert.False(t, ok)
			if diff := cmp.Diff(tt.want, missing); diff != "" {
				t.Errorf("missing methods mismatch (-want +got):\n%s", diff)
			}
			assert.False(t, typ.Satisfies(s.shape), "failed binds are not recorded")
			assert.False(t, typ.Satisfies(s.named))
		})
	}
}

func TestBindAcceptsSimilarReturn(t *testing.T) {
	s := newShapes(t)
	disc := s.object(t, "Disc", map[string]*Type{"area": s.r.Int(), "name": s.r.StringType()})
	assert.True(t, s.shape.TryBind(disc))
}

func TestBindRejectsNonObjects(t *testing.T) {
	s := newShapes(t)
	assert.False(t, s.shape.TryBind(s.r.Int()))
	assert.False(t, s.shape.TryBind(nil))
	assert.Equal(t, NoMatch, Match(s.r.List(s.r.Int()), s.shape.Type(), nil))
}

func TestInterfaceToInterface(t *testing.T) {
	s := newShapes(t)
	assert.Equal(t, Subtype, Match(s.shape.Type(), s.named.Type(), nil))
	assert.Equal(t, NoMatch, Match(s.named.Type(), s.shape.Type(), nil))
	assert.Equal(t, Exact, Match(s.shape.Type(), s.shape.Type(), nil))
}

func TestBindSelfReferential(t *testing.T) {
	r := NewRootRegistry()
	cmpIface := NewInterface("Comparable")
	ct := cmpIface.Type()
	cmpIface.AddMethod(&Routine{Name: "compare", Type: r.Routine([]*Type{ct, ct}, r.Int())})

	num, nd := declare(t, r, "Num")
	nd.methods["compare"] = []*Routine{{Name: "compare", Type: r.Routine([]*Type{num, num}, r.Int())}}
	pair, pd := declare(t, r, "Pair")
	pd.methods["compare"] = []*Routine{{Name: "compare", Type: r.Routine([]*Type{pair, num}, r.Int())}}

	assert.True(t, cmpIface.TryBind(pair))
	assert.True(t, pair.Satisfies(cmpIface))
	assert.False(t, num.Satisfies(cmpIface), "nested results are not recorded")
	assert.True(t, cmpIface.TryBind(num))
	assert.True(t, num.Satisfies(cmpIface))
}

func TestBindDeterministic(t *testing.T) {
	for range 5 {
		s := newShapes(t)
		bad := s.object(t, "Bad", map[string]*Type{"area": s.r.Bool()})
		_, first := s.shape.BindReport(bad)
		_, second := s.shape.BindReport(bad)
		require.Len(t, first, 2)
		assert.Equal(t, first, second)
		assert.Equal(t, "area", first[0].Method)
		assert.Equal(t, "name", first[1].Method)
	}
}
