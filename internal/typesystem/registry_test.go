package typesystem

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/funvibe/typecore/internal/diagnostics"
)

func TestCanonicalNames(t *testing.T) {
	r := NewRootRegistry()
	i, f, s, b := r.Int(), r.Float(), r.StringType(), r.Bool()

	tests := []struct {
		name string
		typ  *Type
		want string
	}{
		{"int", i, "int"},
		{"unset", r.Unset(), "?"},
		{"holder", r.Holder("T"), "@T"},
		{"list", r.List(i), "list<int>"},
		{"bare list", r.Container(KindList), "list"},
		{"empty list", r.Empty(KindList), "list<>"},
		{"map", r.Map(s, i), "map<string,int>"},
		{"tuple", r.Tuple(i, r.Named("x", s)), "tuple<int,x:string>"},
		{"routine", r.Routine([]*Type{i, r.Default("b", f)}, b), "routine<int,b=float=>bool>"},
		{"bare routine", r.Routine(nil, nil), "routine"},
		{"coroutine", r.Coroutine([]*Type{i}, nil), "coroutine<int>"},
		{"callback", r.RoutineWithCallback([]*Type{i}, nil, r.Routine([]*Type{i}, b)), "routine<int>[int=>bool]"},
		{"variant", r.Variant(i, s), "int|string"},
		{"future", r.Future(r.Holder("R")), "future<@R>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.typ)
			assert.Equal(t, tt.want, tt.typ.Name())
			got, ok := r.Lookup(tt.want)
			require.True(t, ok)
			assert.Same(t, tt.typ, got)
		})
	}
}

func TestInternReturnsSameDescriptor(t *testing.T) {
	r := NewRootRegistry()
	a := r.Map(r.StringType(), r.List(r.Int()))
	b := r.Map(r.StringType(), r.List(r.Int()))
	assert.Same(t, a, b)
	assert.Same(t, r, a.Registry())

	calls := 0
	got := r.Intern(a.Name(), func() *Type {
		calls++
		return nil
	})
	assert.Same(t, a, got)
	assert.Zero(t, calls)
}

func TestInternConcurrent(t *testing.T) {
	r := NewRootRegistry()
	const workers = 64
	results := make([]*Type, workers)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			results[w] = r.Routine([]*Type{r.Named("k", r.StringType()), r.Default("v", r.List(r.Holder("T")))}, r.Bool())
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for _, res := range results {
		assert.Same(t, results[0], res)
	}
}

func TestScopeChain(t *testing.T) {
	root := NewRootRegistry()
	outerList := root.List(root.Int())
	inner := NewRegistry(root)

	assert.Same(t, outerList, inner.List(root.Int()))
	assert.Same(t, root.Int(), inner.Int())
	assert.Zero(t, inner.Len())

	local := inner.List(inner.StringType())
	assert.Same(t, inner, local.Registry())
	_, ok := root.Lookup(local.Name())
	assert.False(t, ok)
	assert.Same(t, root, inner.Outer())
}

func TestInnermost(t *testing.T) {
	root := NewRootRegistry()
	a, b := NewRegistry(root), NewRegistry(root)
	deep := NewRegistry(a)

	tests := []struct {
		name string
		regs []*Registry
		want *Registry
		ok   bool
	}{
		{"empty", nil, nil, true},
		{"single", []*Registry{root}, root, true},
		{"nil skipped", []*Registry{nil, a, nil}, a, true},
		{"chain in any order", []*Registry{deep, root, a}, deep, true},
		{"siblings", []*Registry{a, b}, nil, false},
		{"cousins", []*Registry{root, deep, b}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Innermost(tt.regs...)
			assert.Equal(t, tt.ok, ok)
			assert.Same(t, tt.want, got)
		})
	}
	assert.True(t, root.Encloses(deep))
	assert.False(t, deep.Encloses(root))
	assert.False(t, a.Encloses(b))
}

func TestDeclare(t *testing.T) {
	r := NewRootRegistry()
	a := NewDeclared(KindObject, &testDecl{name: "Point"}, nil)
	got, err := r.Declare(a)
	require.NoError(t, err)
	assert.Same(t, a, got)

	got, err = r.Declare(a)
	require.NoError(t, err)
	assert.Same(t, a, got)

	b := NewDeclared(KindForeign, &testDecl{name: "Point"}, nil)
	got, err = r.Declare(b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, diagnostics.ErrRedeclared))
	assert.Same(t, a, got)

	inner := NewRegistry(r)
	_, err = inner.Declare(b)
	assert.NoError(t, err, "shadowing an outer declaration")
}

func TestVariantNormalization(t *testing.T) {
	r := NewRootRegistry()
	i, s := r.Int(), r.StringType()
	v := r.Variant(i, s)
	assert.Same(t, v, r.Variant(r.Variant(i, s), i))
	assert.Same(t, i, r.Variant(i, i))
	assert.Nil(t, r.Variant())
	assert.Equal(t, []string{"int", "string"}, names(v.Nested()))
}

func TestContainerArity(t *testing.T) {
	r := NewRootRegistry()
	assert.Nil(t, r.Container(KindList, r.Int(), r.Int()))
	assert.Nil(t, r.Container(KindMap, r.Int()))
	assert.Nil(t, r.Container(KindInt))
	assert.NotNil(t, r.Tuple(r.Int(), r.Int(), r.Int()))
}

func TestFieldIndex(t *testing.T) {
	r := NewRootRegistry()
	rt := r.Routine([]*Type{r.Int(), r.Named("x", r.Float()), r.Default("y", r.Bool())}, nil)
	i, ok := rt.FieldIndex("y")
	require.True(t, ok)
	assert.Equal(t, 2, i)
	_, ok = rt.FieldIndex("z")
	assert.False(t, ok)
}

func TestDefaults(t *testing.T) {
	r := NewRootRegistry()
	v, ok := r.Int().Default()
	require.True(t, ok)
	assert.Equal(t, int64(0), v)

	obj := NewDeclared(KindObject, &testDecl{name: "Thing"}, nil)
	_, ok = obj.Default()
	assert.False(t, ok)
	assert.True(t, obj.SetDefault("first"))
	assert.False(t, obj.SetDefault("second"))
	v, _ = obj.Default()
	assert.Equal(t, "first", v)
}

func TestDefaultSetOnceConcurrent(t *testing.T) {
	obj := NewDeclared(KindObject, &testDecl{name: "Once"}, nil)
	var wg sync.WaitGroup
	won := make(chan int, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if obj.SetDefault(i) {
				won <- i
			}
		}()
	}
	wg.Wait()
	close(won)
	assert.Len(t, won, 1)
}

func TestBuiltinNames(t *testing.T) {
	want := []string{"any", "?", "none", "bool", "int", "float", "double", "complex", "string", "enum"}
	if diff := cmp.Diff(want, BuiltinNames()); diff != "" {
		t.Errorf("BuiltinNames() mismatch (-want +got):\n%s", diff)
	}
	r := NewRootRegistry()
	assert.Equal(t, len(want), r.Len())
}

func names(ts []*Type) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Name()
	}
	return out
}
