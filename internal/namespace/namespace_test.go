package namespace

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/typecore/internal/classes"
	"github.com/funvibe/typecore/internal/config"
	"github.com/funvibe/typecore/internal/ctxlog"
	"github.com/funvibe/typecore/internal/diagnostics"
	"github.com/funvibe/typecore/internal/typesystem"
)

func pub(name string) classes.Decl {
	return classes.Decl{Name: name, Permission: classes.Public}
}

func define(t *testing.T, ns *Namespace, name string, supers ...*classes.Class) *classes.Class {
	t.Helper()
	b := ns.NewClass(name)
	for _, s := range supers {
		require.NoError(t, b.AddSuper(s, ""))
	}
	c, err := ns.DefineClass(b)
	require.NoError(t, err)
	return c
}

func TestDefineAndFind(t *testing.T) {
	root := New("root")
	animal := define(t, root, "Animal")

	inner := root.Enclose("zoo")
	assert.Same(t, root, inner.Outer())
	dog := define(t, inner, "Dog", animal)

	got, ok := inner.FindClass("Animal")
	require.True(t, ok)
	assert.Same(t, animal, got)
	_, ok = root.FindClass("Dog")
	assert.False(t, ok, "inner declarations stay local")

	typ, ok := inner.Resolve("Dog")
	require.True(t, ok)
	assert.Same(t, dog.ObjectType(), typ)
	_, ok = root.Resolve("Dog")
	assert.False(t, ok)

	shadow := define(t, inner, "Animal")
	got, _ = inner.FindClass("Animal")
	assert.Same(t, shadow, got)
	got, _ = root.FindClass("Animal")
	assert.Same(t, animal, got)
}

func TestDefineRedeclared(t *testing.T) {
	ns := New("root")
	define(t, ns, "Point")

	_, err := ns.DefineClass(ns.NewClass("Point"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, diagnostics.ErrRedeclared))
	assert.Contains(t, err.Error(), "namespace root")

	err = ns.DefineInterface(typesystem.NewInterface("Point"))
	assert.True(t, errors.Is(err, diagnostics.ErrRedeclared))

	f, err := ns.NewForeign("Point")
	require.NoError(t, err)
	assert.True(t, errors.Is(ns.DefineForeign(f), diagnostics.ErrRedeclared))
}

func TestDefineClassContext(t *testing.T) {
	ns := New("root")
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	c, err := ns.DefineClassContext(ctx, ns.NewClass("Widget"))
	require.NoError(t, err)
	assert.Equal(t, "Widget", c.Name())
	assert.Contains(t, buf.String(), "class defined")
	assert.Contains(t, buf.String(), "class=Widget")

	buf.Reset()
	_, err = ns.DefineClassContext(ctx, ns.NewClass("Widget"))
	require.Error(t, err)
	assert.Contains(t, buf.String(), "level=WARN")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ns.DefineClassContext(cancelled, ns.NewClass("Gadget"))
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := ns.FindClass("Gadget")
	assert.False(t, ok)
}

func TestLogOutput(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.LogLevel = "debug"
	ns := New("root", WithConfig(cfg), WithLogOutput(&buf))
	define(t, ns, "Logged")
	assert.Contains(t, buf.String(), "namespace=root")
	assert.Contains(t, buf.String(), "class finished")

	quiet := New("quiet", WithLogOutput(&buf))
	buf.Reset()
	define(t, quiet, "Silent")
	assert.Empty(t, buf.String(), "debug records are dropped at the default level")
}

func TestInterfaces(t *testing.T) {
	ns := New("root")
	shape := typesystem.NewInterface("Shape")
	shape.AddMethod(&typesystem.Routine{Name: "area", Type: ns.Types.Routine([]*typesystem.Type{shape.Type()}, ns.Types.Double())})
	require.NoError(t, ns.DefineInterface(shape))

	inner := ns.Enclose("geometry")
	got, ok := inner.FindInterface("Shape")
	require.True(t, ok)
	assert.Same(t, shape, got)

	cb := inner.NewClass("Circle")
	require.NoError(t, cb.AddMethod(pub("area"), &typesystem.Routine{Type: inner.Types.Routine([]*typesystem.Type{cb.ObjectType()}, inner.Types.Double())}))
	circle, err := inner.DefineClass(cb)
	require.NoError(t, err)

	missing, err := inner.Bind(circle.ObjectType(), shape)
	require.NoError(t, err)
	assert.Empty(t, missing)
	assert.Equal(t, typesystem.Subtype, inner.Match(circle.ObjectType(), shape.Type(), nil))

	square, err := inner.DefineClass(inner.NewClass("Square"))
	require.NoError(t, err)
	missing, err = inner.Bind(square.ObjectType(), shape)
	require.Error(t, err)
	assert.True(t, errors.Is(err, diagnostics.ErrInterfaceUnsatisfied))
	require.Len(t, missing, 1)
	assert.Equal(t, "area", missing[0].Method)
}

func TestForeign(t *testing.T) {
	cfg := config.Default()
	cfg.MaxForeignSupers = 1
	ns := New("root", WithConfig(cfg))
	buf, err := ns.NewForeign("Buffer")
	require.NoError(t, err)
	require.NoError(t, ns.DefineForeign(buf))
	file, err := ns.NewForeign("File", buf)
	require.NoError(t, err)
	require.NoError(t, ns.DefineForeign(file))

	_, err = ns.NewForeign("Both", buf, file)
	assert.True(t, errors.Is(err, diagnostics.ErrTooManyParents))

	got, ok := ns.Enclose("io").FindForeign("File")
	require.True(t, ok)
	assert.Same(t, file, got)
	typ, ok := ns.Resolve("Buffer")
	require.True(t, ok)
	assert.Same(t, buf.Type(), typ)
}

func TestInstantiate(t *testing.T) {
	var rechecked int
	ns := New("root", WithRecheck(func(*typesystem.Routine, typesystem.Bindings) error {
		rechecked++
		return nil
	}))
	b := ns.NewTemplate("Box", "T")
	T := ns.Types.Holder("T")
	require.NoError(t, b.AddInstanceVar(pub("value"), T, classes.Value{}))
	require.NoError(t, b.AddMethod(pub("get"), &typesystem.Routine{Type: ns.Types.Routine([]*typesystem.Type{b.ObjectType()}, T)}))
	_, err := ns.DefineClass(b)
	require.NoError(t, err)

	inst, err := ns.Instantiate("Box<@T>", ns.Types.Int())
	require.NoError(t, err)
	assert.Equal(t, "Box<int>", inst.Name())
	assert.Equal(t, 1, rechecked)

	again, err := ns.Enclose("inner").Instantiate("Box<@T>", ns.Types.Int())
	require.NoError(t, err)
	assert.Same(t, inst, again)
	assert.Equal(t, 1, rechecked)

	_, err = ns.Instantiate("Crate<@T>", ns.Types.Int())
	assert.True(t, errors.Is(err, diagnostics.ErrUnresolved))

	listed, err := ns.Specialize(ns.Types.List(b.ObjectType()), typesystem.Bindings{T: ns.Types.Int()})
	require.NoError(t, err)
	assert.Same(t, inst.ObjectType(), listed.At(0))
}

func TestInstantiateSiblingScopes(t *testing.T) {
	root := New("root")
	T := root.Types.Holder("T")
	b := root.NewTemplate("Box", "T")
	require.NoError(t, b.AddInstanceVar(pub("items"), root.Types.List(T), classes.Value{}))
	_, err := root.DefineClass(b)
	require.NoError(t, err)

	m1, m2 := root.Enclose("m1"), root.Enclose("m2")
	foo1, foo2 := define(t, m1, "Foo"), define(t, m2, "Foo")

	i1, err := m1.Instantiate("Box<@T>", foo1.ObjectType())
	require.NoError(t, err)
	i2, err := m2.Instantiate("Box<@T>", foo2.ObjectType())
	require.NoError(t, err)
	assert.NotSame(t, i1, i2)
	assert.Equal(t, i1.Name(), i2.Name())
	assert.Same(t, m1.Types, i1.ObjectType().Registry())
	assert.Same(t, m2.Types, i2.ObjectType().Registry())
	_, ok := root.Resolve("Box<Foo>")
	assert.False(t, ok, "instances over local types stay local")

	items := i2.Layout()[0].Type
	assert.Same(t, foo2.ObjectType(), items.At(0))
	assert.Same(t, items, m2.Types.List(foo2.ObjectType()))
	assert.Same(t, foo1.ObjectType(), m1.Types.List(foo1.ObjectType()).At(0))
	assert.Equal(t, typesystem.Exact, m2.Match(foo2.ObjectType(), items.At(0), nil))

	again, err := m2.Enclose("deeper").Instantiate("Box<@T>", foo2.ObjectType())
	require.NoError(t, err)
	assert.Same(t, i2, again)

	pb := root.NewTemplate("Pair", "K", "V")
	_, err = root.DefineClass(pb)
	require.NoError(t, err)
	_, err = root.Instantiate("Pair<@K,@V>", foo1.ObjectType(), foo2.ObjectType())
	assert.True(t, errors.Is(err, diagnostics.ErrTemplateArgs))
	assert.ErrorIs(t, err, classes.ErrUnrelatedScopes)
}

func TestTemplateDefaults(t *testing.T) {
	ns := New("root")
	K, V := ns.Types.Holder("K"), ns.Types.Holder("V")
	b := ns.NewTemplateWithDefaults("Map", []classes.Param{{Holder: K}, {Holder: V, Default: ns.Types.Any()}})
	_, err := ns.DefineClass(b)
	require.NoError(t, err)
	inst, err := ns.Instantiate("Map<@K,@V>", ns.Types.StringType())
	require.NoError(t, err)
	assert.Equal(t, "Map<string,any>", inst.Name())
}

func TestMaxParents(t *testing.T) {
	cfg := config.Default()
	cfg.MaxParents = 1
	ns := New("root", WithConfig(cfg))
	a, b := define(t, ns, "A"), define(t, ns, "B")
	cb := ns.NewClass("C")
	require.NoError(t, cb.AddSuper(a, ""))
	assert.True(t, errors.Is(cb.AddSuper(b, ""), diagnostics.ErrTooManyParents))
}

func TestMatchCache(t *testing.T) {
	ns := New("root")
	require.NotNil(t, ns.MatchCache())
	l := ns.Types.List(ns.Types.Int())
	assert.Equal(t, typesystem.Subtype, ns.Match(ns.Types.Empty(typesystem.KindList), l, nil))
	assert.Positive(t, ns.MatchCache().Len())
	assert.Same(t, ns.MatchCache(), ns.Enclose("inner").MatchCache())

	cfg := config.Default()
	cfg.MatchCache = false
	off := New("off", WithConfig(cfg))
	assert.Nil(t, off.MatchCache())
	assert.Equal(t, typesystem.Similar, off.Match(off.Types.Int(), off.Types.Double(), nil))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "types.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_parents: 3\nmatch_cache: false\n"), 0o644))

	ns, err := Load(path, "loaded")
	require.NoError(t, err)
	assert.Equal(t, 3, ns.Config().MaxParents)
	assert.Nil(t, ns.MatchCache())
	assert.Equal(t, "loaded", ns.Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"), "x")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
