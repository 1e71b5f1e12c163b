package extract

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/linqlens/internal/store"
	"github.com/jward/linqlens/internal/syntax"
)

func extractSource(t *testing.T, src string) []*Decl {
	t.Helper()
	tree, err := syntax.Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return File(tree)
}

func findMember(d *Decl, name string) *Decl {
	for _, m := range d.Members {
		if m.Symbol.Name == name {
			return m
		}
	}
	return nil
}

func TestFile_ClassWithProperties(t *testing.T) {
	t.Parallel()
	decls := extractSource(t, `using System;
namespace LinqStudio.TestModels;

/// <summary>A person.</summary>
public class Person
{
    [Key]
    public int Id { get; set; }

    /// <summary>
    /// Display name.
    /// </summary>
    public string? Name { get; set; }

    internal int age;
}
`)
	require.Len(t, decls, 1)
	person := decls[0]
	assert.Equal(t, "Person", person.Symbol.Name)
	assert.Equal(t, store.SymClass, person.Symbol.Kind)
	assert.Equal(t, "public", person.Symbol.Visibility)
	assert.Equal(t, "<summary>A person.</summary>", person.Symbol.Doc)

	id := findMember(person, "Id")
	require.NotNil(t, id)
	assert.Equal(t, store.SymProperty, id.Symbol.Kind)
	assert.Equal(t, "int", id.Symbol.TypeExpr)

	name := findMember(person, "Name")
	require.NotNil(t, name)
	assert.Equal(t, "string?", name.Symbol.TypeExpr)
	assert.Equal(t, "<summary>\nDisplay name.\n</summary>", name.Symbol.Doc)

	age := findMember(person, "age")
	require.NotNil(t, age)
	assert.Equal(t, store.SymField, age.Symbol.Kind)
	assert.Equal(t, "internal", age.Symbol.Visibility)
}

func TestFile_BlockNamespaceAndBases(t *testing.T) {
	t.Parallel()
	decls := extractSource(t, `namespace Demo {
    public class TestDbContext : DbContext, IDisposable
    {
        public DbSet<Person> People { get; set; } = null!;
        protected override void OnConfiguring(DbContextOptionsBuilder optionsBuilder) { }
    }
}`)
	require.Len(t, decls, 1)
	ctx := decls[0]
	assert.Equal(t, []string{"DbContext", "IDisposable"}, ctx.Bases)

	people := findMember(ctx, "People")
	require.NotNil(t, people)
	assert.Equal(t, "DbSet<Person>", people.Symbol.TypeExpr)

	cfg := findMember(ctx, "OnConfiguring")
	require.NotNil(t, cfg)
	assert.Equal(t, store.SymMethod, cfg.Symbol.Kind)
	assert.Equal(t, "protected", cfg.Symbol.Visibility)
	assert.Contains(t, cfg.Symbol.Modifiers, "override")
	assert.Equal(t, "void", cfg.Symbol.TypeExpr)
	require.Len(t, cfg.Params, 1)
	assert.Equal(t, "optionsBuilder", cfg.Params[0].Name)
}

func TestFile_ExtensionMethod(t *testing.T) {
	t.Parallel()
	decls := extractSource(t, `public static class Queryable
{
    public static IQueryable<TSource> Where<TSource>(this IQueryable<TSource> source, Expression<Func<TSource, bool>> predicate) => source;
    public static int Count<TSource>(this IQueryable<TSource> source) => 0;
}`)
	require.Len(t, decls, 1)
	q := decls[0]
	assert.Contains(t, q.Symbol.Modifiers, "static")

	where := findMember(q, "Where")
	require.NotNil(t, where)
	assert.Equal(t, "IQueryable<TSource>", where.Symbol.TypeExpr)
	assert.Equal(t, "IQueryable<TSource>", where.Extends)
	require.Len(t, where.TypeParams, 1)
	assert.Equal(t, "TSource", where.TypeParams[0].Name)
	require.Len(t, where.Params, 2)
	assert.True(t, where.Params[0].IsReceiver)
	assert.Equal(t, "this", where.Params[0].Modifier)
	assert.False(t, where.Params[1].IsReceiver)
	assert.Equal(t, "Expression<Func<TSource, bool>>", where.Params[1].TypeExpr)
}

func TestFile_DefaultParameters(t *testing.T) {
	t.Parallel()
	decls := extractSource(t, `public static class Ext
{
    public static int F(this int a, int b = 0, string c = null, CancellationToken cancellationToken = default) => a;
}`)
	require.Len(t, decls, 1)
	f := findMember(decls[0], "F")
	require.NotNil(t, f)
	require.Len(t, f.Params, 4)

	assert.False(t, f.Params[0].HasDefault)
	assert.Empty(t, f.Params[0].DefaultExpr)
	for i, want := range []string{"0", "null", "default"} {
		p := f.Params[i+1]
		assert.True(t, p.HasDefault, p.Name)
		assert.Equal(t, want, p.DefaultExpr, p.Name)
	}
	assert.Equal(t, "CancellationToken", f.Params[3].TypeExpr)
}

func TestFile_InterfaceEnumDelegateAndNested(t *testing.T) {
	t.Parallel()
	decls := extractSource(t, `public interface IOrderedQueryable<out T> : IQueryable<T> { }
public enum Status { Active, Retired }
public delegate TResult Func<in T, out TResult>(T arg);
public class Outer { public class Inner { public int X { get; set; } } }`)
	require.Len(t, decls, 4)

	iface := decls[0]
	assert.Equal(t, store.SymInterface, iface.Symbol.Kind)
	require.Len(t, iface.TypeParams, 1)
	assert.Equal(t, "T", iface.TypeParams[0].Name)
	assert.Equal(t, "out", iface.TypeParams[0].Variance)
	assert.Equal(t, []string{"IQueryable<T>"}, iface.Bases)

	enum := decls[1]
	assert.Equal(t, store.SymEnum, enum.Symbol.Kind)
	require.Len(t, enum.Members, 2)
	assert.Equal(t, store.SymEnumMember, enum.Members[0].Symbol.Kind)

	del := decls[2]
	assert.Equal(t, store.SymDelegate, del.Symbol.Kind)
	assert.Equal(t, "TResult", del.Symbol.TypeExpr)
	require.Len(t, del.TypeParams, 2)
	require.Len(t, del.Params, 1)

	outer := decls[3]
	inner := findMember(outer, "Inner")
	require.NotNil(t, inner)
	assert.Equal(t, store.SymClass, inner.Symbol.Kind)
	assert.NotNil(t, findMember(inner, "X"))
}

func TestFile_PositionalRecord(t *testing.T) {
	t.Parallel()
	decls := extractSource(t, `public record Customer(string Name, int Age);`)
	require.Len(t, decls, 1)
	rec := decls[0]
	assert.Equal(t, store.SymRecord, rec.Symbol.Kind)
	name := findMember(rec, "Name")
	require.NotNil(t, name)
	assert.Equal(t, store.SymProperty, name.Symbol.Kind)
	assert.Equal(t, "string", name.Symbol.TypeExpr)
}

func TestWrite_StoresDeclarations(t *testing.T) {
	t.Parallel()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "extract.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate())

	src := `public static class Queryable
{
    /// <summary>Filters a sequence.</summary>
    public static IQueryable<TSource> Where<TSource>(this IQueryable<TSource> source, Expression<Func<TSource, bool>> predicate) => source;
}`
	doc := &store.Document{Name: "prelude/Queryable.cs", Kind: store.KindPrelude, Content: src}
	_, err = s.InsertDocument(doc)
	require.NoError(t, err)

	batch := store.NewBatchedStore(s)
	require.NoError(t, Write(batch, doc.ID, extractSource(t, src)))
	require.NoError(t, s.CommitBatch(batch))

	methods, err := s.MethodsByName("Where")
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, "<summary>Filters a sequence.</summary>", methods[0].Doc)

	bindings, err := s.ExtensionBindingsByMember(methods[0].ID)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, "IQueryable<TSource>", bindings[0].ExtendedTypeExpr)
}
