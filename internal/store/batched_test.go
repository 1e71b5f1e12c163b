package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_SymbolsByDocument_ReturnsBufferedSymbols(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	d := insertTestDocument(t, s, "Person.cs", KindModel)

	batch := NewBatchedStore(s)
	id1, err := batch.InsertSymbol(&Symbol{DocumentID: &d.ID, Name: "Person", Kind: SymClass})
	require.NoError(t, err)
	assert.Negative(t, id1, "batched IDs should be negative")

	id2, err := batch.InsertSymbol(&Symbol{DocumentID: &d.ID, Name: "Name", Kind: SymProperty, ParentSymbolID: &id1})
	require.NoError(t, err)
	assert.Negative(t, id2)

	syms, err := batch.SymbolsByDocument(d.ID)
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.ElementsMatch(t, []string{"Person", "Name"}, []string{syms[0].Name, syms[1].Name})
	assert.Equal(t, 2, batch.Len())
}

func TestBatchedStore_SymbolsByDocument_MergesWithDatabase(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	d := insertTestDocument(t, s, "Person.cs", KindModel)
	insertTestSymbol(t, s, &d.ID, "Existing", SymClass)

	batch := NewBatchedStore(s)
	_, err := batch.InsertSymbol(&Symbol{DocumentID: &d.ID, Name: "New", Kind: SymClass})
	require.NoError(t, err)

	syms, err := batch.SymbolsByDocument(d.ID)
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.ElementsMatch(t, []string{"Existing", "New"}, []string{syms[0].Name, syms[1].Name})
}

func TestCommitBatch_RemapsFakeIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	d := insertTestDocument(t, s, "Queryable.cs", KindPrelude)

	batch := NewBatchedStore(s)
	cls := &Symbol{DocumentID: &d.ID, Name: "Queryable", Kind: SymClass, Modifiers: []string{"static"}}
	clsID, _ := batch.InsertSymbol(cls)
	m := &Symbol{DocumentID: &d.ID, Name: "Where", Kind: SymMethod, TypeExpr: "IQueryable<TSource>", ParentSymbolID: &clsID}
	mID, _ := batch.InsertSymbol(m)
	_, _ = batch.InsertTypeParam(&TypeParam{SymbolID: mID, Name: "TSource"})
	_, _ = batch.InsertFunctionParam(&FunctionParam{SymbolID: mID, Name: "source", TypeExpr: "IQueryable<TSource>", Modifier: "this", IsReceiver: true})
	_, _ = batch.InsertFunctionParam(&FunctionParam{SymbolID: mID, Name: "predicate", Ordinal: 1, TypeExpr: "Expression<Func<TSource, bool>>"})
	_, _ = batch.InsertExtensionBinding(&ExtensionBinding{MemberSymbolID: mID, ExtendedTypeExpr: "IQueryable<TSource>"})

	require.NoError(t, s.CommitBatch(batch))

	methods, err := s.MethodsByName("Where")
	require.NoError(t, err)
	require.Len(t, methods, 1)
	where := methods[0]
	assert.Positive(t, where.ID)
	require.NotNil(t, where.ParentSymbolID)

	parent, err := s.SymbolByID(*where.ParentSymbolID)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, "Queryable", parent.Name)
	assert.True(t, parent.HasModifier("static"))

	params, err := s.FunctionParams(where.ID)
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.True(t, params[0].IsReceiver)
	assert.Equal(t, "predicate", params[1].Name)

	tps, err := s.TypeParams(where.ID)
	require.NoError(t, err)
	require.Len(t, tps, 1)
	assert.Equal(t, "TSource", tps[0].Name)

	bindings, err := s.ExtensionBindingsByMember(where.ID)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, "method", bindings[0].Kind)
}

func TestCommitBatch_UnknownFakeIDFails(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	batch := NewBatchedStore(s)
	_, _ = batch.InsertTypeParam(&TypeParam{SymbolID: -42, Name: "T"})

	err := s.CommitBatch(batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type param")

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM type_parameters").Scan(&n))
	assert.Zero(t, n, "failed batch must not leave partial rows")
}
