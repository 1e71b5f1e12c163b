package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// insertTestDocument inserts a document and returns it with ID set.
func insertTestDocument(t *testing.T, s *Store, name, kind string) *Document {
	t.Helper()
	content := "public class " + name + " {}"
	d := &Document{Name: name, Kind: kind, Content: content, Hash: ContentHash(content)}
	id, err := s.InsertDocument(d)
	require.NoError(t, err)
	require.Positive(t, id)
	return d
}

// insertTestSymbol inserts a symbol with minimal required fields.
func insertTestSymbol(t *testing.T, s *Store, documentID *int64, name, kind string) *Symbol {
	t.Helper()
	sym := &Symbol{
		DocumentID: documentID,
		Name:       name,
		Kind:       kind,
		Visibility: "public",
		Modifiers:  []string{"partial"},
		EndByte:    20,
	}
	id, err := s.InsertSymbol(sym)
	require.NoError(t, err)
	require.Positive(t, id)
	return sym
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{
		"documents", "symbols", "type_parameters", "function_parameters",
		"base_types", "extension_bindings",
	} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestNewMemoryStore_IsolatedByName(t *testing.T) {
	t.Parallel()
	a, err := NewMemoryStore("store-test-a")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	require.NoError(t, a.Migrate())

	b, err := NewMemoryStore("store-test-b")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	require.NoError(t, b.Migrate())

	insertTestDocument(t, a, "Person.cs", KindModel)

	n, err := b.CountDocumentsByKind(KindModel)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = a.CountDocumentsByKind(KindModel)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// =============================================================================
// Documents
// =============================================================================

func TestDocument_InsertAndLookup(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	d := insertTestDocument(t, s, "Person.cs", KindModel)

	got, err := s.DocumentByName("Person.cs")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, KindModel, got.Kind)
	assert.Equal(t, d.Hash, got.Hash)
	assert.Equal(t, 1, got.Version)

	missing, err := s.DocumentByName("Nope.cs")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDocument_NameIsUnique(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestDocument(t, s, "Person.cs", KindModel)

	_, err := s.InsertDocument(&Document{Name: "Person.cs", Kind: KindModel, Content: "x"})
	assert.Error(t, err)
}

func TestDocument_UpdateBumpsVersion(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	d := insertTestDocument(t, s, "Person.cs", KindModel)

	d.Content = "public class Person { public string Name { get; set; } }"
	d.Hash = ContentHash(d.Content)
	require.NoError(t, s.UpdateDocument(d))
	assert.Equal(t, 2, d.Version)

	got, err := s.DocumentByName("Person.cs")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, d.Content, got.Content)
}

func TestDocuments_OrderAndKinds(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestDocument(t, s, "prelude/Linq.cs", KindPrelude)
	insertTestDocument(t, s, "Person.cs", KindModel)
	insertTestDocument(t, s, "DbContext.cs", KindContext)

	all, err := s.Documents()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "prelude/Linq.cs", all[0].Name)

	models, err := s.DocumentsByKind(KindModel)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "Person.cs", models[0].Name)
}

func TestContentHash_Stable(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ContentHash("abc"), ContentHash("abc"))
	assert.NotEqual(t, ContentHash("abc"), ContentHash("abd"))
	assert.Len(t, ContentHash(""), 64)
}

// =============================================================================
// Symbols
// =============================================================================

func TestSymbol_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	d := insertTestDocument(t, s, "Person.cs", KindModel)

	cls := insertTestSymbol(t, s, &d.ID, "Person", SymClass)
	prop := &Symbol{
		DocumentID:     &d.ID,
		Name:           "Name",
		Kind:           SymProperty,
		Visibility:     "public",
		TypeExpr:       "string",
		Doc:            "<summary>The name.</summary>",
		StartByte:      30,
		EndByte:        60,
		StartLine:      2,
		StartCol:       4,
		ParentSymbolID: ptr(cls.ID),
	}
	_, err := s.InsertSymbol(prop)
	require.NoError(t, err)

	got, err := s.SymbolByID(prop.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "string", got.TypeExpr)
	assert.Equal(t, "<summary>The name.</summary>", got.Doc)
	assert.Equal(t, 30, got.StartByte)
	assert.Equal(t, 60, got.EndByte)
	assert.Nil(t, got.Modifiers)
	require.NotNil(t, got.ParentSymbolID)
	assert.Equal(t, cls.ID, *got.ParentSymbolID)

	children, err := s.SymbolChildren(cls.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Name", children[0].Name)

	byKind, err := s.SymbolsByKind(SymProperty)
	require.NoError(t, err)
	assert.Len(t, byKind, 1)
}

func TestSymbolByID_Missing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	got, err := s.SymbolByID(999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTypesByName_UserDocumentsFirst(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	pre := insertTestDocument(t, s, "prelude/Collections.cs", KindPrelude)
	model := insertTestDocument(t, s, "List.cs", KindModel)

	insertTestSymbol(t, s, &pre.ID, "List", SymClass)
	insertTestSymbol(t, s, &model.ID, "List", SymClass)
	insertTestSymbol(t, s, &model.ID, "List", SymMethod)

	types, err := s.TypesByName("List")
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, model.ID, *types[0].DocumentID)
	assert.Equal(t, pre.ID, *types[1].DocumentID)

	all, err := s.Types()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestBaseTypes_Ordered(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	d := insertTestDocument(t, s, "Ctx.cs", KindContext)
	sym := insertTestSymbol(t, s, &d.ID, "DbSet", SymClass)

	_, err := s.InsertBaseType(&BaseType{SymbolID: sym.ID, TypeExpr: "IEnumerable<TEntity>", Ordinal: 1})
	require.NoError(t, err)
	_, err = s.InsertBaseType(&BaseType{SymbolID: sym.ID, TypeExpr: "IQueryable<TEntity>", Ordinal: 0})
	require.NoError(t, err)

	bases, err := s.BaseTypes(sym.ID)
	require.NoError(t, err)
	require.Len(t, bases, 2)
	assert.Equal(t, "IQueryable<TEntity>", bases[0].TypeExpr)
}

// =============================================================================
// Replacement
// =============================================================================

func TestDeleteDocumentData_RemovesDeclarations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	d := insertTestDocument(t, s, "Person.cs", KindModel)
	other := insertTestDocument(t, s, "Order.cs", KindModel)

	cls := insertTestSymbol(t, s, &d.ID, "Person", SymClass)
	m := &Symbol{DocumentID: &d.ID, Name: "Greet", Kind: SymMethod, ParentSymbolID: ptr(cls.ID)}
	_, err := s.InsertSymbol(m)
	require.NoError(t, err)
	_, err = s.InsertFunctionParam(&FunctionParam{SymbolID: m.ID, Name: "x", TypeExpr: "int"})
	require.NoError(t, err)
	_, err = s.InsertTypeParam(&TypeParam{SymbolID: m.ID, Name: "T"})
	require.NoError(t, err)
	_, err = s.InsertExtensionBinding(&ExtensionBinding{MemberSymbolID: m.ID, ExtendedTypeExpr: "Person"})
	require.NoError(t, err)
	insertTestSymbol(t, s, &other.ID, "Order", SymClass)

	require.NoError(t, s.DeleteDocumentData(d.ID))

	syms, err := s.SymbolsByDocument(d.ID)
	require.NoError(t, err)
	assert.Empty(t, syms)

	bindings, err := s.ExtensionBindings()
	require.NoError(t, err)
	assert.Empty(t, bindings)

	kept, err := s.SymbolsByDocument(other.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	doc, err := s.DocumentByName("Person.cs")
	require.NoError(t, err)
	assert.NotNil(t, doc, "document row survives")
}

func TestDeleteDocument_RemovesRowAndDeclarations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	d := insertTestDocument(t, s, "Person.cs", KindModel)
	cls := insertTestSymbol(t, s, &d.ID, "Person", SymClass)
	_, err := s.InsertBaseType(&BaseType{SymbolID: cls.ID, TypeExpr: "Entity"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteDocument(d.ID))

	doc, err := s.DocumentByName("Person.cs")
	require.NoError(t, err)
	assert.Nil(t, doc)
	syms, err := s.SymbolsByDocument(d.ID)
	require.NoError(t, err)
	assert.Empty(t, syms)
	bases, err := s.BaseTypes(cls.ID)
	require.NoError(t, err)
	assert.Empty(t, bases)
}

func TestReplaceDocument_SwapsDeclarations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	d := insertTestDocument(t, s, "Person.cs", KindModel)
	insertTestSymbol(t, s, &d.ID, "Person", SymClass)

	batch := NewBatchedStore(s)
	clsID, _ := batch.InsertSymbol(&Symbol{DocumentID: &d.ID, Name: "Person", Kind: SymClass})
	_, _ = batch.InsertSymbol(&Symbol{DocumentID: &d.ID, Name: "Age", Kind: SymProperty, TypeExpr: "int", ParentSymbolID: &clsID})

	d.Content = "public class Person { public int Age { get; set; } }"
	d.Hash = ContentHash(d.Content)
	require.NoError(t, s.ReplaceDocument(d, batch))
	assert.Equal(t, 2, d.Version)

	persons, err := s.TypesByName("Person")
	require.NoError(t, err)
	require.Len(t, persons, 1, "replacement must not duplicate the type")

	children, err := s.SymbolChildren(persons[0].ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Age", children[0].Name)

	got, err := s.DocumentByName("Person.cs")
	require.NoError(t, err)
	assert.Equal(t, d.Hash, got.Hash)
}

func TestReplaceDocument_FailureKeepsOldDeclarations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	d := insertTestDocument(t, s, "Person.cs", KindModel)
	insertTestSymbol(t, s, &d.ID, "Person", SymClass)

	batch := NewBatchedStore(s)
	_, _ = batch.InsertFunctionParam(&FunctionParam{SymbolID: -99, Name: "orphan"})

	require.Error(t, s.ReplaceDocument(d, batch))
	assert.Equal(t, 1, d.Version)

	syms, err := s.SymbolsByDocument(d.ID)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "Person", syms[0].Name)
}

func TestReplaceDocument_InsertsNewDocument(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	batch := NewBatchedStore(s)
	clsID, _ := batch.InsertSymbol(&Symbol{Name: "Order", Kind: SymClass})
	_, _ = batch.InsertSymbol(&Symbol{Name: "Total", Kind: SymProperty, TypeExpr: "decimal", ParentSymbolID: &clsID})

	d := &Document{Name: "Order.cs", Kind: KindModel, Content: "public class Order { public decimal Total { get; set; } }"}
	require.NoError(t, s.ReplaceDocument(d, batch))
	require.Positive(t, d.ID)
	assert.Equal(t, 1, d.Version)

	syms, err := s.SymbolsByDocument(d.ID)
	require.NoError(t, err)
	assert.Len(t, syms, 2)
}
