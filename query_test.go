package linqlens

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/linqlens/internal/store"
)

func strPtr(s string) *string { return &s }

func TestPagination_Normalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   Pagination
		want Pagination
	}{
		{"zero value gets defaults", Pagination{}, Pagination{Offset: 0, Limit: 50}},
		{"negative offset clamped", Pagination{Offset: -5, Limit: 10}, Pagination{Offset: 0, Limit: 10}},
		{"limit over max clamped", Pagination{Limit: 1000}, Pagination{Limit: 500}},
		{"valid values kept", Pagination{Offset: 20, Limit: 100}, Pagination{Offset: 20, Limit: 100}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.normalize(), tt.name)
	}
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\x`, escapeLike(`c:\x`))
	assert.Equal(t, "plain", escapeLike("plain"))
}

func TestSymbols_FilterByDocumentKind(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	ctx := context.Background()

	res, err := s.Query().Symbols(ctx, SymbolFilter{DocumentKind: strPtr(KindModel)}, Sort{Field: SortByName}, Pagination{})
	require.NoError(t, err)
	var names []string
	for _, sr := range res.Items {
		assert.Equal(t, "Person.cs", sr.DocumentName)
		assert.Equal(t, KindModel, sr.DocumentKind)
		names = append(names, sr.Name)
	}
	assert.Equal(t, []string{"Age", "Id", "Name", "Person"}, names)
	assert.Equal(t, 4, res.TotalCount)
}

func TestSymbols_FilterByKindAndParent(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	ctx := context.Background()
	q := s.Query()

	types, err := q.Symbols(ctx, SymbolFilter{Kinds: []string{store.SymClass}, DocumentKind: strPtr(KindContext)}, Sort{}, Pagination{})
	require.NoError(t, err)
	require.Len(t, types.Items, 1)
	ctxType := types.Items[0]
	assert.Equal(t, "TestDbContext", ctxType.Name)
	assert.Empty(t, ctxType.ParentName)

	members, err := q.Symbols(ctx, SymbolFilter{ParentID: &ctxType.ID, Kinds: []string{store.SymProperty}}, Sort{}, Pagination{})
	require.NoError(t, err)
	require.Len(t, members.Items, 1)
	assert.Equal(t, "People", members.Items[0].Name)
	assert.Equal(t, "TestDbContext", members.Items[0].ParentName)
	assert.Equal(t, "DbSet<Person>", members.Items[0].TypeExpr)
}

func TestSymbols_Pagination(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	ctx := context.Background()
	filter := SymbolFilter{DocumentKind: strPtr(KindPrelude), Kinds: []string{store.SymMethod}}

	first, err := s.Query().Symbols(ctx, filter, Sort{Field: SortByName}, Pagination{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Items, 3)
	assert.Greater(t, first.TotalCount, 3)

	second, err := s.Query().Symbols(ctx, filter, Sort{Field: SortByName}, Pagination{Offset: 3, Limit: 3})
	require.NoError(t, err)
	require.NotEmpty(t, second.Items)
	assert.Equal(t, first.TotalCount, second.TotalCount)
	assert.NotEqual(t, first.Items[0].ID, second.Items[0].ID)
}

func TestSymbols_SortDesc(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	res, err := s.Query().Symbols(context.Background(),
		SymbolFilter{DocumentKind: strPtr(KindModel)}, Sort{Field: SortByName, Order: Desc}, Pagination{})
	require.NoError(t, err)
	require.NotEmpty(t, res.Items)
	assert.Equal(t, "Person", res.Items[0].Name)
}

func TestSearchSymbols_Glob(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	ctx := context.Background()

	res, err := s.Query().SearchSymbols(ctx, "ToList*", SymbolFilter{Kinds: []string{store.SymMethod}}, Sort{}, Pagination{})
	require.NoError(t, err)
	require.NotEmpty(t, res.Items)
	var names []string
	for _, sr := range res.Items {
		names = append(names, sr.Name)
	}
	assert.Contains(t, names, "ToList")
	assert.Contains(t, names, "ToListAsync")

	// '_' is literal, not a single-character wildcard.
	res, err = s.Query().SearchSymbols(ctx, "To_ist", SymbolFilter{}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Zero(t, res.TotalCount)
}

func TestTypes(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	res, err := s.Query().Types(context.Background(), KindModel, Pagination{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Person", res.Items[0].Name)
}

func TestDocuments(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	ctx := context.Background()

	docs, err := s.Query().Documents(ctx, KindModel)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Person.cs", docs[0].Name)
	assert.Equal(t, 4, docs[0].SymbolCount)
	assert.NotEmpty(t, docs[0].Hash)

	all, err := s.Query().Documents(ctx, "")
	require.NoError(t, err)
	kinds := make(map[string]bool)
	for _, d := range all {
		kinds[d.Kind] = true
	}
	assert.True(t, kinds[KindPrelude])
	assert.True(t, kinds[KindContext])
}

func TestSummary(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	sum, err := s.Query().Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Documents[KindModel])
	assert.Equal(t, 1, sum.Documents[KindContext])
	assert.Positive(t, sum.Symbols[store.SymMethod])
	assert.Positive(t, sum.Generation)
}

func TestSymbolDetail(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	ctx := context.Background()
	q := s.Query()

	res, err := q.SearchSymbols(ctx, "DbSet", SymbolFilter{Kinds: []string{store.SymClass}}, Sort{}, Pagination{})
	require.NoError(t, err)
	require.NotEmpty(t, res.Items)

	detail, err := q.SymbolDetail(ctx, res.Items[0].ID)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "DbSet", detail.Symbol.Name)
	require.Len(t, detail.TypeParams, 1)
	assert.NotEmpty(t, detail.BaseTypes)
	assert.NotEmpty(t, detail.Members)
	assert.Empty(t, detail.Parameters)

	missing, err := q.SymbolDetail(ctx, -1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
