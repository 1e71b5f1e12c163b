package semantic

import (
	"context"
	"strings"
	"sync"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/linqlens/internal/store"
	"github.com/jward/linqlens/internal/syntax"
	"github.com/jward/linqlens/internal/typesys"
	"github.com/jward/linqlens/internal/workspace"
	"github.com/jward/linqlens/internal/wrap"
	"github.com/jward/linqlens/prelude"
)

var (
	catalogOnce sync.Once
	catalog     *Catalog
	catalogErr  error
)

// starterCatalog loads the prelude and starter models once for the package.
// A Catalog is read-only after Load, so tests share it.
func starterCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalogOnce.Do(func() {
		ctx := context.Background()
		ws, err := workspace.New(ctx)
		if err != nil {
			catalogErr = err
			return
		}
		defer ws.Close()
		models, contextSource, err := prelude.Starter()
		if err != nil {
			catalogErr = err
			return
		}
		var sources []workspace.Source
		for name, text := range models {
			sources = append(sources, workspace.Source{Name: workspace.ModelDocumentName(name), Kind: store.KindModel, Text: text})
		}
		sources = append(sources, workspace.Source{Name: workspace.ContextDocumentName, Kind: store.KindContext, Text: contextSource})
		if err := ws.AddDeclarations(ctx, sources); err != nil {
			catalogErr = err
			return
		}
		catalog, catalogErr = Load(ws.Store())
	})
	require.NoError(t, catalogErr)
	return catalog
}

// newTestModel wraps snippet the way a session does and returns a model over
// it with the offset where the snippet starts.
func newTestModel(t *testing.T, snippet string) (*Model, int) {
	t.Helper()
	w := wrap.New(wrap.Template{Namespace: prelude.StarterNamespace, ContextType: prelude.StarterContextType})
	tree, err := syntax.Parse(context.Background(), []byte(w.Wrap(snippet)))
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return NewModel(starterCatalog(t), tree), w.SnippetStart()
}

// findNode returns the first named node, in document order, whose text is
// exactly text.
func findNode(t *testing.T, m *Model, text string) *sitter.Node {
	t.Helper()
	var found *sitter.Node
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if found != nil {
			return
		}
		if n.IsNamed() && m.tree.Text(n) == text {
			found = n
			return
		}
		for _, c := range syntax.NamedChildren(n) {
			visit(c)
		}
	}
	visit(m.tree.Root())
	require.NotNil(t, found, "no node with text %q", text)
	return found
}

func names(syms []*Symbol) []string {
	out := make([]string, 0, len(syms))
	for _, s := range syms {
		out = append(out, s.Name)
	}
	return out
}

func completionTexts(list *CompletionList) []string {
	out := make([]string, 0, len(list.Items))
	for _, c := range list.Items {
		out = append(out, c.DisplayText)
	}
	return out
}

func findCompletion(list *CompletionList, text string) *Completion {
	for i := range list.Items {
		if list.Items[i].DisplayText == text {
			return &list.Items[i]
		}
	}
	return nil
}

// --- Catalog ---

func TestCatalogTypesByArity(t *testing.T) {
	t.Parallel()
	cat := starterCatalog(t)

	require.NotNil(t, cat.Type("Func", 2))
	require.NotNil(t, cat.Type("Expression", 1))
	assert.Nil(t, cat.Type("Person", 1))

	person := cat.Type("Person", 0)
	require.NotNil(t, person)
	assert.True(t, person.User)
	assert.False(t, cat.Type("String", 0).User)
}

func TestCatalogMembersIncludeBases(t *testing.T) {
	t.Parallel()
	cat := starterCatalog(t)

	set := typesys.Named("DbSet", typesys.Named("Person"))
	got := names(cat.Members(set))
	assert.Contains(t, got, "Find")
	assert.Contains(t, got, "ToString")

	find := cat.Members(set)[indexOf(got, "Find")]
	assert.Equal(t, "Person", find.Type.Name)
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func TestCatalogAsBase(t *testing.T) {
	t.Parallel()
	cat := starterCatalog(t)

	set := typesys.Named("DbSet", typesys.Named("Person"))
	seq, dist := cat.AsBase(set, "IEnumerable", 1)
	require.NotNil(t, seq)
	assert.Equal(t, "IEnumerable<Person>", seq.String())

	q, qdist := cat.AsBase(set, "IQueryable", 1)
	require.NotNil(t, q)
	assert.Less(t, qdist, dist)

	none, _ := cat.AsBase(set, "IGrouping", 2)
	assert.Nil(t, none)
}

func TestCatalogReduceExtensionPrefersQueryable(t *testing.T) {
	t.Parallel()
	cat := starterCatalog(t)

	set := typesys.Named("DbSet", typesys.Named("Person"))
	best := -1
	var container string
	for _, m := range cat.ExtensionMethods("Where") {
		s, b, dist, ok := cat.ReduceExtension(m, set)
		if !ok {
			continue
		}
		assert.Equal(t, "Person", b["TSource"].String())
		if best < 0 || dist < best {
			best, container = dist, s.Container.Name
		}
	}
	assert.Equal(t, "Queryable", container)
}

// --- Types and binding ---

func TestTypeOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		snippet string
		expr    string
		want    string
	}{
		{"property", "context.People", "context.People", "DbSet<Person>"},
		{"where", "context.People.Where(p => p.Age > 18)", "context.People.Where(p => p.Age > 18)", "IQueryable<Person>"},
		{"select", "context.People.Select(p => p.Age)", "context.People.Select(p => p.Age)", "IQueryable<int>"},
		{"ordering", "context.People.OrderBy(p => p.Age).ThenBy(p => p.Id)", "context.People.OrderBy(p => p.Age).ThenBy(p => p.Id)", "IOrderedQueryable<Person>"},
		{"aggregate", "context.People.Count()", "context.People.Count()", "int"},
		{"enumerable", "context.People.ToList().Where(p => p.Age > 1)", "context.People.ToList().Where(p => p.Age > 1)", "IEnumerable<Person>"},
		{"await", "await context.People.ToListAsync()", "await context.People.ToListAsync()", "List<Person>"},
		{"numeric promotion", "var x = 1 + 2.5", "1 + 2.5", "double"},
		{"string literal", `var s = "abc"`, `"abc"`, "string"},
		{"local", "var q = context.People; q.Count()", "q.Count()", "int"},
		{"query", "from p in context.People where p.Age > 1 select p.Age", "from p in context.People where p.Age > 1 select p.Age", "IQueryable<int>"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, _ := newTestModel(t, tt.snippet)
			got := m.TypeOf(findNode(t, m, tt.expr))
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestTypeOfAnonymousProjection(t *testing.T) {
	t.Parallel()
	m, _ := newTestModel(t, "context.People.Select(p => new { p.Id, Years = p.Age })")

	got := m.TypeOf(findNode(t, m, "context.People.Select(p => new { p.Id, Years = p.Age })"))
	require.NotNil(t, got)
	require.Len(t, got.Args, 1)
	anon := got.Args[0]
	require.Len(t, anon.Members, 2)
	assert.Equal(t, "Id", anon.Members[0].Name)
	assert.Equal(t, "Years", anon.Members[1].Name)
	assert.Equal(t, "int", anon.Members[1].Type.String())
}

func TestSymbolInfoExtensionMethod(t *testing.T) {
	t.Parallel()
	m, _ := newTestModel(t, "context.People.Where(p => p.Age > 18)")

	info := m.SymbolInfo(findNode(t, m, "context.People.Where"))
	s := info.Best()
	require.NotNil(t, s)
	assert.Equal(t, KindMethod, s.Kind)
	assert.True(t, s.IsExtension)
	assert.Equal(t, "Queryable", s.Container.Name)
	require.Len(t, s.TypeArgs, 1)
	assert.Equal(t, "Person", s.TypeArgs[0].String())

	sig := s.Signature()
	assert.Contains(t, sig, "Queryable.Where<Person>(")
	assert.Contains(t, sig, "Func<Person, bool>")
	assert.Contains(t, Summary(s.Doc), "Filters a sequence")
}

func TestSymbolInfoLambdaParameter(t *testing.T) {
	t.Parallel()
	m, _ := newTestModel(t, "context.People.Where(p => p.Age > 18)")

	access := findNode(t, m, "p.Age")
	p := m.SymbolInfo(access.ChildByFieldName("expression")).Best()
	require.NotNil(t, p)
	assert.Equal(t, KindParameter, p.Kind)
	assert.Equal(t, "Person p", p.Signature())

	age := m.SymbolInfo(access).Best()
	require.NotNil(t, age)
	assert.Equal(t, KindProperty, age.Kind)
	assert.Equal(t, "int Age", age.Signature())
}

func TestSymbolInfoParameterAndType(t *testing.T) {
	t.Parallel()
	m, _ := newTestModel(t, "context.People")

	access := findNode(t, m, "context.People")
	ctxParam := m.SymbolInfo(access.ChildByFieldName("expression")).Best()
	require.NotNil(t, ctxParam)
	assert.Equal(t, KindParameter, ctxParam.Kind)
	assert.Equal(t, "TestDbContext context", ctxParam.Signature())

	people := m.SymbolInfo(access).Best()
	require.NotNil(t, people)
	assert.Equal(t, "DbSet<Person> People", people.Signature())
}

func TestSymbolInfoOverloadGroup(t *testing.T) {
	t.Parallel()
	// The call does not bind, so every Count overload is a candidate.
	m, _ := newTestModel(t, `context.People.Count("x", "y", "z")`)

	info := m.SymbolInfo(findNode(t, m, "context.People.Count"))
	assert.Nil(t, info.Symbol)
	assert.NotEmpty(t, info.Candidates)
	for _, c := range info.Candidates {
		assert.Equal(t, "Count", c.Name)
	}
}

// --- Scopes ---

func TestLookupSymbols(t *testing.T) {
	t.Parallel()
	snippet := "var adults = context.People.Where(a => a.Age >= 18); adults.Count()"
	m, start := newTestModel(t, snippet)
	end := start + len(snippet)

	visible := m.LookupSymbols(end, "")
	got := names(visible)
	assert.Contains(t, got, "adults")
	assert.Contains(t, got, "context")
	assert.Contains(t, got, "Person")
	assert.Contains(t, got, "Query")
	assert.NotContains(t, got, "a", "lambda parameters are not visible outside the lambda")

	adults := m.LookupSymbols(end, "adults")
	require.Len(t, adults, 1)
	assert.Equal(t, KindLocal, adults[0].Kind)
	assert.Equal(t, "IQueryable<Person>", adults[0].Type.String())
}

func TestLookupSymbolsInsideLambda(t *testing.T) {
	t.Parallel()
	snippet := "context.People.Where(p => p.Age > 18)"
	m, start := newTestModel(t, snippet)

	got := m.LookupSymbols(start+strings.Index(snippet, "p.Age"), "p")
	require.Len(t, got, 1)
	assert.Equal(t, "Person", got[0].Type.String())
}

func TestLookupSymbolsLocalsDeclaredLater(t *testing.T) {
	t.Parallel()
	snippet := "var a = 1; var b = 2"
	m, start := newTestModel(t, snippet)

	got := names(m.LookupSymbols(start+strings.Index(snippet, "var b"), ""))
	assert.Contains(t, got, "a")
	assert.NotContains(t, got, "b")
}

func TestLookupSymbolsRangeVariables(t *testing.T) {
	t.Parallel()
	snippet := "from p in context.People let years = p.Age select years"
	m, start := newTestModel(t, snippet)

	got := m.LookupSymbols(start+strings.Index(snippet, "select years")+len("select "), "")
	byName := make(map[string]*Symbol)
	for _, s := range got {
		byName[s.Name] = s
	}
	require.Contains(t, byName, "p")
	require.Contains(t, byName, "years")
	assert.Equal(t, KindRangeVariable, byName["p"].Kind)
	assert.Equal(t, "Person", byName["p"].Type.String())
	assert.Equal(t, "int", byName["years"].Type.String())
}

// --- Completion ---

func TestCompleteMembers(t *testing.T) {
	t.Parallel()
	snippet := "context.People."
	m, start := newTestModel(t, snippet)

	list, ok, err := m.Complete(context.Background(), start+len(snippet))
	require.NoError(t, err)
	require.True(t, ok)
	got := completionTexts(list)
	for _, want := range []string{"Where", "Select", "Count", "First", "Find"} {
		assert.Contains(t, got, want)
	}

	where := findCompletion(list, "Where")
	require.NotNil(t, where)
	assert.True(t, where.CallShaped)
	assert.Equal(t, "<>", where.DisplaySuffix)
	assert.Contains(t, where.Tags, TagExtension)
	assert.Contains(t, where.Detail, "overload")

	for i := 1; i < len(list.Items); i++ {
		assert.False(t, lessFold(list.Items[i].FilterText, list.Items[i-1].FilterText), "items are sorted")
	}
}

func TestCompleteMidWordIgnoresTextAfterCursor(t *testing.T) {
	t.Parallel()
	snippet := "context.People.Wh).Garbage("
	m, start := newTestModel(t, snippet)

	list, ok, err := m.Complete(context.Background(), start+strings.Index(snippet, ")"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, completionTexts(list), "Where")
}

func TestCompleteLambdaParameterMembers(t *testing.T) {
	t.Parallel()
	snippet := "context.People.Where(p => p."
	m, start := newTestModel(t, snippet)

	list, ok, err := m.Complete(context.Background(), start+len(snippet))
	require.NoError(t, err)
	require.True(t, ok)
	got := completionTexts(list)
	assert.Contains(t, got, "Age")
	assert.Contains(t, got, "Name")

	age := findCompletion(list, "Age")
	require.NotNil(t, age)
	assert.False(t, age.CallShaped)
	assert.Equal(t, []string{TagProperty}, age.Tags)
}

func TestCompleteRangeVariableInUnfinishedQuery(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		snippet string
	}{
		{"where", "from p in context.People where p."},
		{"orderby", "from p in context.People orderby p."},
		{"let", "from p in context.People let n = p."},
		{"second where", "from p in context.People where p.Age > 1 where p."},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, start := newTestModel(t, tt.snippet)
			list, ok, err := m.Complete(context.Background(), start+len(tt.snippet))
			require.NoError(t, err)
			require.True(t, ok)
			got := completionTexts(list)
			assert.Contains(t, got, "Name")
			assert.Contains(t, got, "Age")
		})
	}
}

func TestCompleteAwaitedLocal(t *testing.T) {
	t.Parallel()
	snippet := "var list = await context.People.ToListAsync(); list."
	m, start := newTestModel(t, snippet)

	list, ok, err := m.Complete(context.Background(), start+len(snippet))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, completionTexts(list), "Count")
}

func TestCompleteNames(t *testing.T) {
	t.Parallel()
	snippet := "con"
	m, start := newTestModel(t, snippet)

	list, ok, err := m.Complete(context.Background(), start+len(snippet))
	require.NoError(t, err)
	require.True(t, ok)
	got := completionTexts(list)
	assert.Contains(t, got, "context")
	assert.Contains(t, got, "from")

	kw := findCompletion(list, "from")
	require.NotNil(t, kw)
	assert.Nil(t, kw.Symbol)
	assert.Equal(t, []string{TagKeyword}, kw.Tags)
}

func TestCompleteNoContext(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		snippet string
	}{
		{"string", `var s = "abc`},
		{"line comment", "context.People // note"},
		{"block comment", "context.People /* note"},
		{"number", "var n = 12"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, start := newTestModel(t, tt.snippet)
			list, ok, err := m.Complete(context.Background(), start+len(tt.snippet))
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, list)
		})
	}
}

func TestCompleteOutOfRange(t *testing.T) {
	t.Parallel()
	m, _ := newTestModel(t, "context")

	_, ok, err := m.Complete(context.Background(), -1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.Complete(context.Background(), m.tree.Len()+1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	snippet := "context.People."
	m, start := newTestModel(t, snippet)

	list, ok, err := m.Complete(context.Background(), start+len(snippet))
	require.NoError(t, err)
	require.True(t, ok)

	where := findCompletion(list, "Where")
	require.NotNil(t, where)
	assert.Equal(t, "Filters a sequence of values based on a predicate.", m.Describe(*where))
}

// --- Documentation and lexing ---

func TestSummary(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "", ""},
		{"summary", "<summary>My special set</summary>", "My special set"},
		{"multiline", "<summary>\n Returns the\n first element.\n</summary>\n<param name=\"x\">ignored</param>", "Returns the first element."},
		{"cref", `<summary>Wraps <see cref="T:System.String"/> values.</summary>`, "Wraps System.String values."},
		{"no summary", "<remarks>Plain</remarks>", "Plain"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Summary(tt.doc))
		})
	}
}

func TestScan(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
		code bool
		want string
	}{
		{"plain", "foo(bar[", true, "])"},
		{"closed", "foo(bar[1])", true, ""},
		{"string", `x("abc`, false, ""},
		{"escaped quote", `x("a\"b", `, true, ")"},
		{"verbatim", `x(@"a""b`, false, ""},
		{"interpolation hole", `x($"a{y.`, true, `}")`},
		{"escaped brace", `x($"a{{`, false, ""},
		{"char", `x('(', `, true, ")"},
		{"line comment", "x( // (", false, ""},
		{"lambda block", "x(p => { var y = p", true, ";})"},
		{"initializer", "new Foo { A = ", true, "}"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := []byte(tt.src)
			st := scan(src)
			assert.Equal(t, tt.code, st.code)
			if tt.code {
				assert.Equal(t, tt.want, string(closers(src, st.open)))
			}
		})
	}
}

func TestSymbolKindString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "method", KindMethod.String())
	assert.Equal(t, "range variable", KindRangeVariable.String())
	assert.Equal(t, "unknown", SymbolKind(99).String())
}
