package linqlens

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jward/linqlens/internal/store"
)

// QueryBuilder lists the declarations a session knows about: the prelude,
// the models and the context. Every call runs under the session's gate.
type QueryBuilder struct {
	s *Session
}

// Query returns the declaration query API for the session.
func (s *Session) Query() *QueryBuilder {
	return &QueryBuilder{s: s}
}

// --- Common Types ---

// Pagination controls offset+limit paging on list/search results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// SortField specifies how to order results.
type SortField string

const (
	SortByName     SortField = "name"
	SortByKind     SortField = "kind"
	SortByDocument SortField = "document"
)

// SortOrder specifies ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sort controls result ordering.
type Sort struct {
	Field SortField
	Order SortOrder
}

// SymbolResult is a declaration with the document it came from.
type SymbolResult struct {
	store.Symbol
	DocumentName string
	DocumentKind string
	ParentName   string // declaring type, empty for top-level types
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

// SymbolFilter specifies which symbols to include. All fields are optional.
type SymbolFilter struct {
	Kinds        []string // match any of these kinds
	Visibility   *string  // exact match
	Modifiers    []string // symbol must have ALL of these modifiers
	DocumentKind *string  // prelude, model or context
	DocumentName *string
	ParentID     *int64 // restrict to direct members of this type
}

// DocumentResult describes one declaration document.
type DocumentResult struct {
	Name        string
	Kind        string
	Version     int
	Hash        string
	SymbolCount int
}

// WorkspaceSummary counts what a session has loaded.
type WorkspaceSummary struct {
	Documents  map[string]int // by document kind
	Symbols    map[string]int // by symbol kind
	Generation uint64
}

// SymbolDetail bundles a symbol with its structural metadata.
type SymbolDetail struct {
	Symbol     SymbolResult
	Parameters []*store.FunctionParam // empty for non-methods
	TypeParams []*store.TypeParam     // empty if non-generic
	BaseTypes  []*store.BaseType      // empty for members
	Members    []SymbolResult         // empty for members
}

// --- Internal Helpers ---

// symbolSortColumn returns the SQL ORDER BY expression for symbol queries.
// Falls back to "s.name" for unknown fields.
func symbolSortColumn(field SortField) string {
	switch field {
	case SortByKind:
		return "s.kind"
	case SortByDocument:
		return "d.name"
	default:
		return "s.name"
	}
}

// sortDirection returns "ASC" or "DESC".
func sortDirection(order SortOrder) string {
	if order == Desc {
		return "DESC"
	}
	return "ASC"
}

// run holds the gate for fn. The store is single-connection: fn must finish
// reading one result set before starting another query.
func (q *QueryBuilder) run(ctx context.Context, op string, fn func(db *sql.DB) error) error {
	release, err := q.s.gate.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return q.s.guard(op, func() error { return fn(q.s.ws.Store().DB()) })
}

func filterClause(pattern string, filter SymbolFilter) (string, []any) {
	var where []string
	var args []any

	// Pattern matching: escape literal % and _ first, then convert * to %
	if pattern != "" && pattern != "*" {
		likePattern := strings.ReplaceAll(escapeLike(pattern), "*", "%")
		where = append(where, "s.name LIKE ? ESCAPE '\\'")
		args = append(args, likePattern)
	}
	if len(filter.Kinds) > 0 {
		placeholders := strings.Repeat("?,", len(filter.Kinds)-1) + "?"
		where = append(where, "s.kind IN ("+placeholders+")")
		for _, k := range filter.Kinds {
			args = append(args, k)
		}
	}
	if filter.Visibility != nil {
		where = append(where, "s.visibility = ?")
		args = append(args, *filter.Visibility)
	}
	if filter.DocumentKind != nil {
		where = append(where, "d.kind = ?")
		args = append(args, *filter.DocumentKind)
	}
	if filter.DocumentName != nil {
		where = append(where, "d.name = ?")
		args = append(args, *filter.DocumentName)
	}
	if filter.ParentID != nil {
		where = append(where, "s.parent_symbol_id = ?")
		args = append(args, *filter.ParentID)
	}
	for _, mod := range filter.Modifiers {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(s.modifiers) WHERE json_each.value = ?)")
		args = append(args, mod)
	}

	if len(where) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(where, " AND "), args
}

const symbolFrom = `FROM symbols s
	LEFT JOIN documents d ON s.document_id = d.id
	LEFT JOIN symbols p ON s.parent_symbol_id = p.id `

func (q *QueryBuilder) symbols(ctx context.Context, op, pattern string, filter SymbolFilter, sort Sort, page Pagination) (*PagedResult[SymbolResult], error) {
	page = page.normalize()
	whereClause, args := filterClause(pattern, filter)

	var result *PagedResult[SymbolResult]
	err := q.run(ctx, op, func(db *sql.DB) error {
		var totalCount int
		if err := db.QueryRow(`SELECT COUNT(*) `+symbolFrom+whereClause, args...).Scan(&totalCount); err != nil {
			return fmt.Errorf("count: %w", err)
		}

		dataSQL := fmt.Sprintf(
			`SELECT %s, COALESCE(d.name, ''), COALESCE(d.kind, ''), COALESCE(p.name, '')
			 %s %s
			 ORDER BY %s %s, s.id
			 LIMIT ? OFFSET ?`,
			prefixSymbolCols("s"), symbolFrom, whereClause,
			symbolSortColumn(sort.Field), sortDirection(sort.Order),
		)
		dataArgs := append(append([]any{}, args...), page.Limit, page.Offset)
		items, err := querySymbolResults(db, dataSQL, dataArgs...)
		if err != nil {
			return err
		}
		result = &PagedResult[SymbolResult]{Items: items, TotalCount: totalCount}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// --- Enumeration Endpoints ---

// Symbols is the primary listing/filtering endpoint.
func (q *QueryBuilder) Symbols(ctx context.Context, filter SymbolFilter, sort Sort, page Pagination) (*PagedResult[SymbolResult], error) {
	return q.symbols(ctx, "symbols", "", filter, sort, page)
}

// SearchSymbols performs glob-style search on symbol names.
// '*' is the wildcard (mapped to SQL '%').
func (q *QueryBuilder) SearchSymbols(ctx context.Context, pattern string, filter SymbolFilter, sort Sort, page Pagination) (*PagedResult[SymbolResult], error) {
	return q.symbols(ctx, "search symbols", pattern, filter, sort, page)
}

// Types lists the type declarations of one document kind, or of all
// documents when kind is empty.
func (q *QueryBuilder) Types(ctx context.Context, kind string, page Pagination) (*PagedResult[SymbolResult], error) {
	filter := SymbolFilter{Kinds: store.TypeKinds}
	if kind != "" {
		filter.DocumentKind = &kind
	}
	return q.Symbols(ctx, filter, Sort{Field: SortByName}, page)
}

// Documents lists declaration documents, optionally of a single kind. The
// snippet document is included when kind is empty or KindSnippet.
func (q *QueryBuilder) Documents(ctx context.Context, kind string) ([]DocumentResult, error) {
	query := `SELECT d.name, d.kind, d.version, COALESCE(d.hash, ''),
			(SELECT COUNT(*) FROM symbols s WHERE s.document_id = d.id)
		 FROM documents d`
	var args []any
	if kind != "" {
		query += ` WHERE d.kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY d.kind, d.name`

	docs := []DocumentResult{}
	err := q.run(ctx, "documents", func(db *sql.DB) error {
		rows, err := db.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var dr DocumentResult
			if err := rows.Scan(&dr.Name, &dr.Kind, &dr.Version, &dr.Hash, &dr.SymbolCount); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			docs = append(docs, dr)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("documents: %w", err)
	}
	return docs, nil
}

// --- Digest Endpoints ---

// Summary counts documents by kind and symbols by kind.
func (q *QueryBuilder) Summary(ctx context.Context) (*WorkspaceSummary, error) {
	summary := &WorkspaceSummary{
		Documents: make(map[string]int),
		Symbols:   make(map[string]int),
	}
	err := q.run(ctx, "summary", func(db *sql.DB) error {
		if err := countInto(db, `SELECT kind, COUNT(*) FROM documents GROUP BY kind`, summary.Documents); err != nil {
			return fmt.Errorf("documents: %w", err)
		}
		if err := countInto(db, `SELECT kind, COUNT(*) FROM symbols GROUP BY kind`, summary.Symbols); err != nil {
			return fmt.Errorf("symbols: %w", err)
		}
		summary.Generation = q.s.ws.Generation()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	return summary, nil
}

// SymbolDetail returns the symbol with its parameters, type parameters,
// base types and members. Returns nil with no error if the symbol ID does
// not exist.
func (q *QueryBuilder) SymbolDetail(ctx context.Context, symbolID int64) (*SymbolDetail, error) {
	var detail *SymbolDetail
	err := q.run(ctx, "symbol detail", func(db *sql.DB) error {
		st := q.s.ws.Store()
		items, err := querySymbolResults(db, fmt.Sprintf(
			`SELECT %s, COALESCE(d.name, ''), COALESCE(d.kind, ''), COALESCE(p.name, '') %s WHERE s.id = ?`,
			prefixSymbolCols("s"), symbolFrom,
		), symbolID)
		if err != nil || len(items) == 0 {
			return err
		}

		params, err := st.FunctionParams(symbolID)
		if err != nil {
			return fmt.Errorf("function params: %w", err)
		}
		typeParams, err := st.TypeParams(symbolID)
		if err != nil {
			return fmt.Errorf("type params: %w", err)
		}
		bases, err := st.BaseTypes(symbolID)
		if err != nil {
			return fmt.Errorf("base types: %w", err)
		}
		members, err := querySymbolResults(db, fmt.Sprintf(
			`SELECT %s, COALESCE(d.name, ''), COALESCE(d.kind, ''), COALESCE(p.name, '') %s
			 WHERE s.parent_symbol_id = ? ORDER BY s.id`,
			prefixSymbolCols("s"), symbolFrom,
		), symbolID)
		if err != nil {
			return fmt.Errorf("members: %w", err)
		}

		if params == nil {
			params = []*store.FunctionParam{}
		}
		if typeParams == nil {
			typeParams = []*store.TypeParam{}
		}
		if bases == nil {
			bases = []*store.BaseType{}
		}
		detail = &SymbolDetail{
			Symbol:     items[0],
			Parameters: params,
			TypeParams: typeParams,
			BaseTypes:  bases,
			Members:    members,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("symbol detail: %w", err)
	}
	return detail, nil
}

// --- Scan Helpers ---

// prefixSymbolCols returns the symbol columns with a table prefix applied.
func prefixSymbolCols(prefix string) string {
	cols := []string{
		"id", "document_id", "name", "kind", "visibility", "modifiers", "type_expr", "doc",
		"start_byte", "end_byte", "start_line", "start_col", "parent_symbol_id",
	}
	prefixed := make([]string, len(cols))
	for i, c := range cols {
		prefixed[i] = prefix + "." + c
	}
	return strings.Join(prefixed, ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

// scanSymbolResult scans a row into a SymbolResult.
// Expects columns: [symbol columns..., document name, document kind, parent name].
func scanSymbolResult(row scanner) (SymbolResult, error) {
	var sr SymbolResult
	var mods, vis, typeExpr, doc sql.NullString
	err := row.Scan(
		&sr.ID, &sr.DocumentID, &sr.Name, &sr.Kind, &vis, &mods, &typeExpr, &doc,
		&sr.StartByte, &sr.EndByte, &sr.StartLine, &sr.StartCol, &sr.ParentSymbolID,
		&sr.DocumentName, &sr.DocumentKind, &sr.ParentName,
	)
	if err != nil {
		return sr, err
	}
	sr.Visibility = vis.String
	sr.TypeExpr = typeExpr.String
	sr.Doc = doc.String
	sr.Modifiers = store.UnmarshalModifiers(mods.String)
	return sr, nil
}

func querySymbolResults(db *sql.DB, query string, args ...any) ([]SymbolResult, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	items := []SymbolResult{}
	for rows.Next() {
		sr, err := scanSymbolResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		items = append(items, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return items, nil
}

func countInto(db *sql.DB, query string, into map[string]int) error {
	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}

// escapeLike escapes SQL LIKE special characters (% and _) with backslash.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
