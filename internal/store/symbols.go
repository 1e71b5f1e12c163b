package store

import (
	"database/sql"
	"fmt"
)

// --- Symbol operations ---

func (s *Store) InsertSymbol(sym *Symbol) (int64, error) {
	id, err := insertSymbol(s.db, sym)
	if err != nil {
		return 0, fmt.Errorf("insert symbol: %w", err)
	}
	sym.ID = id
	return id, nil
}

func insertSymbol(x execer, sym *Symbol) (int64, error) {
	mods := marshalModifiers(sym.Modifiers)
	res, err := x.Exec(
		`INSERT INTO symbols (document_id, name, kind, visibility, modifiers, type_expr, doc,
			start_byte, end_byte, start_line, start_col, parent_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.DocumentID, sym.Name, sym.Kind, sym.Visibility, mods, sym.TypeExpr, sym.Doc,
		sym.StartByte, sym.EndByte, sym.StartLine, sym.StartCol, sym.ParentSymbolID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) scanSymbol(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	sym := &Symbol{}
	var mods, vis, typeExpr, doc sql.NullString
	err := scanner.Scan(
		&sym.ID, &sym.DocumentID, &sym.Name, &sym.Kind, &vis, &mods, &typeExpr, &doc,
		&sym.StartByte, &sym.EndByte, &sym.StartLine, &sym.StartCol, &sym.ParentSymbolID,
	)
	if err != nil {
		return nil, err
	}
	sym.Visibility = vis.String
	sym.TypeExpr = typeExpr.String
	sym.Doc = doc.String
	sym.Modifiers = UnmarshalModifiers(mods.String)
	return sym, nil
}

// SymbolCols is the column list for symbol queries.
const SymbolCols = `id, document_id, name, kind, visibility, modifiers, type_expr, doc,
	start_byte, end_byte, start_line, start_col, parent_symbol_id`

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym, err := s.scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *Store) SymbolByID(id int64) (*Symbol, error) {
	sym, err := s.scanSymbol(s.db.QueryRow("SELECT "+SymbolCols+" FROM symbols WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("symbol by id: %w", err)
	}
	return sym, nil
}

func (s *Store) SymbolsByDocument(documentID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE document_id = ? ORDER BY id", documentID)
}

func (s *Store) SymbolsByName(name string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE name = ? ORDER BY id", name)
}

func (s *Store) SymbolsByKind(kind string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE kind = ? ORDER BY id", kind)
}

func (s *Store) SymbolChildren(symbolID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE parent_symbol_id = ? ORDER BY id", symbolID)
}

// TypesByName returns every type declaration with the given simple name,
// ordered so that user documents (model, context) come before the prelude.
func (s *Store) TypesByName(name string) ([]*Symbol, error) {
	return s.querySymbols(
		`SELECT s.id, s.document_id, s.name, s.kind, s.visibility, s.modifiers, s.type_expr, s.doc,
			s.start_byte, s.end_byte, s.start_line, s.start_col, s.parent_symbol_id
		 FROM symbols s LEFT JOIN documents d ON d.id = s.document_id
		 WHERE s.name = ? AND s.kind IN (`+placeholderList(len(TypeKinds))+`)
		 ORDER BY CASE d.kind WHEN 'prelude' THEN 1 ELSE 0 END, s.id`,
		append([]any{name}, stringsToArgs(TypeKinds)...)...,
	)
}

// Types returns every type declaration in the store.
func (s *Store) Types() ([]*Symbol, error) {
	return s.querySymbols(
		"SELECT "+SymbolCols+" FROM symbols WHERE kind IN ("+placeholderList(len(TypeKinds))+") ORDER BY id",
		stringsToArgs(TypeKinds)...,
	)
}

// MethodsByName returns every method with the given name across all types.
func (s *Store) MethodsByName(name string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE name = ? AND kind = ? ORDER BY id", name, SymMethod)
}

// --- TypeParam operations ---

func (s *Store) InsertTypeParam(tp *TypeParam) (int64, error) {
	id, err := insertTypeParam(s.db, tp)
	if err != nil {
		return 0, fmt.Errorf("insert type param: %w", err)
	}
	tp.ID = id
	return id, nil
}

func insertTypeParam(x execer, tp *TypeParam) (int64, error) {
	res, err := x.Exec(
		"INSERT INTO type_parameters (symbol_id, name, ordinal, variance) VALUES (?, ?, ?, ?)",
		tp.SymbolID, tp.Name, tp.Ordinal, tp.Variance,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) TypeParams(symbolID int64) ([]*TypeParam, error) {
	rows, err := s.db.Query(
		"SELECT id, symbol_id, name, ordinal, variance FROM type_parameters WHERE symbol_id = ? ORDER BY ordinal",
		symbolID,
	)
	if err != nil {
		return nil, fmt.Errorf("type params: %w", err)
	}
	defer rows.Close()
	var params []*TypeParam
	for rows.Next() {
		tp := &TypeParam{}
		var variance sql.NullString
		if err := rows.Scan(&tp.ID, &tp.SymbolID, &tp.Name, &tp.Ordinal, &variance); err != nil {
			return nil, fmt.Errorf("scan type param: %w", err)
		}
		tp.Variance = variance.String
		params = append(params, tp)
	}
	return params, rows.Err()
}

// --- FunctionParam operations ---

func (s *Store) InsertFunctionParam(fp *FunctionParam) (int64, error) {
	id, err := insertFunctionParam(s.db, fp)
	if err != nil {
		return 0, fmt.Errorf("insert function param: %w", err)
	}
	fp.ID = id
	return id, nil
}

func insertFunctionParam(x execer, fp *FunctionParam) (int64, error) {
	res, err := x.Exec(
		`INSERT INTO function_parameters (symbol_id, name, ordinal, type_expr, modifier, is_receiver, has_default, default_expr)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fp.SymbolID, fp.Name, fp.Ordinal, fp.TypeExpr, fp.Modifier,
		fp.IsReceiver, fp.HasDefault, fp.DefaultExpr,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) FunctionParams(symbolID int64) ([]*FunctionParam, error) {
	rows, err := s.db.Query(
		`SELECT id, symbol_id, name, ordinal, type_expr, modifier, is_receiver, has_default, default_expr
		 FROM function_parameters WHERE symbol_id = ? ORDER BY ordinal`,
		symbolID,
	)
	if err != nil {
		return nil, fmt.Errorf("function params: %w", err)
	}
	defer rows.Close()
	var params []*FunctionParam
	for rows.Next() {
		fp := &FunctionParam{}
		var name, typeExpr, modifier, defaultExpr sql.NullString
		if err := rows.Scan(&fp.ID, &fp.SymbolID, &name, &fp.Ordinal, &typeExpr, &modifier,
			&fp.IsReceiver, &fp.HasDefault, &defaultExpr); err != nil {
			return nil, fmt.Errorf("scan function param: %w", err)
		}
		fp.Name = name.String
		fp.TypeExpr = typeExpr.String
		fp.Modifier = modifier.String
		fp.DefaultExpr = defaultExpr.String
		params = append(params, fp)
	}
	return params, rows.Err()
}

// --- BaseType operations ---

func (s *Store) InsertBaseType(bt *BaseType) (int64, error) {
	id, err := insertBaseType(s.db, bt)
	if err != nil {
		return 0, fmt.Errorf("insert base type: %w", err)
	}
	bt.ID = id
	return id, nil
}

func insertBaseType(x execer, bt *BaseType) (int64, error) {
	res, err := x.Exec(
		"INSERT INTO base_types (symbol_id, type_expr, ordinal) VALUES (?, ?, ?)",
		bt.SymbolID, bt.TypeExpr, bt.Ordinal,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) BaseTypes(symbolID int64) ([]*BaseType, error) {
	rows, err := s.db.Query(
		"SELECT id, symbol_id, type_expr, ordinal FROM base_types WHERE symbol_id = ? ORDER BY ordinal",
		symbolID,
	)
	if err != nil {
		return nil, fmt.Errorf("base types: %w", err)
	}
	defer rows.Close()
	var bases []*BaseType
	for rows.Next() {
		bt := &BaseType{}
		if err := rows.Scan(&bt.ID, &bt.SymbolID, &bt.TypeExpr, &bt.Ordinal); err != nil {
			return nil, fmt.Errorf("scan base type: %w", err)
		}
		bases = append(bases, bt)
	}
	return bases, rows.Err()
}

// --- ExtensionBinding operations ---

func (s *Store) InsertExtensionBinding(eb *ExtensionBinding) (int64, error) {
	id, err := insertExtensionBinding(s.db, eb)
	if err != nil {
		return 0, fmt.Errorf("insert extension binding: %w", err)
	}
	eb.ID = id
	return id, nil
}

func insertExtensionBinding(x execer, eb *ExtensionBinding) (int64, error) {
	kind := eb.Kind
	if kind == "" {
		kind = "method"
	}
	res, err := x.Exec(
		"INSERT INTO extension_bindings (member_symbol_id, extended_type_expr, kind) VALUES (?, ?, ?)",
		eb.MemberSymbolID, eb.ExtendedTypeExpr, kind,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) queryExtensionBindings(query string, args ...any) ([]*ExtensionBinding, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("extension bindings: %w", err)
	}
	defer rows.Close()
	var bindings []*ExtensionBinding
	for rows.Next() {
		eb := &ExtensionBinding{}
		if err := rows.Scan(&eb.ID, &eb.MemberSymbolID, &eb.ExtendedTypeExpr, &eb.Kind); err != nil {
			return nil, fmt.Errorf("scan extension binding: %w", err)
		}
		bindings = append(bindings, eb)
	}
	return bindings, rows.Err()
}

// ExtensionBindings returns every extension binding in the store.
func (s *Store) ExtensionBindings() ([]*ExtensionBinding, error) {
	return s.queryExtensionBindings("SELECT id, member_symbol_id, extended_type_expr, kind FROM extension_bindings ORDER BY id")
}

func (s *Store) ExtensionBindingsByMember(memberSymbolID int64) ([]*ExtensionBinding, error) {
	return s.queryExtensionBindings(
		"SELECT id, member_symbol_id, extended_type_expr, kind FROM extension_bindings WHERE member_symbol_id = ?",
		memberSymbolID,
	)
}
