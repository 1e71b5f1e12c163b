package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for a workspace's documents and the
// declarations extracted from them.
//
// A Store keeps a single connection open. Every query reads its rows to
// completion before returning, and transaction helpers only ever touch the
// *sql.Tx they are given, so nested use never waits on the pool.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	return open(dbPath + "?_foreign_keys=ON&_busy_timeout=30000")
}

// NewMemoryStore opens a private in-memory database. The name must be unique
// per process; two stores opened with the same name share their contents.
func NewMemoryStore(name string) (*Store, error) {
	return open("file:" + name + "?mode=memory&cache=shared&_foreign_keys=ON")
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// An in-memory database lives as long as its last connection, so the
	// pool is pinned to exactly one that is never recycled.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
  id              INTEGER PRIMARY KEY,
  name            TEXT NOT NULL UNIQUE,
  kind            TEXT NOT NULL,
  content         TEXT NOT NULL,
  hash            TEXT,
  version         INTEGER NOT NULL DEFAULT 1,
  updated_at      TIMESTAMP
);

CREATE TABLE IF NOT EXISTS symbols (
  id              INTEGER PRIMARY KEY,
  document_id     INTEGER REFERENCES documents(id),
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  visibility      TEXT,
  modifiers       TEXT,
  type_expr       TEXT,
  doc             TEXT,
  start_byte      INTEGER,
  end_byte        INTEGER,
  start_line      INTEGER,
  start_col       INTEGER,
  parent_symbol_id INTEGER REFERENCES symbols(id)
);

CREATE TABLE IF NOT EXISTS type_parameters (
  id              INTEGER PRIMARY KEY,
  symbol_id       INTEGER NOT NULL REFERENCES symbols(id),
  name            TEXT NOT NULL,
  ordinal         INTEGER NOT NULL,
  variance        TEXT
);

CREATE TABLE IF NOT EXISTS function_parameters (
  id              INTEGER PRIMARY KEY,
  symbol_id       INTEGER NOT NULL REFERENCES symbols(id),
  name            TEXT,
  ordinal         INTEGER NOT NULL,
  type_expr       TEXT,
  modifier        TEXT,
  is_receiver     BOOLEAN DEFAULT FALSE,
  has_default     BOOLEAN DEFAULT FALSE,
  default_expr    TEXT
);

CREATE TABLE IF NOT EXISTS base_types (
  id              INTEGER PRIMARY KEY,
  symbol_id       INTEGER NOT NULL REFERENCES symbols(id),
  type_expr       TEXT NOT NULL,
  ordinal         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS extension_bindings (
  id              INTEGER PRIMARY KEY,
  member_symbol_id INTEGER NOT NULL REFERENCES symbols(id),
  extended_type_expr TEXT NOT NULL,
  kind            TEXT DEFAULT 'method'
);

CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(kind);
CREATE INDEX IF NOT EXISTS idx_symbols_document ON symbols(document_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
CREATE INDEX IF NOT EXISTS idx_symbols_parent ON symbols(parent_symbol_id);
CREATE INDEX IF NOT EXISTS idx_type_params_symbol ON type_parameters(symbol_id);
CREATE INDEX IF NOT EXISTS idx_function_params_symbol ON function_parameters(symbol_id);
CREATE INDEX IF NOT EXISTS idx_base_types_symbol ON base_types(symbol_id);
CREATE INDEX IF NOT EXISTS idx_extension_bindings_member ON extension_bindings(member_symbol_id);
`

// DeleteDocumentData transactionally removes every declaration extracted from
// a document. The document row itself is kept.
func (s *Store) DeleteDocumentData(documentID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteDocumentDataTx(tx, documentID); err != nil {
		return err
	}
	return tx.Commit()
}

// deleteDocumentDataTx deletes in reverse-dependency order to respect FK
// constraints.
func deleteDocumentDataTx(tx *sql.Tx, documentID int64) error {
	rows, err := tx.Query("SELECT id FROM symbols WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("query symbols: %w", err)
	}
	var symbolIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan symbol id: %w", err)
		}
		symbolIDs = append(symbolIDs, id)
	}
	rows.Close()

	if len(symbolIDs) > 0 {
		placeholders := placeholderList(len(symbolIDs))
		args := int64sToArgs(symbolIDs)
		for _, q := range []string{
			"DELETE FROM extension_bindings WHERE member_symbol_id IN (" + placeholders + ")",
			"DELETE FROM base_types WHERE symbol_id IN (" + placeholders + ")",
			"DELETE FROM function_parameters WHERE symbol_id IN (" + placeholders + ")",
			"DELETE FROM type_parameters WHERE symbol_id IN (" + placeholders + ")",
		} {
			if _, err := tx.Exec(q, args...); err != nil {
				return fmt.Errorf("delete declaration child data: %w", err)
			}
		}
	}

	// Children first: parent_symbol_id references rows in the same table.
	if _, err := tx.Exec("DELETE FROM symbols WHERE document_id = ? AND parent_symbol_id IS NOT NULL", documentID); err != nil {
		return fmt.Errorf("delete member symbols: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM symbols WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("delete symbols: %w", err)
	}
	return nil
}

// DeleteDocument removes a document and everything extracted from it in one
// transaction.
func (s *Store) DeleteDocument(documentID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteDocumentDataTx(tx, documentID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM documents WHERE id = ?", documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return tx.Commit()
}
