package store

import (
	"database/sql"
	"fmt"
	"time"
)

// --- Document operations ---

const documentCols = `id, name, kind, content, hash, version, updated_at`

func (s *Store) InsertDocument(d *Document) (int64, error) {
	if err := insertDocument(s.db, d); err != nil {
		return 0, err
	}
	return d.ID, nil
}

func insertDocument(x execer, d *Document) error {
	if d.Version == 0 {
		d.Version = 1
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}
	res, err := x.Exec(
		"INSERT INTO documents (name, kind, content, hash, version, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		d.Name, d.Kind, d.Content, d.Hash, d.Version, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	d.ID = id
	return nil
}

// UpdateDocument rewrites a document's kind, content and hash and bumps its
// version. d.Version is updated to the stored value.
func (s *Store) UpdateDocument(d *Document) error {
	return updateDocument(s.db, d)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func updateDocument(x execer, d *Document) error {
	d.UpdatedAt = time.Now()
	_, err := x.Exec(
		"UPDATE documents SET kind = ?, content = ?, hash = ?, version = version + 1, updated_at = ? WHERE id = ?",
		d.Kind, d.Content, d.Hash, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update document %q: %w", d.Name, err)
	}
	d.Version++
	return nil
}

func scanDocument(scanner interface{ Scan(...any) error }) (*Document, error) {
	d := &Document{}
	var hash sql.NullString
	var updated sql.NullTime
	if err := scanner.Scan(&d.ID, &d.Name, &d.Kind, &d.Content, &hash, &d.Version, &updated); err != nil {
		return nil, err
	}
	d.Hash = hash.String
	d.UpdatedAt = updated.Time
	return d, nil
}

func (s *Store) DocumentByName(name string) (*Document, error) {
	d, err := scanDocument(s.db.QueryRow("SELECT "+documentCols+" FROM documents WHERE name = ?", name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("document by name: %w", err)
	}
	return d, nil
}

func (s *Store) queryDocuments(query string, args ...any) ([]*Document, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Documents returns every document in insertion order.
func (s *Store) Documents() ([]*Document, error) {
	return s.queryDocuments("SELECT " + documentCols + " FROM documents ORDER BY id")
}

func (s *Store) DocumentsByKind(kind string) ([]*Document, error) {
	return s.queryDocuments("SELECT "+documentCols+" FROM documents WHERE kind = ? ORDER BY id", kind)
}

func (s *Store) CountDocumentsByKind(kind string) (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM documents WHERE kind = ?", kind).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
