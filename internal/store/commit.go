package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real IDs
// and every reference within the batch is rewritten through the mapping.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	if err := commitBatchTx(tx, batch, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceDocument makes batch the complete set of d's declarations and
// stores d's new text, all in one transaction. A document without an ID is
// inserted. Readers see either the old declarations or the new ones, never
// a mix.
func (s *Store) ReplaceDocument(d *Document, batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("replace document %q: begin: %w", d.Name, err)
	}
	defer tx.Rollback()

	inserted := d.ID == 0
	if inserted {
		if err := insertDocument(tx, d); err != nil {
			return fmt.Errorf("replace document %q: %w", d.Name, err)
		}
	} else if err := deleteDocumentDataTx(tx, d.ID); err != nil {
		return fmt.Errorf("replace document %q: %w", d.Name, err)
	}
	if err := commitBatchTx(tx, batch, &d.ID); err != nil {
		if inserted {
			d.ID = 0
		}
		return fmt.Errorf("replace document %q: %w", d.Name, err)
	}
	if !inserted {
		if err := updateDocument(tx, d); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		if inserted {
			d.ID = 0
		} else {
			d.Version--
		}
		return fmt.Errorf("replace document %q: commit: %w", d.Name, err)
	}
	return nil
}

// Insert order follows FK dependencies: symbols first (parents before
// members, which extraction guarantees by insertion order), then the rows
// that hang off a symbol. A non-nil documentID overrides every buffered
// symbol's document.
func commitBatchTx(tx *sql.Tx, batch *BatchedStore, documentID *int64) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	fakeToReal := make(map[int64]int64, len(batch.Symbols))
	remap := func(id int64) (int64, error) {
		if id >= 0 {
			return id, nil
		}
		realID, ok := fakeToReal[id]
		if !ok {
			return 0, fmt.Errorf("symbol_id=%d not in batch (have %d symbols)", id, len(batch.Symbols))
		}
		return realID, nil
	}

	for _, sym := range batch.Symbols {
		if documentID != nil {
			sym.DocumentID = documentID
		}
		if sym.ParentSymbolID != nil && *sym.ParentSymbolID < 0 {
			realID, err := remap(*sym.ParentSymbolID)
			if err != nil {
				return fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
			}
			sym.ParentSymbolID = &realID
		}
		realID, err := insertSymbol(tx, &sym)
		if err != nil {
			return fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
		fakeToReal[sym.ID] = realID
	}

	for _, tp := range batch.TypeParams {
		id, err := remap(tp.SymbolID)
		if err != nil {
			return fmt.Errorf("commit batch: type param %q: %w", tp.Name, err)
		}
		tp.SymbolID = id
		if _, err := insertTypeParam(tx, &tp); err != nil {
			return fmt.Errorf("commit batch: type param %q: %w", tp.Name, err)
		}
	}

	for _, fp := range batch.FunctionParams {
		id, err := remap(fp.SymbolID)
		if err != nil {
			return fmt.Errorf("commit batch: function param %q: %w", fp.Name, err)
		}
		fp.SymbolID = id
		if _, err := insertFunctionParam(tx, &fp); err != nil {
			return fmt.Errorf("commit batch: function param %q: %w", fp.Name, err)
		}
	}

	for _, bt := range batch.BaseTypes {
		id, err := remap(bt.SymbolID)
		if err != nil {
			return fmt.Errorf("commit batch: base type %q: %w", bt.TypeExpr, err)
		}
		bt.SymbolID = id
		if _, err := insertBaseType(tx, &bt); err != nil {
			return fmt.Errorf("commit batch: base type %q: %w", bt.TypeExpr, err)
		}
	}

	for _, eb := range batch.ExtensionBindings {
		id, err := remap(eb.MemberSymbolID)
		if err != nil {
			return fmt.Errorf("commit batch: extension binding %q: %w", eb.ExtendedTypeExpr, err)
		}
		eb.MemberSymbolID = id
		if _, err := insertExtensionBinding(tx, &eb); err != nil {
			return fmt.Errorf("commit batch: extension binding %q: %w", eb.ExtendedTypeExpr, err)
		}
	}
	return nil
}
