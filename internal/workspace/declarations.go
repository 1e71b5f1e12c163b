package workspace

import (
	"context"
	"fmt"
	"sync"

	"github.com/jward/linqlens/internal/extract"
	"github.com/jward/linqlens/internal/store"
	"github.com/jward/linqlens/internal/syntax"
)

// workItem holds everything an extraction worker needs.
type workItem struct {
	index int
	src   Source
	doc   *store.Document
	batch *store.BatchedStore
}

// AddDeclarations adds or replaces declaration documents using a three-phase
// pipeline:
//
//	Phase A (serial):   Hash check and prepare document records.
//	Phase B (parallel): Parse and extract via a worker pool.
//	Phase C (serial):   Replace each document and its declarations in one transaction.
//
// Every document is parsed before anything is written, so a syntax error in
// any of them leaves the workspace unchanged.
func (w *Workspace) AddDeclarations(ctx context.Context, sources []Source) error {
	if w.closed {
		return ErrClosed
	}

	// ---- Phase A: Serial preparation ----
	var items []workItem
	byName := make(map[string]int)
	for _, src := range sources {
		item, skip, err := w.prepare(src)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", src.Name, err)
		}
		if skip {
			w.logger.Debug("document unchanged", "document", src.Name)
			continue
		}
		// A repeated name within one call: the later source wins.
		if i, ok := byName[src.Name]; ok {
			item.index = i
			items[i] = item
			continue
		}
		item.index = len(items)
		byName[src.Name] = item.index
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil
	}

	// ---- Phase B: Parallel extraction ----
	workCh := make(chan workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	errs := make([]error, len(items))
	var wg sync.WaitGroup
	for n := w.workers(len(items)); n > 0; n-- {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workCh {
				errs[item.index] = w.extract(ctx, item)
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	// ---- Phase C: Serial commit ----
	for _, item := range items {
		if err := w.store.ReplaceDocument(item.doc, item.batch); err != nil {
			return fmt.Errorf("commit %s: %w", item.src.Name, err)
		}
		w.logger.Debug("document extracted",
			"document", item.src.Name,
			"kind", item.src.Kind,
			"version", item.doc.Version,
			"rows", item.batch.Len(),
		)
	}
	w.generation++
	return nil
}

// prepare does Phase A work for a single document. skip is true when the
// stored document already has the same kind and content.
func (w *Workspace) prepare(src Source) (workItem, bool, error) {
	hash := store.ContentHash(src.Text)
	existing, err := w.store.DocumentByName(src.Name)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup document: %w", err)
	}
	if existing != nil && existing.Hash == hash && existing.Kind == src.Kind {
		return workItem{}, true, nil
	}

	doc := existing
	if doc == nil {
		doc = &store.Document{Name: src.Name}
	}
	doc.Kind, doc.Content, doc.Hash = src.Kind, src.Text, hash
	return workItem{src: src, doc: doc, batch: store.NewBatchedStore(w.store)}, false, nil
}

// extract parses one document and buffers its declarations. Each call has
// its own parser, so workers never share tree-sitter state.
func (w *Workspace) extract(ctx context.Context, item workItem) error {
	tree, err := syntax.Parse(ctx, []byte(item.src.Text))
	if err != nil {
		return fmt.Errorf("parse %s: %w", item.src.Name, err)
	}
	defer tree.Close()

	if e := tree.FirstError(); e != nil {
		line, col := syntax.Position(e)
		snippet := tree.Text(e)
		if len(snippet) > 40 {
			snippet = snippet[:40]
		}
		return &SyntaxError{Document: item.src.Name, Line: line, Column: col, Snippet: snippet}
	}

	if err := extract.Write(item.batch, item.doc.ID, extract.File(tree)); err != nil {
		return fmt.Errorf("extract %s: %w", item.src.Name, err)
	}
	return nil
}

// RemoveDocuments deletes every document of kind whose name is not in keep.
// It returns the number removed.
func (w *Workspace) RemoveDocuments(_ context.Context, kind string, keep map[string]bool) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	docs, err := w.store.DocumentsByKind(kind)
	if err != nil {
		return 0, fmt.Errorf("list %s documents: %w", kind, err)
	}
	removed := 0
	for _, d := range docs {
		if keep[d.Name] {
			continue
		}
		if err := w.store.DeleteDocument(d.ID); err != nil {
			return removed, fmt.Errorf("remove %s: %w", d.Name, err)
		}
		w.logger.Debug("document removed", "document", d.Name, "kind", kind)
		removed++
	}
	if removed > 0 {
		w.generation++
	}
	return removed, nil
}
