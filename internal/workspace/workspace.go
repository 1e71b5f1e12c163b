// Package workspace holds the documents a session analyzes together: the
// embedded prelude, the model and context declarations, and the one wrapped
// snippet. Declarations are extracted into an in-memory symbol store.
//
// A Workspace is not safe for concurrent use; callers serialize access.
package workspace

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jward/linqlens/internal/store"
	"github.com/jward/linqlens/internal/syntax"
	"github.com/jward/linqlens/prelude"
)

// Fixed document names.
const (
	ContextDocumentName = "DbContext.cs"
	SnippetDocumentName = "UserQuery.cs"
	preludeDir          = "prelude/"
)

// ModelDocumentName returns the document name for a model. A ".cs" suffix is
// not doubled.
func ModelDocumentName(name string) string {
	if strings.HasSuffix(name, ".cs") {
		return name
	}
	return name + ".cs"
}

// PreludeDocumentName returns the document name for an embedded prelude file.
func PreludeDocumentName(file string) string { return preludeDir + file }

// Document is a snapshot of a workspace document. It holds no reference to
// parser state, so it stays valid after later updates.
type Document struct {
	ID      int64
	Name    string
	Kind    string
	Text    string
	Hash    string
	Version int
}

// Source is a declaration document to add.
type Source struct {
	Name string
	Kind string
	Text string
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithPrelude replaces the embedded prelude with the .cs files at the root of
// fsys.
func WithPrelude(fsys fs.FS) Option {
	return func(w *Workspace) { w.prelude = fsys }
}

// WithParallelism bounds the number of extraction workers. Zero or less
// means one per CPU.
func WithParallelism(n int) Option {
	return func(w *Workspace) { w.parallelism = n }
}

// Workspace is the mutable collection of documents.
type Workspace struct {
	store       *store.Store
	logger      *slog.Logger
	prelude     fs.FS
	parallelism int

	generation  uint64
	snippet     *Document
	snippetTree *syntax.Tree

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// New opens a private in-memory store and loads the prelude into it.
func New(ctx context.Context, opts ...Option) (*Workspace, error) {
	w := &Workspace{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		prelude: prelude.FS(),
	}
	for _, opt := range opts {
		opt(w)
	}

	s, err := store.NewMemoryStore("linqlens-" + uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	w.store = s

	files, err := prelude.Files(w.prelude)
	if err != nil {
		s.Close()
		return nil, err
	}
	sources := make([]Source, len(files))
	for i, f := range files {
		sources[i] = Source{Name: PreludeDocumentName(f.Name), Kind: store.KindPrelude, Text: f.Text}
	}
	if err := w.AddDeclarations(ctx, sources); err != nil {
		s.Close()
		return nil, fmt.Errorf("load prelude: %w", err)
	}
	w.logger.Debug("workspace ready", "prelude_documents", len(sources))
	return w, nil
}

// Store exposes the symbol store for read queries.
func (w *Workspace) Store() *store.Store { return w.store }

// Generation increases whenever declarations change.
func (w *Workspace) Generation() uint64 { return w.generation }

// AddOrUpdateDocument adds or replaces one declaration document.
func (w *Workspace) AddOrUpdateDocument(ctx context.Context, name, kind, text string) (*Document, error) {
	if err := w.AddDeclarations(ctx, []Source{{Name: name, Kind: kind, Text: text}}); err != nil {
		return nil, err
	}
	return w.DocumentByName(ctx, name)
}

// AddOrUpdateSnippet replaces the snippet document with wrapped and parses
// it. The snippet is never extracted into the symbol store. The returned
// Document is a copy; the parse tree stays with the workspace and is
// reached through SnippetTree.
func (w *Workspace) AddOrUpdateSnippet(ctx context.Context, wrapped string) (doc *Document, err error) {
	if w.closed {
		return nil, ErrClosed
	}
	hash := store.ContentHash(wrapped)
	if w.snippet != nil && w.snippet.Hash == hash {
		return w.snippetCopy(), nil
	}

	tree, err := syntax.Parse(ctx, []byte(wrapped))
	if err != nil {
		return nil, fmt.Errorf("parse snippet: %w", err)
	}
	defer func() {
		if err != nil {
			tree.Close()
		}
	}()

	d, err := w.store.DocumentByName(SnippetDocumentName)
	if err != nil {
		return nil, err
	}
	if d == nil {
		d = &store.Document{Name: SnippetDocumentName, Kind: store.KindSnippet, Content: wrapped, Hash: hash}
		if _, err := w.store.InsertDocument(d); err != nil {
			return nil, err
		}
	} else {
		d.Content, d.Hash = wrapped, hash
		if err := w.store.UpdateDocument(d); err != nil {
			return nil, err
		}
	}

	old := w.snippetTree
	w.snippet = &Document{
		ID:      d.ID,
		Name:    d.Name,
		Kind:    d.Kind,
		Text:    wrapped,
		Hash:    hash,
		Version: d.Version,
	}
	w.snippetTree = tree
	if old != nil {
		old.Close()
	}
	return w.snippetCopy(), nil
}

func (w *Workspace) snippetCopy() *Document {
	if w.snippet == nil {
		return nil
	}
	d := *w.snippet
	return &d
}

// Snippet returns a copy of the current snippet document, or nil before the
// first AddOrUpdateSnippet.
func (w *Workspace) Snippet() *Document { return w.snippetCopy() }

// SnippetTree returns the parse tree of the current snippet. It is closed by
// the next AddOrUpdateSnippet that changes the text and by Close, so callers
// use it only while they serialize access to the workspace.
func (w *Workspace) SnippetTree() *syntax.Tree { return w.snippetTree }

// Documents lists every stored document in insertion order.
func (w *Workspace) Documents(_ context.Context) ([]*Document, error) {
	if w.closed {
		return nil, ErrClosed
	}
	docs, err := w.store.Documents()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]*Document, len(docs))
	for i, d := range docs {
		out[i] = w.fromStore(d)
	}
	return out, nil
}

// DocumentByName returns the named document, or nil if there is none.
func (w *Workspace) DocumentByName(_ context.Context, name string) (*Document, error) {
	if w.closed {
		return nil, ErrClosed
	}
	d, err := w.store.DocumentByName(name)
	if err != nil || d == nil {
		return nil, err
	}
	return w.fromStore(d), nil
}

// CountByKind counts documents of one kind.
func (w *Workspace) CountByKind(_ context.Context, kind string) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	return w.store.CountDocumentsByKind(kind)
}

func (w *Workspace) fromStore(d *store.Document) *Document {
	return &Document{ID: d.ID, Name: d.Name, Kind: d.Kind, Text: d.Content, Hash: d.Hash, Version: d.Version}
}

// Close releases the store. It is safe to call more than once.
func (w *Workspace) Close() error {
	w.closeOnce.Do(func() {
		w.closed = true
		if w.snippetTree != nil {
			w.snippetTree.Close()
		}
		w.snippet, w.snippetTree = nil, nil
		w.closeErr = w.store.Close()
	})
	return w.closeErr
}

func (w *Workspace) workers(items int) int {
	n := w.parallelism
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return max(1, min(n, items))
}
