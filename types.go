package linqlens

import (
	"github.com/jward/linqlens/internal/semantic"
	"github.com/jward/linqlens/internal/workspace"
)

// Public aliases for internal types that appear in the Session API. These
// are Go type aliases, so no conversion is needed.

type Document = workspace.Document
type SyntaxError = workspace.SyntaxError
type Symbol = semantic.Symbol

// Document kinds.
const (
	KindPrelude = "prelude"
	KindModel   = "model"
	KindContext = "context"
	KindSnippet = "snippet"
)

// CompletionKind is the coarse classification of a completion item.
type CompletionKind string

const (
	CompletionProperty CompletionKind = "property"
	CompletionMethod   CompletionKind = "method"
	CompletionField    CompletionKind = "field"
	CompletionClass    CompletionKind = "class"
	CompletionText     CompletionKind = "text"
)

// Range is a half-open byte range in snippet coordinates.
type Range struct {
	Start int
	End   int
}

// CompletionItem is one suggestion at a cursor.
type CompletionItem struct {
	InsertText    string
	Label         string
	FilterText    string
	Detail        string
	Kind          CompletionKind
	Documentation string

	// ReplacementRange is the partially typed word the item replaces. It is
	// empty (Start == End) at the cursor when no word precedes it.
	ReplacementRange *Range
}

// HoverResult is what to show for the symbol under a cursor. Start and
// Length are in snippet coordinates.
type HoverResult struct {
	Markdown string
	Start    int
	Length   int

	// Resolver names the ladder step that produced the result.
	Resolver string
}
