// Package wrap turns a raw query snippet into a compilable C# document and
// maps offsets between the two.
package wrap

import (
	"strings"
	"sync"
)

// Sentinel is wrapped in place of a snippet to locate where snippets start.
const Sentinel = "__LINQLENS_SNIPPET_SENTINEL__"

// Usings are imported by every wrapped document.
var Usings = []string{
	"System",
	"System.Collections.Generic",
	"System.Linq",
	"System.Threading.Tasks",
	"Microsoft.EntityFrameworkCore",
}

// Template describes the method a snippet is wrapped in. ResultType is the
// Task<> argument of the generated method and defaults to "object". Before
// and After are placed around the snippet inside the method body.
type Template struct {
	Namespace   string
	ContextType string
	ResultType  string
	Before      string
	After       string
}

// Wrapper wraps snippets with one Template. It is safe for concurrent use.
type Wrapper struct {
	tmpl Template

	startOnce sync.Once
	start     int
}

// New returns a Wrapper for tmpl.
func New(tmpl Template) *Wrapper {
	if tmpl.ResultType == "" {
		tmpl.ResultType = "object"
	}
	return &Wrapper{tmpl: tmpl}
}

// Template returns the wrapper's template with defaults applied.
func (w *Wrapper) Template() Template { return w.tmpl }

// Wrap builds the document for raw.
func (w *Wrapper) Wrap(raw string) string {
	var b strings.Builder
	for _, u := range Usings {
		b.WriteString("using ")
		b.WriteString(u)
		b.WriteString(";\n")
	}
	b.WriteString("\nnamespace ")
	ns := w.tmpl.Namespace
	if ns == "" {
		ns = "LinqLens.Queries"
	}
	b.WriteString(ns)
	b.WriteString("\n{\npublic class QueryContainer\n{\n")
	b.WriteString("public async Task<")
	b.WriteString(w.tmpl.ResultType)
	b.WriteString("> Query(")
	b.WriteString(w.tmpl.ContextType)
	b.WriteString(" context) { ")
	b.WriteString(w.tmpl.Before)
	b.WriteString(" ")
	b.WriteString(Normalize(raw))
	b.WriteString(" ")
	b.WriteString(w.tmpl.After)
	b.WriteString(" }\n}\n}\n")
	return b.String()
}

// Normalize terminates raw with a semicolon unless it already ends with one.
// The raw text is kept byte for byte so offsets into it stay valid.
func Normalize(raw string) string {
	if strings.HasSuffix(strings.TrimSpace(raw), ";") {
		return raw
	}
	return raw + ";"
}

// SnippetStart is the offset in any wrapped document where the snippet's
// first byte lands. It is found by wrapping the sentinel.
func (w *Wrapper) SnippetStart() int {
	w.startOnce.Do(func() {
		w.start = strings.Index(w.Wrap(Sentinel), Sentinel)
	})
	return w.start
}

// Clamp limits offset to [0, len(raw)].
func Clamp(raw string, offset int) int {
	if offset < 0 {
		return 0
	}
	if offset > len(raw) {
		return len(raw)
	}
	return offset
}

// WrappedOffset maps an offset in raw to the wrapped document. Out of range
// offsets are clamped first.
func (w *Wrapper) WrappedOffset(raw string, rawOffset int) int {
	return w.SnippetStart() + Clamp(raw, rawOffset)
}

// RawOffset maps a wrapped-document offset back into the snippet. It
// reports false when abs lies in the text before the snippet.
func (w *Wrapper) RawOffset(abs int) (int, bool) {
	o := abs - w.SnippetStart()
	if o < 0 {
		return 0, false
	}
	return o, true
}
