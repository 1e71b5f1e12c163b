// Package syntax parses C# source with tree-sitter and provides the node
// navigation helpers the extractor and the semantic model share.
package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Tree is a parsed C# document together with the source it was parsed from.
type Tree struct {
	tree *sitter.Tree
	src  []byte
}

// Parse parses src as a C# compilation unit. Syntax errors do not fail the
// parse; use FirstError to find them.
func Parse(ctx context.Context, src []byte) (*Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(Language())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse: tree-sitter parse failed: %w", err)
	}
	return &Tree{tree: tree, src: src}, nil
}

// Root returns the compilation_unit node.
func (t *Tree) Root() *sitter.Node { return t.tree.RootNode() }

// Source returns the parsed text. Callers must not modify it.
func (t *Tree) Source() []byte { return t.src }

// Len is the source length in bytes.
func (t *Tree) Len() int { return len(t.src) }

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() { t.tree.Close() }

// Text returns the source text covered by n.
func (t *Tree) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(t.src)
}

// LeafAt returns the token whose span contains offset. When offset sits just
// past a word token (an identifier or keyword with no gap), that token is
// returned instead. It returns nil for whitespace and for offsets outside the
// source.
func (t *Tree) LeafAt(offset int) *sitter.Node {
	if offset < 0 || offset > len(t.src) {
		return nil
	}
	if n := descend(t.Root(), offset, false); n != nil {
		return n
	}
	if n := descend(t.Root(), offset, true); n != nil && IsWord(t.Text(n)) {
		return n
	}
	return nil
}

// descend walks down to the leaf that contains offset, or with ending set,
// the leaf that ends exactly at offset.
func descend(n *sitter.Node, offset int, ending bool) *sitter.Node {
	for n.ChildCount() > 0 {
		var next *sitter.Node
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c == nil {
				continue
			}
			s, e := int(c.StartByte()), int(c.EndByte())
			if s == e {
				continue
			}
			if ending {
				if s < offset && offset <= e {
					next = c
					break
				}
				continue
			}
			if s <= offset && offset < e {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		n = next
	}
	if int(n.StartByte()) == int(n.EndByte()) {
		return nil
	}
	if ending && int(n.EndByte()) != offset {
		return nil
	}
	return n
}

// WordSpanAt returns the span of the identifier-like run of characters that
// ends at offset, or contains it.
func (t *Tree) WordSpanAt(offset int) (start, end int, ok bool) {
	if offset < 0 || offset > len(t.src) {
		return 0, 0, false
	}
	start, end = WordStart(t.src, offset), WordEnd(t.src, offset)
	if start == end {
		return 0, 0, false
	}
	return start, end, true
}

// FirstError returns the first ERROR or MISSING node in document order.
func (t *Tree) FirstError() *sitter.Node {
	root := t.Root()
	if !root.HasError() {
		return nil
	}
	return firstError(root)
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if c.IsMissing() || c.IsError() || c.HasError() {
			if e := firstError(c); e != nil {
				return e
			}
		}
	}
	return nil
}

// Position returns the 1-based line and column of n's start.
func Position(n *sitter.Node) (line, col int) {
	p := n.StartPoint()
	return int(p.Row) + 1, int(p.Column) + 1
}
