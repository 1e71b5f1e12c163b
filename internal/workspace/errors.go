package workspace

import (
	"errors"
	"fmt"
)

// ErrSyntax is wrapped by every SyntaxError.
var ErrSyntax = errors.New("syntax error")

// ErrClosed is returned by operations on a closed workspace.
var ErrClosed = errors.New("workspace closed")

// SyntaxError reports the first syntax error in a declaration document.
// Line and Column are 1-based.
type SyntaxError struct {
	Document string
	Line     int
	Column   int
	Snippet  string // source text of the offending node, truncated
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: syntax error near %q", e.Document, e.Line, e.Column, e.Snippet)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }
