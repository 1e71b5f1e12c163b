package syntax

import (
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// Field returns n's child under the given field name. If the grammar has no
// such field on n, the first named child of one of the fallback types is
// returned instead.
func Field(n *sitter.Node, name string, fallback ...string) *sitter.Node {
	if n == nil {
		return nil
	}
	if c := n.ChildByFieldName(name); c != nil {
		return c
	}
	return ChildOfType(n, fallback...)
}

// ChildOfType returns the first direct child of n whose type is one of types.
func ChildOfType(n *sitter.Node, types ...string) *sitter.Node {
	if n == nil || len(types) == 0 {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && hasType(c, types) {
			return c
		}
	}
	return nil
}

// ChildrenOfType returns every direct child of n whose type is one of types.
func ChildrenOfType(n *sitter.Node, types ...string) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && hasType(c, types) {
			out = append(out, c)
		}
	}
	return out
}

// NamedChildren returns n's named children in order.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Children returns every child of n, anonymous tokens included.
func Children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.ChildCount())
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// ValueAfter returns the first named child of n that follows an anonymous
// token child, such as the default value after "=" in a parameter. An
// equals_value_clause child is looked into as well.
func ValueAfter(n *sitter.Node, token string) *sitter.Node {
	seen := false
	for _, c := range Children(n) {
		switch {
		case c.Type() == "equals_value_clause" && token == "=":
			return lastNamedChild(c)
		case c.Type() == token && !c.IsNamed():
			seen = true
		case seen && c.IsNamed() && c.Type() != "comment":
			return c
		}
	}
	return nil
}

func lastNamedChild(n *sitter.Node) *sitter.Node {
	if c := int(n.NamedChildCount()); c > 0 {
		return n.NamedChild(c - 1)
	}
	return nil
}

func hasType(n *sitter.Node, types []string) bool {
	t := n.Type()
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

// Ancestors returns n and each of its parents up to the root.
func Ancestors(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for ; n != nil; n = n.Parent() {
		out = append(out, n)
	}
	return out
}

// Enclosing returns the nearest ancestor of n (n itself included) whose type
// is one of types.
func Enclosing(n *sitter.Node, types ...string) *sitter.Node {
	for ; n != nil; n = n.Parent() {
		if hasType(n, types) {
			return n
		}
	}
	return nil
}

// Same reports whether a and b denote the same node.
func Same(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// Contains reports whether inner lies within outer's byte span.
func Contains(outer, inner *sitter.Node) bool {
	if outer == nil || inner == nil {
		return false
	}
	return outer.StartByte() <= inner.StartByte() && inner.EndByte() <= outer.EndByte()
}

// Span returns n's start offset and length in bytes.
func Span(n *sitter.Node) (start, length int) {
	return int(n.StartByte()), int(n.EndByte() - n.StartByte())
}

// IsSimpleName reports whether n is an identifier or a generic name.
func IsSimpleName(n *sitter.Node) bool {
	switch n.Type() {
	case "identifier", "generic_name":
		return true
	}
	return false
}

var expressionTypes = map[string]bool{
	"identifier":                           true,
	"generic_name":                         true,
	"qualified_name":                       true,
	"predefined_type":                      true,
	"member_access_expression":             true,
	"invocation_expression":                true,
	"lambda_expression":                    true,
	"anonymous_method_expression":          true,
	"binary_expression":                    true,
	"unary_expression":                     true,
	"prefix_unary_expression":              true,
	"postfix_unary_expression":             true,
	"conditional_expression":               true,
	"parenthesized_expression":             true,
	"cast_expression":                      true,
	"as_expression":                        true,
	"is_expression":                        true,
	"is_pattern_expression":                true,
	"await_expression":                     true,
	"object_creation_expression":           true,
	"implicit_object_creation_expression":  true,
	"anonymous_object_creation_expression": true,
	"array_creation_expression":            true,
	"implicit_array_creation_expression":   true,
	"element_access_expression":            true,
	"conditional_access_expression":        true,
	"member_binding_expression":            true,
	"element_binding_expression":           true,
	"query_expression":                     true,
	"this_expression":                      true,
	"this":                                 true,
	"base_expression":                      true,
	"typeof_expression":                    true,
	"default_expression":                   true,
	"assignment_expression":                true,
	"interpolated_string_expression":       true,
	"switch_expression":                    true,
	"throw_expression":                     true,
	"tuple_expression":                     true,
	"range_expression":                     true,
	"with_expression":                      true,
	"checked_expression":                   true,
	"sizeof_expression":                    true,
	"integer_literal":                      true,
	"real_literal":                         true,
	"string_literal":                       true,
	"verbatim_string_literal":              true,
	"raw_string_literal":                   true,
	"character_literal":                    true,
	"boolean_literal":                      true,
	"null_literal":                         true,
}

// IsExpression reports whether n is an expression node.
func IsExpression(n *sitter.Node) bool {
	return n != nil && expressionTypes[n.Type()]
}

// IsWord reports whether s is a non-empty run of identifier characters.
func IsWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !IsWordRune(r) {
			return false
		}
	}
	return true
}

// IsWordRune reports whether r can be part of an identifier.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// WordStart returns the start of the run of identifier characters that ends
// at end in src.
func WordStart(src []byte, end int) int {
	start := end
	for start > 0 {
		r, size := utf8.DecodeLastRune(src[:start])
		if !IsWordRune(r) {
			break
		}
		start -= size
	}
	return start
}

// WordEnd returns the end of the run of identifier characters that starts
// at start in src.
func WordEnd(src []byte, start int) int {
	end := start
	for end < len(src) {
		r, size := utf8.DecodeRune(src[end:])
		if !IsWordRune(r) {
			break
		}
		end += size
	}
	return end
}
