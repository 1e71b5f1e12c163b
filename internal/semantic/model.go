package semantic

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/linqlens/internal/syntax"
	"github.com/jward/linqlens/internal/typesys"
)

// Model binds one parsed document against a Catalog. It caches what it
// computes and is not safe for concurrent use.
type Model struct {
	cat  *Catalog
	tree *syntax.Tree

	types map[nodeKey]*typesys.Type
	calls map[nodeKey]SymbolInfo

	// Nodes being typed or bound, to cut cycles such as a local used in
	// its own initializer.
	typing  map[nodeKey]bool
	binding map[nodeKey]bool

	// Lambda parameter types fixed by overload resolution. While a candidate
	// overload is being tried they go to tentative instead, which is
	// discarded once the outermost trial ends.
	lambdas   map[nodeKey][]*typesys.Type
	tentative map[nodeKey][]*typesys.Type
	trial     int
}

// nodeKey identifies a node independently of the wrapper object the
// tree-sitter bindings hand out.
type nodeKey struct {
	start, end uint32
	typ        string
}

func key(n *sitter.Node) nodeKey {
	return nodeKey{n.StartByte(), n.EndByte(), n.Type()}
}

// NewModel returns a Model for tree.
func NewModel(cat *Catalog, tree *syntax.Tree) *Model {
	return &Model{
		cat:       cat,
		tree:      tree,
		types:     make(map[nodeKey]*typesys.Type),
		calls:     make(map[nodeKey]SymbolInfo),
		typing:    make(map[nodeKey]bool),
		binding:   make(map[nodeKey]bool),
		lambdas:   make(map[nodeKey][]*typesys.Type),
		tentative: make(map[nodeKey][]*typesys.Type),
	}
}

// Catalog returns the catalog the model binds against.
func (m *Model) Catalog() *Catalog { return m.cat }

// Tree returns the bound document.
func (m *Model) Tree() *syntax.Tree { return m.tree }

// WordSpanAt returns the span of the identifier at or just before offset.
func (m *Model) WordSpanAt(offset int) (start, end int, ok bool) {
	return m.tree.WordSpanAt(offset)
}

func (m *Model) text(n *sitter.Node) string { return m.tree.Text(n) }

// nameOf returns the identifier text of a simple name, generic name or
// implicit lambda parameter.
func (m *Model) nameOf(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "generic_name":
		if id := syntax.ChildOfType(n, "identifier"); id != nil {
			return m.text(id)
		}
		name := m.text(n)
		if i := strings.IndexByte(name, '<'); i >= 0 {
			name = name[:i]
		}
		return strings.TrimSpace(name)
	case "identifier", "implicit_parameter":
		return strings.TrimPrefix(m.text(n), "@")
	}
	return ""
}

// typeArgsOf parses the explicit type arguments of a generic name.
func (m *Model) typeArgsOf(n *sitter.Node) []*typesys.Type {
	if n == nil || n.Type() != "generic_name" {
		return nil
	}
	list := syntax.ChildOfType(n, "type_argument_list")
	if list == nil {
		return nil
	}
	var out []*typesys.Type
	for _, a := range syntax.NamedChildren(list) {
		out = append(out, typesys.Parse(m.text(a)))
	}
	return out
}

// TypeOf returns the static type of an expression, or nil when it cannot be
// determined.
func (m *Model) TypeOf(n *sitter.Node) *typesys.Type {
	if n == nil {
		return nil
	}
	k := key(n)
	if t, ok := m.types[k]; ok {
		return t
	}
	if m.typing[k] {
		return nil
	}
	m.typing[k] = true
	t := m.typeOf(n)
	delete(m.typing, k)
	if m.trial == 0 {
		m.types[k] = t
	}
	return t
}

func (m *Model) typeOf(n *sitter.Node) *typesys.Type {
	switch n.Type() {
	case "identifier", "generic_name", "qualified_name", "predefined_type", "member_access_expression",
		"member_binding_expression", "this_expression", "this":
		if t := m.typeRef(n); t != nil {
			return t
		}
		return valueType(m.SymbolInfo(n).Symbol)

	case "invocation_expression":
		s := m.bindInvocation(n).Symbol
		if s == nil {
			return nil
		}
		if s.Kind == KindMethod {
			return s.Type
		}
		// Invoking a delegate-typed value.
		if _, ret, ok := typesys.Delegate(valueType(s)); ok {
			return ret
		}
		return nil

	case "parenthesized_expression", "checked_expression":
		return m.TypeOf(lastNamed(n))

	case "await_expression":
		return awaited(m.TypeOf(lastNamed(n)))

	case "string_literal", "verbatim_string_literal", "raw_string_literal", "interpolated_string_expression":
		return typesys.Named(typesys.String)
	case "character_literal":
		return typesys.Named(typesys.Char)
	case "boolean_literal":
		return typesys.Named(typesys.Boolean)
	case "integer_literal":
		return integerLiteral(m.text(n))
	case "real_literal":
		return realLiteral(m.text(n))
	case "null_literal":
		return nil

	case "binary_expression":
		return m.binaryType(n)
	case "prefix_unary_expression", "unary_expression":
		if strings.HasPrefix(strings.TrimSpace(m.text(n)), "!") {
			return typesys.Named(typesys.Boolean)
		}
		return m.TypeOf(lastNamed(n))
	case "postfix_unary_expression":
		t := m.TypeOf(firstNamed(n))
		if t != nil && strings.HasSuffix(m.text(n), "!") {
			t = t.Clone()
			t.Nullable = false
		}
		return t
	case "is_expression", "is_pattern_expression":
		return typesys.Named(typesys.Boolean)
	case "conditional_expression":
		if t := m.TypeOf(n.ChildByFieldName("consequence")); t != nil {
			return t
		}
		return m.TypeOf(n.ChildByFieldName("alternative"))
	case "cast_expression":
		return m.parseType(n.ChildByFieldName("type"))
	case "as_expression":
		t := m.parseType(lastNamed(n))
		if t != nil && !m.cat.isValueType(t) {
			t.Nullable = true
		}
		return t
	case "assignment_expression":
		return m.TypeOf(n.ChildByFieldName("left"))
	case "typeof_expression":
		return typesys.Named("Type")
	case "default_expression", "array_creation_expression", "object_creation_expression":
		return m.parseType(n.ChildByFieldName("type"))
	case "implicit_array_creation_expression":
		init := syntax.ChildOfType(n, "initializer_expression")
		if init == nil {
			return nil
		}
		if t := m.TypeOf(firstNamed(init)); t != nil {
			t = t.Clone()
			t.Array++
			return t
		}
		return nil
	case "anonymous_object_creation_expression":
		return m.anonymousType(n)
	case "tuple_expression":
		t := &typesys.Type{Name: typesys.Tuple}
		for _, a := range syntax.ChildrenOfType(n, "argument") {
			t.Args = append(t.Args, orObject(m.TypeOf(lastNamed(a))))
		}
		return t
	case "element_access_expression":
		return m.elementAccessType(m.TypeOf(n.ChildByFieldName("expression")))
	case "conditional_access_expression":
		t := m.TypeOf(lastNamed(n))
		if t != nil && t.Array == 0 {
			t = t.Clone()
			t.Nullable = true
		}
		return t
	case "lambda_expression", "anonymous_method_expression":
		return m.lambdaTarget(n)
	case "query_expression":
		return m.queryType(n)
	}
	return nil
}

// valueType is the type a symbol has when used as a value.
func valueType(s *Symbol) *typesys.Type {
	if s == nil {
		return nil
	}
	switch s.Kind {
	case KindProperty, KindField, KindLocal, KindParameter, KindRangeVariable:
		return s.Type
	}
	return nil
}

func (m *Model) parseType(n *sitter.Node) *typesys.Type {
	if n == nil || n.Type() == "implicit_type" {
		return nil
	}
	text := m.text(n)
	if text == "var" {
		return nil
	}
	return typesys.Parse(text)
}

// awaited unwraps Task<T> and ValueTask<T>.
func awaited(t *typesys.Type) *typesys.Type {
	if t == nil {
		return nil
	}
	if (t.Name == typesys.Task || t.Name == "ValueTask") && t.Array == 0 {
		if len(t.Args) == 1 {
			return t.Args[0]
		}
		return typesys.Named(typesys.Void)
	}
	return t
}

func integerLiteral(text string) *typesys.Type {
	s := strings.ToLower(text)
	switch {
	case strings.HasSuffix(s, "ul") || strings.HasSuffix(s, "lu"):
		return typesys.Named("UInt64")
	case strings.HasSuffix(s, "l"):
		return typesys.Named(typesys.Int64)
	case strings.HasSuffix(s, "u"):
		return typesys.Named("UInt32")
	}
	return typesys.Named(typesys.Int32)
}

func realLiteral(text string) *typesys.Type {
	switch strings.ToLower(text[len(text)-1:]) {
	case "m":
		return typesys.Named(typesys.Decimal)
	case "f":
		return typesys.Named(typesys.Single)
	}
	return typesys.Named(typesys.Double)
}

var numericRank = map[string]int{
	"Byte": 1, "SByte": 1, "Int16": 2, "UInt16": 2, typesys.Char: 2,
	typesys.Int32: 3, "UInt32": 4, typesys.Int64: 5, "UInt64": 6,
	typesys.Single: 7, typesys.Double: 8, typesys.Decimal: 9,
}

func (m *Model) binaryType(n *sitter.Node) *typesys.Type {
	op := m.text(n.ChildByFieldName("operator"))
	if op == "" {
		// Grammars without an operator field keep it as the middle token.
		for _, c := range syntax.Children(n) {
			if !c.IsNamed() {
				op = m.text(c)
				break
			}
		}
	}
	left := m.TypeOf(n.ChildByFieldName("left"))
	right := m.TypeOf(n.ChildByFieldName("right"))
	switch op {
	case "==", "!=", "<", ">", "<=", ">=", "&&", "||", "is":
		return typesys.Named(typesys.Boolean)
	case "??":
		if left != nil {
			l := left.Clone()
			l.Nullable = false
			return l
		}
		return right
	case "as":
		return right
	}
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	if op == "+" && (left.Name == typesys.String || right.Name == typesys.String) {
		return typesys.Named(typesys.String)
	}
	if typesys.IsNumeric(left) && typesys.IsNumeric(right) || left.Name == typesys.Char || right.Name == typesys.Char {
		l, r := numericRank[left.Name], numericRank[right.Name]
		t := left
		if r > l {
			t = right
		}
		if numericRank[t.Name] < numericRank[typesys.Int32] {
			return typesys.Named(typesys.Int32)
		}
		return typesys.Named(t.Name)
	}
	return left
}

func (m *Model) anonymousType(n *sitter.Node) *typesys.Type {
	t := &typesys.Type{Name: typesys.Anonymous}
	children := syntax.NamedChildren(n)
	for i := 0; i < len(children); i++ {
		c := children[i]
		var name string
		var value *sitter.Node
		switch c.Type() {
		case "name_equals":
			if id := syntax.ChildOfType(c, "identifier"); id != nil {
				name = m.nameOf(id)
			}
			if i+1 < len(children) {
				i++
				value = children[i]
			}
		case "anonymous_object_member_declarator":
			if ne := syntax.ChildOfType(c, "name_equals"); ne != nil {
				name = m.nameOf(syntax.ChildOfType(ne, "identifier"))
			}
			value = lastNamed(c)
		default:
			value = c
		}
		if value == nil {
			continue
		}
		if name == "" {
			name = m.projectedName(value)
		}
		if name == "" {
			continue
		}
		t.Members = append(t.Members, typesys.Member{Name: name, Type: orObject(m.TypeOf(value))})
	}
	return t
}

// projectedName is the member name C# infers for an anonymous type member
// written without one: the last identifier of a member access or name.
func (m *Model) projectedName(n *sitter.Node) string {
	switch n.Type() {
	case "identifier", "generic_name":
		return m.nameOf(n)
	case "member_access_expression":
		return m.nameOf(n.ChildByFieldName("name"))
	case "conditional_access_expression":
		return m.projectedName(lastNamed(n))
	case "member_binding_expression":
		return m.nameOf(n.ChildByFieldName("name"))
	}
	return ""
}

func (m *Model) elementAccessType(t *typesys.Type) *typesys.Type {
	if t == nil {
		return nil
	}
	if t.Array > 0 {
		return t.Element()
	}
	view := m.cat.memberView(t)
	switch {
	case view.Name == typesys.String:
		return typesys.Named(typesys.Char)
	case view.Name == "Dictionary" && len(view.Args) == 2:
		return view.Args[1]
	}
	if base, _ := m.cat.AsBase(view, "IList", 1); base != nil {
		return base.Args[0]
	}
	if base, _ := m.cat.AsBase(view, "IReadOnlyList", 1); base != nil {
		return base.Args[0]
	}
	return nil
}

// ElementType returns the element type of a sequence.
func (m *Model) ElementType(t *typesys.Type) *typesys.Type {
	if t == nil {
		return nil
	}
	if t.Array > 0 {
		return t.Element()
	}
	for _, name := range []string{"IEnumerable", "IAsyncEnumerable"} {
		if base, _ := m.cat.AsBase(t, name, 1); base != nil {
			return base.Args[0]
		}
	}
	return nil
}

func orObject(t *typesys.Type) *typesys.Type {
	if t == nil {
		return typesys.Named(typesys.Object)
	}
	return t
}

func firstNamed(n *sitter.Node) *sitter.Node {
	if n == nil || n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(0)
}

func lastNamed(n *sitter.Node) *sitter.Node {
	if n == nil || n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(int(n.NamedChildCount()) - 1)
}
