package semantic

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/linqlens/internal/syntax"
)

// Completion tags, named after the editor's well-known completion tags.
const (
	TagClass         = "Class"
	TagInterface     = "Interface"
	TagStructure     = "Structure"
	TagEnum          = "Enum"
	TagDelegate      = "Delegate"
	TagProperty      = "Property"
	TagField         = "Field"
	TagEnumMember    = "EnumMember"
	TagMethod        = "Method"
	TagExtension     = "ExtensionMethod"
	TagLocal         = "Local"
	TagParameter     = "Parameter"
	TagRangeVariable = "RangeVariable"
	TagKeyword       = "Keyword"
	TagNamespace     = "Namespace"
)

// placeholderName stands in for the word being completed.
const placeholderName = "__linqlens_placeholder__"

// Completion is a raw completion candidate.
type Completion struct {
	DisplayText   string
	DisplayPrefix string
	DisplaySuffix string
	InsertionText string // preferred text to insert; empty when DisplayText is it
	FilterText    string
	CallShaped    bool
	Tags          []string
	Detail        string

	Symbol *Symbol // nil for keywords
}

// CompletionList is the ranked candidate list at one position.
type CompletionList struct {
	Items []Completion
}

// expressionKeywords are offered wherever a name can start.
var expressionKeywords = []string{
	"await", "false", "from", "new", "null", "true", "typeof", "var",
}

// Complete lists the candidates for the word being typed at offset. It
// reports false when there is no completion context there, as inside a
// string literal or a comment.
//
// The text up to the start of the word is completed with a placeholder
// identifier and the closers it needs to parse, and that document is bound
// instead of the current one: text after the cursor never affects the
// result, and a trailing "." still yields a member access to bind.
func (m *Model) Complete(ctx context.Context, offset int) (*CompletionList, bool, error) {
	src := m.tree.Source()
	if offset < 0 || offset > len(src) {
		return nil, false, nil
	}
	if !scan(src[:offset]).code {
		return nil, false, nil
	}
	start := syntax.WordStart(src, offset)
	if start < offset && src[start] >= '0' && src[start] <= '9' {
		return nil, false, nil
	}

	prefix := src[:start]
	tree, err := parseWithPlaceholder(ctx, prefix, "")
	if err != nil {
		return nil, false, fmt.Errorf("complete: %w", err)
	}
	// A query being typed has no select clause yet and does not parse as
	// a query. Finish it so its range variables are in scope.
	if bytes.Contains(prefix, []byte("from")) && !placeholderInQuery(tree, start) {
		if alt, err := parseWithPlaceholder(ctx, prefix, " select "+placeholderName); err == nil {
			if placeholderInQuery(alt, start) {
				tree, alt = alt, tree
			}
			alt.Close()
		}
	}
	defer tree.Close()
	pm := NewModel(m.cat, tree)

	var items []Completion
	if recv, static := pm.completionReceiver(start); recv != nil {
		items = pm.memberCompletions(recv, static)
	} else if !precededByDot(prefix) {
		items = pm.nameCompletions(start)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !strings.EqualFold(items[i].FilterText, items[j].FilterText) {
			return lessFold(items[i].FilterText, items[j].FilterText)
		}
		return items[i].label() < items[j].label()
	})
	return &CompletionList{Items: items}, true, nil
}

// parseWithPlaceholder parses prefix followed by the placeholder identifier, tail,
// and the closers the prefix needs.
func parseWithPlaceholder(ctx context.Context, prefix []byte, tail string) (*syntax.Tree, error) {
	text := make([]byte, 0, len(prefix)+len(placeholderName)+len(tail)+16)
	text = append(text, prefix...)
	text = append(text, placeholderName...)
	text = append(text, tail...)
	text = append(text, closers(prefix, scan(prefix).open)...)
	return syntax.Parse(ctx, text)
}

// placeholderInQuery reports whether the placeholder at offset parsed as part of
// a query expression.
func placeholderInQuery(tree *syntax.Tree, offset int) bool {
	id := tree.LeafAt(offset)
	if id == nil || tree.Text(id) != placeholderName {
		return false
	}
	return syntax.Enclosing(id, "query_expression") != nil
}

func (c Completion) label() string { return c.DisplayPrefix + c.DisplayText + c.DisplaySuffix }

// completionReceiver finds the receiver of a member access whose name is
// the placeholder at offset. static is set when the receiver names a type.
func (m *Model) completionReceiver(offset int) (recv *sitter.Node, static bool) {
	id := m.tree.LeafAt(offset)
	if id == nil || m.text(id) != placeholderName {
		return m.receiverBefore(offset)
	}
	p := id.Parent()
	if p != nil && p.Type() == "generic_name" {
		id, p = p, p.Parent()
	}
	if p == nil {
		return nil, false
	}
	switch p.Type() {
	case "member_access_expression":
		if syntax.Same(p.ChildByFieldName("name"), id) {
			recv = p.ChildByFieldName("expression")
		}
	case "member_binding_expression":
		recv = m.conditionalReceiver(p)
	case "qualified_name":
		if syntax.Same(p.ChildByFieldName("name"), id) {
			recv = p.ChildByFieldName("qualifier")
		}
	}
	if recv == nil {
		return m.receiverBefore(offset)
	}
	return recv, m.typeRef(recv) != nil
}

// receiverBefore recovers the receiver when error recovery did not produce
// a member access: the largest expression ending at the dot before offset.
func (m *Model) receiverBefore(offset int) (*sitter.Node, bool) {
	src := m.tree.Source()
	i := offset
	for i > 0 && isSpace(src[i-1]) {
		i--
	}
	if i == 0 || src[i-1] != '.' {
		return nil, false
	}
	i--
	if i > 0 && src[i-1] == '?' {
		i--
	}
	for i > 0 && isSpace(src[i-1]) {
		i--
	}
	n := m.tree.LeafAt(i)
	if n == nil || int(n.EndByte()) != i {
		n = m.nodeAt(i - 1)
	}
	var best *sitter.Node
	for a := n; a != nil; a = a.Parent() {
		if int(a.EndByte()) != i {
			break
		}
		if syntax.IsExpression(a) {
			best = a
		}
	}
	if best == nil {
		return nil, false
	}
	return best, m.typeRef(best) != nil
}

func precededByDot(prefix []byte) bool {
	i := len(prefix)
	for i > 0 && isSpace(prefix[i-1]) {
		i--
	}
	return i > 0 && prefix[i-1] == '.'
}

func (m *Model) memberCompletions(recv *sitter.Node, static bool) []Completion {
	var syms []*Symbol
	if static {
		t := m.typeRef(recv)
		for _, s := range m.cat.Members(t) {
			if s.IsStatic && accessible(s.Visibility) {
				syms = append(syms, s)
			}
		}
	} else {
		t := m.TypeOf(recv)
		if t == nil {
			return nil
		}
		for _, s := range m.cat.Members(t) {
			if !s.IsStatic && accessible(s.Visibility) {
				syms = append(syms, s)
			}
		}
		for _, ext := range m.cat.ExtensionMethods("") {
			if s, _, _, ok := m.cat.ReduceExtension(ext, t); ok {
				syms = append(syms, s)
			}
		}
	}
	return completions(syms)
}

func (m *Model) nameCompletions(offset int) []Completion {
	items := completions(m.LookupSymbols(offset, ""))
	for _, kw := range expressionKeywords {
		items = append(items, Completion{
			DisplayText: kw,
			FilterText:  kw,
			Tags:        []string{TagKeyword},
			Detail:      kw + " keyword",
		})
	}
	return items
}

// completions turns symbols into candidates, one per name. Overloads are
// counted in the first one's detail.
func completions(syms []*Symbol) []Completion {
	var out []Completion
	index := make(map[string]int)
	overloads := make(map[int]int)
	for _, s := range syms {
		if i, ok := index[s.Name]; ok {
			if s.Kind == KindMethod && out[i].Symbol.Kind == KindMethod {
				overloads[i]++
			}
			continue
		}
		index[s.Name] = len(out)
		out = append(out, candidateFor(s))
	}
	for i, n := range overloads {
		if n == 1 {
			out[i].Detail += " (+ 1 overload)"
		} else {
			out[i].Detail += fmt.Sprintf(" (+ %d overloads)", n)
		}
	}
	return out
}

func candidateFor(s *Symbol) Completion {
	c := Completion{
		DisplayText: s.Name,
		FilterText:  s.Name,
		Detail:      s.Signature(),
		Symbol:      s,
	}
	switch s.Kind {
	case KindMethod:
		c.CallShaped = true
		c.Tags = []string{TagMethod}
		if s.IsExtension {
			c.Tags = []string{TagExtension}
		}
		if len(s.TypeParams) > 0 {
			c.DisplaySuffix = "<>"
			c.InsertionText = s.Name
		}
	case KindProperty:
		c.Tags = []string{TagProperty}
	case KindField:
		c.Tags = []string{TagField}
		if s.Container != nil && s.Type != nil && s.Container.Name == s.Type.Name && s.IsStatic {
			c.Tags = []string{TagEnumMember}
		}
	case KindLocal:
		c.Tags = []string{TagLocal}
	case KindParameter:
		c.Tags = []string{TagParameter}
	case KindRangeVariable:
		c.Tags = []string{TagRangeVariable}
	case KindNamespace:
		c.Tags = []string{TagNamespace}
	case KindType:
		c.Tags = []string{typeTag(s.DeclKind)}
		if len(s.TypeParams) > 0 {
			c.DisplaySuffix = "<>"
			c.InsertionText = s.Name
		}
	}
	return c
}

func typeTag(declKind string) string {
	switch declKind {
	case "interface":
		return TagInterface
	case "struct":
		return TagStructure
	case "enum":
		return TagEnum
	case "delegate":
		return TagDelegate
	}
	return TagClass
}

// Describe returns a one-line description of a candidate: the summary of
// its documentation, or its signature when it has none.
func (m *Model) Describe(c Completion) string {
	if c.Symbol == nil {
		return c.Detail
	}
	if s := Summary(c.Symbol.Doc); s != "" {
		return s
	}
	return c.Symbol.Signature()
}

// lexState is where a prefix of C# source ends up lexically.
type lexState struct {
	code bool     // not inside a string, character literal or comment
	open []opener // unclosed brackets, outermost first
}

type opener struct {
	ch  byte
	pos int
	// hole marks the "{" of an interpolated string; closing it resumes the
	// string, verbatim when verbatim is set.
	hole     bool
	verbatim bool
}

// scan lexes src just far enough to know whether its end is in code and
// which brackets are still open.
func scan(src []byte) lexState {
	var open []opener
	i := 0
	str := func(verbatim, interpolated bool) bool {
		for i < len(src) {
			c := src[i]
			switch {
			case !verbatim && c == '\\':
				i += 2
				continue
			case c == '"':
				if verbatim && i+1 < len(src) && src[i+1] == '"' {
					i += 2
					continue
				}
				i++
				return true
			case interpolated && c == '{':
				if i+1 < len(src) && src[i+1] == '{' {
					i += 2
					continue
				}
				open = append(open, opener{ch: '{', pos: i, hole: true, verbatim: verbatim})
				i++
				return true
			}
			i++
		}
		return false
	}

	for i < len(src) {
		c := src[i]
		next := byte(0)
		if i+1 < len(src) {
			next = src[i+1]
		}
		switch {
		case c == '/' && next == '/':
			nl := indexByteFrom(src, '\n', i)
			if nl < 0 {
				return lexState{code: false, open: open}
			}
			i = nl + 1
		case c == '/' && next == '*':
			end := strings.Index(string(src[i+2:]), "*/")
			if end < 0 {
				return lexState{code: false, open: open}
			}
			i += end + 4
		case c == '"' || (c == '@' || c == '$') && (next == '"' || next == '@' || next == '$'):
			verbatim, interpolated := false, false
			for i < len(src) && src[i] != '"' {
				verbatim = verbatim || src[i] == '@'
				interpolated = interpolated || src[i] == '$'
				i++
			}
			i++
			if !str(verbatim, interpolated) {
				return lexState{code: false, open: open}
			}
		case c == '\'':
			i++
			for i < len(src) && src[i] != '\'' {
				if src[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(src) {
				return lexState{code: false, open: open}
			}
			i++
		case c == '(' || c == '[' || c == '{':
			open = append(open, opener{ch: c, pos: i})
			i++
		case c == ')' || c == ']' || c == '}':
			if n := len(open); n > 0 && open[n-1].ch == matching(c) {
				top := open[n-1]
				open = open[:n-1]
				i++
				if top.hole && !str(top.verbatim, true) {
					return lexState{code: false, open: open}
				}
				continue
			}
			i++
		default:
			i++
		}
	}
	return lexState{code: true, open: open}
}

func matching(c byte) byte {
	switch c {
	case ')':
		return '('
	case ']':
		return '['
	}
	return '{'
}

func indexByteFrom(src []byte, b byte, from int) int {
	for i := from; i < len(src); i++ {
		if src[i] == b {
			return i
		}
	}
	return -1
}

// closers returns the text that closes every open bracket, ending open
// statement blocks with a semicolon first.
func closers(src []byte, open []opener) []byte {
	var out []byte
	for i := len(open) - 1; i >= 0; i-- {
		o := open[i]
		switch {
		case o.hole:
			out = append(out, '}', '"')
		case o.ch == '(':
			out = append(out, ')')
		case o.ch == '[':
			out = append(out, ']')
		case opensBlock(src, o.pos):
			out = append(out, ';', '}')
		default:
			out = append(out, '}')
		}
	}
	return out
}

// blockKeywords precede a statement block directly.
var blockKeywords = map[string]bool{
	"else": true, "do": true, "try": true, "finally": true,
	"checked": true, "unchecked": true, "unsafe": true,
}

// opensBlock reports whether the "{" at pos starts a statement block rather
// than a type body or an initializer.
func opensBlock(src []byte, pos int) bool {
	i := pos
	for i > 0 && isSpace(src[i-1]) {
		i--
	}
	if i == 0 {
		return false
	}
	switch src[i-1] {
	case ')', '{', '}', ';':
		return true
	case '>':
		return i >= 2 && src[i-2] == '='
	}
	return blockKeywords[string(src[syntax.WordStart(src, i):i])]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

func lessFold(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}
