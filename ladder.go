package linqlens

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/linqlens/internal/semantic"
	"github.com/jward/linqlens/internal/syntax"
	"github.com/jward/linqlens/internal/typesys"
)

// Resolver names, reported in HoverResult.Resolver.
const (
	ResolverDirect              = "direct"
	ResolverEnclosingInvocation = "enclosing-invocation"
	ResolverDirectFallback      = "direct-fallback"
	ResolverExtensionMethod     = "extension-method"
	ResolverScopedMethod        = "scoped-method-lookup"
	ResolverStaticType          = "static-type"
)

// resolution is a symbol chosen for a hover and the node whose span is
// shown for it.
type resolution struct {
	symbol   *semantic.Symbol
	span     *sitter.Node
	resolver string
}

// hoverTarget is the position a hover is resolved for.
type hoverTarget struct {
	model  *semantic.Model
	offset int

	token     *sitter.Node // leaf at the cursor
	candidate *sitter.Node // smallest name or expression containing token
	call      *sitter.Node // invocation whose argument list holds candidate

	direct     *semantic.Symbol
	directDone bool
}

type resolver struct {
	name string
	fn   func(t *hoverTarget) (resolution, bool)
}

// ladder is tried in order; the first resolver to succeed wins.
var ladder = []resolver{
	{ResolverDirect, resolveDirect},
	{ResolverEnclosingInvocation, resolveEnclosingInvocation},
	{ResolverDirectFallback, resolveDirectFallback},
	{ResolverExtensionMethod, resolveExtensionMethod},
	{ResolverScopedMethod, resolveScopedMethod},
	{ResolverStaticType, resolveStaticType},
}

func newHoverTarget(m *semantic.Model, offset int, token *sitter.Node) *hoverTarget {
	t := &hoverTarget{model: m, offset: offset, token: token}
	t.candidate = candidateNode(token)
	t.call = enclosingArgumentCall(t.candidate)
	return t
}

func resolve(t *hoverTarget) (resolution, bool) {
	if t.candidate == nil {
		return resolution{}, false
	}
	for _, r := range ladder {
		if res, ok := r.fn(t); ok && res.symbol != nil && res.span != nil {
			res.resolver = r.name
			return res, true
		}
	}
	return resolution{}, false
}

// directSymbol binds the candidate once per hover.
func (t *hoverTarget) directSymbol() *semantic.Symbol {
	if !t.directDone {
		t.direct = t.model.SymbolInfo(t.candidate).Best()
		t.directDone = true
	}
	return t.direct
}

// confident reports whether sym names something worth showing. Lambdas are
// not: the invocation they are passed to is more useful.
func confident(sym *semantic.Symbol) bool {
	return sym != nil && !sym.Anonymous()
}

func resolveDirect(t *hoverTarget) (resolution, bool) {
	sym := t.directSymbol()
	if !confident(sym) || t.call != nil {
		return resolution{}, false
	}
	return resolution{symbol: sym, span: t.candidate}, true
}

func resolveEnclosingInvocation(t *hoverTarget) (resolution, bool) {
	call := t.call
	if call == nil {
		if confident(t.directSymbol()) {
			return resolution{}, false
		}
		call = syntax.Enclosing(t.candidate, "invocation_expression")
	}
	if call == nil {
		return resolution{}, false
	}

	fn := call.ChildByFieldName("function")
	span := call
	var name *sitter.Node
	if fn != nil && fn.Type() == "member_access_expression" {
		name = fn.ChildByFieldName("name")
		if name != nil {
			span = name
		}
	}
	if sym := t.model.SymbolInfo(call).Best(); confident(sym) {
		return resolution{symbol: sym, span: span}, true
	}
	if name != nil {
		if sym := t.model.SymbolInfo(name).Best(); confident(sym) {
			return resolution{symbol: sym, span: name}, true
		}
	}
	if fn != nil {
		if sym := t.model.SymbolInfo(fn).Best(); confident(sym) {
			return resolution{symbol: sym, span: span}, true
		}
	}
	return resolution{}, false
}

func resolveDirectFallback(t *hoverTarget) (resolution, bool) {
	sym := t.directSymbol()
	if t.call == nil || !confident(sym) {
		return resolution{}, false
	}
	return resolution{symbol: sym, span: t.candidate}, true
}

// resolveExtensionMethod finds a method by name for the receiver's type when
// binding failed, for instance because an argument does not type-check yet.
func resolveExtensionMethod(t *hoverTarget) (resolution, bool) {
	recv, name := receiverOf(t.candidate)
	if recv == nil || name == nil {
		return resolution{}, false
	}
	recvType := t.model.TypeOf(recv)
	if recvType == nil {
		return resolution{}, false
	}
	cat := t.model.Catalog()

	var best *semantic.MemberDecl
	for _, m := range cat.MethodsNamed(simpleName(t.model, name)) {
		first := firstParamType(m)
		if first == nil || !receiverCompatible(cat, recvType, first) {
			continue
		}
		if best == nil || (m.Extension || m.Static) && !(best.Extension || best.Static) {
			best = m
		}
	}
	if best == nil {
		return resolution{}, false
	}
	sym, _, _, ok := cat.ReduceExtension(best, recvType)
	if !ok {
		sym = cat.MethodSymbol(best)
	}
	return resolution{symbol: sym, span: name}, true
}

func resolveScopedMethod(t *hoverTarget) (resolution, bool) {
	name := nameNode(t.candidate)
	if name == nil {
		return resolution{}, false
	}
	for _, sym := range t.model.LookupSymbols(t.offset, simpleName(t.model, name)) {
		if sym.Kind == semantic.KindMethod {
			return resolution{symbol: sym, span: name}, true
		}
	}
	return resolution{}, false
}

func resolveStaticType(t *hoverTarget) (resolution, bool) {
	if !syntax.IsExpression(t.candidate) {
		return resolution{}, false
	}
	typ := t.model.TypeOf(t.candidate)
	if typ == nil {
		return resolution{}, false
	}
	return resolution{symbol: t.model.Catalog().TypeSymbol(typ), span: t.candidate}, true
}

// candidateNode is the nearest node at or above token that a symbol can be
// bound to.
func candidateNode(token *sitter.Node) *sitter.Node {
	if token == nil {
		return nil
	}
	for _, n := range syntax.Ancestors(token) {
		if syntax.IsSimpleName(n) || n.Type() == "implicit_parameter" || syntax.IsExpression(n) {
			return n
		}
	}
	return token.Parent()
}

// enclosingArgumentCall returns the nearest invocation whose argument list
// contains n.
func enclosingArgumentCall(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	for _, a := range syntax.Ancestors(n) {
		if a.Type() != "argument_list" {
			continue
		}
		p := a.Parent()
		if p != nil && p.Type() == "invocation_expression" && syntax.Same(p.ChildByFieldName("arguments"), a) {
			return p
		}
	}
	return nil
}

// receiverOf splits a member access, a member name or a call on a member
// into its receiver and member name.
func receiverOf(n *sitter.Node) (recv, name *sitter.Node) {
	switch n.Type() {
	case "member_access_expression":
		return n.ChildByFieldName("expression"), n.ChildByFieldName("name")
	case "identifier", "generic_name":
		p := n.Parent()
		if p != nil && p.Type() == "member_access_expression" && syntax.Same(p.ChildByFieldName("name"), n) {
			return p.ChildByFieldName("expression"), n
		}
	case "invocation_expression":
		if fn := n.ChildByFieldName("function"); fn != nil && fn.Type() == "member_access_expression" {
			return fn.ChildByFieldName("expression"), fn.ChildByFieldName("name")
		}
	}
	return nil, nil
}

// nameNode is the simple name a candidate refers to by.
func nameNode(n *sitter.Node) *sitter.Node {
	if syntax.IsSimpleName(n) {
		return n
	}
	if _, name := receiverOf(n); name != nil {
		return name
	}
	if n.Type() == "invocation_expression" {
		if fn := n.ChildByFieldName("function"); fn != nil && syntax.IsSimpleName(fn) {
			return fn
		}
	}
	return nil
}

func simpleName(m *semantic.Model, n *sitter.Node) string {
	if n.Type() == "generic_name" {
		if id := syntax.ChildOfType(n, "identifier"); id != nil {
			n = id
		}
	}
	return strings.TrimPrefix(m.Tree().Text(n), "@")
}

// firstParamType is the type a call on a receiver passes first: the this
// parameter of an extension or static method, or else the declaring type.
func firstParamType(m *semantic.MemberDecl) *typesys.Type {
	if m.Extension || m.Static {
		if len(m.Params) == 0 {
			return nil
		}
		return m.Params[0].Type
	}
	if m.Owner == nil {
		return nil
	}
	owner := typesys.Named(m.Owner.Name)
	for _, tp := range m.Owner.TypeParams {
		owner.Args = append(owner.Args, typesys.Named(tp))
	}
	return owner
}

// receiverCompatible matches recv against first by name only. Type
// arguments are not checked, and any two sequence types match.
func receiverCompatible(cat *semantic.Catalog, recv, first *typesys.Type) bool {
	if typesys.Equal(recv, first) {
		return true
	}
	if base, _ := cat.AsBase(recv, first.Name, len(first.Args)); base != nil {
		return true
	}
	if !typesys.IsSequenceFamily(first) {
		return false
	}
	if typesys.IsSequenceFamily(recv) {
		return true
	}
	seq, _ := cat.AsBase(recv, "IEnumerable", 1)
	return seq != nil
}
