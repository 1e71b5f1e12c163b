package semantic

import (
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/linqlens/internal/syntax"
	"github.com/jward/linqlens/internal/typesys"
)

// SymbolInfo is the result of binding a node: the symbol it refers to, or
// when that is ambiguous, the candidates it might refer to.
type SymbolInfo struct {
	Symbol     *Symbol
	Candidates []*Symbol
}

// Best returns the bound symbol, or else the first candidate.
func (i SymbolInfo) Best() *Symbol {
	if i.Symbol != nil {
		return i.Symbol
	}
	if len(i.Candidates) > 0 {
		return i.Candidates[0]
	}
	return nil
}

// SymbolInfo binds n to the declaration it refers to.
func (m *Model) SymbolInfo(n *sitter.Node) SymbolInfo {
	if n == nil {
		return SymbolInfo{}
	}
	switch n.Type() {
	case "identifier", "generic_name", "implicit_parameter":
		return m.bindName(n)
	case "member_access_expression":
		if p := n.Parent(); p != nil && p.Type() == "invocation_expression" && syntax.Same(p.ChildByFieldName("function"), n) {
			return m.bindInvocation(p)
		}
		return m.bindMemberAccess(n)
	case "member_binding_expression":
		if p := n.Parent(); p != nil && p.Type() == "invocation_expression" && syntax.Same(p.ChildByFieldName("function"), n) {
			return m.bindInvocation(p)
		}
		return m.bindMemberOf(m.conditionalReceiver(n), n.ChildByFieldName("name"))
	case "invocation_expression":
		return m.bindInvocation(n)
	case "lambda_expression", "anonymous_method_expression":
		return SymbolInfo{Symbol: &Symbol{Kind: KindAnonymousFunction, Name: "lambda", Type: m.lambdaTarget(n)}}
	case "predefined_type", "qualified_name", "array_type", "nullable_type":
		if t := m.parseType(n); t != nil {
			return SymbolInfo{Symbol: m.cat.TypeSymbol(t)}
		}
	case "object_creation_expression":
		if t := m.parseType(n.ChildByFieldName("type")); t != nil {
			return SymbolInfo{Symbol: m.cat.TypeSymbol(t)}
		}
	case "this_expression", "this":
		if cls := syntax.Enclosing(n, "class_declaration"); cls != nil {
			t := typesys.Named(m.nameOf(cls.ChildByFieldName("name")))
			return SymbolInfo{Symbol: &Symbol{Kind: KindParameter, Name: "this", Type: t}}
		}
	}
	return SymbolInfo{}
}

// bindName binds a simple name by where it appears: as the member of an
// access, as a declaration, in a type position, or as a scoped name.
func (m *Model) bindName(n *sitter.Node) SymbolInfo {
	p := n.Parent()
	if p != nil {
		switch p.Type() {
		case "member_access_expression":
			if syntax.Same(p.ChildByFieldName("name"), n) {
				return m.SymbolInfo(p)
			}
		case "member_binding_expression":
			return m.SymbolInfo(p)
		case "invocation_expression":
			if syntax.Same(p.ChildByFieldName("function"), n) {
				return m.bindInvocation(p)
			}
		case "generic_name":
			return m.bindName(p)
		case "qualified_name":
			if t := m.parseType(p); t != nil && syntax.Same(p.ChildByFieldName("name"), n) {
				return SymbolInfo{Symbol: m.cat.TypeSymbol(t)}
			}
		}
		if s := m.declaredAt(n); s != nil {
			return SymbolInfo{Symbol: s}
		}
		if isTypePosition(n) {
			if t := m.parseType(n); t != nil {
				return SymbolInfo{Symbol: m.cat.TypeSymbol(t)}
			}
		}
	}

	name := m.nameOf(n)
	for _, s := range m.LookupSymbols(int(n.StartByte()), name) {
		if s.Kind == KindMethod {
			// A method group: every same-named method is a candidate.
			var cands []*Symbol
			for _, c := range m.LookupSymbols(int(n.StartByte()), name) {
				if c.Kind == KindMethod {
					cands = append(cands, c)
				}
			}
			if len(cands) == 1 {
				return SymbolInfo{Symbol: cands[0]}
			}
			return SymbolInfo{Candidates: cands}
		}
		if s.Kind == KindType && n.Type() == "generic_name" {
			args := m.typeArgsOf(n)
			return SymbolInfo{Symbol: m.cat.TypeSymbol(typesys.Named(name, args...))}
		}
		return SymbolInfo{Symbol: s}
	}
	return SymbolInfo{}
}

// typePositions are the parent node types whose "type" child names a type.
var typePositions = map[string]bool{
	"variable_declaration":       true,
	"object_creation_expression": true,
	"array_creation_expression":  true,
	"cast_expression":            true,
	"default_expression":         true,
	"typeof_expression":          true,
	"parameter":                  true,
	"type_argument_list":         true,
	"nullable_type":              true,
	"array_type":                 true,
	"base_list":                  true,
	"property_declaration":       true,
	"field_declaration":          true,
	"method_declaration":         true,
}

func isTypePosition(n *sitter.Node) bool {
	p := n.Parent()
	if p == nil || !typePositions[p.Type()] {
		return false
	}
	switch p.Type() {
	case "type_argument_list", "nullable_type", "array_type", "base_list":
		return true
	case "method_declaration":
		return syntax.Same(p.ChildByFieldName("returns"), n) || syntax.Same(p.ChildByFieldName("type"), n)
	}
	return syntax.Same(p.ChildByFieldName("type"), n)
}

// typeRef returns the type n names when n is used as a type rather than a
// value, as in the receiver of a static call.
func (m *Model) typeRef(n *sitter.Node) *typesys.Type {
	switch n.Type() {
	case "predefined_type":
		return typesys.Parse(m.text(n))
	case "qualified_name":
		return m.parseType(n)
	case "identifier", "generic_name":
		if isTypePosition(n) {
			return m.parseType(n)
		}
		if p := n.Parent(); p != nil {
			if p.Type() == "member_binding_expression" ||
				p.Type() == "member_access_expression" && syntax.Same(p.ChildByFieldName("name"), n) {
				return nil
			}
		}
		name := m.nameOf(n)
		for _, s := range m.LookupSymbols(int(n.StartByte()), name) {
			if s.Kind != KindType {
				return nil
			}
			return typesys.Named(name, m.typeArgsOf(n)...)
		}
	case "member_access_expression":
		// Namespace.Type
		if m.isNamespace(n.ChildByFieldName("expression")) {
			name := n.ChildByFieldName("name")
			if d := m.cat.Type(m.nameOf(name), len(m.typeArgsOf(name))); d != nil {
				return typesys.Named(d.Name, m.typeArgsOf(name)...)
			}
		}
	}
	return nil
}

// isNamespace reports whether n binds to nothing at all, which in a member
// access chain means it is a namespace name.
func (m *Model) isNamespace(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "identifier":
		return len(m.LookupSymbols(int(n.StartByte()), m.nameOf(n))) == 0
	case "member_access_expression":
		return m.isNamespace(n.ChildByFieldName("expression")) && m.typeRef(n) == nil
	}
	return false
}

func (m *Model) bindMemberAccess(n *sitter.Node) SymbolInfo {
	if t := m.typeRef(n); t != nil {
		return SymbolInfo{Symbol: m.cat.TypeSymbol(t)}
	}
	return m.bindMemberOf(n.ChildByFieldName("expression"), n.ChildByFieldName("name"))
}

// bindMemberOf binds name as a member of the receiver expression recv, which
// may be a value or a type.
func (m *Model) bindMemberOf(recv, name *sitter.Node) SymbolInfo {
	if recv == nil || name == nil {
		return SymbolInfo{}
	}
	member := m.nameOf(name)
	var members []*Symbol
	var methods []*Symbol
	if t := m.typeRef(recv); t != nil {
		for _, s := range m.cat.Members(t) {
			if s.Name == member && s.IsStatic {
				members = append(members, s)
			}
		}
	} else if t := m.TypeOf(recv); t != nil {
		for _, s := range m.cat.Members(t) {
			if s.Name == member && !s.IsStatic {
				members = append(members, s)
			}
		}
		for _, ext := range m.cat.ExtensionMethods(member) {
			if s, _, _, ok := m.cat.ReduceExtension(ext, t); ok {
				methods = append(methods, s)
			}
		}
	}
	for _, s := range members {
		if s.Kind != KindMethod {
			return SymbolInfo{Symbol: s}
		}
	}
	methods = append(members, methods...)
	if len(methods) == 1 {
		return SymbolInfo{Symbol: methods[0]}
	}
	return SymbolInfo{Candidates: methods}
}

// conditionalReceiver returns the receiver of a ?. member binding.
func (m *Model) conditionalReceiver(n *sitter.Node) *sitter.Node {
	for a := n.Parent(); a != nil; a = a.Parent() {
		if a.Type() != "conditional_access_expression" {
			continue
		}
		cond := a.ChildByFieldName("condition")
		if cond == nil {
			cond = firstNamed(a)
		}
		if cond != nil && !syntax.Contains(cond, n) {
			return cond
		}
	}
	return nil
}

// candidate is one overload under consideration for a call.
type candidate struct {
	sym      *Symbol
	params   []Param // the parameters arguments are matched against
	bindings map[string]*typesys.Type
	generic  map[string]bool
	distance int
	order    int
}

func (m *Model) bindInvocation(inv *sitter.Node) SymbolInfo {
	k := key(inv)
	if info, ok := m.calls[k]; ok {
		return info
	}
	if m.binding[k] {
		return SymbolInfo{}
	}
	m.binding[k] = true
	info := m.resolveCall(inv)
	delete(m.binding, k)
	if m.trial == 0 {
		m.calls[k] = info
	}
	return info
}

func (m *Model) resolveCall(inv *sitter.Node) SymbolInfo {
	fn := inv.ChildByFieldName("function")
	if fn == nil {
		fn = firstNamed(inv)
	}
	if fn == nil {
		return SymbolInfo{}
	}
	args := arguments(inv)

	var nameNode *sitter.Node
	var instance, extensions []candidate
	switch fn.Type() {
	case "member_access_expression", "member_binding_expression":
		nameNode = fn.ChildByFieldName("name")
		recv := fn.ChildByFieldName("expression")
		if fn.Type() == "member_binding_expression" {
			recv = m.conditionalReceiver(fn)
		}
		if recv == nil || nameNode == nil {
			return SymbolInfo{}
		}
		instance, extensions = m.memberCandidates(recv, m.nameOf(nameNode))
	case "identifier", "generic_name":
		nameNode = fn
		name := m.nameOf(fn)
		scoped := m.LookupSymbols(int(fn.StartByte()), name)
		if len(scoped) > 0 && scoped[0].Kind != KindMethod {
			// A delegate-typed local or parameter.
			return SymbolInfo{Symbol: scoped[0]}
		}
		for i, s := range scoped {
			if s.Kind == KindMethod {
				instance = append(instance, newCandidate(s, false, nil, 0, i))
			}
		}
	default:
		return SymbolInfo{}
	}

	explicit := m.typeArgsOf(nameNode)
	seed := func(cs []candidate) []candidate {
		if len(explicit) == 0 {
			return cs
		}
		out := cs[:0]
		for _, c := range cs {
			if len(c.sym.TypeParams) != len(explicit) {
				continue
			}
			for i, tp := range c.sym.TypeParams {
				if _, bound := c.bindings[tp]; !bound {
					c.bindings[tp] = explicit[i]
				}
			}
			out = append(out, c)
		}
		return out
	}
	instance, extensions = seed(instance), seed(extensions)

	// Applicable instance methods hide extension methods.
	for _, group := range [][]candidate{instance, extensions} {
		if best, ok := m.pickOverload(group, args); ok {
			return SymbolInfo{Symbol: best}
		}
	}
	var all []*Symbol
	for _, c := range append(instance, extensions...) {
		all = append(all, c.sym)
	}
	return SymbolInfo{Candidates: all}
}

func newCandidate(s *Symbol, reduced bool, b map[string]*typesys.Type, dist, order int) candidate {
	c := candidate{
		sym:      s,
		params:   s.Params,
		bindings: make(map[string]*typesys.Type),
		generic:  typeParamSet(s.TypeParams),
		distance: dist,
		order:    order,
	}
	if reduced && len(c.params) > 0 {
		c.params = c.params[1:]
	}
	for k, v := range b {
		c.bindings[k] = v
	}
	return c
}

// memberCandidates collects the methods named name callable on recv.
func (m *Model) memberCandidates(recv *sitter.Node, name string) (instance, extensions []candidate) {
	if t := m.typeRef(recv); t != nil {
		for i, s := range m.cat.Members(t) {
			if s.Kind == KindMethod && s.IsStatic && s.Name == name {
				instance = append(instance, newCandidate(s, false, nil, 0, i))
			}
		}
		return instance, nil
	}
	t := m.TypeOf(recv)
	if t == nil {
		return nil, nil
	}
	for i, s := range m.cat.Members(t) {
		if s.Kind == KindMethod && !s.IsStatic && s.Name == name {
			instance = append(instance, newCandidate(s, false, nil, 0, i))
		}
	}
	for i, ext := range m.cat.ExtensionMethods(name) {
		if s, b, dist, ok := m.cat.ReduceExtension(ext, t); ok {
			extensions = append(extensions, newCandidate(s, true, b, dist, i))
		}
	}
	return instance, extensions
}

// arguments returns the argument expressions of a call.
func arguments(call *sitter.Node) []*sitter.Node {
	list := call.ChildByFieldName("arguments")
	if list == nil {
		list = syntax.ChildOfType(call, "argument_list")
	}
	if list == nil {
		return nil
	}
	var out []*sitter.Node
	for _, a := range syntax.ChildrenOfType(list, "argument") {
		if e := lastNamed(a); e != nil {
			out = append(out, e)
		}
	}
	return out
}

// pickOverload scores each applicable candidate against args and returns
// the best one instantiated with its inferred type arguments.
func (m *Model) pickOverload(cands []candidate, args []*sitter.Node) (*Symbol, bool) {
	type scored struct {
		c     candidate
		score int
	}
	var ok []scored
	for _, c := range cands {
		if !arity(c.params, len(args)) {
			continue
		}
		m.trial++
		score, _, applicable := m.match(c, args)
		m.trial--
		if m.trial == 0 {
			clear(m.tentative)
		}
		if applicable {
			ok = append(ok, scored{c, score})
		}
	}
	if len(ok) == 0 {
		return nil, false
	}
	sort.SliceStable(ok, func(i, j int) bool {
		a, b := ok[i], ok[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.c.distance != b.c.distance {
			return a.c.distance < b.c.distance
		}
		if len(a.c.params) != len(b.c.params) {
			return len(a.c.params) < len(b.c.params)
		}
		return a.c.order < b.c.order
	})
	best := ok[0].c
	// Match again outside the trial so lambda parameter types stick.
	_, b, _ := m.match(best, args)
	return instantiate(best.sym, b), true
}

func arity(params []Param, n int) bool {
	required := 0
	variadic := false
	for _, p := range params {
		switch {
		case p.IsParams():
			variadic = true
		case !p.Optional:
			required++
		}
	}
	return n >= required && (n <= len(params) || variadic)
}

// match infers type arguments for c from args and scores how well the
// arguments fit. Non-lambda arguments go first so that lambdas see the
// type parameters they fix.
func (m *Model) match(c candidate, args []*sitter.Node) (int, map[string]*typesys.Type, bool) {
	b := make(map[string]*typesys.Type, len(c.bindings))
	for k, v := range c.bindings {
		b[k] = v
	}
	score := 0
	for pass := 0; pass < 2; pass++ {
		for i, arg := range args {
			formal := paramType(c.params, i, arg, m)
			if formal == nil {
				continue
			}
			lambda := isLambda(arg)
			if lambda != (pass == 1) {
				continue
			}
			if !lambda {
				at := m.TypeOf(arg)
				if at == nil {
					continue
				}
				if typesys.Mentions(formal, c.generic) {
					if m.unify(formal, at, c.generic, b) {
						score++
					} else {
						return 0, nil, false
					}
					continue
				}
				conv := m.conversion(at, formal)
				if conv == 0 {
					return 0, nil, false
				}
				score += conv
				continue
			}

			dparams, dret, ok := typesys.Delegate(typesys.Substitute(formal, b))
			if !ok {
				if c.generic[formal.Name] {
					continue
				}
				return 0, nil, false
			}
			if len(lambdaParams(arg)) != len(dparams) {
				return 0, nil, false
			}
			for _, dp := range dparams {
				if typesys.Mentions(dp, c.generic) {
					// Cannot type the lambda yet.
					dparams = nil
					break
				}
			}
			m.setLambdaParams(arg, dparams)
			body := m.lambdaBodyType(arg)
			switch {
			case dret == nil || body == nil:
			case dret.IsVoid():
				score++
			case typesys.Mentions(dret, c.generic):
				if m.unify(dret, body, c.generic, b) {
					score += 2
				} else {
					score--
				}
			default:
				if conv := m.conversion(body, dret); conv > 0 {
					score += conv
				} else {
					score -= 2
				}
			}
		}
	}
	return score, b, true
}

// paramType is the formal type an argument at index i is matched against,
// expanding a params array to its element type.
func paramType(params []Param, i int, arg *sitter.Node, m *Model) *typesys.Type {
	if len(params) == 0 {
		return nil
	}
	if i >= len(params) {
		last := params[len(params)-1]
		if !last.IsParams() {
			return nil
		}
		return last.Type.Element()
	}
	p := params[i]
	if p.IsParams() && i == len(params)-1 {
		if at := m.TypeOf(arg); at == nil || at.Array == 0 {
			return p.Type.Element()
		}
	}
	return p.Type
}

// unify infers type arguments by matching formal against actual, first
// converting actual to the formal's generic family.
func (m *Model) unify(formal, actual *typesys.Type, params map[string]bool, b map[string]*typesys.Type) bool {
	if params[formal.Name] && len(formal.Args) == 0 {
		return typesys.Unify(formal, actual, params, b)
	}
	if formal.Array > 0 {
		return typesys.Unify(formal, actual, params, b)
	}
	base, _ := m.cat.AsBase(actual, formal.Name, len(formal.Args))
	if base == nil {
		return false
	}
	return typesys.Unify(formal, base, params, b)
}

// conversion rates how an actual type converts to a formal one: 3 for an
// identity, 2 for a reference conversion, 1 for a numeric or otherwise
// lenient one and 0 for none.
func (m *Model) conversion(actual, formal *typesys.Type) int {
	if actual == nil || formal == nil {
		return 1
	}
	a, f := actual.Clone(), formal.Clone()
	a.Nullable, f.Nullable = false, false
	switch {
	case typesys.Equal(a, f):
		return 3
	case f.Name == typesys.Object && f.Array == 0:
		return 2
	case typesys.IsNumeric(a) && typesys.IsNumeric(f):
		if numericRank[a.Name] <= numericRank[f.Name] {
			return 1
		}
		return 0
	}
	if base, _ := m.cat.AsBase(a, f.Name, len(f.Args)); base != nil {
		return 2
	}
	if m.cat.Lookup(f) == nil && f.Array == 0 {
		// An unknown formal type cannot be ruled out.
		return 1
	}
	return 0
}

func isLambda(n *sitter.Node) bool {
	return n.Type() == "lambda_expression" || n.Type() == "anonymous_method_expression"
}
