package semantic

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/linqlens/internal/syntax"
	"github.com/jward/linqlens/internal/typesys"
)

// LookupSymbols returns the symbols visible at offset, innermost scope
// first: lambda parameters, query range variables, locals declared before
// offset, loop variables, method parameters, members of the enclosing class
// and finally declared types. An empty name returns every visible symbol.
// Inner declarations hide outer ones with the same name.
func (m *Model) LookupSymbols(offset int, name string) []*Symbol {
	var out []*Symbol
	seen := make(map[string]bool)
	add := func(n string, build func() *Symbol) {
		if name != "" && n != name {
			return
		}
		s := build()
		if s == nil {
			return
		}
		if s.Kind != KindMethod {
			if seen[s.Name] {
				return
			}
			seen[s.Name] = true
		}
		out = append(out, s)
	}

	for _, a := range syntax.Ancestors(m.nodeAt(offset)) {
		switch a.Type() {
		case "lambda_expression", "anonymous_method_expression":
			body := a.ChildByFieldName("body")
			if body == nil || offset < int(body.StartByte()) {
				continue
			}
			for i, p := range lambdaParams(a) {
				add(m.nameOf(p.name), func() *Symbol { return m.lambdaParamSymbol(a, i, p) })
			}
		case "query_expression":
			m.rangeVariables(a, offset, add)
		case "block":
			m.blockLocals(a, offset, add)
		case "foreach_statement":
			body := a.ChildByFieldName("body")
			left := a.ChildByFieldName("left")
			if left == nil {
				left = syntax.ChildOfType(a, "identifier")
			}
			if body == nil || left == nil || offset < int(body.StartByte()) {
				continue
			}
			add(m.nameOf(left), func() *Symbol {
				t := m.parseType(a.ChildByFieldName("type"))
				if t == nil {
					t = m.ElementType(m.TypeOf(a.ChildByFieldName("right")))
				}
				return &Symbol{Kind: KindLocal, Name: m.nameOf(left), Type: t}
			})
		case "method_declaration":
			for _, p := range m.methodParams(a) {
				add(p.Name, func() *Symbol { return &Symbol{Kind: KindParameter, Name: p.Name, Type: p.Type} })
			}
		case "class_declaration", "struct_declaration", "record_declaration":
			for _, s := range m.classMembers(a) {
				add(s.Name, func() *Symbol { return s })
			}
		}
	}

	if name != "" {
		if d := m.cat.Type(name, -1); d != nil && !d.Nested {
			add(name, func() *Symbol { return m.cat.TypeSymbol(declType(d)) })
		}
		return out
	}
	for _, d := range m.cat.Types() {
		if d.Nested || !accessible(d.Visibility) {
			continue
		}
		add(d.Name, func() *Symbol { return m.cat.TypeSymbol(declType(d)) })
	}
	return out
}

// declType is the type a declaration introduces, with its own type
// parameters as arguments.
func declType(d *TypeDecl) *typesys.Type {
	t := typesys.Named(d.Name)
	for _, tp := range d.TypeParams {
		t.Args = append(t.Args, typesys.Named(tp))
	}
	return t
}

// nodeAt returns the smallest node containing offset, or ending at it when
// nothing starts there.
func (m *Model) nodeAt(offset int) *sitter.Node {
	n := m.tree.Root()
	for {
		var next *sitter.Node
		for _, c := range syntax.Children(n) {
			s, e := int(c.StartByte()), int(c.EndByte())
			if s <= offset && offset < e {
				next = c
				break
			}
			if s < offset && offset == e {
				next = c
			}
		}
		if next == nil {
			return n
		}
		n = next
	}
}

// declaredAt returns the symbol declared by a name node, if n is the name
// of a declaration.
func (m *Model) declaredAt(n *sitter.Node) *Symbol {
	if n.Type() == "implicit_parameter" {
		if lam := n.Parent(); lam != nil {
			for i, p := range lambdaParams(lam) {
				if syntax.Same(p.name, n) {
					return m.lambdaParamSymbol(lam, i, p)
				}
			}
		}
	}
	p := n.Parent()
	if p == nil || !syntax.Same(nameField(p), n) {
		return nil
	}
	switch p.Type() {
	case "variable_declarator":
		for _, s := range m.LookupSymbols(int(p.EndByte()), m.nameOf(n)) {
			if s.Kind == KindLocal {
				return s
			}
		}
	case "parameter":
		if pl := p.Parent(); pl != nil {
			if lam := pl.Parent(); lam != nil && isLambda(lam) {
				for i, lp := range lambdaParams(lam) {
					if syntax.Same(lp.name, n) {
						return m.lambdaParamSymbol(lam, i, lp)
					}
				}
			}
			if md := pl.Parent(); md != nil && md.Type() == "method_declaration" {
				for _, mp := range m.methodParams(md) {
					if mp.Name == m.nameOf(n) {
						return &Symbol{Kind: KindParameter, Name: mp.Name, Type: mp.Type}
					}
				}
			}
		}
	case "from_clause", "let_clause", "join_clause", "query_continuation":
		if q := syntax.Enclosing(p, "query_expression"); q != nil {
			var found *Symbol
			m.rangeVariables(q, int(p.EndByte()), func(name string, build func() *Symbol) {
				if found == nil && name == m.nameOf(n) {
					found = build()
				}
			})
			return found
		}
	case "class_declaration":
		return &Symbol{Kind: KindType, Name: m.nameOf(n), Type: typesys.Named(m.nameOf(n)), DeclKind: "class"}
	case "method_declaration", "property_declaration":
		if cls := syntax.Enclosing(p, "class_declaration"); cls != nil {
			for _, s := range m.classMembers(cls) {
				if s.Name == m.nameOf(n) {
					return s
				}
			}
		}
	case "foreach_statement":
		if body := p.ChildByFieldName("body"); body != nil {
			if syms := m.LookupSymbols(int(body.StartByte()), m.nameOf(n)); len(syms) > 0 {
				return syms[0]
			}
		}
	}
	return nil
}

// nameField returns the node holding a declaration's name.
func nameField(n *sitter.Node) *sitter.Node {
	switch n.Type() {
	case "foreach_statement":
		if l := n.ChildByFieldName("left"); l != nil {
			return l
		}
	case "from_clause", "let_clause", "join_clause", "query_continuation":
		if name := n.ChildByFieldName("name"); name != nil {
			return name
		}
		var last *sitter.Node
		for _, c := range syntax.Children(n) {
			if c.Type() == "in" || c.Type() == "=" {
				break
			}
			if c.Type() == "identifier" {
				last = c
			}
		}
		return last
	}
	if name := n.ChildByFieldName("name"); name != nil {
		return name
	}
	return syntax.ChildOfType(n, "identifier")
}

// blockLocals adds the locals a block declares before offset.
func (m *Model) blockLocals(block *sitter.Node, offset int, add func(string, func() *Symbol)) {
	stmts := syntax.NamedChildren(block)
	for i := len(stmts) - 1; i >= 0; i-- {
		st := stmts[i]
		if int(st.StartByte()) >= offset || st.Type() != "local_declaration_statement" {
			continue
		}
		decl := syntax.ChildOfType(st, "variable_declaration")
		if decl == nil {
			continue
		}
		declared := decl.ChildByFieldName("type")
		for _, vd := range syntax.ChildrenOfType(decl, "variable_declarator") {
			if int(vd.EndByte()) > offset {
				continue
			}
			name := nameField(vd)
			if name == nil {
				continue
			}
			add(m.nameOf(name), func() *Symbol {
				t := m.parseType(declared)
				if t == nil {
					t = m.TypeOf(initializer(vd))
				}
				return &Symbol{Kind: KindLocal, Name: m.nameOf(name), Type: t}
			})
		}
	}
}

// initializer returns the value a declarator is initialized with.
func initializer(vd *sitter.Node) *sitter.Node {
	if v := vd.ChildByFieldName("value"); v != nil {
		return v
	}
	return syntax.ValueAfter(vd, "=")
}

func (m *Model) methodParams(md *sitter.Node) []Param {
	list := md.ChildByFieldName("parameters")
	if list == nil {
		list = syntax.ChildOfType(md, "parameter_list")
	}
	if list == nil {
		return nil
	}
	var out []Param
	for _, p := range syntax.ChildrenOfType(list, "parameter") {
		name := nameField(p)
		if name == nil {
			continue
		}
		param := Param{Name: m.nameOf(name), Type: orObject(m.parseType(p.ChildByFieldName("type")))}
		if def := syntax.ValueAfter(p, "="); def != nil {
			param.Optional, param.Default = true, m.text(def)
		}
		out = append(out, param)
	}
	return out
}

// classMembers builds symbols for the members of a class declared in the
// bound document itself.
func (m *Model) classMembers(cls *sitter.Node) []*Symbol {
	container := typesys.Named(m.nameOf(cls.ChildByFieldName("name")))
	body := cls.ChildByFieldName("body")
	if body == nil {
		body = syntax.ChildOfType(cls, "declaration_list")
	}
	if body == nil {
		return nil
	}
	var out []*Symbol
	for _, d := range syntax.NamedChildren(body) {
		name := nameField(d)
		switch d.Type() {
		case "method_declaration":
			ret := d.ChildByFieldName("returns")
			if ret == nil {
				ret = d.ChildByFieldName("type")
			}
			out = append(out, &Symbol{
				Kind:       KindMethod,
				Name:       m.nameOf(name),
				Type:       m.parseType(ret),
				Container:  container,
				Params:     m.methodParams(d),
				Visibility: "public",
			})
		case "property_declaration":
			out = append(out, &Symbol{
				Kind:      KindProperty,
				Name:      m.nameOf(name),
				Type:      m.parseType(d.ChildByFieldName("type")),
				Container: container,
			})
		}
	}
	return out
}

// lambdaParam is one declared lambda parameter.
type lambdaParam struct {
	name *sitter.Node
	typ  *sitter.Node
}

func lambdaParams(lam *sitter.Node) []lambdaParam {
	ps := lam.ChildByFieldName("parameters")
	if ps == nil {
		for _, c := range syntax.Children(lam) {
			if c.Type() == "=>" {
				break
			}
			switch c.Type() {
			case "identifier", "implicit_parameter", "parameter_list", "implicit_parameter_list":
				ps = c
			}
		}
	}
	if ps == nil {
		return nil
	}
	switch ps.Type() {
	case "identifier", "implicit_parameter":
		return []lambdaParam{{name: ps}}
	}
	var out []lambdaParam
	for _, c := range syntax.NamedChildren(ps) {
		switch c.Type() {
		case "parameter":
			if name := nameField(c); name != nil {
				out = append(out, lambdaParam{name: name, typ: c.ChildByFieldName("type")})
			}
		case "identifier", "implicit_parameter":
			out = append(out, lambdaParam{name: c})
		}
	}
	return out
}

func (m *Model) lambdaParamSymbol(lam *sitter.Node, i int, p lambdaParam) *Symbol {
	t := m.parseType(p.typ)
	if t == nil {
		if types := m.lambdaParamTypes(lam); i < len(types) {
			t = types[i]
		}
	}
	return &Symbol{Kind: KindParameter, Name: m.nameOf(p.name), Type: t}
}

func (m *Model) setLambdaParams(lam *sitter.Node, types []*typesys.Type) {
	if m.trial > 0 {
		m.tentative[key(lam)] = types
		return
	}
	m.lambdas[key(lam)] = types
}

// lambdaParamTypes returns the parameter types of a lambda as fixed by the
// call or declaration it is converted for.
func (m *Model) lambdaParamTypes(lam *sitter.Node) []*typesys.Type {
	k := key(lam)
	if m.trial > 0 {
		if t, ok := m.tentative[k]; ok {
			return t
		}
	}
	if t, ok := m.lambdas[k]; ok {
		return t
	}
	if call := enclosingCall(lam); call != nil {
		m.bindInvocation(call)
		if m.trial > 0 {
			if t, ok := m.tentative[k]; ok {
				return t
			}
		}
		return m.lambdas[k]
	}
	if params, _, ok := typesys.Delegate(m.lambdaTarget(lam)); ok {
		return params
	}
	return nil
}

// enclosingCall returns the invocation a lambda is passed to.
func enclosingCall(lam *sitter.Node) *sitter.Node {
	arg := lam.Parent()
	if arg == nil || arg.Type() != "argument" {
		return nil
	}
	list := arg.Parent()
	if list == nil || list.Type() != "argument_list" {
		return nil
	}
	call := list.Parent()
	if call == nil || call.Type() != "invocation_expression" {
		return nil
	}
	return call
}

// lambdaTarget returns the delegate type a lambda converts to when it is
// declared against an explicit type.
func (m *Model) lambdaTarget(lam *sitter.Node) *typesys.Type {
	p := lam.Parent()
	if p == nil {
		return nil
	}
	if p.Type() == "equals_value_clause" {
		p = p.Parent()
	}
	if p != nil && p.Type() == "variable_declarator" {
		if decl := p.Parent(); decl != nil && decl.Type() == "variable_declaration" {
			return m.parseType(decl.ChildByFieldName("type"))
		}
	}
	return nil
}

// lambdaBodyType is the type of a lambda's expression body, or of the
// first value returned from its block body.
func (m *Model) lambdaBodyType(lam *sitter.Node) *typesys.Type {
	body := lam.ChildByFieldName("body")
	if body == nil {
		body = lastNamed(lam)
	}
	if body == nil {
		return nil
	}
	if body.Type() != "block" {
		return m.TypeOf(body)
	}
	ret := firstReturn(body)
	if ret == nil {
		return typesys.Named(typesys.Void)
	}
	return m.TypeOf(firstNamed(ret))
}

func firstReturn(n *sitter.Node) *sitter.Node {
	for _, c := range syntax.NamedChildren(n) {
		if c.Type() == "return_statement" && c.NamedChildCount() > 0 {
			return c
		}
		if isLambda(c) || c.Type() == "local_function_statement" {
			continue
		}
		if r := firstReturn(c); r != nil {
			return r
		}
	}
	return nil
}

// rangeVariables adds the range variables a query expression declares in
// clauses before offset.
func (m *Model) rangeVariables(q *sitter.Node, offset int, add func(string, func() *Symbol)) {
	var vars []*Symbol
	for _, clause := range syntax.NamedChildren(q) {
		if int(clause.StartByte()) >= offset {
			break
		}
		name := nameField(clause)
		switch clause.Type() {
		case "from_clause", "join_clause":
			if name == nil || int(name.EndByte()) > offset {
				continue
			}
			t := m.parseType(clause.ChildByFieldName("type"))
			if t == nil {
				t = m.ElementType(m.TypeOf(clauseSource(clause)))
			}
			vars = append(vars, &Symbol{Kind: KindRangeVariable, Name: m.nameOf(name), Type: t})
		case "let_clause":
			if name == nil || int(clause.EndByte()) > offset {
				continue
			}
			vars = append(vars, &Symbol{Kind: KindRangeVariable, Name: m.nameOf(name), Type: m.TypeOf(lastNamed(clause))})
		case "query_continuation":
			if name == nil {
				continue
			}
			// Everything declared before "into" goes out of scope.
			t := m.ElementType(m.queryResult(clausesBefore(q, clause), m.queryFamily(q)))
			vars = append(vars[:0], &Symbol{Kind: KindRangeVariable, Name: m.nameOf(name), Type: t})
		}
	}
	for i := len(vars) - 1; i >= 0; i-- {
		v := vars[i]
		add(v.Name, func() *Symbol { return v })
	}
}

// clauseSource returns the sequence expression after "in".
func clauseSource(clause *sitter.Node) *sitter.Node {
	seenIn := false
	for _, c := range syntax.Children(clause) {
		if c.Type() == "in" {
			seenIn = true
			continue
		}
		if seenIn && c.IsNamed() {
			return c
		}
	}
	return nil
}

// queryType is the type a query expression produces: a sequence of what it
// selects, queryable when its source is.
func (m *Model) queryType(q *sitter.Node) *typesys.Type {
	return m.queryResult(syntax.NamedChildren(q), m.queryFamily(q))
}

func (m *Model) queryFamily(q *sitter.Node) string {
	clauses := syntax.NamedChildren(q)
	if len(clauses) == 0 {
		return "IEnumerable"
	}
	if base, _ := m.cat.AsBase(m.TypeOf(clauseSource(clauses[0])), "IQueryable", 1); base != nil {
		return "IQueryable"
	}
	return "IEnumerable"
}

// queryResult finds the final select or group clause, looking into an
// "into" continuation first.
func (m *Model) queryResult(clauses []*sitter.Node, family string) *typesys.Type {
	for i := len(clauses) - 1; i >= 0; i-- {
		c := clauses[i]
		switch c.Type() {
		case "query_continuation":
			if t := m.queryResult(syntax.NamedChildren(c), family); t != nil {
				return t
			}
		case "select_clause":
			return typesys.Named(family, orObject(m.TypeOf(lastNamed(c))))
		case "group_clause":
			parts := syntax.NamedChildren(c)
			if len(parts) < 2 {
				return nil
			}
			elem := orObject(m.TypeOf(parts[0]))
			k := orObject(m.TypeOf(parts[len(parts)-1]))
			return typesys.Named(family, typesys.Named("IGrouping", k, elem))
		}
	}
	return nil
}

func clausesBefore(q, stop *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range syntax.NamedChildren(q) {
		if syntax.Same(c, stop) {
			break
		}
		out = append(out, c)
	}
	return out
}
