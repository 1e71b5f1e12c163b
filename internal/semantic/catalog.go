// Package semantic binds C# query snippets against the declarations held in
// a workspace store. A Catalog is the resolved view of every declared type;
// a Model binds one parsed document against a Catalog.
package semantic

import (
	"fmt"
	"sort"

	"github.com/jward/linqlens/internal/store"
	"github.com/jward/linqlens/internal/typesys"
)

// TypeDecl is a declared type with its members, as loaded from the store.
type TypeDecl struct {
	Name       string
	Kind       string
	TypeParams []string
	Bases      []*typesys.Type
	Members    []*MemberDecl
	Doc        string
	Visibility string
	Static     bool
	Nested     bool
	User       bool // declared in a model or context document
}

// MemberDecl is a property, field, method or enum member of a TypeDecl.
type MemberDecl struct {
	Name       string
	Kind       string
	Type       *typesys.Type // value type, or return type for methods
	TypeParams []string
	Params     []Param
	Static     bool
	Extension  bool
	Visibility string
	Doc        string
	Owner      *TypeDecl
}

// Catalog is an immutable index over the declarations in a store.
type Catalog struct {
	byName     map[string][]*TypeDecl
	types      []*TypeDecl
	methods    map[string][]*MemberDecl
	extensions map[string][]*MemberDecl
}

// Load reads every type declaration and its members from s.
func Load(s *store.Store) (*Catalog, error) {
	docs, err := s.Documents()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	docKind := make(map[int64]string, len(docs))
	for _, d := range docs {
		docKind[d.ID] = d.Kind
	}

	syms, err := s.Types()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	c := &Catalog{
		byName:     make(map[string][]*TypeDecl),
		methods:    make(map[string][]*MemberDecl),
		extensions: make(map[string][]*MemberDecl),
	}
	for _, sym := range syms {
		decl, err := loadType(s, sym)
		if err != nil {
			return nil, fmt.Errorf("load type %s: %w", sym.Name, err)
		}
		if sym.DocumentID != nil {
			decl.User = docKind[*sym.DocumentID] != store.KindPrelude
		}
		c.add(decl)
	}
	for name := range c.byName {
		sort.SliceStable(c.byName[name], func(i, j int) bool {
			return c.byName[name][i].User && !c.byName[name][j].User
		})
	}
	return c, nil
}

func loadType(s *store.Store, sym *store.Symbol) (*TypeDecl, error) {
	decl := &TypeDecl{
		Name:       sym.Name,
		Kind:       sym.Kind,
		Doc:        sym.Doc,
		Visibility: sym.Visibility,
		Static:     sym.HasModifier("static"),
		Nested:     sym.ParentSymbolID != nil,
	}
	tps, err := s.TypeParams(sym.ID)
	if err != nil {
		return nil, err
	}
	for _, tp := range tps {
		decl.TypeParams = append(decl.TypeParams, tp.Name)
	}
	bases, err := s.BaseTypes(sym.ID)
	if err != nil {
		return nil, err
	}
	for _, b := range bases {
		if t := typesys.Parse(b.TypeExpr); t != nil {
			decl.Bases = append(decl.Bases, t)
		}
	}

	if sym.Kind == store.SymDelegate {
		params, err := loadParams(s, sym.ID)
		if err != nil {
			return nil, err
		}
		decl.Members = append(decl.Members, &MemberDecl{
			Name:       "Invoke",
			Kind:       store.SymMethod,
			Type:       typesys.Parse(sym.TypeExpr),
			Params:     params,
			Visibility: "public",
			Doc:        sym.Doc,
			Owner:      decl,
		})
		return decl, nil
	}

	children, err := s.SymbolChildren(sym.ID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if isTypeKind(child.Kind) {
			continue
		}
		m := &MemberDecl{
			Name:       child.Name,
			Kind:       child.Kind,
			Type:       typesys.Parse(child.TypeExpr),
			Static:     child.HasModifier("static") || child.HasModifier("const"),
			Visibility: child.Visibility,
			Doc:        child.Doc,
			Owner:      decl,
		}
		if child.Kind == store.SymEnumMember {
			m.Type = typesys.Named(decl.Name)
			m.Static = true
		}
		if child.Kind == store.SymMethod {
			tps, err := s.TypeParams(child.ID)
			if err != nil {
				return nil, err
			}
			for _, tp := range tps {
				m.TypeParams = append(m.TypeParams, tp.Name)
			}
			if m.Params, err = loadParams(s, child.ID); err != nil {
				return nil, err
			}
			m.Extension = m.Static && len(m.Params) > 0 && m.Params[0].Modifier == "this"
		}
		decl.Members = append(decl.Members, m)
	}
	return decl, nil
}

func loadParams(s *store.Store, symbolID int64) ([]Param, error) {
	fps, err := s.FunctionParams(symbolID)
	if err != nil {
		return nil, err
	}
	out := make([]Param, 0, len(fps))
	for _, fp := range fps {
		p := Param{
			Name:     fp.Name,
			Type:     typesys.Parse(fp.TypeExpr),
			Modifier: fp.Modifier,
			Optional: fp.HasDefault,
			Default:  fp.DefaultExpr,
		}
		if fp.IsReceiver {
			p.Modifier = "this"
		}
		if p.Type == nil {
			p.Type = typesys.Named(typesys.Object)
		}
		out = append(out, p)
	}
	return out, nil
}

func isTypeKind(kind string) bool {
	for _, k := range store.TypeKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (c *Catalog) add(decl *TypeDecl) {
	c.types = append(c.types, decl)
	c.byName[decl.Name] = append(c.byName[decl.Name], decl)
	for _, m := range decl.Members {
		if m.Kind != store.SymMethod {
			continue
		}
		c.methods[m.Name] = append(c.methods[m.Name], m)
		if m.Extension {
			c.extensions[m.Name] = append(c.extensions[m.Name], m)
		}
	}
}

// Type returns the declaration named name with the given number of type
// parameters. A negative arity, or no exact match, returns the first
// declaration with that name. User declarations shadow the prelude.
func (c *Catalog) Type(name string, arity int) *TypeDecl {
	decls := c.byName[name]
	if len(decls) == 0 {
		return nil
	}
	if arity >= 0 {
		for _, d := range decls {
			if len(d.TypeParams) == arity {
				return d
			}
		}
	}
	return decls[0]
}

// Lookup returns the declaration t refers to.
func (c *Catalog) Lookup(t *typesys.Type) *TypeDecl {
	if t == nil || t.Array > 0 || t.Name == typesys.Anonymous {
		return nil
	}
	return c.Type(t.Name, len(t.Args))
}

// Types returns every declared type in load order.
func (c *Catalog) Types() []*TypeDecl { return c.types }

// MethodsNamed returns every declared method with the given name.
func (c *Catalog) MethodsNamed(name string) []*MemberDecl { return c.methods[name] }

// ExtensionMethods returns the extension methods with the given name, or
// all of them when name is empty.
func (c *Catalog) ExtensionMethods(name string) []*MemberDecl {
	if name != "" {
		return c.extensions[name]
	}
	var out []*MemberDecl
	for _, decls := range c.extensions {
		out = append(out, decls...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// isValueType reports whether t names a struct or enum.
func (c *Catalog) isValueType(t *typesys.Type) bool {
	d := c.Lookup(t)
	return d != nil && (d.Kind == store.SymStruct || d.Kind == store.SymEnum)
}

// memberView strips a nullable marker from a reference type. A nullable
// value type becomes Nullable<T>.
func (c *Catalog) memberView(t *typesys.Type) *typesys.Type {
	if t == nil || !t.Nullable || t.Array > 0 {
		return t
	}
	inner := t.Clone()
	inner.Nullable = false
	if c.isValueType(inner) {
		return typesys.Named(typesys.Nullable, inner)
	}
	return inner
}

func bindings(decl *TypeDecl, t *typesys.Type) map[string]*typesys.Type {
	if decl == nil || len(decl.TypeParams) == 0 || len(t.Args) == 0 {
		return nil
	}
	b := make(map[string]*typesys.Type, len(decl.TypeParams))
	for i, tp := range decl.TypeParams {
		if i < len(t.Args) {
			b[tp] = t.Args[i]
		}
	}
	return b
}

// bases returns the direct base types of t with t's type arguments
// substituted. Every type except Object has Object as an implicit base.
func (c *Catalog) bases(t *typesys.Type) []*typesys.Type {
	if t.Name == typesys.Object && t.Array == 0 {
		return nil
	}
	obj := typesys.Named(typesys.Object)
	if t.Array > 0 {
		return []*typesys.Type{typesys.Named("IList", t.Element()), obj}
	}
	if t.Name == typesys.Anonymous || t.Name == typesys.Tuple {
		return []*typesys.Type{obj}
	}
	decl := c.Lookup(t)
	if decl == nil {
		return []*typesys.Type{obj}
	}
	b := bindings(decl, t)
	out := make([]*typesys.Type, 0, len(decl.Bases)+1)
	for _, base := range decl.Bases {
		out = append(out, typesys.Substitute(base, b))
	}
	return append(out, obj)
}

// walk visits t and its bases breadth first with their distance from t.
// fn returns false to stop.
func (c *Catalog) walk(t *typesys.Type, fn func(bt *typesys.Type, dist int) bool) {
	type item struct {
		t    *typesys.Type
		dist int
	}
	queue := []item{{c.memberView(t), 0}}
	seen := make(map[string]bool)
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		key := it.t.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		if !fn(it.t, it.dist) {
			return
		}
		for _, b := range c.bases(it.t) {
			queue = append(queue, item{b, it.dist + 1})
		}
	}
}

// AsBase finds the nearest type in t's hierarchy named name and returns it
// with t's type arguments flowed through, along with its distance from t.
// A negative arity matches any number of type arguments.
func (c *Catalog) AsBase(t *typesys.Type, name string, arity int) (*typesys.Type, int) {
	if t == nil {
		return nil, -1
	}
	var found *typesys.Type
	dist := -1
	c.walk(t, func(bt *typesys.Type, d int) bool {
		if bt.Name == name && bt.Array == 0 && (arity < 0 || len(bt.Args) == arity) {
			found, dist = bt, d
			return false
		}
		return true
	})
	return found, dist
}

// Members returns the members visible on a value of type t: its own members
// and every inherited one that is not hidden by a more derived declaration.
// Static members are included; callers filter by IsStatic.
func (c *Catalog) Members(t *typesys.Type) []*Symbol {
	if t == nil {
		return nil
	}
	var out []*Symbol
	seen := make(map[string]bool)
	add := func(s *Symbol) {
		key := memberKey(s)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	view := c.memberView(t)
	switch {
	case view.Array > 0:
		add(&Symbol{Kind: KindProperty, Name: "Length", Type: typesys.Named(typesys.Int32), Container: view, Visibility: "public"})
	case view.Name == typesys.Anonymous:
		for _, m := range view.Members {
			add(&Symbol{Kind: KindProperty, Name: m.Name, Type: m.Type, Container: view, Visibility: "public"})
		}
	case view.Name == typesys.Tuple:
		for i, a := range view.Args {
			add(&Symbol{Kind: KindField, Name: fmt.Sprintf("Item%d", i+1), Type: a, Container: view, Visibility: "public"})
		}
	}

	c.walk(view, func(bt *typesys.Type, _ int) bool {
		decl := c.Lookup(bt)
		if decl == nil {
			return true
		}
		b := bindings(decl, bt)
		for _, m := range decl.Members {
			add(bindMember(m, bt, b))
		}
		return true
	})
	return out
}

// StaticMembers returns the static members declared directly on t.
func (c *Catalog) StaticMembers(t *typesys.Type) []*Symbol {
	decl := c.Lookup(t)
	if decl == nil {
		return nil
	}
	b := bindings(decl, t)
	var out []*Symbol
	for _, m := range decl.Members {
		if m.Static {
			out = append(out, bindMember(m, t, b))
		}
	}
	return out
}

func memberKey(s *Symbol) string {
	if s.Kind != KindMethod {
		return s.Name
	}
	key := s.Name + "("
	for _, p := range s.Params {
		key += p.Type.String() + ","
	}
	return key + ")"
}

// bindMember instantiates m as a member of owner.
func bindMember(m *MemberDecl, owner *typesys.Type, b map[string]*typesys.Type) *Symbol {
	s := &Symbol{
		Name:        m.Name,
		Type:        typesys.Substitute(m.Type, b),
		Container:   owner,
		IsStatic:    m.Static,
		IsExtension: m.Extension,
		Visibility:  m.Visibility,
		Doc:         m.Doc,
	}
	switch m.Kind {
	case store.SymProperty:
		s.Kind = KindProperty
	case store.SymField, store.SymEnumMember:
		s.Kind = KindField
	case store.SymMethod:
		s.Kind = KindMethod
		s.TypeParams = m.TypeParams
		s.Params = make([]Param, len(m.Params))
		for i, p := range m.Params {
			p.Type = typesys.Substitute(p.Type, b)
			s.Params[i] = p
		}
	}
	return s
}

// MethodSymbol returns m in its declared, uninstantiated form.
func (c *Catalog) MethodSymbol(m *MemberDecl) *Symbol {
	owner := typesys.Named(m.Owner.Name)
	for _, tp := range m.Owner.TypeParams {
		owner.Args = append(owner.Args, typesys.Named(tp))
	}
	return bindMember(m, owner, nil)
}

// TypeSymbol returns the symbol for a use of type t.
func (c *Catalog) TypeSymbol(t *typesys.Type) *Symbol {
	if t == nil {
		return nil
	}
	s := &Symbol{Kind: KindType, Name: t.Name, Type: t, Visibility: "public"}
	if decl := c.Lookup(t); decl != nil {
		s.DeclKind = decl.Kind
		s.Doc = decl.Doc
		s.TypeParams = decl.TypeParams
		s.IsStatic = decl.Static
		s.Visibility = decl.Visibility
	}
	return s
}

// ReduceExtension binds extension method m to a receiver of type recv. It
// reports the receiver's distance from the extended type, so that an
// IQueryable overload is preferred over an IEnumerable one.
func (c *Catalog) ReduceExtension(m *MemberDecl, recv *typesys.Type) (*Symbol, map[string]*typesys.Type, int, bool) {
	if !m.Extension || recv == nil || len(m.Params) == 0 {
		return nil, nil, 0, false
	}
	params := typeParamSet(m.TypeParams)
	first := m.Params[0].Type
	b := make(map[string]*typesys.Type)
	dist := 0
	if params[first.Name] && len(first.Args) == 0 && first.Array == 0 {
		if !typesys.Unify(first, c.memberView(recv), params, b) {
			return nil, nil, 0, false
		}
		dist = 100
	} else {
		var base *typesys.Type
		if first.Array > 0 {
			if recv.Array != first.Array {
				return nil, nil, 0, false
			}
			base = recv
		} else {
			base, dist = c.AsBase(recv, first.Name, len(first.Args))
		}
		if base == nil || !typesys.Unify(first, base, params, b) {
			return nil, nil, 0, false
		}
	}
	return instantiate(c.MethodSymbol(m), b), b, dist, true
}

// instantiate substitutes inferred method type arguments into s.
func instantiate(s *Symbol, b map[string]*typesys.Type) *Symbol {
	out := *s
	out.Type = typesys.Substitute(s.Type, b)
	out.Params = make([]Param, len(s.Params))
	for i, p := range s.Params {
		p.Type = typesys.Substitute(p.Type, b)
		out.Params[i] = p
	}
	if len(s.TypeParams) > 0 {
		out.TypeArgs = make([]*typesys.Type, len(s.TypeParams))
		for i, tp := range s.TypeParams {
			out.TypeArgs[i] = b[tp]
		}
	}
	return &out
}

func typeParamSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// accessible reports whether a member with the given visibility can be used
// from a query.
func accessible(visibility string) bool {
	switch visibility {
	case "private", "protected", "private protected":
		return false
	}
	return true
}
