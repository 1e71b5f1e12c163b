// Package extract walks a parsed C# document and produces the declarations
// the symbol store holds: types, their members, parameters, base types, XML
// documentation and extension-method bindings.
package extract

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/linqlens/internal/store"
	"github.com/jward/linqlens/internal/syntax"
)

// Decl is one extracted declaration with everything that hangs off it.
type Decl struct {
	Symbol     store.Symbol
	TypeParams []store.TypeParam
	Params     []store.FunctionParam
	Bases      []string
	Extends    string // receiver type of an extension method
	Members    []*Decl
}

var typeDeclKinds = map[string]string{
	"class_declaration":         store.SymClass,
	"interface_declaration":     store.SymInterface,
	"struct_declaration":        store.SymStruct,
	"record_declaration":        store.SymRecord,
	"record_struct_declaration": store.SymRecord,
	"enum_declaration":          store.SymEnum,
	"delegate_declaration":      store.SymDelegate,
}

var accessModifiers = map[string]bool{
	"public": true, "internal": true, "protected": true, "private": true,
}

// File extracts every type declaration in tree, including nested types.
func File(tree *syntax.Tree) []*Decl {
	x := &extractor{tree: tree}
	return x.container(tree.Root())
}

type extractor struct {
	tree *syntax.Tree
}

// container extracts declarations from a compilation unit, namespace body
// or file-scoped namespace.
func (x *extractor) container(n *sitter.Node) []*Decl {
	var out []*Decl
	for _, c := range syntax.NamedChildren(n) {
		switch c.Type() {
		case "namespace_declaration":
			out = append(out, x.container(syntax.Field(c, "body", "declaration_list"))...)
		case "file_scoped_namespace_declaration", "declaration_list":
			out = append(out, x.container(c)...)
		default:
			if kind, ok := typeDeclKinds[c.Type()]; ok {
				if d := x.typeDecl(c, kind, false); d != nil {
					out = append(out, d)
				}
			}
		}
	}
	return out
}

func (x *extractor) typeDecl(n *sitter.Node, kind string, nested bool) *Decl {
	name := syntax.Field(n, "name", "identifier")
	if name == nil {
		return nil
	}
	d := &Decl{Symbol: x.symbol(n, x.tree.Text(name), kind)}
	if d.Symbol.Visibility == "" {
		d.Symbol.Visibility = "internal"
		if nested {
			d.Symbol.Visibility = "private"
		}
	}
	d.TypeParams = x.typeParams(n)

	if kind == store.SymDelegate {
		d.Symbol.TypeExpr = x.tree.Text(syntax.Field(n, "returns", "type"))
		if d.Symbol.TypeExpr == "" {
			d.Symbol.TypeExpr = x.tree.Text(syntax.Field(n, "type"))
		}
		d.Params = x.params(syntax.Field(n, "parameters", "parameter_list"))
		return d
	}

	if bl := syntax.Field(n, "bases", "base_list"); bl != nil {
		for _, b := range syntax.NamedChildren(bl) {
			if b.Type() == "argument_list" || b.Type() == "comment" {
				continue
			}
			text := x.tree.Text(b)
			// A primary-constructor base carries its arguments.
			if j := strings.IndexByte(text, '('); j > 0 {
				text = text[:j]
			}
			d.Bases = append(d.Bases, strings.TrimSpace(text))
		}
	}

	// Positional record parameters become properties.
	if kind == store.SymRecord {
		if pl := syntax.ChildOfType(n, "parameter_list"); pl != nil {
			for _, p := range x.params(pl) {
				prop := &Decl{Symbol: store.Symbol{
					Name:       p.Name,
					Kind:       store.SymProperty,
					Visibility: "public",
					TypeExpr:   p.TypeExpr,
					StartByte:  d.Symbol.StartByte,
					EndByte:    d.Symbol.EndByte,
					StartLine:  d.Symbol.StartLine,
					StartCol:   d.Symbol.StartCol,
				}}
				d.Members = append(d.Members, prop)
			}
		}
	}

	body := syntax.Field(n, "body", "declaration_list", "enum_member_declaration_list")
	if body == nil {
		return d
	}
	defaultVis := "private"
	if kind == store.SymInterface || kind == store.SymEnum {
		defaultVis = "public"
	}
	for _, c := range syntax.NamedChildren(body) {
		if m := x.member(c, defaultVis); m != nil {
			d.Members = append(d.Members, m)
		}
	}
	return d
}

func (x *extractor) member(n *sitter.Node, defaultVis string) *Decl {
	if kind, ok := typeDeclKinds[n.Type()]; ok {
		return x.typeDecl(n, kind, true)
	}
	var d *Decl
	switch n.Type() {
	case "property_declaration":
		name := syntax.Field(n, "name", "identifier")
		if name == nil {
			return nil
		}
		d = &Decl{Symbol: x.symbol(n, x.tree.Text(name), store.SymProperty)}
		d.Symbol.TypeExpr = x.tree.Text(syntax.Field(n, "type"))
	case "field_declaration":
		vd := syntax.ChildOfType(n, "variable_declaration")
		if vd == nil {
			return nil
		}
		decl := syntax.ChildOfType(vd, "variable_declarator")
		if decl == nil {
			return nil
		}
		name := syntax.Field(decl, "name", "identifier")
		if name == nil {
			return nil
		}
		d = &Decl{Symbol: x.symbol(n, x.tree.Text(name), store.SymField)}
		d.Symbol.TypeExpr = x.tree.Text(syntax.Field(vd, "type"))
	case "method_declaration":
		name := syntax.Field(n, "name", "identifier")
		if name == nil {
			return nil
		}
		d = &Decl{Symbol: x.symbol(n, x.tree.Text(name), store.SymMethod)}
		ret := syntax.Field(n, "returns")
		if ret == nil {
			ret = syntax.Field(n, "type")
		}
		d.Symbol.TypeExpr = x.tree.Text(ret)
		d.TypeParams = x.typeParams(n)
		d.Params = x.params(syntax.Field(n, "parameters", "parameter_list"))
		if len(d.Params) > 0 && d.Params[0].IsReceiver {
			d.Extends = d.Params[0].TypeExpr
		}
	case "enum_member_declaration":
		name := syntax.Field(n, "name", "identifier")
		if name == nil {
			return nil
		}
		d = &Decl{Symbol: x.symbol(n, x.tree.Text(name), store.SymEnumMember)}
		d.Symbol.Modifiers = append(d.Symbol.Modifiers, "static")
	default:
		return nil
	}
	if d.Symbol.Visibility == "" {
		d.Symbol.Visibility = defaultVis
	}
	return d
}

// symbol fills the fields every declaration shares.
func (x *extractor) symbol(n *sitter.Node, name, kind string) store.Symbol {
	sym := store.Symbol{
		Name:      name,
		Kind:      kind,
		Doc:       x.docComment(n),
		StartByte: int(n.StartByte()),
		EndByte:   int(n.EndByte()),
	}
	p := n.StartPoint()
	sym.StartLine, sym.StartCol = int(p.Row), int(p.Column)
	for _, m := range syntax.ChildrenOfType(n, "modifier") {
		text := x.tree.Text(m)
		if accessModifiers[text] {
			if sym.Visibility == "" {
				sym.Visibility = text
			} else {
				sym.Visibility += " " + text
			}
			continue
		}
		sym.Modifiers = append(sym.Modifiers, text)
	}
	return sym
}

func (x *extractor) typeParams(n *sitter.Node) []store.TypeParam {
	list := syntax.Field(n, "type_parameters", "type_parameter_list")
	if list == nil {
		return nil
	}
	var out []store.TypeParam
	for _, tp := range syntax.ChildrenOfType(list, "type_parameter") {
		name := syntax.Field(tp, "name", "identifier")
		text := x.tree.Text(name)
		if name == nil {
			text = x.tree.Text(tp)
		}
		variance := ""
		if fields := strings.Fields(x.tree.Text(tp)); len(fields) > 1 && (fields[0] == "in" || fields[0] == "out") {
			variance = fields[0]
			if name == nil {
				text = fields[len(fields)-1]
			}
		}
		out = append(out, store.TypeParam{Name: text, Ordinal: len(out), Variance: variance})
	}
	return out
}

func (x *extractor) params(list *sitter.Node) []store.FunctionParam {
	if list == nil {
		return nil
	}
	var out []store.FunctionParam
	for _, p := range syntax.ChildrenOfType(list, "parameter") {
		typ := syntax.Field(p, "type")
		name := syntax.Field(p, "name", "identifier")
		fp := store.FunctionParam{
			Name:     x.tree.Text(name),
			Ordinal:  len(out),
			TypeExpr: x.tree.Text(typ),
		}
		if typ != nil {
			lead := strings.TrimSpace(string(x.tree.Source()[p.StartByte():typ.StartByte()]))
			// Attributes come before modifiers.
			if i := strings.LastIndexByte(lead, ']'); i >= 0 {
				lead = strings.TrimSpace(lead[i+1:])
			}
			fp.Modifier = lead
			fp.IsReceiver = lead == "this" || strings.HasPrefix(lead, "this ")
		}
		if def := syntax.ValueAfter(p, "="); def != nil {
			fp.HasDefault = true
			fp.DefaultExpr = x.tree.Text(def)
		}
		out = append(out, fp)
	}
	return out
}

// docComment collects the "///" lines directly above n.
func (x *extractor) docComment(n *sitter.Node) string {
	var lines []string
	for s := n.PrevSibling(); s != nil && s.Type() == "comment"; s = s.PrevSibling() {
		text := strings.TrimSpace(x.tree.Text(s))
		if !strings.HasPrefix(text, "///") {
			break
		}
		lines = append(lines, strings.TrimPrefix(strings.TrimPrefix(text, "///"), " "))
	}
	if len(lines) == 0 {
		return ""
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}

// Write stores decls for the given document through ds, parents before
// members.
func Write(ds store.DataStore, documentID int64, decls []*Decl) error {
	for _, d := range decls {
		if err := write(ds, documentID, nil, d); err != nil {
			return err
		}
	}
	return nil
}

func write(ds store.DataStore, documentID int64, parent *int64, d *Decl) error {
	sym := d.Symbol
	sym.DocumentID = &documentID
	sym.ParentSymbolID = parent
	id, err := ds.InsertSymbol(&sym)
	if err != nil {
		return fmt.Errorf("insert %s %q: %w", sym.Kind, sym.Name, err)
	}
	for _, tp := range d.TypeParams {
		tp.SymbolID = id
		if _, err := ds.InsertTypeParam(&tp); err != nil {
			return fmt.Errorf("insert type param %q of %q: %w", tp.Name, sym.Name, err)
		}
	}
	for _, fp := range d.Params {
		fp.SymbolID = id
		if _, err := ds.InsertFunctionParam(&fp); err != nil {
			return fmt.Errorf("insert param %q of %q: %w", fp.Name, sym.Name, err)
		}
	}
	for i, b := range d.Bases {
		if _, err := ds.InsertBaseType(&store.BaseType{SymbolID: id, TypeExpr: b, Ordinal: i}); err != nil {
			return fmt.Errorf("insert base %q of %q: %w", b, sym.Name, err)
		}
	}
	if d.Extends != "" {
		if _, err := ds.InsertExtensionBinding(&store.ExtensionBinding{MemberSymbolID: id, ExtendedTypeExpr: d.Extends}); err != nil {
			return fmt.Errorf("insert extension binding of %q: %w", sym.Name, err)
		}
	}
	for _, m := range d.Members {
		if err := write(ds, documentID, &id, m); err != nil {
			return err
		}
	}
	return nil
}
