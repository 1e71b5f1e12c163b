// Package typesys models C# type expressions: parsing them from source text,
// generic substitution and inference, and the delegate and sequence shapes
// the query operators are written against.
package typesys

import (
	"strings"
)

// Type is a parsed C# type expression. Names are simple (namespace
// qualifiers are dropped) and keyword aliases are normalized to their CLR
// names, so "string" and "System.String" both parse to String.
type Type struct {
	Name     string
	Args     []*Type
	Array    int  // number of array suffixes, outermost last
	Nullable bool // trailing "?"

	// Members is set for anonymous types created by "new { ... }".
	Members []Member
}

// Member is a property of an anonymous type.
type Member struct {
	Name string
	Type *Type
}

// Well-known type names.
const (
	Void     = "Void"
	Object   = "Object"
	String   = "String"
	Boolean  = "Boolean"
	Int32    = "Int32"
	Int64    = "Int64"
	Double   = "Double"
	Decimal  = "Decimal"
	Single   = "Single"
	Char     = "Char"
	Task     = "Task"
	Nullable = "Nullable"

	// Anonymous is the name given to anonymous object types.
	Anonymous = "<anonymous>"
	// Tuple is the name given to tuple types such as (int, string).
	Tuple = "ValueTuple"
)

var keywordToName = map[string]string{
	"string":  String,
	"int":     Int32,
	"long":    Int64,
	"short":   "Int16",
	"byte":    "Byte",
	"sbyte":   "SByte",
	"uint":    "UInt32",
	"ulong":   "UInt64",
	"ushort":  "UInt16",
	"bool":    Boolean,
	"decimal": Decimal,
	"double":  Double,
	"float":   Single,
	"char":    Char,
	"object":  Object,
	"dynamic": Object,
	"void":    Void,
}

var nameToKeyword = func() map[string]string {
	m := make(map[string]string, len(keywordToName))
	for k, v := range keywordToName {
		if k != "dynamic" {
			m[v] = k
		}
	}
	return m
}()

// Keyword returns the C# keyword for a CLR type name, if there is one.
func Keyword(name string) (string, bool) {
	kw, ok := nameToKeyword[name]
	return kw, ok
}

// CanonicalName maps a keyword alias to its CLR name and leaves other names
// untouched.
func CanonicalName(name string) string {
	if n, ok := keywordToName[name]; ok {
		return n
	}
	return name
}

// Named builds a type with the given name and arguments.
func Named(name string, args ...*Type) *Type {
	return &Type{Name: CanonicalName(name), Args: args}
}

// String renders t the way C# source would spell it, with keyword aliases.
func (t *Type) String() string {
	if t == nil {
		return "?"
	}
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *Type) write(b *strings.Builder) {
	switch {
	case t.Name == Anonymous:
		b.WriteString("new { ")
		for i, m := range t.Members {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(m.Type.String())
			b.WriteByte(' ')
			b.WriteString(m.Name)
		}
		b.WriteString(" }")
	case t.Name == Tuple && len(t.Args) > 0:
		b.WriteByte('(')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			a.write(b)
		}
		b.WriteByte(')')
	default:
		if kw, ok := nameToKeyword[t.Name]; ok && len(t.Args) == 0 {
			b.WriteString(kw)
		} else {
			b.WriteString(t.Name)
		}
		if len(t.Args) > 0 {
			b.WriteByte('<')
			for i, a := range t.Args {
				if i > 0 {
					b.WriteString(", ")
				}
				a.write(b)
			}
			b.WriteByte('>')
		}
	}
	if t.Nullable {
		b.WriteByte('?')
	}
	for i := 0; i < t.Array; i++ {
		b.WriteString("[]")
	}
}

// Clone returns a deep copy of t.
func (t *Type) Clone() *Type {
	if t == nil {
		return nil
	}
	c := &Type{Name: t.Name, Array: t.Array, Nullable: t.Nullable}
	if len(t.Args) > 0 {
		c.Args = make([]*Type, len(t.Args))
		for i, a := range t.Args {
			c.Args[i] = a.Clone()
		}
	}
	if len(t.Members) > 0 {
		c.Members = make([]Member, len(t.Members))
		for i, m := range t.Members {
			c.Members[i] = Member{Name: m.Name, Type: m.Type.Clone()}
		}
	}
	return c
}

// Element returns the element type of an array type.
func (t *Type) Element() *Type {
	if t == nil || t.Array == 0 {
		return nil
	}
	e := t.Clone()
	e.Array--
	return e
}

// IsVoid reports whether t is void.
func (t *Type) IsVoid() bool { return t != nil && t.Name == Void && t.Array == 0 }

// Equal reports structural equality.
func Equal(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Name != b.Name || a.Array != b.Array || a.Nullable != b.Nullable || len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if !Equal(a.Args[i], b.Args[i]) {
			return false
		}
	}
	if len(a.Members) != len(b.Members) {
		return false
	}
	for i := range a.Members {
		if a.Members[i].Name != b.Members[i].Name || !Equal(a.Members[i].Type, b.Members[i].Type) {
			return false
		}
	}
	return true
}

// Substitute replaces type parameters in t according to bindings. Unbound
// parameters are left as they are.
func Substitute(t *Type, bindings map[string]*Type) *Type {
	if t == nil || len(bindings) == 0 {
		return t
	}
	if len(t.Args) == 0 && len(t.Members) == 0 {
		if bound, ok := bindings[t.Name]; ok && bound != nil {
			out := bound.Clone()
			out.Array += t.Array
			out.Nullable = out.Nullable || t.Nullable
			return out
		}
		return t
	}
	out := &Type{Name: t.Name, Array: t.Array, Nullable: t.Nullable}
	for _, a := range t.Args {
		out.Args = append(out.Args, Substitute(a, bindings))
	}
	for _, m := range t.Members {
		out.Members = append(out.Members, Member{Name: m.Name, Type: Substitute(m.Type, bindings)})
	}
	return out
}

// Unify infers bindings for the type parameters named in params by matching
// the formal type against an actual one. It is purely structural: callers
// convert actual to the formal's generic family first. Existing bindings
// win over new ones.
func Unify(formal, actual *Type, params map[string]bool, bindings map[string]*Type) bool {
	if formal == nil || actual == nil {
		return false
	}
	if params[formal.Name] && len(formal.Args) == 0 {
		a := actual
		if formal.Array > 0 {
			if actual.Array < formal.Array {
				return false
			}
			a = actual.Clone()
			a.Array -= formal.Array
		}
		if prev, ok := bindings[formal.Name]; ok && prev != nil {
			return Equal(prev, a) || prev.Name == Object
		}
		bindings[formal.Name] = a
		return true
	}
	if formal.Name != actual.Name || formal.Array != actual.Array || len(formal.Args) != len(actual.Args) {
		return false
	}
	ok := true
	for i := range formal.Args {
		if !Unify(formal.Args[i], actual.Args[i], params, bindings) {
			ok = false
		}
	}
	return ok
}

// Mentions reports whether t refers to any of the named type parameters.
func Mentions(t *Type, params map[string]bool) bool {
	if t == nil {
		return false
	}
	if params[t.Name] && len(t.Args) == 0 {
		return true
	}
	for _, a := range t.Args {
		if Mentions(a, params) {
			return true
		}
	}
	for _, m := range t.Members {
		if Mentions(m.Type, params) {
			return true
		}
	}
	return false
}
