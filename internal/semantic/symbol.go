package semantic

import (
	"regexp"
	"strings"

	"github.com/jward/linqlens/internal/typesys"
)

// SymbolKind classifies a bound symbol.
type SymbolKind int

const (
	KindUnknown SymbolKind = iota
	KindType
	KindProperty
	KindField
	KindMethod
	KindParameter
	KindLocal
	KindRangeVariable
	KindAnonymousFunction
	KindNamespace
)

var kindNames = [...]string{
	KindUnknown:           "unknown",
	KindType:              "type",
	KindProperty:          "property",
	KindField:             "field",
	KindMethod:            "method",
	KindParameter:         "parameter",
	KindLocal:             "local",
	KindRangeVariable:     "range variable",
	KindAnonymousFunction: "anonymous function",
	KindNamespace:         "namespace",
}

func (k SymbolKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Param is a method parameter after generic substitution.
type Param struct {
	Name     string
	Type     *typesys.Type
	Modifier string // "this", "params", "ref", "out", "in"
	Optional bool
	Default  string
}

// IsParams reports whether the parameter collects trailing arguments.
func (p Param) IsParams() bool { return p.Modifier == "params" }

// Symbol is a declaration as seen from a particular use site: generic
// parameters of its container are substituted, and for methods the type
// arguments inferred at a call are recorded.
type Symbol struct {
	Kind SymbolKind
	Name string

	// Type is the value type for properties, fields, locals, parameters and
	// range variables, the return type for methods, and the type itself for
	// types.
	Type *typesys.Type

	// Container is the declaring type, nil for locals and parameters.
	Container *typesys.Type

	Params     []Param
	TypeParams []string
	TypeArgs   []*typesys.Type // parallel to TypeParams; nil entries are not inferred

	IsStatic    bool
	IsExtension bool
	Visibility  string
	Doc         string // raw XML documentation
	DeclKind    string // declaration keyword for types: class, interface, struct...
}

// Anonymous reports whether the symbol is a lambda or carries the
// placeholder name the compiler gives one.
func (s *Symbol) Anonymous() bool {
	return s == nil || s.Kind == KindAnonymousFunction || s.Name == "lambda"
}

// Signature renders the one-line display form.
func (s *Symbol) Signature() string {
	if s == nil {
		return ""
	}
	switch s.Kind {
	case KindMethod:
		return s.methodSignature()
	case KindProperty:
		return s.Type.String() + " " + s.Name
	case KindField:
		if s.Container != nil {
			if s.Container.Name == s.Type.Name && s.IsStatic {
				return s.Container.String() + "." + s.Name
			}
			return s.Type.String() + " " + s.Container.String() + "." + s.Name
		}
		return s.Type.String() + " " + s.Name
	case KindParameter, KindLocal, KindRangeVariable:
		if s.Type == nil {
			return s.Name
		}
		return s.Type.String() + " " + s.Name
	case KindType:
		if s.Type == nil {
			return s.Name
		}
		return s.Type.String()
	case KindNamespace:
		return "namespace " + s.Name
	case KindAnonymousFunction:
		return "lambda"
	}
	return s.Name
}

func (s *Symbol) methodSignature() string {
	var b strings.Builder
	if s.Type != nil {
		b.WriteString(s.Type.String())
		b.WriteByte(' ')
	}
	if s.Container != nil {
		b.WriteString(s.Container.String())
		b.WriteByte('.')
	}
	b.WriteString(s.Name)
	if len(s.TypeParams) > 0 {
		b.WriteByte('<')
		for i, tp := range s.TypeParams {
			if i > 0 {
				b.WriteString(", ")
			}
			if i < len(s.TypeArgs) && s.TypeArgs[i] != nil {
				b.WriteString(s.TypeArgs[i].String())
			} else {
				b.WriteString(tp)
			}
		}
		b.WriteByte('>')
	}
	b.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if p.Modifier != "" {
			b.WriteString(p.Modifier)
			b.WriteByte(' ')
		}
		b.WriteString(p.Type.String())
		if p.Name != "" {
			b.WriteByte(' ')
			b.WriteString(p.Name)
		}
		if p.Optional && p.Default != "" {
			b.WriteString(" = ")
			b.WriteString(p.Default)
		}
	}
	b.WriteByte(')')
	return b.String()
}

var (
	summaryRE = regexp.MustCompile(`(?s)<summary>(.*?)</summary>`)
	crefRE    = regexp.MustCompile(`<(?:see|seealso)\s+(?:cref|langword)="(?:[A-Z]:)?([^"]+)"\s*/>`)
	tagRE     = regexp.MustCompile(`<[^>]*>`)
)

// Summary extracts the plain text of the <summary> element of an XML
// documentation comment. Documentation without a summary element is
// returned with its tags stripped.
func Summary(doc string) string {
	if doc == "" {
		return ""
	}
	text := doc
	if m := summaryRE.FindStringSubmatch(doc); m != nil {
		text = m[1]
	}
	text = crefRE.ReplaceAllString(text, "$1")
	text = tagRE.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}
