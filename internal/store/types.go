package store

import "time"

// Document kinds.
const (
	KindPrelude = "prelude"
	KindModel   = "model"
	KindContext = "context"
	KindSnippet = "snippet"
)

// Symbol kinds written by extraction.
const (
	SymClass      = "class"
	SymInterface  = "interface"
	SymStruct     = "struct"
	SymRecord     = "record"
	SymEnum       = "enum"
	SymDelegate   = "delegate"
	SymProperty   = "property"
	SymField      = "field"
	SymMethod     = "method"
	SymEnumMember = "enum_member"
)

// TypeKinds lists the symbol kinds that declare a type.
var TypeKinds = []string{SymClass, SymInterface, SymStruct, SymRecord, SymEnum, SymDelegate}

type Document struct {
	ID        int64
	Name      string
	Kind      string
	Content   string
	Hash      string
	Version   int
	UpdatedAt time.Time
}

type Symbol struct {
	ID             int64
	DocumentID     *int64
	Name           string
	Kind           string
	Visibility     string
	Modifiers      []string
	TypeExpr       string // member type, or return type for methods and delegates
	Doc            string // raw XML documentation comment, "///" stripped
	StartByte      int
	EndByte        int
	StartLine      int
	StartCol       int
	ParentSymbolID *int64
}

// HasModifier reports whether mod appears in the symbol's modifier list.
func (s *Symbol) HasModifier(mod string) bool {
	for _, m := range s.Modifiers {
		if m == mod {
			return true
		}
	}
	return false
}

type TypeParam struct {
	ID       int64
	SymbolID int64
	Name     string
	Ordinal  int
	Variance string
}

type FunctionParam struct {
	ID          int64
	SymbolID    int64
	Name        string
	Ordinal     int
	TypeExpr    string
	Modifier    string
	IsReceiver  bool // the "this" parameter of an extension method
	HasDefault  bool
	DefaultExpr string
}

type BaseType struct {
	ID       int64
	SymbolID int64
	TypeExpr string
	Ordinal  int
}

type ExtensionBinding struct {
	ID               int64
	MemberSymbolID   int64
	ExtendedTypeExpr string
	Kind             string
}
