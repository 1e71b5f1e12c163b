package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIRange is a half-open byte range in the snippet.
type CLIRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CLICompletion is a JSON-friendly completion item.
type CLICompletion struct {
	Label            string    `json:"label"`
	InsertText       string    `json:"insert_text"`
	FilterText       string    `json:"filter_text"`
	Kind             string    `json:"kind"`
	Detail           string    `json:"detail,omitempty"`
	Documentation    string    `json:"documentation,omitempty"`
	ReplacementRange *CLIRange `json:"replacement_range,omitempty"`
}

// CLIHover is a JSON-friendly hover result.
type CLIHover struct {
	Markdown string `json:"markdown"`
	Start    int    `json:"start"`
	Length   int    `json:"length"`
	Resolver string `json:"resolver"`
}

// CLISymbol is a JSON-friendly declaration.
type CLISymbol struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Visibility string   `json:"visibility"`
	Modifiers  []string `json:"modifiers,omitempty"`
	Type       string   `json:"type,omitempty"`
	Parent     string   `json:"parent,omitempty"`
	Document   string   `json:"document,omitempty"`
	StartLine  int      `json:"start_line"`
	StartCol   int      `json:"start_col"`
}

// CLIDocument is a JSON-friendly workspace document.
type CLIDocument struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Version     int    `json:"version"`
	SymbolCount int    `json:"symbol_count"`
}

// CLISummary is a JSON-friendly workspace summary.
type CLISummary struct {
	Documents  map[string]int `json:"documents"`
	Symbols    map[string]int `json:"symbols"`
	Generation uint64         `json:"generation"`
}

// CLISymbolDetail is a JSON-friendly symbol detail.
type CLISymbolDetail struct {
	Symbol     CLISymbol          `json:"symbol"`
	Parameters []CLIFunctionParam `json:"parameters"`
	TypeParams []CLITypeParam     `json:"type_params"`
	BaseTypes  []string           `json:"base_types"`
	Members    []CLISymbol        `json:"members"`
}

// CLIFunctionParam is a JSON-friendly method parameter.
type CLIFunctionParam struct {
	Name       string `json:"name"`
	Ordinal    int    `json:"ordinal"`
	TypeExpr   string `json:"type_expr,omitempty"`
	Modifier   string `json:"modifier,omitempty"`
	IsReceiver bool   `json:"is_receiver,omitempty"`
	HasDefault bool   `json:"has_default,omitempty"`
}

// CLITypeParam is a JSON-friendly type parameter.
type CLITypeParam struct {
	Name     string `json:"name"`
	Ordinal  int    `json:"ordinal"`
	Variance string `json:"variance,omitempty"`
}
