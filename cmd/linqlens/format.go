package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// formatCompletionsText formats completion items as aligned columns.
func formatCompletionsText(w io.Writer, items []CLICompletion) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tKIND\tINSERT\tRANGE")
	for _, it := range items {
		rng := ""
		if it.ReplacementRange != nil {
			rng = fmt.Sprintf("%d-%d", it.ReplacementRange.Start, it.ReplacementRange.End)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.Label, it.Kind, it.InsertText, rng)
	}
	tw.Flush()
}

// formatHoverText prints the span followed by the markdown.
func formatHoverText(w io.Writer, h CLIHover) {
	fmt.Fprintf(w, "[%d+%d] (%s)\n", h.Start, h.Length, h.Resolver)
	fmt.Fprintln(w, h.Markdown)
}

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tTYPE\tPARENT\tDOCUMENT\tLINE")
	for _, s := range syms {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			s.ID, s.Name, s.Kind, s.Type, s.Parent, s.Document, s.StartLine)
	}
	tw.Flush()
}

// formatDocumentsText formats CLIDocument results as aligned columns.
func formatDocumentsText(w io.Writer, docs []CLIDocument) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tVERSION\tSYMBOLS")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", d.Name, d.Kind, d.Version, d.SymbolCount)
	}
	tw.Flush()
}

// formatSummaryText formats CLISummary as readable text.
func formatSummaryText(w io.Writer, summary CLISummary) {
	fmt.Fprintln(w, "Workspace Summary")
	fmt.Fprintln(w, "=================")
	fmt.Fprintf(w, "Generation: %d\n", summary.Generation)
	fmt.Fprintln(w)
	writeCounts(w, "Documents:", summary.Documents)
	fmt.Fprintln(w)
	writeCounts(w, "Symbols:", summary.Symbols)
}

func writeCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintln(w, title)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, counts[k])
	}
}

// formatSymbolDetailText formats CLISymbolDetail as readable text.
func formatSymbolDetailText(w io.Writer, d CLISymbolDetail) {
	fmt.Fprintf(w, "%s %s (#%d)\n", d.Symbol.Kind, d.Symbol.Name, d.Symbol.ID)
	if d.Symbol.Type != "" {
		fmt.Fprintf(w, "Type: %s\n", d.Symbol.Type)
	}
	if len(d.TypeParams) > 0 {
		names := make([]string, len(d.TypeParams))
		for i, tp := range d.TypeParams {
			names[i] = tp.Name
		}
		fmt.Fprintf(w, "Type parameters: %s\n", strings.Join(names, ", "))
	}
	if len(d.BaseTypes) > 0 {
		fmt.Fprintf(w, "Bases: %s\n", strings.Join(d.BaseTypes, ", "))
	}
	if len(d.Parameters) > 0 {
		fmt.Fprintln(w, "Parameters:")
		for _, p := range d.Parameters {
			fmt.Fprintf(w, "  %d: %s %s\n", p.Ordinal, p.TypeExpr, p.Name)
		}
	}
	if len(d.Members) > 0 {
		fmt.Fprintln(w)
		formatSymbolsText(w, d.Members)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLICompletion:
		formatCompletionsText(w, v)
	case *CLIHover:
		if v == nil {
			fmt.Fprintln(w, "no hover")
		} else {
			formatHoverText(w, *v)
		}
	case []CLISymbol:
		formatSymbolsText(w, v)
	case []CLIDocument:
		formatDocumentsText(w, v)
	case CLISummary:
		formatSummaryText(w, v)
	case *CLISymbolDetail:
		if v == nil {
			fmt.Fprintln(w, "no symbol")
		} else {
			formatSymbolDetailText(w, *v)
		}
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLICompletion:
		return len(r)
	case []CLISymbol:
		return len(r)
	case []CLIDocument:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
