package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/linqlens"
)

var (
	flagLimit        int
	flagOffset       int
	flagSort         string
	flagOrder        string
	flagKind         string
	flagDocumentKind string
	flagVisibility   string
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List workspace declarations with optional filters",
	RunE:  runSymbols,
}

var searchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Search declarations by glob pattern",
	Long:  "Search for declarations matching a glob pattern. Use * as wildcard (e.g. 'To*Async').",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List workspace documents and their kinds",
	RunE:  runDocuments,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count documents and declarations by kind",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

var symbolDetailCmd = &cobra.Command{
	Use:   "symbol-detail <id>",
	Short: "Show parameters, type parameters, bases and members of a declaration",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbolDetail,
}

func init() {
	for _, c := range []*cobra.Command{symbolsCmd, searchCmd} {
		c.Flags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
		c.Flags().IntVar(&flagOffset, "offset", 0, "pagination offset")
		c.Flags().StringVar(&flagSort, "sort", "", "sort field: name|kind|document")
		c.Flags().StringVar(&flagOrder, "order", "asc", "sort order: asc|desc")
		c.Flags().StringVar(&flagKind, "kind", "", "filter by declaration kind (e.g. class, method)")
		c.Flags().StringVar(&flagDocumentKind, "document-kind", "", "filter by document kind: prelude|model|context|snippet")
	}
	symbolsCmd.Flags().StringVar(&flagVisibility, "visibility", "", "filter by visibility (public, private)")
	documentsCmd.Flags().StringVar(&flagDocumentKind, "kind", "", "filter by document kind")
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(cmd.OutOrStdout(), result)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// buildPagination creates a Pagination from CLI flags.
func buildPagination() linqlens.Pagination {
	return linqlens.Pagination{Limit: flagLimit, Offset: flagOffset}
}

// buildSort creates a Sort from CLI flags.
func buildSort() linqlens.Sort {
	var field linqlens.SortField
	switch flagSort {
	case "kind":
		field = linqlens.SortByKind
	case "document":
		field = linqlens.SortByDocument
	default:
		field = linqlens.SortByName
	}

	order := linqlens.Asc
	if flagOrder == "desc" {
		order = linqlens.Desc
	}
	return linqlens.Sort{Field: field, Order: order}
}

// buildFilter creates a SymbolFilter from CLI flags.
func buildFilter() linqlens.SymbolFilter {
	var filter linqlens.SymbolFilter
	if flagKind != "" {
		filter.Kinds = []string{flagKind}
	}
	if flagDocumentKind != "" {
		filter.DocumentKind = &flagDocumentKind
	}
	if flagVisibility != "" {
		filter.Visibility = &flagVisibility
	}
	return filter
}

func runSymbols(cmd *cobra.Command, args []string) error {
	s, cleanup, err := openSession(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "symbols", err)
	}
	defer cleanup()

	result, err := s.Query().Symbols(cmd.Context(), buildFilter(), buildSort(), buildPagination())
	if err != nil {
		return outputError(cmd, "symbols", err)
	}
	return outputResult(cmd, CLIResult{
		Command:    "symbols",
		Results:    symbolResultsToCLI(result.Items),
		TotalCount: &result.TotalCount,
	})
}

func runSearch(cmd *cobra.Command, args []string) error {
	s, cleanup, err := openSession(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "search", err)
	}
	defer cleanup()

	result, err := s.Query().SearchSymbols(cmd.Context(), args[0], buildFilter(), buildSort(), buildPagination())
	if err != nil {
		return outputError(cmd, "search", err)
	}
	return outputResult(cmd, CLIResult{
		Command:    "search",
		Results:    symbolResultsToCLI(result.Items),
		TotalCount: &result.TotalCount,
	})
}

func runDocuments(cmd *cobra.Command, args []string) error {
	s, cleanup, err := openSession(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "documents", err)
	}
	defer cleanup()

	docs, err := s.Query().Documents(cmd.Context(), flagDocumentKind)
	if err != nil {
		return outputError(cmd, "documents", err)
	}
	cli := make([]CLIDocument, len(docs))
	for i, d := range docs {
		cli[i] = CLIDocument{Name: d.Name, Kind: d.Kind, Version: d.Version, SymbolCount: d.SymbolCount}
	}
	return outputResult(cmd, CLIResult{Command: "documents", Results: cli})
}

func runSummary(cmd *cobra.Command, args []string) error {
	s, cleanup, err := openSession(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "summary", err)
	}
	defer cleanup()

	sum, err := s.Query().Summary(cmd.Context())
	if err != nil {
		return outputError(cmd, "summary", err)
	}
	return outputResult(cmd, CLIResult{
		Command: "summary",
		Results: CLISummary{Documents: sum.Documents, Symbols: sum.Symbols, Generation: sum.Generation},
	})
}

func runSymbolDetail(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return outputError(cmd, "symbol-detail", fmt.Errorf("invalid symbol id %q", args[0]))
	}
	s, cleanup, err := openSession(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "symbol-detail", err)
	}
	defer cleanup()

	d, err := s.Query().SymbolDetail(cmd.Context(), id)
	if err != nil {
		return outputError(cmd, "symbol-detail", err)
	}
	var cli *CLISymbolDetail
	if d != nil {
		v := symbolDetailToCLI(d)
		cli = &v
	}
	return outputResult(cmd, CLIResult{Command: "symbol-detail", Results: cli})
}

// symbolResultToCLI converts a linqlens.SymbolResult to a CLISymbol.
func symbolResultToCLI(sr linqlens.SymbolResult) CLISymbol {
	return CLISymbol{
		ID:         sr.ID,
		Name:       sr.Name,
		Kind:       sr.Kind,
		Visibility: sr.Visibility,
		Modifiers:  sr.Modifiers,
		Type:       sr.TypeExpr,
		Parent:     sr.ParentName,
		Document:   sr.DocumentName,
		StartLine:  sr.StartLine,
		StartCol:   sr.StartCol,
	}
}

func symbolResultsToCLI(items []linqlens.SymbolResult) []CLISymbol {
	out := make([]CLISymbol, len(items))
	for i, sr := range items {
		out[i] = symbolResultToCLI(sr)
	}
	return out
}

// symbolDetailToCLI converts a linqlens.SymbolDetail to a CLISymbolDetail.
func symbolDetailToCLI(d *linqlens.SymbolDetail) CLISymbolDetail {
	cli := CLISymbolDetail{
		Symbol:  symbolResultToCLI(d.Symbol),
		Members: symbolResultsToCLI(d.Members),
	}

	cli.Parameters = make([]CLIFunctionParam, len(d.Parameters))
	for i, p := range d.Parameters {
		cli.Parameters[i] = CLIFunctionParam{
			Name:       p.Name,
			Ordinal:    p.Ordinal,
			TypeExpr:   p.TypeExpr,
			Modifier:   p.Modifier,
			IsReceiver: p.IsReceiver,
			HasDefault: p.HasDefault,
		}
	}

	cli.TypeParams = make([]CLITypeParam, len(d.TypeParams))
	for i, tp := range d.TypeParams {
		cli.TypeParams[i] = CLITypeParam{Name: tp.Name, Ordinal: tp.Ordinal, Variance: tp.Variance}
	}

	cli.BaseTypes = make([]string, len(d.BaseTypes))
	for i, b := range d.BaseTypes {
		cli.BaseTypes[i] = b.TypeExpr
	}
	return cli
}
