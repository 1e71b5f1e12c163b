package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/linqlens"
)

var flagCursor int

var completeCmd = &cobra.Command{
	Use:   "complete <snippet>",
	Short: "List completions at a cursor in a snippet",
	Long:  "Prints the completion items for the snippet at --cursor. Pass - to read the snippet from stdin.",
	Args:  cobra.ExactArgs(1),
	RunE:  runComplete,
}

var hoverCmd = &cobra.Command{
	Use:   "hover <snippet>",
	Short: "Show hover information at a cursor in a snippet",
	Long:  "Prints the signature and documentation of the symbol at --cursor, or null when there is none. Pass - to read the snippet from stdin.",
	Args:  cobra.ExactArgs(1),
	RunE:  runHover,
}

func init() {
	for _, c := range []*cobra.Command{completeCmd, hoverCmd} {
		c.Flags().IntVar(&flagCursor, "cursor", -1, "byte offset of the cursor (default: end of snippet)")
	}
}

// readSnippet returns arg, or all of stdin when arg is "-".
func readSnippet(arg string, stdin io.Reader) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading snippet from stdin: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// cursorFor defaults a negative --cursor to the end of the snippet.
func cursorFor(snippet string) int {
	if flagCursor < 0 {
		return len(snippet)
	}
	return flagCursor
}

func runComplete(cmd *cobra.Command, args []string) error {
	snippet, err := readSnippet(args[0], cmd.InOrStdin())
	if err != nil {
		return outputError(cmd, "complete", err)
	}
	s, cleanup, err := openSession(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "complete", err)
	}
	defer cleanup()

	items, err := s.GetCompletions(cmd.Context(), snippet, cursorFor(snippet))
	if err != nil {
		return outputError(cmd, "complete", err)
	}

	cli := make([]CLICompletion, len(items))
	for i, it := range items {
		cli[i] = completionToCLI(it)
	}
	return outputResult(cmd, CLIResult{Command: "complete", Results: cli})
}

func runHover(cmd *cobra.Command, args []string) error {
	snippet, err := readSnippet(args[0], cmd.InOrStdin())
	if err != nil {
		return outputError(cmd, "hover", err)
	}
	s, cleanup, err := openSession(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "hover", err)
	}
	defer cleanup()

	h, err := s.GetHover(cmd.Context(), snippet, cursorFor(snippet))
	if err != nil {
		return outputError(cmd, "hover", err)
	}

	var cli *CLIHover
	if h != nil {
		cli = &CLIHover{Markdown: h.Markdown, Start: h.Start, Length: h.Length, Resolver: h.Resolver}
	}
	return outputResult(cmd, CLIResult{Command: "hover", Results: cli})
}

// completionToCLI converts a linqlens.CompletionItem to a CLICompletion.
func completionToCLI(it linqlens.CompletionItem) CLICompletion {
	c := CLICompletion{
		Label:         it.Label,
		InsertText:    it.InsertText,
		FilterText:    it.FilterText,
		Kind:          string(it.Kind),
		Detail:        it.Detail,
		Documentation: it.Documentation,
	}
	if it.ReplacementRange != nil {
		c.ReplacementRange = &CLIRange{Start: it.ReplacementRange.Start, End: it.ReplacementRange.End}
	}
	return c
}
