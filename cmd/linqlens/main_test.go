package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/linqlens"
)

// runCLI executes the root command in-process. Flag variables are package
// globals, so tests using it must not run in parallel.
func runCLI(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	flagConfig, flagFormat, flagModels, flagContextFile = "", "json", "", ""
	flagContextType, flagNamespace = "", ""
	flagStarter, flagTrace, flagVerbose = false, false, false
	flagCursor, flagLimit, flagOffset = -1, 50, 0
	flagSort, flagOrder, flagKind, flagDocumentKind, flagVisibility = "", "asc", "", "", ""
	errorHandled = false

	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func decodeResult(t *testing.T, stdout string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &m), stdout)
	return m
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	err := validateFormat("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json or text")
}

func TestReadSnippet(t *testing.T) {
	t.Parallel()
	got, err := readSnippet("context.People", strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "context.People", got)

	got, err = readSnippet("-", strings.NewReader("context.People.\n"))
	require.NoError(t, err)
	assert.Equal(t, "context.People.", got)
}

func TestBuildSort(t *testing.T) {
	flagSort, flagOrder = "document", "desc"
	t.Cleanup(func() { flagSort, flagOrder = "", "asc" })
	assert.Equal(t, linqlens.Sort{Field: linqlens.SortByDocument, Order: linqlens.Desc}, buildSort())

	flagSort, flagOrder = "bogus", "asc"
	assert.Equal(t, linqlens.Sort{Field: linqlens.SortByName, Order: linqlens.Asc}, buildSort())
}

func TestCompleteCommand(t *testing.T) {
	stdout, _, err := runCLI(t, "", "complete", "context.", "--starter")
	require.NoError(t, err)

	res := decodeResult(t, stdout)
	assert.Equal(t, "complete", res["command"])
	items, ok := res["results"].([]any)
	require.True(t, ok)
	var labels []string
	for _, it := range items {
		labels = append(labels, it.(map[string]any)["label"].(string))
	}
	assert.Contains(t, labels, "People")
}

func TestCompleteCommand_Stdin(t *testing.T) {
	stdout, _, err := runCLI(t, "context.People.", "complete", "-", "--starter", "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, stdout, "LABEL")
	assert.Contains(t, stdout, "Where")
}

func TestHoverCommand(t *testing.T) {
	stdout, _, err := runCLI(t, "", "hover", "context.People", "--cursor", "10", "--starter")
	require.NoError(t, err)
	res := decodeResult(t, stdout)
	hover, ok := res["results"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, hover["markdown"], "DbSet")
	assert.Equal(t, float64(8), hover["start"])

	stdout, _, err = runCLI(t, "", "hover", "// nothing", "--cursor", "3", "--starter", "--format", "text")
	require.NoError(t, err)
	assert.Equal(t, "no hover\n", stdout)
}

func TestDocumentsCommand(t *testing.T) {
	stdout, _, err := runCLI(t, "", "documents", "--kind", "model", "--starter")
	require.NoError(t, err)
	res := decodeResult(t, stdout)
	docs := res["results"].([]any)
	require.Len(t, docs, 1)
	assert.Equal(t, "Person.cs", docs[0].(map[string]any)["name"])
}

func TestSymbolsCommand_FromConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Order.cs"),
		[]byte("namespace Shop; public class Order { public int Id { get; set; } public decimal Total { get; set; } }"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ShopContext.cs"),
		[]byte("using Microsoft.EntityFrameworkCore; namespace Shop; public class ShopContext : DbContext { public DbSet<Order> Orders { get; set; } }"), 0o644))
	cfgPath := filepath.Join(dir, "linqlens.yaml")
	require.NoError(t, os.WriteFile(cfgPath,
		[]byte("context_type: ShopContext\nnamespace: Shop\nmodels_dir: .\ncontext_file: ShopContext.cs\n"), 0o644))

	stdout, _, err := runCLI(t, "", "symbols", "--config", cfgPath, "--document-kind", "model", "--sort", "name")
	require.NoError(t, err)
	res := decodeResult(t, stdout)
	assert.Equal(t, float64(3), res["total_count"])
	var names []string
	for _, s := range res["results"].([]any) {
		names = append(names, s.(map[string]any)["name"].(string))
	}
	assert.Equal(t, []string{"Id", "Order", "Total"}, names)

	stdout, _, err = runCLI(t, "", "complete", "context.Orders.First().", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"Total"`)
}

func TestErrors(t *testing.T) {
	stdout, _, err := runCLI(t, "", "symbol-detail", "abc", "--starter")
	require.Error(t, err)
	assert.True(t, errorHandled)
	res := decodeResult(t, stdout)
	assert.Equal(t, "symbol-detail", res["command"])
	assert.Contains(t, res["error"], "invalid symbol id")

	_, stderr, err := runCLI(t, "", "symbols", "--context-file", "missing.cs", "--context-type", "X", "--format", "text")
	require.Error(t, err)
	assert.Contains(t, stderr, "Error:")

	_, _, err = runCLI(t, "", "summary", "--format", "xml")
	require.Error(t, err)
}
