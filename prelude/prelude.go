// Package prelude embeds the C# declarations every workspace starts with:
// the slice of the base class library, LINQ and Entity Framework Core that
// query snippets are written against. It also embeds a small starter model
// so a session has something to complete against out of the box.
package prelude

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed *.cs
var sources embed.FS

//go:embed starter/*.cs
var starter embed.FS

// Starter context settings.
const (
	StarterContextType = "TestDbContext"
	StarterNamespace   = "LinqStudio.TestModels"
)

// FS returns the embedded prelude sources.
func FS() fs.FS { return sources }

// File is one prelude source.
type File struct {
	Name string // e.g. "Linq.cs"
	Text string
}

// Files reads every .cs file at the root of fsys in name order.
func Files(fsys fs.FS) ([]File, error) {
	names, err := fs.Glob(fsys, "*.cs")
	if err != nil {
		return nil, fmt.Errorf("list prelude: %w", err)
	}
	sort.Strings(names)
	out := make([]File, 0, len(names))
	for _, name := range names {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prelude %s: %w", name, err)
		}
		out = append(out, File{Name: name, Text: string(b)})
	}
	return out, nil
}

// Starter returns the starter models keyed by type name, and the starter
// context source.
func Starter() (models map[string]string, contextSource string, err error) {
	entries, err := fs.ReadDir(starter, "starter")
	if err != nil {
		return nil, "", fmt.Errorf("list starter: %w", err)
	}
	models = make(map[string]string)
	for _, e := range entries {
		b, err := fs.ReadFile(starter, path.Join("starter", e.Name()))
		if err != nil {
			return nil, "", fmt.Errorf("read starter %s: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), ".cs")
		if name == StarterContextType {
			contextSource = string(b)
			continue
		}
		models[name] = string(b)
	}
	return models, contextSource, nil
}
