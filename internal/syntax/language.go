package syntax

import (
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
)

// Lazily initialized on first call via sync.Once.
var (
	grammar     *sitter.Language
	grammarOnce sync.Once
)

// Language returns the tree-sitter C# grammar.
func Language() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = csharp.GetLanguage()
	})
	return grammar
}
