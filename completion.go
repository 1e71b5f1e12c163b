package linqlens

import (
	"context"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jward/linqlens/internal/semantic"
	"github.com/jward/linqlens/internal/syntax"
	"github.com/jward/linqlens/internal/telemetry"
	"github.com/jward/linqlens/internal/wrap"
)

// GetCompletions returns the completions for the word being typed at cursor,
// a byte offset into snippet. cursor is clamped to the snippet. Analysis
// faults yield an empty list; only a closed session or a done ctx returns an
// error.
func (s *Session) GetCompletions(ctx context.Context, snippet string, cursor int) ([]CompletionItem, error) {
	release, err := s.gate.acquire(ctx)
	if err != nil {
		return []CompletionItem{}, err
	}
	defer release()

	h, ctx := s.inst.Start(ctx, telemetry.RequestInfo{Op: "completion", Session: s.id, Cursor: cursor})
	var items []CompletionItem
	if err := s.guard("completion", func() error {
		var err error
		items, err = s.completions(ctx, snippet, cursor)
		return err
	}); err != nil {
		s.logger.Warn("completion failed", "session", s.id, "cursor", cursor, "error", err)
		h.End(telemetry.OutcomeError, err)
		return []CompletionItem{}, nil
	}

	outcome := telemetry.OutcomeOK
	if len(items) == 0 {
		outcome = telemetry.OutcomeEmpty
	}
	h.End(outcome, nil, attribute.Int("linqlens.items", len(items)))
	return items, nil
}

func (s *Session) completions(ctx context.Context, snippet string, cursor int) ([]CompletionItem, error) {
	cursor = clampCursor(snippet, cursor)
	m, err := s.model(ctx, snippet)
	if err != nil {
		return nil, err
	}
	abs := s.wrapper.WrappedOffset(snippet, cursor)
	list, ok, err := m.Complete(ctx, abs)
	if err != nil {
		return nil, err
	}
	if !ok || list == nil {
		return []CompletionItem{}, nil
	}

	span := replacementRange(snippet, cursor)
	items := make([]CompletionItem, 0, len(list.Items))
	for _, c := range list.Items {
		r := span
		items = append(items, CompletionItem{
			InsertText:       insertText(c),
			Label:            c.DisplayPrefix + c.DisplayText + c.DisplaySuffix,
			FilterText:       c.FilterText,
			Detail:           c.Detail,
			Kind:             completionKind(c.Tags),
			Documentation:    s.describe(m, c),
			ReplacementRange: &r,
		})
	}
	return items, nil
}

// describe isolates a fault in one candidate's documentation from the rest
// of the list.
func (s *Session) describe(m *semantic.Model, c semantic.Completion) (doc string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("describe panic", "candidate", c.DisplayText, "panic", r)
			doc = ""
		}
	}()
	return m.Describe(c)
}

// clampCursor clamps cursor to snippet and moves it back to the start of a
// rune it splits.
func clampCursor(snippet string, cursor int) int {
	cursor = wrap.Clamp(snippet, cursor)
	for cursor > 0 && cursor < len(snippet) && !utf8.RuneStart(snippet[cursor]) {
		cursor--
	}
	return cursor
}

// replacementRange is the word ending at cursor, or an empty range at it.
func replacementRange(snippet string, cursor int) Range {
	return Range{Start: syntax.WordStart([]byte(snippet), cursor), End: cursor}
}

func insertText(c semantic.Completion) string {
	text := c.InsertionText
	if text == "" {
		text = c.DisplayText
	}
	if c.CallShaped {
		text += "("
	}
	return text
}

func completionKind(tags []string) CompletionKind {
	for _, tag := range tags {
		switch tag {
		case semantic.TagProperty:
			return CompletionProperty
		case semantic.TagMethod, semantic.TagExtension:
			return CompletionMethod
		case semantic.TagField, semantic.TagEnumMember:
			return CompletionField
		case semantic.TagClass, semantic.TagInterface, semantic.TagStructure, semantic.TagEnum, semantic.TagDelegate:
			return CompletionClass
		}
	}
	return CompletionText
}
