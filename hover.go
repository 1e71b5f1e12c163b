package linqlens

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jward/linqlens/internal/semantic"
	"github.com/jward/linqlens/internal/syntax"
	"github.com/jward/linqlens/internal/telemetry"
)

// GetHover describes the symbol under cursor, a byte offset into snippet.
// It returns nil when nothing there resolves. Like GetCompletions, analysis
// faults are logged and yield nil without an error.
func (s *Session) GetHover(ctx context.Context, snippet string, cursor int) (*HoverResult, error) {
	release, err := s.gate.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	h, ctx := s.inst.Start(ctx, telemetry.RequestInfo{Op: "hover", Session: s.id, Cursor: cursor})
	var res *HoverResult
	if err := s.guard("hover", func() error {
		var err error
		res, err = s.hover(ctx, snippet, cursor)
		return err
	}); err != nil {
		s.logger.Warn("hover failed", "session", s.id, "cursor", cursor, "error", err)
		h.End(telemetry.OutcomeError, err)
		return nil, nil
	}

	if res == nil {
		h.End(telemetry.OutcomeEmpty, nil)
		return nil, nil
	}
	h.End(telemetry.OutcomeOK, nil, attribute.String("linqlens.resolver", res.Resolver))
	return res, nil
}

func (s *Session) hover(ctx context.Context, snippet string, cursor int) (*HoverResult, error) {
	cursor = clampCursor(snippet, cursor)
	m, err := s.model(ctx, snippet)
	if err != nil {
		return nil, err
	}
	abs := s.wrapper.WrappedOffset(snippet, cursor)
	token := m.Tree().LeafAt(abs)
	if token == nil {
		return nil, nil
	}

	res, ok := resolve(newHoverTarget(m, abs, token))
	if !ok {
		return nil, nil
	}
	absStart, length := syntax.Span(res.span)
	start, ok := s.wrapper.RawOffset(absStart)
	if !ok || start > len(snippet) {
		return nil, nil
	}
	if start+length > len(snippet) {
		length = len(snippet) - start
	}
	s.logger.Debug("hover resolved", "session", s.id, "resolver", res.resolver, "symbol", res.symbol.Name)
	return &HoverResult{
		Markdown: hoverMarkdown(res.symbol),
		Start:    start,
		Length:   length,
		Resolver: res.resolver,
	}, nil
}

// hoverMarkdown renders the signature as a C# code block followed by the
// symbol's documentation.
func hoverMarkdown(sym *semantic.Symbol) string {
	var b strings.Builder
	b.WriteString("```csharp\n")
	b.WriteString(sym.Signature())
	b.WriteString("\n```")
	if doc := strings.TrimSpace(sym.Doc); doc != "" {
		b.WriteString("\n\n")
		b.WriteString(doc)
	}
	return b.String()
}
