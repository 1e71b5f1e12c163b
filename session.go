package linqlens

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jward/linqlens/internal/semantic"
	"github.com/jward/linqlens/internal/store"
	"github.com/jward/linqlens/internal/telemetry"
	"github.com/jward/linqlens/internal/workspace"
	"github.com/jward/linqlens/internal/wrap"
	"github.com/jward/linqlens/prelude"
)

// ErrClosed is returned by every operation on a closed Session.
var ErrClosed = workspace.ErrClosed

// ErrSyntax matches a *SyntaxError from Initialize with errors.Is.
var ErrSyntax = workspace.ErrSyntax

// Session is one editor's analysis state: the model documents, the context
// document and the snippet being typed. All methods are safe for concurrent
// use; they are serialized by a gate.
type Session struct {
	id      string
	logger  *slog.Logger
	inst    *telemetry.Instruments
	wrapper *wrap.Wrapper
	ws      *workspace.Workspace
	gate    *gate

	// catalog is rebuilt when the workspace generation moves past catalogGen.
	catalog    *semantic.Catalog
	catalogGen uint64

	closeOnce sync.Once
	closeErr  error

	tmpl           wrap.Template
	preludeFS      fs.FS
	parallelism    int
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger for analysis faults and lifecycle events. By
// default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTelemetry records spans and metrics for every operation. Either
// provider may be nil.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(s *Session) {
		s.tracerProvider = tp
		s.meterProvider = mp
	}
}

// WithResultType sets the Task<> argument of the method snippets are
// wrapped in. The default is "object".
func WithResultType(t string) Option {
	return func(s *Session) { s.tmpl.ResultType = t }
}

// WithMarkers places fixed code before and after every snippet inside the
// wrapping method body.
func WithMarkers(before, after string) Option {
	return func(s *Session) {
		s.tmpl.Before = before
		s.tmpl.After = after
	}
}

// WithPrelude replaces the embedded prelude with the .cs files at the root
// of fsys.
func WithPrelude(fsys fs.FS) Option {
	return func(s *Session) { s.preludeFS = fsys }
}

// WithParallelism caps the extraction workers used by Initialize. Zero means
// one per CPU.
func WithParallelism(n int) Option {
	return func(s *Session) { s.parallelism = n }
}

// New creates a Session whose snippets are bodies of a method taking a
// contextType named "context", inside namespace. The prelude is loaded
// before New returns.
func New(contextType, namespace string, opts ...Option) (*Session, error) {
	if strings.TrimSpace(contextType) == "" {
		return nil, fmt.Errorf("linqlens: context type is required")
	}
	s := &Session{
		id:     uuid.NewString(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tmpl:   wrap.Template{Namespace: namespace, ContextType: contextType},
	}
	for _, opt := range opts {
		opt(s)
	}

	wsOpts := []workspace.Option{workspace.WithLogger(s.logger), workspace.WithParallelism(s.parallelism)}
	if s.preludeFS != nil {
		wsOpts = append(wsOpts, workspace.WithPrelude(s.preludeFS))
	}
	ws, err := workspace.New(context.Background(), wsOpts...)
	if err != nil {
		return nil, fmt.Errorf("linqlens: create workspace: %w", err)
	}

	s.ws = ws
	s.wrapper = wrap.New(s.tmpl)
	s.inst = telemetry.NewInstruments(s.tracerProvider, s.meterProvider)
	s.gate = newGate()
	return s, nil
}

// NewStarterSession returns a Session initialized with the embedded starter
// model (Person) and context (TestDbContext).
func NewStarterSession(ctx context.Context, opts ...Option) (*Session, error) {
	models, contextSource, err := prelude.Starter()
	if err != nil {
		return nil, fmt.Errorf("linqlens: starter: %w", err)
	}
	s, err := New(prelude.StarterContextType, prelude.StarterNamespace, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Initialize(ctx, models, contextSource); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// ID identifies the session in logs and telemetry.
func (s *Session) ID() string { return s.id }

// Initialize adds or replaces one document per model, keyed by name, and
// the context document. Models from an earlier call that are missing from
// models are removed. A source that does not parse fails the call with a
// *SyntaxError and leaves the session as it was.
func (s *Session) Initialize(ctx context.Context, models map[string]string, contextSource string) error {
	release, err := s.gate.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	h, ctx := s.inst.Start(ctx, telemetry.RequestInfo{Op: "initialize", Session: s.id})
	err = s.guard("initialize", func() error { return s.initialize(ctx, models, contextSource) })
	if err != nil {
		h.End(telemetry.OutcomeError, err)
		return fmt.Errorf("linqlens: initialize: %w", err)
	}
	h.End(telemetry.OutcomeOK, nil)
	return nil
}

func (s *Session) initialize(ctx context.Context, models map[string]string, contextSource string) error {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)

	sources := make([]workspace.Source, 0, len(names)+1)
	keep := make(map[string]bool, len(names))
	for _, name := range names {
		doc := workspace.ModelDocumentName(name)
		keep[doc] = true
		sources = append(sources, workspace.Source{Name: doc, Kind: store.KindModel, Text: models[name]})
	}
	sources = append(sources, workspace.Source{Name: workspace.ContextDocumentName, Kind: store.KindContext, Text: contextSource})

	if err := s.ws.AddDeclarations(ctx, sources); err != nil {
		return err
	}
	removed, err := s.ws.RemoveDocuments(ctx, store.KindModel, keep)
	if err != nil {
		return err
	}
	s.logger.Info("session initialized",
		"session", s.id,
		"models", len(names),
		"removed", removed,
		"generation", s.ws.Generation(),
	)
	return nil
}

// AddOrUpdateSnippet wraps snippet and makes it the session's snippet
// document. The returned Document is a snapshot owned by the caller.
func (s *Session) AddOrUpdateSnippet(ctx context.Context, snippet string) (*Document, error) {
	release, err := s.gate.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var doc *Document
	err = s.guard("snippet", func() error {
		var err error
		doc, err = s.ws.AddOrUpdateSnippet(ctx, s.wrapper.Wrap(snippet))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("linqlens: add snippet: %w", err)
	}
	return doc, nil
}

// Close releases the session. Callers blocked on the gate return ErrClosed;
// an operation in flight finishes first. Close is safe to call more than
// once and from several goroutines.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.gate.shut()
		s.catalog = nil
		s.closeErr = s.ws.Close()
		s.logger.Debug("session closed", "session", s.id)
	})
	return s.closeErr
}

// model replaces the snippet document and returns a semantic model over
// it. The caller must hold the gate.
func (s *Session) model(ctx context.Context, snippet string) (*semantic.Model, error) {
	if _, err := s.ws.AddOrUpdateSnippet(ctx, s.wrapper.Wrap(snippet)); err != nil {
		return nil, err
	}
	cat, err := s.catalogFor()
	if err != nil {
		return nil, err
	}
	return semantic.NewModel(cat, s.ws.SnippetTree()), nil
}

func (s *Session) catalogFor() (*semantic.Catalog, error) {
	gen := s.ws.Generation()
	if s.catalog != nil && s.catalogGen == gen {
		return s.catalog, nil
	}
	cat, err := semantic.Load(s.ws.Store())
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	s.catalog, s.catalogGen = cat, gen
	return cat, nil
}

// guard runs fn and turns a panic into an error.
func (s *Session) guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("analysis panic", "op", op, "session", s.id, "panic", r)
			err = fmt.Errorf("%s: panic: %v", op, r)
		}
	}()
	return fn()
}
