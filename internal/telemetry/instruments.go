package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Outcomes recorded for a request.
const (
	OutcomeOK     = "ok"
	OutcomeEmpty  = "empty"
	OutcomeError  = "error"
	OutcomeClosed = "closed"
)

// Instruments publishes metrics and traces for session operations. A nil
// *Instruments records nothing.
type Instruments struct {
	counterRequests metric.Int64Counter
	counterErrors   metric.Int64Counter
	histDuration    metric.Int64Histogram

	tracer trace.Tracer
}

// RequestInfo describes one operation.
type RequestInfo struct {
	Op      string // "completion", "hover", "initialize"
	Session string
	Cursor  int
}

// RequestHandle tracks one in-flight operation.
type RequestHandle struct {
	inst  *Instruments
	ctx   context.Context
	span  trace.Span
	start time.Time
	attrs []attribute.KeyValue
}

// NewInstruments builds instruments over the given providers. Either may be
// nil; it returns nil when both are.
func NewInstruments(tp trace.TracerProvider, mp metric.MeterProvider) *Instruments {
	if tp == nil && mp == nil {
		return nil
	}
	inst := &Instruments{}
	if mp != nil {
		meter := mp.Meter(InstrumentationName)
		inst.counterRequests, _ = meter.Int64Counter(
			"linqlens.requests_total",
			metric.WithDescription("Number of session operations processed"),
		)
		inst.counterErrors, _ = meter.Int64Counter(
			"linqlens.errors_total",
			metric.WithDescription("Number of session operations that ended in error"),
		)
		inst.histDuration, _ = meter.Int64Histogram(
			"linqlens.request.duration",
			metric.WithDescription("Duration of session operations in milliseconds"),
			metric.WithUnit("ms"),
		)
	}
	if tp != nil {
		inst.tracer = tp.Tracer(InstrumentationName)
	}
	return inst
}

// Start returns a request handle and a context carrying the active span
// when tracing is enabled.
func (i *Instruments) Start(parent context.Context, info RequestInfo) (*RequestHandle, context.Context) {
	if i == nil {
		return nil, parent
	}
	h := &RequestHandle{
		inst:  i,
		ctx:   parent,
		start: time.Now(),
		attrs: buildAttributes(info),
	}
	if i.tracer != nil {
		ctx, span := i.tracer.Start(parent, spanName(info.Op), trace.WithAttributes(h.attrs...))
		h.ctx = ctx
		h.span = span
	}
	return h, h.ctx
}

// End records metrics and closes the span. extra attributes are attached to
// both.
func (h *RequestHandle) End(outcome string, err error, extra ...attribute.KeyValue) {
	if h == nil {
		return
	}
	i := h.inst
	elapsed := time.Since(h.start)
	attrs := append(append([]attribute.KeyValue{}, h.attrs...), extra...)
	if outcome != "" {
		attrs = append(attrs, attribute.String("outcome", outcome))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	if i.counterRequests != nil {
		i.counterRequests.Add(h.ctx, 1, metric.WithAttributes(attrs...))
		if outcome == OutcomeError {
			i.counterErrors.Add(h.ctx, 1, metric.WithAttributes(attrs...))
		}
		i.histDuration.Record(h.ctx, elapsed.Milliseconds(), metric.WithAttributes(attrs...))
	}

	if h.span != nil {
		h.span.SetAttributes(attrs...)
		if outcome == OutcomeError {
			msg := ""
			if err != nil {
				msg = err.Error()
			}
			h.span.SetStatus(codes.Error, msg)
		}
		h.span.End()
	}
}

func buildAttributes(info RequestInfo) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if info.Op != "" {
		attrs = append(attrs, attribute.String("linqlens.op", info.Op))
	}
	if info.Session != "" {
		attrs = append(attrs, attribute.String("linqlens.session", info.Session))
	}
	if info.Op == "completion" || info.Op == "hover" {
		attrs = append(attrs, attribute.Int("linqlens.cursor", info.Cursor))
	}
	return attrs
}

func spanName(op string) string {
	if op == "" {
		return "linqlens.request"
	}
	return "linqlens." + op
}
