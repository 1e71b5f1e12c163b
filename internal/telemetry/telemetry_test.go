package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestSetupDisabled(t *testing.T) {
	t.Parallel()
	p, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, p.TracerProvider())
	assert.Nil(t, p.MeterProvider())
	assert.Nil(t, NewInstruments(p.TracerProvider(), p.MeterProvider()))
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNilSafety(t *testing.T) {
	t.Parallel()
	var p *Provider
	assert.Nil(t, p.TracerProvider())
	assert.NoError(t, p.Shutdown(context.Background()))

	var inst *Instruments
	h, ctx := inst.Start(context.Background(), RequestInfo{Op: "hover"})
	assert.Nil(t, h)
	assert.NotNil(t, ctx)
	h.End(OutcomeOK, nil)
}

func TestMetricsRecorded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, err := Setup(ctx, Config{EnableMetrics: true})
	require.NoError(t, err)
	t.Cleanup(func() { p.Shutdown(context.Background()) })

	inst := NewInstruments(p.TracerProvider(), p.MeterProvider())
	require.NotNil(t, inst)
	for _, outcome := range []string{OutcomeOK, OutcomeError} {
		h, _ := inst.Start(ctx, RequestInfo{Op: "completion", Cursor: 3})
		h.End(outcome, nil)
	}

	rm, err := p.Collect(ctx)
	require.NoError(t, err)
	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["linqlens.requests_total"])
	assert.Equal(t, int64(1), sums["linqlens.errors_total"])
}

func TestTracesExported(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var buf bytes.Buffer
	p, err := Setup(ctx, Config{EnableTraces: true, Writer: &buf})
	require.NoError(t, err)

	inst := NewInstruments(p.TracerProvider(), p.MeterProvider())
	h, spanCtx := inst.Start(ctx, RequestInfo{Op: "hover", Session: "s1"})
	assert.NotEqual(t, ctx, spanCtx)
	h.End(OutcomeError, errors.New("boom"))

	require.NoError(t, p.Shutdown(ctx))
	out := buf.String()
	assert.Contains(t, out, "linqlens.hover")
	assert.Contains(t, out, "boom")
}

func TestEnvBool(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		def  bool
		want bool
	}{
		{"", true, true},
		{"", false, false},
		{"yes", false, true},
		{"Off", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EnvBool(tt.in, tt.def), "EnvBool(%q, %v)", tt.in, tt.def)
	}
}
