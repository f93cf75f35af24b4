package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestStartServiceSpan_NameAndAttributes(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartServiceSpan(context.Background(), "transfer_queue", "approve",
		attribute.String(AttrEntryID, "e-1"))
	assert.NotEmpty(t, TraceID(ctx))
	End(span, nil)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "transfer_queue.approve", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String(AttrEntryID, "e-1"))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestEnd_DomainErrorsAreNotFailures(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartServiceSpan(context.Background(), "transfer_queue", "approve")
	End(span, shared.NewInvalidStateError("entry is not pending review"))

	got := rec.Ended()[0]
	assert.Equal(t, codes.Unset, got.Status().Code)
	require.Len(t, got.Events(), 1)
	assert.Equal(t, "domain_error", got.Events()[0].Name)
}

func TestEnd_InfrastructureErrorsFailTheSpan(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartServiceSpan(context.Background(), "integration", "get_active_config")
	End(span, errors.New("connection reset"))

	got := rec.Ended()[0]
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "connection reset", got.Status().Description)
}

func TestEnd_DecryptionFailureFailsTheSpan(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartServiceSpan(context.Background(), "integration", "get_active_config")
	End(span, shared.ErrConfigDecryption)

	assert.Equal(t, codes.Error, rec.Ended()[0].Status().Code)
}

func TestTraceID_WithoutSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}

func TestAttr(t *testing.T) {
	assert.Equal(t, attribute.Int(AttrCount, 3), Attr(AttrCount, 3))
	assert.Equal(t, attribute.Bool("x", true), Attr("x", true))
	assert.Equal(t, attribute.String("y", "2"), Attr("y", uint8(2)))
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetryConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), Sampler(1).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), Sampler(3).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), Sampler(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), Sampler(0.25).Description())
}
