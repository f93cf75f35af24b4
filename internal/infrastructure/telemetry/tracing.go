package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerbridge/backend/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of service spans
const TracerName = "github.com/ledgerbridge/backend"

// Span attribute keys shared by the application services
const (
	AttrTenantID   = "ledgerbridge.tenant_id"
	AttrEntryID    = "ledgerbridge.entry_id"
	AttrEntityType = "ledgerbridge.entity_type"
	AttrPlatform   = "ledgerbridge.platform"
	AttrCount      = "ledgerbridge.count"
)

// StartServiceSpan starts a span named {service}.{method}.
//
//	ctx, span := telemetry.StartServiceSpan(ctx, "transfer_queue", "approve",
//	    attribute.String(telemetry.AttrEntryID, id.String()))
//	defer func() { telemetry.End(span, err) }()
func StartServiceSpan(ctx context.Context, service, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, service+"."+method,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// End records err on span and ends it. Domain errors other than
// INTERNAL_ERROR and the decryption failures are expected outcomes: they are
// recorded as an event and leave the status unset. Anything else fails the span.
func End(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		return
	}
	var de *shared.DomainError
	if errors.As(err, &de) && !failsSpan(de.Code) {
		span.AddEvent("domain_error", trace.WithAttributes(
			attribute.String("error.code", de.Code),
			attribute.String("error.message", de.Message),
		))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Attr converts a loosely typed value into a span attribute
func Attr(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// TraceID returns the trace id of the span in ctx, or "" without one
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

func failsSpan(code string) bool {
	switch code {
	case shared.CodeInternal, shared.CodeDecryptionFailed, shared.CodeConfigDecryption:
		return true
	default:
		return false
	}
}
