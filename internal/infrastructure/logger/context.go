package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type scopeKey struct{}

// scope is the request metadata carried next to the logger
type scope struct {
	logger    *zap.Logger
	requestID string
	tenantID  string
	actor     string
}

func scopeFrom(ctx context.Context) scope {
	if s, ok := ctx.Value(scopeKey{}).(scope); ok {
		return s
	}
	return scope{}
}

// WithContext attaches logger to ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	s := scopeFrom(ctx)
	s.logger = logger
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the logger attached to ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l := scopeFrom(ctx).logger; l != nil {
		return l
	}
	return zap.NewNop()
}

// WithRequestID records the request id and tags the carried logger with it
func WithRequestID(ctx context.Context, requestID string) context.Context {
	s := scopeFrom(ctx)
	s.requestID = requestID
	if s.logger != nil {
		s.logger = s.logger.With(zap.String("request_id", requestID))
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithTenantID records the tenant and tags the carried logger with it
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	s := scopeFrom(ctx)
	s.tenantID = tenantID
	if s.logger != nil {
		s.logger = s.logger.With(zap.String("tenant_id", tenantID))
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithActor records who performs the request
func WithActor(ctx context.Context, actor string) context.Context {
	s := scopeFrom(ctx)
	s.actor = actor
	if s.logger != nil {
		s.logger = s.logger.With(zap.String("actor", actor))
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// RequestID returns the request id carried by ctx
func RequestID(ctx context.Context) string { return scopeFrom(ctx).requestID }

// TenantID returns the tenant id carried by ctx
func TenantID(ctx context.Context) string { return scopeFrom(ctx).tenantID }

// Actor returns the actor carried by ctx
func Actor(ctx context.Context) string { return scopeFrom(ctx).actor }

// L returns the context logger with trace_id and span_id of the active span.
//
//	logger.L(ctx).Info("entry approved", zap.String("entry_id", id.String()))
func L(ctx context.Context) *zap.Logger {
	l := FromContext(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// FromContextOr returns the logger attached to ctx, or fallback when none is
func FromContextOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l := scopeFrom(ctx).logger; l != nil {
		return l
	}
	return fallback
}
