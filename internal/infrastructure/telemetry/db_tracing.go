package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerbridge/backend/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSlowQuery = 200 * time.Millisecond

type queryStartKey struct{}

// registrar matches gorm's unexported callback type
type registrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

// RegisterDBTracing installs otelgorm on db plus a pair of callbacks that
// tag the current span with table, row count and a slow-query marker.
// Query variables are kept out of spans unless DBLogFullSQL is set.
func RegisterDBTracing(db *gorm.DB, cfg config.TelemetryConfig, log *zap.Logger) error {
	if !cfg.DBTraceEnabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName("ledgerbridge")}
	if !cfg.DBLogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	slow := cfg.DBSlowQueryThresh
	if slow <= 0 {
		slow = defaultSlowQuery
	}
	if err := registerQueryTiming(db, slow); err != nil {
		return err
	}

	log.Info("database tracing enabled",
		zap.Bool("full_sql", cfg.DBLogFullSQL),
		zap.Duration("slow_query_threshold", slow),
	)
	return nil
}

func registerQueryTiming(db *gorm.DB, slow time.Duration) error {
	cb := db.Callback()
	after := annotateSpan(slow)
	return errors.Join(
		hookPair("create", cb.Create().Before, cb.Create().After, after),
		hookPair("query", cb.Query().Before, cb.Query().After, after),
		hookPair("update", cb.Update().Before, cb.Update().After, after),
		hookPair("delete", cb.Delete().Before, cb.Delete().After, after),
		hookPair("row", cb.Row().Before, cb.Row().After, after),
		hookPair("raw", cb.Raw().Before, cb.Raw().After, after),
	)
}

func hookPair[R registrar](op string, before, after func(string) R, annotate func(*gorm.DB)) error {
	if err := before("gorm:"+op).Register("ledgerbridge:start_"+op, markQueryStart); err != nil {
		return err
	}
	return after("gorm:"+op).Register("ledgerbridge:annotate_"+op, annotate)
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func annotateSpan(slow time.Duration) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if db.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
		}
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			span.RecordError(db.Error)
		}

		start, ok := ctx.Value(queryStartKey{}).(time.Time)
		if !ok {
			return
		}
		if elapsed := time.Since(start); elapsed > slow {
			span.SetAttributes(attribute.Bool("db.slow_query", true))
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", slow.Milliseconds()),
			))
		}
	}
}
