package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/ledgerbridge/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedRow struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, RegisterDBTracing(db, config.TelemetryConfig{DBTraceEnabled: false}, zap.NewNop()))

	assert.Nil(t, db.Callback().Query().Get("ledgerbridge:annotate_query"))
}

func TestRegisterDBTracing_CreatesQuerySpans(t *testing.T) {
	rec := recordSpans(t)
	db := openTestDB(t)

	require.NoError(t, RegisterDBTracing(db, config.TelemetryConfig{DBTraceEnabled: true}, zap.NewNop()))
	assert.NotNil(t, db.Callback().Query().Get("ledgerbridge:annotate_query"))

	ctx, span := StartServiceSpan(context.Background(), "test", "query")
	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{Name: "a"}).Error)
	End(span, nil)

	assert.GreaterOrEqual(t, len(rec.Ended()), 2)
}

func TestAnnotateSpan(t *testing.T) {
	rec := recordSpans(t)
	ctx, span := StartServiceSpan(context.Background(), "test", "annotate")
	ctx = context.WithValue(ctx, queryStartKey{}, time.Now().Add(-time.Second))

	db := &gorm.DB{Statement: &gorm.Statement{Context: ctx, Table: "transfer_queue_entries", DB: &gorm.DB{RowsAffected: 2}}}
	annotateSpan(100 * time.Millisecond)(db)
	End(span, nil)

	got := rec.Ended()[0]
	assert.Contains(t, got.Attributes(), attribute.String("db.sql.table", "transfer_queue_entries"))
	assert.Contains(t, got.Attributes(), attribute.Int64("db.rows_affected", 2))
	assert.Contains(t, got.Attributes(), attribute.Bool("db.slow_query", true))
	require.Len(t, got.Events(), 1)
	assert.Equal(t, "slow_query", got.Events()[0].Name)
}

func TestAnnotateSpan_IgnoresRecordNotFound(t *testing.T) {
	rec := recordSpans(t)
	ctx, span := StartServiceSpan(context.Background(), "test", "lookup")

	db := &gorm.DB{Statement: &gorm.Statement{Context: ctx}, Error: gorm.ErrRecordNotFound}
	annotateSpan(time.Second)(db)
	End(span, nil)

	assert.Empty(t, rec.Ended()[0].Events())
}
