package telemetry

import (
	"context"
	"fmt"

	"github.com/ledgerbridge/backend/internal/infrastructure/config"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogExporter ships zap records to the OTLP collector next to the regular
// log output. Disabled, it leaves loggers untouched.
type LogExporter struct {
	provider *sdklog.LoggerProvider
	name     string
	logger   *zap.Logger
}

// NewLogExporter builds the OTLP/gRPC log pipeline when both telemetry and
// log export are enabled
func NewLogExporter(ctx context.Context, cfg config.TelemetryConfig, log *zap.Logger) (*LogExporter, error) {
	e := &LogExporter{name: cfg.ServiceName, logger: log}
	if !cfg.Enabled || !cfg.LogsEnabled {
		return e, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp log exporter: %w", err)
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("build log resource: %w", err)
	}

	e.provider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(e.provider)
	log.Info("log export enabled", zap.String("collector_endpoint", cfg.CollectorEndpoint))
	return e, nil
}

// Bridge returns base with a second core that forwards records at or above
// min to OpenTelemetry
func (e *LogExporter) Bridge(base *zap.Logger, min zapcore.Level) *zap.Logger {
	if e.provider == nil {
		return base
	}
	otelCore := &minLevelCore{
		Core: otelzap.NewCore(e.name, otelzap.WithLoggerProvider(e.provider)),
		min:  min,
	}
	return base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, otelCore)
	}))
}

// Shutdown flushes buffered records
func (e *LogExporter) Shutdown(ctx context.Context) error {
	if e.provider == nil {
		return nil
	}
	if err := e.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown log exporter: %w", err)
	}
	return nil
}

// minLevelCore drops entries below min; the otelzap core accepts every level
type minLevelCore struct {
	zapcore.Core
	min zapcore.Level
}

func (c *minLevelCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && c.Core.Enabled(lvl)
}

func (c *minLevelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}
	return c.Core.Check(ent, ce)
}

func (c *minLevelCore) With(fields []zapcore.Field) zapcore.Core {
	return &minLevelCore{Core: c.Core.With(fields), min: c.min}
}
