package telemetry

import (
	"context"
	"log/slog"
	"time"
)

// LoggingTelemetry writes one record per query to a slog logger.
type LoggingTelemetry struct {
	logger    *slog.Logger
	slowQuery time.Duration
}

// NewLoggingTelemetry creates a logging adapter. Queries slower than
// slowQuery are logged at warn level; zero disables that.
func NewLoggingTelemetry(logger *slog.Logger, slowQuery time.Duration) *LoggingTelemetry {
	return &LoggingTelemetry{logger: logger, slowQuery: slowQuery}
}

// RecordQuery logs the query at debug level.
func (l *LoggingTelemetry) RecordQuery(ctx context.Context, info QueryInfo) {
	level := slog.LevelDebug
	if l.slowQuery > 0 && info.Duration >= l.slowQuery {
		level = slog.LevelWarn
	}
	l.logger.LogAttrs(ctx, level, "query",
		slog.String("table", info.Table),
		slog.String("operation", info.Operation),
		slog.String("sql", info.SQL),
		slog.Duration("duration", info.Duration),
		slog.Bool("success", info.Success),
		slog.Int64("rows", info.Rows),
		slog.Bool("typed", info.Typed),
	)
}

// RecordError logs the error.
func (l *LoggingTelemetry) RecordError(ctx context.Context, info ErrorInfo) {
	l.logger.LogAttrs(ctx, slog.LevelError, "query failed",
		slog.String("table", info.Table),
		slog.String("operation", info.Operation),
		slog.String("sql", info.SQL),
		slog.Any("error", info.Error),
	)
}

// Flush does nothing; records are written immediately.
func (l *LoggingTelemetry) Flush(ctx context.Context) error {
	return nil
}

// Close does nothing.
func (l *LoggingTelemetry) Close(ctx context.Context) error {
	return nil
}

var _ Telemetry = (*LoggingTelemetry)(nil)
