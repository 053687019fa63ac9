// Package telemetry records query executions.
package telemetry

import (
	"context"
	"time"
)

// Telemetry defines the telemetry adapter interface.
type Telemetry interface {
	// RecordQuery records a query execution.
	RecordQuery(ctx context.Context, info QueryInfo)

	// RecordError records an error.
	RecordError(ctx context.Context, info ErrorInfo)

	// Flush flushes any buffered telemetry data.
	Flush(ctx context.Context) error

	// Close closes the telemetry adapter.
	Close(ctx context.Context) error
}

// QueryInfo contains information about a query.
type QueryInfo struct {
	// Table is the main table, empty for literal SQL.
	Table string

	// Operation is the operation type (findMany, insert, query, etc.).
	Operation string

	// SQL is the executed statement.
	SQL string

	// Duration is how long the query took.
	Duration time.Duration

	// Success indicates if the query succeeded.
	Success bool

	// Rows is the number of rows returned or affected.
	Rows int64

	// Typed is false when results were returned without coercion.
	Typed bool
}

// ErrorInfo contains information about an error.
type ErrorInfo struct {
	// Error is the error that occurred.
	Error error

	// Table is the table involved (if applicable).
	Table string

	// Operation is the operation that failed.
	Operation string

	// SQL is the statement (if applicable).
	SQL string
}

// Config holds telemetry configuration.
type Config struct {
	// Type is the telemetry type (noop, logging, stats).
	Type string

	// SlowQuery marks queries at or above this duration as slow in logs.
	SlowQuery time.Duration
}
