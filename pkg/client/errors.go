package client

import (
	"errors"

	"github.com/satishbabariya/sqltyped/internal/adapters/database/sqlite"
	querydomain "github.com/satishbabariya/sqltyped/internal/core/query/domain"
	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
	"github.com/satishbabariya/sqltyped/internal/core/sqltext"
)

// Error types returned by the client.
type (
	// SchemaError reports DDL outside the supported subset.
	SchemaError = schemadomain.SchemaError
	// AnalyzeError reports literal SQL whose result types could not be
	// inferred. Such statements still run, untyped.
	AnalyzeError = sqltext.AnalyzeError
	// ValidationError reports an unknown table or column.
	ValidationError = querydomain.ValidationError
	// CompileError reports a query that cannot be turned into SQL.
	CompileError = querydomain.CompileError
)

var (
	// ErrNotConnected is returned by calls that need a connection before
	// Connect.
	ErrNotConnected = sqlite.ErrNotConnected

	// ErrUnknownTable is wrapped by validation errors for missing tables.
	ErrUnknownTable = querydomain.ErrUnknownTable

	// ErrUnknownColumn is wrapped by validation errors for missing columns.
	ErrUnknownColumn = querydomain.ErrUnknownColumn
)

// IsSchemaError checks if an error is a schema error.
func IsSchemaError(err error) bool {
	var target *SchemaError
	return errors.As(err, &target)
}

// IsAnalyzeError checks if an error is an analysis error.
func IsAnalyzeError(err error) bool {
	var target *AnalyzeError
	return errors.As(err, &target)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsCompileError checks if an error is a compile error.
func IsCompileError(err error) bool {
	var target *CompileError
	return errors.As(err, &target)
}
