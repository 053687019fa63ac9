package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTable is wrapped by validation errors for missing tables.
	ErrUnknownTable = errors.New("unknown table")
	// ErrUnknownColumn is wrapped by validation errors for missing columns.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrOutOfRange is wrapped by validation errors for integers SQLite
	// cannot store.
	ErrOutOfRange = errors.New("integer out of range")
)

// ValidationError reports a reference the catalog cannot resolve.
type ValidationError struct {
	Table  string
	Column string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Table == "" && e.Reason != "":
		return "invalid parameter: " + e.Reason
	case e.Column != "" && e.Reason != "":
		return fmt.Sprintf("invalid column %s.%s: %s", e.Table, e.Column, e.Reason)
	case e.Column != "":
		return fmt.Sprintf("unknown column %s.%s", e.Table, e.Column)
	case e.Reason != "":
		return fmt.Sprintf("invalid table %s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("unknown table %s", e.Table)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// UnknownTable returns a validation error for a missing table.
func UnknownTable(table string) *ValidationError {
	return &ValidationError{Table: table, Err: ErrUnknownTable}
}

// UnknownColumn returns a validation error for a missing column.
func UnknownColumn(table, column string) *ValidationError {
	return &ValidationError{Table: table, Column: column, Err: ErrUnknownColumn}
}

// CompileError reports an expression tree that cannot be turned into SQL.
type CompileError struct {
	Op     string
	Reason string
}

func (e *CompileError) Error() string {
	if e.Op == "" {
		return "failed to compile query: " + e.Reason
	}
	return fmt.Sprintf("failed to compile %s: %s", e.Op, e.Reason)
}

// Errorf returns a CompileError for op.
func Errorf(op, format string, args ...any) *CompileError {
	return &CompileError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
