package sqltext

import (
	"errors"
	"fmt"

	"github.com/satishbabariya/sqltyped/internal/core/sqltext/scan"
)

// ErrUnsupported marks statements outside the analyzed grammar.
var ErrUnsupported = errors.New("unsupported statement")

// AnalyzeError reports a statement whose result types could not be
// inferred. Callers are expected to fall back to untyped execution.
type AnalyzeError struct {
	SQL string
	// Pos is the byte offset of the failure, or -1 when unknown.
	Pos    int
	Reason string
	Err    error
}

func (e *AnalyzeError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("failed to analyze query at offset %d: %s", e.Pos, e.Reason)
	}
	return fmt.Sprintf("failed to analyze query: %s", e.Reason)
}

func (e *AnalyzeError) Unwrap() error {
	return e.Err
}

func newAnalyzeError(sql string, err error) *AnalyzeError {
	var ae *AnalyzeError
	if errors.As(err, &ae) {
		return ae
	}
	out := &AnalyzeError{SQL: sql, Pos: -1, Reason: err.Error(), Err: err}
	var se *scan.SyntaxError
	if errors.As(err, &se) {
		out.Pos = se.Offset
		out.Reason = se.Msg + " near " + fmt.Sprintf("%q", se.Near)
	}
	return out
}

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}
