// Package domain contains the core entities of the schema catalog.
package domain

import (
	"fmt"
	"strings"
)

// ColumnType represents the logical type of a column or expression.
type ColumnType string

const (
	// TypeInteger is a 64-bit integer.
	TypeInteger ColumnType = "integer"
	// TypeReal is a floating point number.
	TypeReal ColumnType = "real"
	// TypeText is a text value.
	TypeText ColumnType = "text"
	// TypeBlob is a byte slice.
	TypeBlob ColumnType = "blob"
	// TypeJSON is a JSON document stored as text or blob.
	TypeJSON ColumnType = "json"
	// TypeDate is an ISO-8601 timestamp stored as text.
	TypeDate ColumnType = "date"
	// TypeBoolean is stored as integer 0 or 1.
	TypeBoolean ColumnType = "boolean"
	// TypeAny means the type could not be narrowed.
	TypeAny ColumnType = "any"
	// TypeNone is the type of statements that return nothing.
	TypeNone ColumnType = "none"
)

// Valid reports whether t is one of the known column types.
func (t ColumnType) Valid() bool {
	switch t {
	case TypeInteger, TypeReal, TypeText, TypeBlob, TypeJSON, TypeDate, TypeBoolean, TypeAny, TypeNone:
		return true
	}
	return false
}

// Numeric reports whether t holds numbers.
func (t ColumnType) Numeric() bool {
	return t == TypeInteger || t == TypeReal || t == TypeBoolean
}

// TypeFromDeclared maps a declared column type to a ColumnType.
// Names understood by the coercer win over SQLite affinity rules.
func TypeFromDeclared(declared string) ColumnType {
	d := strings.ToLower(strings.TrimSpace(declared))
	switch {
	case d == "":
		return TypeBlob
	case d == "any":
		return TypeAny
	case strings.Contains(d, "json"):
		return TypeJSON
	case strings.HasPrefix(d, "bool"):
		return TypeBoolean
	case strings.HasPrefix(d, "date"), strings.HasPrefix(d, "time"):
		return TypeDate
	case strings.Contains(d, "int"):
		return TypeInteger
	case strings.Contains(d, "char"), strings.Contains(d, "clob"), strings.Contains(d, "text"):
		return TypeText
	case strings.Contains(d, "blob"):
		return TypeBlob
	case strings.Contains(d, "real"), strings.Contains(d, "floa"), strings.Contains(d, "doub"):
		return TypeReal
	case strings.Contains(d, "numeric"), strings.Contains(d, "decimal"):
		return TypeReal
	}
	return TypeAny
}

// Column represents a column of a table or view.
type Column struct {
	Name          string
	Type          ColumnType
	Declared      string
	Nullable      bool
	PrimaryKey    bool
	ForeignTable  string
	ForeignColumn string
	Default       string
	HasDefault    bool
	Computed      string
	// Hidden columns are not part of "select *".
	Hidden bool
}

// Table represents a table, view or virtual table.
type Table struct {
	Name         string
	Columns      []*Column
	PrimaryKeys  []string
	Virtual      bool
	View         bool
	ContentTable string
	ContentRowID string
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the single primary key column, or nil for composite keys.
func (t *Table) PrimaryKey() *Column {
	if len(t.PrimaryKeys) != 1 {
		return nil
	}
	return t.Column(t.PrimaryKeys[0])
}

// ForeignKey is a column-level link between two tables.
type ForeignKey struct {
	Table         string
	Column        string
	ForeignTable  string
	ForeignColumn string
}

// SchemaError reports DDL outside the supported subset.
type SchemaError struct {
	DDL    string
	Reason string
}

func (e *SchemaError) Error() string {
	ddl := strings.TrimSpace(e.DDL)
	if len(ddl) > 120 {
		ddl = ddl[:120] + "..."
	}
	return fmt.Sprintf("schema error: %s: %s", e.Reason, ddl)
}
