// Package formatter renders catalog tables back to DDL.
package formatter

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/sqltyped/internal/core/schema/domain"
)

// Formatter renders tables as CREATE statements.
type Formatter struct{}

// NewFormatter creates a new schema formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Format renders every table, separated by blank lines.
// Views render as tables because their bodies are not retained.
func (f *Formatter) Format(tables []*domain.Table) string {
	var sb strings.Builder
	for i, table := range tables {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(f.FormatTable(table))
	}
	return sb.String()
}

// FormatTable renders a single table.
func (f *Formatter) FormatTable(table *domain.Table) string {
	if table.Virtual {
		return f.formatVirtual(table)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("create table %s (\n", table.Name))

	var lines []string
	for _, column := range table.Columns {
		if column.Hidden {
			continue
		}
		lines = append(lines, "  "+f.formatColumn(column, len(table.PrimaryKeys) == 1))
	}
	if len(table.PrimaryKeys) > 1 {
		lines = append(lines, fmt.Sprintf("  primary key (%s)", strings.Join(table.PrimaryKeys, ", ")))
	}
	sb.WriteString(strings.Join(lines, ",\n"))
	sb.WriteString("\n);")
	return sb.String()
}

func (f *Formatter) formatColumn(column *domain.Column, inlineKey bool) string {
	parts := []string{column.Name}
	declared := column.Declared
	if declared == "" {
		declared = string(column.Type)
	}
	parts = append(parts, declared)
	if column.PrimaryKey && inlineKey {
		parts = append(parts, "primary key")
	} else if !column.Nullable && !column.PrimaryKey {
		parts = append(parts, "not null")
	}
	if column.HasDefault {
		parts = append(parts, "default "+column.Default)
	}
	if column.ForeignTable != "" {
		ref := "references " + column.ForeignTable
		if column.ForeignColumn != "" {
			ref += "(" + column.ForeignColumn + ")"
		}
		parts = append(parts, ref)
	}
	if column.Computed != "" {
		parts = append(parts, "as ("+column.Computed+")")
	}
	return strings.Join(parts, " ")
}

func (f *Formatter) formatVirtual(table *domain.Table) string {
	var args []string
	for _, column := range table.Columns {
		if column.Hidden {
			continue
		}
		args = append(args, column.Name)
	}
	if table.ContentTable != "" {
		args = append(args, "content="+table.ContentTable)
	}
	if table.ContentRowID != "" {
		args = append(args, "content_rowid="+table.ContentRowID)
	}
	return fmt.Sprintf("create virtual table %s using fts5(%s);", table.Name, strings.Join(args, ", "))
}
