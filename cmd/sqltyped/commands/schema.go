package commands

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/sqltyped/internal/core/schema/domain"
	"github.com/satishbabariya/sqltyped/internal/ui"
	"github.com/spf13/cobra"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(a *app) *cobra.Command {
	var format, markdown bool

	cmd := &cobra.Command{
		Use:   "schema [table...]",
		Short: "Show the schema catalog",
		Long:  "List tables, views and virtual tables with their column types as the analyzer sees them",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.load()
			if err != nil {
				return err
			}
			tables, err := selectTables(c.Catalog().Tables(), args)
			if err != nil {
				return err
			}
			switch {
			case format:
				fmt.Fprint(ui.Out, c.Formatter().Format(tables))
				return nil
			case markdown:
				return ui.PrintMarkdown(schemaMarkdown(tables))
			}
			return printSchema(tables)
		},
	}

	cmd.Flags().BoolVar(&format, "format", false, "Print the normalized DDL")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Render the catalog as markdown")

	return cmd
}

func selectTables(all []*domain.Table, names []string) ([]*domain.Table, error) {
	if len(names) == 0 {
		return all, nil
	}
	out := make([]*domain.Table, 0, len(names))
	for _, name := range names {
		var found *domain.Table
		for _, t := range all {
			if strings.EqualFold(t.Name, name) {
				found = t
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("unknown table %s", name)
		}
		out = append(out, found)
	}
	return out, nil
}

func kind(t *domain.Table) string {
	switch {
	case t.View:
		return "view"
	case t.Virtual:
		return "virtual table"
	}
	return "table"
}

func columnRow(col *domain.Column) []string {
	typ := string(col.Type)
	if col.Nullable {
		typ += "?"
	}
	var notes []string
	if col.PrimaryKey {
		notes = append(notes, "primary key")
	}
	if col.ForeignTable != "" {
		notes = append(notes, "references "+col.ForeignTable+"("+col.ForeignColumn+")")
	}
	if col.Computed != "" {
		notes = append(notes, "generated")
	}
	if col.HasDefault {
		notes = append(notes, "default "+col.Default)
	}
	return []string{col.Name, typ, col.Declared, strings.Join(notes, ", ")}
}

func printSchema(tables []*domain.Table) error {
	ui.PrintHeader("sqltyped", "Schema")
	for _, t := range tables {
		ui.PrintSection(fmt.Sprintf("%s (%s)", t.Name, kind(t)))
		rows := make([][]string, 0, len(t.Columns))
		for _, col := range t.Columns {
			if col.Hidden {
				continue
			}
			rows = append(rows, columnRow(col))
		}
		if err := ui.PrintTable([]string{"Column", "Type", "Declared", "Notes"}, rows); err != nil {
			return err
		}
	}
	return nil
}

func schemaMarkdown(tables []*domain.Table) string {
	var b strings.Builder
	b.WriteString("# Schema\n")
	for _, t := range tables {
		fmt.Fprintf(&b, "\n## %s\n\n_%s_\n\n", t.Name, kind(t))
		b.WriteString("| Column | Type | Notes |\n|---|---|---|\n")
		for _, col := range t.Columns {
			if col.Hidden {
				continue
			}
			row := columnRow(col)
			fmt.Fprintf(&b, "| %s | `%s` | %s |\n", row[0], row[1], row[3])
		}
	}
	return b.String()
}
