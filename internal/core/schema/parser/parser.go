// Package parser implements the DDL parser behind the schema catalog.
package parser

import (
	"strings"

	"github.com/satishbabariya/sqltyped/internal/core/schema/domain"
	"github.com/satishbabariya/sqltyped/internal/core/sqltext/scan"
)

// Definition is one parsed DDL statement.
type Definition struct {
	Table *domain.Table
	// ViewSQL is the body of a view or of "create table ... as select".
	ViewSQL string
	// ViewColumns is the optional explicit column list of a view.
	ViewColumns []string
	DDL         string
}

// Parser parses the supported DDL subset.
type Parser struct{}

// NewParser creates a new DDL parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses every statement of a DDL script. Index, trigger, drop and
// pragma statements are skipped; anything else unsupported fails with a
// *domain.SchemaError.
func (p *Parser) Parse(script string) ([]Definition, error) {
	statements, err := scan.Split(script)
	if err != nil {
		return nil, &domain.SchemaError{DDL: script, Reason: err.Error()}
	}
	var defs []Definition
	for _, stmt := range statements {
		def, ok, err := p.ParseStatement(stmt)
		if err != nil {
			return nil, err
		}
		if ok {
			defs = append(defs, def)
		}
	}
	return defs, nil
}

// ParseStatement parses a single statement. The boolean result is false
// for statements that define no table.
func (p *Parser) ParseStatement(ddl string) (Definition, bool, error) {
	c, err := scan.NewCursor(ddl)
	if err != nil {
		return Definition{}, false, &domain.SchemaError{DDL: ddl, Reason: err.Error()}
	}
	fail := func(err error) (Definition, bool, error) {
		return Definition{}, false, &domain.SchemaError{DDL: ddl, Reason: err.Error()}
	}

	switch {
	case c.Current().Is("drop", "pragma", "insert", "begin", "commit", "end", "analyze", "vacuum", "alter"):
		return Definition{}, false, nil
	case !c.Accept("create"):
		return fail(c.Errorf("unsupported statement"))
	}

	c.Accept("temp")
	c.Accept("temporary")

	switch {
	case c.Current().Is("index", "unique", "trigger"):
		return Definition{}, false, nil
	case c.Accept("table"):
		def, err := p.parseTable(c)
		if err != nil {
			return fail(err)
		}
		def.DDL = ddl
		return def, true, nil
	case c.Accept("view"):
		def, err := p.parseView(c)
		if err != nil {
			return fail(err)
		}
		def.DDL = ddl
		return def, true, nil
	case c.Accept("virtual", "table"):
		def, err := p.parseVirtual(c)
		if err != nil {
			return fail(err)
		}
		def.DDL = ddl
		return def, true, nil
	}
	return fail(c.Errorf("unsupported create statement"))
}

func parseQualifiedName(c *scan.Cursor) (string, error) {
	c.Accept("if", "not", "exists")
	name, err := c.ExpectName()
	if err != nil {
		return "", err
	}
	if c.AcceptPunct(".") {
		return c.ExpectName()
	}
	return name, nil
}

func (p *Parser) parseTable(c *scan.Cursor) (Definition, error) {
	name, err := parseQualifiedName(c)
	if err != nil {
		return Definition{}, err
	}
	if c.Accept("as") {
		return Definition{
			Table:   &domain.Table{Name: name},
			ViewSQL: c.Text(c.Pos(), endOfStatement(c)),
		}, nil
	}

	start := c.Pos()
	if _, err := c.SkipGroup(); err != nil {
		return Definition{}, err
	}
	items := splitItems(c, start+1, c.Pos()-1)

	table := &domain.Table{Name: name}
	for _, item := range items {
		if err := p.parseTableItem(c, table, item); err != nil {
			return Definition{}, err
		}
	}
	if len(table.Columns) == 0 {
		return Definition{}, c.Errorf("table %s has no columns", name)
	}

	// Table options: strict, without rowid.
	for !c.Done() {
		switch {
		case c.Accept("strict"), c.Accept("without", "rowid"), c.AcceptPunct(","), c.AcceptPunct(";"):
		default:
			return Definition{}, c.Errorf("unsupported table option")
		}
	}

	if len(table.PrimaryKeys) == 0 {
		table.Columns = append(table.Columns, &domain.Column{
			Name:       "rowid",
			Type:       domain.TypeInteger,
			Declared:   "integer",
			PrimaryKey: true,
			Hidden:     true,
		})
		table.PrimaryKeys = []string{"rowid"}
	}
	return Definition{Table: table}, nil
}

// span is a half-open token range.
type span struct{ from, to int }

// splitItems splits tokens [from, to) on top-level commas.
func splitItems(c *scan.Cursor, from, to int) []span {
	var items []span
	depth := 0
	start := from
	for i := from; i < to; i++ {
		t := c.Token(i)
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case t.IsPunct(",") && depth == 0:
			items = append(items, span{start, i})
			start = i + 1
		}
	}
	if start < to {
		items = append(items, span{start, to})
	}
	return items
}

func endOfStatement(c *scan.Cursor) int {
	end := c.Pos()
	for !c.Token(end).IsPunct(";") && c.Token(end).Kind != scan.EOF {
		end++
	}
	return end
}

func (p *Parser) parseTableItem(c *scan.Cursor, table *domain.Table, item span) error {
	sub, err := scan.NewCursor(c.Text(item.from, item.to))
	if err != nil {
		return err
	}
	if sub.Accept("constraint") {
		if _, err := sub.ExpectName(); err != nil {
			return err
		}
	}
	switch {
	case sub.Accept("primary", "key"):
		cols, err := nameList(sub)
		if err != nil {
			return err
		}
		table.PrimaryKeys = nil
		for _, col := range cols {
			column := table.Column(col)
			if column == nil {
				return sub.Errorf("primary key column %s does not exist", col)
			}
			column.PrimaryKey = true
			column.Nullable = false
			table.PrimaryKeys = append(table.PrimaryKeys, column.Name)
		}
		return nil
	case sub.Accept("foreign", "key"):
		cols, err := nameList(sub)
		if err != nil {
			return err
		}
		if err := sub.Expect("references"); err != nil {
			return err
		}
		foreignTable, err := sub.ExpectName()
		if err != nil {
			return err
		}
		var foreignCols []string
		if sub.Current().IsPunct("(") {
			if foreignCols, err = nameList(sub); err != nil {
				return err
			}
		}
		for i, col := range cols {
			column := table.Column(col)
			if column == nil {
				return sub.Errorf("foreign key column %s does not exist", col)
			}
			column.ForeignTable = foreignTable
			if i < len(foreignCols) {
				column.ForeignColumn = foreignCols[i]
			}
		}
		return nil
	case sub.Current().Is("unique", "check"):
		return nil
	}

	column, err := parseColumn(sub)
	if err != nil {
		return err
	}
	if column.PrimaryKey {
		table.PrimaryKeys = append(table.PrimaryKeys, column.Name)
	}
	table.Columns = append(table.Columns, column)
	return nil
}

func nameList(c *scan.Cursor) ([]string, error) {
	if err := c.ExpectPunct("("); err != nil {
		return nil, err
	}
	var names []string
	for {
		name, err := c.ExpectName()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		c.Accept("collate")
		c.Accept("asc")
		c.Accept("desc")
		if c.AcceptPunct(")") {
			return names, nil
		}
		if err := c.ExpectPunct(","); err != nil {
			return nil, err
		}
	}
}

var constraintWords = []string{
	"constraint", "primary", "not", "null", "unique", "check", "default",
	"collate", "references", "generated", "as",
}

func parseColumn(c *scan.Cursor) (*domain.Column, error) {
	name, err := c.ExpectName()
	if err != nil {
		return nil, err
	}
	column := &domain.Column{Name: name, Nullable: true}

	// Declared type: every token up to the first constraint keyword.
	start := c.Pos()
	for !c.Done() && !c.Current().Is(constraintWords...) {
		if c.Current().IsPunct("(") {
			if _, err := c.SkipGroup(); err != nil {
				return nil, err
			}
			continue
		}
		c.Next()
	}
	column.Declared = c.Text(start, c.Pos())
	column.Type = domain.TypeFromDeclared(column.Declared)

	for !c.Done() {
		switch {
		case c.Accept("constraint"):
			if _, err := c.ExpectName(); err != nil {
				return nil, err
			}
		case c.Accept("primary", "key"):
			column.PrimaryKey = true
			column.Nullable = false
			c.Accept("asc")
			c.Accept("desc")
			skipConflict(c)
			c.Accept("autoincrement")
		case c.Accept("not", "null"):
			column.Nullable = false
			skipConflict(c)
		case c.Accept("null"):
		case c.Accept("unique"):
			skipConflict(c)
		case c.Accept("check"):
			if _, err := c.SkipGroup(); err != nil {
				return nil, err
			}
		case c.Accept("default"):
			text, err := defaultValue(c)
			if err != nil {
				return nil, err
			}
			column.Default = text
			column.HasDefault = true
		case c.Accept("collate"):
			if _, err := c.ExpectName(); err != nil {
				return nil, err
			}
		case c.Accept("references"):
			if err := parseReference(c, column); err != nil {
				return nil, err
			}
		case c.Accept("generated", "always", "as"), c.Accept("as"):
			from := c.Pos()
			if _, err := c.SkipGroup(); err != nil {
				return nil, err
			}
			column.Computed = c.Text(from+1, c.Pos()-1)
			c.Accept("stored")
			c.Accept("virtual")
		default:
			return nil, c.Errorf("unsupported column constraint")
		}
	}
	return column, nil
}

func skipConflict(c *scan.Cursor) {
	if c.Accept("on", "conflict") {
		c.Next()
	}
}

func defaultValue(c *scan.Cursor) (string, error) {
	start := c.Pos()
	switch t := c.Current(); {
	case t.IsPunct("("):
		if _, err := c.SkipGroup(); err != nil {
			return "", err
		}
	case t.IsPunct("-"), t.IsPunct("+"):
		c.Next()
		c.Next()
	case t.Kind == scan.EOF:
		return "", c.Errorf("missing default value")
	default:
		c.Next()
	}
	return c.Text(start, c.Pos()), nil
}

func parseReference(c *scan.Cursor, column *domain.Column) error {
	table, err := c.ExpectName()
	if err != nil {
		return err
	}
	column.ForeignTable = table
	if c.Current().IsPunct("(") {
		cols, err := nameList(c)
		if err != nil {
			return err
		}
		column.ForeignColumn = cols[0]
	}
	// Actions and deferral clauses carry no type information.
	for !c.Done() && !c.Current().Is(constraintWords...) {
		if c.Current().Is("not") && c.Peek(1).Is("deferrable") {
			c.Next()
		}
		c.Next()
	}
	return nil
}

func (p *Parser) parseView(c *scan.Cursor) (Definition, error) {
	name, err := parseQualifiedName(c)
	if err != nil {
		return Definition{}, err
	}
	var columns []string
	if c.Current().IsPunct("(") {
		if columns, err = nameList(c); err != nil {
			return Definition{}, err
		}
	}
	if err := c.Expect("as"); err != nil {
		return Definition{}, err
	}
	return Definition{
		Table:       &domain.Table{Name: name, View: true},
		ViewSQL:     c.Text(c.Pos(), endOfStatement(c)),
		ViewColumns: columns,
	}, nil
}

func (p *Parser) parseVirtual(c *scan.Cursor) (Definition, error) {
	name, err := parseQualifiedName(c)
	if err != nil {
		return Definition{}, err
	}
	if err := c.Expect("using"); err != nil {
		return Definition{}, err
	}
	module := c.Next()
	if !strings.EqualFold(module.Text, "fts5") {
		return Definition{}, c.Errorf("unsupported virtual table module %s", module.Text)
	}
	start := c.Pos()
	if _, err := c.SkipGroup(); err != nil {
		return Definition{}, err
	}

	table := &domain.Table{Name: name, Virtual: true}
	for _, item := range splitItems(c, start+1, c.Pos()-1) {
		text := c.Text(item.from, item.to)
		if key, value, ok := strings.Cut(text, "="); ok {
			value = scan.Unquote(strings.TrimSpace(value))
			switch strings.ToLower(strings.TrimSpace(key)) {
			case "content":
				table.ContentTable = value
			case "content_rowid":
				table.ContentRowID = value
			}
			continue
		}
		first := c.Token(item.from)
		table.Columns = append(table.Columns, &domain.Column{
			Name:     first.Name(),
			Type:     domain.TypeText,
			Declared: "text",
		})
	}
	table.Columns = append(table.Columns, &domain.Column{
		Name:       "rowid",
		Type:       domain.TypeInteger,
		Declared:   "integer",
		PrimaryKey: true,
		Hidden:     true,
	})
	table.PrimaryKeys = []string{"rowid"}
	return Definition{Table: table}, nil
}
