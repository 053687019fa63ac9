// Package schema provides the schema catalog shared by the analyzer and
// the expression compiler.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/satishbabariya/sqltyped/internal/core/schema/domain"
	"github.com/satishbabariya/sqltyped/internal/core/schema/parser"
)

// ViewAnalyzer infers the columns of a view body.
type ViewAnalyzer interface {
	AnalyzeView(sql string) ([]domain.ParsedColumn, error)
}

// Catalog stores table schemas built from DDL. Tables are immutable once
// registered; loading more DDL only adds or replaces whole tables.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]*domain.Table
	order  []string
	views  ViewAnalyzer
	parser *parser.Parser
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		tables: make(map[string]*domain.Table),
		parser: parser.NewParser(),
	}
}

// SetViewAnalyzer sets the analyzer used to type view bodies.
func (c *Catalog) SetViewAnalyzer(v ViewAnalyzer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views = v
}

// Load parses a DDL script and registers every table it defines.
// Statements are registered in order so views can reference earlier tables.
func (c *Catalog) Load(ddl string) error {
	defs, err := c.parser.Parse(ddl)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if def.ViewSQL != "" {
			if err := c.resolveView(&def); err != nil {
				return err
			}
		}
		c.Add(def.Table)
	}
	return nil
}

func (c *Catalog) resolveView(def *parser.Definition) error {
	c.mu.RLock()
	views := c.views
	c.mu.RUnlock()
	if views == nil {
		return &domain.SchemaError{DDL: def.DDL, Reason: "no analyzer configured for views"}
	}
	parsed, err := views.AnalyzeView(def.ViewSQL)
	if err != nil {
		return &domain.SchemaError{DDL: def.DDL, Reason: err.Error()}
	}
	if len(def.ViewColumns) > 0 && len(def.ViewColumns) != len(parsed) {
		return &domain.SchemaError{DDL: def.DDL, Reason: "view column list does not match its select"}
	}
	for i, p := range parsed {
		name := p.Name
		if len(def.ViewColumns) > 0 {
			name = def.ViewColumns[i]
		}
		def.Table.Columns = append(def.Table.Columns, &domain.Column{
			Name:     name,
			Type:     p.Type,
			Declared: string(p.Type),
			Nullable: p.Nullable,
		})
	}
	return nil
}

// Add registers a table, replacing any table of the same name.
func (c *Catalog) Add(table *domain.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(table.Name)
	if _, exists := c.tables[key]; !exists {
		c.order = append(c.order, key)
	}
	c.tables[key] = table
}

// Table returns the named table.
func (c *Catalog) Table(name string) (*domain.Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[strings.ToLower(name)]
	return t, ok
}

// Column returns a column of a table.
func (c *Catalog) Column(table, column string) (*domain.Column, error) {
	t, ok := c.Table(table)
	if !ok {
		return nil, fmt.Errorf("table %s not found", table)
	}
	col := t.Column(column)
	if col == nil {
		return nil, fmt.Errorf("column %s.%s not found", table, column)
	}
	return col, nil
}

// Tables returns all tables in registration order.
func (c *Catalog) Tables() []*domain.Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tables := make([]*domain.Table, 0, len(c.order))
	for _, key := range c.order {
		tables = append(tables, c.tables[key])
	}
	return tables
}

// ForeignKeys returns every foreign key that starts or ends at table,
// sorted for stable output.
func (c *Catalog) ForeignKeys(table string) []domain.ForeignKey {
	var keys []domain.ForeignKey
	for _, t := range c.Tables() {
		for _, col := range t.Columns {
			if col.ForeignTable == "" {
				continue
			}
			if !strings.EqualFold(t.Name, table) && !strings.EqualFold(col.ForeignTable, table) {
				continue
			}
			fk := domain.ForeignKey{
				Table:         t.Name,
				Column:        col.Name,
				ForeignTable:  col.ForeignTable,
				ForeignColumn: col.ForeignColumn,
			}
			if fk.ForeignColumn == "" {
				if target, ok := c.Table(col.ForeignTable); ok && len(target.PrimaryKeys) == 1 {
					fk.ForeignColumn = target.PrimaryKeys[0]
				}
			}
			keys = append(keys, fk)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].Table != keys[j].Table {
			return keys[i].Table < keys[j].Table
		}
		return keys[i].Column < keys[j].Column
	})
	return keys
}
