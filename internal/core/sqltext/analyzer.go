// Package sqltext infers the result columns of hand-written SQL against a
// schema catalog without executing it.
package sqltext

import (
	"sort"
	"strings"

	"github.com/satishbabariya/sqltyped/internal/core/schema"
	"github.com/satishbabariya/sqltyped/internal/core/schema/domain"
)

// Result is the analysis of one statement.
type Result struct {
	Kind    StatementKind
	Columns []domain.ParsedColumn
	// Params lists named parameters in order of first appearance.
	// Positional "?" parameters appear once per occurrence.
	Params []string
	// Tables are the catalog tables the statement reads or writes.
	Tables []string
	// Compound is set when branches after a top-level union,
	// intersect or except were skipped. Only the first branch is typed.
	Compound bool
}

// ColumnTypes returns the column types keyed by output name.
func (r *Result) ColumnTypes() map[string]domain.ColumnType {
	types := make(map[string]domain.ColumnType, len(r.Columns))
	for _, c := range r.Columns {
		types[c.Name] = c.Type
	}
	return types
}

// Analyzer infers result types of SQL statements.
type Analyzer struct {
	catalog *schema.Catalog
}

type analysis struct {
	catalog *schema.Catalog
	tables  map[string]bool
}

// NewAnalyzer creates an analyzer over catalog and registers itself as the
// catalog's view analyzer.
func NewAnalyzer(catalog *schema.Catalog) *Analyzer {
	a := &Analyzer{catalog: catalog}
	catalog.SetViewAnalyzer(a)
	return a
}

// LoadCatalog builds a catalog from a DDL script, typing views with a new
// analyzer.
func LoadCatalog(ddl string) (*schema.Catalog, error) {
	catalog := schema.NewCatalog()
	NewAnalyzer(catalog)
	if err := catalog.Load(ddl); err != nil {
		return nil, err
	}
	return catalog, nil
}

// Catalog returns the analyzer's catalog.
func (a *Analyzer) Catalog() *schema.Catalog {
	return a.catalog
}

// Analyze returns the result columns of a statement.
func (a *Analyzer) Analyze(sql string) ([]domain.ParsedColumn, error) {
	res, err := a.AnalyzeStatement(sql)
	if err != nil {
		return nil, err
	}
	return res.Columns, nil
}

// AnalyzeView types the body of a view.
func (a *Analyzer) AnalyzeView(sql string) ([]domain.ParsedColumn, error) {
	res, err := a.AnalyzeStatement(sql)
	if err != nil {
		return nil, err
	}
	if res.Kind != KindSelect {
		return nil, newAnalyzeError(sql, unsupported("view body must be a select"))
	}
	return res.Columns, nil
}

// AnalyzeStatement parses and types a single statement. Failures are
// returned as *AnalyzeError.
func (a *Analyzer) AnalyzeStatement(sql string) (*Result, error) {
	stmt, err := parse(sql)
	if err != nil {
		return nil, newAnalyzeError(sql, err)
	}
	an := &analysis{catalog: a.catalog, tables: make(map[string]bool)}
	root := an.newScope(nil)
	if err := root.addCTEs(stmt.with); err != nil {
		return nil, newAnalyzeError(sql, err)
	}

	res := &Result{Kind: stmt.kind, Params: stmt.params}
	switch stmt.kind {
	case KindSelect:
		res.Columns, err = root.selectColumns(stmt.sel)
		res.Compound = compound(stmt.sel)
	case KindInsert, KindUpdate, KindDelete:
		res.Columns, err = root.returningColumns(stmt.write)
	case KindPragma:
		res.Columns, err = pragmaResult(stmt.pragma)
	}
	if err != nil {
		return nil, newAnalyzeError(sql, err)
	}
	for name := range an.tables {
		res.Tables = append(res.Tables, name)
	}
	sort.Strings(res.Tables)
	return res, nil
}

func compound(sel *selectStmt) bool {
	if sel.compound {
		return true
	}
	for _, c := range sel.with {
		if compound(c.body) {
			return true
		}
	}
	return false
}

func (s *scope) returningColumns(w *writeStmt) ([]domain.ParsedColumn, error) {
	r, ok := s.lookup(w.table)
	if !ok {
		return nil, unsupported("unknown table %s", w.table)
	}
	r.alias = w.alias
	sc := s.an.newScope(s)
	sc.rels = append(sc.rels, r)
	var columns []domain.ParsedColumn
	for _, rc := range w.returning {
		if rc.star {
			cols, err := sc.expandStar(rc.starTable)
			if err != nil {
				return nil, err
			}
			columns = append(columns, cols...)
			continue
		}
		t, err := sc.infer(rc.x)
		if err != nil {
			return nil, err
		}
		t.Name = outputName(rc)
		columns = append(columns, t.ParsedColumn)
	}
	return columns, nil
}

func pragmaResult(p *pragmaStmt) ([]domain.ParsedColumn, error) {
	cols, ok := pragmaColumns[strings.ToLower(p.name)]
	if !ok {
		return nil, unsupported("pragma %s", p.name)
	}
	out := make([]domain.ParsedColumn, len(cols))
	copy(out, cols)
	return out, nil
}
