package compiler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
)

// writable validates the keys of data and returns them sorted.
func writable(table *schemadomain.Table, data map[string]any) ([]*schemadomain.Column, error) {
	if table.View {
		return nil, &domain.ValidationError{Table: table.Name, Reason: "views are read-only"}
	}
	cols := make([]*schemadomain.Column, 0, len(data))
	for _, key := range sortedKeys(data) {
		col, err := column(table, key)
		if err != nil {
			return nil, err
		}
		if col.Computed != "" {
			return nil, &domain.ValidationError{Table: table.Name, Column: col.Name, Reason: "generated columns cannot be written"}
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func names(cols []*schemadomain.Column) []string {
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = col.Name
	}
	return out
}

// returning adds the primary key to inserts of tables with a single key.
func returning(table *schemadomain.Table) (string, []schemadomain.ParsedColumn, domain.ResultShape) {
	pk := table.PrimaryKey()
	if pk == nil {
		return "", nil, domain.ShapeNone
	}
	return " returning " + pk.Name, []schemadomain.ParsedColumn{parsed(table, pk)}, domain.ShapeValue
}

// compileInsert inserts one row and returns its primary key.
func (c *Compiler) compileInsert(s *state, q *domain.Query, table *schemadomain.Table) (*domain.CompiledQuery, error) {
	cols, err := writable(table, q.Data)
	if err != nil {
		return nil, err
	}
	var sql string
	if len(cols) == 0 {
		sql = "insert into " + table.Name + " default values"
	} else {
		values := make([]string, len(cols))
		for i, col := range cols {
			if values[i], err = s.params.add(q.Data[col.Name]); err != nil {
				return nil, err
			}
		}
		sql = fmt.Sprintf("insert into %s (%s) values (%s)", table.Name, strings.Join(names(cols), ", "), strings.Join(values, ", "))
	}
	if !c.returning {
		return &domain.CompiledQuery{SQL: sql, Shape: domain.ShapeNone}, nil
	}
	ret, columns, shape := returning(table)
	return &domain.CompiledQuery{SQL: sql + ret, Columns: columns, Shape: shape}, nil
}

// compileInsertMany inserts every row in one statement by reading the
// rows from a JSON array. Blob values cannot travel through JSON, so
// tables written with blobs get a multi-row values list instead.
func (c *Compiler) compileInsertMany(s *state, q *domain.Query, table *schemadomain.Table) (*domain.CompiledQuery, error) {
	if len(q.Rows) == 0 {
		return nil, domain.Errorf(string(q.Operation), "no rows given")
	}
	keys := make(map[string]any)
	for _, row := range q.Rows {
		for k := range row {
			keys[k] = nil
		}
	}
	cols, err := writable(table, keys)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, domain.Errorf(string(q.Operation), "rows have no columns")
	}
	for _, col := range cols {
		if col.Type == schemadomain.TypeBlob {
			return c.insertValues(s, q, table, cols)
		}
	}

	rows := make([]map[string]any, len(q.Rows))
	for i, row := range q.Rows {
		bound := make(map[string]any, len(row))
		for k, v := range row {
			if bound[k], err = bindValue(v); err != nil {
				return nil, err
			}
		}
		rows[i] = bound
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rows: %w", err)
	}
	items := s.params.addBound(string(data))

	selects := make([]string, len(cols))
	for i, col := range cols {
		path, err := jsonPath([]string{col.Name})
		if err != nil {
			return nil, &domain.ValidationError{Table: table.Name, Column: col.Name, Reason: err.Error()}
		}
		selects[i] = "json_extract(json_each.value, " + path + ")"
	}
	sql := fmt.Sprintf("insert into %s (%s) select %s from json_each(%s)",
		table.Name, strings.Join(names(cols), ", "), strings.Join(selects, ", "), items)
	return &domain.CompiledQuery{SQL: sql, Shape: domain.ShapeNone}, nil
}

func (c *Compiler) insertValues(s *state, q *domain.Query, table *schemadomain.Table, cols []*schemadomain.Column) (*domain.CompiledQuery, error) {
	rows := make([]string, len(q.Rows))
	for i, row := range q.Rows {
		values := make([]string, len(cols))
		for j, col := range cols {
			p, err := s.params.add(row[col.Name])
			if err != nil {
				return nil, err
			}
			values[j] = p
		}
		rows[i] = "(" + strings.Join(values, ", ") + ")"
	}
	sql := fmt.Sprintf("insert into %s (%s) values %s", table.Name, strings.Join(names(cols), ", "), strings.Join(rows, ", "))
	return &domain.CompiledQuery{SQL: sql, Shape: domain.ShapeNone}, nil
}

// compileUpdate sets columns on matching rows.
func (c *Compiler) compileUpdate(s *state, q *domain.Query, table *schemadomain.Table) (*domain.CompiledQuery, error) {
	if len(q.Data) == 0 {
		return nil, domain.Errorf(string(q.Operation), "no values to set")
	}
	cols, err := writable(table, q.Data)
	if err != nil {
		return nil, err
	}
	sets := make([]string, len(cols))
	for i, col := range cols {
		p, err := s.params.add(q.Data[col.Name])
		if err != nil {
			return nil, err
		}
		sets[i] = col.Name + " = " + p
	}
	sql := "update " + table.Name + " set " + strings.Join(sets, ", ")
	where, err := c.mutationWhere(s, q, table)
	if err != nil {
		return nil, err
	}
	return &domain.CompiledQuery{SQL: sql + where, Shape: domain.ShapeNone}, nil
}

// compileUpsert inserts a row and updates it when the conflict target
// already exists.
func (c *Compiler) compileUpsert(s *state, q *domain.Query, table *schemadomain.Table) (*domain.CompiledQuery, error) {
	if len(q.Data) == 0 {
		return nil, domain.Errorf(string(q.Operation), "no values to write")
	}
	cols, err := writable(table, q.Data)
	if err != nil {
		return nil, err
	}
	target := append([]string(nil), table.PrimaryKeys...)
	var set []string
	if q.Conflict != nil {
		if len(q.Conflict.Target) > 0 {
			target = append([]string(nil), q.Conflict.Target...)
		}
		set = q.Conflict.Set
	}
	if len(target) == 0 {
		return nil, domain.Errorf(string(q.Operation), "no conflict target for %s", table.Name)
	}
	inTarget := make(map[string]bool, len(target))
	for i, name := range target {
		col, err := column(table, name)
		if err != nil {
			return nil, err
		}
		target[i] = col.Name
		inTarget[col.Name] = true
	}
	if len(set) == 0 {
		for _, col := range cols {
			if !inTarget[col.Name] {
				set = append(set, col.Name)
			}
		}
	}

	values := make([]string, len(cols))
	for i, col := range cols {
		if values[i], err = s.params.add(q.Data[col.Name]); err != nil {
			return nil, err
		}
	}
	sql := fmt.Sprintf("insert into %s (%s) values (%s) on conflict (%s) do ",
		table.Name, strings.Join(names(cols), ", "), strings.Join(values, ", "), strings.Join(target, ", "))
	if len(set) == 0 {
		return &domain.CompiledQuery{SQL: sql + "nothing", Shape: domain.ShapeNone}, nil
	}
	sets := make([]string, len(set))
	for i, name := range set {
		col, err := column(table, name)
		if err != nil {
			return nil, err
		}
		sets[i] = col.Name + " = excluded." + col.Name
	}
	return &domain.CompiledQuery{SQL: sql + "update set " + strings.Join(sets, ", "), Shape: domain.ShapeNone}, nil
}

// compileDelete removes matching rows.
func (c *Compiler) compileDelete(s *state, q *domain.Query, table *schemadomain.Table) (*domain.CompiledQuery, error) {
	if table.View {
		return nil, &domain.ValidationError{Table: table.Name, Reason: "views are read-only"}
	}
	where, err := c.mutationWhere(s, q, table)
	if err != nil {
		return nil, err
	}
	return &domain.CompiledQuery{SQL: "delete from " + table.Name + where, Shape: domain.ShapeNone}, nil
}

func (c *Compiler) mutationWhere(s *state, q *domain.Query, table *schemadomain.Table) (string, error) {
	w := &whereCompiler{s: s, resolve: c.queryResolver(s, q, table), refer: selfReferrer(table), virtual: table.Virtual, inline: true}
	where, err := w.compile(q.Where)
	if err != nil || where == "" {
		return "", err
	}
	return " where " + where, nil
}
