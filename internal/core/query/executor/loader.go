package executor

import (
	"context"
	"math"
	"slices"

	"github.com/satishbabariya/sqltyped/internal/core/query/compiler"
	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	"github.com/satishbabariya/sqltyped/internal/debug"
	"golang.org/x/sync/errgroup"
)

// relationFilter reports whether the top level of the where names an
// include.
func relationFilter(q *domain.Query) bool {
	for _, inc := range q.Include {
		if _, ok := q.Where[includeName(inc)]; ok {
			return true
		}
	}
	return false
}

func includeName(inc domain.Include) string {
	if inc.Name != "" {
		return inc.Name
	}
	return inc.Table
}

// find runs a find query with includes. To-many relations named in the
// where are loaded first and replaced by a key filter, then the parent
// rows are fetched and every include is loaded for the batch.
func (e *QueryExecutor) find(ctx context.Context, q *domain.Query) (any, error) {
	includes := make([]domain.Include, len(q.Include))
	for i, inc := range q.Include {
		resolved, err := e.compiler.ResolveInclude(q.Table, inc)
		if err != nil {
			return nil, err
		}
		includes[i] = resolved
	}

	parent := *q
	where, err := e.resolveFilters(ctx, q.Table, q.Where, includes)
	if err != nil {
		return nil, err
	}
	parent.Where = where
	parent.Include = includes

	// Parent rows need every local key to match children against.
	var added []string
	if len(parent.Select) > 0 || len(parent.Exclude) > 0 {
		parent.Select = slices.Clone(parent.Select)
		parent.Exclude = slices.Clone(parent.Exclude)
		for _, inc := range includes {
			if i := slices.Index(parent.Exclude, inc.LocalKey); i >= 0 {
				parent.Exclude = slices.Delete(parent.Exclude, i, i+1)
				added = append(added, inc.LocalKey)
			}
			if len(parent.Select) > 0 && !slices.Contains(parent.Select, inc.LocalKey) {
				parent.Select = append(parent.Select, inc.LocalKey)
				added = append(added, inc.LocalKey)
			}
		}
	}

	compiled, err := e.compiler.Compile(ctx, &parent)
	if err != nil {
		return nil, err
	}
	raw, err := e.all(ctx, q.Table, string(q.Operation), compiled)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, len(raw))
	for i, r := range raw {
		if rows[i], err = e.mapper.Row(r, compiled.Columns); err != nil {
			return nil, err
		}
	}

	if len(rows) > 0 {
		if err := e.load(ctx, q.Table, includes, raw, rows); err != nil {
			return nil, err
		}
	}
	for _, row := range rows {
		for _, key := range added {
			delete(row, key)
		}
	}

	if compiled.Shape == domain.ShapeObject {
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0], nil
	}
	return rows, nil
}

// resolveFilters replaces top-level where keys naming a to-many include
// with a filter on the parent's local key. True keeps parents with a
// matching child and false keeps those without one, including parents
// whose key is null. Other relation keys
// compile to correlated subqueries and are left in place.
func (e *QueryExecutor) resolveFilters(ctx context.Context, table string, where domain.Where, includes []domain.Include) (domain.Where, error) {
	var (
		rest    domain.Where
		filters []domain.Where
	)
	for _, inc := range includes {
		if inc.Kind != domain.ToMany {
			continue
		}
		v, ok := where[inc.Name]
		if !ok {
			continue
		}
		want, ok := v.(bool)
		if !ok {
			return nil, domain.Errorf("include", "%s is a to-many relation and can only be filtered with true or false", inc.Name)
		}
		if rest == nil {
			rest = make(domain.Where, len(where))
			for k, v := range where {
				rest[k] = v
			}
		}
		delete(rest, inc.Name)

		probe := inc
		probe.Kind = domain.ExistsOf
		compiled, err := e.compiler.CompileInclude(ctx, probe, nil)
		if err != nil {
			return nil, err
		}
		raw, err := e.all(ctx, inc.Table, "include", compiled)
		if err != nil {
			return nil, err
		}
		matched := keys(raw, compiler.KeyColumn)
		debug.Debug("Resolved relation filter", "table", table, "include", inc.Name, "keys", len(matched))
		if want {
			filters = append(filters, domain.Where{inc.LocalKey: matched})
		} else {
			filters = append(filters, domain.Where{domain.OrKey: []domain.Where{
				{inc.LocalKey: nil},
				{inc.LocalKey: domain.Not(matched)},
			}})
		}
	}
	if rest == nil {
		return where, nil
	}
	return domain.Where{domain.AndKey: append([]domain.Where{rest}, filters...)}, nil
}

// load fetches every include for a batch of parent rows and attaches the
// results. Sibling includes are independent and load concurrently.
func (e *QueryExecutor) load(ctx context.Context, table string, includes []domain.Include, raw, rows []map[string]any) error {
	results := make([]map[any][]any, len(includes))

	g, ctx := errgroup.WithContext(ctx)
	if e.parallel > 0 {
		g.SetLimit(e.parallel)
	}
	for i, inc := range includes {
		g.Go(func() error {
			children, err := e.loadInclude(ctx, inc, keys(raw, inc.LocalKey))
			if err != nil {
				return err
			}
			results[i] = children
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, inc := range includes {
		children := results[i]
		for j, row := range rows {
			matched := children[normalizeKey(raw[j][inc.LocalKey])]
			row[inc.Name] = attach(inc, matched)
		}
	}
	debug.Debug("Loaded includes", "table", table, "parents", len(rows), "includes", len(includes))
	return nil
}

// loadInclude runs the child query of inc and groups its values by key.
func (e *QueryExecutor) loadInclude(ctx context.Context, inc domain.Include, parents []any) (map[any][]any, error) {
	children := make(map[any][]any)
	if len(parents) == 0 {
		return children, nil
	}
	compiled, err := e.compiler.CompileInclude(ctx, inc, parents)
	if err != nil {
		return nil, err
	}
	raw, err := e.all(ctx, inc.Table, "include", compiled)
	if err != nil {
		return nil, err
	}
	for _, r := range raw {
		key := normalizeKey(r[compiler.KeyColumn])
		row, err := e.mapper.Row(r, compiled.Columns)
		if err != nil {
			return nil, err
		}
		delete(row, compiler.KeyColumn)

		var item any = row
		switch {
		case inc.Kind == domain.CountOf:
			item = row["count"]
		case inc.Kind == domain.ExistsOf:
			item = true
		case inc.Value != "":
			item = row[compiled.Columns[0].Name]
		}
		children[key] = append(children[key], item)
	}
	return children, nil
}

// attach folds the children of one parent into the include's value.
func attach(inc domain.Include, children []any) any {
	switch inc.Kind {
	case domain.CountOf:
		if len(children) == 0 {
			return int64(0)
		}
		return children[0]
	case domain.ExistsOf:
		return len(children) > 0
	case domain.ToOne:
		if len(children) == 0 {
			return nil
		}
		return children[0]
	}
	if inc.Value != "" {
		values := make([]any, len(children))
		copy(values, children)
		return values
	}
	list := make([]map[string]any, len(children))
	for i, child := range children {
		list[i] = child.(map[string]any)
	}
	return list
}

// keys returns the distinct non-null values of column.
func keys(rows []map[string]any, column string) []any {
	seen := make(map[any]bool, len(rows))
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		v := row[column]
		if v == nil {
			continue
		}
		k := normalizeKey(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// normalizeKey makes driver values comparable so parent and child keys
// meet in one map.
func normalizeKey(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	}
	return v
}
