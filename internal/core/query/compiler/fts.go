package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
)

const defaultSnippetTokens = 10

// search applies full-text projections and ranking to a find on a
// virtual table. Highlight and snippet replace the projection with the
// row id and the marked text.
func (c *Compiler) search(s *state, table *schemadomain.Table, search *domain.Search, projection string, columns []schemadomain.ParsedColumn) (string, []schemadomain.ParsedColumn, []string, error) {
	if !table.Virtual {
		return "", nil, nil, &domain.ValidationError{Table: table.Name, Reason: "full-text search needs a virtual table"}
	}
	id := schemadomain.ParsedColumn{Name: "id", Type: schemadomain.TypeInteger, PrimaryKey: true, OriginTable: table.Name}

	switch {
	case search.Highlight != nil && search.Snippet != nil:
		return "", nil, nil, domain.Errorf("search", "highlight and snippet are exclusive")
	case search.Highlight != nil:
		h := search.Highlight
		index, err := columnIndex(table, h.Column)
		if err != nil {
			return "", nil, nil, err
		}
		start, err := s.params.add(h.Start)
		if err != nil {
			return "", nil, nil, err
		}
		end, err := s.params.add(h.End)
		if err != nil {
			return "", nil, nil, err
		}
		projection = fmt.Sprintf("rowid as id, highlight(%s, %d, %s, %s) as highlight", table.Name, index, start, end)
		columns = []schemadomain.ParsedColumn{id, {Name: "highlight", Type: schemadomain.TypeText, Nullable: true, FunctionName: "highlight"}}
	case search.Snippet != nil:
		sn := search.Snippet
		index, err := columnIndex(table, sn.Column)
		if err != nil {
			return "", nil, nil, err
		}
		tokens := sn.Tokens
		if tokens <= 0 {
			tokens = defaultSnippetTokens
		}
		var args []string
		for _, v := range []string{sn.Start, sn.End, sn.Trailing} {
			p, err := s.params.add(v)
			if err != nil {
				return "", nil, nil, err
			}
			args = append(args, p)
		}
		projection = fmt.Sprintf("rowid as id, snippet(%s, %d, %s, %d) as snippet", table.Name, index, strings.Join(args, ", "), tokens)
		columns = []schemadomain.ParsedColumn{id, {Name: "snippet", Type: schemadomain.TypeText, Nullable: true, FunctionName: "snippet"}}
	}

	var ranking []string
	switch {
	case len(search.Weights) > 0:
		for name := range search.Weights {
			if _, err := columnIndex(table, name); err != nil {
				return "", nil, nil, err
			}
		}
		weights := []string{table.Name}
		for _, col := range visibleColumns(table) {
			w, ok := search.Weights[col.Name]
			if !ok {
				w = 1
			}
			weights = append(weights, strconv.FormatFloat(w, 'g', -1, 64))
		}
		ranking = append(ranking, "bm25("+strings.Join(weights, ", ")+")")
	case search.Rank:
		ranking = append(ranking, "rank")
	}
	return projection, columns, ranking, nil
}

// columnIndex returns the position of a column among the indexed columns.
func columnIndex(table *schemadomain.Table, name string) (int, error) {
	for i, col := range visibleColumns(table) {
		if strings.EqualFold(col.Name, name) {
			return i, nil
		}
	}
	return 0, domain.UnknownColumn(table.Name, name)
}
