package compiler_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// snapshot renders compiled SQL followed by its parameters in order.
func snapshot(q *domain.CompiledQuery) []byte {
	var b strings.Builder
	b.WriteString(q.SQL + "\n")
	names := make([]string, 0, len(q.Params))
	for name := range q.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "-- %s = %v\n", name, q.Params[name])
	}
	return []byte(b.String())
}

func TestCompiler_Golden(t *testing.T) {
	comp := newCompiler(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query *domain.Query
	}{
		{
			name:  "get",
			query: &domain.Query{Table: "coaches", Operation: domain.FindFirst, Where: domain.Where{"id": 1}},
		},
		{
			name: "range",
			query: &domain.Query{Table: "fights", Operation: domain.FindMany, Where: domain.Where{
				"date": domain.Range(domain.Bounds{Gte: "2020-01-01", Lt: "2021-01-01"}),
			}},
		},
		{
			name:  "not_null",
			query: &domain.Query{Table: "fighters", Operation: domain.FindMany, Where: domain.Where{"nickname": domain.Not(nil)}},
		},
		{
			name:  "not_list",
			query: &domain.Query{Table: "fighters", Operation: domain.FindMany, Where: domain.Where{"id": domain.Not([]int{1, 2, 3})}},
		},
		{
			name: "sum_total",
			query: &domain.Query{
				Table:       "fights",
				Operation:   domain.Aggregate,
				Aggregation: &domain.Aggregation{Func: domain.Sum, Column: "rounds"},
			},
		},
		{
			name: "grouped",
			query: &domain.Query{
				Table:       "fights",
				Operation:   domain.GroupBy,
				GroupBy:     []string{"winner_id"},
				Aggregation: &domain.Aggregation{Func: domain.Count},
				OrderBy:     []string{"count"},
				Desc:        true,
				Limit:       domain.Int(3),
			},
		},
		{
			name:  "includes",
			query: &domain.Query{Table: "fighters", Operation: domain.FindMany, Where: domain.Where{"tags": domain.Includes("southpaw")}},
		},
		{
			name: "some",
			query: &domain.Query{Table: "fighters", Operation: domain.FindMany, Select: []string{"id"}, Where: domain.Where{
				"tags": domain.Some(domain.Where{"kind": "belt"}),
			}},
		},
	}

	g := goldie.New(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := comp.Compile(ctx, tt.query)
			require.NoError(t, err)
			g.Assert(t, "compile_"+tt.name, snapshot(compiled))
		})
	}

	t.Run("paginated_include", func(t *testing.T) {
		inc, err := comp.ResolveInclude("fighters", domain.Include{Table: "fights", OrderBy: []string{"date"}, Desc: true, Limit: domain.Int(2), Offset: domain.Int(1)})
		require.NoError(t, err)
		compiled, err := comp.CompileInclude(ctx, inc, []any{7})
		require.NoError(t, err)
		g.Assert(t, "include_paginated", snapshot(compiled))
	})
}
