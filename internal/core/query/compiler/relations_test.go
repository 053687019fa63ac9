package compiler_test

import (
	"context"
	"testing"

	"github.com/satishbabariya/sqltyped/internal/core/query/compiler"
	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveInclude(t *testing.T) {
	comp := newCompiler(t)

	tests := []struct {
		name    string
		parent  string
		include domain.Include
		kind    domain.RelationKind
		local   string
		foreign string
	}{
		{"to many", "fighters", domain.Include{Table: "fights"}, domain.ToMany, "id", "winner_id"},
		{"to one", "fighters", domain.Include{Table: "coaches"}, domain.ToOne, "coach_id", "id"},
		{"reverse", "coaches", domain.Include{Table: "fighters"}, domain.ToMany, "id", "coach_id"},
		{"count keeps kind", "fighters", domain.Include{Table: "fights", Kind: domain.CountOf}, domain.CountOf, "id", "winner_id"},
		{"explicit keys", "fighters", domain.Include{Table: "fights", LocalKey: "id", ForeignKey: "winner_id"}, domain.ToMany, "id", "winner_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inc, err := comp.ResolveInclude(tt.parent, tt.include)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, inc.Kind)
			assert.Equal(t, tt.local, inc.LocalKey)
			assert.Equal(t, tt.foreign, inc.ForeignKey)
			assert.Equal(t, tt.include.Table, inc.Name)
		})
	}

	t.Run("unrelated tables", func(t *testing.T) {
		_, err := comp.ResolveInclude("coaches", domain.Include{Table: "fights"})
		var ce *domain.CompileError
		assert.ErrorAs(t, err, &ce)
	})
}

func TestCompileInclude(t *testing.T) {
	comp := newCompiler(t)
	ctx := context.Background()

	resolve := func(t *testing.T, inc domain.Include) domain.Include {
		t.Helper()
		resolved, err := comp.ResolveInclude("fighters", inc)
		require.NoError(t, err)
		return resolved
	}

	t.Run("to one", func(t *testing.T) {
		inc := resolve(t, domain.Include{Table: "coaches", Select: []string{"name"}})
		compiled, err := comp.CompileInclude(ctx, inc, []any{1, 2})
		require.NoError(t, err)
		assert.Equal(t, "select name, id as _key from coaches where id in (select json_each.value from json_each($p_1))", compiled.SQL)
		assert.Equal(t, map[string]any{"p_1": "[1,2]"}, compiled.Params)
		assert.Equal(t, compiler.KeyColumn, compiled.Columns[len(compiled.Columns)-1].Name)
	})

	t.Run("to many expands star", func(t *testing.T) {
		inc := resolve(t, domain.Include{Table: "fights", Where: domain.Where{"rounds": domain.Gte(3)}, OrderBy: []string{"date"}})
		compiled, err := comp.CompileInclude(ctx, inc, []any{7})
		require.NoError(t, err)
		assert.Equal(t, "select id, date, winner_id, rounds, winner_id as _key from fights where winner_id in (select json_each.value from json_each($p_1)) and rounds >= $p_2 order by date", compiled.SQL)
	})

	t.Run("paginated", func(t *testing.T) {
		inc := resolve(t, domain.Include{Table: "fights", OrderBy: []string{"date"}, Desc: true, Limit: domain.Int(2), Offset: domain.Int(1)})
		compiled, err := comp.CompileInclude(ctx, inc, []any{7})
		require.NoError(t, err)
		assert.Contains(t, compiled.SQL, "row_number() over (partition by winner_id order by date desc) as _rn")
		assert.Contains(t, compiled.SQL, "where _rn > 1 and _rn <= 3 order by _key, _rn")
	})

	t.Run("count", func(t *testing.T) {
		inc := resolve(t, domain.Include{Table: "fights", Kind: domain.CountOf})
		compiled, err := comp.CompileInclude(ctx, inc, []any{7})
		require.NoError(t, err)
		assert.Equal(t, "select winner_id as _key, count(*) as count from fights where winner_id in (select json_each.value from json_each($p_1)) group by winner_id", compiled.SQL)
	})

	t.Run("exists without keys", func(t *testing.T) {
		inc := resolve(t, domain.Include{Table: "fights", Kind: domain.ExistsOf, Where: domain.Where{"rounds": 5}})
		compiled, err := comp.CompileInclude(ctx, inc, nil)
		require.NoError(t, err)
		assert.Equal(t, "select distinct winner_id as _key from fights where rounds = $p_1", compiled.SQL)
	})
}

func TestCompiler_RelationFilters(t *testing.T) {
	comp := newCompiler(t)
	ctx := context.Background()

	t.Run("count", func(t *testing.T) {
		compiled, err := comp.Compile(ctx, &domain.Query{
			Table:     "fighters",
			Operation: domain.FindMany,
			Include:   []domain.Include{{Name: "wins", Table: "fights", Kind: domain.CountOf}},
			Where:     domain.Where{"wins": domain.Gt(2)},
		})
		require.NoError(t, err)
		assert.Equal(t, "select * from fighters where (select count(*) from fights as r1 where r1.winner_id = fighters.id) > $p_1", compiled.SQL)
		assert.Equal(t, []string{"fighters", "fights"}, compiled.Tables)
	})

	t.Run("parent column in relation filter", func(t *testing.T) {
		compiled, err := comp.Compile(ctx, &domain.Query{
			Table:     "fighters",
			Operation: domain.FindMany,
			Include: []domain.Include{{Name: "wins", Table: "fights", Kind: domain.CountOf, Where: domain.Where{
				"date": domain.Gt(domain.ColumnRef{Alias: "fighters", Column: "born"}),
			}}},
			Where: domain.Where{"wins": domain.Gt(2)},
		})
		require.NoError(t, err)
		assert.Equal(t, "select * from fighters where (select count(*) from fights as r1 where r1.winner_id = fighters.id and r1.date > fighters.born) > $p_1", compiled.SQL)

		_, err = comp.Compile(ctx, &domain.Query{
			Table:     "fighters",
			Operation: domain.FindMany,
			Include: []domain.Include{{Name: "wins", Table: "fights", Kind: domain.CountOf, Where: domain.Where{
				"date": domain.Gt(domain.ColumnRef{Alias: "fighters", Column: "died"}),
			}}},
			Where: domain.Where{"wins": domain.Gt(2)},
		})
		assert.ErrorIs(t, err, domain.ErrUnknownColumn)
	})

	t.Run("to one value", func(t *testing.T) {
		compiled, err := comp.Compile(ctx, &domain.Query{
			Table:     "fighters",
			Operation: domain.FindMany,
			Include:   []domain.Include{{Name: "coach", Table: "coaches", Value: "city"}},
			Where:     domain.Where{"coach": "Albuquerque"},
		})
		require.NoError(t, err)
		assert.Equal(t, "select * from fighters where (select r1.city from coaches as r1 where r1.id = fighters.coach_id) = $p_1", compiled.SQL)
	})

	t.Run("to many must be resolved first", func(t *testing.T) {
		_, err := comp.Compile(ctx, &domain.Query{
			Table:     "fighters",
			Operation: domain.FindMany,
			Include:   []domain.Include{{Table: "fights"}},
			Where:     domain.Where{"fights": domain.Where{"rounds": 1}},
		})
		var ce *domain.CompileError
		assert.ErrorAs(t, err, &ce)
	})
}
