package sqltext_test

import (
	"errors"
	"testing"

	"github.com/satishbabariya/sqltyped/internal/core/schema/domain"
	"github.com/satishbabariya/sqltyped/internal/core/sqltext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
create table coaches (
  id integer primary key,
  name text not null,
  city text not null
);

create table fighters (
  id integer primary key,
  name text not null,
  nickname text,
  born date,
  height real,
  retired boolean not null default 0,
  coach_id integer references coaches(id),
  social json
);

create table fights (
  id integer primary key,
  event text not null,
  winner_id integer references fighters(id),
  start_time date not null
);

create table tags (name text not null);

create view fighter_coaches as
  select f.name, c.name as coach
  from fighters f left join coaches c on c.id = f.coach_id;

create virtual table fighter_search using fts5(name, bio);
`

func newAnalyzer(t *testing.T) *sqltext.Analyzer {
	t.Helper()
	catalog, err := sqltext.LoadCatalog(testSchema)
	require.NoError(t, err)
	return sqltext.NewAnalyzer(catalog)
}

func column(t *testing.T, columns []domain.ParsedColumn, name string) domain.ParsedColumn {
	t.Helper()
	for _, c := range columns {
		if c.Name == name {
			return c
		}
	}
	require.Failf(t, "column not found", "no column %q in %v", name, columns)
	return domain.ParsedColumn{}
}

func TestAnalyzeNullability(t *testing.T) {
	a := newAnalyzer(t)

	tests := []struct {
		name     string
		sql      string
		column   string
		typ      domain.ColumnType
		nullable bool
	}{
		{"declared not null", "select name from fighters", "name", domain.TypeText, false},
		{"declared nullable", "select nickname from fighters", "nickname", domain.TypeText, true},
		{"primary key", "select id from fighters", "id", domain.TypeInteger, false},
		{"left join makes joined table nullable", "select f.id, c.name from fighters f left join coaches c on c.id = f.coach_id", "name", domain.TypeText, true},
		{"left join keeps first table", "select f.name as fighter from fighters f left join coaches c on c.id = f.coach_id", "fighter", domain.TypeText, false},
		{"right join makes previous table nullable", "select f.name as fighter from fighters f right join coaches c on c.id = f.coach_id", "fighter", domain.TypeText, true},
		{"right join keeps joined table", "select c.name as coach from fighters f right join coaches c on c.id = f.coach_id", "coach", domain.TypeText, false},
		{"full join", "select c.city from fighters f full join coaches c on c.id = f.coach_id", "city", domain.TypeText, true},
		{"inner join narrows on columns", "select f.coach_id from fighters f join coaches c on c.id = f.coach_id", "coach_id", domain.TypeInteger, false},
		{"where is not null narrows", "select nickname from fighters where nickname is not null", "nickname", domain.TypeText, false},
		{"where notnull narrows", "select nickname from fighters where id > 1 and nickname notnull", "nickname", domain.TypeText, false},
		{"where not null narrows", "select height from fighters where height not null", "height", domain.TypeReal, false},
		{"or never narrows", "select nickname from fighters where nickname is not null or id = 1", "nickname", domain.TypeText, true},
		{"narrowing wins over left join", "select c.name from fighters f left join coaches c on c.id = f.coach_id where c.name is not null", "name", domain.TypeText, false},
		{"view column", "select coach from fighter_coaches", "coach", domain.TypeText, true},
		{"implicit rowid", "select rowid, name from tags", "rowid", domain.TypeInteger, false},
		{"fts column", "select name from fighter_search where fighter_search match 'silva'", "name", domain.TypeText, false},
		{"fts rank", "select rank from fighter_search where fighter_search match 'silva'", "rank", domain.TypeReal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			columns, err := a.Analyze(tt.sql)
			require.NoError(t, err)
			c := column(t, columns, tt.column)
			assert.Equal(t, tt.typ, c.Type)
			assert.Equal(t, tt.nullable, c.Nullable)
		})
	}
}

func TestAnalyzeExpressions(t *testing.T) {
	a := newAnalyzer(t)

	tests := []struct {
		name     string
		sql      string
		column   string
		typ      domain.ColumnType
		nullable bool
	}{
		{"integer literal", "select 1 as a", "a", domain.TypeInteger, false},
		{"real literal", "select 1.5 as b", "b", domain.TypeReal, false},
		{"text literal", "select 'x' as c", "c", domain.TypeText, false},
		{"null literal", "select null as d", "d", domain.TypeAny, true},
		{"blob literal", "select x'00' as e", "e", domain.TypeBlob, false},
		{"boolean literal", "select true as f", "f", domain.TypeBoolean, false},
		{"parameter", "select $value as v", "v", domain.TypeAny, true},
		{"integer maths", "select id + 1 as next from fighters", "next", domain.TypeInteger, false},
		{"real maths", "select height * 2 as twice from fighters", "twice", domain.TypeReal, true},
		{"concat", "select name || '!' as shout from fighters", "shout", domain.TypeText, false},
		{"comparison", "select id = 1 as first from fighters", "first", domain.TypeBoolean, false},
		{"is null", "select nickname is null as unnamed from fighters", "unnamed", domain.TypeBoolean, false},
		{"in list", "select id in (1, 2) as picked from fighters", "picked", domain.TypeBoolean, false},
		{"like", "select nickname like 'the%' as the from fighters", "the", domain.TypeBoolean, true},
		{"exists", "select exists (select 1 from fights where winner_id = f.id) as won from fighters f", "won", domain.TypeBoolean, false},
		{"cast to integer", "select cast(height as integer) as h from fighters", "h", domain.TypeInteger, true},
		{"cast to none", "select cast(name as none) as raw from fighters", "raw", domain.TypeBlob, false},
		{"cast to numeric", "select cast(name as numeric) as n from fighters", "n", domain.TypeInteger, false},
		{"case with else", "select case when retired then 'yes' else 'no' end as status from fighters", "status", domain.TypeText, false},
		{"case without else", "select case when retired then 'yes' end as status from fighters", "status", domain.TypeText, true},
		{"case mixed types", "select case when retired then 1 else 'no' end as status from fighters", "status", domain.TypeAny, false},
		{"coalesce agrees", "select coalesce(nickname, name) as label from fighters", "label", domain.TypeText, false},
		{"coalesce disagrees", "select coalesce(nickname, height) as label from fighters", "label", domain.TypeAny, true},
		{"count", "select count(*) as total from fighters", "total", domain.TypeInteger, false},
		{"total", "select total(height) as sum from fighters", "sum", domain.TypeReal, false},
		{"max without group by", "select max(id) as last from fighters", "last", domain.TypeInteger, true},
		{"min with group by", "select coach_id, min(id) as first from fighters group by coach_id", "first", domain.TypeInteger, false},
		{"avg", "select avg(height) as mean from fighters", "mean", domain.TypeReal, true},
		{"row number", "select row_number() over (order by id) as n from fighters", "n", domain.TypeInteger, false},
		{"json extract arrow", "select social -> '$.twitter' as t from fighters", "t", domain.TypeJSON, true},
		{"json text arrow", "select social ->> '$.twitter' as h from fighters", "h", domain.TypeAny, true},
		{"lower keeps nullability", "select lower(nickname) as low from fighters", "low", domain.TypeText, true},
		{"scalar aggregate subquery", "select (select count(*) from fights where winner_id = f.id) as wins from fighters f", "wins", domain.TypeInteger, false},
		{"scalar subquery", "select (select event from fights where winner_id = f.id) as last from fighters f", "last", domain.TypeText, true},
		{"current timestamp", "select current_timestamp as now", "now", domain.TypeDate, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			columns, err := a.Analyze(tt.sql)
			require.NoError(t, err)
			c := column(t, columns, tt.column)
			assert.Equal(t, tt.typ, c.Type)
			assert.Equal(t, tt.nullable, c.Nullable)
		})
	}
}

func TestAnalyzeColumnNames(t *testing.T) {
	a := newAnalyzer(t)

	columns, err := a.Analyze("select id, f.name, lower(nickname), height as h from fighters f")
	require.NoError(t, err)

	var names []string
	for _, c := range columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"id", "name", "lower(nickname)", "h"}, names)
}

func TestAnalyzeStar(t *testing.T) {
	a := newAnalyzer(t)

	t.Run("all tables", func(t *testing.T) {
		columns, err := a.Analyze("select * from coaches")
		require.NoError(t, err)
		require.Len(t, columns, 3)
		assert.Equal(t, "id", columns[0].Name)
		assert.True(t, columns[0].PrimaryKey)
		assert.Equal(t, "coaches", columns[0].OriginTable)
	})

	t.Run("hidden rowid is skipped", func(t *testing.T) {
		columns, err := a.Analyze("select * from tags")
		require.NoError(t, err)
		require.Len(t, columns, 1)
		assert.Equal(t, "name", columns[0].Name)
	})

	t.Run("qualified star", func(t *testing.T) {
		columns, err := a.Analyze("select c.*, f.id as fighter from fighters f left join coaches c on c.id = f.coach_id")
		require.NoError(t, err)
		require.Len(t, columns, 4)
		for _, c := range columns[:3] {
			assert.True(t, c.Nullable, c.Name)
		}
		assert.False(t, columns[3].Nullable)
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := a.Analyze("select x.* from fighters")
		require.Error(t, err)
	})
}

func TestAnalyzeStructuredTypes(t *testing.T) {
	a := newAnalyzer(t)

	t.Run("json_object", func(t *testing.T) {
		columns, err := a.Analyze(`
			select json_object('id', f.id, 'coach', c.name, 'retired', f.retired) as fighter
			from fighters f left join coaches c on c.id = f.coach_id`)
		require.NoError(t, err)
		require.Len(t, columns, 1)

		c := columns[0]
		assert.Equal(t, domain.TypeJSON, c.Type)
		assert.False(t, c.Nullable)
		assert.Equal(t, "json_object", c.FunctionName)
		require.NotNil(t, c.Structured)
		assert.Equal(t, domain.StructObject, c.Structured.Kind)
		require.Len(t, c.Structured.Fields, 3)

		id := c.Structured.Field("id")
		require.NotNil(t, id)
		assert.Equal(t, domain.TypeInteger, id.Type)
		assert.False(t, id.Nullable)

		coach := c.Structured.Field("coach")
		require.NotNil(t, coach)
		assert.True(t, coach.Nullable)
		assert.True(t, coach.Optional)

		assert.Equal(t, domain.TypeBoolean, c.Structured.Field("retired").Type)
	})

	t.Run("json_group_array of a column", func(t *testing.T) {
		columns, err := a.Analyze(`
			select c.id, json_group_array(f.name) as names
			from coaches c left join fighters f on f.coach_id = c.id
			group by c.id`)
		require.NoError(t, err)

		names := column(t, columns, "names")
		require.NotNil(t, names.Structured)
		assert.Equal(t, domain.StructArray, names.Structured.Kind)
		assert.True(t, names.Structured.Sorted)
		assert.True(t, names.Structured.Optional)
		assert.Equal(t, domain.TypeText, names.Structured.Elem.Type)
	})

	t.Run("ordered json_group_array is not sorted", func(t *testing.T) {
		columns, err := a.Analyze("select json_group_array(name order by id) as names from fighters")
		require.NoError(t, err)
		require.NotNil(t, columns[0].Structured)
		assert.False(t, columns[0].Structured.Sorted)
	})

	t.Run("json_group_array of objects", func(t *testing.T) {
		columns, err := a.Analyze(`
			select json_group_array(json_object('name', name, 'born', born)) as fighters
			from fighters`)
		require.NoError(t, err)
		st := columns[0].Structured
		require.NotNil(t, st)
		assert.False(t, st.Sorted)
		require.NotNil(t, st.Elem)
		assert.Equal(t, domain.StructObject, st.Elem.Kind)
		assert.Equal(t, domain.TypeDate, st.Elem.Field("born").Type)
	})

	t.Run("json_group_object", func(t *testing.T) {
		columns, err := a.Analyze("select json_group_object(name, height) as heights from fighters")
		require.NoError(t, err)
		st := columns[0].Structured
		require.NotNil(t, st)
		assert.Equal(t, domain.StructMap, st.Kind)
		assert.Equal(t, domain.TypeReal, st.Elem.Type)
	})

	t.Run("structure flows through a cte", func(t *testing.T) {
		columns, err := a.Analyze(`
			with cards as (select id, json_object('name', name) as card from fighters)
			select card ->> '$.name' as name, card from cards`)
		require.NoError(t, err)
		assert.Equal(t, domain.TypeText, column(t, columns, "name").Type)
		assert.NotNil(t, column(t, columns, "card").Structured)
	})
}

func TestAnalyzeSources(t *testing.T) {
	a := newAnalyzer(t)

	t.Run("cte", func(t *testing.T) {
		columns, err := a.Analyze(`
			with recent as (select id, born from fighters where born is not null)
			select r.born from recent r`)
		require.NoError(t, err)
		require.Len(t, columns, 1)
		assert.Equal(t, domain.TypeDate, columns[0].Type)
		assert.False(t, columns[0].Nullable)
	})

	t.Run("cte column list", func(t *testing.T) {
		columns, err := a.Analyze("with t(a, b) as (select id, name from fighters) select a, b from t")
		require.NoError(t, err)
		require.Len(t, columns, 2)
		assert.Equal(t, "b", columns[1].Name)
		assert.Equal(t, domain.TypeText, columns[1].Type)
	})

	t.Run("sub-select in from", func(t *testing.T) {
		columns, err := a.Analyze("select s.total from (select count(*) as total from fighters) as s")
		require.NoError(t, err)
		require.Len(t, columns, 1)
		assert.Equal(t, domain.TypeInteger, columns[0].Type)
		assert.False(t, columns[0].Nullable)
	})

	t.Run("json_each", func(t *testing.T) {
		columns, err := a.Analyze("select value, key, fullkey from json_each($ids)")
		require.NoError(t, err)
		require.Len(t, columns, 3)
		assert.Equal(t, domain.TypeAny, columns[0].Type)
		assert.True(t, columns[0].Nullable)
		assert.Equal(t, domain.TypeText, columns[2].Type)
	})

	t.Run("values", func(t *testing.T) {
		columns, err := a.Analyze("values (1, 'a'), (2, null)")
		require.NoError(t, err)
		require.Len(t, columns, 2)
		assert.Equal(t, "column1", columns[0].Name)
		assert.Equal(t, domain.TypeInteger, columns[0].Type)
		assert.Equal(t, domain.TypeText, columns[1].Type)
		assert.True(t, columns[1].Nullable)
	})
}

func TestAnalyzeStatementKinds(t *testing.T) {
	a := newAnalyzer(t)

	t.Run("insert returning", func(t *testing.T) {
		res, err := a.AnalyzeStatement("insert into coaches (name, city) values (?, ?) returning id")
		require.NoError(t, err)
		assert.Equal(t, sqltext.KindInsert, res.Kind)
		require.Len(t, res.Columns, 1)
		assert.Equal(t, domain.TypeInteger, res.Columns[0].Type)
		assert.Equal(t, []string{"?", "?"}, res.Params)
		assert.Equal(t, []string{"coaches"}, res.Tables)
	})

	t.Run("update returning star", func(t *testing.T) {
		res, err := a.AnalyzeStatement("update coaches set city = $city where id = $id returning *")
		require.NoError(t, err)
		assert.Equal(t, sqltext.KindUpdate, res.Kind)
		assert.Len(t, res.Columns, 3)
		assert.Equal(t, []string{"$city", "$id"}, res.Params)
	})

	t.Run("delete without returning", func(t *testing.T) {
		res, err := a.AnalyzeStatement("delete from coaches where id = $id")
		require.NoError(t, err)
		assert.Equal(t, sqltext.KindDelete, res.Kind)
		assert.Empty(t, res.Columns)
		assert.Equal(t, []string{"$id"}, res.Params)
	})

	t.Run("pragma", func(t *testing.T) {
		res, err := a.AnalyzeStatement("pragma table_info(fighters)")
		require.NoError(t, err)
		assert.Equal(t, sqltext.KindPragma, res.Kind)
		assert.Len(t, res.Columns, 6)
	})

	t.Run("repeated named parameters are listed once", func(t *testing.T) {
		res, err := a.AnalyzeStatement("select id from fighters where id = $id and name = $name or id = $id")
		require.NoError(t, err)
		assert.Equal(t, []string{"$id", "$name"}, res.Params)
	})

	t.Run("parameters inside filter and over", func(t *testing.T) {
		res, err := a.AnalyzeStatement("select count(*) filter (where start_time > $since) as n from fights where winner_id = $id")
		require.NoError(t, err)
		assert.Equal(t, []string{"$since", "$id"}, res.Params)
		assert.Equal(t, domain.TypeInteger, column(t, res.Columns, "n").Type)

		res, err = a.AnalyzeStatement("select id, rank() over (partition by winner_id order by event = :event) as r from fights where id > ?")
		require.NoError(t, err)
		assert.Equal(t, []string{":event", "?"}, res.Params)
	})

	t.Run("only the first union branch is typed", func(t *testing.T) {
		res, err := a.AnalyzeStatement("select id from coaches union select id from fighters order by id")
		require.NoError(t, err)
		assert.True(t, res.Compound)
		require.Len(t, res.Columns, 1)
		assert.Equal(t, domain.TypeInteger, res.Columns[0].Type)
	})

	t.Run("column types", func(t *testing.T) {
		res, err := a.AnalyzeStatement("select id, name from coaches")
		require.NoError(t, err)
		assert.Equal(t, map[string]domain.ColumnType{
			"id":   domain.TypeInteger,
			"name": domain.TypeText,
		}, res.ColumnTypes())
	})
}

func TestAnalyzeErrors(t *testing.T) {
	a := newAnalyzer(t)

	tests := []struct {
		name   string
		sql    string
		hasPos bool
	}{
		{"unknown column", "select nope from fighters", false},
		{"unknown table", "select id from nowhere", false},
		{"syntax error", "select from fighters", true},
		{"unsupported statement", "create index i on fighters(name)", true},
		{"trailing garbage", "select id from fighters )", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Analyze(tt.sql)
			require.Error(t, err)

			var ae *sqltext.AnalyzeError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, tt.sql, ae.SQL)
			if tt.hasPos {
				assert.GreaterOrEqual(t, ae.Pos, 0)
			} else {
				assert.Equal(t, -1, ae.Pos)
			}
		})
	}
}
