package client_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/satishbabariya/sqltyped/internal/adapters/telemetry"
	"github.com/satishbabariya/sqltyped/internal/debug"
	"github.com/satishbabariya/sqltyped/pkg/client"
	"github.com/satishbabariya/sqltyped/pkg/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
create table coaches (
  id integer primary key,
  name text not null,
  city text
);
create table fighters (
  id integer primary key,
  name text not null,
  retired boolean not null default 0,
  coach_id integer references coaches(id)
);
create table fights (
  id integer primary key,
  date date not null,
  winner_id integer not null references fighters(id),
  rounds integer not null
);
`

var testData = []string{
	"insert into coaches (id, name, city) values (1, 'Eugene', 'Albuquerque'), (2, 'Mike', null)",
	"insert into fighters (id, name, retired, coach_id) values (1, 'Jon', 0, 1), (2, 'Israel', 1, 2), (3, 'Alex', 0, null)",
	"insert into fights (id, date, winner_id, rounds) values (1, '2020-01-01', 1, 5), (2, '2021-02-06', 1, 3), (3, '2022-03-04', 2, 5)",
}

func setup(t *testing.T, opts ...client.Option) *client.Client {
	t.Helper()
	ctx := context.Background()

	opts = append([]client.Option{client.WithDatabaseURL(":memory:")}, opts...)
	c, err := client.NewClient(testSchema, opts...)
	require.NoError(t, err)
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(func() { c.Disconnect(ctx) })

	for _, ddl := range []string{
		"create table coaches (id integer primary key, name text not null, city text)",
		"create table fighters (id integer primary key, name text not null, retired boolean not null default 0, coach_id integer references coaches(id))",
		"create table fights (id integer primary key, date date not null, winner_id integer not null references fighters(id), rounds integer not null)",
	} {
		_, err := c.Exec(ctx, ddl)
		require.NoError(t, err)
	}
	for _, stmt := range testData {
		_, err := c.Exec(ctx, stmt)
		require.NoError(t, err)
	}
	return c
}

func TestNewClient(t *testing.T) {
	_, err := client.NewClient("create table (")
	assert.True(t, client.IsSchemaError(err))

	c, err := client.NewClient(testSchema)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"coaches", "fighters", "fights"}, c.Tables())

	_, err = c.Query(context.Background(), "select id from fighters")
	assert.ErrorIs(t, err, client.ErrNotConnected)
	_, err = c.Table("fighters").Many(context.Background(), nil)
	assert.ErrorIs(t, err, client.ErrNotConnected)
}

func TestClient_Literal(t *testing.T) {
	ctx := context.Background()
	c := setup(t)

	t.Run("rows", func(t *testing.T) {
		rows, err := c.Query(ctx, "select id, name, retired from fighters order by id")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, int64(1), rows[0]["id"])
		assert.Equal(t, false, rows[0]["retired"])
		assert.Equal(t, true, rows[1]["retired"])
	})

	t.Run("named params", func(t *testing.T) {
		row, err := c.First(ctx, "select name, coach_id from fighters where id = $id", client.Params{"$id": 3})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "Alex", "coach_id": nil}, row)

		row, err = c.First(ctx, "select name from fighters where id = :id", client.Params{"id": 42})
		require.NoError(t, err)
		assert.Nil(t, row)
	})

	t.Run("positional params", func(t *testing.T) {
		values, err := c.Values(ctx, "select name from fighters where retired = ? order by name", false)
		require.NoError(t, err)
		assert.Equal(t, []any{"Alex", "Jon"}, values)
	})

	t.Run("value", func(t *testing.T) {
		n, err := c.Value(ctx, "select count(*) as n from fighters")
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		date, err := c.Value(ctx, "select date from fights where id = 1")
		require.NoError(t, err)
		require.IsType(t, time.Time{}, date)
		assert.Equal(t, 2020, date.(time.Time).Year())
	})

	t.Run("exec", func(t *testing.T) {
		res, err := c.Exec(ctx, "update fights set rounds = rounds where winner_id = ?", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.RowsAffected)
	})

	t.Run("untyped fallback", func(t *testing.T) {
		_, err := c.Exec(ctx, "create table notes (body text)")
		require.NoError(t, err)
		_, err = c.Exec(ctx, "insert into notes (body) values (?)", "hello")
		require.NoError(t, err)

		rows, err := c.Query(ctx, "select body from notes")
		require.NoError(t, err)
		assert.Equal(t, []map[string]any{{"body": "hello"}}, rows)
	})
}

func TestClient_Analyze(t *testing.T) {
	c, err := client.NewClient(testSchema)
	require.NoError(t, err)

	sql := "select f.name, c.name as coach from fighters f left join coaches c on c.id = f.coach_id"
	res, err := c.Analyze(sql)
	require.NoError(t, err)
	require.Len(t, res.Columns, 2)
	assert.False(t, res.Columns[0].Nullable)
	assert.True(t, res.Columns[1].Nullable)

	_, err = c.Analyze(sql)
	require.NoError(t, err)
	stats := c.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	_, err = c.Analyze("select weight from fighters")
	assert.True(t, client.IsAnalyzeError(err))
	_, err = c.Analyze("select weight from fighters")
	assert.True(t, client.IsAnalyzeError(err), "failed analyses are cached with their error")
}

func TestClient_AnalyzeLogRedactsLiterals(t *testing.T) {
	var buf bytes.Buffer
	debug.InitWith(&buf, debug.FormatText, false)
	t.Cleanup(func() { debug.Init(false) })

	c, err := client.NewClient(testSchema)
	require.NoError(t, err)

	_, err = c.Analyze("select body from notes where body = 'hunter2' -- owner: jon")
	require.True(t, client.IsAnalyzeError(err))

	out := buf.String()
	assert.Contains(t, out, "results are untyped")
	assert.Contains(t, out, "from notes where body")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "owner")
}

func TestTable_Reads(t *testing.T) {
	ctx := context.Background()
	c := setup(t)
	fighters := c.Table("fighters")

	row, err := fighters.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Jon", row["name"])
	assert.Equal(t, false, row["retired"])

	rows, err := fighters.Many(ctx, client.Where{"retired": false}, client.Options{
		Select:  []string{"name"},
		OrderBy: []string{"name"},
		Include: []client.Include{{Name: "coach", Table: "coaches", Kind: client.ToOne, Select: []string{"name"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"name": "Alex", "coach": nil},
		{"name": "Jon", "coach": map[string]any{"name": "Eugene"}},
	}, rows)

	name, err := fighters.Value(ctx, "name", client.Where{"id": client.Gt(1)}, client.Options{OrderBy: []string{"id"}})
	require.NoError(t, err)
	assert.Equal(t, "Israel", name)

	names, err := fighters.Values(ctx, "name", client.Where{"coach_id": nil})
	require.NoError(t, err)
	assert.Equal(t, []any{"Alex"}, names)

	exists, err := fighters.Exists(ctx, client.Where{"name": client.Like("J%")})
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = fighters.Many(ctx, client.Where{"weight": 1})
	assert.True(t, client.IsValidationError(err))
	assert.ErrorIs(t, err, client.ErrUnknownColumn)
}

func TestTable_Aggregates(t *testing.T) {
	ctx := context.Background()
	c := setup(t)
	fights := c.Table("fights")

	n, err := c.Table("fighters").Count(ctx, client.Where{"retired": false})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	sum, err := fights.Sum(ctx, "rounds", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(13), sum)

	maxRounds, err := fights.Max(ctx, "rounds", client.Where{"winner_id": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(5), maxRounds)

	groups, err := fights.GroupBy("winner_id").Count(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []map[string]any{
		{"winner_id": int64(1), "count": int64(2)},
		{"winner_id": int64(2), "count": int64(1)},
	}, groups)

	groups, err = fights.GroupBy("winner_id").Where(client.Where{"winner_id": 1}).As("total").Sum(ctx, "rounds")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"winner_id": int64(1), "total": int64(8)}}, groups)
}

func TestTable_Writes(t *testing.T) {
	ctx := context.Background()
	c := setup(t)
	coaches := c.Table("coaches")

	id, err := coaches.Insert(ctx, map[string]any{"name": "Firas", "city": "Montreal"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	n, err := coaches.InsertMany(ctx, []map[string]any{{"name": "Greg"}, {"name": "Trevor"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = coaches.Update(ctx, client.Where{"city": nil}, map[string]any{"city": "unknown"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = coaches.Upsert(ctx, map[string]any{"id": 1, "name": "Gene"}, client.Conflict{Target: []string{"id"}})
	require.NoError(t, err)
	row, err := coaches.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Gene", row["name"])

	n, err = coaches.Delete(ctx, client.Where{"id": client.Gt(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestClient_Transaction(t *testing.T) {
	ctx := context.Background()
	c := setup(t)

	failed := errors.New("abort")
	err := c.Transaction(ctx, func(tx *client.Tx) error {
		if _, err := tx.Table("coaches").Insert(ctx, map[string]any{"name": "Greg"}); err != nil {
			return err
		}
		n, err := tx.Table("coaches").Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		return failed
	})
	assert.ErrorIs(t, err, failed)

	n, err := c.Table("coaches").Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	err = c.Transaction(ctx, func(tx *client.Tx) error {
		_, err := tx.Exec(ctx, "insert into coaches (name) values (?)", "Greg")
		return err
	})
	require.NoError(t, err)
	n, err = c.Table("coaches").Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestClient_Select(t *testing.T) {
	ctx := context.Background()
	c := setup(t)

	out, err := c.Select(ctx, func(b *client.Builder) {
		f, co := b.Table("fighters"), b.Table("coaches")
		b.Select(expr.As("name", f.Col("name")), expr.As("coach", co.Col("name"))).
			Join(f.Col("coach_id"), co.Col("id")).
			Where(expr.Eq(f.Col("retired"), true))
	})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"name": "Israel", "coach": "Mike"}}, out)

	query, err := c.Compile(ctx, func(b *client.Builder) {
		f := b.Table("fights")
		b.Value(expr.Sum(f.Col("rounds"))).First()
	})
	require.NoError(t, err)
	total, err := c.Execute(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, int64(13), total)
}

func TestClient_CompileOffline(t *testing.T) {
	ctx := context.Background()
	c, err := client.NewClient(testSchema)
	require.NoError(t, err)

	build := func(b *client.Builder) {
		f := b.Table("fighters")
		b.Select(expr.As("name", f.Col("name"))).Where(expr.Eq(f.Col("retired"), true))
	}
	offline, err := c.Compile(ctx, build)
	require.NoError(t, err)
	assert.NotEmpty(t, offline.SQL)

	_, err = c.Execute(ctx, offline)
	assert.ErrorIs(t, err, client.ErrNotConnected)

	require.NoError(t, c.Connect(ctx))
	t.Cleanup(func() { c.Disconnect(ctx) })
	online, err := c.Compile(ctx, build)
	require.NoError(t, err)
	assert.Equal(t, offline.SQL, online.SQL)
	assert.Equal(t, offline.Params, online.Params)
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	c := setup(t)

	rows, err := c.Table("fighters").Many(ctx, nil, client.Options{OrderBy: []string{"id"}})
	require.NoError(t, err)

	var fighters []struct {
		ID      int64  `db:"id"`
		Name    string `db:"name"`
		Retired bool   `db:"retired"`
	}
	require.NoError(t, client.Scan(rows, &fighters))
	require.Len(t, fighters, 3)
	assert.Equal(t, "Israel", fighters[1].Name)
	assert.True(t, fighters[1].Retired)
}

func TestClient_Telemetry(t *testing.T) {
	ctx := context.Background()
	stats := telemetry.NewStatsTelemetry()
	c := setup(t, client.WithTelemetry(stats), client.WithQueryTimeout(time.Second))

	_, err := c.Table("fighters").Many(ctx, nil)
	require.NoError(t, err)

	var found bool
	for _, e := range stats.Snapshot() {
		if e.Table == "fighters" && e.Operation == "findMany" {
			found = true
			assert.Equal(t, int64(1), e.Count)
		}
	}
	assert.True(t, found)
}
