package executor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/satishbabariya/sqltyped/internal/adapters/database"
	"github.com/satishbabariya/sqltyped/internal/adapters/database/sqlite"
	"github.com/satishbabariya/sqltyped/internal/adapters/telemetry"
	"github.com/satishbabariya/sqltyped/internal/core/query/compiler"
	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	"github.com/satishbabariya/sqltyped/internal/core/query/executor"
	"github.com/satishbabariya/sqltyped/internal/core/sqltext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
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

const testData = `
insert into coaches (id, name, city) values (1, 'Eugene', 'Albuquerque'), (2, 'Mike', null);
insert into fighters (id, name, retired, coach_id) values (1, 'Jon', 0, 1), (2, 'Israel', 1, 2), (3, 'Alex', 0, null);
insert into fights (id, date, winner_id, rounds) values
  (1, '2020-01-01', 1, 5),
  (2, '2021-02-06', 1, 3),
  (3, '2022-03-04', 2, 5);
`

type fixture struct {
	db       *sqlite.SQLiteAdapter
	compiler *compiler.Compiler
	exec     *executor.QueryExecutor
	stats    *telemetry.StatsTelemetry
}

func setup(t *testing.T, opts ...compiler.Option) *fixture {
	t.Helper()
	ctx := context.Background()

	db := sqlite.NewSQLiteAdapter(database.Config{URL: ":memory:", StatementCache: 16})
	require.NoError(t, db.Connect(ctx))
	t.Cleanup(func() { db.Disconnect(ctx) })
	_, err := db.DB().ExecContext(ctx, testSchema+testData)
	require.NoError(t, err)

	catalog, err := sqltext.LoadCatalog(testSchema)
	require.NoError(t, err)
	comp := compiler.NewCompiler(catalog, opts...)
	stats := telemetry.NewStatsTelemetry()
	return &fixture{
		db:       db,
		compiler: comp,
		exec:     executor.NewQueryExecutor(db, comp, executor.WithTelemetry(stats)),
		stats:    stats,
	}
}

func (f *fixture) query(t *testing.T, q *domain.Query) any {
	t.Helper()
	result, err := f.exec.Query(context.Background(), q)
	require.NoError(t, err)
	return result
}

func names(t *testing.T, result any) []string {
	t.Helper()
	rows, ok := result.([]map[string]any)
	require.True(t, ok, "expected rows, got %T", result)
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row["name"].(string)
	}
	return out
}

func TestQueryExecutor_Find(t *testing.T) {
	f := setup(t)

	t.Run("many", func(t *testing.T) {
		result := f.query(t, &domain.Query{Table: "fighters", Operation: domain.FindMany, Where: domain.Where{"retired": false}, OrderBy: []string{"id"}})
		rows := result.([]map[string]any)
		require.Len(t, rows, 2)
		assert.Equal(t, map[string]any{"id": int64(1), "name": "Jon", "retired": false, "coach_id": int64(1)}, rows[0])
		assert.Nil(t, rows[1]["coach_id"])
	})

	t.Run("first value", func(t *testing.T) {
		result := f.query(t, &domain.Query{Table: "coaches", Operation: domain.FindFirst, Value: "city", Where: domain.Where{"id": 2}})
		assert.Nil(t, result)
		result = f.query(t, &domain.Query{Table: "coaches", Operation: domain.FindFirst, Value: "city", Where: domain.Where{"id": 1}})
		assert.Equal(t, "Albuquerque", result)
	})

	t.Run("no match", func(t *testing.T) {
		result := f.query(t, &domain.Query{Table: "coaches", Operation: domain.FindFirst, Where: domain.Where{"id": 99}})
		assert.Nil(t, result)
		result = f.query(t, &domain.Query{Table: "coaches", Operation: domain.FindMany, Where: domain.Where{"id": 99}})
		assert.Equal(t, []map[string]any{}, result)
	})

	t.Run("aggregate", func(t *testing.T) {
		result := f.query(t, &domain.Query{Table: "fights", Operation: domain.Aggregate, Aggregation: &domain.Aggregation{Func: domain.Sum, Column: "rounds"}})
		assert.Equal(t, int64(13), result)
		result = f.query(t, &domain.Query{Table: "fighters", Operation: domain.Exists, Where: domain.Where{"name": "Alex"}})
		assert.Equal(t, true, result)
	})
}

func TestQueryExecutor_Includes(t *testing.T) {
	f := setup(t)

	t.Run("to one", func(t *testing.T) {
		result := f.query(t, &domain.Query{
			Table:     "fighters",
			Operation: domain.FindMany,
			Select:    []string{"name"},
			OrderBy:   []string{"id"},
			Include:   []domain.Include{{Name: "coach", Table: "coaches", Select: []string{"name"}}},
		})
		assert.Equal(t, []map[string]any{
			{"name": "Jon", "coach": map[string]any{"name": "Eugene"}},
			{"name": "Israel", "coach": map[string]any{"name": "Mike"}},
			{"name": "Alex", "coach": nil},
		}, result)
	})

	t.Run("to many", func(t *testing.T) {
		result := f.query(t, &domain.Query{
			Table:     "fighters",
			Operation: domain.FindMany,
			Select:    []string{"name"},
			OrderBy:   []string{"id"},
			Include:   []domain.Include{{Table: "fights", Select: []string{"rounds"}, OrderBy: []string{"date"}}},
		})
		assert.Equal(t, []map[string]any{
			{"name": "Jon", "fights": []map[string]any{{"rounds": int64(5)}, {"rounds": int64(3)}}},
			{"name": "Israel", "fights": []map[string]any{{"rounds": int64(5)}}},
			{"name": "Alex", "fights": []map[string]any{}},
		}, result)
	})

	t.Run("paginated per parent", func(t *testing.T) {
		result := f.query(t, &domain.Query{
			Table:     "fighters",
			Operation: domain.FindMany,
			Select:    []string{"name"},
			OrderBy:   []string{"id"},
			Include: []domain.Include{{
				Name:    "latest",
				Table:   "fights",
				Value:   "rounds",
				OrderBy: []string{"date"},
				Desc:    true,
				Limit:   domain.Int(1),
			}},
		})
		assert.Equal(t, []map[string]any{
			{"name": "Jon", "latest": []any{int64(3)}},
			{"name": "Israel", "latest": []any{int64(5)}},
			{"name": "Alex", "latest": []any{}},
		}, result)
	})

	t.Run("count and exists default", func(t *testing.T) {
		result := f.query(t, &domain.Query{
			Table:     "fighters",
			Operation: domain.FindMany,
			Select:    []string{"name"},
			OrderBy:   []string{"id"},
			Include: []domain.Include{
				{Name: "wins", Table: "fights", Kind: domain.CountOf},
				{Name: "won", Table: "fights", Kind: domain.ExistsOf, Where: domain.Where{"rounds": 3}},
			},
		})
		assert.Equal(t, []map[string]any{
			{"name": "Jon", "wins": int64(2), "won": true},
			{"name": "Israel", "wins": int64(1), "won": false},
			{"name": "Alex", "wins": int64(0), "won": false},
		}, result)
	})

	t.Run("first keeps excluded key out", func(t *testing.T) {
		result := f.query(t, &domain.Query{
			Table:     "fighters",
			Operation: domain.FindFirst,
			Exclude:   []string{"id", "retired", "coach_id"},
			Where:     domain.Where{"id": 2},
			Include:   []domain.Include{{Name: "wins", Table: "fights", Kind: domain.CountOf}},
		})
		assert.Equal(t, map[string]any{"name": "Israel", "wins": int64(1)}, result)
	})

	t.Run("first without rows", func(t *testing.T) {
		result := f.query(t, &domain.Query{
			Table:     "fighters",
			Operation: domain.FindFirst,
			Where:     domain.Where{"id": 99},
			Include:   []domain.Include{{Table: "fights"}},
		})
		assert.Nil(t, result)
	})
}

func TestQueryExecutor_RelationFilters(t *testing.T) {
	f := setup(t)
	fights := domain.Include{Table: "fights", Where: domain.Where{"rounds": 5}, Select: []string{"id"}}

	result := f.query(t, &domain.Query{
		Table:     "fighters",
		Operation: domain.FindMany,
		Select:    []string{"name"},
		Where:     domain.Where{"fights": true},
		OrderBy:   []string{"id"},
		Include:   []domain.Include{fights},
	})
	assert.Equal(t, []string{"Jon", "Israel"}, names(t, result))

	result = f.query(t, &domain.Query{
		Table:     "fighters",
		Operation: domain.FindMany,
		Select:    []string{"name"},
		Where:     domain.Where{"fights": false, "retired": false},
		Include:   []domain.Include{fights},
	})
	assert.Equal(t, []string{"Alex"}, names(t, result))

	teammates := domain.Include{Name: "teammates", Table: "fighters", LocalKey: "coach_id", ForeignKey: "coach_id", Where: domain.Where{"retired": true}}
	result = f.query(t, &domain.Query{
		Table:     "fighters",
		Operation: domain.FindMany,
		Select:    []string{"name"},
		Where:     domain.Where{"teammates": false},
		OrderBy:   []string{"id"},
		Include:   []domain.Include{teammates},
	})
	assert.Equal(t, []string{"Jon", "Alex"}, names(t, result), "parents without a key have no children")

	result = f.query(t, &domain.Query{
		Table:     "fighters",
		Operation: domain.FindMany,
		Select:    []string{"name"},
		Where:     domain.Where{"wins": domain.Gt(1)},
		Include:   []domain.Include{{Name: "wins", Table: "fights", Kind: domain.CountOf}},
	})
	assert.Equal(t, []string{"Jon"}, names(t, result))

	_, err := f.exec.Query(context.Background(), &domain.Query{
		Table:     "fighters",
		Operation: domain.FindMany,
		Where:     domain.Where{"fights": 2},
		Include:   []domain.Include{fights},
	})
	var compileErr *domain.CompileError
	assert.ErrorAs(t, err, &compileErr)
}

func TestQueryExecutor_Writes(t *testing.T) {
	f := setup(t)

	id := f.query(t, &domain.Query{Table: "coaches", Operation: domain.Insert, Data: map[string]any{"name": "Freddie"}})
	assert.Equal(t, int64(3), id)

	affected := f.query(t, &domain.Query{Table: "fighters", Operation: domain.Update, Data: map[string]any{"retired": true}, Where: domain.Where{"retired": false}})
	assert.Equal(t, int64(2), affected)

	affected = f.query(t, &domain.Query{Table: "coaches", Operation: domain.InsertMany, Rows: []map[string]any{{"name": "A"}, {"name": "B", "city": "Denver"}}})
	assert.Equal(t, int64(2), affected)

	city := f.query(t, &domain.Query{Table: "coaches", Operation: domain.FindFirst, Value: "city", Where: domain.Where{"name": "B"}})
	assert.Equal(t, "Denver", city)

	affected = f.query(t, &domain.Query{Table: "coaches", Operation: domain.Delete, Where: domain.Where{"name": []string{"A", "B"}}})
	assert.Equal(t, int64(2), affected)
}

func TestQueryExecutor_InsertWithoutReturning(t *testing.T) {
	f := setup(t, compiler.WithReturning(false))

	id := f.query(t, &domain.Query{Table: "coaches", Operation: domain.Insert, Data: map[string]any{"name": "Freddie"}})
	assert.Equal(t, int64(3), id)
}

func TestQueryExecutor_Transaction(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	tx, err := f.db.Begin(ctx)
	require.NoError(t, err)
	txExec := f.exec.WithRunner(tx)

	_, err = txExec.Query(ctx, &domain.Query{Table: "coaches", Operation: domain.Insert, Data: map[string]any{"name": "Freddie"}})
	require.NoError(t, err)
	result, err := txExec.Query(ctx, &domain.Query{
		Table:     "coaches",
		Operation: domain.FindMany,
		Select:    []string{"name"},
		OrderBy:   []string{"id"},
		Include:   []domain.Include{{Name: "fighters", Table: "fighters", Kind: domain.CountOf}},
	})
	require.NoError(t, err)
	assert.Len(t, result, 3)
	require.NoError(t, tx.Rollback())

	count := f.query(t, &domain.Query{Table: "coaches", Operation: domain.Aggregate, Aggregation: &domain.Aggregation{Func: domain.Count}})
	assert.Equal(t, int64(2), count)
}

func TestQueryExecutor_Telemetry(t *testing.T) {
	f := setup(t)
	f.query(t, &domain.Query{
		Table:     "fighters",
		Operation: domain.FindMany,
		Include:   []domain.Include{{Table: "fights"}},
	})

	snapshot := f.stats.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "fighters", snapshot[0].Table)
	assert.Equal(t, "findMany", snapshot[0].Operation)
	assert.Equal(t, "fights", snapshot[1].Table)
	assert.Equal(t, "include", snapshot[1].Operation)
	assert.Equal(t, int64(1), snapshot[1].Count)
}

// mockRunner is a mock implementation of database.Runner.
type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, query string, params ...any) (database.Result, error) {
	args := m.Called(ctx, query, params)
	return args.Get(0).(database.Result), args.Error(1)
}

func (m *mockRunner) All(ctx context.Context, query string, params ...any) ([]map[string]any, error) {
	args := m.Called(ctx, query, params)
	rows, _ := args.Get(0).([]map[string]any)
	return rows, args.Error(1)
}

func TestQueryExecutor_RunnerErrors(t *testing.T) {
	ctx := context.Background()
	catalog, err := sqltext.LoadCatalog(testSchema)
	require.NoError(t, err)
	comp := compiler.NewCompiler(catalog)
	boom := errors.New("disk I/O error")

	runner := &mockRunner{}
	runner.On("All", mock.Anything, "select * from coaches", mock.Anything).Return(nil, boom)
	runner.On("Run", mock.Anything, "delete from coaches", mock.Anything).Return(database.Result{}, boom)

	stats := telemetry.NewStatsTelemetry()
	exec := executor.NewQueryExecutor(runner, comp, executor.WithTelemetry(stats))

	_, err = exec.Query(ctx, &domain.Query{Table: "coaches", Operation: domain.FindMany})
	assert.ErrorIs(t, err, boom)
	_, err = exec.Query(ctx, &domain.Query{Table: "coaches", Operation: domain.Delete})
	assert.ErrorIs(t, err, boom)
	runner.AssertExpectations(t)

	for _, entry := range stats.Snapshot() {
		assert.Equal(t, int64(1), entry.Errors, entry.Operation)
	}

	_, err = exec.Query(ctx, &domain.Query{Table: "nope", Operation: domain.FindMany})
	assert.ErrorIs(t, err, domain.ErrUnknownTable)
}

func TestQueryExecutor_Execute(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	compiled, err := f.compiler.Compile(ctx, &domain.Query{Table: "fighters", Operation: domain.FindMany, Value: "name", OrderBy: []string{"name"}})
	require.NoError(t, err)
	result, err := f.exec.Execute(ctx, compiled)
	require.NoError(t, err)
	assert.Equal(t, []any{"Alex", "Israel", "Jon"}, result)

	compiled, err = f.compiler.Compile(ctx, &domain.Query{Table: "fights", Operation: domain.Delete, Where: domain.Where{"rounds": 5}})
	require.NoError(t, err)
	affected, err := f.exec.ExecuteMutation(ctx, compiled)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
}
