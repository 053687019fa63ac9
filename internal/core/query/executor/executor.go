// Package executor implements query execution.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/satishbabariya/sqltyped/internal/adapters/database"
	"github.com/satishbabariya/sqltyped/internal/adapters/telemetry"
	"github.com/satishbabariya/sqltyped/internal/core/query/compiler"
	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	"github.com/satishbabariya/sqltyped/internal/core/query/mapper"
	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
	"github.com/satishbabariya/sqltyped/internal/debug"
)

// QueryExecutor runs compiled queries through a database runner and
// shapes the rows with the result mapper.
type QueryExecutor struct {
	db        database.Runner
	compiler  *compiler.Compiler
	mapper    *mapper.ResultMapper
	telemetry telemetry.Telemetry
	// parallel bounds concurrent relation loads. Transactions use 1.
	parallel int
}

// Option configures a QueryExecutor.
type Option func(*QueryExecutor)

// WithTelemetry records every execution.
func WithTelemetry(t telemetry.Telemetry) Option {
	return func(e *QueryExecutor) {
		e.telemetry = t
	}
}

// WithParallelism bounds the relation loads running at once.
func WithParallelism(n int) Option {
	return func(e *QueryExecutor) {
		e.parallel = n
	}
}

// NewQueryExecutor creates a new query executor.
func NewQueryExecutor(db database.Runner, comp *compiler.Compiler, opts ...Option) *QueryExecutor {
	e := &QueryExecutor{
		db:        db,
		compiler:  comp,
		mapper:    mapper.NewResultMapper(),
		telemetry: telemetry.NewNoopTelemetry(),
		parallel:  4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRunner returns an executor sharing this one's configuration that
// runs statements on r. Relation loads run one at a time, since a
// transaction holds a single connection.
func (e *QueryExecutor) WithRunner(r database.Runner) *QueryExecutor {
	cp := *e
	cp.db = r
	cp.parallel = 1
	return &cp
}

// Compiler returns the compiler used for table queries.
func (e *QueryExecutor) Compiler() *compiler.Compiler {
	return e.compiler
}

// Execute runs a compiled query and folds its rows into the query's
// shape. Statements without result columns return nil.
func (e *QueryExecutor) Execute(ctx context.Context, query *domain.CompiledQuery) (any, error) {
	return e.execute(ctx, "", "query", query)
}

// ExecuteArgs is Execute with driver arguments given explicitly instead
// of taken from the query's named parameters. Literal SQL with
// positional parameters runs through it.
func (e *QueryExecutor) ExecuteArgs(ctx context.Context, query *domain.CompiledQuery, args []any) (any, error) {
	if !query.Returns() {
		_, err := e.runArgs(ctx, "", "query", query, args)
		return nil, err
	}
	rows, err := e.allArgs(ctx, "", "query", query, args)
	if err != nil {
		return nil, err
	}
	return e.mapper.Map(rows, query.Columns, query.Shape)
}

// RunArgs runs a statement with explicit driver arguments and returns
// its effect.
func (e *QueryExecutor) RunArgs(ctx context.Context, query *domain.CompiledQuery, args []any) (database.Result, error) {
	return e.runArgs(ctx, "", "exec", query, args)
}

func (e *QueryExecutor) execute(ctx context.Context, table, op string, query *domain.CompiledQuery) (any, error) {
	if !query.Returns() {
		_, err := e.run(ctx, table, op, query)
		return nil, err
	}
	rows, err := e.all(ctx, table, op, query)
	if err != nil {
		return nil, err
	}
	return e.mapper.Map(rows, query.Columns, query.Shape)
}

// ExecuteMutation runs a statement without result rows and returns the
// number of rows it changed.
func (e *QueryExecutor) ExecuteMutation(ctx context.Context, query *domain.CompiledQuery) (int64, error) {
	res, err := e.run(ctx, "", "exec", query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// Query compiles a table query, runs it and loads its includes. Insert
// returns the new primary key; the other writes return the number of
// rows changed.
func (e *QueryExecutor) Query(ctx context.Context, q *domain.Query) (any, error) {
	if e.compiler == nil {
		return nil, fmt.Errorf("compiler not initialized")
	}
	switch q.Operation {
	case domain.FindFirst, domain.FindMany:
		if len(q.Include) > 0 || relationFilter(q) {
			return e.find(ctx, q)
		}
	case domain.Insert:
		return e.insert(ctx, q)
	case domain.InsertMany, domain.Update, domain.Upsert, domain.Delete:
		compiled, err := e.compiler.Compile(ctx, q)
		if err != nil {
			return nil, err
		}
		res, err := e.run(ctx, q.Table, string(q.Operation), compiled)
		if err != nil {
			return nil, err
		}
		return res.RowsAffected, nil
	}

	compiled, err := e.compiler.Compile(ctx, q)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, q.Table, string(q.Operation), compiled)
}

// insert returns the primary key of the new row. Without a returning
// clause the key is read from the last inserted rowid, or from the data
// when the key is not an integer.
func (e *QueryExecutor) insert(ctx context.Context, q *domain.Query) (any, error) {
	compiled, err := e.compiler.Compile(ctx, q)
	if err != nil {
		return nil, err
	}
	if compiled.Returns() {
		return e.execute(ctx, q.Table, string(q.Operation), compiled)
	}
	res, err := e.run(ctx, q.Table, string(q.Operation), compiled)
	if err != nil {
		return nil, err
	}
	table, _ := e.compiler.Catalog().Table(q.Table)
	pk := table.PrimaryKey()
	switch {
	case pk == nil:
		return nil, nil
	case pk.Type == schemadomain.TypeInteger:
		return res.LastInsertID, nil
	}
	return q.Data[pk.Name], nil
}

// all fetches rows and records the execution.
func (e *QueryExecutor) all(ctx context.Context, table, op string, query *domain.CompiledQuery) ([]map[string]any, error) {
	return e.allArgs(ctx, table, op, query, query.Args())
}

func (e *QueryExecutor) allArgs(ctx context.Context, table, op string, query *domain.CompiledQuery, args []any) ([]map[string]any, error) {
	if e.db == nil {
		return nil, fmt.Errorf("database adapter not initialized")
	}
	start := time.Now()
	rows, err := e.db.All(ctx, query.SQL, args...)
	e.record(ctx, table, op, query, start, int64(len(rows)), err)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// run executes a statement and records the execution.
func (e *QueryExecutor) run(ctx context.Context, table, op string, query *domain.CompiledQuery) (database.Result, error) {
	return e.runArgs(ctx, table, op, query, query.Args())
}

func (e *QueryExecutor) runArgs(ctx context.Context, table, op string, query *domain.CompiledQuery, args []any) (database.Result, error) {
	if e.db == nil {
		return database.Result{}, fmt.Errorf("database adapter not initialized")
	}
	start := time.Now()
	res, err := e.db.Run(ctx, query.SQL, args...)
	e.record(ctx, table, op, query, start, res.RowsAffected, err)
	if err != nil {
		return database.Result{}, fmt.Errorf("failed to execute statement: %w", err)
	}
	return res, nil
}

func (e *QueryExecutor) record(ctx context.Context, table, op string, query *domain.CompiledQuery, start time.Time, rows int64, err error) {
	if err != nil {
		debug.Debug("Statement failed", "sql", query.SQL, "error", err)
		e.telemetry.RecordError(ctx, telemetry.ErrorInfo{Error: err, Table: table, Operation: op, SQL: query.SQL})
	}
	e.telemetry.RecordQuery(ctx, telemetry.QueryInfo{
		Table:     table,
		Operation: op,
		SQL:       query.SQL,
		Duration:  time.Since(start),
		Success:   err == nil,
		Rows:      rows,
		Typed:     len(query.Columns) > 0 || !query.Returns(),
	})
}
