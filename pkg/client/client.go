// Package client provides the public API: typed literal SQL, table
// queries and builder selects over a SQLite database.
package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/satishbabariya/sqltyped/internal/adapters/database"
	"github.com/satishbabariya/sqltyped/internal/adapters/database/sqlite"
	"github.com/satishbabariya/sqltyped/internal/adapters/telemetry"
	"github.com/satishbabariya/sqltyped/internal/core/query/builder"
	"github.com/satishbabariya/sqltyped/internal/core/query/cache"
	"github.com/satishbabariya/sqltyped/internal/core/query/compiler"
	querydomain "github.com/satishbabariya/sqltyped/internal/core/query/domain"
	"github.com/satishbabariya/sqltyped/internal/core/query/executor"
	"github.com/satishbabariya/sqltyped/internal/core/query/mapper"
	"github.com/satishbabariya/sqltyped/internal/core/schema"
	"github.com/satishbabariya/sqltyped/internal/core/sqltext"
	"github.com/satishbabariya/sqltyped/internal/core/sqltext/scan"
	"github.com/satishbabariya/sqltyped/internal/debug"
)

type (
	// Analysis is the inferred result of a literal statement.
	Analysis = sqltext.Result
	// CompiledQuery is SQL with named parameters and result metadata.
	CompiledQuery = querydomain.CompiledQuery
	// Result reports the effect of Exec.
	Result = database.Result
	// CacheStats reports analysis cache usage.
	CacheStats = cache.Stats
	// Engine describes the connected database engine.
	Engine = database.Engine
)

// Params binds named parameters of literal SQL. Keys may carry the $, :
// or @ prefix used in the statement.
type Params map[string]any

// Client runs typed queries against one database.
type Client struct {
	config   *Config
	catalog  *schema.Catalog
	analyzer *sqltext.Analyzer
	// compiler is built with the client so builder selects compile
	// without a connection. Connect swaps it when the engine's returning
	// support differs.
	compiler  *compiler.Compiler
	analyses  *cache.LRU[*statement]
	telemetry telemetry.Telemetry

	db       database.Adapter
	executor *executor.QueryExecutor
	// tx is set on clients bound to a transaction.
	tx database.Transaction
}

// statement is a cached analysis. A failed analysis is cached too, so
// the statement keeps running untyped without being parsed again.
type statement struct {
	result *sqltext.Result
	err    error
}

// NewClient creates a client for the schema in ddl. The schema is the
// only source of type information; the database is never inspected.
func NewClient(ddl string, opts ...Option) (*Client, error) {
	config := DefaultConfig()
	ApplyOptions(config, opts...)

	catalog, err := sqltext.LoadCatalog(ddl)
	if err != nil {
		return nil, err
	}
	c := &Client{
		config:    config,
		catalog:   catalog,
		analyzer:  sqltext.NewAnalyzer(catalog),
		compiler:  compiler.NewCompiler(catalog),
		analyses:  cache.New[*statement](config.CacheSize, config.CacheTTL),
		telemetry: config.Telemetry,
	}
	if c.telemetry == nil {
		c.telemetry = telemetry.NewNoopTelemetry()
	}
	return c, nil
}

// Connect opens the database. Engines without returning support get
// inserts that read the key back from the last rowid.
func (c *Client) Connect(ctx context.Context) error {
	if c.tx != nil {
		return fmt.Errorf("cannot connect a transaction client")
	}
	db := sqlite.NewSQLiteAdapter(database.Config{
		URL:            c.config.DatabaseURL,
		StatementCache: c.config.StatementCache,
	})
	if err := db.Connect(ctx); err != nil {
		return err
	}
	engine := db.Engine()
	if !engine.Returning {
		debug.Info("Engine has no returning clause, inserts read last_insert_rowid()", "version", engine.Version.String())
	}
	c.db = db
	if c.compiler.Returning() != engine.Returning {
		c.compiler = compiler.NewCompiler(c.catalog, compiler.WithReturning(engine.Returning))
	}
	c.executor = executor.NewQueryExecutor(db, c.compiler, executor.WithTelemetry(c.telemetry))
	return nil
}

// Disconnect closes the database and flushes telemetry.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.db == nil || c.tx != nil {
		return nil
	}
	if err := c.telemetry.Flush(ctx); err != nil {
		debug.Warn("Failed to flush telemetry", "error", err)
	}
	err := c.db.Disconnect(ctx)
	c.db = nil
	c.executor = nil
	return err
}

// Engine returns the capabilities of the connected engine.
func (c *Client) Engine() (Engine, error) {
	if c.db == nil {
		return Engine{}, ErrNotConnected
	}
	return c.db.Engine(), nil
}

// Tables returns the names of the tables and views in the schema.
func (c *Client) Tables() []string {
	tables := c.catalog.Tables()
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

// CacheStats reports analysis cache usage.
func (c *Client) CacheStats() CacheStats {
	return c.analyses.Stats()
}

// Analyze infers the result columns of a literal statement. Errors are
// *AnalyzeError for SQL the analyzer does not understand.
func (c *Client) Analyze(sql string) (*Analysis, error) {
	st, err := c.analyze(sql)
	if err != nil {
		return nil, err
	}
	return st.result, st.err
}

func (c *Client) analyze(sql string) (*statement, error) {
	key := cache.Key("analysis", sql)
	if st, ok := c.analyses.Get(key); ok {
		debug.Debug("Analysis cache hit", "sql", redact(sql))
		return st, nil
	}
	res, err := c.analyzer.AnalyzeStatement(sql)
	st := &statement{result: res}
	if err != nil {
		var ae *sqltext.AnalyzeError
		if !errors.As(err, &ae) {
			return nil, err
		}
		debug.Warn("Query analysis failed, results are untyped", "sql", redact(sql), "error", err)
		st = &statement{err: err}
	}
	c.analyses.Set(key, st, 0)
	return st, nil
}

// redact blanks string literals and comments so logged statements carry
// no inline data.
func redact(sql string) string {
	masked, err := scan.Mask(sql)
	if err != nil {
		return ""
	}
	return masked
}

func (st *statement) columns() []Column {
	if st.result == nil {
		return nil
	}
	return st.result.Columns
}

// Query runs literal SQL and returns its rows with values converted to
// the inferred column types.
func (c *Client) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	out, err := c.literal(ctx, sql, querydomain.ShapeArray, args)
	if err != nil {
		return nil, err
	}
	return out.([]map[string]any), nil
}

// First runs literal SQL and returns its first row, or nil.
func (c *Client) First(ctx context.Context, sql string, args ...any) (map[string]any, error) {
	out, err := c.literal(ctx, sql, querydomain.ShapeObject, args)
	if err != nil || out == nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

// Value runs literal SQL selecting one column and returns the value of
// the first row, or nil.
func (c *Client) Value(ctx context.Context, sql string, args ...any) (any, error) {
	return c.literal(ctx, sql, querydomain.ShapeValue, args)
}

// Values runs literal SQL selecting one column and returns its values.
func (c *Client) Values(ctx context.Context, sql string, args ...any) ([]any, error) {
	out, err := c.literal(ctx, sql, querydomain.ShapeValues, args)
	if err != nil {
		return nil, err
	}
	return out.([]any), nil
}

// Exec runs a literal statement without reading rows.
func (c *Client) Exec(ctx context.Context, sql string, args ...any) (Result, error) {
	if c.executor == nil {
		return Result{}, ErrNotConnected
	}
	params, err := bindArgs(args)
	if err != nil {
		return Result{}, err
	}
	ctx, cancel := c.context(ctx)
	defer cancel()
	return c.executor.RunArgs(ctx, &CompiledQuery{SQL: sql, Shape: querydomain.ShapeNone}, params)
}

func (c *Client) literal(ctx context.Context, sql string, shape querydomain.ResultShape, args []any) (any, error) {
	if c.executor == nil {
		return nil, ErrNotConnected
	}
	st, err := c.analyze(sql)
	if err != nil {
		return nil, err
	}
	params, err := bindArgs(args)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.context(ctx)
	defer cancel()
	query := &CompiledQuery{SQL: sql, Columns: st.columns(), Shape: shape}
	if st.result != nil {
		query.Tables = st.result.Tables
	}
	return c.executor.ExecuteArgs(ctx, query, params)
}

// Compile builds a select with the expression builder and compiles it.
// The result can be run with Execute or used as a subquery with
// Builder.Use.
func (c *Client) Compile(ctx context.Context, fn func(b *Builder)) (*CompiledQuery, error) {
	b := builder.New(c.catalog)
	fn(b)
	sel, err := b.Build()
	if err != nil {
		return nil, err
	}
	return c.compiler.CompileSelect(ctx, sel)
}

// Select builds, compiles and runs a select. Rows come back as objects,
// or as values when the builder selects a single value.
func (c *Client) Select(ctx context.Context, fn func(b *Builder)) (any, error) {
	query, err := c.Compile(ctx, fn)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, query)
}

// Execute runs a compiled query.
func (c *Client) Execute(ctx context.Context, query *CompiledQuery) (any, error) {
	if c.executor == nil {
		return nil, ErrNotConnected
	}
	ctx, cancel := c.context(ctx)
	defer cancel()
	debug.Debug("Executing compiled query", "sql", query.SQL)
	return c.executor.Execute(ctx, query)
}

func (c *Client) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.config.QueryTimeout)
}

// bindArgs converts literal SQL arguments into driver arguments. A single
// Params value binds by name; anything else binds by position.
func bindArgs(args []any) ([]any, error) {
	if len(args) == 1 {
		if params, ok := args[0].(Params); ok {
			names := make([]string, 0, len(params))
			for name := range params {
				names = append(names, name)
			}
			sort.Strings(names)
			out := make([]any, len(names))
			for i, name := range names {
				v, err := compiler.BindValue(params[name])
				if err != nil {
					return nil, err
				}
				out[i] = sql.Named(strings.TrimLeft(name, "$:@"), v)
			}
			return out, nil
		}
	}
	out := make([]any, len(args))
	for i, arg := range args {
		if named, ok := arg.(sql.NamedArg); ok {
			v, err := compiler.BindValue(named.Value)
			if err != nil {
				return nil, err
			}
			out[i] = sql.Named(named.Name, v)
			continue
		}
		v, err := compiler.BindValue(arg)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Scan copies a query result into dest. Rows fill structs or maps
// matched by db or json tags, row lists fill slices and values fill
// basic types. A nil result leaves dest untouched.
func Scan(result any, dest any) error {
	return mapper.NewResultMapper().Scan(result, dest)
}
