// Package typeq provides typed SQL query construction and execution for Go
// with support for PostgreSQL, MySQL, and SQLite. Queries are built against
// registered table metadata, compiled into immutable plans before any I/O,
// and executed with prepared statement caching, structured logging, and
// OpenTelemetry tracing out of the box.
package typeq

import (
	"github.com/coregx/typeq/internal/core"
	"github.com/coregx/typeq/internal/logger"
	"github.com/coregx/typeq/internal/migrate"
	"github.com/coregx/typeq/internal/tracer"
)

type (
	// DB represents a database handle with caching and tracing capabilities.
	DB = core.DB
	// DBStats aggregates pool, statement cache, and health metrics.
	DBStats = core.DBStats
	// Option is a functional option for configuring DB.
	Option = core.Option
	// QueryBuilder constructs typed statements against one database handle.
	QueryBuilder = core.QueryBuilder
	// SelectQuery represents a SELECT statement being built.
	SelectQuery = core.SelectQuery
	// InsertQuery represents an INSERT statement being built.
	InsertQuery = core.InsertQuery
	// UpdateQuery represents an UPDATE statement being built.
	UpdateQuery = core.UpdateQuery
	// DeleteQuery represents a DELETE statement being built.
	DeleteQuery = core.DeleteQuery
	// Plan is an immutable compiled statement, executable many times.
	Plan = core.Plan
	// Tx represents a database transaction.
	Tx = core.Tx
	// TxOptions represents transaction options including isolation level.
	TxOptions = core.TxOptions

	// Registry holds table metadata for query construction.
	Registry = core.Registry
	// ColumnDef describes one column of a table being registered.
	ColumnDef = core.ColumnDef
	// Mode governs how a column's values are encoded and decoded.
	Mode = core.Mode
	// Table is the handle of a registered table.
	Table = core.Table
	// TableAlias is a named re-binding of a table within one query scope.
	TableAlias = core.TableAlias
	// Column is a typed column handle usable in expressions and projections.
	Column = core.Column

	// Expr is an immutable node of the query expression tree.
	Expr = core.Expr
	// LikeExp represents a LIKE expression with automatic escaping.
	LikeExp = core.LikeExp
	// Params holds named parameter values bound at plan execution.
	Params = core.Params
	// Record is one mapped result row.
	Record = core.Record
	// NullStringMap represents a row scanned as nullable strings.
	NullStringMap = core.NullStringMap
	// QueryEvent describes one executed statement, passed to query hooks.
	QueryEvent = core.QueryEvent
	// QueryHook is a callback invoked after each statement execution.
	QueryHook = core.QueryHook

	// SchemaError reports a reference to an unknown table or column.
	SchemaError = core.SchemaError
	// CompileError reports an invalid query AST caught at Build.
	CompileError = core.CompileError
	// ParameterError reports a named placeholder missing at execution.
	ParameterError = core.ParameterError

	// MigrationRunner applies ordered SQL migration files idempotently.
	MigrationRunner = migrate.Runner
	// Migration is one bookkeeping record of an applied migration file.
	Migration = migrate.Migration
	// MigrationError reports a failure applying or verifying a migration.
	MigrationError = migrate.MigrationError

	// Logger is the structured logging interface.
	Logger = logger.Logger
	// Tracer is the tracing interface for query execution spans.
	Tracer = tracer.Tracer
	// Span represents an active tracing span.
	Span = tracer.Span
)

// Column value modes.
const (
	ModePlain = core.ModePlain
	ModeBool  = core.ModeBool
	ModeTime  = core.ModeTime
	ModeJSON  = core.ModeJSON
)

// Re-export core errors.
var (
	ErrNoRows             = core.ErrNoRows
	ErrTxDone             = core.ErrTxDone
	ErrUnsupportedDialect = core.ErrUnsupportedDialect
)

// Re-export core functions.
var (
	Open                  = core.Open
	NewDB                 = core.NewDB
	WrapDB                = core.WrapDB
	NewRegistry           = core.NewRegistry
	WithMaxOpenConns      = core.WithMaxOpenConns
	WithMaxIdleConns      = core.WithMaxIdleConns
	WithConnMaxLifetime   = core.WithConnMaxLifetime
	WithConnMaxIdleTime   = core.WithConnMaxIdleTime
	WithStmtCacheCapacity = core.WithStmtCacheCapacity
	WithLogger            = core.WithLogger
	WithSlog              = core.WithSlog
	WithSensitiveFields   = core.WithSensitiveFields
	WithTracer            = core.WithTracer
	WithQueryHook         = core.WithQueryHook
	WithHealthCheck       = core.WithHealthCheck

	// Expression builders
	NewExp         = core.NewExp
	Value          = core.Value
	Param          = core.Param
	Col            = core.Col
	As             = core.As
	Subquery       = core.Subquery
	Eq             = core.Eq
	NotEq          = core.NotEq
	GreaterThan    = core.GreaterThan
	LessThan       = core.LessThan
	GreaterOrEqual = core.GreaterOrEqual
	LessOrEqual    = core.LessOrEqual
	In             = core.In
	NotIn          = core.NotIn
	Between        = core.Between
	NotBetween     = core.NotBetween
	Like           = core.Like
	NotLike        = core.NotLike
	OrLike         = core.OrLike
	OrNotLike      = core.OrNotLike
	And            = core.And
	Or             = core.Or
	Not            = core.Not
	Exists         = core.Exists
	NotExists      = core.NotExists
	Asc            = core.Asc
	Desc           = core.Desc

	// Aggregate and scalar functions
	Count         = core.Count
	CountDistinct = core.CountDistinct
	Sum           = core.Sum
	Avg           = core.Avg
	Min           = core.Min
	Max           = core.Max
	Coalesce      = core.Coalesce
	Lower         = core.Lower
	Upper         = core.Upper
	Length        = core.Length

	// Migrations
	NewMigrationRunner  = migrate.NewRunner
	WithMigrationTable  = migrate.WithTable
	WithMigrationLogger = migrate.WithLogger

	// Observability adapters
	NewSlogAdapter = logger.NewSlogAdapter
	NewOtelTracer  = tracer.NewOtelTracer
)
