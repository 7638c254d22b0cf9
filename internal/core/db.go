// Package core implements typed query construction and execution: schema
// registration, the expression tree, statement builders, the SQL compiler,
// plan caching, and result mapping.
package core

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/coregx/typeq/internal/cache"
	"github.com/coregx/typeq/internal/dialects"
	"github.com/coregx/typeq/internal/logger"
	"github.com/coregx/typeq/internal/tracer"
)

// DB is a database handle: the underlying connection pool plus the dialect,
// prepared statement cache, and observability hooks every plan built
// through it shares.
type DB struct {
	sqlDB      *sql.DB
	driverName string
	stmtCache  *cache.StmtCache
	dialect    dialects.Dialect
	logger     logger.Logger
	sanitizer  *logger.Sanitizer
	tracer     tracer.Tracer
	queryHook  QueryHook
	health     *healthChecker
	ctx        context.Context
}

// Tx represents a database transaction.
type Tx struct {
	tx      *sql.Tx
	builder *QueryBuilder
	ctx     context.Context
}

// TxOptions represents transaction options including isolation level.
type TxOptions struct {
	// Isolation level for the transaction (e.g., sql.LevelReadCommitted)
	Isolation sql.IsolationLevel
	// ReadOnly indicates whether the transaction is read-only
	ReadOnly bool
}

// Option is a functional option for configuring DB.
type Option func(*DB)

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxOpenConns(n)
	}
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxIdleConns(n)
	}
}

// WithConnMaxLifetime sets the maximum lifetime of pooled connections.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(db *DB) {
		db.sqlDB.SetConnMaxLifetime(d)
	}
}

// WithConnMaxIdleTime sets the maximum idle time of pooled connections.
func WithConnMaxIdleTime(d time.Duration) Option {
	return func(db *DB) {
		db.sqlDB.SetConnMaxIdleTime(d)
	}
}

// WithStmtCacheCapacity sets the prepared statement cache capacity.
func WithStmtCacheCapacity(capacity int) Option {
	return func(db *DB) {
		db.stmtCache = cache.NewStmtCacheWithCapacity(capacity)
	}
}

// WithLogger sets a structured logger for query execution logging.
func WithLogger(l logger.Logger) Option {
	return func(db *DB) {
		db.logger = l
	}
}

// WithSlog sets an slog-based logger for query execution logging.
func WithSlog(l *slog.Logger) Option {
	return func(db *DB) {
		db.logger = logger.NewSlogAdapter(l)
	}
}

// WithSensitiveFields overrides the column-name patterns the parameter
// sanitizer masks in logs.
func WithSensitiveFields(fields ...string) Option {
	return func(db *DB) {
		db.sanitizer = logger.NewSanitizer(fields)
	}
}

// WithTracer sets a tracer for query execution spans.
func WithTracer(t tracer.Tracer) Option {
	return func(db *DB) {
		db.tracer = t
	}
}

// WithQueryHook sets a callback invoked after every plan execution.
func WithQueryHook(hook QueryHook) Option {
	return func(db *DB) {
		db.queryHook = hook
	}
}

// WithHealthCheck starts a background ping loop at the given interval.
// The checker stops when the DB is closed.
func WithHealthCheck(interval time.Duration) Option {
	return func(db *DB) {
		log := db.logger
		if log == nil {
			log = &logger.NoopLogger{}
		}
		db.health = newHealthChecker(db.sqlDB, log, interval)
		db.health.start()
	}
}

// NewDB creates a database handle for a driver/DSN pair. The driver name
// selects the SQL dialect; unknown drivers fail with ErrUnsupportedDialect.
func NewDB(driverName, dsn string) (*DB, error) {
	dialect, ok := dialects.LookupDialect(driverName)
	if !ok {
		return nil, ErrUnsupportedDialect
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	return &DB{
		sqlDB:      sqlDB,
		driverName: driverName,
		stmtCache:  cache.NewStmtCache(),
		dialect:    dialect,
		sanitizer:  logger.NewSanitizer(nil),
		tracer:     &tracer.NoopTracer{},
	}, nil
}

// Open creates a new DB instance with options.
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	db, err := NewDB(driverName, dsn)
	if err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(db)
	}

	return db, nil
}

// WrapDB wraps an existing sql.DB. The caller remains responsible for the
// underlying pool's lifetime; Close on the wrapper still closes it.
func WrapDB(sqlDB *sql.DB, driverName string, opts ...Option) (*DB, error) {
	dialect, ok := dialects.LookupDialect(driverName)
	if !ok {
		return nil, ErrUnsupportedDialect
	}

	db := &DB{
		sqlDB:      sqlDB,
		driverName: driverName,
		stmtCache:  cache.NewStmtCache(),
		dialect:    dialect,
		sanitizer:  logger.NewSanitizer(nil),
		tracer:     &tracer.NoopTracer{},
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close releases all database resources, stopping the health checker and
// closing every cached prepared statement.
func (db *DB) Close() error {
	if db.health != nil {
		db.health.shutdown()
	}
	db.stmtCache.Clear()
	return db.sqlDB.Close()
}

// Healthy reports the outcome of the most recent background health check.
// Without WithHealthCheck it always returns true.
func (db *DB) Healthy() bool {
	if db.health == nil {
		return true
	}
	return db.health.isHealthy()
}

// CacheStats returns prepared statement cache metrics.
func (db *DB) CacheStats() cache.Stats {
	return db.stmtCache.Stats()
}

// DBStats aggregates connection pool, statement cache, and health status
// for monitoring.
type DBStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	StmtCache          cache.Stats
	Healthy            bool
	LastHealthCheck    time.Time
}

// Stats returns a snapshot of pool, cache, and health metrics.
func (db *DB) Stats() DBStats {
	s := db.sqlDB.Stats()
	stats := DBStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		StmtCache:          db.stmtCache.Stats(),
		Healthy:            true,
	}
	if db.health != nil {
		stats.Healthy = db.health.isHealthy()
		stats.LastHealthCheck = db.health.lastCheck()
	}
	return stats
}

// DriverName returns the driver this handle was opened with.
func (db *DB) DriverName() string {
	return db.driverName
}

// SQLDB returns the underlying sql.DB, for interoperating with code that
// wants the raw pool (the migration runner, ORMs, driver utilities).
func (db *DB) SQLDB() *sql.DB {
	return db.sqlDB
}

// WithContext returns a new DB with the given context.
func (db *DB) WithContext(ctx context.Context) *DB {
	newDB := *db
	newDB.ctx = ctx
	return &newDB
}

// Builder returns a query builder for this database.
func (db *DB) Builder() *QueryBuilder {
	return &QueryBuilder{db: db, ctx: db.ctx}
}

// NewQueryBuilder creates a new query builder with optional transaction support.
// When tx is not nil, all statements built by this builder execute within that
// transaction.
func NewQueryBuilder(db *DB, tx *sql.Tx) *QueryBuilder {
	return &QueryBuilder{db: db, tx: tx}
}

// Begin starts a transaction with default options.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	return db.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with specified options.
func (db *DB) BeginTx(ctx context.Context, opts *TxOptions) (*Tx, error) {
	var sqlOpts *sql.TxOptions
	if opts != nil {
		sqlOpts = &sql.TxOptions{
			Isolation: opts.Isolation,
			ReadOnly:  opts.ReadOnly,
		}
	}

	tx, err := db.sqlDB.BeginTx(ctx, sqlOpts)
	if err != nil {
		return nil, err
	}

	return &Tx{
		tx:      tx,
		builder: NewQueryBuilder(db, tx),
		ctx:     ctx,
	}, nil
}

// Transactional runs fn within a transaction. The transaction commits when
// fn returns nil and rolls back otherwise; a rollback failure is reported
// alongside the original error. A panic in fn rolls back and re-panics.
func (db *DB) Transactional(ctx context.Context, fn func(tx *Tx) error) error {
	return db.TransactionalTx(ctx, nil, fn)
}

// TransactionalTx is Transactional with explicit transaction options.
func (db *DB) TransactionalTx(ctx context.Context, opts *TxOptions, fn func(tx *Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return WrapError(err, "rollback failed: "+rbErr.Error())
		}
		return err
	}
	return tx.Commit()
}

// Builder returns the query builder for this transaction. All statements
// built through it execute within the transaction and inherit its context.
func (tx *Tx) Builder() *QueryBuilder {
	return &QueryBuilder{
		db:  tx.builder.db,
		tx:  tx.tx,
		ctx: tx.ctx,
	}
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	return tx.tx.Commit()
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error {
	return tx.tx.Rollback()
}

// ExecContext executes a raw SQL query (INSERT/UPDATE/DELETE).
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.sqlDB.ExecContext(ctx, query, args...)
}

// QueryContext executes a raw SQL query and returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.sqlDB.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a raw SQL query expected to return at most one row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.sqlDB.QueryRowContext(ctx, query, args...)
}
