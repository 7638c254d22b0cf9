// Package migrate applies ordered SQL migration files and tracks them in a
// bookkeeping table, so repeated runs are no-ops for already applied files.
package migrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"io/fs"
	"sort"
	"time"

	"github.com/coregx/typeq/internal/dialects"
	"github.com/coregx/typeq/internal/logger"
)

// DefaultTable is the bookkeeping table name used when none is configured.
const DefaultTable = "typeq_migrations"

// MigrationError reports a failure applying or verifying one migration file.
// The statement error from the engine, if any, is wrapped unchanged.
type MigrationError struct {
	Name   string
	Reason string
	Err    error
}

func (e *MigrationError) Error() string {
	msg := "migration " + e.Name + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Migration is one bookkeeping record of an applied migration file.
type Migration struct {
	Name      string
	Checksum  string
	AppliedAt time.Time
}

// Runner applies .sql files from a filesystem in lexical filename order.
// Each file runs in its own transaction together with its bookkeeping row,
// so a failed file leaves neither the schema change nor the record behind.
type Runner struct {
	db      *sql.DB
	dialect dialects.Dialect
	table   string
	logger  logger.Logger
}

// Option is a functional option for configuring a Runner.
type Option func(*Runner)

// WithTable overrides the bookkeeping table name.
func WithTable(name string) Option {
	return func(r *Runner) {
		r.table = name
	}
}

// WithLogger sets a structured logger for migration progress.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a migration runner for a database handle. The driver
// name selects placeholder and quoting syntax.
func NewRunner(db *sql.DB, driverName string, opts ...Option) (*Runner, error) {
	dialect, ok := dialects.LookupDialect(driverName)
	if !ok {
		return nil, &MigrationError{Reason: "unsupported driver " + driverName}
	}

	r := &Runner{
		db:      db,
		dialect: dialect,
		table:   DefaultTable,
		logger:  &logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run applies every pending .sql file in fsys, in lexical filename order.
// Already applied files are verified against their recorded checksum and
// skipped. Returns the number of migrations applied.
func (r *Runner) Run(ctx context.Context, fsys fs.FS) (int, error) {
	if err := r.ensureTable(ctx); err != nil {
		return 0, err
	}

	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return 0, err
	}
	sort.Strings(names)

	applied, err := r.appliedChecksums(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return count, &MigrationError{Name: name, Reason: "read failed", Err: err}
		}
		sum := checksum(content)

		if recorded, ok := applied[name]; ok {
			if recorded != sum {
				return count, &MigrationError{Name: name, Reason: "checksum mismatch: applied file was modified"}
			}
			r.logger.Debug("migration already applied", "name", name)
			continue
		}

		if err := r.apply(ctx, name, string(content), sum); err != nil {
			return count, err
		}
		count++
	}

	r.logger.Info("migrations complete", "applied", count, "total", len(names))
	return count, nil
}

// Applied returns the bookkeeping records in application order.
func (r *Runner) Applied(ctx context.Context) ([]Migration, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}

	q := "SELECT name, checksum, applied_at FROM " + r.dialect.QuoteIdentifier(r.table) + " ORDER BY name"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Migration
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Name, &m.Checksum, &m.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// apply runs one migration file and its bookkeeping insert in a single
// transaction.
func (r *Runner) apply(ctx context.Context, name, content, sum string) error {
	start := time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &MigrationError{Name: name, Reason: "begin failed", Err: err}
	}

	if _, err := tx.ExecContext(ctx, content); err != nil {
		_ = tx.Rollback()
		return &MigrationError{Name: name, Reason: "apply failed", Err: err}
	}

	insert := "INSERT INTO " + r.dialect.QuoteIdentifier(r.table) +
		" (name, checksum, applied_at) VALUES (" +
		r.dialect.Placeholder(1) + ", " + r.dialect.Placeholder(2) + ", " + r.dialect.Placeholder(3) + ")"
	if _, err := tx.ExecContext(ctx, insert, name, sum, time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return &MigrationError{Name: name, Reason: "bookkeeping insert failed", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &MigrationError{Name: name, Reason: "commit failed", Err: err}
	}

	r.logger.Info("migration applied",
		"name", name,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (r *Runner) ensureTable(ctx context.Context) error {
	q := "CREATE TABLE IF NOT EXISTS " + r.dialect.QuoteIdentifier(r.table) + ` (
		name VARCHAR(255) PRIMARY KEY,
		checksum VARCHAR(64) NOT NULL,
		applied_at TIMESTAMP NOT NULL
	)`
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return &MigrationError{Name: r.table, Reason: "create bookkeeping table failed", Err: err}
	}
	return nil
}

func (r *Runner) appliedChecksums(ctx context.Context) (map[string]string, error) {
	q := "SELECT name, checksum FROM " + r.dialect.QuoteIdentifier(r.table)
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var name, sum string
		if err := rows.Scan(&name, &sum); err != nil {
			return nil, err
		}
		out[name] = sum
	}
	return out, rows.Err()
}

func checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
