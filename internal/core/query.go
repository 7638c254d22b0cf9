package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/coregx/typeq/internal/tracer"
)

// prepareStatement prepares the plan's SQL, using the transaction or the
// LRU statement cache. Transactions bypass the cache to avoid statement
// reuse across connections.
func (p *Plan) prepareStatement(ctx context.Context) (*sql.Stmt, bool, error) {
	if p.tx != nil {
		stmt, err := p.tx.PrepareContext(ctx, p.text)
		if err != nil {
			return nil, false, err
		}
		return stmt, true, nil // true = caller closes
	}

	if stmt, ok := p.db.stmtCache.Get(p.text); ok {
		return stmt, false, nil
	}

	stmt, err := p.db.sqlDB.PrepareContext(ctx, p.text)
	if err != nil {
		return nil, false, err
	}
	p.db.stmtCache.Set(p.text, stmt)
	return stmt, false, nil
}

// finish logs, traces, and hooks one execution outcome.
func (p *Plan) finish(ctx context.Context, span tracer.Span, args []interface{}, start time.Time, rowsAffected int64, err error) {
	elapsed := time.Since(start)

	if p.db.logger != nil {
		masked := p.db.sanitizer.FormatParams(p.db.sanitizer.MaskParams(p.text, args))
		if err != nil {
			p.db.logger.Error("query execution failed",
				"sql", p.text,
				"params", masked,
				"duration_ms", elapsed.Milliseconds(),
				"database", p.db.driverName,
				"error", err,
			)
		} else {
			p.db.logger.Info("query executed",
				"sql", p.text,
				"params", masked,
				"duration_ms", elapsed.Milliseconds(),
				"rows", rowsAffected,
				"database", p.db.driverName,
			)
		}
	}

	if span != nil {
		tracer.AddQueryAttributes(span, &tracer.QueryMetadata{
			SQL:          p.text,
			Args:         args,
			Duration:     elapsed,
			RowsAffected: rowsAffected,
			Error:        err,
			Database:     p.db.driverName,
			Operation:    tracer.DetectOperation(p.text),
		})
	}

	p.db.invokeHook(ctx, QueryEvent{
		SQL:          p.text,
		Args:         args,
		Duration:     elapsed,
		RowsAffected: rowsAffected,
		Error:        err,
		Operation:    DetectOperation(p.text),
	})
}

func (p *Plan) logPrepareError(args []interface{}, err error) {
	if p.db.logger == nil {
		return
	}
	p.db.logger.Error("statement preparation failed",
		"sql", p.text,
		"params", p.db.sanitizer.FormatParams(p.db.sanitizer.MaskParams(p.text, args)),
		"error", err,
	)
}

// Execute runs the plan and returns the driver result. Use it for writes
// without a RETURNING clause.
func (p *Plan) Execute(params Params) (sql.Result, error) {
	args, err := p.Bind(params)
	if err != nil {
		return nil, err
	}

	ctx := p.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	var span tracer.Span
	if p.db.tracer != nil {
		ctx, span = p.db.tracer.StartSpan(ctx, "typeq.plan.execute")
		defer span.End()
	}
	start := time.Now()

	stmt, needsClose, err := p.prepareStatement(ctx)
	if err != nil {
		p.logPrepareError(args, err)
		return nil, err
	}
	if needsClose {
		defer func() { _ = stmt.Close() }()
	}

	result, err := stmt.ExecContext(ctx, args...)
	var rowsAffected int64
	if result != nil {
		rowsAffected, _ = result.RowsAffected()
	}
	p.finish(ctx, span, args, start, rowsAffected, err)
	return result, err
}

// withRows runs the plan as a row-returning statement and hands the result
// set to scan. The scan callback reports how many rows it consumed.
func (p *Plan) withRows(spanName string, params Params, scan func(rows *sql.Rows) (int64, error)) error {
	args, err := p.Bind(params)
	if err != nil {
		return err
	}

	ctx := p.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	var span tracer.Span
	if p.db.tracer != nil {
		ctx, span = p.db.tracer.StartSpan(ctx, spanName)
		defer span.End()
	}
	start := time.Now()

	stmt, needsClose, err := p.prepareStatement(ctx)
	if err != nil {
		p.logPrepareError(args, err)
		return err
	}
	if needsClose {
		defer func() { _ = stmt.Close() }()
	}

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		p.finish(ctx, span, args, start, 0, err)
		return err
	}
	defer func() { _ = rows.Close() }()

	n, err := scan(rows)
	p.finish(ctx, span, args, start, n, err)
	return err
}

// Query executes the plan and maps every row into a Record per the
// projection shape.
func (p *Plan) Query(params Params) ([]Record, error) {
	var records []Record
	err := p.withRows("typeq.plan.query", params, func(rows *sql.Rows) (int64, error) {
		var err error
		records, err = mapRows(rows, p.shape)
		return int64(len(records)), err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// QueryOne executes the plan and maps the first row. Returns ErrNoRows
// when the result set is empty.
func (p *Plan) QueryOne(params Params) (Record, error) {
	records, err := p.Query(params)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRows
	}
	return records[0], nil
}

// All executes the plan and scans every row into dest: a pointer to a slice
// of structs, struct pointers, or NullStringMaps.
func (p *Plan) All(params Params, dest interface{}) error {
	return p.withRows("typeq.plan.all", params, func(rows *sql.Rows) (int64, error) {
		if maps, ok := dest.(*[]NullStringMap); ok {
			return 0, globalScanner.scanMapRows(rows, maps)
		}
		return 0, globalScanner.scanRows(rows, dest)
	})
}

// One executes the plan and scans a single row into dest: a pointer to a
// struct or a NullStringMap. Returns ErrNoRows when the result set is empty.
func (p *Plan) One(params Params, dest interface{}) error {
	return p.withRows("typeq.plan.one", params, func(rows *sql.Rows) (int64, error) {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return 0, err
			}
			return 0, ErrNoRows
		}
		if m, ok := dest.(*NullStringMap); ok {
			return 1, globalScanner.scanMapRow(rows, m)
		}
		return 1, globalScanner.scanRow(rows, dest)
	})
}
