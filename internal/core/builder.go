package core

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// QueryBuilder constructs typed queries against one database handle.
// When tx is not nil, all statements built by it execute within that
// transaction.
type QueryBuilder struct {
	db  *DB
	tx  *sql.Tx
	ctx context.Context
}

// WithContext sets the context for all statements built by this builder.
func (qb *QueryBuilder) WithContext(ctx context.Context) *QueryBuilder {
	qb.ctx = ctx
	return qb
}

// stmtKind tags a statement node with its kind. The compiler's dispatch is
// an exhaustive switch over this tag.
type stmtKind int

const (
	stmtSelect stmtKind = iota
	stmtInsert
	stmtUpdate
	stmtDelete
)

// stmtNode is the statement-kind tagged variant every builder lowers into.
type stmtNode struct {
	kind stmtKind
	sel  *selectData
	ins  *insertData
	upd  *updateData
	del  *deleteData
}

// source is one FROM or JOIN target: a registered table, an aliased table,
// a bare name (CTE or unregistered table), or an aliased subquery.
type source struct {
	table *Table
	alias string
	name  string
	sub   *SelectQuery
}

// qualifier returns the scope-local identifier this source binds.
func (s *source) qualifier() string {
	if s.alias != "" {
		return s.alias
	}
	if s.table != nil {
		return s.table.name
	}
	return s.name
}

func toSource(v interface{}) *source {
	switch x := v.(type) {
	case *Table:
		return &source{table: x}
	case *TableAlias:
		return &source{table: x.table, alias: x.alias}
	case string:
		// "name" or "name alias"
		if fields := strings.Fields(x); len(fields) == 2 {
			return &source{name: fields[0], alias: fields[1]}
		}
		return &source{name: x}
	default:
		panic(fmt.Sprintf("unsupported query source type %T", v))
	}
}

// projItem is one output column: an output key plus the expression that
// produces it.
type projItem struct {
	key  string
	expr Expr
	col  *Column // set when the item is a schema column, for mode decoding
}

// nestGroup is an explicitly grouped set of projection items that maps to
// one nested record key in the result.
type nestGroup struct {
	key   string
	items []projItem
}

type joinClause struct {
	kind string // "INNER JOIN" or "LEFT JOIN"
	src  *source
	on   Expr
	left bool
}

type cteClause struct {
	name  string
	query *SelectQuery
}

// orderExpr is an ORDER BY entry.
type orderExpr struct {
	expr Expr
	desc bool
}

func (e *orderExpr) build(c *compileCtx) error {
	if err := e.expr.build(c); err != nil {
		return err
	}
	if e.desc {
		c.buf.WriteString(" DESC")
	}
	return nil
}

// Asc marks an ORDER BY entry as ascending (the default).
func Asc(v interface{}) Expr { return &orderExpr{expr: asExpr(v)} }

// Desc marks an ORDER BY entry as descending.
func Desc(v interface{}) Expr { return &orderExpr{expr: asExpr(v), desc: true} }

// selectData accumulates SELECT clause data. Clause methods may be called
// in any order; nothing is validated until Build compiles the statement.
type selectData struct {
	distinct bool
	proj     []projItem
	nests    []nestGroup
	from     *source
	joins    []joinClause
	where    []Expr
	groupBy  []Expr
	having   []Expr
	orderBy  []Expr
	limit    *int64
	offset   *int64
	withs    []cteClause
}

// SelectQuery represents a SELECT statement being built.
type SelectQuery struct {
	builder *QueryBuilder
	data    selectData
	ctx     context.Context
}

// Select starts a SELECT statement. Items may be schema columns, aliased
// expressions (As), or "qualifier.column" strings. Calling Select with no
// items selects all columns of every FROM/JOIN source, producing one nested
// record key per source when the query has more than one.
func (qb *QueryBuilder) Select(items ...interface{}) *SelectQuery {
	sq := &SelectQuery{builder: qb}
	sq.data.proj = toProjItems(items)
	return sq
}

func toProjItems(items []interface{}) []projItem {
	out := make([]projItem, 0, len(items))
	for _, item := range items {
		out = append(out, toProjItem(item))
	}
	return out
}

func toProjItem(item interface{}) projItem {
	switch x := item.(type) {
	case *Column:
		return projItem{key: x.def.Name, expr: x, col: x}
	case *aliasExpr:
		pi := projItem{key: x.alias, expr: x}
		if col, ok := x.expr.(*Column); ok {
			pi.col = col
		}
		return pi
	case string:
		name := x
		if i := strings.LastIndexByte(x, '.'); i >= 0 {
			name = x[i+1:]
		}
		return projItem{key: name, expr: &colNameRef{name: x}}
	case Expr:
		// Unaliased computed expression: key is resolved (and rejected
		// if absent) at compile time.
		return projItem{expr: x}
	default:
		panic(fmt.Sprintf("unsupported projection item type %T", item))
	}
}

// WithContext sets the context for this SELECT statement, overriding any
// context set on the builder.
func (sq *SelectQuery) WithContext(ctx context.Context) *SelectQuery {
	sq.ctx = ctx
	return sq
}

// Distinct adds DISTINCT to the projection.
func (sq *SelectQuery) Distinct() *SelectQuery {
	sq.data.distinct = true
	return sq
}

// Nest declares a nested projection group: the given items appear in the
// result as one record under key. When every member of the group is NULL in
// a row, the whole nested record collapses to nil.
func (sq *SelectQuery) Nest(key string, items ...interface{}) *SelectQuery {
	sq.data.nests = append(sq.data.nests, nestGroup{key: key, items: toProjItems(items)})
	return sq
}

// From specifies the statement's source: a registered table, an aliased
// table (Table.As), or the name of a CTE declared in With.
func (sq *SelectQuery) From(src interface{}) *SelectQuery {
	sq.data.from = toSource(src)
	return sq
}

// FromSelect uses a subquery as the statement's source. The alias is
// mandatory: a FROM subquery without one fails compilation.
func (sq *SelectQuery) FromSelect(sub *SelectQuery, alias string) *SelectQuery {
	sq.data.from = &source{sub: sub, alias: alias}
	return sq
}

// Join adds an INNER JOIN. The condition may be an Expr or a raw SQL
// string (two-channel fragment syntax applies).
func (sq *SelectQuery) Join(target interface{}, on interface{}) *SelectQuery {
	return sq.join("INNER JOIN", toSource(target), on, false)
}

// LeftJoin adds a LEFT JOIN. Unmatched right-side rows surface as nil
// nested records in mapped results.
func (sq *SelectQuery) LeftJoin(target interface{}, on interface{}) *SelectQuery {
	return sq.join("LEFT JOIN", toSource(target), on, true)
}

// JoinSelect adds an INNER JOIN against an aliased subquery.
func (sq *SelectQuery) JoinSelect(sub *SelectQuery, alias string, on interface{}) *SelectQuery {
	return sq.join("INNER JOIN", &source{sub: sub, alias: alias}, on, false)
}

// LeftJoinSelect adds a LEFT JOIN against an aliased subquery.
func (sq *SelectQuery) LeftJoinSelect(sub *SelectQuery, alias string, on interface{}) *SelectQuery {
	return sq.join("LEFT JOIN", &source{sub: sub, alias: alias}, on, true)
}

func (sq *SelectQuery) join(kind string, src *source, on interface{}, left bool) *SelectQuery {
	sq.data.joins = append(sq.data.joins, joinClause{
		kind: kind,
		src:  src,
		on:   toCondition(on, nil),
		left: left,
	})
	return sq
}

// toCondition coerces a Where/Having/ON argument into an expression.
// Strings are raw fragments with ? consuming args.
func toCondition(cond interface{}, args []interface{}) Expr {
	switch c := cond.(type) {
	case string:
		return NewExp(c, args...)
	case Expr:
		if len(args) > 0 {
			panic("args are only valid with a string condition")
		}
		return c
	default:
		panic("condition expects string or Expr")
	}
}

// Where adds a filter condition. Multiple Where calls are combined with AND.
//
// String example:
//
//	Where("[[status]] = ? AND [[age]] > {:min_age}", 1)
//
// Expression example:
//
//	Where(typeq.And(
//	    typeq.Eq(users.C("status"), 1),
//	    typeq.GreaterThan(users.C("age"), 18),
//	))
func (sq *SelectQuery) Where(cond interface{}, args ...interface{}) *SelectQuery {
	sq.data.where = append(sq.data.where, toCondition(cond, args))
	return sq
}

// GroupBy adds grouping expressions. Passing the same expression node that
// was aliased in the projection renders the alias instead of re-rendering
// the expression.
func (sq *SelectQuery) GroupBy(items ...interface{}) *SelectQuery {
	for _, item := range items {
		sq.data.groupBy = append(sq.data.groupBy, asExpr(item))
	}
	return sq
}

// Having adds a post-aggregation filter, combined with AND across calls.
func (sq *SelectQuery) Having(cond interface{}, args ...interface{}) *SelectQuery {
	sq.data.having = append(sq.data.having, toCondition(cond, args))
	return sq
}

// OrderBy adds ordering expressions. Use Asc/Desc to set direction, or a
// string with a trailing " DESC". Without OrderBy, row order is
// engine-defined and must not be assumed stable.
func (sq *SelectQuery) OrderBy(items ...interface{}) *SelectQuery {
	for _, item := range items {
		if s, ok := item.(string); ok {
			upper := strings.ToUpper(s)
			switch {
			case strings.HasSuffix(upper, " DESC"):
				sq.data.orderBy = append(sq.data.orderBy, Desc(strings.TrimSpace(s[:len(s)-5])))
				continue
			case strings.HasSuffix(upper, " ASC"):
				sq.data.orderBy = append(sq.data.orderBy, Asc(strings.TrimSpace(s[:len(s)-4])))
				continue
			}
		}
		if oe, ok := item.(*orderExpr); ok {
			sq.data.orderBy = append(sq.data.orderBy, oe)
			continue
		}
		sq.data.orderBy = append(sq.data.orderBy, Asc(item))
	}
	return sq
}

// Limit caps the number of returned rows.
func (sq *SelectQuery) Limit(n int64) *SelectQuery {
	sq.data.limit = &n
	return sq
}

// Offset skips the first n rows.
func (sq *SelectQuery) Offset(n int64) *SelectQuery {
	sq.data.offset = &n
	return sq
}

// With declares a named CTE. CTEs render in declaration order; each may
// reference only CTEs declared before it in the same statement.
func (sq *SelectQuery) With(name string, query *SelectQuery) *SelectQuery {
	sq.data.withs = append(sq.data.withs, cteClause{name: name, query: query})
	return sq
}

// Build compiles the statement into an immutable Plan. All scope and alias
// validation happens here; an invalid AST never reaches the database.
func (sq *SelectQuery) Build() (*Plan, error) {
	node := &stmtNode{kind: stmtSelect, sel: &sq.data}
	return sq.builder.compile(node, sq.ctx)
}

// Query compiles and executes the statement, mapping rows into Records per
// the projection shape.
func (sq *SelectQuery) Query(params ...Params) ([]Record, error) {
	plan, err := sq.Build()
	if err != nil {
		return nil, err
	}
	return plan.Query(mergeParams(params))
}

// All compiles and executes the statement, scanning all rows into a slice.
func (sq *SelectQuery) All(dest interface{}, params ...Params) error {
	plan, err := sq.Build()
	if err != nil {
		return err
	}
	return plan.All(mergeParams(params), dest)
}

// One compiles and executes the statement, scanning a single row.
func (sq *SelectQuery) One(dest interface{}, params ...Params) error {
	plan, err := sq.Build()
	if err != nil {
		return err
	}
	return plan.One(mergeParams(params), dest)
}

func mergeParams(params []Params) Params {
	if len(params) == 0 {
		return nil
	}
	if len(params) == 1 {
		return params[0]
	}
	merged := make(Params)
	for _, p := range params {
		for k, v := range p {
			merged[k] = v
		}
	}
	return merged
}

// insertData accumulates INSERT clause data.
type insertData struct {
	table       *Table
	rows        []map[string]interface{}
	returning   []projItem
	conflict    bool
	conflictCol []string
	updateCols  []string
	doNothing   bool
}

// InsertQuery represents an INSERT statement being built. It supports
// multiple value rows in one statement; a row missing a column gets that
// column's registered default, or NULL.
type InsertQuery struct {
	builder *QueryBuilder
	data    insertData
	ctx     context.Context
}

// Insert starts an INSERT into the given registered table. Row value maps
// may bind literals, Param placeholders, or raw fragments per column.
func (qb *QueryBuilder) Insert(t *Table, rows ...map[string]interface{}) *InsertQuery {
	iq := &InsertQuery{builder: qb}
	iq.data.table = t
	iq.data.rows = rows
	return iq
}

// WithContext sets the context for this INSERT statement.
func (iq *InsertQuery) WithContext(ctx context.Context) *InsertQuery {
	iq.ctx = ctx
	return iq
}

// Values appends one value row.
func (iq *InsertQuery) Values(row map[string]interface{}) *InsertQuery {
	iq.data.rows = append(iq.data.rows, row)
	return iq
}

// OnConflict specifies the columns that determine a conflict.
func (iq *InsertQuery) OnConflict(columns ...string) *InsertQuery {
	iq.data.conflict = true
	iq.data.conflictCol = columns
	return iq
}

// DoUpdate updates the given columns on conflict. Without arguments all
// inserted columns except the conflict columns are updated.
func (iq *InsertQuery) DoUpdate(columns ...string) *InsertQuery {
	iq.data.conflict = true
	iq.data.updateCols = columns
	iq.data.doNothing = false
	return iq
}

// DoNothing ignores conflicting rows.
func (iq *InsertQuery) DoNothing() *InsertQuery {
	iq.data.conflict = true
	iq.data.doNothing = true
	iq.data.updateCols = nil
	return iq
}

// Returning adds a RETURNING projection mirroring Select's item forms.
func (iq *InsertQuery) Returning(items ...interface{}) *InsertQuery {
	iq.data.returning = toProjItems(items)
	return iq
}

// Build compiles the statement into an immutable Plan.
func (iq *InsertQuery) Build() (*Plan, error) {
	node := &stmtNode{kind: stmtInsert, ins: &iq.data}
	return iq.builder.compile(node, iq.ctx)
}

// Execute compiles and executes the statement.
func (iq *InsertQuery) Execute(params ...Params) (sql.Result, error) {
	plan, err := iq.Build()
	if err != nil {
		return nil, err
	}
	return plan.Execute(mergeParams(params))
}

// Query compiles and executes the statement, returning RETURNING rows.
func (iq *InsertQuery) Query(params ...Params) ([]Record, error) {
	plan, err := iq.Build()
	if err != nil {
		return nil, err
	}
	return plan.Query(mergeParams(params))
}

// updateData accumulates UPDATE clause data.
type updateData struct {
	table     *Table
	set       map[string]interface{}
	where     []Expr
	returning []projItem
}

// UpdateQuery represents an UPDATE statement being built.
type UpdateQuery struct {
	builder *QueryBuilder
	data    updateData
	ctx     context.Context
}

// Update starts an UPDATE of the given registered table.
func (qb *QueryBuilder) Update(t *Table) *UpdateQuery {
	uq := &UpdateQuery{builder: qb}
	uq.data.table = t
	return uq
}

// WithContext sets the context for this UPDATE statement.
func (uq *UpdateQuery) WithContext(ctx context.Context) *UpdateQuery {
	uq.ctx = ctx
	return uq
}

// Set specifies the columns and values to update. Values may be literals,
// Param placeholders, or raw fragments.
func (uq *UpdateQuery) Set(values map[string]interface{}) *UpdateQuery {
	uq.data.set = values
	return uq
}

// Where adds a filter condition, combined with AND across calls.
func (uq *UpdateQuery) Where(cond interface{}, args ...interface{}) *UpdateQuery {
	uq.data.where = append(uq.data.where, toCondition(cond, args))
	return uq
}

// Returning adds a RETURNING projection.
func (uq *UpdateQuery) Returning(items ...interface{}) *UpdateQuery {
	uq.data.returning = toProjItems(items)
	return uq
}

// Build compiles the statement into an immutable Plan.
func (uq *UpdateQuery) Build() (*Plan, error) {
	node := &stmtNode{kind: stmtUpdate, upd: &uq.data}
	return uq.builder.compile(node, uq.ctx)
}

// Execute compiles and executes the statement.
func (uq *UpdateQuery) Execute(params ...Params) (sql.Result, error) {
	plan, err := uq.Build()
	if err != nil {
		return nil, err
	}
	return plan.Execute(mergeParams(params))
}

// Query compiles and executes the statement, returning RETURNING rows.
func (uq *UpdateQuery) Query(params ...Params) ([]Record, error) {
	plan, err := uq.Build()
	if err != nil {
		return nil, err
	}
	return plan.Query(mergeParams(params))
}

// deleteData accumulates DELETE clause data.
type deleteData struct {
	table     *Table
	where     []Expr
	returning []projItem
}

// DeleteQuery represents a DELETE statement being built.
type DeleteQuery struct {
	builder *QueryBuilder
	data    deleteData
	ctx     context.Context
}

// Delete starts a DELETE from the given registered table.
func (qb *QueryBuilder) Delete(t *Table) *DeleteQuery {
	dq := &DeleteQuery{builder: qb}
	dq.data.table = t
	return dq
}

// WithContext sets the context for this DELETE statement.
func (dq *DeleteQuery) WithContext(ctx context.Context) *DeleteQuery {
	dq.ctx = ctx
	return dq
}

// Where adds a filter condition, combined with AND across calls.
func (dq *DeleteQuery) Where(cond interface{}, args ...interface{}) *DeleteQuery {
	dq.data.where = append(dq.data.where, toCondition(cond, args))
	return dq
}

// Returning adds a RETURNING projection.
func (dq *DeleteQuery) Returning(items ...interface{}) *DeleteQuery {
	dq.data.returning = toProjItems(items)
	return dq
}

// Build compiles the statement into an immutable Plan.
func (dq *DeleteQuery) Build() (*Plan, error) {
	node := &stmtNode{kind: stmtDelete, del: &dq.data}
	return dq.builder.compile(node, dq.ctx)
}

// Execute compiles and executes the statement.
func (dq *DeleteQuery) Execute(params ...Params) (sql.Result, error) {
	plan, err := dq.Build()
	if err != nil {
		return nil, err
	}
	return plan.Execute(mergeParams(params))
}

// Query compiles and executes the statement, returning RETURNING rows.
func (dq *DeleteQuery) Query(params ...Params) ([]Record, error) {
	plan, err := dq.Build()
	if err != nil {
		return nil, err
	}
	return plan.Query(mergeParams(params))
}

// compile lowers a statement node into a Plan bound to this builder's
// database handle, transaction, and context.
func (qb *QueryBuilder) compile(node *stmtNode, ctx context.Context) (*Plan, error) {
	if ctx == nil {
		ctx = qb.ctx
	}
	c := newCompileCtx(qb.db.dialect)
	shape, err := c.compileStmt(node)
	if err != nil {
		return nil, err
	}
	return &Plan{
		text:  c.buf.String(),
		slots: c.slots,
		shape: shape,
		db:    qb.db,
		tx:    qb.tx,
		ctx:   ctx,
	}, nil
}

// sortedKeys returns sorted map keys for deterministic SQL generation
// (prevents statement cache misses).
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
