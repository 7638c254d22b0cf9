package core

import (
	"strconv"
	"strings"

	"github.com/coregx/typeq/internal/dialects"
)

// slot is one positional parameter of a compiled statement: either a
// literal value fixed at compile time, or a named placeholder bound per
// execution.
type slot struct {
	name  string      // placeholder name; empty for compile-time literals
	value interface{} // literal value when name is empty
}

// compileCtx carries the state of one depth-first compilation walk: the SQL
// text being rendered, the parameter slots in visit order, the stack of
// visible scope frames, and the output aliases assigned to projection
// expressions.
type compileCtx struct {
	dialect  dialects.Dialect
	buf      strings.Builder
	slots    []slot
	scopes   []map[string]bool
	cteDecls []map[string]bool
	aliases  map[Expr]string
}

func newCompileCtx(d dialects.Dialect) *compileCtx {
	return &compileCtx{dialect: d, aliases: make(map[Expr]string)}
}

// writeValueSlot appends a compile-time literal slot and renders its
// positional placeholder.
func (c *compileCtx) writeValueSlot(v interface{}) {
	c.slots = append(c.slots, slot{value: v})
	c.buf.WriteString(c.dialect.Placeholder(len(c.slots)))
}

// writeNamedSlot appends an execution-time named slot and renders its
// positional placeholder.
func (c *compileCtx) writeNamedSlot(name string) {
	c.slots = append(c.slots, slot{name: name})
	c.buf.WriteString(c.dialect.Placeholder(len(c.slots)))
}

// writeIdent renders a possibly qualified identifier, quoted per dialect.
func (c *compileCtx) writeIdent(name string) {
	c.buf.WriteString(dialects.QuoteQualified(c.dialect, name))
}

func (c *compileCtx) pushScope() {
	c.scopes = append(c.scopes, make(map[string]bool))
}

func (c *compileCtx) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

// addScope registers a qualifier in the innermost scope frame. Duplicate
// names within one frame violate alias uniqueness.
func (c *compileCtx) addScope(name string) error {
	top := c.scopes[len(c.scopes)-1]
	if top[name] {
		return compileErrorf("duplicate alias " + name + " in query scope")
	}
	top[name] = true
	return nil
}

// inScope reports whether a qualifier is visible, scanning from the
// innermost frame outward so correlated subqueries see outer sources.
func (c *compileCtx) inScope(name string) bool {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if c.scopes[i][name] {
			return true
		}
	}
	return false
}

// isCTEDeclared reports whether name is a CTE declared anywhere in the
// enclosing statements, in scope or not. A declared CTE not yet in scope is
// a forward reference.
func (c *compileCtx) isCTEDeclared(name string) bool {
	for i := len(c.cteDecls) - 1; i >= 0; i-- {
		if c.cteDecls[i][name] {
			return true
		}
	}
	return false
}

// compileStmt dispatches on the statement kind. The switch is exhaustive
// over the tagged variant.
func (c *compileCtx) compileStmt(node *stmtNode) (*projShape, error) {
	switch node.kind {
	case stmtSelect:
		return c.compileSelect(node.sel)
	case stmtInsert:
		return c.compileInsert(node.ins)
	case stmtUpdate:
		return c.compileUpdate(node.upd)
	case stmtDelete:
		return c.compileDelete(node.del)
	default:
		return nil, compileErrorf("unknown statement kind")
	}
}

// compileSelectBody renders a select statement without returning its
// projection shape. Used for subqueries and CTE bodies.
func (c *compileCtx) compileSelectBody(d *selectData) error {
	_, err := c.compileSelect(d)
	return err
}

func (c *compileCtx) compileSelect(d *selectData) (*projShape, error) {
	c.pushScope()
	defer c.popScope()

	declared := make(map[string]bool, len(d.withs))
	for _, cte := range d.withs {
		declared[cte.name] = true
	}
	c.cteDecls = append(c.cteDecls, declared)
	defer func() { c.cteDecls = c.cteDecls[:len(c.cteDecls)-1] }()

	// CTEs render in declaration order. Each becomes visible only after its
	// own body has compiled, so forward and self references fail scope
	// validation.
	if len(d.withs) > 0 {
		c.buf.WriteString("WITH ")
		for i, cte := range d.withs {
			if i > 0 {
				c.buf.WriteString(", ")
			}
			c.buf.WriteString(c.dialect.QuoteIdentifier(cte.name))
			c.buf.WriteString(" AS (")
			if err := c.compileSelectBody(&cte.query.data); err != nil {
				return nil, err
			}
			c.buf.WriteByte(')')
			if err := c.addScope(cte.name); err != nil {
				return nil, compileErrorf("duplicate CTE name " + cte.name)
			}
		}
		c.buf.WriteByte(' ')
	}

	var sources []*source
	if d.from != nil {
		sources = append(sources, d.from)
	}
	for i := range d.joins {
		sources = append(sources, d.joins[i].src)
	}
	for _, s := range sources {
		if s.sub != nil && s.alias == "" {
			return nil, compileErrorf("subquery in FROM requires an alias")
		}
		if s.sub == nil && s.table == nil && c.isCTEDeclared(s.name) {
			if !c.inScope(s.name) {
				return nil, compileErrorf("CTE " + s.name + " referenced before its declaration")
			}
			// The CTE name is already a visible qualifier; only an alias
			// introduces a new one.
			if s.alias == "" {
				continue
			}
		}
		if err := c.addScope(s.qualifier()); err != nil {
			return nil, err
		}
	}

	c.buf.WriteString("SELECT ")
	if d.distinct {
		c.buf.WriteString("DISTINCT ")
	}
	shape, err := c.compileProjection(d, sources)
	if err != nil {
		return nil, err
	}

	if d.from != nil {
		c.buf.WriteString(" FROM ")
		if err := c.writeSource(d.from); err != nil {
			return nil, err
		}
	}
	for i := range d.joins {
		j := &d.joins[i]
		c.buf.WriteByte(' ')
		c.buf.WriteString(j.kind)
		c.buf.WriteByte(' ')
		if err := c.writeSource(j.src); err != nil {
			return nil, err
		}
		c.buf.WriteString(" ON ")
		if isBlank(j.on) {
			// A blank condition is an always-true filter, and the join
			// grammar still requires an ON term.
			c.buf.WriteString("1=1")
		} else if err := j.on.build(c); err != nil {
			return nil, err
		}
	}

	if err := c.writeConditions(" WHERE ", d.where); err != nil {
		return nil, err
	}

	if len(d.groupBy) > 0 {
		c.buf.WriteString(" GROUP BY ")
		for i, e := range d.groupBy {
			if i > 0 {
				c.buf.WriteString(", ")
			}
			if err := e.build(c); err != nil {
				return nil, err
			}
		}
	}

	if err := c.writeConditions(" HAVING ", d.having); err != nil {
		return nil, err
	}

	if len(d.orderBy) > 0 {
		c.buf.WriteString(" ORDER BY ")
		for i, e := range d.orderBy {
			if i > 0 {
				c.buf.WriteString(", ")
			}
			if err := e.build(c); err != nil {
				return nil, err
			}
		}
	}

	if d.limit != nil {
		c.buf.WriteString(" LIMIT ")
		c.buf.WriteString(strconv.FormatInt(*d.limit, 10))
	} else if d.offset != nil {
		// SQLite and MySQL reject a bare OFFSET; synthesize the dialect's
		// unbounded LIMIT form so OFFSET works on every engine.
		c.buf.WriteString(" LIMIT ")
		c.buf.WriteString(c.dialect.NoLimit())
	}
	if d.offset != nil {
		c.buf.WriteString(" OFFSET ")
		c.buf.WriteString(strconv.FormatInt(*d.offset, 10))
	}

	return shape, nil
}

// writeConditions renders a WHERE or HAVING clause. Multiple conditions are
// ANDed, each parenthesized to preserve precedence. Blank conditions are
// skipped; when every condition is blank the clause is omitted entirely.
func (c *compileCtx) writeConditions(prefix string, conds []Expr) error {
	live := make([]Expr, 0, len(conds))
	for _, cond := range conds {
		if !isBlank(cond) {
			live = append(live, cond)
		}
	}
	if len(live) == 0 {
		return nil
	}
	c.buf.WriteString(prefix)
	if len(live) == 1 {
		return live[0].build(c)
	}
	for i, cond := range live {
		if i > 0 {
			c.buf.WriteString(" AND ")
		}
		c.buf.WriteByte('(')
		if err := cond.build(c); err != nil {
			return err
		}
		c.buf.WriteByte(')')
	}
	return nil
}

func (c *compileCtx) writeSource(s *source) error {
	switch {
	case s.table != nil:
		c.writeIdent(s.table.name)
	case s.sub != nil:
		c.buf.WriteByte('(')
		if err := c.compileSelectBody(&s.sub.data); err != nil {
			return err
		}
		c.buf.WriteByte(')')
	default:
		c.writeIdent(s.name)
	}
	if s.alias != "" {
		c.buf.WriteString(" AS ")
		c.buf.WriteString(c.dialect.QuoteIdentifier(s.alias))
	}
	return nil
}

// compileProjection renders the projection list and derives the result
// shape the mapper will reconstruct rows with.
func (c *compileCtx) compileProjection(d *selectData, sources []*source) (*projShape, error) {
	if len(d.proj) == 0 && len(d.nests) == 0 {
		return c.expandSelectAll(d, sources)
	}

	shape := &projShape{}
	first := true
	writeItems := func(items []projItem, group string, collapsible bool) error {
		for i := range items {
			item := &items[i]
			if !first {
				c.buf.WriteString(", ")
			}
			first = false
			if err := c.writeProjItem(item); err != nil {
				return err
			}
			mode := ModePlain
			if item.col != nil {
				mode = item.col.def.Mode
			}
			shape.cols = append(shape.cols, shapeCol{key: item.key, group: group, mode: mode})
		}
		if group != "" {
			shape.groups = append(shape.groups, shapeGroup{key: group, collapsible: collapsible})
		}
		return nil
	}

	if err := writeItems(d.proj, "", false); err != nil {
		return nil, err
	}
	for _, nest := range d.nests {
		if err := writeItems(nest.items, nest.key, true); err != nil {
			return nil, err
		}
	}
	shape.multi = len(d.nests) > 0
	return shape, nil
}

// writeProjItem renders one projection entry. An aliased expression renders
// once with AS and registers its node identity, so GROUP BY/HAVING/ORDER BY
// references to the same node render the alias instead.
func (c *compileCtx) writeProjItem(item *projItem) error {
	if ae, ok := item.expr.(*aliasExpr); ok {
		if err := ae.expr.build(c); err != nil {
			return err
		}
		c.buf.WriteString(" AS ")
		c.buf.WriteString(c.dialect.QuoteIdentifier(ae.alias))
		c.aliases[ae] = ae.alias
		return nil
	}
	if item.key == "" {
		return compileErrorf("computed projection expression requires an alias")
	}
	return item.expr.build(c)
}

// expandSelectAll handles the select-all-columns mode: every column of every
// source, one nested record key per source when there is more than one.
func (c *compileCtx) expandSelectAll(d *selectData, sources []*source) (*projShape, error) {
	if len(sources) == 0 {
		return nil, compileErrorf("select requires a FROM source")
	}

	// A lone unregistered source (CTE or subquery) carries no column
	// metadata; fall back to SELECT * with keys taken from the result set.
	if len(sources) == 1 && sources[0].table == nil {
		c.buf.WriteByte('*')
		return &projShape{dynamic: true}, nil
	}

	shape := &projShape{multi: len(sources) > 1}
	first := true
	for _, s := range sources {
		if s.table == nil {
			return nil, compileErrorf("select-all over multiple sources requires registered tables (source " + s.qualifier() + " has no schema)")
		}
		qual := s.qualifier()
		collapsible := false
		for j := range d.joins {
			if d.joins[j].src.qualifier() == qual {
				collapsible = d.joins[j].left
			}
		}
		for _, col := range s.table.cols {
			if !first {
				c.buf.WriteString(", ")
			}
			first = false
			c.writeIdent(qual + "." + col.def.Name)
			group := ""
			if shape.multi {
				group = qual
			}
			shape.cols = append(shape.cols, shapeCol{key: col.def.Name, group: group, mode: col.def.Mode})
		}
		if shape.multi {
			shape.groups = append(shape.groups, shapeGroup{key: qual, collapsible: collapsible})
		}
	}
	return shape, nil
}

func (c *compileCtx) compileInsert(d *insertData) (*projShape, error) {
	if d.table == nil {
		return nil, compileErrorf("insert requires a registered table")
	}
	if len(d.rows) == 0 {
		return nil, compileErrorf("insert requires at least one value row")
	}

	c.pushScope()
	defer c.popScope()
	if err := c.addScope(d.table.name); err != nil {
		return nil, err
	}

	// Column set is the sorted union of all row keys; each row is defaulted
	// independently for columns it does not bind.
	colSet := make(map[string]interface{})
	for _, row := range d.rows {
		for k := range row {
			colSet[k] = nil
		}
	}
	cols := sortedKeys(colSet)
	for _, name := range cols {
		if _, ok := d.table.byName[name]; !ok {
			return nil, &SchemaError{Table: d.table.name, Column: name, Reason: "unknown column"}
		}
	}

	c.buf.WriteString("INSERT INTO ")
	c.writeIdent(d.table.name)
	c.buf.WriteString(" (")
	for i, name := range cols {
		if i > 0 {
			c.buf.WriteString(", ")
		}
		c.buf.WriteString(c.dialect.QuoteIdentifier(name))
	}
	c.buf.WriteString(") VALUES ")

	for ri, row := range d.rows {
		if ri > 0 {
			c.buf.WriteString(", ")
		}
		c.buf.WriteByte('(')
		for i, name := range cols {
			if i > 0 {
				c.buf.WriteString(", ")
			}
			col := d.table.byName[name]
			if v, ok := row[name]; ok {
				if err := c.writeBoundValue(v, col.def.Mode); err != nil {
					return nil, err
				}
				continue
			}
			if col.def.Default == nil {
				c.buf.WriteString("NULL")
			} else {
				if err := c.writeBoundValue(col.def.Default, col.def.Mode); err != nil {
					return nil, err
				}
			}
		}
		c.buf.WriteByte(')')
	}

	if d.conflict {
		updateCols := d.updateCols
		if d.doNothing {
			updateCols = nil
		} else if len(updateCols) == 0 {
			updateCols = excludeStrings(cols, d.conflictCol)
			if len(updateCols) == 0 {
				// Every inserted column is a conflict column; there is
				// nothing left to assign, so degrade to DO NOTHING.
				updateCols = nil
			}
		}
		c.buf.WriteString(c.dialect.UpsertSQL(d.table.name, d.conflictCol, updateCols))
	}

	return c.compileReturning(d.returning)
}

func (c *compileCtx) compileUpdate(d *updateData) (*projShape, error) {
	if d.table == nil {
		return nil, compileErrorf("update requires a registered table")
	}
	if len(d.set) == 0 {
		return nil, compileErrorf("update requires at least one SET column")
	}

	c.pushScope()
	defer c.popScope()
	if err := c.addScope(d.table.name); err != nil {
		return nil, err
	}

	c.buf.WriteString("UPDATE ")
	c.writeIdent(d.table.name)
	c.buf.WriteString(" SET ")
	for i, name := range sortedKeys(d.set) {
		col, ok := d.table.byName[name]
		if !ok {
			return nil, &SchemaError{Table: d.table.name, Column: name, Reason: "unknown column"}
		}
		if i > 0 {
			c.buf.WriteString(", ")
		}
		c.buf.WriteString(c.dialect.QuoteIdentifier(name))
		c.buf.WriteString(" = ")
		if err := c.writeBoundValue(d.set[name], col.def.Mode); err != nil {
			return nil, err
		}
	}

	if err := c.writeConditions(" WHERE ", d.where); err != nil {
		return nil, err
	}
	return c.compileReturning(d.returning)
}

func (c *compileCtx) compileDelete(d *deleteData) (*projShape, error) {
	if d.table == nil {
		return nil, compileErrorf("delete requires a registered table")
	}

	c.pushScope()
	defer c.popScope()
	if err := c.addScope(d.table.name); err != nil {
		return nil, err
	}

	c.buf.WriteString("DELETE FROM ")
	c.writeIdent(d.table.name)

	if err := c.writeConditions(" WHERE ", d.where); err != nil {
		return nil, err
	}
	return c.compileReturning(d.returning)
}

// compileReturning renders a RETURNING projection mirroring the select
// projection item forms. Returns nil shape when there is no clause.
func (c *compileCtx) compileReturning(items []projItem) (*projShape, error) {
	if len(items) == 0 {
		return nil, nil
	}
	c.buf.WriteString(" RETURNING ")
	shape := &projShape{}
	for i := range items {
		item := &items[i]
		if i > 0 {
			c.buf.WriteString(", ")
		}
		if err := c.writeProjItem(item); err != nil {
			return nil, err
		}
		mode := ModePlain
		if item.col != nil {
			mode = item.col.def.Mode
		}
		shape.cols = append(shape.cols, shapeCol{key: item.key, mode: mode})
	}
	return shape, nil
}

// writeBoundValue renders an insert or update value: expression nodes build
// inline, plain literals are encoded per the column's value mode and bound
// as compile-time slots.
func (c *compileCtx) writeBoundValue(v interface{}, mode Mode) error {
	switch v.(type) {
	case Expr, *SelectQuery:
		return asOperand(v).build(c)
	}
	encoded, err := encodeValue(v, mode)
	if err != nil {
		return compileErrorf("cannot encode value: " + err.Error())
	}
	c.writeValueSlot(encoded)
	return nil
}

// excludeStrings returns the entries of list not present in exclude.
func excludeStrings(list, exclude []string) []string {
	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[e] = true
	}
	out := make([]string, 0, len(list))
	for _, s := range list {
		if !excluded[s] {
			out = append(out, s)
		}
	}
	return out
}
