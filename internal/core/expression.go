// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

import "strings"

// Expr is an immutable node of the query expression tree. Nodes are created
// by the pure constructors below, consumed once by the compiler, and never
// mutated afterwards. Rendering and scope validation happen entirely at
// compile time.
//
// Example:
//
//	users := reg.Table("users", ...)
//	db.Builder().Select(users.C("id"), users.C("name")).
//	    From(users).
//	    Where(typeq.And(
//	        typeq.Eq(users.C("status"), 1),
//	        typeq.GreaterThan(users.C("age"), 18),
//	    )).
//	    Build()
type Expr interface {
	// build renders the node into the compile context, appending any
	// parameter slots in depth-first visit order.
	build(c *compileCtx) error
}

// asExpr coerces an operand into an expression node. Expressions and column
// handles pass through; *SelectQuery becomes an inline subquery; strings
// become column-name shorthand; anything else is a bound literal.
func asExpr(v interface{}) Expr {
	switch x := v.(type) {
	case Expr:
		return x
	case *Column:
		return x
	case *SelectQuery:
		return &subqueryExpr{sel: x}
	case string:
		return &colNameRef{name: x}
	default:
		return &valueExpr{value: v}
	}
}

// asOperand is like asExpr but keeps raw values as bound literals even when
// they are strings. Used for comparison right-hand sides, where a string is
// a value, not a column name.
func asOperand(v interface{}) Expr {
	switch x := v.(type) {
	case Expr:
		return x
	case *Column:
		return x
	case *SelectQuery:
		return &subqueryExpr{sel: x}
	default:
		return &valueExpr{value: v}
	}
}

// valueExpr is a literal fixed into the plan at compile time. It always
// renders as a parameter slot, never as inline SQL text.
type valueExpr struct {
	value interface{}
}

// Value fixes a literal into the statement as a compile-time parameter.
func Value(v interface{}) Expr {
	return &valueExpr{value: v}
}

func (e *valueExpr) build(c *compileCtx) error {
	c.writeValueSlot(e.value)
	return nil
}

// paramExpr is a named placeholder bound at execution time.
type paramExpr struct {
	name string
}

// Param creates a named placeholder resolved when the compiled plan is
// executed. Every named placeholder in a plan must be supplied at execution
// or the call fails with a ParameterError before any I/O.
func Param(name string) Expr {
	return &paramExpr{name: name}
}

func (e *paramExpr) build(c *compileCtx) error {
	c.writeNamedSlot(e.name)
	return nil
}

// colNameRef is a column reference given as a plain string, either
// "column" or "qualifier.column". Qualified references are scope-checked;
// bare names are rendered as-is and left to the engine to resolve.
type colNameRef struct {
	name string
}

// Col creates a column reference for sources that carry no registered
// schema, such as CTEs and aliased subqueries. The qualifier is validated
// against the query scope at compile time.
func Col(qualifier, name string) Expr {
	return &colNameRef{name: qualifier + "." + name}
}

func (e *colNameRef) build(c *compileCtx) error {
	if i := strings.IndexByte(e.name, '.'); i >= 0 {
		qualifier := e.name[:i]
		if !c.inScope(qualifier) {
			return compileErrorf("column " + e.name + " references " + qualifier + ", which is not in FROM/JOIN/WITH scope")
		}
	}
	c.writeIdent(e.name)
	return nil
}

// build renders a schema column handle as a qualified reference. A poisoned
// handle (unknown column) surfaces its SchemaError here, and a qualifier
// missing from the query scope is a CompileError.
func (col *Column) build(c *compileCtx) error {
	if col.err != nil {
		return col.err
	}
	if !c.inScope(col.qualifier) {
		return compileErrorf("column " + col.qualifier + "." + col.def.Name + " references " + col.qualifier + ", which is not in FROM/JOIN/WITH scope")
	}
	c.writeIdent(col.qualifier + "." + col.def.Name)
	return nil
}

// aliasExpr gives an expression an explicit output alias. Within one
// compiled statement the aliased node renders once in the projection; later
// references to the same node in GROUP BY, HAVING, and ORDER BY render the
// alias instead of re-rendering the expression.
type aliasExpr struct {
	expr  Expr
	alias string
}

// As gives an expression an output alias for use in projections.
func As(expr interface{}, alias string) Expr {
	return &aliasExpr{expr: asExpr(expr), alias: alias}
}

func (e *aliasExpr) build(c *compileCtx) error {
	if name, ok := c.aliases[e]; ok {
		c.buf.WriteString(c.dialect.QuoteIdentifier(name))
		return nil
	}
	return e.expr.build(c)
}

// subqueryExpr renders a select statement inline, parenthesized.
type subqueryExpr struct {
	sel *SelectQuery
}

// Subquery wraps a select statement for use as an expression operand.
func Subquery(sel *SelectQuery) Expr {
	return &subqueryExpr{sel: sel}
}

func (e *subqueryExpr) build(c *compileCtx) error {
	c.buf.WriteByte('(')
	if err := c.compileSelectBody(&e.sel.data); err != nil {
		return err
	}
	c.buf.WriteByte(')')
	return nil
}

// compareExpr is a binary comparison (=, <>, >, <, >=, <=).
type compareExpr struct {
	left     Expr
	operator string
	right    Expr
	rhsNil   bool
}

func compare(op string, left, right interface{}) Expr {
	return &compareExpr{
		left:     asExpr(left),
		operator: op,
		right:    asOperand(right),
		rhsNil:   right == nil,
	}
}

// Eq generates an equality comparison (left = right).
// A nil right operand generates "left IS NULL" instead.
func Eq(left, right interface{}) Expr { return compare("=", left, right) }

// NotEq generates an inequality comparison (left <> right).
// A nil right operand generates "left IS NOT NULL" instead.
func NotEq(left, right interface{}) Expr { return compare("<>", left, right) }

// GreaterThan generates a greater-than comparison (left > right).
func GreaterThan(left, right interface{}) Expr { return compare(">", left, right) }

// LessThan generates a less-than comparison (left < right).
func LessThan(left, right interface{}) Expr { return compare("<", left, right) }

// GreaterOrEqual generates a greater-than-or-equal comparison (left >= right).
func GreaterOrEqual(left, right interface{}) Expr { return compare(">=", left, right) }

// LessOrEqual generates a less-than-or-equal comparison (left <= right).
func LessOrEqual(left, right interface{}) Expr { return compare("<=", left, right) }

func (e *compareExpr) build(c *compileCtx) error {
	if err := e.left.build(c); err != nil {
		return err
	}

	if e.rhsNil {
		switch e.operator {
		case "=":
			c.buf.WriteString(" IS NULL")
			return nil
		case "<>":
			c.buf.WriteString(" IS NOT NULL")
			return nil
		}
	}

	c.buf.WriteByte(' ')
	c.buf.WriteString(e.operator)
	c.buf.WriteByte(' ')
	return e.right.build(c)
}

// inExpr is an IN or NOT IN membership test over a value list or subquery.
type inExpr struct {
	left   Expr
	values []interface{}
	sub    *SelectQuery
	not    bool
}

// In generates a membership test (left IN (v1, v2, ...)).
// A *SelectQuery as the sole value generates "left IN (SELECT ...)".
// An empty value list generates "0=1" (always false).
func In(left interface{}, values ...interface{}) Expr {
	if len(values) == 1 {
		if sub, ok := values[0].(*SelectQuery); ok {
			return &inExpr{left: asExpr(left), sub: sub}
		}
	}
	return &inExpr{left: asExpr(left), values: values}
}

// NotIn generates a negated membership test (left NOT IN (...)).
// An empty value list generates an empty condition (always true).
func NotIn(left interface{}, values ...interface{}) Expr {
	if len(values) == 1 {
		if sub, ok := values[0].(*SelectQuery); ok {
			return &inExpr{left: asExpr(left), sub: sub, not: true}
		}
	}
	return &inExpr{left: asExpr(left), values: values, not: true}
}

func (e *inExpr) build(c *compileCtx) error {
	if e.sub == nil && len(e.values) == 0 {
		if e.not {
			return nil
		}
		c.buf.WriteString("0=1")
		return nil
	}

	if err := e.left.build(c); err != nil {
		return err
	}
	if e.not {
		c.buf.WriteString(" NOT IN (")
	} else {
		c.buf.WriteString(" IN (")
	}

	if e.sub != nil {
		if err := c.compileSelectBody(&e.sub.data); err != nil {
			return err
		}
		c.buf.WriteByte(')')
		return nil
	}

	for i, val := range e.values {
		if i > 0 {
			c.buf.WriteString(", ")
		}
		if val == nil {
			c.buf.WriteString("NULL")
			continue
		}
		c.writeValueSlot(val)
	}
	c.buf.WriteByte(')')
	return nil
}

// betweenExpr is a BETWEEN or NOT BETWEEN range test.
type betweenExpr struct {
	left     Expr
	from, to interface{}
	not      bool
}

// Between generates a range test (left BETWEEN from AND to).
func Between(left, from, to interface{}) Expr {
	return &betweenExpr{left: asExpr(left), from: from, to: to}
}

// NotBetween generates a negated range test (left NOT BETWEEN from AND to).
func NotBetween(left, from, to interface{}) Expr {
	return &betweenExpr{left: asExpr(left), from: from, to: to, not: true}
}

func (e *betweenExpr) build(c *compileCtx) error {
	if err := e.left.build(c); err != nil {
		return err
	}
	if e.not {
		c.buf.WriteString(" NOT BETWEEN ")
	} else {
		c.buf.WriteString(" BETWEEN ")
	}
	c.writeValueSlot(e.from)
	c.buf.WriteString(" AND ")
	c.writeValueSlot(e.to)
	return nil
}

// LikeExp is a LIKE or NOT LIKE pattern test with automatic escaping.
type LikeExp struct {
	left      Expr
	values    []string
	like      string // "LIKE" or "NOT LIKE"
	or        bool   // true joins multiple patterns with OR instead of AND
	wildLeft  bool   // wildcard on the left of each value
	wildRight bool   // wildcard on the right of each value
	escape    []string
}

// DefaultLikeEscape specifies the default special character escaping for LIKE
// expressions. The strings at 2i positions are the special characters to be
// escaped while those at 2i+1 positions are the corresponding escaped versions.
var DefaultLikeEscape = []string{"\\", "\\\\", "%", "\\%", "_", "\\_"}

// Like generates a LIKE expression with automatic wildcards and escaping.
// By default each value is wrapped with % on both sides for partial matching.
//
// Example:
//
//	typeq.Like(users.C("name"), "john")        // name LIKE '%john%'
//	typeq.Like(users.C("name"), "key", "word") // name LIKE '%key%' AND name LIKE '%word%'
func Like(left interface{}, values ...string) *LikeExp {
	return &LikeExp{
		left:      asExpr(left),
		values:    values,
		like:      "LIKE",
		wildLeft:  true,
		wildRight: true,
		escape:    DefaultLikeEscape,
	}
}

// NotLike generates a NOT LIKE expression.
func NotLike(left interface{}, values ...string) *LikeExp {
	exp := Like(left, values...)
	exp.like = "NOT LIKE"
	return exp
}

// OrLike generates a LIKE expression matching ANY of the values (OR logic).
func OrLike(left interface{}, values ...string) *LikeExp {
	exp := Like(left, values...)
	exp.or = true
	return exp
}

// OrNotLike generates a NOT LIKE expression with OR logic.
func OrNotLike(left interface{}, values ...string) *LikeExp {
	exp := NotLike(left, values...)
	exp.or = true
	return exp
}

// Match sets wildcard matching on the left and/or right of the values.
// Call Match(false, true) to generate "value%" (prefix matching).
func (e *LikeExp) Match(left, right bool) *LikeExp {
	e.wildLeft, e.wildRight = left, right
	return e
}

// EscapeChars sets custom escape character pairs for LIKE values.
// Must be an even number of strings: [special1, escaped1, special2, escaped2, ...].
func (e *LikeExp) EscapeChars(chars ...string) *LikeExp {
	if len(chars)%2 != 0 {
		panic("LikeExp.EscapeChars requires even number of strings")
	}
	e.escape = chars
	return e
}

func (e *LikeExp) build(c *compileCtx) error {
	if len(e.values) == 0 {
		return nil
	}

	join := " AND "
	if e.or {
		join = " OR "
	}

	for i, val := range e.values {
		if i > 0 {
			c.buf.WriteString(join)
		}
		for j := 0; j+1 < len(e.escape); j += 2 {
			val = strings.ReplaceAll(val, e.escape[j], e.escape[j+1])
		}
		if e.wildLeft {
			val = "%" + val
		}
		if e.wildRight {
			val += "%"
		}
		if err := e.left.build(c); err != nil {
			return err
		}
		c.buf.WriteByte(' ')
		c.buf.WriteString(e.like)
		c.buf.WriteByte(' ')
		c.writeValueSlot(val)
	}
	return nil
}

// blankExpr marks condition nodes that may render no SQL at all, such as
// NotIn with no values or And with no operands. Clause writers skip blank
// conditions instead of emitting a dangling WHERE, HAVING, or ON.
type blankExpr interface {
	blank() bool
}

func isBlank(e Expr) bool {
	if e == nil {
		return true
	}
	if b, ok := e.(blankExpr); ok {
		return b.blank()
	}
	return false
}

func (e *inExpr) blank() bool { return e.not && e.sub == nil && len(e.values) == 0 }

func (e *LikeExp) blank() bool { return len(e.values) == 0 }

func (e *notExpr) blank() bool { return isBlank(e.exp) }

// andOrExpr concatenates expressions with AND or OR.
type andOrExpr struct {
	exps []Expr
	op   string
}

// And concatenates expressions with AND. Nil and empty conditions are
// filtered out; with no operands left the whole node renders nothing.
func And(exps ...Expr) Expr {
	return &andOrExpr{exps: exps, op: "AND"}
}

// Or concatenates expressions with OR. Nil and empty conditions are
// filtered out; with no operands left the whole node renders nothing.
func Or(exps ...Expr) Expr {
	return &andOrExpr{exps: exps, op: "OR"}
}

func (e *andOrExpr) blank() bool {
	for _, exp := range e.exps {
		if !isBlank(exp) {
			return false
		}
	}
	return true
}

func (e *andOrExpr) build(c *compileCtx) error {
	nodes := make([]Expr, 0, len(e.exps))
	for _, exp := range e.exps {
		if !isBlank(exp) {
			nodes = append(nodes, exp)
		}
	}
	if len(nodes) == 0 {
		return nil
	}
	if len(nodes) == 1 {
		return nodes[0].build(c)
	}

	for i, exp := range nodes {
		if i > 0 {
			c.buf.WriteString(") " + e.op + " (")
		} else {
			c.buf.WriteByte('(')
		}
		if err := exp.build(c); err != nil {
			return err
		}
	}
	c.buf.WriteByte(')')
	return nil
}

// notExpr prefixes NOT to an expression.
type notExpr struct {
	exp Expr
}

// Not negates an expression: NOT (exp).
func Not(exp Expr) Expr {
	return &notExpr{exp: exp}
}

func (e *notExpr) build(c *compileCtx) error {
	if e.exp == nil {
		return nil
	}
	c.buf.WriteString("NOT (")
	if err := e.exp.build(c); err != nil {
		return err
	}
	c.buf.WriteByte(')')
	return nil
}

// existsExpr is an EXISTS or NOT EXISTS test over a subquery.
type existsExpr struct {
	sel *SelectQuery
	not bool
}

// Exists generates an EXISTS (SELECT ...) test.
func Exists(sel *SelectQuery) Expr {
	return &existsExpr{sel: sel}
}

// NotExists generates a NOT EXISTS (SELECT ...) test.
func NotExists(sel *SelectQuery) Expr {
	return &existsExpr{sel: sel, not: true}
}

func (e *existsExpr) build(c *compileCtx) error {
	if e.not {
		c.buf.WriteString("NOT ")
	}
	c.buf.WriteString("EXISTS (")
	if err := c.compileSelectBody(&e.sel.data); err != nil {
		return err
	}
	c.buf.WriteByte(')')
	return nil
}
