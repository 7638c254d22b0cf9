// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

// funcExpr is a SQL function call over expression arguments.
type funcExpr struct {
	name     string
	args     []Expr
	distinct bool
	star     bool
}

func fn(name string, args ...interface{}) *funcExpr {
	e := &funcExpr{name: name}
	for _, a := range args {
		e.args = append(e.args, asExpr(a))
	}
	return e
}

// Count generates COUNT(arg), or COUNT(*) when called without arguments.
func Count(args ...interface{}) Expr {
	if len(args) == 0 {
		return &funcExpr{name: "COUNT", star: true}
	}
	return fn("COUNT", args[0])
}

// CountDistinct generates COUNT(DISTINCT arg).
func CountDistinct(arg interface{}) Expr {
	e := fn("COUNT", arg)
	e.distinct = true
	return e
}

// Sum generates SUM(arg).
func Sum(arg interface{}) Expr { return fn("SUM", arg) }

// Avg generates AVG(arg).
func Avg(arg interface{}) Expr { return fn("AVG", arg) }

// Min generates MIN(arg).
func Min(arg interface{}) Expr { return fn("MIN", arg) }

// Max generates MAX(arg).
func Max(arg interface{}) Expr { return fn("MAX", arg) }

// Coalesce generates COALESCE(a, b, ...).
func Coalesce(args ...interface{}) Expr { return fn("COALESCE", args...) }

// Lower generates LOWER(arg).
func Lower(arg interface{}) Expr { return fn("LOWER", arg) }

// Upper generates UPPER(arg).
func Upper(arg interface{}) Expr { return fn("UPPER", arg) }

// Length generates LENGTH(arg).
func Length(arg interface{}) Expr { return fn("LENGTH", arg) }

func (e *funcExpr) build(c *compileCtx) error {
	c.buf.WriteString(e.name)
	c.buf.WriteByte('(')
	if e.star {
		c.buf.WriteByte('*')
	} else {
		if e.distinct {
			c.buf.WriteString("DISTINCT ")
		}
		for i, arg := range e.args {
			if i > 0 {
				c.buf.WriteString(", ")
			}
			if err := arg.build(c); err != nil {
				return err
			}
		}
	}
	c.buf.WriteByte(')')
	return nil
}
