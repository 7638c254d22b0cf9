package core

import (
	"regexp"
	"strings"
)

// Params represents named parameter values bound at execution time.
// Named placeholders are specified in SQL fragments using {:name} syntax.
//
// Example:
//
//	plan, _ := db.Builder().
//	    Select(users.C("id")).From(users).
//	    Where(typeq.Eq(users.C("status"), typeq.Param("status"))).
//	    Build()
//	recs, _ := plan.Query(typeq.Params{"status": "active"})
type Params map[string]interface{}

// rawExpr is a raw SQL fragment with two distinct interpolation channels:
//
//	{{name}} / [[name]]  identifier slots: quoted per dialect, rendered
//	                     verbatim into the SQL text, never bound
//	{:name}              named value slots: become execution-time parameters
//	?                    positional value slots: consume args in order and
//	                     are fixed into the plan at compile time
//
// Keeping identifier slots syntactically distinct from value slots means the
// fragment's structure, not runtime string inspection, decides what
// participates in parameter binding.
type rawExpr struct {
	sql  string
	args []interface{}
}

// NewExp creates a raw SQL fragment expression.
//
// Example:
//
//	typeq.NewExp("[[age]] > ? AND {{users}}.[[status]] = {:status}", 18)
func NewExp(sql string, args ...interface{}) Expr {
	return &rawExpr{sql: sql, args: args}
}

// rawTokenRegex matches, in one pass, identifier slots ({{name}} and
// [[name]]), named value slots ({:name}), and positional value slots (?).
// Identifier names may contain dots for schema-qualified references.
var rawTokenRegex = regexp.MustCompile(`\{\{[\w\-. ]+\}\}|\[\[[\w\-. ]+\]\]|\{:\w+\}|\?`)

func (e *rawExpr) blank() bool { return strings.TrimSpace(e.sql) == "" }

func (e *rawExpr) build(c *compileCtx) error {
	argIdx := 0
	last := 0
	for _, loc := range rawTokenRegex.FindAllStringIndex(e.sql, -1) {
		c.buf.WriteString(e.sql[last:loc[0]])
		tok := e.sql[loc[0]:loc[1]]
		switch {
		case tok == "?":
			if argIdx >= len(e.args) {
				return compileErrorf("raw fragment has more ? placeholders than arguments")
			}
			c.writeValueSlot(e.args[argIdx])
			argIdx++
		case tok[1] == ':':
			c.writeNamedSlot(tok[2 : len(tok)-1])
		default:
			c.writeIdent(tok[2 : len(tok)-2])
		}
		last = loc[1]
	}
	c.buf.WriteString(e.sql[last:])

	if argIdx < len(e.args) {
		return compileErrorf("raw fragment has fewer ? placeholders than arguments")
	}
	return nil
}
