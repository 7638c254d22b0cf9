package core

import (
	"context"
	"database/sql"
)

// Plan is an immutable compiled statement: final SQL text, the parameter
// slots in positional order, and the projection shape for result mapping.
// A plan may be executed any number of times with different named
// parameters; nothing about it changes after Build.
type Plan struct {
	text  string
	slots []slot
	shape *projShape
	db    *DB
	tx    *sql.Tx // nil outside transactions
	ctx   context.Context
}

// SQL returns the compiled SQL text with dialect placeholders.
func (p *Plan) SQL() string {
	return p.text
}

// ParamNames returns the named placeholders the plan requires, in first
// appearance order, without duplicates.
func (p *Plan) ParamNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range p.slots {
		if s.name != "" && !seen[s.name] {
			seen[s.name] = true
			names = append(names, s.name)
		}
	}
	return names
}

// Bind resolves the positional argument list for one execution. Named slots
// take their value from params; compile-time literal slots keep theirs.
// A named slot with no supplied value fails with a ParameterError before
// any database I/O.
func (p *Plan) Bind(params Params) ([]interface{}, error) {
	args := make([]interface{}, len(p.slots))
	for i, s := range p.slots {
		if s.name == "" {
			args[i] = s.value
			continue
		}
		v, ok := params[s.name]
		if !ok {
			return nil, &ParameterError{Name: s.name}
		}
		args[i] = v
	}
	return args, nil
}

// WithContext returns a copy of the plan bound to the given context.
func (p *Plan) WithContext(ctx context.Context) *Plan {
	cp := *p
	cp.ctx = ctx
	return &cp
}
