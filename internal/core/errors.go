package core

import "errors"

// Predefined errors returned by typeq operations.
var (
	// ErrNoRows is returned when a query that expects rows returns no results.
	ErrNoRows = errors.New("no rows in result set")
	// ErrTxDone is returned when operating on an already committed or rolled back transaction.
	ErrTxDone = errors.New("transaction has already been committed or rolled back")
	// ErrInvalidModelType is returned when an invalid destination type is provided for scanning.
	ErrInvalidModelType = errors.New("invalid model type")
	// ErrUnsupportedDialect is returned when an unsupported database dialect is specified.
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
)

// SchemaError reports a reference to an unknown table or column made while
// constructing a query AST. It is detected no later than Build, before any
// SQL reaches the database.
type SchemaError struct {
	Table  string
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	msg := "schema: " + e.Reason
	if e.Table != "" {
		msg += " (table " + e.Table
		if e.Column != "" {
			msg += ", column " + e.Column
		}
		msg += ")"
	}
	return msg
}

// CompileError reports an invalid query AST: a column referenced outside its
// table's scope, a duplicate alias, a CTE forward reference, or a FROM
// subquery without an alias. Compilation failures block execution entirely;
// no SQL is sent.
type CompileError struct {
	Reason string
}

func (e *CompileError) Error() string {
	return "compile: " + e.Reason
}

// compileErrorf is a small convenience for building CompileErrors.
func compileErrorf(reason string) error {
	return &CompileError{Reason: reason}
}

// ParameterError reports a named placeholder in a compiled plan that has no
// bound value at execution time. It is raised before any database I/O.
type ParameterError struct {
	Name string
}

func (e *ParameterError) Error() string {
	return "missing parameter: " + e.Name
}

// Engine failures (constraint violations, SQL rejected by the engine) are
// propagated to the caller unchanged; typeq never reinterprets or retries
// them. Use errors.Is/As against the driver's error types.

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
