// Package dialects provides database-specific SQL dialect implementations for
// PostgreSQL, MySQL, and SQLite, handling identifier quoting, positional
// placeholder formats, and UPSERT conflict clauses.
package dialects

import "strings"

// Dialect defines database-specific behaviors.
type Dialect interface {
	QuoteIdentifier(string) string
	Placeholder(int) string
	UpsertSQL(string, []string, []string) string
	// NoLimit is the LIMIT argument meaning "all rows", used when a query
	// sets OFFSET without LIMIT on engines that reject a bare OFFSET.
	NoLimit() string
}

var dialects = make(map[string]Dialect)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	dialects[name] = d
}

// GetDialect retrieves a registered dialect by driver name, panics if not found.
func GetDialect(name string) Dialect {
	if d, ok := dialects[name]; ok {
		return d
	}
	panic("unsupported dialect: " + name)
}

// LookupDialect retrieves a registered dialect by driver name.
func LookupDialect(name string) (Dialect, bool) {
	d, ok := dialects[name]
	return d, ok
}

// QuoteQualified quotes a possibly dotted identifier such as "schema.table" or
// "alias.column", quoting each path segment separately.
func QuoteQualified(d Dialect, identifier string) string {
	if !strings.Contains(identifier, ".") {
		return d.QuoteIdentifier(strings.TrimSpace(identifier))
	}
	parts := strings.Split(identifier, ".")
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = d.QuoteIdentifier(strings.TrimSpace(part))
	}
	return strings.Join(quoted, ".")
}
