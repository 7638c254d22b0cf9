package dialects

import (
	"fmt"
	"strings"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct{}

func init() {
	RegisterDialect("postgres", &PostgresDialect{})
	RegisterDialect("postgresql", &PostgresDialect{})
}

// QuoteIdentifier quotes a PostgreSQL identifier using double quotes.
func (d *PostgresDialect) QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// UpsertSQL generates PostgreSQL conflict clauses using ON CONFLICT.
// A nil updateCols produces DO NOTHING.
func (d *PostgresDialect) UpsertSQL(_ string, conflictColumns, updateCols []string) string {
	if updateCols == nil {
		if len(conflictColumns) > 0 {
			return " ON CONFLICT (" + d.joinQuoted(conflictColumns) + ") DO NOTHING"
		}
		return " ON CONFLICT DO NOTHING"
	}

	updates := make([]string, len(updateCols))
	for i, col := range updateCols {
		updates[i] = d.QuoteIdentifier(col) + " = EXCLUDED." + d.QuoteIdentifier(col)
	}
	return " ON CONFLICT (" + d.joinQuoted(conflictColumns) + ") DO UPDATE SET " +
		strings.Join(updates, ", ")
}

func (d *PostgresDialect) joinQuoted(cols []string) string {
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = d.QuoteIdentifier(col)
	}
	return strings.Join(quoted, ", ")
}

// NoLimit returns the PostgreSQL "no limit" LIMIT argument.
func (d *PostgresDialect) NoLimit() string {
	return "ALL"
}
