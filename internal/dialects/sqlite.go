package dialects

import "strings"

// SQLiteDialect implements SQLite-specific SQL dialect.
type SQLiteDialect struct{}

func init() {
	RegisterDialect("sqlite", &SQLiteDialect{})
	RegisterDialect("sqlite3", &SQLiteDialect{})
}

// QuoteIdentifier quotes a SQLite identifier using double quotes.
func (d *SQLiteDialect) QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Placeholder returns SQLite placeholder format (always "?").
func (d *SQLiteDialect) Placeholder(_ int) string {
	return "?"
}

// UpsertSQL generates SQLite conflict clauses using ON CONFLICT.
// A nil updateCols produces DO NOTHING.
func (d *SQLiteDialect) UpsertSQL(_ string, conflictColumns, updateCols []string) string {
	quoted := make([]string, len(conflictColumns))
	for i, col := range conflictColumns {
		quoted[i] = d.QuoteIdentifier(col)
	}

	if updateCols == nil {
		if len(conflictColumns) > 0 {
			return " ON CONFLICT (" + strings.Join(quoted, ", ") + ") DO NOTHING"
		}
		return " ON CONFLICT DO NOTHING"
	}

	updates := make([]string, len(updateCols))
	for i, col := range updateCols {
		updates[i] = d.QuoteIdentifier(col) + " = excluded." + d.QuoteIdentifier(col)
	}
	return " ON CONFLICT (" + strings.Join(quoted, ", ") + ") DO UPDATE SET " +
		strings.Join(updates, ", ")
}

// NoLimit returns the SQLite "no limit" LIMIT argument.
func (d *SQLiteDialect) NoLimit() string {
	return "-1"
}
