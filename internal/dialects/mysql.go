package dialects

import "strings"

// MySQLDialect implements MySQL-specific SQL dialect.
type MySQLDialect struct{}

func init() {
	RegisterDialect("mysql", &MySQLDialect{})
}

// QuoteIdentifier quotes a MySQL identifier using backticks.
func (d *MySQLDialect) QuoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// Placeholder returns MySQL placeholder format (always "?").
func (d *MySQLDialect) Placeholder(_ int) string {
	return "?"
}

// UpsertSQL generates MySQL conflict clauses using ON DUPLICATE KEY UPDATE.
// MySQL has no DO NOTHING form; a nil updateCols yields a plain INSERT that
// fails on duplicates, so callers targeting MySQL should request updates.
func (d *MySQLDialect) UpsertSQL(_ string, _, updateCols []string) string {
	if updateCols == nil {
		return ""
	}

	updates := make([]string, len(updateCols))
	for i, col := range updateCols {
		q := d.QuoteIdentifier(col)
		updates[i] = q + " = VALUES(" + q + ")"
	}
	return " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")
}

// NoLimit returns the MySQL "no limit" LIMIT argument, the documented
// workaround of the maximum unsigned BIGINT value.
func (d *MySQLDialect) NoLimit() string {
	return "18446744073709551615"
}
