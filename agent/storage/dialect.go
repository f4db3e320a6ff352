package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect abstracts the SQL differences between SQLite and PostgreSQL.
// Queries are written with ? placeholders and passed through Rebind.
type Dialect interface {
	// Name returns "sqlite" or "postgres".
	Name() string

	// DriverName is the database/sql driver registered for the dialect.
	DriverName() string

	// Placeholder returns the parameter marker for a 1-based index.
	Placeholder(index int) string

	// TimestampType returns the column type used for timestamps.
	TimestampType() string

	// UpsertConflict returns the "ON CONFLICT ... DO UPDATE SET" prefix.
	UpsertConflict(conflictColumns ...string) string
}

// SQLiteDialect implements Dialect for modernc.org/sqlite.
type SQLiteDialect struct{}

var _ Dialect = (*SQLiteDialect)(nil)

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) Placeholder(int) string { return "?" }

func (d *SQLiteDialect) TimestampType() string { return "DATETIME" }

func (d *SQLiteDialect) UpsertConflict(conflictColumns ...string) string {
	return fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET", strings.Join(conflictColumns, ", "))
}

// PostgresDialect implements Dialect for the pgx stdlib driver.
type PostgresDialect struct{}

var _ Dialect = (*PostgresDialect)(nil)

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) Placeholder(index int) string {
	return "$" + strconv.Itoa(index)
}

func (d *PostgresDialect) TimestampType() string { return "TIMESTAMPTZ" }

func (d *PostgresDialect) UpsertConflict(conflictColumns ...string) string {
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET", strings.Join(conflictColumns, ", "))
}

// Rebind rewrites ? placeholders into the dialect's markers. Queries in this
// package never contain a literal question mark.
func Rebind(d Dialect, query string) string {
	if d.Placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteString(d.Placeholder(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
