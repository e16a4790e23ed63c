package remote

import (
	"database/sql"
	"regexp"
	"strconv"
	"strings"
)

// Dialect defines the interface for database-specific operations.
type Dialect interface {
	// Name identifies the dialect in logs.
	Name() string

	// DriverName returns the driver name for sql.Open.
	DriverName() string

	// DSN returns the data source name for the connection.
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres).
	RewriteQuery(query string) string

	// SupportsLastInsertId returns true if the driver supports LastInsertId().
	SupportsLastInsertId() bool

	// ConfigureConnection applies any database-specific connection settings.
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory holding this dialect's migrations.
	MigrationsSubdir() string

	// CreateMigrationsTableQuery returns the SQL to create the migrations tracking table.
	CreateMigrationsTableQuery() string

	// UpsertClause returns the suffix that turns an INSERT into an upsert
	// on the given conflict columns, overwriting the update columns.
	UpsertClause(conflict, update []string) string
}

// DialectConfig holds configuration for database connection.
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

// placeholderRegexp matches ? placeholders.
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

// onConflictClause is the upsert form shared by PostgreSQL and SQLite.
func onConflictClause(conflict, update []string) string {
	sets := make([]string, len(update))
	for i, col := range update {
		sets[i] = col + " = excluded." + col
	}

	return " ON CONFLICT (" + strings.Join(conflict, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
}
