package database

import (
	"database/sql"
	"regexp"
	"strconv"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// SupportsLastInsertId returns true if the driver supports LastInsertId()
	SupportsLastInsertId() bool

	// ConfigureConnection applies any database-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// CreateMigrationsTableQuery returns the SQL to create the migrations tracking table
	CreateMigrationsTableQuery() string

	// BoolValue returns the SQL representation of a boolean value
	BoolValue(b bool) string

	// UpsertFeatureFlag returns an insert-or-update statement for feature_flags
	// taking (flag_key, enabled, description, updated_by, updated_at).
	UpsertFeatureFlag() string

	// IsUniqueViolation reports whether err is a unique or primary key violation
	IsUniqueViolation(err error) bool
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

// placeholderRegexp matches ? placeholders not inside quotes
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

// upsertOnConflict is shared by dialects that support ON CONFLICT ... DO UPDATE
const upsertOnConflict = `
	INSERT INTO feature_flags (flag_key, enabled, description, updated_by, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (flag_key) DO UPDATE SET
		enabled = excluded.enabled,
		description = CASE WHEN excluded.description = '' THEN feature_flags.description ELSE excluded.description END,
		updated_by = excluded.updated_by,
		updated_at = excluded.updated_at
`
