package database

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

func TestDialectSQLite(t *testing.T) {
	dialect := NewSQLiteDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "sqlite3"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		result := dialect.SupportsLastInsertId()
		if !result {
			t.Error("SupportsLastInsertId() should return true for SQLite")
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "sqlite"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestDialectPostgreSQL(t *testing.T) {
	dialect := NewPostgresDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "postgres"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		result := dialect.SupportsLastInsertId()
		if result {
			t.Error("SupportsLastInsertId() should return false for PostgreSQL")
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "postgres"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestDialectMySQL(t *testing.T) {
	dialect := NewMySQLDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "mysql"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		result := dialect.SupportsLastInsertId()
		if !result {
			t.Error("SupportsLastInsertId() should return true for MySQL")
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "mysql"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM members WHERE id = ?",
			expected: "SELECT * FROM members WHERE id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM members WHERE id = ?",
			expected: "SELECT * FROM members WHERE id = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "UPDATE members SET first_name = ?, version = version + 1 WHERE id = ? AND version = ?",
			expected: "UPDATE members SET first_name = $1, version = version + 1 WHERE id = $2 AND version = $3",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE admin_users SET name = ?, email = ? WHERE id = ?",
			expected: "UPDATE admin_users SET name = ?, email = ? WHERE id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		config   DialectConfig
		expected string
	}{
		{
			name:     "SQLite plain path",
			dialect:  NewSQLiteDialect(),
			config:   DialectConfig{Path: "tree.db"},
			expected: "tree.db?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate",
		},
		{
			name:     "SQLite path with params",
			dialect:  NewSQLiteDialect(),
			config:   DialectConfig{Path: "file:tree.db?cache=shared"},
			expected: "file:tree.db?cache=shared&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate",
		},
		{
			name:     "MySQL adds parseTime",
			dialect:  NewMySQLDialect(),
			config:   DialectConfig{URL: "user:pw@tcp(localhost:3306)/tree"},
			expected: "user:pw@tcp(localhost:3306)/tree?parseTime=true",
		},
		{
			name:     "MySQL keeps explicit parseTime",
			dialect:  NewMySQLDialect(),
			config:   DialectConfig{URL: "user:pw@tcp(localhost:3306)/tree?parseTime=false"},
			expected: "user:pw@tcp(localhost:3306)/tree?parseTime=false",
		},
		{
			name:     "PostgreSQL passthrough",
			dialect:  NewPostgresDialect(),
			config:   DialectConfig{URL: "postgres://localhost/tree?sslmode=disable"},
			expected: "postgres://localhost/tree?sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.DSN(tt.config); got != tt.expected {
				t.Errorf("DSN() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		err     error
		want    bool
	}{
		{name: "SQLite unique", dialect: NewSQLiteDialect(), err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, want: true},
		{name: "SQLite primary key", dialect: NewSQLiteDialect(), err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, want: true},
		{name: "SQLite foreign key", dialect: NewSQLiteDialect(), err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, want: false},
		{name: "SQLite wrapped", dialect: NewSQLiteDialect(), err: fmt.Errorf("insert: %w", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}), want: true},
		{name: "PostgreSQL unique", dialect: NewPostgresDialect(), err: &pq.Error{Code: "23505"}, want: true},
		{name: "PostgreSQL other", dialect: NewPostgresDialect(), err: &pq.Error{Code: "23503"}, want: false},
		{name: "MySQL duplicate", dialect: NewMySQLDialect(), err: &mysql.MySQLError{Number: 1062}, want: true},
		{name: "MySQL other", dialect: NewMySQLDialect(), err: &mysql.MySQLError{Number: 1452}, want: false},
		{name: "plain error", dialect: NewSQLiteDialect(), err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	content := `-- comment
CREATE TABLE a (
    id INTEGER
);

CREATE INDEX idx_a ON a(id);
INSERT INTO a (id) VALUES (1)`

	got := splitStatements(content)
	if len(got) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(got), got)
	}
	if !strings.HasPrefix(got[0], "CREATE TABLE a") || !strings.HasSuffix(got[0], ");") {
		t.Errorf("unexpected first statement %q", got[0])
	}
	if got[2] != "INSERT INTO a (id) VALUES (1)" {
		t.Errorf("unexpected trailing statement %q", got[2])
	}
}
