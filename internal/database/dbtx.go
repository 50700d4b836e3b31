package database

import (
	"database/sql"
)

// DBTX is satisfied by both *DB and *Tx, so repository helpers and
// transaction hooks can run either inside or outside a transaction
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	ExecReturningID(query string, args ...any) (int64, error)
	GetDialect() Dialect
}

var (
	_ DBTX = (*DB)(nil)
	_ DBTX = (*Tx)(nil)
)

// rawRunner is the driver level API shared by *sql.DB and *sql.Tx
type rawRunner interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// insertReturningID runs an already rewritten INSERT and returns the new
// row's id, using RETURNING on drivers without LastInsertId
func insertReturningID(r rawRunner, dialect Dialect, query string, args []any) (int64, error) {
	if dialect.SupportsLastInsertId() {
		result, err := r.Exec(query, args...)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}

	var id int64
	if err := r.QueryRow(withReturningID(query), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// Tx is a transaction that rewrites placeholders for its dialect
type Tx struct {
	*sql.Tx
	dialect Dialect
}

// Begin starts a new transaction
func (db *DB) Begin() (*Tx, error) {
	tx, err := db.DB.Begin()
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: tx, dialect: db.Dialect}, nil
}

func (db *DB) GetDialect() Dialect {
	return db.Dialect
}

func (tx *Tx) Query(query string, args ...any) (*sql.Rows, error) {
	return tx.Tx.Query(tx.dialect.RewriteQuery(query), args...)
}

func (tx *Tx) QueryRow(query string, args ...any) *sql.Row {
	return tx.Tx.QueryRow(tx.dialect.RewriteQuery(query), args...)
}

func (tx *Tx) Exec(query string, args ...any) (sql.Result, error) {
	return tx.Tx.Exec(tx.dialect.RewriteQuery(query), args...)
}

// ExecReturningID executes an INSERT inside the transaction and returns the
// new row's ID
func (tx *Tx) ExecReturningID(query string, args ...any) (int64, error) {
	return insertReturningID(tx.Tx, tx.dialect, tx.dialect.RewriteQuery(query), args)
}

func (tx *Tx) GetDialect() Dialect {
	return tx.dialect
}
