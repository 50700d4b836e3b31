package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"familytree/internal/database"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrVersionConflict    = errors.New("version conflict")
	ErrHasChildren        = errors.New("member has children")
	ErrAncestorCycle      = errors.New("member would become its own ancestor")
	ErrIDAllocationFailed = errors.New("could not allocate member id")
	ErrAlreadyReviewed    = errors.New("already reviewed")
	ErrLinkExhausted      = errors.New("branch link is not usable")
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// TxHook runs extra statements inside a repository's write transaction
type TxHook func(tx *database.Tx) error

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func now() time.Time {
	return time.Now().UTC()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// whereClause joins conditions with AND
func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func runHooks(tx *database.Tx, hooks []TxHook) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(tx); err != nil {
			return err
		}
	}
	return nil
}
