package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"familytree/internal/database"
	"familytree/internal/models"
)

// HistoryRepository reads the member change log. Writes happen inside the
// member write transactions through insertHistory.
type HistoryRepository struct {
	db *database.DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func insertHistory(q database.DBTX, entry *models.HistoryEntry) error {
	changes := entry.Changes
	if changes == nil {
		changes = []models.FieldChange{}
	}
	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("failed to encode history changes: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}

	query := `
		INSERT INTO member_history (member_id, action, changes, actor, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	id, err := q.ExecReturningID(query, nullString(entry.MemberID), string(entry.Action), string(payload), entry.Actor, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	entry.ID = id
	entry.Changes = changes
	return nil
}

const historyColumns = `id, member_id, action, changes, actor, created_at`

func scanHistory(s rowScanner) (*models.HistoryEntry, error) {
	var (
		entry    models.HistoryEntry
		memberID sql.NullString
		action   string
		changes  string
	)
	if err := s.Scan(&entry.ID, &memberID, &action, &changes, &entry.Actor, &entry.CreatedAt); err != nil {
		return nil, err
	}
	entry.MemberID = stringPtr(memberID)
	entry.Action = models.HistoryAction(action)
	if err := json.Unmarshal([]byte(changes), &entry.Changes); err != nil {
		return nil, fmt.Errorf("failed to decode history %d: %w", entry.ID, err)
	}
	return &entry, nil
}

// Get retrieves a history entry by ID
func (r *HistoryRepository) Get(id int64) (*models.HistoryEntry, error) {
	query := "SELECT " + historyColumns + " FROM member_history WHERE id = ?"
	entry, err := scanHistory(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history entry: %w", err)
	}
	return entry, nil
}

// List returns history entries newest first, with the total matching count
func (r *HistoryRepository) List(filter models.HistoryFilter) ([]models.HistoryEntry, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.MemberID != "" {
		conds = append(conds, "member_id = ?")
		args = append(args, filter.MemberID)
	}
	if filter.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.Actor != "" {
		conds = append(conds, "actor = ?")
		args = append(args, filter.Actor)
	}
	where := whereClause(conds)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM member_history"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	query := "SELECT " + historyColumns + " FROM member_history" + where + " ORDER BY id DESC LIMIT ? OFFSET ?"
	rows, err := r.db.Query(query, append(args, clampLimit(filter.Limit), filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *entry)
	}
	return entries, total, rows.Err()
}
