package repository

import (
	"database/sql"
	"fmt"

	"familytree/internal/database"
	"familytree/internal/models"
)

// SnapshotRepository handles database operations for snapshots
type SnapshotRepository struct {
	db *database.DB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *database.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create stores a snapshot with its payload
func (r *SnapshotRepository) Create(s *models.Snapshot) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now()
	}
	query := `
		INSERT INTO snapshots (name, description, member_count, payload, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, s.Name, s.Description, s.MemberCount, string(s.Payload), s.CreatedBy, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	s.ID = id
	return nil
}

// List returns snapshots newest first, without payloads
func (r *SnapshotRepository) List() ([]models.Snapshot, error) {
	rows, err := r.db.Query(`
		SELECT id, name, description, member_count, created_by, created_at
		FROM snapshots
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []models.Snapshot{}
	for rows.Next() {
		var s models.Snapshot
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.MemberCount, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// Get retrieves a snapshot including its payload
func (r *SnapshotRepository) Get(id int64) (*models.Snapshot, error) {
	var (
		s       models.Snapshot
		payload string
	)
	err := r.db.QueryRow(`
		SELECT id, name, description, member_count, payload, created_by, created_at
		FROM snapshots
		WHERE id = ?
	`, id).Scan(&s.ID, &s.Name, &s.Description, &s.MemberCount, &payload, &s.CreatedBy, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	s.Payload = []byte(payload)
	return &s, nil
}

// Delete removes a snapshot
func (r *SnapshotRepository) Delete(id int64) error {
	result, err := r.db.Exec("DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}
