package repository

import (
	"database/sql"
	"fmt"
	"time"

	"familytree/internal/database"
	"familytree/internal/models"
)

// BranchLinkRepository handles database operations for branch links
type BranchLinkRepository struct {
	db *database.DB
}

// NewBranchLinkRepository creates a new branch link repository
func NewBranchLinkRepository(db *database.DB) *BranchLinkRepository {
	return &BranchLinkRepository{db: db}
}

const branchLinkColumns = `id, token, branch, parent_id, label, max_uses, use_count, expires_at, active, created_by, created_at`

func scanBranchLink(s rowScanner) (*models.BranchLink, error) {
	var (
		l         models.BranchLink
		parentID  sql.NullString
		expiresAt sql.NullTime
	)
	err := s.Scan(&l.ID, &l.Token, &l.Branch, &parentID, &l.Label, &l.MaxUses, &l.UseCount,
		&expiresAt, &l.Active, &l.CreatedBy, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.ParentID = stringPtr(parentID)
	l.ExpiresAt = timePtr(expiresAt)
	return &l, nil
}

// Create stores a new branch link
func (r *BranchLinkRepository) Create(l *models.BranchLink) error {
	l.CreatedAt = now()
	l.Active = true
	query := `
		INSERT INTO branch_links (token, branch, parent_id, label, max_uses, use_count, expires_at, active, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, l.Token, l.Branch, nullString(l.ParentID), l.Label, l.MaxUses,
		nullTime(l.ExpiresAt), l.Active, l.CreatedBy, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create branch link: %w", err)
	}
	l.ID = id
	l.UseCount = 0
	return nil
}

// Get retrieves a branch link by ID
func (r *BranchLinkRepository) Get(id int64) (*models.BranchLink, error) {
	l, err := scanBranchLink(r.db.QueryRow("SELECT "+branchLinkColumns+" FROM branch_links WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get branch link: %w", err)
	}
	return l, nil
}

// GetByToken retrieves a branch link by its token
func (r *BranchLinkRepository) GetByToken(token string) (*models.BranchLink, error) {
	l, err := scanBranchLink(r.db.QueryRow("SELECT "+branchLinkColumns+" FROM branch_links WHERE token = ?", token))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get branch link: %w", err)
	}
	return l, nil
}

// List returns all branch links newest first
func (r *BranchLinkRepository) List() ([]models.BranchLink, error) {
	rows, err := r.db.Query("SELECT " + branchLinkColumns + " FROM branch_links ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list branch links: %w", err)
	}
	defer rows.Close()

	links := []models.BranchLink{}
	for rows.Next() {
		l, err := scanBranchLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

// SetActive enables or disables a link
func (r *BranchLinkRepository) SetActive(id int64, active bool) error {
	result, err := r.db.Exec("UPDATE branch_links SET active = ? WHERE id = ?", active, id)
	if err != nil {
		return fmt.Errorf("failed to update branch link: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeUse counts one submission against the link, failing with
// ErrLinkExhausted when the link is inactive, expired or used up
func (r *BranchLinkRepository) ConsumeUse(token string) error {
	return consumeLinkUse(r.db, token, now())
}

func consumeLinkUse(q database.DBTX, token string, at time.Time) error {
	query := `
		UPDATE branch_links SET use_count = use_count + 1
		WHERE token = ? AND active = ` + q.GetDialect().BoolValue(true) + `
			AND (expires_at IS NULL OR expires_at > ?)
			AND (max_uses = 0 OR use_count < max_uses)
	`
	result, err := q.Exec(query, token, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to consume branch link: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var count int
	if err := q.QueryRow("SELECT COUNT(*) FROM branch_links WHERE token = ?", token).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrLinkExhausted
}

// Delete removes a branch link
func (r *BranchLinkRepository) Delete(id int64) error {
	result, err := r.db.Exec("DELETE FROM branch_links WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete branch link: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}
