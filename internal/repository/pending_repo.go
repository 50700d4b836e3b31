package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"familytree/internal/database"
	"familytree/internal/models"
)

// PendingRepository handles database operations for public submissions
type PendingRepository struct {
	db *database.DB
}

// NewPendingRepository creates a new pending member repository
func NewPendingRepository(db *database.DB) *PendingRepository {
	return &PendingRepository{db: db}
}

const pendingColumns = `id, proposed, submitter_name, submitter_phone, submitter_email, branch_link_token,
	status, review_note, reviewed_by, reviewed_at, approved_member_id, created_at`

func scanPending(s rowScanner) (*models.PendingMember, error) {
	var (
		p          models.PendingMember
		proposed   string
		token      sql.NullString
		status     string
		reviewedAt sql.NullTime
		approvedID sql.NullString
	)
	err := s.Scan(&p.ID, &proposed, &p.SubmitterName, &p.SubmitterPhone, &p.SubmitterEmail, &token,
		&status, &p.ReviewNote, &p.ReviewedBy, &reviewedAt, &approvedID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(proposed), &p.Proposed); err != nil {
		return nil, fmt.Errorf("failed to decode submission %d: %w", p.ID, err)
	}
	p.BranchLinkToken = stringPtr(token)
	p.Status = models.ReviewStatus(status)
	p.ReviewedAt = timePtr(reviewedAt)
	p.ApprovedMemberID = stringPtr(approvedID)
	return &p, nil
}

// Create stores a submission. When it carries a branch link token, one use
// of that link is consumed in the same transaction.
func (r *PendingRepository) Create(p *models.PendingMember) error {
	proposed, err := json.Marshal(p.Proposed)
	if err != nil {
		return fmt.Errorf("failed to encode submission: %w", err)
	}
	p.Status = models.StatusPending
	p.CreatedAt = now()

	return r.db.WithTx(func(tx *database.Tx) error {
		if p.BranchLinkToken != nil {
			if err := consumeLinkUse(tx, *p.BranchLinkToken, p.CreatedAt); err != nil {
				return err
			}
		}
		query := `
			INSERT INTO pending_members (proposed, submitter_name, submitter_phone, submitter_email,
				branch_link_token, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		id, err := tx.ExecReturningID(query, string(proposed), p.SubmitterName, p.SubmitterPhone, p.SubmitterEmail,
			nullString(p.BranchLinkToken), string(p.Status), p.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create submission: %w", err)
		}
		p.ID = id
		return nil
	})
}

// Get retrieves a submission by ID
func (r *PendingRepository) Get(id int64) (*models.PendingMember, error) {
	p, err := scanPending(r.db.QueryRow("SELECT "+pendingColumns+" FROM pending_members WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return p, nil
}

// List returns submissions newest first, optionally filtered by status
func (r *PendingRepository) List(status models.ReviewStatus, limit, offset int) ([]models.PendingMember, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	if status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(status))
	}
	where := whereClause(conds)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM pending_members"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	rows, err := r.db.Query("SELECT "+pendingColumns+" FROM pending_members"+where+" ORDER BY id DESC LIMIT ? OFFSET ?",
		append(args, clampLimit(limit), offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	items := []models.PendingMember{}
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *p)
	}
	return items, total, rows.Err()
}

// MarkReviewed moves a pending submission to status. It fails with
// ErrAlreadyReviewed when the submission is no longer pending.
func (r *PendingRepository) MarkReviewed(id int64, status models.ReviewStatus, reviewer, note string, approvedMemberID *string) error {
	return markPendingReviewed(r.db, id, status, reviewer, note, approvedMemberID)
}

// MarkReviewedHook returns MarkReviewed as a hook for another repository's
// transaction
func (r *PendingRepository) MarkReviewedHook(id int64, status models.ReviewStatus, reviewer, note string, approvedMemberID func() *string) TxHook {
	return func(tx *database.Tx) error {
		return markPendingReviewed(tx, id, status, reviewer, note, approvedMemberID())
	}
}

func markPendingReviewed(q database.DBTX, id int64, status models.ReviewStatus, reviewer, note string, approvedMemberID *string) error {
	query := `
		UPDATE pending_members
		SET status = ?, reviewed_by = ?, review_note = ?, reviewed_at = ?, approved_member_id = ?
		WHERE id = ? AND status = ?
	`
	result, err := q.Exec(query, string(status), reviewer, note, now(), nullString(approvedMemberID), id, string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to review submission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var count int
	if err := q.QueryRow("SELECT COUNT(*) FROM pending_members WHERE id = ?", id).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrAlreadyReviewed
}

// Delete removes a submission
func (r *PendingRepository) Delete(id int64) error {
	result, err := r.db.Exec("DELETE FROM pending_members WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns the number of submissions per status
func (r *PendingRepository) CountByStatus() (map[models.ReviewStatus]int, error) {
	rows, err := r.db.Query("SELECT status, COUNT(*) FROM pending_members GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	defer rows.Close()

	counts := map[models.ReviewStatus]int{
		models.StatusPending:  0,
		models.StatusApproved: 0,
		models.StatusRejected: 0,
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[models.ReviewStatus(status)] = count
	}
	return counts, rows.Err()
}

// DeleteReviewedBefore purges reviewed submissions older than cutoff
func (r *PendingRepository) DeleteReviewedBefore(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM pending_members WHERE status <> ? AND reviewed_at < ?", string(models.StatusPending), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge submissions: %w", err)
	}
	return result.RowsAffected()
}
