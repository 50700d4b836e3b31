package repository

import (
	"database/sql"
	"fmt"

	"familytree/internal/database"
	"familytree/internal/models"
)

// ImageRepository handles database operations for member photos
type ImageRepository struct {
	db *database.DB
}

// NewImageRepository creates a new image repository
func NewImageRepository(db *database.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

const imageColumns = `id, member_id, storage_key, content_type, size_bytes, caption, status, uploaded_by, reviewed_by, reviewed_at, created_at`

func scanImage(s rowScanner) (*models.Image, error) {
	var (
		img        models.Image
		status     string
		reviewedAt sql.NullTime
	)
	err := s.Scan(&img.ID, &img.MemberID, &img.StorageKey, &img.ContentType, &img.SizeBytes, &img.Caption,
		&status, &img.UploadedBy, &img.ReviewedBy, &reviewedAt, &img.CreatedAt)
	if err != nil {
		return nil, err
	}
	img.Status = models.ReviewStatus(status)
	img.ReviewedAt = timePtr(reviewedAt)
	return &img, nil
}

// Create stores an uploaded image record in pending status
func (r *ImageRepository) Create(img *models.Image) error {
	img.Status = models.StatusPending
	img.CreatedAt = now()
	query := `
		INSERT INTO member_images (member_id, storage_key, content_type, size_bytes, caption, status, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, img.MemberID, img.StorageKey, img.ContentType, img.SizeBytes, img.Caption,
		string(img.Status), img.UploadedBy, img.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	img.ID = id
	return nil
}

// Get retrieves an image by ID
func (r *ImageRepository) Get(id int64) (*models.Image, error) {
	img, err := scanImage(r.db.QueryRow("SELECT "+imageColumns+" FROM member_images WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return img, nil
}

// List returns images newest first, optionally filtered by status and member
func (r *ImageRepository) List(status models.ReviewStatus, memberID string) ([]models.Image, error) {
	var (
		conds []string
		args  []interface{}
	)
	if status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(status))
	}
	if memberID != "" {
		conds = append(conds, "member_id = ?")
		args = append(args, memberID)
	}

	rows, err := r.db.Query("SELECT "+imageColumns+" FROM member_images"+whereClause(conds)+" ORDER BY id DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

// MarkReviewed moves a pending image to status, failing with
// ErrAlreadyReviewed when it was reviewed before
func (r *ImageRepository) MarkReviewed(id int64, status models.ReviewStatus, reviewer string) error {
	return markImageReviewed(r.db, id, status, reviewer)
}

// MarkReviewedHook returns MarkReviewed as a hook for another repository's
// transaction
func (r *ImageRepository) MarkReviewedHook(id int64, status models.ReviewStatus, reviewer string) TxHook {
	return func(tx *database.Tx) error {
		return markImageReviewed(tx, id, status, reviewer)
	}
}

func markImageReviewed(q database.DBTX, id int64, status models.ReviewStatus, reviewer string) error {
	query := `
		UPDATE member_images SET status = ?, reviewed_by = ?, reviewed_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := q.Exec(query, string(status), reviewer, now(), id, string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to review image: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var count int
	if err := q.QueryRow("SELECT COUNT(*) FROM member_images WHERE id = ?", id).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrAlreadyReviewed
}

// Delete removes an image record
func (r *ImageRepository) Delete(id int64) error {
	result, err := r.db.Exec("DELETE FROM member_images WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}
