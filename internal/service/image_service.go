package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"familytree/internal/apperr"
	"familytree/internal/database"
	"familytree/internal/models"
	"familytree/internal/repository"
	"familytree/internal/storage"
)

// allowedImageTypes maps accepted content types to stored file extensions
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// photoUpdateAttempts bounds retries when the member changes while an
// image approval is writing its photo URL
const photoUpdateAttempts = 3

// ImageService handles member photo uploads and their review
type ImageService struct {
	imageRepo *repository.ImageRepository
	members   *MemberService
	flags     *FeatureFlagService
	store     storage.BlobStore
	maxSize   int64
}

// NewImageService creates a new image service
func NewImageService(imageRepo *repository.ImageRepository, members *MemberService, flags *FeatureFlagService, store storage.BlobStore, maxSize int64) *ImageService {
	return &ImageService{
		imageRepo: imageRepo,
		members:   members,
		flags:     flags,
		store:     store,
		maxSize:   maxSize,
	}
}

// PhotoURL is the API path that serves an approved image
func PhotoURL(imageID int64) string {
	return fmt.Sprintf("/api/images/%d", imageID)
}

func pendingBlobKey(img *models.Image) string {
	return "pending/" + img.StorageKey
}

func approvedBlobKey(img *models.Image) string {
	return "approved/" + img.StorageKey
}

// Upload stores a photo for memberID in the pending area. The content type
// is sniffed from the data; declared types are not trusted.
func (s *ImageService) Upload(ctx context.Context, memberID, caption string, r io.Reader, uploader string) (*models.Image, error) {
	if err := s.flags.Require(models.FlagImageUploads); err != nil {
		return nil, err
	}
	if _, err := s.members.Get(memberID); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, apperr.New(apperr.CodeInvalid, "Image is empty", "الصورة فارغة")
	}

	contentType := http.DetectContentType(data)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, ErrImageType
	}

	img := &models.Image{
		MemberID:    memberID,
		StorageKey:  uuid.NewString() + ext,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		Caption:     strings.TrimSpace(caption),
		UploadedBy:  uploader,
	}
	if err := s.store.Put(ctx, pendingBlobKey(img), contentType, bytes.NewReader(data), img.SizeBytes); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}
	if err := s.imageRepo.Create(img); err != nil {
		if delErr := s.store.Delete(ctx, pendingBlobKey(img)); delErr != nil {
			slog.Error("Failed to remove orphaned upload", "key", img.StorageKey, "error", delErr)
		}
		return nil, err
	}

	slog.Info("Image uploaded", "image_id", img.ID, "member_id", memberID, "size", img.SizeBytes)
	return img, nil
}

// Get retrieves an image record
func (s *ImageService) Get(id int64) (*models.Image, error) {
	img, err := s.imageRepo.Get(id)
	if err != nil {
		return nil, notFoundAs(err, ErrImageNotFound)
	}
	return img, nil
}

// List returns images, optionally filtered by status and member
func (s *ImageService) List(status models.ReviewStatus, memberID string) ([]models.Image, error) {
	return s.imageRepo.List(status, memberID)
}

// Approve publishes a pending image and makes it the member's photo
func (s *ImageService) Approve(ctx context.Context, id int64, reviewer string) (*models.Image, *models.Member, error) {
	img, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if img.Status != models.StatusPending {
		return nil, nil, ErrImageReviewed
	}

	if err := s.store.Move(ctx, pendingBlobKey(img), approvedBlobKey(img)); err != nil {
		return nil, nil, fmt.Errorf("failed to publish image: %w", err)
	}

	member, err := s.setPhoto(img, reviewer)
	if err != nil {
		if mvErr := s.store.Move(ctx, approvedBlobKey(img), pendingBlobKey(img)); mvErr != nil {
			slog.Error("Failed to return image to pending area", "image_id", id, "error", mvErr)
		}
		return nil, nil, err
	}

	img, err = s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Image approved", "image_id", id, "member_id", member.ID, "by", reviewer)
	return img, member, nil
}

func (s *ImageService) setPhoto(img *models.Image, reviewer string) (*models.Member, error) {
	mark := s.imageRepo.MarkReviewedHook(img.ID, models.StatusApproved, reviewer)
	hook := func(tx *database.Tx) error {
		return imageError(mark(tx))
	}

	var lastErr error
	for attempt := 0; attempt < photoUpdateAttempts; attempt++ {
		current, err := s.members.Get(img.MemberID)
		if err != nil {
			return nil, err
		}
		member, err := s.members.Modify(current.ID, current.Version, models.ActionUpdate, reviewer, func(m *models.Member) error {
			m.PhotoURL = PhotoURL(img.ID)
			return nil
		}, hook)
		if !errors.Is(err, ErrVersionConflict) {
			return member, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// Reject declines a pending image and removes its blob
func (s *ImageService) Reject(ctx context.Context, id int64, reviewer string) (*models.Image, error) {
	img, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.imageRepo.MarkReviewed(id, models.StatusRejected, reviewer); err != nil {
		return nil, imageError(err)
	}
	if err := s.store.Delete(ctx, pendingBlobKey(img)); err != nil {
		slog.Error("Failed to delete rejected image blob", "image_id", id, "error", err)
	}
	slog.Info("Image rejected", "image_id", id, "by", reviewer)
	return s.Get(id)
}

// Open streams an image. Callers without admin access only see approved
// images.
func (s *ImageService) Open(ctx context.Context, id int64, admin bool) (io.ReadCloser, *models.Image, error) {
	img, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if !admin && !img.IsPublic() {
		return nil, nil, ErrImageNotFound
	}

	var key string
	switch img.Status {
	case models.StatusApproved:
		key = approvedBlobKey(img)
	case models.StatusPending:
		key = pendingBlobKey(img)
	default:
		return nil, nil, ErrImageNotFound
	}

	rc, err := s.store.Get(ctx, key)
	if errors.Is(err, storage.ErrBlobNotFound) {
		return nil, nil, ErrImageNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open image: %w", err)
	}
	return rc, img, nil
}

// Delete removes an image record and its blob. A member photo pointing at
// the image is cleared.
func (s *ImageService) Delete(ctx context.Context, id int64, actor string) error {
	img, err := s.Get(id)
	if err != nil {
		return err
	}

	if img.Status == models.StatusApproved {
		member, err := s.members.Get(img.MemberID)
		if err == nil && member.PhotoURL == PhotoURL(id) {
			if _, err := s.members.Modify(member.ID, member.Version, models.ActionUpdate, actor, func(m *models.Member) error {
				m.PhotoURL = ""
				return nil
			}); err != nil {
				return err
			}
		}
	}

	if err := s.imageRepo.Delete(id); err != nil {
		return notFoundAs(err, ErrImageNotFound)
	}

	key := pendingBlobKey(img)
	if img.Status == models.StatusApproved {
		key = approvedBlobKey(img)
	}
	if err := s.store.Delete(ctx, key); err != nil {
		slog.Error("Failed to delete image blob", "image_id", id, "error", err)
	}
	return nil
}

func imageError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrImageNotFound
	case errors.Is(err, repository.ErrAlreadyReviewed):
		return ErrImageReviewed
	}
	return err
}
