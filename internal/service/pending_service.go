package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"familytree/internal/database"
	"familytree/internal/models"
	"familytree/internal/repository"
	"familytree/internal/validation"
)

const notifyTimeout = 15 * time.Second

// Notifications delivers review related messages. Implemented by
// notify.Notifier.
type Notifications interface {
	PendingSubmitted(ctx context.Context, p *models.PendingMember) error
	SubmissionApproved(ctx context.Context, p *models.PendingMember, memberID string) error
	SubmissionRejected(ctx context.Context, p *models.PendingMember) error
}

// SubmitRequest is a public proposal for a new member
type SubmitRequest struct {
	Member          models.MemberInput `json:"member"`
	SubmitterName   string             `json:"submitterName"`
	SubmitterPhone  string             `json:"submitterPhone"`
	SubmitterEmail  string             `json:"submitterEmail"`
	BranchLinkToken string             `json:"branchLinkToken"`
}

// PendingService runs the public submission and review workflow
type PendingService struct {
	pendingRepo *repository.PendingRepository
	linkRepo    *repository.BranchLinkRepository
	members     *MemberService
	flags       *FeatureFlagService
	notifier    Notifications
}

// NewPendingService creates a new pending service. notifier may be nil.
func NewPendingService(pendingRepo *repository.PendingRepository, linkRepo *repository.BranchLinkRepository, members *MemberService, flags *FeatureFlagService, notifier Notifications) *PendingService {
	return &PendingService{
		pendingRepo: pendingRepo,
		linkRepo:    linkRepo,
		members:     members,
		flags:       flags,
		notifier:    notifier,
	}
}

// Submit stores a public proposal. A branch link token must belong to a
// usable link; one of its uses is consumed and its branch and anchor
// member pre-fill the proposal.
func (s *PendingService) Submit(ctx context.Context, req SubmitRequest) (*models.PendingMember, error) {
	if err := s.flags.Require(models.FlagPublicSubmissions); err != nil {
		return nil, err
	}

	p := &models.PendingMember{
		SubmitterName:  strings.TrimSpace(req.SubmitterName),
		SubmitterPhone: validation.NormalizePhone(req.SubmitterPhone),
		SubmitterEmail: strings.TrimSpace(req.SubmitterEmail),
	}
	if err := validation.ValidateName(p.SubmitterName); err != nil {
		return nil, invalid(err)
	}
	if err := validation.ValidatePhone(p.SubmitterPhone); err != nil {
		return nil, invalid(err)
	}
	if err := validation.ValidateOptionalEmail(p.SubmitterEmail); err != nil {
		return nil, invalid(err)
	}

	proposed := req.Member
	if token := strings.TrimSpace(req.BranchLinkToken); token != "" {
		if err := s.flags.Require(models.FlagBranchLinks); err != nil {
			return nil, err
		}
		link, err := s.linkRepo.GetByToken(token)
		if err != nil {
			return nil, notFoundAs(err, ErrLinkNotFound)
		}
		if !link.IsUsable(time.Now()) {
			return nil, ErrLinkUnusable
		}
		proposed.Branch = link.Branch
		if proposed.ParentID == nil || strings.TrimSpace(*proposed.ParentID) == "" {
			proposed.ParentID = link.ParentID
		}
		p.BranchLinkToken = &token
	}

	var m models.Member
	proposed.Apply(&m)
	if err := s.members.prepare(&m, ""); err != nil {
		return nil, err
	}
	p.Proposed = m.Input()

	if err := s.pendingRepo.Create(p); err != nil {
		switch {
		case errors.Is(err, repository.ErrLinkExhausted):
			return nil, ErrLinkUnusable
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	slog.Info("Submission received", "pending_id", p.ID, "branch", p.Proposed.Branch, "via_link", p.BranchLinkToken != nil)

	s.notify(ctx, "pending_submitted", func(ctx context.Context) error {
		return s.notifier.PendingSubmitted(ctx, p)
	})
	return p, nil
}

// Get retrieves a submission
func (s *PendingService) Get(id int64) (*models.PendingMember, error) {
	p, err := s.pendingRepo.Get(id)
	if err != nil {
		return nil, notFoundAs(err, ErrPendingNotFound)
	}
	return p, nil
}

// List returns submissions with the given status, or all when empty
func (s *PendingService) List(status models.ReviewStatus, limit, offset int) ([]models.PendingMember, int, error) {
	return s.pendingRepo.List(status, limit, offset)
}

// Counts returns the number of submissions per status
func (s *PendingService) Counts() (map[models.ReviewStatus]int, error) {
	return s.pendingRepo.CountByStatus()
}

// Approve creates the proposed member, or overrides when given, and marks
// the submission approved in the same transaction
func (s *PendingService) Approve(ctx context.Context, id int64, reviewer string, overrides *models.MemberInput) (*models.PendingMember, *models.Member, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != models.StatusPending {
		return nil, nil, ErrAlreadyReviewed
	}

	in := p.Proposed
	if overrides != nil {
		in = *overrides
	}
	m := &models.Member{}
	in.Apply(m)

	mark := s.pendingRepo.MarkReviewedHook(id, models.StatusApproved, reviewer, "", func() *string {
		memberID := m.ID
		return &memberID
	})
	if err := s.members.Insert(m, reviewer, reviewHook(mark)); err != nil {
		return nil, nil, err
	}

	p, err = s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Submission approved", "pending_id", id, "member_id", m.ID, "by", reviewer)

	s.notify(ctx, "submission_approved", func(ctx context.Context) error {
		return s.notifier.SubmissionApproved(ctx, p, m.ID)
	})
	return p, m, nil
}

// Reject declines a submission with an optional note for the submitter
func (s *PendingService) Reject(ctx context.Context, id int64, reviewer, note string) (*models.PendingMember, error) {
	note = strings.TrimSpace(note)
	if err := validation.ValidateNotes(note); err != nil {
		return nil, invalid(err)
	}
	if err := s.pendingRepo.MarkReviewed(id, models.StatusRejected, reviewer, note, nil); err != nil {
		return nil, pendingError(err)
	}

	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	slog.Info("Submission rejected", "pending_id", id, "by", reviewer)

	s.notify(ctx, "submission_rejected", func(ctx context.Context) error {
		return s.notifier.SubmissionRejected(ctx, p)
	})
	return p, nil
}

// Delete removes a submission
func (s *PendingService) Delete(id int64) error {
	return notFoundAs(s.pendingRepo.Delete(id), ErrPendingNotFound)
}

// PurgeReviewed deletes reviewed submissions older than retention
func (s *PendingService) PurgeReviewed(retention time.Duration) (int64, error) {
	return s.pendingRepo.DeleteReviewedBefore(time.Now().Add(-retention))
}

func (s *PendingService) notify(ctx context.Context, what string, send func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := send(ctx); err != nil {
		slog.Warn("Notification failed", "notification", what, "error", err)
	}
}

func pendingError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrPendingNotFound
	case errors.Is(err, repository.ErrAlreadyReviewed):
		return ErrAlreadyReviewed
	}
	return err
}

// reviewHook maps review errors before the member layer sees them
func reviewHook(hook repository.TxHook) repository.TxHook {
	return func(tx *database.Tx) error {
		return pendingError(hook(tx))
	}
}
