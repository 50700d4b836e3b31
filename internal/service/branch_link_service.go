package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"familytree/internal/apperr"
	"familytree/internal/credentials"
	"familytree/internal/models"
	"familytree/internal/repository"
)

// BranchLinkInput describes a new invitation link
type BranchLinkInput struct {
	Branch    string     `json:"branch"`
	Label     string     `json:"label"`
	ParentID  *string    `json:"parentId"`
	MaxUses   int        `json:"maxUses"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// BranchLinkService manages invitation links into a branch of the tree
type BranchLinkService struct {
	linkRepo *repository.BranchLinkRepository
	members  *MemberService
	flags    *FeatureFlagService
}

// NewBranchLinkService creates a new branch link service
func NewBranchLinkService(linkRepo *repository.BranchLinkRepository, members *MemberService, flags *FeatureFlagService) *BranchLinkService {
	return &BranchLinkService{linkRepo: linkRepo, members: members, flags: flags}
}

// Create issues a new link with a random token
func (s *BranchLinkService) Create(in BranchLinkInput, actor string) (*models.BranchLink, error) {
	link := &models.BranchLink{
		Branch:    strings.TrimSpace(in.Branch),
		Label:     strings.TrimSpace(in.Label),
		MaxUses:   in.MaxUses,
		ExpiresAt: in.ExpiresAt,
		CreatedBy: actor,
	}

	if in.ParentID != nil && strings.TrimSpace(*in.ParentID) != "" {
		parentID := strings.TrimSpace(*in.ParentID)
		parent, err := s.members.Get(parentID)
		if errors.Is(err, ErrMemberNotFound) {
			return nil, ErrParentNotFound
		}
		if err != nil {
			return nil, err
		}
		link.ParentID = &parentID
		if link.Branch == "" {
			link.Branch = parent.Branch
		}
	}

	if link.Branch == "" {
		return nil, apperr.New(apperr.CodeInvalid, "Branch is required", "الفرع مطلوب")
	}
	if link.MaxUses < 0 {
		return nil, apperr.New(apperr.CodeInvalid, "Maximum uses cannot be negative", "الحد الأقصى للاستخدام لا يمكن أن يكون سالباً")
	}
	if link.ExpiresAt != nil {
		if !link.ExpiresAt.After(time.Now()) {
			return nil, apperr.New(apperr.CodeInvalid, "Expiry must be in the future", "تاريخ الانتهاء يجب أن يكون في المستقبل")
		}
		expires := link.ExpiresAt.UTC()
		link.ExpiresAt = &expires
	}

	token, err := credentials.GenerateLinkToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate link token: %w", err)
	}
	link.Token = token

	if err := s.linkRepo.Create(link); err != nil {
		return nil, err
	}
	slog.Info("Branch link created", "id", link.ID, "branch", link.Branch, "by", actor)
	return link, nil
}

// Resolve returns what a visitor holding token may see about its link
func (s *BranchLinkService) Resolve(token string) (*models.BranchLinkInfo, error) {
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

	info := &models.BranchLinkInfo{
		Branch:    link.Branch,
		Label:     link.Label,
		ParentID:  link.ParentID,
		ExpiresAt: link.ExpiresAt,
	}
	if link.ParentID != nil {
		if parent, err := s.members.Get(*link.ParentID); err == nil {
			info.ParentName = parent.FullName()
		}
	}
	return info, nil
}

// List returns all links newest first
func (s *BranchLinkService) List() ([]models.BranchLink, error) {
	return s.linkRepo.List()
}

// Deactivate stops a link from accepting submissions
func (s *BranchLinkService) Deactivate(id int64, actor string) (*models.BranchLink, error) {
	if err := s.linkRepo.SetActive(id, false); err != nil {
		return nil, notFoundAs(err, ErrLinkNotFound)
	}
	slog.Info("Branch link deactivated", "id", id, "by", actor)
	link, err := s.linkRepo.Get(id)
	if err != nil {
		return nil, notFoundAs(err, ErrLinkNotFound)
	}
	return link, nil
}

// Delete removes a link
func (s *BranchLinkService) Delete(id int64) error {
	return notFoundAs(s.linkRepo.Delete(id), ErrLinkNotFound)
}
