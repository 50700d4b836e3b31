package service

import (
	"fmt"

	"familytree/internal/apperr"
	"familytree/internal/models"
	"familytree/internal/repository"
)

// HistoryService reads the change log and reverts individual updates
type HistoryService struct {
	historyRepo *repository.HistoryRepository
	members     *MemberService
}

// NewHistoryService creates a new history service
func NewHistoryService(historyRepo *repository.HistoryRepository, members *MemberService) *HistoryService {
	return &HistoryService{historyRepo: historyRepo, members: members}
}

// List returns history entries newest first
func (s *HistoryService) List(filter models.HistoryFilter) ([]models.HistoryEntry, int, error) {
	return s.historyRepo.List(filter)
}

// Get retrieves a single history entry
func (s *HistoryService) Get(id int64) (*models.HistoryEntry, error) {
	entry, err := s.historyRepo.Get(id)
	if err != nil {
		return nil, notFoundAs(err, ErrHistoryNotFound)
	}
	return entry, nil
}

// Revert writes the old values of an update entry back onto the member.
// version is the member version the caller last saw.
func (s *HistoryService) Revert(entryID int64, version int, actor string) (*models.Member, error) {
	entry, err := s.Get(entryID)
	if err != nil {
		return nil, err
	}
	if (entry.Action != models.ActionUpdate && entry.Action != models.ActionRevert) || entry.MemberID == nil {
		return nil, ErrNotRevertible
	}

	return s.members.Modify(*entry.MemberID, version, models.ActionRevert, actor, func(m *models.Member) error {
		for _, change := range entry.Changes {
			if err := m.SetField(change.Field, change.Old); err != nil {
				return apperr.Wrap(fmt.Errorf("history %d: %w", entry.ID, err), apperr.CodeInvalid,
					"History entry cannot be applied", "لا يمكن تطبيق سجل التعديل")
			}
		}
		return nil
	})
}
