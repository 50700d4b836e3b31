package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"familytree/internal/apperr"
	"familytree/internal/models"
	"familytree/internal/repository"
)

// SnapshotService saves and restores whole-tree copies
type SnapshotService struct {
	snapshotRepo *repository.SnapshotRepository
	memberRepo   *repository.MemberRepository
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(snapshotRepo *repository.SnapshotRepository, memberRepo *repository.MemberRepository) *SnapshotService {
	return &SnapshotService{snapshotRepo: snapshotRepo, memberRepo: memberRepo}
}

// Create stores a snapshot of every current member
func (s *SnapshotService) Create(name, description, actor string) (*models.Snapshot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Snapshot " + time.Now().UTC().Format("2006-01-02 15:04")
	}

	members, err := s.memberRepo.All()
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(members)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	snap := &models.Snapshot{
		Name:        name,
		Description: strings.TrimSpace(description),
		MemberCount: len(members),
		CreatedBy:   actor,
		Payload:     payload,
	}
	if err := s.snapshotRepo.Create(snap); err != nil {
		return nil, err
	}
	slog.Info("Snapshot created", "snapshot_id", snap.ID, "members", snap.MemberCount, "by", actor)
	return snap, nil
}

// List returns snapshots without their payloads
func (s *SnapshotService) List() ([]models.Snapshot, error) {
	return s.snapshotRepo.List()
}

// Get returns a snapshot including its payload
func (s *SnapshotService) Get(id int64) (*models.Snapshot, error) {
	snap, err := s.snapshotRepo.Get(id)
	if err != nil {
		return nil, notFoundAs(err, ErrSnapshotNotFound)
	}
	return snap, nil
}

// Delete removes a snapshot
func (s *SnapshotService) Delete(id int64) error {
	return notFoundAs(s.snapshotRepo.Delete(id), ErrSnapshotNotFound)
}

// Restore replaces the tree with the members of snapshot id. A safety
// snapshot of the current tree is taken first and returned.
func (s *SnapshotService) Restore(id int64, actor string) (*models.Snapshot, error) {
	snap, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	members, err := snap.Members()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInvalid, "Snapshot data is corrupt", "بيانات النسخة تالفة")
	}

	safety, err := s.Create("Before restore: "+snap.Name, fmt.Sprintf("Automatic copy taken before restoring snapshot %d", snap.ID), actor)
	if err != nil {
		return nil, fmt.Errorf("failed to take safety snapshot: %w", err)
	}

	if err := s.replaceAll(members, fmt.Sprintf("snapshot:%d", snap.ID), actor); err != nil {
		return nil, err
	}
	slog.Info("Snapshot restored", "snapshot_id", snap.ID, "safety_snapshot_id", safety.ID, "by", actor)
	return safety, nil
}

func (s *SnapshotService) replaceAll(members []models.Member, source, actor string) error {
	if err := checkMemberSet(members); err != nil {
		return err
	}
	current, err := s.memberRepo.Count()
	if err != nil {
		return err
	}
	changes := []models.FieldChange{
		{Field: "source", New: source},
		{Field: "memberCount", Old: current, New: len(members)},
	}
	return s.memberRepo.ReplaceAll(members, models.ActionRestore, changes, actor)
}

// checkMemberSet verifies that a member set can be stored as a whole
func checkMemberSet(members []models.Member) error {
	ids := make(map[string]bool, len(members))
	for _, m := range members {
		if _, ok := models.ParseMemberSeq(m.ID); !ok {
			return apperr.New(apperr.CodeInvalid, "Invalid member ID "+m.ID, "رقم عضو غير صحيح "+m.ID)
		}
		if ids[m.ID] {
			return apperr.New(apperr.CodeInvalid, "Duplicate member ID "+m.ID, "رقم عضو مكرر "+m.ID)
		}
		ids[m.ID] = true
	}
	byID := make(map[string]*models.Member, len(members))
	for i := range members {
		m := &members[i]
		if err := m.Validate(); err != nil {
			return err
		}
		if m.ParentID != nil && !ids[*m.ParentID] {
			return apperr.New(apperr.CodeInvalid, "Member "+m.ID+" refers to a missing parent", "العضو "+m.ID+" يشير إلى أب غير موجود")
		}
		byID[m.ID] = m
	}

	// Every parent chain must end at a root
	done := make(map[string]bool, len(members))
	for _, m := range members {
		seen := map[string]bool{}
		for cur := byID[m.ID]; cur != nil && !done[cur.ID]; {
			if seen[cur.ID] {
				return ErrCycle
			}
			seen[cur.ID] = true
			if cur.ParentID == nil {
				break
			}
			cur = byID[*cur.ParentID]
		}
		for id := range seen {
			done[id] = true
		}
	}

	for _, m := range members {
		if m.ParentID != nil && m.Generation != byID[*m.ParentID].Generation+1 {
			return apperr.Wrap(ErrGeneration, apperr.CodeInvalid, "Member "+m.ID+": "+ErrGeneration.Message, "العضو "+m.ID+": "+ErrGeneration.MessageAr)
		}
	}
	return nil
}
