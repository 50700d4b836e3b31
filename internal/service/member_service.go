package service

import (
	"errors"
	"fmt"
	"sort"

	"familytree/internal/models"
	"familytree/internal/repository"
	"familytree/internal/validation"
)

// maxAncestry bounds parent walks so corrupt data cannot loop forever
const maxAncestry = 1000

// MemberService handles member business logic
type MemberService struct {
	memberRepo *repository.MemberRepository
}

// NewMemberService creates a new member service
func NewMemberService(memberRepo *repository.MemberRepository) *MemberService {
	return &MemberService{memberRepo: memberRepo}
}

// Get retrieves a member
func (s *MemberService) Get(id string) (*models.Member, error) {
	m, err := s.memberRepo.Get(id)
	if err != nil {
		return nil, memberError(err)
	}
	return m, nil
}

// List returns members matching filter with the total count
func (s *MemberService) List(filter models.MemberFilter) ([]models.Member, int, error) {
	return s.memberRepo.List(filter)
}

// Children returns the direct children of a member
func (s *MemberService) Children(id string) ([]models.Member, error) {
	exists, err := s.memberRepo.Exists(id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrMemberNotFound
	}
	return s.memberRepo.Children(id)
}

// Stats summarizes the tree
func (s *MemberService) Stats() (*models.MemberStats, error) {
	return s.memberRepo.Stats()
}

// Create validates in and stores it as a new member. Hooks run inside the
// insert transaction.
func (s *MemberService) Create(in models.MemberInput, actor string, hooks ...repository.TxHook) (*models.Member, error) {
	m := &models.Member{}
	in.Apply(m)
	if err := s.Insert(m, actor, hooks...); err != nil {
		return nil, err
	}
	return m, nil
}

// Insert validates m and stores it, assigning its ID. Hooks see m.ID.
func (s *MemberService) Insert(m *models.Member, actor string, hooks ...repository.TxHook) error {
	if err := s.prepare(m, ""); err != nil {
		return err
	}
	return memberError(s.memberRepo.Create(m, actor, hooks...))
}

// Update replaces the editable fields of a member. version must equal the
// stored version; a stale version yields ErrVersionConflict and writes
// nothing.
func (s *MemberService) Update(id string, in models.MemberInput, version int, actor string) (*models.Member, error) {
	return s.Modify(id, version, models.ActionUpdate, actor, func(m *models.Member) error {
		in.Apply(m)
		return nil
	})
}

// Modify applies mutate to a copy of the stored member and writes the
// result through the optimistic update path, recording the field diff under
// action. An unchanged member is returned as is.
func (s *MemberService) Modify(id string, version int, action models.HistoryAction, actor string, mutate func(*models.Member) error, hooks ...repository.TxHook) (*models.Member, error) {
	current, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if current.Version != version {
		return nil, ErrVersionConflict
	}

	updated := *current
	if err := mutate(&updated); err != nil {
		return nil, err
	}
	if err := s.prepare(&updated, id); err != nil {
		return nil, err
	}

	changes := Diff(current, &updated)
	if len(changes) == 0 && len(hooks) == 0 {
		return current, nil
	}

	// Re-checked inside the transaction so concurrent moves cannot interleave
	var guards []repository.TxHook
	if updated.Generation != current.Generation {
		guards = append(guards, repository.RequireChildless(id))
	}
	if updated.ParentID != nil && !sameParent(current.ParentID, updated.ParentID) {
		guards = append(guards, repository.RequireNotAncestor(id, *updated.ParentID))
	}

	err = s.memberRepo.Update(&updated, version, action, changes, actor, append(guards, hooks...)...)
	if errors.Is(err, repository.ErrHasChildren) {
		return nil, ErrGenerationLocked
	}
	if err != nil {
		return nil, memberError(err)
	}
	return &updated, nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Delete removes a childless member
func (s *MemberService) Delete(id string, version int, actor string) error {
	return memberError(s.memberRepo.Delete(id, version, actor))
}

// prepare normalizes m and checks it against the rest of the tree. selfID is
// empty for new members.
func (s *MemberService) prepare(m *models.Member, selfID string) error {
	m.Phone = validation.NormalizePhone(m.Phone)
	if err := validation.ValidatePhone(m.Phone); err != nil {
		return invalid(err)
	}
	if err := validation.ValidateOptionalEmail(m.Email); err != nil {
		return invalid(err)
	}
	if err := validation.ValidateNotes(m.Notes); err != nil {
		return invalid(err)
	}

	if m.ParentID == nil {
		if m.Generation == 0 {
			m.Generation = 1
		}
		return m.Validate()
	}

	if selfID != "" && *m.ParentID == selfID {
		return ErrCycle
	}
	parent, err := s.memberRepo.Get(*m.ParentID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrParentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load parent: %w", err)
	}

	switch m.Generation {
	case 0:
		m.Generation = parent.Generation + 1
	case parent.Generation + 1:
	default:
		return ErrGeneration
	}
	if m.Branch == "" {
		m.Branch = parent.Branch
	}
	if err := m.Validate(); err != nil {
		return err
	}

	if selfID != "" {
		ancestors, err := s.ancestors(parent)
		if err != nil {
			return err
		}
		for _, a := range ancestors {
			if a.ID == selfID {
				return ErrCycle
			}
		}
	}
	return nil
}

// Ancestors returns the parent chain of a member, nearest first
func (s *MemberService) Ancestors(id string) ([]models.Member, error) {
	m, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	chain, err := s.ancestors(m)
	if err != nil {
		return nil, err
	}
	return chain[1:], nil
}

// ancestors returns m followed by its parent chain
func (s *MemberService) ancestors(m *models.Member) ([]models.Member, error) {
	chain := []models.Member{*m}
	seen := map[string]bool{m.ID: true}
	for current := m; current.ParentID != nil; {
		if len(chain) > maxAncestry {
			return nil, ErrCycle
		}
		parent, err := s.memberRepo.Get(*current.ParentID)
		if errors.Is(err, repository.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load ancestor: %w", err)
		}
		if seen[parent.ID] {
			return nil, ErrCycle
		}
		seen[parent.ID] = true
		chain = append(chain, *parent)
		current = parent
	}
	return chain, nil
}

// Tree builds the descendant tree under rootID, or the whole forest when
// rootID is empty. depth limits the number of levels below the roots;
// zero means unlimited.
func (s *MemberService) Tree(rootID string, depth int) ([]*models.TreeNode, error) {
	all, err := s.memberRepo.All()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Member, len(all))
	children := make(map[string][]*models.Member)
	var roots []*models.Member
	for i := range all {
		m := &all[i]
		byID[m.ID] = m
	}
	for i := range all {
		m := &all[i]
		if m.ParentID == nil || byID[*m.ParentID] == nil {
			roots = append(roots, m)
			continue
		}
		children[*m.ParentID] = append(children[*m.ParentID], m)
	}

	if rootID != "" {
		root, ok := byID[rootID]
		if !ok {
			return nil, ErrMemberNotFound
		}
		roots = []*models.Member{root}
	}

	var build func(m *models.Member, level int, seen map[string]bool) *models.TreeNode
	build = func(m *models.Member, level int, seen map[string]bool) *models.TreeNode {
		node := &models.TreeNode{Member: m, Children: []*models.TreeNode{}}
		if seen[m.ID] || (depth > 0 && level >= depth) {
			return node
		}
		seen[m.ID] = true
		kids := children[m.ID]
		sort.Slice(kids, func(i, j int) bool { return kids[i].ID < kids[j].ID })
		for _, child := range kids {
			node.Children = append(node.Children, build(child, level+1, seen))
		}
		return node
	}

	seen := make(map[string]bool)
	forest := make([]*models.TreeNode, 0, len(roots))
	for _, root := range roots {
		forest = append(forest, build(root, 0, seen))
	}
	return forest, nil
}

// Diff lists the editable fields whose values differ between before and
// after, in display order
func Diff(before, after *models.Member) []models.FieldChange {
	var changes []models.FieldChange
	for _, field := range models.EditableFields {
		oldValue, _ := before.FieldValue(field)
		newValue, _ := after.FieldValue(field)
		if oldValue != newValue {
			changes = append(changes, models.FieldChange{Field: field, Old: oldValue, New: newValue})
		}
	}
	return changes
}
