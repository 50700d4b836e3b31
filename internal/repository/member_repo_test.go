package repository

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"familytree/internal/database"
	"familytree/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newMember(first string, generation int, parent *string) *models.Member {
	return &models.Member{
		FirstName:  first,
		Gender:     models.GenderMale,
		Generation: generation,
		Branch:     "north",
		ParentID:   parent,
		LifeStatus: models.LifeStatusLiving,
	}
}

func TestMemberCreateAllocatesSequentialIDs(t *testing.T) {
	repo := NewMemberRepository(newTestDB(t))

	for i, want := range []string{"M00001", "M00002", "M00003"} {
		m := newMember("Member", 1, nil)
		if err := repo.Create(m, "tester"); err != nil {
			t.Fatalf("Create #%d failed: %v", i, err)
		}
		if m.ID != want {
			t.Errorf("Create #%d id = %s, want %s", i, m.ID, want)
		}
		if m.Version != 1 {
			t.Errorf("new member version = %d, want 1", m.Version)
		}
	}

	got, err := repo.Get("M00002")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CreatedBy != "tester" || got.Version != 1 {
		t.Errorf("unexpected stored member: %+v", got)
	}
}

func TestMemberCreateWritesHistory(t *testing.T) {
	db := newTestDB(t)
	repo := NewMemberRepository(db)
	history := NewHistoryRepository(db)

	m := newMember("Ali", 1, nil)
	if err := repo.Create(m, "tester"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	entries, total, err := history.List(models.HistoryFilter{MemberID: m.ID})
	if err != nil {
		t.Fatalf("List history failed: %v", err)
	}
	if total != 1 || entries[0].Action != models.ActionCreate || entries[0].Actor != "tester" {
		t.Fatalf("unexpected history: total=%d entries=%+v", total, entries)
	}
	found := false
	for _, c := range entries[0].Changes {
		if c.Field == "firstName" && c.New == "Ali" {
			found = true
		}
	}
	if !found {
		t.Errorf("create history should include firstName, got %+v", entries[0].Changes)
	}
}

func TestMemberCreateRetriesOnCollision(t *testing.T) {
	repo := NewMemberRepository(newTestDB(t))
	if err := repo.Create(newMember("First", 1, nil), "tester"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	calls := 0
	repo.nextSeq = func(q database.DBTX) (int64, error) {
		calls++
		if calls < 3 {
			return 1, nil
		}
		return maxSeqPlusOne(q)
	}

	m := newMember("Second", 1, nil)
	if err := repo.Create(m, "tester"); err != nil {
		t.Fatalf("Create should succeed after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 allocation attempts, got %d", calls)
	}
	if m.ID != "M00002" {
		t.Errorf("id = %s, want M00002", m.ID)
	}
}

func TestMemberCreateGivesUpAfterMaxAttempts(t *testing.T) {
	repo := NewMemberRepository(newTestDB(t))
	if err := repo.Create(newMember("First", 1, nil), "tester"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	calls := 0
	repo.nextSeq = func(q database.DBTX) (int64, error) {
		calls++
		return 1, nil
	}

	m := newMember("Second", 1, nil)
	err := repo.Create(m, "tester")
	if !errors.Is(err, ErrIDAllocationFailed) {
		t.Fatalf("expected ErrIDAllocationFailed, got %v", err)
	}
	if calls != MaxIDAttempts {
		t.Errorf("attempts = %d, want %d", calls, MaxIDAttempts)
	}
	if count, _ := repo.Count(); count != 1 {
		t.Errorf("member count = %d, want 1", count)
	}
}

func TestMemberCreateConcurrent(t *testing.T) {
	repo := NewMemberRepository(newTestDB(t))

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Create(newMember("Racer", 1, nil), "tester")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent create failed: %v", err)
		}
	}
	all, err := repo.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	seen := map[string]bool{}
	for _, m := range all {
		if seen[m.ID] {
			t.Errorf("duplicate id %s", m.ID)
		}
		seen[m.ID] = true
	}
	if len(all) != n {
		t.Errorf("got %d members, want %d", len(all), n)
	}
}

func TestMemberCreateHookFailureRollsBack(t *testing.T) {
	repo := NewMemberRepository(newTestDB(t))

	sentinel := errors.New("hook failed")
	err := repo.Create(newMember("Ghost", 1, nil), "tester", func(tx *database.Tx) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if count, _ := repo.Count(); count != 0 {
		t.Errorf("member should not be stored when a hook fails, count = %d", count)
	}
}

func TestMemberUpdateOptimisticLocking(t *testing.T) {
	repo := NewMemberRepository(newTestDB(t))
	m := newMember("Ali", 1, nil)
	if err := repo.Create(m, "tester"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	m.City = "Riyadh"
	changes := []models.FieldChange{{Field: "city", Old: "", New: "Riyadh"}}
	if err := repo.Update(m, 1, models.ActionUpdate, changes, "editor"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if m.Version != 2 {
		t.Errorf("version after update = %d, want 2", m.Version)
	}

	stale := *m
	stale.City = "Jeddah"
	err := repo.Update(&stale, 1, models.ActionUpdate, nil, "editor")
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale update error = %v, want ErrVersionConflict", err)
	}

	got, _ := repo.Get(m.ID)
	if got.City != "Riyadh" || got.Version != 2 || got.UpdatedBy != "editor" {
		t.Errorf("stored member after conflict: city=%s version=%d by=%s", got.City, got.Version, got.UpdatedBy)
	}

	missing := newMember("Nobody", 1, nil)
	missing.ID = "M09999"
	if err := repo.Update(missing, 1, models.ActionUpdate, nil, "editor"); !errors.Is(err, ErrNotFound) {
		t.Errorf("update of missing member = %v, want ErrNotFound", err)
	}
}

func TestMemberUpdateAncestryGuard(t *testing.T) {
	repo := NewMemberRepository(newTestDB(t))
	a := newMember("Abdullah", 1, nil)
	b := newMember("Badr", 1, nil)
	for _, m := range []*models.Member{a, b} {
		if err := repo.Create(m, "tester"); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	// a moves under b first
	a.ParentID, a.Generation = &b.ID, 2
	if err := repo.Update(a, 1, models.ActionUpdate, nil, "editor", RequireNotAncestor(a.ID, b.ID)); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// a writer that checked before that move tries to put b under a
	stale := *b
	stale.ParentID, stale.Generation = &a.ID, 3
	err := repo.Update(&stale, 1, models.ActionUpdate, nil, "editor", RequireNotAncestor(b.ID, a.ID))
	if !errors.Is(err, ErrAncestorCycle) {
		t.Fatalf("cyclic update error = %v, want ErrAncestorCycle", err)
	}

	got, _ := repo.Get(b.ID)
	if got.ParentID != nil || got.Generation != 1 || got.Version != 1 {
		t.Errorf("b after rejected move: parent=%v generation=%d version=%d", got.ParentID, got.Generation, got.Version)
	}
}

func TestMemberUpdateChildlessGuard(t *testing.T) {
	repo := NewMemberRepository(newTestDB(t))
	parent := newMember("Fahad", 1, nil)
	if err := repo.Create(parent, "tester"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	lone := newMember("Nasser", 1, nil)
	if err := repo.Create(lone, "tester"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(newMember("Khalid", 2, &parent.ID), "tester"); err != nil {
		t.Fatalf("Create child failed: %v", err)
	}

	parent.City = "Hail"
	if err := repo.Update(parent, 1, models.ActionUpdate, nil, "editor", RequireChildless(parent.ID)); !errors.Is(err, ErrHasChildren) {
		t.Fatalf("update with children = %v, want ErrHasChildren", err)
	}
	if got, _ := repo.Get(parent.ID); got.City != "" || got.Version != 1 {
		t.Errorf("parent was written: city=%q version=%d", got.City, got.Version)
	}

	lone.City = "Hail"
	if err := repo.Update(lone, 1, models.ActionUpdate, nil, "editor", RequireChildless(lone.ID)); err != nil {
		t.Errorf("childless update failed: %v", err)
	}
}

func TestMemberUpdateConflictWritesNoHistory(t *testing.T) {
	db := newTestDB(t)
	repo := NewMemberRepository(db)
	history := NewHistoryRepository(db)

	m := newMember("Ali", 1, nil)
	if err := repo.Create(m, "tester"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_ = repo.Update(m, 7, models.ActionUpdate, []models.FieldChange{{Field: "city", New: "X"}}, "editor")

	_, total, err := history.List(models.HistoryFilter{MemberID: m.ID})
	if err != nil {
		t.Fatalf("List history failed: %v", err)
	}
	if total != 1 {
		t.Errorf("history rows = %d, want only the create row", total)
	}
}

func TestMemberDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewMemberRepository(db)

	parent := newMember("Parent", 1, nil)
	if err := repo.Create(parent, "tester"); err != nil {
		t.Fatalf("Create parent failed: %v", err)
	}
	pid := parent.ID
	child := newMember("Child", 2, &pid)
	if err := repo.Create(child, "tester"); err != nil {
		t.Fatalf("Create child failed: %v", err)
	}

	if err := repo.Delete(parent.ID, 1, "admin"); !errors.Is(err, ErrHasChildren) {
		t.Fatalf("delete parent = %v, want ErrHasChildren", err)
	}
	if err := repo.Delete(child.ID, 3, "admin"); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("delete with wrong version = %v, want ErrVersionConflict", err)
	}
	if err := repo.Delete(child.ID, 1, "admin"); err != nil {
		t.Fatalf("delete child failed: %v", err)
	}
	if _, err := repo.Get(child.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted member still readable: %v", err)
	}
	if err := repo.Delete("M09999", 1, "admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete missing = %v, want ErrNotFound", err)
	}

	entries, _, err := NewHistoryRepository(db).List(models.HistoryFilter{MemberID: child.ID, Action: models.ActionDelete})
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one delete history row, got %v %v", entries, err)
	}
}

func TestMemberListFilters(t *testing.T) {
	repo := NewMemberRepository(newTestDB(t))

	root := newMember("Saleh", 1, nil)
	root.FamilyName = "Alhamad"
	if err := repo.Create(root, "t"); err != nil {
		t.Fatal(err)
	}
	rid := root.ID
	for _, name := range []string{"Ahmad", "Khalid", "Fatimah"} {
		m := newMember(name, 2, &rid)
		if name == "Fatimah" {
			m.Gender = models.GenderFemale
			m.Branch = "south"
		}
		if err := repo.Create(m, "t"); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter models.MemberFilter
		want   int
	}{
		{name: "all", filter: models.MemberFilter{}, want: 4},
		{name: "generation", filter: models.MemberFilter{Generation: 2}, want: 3},
		{name: "branch", filter: models.MemberFilter{Branch: "south"}, want: 1},
		{name: "parent", filter: models.MemberFilter{ParentID: rid}, want: 3},
		{name: "search case-insensitive", filter: models.MemberFilter{Search: "KHAL"}, want: 1},
		{name: "search family name", filter: models.MemberFilter{Search: "alhamad"}, want: 1},
		{name: "search by id", filter: models.MemberFilter{Search: "m00001"}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := repo.List(tt.filter)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if total != tt.want {
				t.Errorf("total = %d, want %d", total, tt.want)
			}
		})
	}

	page, total, err := repo.List(models.MemberFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 || len(page) != 2 || page[0].ID != "M00002" {
		t.Errorf("paging: total=%d len=%d first=%v", total, len(page), page)
	}

	children, err := repo.Children(rid)
	if err != nil || len(children) != 3 {
		t.Errorf("Children = %d, %v", len(children), err)
	}
}

func TestMemberStats(t *testing.T) {
	repo := NewMemberRepository(newTestDB(t))

	a := newMember("A", 1, nil)
	b := newMember("B", 1, nil)
	b.Gender = models.GenderFemale
	b.LifeStatus = models.LifeStatusDeceased
	for _, m := range []*models.Member{a, b} {
		if err := repo.Create(m, "t"); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 2 || stats.Living != 1 || stats.Deceased != 1 {
		t.Errorf("unexpected totals: %+v", stats)
	}
	if stats.ByGender["female"] != 1 || stats.ByGeneration[1] != 2 || stats.ByBranch["north"] != 2 {
		t.Errorf("unexpected breakdown: %+v", stats)
	}
}

func TestMemberReplaceAll(t *testing.T) {
	db := newTestDB(t)
	repo := NewMemberRepository(db)

	root := newMember("Root", 1, nil)
	if err := repo.Create(root, "t"); err != nil {
		t.Fatal(err)
	}
	rid := root.ID
	child := newMember("Child", 2, &rid)
	if err := repo.Create(child, "t"); err != nil {
		t.Fatal(err)
	}
	snapshot, err := repo.All()
	if err != nil {
		t.Fatal(err)
	}

	// Diverge: bump the root twice and add a third member
	for v := 1; v <= 2; v++ {
		root.City = "City"
		if err := repo.Update(root, v, models.ActionUpdate, nil, "t"); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.Create(newMember("Extra", 1, nil), "t"); err != nil {
		t.Fatal(err)
	}

	// Children are listed after their parents, so restore the child first to
	// prove insertion order does not matter
	reordered := []models.Member{snapshot[1], snapshot[0]}
	if err := repo.ReplaceAll(reordered, models.ActionRestore, nil, "admin"); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	all, err := repo.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("members after restore = %d, want 2", len(all))
	}
	if all[0].Version != 4 {
		t.Errorf("root version = %d, want 4 (stored 3 + 1)", all[0].Version)
	}
	if all[1].ParentID == nil || *all[1].ParentID != rid {
		t.Errorf("child parent not restored: %v", all[1].ParentID)
	}

	// New members continue after the restored sequence
	next := newMember("After", 1, nil)
	if err := repo.Create(next, "t"); err != nil {
		t.Fatal(err)
	}
	if next.ID != "M00003" {
		t.Errorf("id after restore = %s, want M00003", next.ID)
	}

	entries, _, _ := NewHistoryRepository(db).List(models.HistoryFilter{Action: models.ActionRestore})
	if len(entries) != 1 || entries[0].MemberID != nil {
		t.Errorf("expected one tree-wide restore entry, got %+v", entries)
	}
}

func TestMemberReplaceAllIsAtomic(t *testing.T) {
	repo := NewMemberRepository(newTestDB(t))
	if err := repo.Create(newMember("Keep", 1, nil), "t"); err != nil {
		t.Fatal(err)
	}

	dangling := "M00077"
	bad := []models.Member{
		{ID: "M00001", FirstName: "A", Gender: models.GenderMale, Generation: 1, LifeStatus: models.LifeStatusLiving, Version: 1},
		{ID: "M00002", FirstName: "B", Gender: models.GenderMale, Generation: 2, LifeStatus: models.LifeStatusLiving, Version: 1, ParentID: &dangling},
	}
	if err := repo.ReplaceAll(bad, models.ActionRestore, nil, "admin"); err == nil {
		t.Fatal("expected restore with dangling parent to fail")
	}

	got, err := repo.Get("M00001")
	if err != nil {
		t.Fatalf("original member lost: %v", err)
	}
	if got.FirstName != "Keep" {
		t.Errorf("partial restore visible: %+v", got)
	}
}
