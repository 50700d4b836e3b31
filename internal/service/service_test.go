package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"familytree/internal/apperr"
	"familytree/internal/database"
	"familytree/internal/models"
	"familytree/internal/repository"
	"familytree/internal/security"
	"familytree/internal/storage"
)

type fixture struct {
	db        *database.DB
	members   *MemberService
	history   *HistoryService
	flags     *FeatureFlagService
	links     *BranchLinkService
	pending   *PendingService
	images    *ImageService
	snapshots *SnapshotService
	backup    *BackupService
	auth      *AuthService
	notifier  *recordingNotifier
	store     storage.BlobStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "images"))
	if err != nil {
		t.Fatalf("Failed to create blob store: %v", err)
	}

	memberRepo := repository.NewMemberRepository(db)
	linkRepo := repository.NewBranchLinkRepository(db)

	f := &fixture{db: db, store: store, notifier: &recordingNotifier{}}
	f.members = NewMemberService(memberRepo)
	f.history = NewHistoryService(repository.NewHistoryRepository(db), f.members)
	f.flags = NewFeatureFlagService(repository.NewFeatureFlagRepository(db))
	f.links = NewBranchLinkService(linkRepo, f.members, f.flags)
	f.pending = NewPendingService(repository.NewPendingRepository(db), linkRepo, f.members, f.flags, f.notifier)
	f.images = NewImageService(repository.NewImageRepository(db), f.members, f.flags, store, 1024)
	f.snapshots = NewSnapshotService(repository.NewSnapshotRepository(db), memberRepo)
	f.backup = NewBackupService(memberRepo, f.snapshots, f.flags)
	f.auth = NewAuthService(repository.NewAdminRepository(db), security.NewTokenManager("test-secret", time.Hour))
	return f
}

func (f *fixture) create(t *testing.T, first string, parent *models.Member) *models.Member {
	t.Helper()
	in := models.MemberInput{FirstName: first, Gender: models.GenderMale, Branch: "north"}
	if parent != nil {
		in.ParentID = &parent.ID
		in.Branch = ""
	}
	m, err := f.members.Create(in, "tester")
	if err != nil {
		t.Fatalf("Create(%s) failed: %v", first, err)
	}
	return m
}

func assertCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperr.IsCode(err, code) {
		t.Fatalf("error = %v, want code %s", err, code)
	}
}

func assertErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}
}

type recordingNotifier struct {
	mu        sync.Mutex
	submitted []int64
	approved  map[int64]string
	rejected  []int64
}

func (r *recordingNotifier) PendingSubmitted(ctx context.Context, p *models.PendingMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, p.ID)
	return nil
}

func (r *recordingNotifier) SubmissionApproved(ctx context.Context, p *models.PendingMember, memberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.approved == nil {
		r.approved = map[int64]string{}
	}
	r.approved[p.ID] = memberID
	return nil
}

func (r *recordingNotifier) SubmissionRejected(ctx context.Context, p *models.PendingMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, p.ID)
	return errors.New("sms gateway down")
}
