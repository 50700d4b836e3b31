package service

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"familytree/internal/apperr"
	"familytree/internal/models"
	"familytree/internal/repository"
)

// BackupFormatVersion is written into every export
const BackupFormatVersion = "1.0"

// BackupData represents a complete tree backup
type BackupData struct {
	Version      string               `json:"version"`
	ExportedAt   time.Time            `json:"exported_at"`
	Members      []models.Member      `json:"members"`
	FeatureFlags []models.FeatureFlag `json:"feature_flags"`
}

// BackupService exports and imports the tree as a JSON document
type BackupService struct {
	memberRepo *repository.MemberRepository
	snapshots  *SnapshotService
	flags      *FeatureFlagService
}

// NewBackupService creates a new backup service
func NewBackupService(memberRepo *repository.MemberRepository, snapshots *SnapshotService, flags *FeatureFlagService) *BackupService {
	return &BackupService{memberRepo: memberRepo, snapshots: snapshots, flags: flags}
}

// Export writes a backup to a file
func (s *BackupService) Export(outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(file); err != nil {
		return err
	}
	slog.Info("Tree exported", "path", outputPath)
	return nil
}

// ExportToWriter writes a backup to w
func (s *BackupService) ExportToWriter(w io.Writer) error {
	members, err := s.memberRepo.All()
	if err != nil {
		return fmt.Errorf("failed to export members: %w", err)
	}

	backup := &BackupData{
		Version:      BackupFormatVersion,
		ExportedAt:   time.Now().UTC(),
		Members:      members,
		FeatureFlags: s.flags.List(),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	slog.Info("Backup exported", "members", len(backup.Members), "flags", len(backup.FeatureFlags))
	return nil
}

// Import restores a backup file. See ImportFromReader.
func (s *BackupService) Import(inputPath string, clear bool, actor string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(file, clear, actor)
}

// ImportFromReader restores a backup. Without clear the tree must be empty;
// with clear a safety snapshot is taken and the tree is replaced.
func (s *BackupService) ImportFromReader(r io.Reader, clear bool, actor string) error {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return apperr.Wrap(err, apperr.CodeInvalid, "Backup file is not valid JSON", "ملف النسخة الاحتياطية غير صالح")
	}
	if backup.Version != BackupFormatVersion {
		return apperr.New(apperr.CodeInvalid, "Unsupported backup version "+backup.Version, "إصدار النسخة الاحتياطية غير مدعوم")
	}

	count, err := s.memberRepo.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		if !clear {
			return apperr.New(apperr.CodeConflict, "The tree is not empty; import with clear to replace it", "الشجرة ليست فارغة، استخدم خيار الاستبدال")
		}
		if _, err := s.snapshots.Create("Before import", "Automatic copy taken before importing a backup", actor); err != nil {
			return fmt.Errorf("failed to take safety snapshot: %w", err)
		}
	}

	if err := s.snapshots.replaceAll(backup.Members, "backup:"+backup.ExportedAt.Format(time.RFC3339), actor); err != nil {
		return err
	}

	for _, f := range backup.FeatureFlags {
		if _, err := s.flags.Set(f.Key, f.Enabled, actor); err != nil {
			slog.Warn("Skipping feature flag from backup", "key", f.Key, "error", err)
		}
	}

	slog.Info("Backup imported", "members", len(backup.Members), "flags", len(backup.FeatureFlags), "by", actor)
	return nil
}
