package repository

import (
	"database/sql"
	"fmt"

	"familytree/internal/database"
	"familytree/internal/models"
)

// FeatureFlagRepository persists runtime feature toggles
type FeatureFlagRepository struct {
	db *database.DB
}

func NewFeatureFlagRepository(db *database.DB) *FeatureFlagRepository {
	return &FeatureFlagRepository{db: db}
}

// Get retrieves a flag by key
func (r *FeatureFlagRepository) Get(key string) (*models.FeatureFlag, error) {
	var f models.FeatureFlag
	query := `SELECT flag_key, enabled, description, updated_by, updated_at FROM feature_flags WHERE flag_key = ?`
	err := r.db.QueryRow(query, key).Scan(&f.Key, &f.Enabled, &f.Description, &f.UpdatedBy, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feature flag: %w", err)
	}
	return &f, nil
}

// List returns all stored flags
func (r *FeatureFlagRepository) List() ([]models.FeatureFlag, error) {
	rows, err := r.db.Query(`SELECT flag_key, enabled, description, updated_by, updated_at FROM feature_flags ORDER BY flag_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feature flags: %w", err)
	}
	defer rows.Close()

	flags := []models.FeatureFlag{}
	for rows.Next() {
		var f models.FeatureFlag
		if err := rows.Scan(&f.Key, &f.Enabled, &f.Description, &f.UpdatedBy, &f.UpdatedAt); err != nil {
			return nil, err
		}
		flags = append(flags, f)
	}
	return flags, rows.Err()
}

// Set updates or inserts a flag. An empty description keeps the stored one.
func (r *FeatureFlagRepository) Set(f *models.FeatureFlag) error {
	f.UpdatedAt = now()
	query := r.db.Dialect.UpsertFeatureFlag()
	if _, err := r.db.Exec(query, f.Key, f.Enabled, f.Description, f.UpdatedBy, f.UpdatedAt); err != nil {
		return fmt.Errorf("failed to set feature flag: %w", err)
	}
	return nil
}
