package models

import "time"

const (
	FlagPublicSubmissions = "public_submissions"
	FlagImageUploads      = "image_uploads"
	FlagBranchLinks       = "branch_links"
	FlagPublicTree        = "public_tree"
	FlagNotifications     = "notifications"
)

// FeatureFlag toggles an optional capability at runtime
type FeatureFlag struct {
	Key         string    `json:"key"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description"`
	UpdatedBy   string    `json:"updatedBy"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
