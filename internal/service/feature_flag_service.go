package service

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"familytree/internal/models"
	"familytree/internal/repository"
)

type flagDefault struct {
	enabled     bool
	description string
}

// knownFlags are the flags the application reads, with their defaults
// when nothing is stored
var knownFlags = map[string]flagDefault{
	models.FlagPublicSubmissions: {true, "Allow visitors to submit new members for review"},
	models.FlagImageUploads:      {true, "Allow visitors to upload member photos for review"},
	models.FlagBranchLinks:       {true, "Allow branch invitation links to be used"},
	models.FlagPublicTree:        {true, "Show the family tree to anonymous visitors"},
	models.FlagNotifications:     {true, "Send email and SMS notifications"},
}

// FeatureFlagService serves flags from an in-memory cache that is refreshed
// on every write
type FeatureFlagService struct {
	flagRepo *repository.FeatureFlagRepository

	mu     sync.RWMutex
	cache  map[string]models.FeatureFlag
	loaded bool
}

// NewFeatureFlagService creates a new feature flag service
func NewFeatureFlagService(flagRepo *repository.FeatureFlagRepository) *FeatureFlagService {
	return &FeatureFlagService{flagRepo: flagRepo}
}

// Load reads stored flags and merges them over the defaults
func (s *FeatureFlagService) Load() error {
	stored, err := s.flagRepo.List()
	if err != nil {
		return fmt.Errorf("failed to load feature flags: %w", err)
	}

	cache := make(map[string]models.FeatureFlag, len(knownFlags))
	for key, def := range knownFlags {
		cache[key] = models.FeatureFlag{Key: key, Enabled: def.enabled, Description: def.description}
	}
	for _, f := range stored {
		if _, ok := knownFlags[f.Key]; !ok {
			continue
		}
		if f.Description == "" {
			f.Description = knownFlags[f.Key].description
		}
		cache[f.Key] = f
	}

	s.mu.Lock()
	s.cache = cache
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *FeatureFlagService) ensureLoaded() {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return
	}
	if err := s.Load(); err != nil {
		slog.Error("Using default feature flags", "error", err)
	}
}

// IsEnabled reports whether a flag is on. Unknown flags are off.
func (s *FeatureFlagService) IsEnabled(key string) bool {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.cache[key]; ok {
		return f.Enabled
	}
	if def, ok := knownFlags[key]; ok {
		return def.enabled
	}
	return false
}

// List returns every known flag ordered by key
func (s *FeatureFlagService) List() []models.FeatureFlag {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()

	flags := make([]models.FeatureFlag, 0, len(knownFlags))
	for key, def := range knownFlags {
		f, ok := s.cache[key]
		if !ok {
			f = models.FeatureFlag{Key: key, Enabled: def.enabled, Description: def.description}
		}
		flags = append(flags, f)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Key < flags[j].Key })
	return flags
}

// Set stores a flag value
func (s *FeatureFlagService) Set(key string, enabled bool, actor string) (*models.FeatureFlag, error) {
	def, ok := knownFlags[key]
	if !ok {
		return nil, ErrUnknownFlag
	}

	flag := &models.FeatureFlag{Key: key, Enabled: enabled, Description: def.description, UpdatedBy: actor}
	if err := s.flagRepo.Set(flag); err != nil {
		return nil, err
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	slog.Info("Feature flag updated", "key", key, "enabled", enabled, "by", actor)
	return flag, nil
}

// Require returns ErrFeatureDisabled when key is off
func (s *FeatureFlagService) Require(key string) error {
	if !s.IsEnabled(key) {
		return ErrFeatureDisabled(key)
	}
	return nil
}
