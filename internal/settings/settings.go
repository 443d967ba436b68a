package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"trend-scan/models"
	"trend-scan/observability"
)

// Store manages persistent storage of algorithm settings. The env-derived
// defaults are the baseline; whatever the operator tunes through the API
// is written to disk and survives restarts.
type Store struct {
	mu       sync.RWMutex
	filePath string
	defaults models.AlgorithmSettings
	current  models.AlgorithmSettings
}

// NewStore creates a settings store rooted at dataDir. An empty dataDir
// falls back to ~/.trend-scan. A persisted file that fails to parse or
// validate is ignored with a warning rather than poisoning the scanner.
func NewStore(dataDir string, defaults models.AlgorithmSettings) (*Store, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".trend-scan")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}

	store := &Store{
		filePath: filepath.Join(dataDir, "settings.json"),
		defaults: defaults,
		current:  defaults,
	}

	if err := store.load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		observability.Warn("failed to load persisted settings, using defaults",
			"path", store.filePath, "error", err)
	}

	return store, nil
}

// load reads persisted settings from disk
func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var settings models.AlgorithmSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("persisted settings are invalid: %w", err)
	}

	s.current = settings
	return nil
}

// Save persists the current settings to disk
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.current, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// Get returns the current settings
func (s *Store) Get() models.AlgorithmSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates and persists a full replacement settings document
func (s *Store) Update(settings models.AlgorithmSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = settings
	s.mu.Unlock()

	return s.Save()
}

// Reset restores the env-derived defaults and persists them
func (s *Store) Reset() error {
	s.mu.Lock()
	s.current = s.defaults
	s.mu.Unlock()

	return s.Save()
}
