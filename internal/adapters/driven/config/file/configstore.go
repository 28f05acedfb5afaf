// Package file loads and saves pipeline configuration as a TOML file.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/buildlens/buildlens/internal/core/domain"
)

// ConfigStore reads and writes domain.Settings from a TOML file.
// Missing file means defaults: first run needs no setup.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	settings domain.Settings
}

// NewConfigStore creates a config store at configPath. An empty path
// defaults to ~/.buildlens/config.toml.
func NewConfigStore(configPath string) (*ConfigStore, error) {
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		configPath = filepath.Join(home, ".buildlens", "config.toml")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	s := &ConfigStore{
		filePath: configPath,
		settings: domain.DefaultSettings(),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Settings returns a copy of the current settings.
func (s *ConfigStore) Settings() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Load re-reads the config file. A missing file resets to defaults.
// Environment variables override file values for secrets so tokens never
// have to live on disk.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := domain.DefaultSettings()

	data, err := os.ReadFile(s.filePath)
	switch {
	case os.IsNotExist(err):
		// No config file yet - defaults apply.
	case err != nil:
		return fmt.Errorf("reading config: %w", err)
	default:
		if err := toml.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	applyEnvOverrides(&settings)

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	s.settings = settings
	return nil
}

// Save persists the current settings to disk.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(s.settings)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	// Restricted permissions: the file may hold secrets.
	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Update applies fn to the settings under the lock and persists the result.
func (s *ConfigStore) Update(fn func(*domain.Settings)) error {
	s.mu.Lock()
	fn(&s.settings)
	settings := s.settings
	s.mu.Unlock()

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return s.Save()
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

func applyEnvOverrides(settings *domain.Settings) {
	if v := os.Getenv("BUILDLENS_LLM_API_KEY"); v != "" {
		settings.LLM.APIKey = v
	}
	if v := os.Getenv("BUILDLENS_WEBHOOK_SECRET"); v != "" {
		settings.Webhook.Secret = v
	}
	if v := os.Getenv("BUILDLENS_SLACK_TOKEN"); v != "" {
		settings.Slack.Token = v
	}
	if v := os.Getenv("BUILDLENS_GITHUB_TOKEN"); v != "" {
		settings.GitHub.Token = v
	}
}
