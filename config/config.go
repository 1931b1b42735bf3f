// Package config manages the settings file. Settings are stored as a single
// JSON document; Load applies defaults for anything unset so a minimal file
// with just the two calendar IDs is enough to run.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Provider types selectable in settings.
const (
	ProviderSQLite = "sqlite"
	ProviderHTTP   = "http"
)

// ErrUnknownProvider is returned when settings name a provider type that
// does not exist.
var ErrUnknownProvider = errors.New("unknown provider type")

// SyncSettings configures the calendar pairing and schedule.
type SyncSettings struct {
	PrimaryCalendarID string `json:"primaryCalendarId"`
	RemoteCalendarID  string `json:"remoteCalendarId"`
	LookBackDays      int    `json:"lookBackDays"`
	LookAheadDays     int    `json:"lookAheadDays"`
	IntervalMinutes   int    `json:"intervalMinutes"`
}

// ProviderSettings selects and configures the calendar provider backend.
type ProviderSettings struct {
	Type         string `json:"type"` // "sqlite" or "http"
	DatabasePath string `json:"databasePath,omitempty"`
	BaseURL      string `json:"baseUrl,omitempty"`
	APIKey       string `json:"apiKey,omitempty"`
}

// ServerSettings configures the admin HTTP server.
type ServerSettings struct {
	ListenAddr string `json:"listenAddr"`
}

// LoggingSettings configures the rotated log file. An empty path logs to
// stderr only.
type LoggingSettings struct {
	Path       string `json:"path,omitempty"`
	MaxSizeMB  int    `json:"maxSizeMb"`
	MaxBackups int    `json:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays"`
}

// Settings is the full settings document.
type Settings struct {
	Sync     SyncSettings     `json:"sync"`
	Provider ProviderSettings `json:"provider"`
	Server   ServerSettings   `json:"server"`
	Logging  LoggingSettings  `json:"logging"`
}

// Manager loads and saves the settings file.
type Manager struct {
	mu   sync.Mutex
	path string
}

// NewManager creates a manager for the settings file at path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load reads settings from disk and applies defaults. A missing file yields
// pure defaults.
func (m *Manager) Load() (*Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings := &Settings{}
	data, err := os.ReadFile(m.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	default:
		if err := json.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("parse settings: %w", err)
		}
	}

	applyDefaults(settings)
	if settings.Provider.Type != ProviderSQLite && settings.Provider.Type != ProviderHTTP {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, settings.Provider.Type)
	}
	return settings, nil
}

// Save writes settings to disk atomically.
func (m *Manager) Save(settings *Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

func applyDefaults(s *Settings) {
	if s.Sync.LookBackDays <= 0 {
		s.Sync.LookBackDays = 7
	}
	if s.Sync.LookAheadDays <= 0 {
		s.Sync.LookAheadDays = 60
	}
	if s.Sync.IntervalMinutes <= 0 {
		s.Sync.IntervalMinutes = 15
	}
	if s.Provider.Type == "" {
		s.Provider.Type = ProviderSQLite
	}
	if s.Provider.Type == ProviderSQLite && s.Provider.DatabasePath == "" {
		s.Provider.DatabasePath = "data/calendars.db"
	}
	if s.Server.ListenAddr == "" {
		s.Server.ListenAddr = ":8675"
	}
	if s.Logging.MaxSizeMB <= 0 {
		s.Logging.MaxSizeMB = 10
	}
	if s.Logging.MaxBackups <= 0 {
		s.Logging.MaxBackups = 3
	}
	if s.Logging.MaxAgeDays <= 0 {
		s.Logging.MaxAgeDays = 28
	}
}
