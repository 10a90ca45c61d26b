package admin

import (
	"sync"
	"time"
)

// Settings are the console-wide options superadmins may replace.
type Settings struct {
	MaintenanceMode       bool      `json:"maintenanceMode"`
	SessionTimeoutMinutes int       `json:"sessionTimeoutMinutes" validate:"required,min=5,max=1440"`
	AnnouncementBanner    string    `json:"announcementBanner" validate:"max=500"`
	SupportEmail          string    `json:"supportEmail" validate:"omitempty,email"`
	UpdatedAt             time.Time `json:"updatedAt"`
	UpdatedBy             string    `json:"updatedBy,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{SessionTimeoutMinutes: 480}
}

// SettingsStore keeps the current settings in process.
type SettingsStore struct {
	mu       sync.RWMutex
	settings Settings
}

func NewSettingsStore(initial Settings) *SettingsStore {
	return &SettingsStore{settings: initial}
}

func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Replace swaps the settings wholesale and returns the previous value.
func (s *SettingsStore) Replace(next Settings) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.settings
	s.settings = next
	return prev
}
