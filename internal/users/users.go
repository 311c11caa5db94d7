package users

import (
	"github.com/rs/zerolog"

	"github.com/linkarr/linkarr/internal/config"
	"github.com/linkarr/linkarr/internal/store"
)

// Service stores per-user settings in the users map. An empty username
// maps to the shared default profile.
type Service struct {
	store  *store.Store
	logger zerolog.Logger
}

const defaultProfile = "default"

// NewService creates the settings service.
func NewService(st *store.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger.With().Str("component", "users").Logger(),
	}
}

// Get loads one user's settings, falling back to a zero value.
func (s *Service) Get(username string) config.UserSettings {
	if username == "" {
		username = defaultProfile
	}
	var settings config.UserSettings
	if _, err := s.store.Get(store.MapUsers, username, &settings); err != nil {
		s.logger.Warn().Err(err).Str("user", username).Msg("settings read failed")
	}
	return settings
}

// Set stores one user's settings.
func (s *Service) Set(username string, settings config.UserSettings) error {
	if username == "" {
		username = defaultProfile
	}
	return s.store.Set(store.MapUsers, username, settings)
}

// All returns every stored user profile.
func (s *Service) All() map[string]config.UserSettings {
	out, err := store.LoadMap[config.UserSettings](s.store, store.MapUsers)
	if err != nil {
		s.logger.Warn().Err(err).Msg("users load failed")
		return map[string]config.UserSettings{}
	}
	if len(out) == 0 {
		out[defaultProfile] = config.UserSettings{}
	}
	return out
}
