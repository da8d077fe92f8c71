package services

import (
	"context"
	"errors"
	"time"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/carriers"
	"shipment-orchestrator/internal/repository"
)

// settingsTokenStore backs the token cache with the settings row. Credentials
// from the environment are used until an admin saves their own.
type settingsTokenStore struct {
	settings repository.SettingsRepository
	fallback carriers.Credentials
}

// NewSettingsTokenStore creates a token store over the settings repository
func NewSettingsTokenStore(settings repository.SettingsRepository, fallback carriers.Credentials) carriers.TokenStore {
	return &settingsTokenStore{settings: settings, fallback: fallback}
}

func (s *settingsTokenStore) LoadCredentials(ctx context.Context) (carriers.Credentials, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.fallback, nil
		}
		return carriers.Credentials{}, err
	}
	if settings.HasCredentials() {
		return carriers.Credentials{Email: settings.Email, Password: settings.Password}, nil
	}
	return s.fallback, nil
}

func (s *settingsTokenStore) LoadToken(ctx context.Context) (string, time.Time, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", time.Time{}, nil
		}
		return "", time.Time{}, err
	}
	if settings.AuthToken == "" || settings.TokenExpiresAt == nil {
		return "", time.Time{}, nil
	}
	return settings.AuthToken, *settings.TokenExpiresAt, nil
}

func (s *settingsTokenStore) SaveToken(ctx context.Context, token string, expiresAt time.Time) error {
	return s.settings.SaveToken(ctx, token, expiresAt)
}

func (s *settingsTokenStore) ClearToken(ctx context.Context, token string) error {
	return s.settings.ClearToken(ctx, token)
}
