package services

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/cache"
	"shipment-orchestrator/internal/carriers"
	"shipment-orchestrator/internal/models"
	"shipment-orchestrator/internal/repository"
)

// SettingsSource provides the operational settings used by shipment flows.
// The returned value may come from a cache and carries no secrets.
type SettingsSource interface {
	Operational(ctx context.Context) (*models.ShipmentSettings, error)
}

// TokenInvalidator drops a cached bearer token
type TokenInvalidator interface {
	Invalidate()
}

// ConnectionTester verifies aggregator credentials
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// SettingsService manages the single shipment settings record
type SettingsService struct {
	repo   repository.SettingsRepository
	cache  *cache.SettingsCache
	tokens TokenInvalidator
	tester ConnectionTester
	logger *logrus.Entry
}

// NewSettingsService creates a new settings service
func NewSettingsService(
	repo repository.SettingsRepository,
	settingsCache *cache.SettingsCache,
	tokens TokenInvalidator,
	tester ConnectionTester,
	logger *logrus.Entry,
) *SettingsService {
	return &SettingsService{
		repo:   repo,
		cache:  settingsCache,
		tokens: tokens,
		tester: tester,
		logger: logger.WithField("component", "settings-service"),
	}
}

// Operational returns the settings for flow decisions, from cache when possible
func (s *SettingsService) Operational(ctx context.Context) (*models.ShipmentSettings, error) {
	cached, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Settings cache read failed")
	}
	if cached != nil {
		return cached, nil
	}

	settings, err := s.repo.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, settings); err != nil {
		s.logger.WithError(err).Warn("Settings cache write failed")
	}
	return settings, nil
}

// Get returns the admin view of the settings
func (s *SettingsService) Get(ctx context.Context) (*models.ShipmentSettingsResponse, error) {
	settings, err := s.repo.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	return settings.ToResponse(time.Now()), nil
}

// Update applies an admin change. Changing credentials drops the cached token.
func (s *SettingsService) Update(ctx context.Context, req *models.UpdateShipmentSettingsRequest) (*models.ShipmentSettingsResponse, error) {
	if err := validateSettingsUpdate(req); err != nil {
		return nil, err
	}

	settings, err := s.repo.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	credentialsChanged := false
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != settings.Email {
			settings.Email = email
			credentialsChanged = true
		}
	}
	// the password is never returned, so an empty value means unchanged
	if req.Password != nil && *req.Password != "" && *req.Password != settings.Password {
		settings.Password = *req.Password
		credentialsChanged = true
	}
	if req.Enabled != nil {
		settings.Enabled = *req.Enabled
	}
	if req.AutoAssignCourier != nil {
		settings.AutoAssignCourier = *req.AutoAssignCourier
	}
	if req.AutoCreateOrder != nil {
		settings.AutoCreateOrder = *req.AutoCreateOrder
	}
	if req.AutoSchedulePickup != nil {
		settings.AutoSchedulePickup = *req.AutoSchedulePickup
	}
	if req.PickupLocation != nil {
		settings.PickupLocation = *req.PickupLocation
		settings.PickupLocation.Pincode = strings.TrimSpace(settings.PickupLocation.Pincode)
	}
	if req.DefaultLength != nil {
		settings.DefaultLength = *req.DefaultLength
	}
	if req.DefaultBreadth != nil {
		settings.DefaultBreadth = *req.DefaultBreadth
	}
	if req.DefaultHeight != nil {
		settings.DefaultHeight = *req.DefaultHeight
	}
	if req.DefaultWeight != nil {
		settings.DefaultWeight = *req.DefaultWeight
	}
	if req.WebhookSecret != nil {
		settings.WebhookSecret = *req.WebhookSecret
	}

	if err := s.repo.Save(ctx, settings); err != nil {
		return nil, err
	}
	if credentialsChanged {
		// other instances notice the cleared token on their next store check
		if err := s.repo.ClearToken(ctx, ""); err != nil {
			return nil, err
		}
		settings.AuthToken = ""
		settings.TokenExpiresAt = nil
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WithError(err).Warn("Settings cache invalidation failed")
	}
	if credentialsChanged && s.tokens != nil {
		s.tokens.Invalidate()
	}

	s.logger.WithFields(logrus.Fields{
		"enabled":             settings.Enabled,
		"credentials_changed": credentialsChanged,
	}).Info("Shipment settings updated")

	return settings.ToResponse(time.Now()), nil
}

// TestConnection forces a login with the stored credentials
func (s *SettingsService) TestConnection(ctx context.Context) error {
	if s.tester == nil {
		return apperrors.NewConfigurationError("courier aggregator client is not configured")
	}
	return s.tester.TestConnection(ctx)
}

func validateSettingsUpdate(req *models.UpdateShipmentSettingsRequest) error {
	if req == nil {
		return apperrors.NewValidationError("request body is required")
	}
	if req.Email != nil && *req.Email != "" && !strings.Contains(*req.Email, "@") {
		return apperrors.NewValidationError("email is invalid")
	}
	if req.PickupLocation != nil && req.PickupLocation.Pincode != "" {
		if err := carriers.ValidatePincode(strings.TrimSpace(req.PickupLocation.Pincode)); err != nil {
			return apperrors.NewValidationError("invalid pickup pincode: " + err.Error())
		}
	}
	for name, v := range map[string]*float64{
		"defaultLength":  req.DefaultLength,
		"defaultBreadth": req.DefaultBreadth,
		"defaultHeight":  req.DefaultHeight,
		"defaultWeight":  req.DefaultWeight,
	} {
		if v != nil && *v <= 0 {
			return apperrors.NewValidationError(name + " must be positive")
		}
	}
	return nil
}

// requireEnabled loads the settings and checks the integration can run flows
func requireEnabled(ctx context.Context, source SettingsSource) (*models.ShipmentSettings, error) {
	settings, err := source.Operational(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, apperrors.NewConfigurationError("shipment integration is disabled")
	}
	if !settings.HasPickupLocation() {
		return nil, apperrors.NewConfigurationError("pickup location is not configured")
	}
	return settings, nil
}
