package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/models"
)

// SettingsRepository handles the single shipment settings row
type SettingsRepository interface {
	Get(ctx context.Context) (*models.ShipmentSettings, error)
	GetOrCreate(ctx context.Context) (*models.ShipmentSettings, error)
	Save(ctx context.Context, settings *models.ShipmentSettings) error
	SaveToken(ctx context.Context, token string, expiresAt time.Time) error
	// ClearToken removes the stored token if it is still token. An empty
	// token clears whatever is stored.
	ClearToken(ctx context.Context, token string) error
}

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// Get returns the active settings row
func (r *settingsRepository) Get(ctx context.Context) (*models.ShipmentSettings, error) {
	var settings models.ShipmentSettings
	err := r.db.WithContext(ctx).Order("id ASC").First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("shipment settings", "default")
		}
		return nil, err
	}
	return &settings, nil
}

// GetOrCreate returns the settings row, creating disabled defaults if absent
func (r *settingsRepository) GetOrCreate(ctx context.Context) (*models.ShipmentSettings, error) {
	settings, err := r.Get(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	settings = &models.ShipmentSettings{
		Enabled:        false,
		DefaultLength:  models.DefaultPackageLength,
		DefaultBreadth: models.DefaultPackageBreadth,
		DefaultHeight:  models.DefaultPackageHeight,
		DefaultWeight:  models.DefaultPackageWeight,
	}
	if err := r.db.WithContext(ctx).Create(settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

// Save persists the admin-managed columns. The token columns are only
// written by SaveToken and ClearToken so a concurrent refresh is not undone.
func (r *settingsRepository) Save(ctx context.Context, settings *models.ShipmentSettings) error {
	settings.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Omit("AuthToken", "TokenExpiresAt").Save(settings).Error
}

// SaveToken stores the shared bearer token on the settings row
func (r *settingsRepository) SaveToken(ctx context.Context, token string, expiresAt time.Time) error {
	settings, err := r.GetOrCreate(ctx)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.ShipmentSettings{}).
		Where("id = ?", settings.ID).
		Updates(map[string]interface{}{
			"auth_token":       token,
			"token_expires_at": expiresAt,
			"updated_at":       time.Now(),
		}).Error
}

// ClearToken drops the stored token
func (r *settingsRepository) ClearToken(ctx context.Context, token string) error {
	query := r.db.WithContext(ctx).
		Model(&models.ShipmentSettings{}).
		Where("auth_token <> ''")
	if token != "" {
		query = query.Where("auth_token = ?", token)
	}
	return query.Updates(map[string]interface{}{
		"auth_token":       "",
		"token_expires_at": gorm.Expr("NULL"),
		"updated_at":       time.Now(),
	}).Error
}
