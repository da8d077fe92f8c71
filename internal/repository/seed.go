package repository

import (
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"shipment-orchestrator/internal/models"
)

// BootstrapSettings carries the environment values used to seed an empty
// settings row. Admin edits always win over these afterwards.
type BootstrapSettings struct {
	Email         string
	Password      string
	WebhookSecret string
}

// SeedSettings makes sure the single settings row exists. Credentials from the
// environment are copied only into fields that are still empty.
// This is idempotent and safe to run on every start.
func SeedSettings(db *gorm.DB, bootstrap BootstrapSettings, logger *logrus.Logger) error {
	var settings models.ShipmentSettings
	err := db.Order("id ASC").Attrs(models.ShipmentSettings{
		Enabled:        false,
		DefaultLength:  models.DefaultPackageLength,
		DefaultBreadth: models.DefaultPackageBreadth,
		DefaultHeight:  models.DefaultPackageHeight,
		DefaultWeight:  models.DefaultPackageWeight,
	}).FirstOrCreate(&settings).Error
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if strings.TrimSpace(settings.Email) == "" && settings.Password == "" &&
		bootstrap.Email != "" && bootstrap.Password != "" {
		updates["email"] = strings.TrimSpace(bootstrap.Email)
		updates["password"] = bootstrap.Password
	}
	if settings.WebhookSecret == "" && bootstrap.WebhookSecret != "" {
		updates["webhook_secret"] = bootstrap.WebhookSecret
	}
	if len(updates) == 0 {
		return nil
	}

	if err := db.Model(&settings).Updates(updates).Error; err != nil {
		return err
	}

	_, seededCredentials := updates["email"]
	_, seededSecret := updates["webhook_secret"]
	logger.WithFields(logrus.Fields{
		"settings_id":        settings.ID,
		"seeded_credentials": seededCredentials,
		"seeded_secret":      seededSecret,
	}).Info("Shipment settings seeded from environment")
	return nil
}
