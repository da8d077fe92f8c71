package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/models"
)

// SettingsManager is the admin surface for shipment settings
type SettingsManager interface {
	Get(ctx context.Context) (*models.ShipmentSettingsResponse, error)
	Update(ctx context.Context, req *models.UpdateShipmentSettingsRequest) (*models.ShipmentSettingsResponse, error)
	TestConnection(ctx context.Context) error
}

// SettingsHandler handles shipment settings requests
type SettingsHandler struct {
	settings SettingsManager
	logger   *logrus.Entry
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings SettingsManager, logger *logrus.Entry) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		logger:   logger.WithField("component", "settings-handler"),
	}
}

// GetSettings handles GET /shipping-settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    settings,
	})
}

// UpdateSettings handles PUT /shipping-settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var request models.UpdateShipmentSettingsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   string(apperrors.KindValidation),
			Message: "Invalid request body",
		})
		return
	}

	settings, err := h.settings.Update(c.Request.Context(), &request)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	message := "Shipment settings updated successfully"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    settings,
		Message: &message,
	})
}

// TestConnection handles POST /shipping-settings/test-connection
func (h *SettingsHandler) TestConnection(c *gin.Context) {
	if err := h.settings.TestConnection(c.Request.Context()); err != nil {
		respondError(c, h.logger, err)
		return
	}

	message := "Connected to courier aggregator"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    gin.H{"connected": true},
		Message: &message,
	})
}
