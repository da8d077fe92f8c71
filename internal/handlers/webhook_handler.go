package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shipment-orchestrator/internal/models"
)

// webhookSecretHeader carries the shared secret configured on the aggregator
const webhookSecretHeader = "x-api-key"

// TrackingWebhookProcessor applies tracking pushes
type TrackingWebhookProcessor interface {
	Handle(ctx context.Context, providedSecret string, payload *models.TrackingWebhookPayload) models.WebhookAck
}

// WebhookHandler receives aggregator tracking webhooks. Every delivery is
// answered with 200 so the aggregator does not disable the endpoint.
type WebhookHandler struct {
	processor TrackingWebhookProcessor
	logger    *logrus.Entry
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(processor TrackingWebhookProcessor, logger *logrus.Entry) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger.WithField("component", "webhook-handler"),
	}
}

// TrackingWebhook handles POST /webhooks/tracking
func (h *WebhookHandler) TrackingWebhook(c *gin.Context) {
	var payload models.TrackingWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.WithError(err).Warn("Malformed tracking webhook body")
		c.JSON(http.StatusOK, models.WebhookAck{
			Success: false,
			Error:   "invalid payload",
		})
		return
	}

	ack := h.processor.Handle(c.Request.Context(), c.GetHeader(webhookSecretHeader), &payload)
	c.JSON(http.StatusOK, ack)
}

// Probe handles GET /webhooks/tracking. The aggregator calls it when the
// webhook URL is registered.
func (h *WebhookHandler) Probe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "tracking webhook endpoint is active",
	})
}
