package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/models"
)

// ShipmentService is the lifecycle surface exposed over HTTP
type ShipmentService interface {
	GetShipment(ctx context.Context, orderID string) (*models.ShipmentView, error)
	CreateShipment(ctx context.Context, orderID string) (*models.CreateShipmentResponse, error)
	AssignAWB(ctx context.Context, orderID string, req models.AssignAWBRequest) (*models.AWBAssignmentResponse, error)
	ListCouriers(ctx context.Context, orderID string) (*models.CouriersResponse, error)
	SchedulePickup(ctx context.Context, orderID string) (*models.PickupResponse, error)
	GetLabel(ctx context.Context, orderID string, force bool) (*models.LabelResponse, error)
	Cancel(ctx context.Context, orderID string, req models.CancelRequest) (*models.CancelResponse, error)
	Sync(ctx context.Context, orderID string) (*models.SyncResponse, error)
	Track(ctx context.Context, orderID string) (*models.TrackingResponse, error)
	CheckServiceability(ctx context.Context, req models.ServiceabilityCheckRequest) (*models.ServiceabilityCheckResponse, error)
}

// ShipmentHandler handles HTTP requests for shipment operations
type ShipmentHandler struct {
	service ShipmentService
	logger  *logrus.Entry
}

// NewShipmentHandler creates a new shipment handler
func NewShipmentHandler(service ShipmentService, logger *logrus.Entry) *ShipmentHandler {
	return &ShipmentHandler{
		service: service,
		logger:  logger.WithField("component", "shipment-handler"),
	}
}

// GetShipment handles GET /shipments/:orderId
func (h *ShipmentHandler) GetShipment(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	view, err := h.service.GetShipment(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    view,
	})
}

// CreateShipment handles POST /shipments/:orderId/create
func (h *ShipmentHandler) CreateShipment(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	result, err := h.service.CreateShipment(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// AssignAWB handles POST /shipments/:orderId/awb
func (h *ShipmentHandler) AssignAWB(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var request models.AssignAWBRequest
	if !bindOptionalJSON(c, &request) {
		return
	}
	if request.CourierID != nil && *request.CourierID <= 0 {
		respondError(c, h.logger, apperrors.NewValidationError("courierId must be positive"))
		return
	}

	result, err := h.service.AssignAWB(c.Request.Context(), orderID, request)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListCouriers handles GET /shipments/:orderId/couriers
func (h *ShipmentHandler) ListCouriers(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	result, err := h.service.ListCouriers(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SchedulePickup handles POST /shipments/:orderId/pickup
func (h *ShipmentHandler) SchedulePickup(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	result, err := h.service.SchedulePickup(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetLabel handles GET and POST /shipments/:orderId/label.
// GET serves the stored label, POST always regenerates.
func (h *ShipmentHandler) GetLabel(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	force := c.Request.Method == http.MethodPost
	result, err := h.service.GetLabel(c.Request.Context(), orderID, force)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Cancel handles POST /shipments/:orderId/cancel
func (h *ShipmentHandler) Cancel(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var request models.CancelRequest
	if !bindOptionalJSON(c, &request) {
		return
	}
	switch request.Mode {
	case "", models.CancelModeOrder, models.CancelModeShipment:
	default:
		respondError(c, h.logger, apperrors.NewValidationError("mode must be 'order' or 'shipment'"))
		return
	}

	result, err := h.service.Cancel(c.Request.Context(), orderID, request)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Sync handles POST /shipments/:orderId/sync
func (h *ShipmentHandler) Sync(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	result, err := h.service.Sync(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Track handles GET /shipments/:orderId/track
func (h *ShipmentHandler) Track(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	result, err := h.service.Track(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CheckServiceability handles POST /shipments/serviceability
func (h *ShipmentHandler) CheckServiceability(c *gin.Context) {
	var request models.ServiceabilityCheckRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   string(apperrors.KindValidation),
			Message: "deliveryPincode is required",
		})
		return
	}
	if request.Weight != nil && *request.Weight <= 0 {
		respondError(c, h.logger, apperrors.NewValidationError("weight must be positive"))
		return
	}

	result, err := h.service.CheckServiceability(c.Request.Context(), request)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func orderIDParam(c *gin.Context) (string, bool) {
	orderID := strings.TrimSpace(c.Param("orderId"))
	if orderID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   string(apperrors.KindValidation),
			Message: "orderId is required",
		})
		return "", false
	}
	return orderID, true
}

// bindOptionalJSON binds a body when one is sent; an empty body keeps defaults.
func bindOptionalJSON(c *gin.Context, target interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(target); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   string(apperrors.KindValidation),
			Message: "Invalid request body",
		})
		return false
	}
	return true
}

// respondError maps a service error to the HTTP response. Internal causes are
// logged but never returned to the caller.
func respondError(c *gin.Context, logger *logrus.Entry, err error) {
	status := apperrors.HTTPStatus(err)
	entry := logger.WithFields(logrus.Fields{
		"path":       c.FullPath(),
		"order_id":   c.Param("orderId"),
		"error_kind": apperrors.KindOf(err),
		"request_id": c.GetString("request_id"),
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.JSON(status, models.ErrorResponse{
		Error:   string(apperrors.KindOf(err)),
		Message: apperrors.PublicMessage(err),
		Details: apperrors.PublicDetails(err),
	})
}
