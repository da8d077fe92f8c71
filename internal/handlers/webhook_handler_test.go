package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"shipment-orchestrator/internal/models"
)

type MockWebhookProcessor struct {
	mock.Mock
}

func (m *MockWebhookProcessor) Handle(ctx context.Context, providedSecret string, payload *models.TrackingWebhookPayload) models.WebhookAck {
	args := m.Called(ctx, providedSecret, payload)
	return args.Get(0).(models.WebhookAck)
}

func setupWebhookRouter(processor TrackingWebhookProcessor) *gin.Engine {
	h := NewWebhookHandler(processor, testEntry())
	router := gin.New()
	router.POST("/webhooks/tracking", h.TrackingWebhook)
	router.GET("/webhooks/tracking", h.Probe)
	return router
}

func TestTrackingWebhookPassesSecretHeader(t *testing.T) {
	processor := new(MockWebhookProcessor)
	processor.On("Handle", mock.Anything, "hook-secret", mock.MatchedBy(func(p *models.TrackingWebhookPayload) bool {
		return p.AWB == "AWB-1" && p.StatusCode() == 6
	})).Return(models.WebhookAck{Success: true, Message: "status updated"})
	router := setupWebhookRouter(processor)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/tracking",
		bytes.NewBufferString(`{"awb":"AWB-1","current_status":"SHIPPED","shipment_status_id":6}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", "hook-secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "status updated")
	processor.AssertExpectations(t)
}

func TestTrackingWebhookAlwaysAnswers200(t *testing.T) {
	processor := new(MockWebhookProcessor)
	processor.On("Handle", mock.Anything, "", mock.Anything).
		Return(models.WebhookAck{Success: false, Error: "unauthorized"})
	router := setupWebhookRouter(processor)

	rejected := perform(router, http.MethodPost, "/webhooks/tracking", gin.H{"awb": "AWB-1"})
	assert.Equal(t, http.StatusOK, rejected.Code)
	assert.Contains(t, rejected.Body.String(), "unauthorized")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/tracking", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "invalid payload")
	processor.AssertNumberOfCalls(t, "Handle", 1)
}

func TestWebhookProbe(t *testing.T) {
	router := setupWebhookRouter(new(MockWebhookProcessor))

	w := perform(router, http.MethodGet, "/webhooks/tracking", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
}

func TestTrackingWebhookAcceptsNumericAndQuotedFields(t *testing.T) {
	processor := new(MockWebhookProcessor)
	processor.On("Handle", mock.Anything, "", mock.MatchedBy(func(p *models.TrackingWebhookPayload) bool {
		return p.AWBCode() == "19041424751540" && p.StatusCode() == 7 && int(p.CurrentStatusID) == 7 && string(p.SROrderID) == "3210"
	})).Return(models.WebhookAck{Success: true, Message: "status updated"})
	router := setupWebhookRouter(processor)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/tracking",
		bytes.NewBufferString(`{"awb":19041424751540,"current_status_id":"7","shipment_status_id":7,"sr_order_id":3210}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "status updated")
	processor.AssertExpectations(t)
}
