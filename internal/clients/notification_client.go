package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"shipment-orchestrator/internal/services"
)

const (
	defaultNotificationURL = "http://notification-service.devtest.svc.cluster.local:8090"
	serviceName            = "shipment-orchestrator"
)

// NotificationClient sends customer notifications via notification-service
type NotificationClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Entry
}

var _ services.Notifier = (*NotificationClient)(nil)

// NewNotificationClient creates a new notification client
func NewNotificationClient(baseURL string, logger *logrus.Logger) *NotificationClient {
	if baseURL == "" {
		baseURL = defaultNotificationURL
	}
	return &NotificationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.WithField("component", "notification-client"),
	}
}

// SendNotificationRequest represents the API request to notification-service
type SendNotificationRequest struct {
	Channel      string                 `json:"channel"`
	RecipientID  string                 `json:"recipientId"`
	Subject      string                 `json:"subject"`
	Body         string                 `json:"body"`
	TemplateName string                 `json:"templateName,omitempty"`
	Variables    map[string]interface{} `json:"variables,omitempty"`
}

// Notify sends an in-app shipment notification
func (c *NotificationClient) Notify(ctx context.Context, n services.Notification) error {
	if n.UserID == "" {
		c.logger.WithField("order_id", n.OrderID).Debug("Skipping notification - no recipient")
		return nil
	}

	req := SendNotificationRequest{
		Channel:      "in_app",
		RecipientID:  n.UserID,
		Subject:      n.Title,
		Body:         n.Message,
		TemplateName: "shipment_update",
		Variables:    n.Metadata,
	}
	if err := c.send(ctx, req); err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"order_id": n.OrderID,
		"subject":  n.Title,
	}).Debug("Notification sent")
	return nil
}

func (c *NotificationClient) send(ctx context.Context, req SendNotificationRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/notifications/send", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Internal-Service", serviceName)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification-service returned status %d", resp.StatusCode)
	}

	return nil
}
