package events

import (
	"context"
	"time"

	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/sirupsen/logrus"

	"shipment-orchestrator/internal/models"
)

const (
	// StreamShipping is the JetStream stream for shipment events
	StreamShipping = "SHIPPING_EVENTS"

	defaultNATSURL = "nats://nats.nats.svc.cluster.local:4222"
)

// ShipmentEvent represents a shipment lifecycle event
type ShipmentEvent struct {
	events.BaseEvent
	OrderID           string                 `json:"orderId"`
	UserID            string                 `json:"userId,omitempty"`
	OrderStatus       string                 `json:"orderStatus"`
	CourierOrderID    string                 `json:"courierOrderId,omitempty"`
	CourierShipmentID string                 `json:"courierShipmentId,omitempty"`
	AWBCode           string                 `json:"awbCode,omitempty"`
	CourierName       string                 `json:"courierName,omitempty"`
	CourierStatus     string                 `json:"courierStatus,omitempty"`
	TrackingURL       string                 `json:"trackingUrl,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

func (e *ShipmentEvent) GetSubject() string {
	return e.EventType
}

func (e *ShipmentEvent) GetStream() string {
	return StreamShipping
}

// Publisher wraps the shared events publisher for shipment events
type Publisher struct {
	publisher *events.Publisher
	tenantID  string
	logger    *logrus.Entry
}

// NewPublisher creates a new shipment events publisher
func NewPublisher(natsURL, tenantID string, logger *logrus.Logger) (*Publisher, error) {
	if natsURL == "" {
		natsURL = defaultNATSURL
	}

	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "shipment-orchestrator"

	publisher, err := events.NewPublisher(config, logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := publisher.EnsureStream(ctx, StreamShipping, []string{"shipment.>"}); err != nil {
		logger.WithError(err).Warn("Failed to ensure SHIPPING_EVENTS stream")
	}

	return &Publisher{
		publisher: publisher,
		tenantID:  tenantID,
		logger:    logger.WithField("component", "events.publisher"),
	}, nil
}

// NewShipmentEvent builds the event for an order snapshot
func NewShipmentEvent(eventType, tenantID string, order *models.Order, metadata map[string]interface{}) *ShipmentEvent {
	return &ShipmentEvent{
		BaseEvent: events.BaseEvent{
			EventType: eventType,
			TenantID:  tenantID,
			Timestamp: time.Now().UTC(),
		},
		OrderID:           order.ID,
		UserID:            order.UserID,
		OrderStatus:       string(order.Status),
		CourierOrderID:    deref(order.CourierOrderID),
		CourierShipmentID: deref(order.CourierShipmentID),
		AWBCode:           deref(order.AWBCode),
		CourierName:       deref(order.CourierName),
		CourierStatus:     deref(order.CourierStatus),
		TrackingURL:       deref(order.TrackingURL),
		Metadata:          metadata,
	}
}

// PublishShipmentEvent publishes a shipment lifecycle event
func (p *Publisher) PublishShipmentEvent(ctx context.Context, eventType string, order *models.Order, metadata map[string]interface{}) error {
	event := NewShipmentEvent(eventType, p.tenantID, order, metadata)
	if err := p.publisher.Publish(ctx, event); err != nil {
		return err
	}
	p.logger.WithFields(logrus.Fields{
		"event_type": eventType,
		"order_id":   order.ID,
	}).Debug("Shipment event published")
	return nil
}

// IsConnected returns true if connected to NATS
func (p *Publisher) IsConnected() bool {
	return p.publisher.IsConnected()
}

// Close closes the publisher connection
func (p *Publisher) Close() {
	p.publisher.Close()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
