package services

import (
	"context"

	"shipment-orchestrator/internal/models"
)

// Notification is a customer-facing shipment message
type Notification struct {
	UserID   string
	OrderID  string
	Title    string
	Message  string
	Metadata map[string]interface{}
}

// Notifier delivers customer notifications. Failures never affect the
// shipment flow that triggered them.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// EventPublisher publishes shipment lifecycle events
type EventPublisher interface {
	PublishShipmentEvent(ctx context.Context, eventType string, order *models.Order, metadata map[string]interface{}) error
}

// Shipment event types
const (
	EventShipmentCreated         = "shipment.created"
	EventShipmentAWBAssigned     = "shipment.awb_assigned"
	EventShipmentPickupScheduled = "shipment.pickup_scheduled"
	EventShipmentCancelled       = "shipment.cancelled"
	EventShipmentStatusChanged   = "shipment.status_changed"
)

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) error { return nil }

type noopPublisher struct{}

func (noopPublisher) PublishShipmentEvent(context.Context, string, *models.Order, map[string]interface{}) error {
	return nil
}
