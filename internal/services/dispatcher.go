package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"shipment-orchestrator/internal/models"
)

// dispatcher fans lifecycle outcomes out to the notifier and the event bus.
// Both are best-effort; failures are logged and swallowed.
type dispatcher struct {
	notifier  Notifier
	publisher EventPublisher
	logger    *logrus.Entry
}

func newDispatcher(notifier Notifier, publisher EventPublisher, logger *logrus.Entry) dispatcher {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return dispatcher{notifier: notifier, publisher: publisher, logger: logger}
}

func (d dispatcher) notify(ctx context.Context, order *models.Order, title, message string, metadata map[string]interface{}) {
	if order.UserID == "" {
		return
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["orderId"] = order.ID
	if order.AWBCode != nil {
		metadata["awbCode"] = *order.AWBCode
	}

	err := d.notifier.Notify(ctx, Notification{
		UserID:   order.UserID,
		OrderID:  order.ID,
		Title:    title,
		Message:  message,
		Metadata: metadata,
	})
	if err != nil {
		d.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to send shipment notification")
	}
}

func (d dispatcher) publish(ctx context.Context, eventType string, order *models.Order, metadata map[string]interface{}) {
	if err := d.publisher.PublishShipmentEvent(ctx, eventType, order, metadata); err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"order_id":   order.ID,
			"event_type": eventType,
		}).Warn("Failed to publish shipment event")
	}
}
