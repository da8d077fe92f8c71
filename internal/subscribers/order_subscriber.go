package subscribers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	gosharedevents "github.com/Tesseract-Nexus/go-shared/events"
	"github.com/sirupsen/logrus"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/models"
)

const defaultNATSURL = "nats://nats.nats.svc.cluster.local:4222"

// ShipmentCreator creates the aggregator shipment for an order
type ShipmentCreator interface {
	CreateShipment(ctx context.Context, orderID string) (*models.CreateShipmentResponse, error)
}

// SettingsSource provides the operational shipment settings
type SettingsSource interface {
	Operational(ctx context.Context) (*models.ShipmentSettings, error)
}

// OrderSubscriber creates shipments for confirmed orders when auto-create is
// switched on in settings
type OrderSubscriber struct {
	subscriber *gosharedevents.Subscriber
	subscribe  func(ctx context.Context) error
	creator    ShipmentCreator
	settings   SettingsSource
	logger     *logrus.Entry

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

var errSubscriberStopped = errors.New("order subscriber stopped")

var orderSubjects = []string{gosharedevents.OrderConfirmed}

// NewOrderSubscriber creates a new order event subscriber
func NewOrderSubscriber(
	natsURL string,
	creator ShipmentCreator,
	settings SettingsSource,
	logger *logrus.Logger,
) (*OrderSubscriber, error) {
	if natsURL == "" {
		natsURL = defaultNATSURL
	}

	config := gosharedevents.DefaultSubscriberConfig(natsURL, "shipment-orchestrator-auto-create")
	config.Name = "shipment-orchestrator-order-subscriber"
	config.DeliverPolicy = "new"
	config.MaxDeliver = 5
	config.AckWait = 60 * time.Second

	subscriber, err := gosharedevents.NewSubscriber(config, logger)
	if err != nil {
		return nil, err
	}

	return newOrderSubscriber(subscriber, creator, settings, logger.WithField("component", "order-subscriber")), nil
}

func newOrderSubscriber(subscriber *gosharedevents.Subscriber, creator ShipmentCreator, settings SettingsSource, logger *logrus.Entry) *OrderSubscriber {
	s := &OrderSubscriber{
		subscriber: subscriber,
		creator:    creator,
		settings:   settings,
		logger:     logger,
	}
	if subscriber != nil {
		s.subscribe = func(ctx context.Context) error {
			// The stream is owned by orders-service
			return subscriber.Subscribe(ctx, gosharedevents.StreamOrders, orderSubjects, s.handleMessage)
		}
	}
	return s
}

// Start starts listening for order confirmations. Start after Stop is an error.
func (s *OrderSubscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return errSubscriberStopped
	}
	if s.subscribe == nil {
		s.mu.Unlock()
		return errors.New("order subscriber has no connection")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.subscribe(ctx); err != nil {
		cancel()
		return err
	}

	s.logger.WithField("subjects", orderSubjects).Info("Order subscriber started")
	return nil
}

func (s *OrderSubscriber) handleMessage(ctx context.Context, msg *gosharedevents.Message) error {
	return s.HandleOrderConfirmed(ctx, msg.Data)
}

// HandleOrderConfirmed processes one order.confirmed payload. A returned
// error asks for redelivery, so only transient failures are returned.
func (s *OrderSubscriber) HandleOrderConfirmed(ctx context.Context, data []byte) error {
	var event gosharedevents.OrderEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.WithError(err).Error("Failed to unmarshal order event")
		return nil
	}
	if event.OrderID == "" {
		s.logger.Warn("Order event without order id skipped")
		return nil
	}

	logger := s.logger.WithFields(logrus.Fields{
		"order_id":  event.OrderID,
		"tenant_id": event.TenantID,
	})

	settings, err := s.settings.Operational(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to load shipment settings")
		return err
	}
	if !settings.Enabled || !settings.AutoCreateOrder {
		logger.Debug("Auto-create disabled, order event ignored")
		return nil
	}

	result, err := s.creator.CreateShipment(ctx, event.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidState),
			errors.Is(err, apperrors.ErrConfiguration),
			errors.Is(err, apperrors.ErrValidation),
			errors.Is(err, apperrors.ErrNotFound):
			logger.WithError(err).Warn("Auto-create skipped")
			return nil
		case errors.Is(err, apperrors.ErrUnknownOutcome):
			// a retry could create a second aggregator order
			logger.WithError(err).Error("Auto-create outcome unknown, sync the order manually")
			return nil
		}
		logger.WithError(err).Error("Auto-create failed")
		return err
	}

	logger.WithField("warnings", len(result.Warnings)).Info("Shipment auto-created")
	return nil
}

// Stop stops the subscriber. It is safe to call concurrently with Start.
func (s *OrderSubscriber) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s.subscriber != nil {
		s.subscriber.Close()
	}
}
