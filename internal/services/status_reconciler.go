package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/models"
	"shipment-orchestrator/internal/repository"
	"shipment-orchestrator/internal/telemetry"
)

// Sources of status updates
const (
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
	SourceTrack   = "track"
	SourceSync    = "sync"
)

// StatusUpdate is a courier status report from any ingestion path
type StatusUpdate struct {
	AWBCode     string
	StatusCode  int
	StatusLabel string
	TrackingURL string
	ETD         *time.Time
	CourierName string
	Source      string
}

// ReconcileResult describes what an update changed
type ReconcileResult struct {
	OrderID               string             `json:"orderId"`
	CourierStatus         string             `json:"courierStatus,omitempty"`
	PreviousCourierStatus string             `json:"previousCourierStatus,omitempty"`
	OrderStatus           models.OrderStatus `json:"orderStatus"`
	StatusChanged         bool               `json:"statusChanged"`
}

var statusMessages = map[models.OrderStatus][2]string{
	models.OrderStatusShipped:   {"Order shipped", "Your order is on its way."},
	models.OrderStatusDelivered: {"Order delivered", "Your order has been delivered."},
	models.OrderStatusCancelled: {"Shipment cancelled", "The shipment for your order has been cancelled."},
}

// StatusReconciler applies courier status reports to orders. Webhooks,
// polling, live tracking and sync all go through Apply, so they cannot
// diverge for the same event.
type StatusReconciler struct {
	orders  repository.OrderRepository
	table   *StatusTable
	metrics *telemetry.Metrics
	dispatcher
}

// NewStatusReconciler creates a new status reconciler
func NewStatusReconciler(
	orders repository.OrderRepository,
	table *StatusTable,
	notifier Notifier,
	publisher EventPublisher,
	metrics *telemetry.Metrics,
	logger *logrus.Entry,
) *StatusReconciler {
	if table == nil {
		table = DefaultStatusTable()
	}
	logger = logger.WithField("component", "status-reconciler")
	return &StatusReconciler{
		orders:     orders,
		table:      table,
		metrics:    metrics,
		dispatcher: newDispatcher(notifier, publisher, logger),
	}
}

// Table returns the code table in use
func (r *StatusReconciler) Table() *StatusTable {
	return r.table
}

// ApplyByAWB looks the order up by AWB and applies the update
func (r *StatusReconciler) ApplyByAWB(ctx context.Context, update StatusUpdate) (*ReconcileResult, error) {
	if update.AWBCode == "" {
		return nil, apperrors.NewValidationError("AWB is required")
	}
	order, err := r.orders.GetByAWB(ctx, update.AWBCode)
	if err != nil {
		return nil, err
	}
	return r.Apply(ctx, order, update)
}

// Apply writes the courier-reported fields last-write-wins and advances
// order.status only forward, or to cancelled. order is updated in place.
func (r *StatusReconciler) Apply(ctx context.Context, order *models.Order, update StatusUpdate) (*ReconcileResult, error) {
	result := &ReconcileResult{
		OrderID:               order.ID,
		PreviousCourierStatus: string(order.CurrentCourierStatus()),
		OrderStatus:           order.Status,
	}

	mapping, known := r.table.Resolve(update.StatusCode, update.StatusLabel)

	var tracking repository.TrackingUpdate
	if known {
		label := mapping.Label
		current := order.CurrentCourierStatus()
		// a late non-terminal report must not reopen a finished shipment
		if current.IsTerminal() && !models.CourierStatus(label).IsTerminal() {
			r.logger.WithFields(logrus.Fields{
				"order_id":       order.ID,
				"courier_status": current,
				"reported":       label,
				"source":         update.Source,
			}).Info("Ignoring non-terminal status for finished shipment")
		} else {
			tracking.CourierStatus = &label
		}
	}
	if update.TrackingURL != "" {
		tracking.TrackingURL = &update.TrackingURL
	}
	if update.ETD != nil {
		tracking.EstimatedDeliveryDate = update.ETD
	}
	if update.CourierName != "" {
		tracking.CourierName = &update.CourierName
	}

	if err := r.orders.UpdateTracking(ctx, order.ID, tracking); err != nil {
		return nil, err
	}
	applyTracking(order, tracking)
	result.CourierStatus = string(order.CurrentCourierStatus())

	if !known || mapping.OrderStatus == "" || !order.Status.CanAdvanceTo(mapping.OrderStatus) {
		return result, nil
	}

	changed, err := r.orders.TransitionStatus(ctx, order.ID, mapping.OrderStatus)
	if err != nil {
		return nil, err
	}
	if !changed {
		// another writer got there first
		return result, nil
	}

	previous := order.Status
	order.Status = mapping.OrderStatus
	result.OrderStatus = order.Status
	result.StatusChanged = true

	r.metrics.RecordStatusTransition(string(mapping.OrderStatus), update.Source)
	r.logger.WithFields(logrus.Fields{
		"order_id":       order.ID,
		"from":           previous,
		"to":             order.Status,
		"courier_status": result.CourierStatus,
		"source":         update.Source,
	}).Info("Order status advanced from courier update")

	metadata := map[string]interface{}{
		"previousStatus": string(previous),
		"status":         string(order.Status),
		"courierStatus":  result.CourierStatus,
		"source":         update.Source,
	}
	if msg, ok := statusMessages[order.Status]; ok {
		r.notify(ctx, order, msg[0], msg[1], map[string]interface{}{"status": string(order.Status)})
	}
	r.publish(ctx, EventShipmentStatusChanged, order, metadata)
	return result, nil
}

func applyTracking(order *models.Order, u repository.TrackingUpdate) {
	if u.CourierStatus != nil {
		order.CourierStatus = u.CourierStatus
	}
	if u.TrackingURL != nil {
		order.TrackingURL = u.TrackingURL
	}
	if u.EstimatedDeliveryDate != nil {
		order.EstimatedDeliveryDate = u.EstimatedDeliveryDate
	}
	if u.CourierName != nil {
		order.CourierName = u.CourierName
	}
}
