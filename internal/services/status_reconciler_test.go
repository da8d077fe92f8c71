package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/models"
)

func newTestReconciler(orders ...*models.Order) (*StatusReconciler, *memOrderRepo, *recordingNotifier, *recordingPublisher) {
	repo := newMemOrderRepo(orders...)
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}
	return NewStatusReconciler(repo, nil, notifier, publisher, nil, discardLogger()), repo, notifier, publisher
}

func TestReconcilerAdvancesAndNotifiesOnce(t *testing.T) {
	r, repo, notifier, publisher := newTestReconciler(withAWB(linkedOrder("o1"), "AWB-1", models.CourierStatusAWBAssigned))
	update := StatusUpdate{AWBCode: "AWB-1", StatusCode: 6, StatusLabel: "Shipped", Source: SourceWebhook}

	res, err := r.ApplyByAWB(context.Background(), update)
	require.NoError(t, err)
	assert.True(t, res.StatusChanged)
	assert.Equal(t, models.OrderStatusShipped, res.OrderStatus)
	assert.Equal(t, "SHIPPED", res.CourierStatus)
	assert.Equal(t, "AWB_ASSIGNED", res.PreviousCourierStatus)

	res, err = r.ApplyByAWB(context.Background(), update)
	require.NoError(t, err)
	assert.False(t, res.StatusChanged)

	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, "Order shipped", notifier.sent[0].Title)
	assert.True(t, publisher.has(EventShipmentStatusChanged))
	assert.Equal(t, models.OrderStatusShipped, repo.get("o1").Status)
}

func TestReconcilerNeverRegressesStatus(t *testing.T) {
	order := withAWB(linkedOrder("o1"), "AWB-1", models.CourierStatusOutForDelivery)
	order.Status = models.OrderStatusShipped
	r, repo, notifier, _ := newTestReconciler(order)

	res, err := r.ApplyByAWB(context.Background(), StatusUpdate{AWBCode: "AWB-1", StatusCode: 42, Source: SourcePoll})
	require.NoError(t, err)

	assert.False(t, res.StatusChanged)
	assert.Equal(t, models.OrderStatusShipped, res.OrderStatus)
	assert.Equal(t, "PICKED_UP", *repo.get("o1").CourierStatus)
	assert.Equal(t, 0, notifier.count())
}

func TestReconcilerIgnoresLateReportAfterDelivery(t *testing.T) {
	order := withAWB(linkedOrder("o1"), "AWB-1", models.CourierStatusDelivered)
	order.Status = models.OrderStatusDelivered
	r, repo, notifier, _ := newTestReconciler(order)

	res, err := r.ApplyByAWB(context.Background(), StatusUpdate{AWBCode: "AWB-1", StatusCode: 18, Source: SourceWebhook})
	require.NoError(t, err)

	assert.False(t, res.StatusChanged)
	assert.Equal(t, "DELIVERED", res.CourierStatus)
	stored := repo.get("o1")
	assert.Equal(t, "DELIVERED", *stored.CourierStatus)
	assert.Equal(t, models.OrderStatusDelivered, stored.Status)
	assert.Equal(t, 0, notifier.count())
}

func TestReconcilerCancelsFromAnyActiveStatus(t *testing.T) {
	order := withAWB(linkedOrder("o1"), "AWB-1", models.CourierStatusInTransit)
	order.Status = models.OrderStatusShipped
	r, repo, notifier, _ := newTestReconciler(order)

	res, err := r.ApplyByAWB(context.Background(), StatusUpdate{AWBCode: "AWB-1", StatusLabel: "Canceled", Source: SourceWebhook})
	require.NoError(t, err)

	assert.True(t, res.StatusChanged)
	assert.Equal(t, models.OrderStatusCancelled, repo.get("o1").Status)
	assert.Equal(t, "CANCELLED", *repo.get("o1").CourierStatus)
	assert.Equal(t, 1, notifier.count())
}

func TestReconcilerRecordsUnknownLabel(t *testing.T) {
	r, repo, _, _ := newTestReconciler(withAWB(linkedOrder("o1"), "AWB-1", models.CourierStatusAWBAssigned))

	res, err := r.ApplyByAWB(context.Background(), StatusUpdate{
		AWBCode:     "AWB-1",
		StatusLabel: "Held at customs",
		TrackingURL: "https://track.example.com/AWB-1",
		Source:      SourceWebhook,
	})
	require.NoError(t, err)

	assert.False(t, res.StatusChanged)
	stored := repo.get("o1")
	assert.Equal(t, "HELD_AT_CUSTOMS", *stored.CourierStatus)
	assert.Equal(t, "https://track.example.com/AWB-1", *stored.TrackingURL)
	assert.Equal(t, models.OrderStatusProcessing, stored.Status)
}

func TestReconcilerNotificationFailureDoesNotFailUpdate(t *testing.T) {
	r, repo, notifier, _ := newTestReconciler(withAWB(linkedOrder("o1"), "AWB-1", models.CourierStatusAWBAssigned))
	notifier.err = errors.New("notification service down")

	res, err := r.ApplyByAWB(context.Background(), StatusUpdate{AWBCode: "AWB-1", StatusCode: 7, Source: SourceWebhook})
	require.NoError(t, err)

	assert.True(t, res.StatusChanged)
	assert.Equal(t, models.OrderStatusDelivered, repo.get("o1").Status)
}

func TestReconcilerApplyByAWBErrors(t *testing.T) {
	r, _, _, _ := newTestReconciler()

	_, err := r.ApplyByAWB(context.Background(), StatusUpdate{})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = r.ApplyByAWB(context.Background(), StatusUpdate{AWBCode: "UNKNOWN", StatusCode: 6})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
