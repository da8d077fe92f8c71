package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/carriers"
	"shipment-orchestrator/internal/models"
)

func TestCreateShipmentBuildsPayloadAndLinksOrder(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), newTestOrder("o1"))

	resp, err := f.service.CreateShipment(context.Background(), "o1")
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "SR-1", resp.Shiprocket.OrderID)
	assert.Equal(t, "SH-1", resp.Shiprocket.ShipmentID)
	assert.Nil(t, resp.AutoAWB)
	assert.Nil(t, resp.AutoPickup)

	payload := f.gateway.lastPayload
	require.NotNil(t, payload)
	assert.Equal(t, "o1", payload.OrderID)
	assert.Equal(t, "Primary", payload.PickupLocation)
	assert.Equal(t, "2024-05-01 12:00", payload.OrderDate)
	assert.Equal(t, 900.0, payload.SubTotal)
	assert.Equal(t, 0.0, payload.ShippingCharges)
	assert.Equal(t, 0.0, payload.TotalDiscount)
	assert.Equal(t, "COD", payload.PaymentMethod)
	assert.Equal(t, "9876543210", payload.BillingPhone)
	assert.Equal(t, "Asha", payload.BillingCustomerName)
	assert.Equal(t, "Verma", payload.BillingLastName)

	stored := f.orders.get("o1")
	assert.Equal(t, "SR-1", *stored.CourierOrderID)
	assert.Equal(t, "SH-1", *stored.CourierShipmentID)
	assert.Nil(t, stored.AWBCode)
	assert.Equal(t, models.OrderStatusConfirmed, stored.Status)
	assert.Equal(t, models.ShipmentStateAggregatorOrderCreated, stored.ShipmentState())
	assert.True(t, f.publisher.has(EventShipmentCreated))
}

func TestCreateShipmentTwiceIsRejectedBeforeCallingAggregator(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), newTestOrder("o1"))

	_, err := f.service.CreateShipment(context.Background(), "o1")
	require.NoError(t, err)

	_, err = f.service.CreateShipment(context.Background(), "o1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
	assert.Equal(t, 1, f.gateway.count("create"))
}

func TestCreateShipmentUnrecordedAggregatorOrderIsUnknownOutcome(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), newTestOrder("o1"))
	f.orders.saveErr = errors.New("connection reset by peer")

	_, err := f.service.CreateShipment(context.Background(), "o1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnknownOutcome))
	assert.Equal(t, "SR-1", apperrors.PublicDetails(err)["courierOrderId"])
	assert.Equal(t, 1, f.gateway.count("create"))
	assert.False(t, f.publisher.has(EventShipmentCreated))
}

func TestCreateShipmentRequiresEnabledIntegration(t *testing.T) {
	settings := enabledSettings()
	settings.Enabled = false
	f := newLifecycleFixture(settings, newTestOrder("o1"))

	_, err := f.service.CreateShipment(context.Background(), "o1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
	assert.Equal(t, 0, f.gateway.count("locations"))
	assert.Equal(t, 0, f.gateway.count("create"))
}

func TestCreateShipmentUnknownOrder(t *testing.T) {
	f := newLifecycleFixture(enabledSettings())

	_, err := f.service.CreateShipment(context.Background(), "missing")

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCreateShipmentAutoAWBFailureKeepsOrder(t *testing.T) {
	settings := enabledSettings()
	settings.AutoAssignCourier = true
	settings.AutoSchedulePickup = true
	f := newLifecycleFixture(settings, newTestOrder("o1"))
	f.gateway.awbErr = apperrors.NewAggregatorError("no courier available")

	resp, err := f.service.CreateShipment(context.Background(), "o1")
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.NotNil(t, resp.AutoAWB)
	assert.False(t, resp.AutoAWB.Success)
	assert.Equal(t, string(apperrors.KindAggregator), resp.AutoAWB.ErrorCode)
	assert.Nil(t, resp.AutoPickup)

	stored := f.orders.get("o1")
	assert.Equal(t, "SR-1", *stored.CourierOrderID)
	assert.Nil(t, stored.AWBCode)
	assert.Equal(t, 0, f.gateway.count("pickup"))
}

func TestCreateShipmentAutoStepsPickCheapestAndSchedulePickup(t *testing.T) {
	settings := enabledSettings()
	settings.AutoAssignCourier = true
	settings.AutoSchedulePickup = true
	f := newLifecycleFixture(settings, newTestOrder("o1"))
	f.gateway.serviceability = &carriers.ServiceabilityResult{
		Available: true,
		Couriers: []models.CourierQuote{
			{CourierID: 3, CourierName: "Xpressbees", FreightCharge: 120, CODCharges: 30, EstimatedDeliveryDays: "2"},
			{CourierID: 5, CourierName: "Delhivery", FreightCharge: 90, CODCharges: 20, EstimatedDeliveryDays: "4"},
		},
	}

	resp, err := f.service.CreateShipment(context.Background(), "o1")
	require.NoError(t, err)

	require.NotNil(t, resp.AutoAWB)
	assert.True(t, resp.AutoAWB.Success)
	assert.Equal(t, "AWB-1", resp.AutoAWB.AWBCode)
	assert.Equal(t, "AWB-1", resp.Shiprocket.AWBCode)
	require.Len(t, f.gateway.awbCourierIDs, 1)
	require.NotNil(t, f.gateway.awbCourierIDs[0])
	assert.Equal(t, 5, *f.gateway.awbCourierIDs[0])

	require.NotNil(t, resp.AutoPickup)
	assert.True(t, resp.AutoPickup.Success)
	assert.Equal(t, "PK-1", resp.AutoPickup.PickupToken)

	stored := f.orders.get("o1")
	assert.Equal(t, models.OrderStatusProcessing, stored.Status)
	assert.Equal(t, string(models.CourierStatusPickupScheduled), *stored.CourierStatus)
}

func TestCreateShipmentRereadsMissingShipmentID(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), newTestOrder("o1"))
	f.gateway.created = &carriers.CreateOrderResult{CourierOrderID: "SR-1", Status: "NEW"}
	f.gateway.details = &carriers.OrderDetails{CourierOrderID: "SR-1", ShipmentID: "SH-9", Status: "NEW"}

	resp, err := f.service.CreateShipment(context.Background(), "o1")
	require.NoError(t, err)

	assert.Equal(t, "SH-9", resp.Shiprocket.ShipmentID)
	assert.Empty(t, resp.Warnings)
	assert.Equal(t, 1, f.gateway.count("details"))
	assert.Equal(t, "SH-9", *f.orders.get("o1").CourierShipmentID)
}

func TestCreateShipmentWarnsWhenShipmentIDUnavailable(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), newTestOrder("o1"))
	f.gateway.created = &carriers.CreateOrderResult{CourierOrderID: "SR-1", Status: "NEW"}
	f.gateway.detailsErr = apperrors.NewAggregatorError("upstream 500")

	resp, err := f.service.CreateShipment(context.Background(), "o1")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Warnings)
	stored := f.orders.get("o1")
	assert.Equal(t, "SR-1", *stored.CourierOrderID)
	assert.Nil(t, stored.CourierShipmentID)
}

func TestAssignAWBOnlyOnce(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), linkedOrder("o2"))

	resp, err := f.service.AssignAWB(context.Background(), "o2", models.AssignAWBRequest{CourierID: intPtr(11)})
	require.NoError(t, err)

	assert.Equal(t, "AWB-1", resp.AWBCode)
	assert.Equal(t, 11, resp.CourierID)
	assert.Equal(t, models.OrderStatusProcessing, resp.OrderStatus)
	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "user-o2", f.notifier.sent[0].UserID)
	assert.True(t, f.publisher.has(EventShipmentAWBAssigned))

	_, err = f.service.AssignAWB(context.Background(), "o2", models.AssignAWBRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
	assert.Equal(t, 1, f.gateway.count("awb"))
	assert.Equal(t, "AWB-1", *f.orders.get("o2").AWBCode)
}

func TestAssignAWBLosingRaceKeepsFirstAWB(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), linkedOrder("o2"))
	stale := f.orders.get("o2")

	_, err := f.service.AssignAWB(context.Background(), "o2", models.AssignAWBRequest{})
	require.NoError(t, err)

	_, err = f.service.assign(context.Background(), stale, enabledSettings(), nil, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
	assert.Equal(t, "AWB-1", *f.orders.get("o2").AWBCode)
	assert.Equal(t, 1, f.notifier.count())
}

func TestAssignAWBWithoutShipment(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), newTestOrder("o1"))

	_, err := f.service.AssignAWB(context.Background(), "o1", models.AssignAWBRequest{})

	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
	assert.Equal(t, 0, f.gateway.count("awb"))
}

func TestAssignAWBFallsBackToAggregatorChoiceWhenRateShoppingFails(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), linkedOrder("o2"))
	f.gateway.serviceErr = apperrors.NewAggregatorError("serviceability down")

	resp, err := f.service.AssignAWB(context.Background(), "o2", models.AssignAWBRequest{SelectCheapest: true})
	require.NoError(t, err)

	assert.Equal(t, "AWB-1", resp.AWBCode)
	require.Len(t, f.gateway.awbCourierIDs, 1)
	assert.Nil(t, f.gateway.awbCourierIDs[0])
}

func TestCancelShipmentResetsForReassignment(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), withAWB(linkedOrder("o3"), "AWB-OLD", models.CourierStatusAWBAssigned))

	resp, err := f.service.Cancel(context.Background(), "o3", models.CancelRequest{Mode: models.CancelModeShipment})
	require.NoError(t, err)

	assert.Equal(t, models.CancelModeShipment, resp.Mode)
	assert.Equal(t, models.OrderStatusConfirmed, resp.OrderStatus)
	assert.Equal(t, string(models.CourierStatusNew), resp.CourierStatus)

	stored := f.orders.get("o3")
	assert.Nil(t, stored.AWBCode)
	assert.Equal(t, "SR-o3", *stored.CourierOrderID)
	assert.Equal(t, 1, f.gateway.count("cancel_shipment"))
	assert.Equal(t, 0, f.gateway.count("cancel_order"))
	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "Shipment cancelled", f.notifier.sent[0].Title)
	assert.True(t, f.publisher.has(EventShipmentCancelled))

	assigned, err := f.service.AssignAWB(context.Background(), "o3", models.AssignAWBRequest{})
	require.NoError(t, err)
	assert.Equal(t, "AWB-1", assigned.AWBCode)
	assert.Equal(t, models.OrderStatusProcessing, f.orders.get("o3").Status)
}

func TestCancelMovingParcelRequiresForce(t *testing.T) {
	order := withAWB(linkedOrder("o4"), "AWB-4", models.CourierStatusInTransit)
	order.Status = models.OrderStatusShipped
	f := newLifecycleFixture(enabledSettings(), order)

	_, err := f.service.Cancel(context.Background(), "o4", models.CancelRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrRequiresConfirmation))
	assert.Equal(t, "IN_TRANSIT", apperrors.PublicDetails(err)["currentStatus"])
	assert.Equal(t, 0, f.gateway.count("cancel_order"))

	resp, err := f.service.Cancel(context.Background(), "o4", models.CancelRequest{Force: true})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, resp.OrderStatus)
	assert.Equal(t, string(models.CourierStatusCancelled), resp.CourierStatus)
	assert.Equal(t, 1, f.notifier.count())
	assert.True(t, f.publisher.has(EventShipmentCancelled))

	stored := f.orders.get("o4")
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)

	_, err = f.service.Cancel(context.Background(), "o4", models.CancelRequest{Force: true})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
	assert.Equal(t, 1, f.gateway.count("cancel_order"))
}

func TestCancelRejectsUnknownMode(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), linkedOrder("o1"))

	_, err := f.service.Cancel(context.Background(), "o1", models.CancelRequest{Mode: "everything"})

	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestCancelAggregatorFailureLeavesOrderUntouched(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), linkedOrder("o1"))
	f.gateway.cancelErr = apperrors.NewAggregatorError("cannot cancel")

	_, err := f.service.Cancel(context.Background(), "o1", models.CancelRequest{})

	assert.True(t, errors.Is(err, apperrors.ErrAggregator))
	assert.Equal(t, models.OrderStatusConfirmed, f.orders.get("o1").Status)
}

func TestSchedulePickupOnce(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), withAWB(linkedOrder("o5"), "AWB-5", models.CourierStatusAWBAssigned))

	resp, err := f.service.SchedulePickup(context.Background(), "o5")
	require.NoError(t, err)
	assert.Equal(t, "PK-1", resp.PickupToken)

	stored := f.orders.get("o5")
	assert.Equal(t, string(models.CourierStatusPickupScheduled), *stored.CourierStatus)
	assert.Equal(t, models.ShipmentStatePickupScheduled, stored.ShipmentState())

	_, err = f.service.SchedulePickup(context.Background(), "o5")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
	assert.Equal(t, 1, f.gateway.count("pickup"))
}

func TestSchedulePickupRequiresAWB(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), linkedOrder("o5"))

	_, err := f.service.SchedulePickup(context.Background(), "o5")

	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
	assert.Equal(t, 0, f.gateway.count("pickup"))
}

func TestGetLabelCachesUnlessForced(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), withAWB(linkedOrder("o6"), "AWB-6", models.CourierStatusAWBAssigned))

	first, err := f.service.GetLabel(context.Background(), "o6", false)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "https://labels.example.com/SH-1.pdf", first.LabelURL)

	second, err := f.service.GetLabel(context.Background(), "o6", false)
	require.NoError(t, err)
	assert.True(t, second.Cached)

	_, err = f.service.GetLabel(context.Background(), "o6", true)
	require.NoError(t, err)
	assert.Equal(t, 2, f.gateway.count("label"))
}

func TestGetLabelRequiresAWB(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), linkedOrder("o6"))

	_, err := f.service.GetLabel(context.Background(), "o6", false)

	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
}

func TestTrackFallsBackToCachedState(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), withAWB(linkedOrder("o7"), "AWB-7", models.CourierStatusAWBAssigned))
	f.gateway.trackErr = apperrors.NewAggregatorError("tracking down")

	resp, err := f.service.Track(context.Background(), "o7")
	require.NoError(t, err)

	assert.Equal(t, models.TrackingSourceCached, resp.Source)
	assert.Equal(t, "AWB-7", resp.AWBCode)
	assert.Equal(t, "AWB_ASSIGNED", resp.CourierStatus)
	assert.Empty(t, resp.Events)
}

func TestTrackAppliesLiveStatus(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), withAWB(linkedOrder("o7"), "AWB-7", models.CourierStatusAWBAssigned))
	f.gateway.tracking = &carriers.TrackingResult{
		CurrentStatus:   "IN TRANSIT",
		CurrentStatusID: 18,
		TrackURL:        "https://track.example.com/AWB-7",
		Events:          []models.TrackingEvent{{Status: "In Transit", Activity: "Bag received", Location: "Delhi"}},
	}

	resp, err := f.service.Track(context.Background(), "o7")
	require.NoError(t, err)

	assert.Equal(t, models.TrackingSourceLive, resp.Source)
	assert.Equal(t, models.OrderStatusShipped, resp.OrderStatus)
	assert.Equal(t, "IN_TRANSIT", resp.CourierStatus)
	assert.Equal(t, "https://track.example.com/AWB-7", resp.TrackingURL)
	assert.Len(t, resp.Events, 1)

	stored := f.orders.get("o7")
	assert.Equal(t, models.OrderStatusShipped, stored.Status)
	assert.Equal(t, "IN_TRANSIT", *stored.CourierStatus)
	assert.Equal(t, 1, f.notifier.count())
}

func TestTrackWithoutAWBSkipsAggregator(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), linkedOrder("o7"))

	resp, err := f.service.Track(context.Background(), "o7")
	require.NoError(t, err)

	assert.Equal(t, models.TrackingSourceCached, resp.Source)
	assert.Equal(t, 0, f.gateway.count("track"))
}

func TestSyncFillsMissingFields(t *testing.T) {
	order := newTestOrder("o8")
	order.Status = models.OrderStatusConfirmed
	order.CourierOrderID = strPtr("SR-8")
	order.CourierStatus = strPtr(string(models.CourierStatusNew))
	f := newLifecycleFixture(enabledSettings(), order)
	f.gateway.details = &carriers.OrderDetails{
		CourierOrderID: "SR-8",
		ShipmentID:     "SH-8",
		AWBCode:        "AWB-8",
		CourierName:    "Blue Dart",
		Status:         "AWB ASSIGNED",
	}

	resp, err := f.service.Sync(context.Background(), "o8")
	require.NoError(t, err)

	assert.Equal(t, []string{"courierShipmentId", "awbCode"}, resp.Changes)
	require.NotNil(t, resp.Shipment)
	assert.Equal(t, models.ShipmentStateAWBAssigned, resp.Shipment.State)

	stored := f.orders.get("o8")
	assert.Equal(t, "SH-8", *stored.CourierShipmentID)
	assert.Equal(t, "AWB-8", *stored.AWBCode)
	assert.Equal(t, "Blue Dart", *stored.CourierName)
	assert.Equal(t, models.OrderStatusProcessing, stored.Status)

	again, err := f.service.Sync(context.Background(), "o8")
	require.NoError(t, err)
	assert.Empty(t, again.Changes)
}

func TestSyncWithoutAggregatorOrder(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), newTestOrder("o8"))

	_, err := f.service.Sync(context.Background(), "o8")

	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
	assert.Equal(t, 0, f.gateway.count("details"))
}

func TestCheckServiceability(t *testing.T) {
	f := newLifecycleFixture(enabledSettings())

	_, err := f.service.CheckServiceability(context.Background(), models.ServiceabilityCheckRequest{DeliveryPincode: "12"})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Equal(t, 0, f.gateway.count("serviceability"))

	resp, err := f.service.CheckServiceability(context.Background(), models.ServiceabilityCheckRequest{DeliveryPincode: "560001"})
	require.NoError(t, err)
	assert.False(t, resp.Available)
	assert.Empty(t, resp.Couriers)

	f.gateway.serviceability = &carriers.ServiceabilityResult{
		Available: true,
		Couriers: []models.CourierQuote{
			{CourierID: 1, FreightCharge: 120, EstimatedDeliveryDays: "5"},
			{CourierID: 2, FreightCharge: 130, EstimatedDeliveryDays: "2"},
		},
	}
	resp, err = f.service.CheckServiceability(context.Background(), models.ServiceabilityCheckRequest{DeliveryPincode: "560001"})
	require.NoError(t, err)
	assert.True(t, resp.Available)
	require.NotNil(t, resp.Cheapest)
	require.NotNil(t, resp.Fastest)
	assert.Equal(t, 1, resp.Cheapest.CourierID)
	assert.Equal(t, 2, resp.Fastest.CourierID)
}

func TestListCouriersUnserviceable(t *testing.T) {
	f := newLifecycleFixture(enabledSettings(), linkedOrder("o9"))

	_, err := f.service.ListCouriers(context.Background(), "o9")

	assert.True(t, errors.Is(err, apperrors.ErrNotServiceable))
}

func TestCheckServiceabilityNeedsPickupPincode(t *testing.T) {
	settings := enabledSettings()
	settings.PickupLocation.Pincode = ""
	f := newLifecycleFixture(settings)

	_, err := f.service.CheckServiceability(context.Background(), models.ServiceabilityCheckRequest{DeliveryPincode: "560001"})

	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
	assert.Equal(t, 0, f.gateway.count("serviceability"))
}
