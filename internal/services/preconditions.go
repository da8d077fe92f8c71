package services

import (
	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/models"
)

func checkNotFinished(order *models.Order) error {
	if status := order.CurrentCourierStatus(); status.IsTerminal() {
		return apperrors.NewInvalidStateError("shipment is already " + string(status)).
			WithDetail("courierStatus", string(status))
	}
	return nil
}

func checkCanCreate(order *models.Order) error {
	if order.HasCourierOrder() {
		return apperrors.NewInvalidStateError("shipment already created for this order").
			WithDetail("courierOrderId", *order.CourierOrderID)
	}
	switch order.Status {
	case models.OrderStatusPending, models.OrderStatusConfirmed, models.OrderStatusProcessing:
	default:
		return apperrors.NewInvalidStateError("cannot create a shipment for a " + string(order.Status) + " order")
	}
	return checkNotFinished(order)
}

func checkCanAssignAWB(order *models.Order) error {
	if !order.HasShipment() {
		return apperrors.NewInvalidStateError("aggregator shipment not created yet; create or sync the shipment first")
	}
	if order.HasAWB() {
		return apperrors.NewInvalidStateError("AWB already assigned").
			WithDetail("awbCode", *order.AWBCode)
	}
	if order.Status == models.OrderStatusCancelled || order.Status == models.OrderStatusDelivered {
		return apperrors.NewInvalidStateError("cannot assign a courier to a " + string(order.Status) + " order")
	}
	return checkNotFinished(order)
}

func checkCanSchedulePickup(order *models.Order) error {
	if !order.HasAWB() {
		return apperrors.NewInvalidStateError("no AWB assigned; assign a courier first")
	}
	if order.Status == models.OrderStatusCancelled || order.Status == models.OrderStatusDelivered {
		return apperrors.NewInvalidStateError("cannot schedule pickup for a " + string(order.Status) + " order")
	}
	if status := order.CurrentCourierStatus(); status.BlocksPickup() {
		return apperrors.NewInvalidStateError("cannot schedule pickup while shipment is " + string(status)).
			WithDetail("courierStatus", string(status))
	}
	if order.CurrentCourierStatus() == models.CourierStatusPickupScheduled {
		return apperrors.NewInvalidStateError("pickup already scheduled")
	}
	return nil
}

func checkCanCancelOrder(order *models.Order) error {
	if !order.HasCourierOrder() {
		return apperrors.NewInvalidStateError("no aggregator order to cancel")
	}
	if order.CurrentCourierStatus() == models.CourierStatusCancelled {
		return apperrors.NewInvalidStateError("shipment already cancelled")
	}
	return checkNotFinished(order)
}

func checkCanCancelShipment(order *models.Order) error {
	if !order.HasAWB() {
		return apperrors.NewInvalidStateError("no AWB to cancel")
	}
	return checkNotFinished(order)
}
