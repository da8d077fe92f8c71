package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/carriers"
	"shipment-orchestrator/internal/models"
	"shipment-orchestrator/internal/repository"
)

// LifecycleService owns the order to shipment transitions. Preconditions are
// checked before any aggregator call, and every write is conditional so
// concurrent instances cannot both apply the same transition.
type LifecycleService struct {
	orders     repository.OrderRepository
	settings   SettingsSource
	gateway    carriers.Gateway
	shopper    *RateShopper
	reconciler *StatusReconciler
	now        func() time.Time
	logger     *logrus.Entry
	dispatcher
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(
	orders repository.OrderRepository,
	settings SettingsSource,
	gateway carriers.Gateway,
	reconciler *StatusReconciler,
	notifier Notifier,
	publisher EventPublisher,
	logger *logrus.Entry,
) *LifecycleService {
	logger = logger.WithField("component", "shipment-lifecycle")
	return &LifecycleService{
		orders:     orders,
		settings:   settings,
		gateway:    gateway,
		shopper:    NewRateShopper(gateway, logger),
		reconciler: reconciler,
		now:        time.Now,
		logger:     logger,
		dispatcher: newDispatcher(notifier, publisher, logger),
	}
}

// GetShipment returns the shipment fields of an order
func (s *LifecycleService) GetShipment(ctx context.Context, orderID string) (*models.ShipmentView, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order.ToShipmentView(), nil
}

// CreateShipment creates the aggregator order and, when enabled in settings,
// assigns a courier and schedules pickup. Failures of the optional steps are
// reported in the response and do not fail the call.
func (s *LifecycleService) CreateShipment(ctx context.Context, orderID string) (*models.CreateShipmentResponse, error) {
	settings, err := requireEnabled(ctx, s.settings)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := checkCanCreate(order); err != nil {
		return nil, err
	}

	locations, err := s.gateway.GetPickupLocations(ctx)
	if err != nil {
		return nil, err
	}
	pickup, err := ResolvePickupLocation(settings.PickupLocation.Pincode, locations)
	if err != nil {
		return nil, err
	}
	if pickup.PinCode != settings.PickupLocation.Pincode {
		s.logger.WithFields(logrus.Fields{
			"order_id":        order.ID,
			"pickup_location": pickup.PickupCode,
		}).Warn("Configured pickup pincode not registered; using first pickup location")
	}

	payload, err := BuildOrderPayload(order, settings, pickup, s.now())
	if err != nil {
		return nil, err
	}

	created, err := s.gateway.CreateOrder(ctx, payload)
	if err != nil {
		return nil, err
	}

	response := &models.CreateShipmentResponse{Success: true}

	// Some responses omit the shipment id; re-read the order once before giving up.
	if created.CourierShipmentID == "" {
		details, detailsErr := s.gateway.GetOrderDetails(ctx, created.CourierOrderID)
		if detailsErr != nil {
			s.logger.WithError(detailsErr).WithField("order_id", order.ID).
				Warn("Shipment id missing and order details fetch failed")
			response.Warnings = append(response.Warnings, "shipment id not yet available; run sync later")
		} else {
			created.CourierShipmentID = details.ShipmentID
			if created.AWBCode == "" {
				created.AWBCode = details.AWBCode
			}
			if created.CourierName == "" {
				created.CourierName = details.CourierName
			}
		}
	}

	courierStatus := string(models.CourierStatusNew)
	if created.CourierShipmentID != "" && created.AWBCode != "" {
		courierStatus = string(models.CourierStatusAWBAssigned)
	}
	saved, err := s.orders.SaveCourierOrder(ctx, order.ID, repository.CourierOrderLink{
		CourierOrderID:    created.CourierOrderID,
		CourierShipmentID: created.CourierShipmentID,
		AWBCode:           created.AWBCode,
		CourierID:         created.CourierID,
		CourierName:       created.CourierName,
		CourierStatus:     courierStatus,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"order_id":         order.ID,
			"courier_order_id": created.CourierOrderID,
		}).Error("Aggregator order created but not recorded")
		return nil, apperrors.New(apperrors.KindUnknownOutcome,
			fmt.Sprintf("aggregator order %s was created but not recorded; link it before retrying", created.CourierOrderID)).
			WithCause(err).
			WithDetail("operation", "create shipment").
			WithDetail("courierOrderId", created.CourierOrderID)
	}
	if !saved {
		s.logger.WithFields(logrus.Fields{
			"order_id":         order.ID,
			"courier_order_id": created.CourierOrderID,
		}).Warn("Aggregator order created but another request linked the order first")
		return nil, apperrors.NewInvalidStateError("shipment already created for this order")
	}

	if _, err := s.orders.TransitionStatus(ctx, order.ID, models.OrderStatusConfirmed); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to confirm order after shipment creation")
	}

	if fresh, err := s.orders.GetByID(ctx, order.ID); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to re-read order after shipment creation")
		applyCreated(order, created, courierStatus)
	} else {
		order = fresh
	}

	response.Shiprocket = models.AggregatorOrder{
		OrderID:     created.CourierOrderID,
		ShipmentID:  created.CourierShipmentID,
		Status:      created.Status,
		AWBCode:     derefString(order.AWBCode),
		CourierName: derefString(order.CourierName),
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":         order.ID,
		"courier_order_id": created.CourierOrderID,
		"shipment_id":      created.CourierShipmentID,
	}).Info("Aggregator order created")
	s.publish(ctx, EventShipmentCreated, order, map[string]interface{}{
		"courierOrderId": created.CourierOrderID,
		"shipmentId":     created.CourierShipmentID,
	})

	if settings.AutoAssignCourier && order.HasShipment() && !order.HasAWB() && !order.CurrentCourierStatus().IsTerminal() {
		response.AutoAWB = s.autoStep(func() (*models.StepOutcome, error) {
			res, err := s.assign(ctx, order, settings, nil, true)
			if err != nil {
				return nil, err
			}
			return &models.StepOutcome{Success: true, AWBCode: res.AWBCode, CourierID: res.CourierID, CourierName: res.CourierName}, nil
		})
		if response.AutoAWB.Success {
			response.Shiprocket.AWBCode = response.AutoAWB.AWBCode
			response.Shiprocket.CourierName = response.AutoAWB.CourierName
		}
	}

	if settings.AutoSchedulePickup && order.HasAWB() {
		response.AutoPickup = s.autoStep(func() (*models.StepOutcome, error) {
			current, err := s.orders.GetByID(ctx, order.ID)
			if err != nil {
				return nil, err
			}
			res, err := s.schedulePickup(ctx, current)
			if err != nil {
				return nil, err
			}
			return &models.StepOutcome{Success: true, PickupScheduledDate: res.PickupScheduledDate, PickupToken: res.PickupToken}, nil
		})
	}

	return response, nil
}

func (s *LifecycleService) autoStep(step func() (*models.StepOutcome, error)) *models.StepOutcome {
	outcome, err := step()
	if err != nil {
		s.logger.WithError(err).Warn("Automatic shipment step failed")
		return &models.StepOutcome{
			Success:   false,
			Error:     apperrors.PublicMessage(err),
			ErrorCode: string(apperrors.KindOf(err)),
		}
	}
	return outcome
}

// AssignAWB assigns a courier. Without an explicit courier and with
// selectCheapest set, the cheapest quote wins; otherwise the aggregator picks.
func (s *LifecycleService) AssignAWB(ctx context.Context, orderID string, req models.AssignAWBRequest) (*models.AWBAssignmentResponse, error) {
	settings, err := requireEnabled(ctx, s.settings)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.assign(ctx, order, settings, req.CourierID, req.SelectCheapest)
}

func (s *LifecycleService) assign(ctx context.Context, order *models.Order, settings *models.ShipmentSettings, courierID *int, selectCheapest bool) (*models.AWBAssignmentResponse, error) {
	if err := checkCanAssignAWB(order); err != nil {
		return nil, err
	}

	if courierID == nil && selectCheapest {
		choice, err := s.shopper.Cheapest(ctx, routeFor(order, settings))
		if err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).
				Warn("Rate shopping failed; letting the aggregator choose the courier")
		} else if choice != nil {
			id := choice.CourierID
			courierID = &id
		}
	}

	shipmentID := *order.CourierShipmentID
	res, err := s.gateway.GenerateAWB(ctx, shipmentID, courierID)
	if err != nil {
		return nil, err
	}

	assigned, err := s.orders.AssignAWB(ctx, order.ID, shipmentID, repository.AWBAssignment{
		AWBCode:     res.AWBCode,
		CourierID:   res.CourierID,
		CourierName: res.CourierName,
	})
	if err != nil {
		return nil, err
	}
	if !assigned {
		s.logger.WithFields(logrus.Fields{
			"order_id": order.ID,
			"awb_code": res.AWBCode,
		}).Warn("AWB generated but the order was assigned concurrently")
		return nil, apperrors.NewInvalidStateError("AWB already assigned")
	}

	order.AWBCode = &res.AWBCode
	order.CourierName = &res.CourierName
	if res.CourierID > 0 {
		order.CourierID = &res.CourierID
	}
	awbAssigned := string(models.CourierStatusAWBAssigned)
	order.CourierStatus = &awbAssigned

	if changed, err := s.orders.TransitionStatus(ctx, order.ID, models.OrderStatusProcessing); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to advance order to processing")
	} else if changed {
		order.Status = models.OrderStatusProcessing
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"awb_code":     res.AWBCode,
		"courier_id":   res.CourierID,
		"courier_name": res.CourierName,
	}).Info("AWB assigned")

	s.notify(ctx, order, "Courier assigned",
		"Your order will be shipped with "+res.CourierName+". Tracking number: "+res.AWBCode+".",
		map[string]interface{}{"courierName": res.CourierName})
	s.publish(ctx, EventShipmentAWBAssigned, order, map[string]interface{}{
		"courierId":   res.CourierID,
		"courierName": res.CourierName,
	})

	return &models.AWBAssignmentResponse{
		Success:     true,
		AWBCode:     res.AWBCode,
		CourierID:   res.CourierID,
		CourierName: res.CourierName,
		AssignedAt:  res.AssignedAt,
		OrderStatus: order.Status,
	}, nil
}

// SchedulePickup requests courier pickup for an order's shipment
func (s *LifecycleService) SchedulePickup(ctx context.Context, orderID string) (*models.PickupResponse, error) {
	if _, err := requireEnabled(ctx, s.settings); err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.schedulePickup(ctx, order)
}

func (s *LifecycleService) schedulePickup(ctx context.Context, order *models.Order) (*models.PickupResponse, error) {
	if err := checkCanSchedulePickup(order); err != nil {
		return nil, err
	}

	awbCode := *order.AWBCode
	res, err := s.gateway.SchedulePickup(ctx, []string{*order.CourierShipmentID})
	if err != nil {
		return nil, err
	}

	saved, err := s.orders.SavePickup(ctx, order.ID, awbCode, res.ScheduledDate, res.PickupToken)
	if err != nil {
		return nil, err
	}
	if !saved {
		return nil, apperrors.NewInvalidStateError("AWB changed while scheduling pickup")
	}

	order.PickupScheduledDate = res.ScheduledDate
	if res.PickupToken != "" {
		order.PickupToken = &res.PickupToken
	}
	scheduled := string(models.CourierStatusPickupScheduled)
	order.CourierStatus = &scheduled

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"awb_code": awbCode,
	}).Info("Pickup scheduled")
	s.publish(ctx, EventShipmentPickupScheduled, order, map[string]interface{}{
		"pickupScheduledDate": res.ScheduledDate,
	})

	return &models.PickupResponse{
		Success:             true,
		PickupScheduledDate: res.ScheduledDate,
		PickupToken:         res.PickupToken,
		Status:              res.Status,
	}, nil
}

// GetLabel returns the stored label, generating one when absent or forced
func (s *LifecycleService) GetLabel(ctx context.Context, orderID string, force bool) (*models.LabelResponse, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.HasAWB() {
		return nil, apperrors.NewInvalidStateError("no AWB assigned; assign a courier first")
	}
	if !force && order.LabelURL != nil && *order.LabelURL != "" {
		return &models.LabelResponse{Success: true, LabelURL: *order.LabelURL, Cached: true}, nil
	}
	if order.CurrentCourierStatus() == models.CourierStatusCancelled {
		return nil, apperrors.NewInvalidStateError("shipment is cancelled")
	}
	if _, err := requireEnabled(ctx, s.settings); err != nil {
		return nil, err
	}

	labelURL, err := s.gateway.GenerateLabel(ctx, []string{*order.CourierShipmentID})
	if err != nil {
		return nil, err
	}
	if err := s.orders.SaveLabel(ctx, order.ID, labelURL); err != nil {
		return nil, err
	}
	return &models.LabelResponse{Success: true, LabelURL: labelURL, Cached: false}, nil
}

// Cancel cancels the aggregator order, or only the shipment so a new
// courier can be assigned. Cancelling a moving parcel requires force.
func (s *LifecycleService) Cancel(ctx context.Context, orderID string, req models.CancelRequest) (*models.CancelResponse, error) {
	mode := req.Mode
	if mode == "" {
		mode = models.CancelModeOrder
	}
	if mode != models.CancelModeOrder && mode != models.CancelModeShipment {
		return nil, apperrors.NewValidationError("mode must be \"order\" or \"shipment\"")
	}

	if _, err := requireEnabled(ctx, s.settings); err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	current := order.CurrentCourierStatus()
	if mode == models.CancelModeOrder {
		err = checkCanCancelOrder(order)
	} else {
		err = checkCanCancelShipment(order)
	}
	if err != nil {
		return nil, err
	}
	if current.IsDangerous() && !req.Force {
		return nil, apperrors.NewRequiresConfirmationError(string(current))
	}

	logger := s.logger.WithFields(logrus.Fields{
		"order_id":       order.ID,
		"mode":           mode,
		"courier_status": current,
		"forced":         req.Force,
	})

	if mode == models.CancelModeOrder {
		if err := s.gateway.CancelOrder(ctx, []string{*order.CourierOrderID}); err != nil {
			return nil, err
		}
		cancelled, err := s.orders.MarkCancelled(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if !cancelled {
			return nil, apperrors.NewInvalidStateError("shipment already cancelled")
		}
		order.Status = models.OrderStatusCancelled
		status := string(models.CourierStatusCancelled)
		order.CourierStatus = &status

		logger.Info("Aggregator order cancelled")
		s.notify(ctx, order, "Shipment cancelled", "The shipment for your order has been cancelled.", nil)
		s.publish(ctx, EventShipmentCancelled, order, map[string]interface{}{"mode": mode})
		return &models.CancelResponse{Success: true, Mode: mode, OrderStatus: order.Status, CourierStatus: status}, nil
	}

	awbCode := *order.AWBCode
	if err := s.gateway.CancelShipment(ctx, []string{awbCode}); err != nil {
		return nil, err
	}
	reset, err := s.orders.ResetShipment(ctx, order.ID, awbCode)
	if err != nil {
		return nil, err
	}
	if !reset {
		return nil, apperrors.NewInvalidStateError("shipment changed while cancelling")
	}

	logger.WithField("awb_code", awbCode).Info("Shipment cancelled; order reset for courier reassignment")
	s.notify(ctx, order, "Shipment cancelled", "The shipment for your order has been cancelled and will be reassigned.", nil)
	s.publish(ctx, EventShipmentCancelled, order, map[string]interface{}{
		"mode":         mode,
		"cancelledAwb": awbCode,
	})
	return &models.CancelResponse{
		Success:       true,
		Mode:          mode,
		OrderStatus:   models.OrderStatusConfirmed,
		CourierStatus: string(models.CourierStatusNew),
	}, nil
}

// applyCreated copies a just-saved link onto the in-memory order.
func applyCreated(order *models.Order, created *carriers.CreateOrderResult, courierStatus string) {
	set := func(v string) *string {
		if v == "" {
			return nil
		}
		return &v
	}
	order.CourierOrderID = set(created.CourierOrderID)
	order.CourierShipmentID = set(created.CourierShipmentID)
	order.AWBCode = set(created.AWBCode)
	order.CourierName = set(created.CourierName)
	order.CourierStatus = set(courierStatus)
	if created.CourierID != 0 {
		id := created.CourierID
		order.CourierID = &id
	}
}

// Sync re-reads the aggregator order and fills what the local copy is
// missing. It is the recovery path after an unknown outcome.
func (s *LifecycleService) Sync(ctx context.Context, orderID string) (*models.SyncResponse, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.HasCourierOrder() {
		return nil, apperrors.NewInvalidStateError("no aggregator order linked to this order")
	}

	details, err := s.gateway.GetOrderDetails(ctx, *order.CourierOrderID)
	if err != nil {
		return nil, err
	}

	changes := []string{}
	if details.ShipmentID != "" && !order.HasShipment() {
		filled, err := s.orders.FillShipmentID(ctx, order.ID, details.ShipmentID)
		if err != nil {
			return nil, err
		}
		if filled {
			changes = append(changes, "courierShipmentId")
		}
	}
	if details.AWBCode != "" && !order.HasAWB() {
		filled, err := s.orders.FillAWB(ctx, order.ID, repository.AWBAssignment{
			AWBCode:     details.AWBCode,
			CourierName: details.CourierName,
		})
		if err != nil {
			return nil, err
		}
		if filled {
			changes = append(changes, "awbCode")
			if _, err := s.orders.TransitionStatus(ctx, order.ID, models.OrderStatusProcessing); err != nil {
				s.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to advance order to processing")
			}
		}
	}

	order, err = s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	// Only recognised aggregator order statuses are applied.
	if _, known := s.reconciler.Table().LookupLabel(details.Status); known {
		res, err := s.reconciler.Apply(ctx, order, StatusUpdate{
			StatusLabel: details.Status,
			CourierName: details.CourierName,
			Source:      SourceSync,
		})
		if err != nil {
			return nil, err
		}
		if res.CourierStatus != res.PreviousCourierStatus {
			changes = append(changes, "courierStatus")
		}
		if res.StatusChanged {
			changes = append(changes, "status")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"changes":  changes,
	}).Info("Shipment synced with aggregator")

	return &models.SyncResponse{
		Success: true,
		Shiprocket: models.AggregatorOrder{
			OrderID:     details.CourierOrderID,
			ShipmentID:  details.ShipmentID,
			Status:      details.Status,
			AWBCode:     details.AWBCode,
			CourierName: details.CourierName,
		},
		Changes:  changes,
		Shipment: order.ToShipmentView(),
	}, nil
}

// Track returns live tracking and persists the latest snapshot. When the
// live call fails the last known state is returned instead.
func (s *LifecycleService) Track(ctx context.Context, orderID string) (*models.TrackingResponse, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.HasAWB() {
		return cachedTracking(order), nil
	}

	live, err := s.gateway.TrackByAWB(ctx, *order.AWBCode)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("Live tracking failed; serving cached status")
		return cachedTracking(order), nil
	}

	if _, err := s.reconciler.Apply(ctx, order, trackingUpdate(*order.AWBCode, live, SourceTrack)); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to persist tracking snapshot")
	}

	resp := cachedTracking(order)
	resp.Source = models.TrackingSourceLive
	resp.Events = live.Events
	if resp.Events == nil {
		resp.Events = []models.TrackingEvent{}
	}
	resp.DeliveredDate = live.DeliveredDate
	if live.ETD != nil {
		resp.EstimatedDeliveryDate = live.ETD
	}
	if live.TrackURL != "" {
		resp.TrackingURL = live.TrackURL
	}
	return resp, nil
}

// RefreshTracking pulls live tracking for an order and applies it
func (s *LifecycleService) RefreshTracking(ctx context.Context, order *models.Order) error {
	if !order.HasAWB() {
		return nil
	}
	live, err := s.gateway.TrackByAWB(ctx, *order.AWBCode)
	if err != nil {
		return err
	}
	_, err = s.reconciler.Apply(ctx, order, trackingUpdate(*order.AWBCode, live, SourcePoll))
	return err
}

// ListCouriers returns the ranked quotes for an order's route
func (s *LifecycleService) ListCouriers(ctx context.Context, orderID string) (*models.CouriersResponse, error) {
	settings, err := requireEnabled(ctx, s.settings)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	quotes, err := s.shopper.Quotes(ctx, routeFor(order, settings))
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, apperrors.NewNotServiceableError("no courier services delivery pincode " + order.ShippingAddress.Pincode)
	}
	return &models.CouriersResponse{Success: true, Couriers: quotes}, nil
}

// CheckServiceability answers the public pre-checkout check. An
// unserviceable route is a normal answer, not an error.
func (s *LifecycleService) CheckServiceability(ctx context.Context, req models.ServiceabilityCheckRequest) (*models.ServiceabilityCheckResponse, error) {
	if err := carriers.ValidatePincode(req.DeliveryPincode); err != nil {
		return nil, apperrors.NewValidationError("invalid delivery pincode: " + err.Error())
	}
	if req.Weight != nil && *req.Weight <= 0 {
		return nil, apperrors.NewValidationError("weight must be positive")
	}
	if req.DeclaredValue < 0 {
		return nil, apperrors.NewValidationError("declaredValue must not be negative")
	}

	settings, err := requireEnabled(ctx, s.settings)
	if err != nil {
		return nil, err
	}
	if settings.PickupLocation.Pincode == "" {
		return nil, apperrors.NewConfigurationError("pickup pincode is not configured")
	}

	length, breadth, height, weight := settings.Package()
	if req.Weight != nil {
		weight = *req.Weight
	}
	quotes, err := s.shopper.Quotes(ctx, carriers.ServiceabilityRequest{
		PickupPincode:   settings.PickupLocation.Pincode,
		DeliveryPincode: req.DeliveryPincode,
		WeightKg:        weight,
		IsCOD:           req.IsCOD,
		DeclaredValue:   req.DeclaredValue,
		Length:          length,
		Breadth:         breadth,
		Height:          height,
	})
	if err != nil {
		return nil, err
	}

	resp := &models.ServiceabilityCheckResponse{Success: true, Available: len(quotes) > 0, Couriers: quotes}
	for i := range quotes {
		if quotes[i].IsCheapest && resp.Cheapest == nil {
			resp.Cheapest = &quotes[i]
		}
		if quotes[i].IsFastest && resp.Fastest == nil {
			resp.Fastest = &quotes[i]
		}
	}
	return resp, nil
}

func trackingUpdate(awbCode string, live *carriers.TrackingResult, source string) StatusUpdate {
	return StatusUpdate{
		AWBCode:     awbCode,
		StatusCode:  live.CurrentStatusID,
		StatusLabel: live.CurrentStatus,
		TrackingURL: live.TrackURL,
		ETD:         live.ETD,
		CourierName: live.CourierName,
		Source:      source,
	}
}

func cachedTracking(order *models.Order) *models.TrackingResponse {
	return &models.TrackingResponse{
		Success:               true,
		OrderID:               order.ID,
		AWBCode:               derefString(order.AWBCode),
		CourierName:           derefString(order.CourierName),
		CourierStatus:         derefString(order.CourierStatus),
		OrderStatus:           order.Status,
		TrackingURL:           derefString(order.TrackingURL),
		EstimatedDeliveryDate: order.EstimatedDeliveryDate,
		Events:                []models.TrackingEvent{},
		Source:                models.TrackingSourceCached,
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
