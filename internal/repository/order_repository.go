package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/models"
)

// CourierOrderLink holds the fields returned by aggregator order creation
type CourierOrderLink struct {
	CourierOrderID    string
	CourierShipmentID string
	AWBCode           string
	CourierID         int
	CourierName       string
	CourierStatus     string
}

// AWBAssignment holds the fields returned by courier assignment
type AWBAssignment struct {
	AWBCode     string
	CourierID   int
	CourierName string
}

// TrackingUpdate holds last-write-wins tracking fields. Nil fields are left unchanged.
type TrackingUpdate struct {
	CourierStatus         *string
	TrackingURL           *string
	EstimatedDeliveryDate *time.Time
	CourierName           *string
}

// IsEmpty reports whether there is nothing to write
func (u TrackingUpdate) IsEmpty() bool {
	return u.CourierStatus == nil && u.TrackingURL == nil && u.EstimatedDeliveryDate == nil && u.CourierName == nil
}

// OrderRepository reads orders and performs conditional writes on their
// shipment fields. Every transition is a check-then-set in one statement,
// so concurrent instances serialize on the row. Methods returning bool
// report whether the guarded write applied.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByAWB(ctx context.Context, awbCode string) (*models.Order, error)
	ListActiveShipments(ctx context.Context, limit int) ([]*models.Order, error)

	SaveCourierOrder(ctx context.Context, orderID string, link CourierOrderLink) (bool, error)
	FillShipmentID(ctx context.Context, orderID, shipmentID string) (bool, error)
	FillAWB(ctx context.Context, orderID string, assignment AWBAssignment) (bool, error)
	AssignAWB(ctx context.Context, orderID, shipmentID string, assignment AWBAssignment) (bool, error)
	SavePickup(ctx context.Context, orderID, awbCode string, scheduled *time.Time, token string) (bool, error)
	SaveLabel(ctx context.Context, orderID, labelURL string) error
	UpdateTracking(ctx context.Context, orderID string, update TrackingUpdate) error
	TransitionStatus(ctx context.Context, orderID string, to models.OrderStatus) (bool, error)
	MarkCancelled(ctx context.Context, orderID string) (bool, error)
	ResetShipment(ctx context.Context, orderID, awbCode string) (bool, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// GetByID retrieves an order with its items
func (r *orderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("order", id)
		}
		return nil, err
	}
	return &order, nil
}

// GetByAWB retrieves an order by tracking number
func (r *orderRepository) GetByAWB(ctx context.Context, awbCode string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("awb_code = ?", awbCode).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("shipment", awbCode)
		}
		return nil, err
	}
	return &order, nil
}

// ListActiveShipments returns orders with an AWB whose courier status is not
// terminal, least recently updated first
func (r *orderRepository) ListActiveShipments(ctx context.Context, limit int) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.db.WithContext(ctx).
		Where("awb_code IS NOT NULL AND awb_code <> ''").
		Where("status NOT IN ?", []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusDelivered}).
		Where("courier_status IS NULL OR courier_status NOT IN ?", []string{
			string(models.CourierStatusDelivered),
			string(models.CourierStatusCancelled),
			string(models.CourierStatusRTODelivered),
		}).
		Order("updated_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// SaveCourierOrder links the aggregator order, only if none is linked yet
func (r *orderRepository) SaveCourierOrder(ctx context.Context, orderID string, link CourierOrderLink) (bool, error) {
	updates := map[string]interface{}{
		"courier_order_id": link.CourierOrderID,
		"courier_status":   link.CourierStatus,
		"updated_at":       time.Now(),
	}
	if link.CourierShipmentID != "" {
		updates["courier_shipment_id"] = link.CourierShipmentID
		if link.AWBCode != "" {
			updates["awb_code"] = link.AWBCode
			if link.CourierID > 0 {
				updates["courier_id"] = link.CourierID
			}
			if link.CourierName != "" {
				updates["courier_name"] = link.CourierName
			}
		}
	}

	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND courier_order_id IS NULL", orderID).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

// FillShipmentID sets the shipment id if it is still unknown
func (r *orderRepository) FillShipmentID(ctx context.Context, orderID, shipmentID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND courier_order_id IS NOT NULL AND courier_shipment_id IS NULL", orderID).
		Updates(map[string]interface{}{
			"courier_shipment_id": shipmentID,
			"updated_at":          time.Now(),
		})
	return result.RowsAffected > 0, result.Error
}

// FillAWB records an AWB discovered by a re-read, if none is stored
func (r *orderRepository) FillAWB(ctx context.Context, orderID string, assignment AWBAssignment) (bool, error) {
	updates := map[string]interface{}{
		"awb_code":       assignment.AWBCode,
		"courier_status": string(models.CourierStatusAWBAssigned),
		"updated_at":     time.Now(),
	}
	if assignment.CourierName != "" {
		updates["courier_name"] = assignment.CourierName
	}
	if assignment.CourierID > 0 {
		updates["courier_id"] = assignment.CourierID
	}
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND awb_code IS NULL AND courier_shipment_id IS NOT NULL", orderID).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

// AssignAWB stores the AWB. A second concurrent assignment affects no rows.
func (r *orderRepository) AssignAWB(ctx context.Context, orderID, shipmentID string, assignment AWBAssignment) (bool, error) {
	updates := map[string]interface{}{
		"awb_code":       assignment.AWBCode,
		"courier_name":   assignment.CourierName,
		"courier_status": string(models.CourierStatusAWBAssigned),
		"updated_at":     time.Now(),
	}
	if assignment.CourierID > 0 {
		updates["courier_id"] = assignment.CourierID
	}
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND awb_code IS NULL AND courier_shipment_id = ?", orderID, shipmentID).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

// SavePickup records a scheduled pickup while the AWB is unchanged
func (r *orderRepository) SavePickup(ctx context.Context, orderID, awbCode string, scheduled *time.Time, token string) (bool, error) {
	updates := map[string]interface{}{
		"pickup_scheduled_date": scheduled,
		"courier_status":        string(models.CourierStatusPickupScheduled),
		"updated_at":            time.Now(),
	}
	if token != "" {
		updates["pickup_token"] = token
	}
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND awb_code = ?", orderID, awbCode).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

// SaveLabel stores the label URL
func (r *orderRepository) SaveLabel(ctx context.Context, orderID, labelURL string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"label_url":  labelURL,
			"updated_at": time.Now(),
		}).Error
}

// UpdateTracking overwrites the courier-reported fields that are set
func (r *orderRepository) UpdateTracking(ctx context.Context, orderID string, update TrackingUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	updates := map[string]interface{}{"updated_at": time.Now()}
	if update.CourierStatus != nil {
		updates["courier_status"] = *update.CourierStatus
	}
	if update.TrackingURL != nil {
		updates["tracking_url"] = *update.TrackingURL
	}
	if update.EstimatedDeliveryDate != nil {
		updates["estimated_delivery_date"] = *update.EstimatedDeliveryDate
	}
	if update.CourierName != nil {
		updates["courier_name"] = *update.CourierName
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

// TransitionStatus moves the order to status `to` only from a status that
// precedes it, so stale writers can never regress it
func (r *orderRepository) TransitionStatus(ctx context.Context, orderID string, to models.OrderStatus) (bool, error) {
	from := models.StatusesBefore(to)
	if len(from) == 0 {
		return false, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	return result.RowsAffected > 0, result.Error
}

// MarkCancelled applies an order-level cancellation
func (r *orderRepository) MarkCancelled(ctx context.Context, orderID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND courier_order_id IS NOT NULL", orderID).
		Where("courier_status IS NULL OR courier_status <> ?", string(models.CourierStatusCancelled)).
		Updates(map[string]interface{}{
			"status":         models.OrderStatusCancelled,
			"courier_status": string(models.CourierStatusCancelled),
			"updated_at":     time.Now(),
		})
	return result.RowsAffected > 0, result.Error
}

// ResetShipment clears the courier assignment after a shipment-level
// cancellation so a new courier can be assigned
func (r *orderRepository) ResetShipment(ctx context.Context, orderID, awbCode string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND awb_code = ?", orderID, awbCode).
		Where("status NOT IN ?", []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusDelivered}).
		Updates(map[string]interface{}{
			"awb_code":                gorm.Expr("NULL"),
			"courier_id":              gorm.Expr("NULL"),
			"courier_name":            gorm.Expr("NULL"),
			"pickup_token":            gorm.Expr("NULL"),
			"pickup_scheduled_date":   gorm.Expr("NULL"),
			"label_url":               gorm.Expr("NULL"),
			"tracking_url":            gorm.Expr("NULL"),
			"estimated_delivery_date": gorm.Expr("NULL"),
			"courier_status":          string(models.CourierStatusNew),
			"status":                  models.OrderStatusConfirmed,
			"updated_at":              time.Now(),
		})
	return result.RowsAffected > 0, result.Error
}
