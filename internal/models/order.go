package models

import (
	"strings"
	"time"
)

// OrderStatus is the storefront order lifecycle status
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Forward ordering. cancelled is outside it.
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusConfirmed:  1,
	OrderStatusProcessing: 2,
	OrderStatusShipped:    3,
	OrderStatusDelivered:  4,
}

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	_, ok := orderStatusRank[s]
	return ok || s == OrderStatusCancelled
}

// CanAdvanceTo reports whether moving from s to target is forward progress.
// cancelled is reachable from every other status; nothing leaves cancelled.
func (s OrderStatus) CanAdvanceTo(target OrderStatus) bool {
	if s == target {
		return false
	}
	if target == OrderStatusCancelled {
		return true
	}
	from, ok := orderStatusRank[s]
	if !ok {
		return false
	}
	to, ok := orderStatusRank[target]
	if !ok {
		return false
	}
	return to > from
}

// StatusesBefore lists the statuses from which target is a legal move.
// Used as the persistence-level guard for monotonic updates.
func StatusesBefore(target OrderStatus) []OrderStatus {
	all := []OrderStatus{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
	var allowed []OrderStatus
	for _, s := range all {
		if s.CanAdvanceTo(target) {
			allowed = append(allowed, s)
		}
	}
	return allowed
}

// ShippingAddress is the delivery address captured at checkout
type ShippingAddress struct {
	Name         string `gorm:"type:varchar(255)" json:"name"`
	AddressLine1 string `gorm:"type:varchar(500)" json:"addressLine1"`
	AddressLine2 string `gorm:"type:varchar(500)" json:"addressLine2,omitempty"`
	City         string `gorm:"type:varchar(100)" json:"city"`
	State        string `gorm:"type:varchar(100)" json:"state"`
	Pincode      string `gorm:"type:varchar(20)" json:"pincode"`
	Country      string `gorm:"type:varchar(100);default:'India'" json:"country"`
	Phone        string `gorm:"type:varchar(50)" json:"phone"`
	Email        string `gorm:"type:varchar(255)" json:"email"`
}

// Order is owned by the storefront. This service only writes the shipment
// linkage fields and status.
type Order struct {
	ID              string          `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID          string          `gorm:"type:varchar(64);index" json:"userId"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentMethod   string          `gorm:"type:varchar(50)" json:"paymentMethod"`
	Total           float64         `gorm:"type:decimal(12,2)" json:"total"`
	DiscountAmount  float64         `gorm:"type:decimal(12,2);default:0" json:"discountAmount"`
	ShippingCharges float64         `gorm:"type:decimal(12,2);default:0" json:"shippingCharges"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shippingAddress"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID" json:"items,omitempty"`

	// Shipment linkage, null until populated
	CourierOrderID        *string    `gorm:"column:courier_order_id;type:varchar(64);index" json:"courierOrderId"`
	CourierShipmentID     *string    `gorm:"column:courier_shipment_id;type:varchar(64)" json:"courierShipmentId"`
	AWBCode               *string    `gorm:"column:awb_code;type:varchar(64);index" json:"awbCode"`
	CourierID             *int       `gorm:"column:courier_id" json:"courierId"`
	CourierName           *string    `gorm:"column:courier_name;type:varchar(255)" json:"courierName"`
	CourierStatus         *string    `gorm:"column:courier_status;type:varchar(64)" json:"courierStatus"`
	LabelURL              *string    `gorm:"column:label_url;type:text" json:"labelUrl"`
	TrackingURL           *string    `gorm:"column:tracking_url;type:text" json:"trackingUrl"`
	EstimatedDeliveryDate *time.Time `gorm:"column:estimated_delivery_date" json:"estimatedDeliveryDate"`
	PickupScheduledDate   *time.Time `gorm:"column:pickup_scheduled_date" json:"pickupScheduledDate"`
	PickupToken           *string    `gorm:"column:pickup_token;type:varchar(128)" json:"pickupToken"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Order) TableName() string {
	return "orders"
}

// OrderItem is a line item of an order
type OrderItem struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	OrderID   string  `gorm:"type:varchar(64);index;not null" json:"orderId"`
	ProductID string  `gorm:"type:varchar(64)" json:"productId"`
	Name      string  `gorm:"type:varchar(500)" json:"name"`
	SKU       string  `gorm:"type:varchar(100)" json:"sku"`
	Quantity  int     `json:"quantity"`
	Price     float64 `gorm:"type:decimal(12,2)" json:"price"`
	HSN       string  `gorm:"type:varchar(20)" json:"hsn,omitempty"`
}

// TableName specifies the table name
func (OrderItem) TableName() string {
	return "order_items"
}

// IsCOD reports whether the courier must collect payment on delivery.
func (o *Order) IsCOD() bool {
	return strings.EqualFold(strings.TrimSpace(o.PaymentMethod), "cod")
}

// CollectableAmount is the product-only amount. Shipping was already
// collected by the store.
func (o *Order) CollectableAmount() float64 {
	amount := o.Total - o.ShippingCharges
	if amount < 0 {
		return 0
	}
	return amount
}

// CurrentCourierStatus returns the normalized courier status, empty if unset.
func (o *Order) CurrentCourierStatus() CourierStatus {
	if o.CourierStatus == nil {
		return ""
	}
	return CourierStatus(*o.CourierStatus)
}

// HasCourierOrder reports whether an aggregator order exists.
func (o *Order) HasCourierOrder() bool {
	return o.CourierOrderID != nil && *o.CourierOrderID != ""
}

// HasShipment reports whether an aggregator shipment id is known.
func (o *Order) HasShipment() bool {
	return o.CourierShipmentID != nil && *o.CourierShipmentID != ""
}

// HasAWB reports whether a tracking number is assigned.
func (o *Order) HasAWB() bool {
	return o.AWBCode != nil && *o.AWBCode != ""
}

// ShipmentState derives the lifecycle state from the linkage fields.
func (o *Order) ShipmentState() ShipmentState {
	courierStatus := o.CurrentCourierStatus()
	switch {
	case courierStatus == CourierStatusCancelled || o.Status == OrderStatusCancelled:
		return ShipmentStateCancelled
	case courierStatus == CourierStatusDelivered || o.Status == OrderStatusDelivered:
		return ShipmentStateDelivered
	case !o.HasCourierOrder():
		return ShipmentStateNone
	case !o.HasAWB():
		return ShipmentStateAggregatorOrderCreated
	case courierStatus.IsDangerous() || courierStatus == CourierStatusShipped || o.Status == OrderStatusShipped:
		return ShipmentStateInTransit
	case o.PickupToken != nil || o.PickupScheduledDate != nil:
		return ShipmentStatePickupScheduled
	default:
		return ShipmentStateAWBAssigned
	}
}
