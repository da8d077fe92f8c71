package models

import (
	"strings"
	"time"
)

// AggregatorOrder is the aggregator's view of an order, as returned to admins
type AggregatorOrder struct {
	OrderID     string `json:"orderId"`
	ShipmentID  string `json:"shipmentId,omitempty"`
	Status      string `json:"status"`
	AWBCode     string `json:"awbCode,omitempty"`
	CourierName string `json:"courierName,omitempty"`
}

// StepOutcome reports an optional follow-up step of a flow. A failed step
// does not fail the flow that triggered it.
type StepOutcome struct {
	Success             bool       `json:"success"`
	AWBCode             string     `json:"awbCode,omitempty"`
	CourierID           int        `json:"courierId,omitempty"`
	CourierName         string     `json:"courierName,omitempty"`
	PickupScheduledDate *time.Time `json:"pickupScheduledDate,omitempty"`
	PickupToken         string     `json:"pickupToken,omitempty"`
	Error               string     `json:"error,omitempty"`
	ErrorCode           string     `json:"errorCode,omitempty"`
}

// CreateShipmentResponse is returned by POST /shipments/:orderId/create
type CreateShipmentResponse struct {
	Success    bool            `json:"success"`
	Shiprocket AggregatorOrder `json:"shiprocket"`
	AutoAWB    *StepOutcome    `json:"autoAwb,omitempty"`
	AutoPickup *StepOutcome    `json:"autoPickup,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// AssignAWBRequest is the body of POST /shipments/:orderId/awb
type AssignAWBRequest struct {
	CourierID      *int `json:"courierId"`
	SelectCheapest bool `json:"selectCheapest"`
}

// AWBAssignmentResponse reports a courier assignment
type AWBAssignmentResponse struct {
	Success     bool        `json:"success"`
	AWBCode     string      `json:"awbCode"`
	CourierID   int         `json:"courierId"`
	CourierName string      `json:"courierName"`
	AssignedAt  *time.Time  `json:"assignedAt,omitempty"`
	OrderStatus OrderStatus `json:"orderStatus"`
}

// PickupResponse reports a scheduled pickup
type PickupResponse struct {
	Success             bool       `json:"success"`
	PickupScheduledDate *time.Time `json:"pickupScheduledDate,omitempty"`
	PickupToken         string     `json:"pickupToken,omitempty"`
	Status              string     `json:"status,omitempty"`
}

// LabelResponse carries the label URL
type LabelResponse struct {
	Success  bool   `json:"success"`
	LabelURL string `json:"labelUrl"`
	Cached   bool   `json:"cached"`
}

// Cancellation modes
const (
	CancelModeOrder    = "order"
	CancelModeShipment = "shipment"
)

// CancelRequest is the body of POST /shipments/:orderId/cancel
type CancelRequest struct {
	Mode  string `json:"mode"`
	Force bool   `json:"force"`
}

// CancelResponse reports a cancellation
type CancelResponse struct {
	Success       bool        `json:"success"`
	Mode          string      `json:"mode"`
	OrderStatus   OrderStatus `json:"orderStatus"`
	CourierStatus string      `json:"courierStatus"`
}

// SyncResponse reports what a re-read of the aggregator order changed
type SyncResponse struct {
	Success    bool            `json:"success"`
	Shiprocket AggregatorOrder `json:"shiprocket"`
	Changes    []string        `json:"changes"`
	Shipment   *ShipmentView   `json:"shipment"`
}

// Tracking sources
const (
	TrackingSourceLive   = "live"
	TrackingSourceCached = "cached"
)

// TrackingResponse is the customer-facing tracking view
type TrackingResponse struct {
	Success               bool            `json:"success"`
	OrderID               string          `json:"orderId"`
	AWBCode               string          `json:"awbCode,omitempty"`
	CourierName           string          `json:"courierName,omitempty"`
	CourierStatus         string          `json:"courierStatus,omitempty"`
	OrderStatus           OrderStatus     `json:"orderStatus"`
	TrackingURL           string          `json:"trackingUrl,omitempty"`
	EstimatedDeliveryDate *time.Time      `json:"estimatedDeliveryDate,omitempty"`
	DeliveredDate         *time.Time      `json:"deliveredDate,omitempty"`
	Events                []TrackingEvent `json:"events"`
	Source                string          `json:"source"`
}

// CouriersResponse lists ranked quotes for an order's route
type CouriersResponse struct {
	Success  bool          `json:"success"`
	Couriers []RankedQuote `json:"couriers"`
}

// ServiceabilityCheckRequest is the public pre-checkout check
type ServiceabilityCheckRequest struct {
	DeliveryPincode string   `json:"deliveryPincode" binding:"required"`
	Weight          *float64 `json:"weight"`
	IsCOD           bool     `json:"isCOD"`
	DeclaredValue   float64  `json:"declaredValue"`
}

// ServiceabilityCheckResponse answers the public check
type ServiceabilityCheckResponse struct {
	Success   bool          `json:"success"`
	Available bool          `json:"available"`
	Couriers  []RankedQuote `json:"couriers"`
	Cheapest  *RankedQuote  `json:"cheapest,omitempty"`
	Fastest   *RankedQuote  `json:"fastest,omitempty"`
}

// ShipmentView is the shipment part of an order
type ShipmentView struct {
	OrderID               string        `json:"orderId"`
	OrderStatus           OrderStatus   `json:"orderStatus"`
	State                 ShipmentState `json:"state"`
	CourierOrderID        *string       `json:"courierOrderId"`
	CourierShipmentID     *string       `json:"courierShipmentId"`
	AWBCode               *string       `json:"awbCode"`
	CourierID             *int          `json:"courierId"`
	CourierName           *string       `json:"courierName"`
	CourierStatus         *string       `json:"courierStatus"`
	LabelURL              *string       `json:"labelUrl"`
	TrackingURL           *string       `json:"trackingUrl"`
	EstimatedDeliveryDate *time.Time    `json:"estimatedDeliveryDate"`
	PickupScheduledDate   *time.Time    `json:"pickupScheduledDate"`
	PickupToken           *string       `json:"pickupToken"`
	UpdatedAt             time.Time     `json:"updatedAt"`
}

// ToShipmentView extracts the shipment fields of an order
func (o *Order) ToShipmentView() *ShipmentView {
	return &ShipmentView{
		OrderID:               o.ID,
		OrderStatus:           o.Status,
		State:                 o.ShipmentState(),
		CourierOrderID:        o.CourierOrderID,
		CourierShipmentID:     o.CourierShipmentID,
		AWBCode:               o.AWBCode,
		CourierID:             o.CourierID,
		CourierName:           o.CourierName,
		CourierStatus:         o.CourierStatus,
		LabelURL:              o.LabelURL,
		TrackingURL:           o.TrackingURL,
		EstimatedDeliveryDate: o.EstimatedDeliveryDate,
		PickupScheduledDate:   o.PickupScheduledDate,
		PickupToken:           o.PickupToken,
		UpdatedAt:             o.UpdatedAt,
	}
}

// TrackingWebhookPayload is the aggregator's push payload. Only the fields
// this service reads are declared.
type TrackingWebhookPayload struct {
	AWB              FlexString `json:"awb"`
	CourierName      string     `json:"courier_name"`
	CurrentStatus    string     `json:"current_status"`
	CurrentStatusID  FlexInt    `json:"current_status_id"`
	ShipmentStatus   string     `json:"shipment_status"`
	ShipmentStatusID FlexInt    `json:"shipment_status_id"`
	CurrentTimestamp string     `json:"current_timestamp"`
	ETD              string     `json:"etd"`
	OrderID          FlexString `json:"order_id"`
	SROrderID        FlexString `json:"sr_order_id"`
	TrackURL         string     `json:"track_url"`
}

// AWBCode returns the trimmed tracking number
func (p *TrackingWebhookPayload) AWBCode() string {
	return strings.TrimSpace(string(p.AWB))
}

// StatusCode returns the shipment status code, falling back to the current status code
func (p *TrackingWebhookPayload) StatusCode() int {
	if p.ShipmentStatusID > 0 {
		return int(p.ShipmentStatusID)
	}
	return int(p.CurrentStatusID)
}

// StatusLabel returns the shipment status label, falling back to the current status
func (p *TrackingWebhookPayload) StatusLabel() string {
	if p.ShipmentStatus != "" {
		return p.ShipmentStatus
	}
	return p.CurrentStatus
}

// WebhookAck is the body of every webhook response
type WebhookAck struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
