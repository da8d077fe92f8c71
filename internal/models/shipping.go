package models

import (
	"strings"
	"time"
)

// CourierStatus is the aggregator's status vocabulary, normalized to UPPER_SNAKE.
type CourierStatus string

const (
	CourierStatusNew                   CourierStatus = "NEW"
	CourierStatusAWBAssigned           CourierStatus = "AWB_ASSIGNED"
	CourierStatusPickupScheduled       CourierStatus = "PICKUP_SCHEDULED"
	CourierStatusPickedUp              CourierStatus = "PICKED_UP"
	CourierStatusShipped               CourierStatus = "SHIPPED"
	CourierStatusInTransit             CourierStatus = "IN_TRANSIT"
	CourierStatusOutForDelivery        CourierStatus = "OUT_FOR_DELIVERY"
	CourierStatusReachedDestinationHub CourierStatus = "REACHED_DESTINATION_HUB"
	CourierStatusDelivered             CourierStatus = "DELIVERED"
	CourierStatusCancelled             CourierStatus = "CANCELLED"
	CourierStatusCancellationRequested CourierStatus = "CANCELLATION_REQUESTED"
	CourierStatusRTOInitiated          CourierStatus = "RTO_INITIATED"
	CourierStatusRTODelivered          CourierStatus = "RTO_DELIVERED"
	CourierStatusLost                  CourierStatus = "LOST"
	CourierStatusDestroyed             CourierStatus = "DESTROYED"
	CourierStatusDisposedOff           CourierStatus = "DISPOSED_OFF"
)

var terminalCourierStatuses = map[CourierStatus]bool{
	CourierStatusDelivered:    true,
	CourierStatusCancelled:    true,
	CourierStatusRTODelivered: true,
}

// Cancelling while the parcel is physically moving needs explicit confirmation.
var dangerousCourierStatuses = map[CourierStatus]bool{
	CourierStatusPickedUp:              true,
	CourierStatusInTransit:             true,
	CourierStatusOutForDelivery:        true,
	CourierStatusReachedDestinationHub: true,
}

var pickupBlockedCourierStatuses = map[CourierStatus]bool{
	CourierStatusDelivered:             true,
	CourierStatusCancelled:             true,
	CourierStatusCancellationRequested: true,
	CourierStatusLost:                  true,
	CourierStatusDestroyed:             true,
	CourierStatusDisposedOff:           true,
}

// IsTerminal reports whether no further lifecycle transition may be attempted.
func (s CourierStatus) IsTerminal() bool {
	return terminalCourierStatuses[s]
}

// IsDangerous reports whether cancelling requires a force flag.
func (s CourierStatus) IsDangerous() bool {
	return dangerousCourierStatuses[s]
}

// BlocksPickup reports whether a pickup can no longer be scheduled.
func (s CourierStatus) BlocksPickup() bool {
	return pickupBlockedCourierStatuses[s] || strings.HasPrefix(string(s), "RTO")
}

// ShipmentState is derived from the shipment-linkage fields of an order.
type ShipmentState string

const (
	ShipmentStateNone                   ShipmentState = "NONE"
	ShipmentStateAggregatorOrderCreated ShipmentState = "AGGREGATOR_ORDER_CREATED"
	ShipmentStateAWBAssigned            ShipmentState = "AWB_ASSIGNED"
	ShipmentStatePickupScheduled        ShipmentState = "PICKUP_SCHEDULED"
	ShipmentStateInTransit              ShipmentState = "IN_TRANSIT"
	ShipmentStateDelivered              ShipmentState = "DELIVERED"
	ShipmentStateCancelled              ShipmentState = "CANCELLED"
)

// CourierQuote is one courier option for a route. Never persisted.
type CourierQuote struct {
	CourierID             int     `json:"courierId"`
	CourierName           string  `json:"courierName"`
	FreightCharge         float64 `json:"freightCharge"`
	CODCharges            float64 `json:"codCharges"`
	EstimatedDeliveryDays string  `json:"estimatedDeliveryDays"`
	ETD                   string  `json:"etd,omitempty"`
	Rating                float64 `json:"rating"`
	IsSurface             bool    `json:"isSurface"`
}

// RankedQuote is a CourierQuote annotated for presentation.
type RankedQuote struct {
	CourierQuote
	EffectiveCost float64 `json:"effectiveCost"`
	IsCheapest    bool    `json:"isCheapest"`
	IsFastest     bool    `json:"isFastest"`
}

// TrackingEvent is a single scan reported by the courier. Never persisted.
type TrackingEvent struct {
	Date       *time.Time `json:"date,omitempty"`
	StatusCode string     `json:"statusCode,omitempty"`
	Status     string     `json:"status"`
	Activity   string     `json:"activity"`
	Location   string     `json:"location"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool                   `json:"success"`
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message *string     `json:"message,omitempty"`
}
