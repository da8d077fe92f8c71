package carriers

import (
	"context"
	"time"

	"shipment-orchestrator/internal/models"
)

// Gateway is the typed surface of the courier aggregator API
type Gateway interface {
	// CheckServiceability lists couriers for a route. No couriers is not an error.
	CheckServiceability(ctx context.Context, req ServiceabilityRequest) (*ServiceabilityResult, error)

	// CreateOrder creates the aggregator order. ShipmentID may be empty.
	CreateOrder(ctx context.Context, payload *CreateOrderPayload) (*CreateOrderResult, error)

	// GenerateAWB assigns a courier and tracking number. A nil courierID lets the aggregator pick.
	GenerateAWB(ctx context.Context, shipmentID string, courierID *int) (*AWBResult, error)

	// SchedulePickup requests courier pickup for the shipments
	SchedulePickup(ctx context.Context, shipmentIDs []string) (*PickupResult, error)

	// GenerateLabel returns the label URL for the shipments
	GenerateLabel(ctx context.Context, shipmentIDs []string) (string, error)

	// CancelOrder cancels aggregator orders
	CancelOrder(ctx context.Context, courierOrderIDs []string) error

	// CancelShipment cancels shipments by AWB, keeping the aggregator order
	CancelShipment(ctx context.Context, awbCodes []string) error

	// TrackByAWB fetches live tracking
	TrackByAWB(ctx context.Context, awbCode string) (*TrackingResult, error)

	// GetOrderDetails re-reads an aggregator order
	GetOrderDetails(ctx context.Context, courierOrderID string) (*OrderDetails, error)

	// GetPickupLocations lists the registered pickup locations
	GetPickupLocations(ctx context.Context) ([]PickupLocation, error)

	// TestConnection forces a login with the stored credentials
	TestConnection(ctx context.Context) error
}

// ClientConfig holds configuration for the aggregator client
type ClientConfig struct {
	BaseURL string
	// Timeout applies to state-changing calls, ReadTimeout to GET-style calls
	Timeout     time.Duration
	ReadTimeout time.Duration
	// MaxRetries applies to GET-style calls only
	MaxRetries int
	// RateLimit is requests per second, 0 disables limiting
	RateLimit float64
}

// ServiceabilityRequest describes a route to quote
type ServiceabilityRequest struct {
	PickupPincode   string
	DeliveryPincode string
	WeightKg        float64
	IsCOD           bool
	DeclaredValue   float64
	Length          float64
	Breadth         float64
	Height          float64
}

// ServiceabilityResult lists available couriers
type ServiceabilityResult struct {
	Available bool                  `json:"available"`
	Couriers  []models.CourierQuote `json:"couriers"`
}

// CreateOrderResult is the aggregator's answer to order creation
type CreateOrderResult struct {
	CourierOrderID    string `json:"orderId"`
	CourierShipmentID string `json:"shipmentId,omitempty"`
	Status            string `json:"status"`
	AWBCode           string `json:"awbCode,omitempty"`
	CourierID         int    `json:"courierId,omitempty"`
	CourierName       string `json:"courierName,omitempty"`
}

// AWBResult is a successful courier assignment
type AWBResult struct {
	AWBCode     string     `json:"awbCode"`
	CourierID   int        `json:"courierId"`
	CourierName string     `json:"courierName"`
	AssignedAt  *time.Time `json:"assignedAt,omitempty"`
}

// PickupResult is a scheduled pickup
type PickupResult struct {
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	PickupToken   string     `json:"pickupToken"`
	Status        string     `json:"status,omitempty"`
}

// TrackingResult is a live tracking snapshot
type TrackingResult struct {
	CurrentStatus   string                 `json:"currentStatus"`
	CurrentStatusID int                    `json:"currentStatusId"`
	Events          []models.TrackingEvent `json:"events"`
	ETD             *time.Time             `json:"etd,omitempty"`
	DeliveredDate   *time.Time             `json:"deliveredDate,omitempty"`
	TrackURL        string                 `json:"trackUrl,omitempty"`
	CourierName     string                 `json:"courierName,omitempty"`
}

// OrderDetails is the subset of an aggregator order this service reads
type OrderDetails struct {
	CourierOrderID string `json:"orderId"`
	ShipmentID     string `json:"shipmentId,omitempty"`
	Status         string `json:"status"`
	AWBCode        string `json:"awbCode,omitempty"`
	CourierName    string `json:"courierName,omitempty"`
}

// PickupLocation represents a registered pickup location
type PickupLocation struct {
	ID                int    `json:"id"`
	PickupCode        string `json:"pickup_location"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Address           string `json:"address"`
	Address2          string `json:"address_2"`
	City              string `json:"city"`
	State             string `json:"state"`
	Country           string `json:"country"`
	PinCode           string `json:"pin_code"`
	IsPrimaryLocation int    `json:"is_primary_location"`
}

// IsPrimary returns true if this is the primary pickup location
func (p PickupLocation) IsPrimary() bool {
	return p.IsPrimaryLocation == 1
}

// CreateOrderPayload is the adhoc order request body
type CreateOrderPayload struct {
	OrderID             string             `json:"order_id"`
	OrderDate           string             `json:"order_date"`
	PickupLocation      string             `json:"pickup_location"`
	BillingCustomerName string             `json:"billing_customer_name"`
	BillingLastName     string             `json:"billing_last_name"`
	BillingAddress      string             `json:"billing_address"`
	BillingAddress2     string             `json:"billing_address_2,omitempty"`
	BillingCity         string             `json:"billing_city"`
	BillingPincode      string             `json:"billing_pincode"`
	BillingState        string             `json:"billing_state"`
	BillingCountry      string             `json:"billing_country"`
	BillingEmail        string             `json:"billing_email"`
	BillingPhone        string             `json:"billing_phone"`
	ShippingIsBilling   bool               `json:"shipping_is_billing"`
	OrderItems          []CreateOrderItem  `json:"order_items"`
	PaymentMethod       string             `json:"payment_method"`
	ShippingCharges     float64            `json:"shipping_charges"`
	TotalDiscount       float64            `json:"total_discount"`
	SubTotal            float64            `json:"sub_total"`
	Length              float64            `json:"length"`
	Breadth             float64            `json:"breadth"`
	Height              float64            `json:"height"`
	Weight              float64            `json:"weight"`
}

// CreateOrderItem is one line of the adhoc order
type CreateOrderItem struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Units        int     `json:"units"`
	SellingPrice float64 `json:"selling_price"`
	HSN          string  `json:"hsn,omitempty"`
}
