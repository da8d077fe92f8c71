package services

import (
	"fmt"
	"strings"
	"time"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/carriers"
	"shipment-orchestrator/internal/models"
)

const (
	paymentMethodCOD     = "COD"
	paymentMethodPrepaid = "Prepaid"
	defaultCountry       = "India"
)

// ResolvePickupLocation picks the registered location whose pincode matches
// the configured one, falling back to the first registered location
func ResolvePickupLocation(pincode string, locations []carriers.PickupLocation) (*carriers.PickupLocation, error) {
	if len(locations) == 0 {
		return nil, apperrors.NewConfigurationError("no pickup locations are registered with the courier aggregator")
	}
	pincode = strings.TrimSpace(pincode)
	for i := range locations {
		if pincode != "" && strings.TrimSpace(locations[i].PinCode) == pincode {
			return &locations[i], nil
		}
	}
	return &locations[0], nil
}

// BuildOrderPayload builds the aggregator order from the local order.
// The store already collected shipping, so the COD-collectable subtotal is
// the product amount and shipping_charges is zero.
func BuildOrderPayload(order *models.Order, settings *models.ShipmentSettings, pickup *carriers.PickupLocation, now time.Time) (*carriers.CreateOrderPayload, error) {
	if len(order.Items) == 0 {
		return nil, apperrors.NewValidationError("order has no items")
	}

	addr := order.ShippingAddress
	if strings.TrimSpace(addr.AddressLine1) == "" || strings.TrimSpace(addr.City) == "" {
		return nil, apperrors.NewValidationError("order shipping address is incomplete")
	}
	if err := carriers.ValidatePincode(strings.TrimSpace(addr.Pincode)); err != nil {
		return nil, apperrors.NewValidationError("invalid delivery pincode: " + err.Error())
	}
	phone := carriers.CleanPhoneNumber(addr.Phone)
	if phone == "" {
		return nil, apperrors.NewValidationError("order shipping phone is invalid")
	}

	firstName, lastName := carriers.SplitName(addr.Name)
	country := strings.TrimSpace(addr.Country)
	if country == "" {
		country = defaultCountry
	}

	items := make([]carriers.CreateOrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		sku := item.SKU
		if sku == "" {
			sku = item.ProductID
		}
		if sku == "" {
			sku = fmt.Sprintf("ITEM-%d", item.ID)
		}
		units := item.Quantity
		if units <= 0 {
			units = 1
		}
		items = append(items, carriers.CreateOrderItem{
			Name:         item.Name,
			SKU:          sku,
			Units:        units,
			SellingPrice: carriers.Round2(item.Price),
			HSN:          item.HSN,
		})
	}

	paymentMethod := paymentMethodPrepaid
	if order.IsCOD() {
		paymentMethod = paymentMethodCOD
	}

	length, breadth, height, weight := settings.Package()

	return &carriers.CreateOrderPayload{
		OrderID:             order.ID,
		OrderDate:           carriers.FormatOrderDate(now),
		PickupLocation:      pickup.PickupCode,
		BillingCustomerName: firstName,
		BillingLastName:     lastName,
		BillingAddress:      addr.AddressLine1,
		BillingAddress2:     addr.AddressLine2,
		BillingCity:         addr.City,
		BillingPincode:      strings.TrimSpace(addr.Pincode),
		BillingState:        addr.State,
		BillingCountry:      country,
		BillingEmail:        addr.Email,
		BillingPhone:        phone,
		ShippingIsBilling:   true,
		OrderItems:          items,
		PaymentMethod:       paymentMethod,
		ShippingCharges:     0,
		// total is already net of discounts
		TotalDiscount: 0,
		SubTotal:      carriers.Round2(order.CollectableAmount()),
		Length:        length,
		Breadth:       breadth,
		Height:        height,
		Weight:        weight,
	}, nil
}

// routeFor describes the order's route for serviceability checks
func routeFor(order *models.Order, settings *models.ShipmentSettings) carriers.ServiceabilityRequest {
	length, breadth, height, weight := settings.Package()
	return carriers.ServiceabilityRequest{
		PickupPincode:   strings.TrimSpace(settings.PickupLocation.Pincode),
		DeliveryPincode: strings.TrimSpace(order.ShippingAddress.Pincode),
		WeightKg:        weight,
		IsCOD:           order.IsCOD(),
		DeclaredValue:   carriers.Round2(order.CollectableAmount()),
		Length:          length,
		Breadth:         breadth,
		Height:          height,
	}
}
