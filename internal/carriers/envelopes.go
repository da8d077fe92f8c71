package carriers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/models"
)

// Response envelopes are decoded per endpoint and validated before any
// field reaches the services layer.
type responseEnvelope interface {
	validate() error
}

// Tolerant scalar types shared with the webhook payload.
type (
	flexString = models.FlexString
	flexInt    = models.FlexInt
	flexFloat  = models.FlexFloat
)

// errorEnvelope is the aggregator's error shape
type errorEnvelope struct {
	Message    string                 `json:"message"`
	StatusCode int                    `json:"status_code"`
	Errors     map[string]interface{} `json:"errors"`
}

func (e errorEnvelope) text() string {
	msg := strings.TrimSpace(e.Message)
	for field, v := range e.Errors {
		detail := fmt.Sprintf("%s: %v", field, v)
		if msg == "" {
			msg = detail
		} else {
			msg = msg + "; " + detail
		}
		break
	}
	return msg
}

type loginResponse struct {
	Token string `json:"token"`
}

func (r *loginResponse) validate() error {
	if r.Token == "" {
		return apperrors.NewAuthenticationError("login response did not include a token")
	}
	return nil
}

type courierCompany struct {
	CourierCompanyID      flexInt    `json:"courier_company_id"`
	CourierName           string     `json:"courier_name"`
	FreightCharge         flexFloat  `json:"freight_charge"`
	CODCharges            flexFloat  `json:"cod_charges"`
	Rate                  flexFloat  `json:"rate"`
	EstimatedDeliveryDays flexString `json:"estimated_delivery_days"`
	ETD                   string     `json:"etd"`
	Rating                flexFloat  `json:"rating"`
	IsSurface             bool       `json:"is_surface"`
}

type serviceabilityResponse struct {
	Status flexInt `json:"status"`
	Data   *struct {
		AvailableCourierCompanies []courierCompany `json:"available_courier_companies"`
	} `json:"data"`
	Message string `json:"message"`
}

func (r *serviceabilityResponse) validate() error {
	return nil
}

func (r *serviceabilityResponse) quotes() []models.CourierQuote {
	quotes := make([]models.CourierQuote, 0)
	if r.Data == nil {
		return quotes
	}
	for _, c := range r.Data.AvailableCourierCompanies {
		if c.CourierCompanyID <= 0 {
			continue
		}
		freight := float64(c.FreightCharge)
		if freight == 0 {
			freight = float64(c.Rate)
		}
		quotes = append(quotes, models.CourierQuote{
			CourierID:             int(c.CourierCompanyID),
			CourierName:           c.CourierName,
			FreightCharge:         freight,
			CODCharges:            float64(c.CODCharges),
			EstimatedDeliveryDays: string(c.EstimatedDeliveryDays),
			ETD:                   c.ETD,
			Rating:                float64(c.Rating),
			IsSurface:             c.IsSurface,
		})
	}
	return quotes
}

type createOrderResponse struct {
	OrderID          flexString `json:"order_id"`
	ShipmentID       flexString `json:"shipment_id"`
	Status           string     `json:"status"`
	StatusCode       flexInt    `json:"status_code"`
	AWBCode          flexString `json:"awb_code"`
	CourierCompanyID flexInt    `json:"courier_company_id"`
	CourierName      string     `json:"courier_name"`
	Message          string     `json:"message"`
}

func (r *createOrderResponse) validate() error {
	if r.OrderID == "" || r.OrderID == "0" {
		msg := r.Message
		if msg == "" {
			msg = "create order response did not include an order id"
		}
		return apperrors.NewAggregatorError(msg)
	}
	return nil
}

type assignAWBResponse struct {
	AWBAssignStatus flexInt `json:"awb_assign_status"`
	Message         string  `json:"message"`
	Response        struct {
		Data struct {
			AWBCode          flexString `json:"awb_code"`
			CourierCompanyID flexInt    `json:"courier_company_id"`
			CourierName      string     `json:"courier_name"`
			AssignedDateTime struct {
				Date string `json:"date"`
			} `json:"assigned_date_time"`
			AWBAssignError string `json:"awb_assign_error"`
		} `json:"data"`
	} `json:"response"`
}

// A 200 with an empty awb_code is a failed assignment.
func (r *assignAWBResponse) validate() error {
	if r.Response.Data.AWBCode != "" {
		return nil
	}
	msg := r.Response.Data.AWBAssignError
	if msg == "" {
		msg = r.Message
	}
	if msg == "" {
		msg = "courier assignment returned an empty awb_code"
	}
	return apperrors.NewAggregatorError(msg)
}

type pickupResponse struct {
	PickupStatus flexInt `json:"pickup_status"`
	Message      string  `json:"message"`
	Response     struct {
		PickupScheduledDate string     `json:"pickup_scheduled_date"`
		PickupTokenNumber   flexString `json:"pickup_token_number"`
		Status              flexInt    `json:"status"`
		Data                string     `json:"data"`
	} `json:"response"`
}

func (r *pickupResponse) validate() error {
	if r.PickupStatus == 1 || r.Response.PickupScheduledDate != "" || r.Response.PickupTokenNumber != "" {
		return nil
	}
	msg := r.Message
	if msg == "" {
		msg = "pickup was not scheduled"
	}
	return apperrors.NewAggregatorError(msg)
}

type labelResponse struct {
	LabelCreated flexInt         `json:"label_created"`
	LabelURL     string          `json:"label_url"`
	Response     string          `json:"response"`
	NotCreated   json.RawMessage `json:"not_created"`
	Message      string          `json:"message"`
}

func (r *labelResponse) validate() error {
	if r.LabelURL != "" {
		return nil
	}
	msg := r.Response
	if msg == "" {
		msg = r.Message
	}
	if msg == "" {
		msg = "label was not generated"
	}
	return apperrors.NewAggregatorError(msg)
}

type cancelResponse struct {
	Message    string  `json:"message"`
	StatusCode flexInt `json:"status_code"`
}

func (r *cancelResponse) validate() error {
	if r.StatusCode >= 400 {
		return apperrors.NewAggregatorError(r.Message).WithUpstreamStatus(int(r.StatusCode))
	}
	return nil
}

type trackActivity struct {
	Date          string     `json:"date"`
	Status        flexString `json:"status"`
	Activity      string     `json:"activity"`
	Location      string     `json:"location"`
	SRStatus      flexString `json:"sr-status"`
	SRStatusLabel string     `json:"sr-status-label"`
}

type trackResponse struct {
	TrackingData *struct {
		TrackStatus    flexInt `json:"track_status"`
		ShipmentStatus flexInt `json:"shipment_status"`
		ShipmentTrack  []struct {
			CurrentStatus string `json:"current_status"`
			DeliveredDate string `json:"delivered_date"`
			EDD           string `json:"edd"`
			CourierName   string `json:"courier_name"`
		} `json:"shipment_track"`
		ShipmentTrackActivities []trackActivity `json:"shipment_track_activities"`
		TrackURL                string          `json:"track_url"`
		ETD                     string          `json:"etd"`
		Error                   string          `json:"error"`
	} `json:"tracking_data"`
}

func (r *trackResponse) validate() error {
	if r.TrackingData == nil {
		return apperrors.NewAggregatorError("tracking response did not include tracking_data")
	}
	if r.TrackingData.Error != "" && r.TrackingData.TrackStatus == 0 {
		return apperrors.NewAggregatorError(r.TrackingData.Error)
	}
	return nil
}

func (r *trackResponse) result() *TrackingResult {
	data := r.TrackingData
	res := &TrackingResult{
		CurrentStatusID: int(data.ShipmentStatus),
		TrackURL:        data.TrackURL,
		ETD:             parseAggregatorTime(data.ETD),
		Events:          make([]models.TrackingEvent, 0, len(data.ShipmentTrackActivities)),
	}
	if len(data.ShipmentTrack) > 0 {
		track := data.ShipmentTrack[0]
		res.CurrentStatus = track.CurrentStatus
		res.DeliveredDate = parseAggregatorTime(track.DeliveredDate)
		res.CourierName = track.CourierName
		if res.ETD == nil {
			res.ETD = parseAggregatorTime(track.EDD)
		}
	}
	for _, a := range data.ShipmentTrackActivities {
		status := a.SRStatusLabel
		if status == "" {
			status = string(a.Status)
		}
		res.Events = append(res.Events, models.TrackingEvent{
			Date:       parseAggregatorTime(a.Date),
			StatusCode: string(a.SRStatus),
			Status:     status,
			Activity:   a.Activity,
			Location:   a.Location,
		})
	}
	return res
}

type orderShipment struct {
	ID      flexString `json:"id"`
	AWB     flexString `json:"awb"`
	Courier string     `json:"courier"`
}

type orderDetailsResponse struct {
	Data *struct {
		ID        flexString      `json:"id"`
		Status    string          `json:"status"`
		Shipments json.RawMessage `json:"shipments"`
		AWBData   struct {
			AWB flexString `json:"awb"`
		} `json:"awb_data"`
	} `json:"data"`
}

func (r *orderDetailsResponse) validate() error {
	if r.Data == nil || r.Data.ID == "" {
		return apperrors.NewAggregatorError("order details response did not include an order")
	}
	return nil
}

// The aggregator returns shipments as either an object or an array.
func (r *orderDetailsResponse) details() (*OrderDetails, error) {
	d := &OrderDetails{
		CourierOrderID: string(r.Data.ID),
		Status:         r.Data.Status,
		AWBCode:        string(r.Data.AWBData.AWB),
	}
	raw := bytes.TrimSpace(r.Data.Shipments)
	var shipment orderShipment
	switch {
	case len(raw) == 0 || string(raw) == "null":
	case raw[0] == '[':
		var list []orderShipment
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, apperrors.NewAggregatorError("malformed shipments in order details").WithCause(err)
		}
		if len(list) > 0 {
			shipment = list[0]
		}
	case raw[0] == '{':
		if err := json.Unmarshal(raw, &shipment); err != nil {
			return nil, apperrors.NewAggregatorError("malformed shipments in order details").WithCause(err)
		}
	default:
		return nil, apperrors.NewAggregatorError("malformed shipments in order details")
	}
	if shipment.ID != "" && shipment.ID != "0" {
		d.ShipmentID = string(shipment.ID)
	}
	if shipment.AWB != "" {
		d.AWBCode = string(shipment.AWB)
	}
	d.CourierName = shipment.Courier
	return d, nil
}

type pickupLocationEntry struct {
	ID                flexInt    `json:"id"`
	PickupLocation    string     `json:"pickup_location"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Phone             flexString `json:"phone"`
	Address           string     `json:"address"`
	Address2          string     `json:"address_2"`
	City              string     `json:"city"`
	State             string     `json:"state"`
	Country           string     `json:"country"`
	PinCode           flexString `json:"pin_code"`
	IsPrimaryLocation flexInt    `json:"is_primary_location"`
}

type pickupLocationsResponse struct {
	Data *struct {
		ShippingAddress []pickupLocationEntry `json:"shipping_address"`
	} `json:"data"`
}

func (r *pickupLocationsResponse) validate() error {
	if r.Data == nil {
		return apperrors.NewAggregatorError("pickup locations response did not include data")
	}
	return nil
}

func (r *pickupLocationsResponse) locations() []PickupLocation {
	out := make([]PickupLocation, 0, len(r.Data.ShippingAddress))
	for _, e := range r.Data.ShippingAddress {
		out = append(out, PickupLocation{
			ID:                int(e.ID),
			PickupCode:        e.PickupLocation,
			Name:              e.Name,
			Email:             e.Email,
			Phone:             string(e.Phone),
			Address:           e.Address,
			Address2:          e.Address2,
			City:              e.City,
			State:             e.State,
			Country:           e.Country,
			PinCode:           string(e.PinCode),
			IsPrimaryLocation: int(e.IsPrimaryLocation),
		})
	}
	return out
}

var aggregatorTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02 Jan 2006",
	time.RFC3339,
}

// parseAggregatorTime returns nil for empty or unparsable values.
func parseAggregatorTime(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	// "2024-01-02 10:00:00.000000" from assigned_date_time
	if len(v) > 19 && v[4] == '-' && v[10] == ' ' {
		v = v[:19]
	}
	for _, layout := range aggregatorTimeLayouts {
		if t, err := time.ParseInLocation(layout, v, istLocation); err == nil {
			return &t
		}
	}
	return nil
}

// The aggregator reports wall-clock times in IST.
var istLocation = time.FixedZone("IST", 5*60*60+30*60)
