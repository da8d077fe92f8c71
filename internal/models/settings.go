package models

import (
	"strings"
	"time"
)

// Package defaults used when the settings row leaves dimensions unset.
const (
	DefaultPackageLength  = 10.0
	DefaultPackageBreadth = 10.0
	DefaultPackageHeight  = 10.0
	DefaultPackageWeight  = 0.5
)

// PickupAddress is the warehouse the courier collects from
type PickupAddress struct {
	Name    string `gorm:"type:varchar(255)" json:"name"`
	Address string `gorm:"type:varchar(500)" json:"address"`
	City    string `gorm:"type:varchar(100)" json:"city"`
	State   string `gorm:"type:varchar(100)" json:"state"`
	Pincode string `gorm:"type:varchar(20)" json:"pincode"`
	Phone   string `gorm:"type:varchar(50)" json:"phone"`
	Email   string `gorm:"type:varchar(255)" json:"email"`
}

// ShipmentSettings is the single active integration record.
// Secrets never leave the process through JSON.
type ShipmentSettings struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Aggregator credentials
	Email    string `gorm:"type:varchar(255)" json:"email"`
	Password string `gorm:"type:varchar(255)" json:"-"`

	Enabled            bool `gorm:"default:false" json:"enabled"`
	AutoAssignCourier  bool `gorm:"default:false" json:"autoAssignCourier"`
	AutoCreateOrder    bool `gorm:"default:false" json:"autoCreateOrder"`
	AutoSchedulePickup bool `gorm:"default:false" json:"autoSchedulePickup"`

	PickupLocation PickupAddress `gorm:"embedded;embeddedPrefix:pickup_" json:"pickupLocation"`

	DefaultLength  float64 `gorm:"type:decimal(10,2);default:10" json:"defaultLength"`
	DefaultBreadth float64 `gorm:"type:decimal(10,2);default:10" json:"defaultBreadth"`
	DefaultHeight  float64 `gorm:"type:decimal(10,2);default:10" json:"defaultHeight"`
	DefaultWeight  float64 `gorm:"type:decimal(10,3);default:0.5" json:"defaultWeight"`

	// Cached bearer token, shared between instances
	AuthToken      string     `gorm:"type:text" json:"-"`
	TokenExpiresAt *time.Time `json:"-"`

	WebhookSecret string `gorm:"type:varchar(255)" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (ShipmentSettings) TableName() string {
	return "shipment_settings"
}

// HasCredentials reports whether aggregator credentials are stored.
func (s *ShipmentSettings) HasCredentials() bool {
	return strings.TrimSpace(s.Email) != "" && s.Password != ""
}

// HasPickupLocation reports whether a pickup pincode is configured.
func (s *ShipmentSettings) HasPickupLocation() bool {
	return strings.TrimSpace(s.PickupLocation.Pincode) != ""
}

// Package returns the default package, filling unset values.
func (s *ShipmentSettings) Package() (length, breadth, height, weight float64) {
	length, breadth, height, weight = s.DefaultLength, s.DefaultBreadth, s.DefaultHeight, s.DefaultWeight
	if length <= 0 {
		length = DefaultPackageLength
	}
	if breadth <= 0 {
		breadth = DefaultPackageBreadth
	}
	if height <= 0 {
		height = DefaultPackageHeight
	}
	if weight <= 0 {
		weight = DefaultPackageWeight
	}
	return
}

// ShipmentSettingsResponse is the admin view of the settings
type ShipmentSettingsResponse struct {
	ID                 uint          `json:"id"`
	Email              string        `json:"email"`
	HasCredentials     bool          `json:"hasCredentials"`
	Enabled            bool          `json:"enabled"`
	AutoAssignCourier  bool          `json:"autoAssignCourier"`
	AutoCreateOrder    bool          `json:"autoCreateOrder"`
	AutoSchedulePickup bool          `json:"autoSchedulePickup"`
	PickupLocation     PickupAddress `json:"pickupLocation"`
	DefaultLength      float64       `json:"defaultLength"`
	DefaultBreadth     float64       `json:"defaultBreadth"`
	DefaultHeight      float64       `json:"defaultHeight"`
	DefaultWeight      float64       `json:"defaultWeight"`
	HasWebhookSecret   bool          `json:"hasWebhookSecret"`
	TokenValid         bool          `json:"tokenValid"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// ToResponse converts ShipmentSettings to ShipmentSettingsResponse
func (s *ShipmentSettings) ToResponse(now time.Time) *ShipmentSettingsResponse {
	return &ShipmentSettingsResponse{
		ID:                 s.ID,
		Email:              s.Email,
		HasCredentials:     s.HasCredentials(),
		Enabled:            s.Enabled,
		AutoAssignCourier:  s.AutoAssignCourier,
		AutoCreateOrder:    s.AutoCreateOrder,
		AutoSchedulePickup: s.AutoSchedulePickup,
		PickupLocation:     s.PickupLocation,
		DefaultLength:      s.DefaultLength,
		DefaultBreadth:     s.DefaultBreadth,
		DefaultHeight:      s.DefaultHeight,
		DefaultWeight:      s.DefaultWeight,
		HasWebhookSecret:   s.WebhookSecret != "",
		TokenValid:         s.AuthToken != "" && s.TokenExpiresAt != nil && s.TokenExpiresAt.After(now),
		UpdatedAt:          s.UpdatedAt,
	}
}

// UpdateShipmentSettingsRequest is the admin payload for PUT /shipping-settings.
// Nil fields are left unchanged.
type UpdateShipmentSettingsRequest struct {
	Email              *string        `json:"email"`
	Password           *string        `json:"password"`
	Enabled            *bool          `json:"enabled"`
	AutoAssignCourier  *bool          `json:"autoAssignCourier"`
	AutoCreateOrder    *bool          `json:"autoCreateOrder"`
	AutoSchedulePickup *bool          `json:"autoSchedulePickup"`
	PickupLocation     *PickupAddress `json:"pickupLocation"`
	DefaultLength      *float64       `json:"defaultLength"`
	DefaultBreadth     *float64       `json:"defaultBreadth"`
	DefaultHeight      *float64       `json:"defaultHeight"`
	DefaultWeight      *float64       `json:"defaultWeight"`
	WebhookSecret      *string        `json:"webhookSecret"`
}
