package models

import (
	"time"
)

// Driver status constants
const (
	DriverStatusAvailable = "available"
	DriverStatusOnTrip    = "on_trip"
	DriverStatusOffline   = "offline"
)

// Driver payment plans
const (
	PaymentStyleMonthly    = "monthly"
	PaymentStyleYearly     = "yearly"
	PaymentStyleCommission = "commission"
)

type Driver struct {
	ID            string   `db:"id" json:"id"`
	Name          string   `db:"name" json:"name"`
	Phone         string   `db:"phone" json:"phone"`
	Email         *string  `db:"email" json:"email,omitempty"`
	Rating        float64  `db:"rating" json:"rating"`
	Vehicle       string   `db:"vehicle" json:"vehicle"`
	LicensePlate  string   `db:"license_plate" json:"license_plate"`
	PhotoURL      *string  `db:"photo_url" json:"photo_url,omitempty"`
	Online        bool     `db:"online" json:"online"`
	Status        string   `db:"status" json:"status"`
	ActiveRideID  *string  `db:"active_ride_id" json:"active_ride_id,omitempty"`
	CurrentLat    *float64 `db:"current_lat" json:"current_lat,omitempty"`
	CurrentLng    *float64 `db:"current_lng" json:"current_lng,omitempty"`
	ExpoPushToken *string  `db:"expo_push_token" json:"expo_push_token,omitempty"`

	// Billing. A driver is either on a flat subscription (monthly/yearly)
	// or pays per-ride commission up to a monthly cap.
	PaymentStyle              string     `db:"payment_style" json:"payment_style"`
	StripeAccountID           *string    `db:"stripe_account_id" json:"stripe_account_id,omitempty"`
	StripeCustomerID          *string    `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	DefaultPaymentMethodID    *string    `db:"default_payment_method_id" json:"default_payment_method_id,omitempty"`
	CommissionPaidMonthCents  int64      `db:"commission_paid_month_cents" json:"commission_paid_month_cents"`
	LastSubscriptionPaymentAt *time.Time `db:"last_subscription_payment_at" json:"last_subscription_payment_at,omitempty"`

	LastHeartbeat *time.Time `db:"last_heartbeat" json:"last_heartbeat,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

type CreateDriverRequest struct {
	Name         string `json:"name" validate:"required,min=2,max=100"`
	Phone        string `json:"phone" validate:"required,min=10,max=15"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Vehicle      string `json:"vehicle" validate:"required"`
	LicensePlate string `json:"license_plate" validate:"required"`
	PaymentStyle string `json:"payment_style" validate:"required,oneof=monthly yearly commission"`
}

type UpdateDriverLocationRequest struct {
	Lat float64 `json:"lat" validate:"required,latitude"`
	Lng float64 `json:"lng" validate:"required,longitude"`
}

type DriverResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Rating       float64  `json:"rating"`
	Vehicle      string   `json:"vehicle"`
	LicensePlate string   `json:"license_plate"`
	Online       bool     `json:"online"`
	Status       string   `json:"status"`
	CurrentLat   *float64 `json:"current_lat,omitempty"`
	CurrentLng   *float64 `json:"current_lng,omitempty"`
}

func (d *Driver) ToResponse() *DriverResponse {
	return &DriverResponse{
		ID:           d.ID,
		Name:         d.Name,
		Rating:       d.Rating,
		Vehicle:      d.Vehicle,
		LicensePlate: d.LicensePlate,
		Online:       d.Online,
		Status:       d.Status,
		CurrentLat:   d.CurrentLat,
		CurrentLng:   d.CurrentLng,
	}
}

// Snapshot builds the public profile copied onto a ride on acceptance.
func (d *Driver) Snapshot() DriverSnapshot {
	return DriverSnapshot{
		Name:         d.Name,
		PhotoURL:     d.PhotoURL,
		Rating:       d.Rating,
		Vehicle:      d.Vehicle,
		LicensePlate: d.LicensePlate,
	}
}

func IsValidDriverStatus(status string) bool {
	return status == DriverStatusAvailable || status == DriverStatusOnTrip || status == DriverStatusOffline
}

func IsValidPaymentStyle(style string) bool {
	return style == PaymentStyleMonthly || style == PaymentStyleYearly || style == PaymentStyleCommission
}
