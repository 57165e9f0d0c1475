package models

import (
	"time"
)

// Ride status constants
const (
	RideStatusPending            = "pending"
	RideStatusAccepted           = "accepted"
	RideStatusDriverArrived      = "driver_arrived"
	RideStatusInProgress         = "in_progress"
	RideStatusCompleted          = "completed"
	RideStatusCanceled           = "canceled"
	RideStatusNoDriversAvailable = "no_drivers_available"
	RideStatusError              = "error"
)

// Payout status constants
const (
	PayoutStatusPending = "pending"
	PayoutStatusPaid    = "paid"
)

// Refund reasons recorded on the ride
const (
	RefundReasonNoDriversAvailable = "no_drivers_available"
	RefundReasonNoDriversAccepted  = "no_drivers_accepted"
	RefundReasonRideCanceled       = "ride_canceled"
)

// Valid ride state transitions. Terminal states have no exits; status
// changes are monotonic along this graph.
var ValidRideTransitions = map[string][]string{
	RideStatusPending:            {RideStatusAccepted, RideStatusNoDriversAvailable, RideStatusCanceled, RideStatusError},
	RideStatusAccepted:           {RideStatusDriverArrived, RideStatusCanceled},
	RideStatusDriverArrived:      {RideStatusInProgress, RideStatusCanceled},
	RideStatusInProgress:         {RideStatusCompleted},
	RideStatusCompleted:          {},
	RideStatusCanceled:           {},
	RideStatusNoDriversAvailable: {},
	RideStatusError:              {},
}

type Location struct {
	Lat float64 `json:"lat" validate:"required,latitude"`
	Lng float64 `json:"lng" validate:"required,longitude"`
}

// DriverSnapshot is the public driver profile copied onto the ride at
// acceptance so the rider UI never has to join against the driver record.
type DriverSnapshot struct {
	Name         string  `json:"name"`
	PhotoURL     *string `json:"photo_url,omitempty"`
	Rating       float64 `json:"rating"`
	Vehicle      string  `json:"vehicle"`
	LicensePlate string  `json:"license_plate"`
}

type Ride struct {
	ID              string  `db:"id" json:"id"`
	RiderID         string  `db:"rider_id" json:"rider_id"`
	DriverID        *string `db:"driver_id" json:"driver_id,omitempty"`
	PickupLat       float64 `db:"pickup_lat" json:"pickup_lat"`
	PickupLng       float64 `db:"pickup_lng" json:"pickup_lng"`
	DropoffLat      float64 `db:"dropoff_lat" json:"dropoff_lat"`
	DropoffLng      float64 `db:"dropoff_lng" json:"dropoff_lng"`
	Status          string  `db:"status" json:"status"`
	FareCents       int64   `db:"fare_cents" json:"fare_cents"`
	PaymentIntentID *string `db:"payment_intent_id" json:"payment_intent_id,omitempty"`

	// Driver snapshot, populated on acceptance.
	DriverName         *string  `db:"driver_name" json:"driver_name,omitempty"`
	DriverPhotoURL     *string  `db:"driver_photo_url" json:"driver_photo_url,omitempty"`
	DriverRating       *float64 `db:"driver_rating" json:"driver_rating,omitempty"`
	DriverVehicle      *string  `db:"driver_vehicle" json:"driver_vehicle,omitempty"`
	DriverLicensePlate *string  `db:"driver_license_plate" json:"driver_license_plate,omitempty"`

	// Live driver position, mirrored by the location sync while the
	// driver holds this ride.
	DriverCurrentLat *float64 `db:"driver_current_lat" json:"driver_current_lat,omitempty"`
	DriverCurrentLng *float64 `db:"driver_current_lng" json:"driver_current_lng,omitempty"`

	RefundID     *string `db:"refund_id" json:"refund_id,omitempty"`
	RefundReason *string `db:"refund_reason" json:"refund_reason,omitempty"`
	RefundError  *string `db:"refund_error" json:"refund_error,omitempty"`
	PayoutStatus string  `db:"payout_status" json:"payout_status"`

	CanceledBy   *string    `db:"canceled_by" json:"canceled_by,omitempty"`
	CancelReason *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CanceledAt   *time.Time `db:"canceled_at" json:"canceled_at,omitempty"`
	AcceptedAt   *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

type CreateRideRequest struct {
	RiderID string   `json:"rider_id" validate:"required,uuid"`
	Pickup  Location `json:"pickup" validate:"required"`
	Dropoff Location `json:"dropoff" validate:"required"`
}

type CancelRideRequest struct {
	RiderID string `json:"rider_id" validate:"required,uuid"`
	Reason  string `json:"reason,omitempty"`
}

type UpdateRideStatusRequest struct {
	DriverID string `json:"driver_id" validate:"required,uuid"`
	Status   string `json:"status" validate:"required,oneof=driver_arrived in_progress completed"`
}

type RideResponse struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Pickup       Location        `json:"pickup"`
	Dropoff      Location        `json:"dropoff"`
	FareCents    int64           `json:"fare_cents"`
	Driver       *DriverSnapshot `json:"driver,omitempty"`
	DriverLat    *float64        `json:"driver_lat,omitempty"`
	DriverLng    *float64        `json:"driver_lng,omitempty"`
	RefundID     *string         `json:"refund_id,omitempty"`
	RefundReason *string         `json:"refund_reason,omitempty"`
	AcceptedAt   *time.Time      `json:"accepted_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (r *Ride) ToResponse() *RideResponse {
	resp := &RideResponse{
		ID:           r.ID,
		Status:       r.Status,
		Pickup:       Location{Lat: r.PickupLat, Lng: r.PickupLng},
		Dropoff:      Location{Lat: r.DropoffLat, Lng: r.DropoffLng},
		FareCents:    r.FareCents,
		DriverLat:    r.DriverCurrentLat,
		DriverLng:    r.DriverCurrentLng,
		RefundID:     r.RefundID,
		RefundReason: r.RefundReason,
		AcceptedAt:   r.AcceptedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}

	if r.DriverName != nil {
		snap := &DriverSnapshot{Name: *r.DriverName, PhotoURL: r.DriverPhotoURL}
		if r.DriverRating != nil {
			snap.Rating = *r.DriverRating
		}
		if r.DriverVehicle != nil {
			snap.Vehicle = *r.DriverVehicle
		}
		if r.DriverLicensePlate != nil {
			snap.LicensePlate = *r.DriverLicensePlate
		}
		resp.Driver = snap
	}

	return resp
}

// CanTransitionTo checks if a ride can transition to a new status
func (r *Ride) CanTransitionTo(newStatus string) bool {
	validNextStates, exists := ValidRideTransitions[r.Status]
	if !exists {
		return false
	}

	for _, state := range validNextStates {
		if state == newStatus {
			return true
		}
	}
	return false
}

// IsCancelable reports whether a rider may still cancel the ride.
// Completed, in-progress and already-canceled rides are off limits.
func (r *Ride) IsCancelable() bool {
	switch r.Status {
	case RideStatusCompleted, RideStatusCanceled, RideStatusInProgress:
		return false
	}
	return true
}

// IsActive returns true if the ride is not in a terminal state
func (r *Ride) IsActive() bool {
	switch r.Status {
	case RideStatusCompleted, RideStatusCanceled, RideStatusNoDriversAvailable, RideStatusError:
		return false
	}
	return true
}
