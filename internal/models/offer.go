package models

import (
	"time"
)

// Offer responses
const (
	OfferResponseAccepted = "accepted"
	OfferResponseRejected = "rejected"
)

// DriverOffer is the single in-flight offer for a ride. The dispatcher
// overwrites it at the start of each candidate iteration, so at most one
// unresolved offer exists per ride at any time. The driver's client fills
// in Response; a response arriving after the dispatcher has moved on is
// inert.
type DriverOffer struct {
	RideID      string     `db:"ride_id" json:"ride_id"`
	DriverID    string     `db:"driver_id" json:"driver_id"`
	Attempt     int        `db:"attempt" json:"attempt"`
	OfferedAt   time.Time  `db:"offered_at" json:"offered_at"`
	Response    *string    `db:"response" json:"response,omitempty"`
	RespondedAt *time.Time `db:"responded_at" json:"responded_at,omitempty"`
}

type RespondOfferRequest struct {
	RideID string `json:"ride_id" validate:"required,uuid"`
	Accept bool   `json:"accept"`
}

// IsPending reports whether the offer is still waiting on the driver.
func (o *DriverOffer) IsPending() bool {
	return o.Response == nil
}
