package models

import (
	"time"
)

// Reconciliation entry kinds. Every payment-processor failure the dispatch
// flow deliberately swallows lands here so operators can settle it later.
const (
	ReconKindCaptureFailed      = "capture_failed"
	ReconKindRefundFailed       = "refund_failed"
	ReconKindTransferFailed     = "transfer_failed"
	ReconKindSubscriptionFailed = "subscription_charge_failed"
)

type ReconciliationEntry struct {
	ID              string    `db:"id" json:"id"`
	Kind            string    `db:"kind" json:"kind"`
	RideID          *string   `db:"ride_id" json:"ride_id,omitempty"`
	DriverID        *string   `db:"driver_id" json:"driver_id,omitempty"`
	PaymentIntentID *string   `db:"payment_intent_id" json:"payment_intent_id,omitempty"`
	AmountCents     int64     `db:"amount_cents" json:"amount_cents"`
	Detail          string    `db:"detail" json:"detail"`
	Resolved        bool      `db:"resolved" json:"resolved"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
