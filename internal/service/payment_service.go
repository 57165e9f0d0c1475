package service

import (
	"context"
	"log"

	"github.com/flowride/flow/internal/models"
	"github.com/flowride/flow/internal/repository"
)

// PaymentService wraps the processor with the fail-open policy: once a
// ride decision is made, capture and refund failures are logged and
// recorded for reconciliation but never propagate back to the caller or
// revert ride status.
type PaymentService interface {
	AuthorizeRide(ctx context.Context, rider *models.Rider, amountCents int64) (string, error)
	CaptureRide(ctx context.Context, ride *models.Ride)
	RefundRide(ctx context.Context, ride *models.Ride, reason string) (refundID, refundErr *string)
	TransferPayout(ctx context.Context, driver *models.Driver, amountCents int64, description string) (string, error)
	ChargeSubscription(ctx context.Context, driver *models.Driver, amountCents int64, description string) error
}

type paymentService struct {
	processor PaymentProcessor
	reconRepo repository.ReconciliationRepository
}

func NewPaymentService(processor PaymentProcessor, reconRepo repository.ReconciliationRepository) PaymentService {
	return &paymentService{processor: processor, reconRepo: reconRepo}
}

// AuthorizeRide places the fare hold. Unlike the post-decision paths this
// is allowed to fail: no hold, no ride.
func (s *paymentService) AuthorizeRide(ctx context.Context, rider *models.Rider, amountCents int64) (string, error) {
	if rider.StripeCustomerID == nil || rider.DefaultPaymentMethodID == nil {
		return "", nil
	}
	return s.processor.Authorize(*rider.StripeCustomerID, *rider.DefaultPaymentMethodID, amountCents)
}

func (s *paymentService) CaptureRide(ctx context.Context, ride *models.Ride) {
	if ride.PaymentIntentID == nil {
		return
	}

	if err := s.processor.Capture(*ride.PaymentIntentID); err != nil {
		log.Printf("payment: capture failed for ride %s: %v", ride.ID, err)
		s.record(ctx, &models.ReconciliationEntry{
			Kind:            models.ReconKindCaptureFailed,
			RideID:          &ride.ID,
			DriverID:        ride.DriverID,
			PaymentIntentID: ride.PaymentIntentID,
			AmountCents:     ride.FareCents,
			Detail:          err.Error(),
		})
	}
}

// RefundRide releases the fare hold. On failure the error text comes back
// so the caller can stamp it on the ride row; the status decision stands
// either way.
func (s *paymentService) RefundRide(ctx context.Context, ride *models.Ride, reason string) (refundID, refundErr *string) {
	if ride.PaymentIntentID == nil {
		return nil, nil
	}

	id, err := s.processor.Refund(*ride.PaymentIntentID)
	if err != nil {
		log.Printf("payment: refund failed for ride %s (%s): %v", ride.ID, reason, err)
		msg := err.Error()
		s.record(ctx, &models.ReconciliationEntry{
			Kind:            models.ReconKindRefundFailed,
			RideID:          &ride.ID,
			DriverID:        ride.DriverID,
			PaymentIntentID: ride.PaymentIntentID,
			AmountCents:     ride.FareCents,
			Detail:          reason + ": " + msg,
		})
		return nil, &msg
	}
	return &id, nil
}

func (s *paymentService) TransferPayout(ctx context.Context, driver *models.Driver, amountCents int64, description string) (string, error) {
	if driver.StripeAccountID == nil {
		log.Printf("payment: driver %s has no connected account, skipping payout", driver.ID)
		return "", nil
	}

	id, err := s.processor.Transfer(*driver.StripeAccountID, amountCents, description)
	if err != nil {
		log.Printf("payment: transfer failed for driver %s: %v", driver.ID, err)
		s.record(ctx, &models.ReconciliationEntry{
			Kind:        models.ReconKindTransferFailed,
			DriverID:    &driver.ID,
			AmountCents: amountCents,
			Detail:      err.Error(),
		})
		return "", err
	}
	return id, nil
}

func (s *paymentService) ChargeSubscription(ctx context.Context, driver *models.Driver, amountCents int64, description string) error {
	if driver.StripeCustomerID == nil || driver.DefaultPaymentMethodID == nil {
		log.Printf("payment: driver %s has no saved payment method, skipping subscription charge", driver.ID)
		return nil
	}

	_, err := s.processor.ChargeOffSession(*driver.StripeCustomerID, *driver.DefaultPaymentMethodID, amountCents, description)
	if err != nil {
		log.Printf("payment: subscription charge failed for driver %s: %v", driver.ID, err)
		s.record(ctx, &models.ReconciliationEntry{
			Kind:        models.ReconKindSubscriptionFailed,
			DriverID:    &driver.ID,
			AmountCents: amountCents,
			Detail:      err.Error(),
		})
		return err
	}
	return nil
}

func (s *paymentService) record(ctx context.Context, entry *models.ReconciliationEntry) {
	if err := s.reconRepo.Insert(ctx, entry); err != nil {
		log.Printf("payment: failed to record reconciliation entry (%s): %v", entry.Kind, err)
	}
}
