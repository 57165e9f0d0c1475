package service

import (
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/transfer"
)

// PaymentProcessor abstracts the card-processing backend. Amounts are
// integer cents throughout.
type PaymentProcessor interface {
	// Authorize places a manual-capture hold for the fare and returns the
	// payment intent ID.
	Authorize(customerID, paymentMethodID string, amountCents int64) (string, error)
	// Capture settles a previously authorized hold.
	Capture(paymentIntentID string) error
	// Refund releases or refunds a hold and returns the refund ID.
	Refund(paymentIntentID string) (string, error)
	// Transfer moves funds to a driver's connected account and returns the
	// transfer ID.
	Transfer(accountID string, amountCents int64, description string) (string, error)
	// ChargeOffSession charges a saved payment method without the customer
	// present, used for subscription fees.
	ChargeOffSession(customerID, paymentMethodID string, amountCents int64, description string) (string, error)
}

type stripeProcessor struct {
	currency string
}

// NewStripeProcessor sets the global API key and returns a processor
// backed by Stripe manual-capture payment intents.
func NewStripeProcessor(apiKey, currency string) PaymentProcessor {
	stripe.Key = apiKey
	return &stripeProcessor{currency: currency}
}

func (p *stripeProcessor) Authorize(customerID, paymentMethodID string, amountCents int64) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(p.currency),
		Customer:      stripe.String(customerID),
		PaymentMethod: stripe.String(paymentMethodID),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

func (p *stripeProcessor) Capture(paymentIntentID string) error {
	_, err := paymentintent.Capture(paymentIntentID, &stripe.PaymentIntentCaptureParams{})
	return err
}

func (p *stripeProcessor) Refund(paymentIntentID string) (string, error) {
	r, err := refund.New(&stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	})
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

func (p *stripeProcessor) Transfer(accountID string, amountCents int64, description string) (string, error) {
	t, err := transfer.New(&stripe.TransferParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(p.currency),
		Destination: stripe.String(accountID),
		Description: stripe.String(description),
	})
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

func (p *stripeProcessor) ChargeOffSession(customerID, paymentMethodID string, amountCents int64, description string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(p.currency),
		Customer:      stripe.String(customerID),
		PaymentMethod: stripe.String(paymentMethodID),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
		Description:   stripe.String(description),
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}
