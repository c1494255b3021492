// Package payment wraps the payment provider behind the
// booking.PaymentCoordinator contract: one bounded charge call, no retries.
package payment

import (
	"context"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"

	"github.com/fitprep/practice-session-bookings/internal/booking"
	"github.com/fitprep/practice-session-bookings/internal/domain"
	"github.com/fitprep/practice-session-bookings/internal/observability"
)

// StripeCoordinator charges session prices through Stripe PaymentIntents.
// The API key is set process-wide (stripe.Key) at startup.
type StripeCoordinator struct {
	logger observability.Logger
}

func NewStripeCoordinator(logger observability.Logger) *StripeCoordinator {
	return &StripeCoordinator{logger: logger}
}

// Charge issues a single confirmed PaymentIntent for the booking. Provider
// declines come back as a failed PaymentResult; transport errors and
// timeouts are returned as errors, which callers treat the same way.
func (c *StripeCoordinator) Charge(ctx context.Context, req booking.ChargeRequest) (domain.PaymentResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountMinor),
		Currency:      stripe.String(req.Currency),
		PaymentMethod: stripe.String(req.Method),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.BookingID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok {
			c.logger.WithField("booking_id", req.BookingID.String()).Warn("charge declined", stripeErr.Code)
			return domain.PaymentResult{Succeeded: false, Reason: string(stripeErr.Code)}, nil
		}
		return domain.PaymentResult{}, err
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return domain.PaymentResult{Succeeded: false, Reason: string(pi.Status)}, nil
	}
	return domain.PaymentResult{Succeeded: true, TransactionID: pi.ID}, nil
}
