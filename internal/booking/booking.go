// Package booking implements admission control for practice-session
// bookings: whether a seat may be reserved, and the validate -> create ->
// charge -> finalize workflow with compensation on payment failure.
package booking

import (
	"context"

	"github.com/google/uuid"

	"github.com/fitprep/practice-session-bookings/internal/domain"
)

// SessionCatalog is the read-only view of bookable sessions.
type SessionCatalog interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Session, error)
}

// Store is the durable record of bookings. Create must enforce the
// one-active-booking-per-(user, session) invariant atomically; the
// validator's reads are only an optimistic pre-check.
type Store interface {
	Create(ctx context.Context, b domain.Booking, capacity int) error
	UpdatePaymentStatus(ctx context.Context, bookingID uuid.UUID, status, paymentRef string) error
	Delete(ctx context.Context, bookingID uuid.UUID) error
	Cancel(ctx context.Context, bookingID, userID uuid.UUID) error
	CountConfirmed(ctx context.Context, sessionID uuid.UUID) (int, error)
	FindActiveBooking(ctx context.Context, userID, sessionID uuid.UUID) (*domain.Booking, error)
}

type ChargeRequest struct {
	BookingID   uuid.UUID
	AmountMinor int64
	Currency    string
	Method      string
}

// PaymentCoordinator wraps the external provider as a single bounded call;
// it does not retry. Any error is treated as a failed charge.
type PaymentCoordinator interface {
	Charge(ctx context.Context, req ChargeRequest) (domain.PaymentResult, error)
}

// Notifier emits user-facing notifications; fire-and-forget from the
// workflow's perspective.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, template string, payload map[string]interface{}) error
}

// Auditor records booking activity out of band; failures never affect the
// booking outcome.
type Auditor interface {
	LogSubmission(ctx context.Context, b domain.Booking) error
	LogCancellation(ctx context.Context, bookingID, userID uuid.UUID) error
}
