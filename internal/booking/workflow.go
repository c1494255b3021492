package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fitprep/practice-session-bookings/internal/domain"
	"github.com/fitprep/practice-session-bookings/internal/observability"
)

const (
	TemplateSubmitted = "booking.submitted"
	TemplateCancelled = "booking.cancelled"
)

type SubmitResult struct {
	BookingID  uuid.UUID
	Status     string
	PaymentRef string
}

// Workflow drives a single booking attempt:
// validate -> create (pending) -> charge -> finalize. On payment failure the
// just-created booking is deleted as compensation; on success the booking
// stays pending until the admin review path advances it.
type Workflow struct {
	validator *Validator
	store     Store
	payments  PaymentCoordinator
	notifier  Notifier
	audit     Auditor
	logger    observability.Logger

	chargeTimeout time.Duration
	storeTimeout  time.Duration
}

func NewWorkflow(validator *Validator, store Store, payments PaymentCoordinator, notifier Notifier, audit Auditor, logger observability.Logger, chargeTimeout, storeTimeout time.Duration) *Workflow {
	return &Workflow{
		validator:     validator,
		store:         store,
		payments:      payments,
		notifier:      notifier,
		audit:         audit,
		logger:        logger,
		chargeTimeout: chargeTimeout,
		storeTimeout:  storeTimeout,
	}
}

// Submit runs the booking attempt to completion. Once the charge has been
// issued the attempt is not cancellable; caller cancellation no longer
// interrupts the compensation or finalization steps.
func (w *Workflow) Submit(ctx context.Context, userID, sessionID uuid.UUID, waiverRef, paymentMethod string) (res SubmitResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic in booking submission", r)
			err = domain.ErrInternal
		}
		observability.SubmissionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	}()

	session, err := w.validator.Validate(ctx, userID, sessionID)
	if err != nil {
		return SubmitResult{}, w.classify(err)
	}

	b := domain.NewBooking(sessionID, userID, waiverRef)

	createCtx, cancelCreate := context.WithTimeout(ctx, w.storeTimeout)
	defer cancelCreate()
	if err := w.store.Create(createCtx, b, session.Capacity); err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrSerializationFailure):
			// Race lost to a concurrent identical request; a retried
			// submission will hit the duplicate pre-check cleanly.
			return SubmitResult{}, domain.ErrConflict
		case errors.Is(err, domain.ErrSessionFull):
			return SubmitResult{}, domain.ErrSessionFull
		default:
			w.logger.Error("booking create failed", err)
			return SubmitResult{}, domain.ErrInternal
		}
	}

	// The charge and everything after it run detached from caller
	// cancellation; the attempt must finish with either a finalized booking
	// or a compensated one.
	opCtx := context.WithoutCancel(ctx)

	chargeCtx, cancelCharge := context.WithTimeout(opCtx, w.chargeTimeout)
	start := time.Now()
	result, chargeErr := w.payments.Charge(chargeCtx, ChargeRequest{
		BookingID:   b.ID,
		AmountMinor: session.PriceMinor,
		Currency:    session.Currency,
		Method:      paymentMethod,
	})
	cancelCharge()
	observability.ChargeDuration.Observe(time.Since(start).Seconds())

	if chargeErr != nil || !result.Succeeded {
		reason := result.Reason
		if chargeErr != nil {
			reason = chargeErr.Error()
		}
		w.compensate(opCtx, b.ID)
		return SubmitResult{}, fmt.Errorf("%s: %w", reason, domain.ErrPaymentFailed)
	}

	b.PaymentStatus = domain.PaymentSucceeded
	b.PaymentRef = result.TransactionID
	updateCtx, cancelUpdate := context.WithTimeout(opCtx, w.storeTimeout)
	defer cancelUpdate()
	if err := w.store.UpdatePaymentStatus(updateCtx, b.ID, domain.PaymentSucceeded, result.TransactionID); err != nil {
		// The charge is captured; deleting the booking here would lose a
		// paid booking. Leave the row for the reconciler and flag loudly.
		w.logger.WithField("booking_id", b.ID.String()).Error("payment captured but status update failed", err)
		return SubmitResult{}, domain.ErrInternal
	}

	if err := w.notifier.Notify(opCtx, userID, TemplateSubmitted, map[string]interface{}{
		"booking_id": b.ID.String(),
		"session_id": sessionID.String(),
	}); err != nil {
		w.logger.Warn("submission notification failed", err)
	}
	if w.audit != nil {
		if err := w.audit.LogSubmission(opCtx, b); err != nil {
			w.logger.Warn("audit log failed", err)
		}
	}

	return SubmitResult{BookingID: b.ID, Status: b.Status, PaymentRef: result.TransactionID}, nil
}

// compensate deletes the just-created pending booking after a failed
// charge. Best effort: if the delete itself fails the orphaned row is left
// for the reconciler sweep.
func (w *Workflow) compensate(ctx context.Context, bookingID uuid.UUID) {
	delCtx, cancel := context.WithTimeout(ctx, w.storeTimeout)
	defer cancel()
	if err := w.store.Delete(delCtx, bookingID); err != nil {
		w.logger.WithField("booking_id", bookingID.String()).Error("compensation delete failed, leaving orphan for reconciler", err)
	}
}

// Cancel is the owner's cancellation of their own pending or approved
// booking.
func (w *Workflow) Cancel(ctx context.Context, userID, bookingID uuid.UUID) error {
	if userID == uuid.Nil {
		return domain.ErrUnauthenticated
	}
	if err := w.store.Cancel(ctx, bookingID, userID); err != nil {
		return err
	}
	if err := w.notifier.Notify(ctx, userID, TemplateCancelled, map[string]interface{}{
		"booking_id": bookingID.String(),
	}); err != nil {
		w.logger.Warn("cancellation notification failed", err)
	}
	if w.audit != nil {
		if err := w.audit.LogCancellation(ctx, bookingID, userID); err != nil {
			w.logger.Warn("audit log failed", err)
		}
	}
	return nil
}

// classify maps validator errors onto the user-displayable outcomes;
// anything unexpected becomes ErrInternal so raw internals never reach the
// caller.
func (w *Workflow) classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, domain.ErrSessionUnavailable),
		errors.Is(err, domain.ErrDuplicateBooking),
		errors.Is(err, domain.ErrSessionFull):
		return err
	default:
		w.logger.Error("booking validation failed", err)
		return domain.ErrInternal
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, domain.ErrSessionUnavailable):
		return "session_unavailable"
	case errors.Is(err, domain.ErrDuplicateBooking):
		return "duplicate"
	case errors.Is(err, domain.ErrSessionFull):
		return "session_full"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrPaymentFailed):
		return "payment_failed"
	default:
		return "internal"
	}
}
