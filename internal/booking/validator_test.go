package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fitprep/practice-session-bookings/internal/booking"
	"github.com/fitprep/practice-session-bookings/internal/domain"
)

func newValidatorEnv(capacity int) (*booking.Validator, *fakeCatalog, *fakeStore, uuid.UUID) {
	sessionID := uuid.New()
	catalog := &fakeCatalog{sessions: map[uuid.UUID]domain.Session{
		sessionID: {
			ID:         sessionID,
			StartsAt:   time.Now().Add(24 * time.Hour),
			Capacity:   capacity,
			PriceMinor: 4500,
			Currency:   "usd",
			Status:     domain.SessionScheduled,
		},
	}}
	store := newFakeStore()
	return booking.NewValidator(catalog, store), catalog, store, sessionID
}

func TestValidate_Passes(t *testing.T) {
	v, _, _, sessionID := newValidatorEnv(3)

	session, err := v.Validate(context.Background(), uuid.New(), sessionID)
	if err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
	if session == nil || session.ID != sessionID {
		t.Fatal("expected the validated session back")
	}
}

func TestValidate_AuthenticationFirst(t *testing.T) {
	// An unauthenticated caller is rejected before the session is even
	// looked up, including for sessions that do not exist.
	v, _, _, _ := newValidatorEnv(3)

	_, err := v.Validate(context.Background(), uuid.Nil, uuid.New())
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestValidate_UnknownSession(t *testing.T) {
	v, _, _, _ := newValidatorEnv(3)

	_, err := v.Validate(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, domain.ErrSessionUnavailable) {
		t.Fatalf("expected ErrSessionUnavailable, got %v", err)
	}
}

func TestValidate_CompletedSession(t *testing.T) {
	v, catalog, _, sessionID := newValidatorEnv(3)
	s := catalog.sessions[sessionID]
	s.Status = domain.SessionCompleted
	catalog.sessions[sessionID] = s

	_, err := v.Validate(context.Background(), uuid.New(), sessionID)
	if !errors.Is(err, domain.ErrSessionUnavailable) {
		t.Fatalf("expected ErrSessionUnavailable, got %v", err)
	}
}

func TestValidate_DuplicateBeforeCapacity(t *testing.T) {
	// A user with an active booking gets the duplicate outcome even when
	// the session is also full; the checks are ordered.
	v, _, store, sessionID := newValidatorEnv(1)
	userID := uuid.New()

	mine := domain.NewBooking(sessionID, userID, "waiver-1")
	mine.Status = domain.BookingConfirmed
	store.bookings[mine.ID] = &mine

	_, err := v.Validate(context.Background(), userID, sessionID)
	if !errors.Is(err, domain.ErrDuplicateBooking) {
		t.Fatalf("expected ErrDuplicateBooking, got %v", err)
	}
}

func TestValidate_DuplicateIgnoresInactiveStatuses(t *testing.T) {
	v, _, store, sessionID := newValidatorEnv(3)
	userID := uuid.New()

	old := domain.NewBooking(sessionID, userID, "waiver-1")
	old.Status = domain.BookingCancelled
	store.bookings[old.ID] = &old
	rejected := domain.NewBooking(sessionID, userID, "waiver-2")
	rejected.Status = domain.BookingRejected
	store.bookings[rejected.ID] = &rejected

	if _, err := v.Validate(context.Background(), userID, sessionID); err != nil {
		t.Fatalf("cancelled and rejected bookings must not count as duplicates, got %v", err)
	}
}

func TestValidate_SessionFull(t *testing.T) {
	v, _, store, sessionID := newValidatorEnv(1)

	other := domain.NewBooking(sessionID, uuid.New(), "waiver-1")
	other.Status = domain.BookingConfirmed
	store.bookings[other.ID] = &other

	_, err := v.Validate(context.Background(), uuid.New(), sessionID)
	if !errors.Is(err, domain.ErrSessionFull) {
		t.Fatalf("expected ErrSessionFull, got %v", err)
	}
}
