package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	BookingPending   = "PENDING"
	BookingApproved  = "APPROVED"
	BookingConfirmed = "CONFIRMED"
	BookingRejected  = "REJECTED"
	BookingCancelled = "CANCELLED"
)

const (
	PaymentPending   = "PENDING"
	PaymentSucceeded = "SUCCEEDED"
	PaymentFailed    = "FAILED"
)

// ActiveStatuses are the booking statuses that count toward capacity and
// duplicate checks.
var ActiveStatuses = []string{BookingPending, BookingApproved, BookingConfirmed}

type Booking struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	UserID        uuid.UUID
	Status        string
	PaymentStatus string
	PaymentRef    string
	WaiverRef     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewBooking(sessionID, userID uuid.UUID, waiverRef string) Booking {
	now := time.Now()
	return Booking{
		ID:            uuid.New(),
		SessionID:     sessionID,
		UserID:        userID,
		Status:        BookingPending,
		PaymentStatus: PaymentPending,
		WaiverRef:     waiverRef,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Active reports whether the booking holds a seat for duplicate and
// capacity purposes.
func (b Booking) Active() bool {
	switch b.Status {
	case BookingPending, BookingApproved, BookingConfirmed:
		return true
	}
	return false
}
