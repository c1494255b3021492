package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionScheduled = "SCHEDULED"
	SessionCancelled = "CANCELLED"
	SessionCompleted = "COMPLETED"
)

// Session is a capacity-limited practice slot. Capacity and status are
// admin-controlled; this service only reads them.
type Session struct {
	ID         uuid.UUID
	StartsAt   time.Time
	Capacity   int
	PriceMinor int64
	Currency   string
	Status     string
}

func (s Session) Bookable() bool {
	return s.Status == SessionScheduled
}
