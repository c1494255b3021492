package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fitprep/practice-session-bookings/internal/domain"
)

// Validator runs the ordered admission pre-checks. It performs no writes;
// the store re-detects duplicates and capacity at the single serialization
// point, so a passing validation is not a guarantee.
type Validator struct {
	catalog SessionCatalog
	store   Store
}

func NewValidator(catalog SessionCatalog, store Store) *Validator {
	return &Validator{catalog: catalog, store: store}
}

// Validate short-circuits on the first failed check and returns the session
// so callers can reuse its price and capacity.
func (v *Validator) Validate(ctx context.Context, userID, sessionID uuid.UUID) (*domain.Session, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrUnauthenticated
	}

	session, err := v.catalog.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("session %s does not exist: %w", sessionID, domain.ErrSessionUnavailable)
		}
		return nil, err
	}
	if !session.Bookable() {
		return nil, fmt.Errorf("session is %s: %w", session.Status, domain.ErrSessionUnavailable)
	}

	existing, err := v.store.FindActiveBooking(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("existing booking is %s: %w", existing.Status, domain.ErrDuplicateBooking)
	}

	confirmed, err := v.store.CountConfirmed(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if confirmed >= session.Capacity {
		return nil, domain.ErrSessionFull
	}

	return session, nil
}
