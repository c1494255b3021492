package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitprep/practice-session-bookings/internal/domain"
	"github.com/fitprep/practice-session-bookings/internal/observability"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"
)

// Store is the only writer of booking state. The partial unique index on
// (session_id, user_id) over active statuses is the serialization point for
// the duplicate invariant; the capacity check runs inside the same
// SERIALIZABLE transaction as the insert.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return mapPgError(err)
	}

	return mapPgError(tx.Commit(ctx))
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case SerializationFailureCode:
			return domain.ErrSerializationFailure
		case UniqueViolationCode:
			return domain.ErrConflict
		}
	}
	return err
}

// Create inserts the booking, enforcing both admission invariants
// atomically: the active count against capacity and the one-active-booking
// per (user, session) uniqueness. Returns ErrSessionFull, ErrConflict or
// ErrSerializationFailure; on any error no row is written.
func (s *Store) Create(ctx context.Context, b domain.Booking, capacity int) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		var active int
		err := tx.QueryRow(ctx, `
			SELECT count(*) FROM bookings
			WHERE session_id = $1 AND status IN ('PENDING', 'APPROVED', 'CONFIRMED')
		`, b.SessionID).Scan(&active)
		if err != nil {
			return err
		}
		if active >= capacity {
			return domain.ErrSessionFull
		}

		result, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, session_id, user_id, status, payment_status, payment_ref, waiver_ref, created_at, updated_at)
			VALUES ($1, $2, $3, 'PENDING', 'PENDING', '', $4, $5, $5)
			ON CONFLICT (session_id, user_id) WHERE status IN ('PENDING', 'APPROVED', 'CONFIRMED') DO NOTHING
			RETURNING id
		`, b.ID, b.SessionID, b.UserID, b.WaiverRef, b.CreatedAt)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return domain.ErrConflict
		}
		return nil
	})
}

// UpdatePaymentStatus records the provider verdict. Only the
// pending -> succeeded and pending -> failed transitions exist; a failed
// payment also cancels the booking so no failed charge is ever left pending.
func (s *Store) UpdatePaymentStatus(ctx context.Context, bookingID uuid.UUID, status, paymentRef string) error {
	if status != domain.PaymentSucceeded && status != domain.PaymentFailed {
		return errors.Wrapf(domain.ErrInvalidInput, "payment status %q", status)
	}

	var result pgconn.CommandTag
	var err error
	if status == domain.PaymentFailed {
		result, err = s.pool.Exec(ctx, `
			UPDATE bookings SET payment_status = 'FAILED', status = 'CANCELLED', payment_ref = $2, updated_at = now()
			WHERE id = $1 AND payment_status = 'PENDING'
		`, bookingID, paymentRef)
	} else {
		result, err = s.pool.Exec(ctx, `
			UPDATE bookings SET payment_status = 'SUCCEEDED', payment_ref = $2, updated_at = now()
			WHERE id = $1 AND payment_status = 'PENDING'
		`, bookingID, paymentRef)
	}
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete is compensation for a failed charge and nothing else; it only
// removes a booking still in pending/pending.
func (s *Store) Delete(ctx context.Context, bookingID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM bookings
		WHERE id = $1 AND status = 'PENDING' AND payment_status = 'PENDING'
	`, bookingID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Cancel is the owner's cancellation of a pending or approved booking.
func (s *Store) Cancel(ctx context.Context, bookingID, userID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE bookings SET status = 'CANCELLED', updated_at = now()
		WHERE id = $1 AND user_id = $2 AND status IN ('PENDING', 'APPROVED')
	`, bookingID, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) CountConfirmed(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM bookings WHERE session_id = $1 AND status = 'CONFIRMED'
	`, sessionID).Scan(&n)
	return n, err
}

// FindActiveBooking returns the caller's live booking for the session, or
// nil when there is none.
func (s *Store) FindActiveBooking(ctx context.Context, userID, sessionID uuid.UUID) (*domain.Booking, error) {
	b, err := s.scanBooking(s.pool.QueryRow(ctx, `
		SELECT id, session_id, user_id, status, payment_status, payment_ref, waiver_ref, created_at, updated_at
		FROM bookings
		WHERE user_id = $1 AND session_id = $2 AND status IN ('PENDING', 'APPROVED', 'CONFIRMED')
	`, userID, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	b, err := s.scanBooking(s.pool.QueryRow(ctx, `
		SELECT id, session_id, user_id, status, payment_status, payment_ref, waiver_ref, created_at, updated_at
		FROM bookings WHERE id = $1
	`, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListOrphaned returns bookings whose payment never resolved: still
// pending/pending past the given age. These are compensation leftovers the
// reconciler sweeps.
func (s *Store) ListOrphaned(ctx context.Context, olderThan time.Time) ([]domain.Booking, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, user_id, status, payment_status, payment_ref, waiver_ref, created_at, updated_at
		FROM bookings
		WHERE status = 'PENDING' AND payment_status = 'PENDING' AND created_at <= $1
	`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orphans []domain.Booking
	for rows.Next() {
		b, err := s.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		orphans = append(orphans, *b)
	}
	return orphans, rows.Err()
}

// CancelOrphaned marks an orphan's payment failed and the booking cancelled
// in one write, guarded by its current state so a concurrent payment
// resolution wins.
func (s *Store) CancelOrphaned(ctx context.Context, bookingID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE bookings SET status = 'CANCELLED', payment_status = 'FAILED', updated_at = now()
		WHERE id = $1 AND status = 'PENDING' AND payment_status = 'PENDING'
	`, bookingID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type row interface {
	Scan(dest ...any) error
}

func (s *Store) scanBooking(r row) (*domain.Booking, error) {
	var b domain.Booking
	err := r.Scan(&b.ID, &b.SessionID, &b.UserID, &b.Status, &b.PaymentStatus, &b.PaymentRef, &b.WaiverRef, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
