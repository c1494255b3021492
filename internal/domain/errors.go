package domain

import "errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")

	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrSessionUnavailable = errors.New("session unavailable")
	ErrDuplicateBooking   = errors.New("duplicate booking")
	ErrSessionFull        = errors.New("session full")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrInternal           = errors.New("internal error")
)
