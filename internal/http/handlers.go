package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fitprep/practice-session-bookings/internal/adapters/crdb"
	mongoadapter "github.com/fitprep/practice-session-bookings/internal/adapters/mongo"
	"github.com/fitprep/practice-session-bookings/internal/booking"
	"github.com/fitprep/practice-session-bookings/internal/catalog"
	"github.com/fitprep/practice-session-bookings/internal/config"
	"github.com/fitprep/practice-session-bookings/internal/domain"
	"github.com/fitprep/practice-session-bookings/internal/idempotency"
	"github.com/fitprep/practice-session-bookings/internal/observability"
)

// IdempotencyStore replays stored responses for repeated Idempotency-Keys.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*idempotency.Response, error)
	Set(ctx context.Context, key string, resp idempotency.Response) error
}

type Handlers struct {
	cfg      *config.Config
	workflow *booking.Workflow
	store    *crdb.Store
	catalog  *catalog.CachedCatalog
	sessions *mongoadapter.CatalogRepository
	idemp    IdempotencyStore
	validate *validator.Validate
}

func NewHandlers(cfg *config.Config, workflow *booking.Workflow, store *crdb.Store, cached *catalog.CachedCatalog, sessions *mongoadapter.CatalogRepository, idemp IdempotencyStore) *Handlers {
	return &Handlers{
		cfg:      cfg,
		workflow: workflow,
		store:    store,
		catalog:  cached,
		sessions: sessions,
		idemp:    idemp,
		validate: validator.New(),
	}
}

type submitRequest struct {
	SessionID     uuid.UUID `json:"session_id" validate:"required"`
	WaiverRef     string    `json:"waiver_ref" validate:"required"`
	PaymentMethod string    `json:"payment_method" validate:"required"`
}

func (h *Handlers) SubmitBooking(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		writeError(w, domain.ErrInternal)
		return
	}
	if existing != nil {
		replay(w, existing)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := h.workflow.Submit(r.Context(), UserID(r.Context()), req.SessionID, req.WaiverRef, req.PaymentMethod)
	if err != nil {
		writeError(w, err)
		return
	}

	data, _ := json.Marshal(map[string]interface{}{
		"booking_id":  result.BookingID,
		"status":      result.Status,
		"payment_ref": result.PaymentRef,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	if err := h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data}); err != nil {
		observability.FromContext(r.Context()).Warn("failed to store idempotent response", err)
	}
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid booking id")
		return
	}

	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		writeError(w, domain.ErrInternal)
		return
	}
	if existing != nil {
		replay(w, existing)
		return
	}

	if err := h.workflow.Cancel(r.Context(), UserID(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)

	if err := h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusNoContent}); err != nil {
		observability.FromContext(r.Context()).Warn("failed to store idempotent response", err)
	}
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid booking id")
		return
	}

	b, err := h.store.GetBooking(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if b.UserID != UserID(r.Context()) {
		writeError(w, domain.ErrNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"booking_id":     b.ID,
		"session_id":     b.SessionID,
		"status":         b.Status,
		"payment_status": b.PaymentStatus,
		"payment_ref":    b.PaymentRef,
		"created_at":     b.CreatedAt.Format(time.RFC3339),
	})
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid session id")
		return
	}

	session, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessionJSON(*session))
}

func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.ListScheduled(r.Context(), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionJSON(s))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"sessions": out})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func sessionJSON(s domain.Session) map[string]interface{} {
	return map[string]interface{}{
		"session_id":  s.ID,
		"starts_at":   s.StartsAt.Format(time.RFC3339),
		"capacity":    s.Capacity,
		"price_minor": s.PriceMinor,
		"currency":    s.Currency,
		"status":      s.Status,
	}
}

// replay writes a previously stored response for a repeated
// Idempotency-Key; bodyless statuses replay with no body.
func replay(w http.ResponseWriter, resp *idempotency.Response) {
	if len(resp.Result) > 0 {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.Status)
	if len(resp.Result) > 0 {
		w.Write(resp.Result)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: msg})
}

// writeError maps workflow outcomes onto distinct, user-displayable
// responses; internals collapse to a generic retry prompt.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Code: "UNAUTHENTICATED", Message: "Sign in to book a session."})
	case errors.Is(err, domain.ErrSessionUnavailable):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "SESSION_UNAVAILABLE", Message: "This session is not open for booking."})
	case errors.Is(err, domain.ErrDuplicateBooking):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "DUPLICATE_BOOKING", Message: "You already have a booking for this session."})
	case errors.Is(err, domain.ErrSessionFull):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "SESSION_FULL", Message: "This session is full."})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "CONFLICT", Message: "Another request for this session won. Please try again."})
	case errors.Is(err, domain.ErrPaymentFailed):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Code: "PAYMENT_FAILED", Message: "Payment declined. Try another method."})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "Booking not found."})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: "Something went wrong. Please try again."})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
