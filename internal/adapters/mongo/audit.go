package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fitprep/practice-session-bookings/internal/domain"
	"github.com/fitprep/practice-session-bookings/internal/observability"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	UserID    uuid.UUID `bson:"user_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, userID uuid.UUID, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		UserID:    userID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

func (a *AuditLogger) LogSubmission(ctx context.Context, b domain.Booking) error {
	data := map[string]interface{}{
		"booking_id":     b.ID,
		"session_id":     b.SessionID,
		"status":         b.Status,
		"payment_status": b.PaymentStatus,
		"waiver_ref":     b.WaiverRef,
	}
	return a.LogEvent(ctx, "booking.submitted", b.UserID, data)
}

func (a *AuditLogger) LogCancellation(ctx context.Context, bookingID, userID uuid.UUID) error {
	data := map[string]interface{}{
		"booking_id": bookingID,
	}
	return a.LogEvent(ctx, "booking.cancelled", userID, data)
}
