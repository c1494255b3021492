// Package notify dispatches user-facing notifications through the
// transactional outbox; cmd/outbox-publisher ships them to RabbitMQ.
package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/fitprep/practice-session-bookings/internal/adapters/crdb"
	"github.com/fitprep/practice-session-bookings/internal/observability"
)

type OutboxDispatcher struct {
	store  *crdb.Store
	logger observability.Logger
}

func NewOutboxDispatcher(store *crdb.Store, logger observability.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{store: store, logger: logger}
}

func (d *OutboxDispatcher) Notify(ctx context.Context, userID uuid.UUID, template string, payload map[string]interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"user_id":  userID,
		"template": template,
		"payload":  payload,
	})
	if err != nil {
		return err
	}
	return d.store.InsertOutbox(ctx, crdb.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "booking",
		AggregateID:   userID,
		EventType:     template,
		Payload:       body,
		DedupeKey:     uuid.New().String(),
	})
}
