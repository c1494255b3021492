// Package outbox drains NEW outbox rows to the RabbitMQ events exchange.
package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fitprep/practice-session-bookings/internal/adapters/crdb"
	"github.com/fitprep/practice-session-bookings/internal/adapters/rabbit"
	"github.com/fitprep/practice-session-bookings/internal/observability"
)

type Publisher struct {
	store     *crdb.Store
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewPublisher(store *crdb.Store, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{store: store, rabbitPub: rabbitPub, logger: logger}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	records, err := p.store.GetUnpublishedOutbox(ctx, 50)
	if err != nil {
		p.logger.Error("failed to fetch outbox records", err)
		return
	}
	for _, rec := range records {
		observability.OutboxLag.Set(time.Since(rec.CreatedAt).Seconds())
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Body:        rec.Payload,
		}
		if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
			p.logger.Error("failed to publish outbox record", err)
			continue
		}
		if err := p.store.MarkPublished(ctx, rec.ID, time.Now()); err != nil {
			p.logger.Error("failed to mark outbox record published", err)
		}
	}
}
