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

// CatalogRepository is the read model for bookable sessions. Session status
// and capacity are written by the admin surface, not by this service.
type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("sessions"),
		logger: logger,
	}
}

type SessionDoc struct {
	ID         uuid.UUID `bson:"_id"`
	StartsAt   time.Time `bson:"starts_at"`
	Capacity   int       `bson:"capacity"`
	PriceMinor int64     `bson:"price_minor"`
	Currency   string    `bson:"currency"`
	Status     string    `bson:"status"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func (d SessionDoc) toDomain() *domain.Session {
	return &domain.Session{
		ID:         d.ID,
		StartsAt:   d.StartsAt,
		Capacity:   d.Capacity,
		PriceMinor: d.PriceMinor,
		Currency:   d.Currency,
		Status:     d.Status,
	}
}

func (c *CatalogRepository) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	var doc SessionDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		c.logger.Error("failed to get session", err)
		return nil, err
	}
	return doc.toDomain(), nil
}

func (c *CatalogRepository) ListScheduled(ctx context.Context, from time.Time) ([]domain.Session, error) {
	cur, err := c.coll.Find(ctx, bson.M{
		"status":    domain.SessionScheduled,
		"starts_at": bson.M{"$gte": from},
	})
	if err != nil {
		c.logger.Error("failed to list sessions", err)
		return nil, err
	}
	defer cur.Close(ctx)

	var sessions []domain.Session
	for cur.Next(ctx) {
		var doc SessionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		sessions = append(sessions, *doc.toDomain())
	}
	return sessions, cur.Err()
}

func (c *CatalogRepository) CreateSession(ctx context.Context, doc SessionDoc) error {
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = time.Now()
	_, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		c.logger.Error("failed to create session", err)
		return err
	}
	return nil
}

func (c *CatalogRepository) UpdateSessionStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := c.coll.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}},
	)
	if err != nil {
		c.logger.Error("failed to update session status", err)
		return err
	}
	return nil
}
