package mongo

import (
	"context"
	"time"

	"github.com/cvcraft/cvcraft/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type EventRepository interface {
	Insert(ctx context.Context, e *models.GenerationEvent) error
	ListByCV(ctx context.Context, cvID string, limit int64) ([]models.GenerationEvent, error)
}

type eventRepo struct {
	col *mongo.Collection
}

func NewEventRepo(db *mongo.Database) EventRepository {
	return &eventRepo{col: db.Collection("generation_events")}
}

func (r *eventRepo) Insert(ctx context.Context, e *models.GenerationEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, e)
	return err
}

func (r *eventRepo) ListByCV(ctx context.Context, cvID string, limit int64) ([]models.GenerationEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	cur, err := r.col.Find(ctx,
		bson.M{"cv_id": cvID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.GenerationEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
