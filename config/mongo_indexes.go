package config

import (
	"context"
	"errors"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "cvcraft"
	}
	db := MongoClient.Database(dbName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events := db.Collection("generation_events")
	_, err := events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_event_id").
				SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "cv_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_cv_created"),
		},
		// the trail is advisory; keep it from growing forever
		{
			Keys: bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_created_at").
				SetExpireAfterSeconds(int32((90 * 24 * time.Hour).Seconds())),
		},
	})
	return err
}
