package repository

import (
	"context"
	"fmt"
	"slotswapper/pkg/config"
	mongodb "slotswapper/pkg/db/mongo"
	"slotswapper/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	HistoryCollection = "Swap_history"
)

// HistoryRepository is append-only.
type HistoryRepository interface {
	Append(ctx context.Context, entry *model.HistoryEntry) error
	// ListForUser returns entries where the user was either party, most recent decision first.
	ListForUser(ctx context.Context, userID string) ([]*model.HistoryEntry, error)
}

type mongoHistoryRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoHistoryRepository(cfg *config.Config) HistoryRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoHistoryRepository{
		cfg:        cfg,
		collection: db.Collection(HistoryCollection),
	}
}

func (r *mongoHistoryRepository) Append(ctx context.Context, entry *model.HistoryEntry) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	entry.ID = ""
	result, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to append swap history: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		entry.ID = oid.Hex()
	}
	return nil
}

func (r *mongoHistoryRepository) ListForUser(ctx context.Context, userID string) ([]*model.HistoryEntry, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"$or": bson.A{
		bson.M{"requester_id": userID},
		bson.M{"responder_id": userID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "decided_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find swap history: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []*model.HistoryEntry{}
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode swap history: %w", err)
	}
	return entries, nil
}
