package repository

import (
	"context"
	"errors"
	"fmt"
	swapserrors "slotswapper/internal/swaps/errors"
	"slotswapper/pkg/config"
	mongodb "slotswapper/pkg/db/mongo"
	"slotswapper/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SwapRequestsCollection = "Swap_requests"
)

type SwapRequestRepository interface {
	Create(ctx context.Context, req *model.SwapRequest) error
	FindByID(ctx context.Context, id string) (*model.SwapRequest, error)
	// SetStatus fails with ErrStatusChanged when the request is no longer in from.
	SetStatus(ctx context.Context, id string, from, to model.SwapStatus) error
	Delete(ctx context.Context, id string) error
	// ListIncoming and ListOutgoing return live requests, newest first.
	ListIncoming(ctx context.Context, responderID string) ([]*model.SwapRequest, error)
	ListOutgoing(ctx context.Context, requesterID string) ([]*model.SwapRequest, error)
}

type mongoSwapRequestRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSwapRequestRepository(cfg *config.Config) SwapRequestRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSwapRequestRepository{
		cfg:        cfg,
		collection: db.Collection(SwapRequestsCollection),
	}
}

func (r *mongoSwapRequestRepository) Create(ctx context.Context, req *model.SwapRequest) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	req.ID = ""
	req.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create swap request: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		req.ID = oid.Hex()
	}
	return nil
}

func (r *mongoSwapRequestRepository) FindByID(ctx context.Context, id string) (*model.SwapRequest, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", swapserrors.ErrInvalidID, id)
	}

	var req model.SwapRequest
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, swapserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find swap request: %w", err)
	}

	return &req, nil
}

func (r *mongoSwapRequestRepository) SetStatus(ctx context.Context, id string, from, to model.SwapStatus) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", swapserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "status": from},
		bson.M{"$set": bson.M{"status": to}},
	)
	if err != nil {
		return fmt.Errorf("failed to update swap request status: %w", err)
	}

	if result.MatchedCount == 0 {
		return swapserrors.ErrStatusChanged
	}
	return nil
}

func (r *mongoSwapRequestRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", swapserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete swap request: %w", err)
	}

	if result.DeletedCount == 0 {
		return swapserrors.ErrNotFound
	}
	return nil
}

func (r *mongoSwapRequestRepository) ListIncoming(ctx context.Context, responderID string) ([]*model.SwapRequest, error) {
	return r.listPending(ctx, bson.M{"responder_id": responderID})
}

func (r *mongoSwapRequestRepository) ListOutgoing(ctx context.Context, requesterID string) ([]*model.SwapRequest, error) {
	return r.listPending(ctx, bson.M{"requester_id": requesterID})
}

func (r *mongoSwapRequestRepository) listPending(ctx context.Context, filter bson.M) ([]*model.SwapRequest, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter["status"] = model.SwapStatusPending
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find swap requests: %w", err)
	}
	defer cursor.Close(ctx)

	reqs := []*model.SwapRequest{}
	if err = cursor.All(ctx, &reqs); err != nil {
		return nil, fmt.Errorf("failed to decode swap requests: %w", err)
	}
	return reqs, nil
}
