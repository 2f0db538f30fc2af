package repository

import (
	"context"
	"errors"
	"fmt"
	slotserrors "slotswapper/internal/slots/errors"
	swapsrepo "slotswapper/internal/swaps/repository"
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
	CollectionName = "Slots"
)

type SlotRepository interface {
	Create(ctx context.Context, slot *model.Slot) error
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	// FindByIDs loads the given slots and, inside a transaction, claims
	// them so concurrent writers conflict. The map is keyed by the ids as
	// passed; unknown or malformed ids are absent.
	FindByIDs(ctx context.Context, ids ...string) (map[string]*model.Slot, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*model.Slot, error)
	FindSwappable(ctx context.Context, excludeOwnerID string) ([]*model.Slot, error)
	Update(ctx context.Context, slot *model.Slot) error
	// UpdateStatus moves the slot from one status to another and fails with
	// ErrStatusChanged when the slot is no longer in the expected status.
	UpdateStatus(ctx context.Context, id string, from, to model.SlotStatus) error
	// ExchangeOwners hands two SWAP_PENDING slots to their new owners and marks both BUSY.
	ExchangeOwners(ctx context.Context, firstID, firstNewOwner, secondID, secondNewOwner string) error
	Delete(ctx context.Context, id string) error
}

type mongoSlotRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	requests   *mongo.Collection
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		requests:   db.Collection(swapsrepo.SwapRequestsCollection),
	}
}

func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	slot.ID = ""
	slot.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, slot)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		slot.ID = oid.Hex()
	}
	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	var slot model.Slot
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}

	return &slot, nil
}

func (r *mongoSlotRepository) FindByIDs(ctx context.Context, ids ...string) (map[string]*model.Slot, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	requested := make(map[string][]string, len(ids))
	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		if _, seen := requested[oid.Hex()]; !seen {
			objectIDs = append(objectIDs, oid)
		}
		requested[oid.Hex()] = append(requested[oid.Hex()], id)
	}

	found := make(map[string]*model.Slot, len(ids))
	if len(objectIDs) == 0 {
		return found, nil
	}

	filter := bson.M{"_id": bson.M{"$in": objectIDs}}

	// Writing the documents inside the session makes any other transaction
	// that touches them abort with a write conflict.
	if mongodb.InTransaction(ctx) {
		if _, err := r.collection.UpdateMany(ctx, filter, bson.M{"$inc": bson.M{"lock_version": 1}}); err != nil {
			return nil, fmt.Errorf("failed to lock slots: %w", err)
		}
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	for _, slot := range slots {
		for _, id := range requested[slot.ID] {
			found[id] = slot
		}
	}
	return found, nil
}

func (r *mongoSlotRepository) FindByOwner(ctx context.Context, ownerID string) ([]*model.Slot, error) {
	return r.find(ctx, bson.M{"owner_id": ownerID})
}

func (r *mongoSlotRepository) FindSwappable(ctx context.Context, excludeOwnerID string) ([]*model.Slot, error) {
	return r.find(ctx, bson.M{
		"status":   model.SlotStatusSwappable,
		"owner_id": bson.M{"$ne": excludeOwnerID},
	})
}

func (r *mongoSlotRepository) find(ctx context.Context, filter bson.M) ([]*model.Slot, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer cursor.Close(ctx)

	slots := []*model.Slot{}
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	return slots, nil
}

func (r *mongoSlotRepository) Update(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(slot.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, slot.ID)
	}

	update := bson.M{
		"$set": bson.M{
			"title":      slot.Title,
			"start_time": slot.StartTime,
			"end_time":   slot.EndTime,
			"status":     slot.Status,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}

	if result.MatchedCount == 0 {
		return slotserrors.ErrNotFound
	}

	return nil
}

func (r *mongoSlotRepository) UpdateStatus(ctx context.Context, id string, from, to model.SlotStatus) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "status": from},
		bson.M{"$set": bson.M{"status": to}},
	)
	if err != nil {
		return fmt.Errorf("failed to update slot status: %w", err)
	}

	if result.MatchedCount == 0 {
		return r.missOrChanged(ctx, objectID)
	}
	return nil
}

func (r *mongoSlotRepository) ExchangeOwners(ctx context.Context, firstID, firstNewOwner, secondID, secondNewOwner string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	for _, change := range []struct{ id, owner string }{
		{firstID, firstNewOwner},
		{secondID, secondNewOwner},
	} {
		objectID, err := primitive.ObjectIDFromHex(change.id)
		if err != nil {
			return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, change.id)
		}

		result, err := r.collection.UpdateOne(ctx,
			bson.M{"_id": objectID, "status": model.SlotStatusSwapPending},
			bson.M{"$set": bson.M{"owner_id": change.owner, "status": model.SlotStatusBusy}},
		)
		if err != nil {
			return fmt.Errorf("failed to exchange slot owner: %w", err)
		}
		if result.MatchedCount == 0 {
			return r.missOrChanged(ctx, objectID)
		}
	}
	return nil
}

func (r *mongoSlotRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	refs, err := r.requests.CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{"my_slot_id": objectID.Hex()},
		bson.M{"their_slot_id": objectID.Hex()},
	}})
	if err != nil {
		return fmt.Errorf("failed to check slot references: %w", err)
	}
	if refs > 0 {
		return slotserrors.ErrReferenced
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}

	if result.DeletedCount == 0 {
		return slotserrors.ErrNotFound
	}

	return nil
}

func (r *mongoSlotRepository) missOrChanged(ctx context.Context, objectID primitive.ObjectID) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to count slots: %w", err)
	}
	if count == 0 {
		return slotserrors.ErrNotFound
	}
	return slotserrors.ErrStatusChanged
}
