package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/domain/repository"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// DelayRepository implements repository.DelayRepository
type DelayRepository struct {
	coll *mongo.Collection
}

// NewDelayRepository creates a new DelayRepository
func NewDelayRepository(db *DB) repository.DelayRepository {
	return &DelayRepository{coll: db.Collection(CollectionDelays)}
}

// Create inserts a new unprocessed timer
func (r *DelayRepository) Create(ctx context.Context, timer *models.DelayTimer) error {
	_, err := r.coll.InsertOne(ctx, timer)
	return err
}

// ClaimExpired atomically claims unprocessed timers due at or before now.
// Each claim is a single compare-and-set on processed, so concurrent sweeps
// never hand the same timer to two workers.
func (r *DelayRepository) ClaimExpired(ctx context.Context, now time.Time, limit int) ([]*models.DelayTimer, error) {
	var claimed []*models.DelayTimer

	for len(claimed) < limit {
		var timer models.DelayTimer
		err := r.coll.FindOneAndUpdate(ctx,
			bson.M{"processed": false, "completes_at": bson.M{"$lte": now}},
			bson.M{"$set": bson.M{"processed": true}},
			options.FindOneAndUpdate().
				SetSort(bson.D{{Key: "completes_at", Value: 1}}).
				SetReturnDocument(options.After),
		).Decode(&timer)

		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return claimed, err
		}

		claimed = append(claimed, &timer)
	}

	return claimed, nil
}

// Release returns a claimed timer to the unprocessed pool
func (r *DelayRepository) Release(ctx context.Context, id string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"processed": false}},
	)
	return err
}

// FindUnprocessedByUser returns the pending timer of one user, or nil
func (r *DelayRepository) FindUnprocessedByUser(ctx context.Context, userStateID string) (*models.DelayTimer, error) {
	var timer models.DelayTimer
	err := r.coll.FindOne(ctx, bson.M{"user_state_id": userStateID, "processed": false}).Decode(&timer)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &timer, nil
}
