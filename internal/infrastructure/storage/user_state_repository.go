package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/domain/repository"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// UserStateRepository implements repository.UserStateRepository
type UserStateRepository struct {
	coll *mongo.Collection
}

// NewUserStateRepository creates a new UserStateRepository
func NewUserStateRepository(db *DB) repository.UserStateRepository {
	return &UserStateRepository{coll: db.Collection(CollectionUsers)}
}

// Create inserts a fresh user state
func (r *UserStateRepository) Create(ctx context.Context, state *models.UserState) error {
	now := time.Now().UTC()
	state.CreatedAt = now
	state.UpdatedAt = now

	_, err := r.coll.InsertOne(ctx, state)
	return err
}

// Update replaces the user state document
func (r *UserStateRepository) Update(ctx context.Context, state *models.UserState) error {
	state.UpdatedAt = time.Now().UTC()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": state.ID}, state)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// FindByKey retrieves the state for a user key
func (r *UserStateRepository) FindByKey(ctx context.Context, key models.UserStateKey) (*models.UserState, error) {
	filter := bson.M{
		"user_identifier":    key.UserIdentifier,
		"brand_id":           key.BrandID,
		"channel":            key.Channel,
		"channel_account_id": key.ChannelAccountID,
	}

	var state models.UserState
	err := r.coll.FindOne(ctx, filter).Decode(&state)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// FindByID retrieves the state by its document id
func (r *UserStateRepository) FindByID(ctx context.Context, id string) (*models.UserState, error) {
	var state models.UserState
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&state)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}
