package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/domain/repository"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// VariableRepository implements repository.VariableRepository
type VariableRepository struct {
	coll *mongo.Collection
}

// NewVariableRepository creates a new VariableRepository
func NewVariableRepository(db *DB) repository.VariableRepository {
	return &VariableRepository{coll: db.Collection(CollectionUserContext)}
}

// Get returns the value of one variable, or "" when unset
func (r *VariableRepository) Get(ctx context.Context, userStateID, flowID, key string) (string, error) {
	var doc models.VariableContext
	err := r.coll.FindOne(ctx, bson.M{"user_state_id": userStateID, "flow_id": flowID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return doc.Vars[key], nil
}

// Set upserts one variable
func (r *VariableRepository) Set(ctx context.Context, userStateID, flowID, key, value string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"user_state_id": userStateID, "flow_id": flowID},
		bson.M{
			"$set": bson.M{
				"vars." + key: value,
				"updated_at":  time.Now().UTC(),
			},
			"$setOnInsert": bson.M{"_id": uuid.NewString()},
		},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

// Snapshot returns all variables of one (user, flow) pair
func (r *VariableRepository) Snapshot(ctx context.Context, userStateID, flowID string) (map[string]string, error) {
	var doc models.VariableContext
	err := r.coll.FindOne(ctx, bson.M{"user_state_id": userStateID, "flow_id": flowID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if doc.Vars == nil {
		return map[string]string{}, nil
	}
	return doc.Vars, nil
}
