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

// FlowRepository implements repository.FlowRepository
type FlowRepository struct {
	coll *mongo.Collection
}

// NewFlowRepository creates a new FlowRepository
func NewFlowRepository(db *DB) repository.FlowRepository {
	return &FlowRepository{coll: db.Collection(CollectionFlows)}
}

// Create creates a new flow
func (r *FlowRepository) Create(ctx context.Context, flow *models.Flow) error {
	flow.CreatedAt = time.Now().UTC()
	flow.UpdatedAt = flow.CreatedAt

	_, err := r.coll.InsertOne(ctx, flow)
	return err
}

// Update replaces an existing flow document
func (r *FlowRepository) Update(ctx context.Context, flow *models.Flow) error {
	flow.UpdatedAt = time.Now().UTC()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": flow.ID}, flow)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrFlowNotFound
	}
	return nil
}

// UpdateStatus transitions the flow status
func (r *FlowRepository) UpdateStatus(ctx context.Context, id string, status models.FlowStatus) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrFlowNotFound
	}
	return nil
}

// FindByID retrieves a flow by ID
func (r *FlowRepository) FindByID(ctx context.Context, id string) (*models.Flow, error) {
	var flow models.Flow
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&flow)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrFlowNotFound
	}
	if err != nil {
		return nil, err
	}
	return &flow, nil
}

// FindByUserID retrieves all flows authored by a user
func (r *FlowRepository) FindByUserID(ctx context.Context, userID string) ([]*models.Flow, error) {
	cursor, err := r.coll.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}

	var flows []*models.Flow
	if err := cursor.All(ctx, &flows); err != nil {
		return nil, err
	}
	return flows, nil
}

// FindPublishedByBrand retrieves published flows for a brand, most recently
// updated first. Trigger matching iterates this ordering so keyword ties
// resolve to the newest flow.
func (r *FlowRepository) FindPublishedByBrand(ctx context.Context, brandID int64) ([]*models.Flow, error) {
	cursor, err := r.coll.Find(ctx,
		bson.M{"brand_id": brandID, "status": models.FlowStatusPublished},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}

	var flows []*models.Flow
	if err := cursor.All(ctx, &flows); err != nil {
		return nil, err
	}
	return flows, nil
}
