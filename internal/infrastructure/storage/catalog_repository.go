package storage

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/domain/repository"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// NodeCatalogRepository implements repository.NodeCatalogRepository
type NodeCatalogRepository struct {
	coll *mongo.Collection
}

// NewNodeCatalogRepository creates a new NodeCatalogRepository
func NewNodeCatalogRepository(db *DB) repository.NodeCatalogRepository {
	return &NodeCatalogRepository{coll: db.Collection(CollectionNodeDetails)}
}

// FindByType retrieves one catalog entry
func (r *NodeCatalogRepository) FindByType(ctx context.Context, nodeType models.NodeType) (*models.NodeTypeDetail, error) {
	var detail models.NodeTypeDetail
	err := r.coll.FindOne(ctx, bson.M{"_id": nodeType}).Decode(&detail)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// Seed inserts the default catalog entries if missing
func (r *NodeCatalogRepository) Seed(ctx context.Context, entries []models.NodeTypeDetail) error {
	for _, entry := range entries {
		_, err := r.coll.UpdateOne(ctx,
			bson.M{"_id": entry.NodeType},
			bson.M{"$setOnInsert": bson.M{
				"category":            entry.Category,
				"user_input_required": entry.UserInputRequired,
			}},
			options.UpdateOne().SetUpsert(true),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
