package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/domain/repository"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// InboundEventRepository implements repository.InboundEventRepository
type InboundEventRepository struct {
	coll *mongo.Collection
}

// NewInboundEventRepository creates a new InboundEventRepository
func NewInboundEventRepository(db *DB) repository.InboundEventRepository {
	return &InboundEventRepository{coll: db.Collection(CollectionInboundEvents)}
}

// Record appends one inbound event
func (r *InboundEventRepository) Record(ctx context.Context, event *models.InboundEvent) error {
	_, err := r.coll.InsertOne(ctx, event)
	return err
}
