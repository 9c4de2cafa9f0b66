package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/domain/repository"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// TransactionRepository implements repository.TransactionRepository
type TransactionRepository struct {
	coll *mongo.Collection
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(db *DB) repository.TransactionRepository {
	return &TransactionRepository{coll: db.Collection(CollectionTransactions)}
}

// Record appends one transaction
func (r *TransactionRepository) Record(ctx context.Context, txn *models.Transaction) error {
	_, err := r.coll.InsertOne(ctx, txn)
	return err
}

// CountByFlow returns per-node transaction counts for a flow
func (r *TransactionRepository) CountByFlow(ctx context.Context, flowID string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"flow_id": flowID}}},
		{{Key: "$group", Value: bson.M{"_id": "$node_id", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		NodeID string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.NodeID] = row.Count
	}
	return counts, nil
}
