package repository

import (
	"context"
	"time"

	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// FlowRepository defines the interface for flow persistence
type FlowRepository interface {
	// Create creates a new flow
	Create(ctx context.Context, flow *models.Flow) error

	// Update replaces an existing flow document
	Update(ctx context.Context, flow *models.Flow) error

	// UpdateStatus transitions the flow status
	UpdateStatus(ctx context.Context, id string, status models.FlowStatus) error

	// FindByID retrieves a flow by ID; returns models.ErrFlowNotFound if absent
	FindByID(ctx context.Context, id string) (*models.Flow, error)

	// FindByUserID retrieves all flows authored by a user
	FindByUserID(ctx context.Context, userID string) ([]*models.Flow, error)

	// FindPublishedByBrand retrieves published flows for a brand, most
	// recently updated first
	FindPublishedByBrand(ctx context.Context, brandID int64) ([]*models.Flow, error)
}

// UserStateRepository defines the interface for per-user automation state
type UserStateRepository interface {
	// Create inserts a fresh user state
	Create(ctx context.Context, state *models.UserState) error

	// Update replaces the user state document
	Update(ctx context.Context, state *models.UserState) error

	// FindByKey retrieves the state for a user key; returns
	// models.ErrUserNotFound if absent
	FindByKey(ctx context.Context, key models.UserStateKey) (*models.UserState, error)

	// FindByID retrieves the state by its document id
	FindByID(ctx context.Context, id string) (*models.UserState, error)
}

// VariableRepository defines the interface for the per-(user,flow) variable store
type VariableRepository interface {
	// Get returns the value of one variable, or "" when unset
	Get(ctx context.Context, userStateID, flowID, key string) (string, error)

	// Set upserts one variable
	Set(ctx context.Context, userStateID, flowID, key, value string) error

	// Snapshot returns all variables of one (user, flow) pair
	Snapshot(ctx context.Context, userStateID, flowID string) (map[string]string, error)
}

// TransactionRepository defines the interface for node-entry transactions
type TransactionRepository interface {
	// Record appends one transaction
	Record(ctx context.Context, txn *models.Transaction) error

	// CountByFlow returns per-node transaction counts for a flow
	CountByFlow(ctx context.Context, flowID string) (map[string]int64, error)
}

// DelayRepository defines the interface for persisted delay timers
type DelayRepository interface {
	// Create inserts a new unprocessed timer
	Create(ctx context.Context, timer *models.DelayTimer) error

	// ClaimExpired atomically claims unprocessed timers due at or before the
	// given instant; claimed timers are marked processed
	ClaimExpired(ctx context.Context, now time.Time, limit int) ([]*models.DelayTimer, error)

	// Release returns a claimed timer to the unprocessed pool so the next
	// sweep retries it
	Release(ctx context.Context, id string) error

	// FindUnprocessedByUser returns the pending timer of one user, or nil
	FindUnprocessedByUser(ctx context.Context, userStateID string) (*models.DelayTimer, error)
}

// NodeCatalogRepository defines the interface for the node-type catalog
type NodeCatalogRepository interface {
	// FindByType retrieves one catalog entry; returns models.ErrNodeNotFound
	// for unknown node types
	FindByType(ctx context.Context, nodeType models.NodeType) (*models.NodeTypeDetail, error)

	// Seed inserts the default catalog entries if missing
	Seed(ctx context.Context, entries []models.NodeTypeDetail) error
}

// InboundEventRepository defines the interface for the raw-webhook audit trail
type InboundEventRepository interface {
	// Record appends one inbound event
	Record(ctx context.Context, event *models.InboundEvent) error
}
