// Package testutil provides in-memory repository implementations and flow
// fixtures shared by package tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// FlowStore is an in-memory FlowRepository.
type FlowStore struct {
	mu    sync.Mutex
	Flows map[string]*models.Flow
}

// NewFlowStore creates an empty FlowStore.
func NewFlowStore() *FlowStore {
	return &FlowStore{Flows: make(map[string]*models.Flow)}
}

// Put inserts or replaces a flow directly.
func (s *FlowStore) Put(flow *models.Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Flows[flow.ID] = flow
}

func (s *FlowStore) Create(_ context.Context, flow *models.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flow.CreatedAt = time.Now().UTC()
	flow.UpdatedAt = flow.CreatedAt
	s.Flows[flow.ID] = flow
	return nil
}

func (s *FlowStore) Update(_ context.Context, flow *models.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Flows[flow.ID]; !ok {
		return models.ErrFlowNotFound
	}
	flow.UpdatedAt = time.Now().UTC()
	s.Flows[flow.ID] = flow
	return nil
}

func (s *FlowStore) UpdateStatus(_ context.Context, id string, status models.FlowStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flow, ok := s.Flows[id]
	if !ok {
		return models.ErrFlowNotFound
	}
	flow.Status = status
	flow.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *FlowStore) FindByID(_ context.Context, id string) (*models.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flow, ok := s.Flows[id]
	if !ok {
		return nil, models.ErrFlowNotFound
	}
	return flow, nil
}

func (s *FlowStore) FindByUserID(_ context.Context, userID string) ([]*models.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Flow
	for _, f := range s.Flows {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *FlowStore) FindPublishedByBrand(_ context.Context, brandID int64) ([]*models.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Flow
	for _, f := range s.Flows {
		if f.BrandID == brandID && f.Status == models.FlowStatusPublished {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// UserStore is an in-memory UserStateRepository.
type UserStore struct {
	mu    sync.Mutex
	Users map[string]*models.UserState
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{Users: make(map[string]*models.UserState)}
}

func (s *UserStore) Create(_ context.Context, state *models.UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	state.CreatedAt = now
	state.UpdatedAt = now
	s.Users[state.ID] = cloneUser(state)
	return nil
}

func (s *UserStore) Update(_ context.Context, state *models.UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Users[state.ID]; !ok {
		return models.ErrUserNotFound
	}
	state.UpdatedAt = time.Now().UTC()
	s.Users[state.ID] = cloneUser(state)
	return nil
}

func (s *UserStore) FindByKey(_ context.Context, key models.UserStateKey) (*models.UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.Users {
		if u.Key == key {
			return cloneUser(u), nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (s *UserStore) FindByID(_ context.Context, id string) (*models.UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.Users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func cloneUser(u *models.UserState) *models.UserState {
	cp := *u
	if u.DelayNodeData != nil {
		node := *u.DelayNodeData
		cp.DelayNodeData = &node
	}
	return &cp
}

// VarStore is an in-memory VariableRepository.
type VarStore struct {
	mu   sync.Mutex
	Data map[string]map[string]string // userStateID+"/"+flowID -> vars
}

// NewVarStore creates an empty VarStore.
func NewVarStore() *VarStore {
	return &VarStore{Data: make(map[string]map[string]string)}
}

// Preset seeds a variable directly.
func (s *VarStore) Preset(userStateID, flowID, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.bucket(userStateID, flowID)
	bucket[key] = value
}

func (s *VarStore) bucket(userStateID, flowID string) map[string]string {
	k := userStateID + "/" + flowID
	if s.Data[k] == nil {
		s.Data[k] = make(map[string]string)
	}
	return s.Data[k]
}

func (s *VarStore) Get(_ context.Context, userStateID, flowID, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bucket(userStateID, flowID)[key], nil
}

func (s *VarStore) Set(_ context.Context, userStateID, flowID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucket(userStateID, flowID)[key] = value
	return nil
}

func (s *VarStore) Snapshot(_ context.Context, userStateID, flowID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string)
	for k, v := range s.bucket(userStateID, flowID) {
		out[k] = v
	}
	return out, nil
}

// TxnStore is an in-memory TransactionRepository.
type TxnStore struct {
	mu   sync.Mutex
	Txns []*models.Transaction
}

// NewTxnStore creates an empty TxnStore.
func NewTxnStore() *TxnStore {
	return &TxnStore{}
}

func (s *TxnStore) Record(_ context.Context, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Txns = append(s.Txns, txn)
	return nil
}

func (s *TxnStore) CountByFlow(_ context.Context, flowID string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, t := range s.Txns {
		if t.FlowID == flowID {
			counts[t.NodeID]++
		}
	}
	return counts, nil
}

// NodeIDs returns the node ids of all recorded transactions in order.
func (s *TxnStore) NodeIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Txns))
	for i, t := range s.Txns {
		out[i] = t.NodeID
	}
	return out
}

// DelayStore is an in-memory DelayRepository.
type DelayStore struct {
	mu     sync.Mutex
	Timers map[string]*models.DelayTimer
}

// NewDelayStore creates an empty DelayStore.
func NewDelayStore() *DelayStore {
	return &DelayStore{Timers: make(map[string]*models.DelayTimer)}
}

func (s *DelayStore) Create(_ context.Context, timer *models.DelayTimer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *timer
	s.Timers[timer.ID] = &cp
	return nil
}

func (s *DelayStore) ClaimExpired(_ context.Context, now time.Time, limit int) ([]*models.DelayTimer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []*models.DelayTimer
	for _, t := range s.Timers {
		if len(claimed) >= limit {
			break
		}
		if !t.Processed && !t.CompletesAt.After(now) {
			t.Processed = true
			cp := *t
			claimed = append(claimed, &cp)
		}
	}
	return claimed, nil
}

func (s *DelayStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.Timers[id]; ok {
		t.Processed = false
	}
	return nil
}

func (s *DelayStore) FindUnprocessedByUser(_ context.Context, userStateID string) (*models.DelayTimer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.Timers {
		if t.UserStateID == userStateID && !t.Processed {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

// Unprocessed returns the number of unprocessed timers.
func (s *DelayStore) Unprocessed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.Timers {
		if !t.Processed {
			n++
		}
	}
	return n
}

// CatalogStore is an in-memory NodeCatalogRepository pre-seeded with the
// default catalog.
type CatalogStore struct {
	mu      sync.Mutex
	Entries map[models.NodeType]*models.NodeTypeDetail
}

// NewCatalogStore creates a CatalogStore with the default entries.
func NewCatalogStore() *CatalogStore {
	s := &CatalogStore{Entries: make(map[models.NodeType]*models.NodeTypeDetail)}
	for _, e := range models.DefaultNodeTypeCatalog() {
		entry := e
		s.Entries[e.NodeType] = &entry
	}
	return s
}

func (s *CatalogStore) FindByType(_ context.Context, nodeType models.NodeType) (*models.NodeTypeDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.Entries[nodeType]
	if !ok {
		return nil, models.ErrNodeNotFound
	}
	return entry, nil
}

func (s *CatalogStore) Seed(_ context.Context, entries []models.NodeTypeDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if _, ok := s.Entries[e.NodeType]; !ok {
			entry := e
			s.Entries[e.NodeType] = &entry
		}
	}
	return nil
}

// EventStore is an in-memory InboundEventRepository.
type EventStore struct {
	mu     sync.Mutex
	Events []*models.InboundEvent
}

// NewEventStore creates an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{}
}

func (s *EventStore) Record(_ context.Context, event *models.InboundEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, event)
	return nil
}
