package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
)

// MemoryLedgerStore implements LedgerStore and NodeRecordStore in memory.
// Used in dev mode and tests; offers no durability across restarts.
type MemoryLedgerStore struct {
	mu      sync.RWMutex
	actions map[string]*model.ActionRecord
	order   []string
	nodes   map[string]*model.NodeRecord
}

// NewMemoryLedgerStore creates a new in-memory ledger store
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		actions: make(map[string]*model.ActionRecord),
		nodes:   make(map[string]*model.NodeRecord),
	}
}

// AppendAction writes a new ledger entry
func (s *MemoryLedgerStore) AppendAction(ctx context.Context, rec *model.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.actions[rec.Action.ActionID]; ok {
		return fmt.Errorf("action %s already recorded", rec.Action.ActionID)
	}

	cp := *rec
	s.actions[rec.Action.ActionID] = &cp
	s.order = append(s.order, rec.Action.ActionID)
	return nil
}

// ResolveAction transitions a pending action to a terminal outcome
func (s *MemoryLedgerStore) ResolveAction(ctx context.Context, actionID string, outcome model.ActionOutcome, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.actions[actionID]
	if !ok {
		return ErrNotFound
	}
	if rec.Outcome != model.OutcomePending {
		return fmt.Errorf("resolve action %s: %w", actionID, ErrAlreadyResolved)
	}

	now := time.Now()
	rec.Outcome = outcome
	rec.Error = errMsg
	rec.ResolvedAt = &now
	return nil
}

// GetAction retrieves a ledger entry by action ID
func (s *MemoryLedgerStore) GetAction(ctx context.Context, actionID string) (*model.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.actions[actionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// PendingActions retrieves all pending entries, oldest first
func (s *MemoryLedgerStore) PendingActions(ctx context.Context) ([]*model.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]*model.ActionRecord, 0)
	for _, id := range s.order {
		if rec := s.actions[id]; rec.Outcome == model.OutcomePending {
			cp := *rec
			pending = append(pending, &cp)
		}
	}
	return pending, nil
}

// SaveNodeRecord upserts a node record
func (s *MemoryLedgerStore) SaveNodeRecord(ctx context.Context, rec *model.NodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.nodes[rec.NodeID] = &cp
	return nil
}

// DeleteNodeRecord removes a node record
func (s *MemoryLedgerStore) DeleteNodeRecord(ctx context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.nodes, nodeID)
	return nil
}

// ListNodeRecords retrieves all node records
func (s *MemoryLedgerStore) ListNodeRecords(ctx context.Context) ([]*model.NodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*model.NodeRecord, 0, len(s.nodes))
	for _, rec := range s.nodes {
		cp := *rec
		records = append(records, &cp)
	}
	return records, nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryLedgerStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryLedgerStore) Close() {}

// MemoryDedupStore implements DedupStore in memory
type MemoryDedupStore struct {
	mu    sync.Mutex
	marks map[string]time.Time
}

// NewMemoryDedupStore creates a new in-memory dedup store
func NewMemoryDedupStore() *MemoryDedupStore {
	return &MemoryDedupStore{marks: make(map[string]time.Time)}
}

// MarkOnce claims the key for ttl if it is not already claimed
func (s *MemoryDedupStore) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if expiry, ok := s.marks[key]; ok && now.Before(expiry) {
		return false, nil
	}
	s.marks[key] = now.Add(ttl)
	return true, nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryDedupStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryDedupStore) Close() error {
	return nil
}
