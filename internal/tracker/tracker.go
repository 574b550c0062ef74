// Package tracker owns the authoritative record of every known node's
// classification state. It is the single writer: only the control loop
// goroutine mutates records, concurrent readers get copies.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/store"
)

// ErrInvariantViolation indicates corrupted tracker state, e.g. a second
// pending action for one node. It is a logic bug: the control loop halts
// rather than proceed.
var ErrInvariantViolation = errors.New("tracker invariant violation")

// Tracker implements the node state machine described in the package doc.
type Tracker struct {
	mu       sync.RWMutex
	records  map[string]*model.NodeRecord
	recStore store.NodeRecordStore
	logger   *zap.Logger

	unreachableAfterMissing int
	unreachableAfterStale   int
}

// New creates a tracker. recStore persists records across restarts; pass
// an in-memory store when durability is not required.
func New(unreachableAfterMissing, unreachableAfterStale int, recStore store.NodeRecordStore, logger *zap.Logger) *Tracker {
	return &Tracker{
		records:                 make(map[string]*model.NodeRecord),
		recStore:                recStore,
		unreachableAfterMissing: unreachableAfterMissing,
		unreachableAfterStale:   unreachableAfterStale,
		logger:                  logger,
	}
}

// Restore loads persisted node records. Called once before the first cycle.
func (t *Tracker) Restore(ctx context.Context) error {
	records, err := t.recStore.ListNodeRecords(ctx)
	if err != nil {
		return fmt.Errorf("restore node records: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rec := range records {
		cp := *rec
		t.records[rec.NodeID] = &cp
	}

	if len(records) > 0 {
		t.logger.Info("Restored node records", zap.Int("count", len(records)))
	}
	return nil
}

// Observe folds one cycle's snapshot and classifications into the state
// machine and returns the transitions it produced, ordered by node ID.
//
// A node present in the snapshot but absent from classifications keeps its
// previous risk level and is counted stale. A node absent from the
// snapshot is counted missing. Either counter reaching its threshold
// escalates the node to the terminal unreachable level.
func (t *Tracker) Observe(ctx context.Context, snapshot *model.HealthSnapshot, classifications map[string]model.Classification) []model.NodeTransition {
	t.mu.Lock()
	defer t.mu.Unlock()

	var transitions []model.NodeTransition
	now := snapshot.CollectedAt

	for _, nodeID := range sortedKeys(snapshot.Reports) {
		rec, ok := t.records[nodeID]
		if !ok {
			rec = &model.NodeRecord{NodeID: nodeID, Current: model.RiskNone}
			t.records[nodeID] = rec
			t.logger.Info("Tracking new node", zap.String("node_id", nodeID))
		}
		rec.MissingCycles = 0

		if rec.Current == model.RiskUnreachable {
			// Terminal. Re-emit until an action lands so a failed replace
			// is re-decided next cycle.
			if rec.PendingActionID == "" {
				transitions = append(transitions, model.NodeTransition{
					NodeID: nodeID,
					Kind:   model.BecameUnreachable,
					From:   rec.Previous,
					To:     model.RiskUnreachable,
					Reason: "node previously escalated to unreachable",
					At:     now,
				})
			}
			t.persist(ctx, rec)
			continue
		}

		cls, ok := classifications[nodeID]
		if !ok {
			rec.StaleCycles++
			t.logger.Warn("No fresh classification, carrying previous risk level",
				zap.String("node_id", nodeID),
				zap.String("risk_level", rec.Current.String()),
				zap.Int("stale_cycles", rec.StaleCycles))
			if rec.StaleCycles >= t.unreachableAfterStale {
				transitions = t.escalateLocked(transitions, rec,
					fmt.Sprintf("no classification for %d consecutive cycles", rec.StaleCycles), now)
			}
			t.persist(ctx, rec)
			continue
		}

		rec.StaleCycles = 0
		prev := rec.Current
		rec.Previous = prev
		rec.Current = cls.Severity
		rec.LastClassifiedAt = now

		switch {
		case cls.Severity == model.RiskCritical:
			// Critical always takes precedence over greylist bookkeeping,
			// debounced only by an outstanding action.
			if rec.PendingActionID == "" {
				transitions = append(transitions, model.NodeTransition{
					NodeID: nodeID,
					Kind:   model.EnteredCritical,
					From:   prev,
					To:     model.RiskCritical,
					Reason: cls.Reason,
					At:     now,
				})
			}

		case cls.Severity == model.RiskWarning:
			if prev == model.RiskWarning {
				if rec.PendingActionID == "" {
					transitions = append(transitions, model.NodeTransition{
						NodeID: nodeID,
						Kind:   model.WarningPersisted,
						From:   prev,
						To:     model.RiskWarning,
						Reason: cls.Reason,
						At:     now,
					})
				}
				break
			}
			rec.Greylisted = true // idempotent, monotonic
			if rec.PendingActionID == "" {
				transitions = append(transitions, model.NodeTransition{
					NodeID: nodeID,
					Kind:   model.EnteredWarning,
					From:   prev,
					To:     model.RiskWarning,
					Reason: cls.Reason,
					At:     now,
				})
			}

		case cls.Severity == model.RiskNone && prev >= model.RiskWarning:
			// Recovery is alertable but never clears the greylist flag.
			transitions = append(transitions, model.NodeTransition{
				NodeID: nodeID,
				Kind:   model.RiskRecovered,
				From:   prev,
				To:     model.RiskNone,
				Reason: cls.Reason,
				At:     now,
			})
		}

		t.persist(ctx, rec)
	}

	// Nodes missing from the snapshot entirely.
	for _, nodeID := range sortedKeys(t.records) {
		rec := t.records[nodeID]
		if _, ok := snapshot.Reports[nodeID]; ok {
			continue
		}

		if rec.Current == model.RiskUnreachable {
			if rec.PendingActionID == "" {
				transitions = append(transitions, model.NodeTransition{
					NodeID: nodeID,
					Kind:   model.BecameUnreachable,
					From:   rec.Previous,
					To:     model.RiskUnreachable,
					Reason: "node previously escalated to unreachable",
					At:     now,
				})
			}
			continue
		}

		rec.MissingCycles++
		t.logger.Warn("Node missing from snapshot",
			zap.String("node_id", nodeID),
			zap.Int("missing_cycles", rec.MissingCycles))
		if rec.MissingCycles >= t.unreachableAfterMissing {
			transitions = t.escalateLocked(transitions, rec,
				fmt.Sprintf("missing from %d consecutive snapshots", rec.MissingCycles), now)
		}
		t.persist(ctx, rec)
	}

	return transitions
}

// escalateLocked moves a record to the terminal unreachable level. Caller
// holds t.mu.
func (t *Tracker) escalateLocked(transitions []model.NodeTransition, rec *model.NodeRecord, reason string, at time.Time) []model.NodeTransition {
	rec.Previous = rec.Current
	rec.Current = model.RiskUnreachable

	t.logger.Error("Node escalated to unreachable",
		zap.String("node_id", rec.NodeID),
		zap.String("reason", reason))

	if rec.PendingActionID != "" {
		return transitions
	}
	return append(transitions, model.NodeTransition{
		NodeID: rec.NodeID,
		Kind:   model.BecameUnreachable,
		From:   rec.Previous,
		To:     model.RiskUnreachable,
		Reason: reason,
		At:     at,
	})
}

// SetPendingAction records the outstanding action for a node. A node may
// have at most one outstanding action; a second is an invariant violation.
func (t *Tracker) SetPendingAction(ctx context.Context, nodeID, actionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[nodeID]
	if !ok {
		return fmt.Errorf("set pending action: unknown node %s", nodeID)
	}
	if rec.PendingActionID != "" && rec.PendingActionID != actionID {
		return fmt.Errorf("%w: node %s already has pending action %s, refusing %s",
			ErrInvariantViolation, nodeID, rec.PendingActionID, actionID)
	}

	rec.PendingActionID = actionID
	t.persist(ctx, rec)
	return nil
}

// ClearPendingAction clears the outstanding action once it reached a
// terminal outcome and stamps the node's last-action time.
func (t *Tracker) ClearPendingAction(ctx context.Context, nodeID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[nodeID]
	if !ok {
		return
	}
	rec.PendingActionID = ""
	rec.LastActionAt = at
	t.persist(ctx, rec)
}

// RemoveNode destroys a node's record after the control plane confirmed
// its removal from the cluster. This is the only path that forgets a
// greylist entry.
func (t *Tracker) RemoveNode(ctx context.Context, nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.records, nodeID)
	if err := t.recStore.DeleteNodeRecord(ctx, nodeID); err != nil {
		t.logger.Warn("Failed to delete persisted node record",
			zap.String("node_id", nodeID),
			zap.Error(err))
	}
	t.logger.Info("Node record destroyed", zap.String("node_id", nodeID))
}

// Record returns a copy of a node's record
func (t *Tracker) Record(nodeID string) (model.NodeRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[nodeID]
	if !ok {
		return model.NodeRecord{}, false
	}
	return *rec, true
}

// PendingActionNodes returns the nodes that currently carry an outstanding
// action marker, keyed to the action ID. Used to settle restored state
// against the ledger after a restart.
func (t *Tracker) PendingActionNodes() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]string)
	for nodeID, rec := range t.records {
		if rec.PendingActionID != "" {
			out[nodeID] = rec.PendingActionID
		}
	}
	return out
}

// GreylistSize returns the number of greylisted nodes
func (t *Tracker) GreylistSize() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, rec := range t.records {
		if rec.Greylisted {
			n++
		}
	}
	return n
}

// TrackedNodes returns the number of tracked nodes
func (t *Tracker) TrackedNodes() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// persist saves a record best-effort. Persistence trouble must not abort
// the cycle; the in-memory state stays authoritative. Caller holds t.mu.
func (t *Tracker) persist(ctx context.Context, rec *model.NodeRecord) {
	if err := t.recStore.SaveNodeRecord(ctx, rec); err != nil {
		t.logger.Warn("Failed to persist node record",
			zap.String("node_id", rec.NodeID),
			zap.Error(err))
	}
}

// sortedKeys returns map keys in ascending order for deterministic
// transition ordering.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
