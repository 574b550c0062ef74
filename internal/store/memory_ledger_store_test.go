package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
)

func pendingRecord(actionID, nodeID string) *model.ActionRecord {
	return &model.ActionRecord{
		Action: model.HealingAction{
			ActionID: actionID,
			Kind:     model.ActionReplace,
			NodeID:   nodeID,
			NewNode:  model.NodeSpec{NodeID: nodeID + "-new", Address: "10.0.0.1:9000"},
			IssuedAt: time.Now(),
		},
		Outcome:   model.OutcomePending,
		CreatedAt: time.Now(),
	}
}

func TestAppendAndGetAction(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx := context.Background()

	require.NoError(t, s.AppendAction(ctx, pendingRecord("a-1", "node-1")))

	rec, err := s.GetAction(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomePending, rec.Outcome)
	assert.Equal(t, "node-1", rec.Action.NodeID)
	assert.Nil(t, rec.ResolvedAt)
}

func TestAppendAction_RejectsDuplicateID(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx := context.Background()

	require.NoError(t, s.AppendAction(ctx, pendingRecord("a-1", "node-1")))
	assert.Error(t, s.AppendAction(ctx, pendingRecord("a-1", "node-2")))
}

func TestGetAction_UnknownIDIsNotFound(t *testing.T) {
	s := NewMemoryLedgerStore()

	_, err := s.GetAction(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveAction_TerminalOutcomeSticks(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx := context.Background()

	require.NoError(t, s.AppendAction(ctx, pendingRecord("a-1", "node-1")))
	require.NoError(t, s.ResolveAction(ctx, "a-1", model.OutcomeFailed, "add member: no capacity"))

	rec, err := s.GetAction(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFailed, rec.Outcome)
	assert.Equal(t, "add member: no capacity", rec.Error)
	require.NotNil(t, rec.ResolvedAt)

	// A resolved action cannot flip to a different outcome.
	err = s.ResolveAction(ctx, "a-1", model.OutcomeSucceeded, "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestResolveAction_UnknownIDIsNotFound(t *testing.T) {
	s := NewMemoryLedgerStore()

	err := s.ResolveAction(context.Background(), "missing", model.OutcomeSucceeded, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPendingActions_ReturnsOldestFirst(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx := context.Background()

	require.NoError(t, s.AppendAction(ctx, pendingRecord("a-1", "node-1")))
	require.NoError(t, s.AppendAction(ctx, pendingRecord("a-2", "node-2")))
	require.NoError(t, s.AppendAction(ctx, pendingRecord("a-3", "node-3")))
	require.NoError(t, s.ResolveAction(ctx, "a-2", model.OutcomeSucceeded, ""))

	pending, err := s.PendingActions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a-1", pending[0].Action.ActionID)
	assert.Equal(t, "a-3", pending[1].Action.ActionID)
}

func TestNodeRecords_UpsertListDelete(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx := context.Background()

	rec := &model.NodeRecord{NodeID: "node-1", Current: model.RiskWarning, Greylisted: true}
	require.NoError(t, s.SaveNodeRecord(ctx, rec))

	// Upsert overwrites in place.
	rec.Current = model.RiskCritical
	require.NoError(t, s.SaveNodeRecord(ctx, rec))

	records, err := s.ListNodeRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.RiskCritical, records[0].Current)
	assert.True(t, records[0].Greylisted)

	require.NoError(t, s.DeleteNodeRecord(ctx, "node-1"))
	records, err = s.ListNodeRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListNodeRecords_ReturnsCopies(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx := context.Background()

	require.NoError(t, s.SaveNodeRecord(ctx, &model.NodeRecord{NodeID: "node-1", Current: model.RiskNone}))

	records, err := s.ListNodeRecords(ctx)
	require.NoError(t, err)
	records[0].Current = model.RiskUnreachable

	fresh, err := s.ListNodeRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RiskNone, fresh[0].Current)
}

func TestMemoryDedupStore_MarkOnce(t *testing.T) {
	s := NewMemoryDedupStore()
	ctx := context.Background()

	first, err := s.MarkOnce(ctx, "greylist_entered:node-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.MarkOnce(ctx, "greylist_entered:node-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	other, err := s.MarkOnce(ctx, "greylist_entered:node-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryDedupStore_ExpiredMarkIsReclaimable(t *testing.T) {
	s := NewMemoryDedupStore()
	ctx := context.Background()

	_, err := s.MarkOnce(ctx, "key", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	again, err := s.MarkOnce(ctx, "key", time.Minute)
	require.NoError(t, err)
	assert.True(t, again)
}
