package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/alert"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/cluster"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/healer"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/metrics"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/store"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/tracker"
)

// Prometheus collectors register globally, so the whole package shares one
// metrics instance.
var testMetrics = metrics.NewMetrics()

// stubSampler returns a fixed snapshot or error.
type stubSampler struct {
	nodeIDs []string
	err     error
}

func (s *stubSampler) Sample(ctx context.Context) (*model.HealthSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	snap := model.NewHealthSnapshot(time.Now().UTC())
	for _, id := range s.nodeIDs {
		snap.Reports[id] = &model.HealthReport{NodeID: id, Timestamp: snap.CollectedAt}
	}
	return snap, nil
}

// stubClassifier serves canned verdicts per node ID.
type stubClassifier struct {
	mu       sync.Mutex
	verdicts map[string]model.Classification
	err      error
}

func (c *stubClassifier) Classify(ctx context.Context, report *model.HealthReport) (model.Classification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return model.Classification{}, c.err
	}
	if v, ok := c.verdicts[report.NodeID]; ok {
		return v, nil
	}
	return model.Classification{Severity: model.RiskNone, Reason: "nominal"}, nil
}

func (c *stubClassifier) set(nodeID string, severity model.RiskLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verdicts[nodeID] = model.Classification{Severity: severity, Reason: "test verdict"}
}

type fixture struct {
	agent        *Agent
	tracker      *tracker.Tracker
	orchestrator *healer.Orchestrator
	ledger       *store.MemoryLedgerStore
	controlPlane *cluster.SimControlPlane
	sampler      *stubSampler
	classifier   *stubClassifier
}

func newFixture(nodeIDs ...string) *fixture {
	logger := zap.NewNop()
	ledger := store.NewMemoryLedgerStore()

	seed := make([]model.NodeSpec, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		seed = append(seed, model.NodeSpec{NodeID: id, Address: id + ":9000"})
	}
	controlPlane := cluster.NewSimControlPlane(seed, logger)

	sampler := &stubSampler{nodeIDs: nodeIDs}
	classifier := &stubClassifier{verdicts: make(map[string]model.Classification)}

	trk := tracker.New(3, 3, ledger, logger)
	orchestrator := healer.New(
		controlPlane, ledger, alert.NopDispatcher{}, nil,
		"10.0.0.%d:9000", 200*time.Millisecond, 10*time.Millisecond, logger,
	)
	a := New(
		sampler, classifier, trk, orchestrator, alert.NopDispatcher{}, testMetrics,
		time.Second, time.Second, logger,
	)

	return &fixture{
		agent:        a,
		tracker:      trk,
		orchestrator: orchestrator,
		ledger:       ledger,
		controlPlane: controlPlane,
		sampler:      sampler,
		classifier:   classifier,
	}
}

// crashState seeds the stores with what a crash mid-replace leaves behind:
// a persisted node record carrying the action marker and, optionally, the
// still-pending ledger entry.
func (f *fixture) crashState(t *testing.T, nodeID, actionID, newNodeID string, ledgerPending bool) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.ledger.SaveNodeRecord(ctx, &model.NodeRecord{
		NodeID:          nodeID,
		Current:         model.RiskCritical,
		Previous:        model.RiskWarning,
		Greylisted:      true,
		PendingActionID: actionID,
	}))

	if ledgerPending {
		require.NoError(t, f.ledger.AppendAction(ctx, &model.ActionRecord{
			Action: model.HealingAction{
				ActionID: actionID,
				Kind:     model.ActionReplace,
				NodeID:   nodeID,
				NewNode:  model.NodeSpec{NodeID: newNodeID, Address: newNodeID + ":9000"},
				IssuedAt: time.Now(),
			},
			Outcome:   model.OutcomePending,
			CreatedAt: time.Now(),
		}))
	}
}

func (f *fixture) memberIDs(t *testing.T) map[string]bool {
	t.Helper()
	members, err := f.controlPlane.Members(context.Background())
	require.NoError(t, err)
	out := make(map[string]bool, len(members))
	for _, m := range members {
		out[m.NodeID] = true
	}
	return out
}

func TestRunCycle_HealthyClusterTakesNoAction(t *testing.T) {
	f := newFixture("node-1", "node-2")

	require.NoError(t, f.agent.RunCycle(context.Background()))

	assert.Len(t, f.memberIDs(t), 2)
	assert.Equal(t, 0, f.tracker.GreylistSize())

	pending, err := f.ledger.PendingActions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunCycle_WarningExpandsCluster(t *testing.T) {
	f := newFixture("node-1", "node-2")
	f.classifier.set("node-1", model.RiskWarning)

	require.NoError(t, f.agent.RunCycle(context.Background()))

	members := f.memberIDs(t)
	assert.Len(t, members, 3, "one expansion node joins")
	assert.True(t, members["node-1"], "the greylisted node is not removed")

	rec, ok := f.tracker.Record("node-1")
	require.True(t, ok)
	assert.True(t, rec.Greylisted)
	assert.Empty(t, rec.PendingActionID, "action window closes within the cycle")

	pending, err := f.ledger.PendingActions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunCycle_RepeatedWarningDoesNotReExpand(t *testing.T) {
	f := newFixture("node-1")
	f.classifier.set("node-1", model.RiskWarning)

	require.NoError(t, f.agent.RunCycle(context.Background()))
	require.NoError(t, f.agent.RunCycle(context.Background()))
	require.NoError(t, f.agent.RunCycle(context.Background()))

	// One expansion on the warning edge, then follow-up alerts only.
	assert.Len(t, f.memberIDs(t), 2)
}

func TestRunCycle_CriticalReplacesNode(t *testing.T) {
	f := newFixture("node-1", "node-2")
	f.classifier.set("node-1", model.RiskCritical)

	require.NoError(t, f.agent.RunCycle(context.Background()))

	members := f.memberIDs(t)
	assert.Len(t, members, 2, "replacement keeps the member count")
	assert.False(t, members["node-1"], "the critical node is removed")
	assert.True(t, members["node-2"])

	_, ok := f.tracker.Record("node-1")
	assert.False(t, ok, "removed node is no longer tracked")

	pending, err := f.ledger.PendingActions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunCycle_SamplerFailureSkipsCycle(t *testing.T) {
	f := newFixture("node-1")
	f.sampler.err = errors.New("monitoring endpoint down")

	err := f.agent.RunCycle(context.Background())
	require.Error(t, err)

	assert.Len(t, f.memberIDs(t), 1)
	assert.Equal(t, 0, f.tracker.TrackedNodes())
}

func TestRunCycle_ClassifierFailureLeavesNodeStale(t *testing.T) {
	f := newFixture("node-1")
	f.classifier.set("node-1", model.RiskWarning)
	require.NoError(t, f.agent.RunCycle(context.Background()))

	f.classifier.err = errors.New("model endpoint down")
	require.NoError(t, f.agent.RunCycle(context.Background()))

	rec, ok := f.tracker.Record("node-1")
	require.True(t, ok)
	assert.Equal(t, model.RiskWarning, rec.Current, "previous verdict carries over")
	assert.Equal(t, 1, rec.StaleCycles)
	assert.Len(t, f.memberIDs(t), 2, "no further healing while stale")
}

func TestRunCycle_PersistentClassifierOutageEscalatesAndReplaces(t *testing.T) {
	f := newFixture("node-1", "node-2")
	require.NoError(t, f.agent.RunCycle(context.Background()))

	f.classifier.err = errors.New("model endpoint down")
	for i := 0; i < 3; i++ {
		require.NoError(t, f.agent.RunCycle(context.Background()))
	}

	// Both seed nodes went stale together and were escalated and replaced.
	members := f.memberIDs(t)
	assert.False(t, members["node-1"])
	assert.False(t, members["node-2"])
	assert.Len(t, members, 2)
}

func TestRunCycle_RecoveredNodeStaysGreylisted(t *testing.T) {
	f := newFixture("node-1")
	f.classifier.set("node-1", model.RiskWarning)
	require.NoError(t, f.agent.RunCycle(context.Background()))

	f.classifier.set("node-1", model.RiskNone)
	require.NoError(t, f.agent.RunCycle(context.Background()))

	rec, ok := f.tracker.Record("node-1")
	require.True(t, ok)
	assert.True(t, rec.Greylisted)
	assert.Equal(t, model.RiskNone, rec.Current)
}

func TestRecovery_FailedReplaceIsReDecidedAfterRestart(t *testing.T) {
	f := newFixture("node-1", "node-2")
	ctx := context.Background()

	// Crash mid-replace: the replacement never joined, so recovery must
	// fail the action and leave the node free to be decided again.
	f.crashState(t, "node-1", "a-crash", "node-new-crash", true)

	require.NoError(t, f.tracker.Restore(ctx))
	require.NoError(t, f.orchestrator.Recover(ctx, f.tracker))

	ledgerRec, err := f.ledger.GetAction(ctx, "a-crash")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFailed, ledgerRec.Outcome)

	rec, ok := f.tracker.Record("node-1")
	require.True(t, ok)
	assert.Empty(t, rec.PendingActionID, "recovery closes the debounce window")

	// The node still classifies critical, so the next cycle replaces it.
	f.classifier.set("node-1", model.RiskCritical)
	require.NoError(t, f.agent.RunCycle(ctx))

	members := f.memberIDs(t)
	assert.False(t, members["node-1"], "recovered node is replaced, not silenced")
	assert.Len(t, members, 2)
}

func TestRecovery_CompletedReplaceDropsTrackedRecord(t *testing.T) {
	// Membership after the crash: the replacement joined and the target is
	// already gone, but the outcome never landed in the ledger.
	f := newFixture("node-2", "node-new-7")
	ctx := context.Background()

	f.crashState(t, "node-1", "a-crash", "node-new-7", true)

	require.NoError(t, f.tracker.Restore(ctx))
	require.NoError(t, f.orchestrator.Recover(ctx, f.tracker))

	ledgerRec, err := f.ledger.GetAction(ctx, "a-crash")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSucceeded, ledgerRec.Outcome)

	_, ok := f.tracker.Record("node-1")
	assert.False(t, ok, "record dies with the confirmed removal")
	assert.Equal(t, 0, f.tracker.GreylistSize())
}

func TestRecovery_StaleMarkerWithoutLedgerEntryIsCleared(t *testing.T) {
	f := newFixture("node-1", "node-2")
	ctx := context.Background()

	// The action resolved before the crash; only the marker survived in
	// the persisted record.
	f.crashState(t, "node-1", "a-old", "node-new-crash", false)

	require.NoError(t, f.tracker.Restore(ctx))
	require.NoError(t, f.orchestrator.Recover(ctx, f.tracker))

	rec, ok := f.tracker.Record("node-1")
	require.True(t, ok)
	assert.Empty(t, rec.PendingActionID)
	assert.True(t, rec.Greylisted, "greylist survives marker settlement")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	f := newFixture("node-1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.agent.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not stop after cancellation")
	}
}
