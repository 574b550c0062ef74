// Package healer decides and executes membership-mutating healing actions.
package healer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/alert"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/cluster"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/metrics"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/store"
)

// Orchestrator turns node transitions into healing actions and executes
// them against the cluster control plane.
//
// Execution is serialized cluster-wide, not per node: two concurrent
// membership mutations could race on the cluster's quorum invariants. The
// single-active-loop assumption makes the in-process mutex sufficient; a
// multi-instance deployment would wrap Execute in a distributed lock.
type Orchestrator struct {
	controlPlane cluster.ControlPlane
	ledger       store.LedgerStore
	alerts       alert.Dispatcher
	metrics      *metrics.Metrics
	logger       *zap.Logger

	mu          sync.Mutex // cluster-wide mutation gate, also guards nodeCounter
	nodeCounter int

	addrTemplate        string
	healthyWaitTimeout  time.Duration
	healthyPollInterval time.Duration
}

// New creates a new orchestrator
func New(
	controlPlane cluster.ControlPlane,
	ledger store.LedgerStore,
	alerts alert.Dispatcher,
	m *metrics.Metrics,
	addrTemplate string,
	healthyWaitTimeout, healthyPollInterval time.Duration,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		controlPlane:        controlPlane,
		ledger:              ledger,
		alerts:              alerts,
		metrics:             m,
		addrTemplate:        addrTemplate,
		healthyWaitTimeout:  healthyWaitTimeout,
		healthyPollInterval: healthyPollInterval,
		logger:              logger,
	}
}

// Decide maps a transition to a healing action. Warning-level transitions
// expand the cluster defensively without removing the greylisted node;
// critical and unreachable transitions replace the failing node. Each node
// is decided independently, with no cross-node coupling.
func (o *Orchestrator) Decide(tr model.NodeTransition) model.HealingAction {
	switch tr.Kind {
	case model.EnteredWarning:
		return model.HealingAction{
			ActionID: uuid.NewString(),
			Kind:     model.ActionExpand,
			NodeID:   tr.NodeID,
			NewNode:  o.newNodeSpec(),
			Reason:   tr.Reason,
			IssuedAt: time.Now(),
		}
	case model.EnteredCritical, model.BecameUnreachable:
		return model.HealingAction{
			ActionID: uuid.NewString(),
			Kind:     model.ActionReplace,
			NodeID:   tr.NodeID,
			NewNode:  o.newNodeSpec(),
			Reason:   tr.Reason,
			IssuedAt: time.Now(),
		}
	default:
		return model.HealingAction{Kind: model.ActionNone}
	}
}

// newNodeSpec derives a unique spec for a replacement node
func (o *Orchestrator) newNodeSpec() model.NodeSpec {
	o.mu.Lock()
	o.nodeCounter++
	n := o.nodeCounter
	o.mu.Unlock()

	return model.NodeSpec{
		NodeID:  fmt.Sprintf("node-new-%d-%d", time.Now().Unix(), n),
		Address: fmt.Sprintf(o.addrTemplate, n),
	}
}

// Execute runs a healing action to a terminal outcome. The pending ledger
// record is written before any control-plane call, so a crash mid-action
// is recoverable. For a replace, the removal is issued only after the new
// member reports healthy: add-before-remove, so the cluster never drops
// below its minimum healthy member count. Add-member failure fails closed:
// the target node is never removed if the replacement did not join.
func (o *Orchestrator) Execute(ctx context.Context, action model.HealingAction) error {
	if action.Kind == model.ActionNone {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	started := time.Now()
	o.logger.Info("Executing healing action",
		zap.String("action_id", action.ActionID),
		zap.String("kind", string(action.Kind)),
		zap.String("node_id", action.NodeID),
		zap.String("new_node_id", action.NewNode.NodeID),
		zap.String("reason", action.Reason))

	// Write-ahead: the pending record must be durable before mutating.
	rec := &model.ActionRecord{
		Action:    action,
		Outcome:   model.OutcomePending,
		CreatedAt: started,
	}
	if err := o.ledger.AppendAction(ctx, rec); err != nil {
		return fmt.Errorf("write-ahead ledger append: %w", err)
	}

	if action.Kind == model.ActionReplace {
		o.notify(ctx, alert.Event{
			Type:     alert.EventCriticalAction,
			NodeID:   action.NodeID,
			Severity: model.RiskCritical.String(),
			Reason:   action.Reason,
			Action:   &action,
			At:       started,
		})
	}

	member, err := o.controlPlane.AddMember(ctx, action.NewNode)
	if err != nil {
		return o.fail(ctx, action, started, fmt.Errorf("add member %s: %w", action.NewNode.NodeID, err))
	}

	if action.Kind == model.ActionReplace {
		if err := o.awaitHealthy(ctx, member.NodeID); err != nil {
			return o.fail(ctx, action, started, err)
		}
		if err := o.controlPlane.RemoveMember(ctx, action.NodeID); err != nil {
			// Both nodes stay in the cluster: over-provisioned but safe.
			return o.fail(ctx, action, started, fmt.Errorf("remove member %s: %w", action.NodeID, err))
		}
	}

	if err := o.ledger.ResolveAction(ctx, action.ActionID, model.OutcomeSucceeded, ""); err != nil {
		return fmt.Errorf("resolve action %s: %w", action.ActionID, err)
	}

	if o.metrics != nil {
		o.metrics.RecordAction(string(action.Kind), string(model.OutcomeSucceeded), time.Since(started).Seconds())
	}
	o.logger.Info("Healing action succeeded",
		zap.String("action_id", action.ActionID),
		zap.String("kind", string(action.Kind)),
		zap.String("node_id", action.NodeID),
		zap.Duration("took", time.Since(started)))

	return nil
}

// fail marks the action failed, alerts, and returns the cause
func (o *Orchestrator) fail(ctx context.Context, action model.HealingAction, started time.Time, cause error) error {
	if err := o.ledger.ResolveAction(ctx, action.ActionID, model.OutcomeFailed, cause.Error()); err != nil {
		o.logger.Error("Failed to record action failure in ledger",
			zap.String("action_id", action.ActionID),
			zap.Error(err))
	}

	o.notify(ctx, alert.Event{
		Type:   alert.EventActionFailed,
		NodeID: action.NodeID,
		Reason: cause.Error(),
		Action: &action,
		At:     time.Now(),
	})

	if o.metrics != nil {
		o.metrics.RecordAction(string(action.Kind), string(model.OutcomeFailed), time.Since(started).Seconds())
	}
	o.logger.Error("Healing action failed",
		zap.String("action_id", action.ActionID),
		zap.String("kind", string(action.Kind)),
		zap.String("node_id", action.NodeID),
		zap.Error(cause))

	return cause
}

// awaitHealthy polls the new member until it reports healthy or the wait
// budget is spent.
func (o *Orchestrator) awaitHealthy(ctx context.Context, nodeID string) error {
	deadline := time.Now().Add(o.healthyWaitTimeout)
	for {
		if h := o.controlPlane.HealthOf(ctx, nodeID); h == model.MemberHealthy {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("new member %s did not report healthy within %s", nodeID, o.healthyWaitTimeout)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for member %s health: %w", nodeID, ctx.Err())
		case <-time.After(o.healthyPollInterval):
		}
	}
}

// NodeState is the tracker surface Recover settles once the ledger
// verdicts are in. Every recovered action reaches a terminal outcome, so
// its node's action marker must be cleared or the node stays debounced
// forever; a node whose removal completed loses its record entirely.
type NodeState interface {
	// PendingActionNodes lists restored nodes that carry an outstanding
	// action marker, keyed to the action ID.
	PendingActionNodes() map[string]string
	ClearPendingAction(ctx context.Context, nodeID string, at time.Time)
	RemoveNode(ctx context.Context, nodeID string)
}

// Recover reconciles pending ledger entries against live membership after
// a restart. Each pending action is resumed, confirmed complete, or marked
// failed, and the tracker state is settled to match, so its node is
// re-decided on the next cycle.
func (o *Orchestrator) Recover(ctx context.Context, state NodeState) error {
	pending, err := o.ledger.PendingActions(ctx)
	if err != nil {
		return fmt.Errorf("list pending actions: %w", err)
	}
	marked := state.PendingActionNodes()
	if len(pending) == 0 && len(marked) == 0 {
		return nil
	}

	members, err := o.controlPlane.Members(ctx)
	if err != nil {
		return fmt.Errorf("list cluster members: %w", err)
	}
	present := make(map[string]bool, len(members))
	for _, m := range members {
		present[m.NodeID] = true
	}

	o.logger.Warn("Recovering interrupted actions from previous run",
		zap.Int("pending", len(pending)),
		zap.Int("marked_nodes", len(marked)))

	o.mu.Lock()
	defer o.mu.Unlock()

	for _, rec := range pending {
		action := rec.Action
		delete(marked, action.NodeID)
		newJoined := present[action.NewNode.NodeID]
		targetPresent := present[action.NodeID]
		removed := false

		switch {
		case action.Kind == model.ActionExpand && newJoined:
			o.resolveRecovered(ctx, action, model.OutcomeSucceeded, "")

		case action.Kind == model.ActionExpand:
			o.resolveRecovered(ctx, action, model.OutcomeFailed, "expansion node never joined before crash")

		case action.Kind == model.ActionReplace && newJoined && !targetPresent:
			// Completed before the crash, outcome just never landed.
			o.resolveRecovered(ctx, action, model.OutcomeSucceeded, "")
			removed = true

		case action.Kind == model.ActionReplace && newJoined && targetPresent:
			// Crashed between add and remove: resume.
			o.logger.Info("Resuming interrupted replace",
				zap.String("action_id", action.ActionID),
				zap.String("node_id", action.NodeID))
			if err := o.awaitHealthy(ctx, action.NewNode.NodeID); err != nil {
				o.fail(ctx, action, rec.CreatedAt, err)
				break
			}
			if err := o.controlPlane.RemoveMember(ctx, action.NodeID); err != nil {
				o.fail(ctx, action, rec.CreatedAt, fmt.Errorf("remove member %s: %w", action.NodeID, err))
				break
			}
			o.resolveRecovered(ctx, action, model.OutcomeSucceeded, "")
			removed = true

		default:
			// Replacement never joined; never remove the target.
			o.fail(ctx, action, rec.CreatedAt, fmt.Errorf("replacement %s never joined before crash", action.NewNode.NodeID))
		}

		// The action is terminal either way: the debounce window closes
		// now, so a failed node is re-decided on the next cycle.
		state.ClearPendingAction(ctx, action.NodeID, time.Now())
		if removed {
			state.RemoveNode(ctx, action.NodeID)
		}
	}

	// Markers whose ledger entry is no longer pending: the crash landed
	// after the outcome was recorded but before the tracker caught up.
	for nodeID := range marked {
		state.ClearPendingAction(ctx, nodeID, time.Now())
		if !present[nodeID] {
			// Removal was confirmed before the crash.
			state.RemoveNode(ctx, nodeID)
		}
		o.logger.Info("Cleared stale action marker from previous run",
			zap.String("node_id", nodeID),
			zap.Bool("member", present[nodeID]))
	}

	return nil
}

// resolveRecovered records a recovery verdict for a pending action
func (o *Orchestrator) resolveRecovered(ctx context.Context, action model.HealingAction, outcome model.ActionOutcome, msg string) {
	if err := o.ledger.ResolveAction(ctx, action.ActionID, outcome, msg); err != nil {
		o.logger.Error("Failed to resolve recovered action",
			zap.String("action_id", action.ActionID),
			zap.Error(err))
		return
	}
	o.logger.Info("Recovered pending action",
		zap.String("action_id", action.ActionID),
		zap.String("kind", string(action.Kind)),
		zap.String("outcome", string(outcome)),
		zap.String("detail", msg))
}

// notify dispatches an alert and counts it. Dispatch failures never reach
// the healing path.
func (o *Orchestrator) notify(ctx context.Context, ev alert.Event) {
	o.alerts.Notify(ctx, ev)
	if o.metrics != nil {
		o.metrics.RecordAlert(string(ev.Type))
	}
}
