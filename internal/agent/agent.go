// Package agent drives the sample -> classify -> track -> heal control
// loop.
package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/alert"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/healer"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/metrics"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/monitor"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/predictor"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/tracker"
)

// Agent runs check cycles sequentially on a fixed interval. Cycles never
// overlap: an overrunning cycle delays the next one, which keeps the
// tracker and ledger single-writer.
type Agent struct {
	sampler      monitor.Sampler
	classifier   predictor.Classifier
	tracker      *tracker.Tracker
	orchestrator *healer.Orchestrator
	alerts       alert.Dispatcher
	metrics      *metrics.Metrics
	logger       *zap.Logger

	checkInterval   time.Duration
	classifyTimeout time.Duration
}

// New creates a new agent
func New(
	sampler monitor.Sampler,
	classifier predictor.Classifier,
	trk *tracker.Tracker,
	orchestrator *healer.Orchestrator,
	alerts alert.Dispatcher,
	m *metrics.Metrics,
	checkInterval, classifyTimeout time.Duration,
	logger *zap.Logger,
) *Agent {
	return &Agent{
		sampler:         sampler,
		classifier:      classifier,
		tracker:         trk,
		orchestrator:    orchestrator,
		alerts:          alerts,
		metrics:         m,
		checkInterval:   checkInterval,
		classifyTimeout: classifyTimeout,
		logger:          logger,
	}
}

// Run restores state, recovers interrupted actions, then loops until the
// context is canceled. It returns a non-nil error only for fatal
// conditions: a failed startup or a tracker/ledger invariant violation.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.tracker.Restore(ctx); err != nil {
		return err
	}
	if err := a.orchestrator.Recover(ctx, a.tracker); err != nil {
		return err
	}

	a.logger.Info("Agent control loop started",
		zap.Duration("check_interval", a.checkInterval))

	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	for {
		if err := a.RunCycle(ctx); err != nil {
			if errors.Is(err, tracker.ErrInvariantViolation) {
				a.logger.Error("Invariant violation, halting control loop", zap.Error(err))
				return err
			}
			// Non-fatal: log and retry on the next period.
			a.logger.Error("Check cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			a.logger.Info("Agent control loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle performs a single cycle of monitoring, classification and
// healing.
func (a *Agent) RunCycle(ctx context.Context) error {
	started := time.Now()
	a.logger.Info("Starting check cycle")

	snapshot, err := a.sampler.Sample(ctx)
	if err != nil {
		a.metrics.SampleFailures.Inc()
		a.metrics.RecordCycleFailure("sample")
		return err
	}

	classifications := a.classifyAll(ctx, snapshot)

	transitions := a.tracker.Observe(ctx, snapshot, classifications)

	for _, tr := range transitions {
		a.metrics.RecordTransition(string(tr.Kind))
		if err := a.processTransition(ctx, tr); err != nil {
			if errors.Is(err, tracker.ErrInvariantViolation) {
				return err
			}
			// Fault isolation: one node's failure must not abort the
			// other nodes' processing this cycle.
			a.logger.Error("Failed to process transition",
				zap.String("node_id", tr.NodeID),
				zap.String("kind", string(tr.Kind)),
				zap.Error(err))
		}
	}

	a.metrics.UpdateNodeGauges(a.tracker.TrackedNodes(), a.tracker.GreylistSize())
	a.metrics.RecordCycle(time.Since(started).Seconds())
	a.logger.Info("Check cycle finished",
		zap.Int("nodes_sampled", len(snapshot.Reports)),
		zap.Int("transitions", len(transitions)),
		zap.Duration("took", time.Since(started)))

	return nil
}

// classifyAll fans classification out per node. The calls are read-only
// with respect to shared state, so they run concurrently; results are
// joined before the tracker observes them. A node whose call fails or
// times out is simply absent from the result and goes stale.
func (a *Agent) classifyAll(ctx context.Context, snapshot *model.HealthSnapshot) map[string]model.Classification {
	var mu sync.Mutex
	results := make(map[string]model.Classification, len(snapshot.Reports))

	g, gctx := errgroup.WithContext(ctx)
	for _, report := range snapshot.Reports {
		report := report
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, a.classifyTimeout)
			defer cancel()

			cls, err := a.classifier.Classify(callCtx, report)
			if err != nil {
				a.metrics.ClassificationFailures.Inc()
				a.logger.Warn("Classification failed, node will be treated as stale",
					zap.String("node_id", report.NodeID),
					zap.Error(err))
				return nil
			}

			a.metrics.RecordClassification(cls.Severity.String())
			mu.Lock()
			results[report.NodeID] = cls
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return results
}

// processTransition alerts on the transition and, when one is due,
// executes the decided healing action to its terminal outcome.
func (a *Agent) processTransition(ctx context.Context, tr model.NodeTransition) error {
	switch tr.Kind {
	case model.EnteredWarning:
		a.notify(ctx, alert.Event{
			Type:     alert.EventGreylistEntered,
			NodeID:   tr.NodeID,
			Severity: tr.To.String(),
			Reason:   tr.Reason,
			At:       tr.At,
		})
	case model.WarningPersisted:
		a.notify(ctx, alert.Event{
			Type:     alert.EventGreylistEntered,
			NodeID:   tr.NodeID,
			Severity: tr.To.String(),
			Reason:   tr.Reason,
			FollowUp: true,
			At:       tr.At,
		})
		return nil
	case model.RiskRecovered:
		a.notify(ctx, alert.Event{
			Type:     alert.EventRiskRecovered,
			NodeID:   tr.NodeID,
			Severity: tr.To.String(),
			Reason:   tr.Reason,
			At:       tr.At,
		})
		return nil
	}

	action := a.orchestrator.Decide(tr)
	if action.Kind == model.ActionNone {
		return nil
	}

	if err := a.tracker.SetPendingAction(ctx, tr.NodeID, action.ActionID); err != nil {
		return err
	}

	execErr := a.orchestrator.Execute(ctx, action)
	// Execute is synchronous: by now the action reached a terminal
	// outcome either way, so the debounce window closes here.
	a.tracker.ClearPendingAction(ctx, tr.NodeID, time.Now())
	if execErr != nil {
		return execErr
	}

	if action.Kind == model.ActionReplace {
		// Removal confirmed; the greylist entry dies with the record.
		a.tracker.RemoveNode(ctx, tr.NodeID)
	}
	return nil
}

// notify dispatches an alert and counts it
func (a *Agent) notify(ctx context.Context, ev alert.Event) {
	a.alerts.Notify(ctx, ev)
	a.metrics.RecordAlert(string(ev.Type))
}
