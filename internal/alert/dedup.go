package alert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/store"
)

// DedupDispatcher suppresses repeated greylist and recovery alerts for the
// same node within a window. Action alerts are never suppressed.
type DedupDispatcher struct {
	next   Dispatcher
	dedup  store.DedupStore
	window time.Duration
	logger *zap.Logger
}

// NewDedupDispatcher wraps next with follow-up suppression
func NewDedupDispatcher(next Dispatcher, dedup store.DedupStore, window time.Duration, logger *zap.Logger) *DedupDispatcher {
	return &DedupDispatcher{
		next:   next,
		dedup:  dedup,
		window: window,
		logger: logger,
	}
}

// Notify forwards the event unless a matching one fired within the window
func (d *DedupDispatcher) Notify(ctx context.Context, ev Event) {
	if !suppressible(ev.Type) {
		d.next.Notify(ctx, ev)
		return
	}

	key := fmt.Sprintf("%s:%s", ev.Type, ev.NodeID)
	first, err := d.dedup.MarkOnce(ctx, key, d.window)
	if err != nil {
		// Dedup store trouble must not swallow alerts; deliver anyway.
		d.logger.Warn("Alert dedup store unavailable, delivering without dedup",
			zap.String("key", key),
			zap.Error(err))
		d.next.Notify(ctx, ev)
		return
	}
	if !first {
		d.logger.Debug("Suppressed repeat alert",
			zap.String("event_type", string(ev.Type)),
			zap.String("node_id", ev.NodeID))
		return
	}

	d.next.Notify(ctx, ev)
}

// suppressible reports whether the event type participates in dedup
func suppressible(t EventType) bool {
	return t == EventGreylistEntered || t == EventRiskRecovered
}
