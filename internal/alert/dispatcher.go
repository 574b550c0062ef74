// Package alert delivers healing events to operators. Dispatch is
// fire-and-forget: a notification failure is logged, never propagated, so
// it cannot turn into a healing failure.
package alert

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
)

// EventType identifies the alert category
type EventType string

const (
	EventGreylistEntered EventType = "greylist_entered"
	EventCriticalAction  EventType = "critical_action"
	EventActionFailed    EventType = "action_failed"
	EventRiskRecovered   EventType = "risk_recovered"
)

// Event is one alertable occurrence in the control loop
type Event struct {
	Type     EventType            `json:"type"`
	NodeID   string               `json:"node_id"`
	Severity string               `json:"severity"`
	Reason   string               `json:"reason"`
	Action   *model.HealingAction `json:"action,omitempty"`
	FollowUp bool                 `json:"follow_up,omitempty"`
	At       time.Time            `json:"at"`
}

// Dispatcher delivers events. Implementations must not block the control
// loop and must not return errors to it.
type Dispatcher interface {
	Notify(ctx context.Context, ev Event)
}

// LogDispatcher writes every event to the structured log
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher creates a new log dispatcher
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// Notify logs the event at a level matching its type
func (d *LogDispatcher) Notify(ctx context.Context, ev Event) {
	fields := []zap.Field{
		zap.String("event_type", string(ev.Type)),
		zap.String("node_id", ev.NodeID),
		zap.String("severity", ev.Severity),
		zap.String("reason", ev.Reason),
		zap.Bool("follow_up", ev.FollowUp),
	}
	if ev.Action != nil {
		fields = append(fields,
			zap.String("action_id", ev.Action.ActionID),
			zap.String("action_kind", string(ev.Action.Kind)))
	}

	switch ev.Type {
	case EventActionFailed:
		d.logger.Error("ALERT: healing action failed", fields...)
	case EventCriticalAction:
		d.logger.Error("ALERT: critical node replacement initiated", fields...)
	case EventGreylistEntered:
		d.logger.Warn("ALERT: node added to greylist", fields...)
	case EventRiskRecovered:
		d.logger.Info("ALERT: node classification recovered", fields...)
	default:
		d.logger.Warn("ALERT", fields...)
	}
}

// Fanout dispatches each event to every child dispatcher
type Fanout struct {
	dispatchers []Dispatcher
}

// NewFanout creates a dispatcher that fans out to all children
func NewFanout(dispatchers ...Dispatcher) *Fanout {
	return &Fanout{dispatchers: dispatchers}
}

// Notify delivers the event to every child
func (f *Fanout) Notify(ctx context.Context, ev Event) {
	for _, d := range f.dispatchers {
		d.Notify(ctx, ev)
	}
}

// NopDispatcher drops all events. Used when alerting is disabled.
type NopDispatcher struct{}

// Notify drops the event
func (NopDispatcher) Notify(ctx context.Context, ev Event) {}
