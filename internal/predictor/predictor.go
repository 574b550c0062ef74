// Package predictor classifies per-node failure risk from health reports.
// The classifier is a capability interface so heuristic, statistical and
// LLM-backed implementations are interchangeable and independently
// testable.
package predictor

import (
	"context"
	"errors"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
)

// ErrClassificationUnavailable is returned when the classifier backend is
// down entirely. Per-node failures are reported as ordinary errors and
// absorbed as stale classifications by the tracker.
var ErrClassificationUnavailable = errors.New("classification unavailable")

// Classifier maps one node's health report to a risk level. Calls for
// independent nodes may be issued concurrently; implementations must be
// safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, report *model.HealthReport) (model.Classification, error)
}
