package predictor

import (
	"context"
	"strings"
	"sync"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
)

// MockClassifier simulates a classifier for demos and tests. Stable nodes
// are always classified none; nodes whose ID contains the unstable
// substring progress from none to warning to critical as the check counter
// advances.
type MockClassifier struct {
	warningAfter   int
	criticalAfter  int
	unstableSubstr string

	mu      sync.Mutex
	counter int
}

// NewMockClassifier creates a new mock classifier
func NewMockClassifier(warningAfter, criticalAfter int, unstableSubstr string) *MockClassifier {
	return &MockClassifier{
		warningAfter:   warningAfter,
		criticalAfter:  criticalAfter,
		unstableSubstr: unstableSubstr,
	}
}

// Classify returns the scripted verdict for this node and check count
func (c *MockClassifier) Classify(ctx context.Context, report *model.HealthReport) (model.Classification, error) {
	c.mu.Lock()
	c.counter++
	count := c.counter
	c.mu.Unlock()

	if c.unstableSubstr == "" || !strings.Contains(report.NodeID, c.unstableSubstr) {
		return model.Classification{
			Severity: model.RiskNone,
			Reason:   "mock: node is stable",
		}, nil
	}

	switch {
	case count >= c.criticalAfter:
		return model.Classification{
			Severity: model.RiskCritical,
			Reason:   "mock critical failure: node is showing multiple critical signs",
		}, nil
	case count >= c.warningAfter:
		return model.Classification{
			Severity: model.RiskWarning,
			Reason:   "mock warning: node is showing early signs of trouble",
		}, nil
	default:
		return model.Classification{
			Severity: model.RiskNone,
			Reason:   "mock: unstable node is currently healthy",
		}, nil
	}
}
