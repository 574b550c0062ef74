package predictor

import (
	"context"
	"fmt"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
)

// Severity thresholds for the heuristic classifier.
const (
	criticalDiskIOErrors   = 10  // exclusive: > 10 is critical
	criticalLatencyP99Ms   = 400 // exclusive: > 400ms is critical
	criticalChecksumRate   = 0.01
	warningLatencyP99MsLow = 150
)

// HeuristicClassifier classifies risk with fixed metric thresholds. It is
// the default classifier and the deterministic baseline the LLM mode is
// judged against.
type HeuristicClassifier struct{}

// NewHeuristicClassifier creates a new heuristic classifier
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// Classify applies the threshold rules to a single report
func (c *HeuristicClassifier) Classify(ctx context.Context, report *model.HealthReport) (model.Classification, error) {
	switch {
	case report.SmartWarnings > 0:
		return model.Classification{
			Severity: model.RiskCritical,
			Reason:   fmt.Sprintf("%d S.M.A.R.T. warnings reported", report.SmartWarnings),
		}, nil
	case report.DiskIOErrors > criticalDiskIOErrors:
		return model.Classification{
			Severity: model.RiskCritical,
			Reason:   fmt.Sprintf("disk I/O errors high: %d", report.DiskIOErrors),
		}, nil
	case report.LatencyP99Ms > criticalLatencyP99Ms:
		return model.Classification{
			Severity: model.RiskCritical,
			Reason:   fmt.Sprintf("p99 latency critical: %dms", report.LatencyP99Ms),
		}, nil
	case report.ChecksumMismatchRate >= criticalChecksumRate:
		return model.Classification{
			Severity: model.RiskCritical,
			Reason:   fmt.Sprintf("checksum mismatch rate significant: %.4f", report.ChecksumMismatchRate),
		}, nil
	case report.DiskIOErrors > 0:
		return model.Classification{
			Severity: model.RiskWarning,
			Reason:   fmt.Sprintf("non-zero disk I/O errors: %d", report.DiskIOErrors),
		}, nil
	case report.LatencyP99Ms >= warningLatencyP99MsLow:
		return model.Classification{
			Severity: model.RiskWarning,
			Reason:   fmt.Sprintf("p99 latency elevated: %dms", report.LatencyP99Ms),
		}, nil
	case report.ChecksumMismatchRate > 0 && report.ChecksumMismatchRate < criticalChecksumRate:
		return model.Classification{
			Severity: model.RiskWarning,
			Reason:   fmt.Sprintf("checksum mismatch rate non-zero: %.4f", report.ChecksumMismatchRate),
		}, nil
	default:
		return model.Classification{
			Severity: model.RiskNone,
			Reason:   "all metrics within normal bounds",
		}, nil
	}
}
