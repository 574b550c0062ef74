// Package monitor collects per-node health metrics from the cluster.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
)

// ErrSamplingUnavailable is returned when no health snapshot could be
// collected this cycle. The control loop skips the cycle and retries on
// the next period.
var ErrSamplingUnavailable = errors.New("sampling unavailable")

// Sampler supplies a snapshot of per-node metrics on demand.
type Sampler interface {
	Sample(ctx context.Context) (*model.HealthSnapshot, error)
}

// MemberLister provides the current cluster membership to poll.
type MemberLister interface {
	Members(ctx context.Context) ([]*model.Member, error)
}

// HTTPSampler polls each cluster member's health-report endpoint. A member
// that fails to respond is simply absent from the snapshot; the tracker
// counts consecutive absences toward unreachability.
type HTTPSampler struct {
	members MemberLister
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPSampler creates a new HTTP health sampler
func NewHTTPSampler(members MemberLister, timeout time.Duration, logger *zap.Logger) *HTTPSampler {
	return &HTTPSampler{
		members: members,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Sample collects health reports from all reachable members
func (s *HTTPSampler) Sample(ctx context.Context) (*model.HealthSnapshot, error) {
	members, err := s.members.Members(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSamplingUnavailable, err)
	}

	snapshot := model.NewHealthSnapshot(time.Now().UTC())
	for _, member := range members {
		report, err := s.fetchReport(ctx, member)
		if err != nil {
			s.logger.Warn("Failed to collect health report",
				zap.String("node_id", member.NodeID),
				zap.String("address", member.Address),
				zap.Error(err))
			continue
		}
		report.NodeID = member.NodeID
		snapshot.Reports[member.NodeID] = report
	}

	return snapshot, nil
}

// fetchReport fetches a single member's health report
func (s *HTTPSampler) fetchReport(ctx context.Context, member *model.Member) (*model.HealthReport, error) {
	url := fmt.Sprintf("http://%s/health/report", member.Address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health report returned %s", resp.Status)
	}

	var report model.HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode health report: %w", err)
	}

	return &report, nil
}
