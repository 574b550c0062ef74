package monitor

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
)

// SimSampler generates randomized health reports for dev mode. Nodes whose
// ID contains the unstable substring show anomalies far more often, so the
// full warning/critical heal path can be exercised without real nodes.
type SimSampler struct {
	members        MemberLister
	unstableSubstr string
	logger         *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimSampler creates a new simulated sampler
func NewSimSampler(members MemberLister, unstableSubstr string, logger *zap.Logger) *SimSampler {
	return &SimSampler{
		members:        members,
		unstableSubstr: unstableSubstr,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:         logger,
	}
}

// Sample generates a simulated health report per member
func (s *SimSampler) Sample(ctx context.Context) (*model.HealthSnapshot, error) {
	members, err := s.members.Members(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSamplingUnavailable, err)
	}

	snapshot := model.NewHealthSnapshot(time.Now().UTC())

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, member := range members {
		snapshot.Reports[member.NodeID] = s.reportFor(member.NodeID, snapshot.CollectedAt)
	}

	return snapshot, nil
}

// reportFor generates one report. Caller holds s.mu for rng access.
func (s *SimSampler) reportFor(nodeID string, at time.Time) *model.HealthReport {
	report := &model.HealthReport{
		NodeID:                 nodeID,
		Timestamp:              at,
		DiskIOErrors:           0,
		NetworkPacketLossRate:  s.rng.Float64() * 0.01,
		LatencyP99Ms:           10 + s.rng.Intn(41),
		SmartWarnings:          0,
		ChecksumMismatchRate:   s.rng.Float64() * 0.001,
		RaftTermChangesPerHour: s.rng.Intn(3),
		AvailableDiskGB:        500 + s.rng.Intn(3501),
	}

	unstable := s.unstableSubstr != "" && strings.Contains(nodeID, s.unstableSubstr)
	switch {
	case unstable && s.rng.Float64() < 0.6:
		report.DiskIOErrors = 1 + s.rng.Intn(10)
		report.LatencyP99Ms = 200 + s.rng.Intn(801)
		report.ChecksumMismatchRate = 0.05 + s.rng.Float64()*0.15
		if s.rng.Float64() < 0.4 {
			report.SmartWarnings = 1 + s.rng.Intn(5)
		}
	case s.rng.Float64() < 0.05:
		// any node can glitch occasionally
		report.LatencyP99Ms = 100 + s.rng.Intn(201)
	}

	return report
}
