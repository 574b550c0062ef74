package cluster

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
)

// SimControlPlane implements ControlPlane against an in-memory cluster.
// Used in dev mode so the whole heal path can run without real nodes.
type SimControlPlane struct {
	mu      sync.RWMutex
	members map[string]*model.Member
	logger  *zap.Logger
}

// NewSimControlPlane creates a simulated control plane seeded with members
func NewSimControlPlane(seed []model.NodeSpec, logger *zap.Logger) *SimControlPlane {
	members := make(map[string]*model.Member, len(seed))
	for _, spec := range seed {
		members[spec.NodeID] = &model.Member{
			NodeID:  spec.NodeID,
			Address: spec.Address,
			Status:  "active",
		}
	}
	return &SimControlPlane{
		members: members,
		logger:  logger,
	}
}

// AddMember joins the node to the simulated cluster
func (c *SimControlPlane) AddMember(ctx context.Context, spec model.NodeSpec) (*model.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.members[spec.NodeID]; ok {
		return nil, fmt.Errorf("%w: member %s already exists", ErrProvision, spec.NodeID)
	}

	member := &model.Member{
		NodeID:  spec.NodeID,
		Address: spec.Address,
		Status:  "active",
	}
	c.members[spec.NodeID] = member

	c.logger.Info("Simulated member added",
		zap.String("node_id", spec.NodeID),
		zap.String("address", spec.Address))

	return member, nil
}

// RemoveMember removes the node from the simulated cluster
func (c *SimControlPlane) RemoveMember(ctx context.Context, nodeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.members[nodeID]; !ok {
		return fmt.Errorf("%w: member %s not found", ErrRemoval, nodeID)
	}
	delete(c.members, nodeID)

	c.logger.Info("Simulated member removed", zap.String("node_id", nodeID))
	return nil
}

// Members lists the simulated membership
func (c *SimControlPlane) Members(ctx context.Context) ([]*model.Member, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	members := make([]*model.Member, 0, len(c.members))
	for _, m := range c.members {
		cp := *m
		members = append(members, &cp)
	}
	return members, nil
}

// HealthOf reports healthy for any registered member
func (c *SimControlPlane) HealthOf(ctx context.Context, nodeID string) model.MemberHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.members[nodeID]; ok {
		return model.MemberHealthy
	}
	return model.MemberUnknown
}
