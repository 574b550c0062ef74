package cluster

import (
	"context"
	"errors"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
)

// ErrProvision wraps add-member failures
var ErrProvision = errors.New("provision failed")

// ErrRemoval wraps remove-member failures
var ErrRemoval = errors.New("removal failed")

// ControlPlane exposes membership mutations on the real cluster. The
// orchestrator serializes calls to it cluster-wide; implementations do not
// need their own mutation ordering.
type ControlPlane interface {
	// AddMember provisions and joins a new node. The returned member
	// carries the node ID the cluster assigned (implementations honor the
	// requested spec ID).
	AddMember(ctx context.Context, spec model.NodeSpec) (*model.Member, error)

	// RemoveMember removes a node from cluster membership.
	RemoveMember(ctx context.Context, nodeID string) error

	// Members lists current cluster membership.
	Members(ctx context.Context) ([]*model.Member, error)

	// HealthOf reports the member's own view of its health. Unknown is
	// returned when the member cannot be probed.
	HealthOf(ctx context.Context, nodeID string) model.MemberHealth
}
