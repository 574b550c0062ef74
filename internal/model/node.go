package model

import "time"

// NodeSpec describes a node to be provisioned into the cluster.
type NodeSpec struct {
	NodeID  string `json:"node_id"`
	Address string `json:"address"`
}

// Member is a node currently registered with the cluster control plane.
type Member struct {
	NodeID  string `json:"node_id"`
	Address string `json:"address"`
	Status  string `json:"status"`
}

// MemberHealth is the control plane's view of a single member's health.
type MemberHealth string

const (
	MemberHealthy   MemberHealth = "healthy"
	MemberUnhealthy MemberHealth = "unhealthy"
	MemberUnknown   MemberHealth = "unknown"
)

// NodeRecord is the tracker-owned state for a single node. It is mutated
// only on the control loop goroutine; everyone else sees copies.
//
// Greylisted is monotonic within a node's lifetime: it is set the first
// time the node reaches warning and is never cleared by recovery, only by
// node removal or explicit operator action.
type NodeRecord struct {
	NodeID           string
	Current          RiskLevel
	Previous         RiskLevel
	Greylisted       bool
	LastClassifiedAt time.Time
	LastActionAt     time.Time
	PendingActionID  string
	StaleCycles      int
	MissingCycles    int
}

// TransitionKind identifies a tracked state change for a node.
type TransitionKind string

const (
	EnteredWarning TransitionKind = "entered_warning"
	// WarningPersisted is emitted while a greylisted node keeps
	// classifying warning. It drives follow-up alerting only, never a new
	// healing action.
	WarningPersisted  TransitionKind = "warning_persisted"
	EnteredCritical   TransitionKind = "entered_critical"
	RiskRecovered     TransitionKind = "risk_recovered"
	BecameUnreachable TransitionKind = "became_unreachable"
)

// NodeTransition is emitted by the tracker when a node's classification
// state changes in a way the orchestrator or alerting cares about.
type NodeTransition struct {
	NodeID string
	Kind   TransitionKind
	From   RiskLevel
	To     RiskLevel
	Reason string
	At     time.Time
}
