package model

import "time"

// ActionKind identifies the healing action decided for a transition.
type ActionKind string

const (
	// ActionExpand provisions one new node without removing any existing
	// node. Decided for warning-level transitions.
	ActionExpand ActionKind = "expand"
	// ActionReplace provisions one new node and removes the failing node,
	// ordered add-before-remove. Decided for critical and unreachable
	// transitions.
	ActionReplace ActionKind = "replace"
	ActionNone    ActionKind = "none"
)

// ActionOutcome is the ledger state of an issued action. Pending is the
// only non-terminal outcome.
type ActionOutcome string

const (
	OutcomePending   ActionOutcome = "pending"
	OutcomeSucceeded ActionOutcome = "succeeded"
	OutcomeFailed    ActionOutcome = "failed"
)

// HealingAction is an immutable membership mutation decided by the
// orchestrator. ActionID is unique per issued action; a new transition for
// the same node produces a new action ID.
type HealingAction struct {
	ActionID string     `json:"action_id"`
	Kind     ActionKind `json:"kind"`
	// NodeID is the node the action was decided for. For a replace it is
	// also the removal target; an expand never removes it.
	NodeID   string    `json:"node_id"`
	NewNode  NodeSpec  `json:"new_node"`
	Reason   string    `json:"reason"`
	IssuedAt time.Time `json:"issued_at"`
}

// ActionRecord is a ledger entry for an issued action. Records are
// append-only except for the single pending -> succeeded|failed transition.
type ActionRecord struct {
	Action     HealingAction
	Outcome    ActionOutcome
	Error      string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}
