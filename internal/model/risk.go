package model

import "fmt"

// RiskLevel classifies a node's failure risk. Levels are totally ordered by
// severity: RiskNone < RiskWarning < RiskCritical < RiskUnreachable.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskWarning
	RiskCritical
	// RiskUnreachable is assigned when a node has been missing from
	// snapshots, or has had no fresh classification, for too many
	// consecutive cycles. It is terminal and at least as severe as
	// RiskCritical.
	RiskUnreachable
)

// String returns the wire representation of the risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskNone:
		return "none"
	case RiskWarning:
		return "warning"
	case RiskCritical:
		return "critical"
	case RiskUnreachable:
		return "unreachable"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// ParseRiskLevel parses the wire representation of a risk level.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch s {
	case "none":
		return RiskNone, nil
	case "warning":
		return RiskWarning, nil
	case "critical":
		return RiskCritical, nil
	case "unreachable":
		return RiskUnreachable, nil
	default:
		return RiskNone, fmt.Errorf("invalid risk level %q", s)
	}
}

// Classification is a single classifier verdict for one node.
type Classification struct {
	Severity RiskLevel
	Reason   string
}
