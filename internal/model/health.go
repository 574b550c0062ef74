package model

import "time"

// HealthReport holds the metrics collected from a single node in one cycle.
// Reports are immutable once produced by the sampler.
type HealthReport struct {
	NodeID                 string    `json:"node_id"`
	Timestamp              time.Time `json:"timestamp_utc"`
	DiskIOErrors           int       `json:"disk_io_errors"`
	NetworkPacketLossRate  float64   `json:"network_packet_loss_rate"`
	LatencyP99Ms           int       `json:"latency_p99_ms"`
	SmartWarnings          int       `json:"smart_warnings"`
	ChecksumMismatchRate   float64   `json:"checksum_mismatch_rate"`
	RaftTermChangesPerHour int       `json:"raft_term_changes_per_hour"`
	AvailableDiskGB        int       `json:"available_disk_gb"`
}

// HealthSnapshot is the set of health reports collected from the cluster in
// one cycle, keyed by node ID.
type HealthSnapshot struct {
	CollectedAt time.Time
	Reports     map[string]*HealthReport
}

// NewHealthSnapshot creates an empty snapshot stamped with the given time.
func NewHealthSnapshot(at time.Time) *HealthSnapshot {
	return &HealthSnapshot{
		CollectedAt: at,
		Reports:     make(map[string]*HealthReport),
	}
}
