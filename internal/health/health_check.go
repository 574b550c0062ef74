package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger is any dependency that can report its own connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker provides health check endpoints for the agent process
type HealthChecker struct {
	ledger Pinger
	dedup  Pinger
	logger *zap.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(ledger, dedup Pinger, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		ledger: ledger,
		dedup:  dedup,
		logger: logger,
	}
}

// LivenessHandler handles liveness probe requests
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// ReadinessHandler handles readiness probe requests
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	// Check action ledger (PostgreSQL)
	if err := h.check(ctx, h.ledger); err != nil {
		h.logger.Error("Ledger store health check failed", zap.Error(err))
		checks["ledger_store"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["ledger_store"] = "healthy"
	}

	// Check alert dedup store (Redis)
	if err := h.check(ctx, h.dedup); err != nil {
		h.logger.Error("Dedup store health check failed", zap.Error(err))
		checks["dedup_store"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["dedup_store"] = "healthy"
	}

	status := HealthStatus{
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")

	if allHealthy {
		status.Status = "ready"
		w.WriteHeader(http.StatusOK)
	} else {
		status.Status = "not_ready"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(status)
}

// check pings one dependency, skipping nil ones
func (h *HealthChecker) check(ctx context.Context, p Pinger) error {
	if p == nil {
		return nil
	}
	return p.Ping(ctx)
}
