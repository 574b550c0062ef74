package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) HealthStatus {
	t.Helper()
	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	return status
}

func TestLivenessHandler_AlwaysOK(t *testing.T) {
	h := NewHealthChecker(stubPinger{err: errors.New("down")}, stubPinger{err: errors.New("down")}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", decodeStatus(t, rec).Status)
}

func TestReadinessHandler_ReadyWhenStoresRespond(t *testing.T) {
	h := NewHealthChecker(stubPinger{}, stubPinger{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	status := decodeStatus(t, rec)
	assert.Equal(t, "ready", status.Status)
	assert.Equal(t, "healthy", status.Checks["ledger_store"])
	assert.Equal(t, "healthy", status.Checks["dedup_store"])
}

func TestReadinessHandler_NotReadyWhenLedgerIsDown(t *testing.T) {
	h := NewHealthChecker(stubPinger{err: errors.New("connection refused")}, stubPinger{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	status := decodeStatus(t, rec)
	assert.Equal(t, "not_ready", status.Status)
	assert.Contains(t, status.Checks["ledger_store"], "unhealthy")
	assert.Equal(t, "healthy", status.Checks["dedup_store"])
}

func TestReadinessHandler_NilDependencyIsSkipped(t *testing.T) {
	h := NewHealthChecker(stubPinger{}, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
