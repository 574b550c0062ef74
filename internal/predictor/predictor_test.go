package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
)

func TestHeuristicClassifier_Thresholds(t *testing.T) {
	tests := []struct {
		name     string
		report   model.HealthReport
		expected model.RiskLevel
	}{
		{
			name:     "all metrics nominal",
			report:   model.HealthReport{NodeID: "node-1", LatencyP99Ms: 20},
			expected: model.RiskNone,
		},
		{
			name:     "smart warnings are always critical",
			report:   model.HealthReport{NodeID: "node-1", SmartWarnings: 1},
			expected: model.RiskCritical,
		},
		{
			name:     "high disk io errors are critical",
			report:   model.HealthReport{NodeID: "node-1", DiskIOErrors: 11},
			expected: model.RiskCritical,
		},
		{
			name:     "few disk io errors are a warning",
			report:   model.HealthReport{NodeID: "node-1", DiskIOErrors: 3},
			expected: model.RiskWarning,
		},
		{
			name:     "latency above 400ms is critical",
			report:   model.HealthReport{NodeID: "node-1", LatencyP99Ms: 450},
			expected: model.RiskCritical,
		},
		{
			name:     "latency at 150ms is a warning",
			report:   model.HealthReport{NodeID: "node-1", LatencyP99Ms: 150},
			expected: model.RiskWarning,
		},
		{
			name:     "latency just below warning band is none",
			report:   model.HealthReport{NodeID: "node-1", LatencyP99Ms: 149},
			expected: model.RiskNone,
		},
		{
			name:     "checksum mismatch rate at cutoff is critical",
			report:   model.HealthReport{NodeID: "node-1", ChecksumMismatchRate: 0.01},
			expected: model.RiskCritical,
		},
		{
			name:     "low checksum mismatch rate is a warning",
			report:   model.HealthReport{NodeID: "node-1", ChecksumMismatchRate: 0.001},
			expected: model.RiskWarning,
		},
	}

	c := NewHeuristicClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls, err := c.Classify(context.Background(), &tt.report)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cls.Severity)
			assert.NotEmpty(t, cls.Reason)
		})
	}
}

func TestMockClassifier_UnstableNodeProgresses(t *testing.T) {
	c := NewMockClassifier(2, 4, "unstable")
	report := &model.HealthReport{NodeID: "node-4-unstable"}

	expected := []model.RiskLevel{model.RiskNone, model.RiskWarning, model.RiskWarning, model.RiskCritical, model.RiskCritical}
	for i, want := range expected {
		cls, err := c.Classify(context.Background(), report)
		require.NoError(t, err)
		assert.Equal(t, want, cls.Severity, "check %d", i+1)
	}
}

func TestMockClassifier_StableNodeStaysHealthy(t *testing.T) {
	c := NewMockClassifier(1, 2, "unstable")
	report := &model.HealthReport{NodeID: "node-1"}

	for i := 0; i < 5; i++ {
		cls, err := c.Classify(context.Background(), report)
		require.NoError(t, err)
		assert.Equal(t, model.RiskNone, cls.Severity)
	}
}

func chatCompletion(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestLLMClassifier_ParsesVerdict(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, chatCompletion(`{"severity": "critical", "reason": "smart warnings present"}`))
	}))
	defer server.Close()

	c := NewLLMClassifier("test-key", "gpt-4o", server.URL, zap.NewNop())
	cls, err := c.Classify(context.Background(), &model.HealthReport{NodeID: "node-1", SmartWarnings: 2})
	require.NoError(t, err)

	assert.Equal(t, model.RiskCritical, cls.Severity)
	assert.Equal(t, "smart warnings present", cls.Reason)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4o", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Contains(t, gotReq.Messages[1].Content, "node-1")
}

func TestLLMClassifier_RejectsMalformedVerdict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatCompletion("the node looks fine to me"))
	}))
	defer server.Close()

	c := NewLLMClassifier("test-key", "gpt-4o", server.URL, zap.NewNop())
	_, err := c.Classify(context.Background(), &model.HealthReport{NodeID: "node-1"})
	require.Error(t, err)
}

func TestLLMClassifier_RejectsUnknownSeverity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatCompletion(`{"severity": "catastrophic", "reason": "oops"}`))
	}))
	defer server.Close()

	c := NewLLMClassifier("test-key", "gpt-4o", server.URL, zap.NewNop())
	_, err := c.Classify(context.Background(), &model.HealthReport{NodeID: "node-1"})
	require.Error(t, err)
}

func TestLLMClassifier_APIErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewLLMClassifier("test-key", "gpt-4o", server.URL, zap.NewNop())
	_, err := c.Classify(context.Background(), &model.HealthReport{NodeID: "node-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClassificationUnavailable)
}
