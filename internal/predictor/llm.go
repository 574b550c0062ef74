package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
)

const systemPrompt = "You are an expert AIOps analysis engine. Respond in JSON."

// LLMClassifier asks an OpenAI-compatible chat completions API to classify
// each health report. Callers bound each call with a context timeout; an
// API error or a malformed verdict is a per-node classification failure,
// never a whole-cycle one.
type LLMClassifier struct {
	apiKey    string
	modelName string
	baseURL   string
	client    *http.Client
	logger    *zap.Logger
}

// NewLLMClassifier creates a new LLM-backed classifier
func NewLLMClassifier(apiKey, modelName, baseURL string, logger *zap.Logger) *LLMClassifier {
	return &LLMClassifier{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   baseURL,
		client:    &http.Client{},
		logger:    logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type llmVerdict struct {
	Severity string `json:"severity"`
	Reason   string `json:"reason"`
}

// Classify sends the report to the LLM and parses its JSON verdict
func (c *LLMClassifier) Classify(ctx context.Context, report *model.HealthReport) (model.Classification, error) {
	prompt, err := buildSeverityPrompt(report)
	if err != nil {
		return model.Classification{}, fmt.Errorf("build prompt: %w", err)
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: c.modelName,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return model.Classification{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return model.Classification{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Classification{}, fmt.Errorf("%w: %v", ErrClassificationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Classification{}, fmt.Errorf("%w: API returned %s", ErrClassificationUnavailable, resp.Status)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return model.Classification{}, fmt.Errorf("decode API response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return model.Classification{}, fmt.Errorf("API response contained no choices")
	}

	var verdict llmVerdict
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &verdict); err != nil {
		c.logger.Warn("LLM returned invalid verdict JSON",
			zap.String("node_id", report.NodeID),
			zap.String("content", chat.Choices[0].Message.Content))
		return model.Classification{}, fmt.Errorf("parse verdict: %w", err)
	}

	severity, err := model.ParseRiskLevel(verdict.Severity)
	if err != nil {
		return model.Classification{}, fmt.Errorf("parse verdict severity: %w", err)
	}

	return model.Classification{
		Severity: severity,
		Reason:   verdict.Reason,
	}, nil
}

// buildSeverityPrompt renders the classification guidelines and metrics
// into the user prompt.
func buildSeverityPrompt(report *model.HealthReport) (string, error) {
	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You are an expert AIOps agent responsible for maintaining a distributed storage cluster.
Analyze the following health metrics from node '%s'.

**Node Health Metrics:**
`+"```json\n%s\n```"+`

**Analysis Guidelines & Severity Levels:**
- **none**: All metrics are normal.
- **warning**: The node shows early signs of trouble but is still operational.
    - latency_p99_ms between 150ms and 400ms.
    - A small, non-zero number of disk_io_errors (e.g., 1-10).
    - checksum_mismatch_rate is low but non-zero (e.g., < 0.01).
- **critical**: The node is at imminent risk of failure and requires immediate replacement.
    - Any smart_warnings > 0.
    - disk_io_errors are high (e.g., > 10).
    - latency_p99_ms is consistently high (e.g., > 400ms).
    - checksum_mismatch_rate is significant (e.g., >= 0.01).

**Your Response:**
Respond with a JSON object ONLY. The JSON object must have two keys:
1. severity (string): one of "none", "warning", or "critical".
2. reason (string): a brief, technical explanation for your decision.

Now, analyze the provided metrics and give your verdict.`, report.NodeID, reportJSON), nil
}
