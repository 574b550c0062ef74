package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 15*time.Second, cfg.Agent.CheckInterval)
	assert.Equal(t, 3, cfg.Agent.UnreachableAfterMissing)
	assert.Equal(t, "heuristic", cfg.Predictor.Mode)
	assert.Len(t, cfg.Cluster.SeedMembers, 4)
}

func TestValidate_RejectsUnknownPredictorMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Predictor.Mode = "oracle"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "predictor.mode")
}

func TestValidate_LLMModeRequiresCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Predictor.Mode = "llm"
	cfg.Predictor.APIKey = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")

	cfg.Predictor.APIKey = "sk-test"
	cfg.Predictor.ModelName = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model_name")
}

func TestValidate_MockThresholdsMustBeOrdered(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Predictor.Mode = "mock"
	cfg.Predictor.MockWarningAfter = 5
	cfg.Predictor.MockCriticalAfter = 5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mock_critical_after")
}

func TestValidate_ProductionRequiresBackingStores(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Host = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.host")

	cfg = DefaultConfig()
	cfg.Redis.Host = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.host")

	cfg = DefaultConfig()
	cfg.Cluster.AdminEndpoint = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin_endpoint")
}

func TestValidate_DevModeSkipsBackingStoresButNeedsSeeds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agent.DevMode = true
	cfg.Database.Host = ""
	cfg.Redis.Host = ""
	cfg.Cluster.AdminEndpoint = ""
	require.NoError(t, cfg.Validate())

	cfg.Cluster.SeedMembers = nil
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed_members")
}

func TestValidate_EscalationThresholdsMustBePositive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agent.UnreachableAfterMissing = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Agent.UnreachableAfterStale = -1
	require.Error(t, cfg.Validate())
}

func TestValidate_AppliesLoggingDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = ""
	cfg.Logging.Format = ""

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}
