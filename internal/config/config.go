package config

import (
	"errors"
	"time"
)

// Config represents the healing agent configuration
type Config struct {
	Agent     AgentConfig     `mapstructure:"agent"`
	Cluster   ClusterConfig   `mapstructure:"cluster"`
	Predictor PredictorConfig `mapstructure:"predictor"`
	Healer    HealerConfig    `mapstructure:"healer"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AgentConfig represents the control loop configuration
type AgentConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	// ClassifyTimeout bounds each per-node classifier call within a cycle.
	ClassifyTimeout time.Duration `mapstructure:"classify_timeout"`
	// UnreachableAfterMissing is the number of consecutive snapshots a node
	// may be absent from before it is escalated to unreachable.
	UnreachableAfterMissing int `mapstructure:"unreachable_after_missing"`
	// UnreachableAfterStale is the number of consecutive cycles a node may
	// go without a fresh classification before it is escalated.
	UnreachableAfterStale int `mapstructure:"unreachable_after_stale"`
	// DevMode runs the agent against a simulated cluster with in-memory
	// stores. No Postgres, Redis or real control plane is required.
	DevMode bool `mapstructure:"dev_mode"`
}

// ClusterConfig represents the cluster control plane configuration
type ClusterConfig struct {
	AdminEndpoint      string         `mapstructure:"admin_endpoint"`
	RequestTimeout     time.Duration  `mapstructure:"request_timeout"`
	HealthProbeTimeout time.Duration  `mapstructure:"health_probe_timeout"`
	SeedMembers        []MemberConfig `mapstructure:"seed_members"`
}

// MemberConfig identifies one seed cluster member
type MemberConfig struct {
	NodeID  string `mapstructure:"node_id"`
	Address string `mapstructure:"address"`
}

// PredictorConfig represents the risk classifier configuration
type PredictorConfig struct {
	// Mode selects the classifier implementation: heuristic, llm or mock.
	Mode       string `mapstructure:"mode"`
	APIKey     string `mapstructure:"api_key"`
	ModelName  string `mapstructure:"model_name"`
	APIBaseURL string `mapstructure:"api_base_url"`
	// Mock classifier behavior: the unstable node is classified warning
	// once the check counter reaches MockWarningAfter and critical once it
	// reaches MockCriticalAfter.
	MockWarningAfter      int    `mapstructure:"mock_warning_after"`
	MockCriticalAfter     int    `mapstructure:"mock_critical_after"`
	UnstableNodeSubstring string `mapstructure:"unstable_node_substring"`
}

// HealerConfig represents the healing orchestrator configuration
type HealerConfig struct {
	// NewNodeAddressTemplate is an fmt template with one %d verb, expanded
	// with an incrementing counter to derive new node addresses.
	NewNodeAddressTemplate string        `mapstructure:"new_node_address_template"`
	HealthyWaitTimeout     time.Duration `mapstructure:"healthy_wait_timeout"`
	HealthyPollInterval    time.Duration `mapstructure:"healthy_poll_interval"`
}

// DatabaseConfig represents the PostgreSQL ledger store configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MinConnections int    `mapstructure:"min_connections"`
}

// RedisConfig represents the Redis alert dedup store configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AlertingConfig represents alert dispatch configuration
type AlertingConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	// FollowUpSuppression is the window within which repeated greylist
	// alerts for the same node are suppressed.
	FollowUpSuppression time.Duration `mapstructure:"follow_up_suppression"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Agent.CheckInterval <= 0 {
		return errors.New("agent.check_interval must be positive")
	}
	if c.Agent.ClassifyTimeout <= 0 {
		return errors.New("agent.classify_timeout must be positive")
	}
	if c.Agent.UnreachableAfterMissing <= 0 {
		return errors.New("agent.unreachable_after_missing must be positive")
	}
	if c.Agent.UnreachableAfterStale <= 0 {
		return errors.New("agent.unreachable_after_stale must be positive")
	}
	if !isValidPredictorMode(c.Predictor.Mode) {
		return errors.New("predictor.mode must be one of: heuristic, llm, mock")
	}
	if c.Predictor.Mode == "llm" {
		if c.Predictor.APIKey == "" {
			return errors.New("predictor.api_key is required in llm mode")
		}
		if c.Predictor.ModelName == "" {
			return errors.New("predictor.model_name is required in llm mode")
		}
	}
	if c.Predictor.Mode == "mock" && c.Predictor.MockCriticalAfter <= c.Predictor.MockWarningAfter {
		return errors.New("predictor.mock_critical_after must be greater than mock_warning_after")
	}
	if c.Healer.NewNodeAddressTemplate == "" {
		return errors.New("healer.new_node_address_template is required")
	}
	if c.Healer.HealthyWaitTimeout <= 0 {
		return errors.New("healer.healthy_wait_timeout must be positive")
	}
	if !c.Agent.DevMode {
		if c.Cluster.AdminEndpoint == "" {
			return errors.New("cluster.admin_endpoint is required")
		}
		if c.Database.Host == "" {
			return errors.New("database.host is required")
		}
		if c.Database.Database == "" {
			return errors.New("database.database is required")
		}
		if c.Database.User == "" {
			return errors.New("database.user is required")
		}
		if c.Redis.Host == "" {
			return errors.New("redis.host is required")
		}
	}
	if c.Agent.DevMode && len(c.Cluster.SeedMembers) == 0 {
		return errors.New("cluster.seed_members is required in dev mode")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// isValidPredictorMode checks if the predictor mode is valid
func isValidPredictorMode(mode string) bool {
	switch mode {
	case "heuristic", "llm", "mock":
		return true
	default:
		return false
	}
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			CheckInterval:           15 * time.Second,
			ClassifyTimeout:         10 * time.Second,
			UnreachableAfterMissing: 3,
			UnreachableAfterStale:   3,
			DevMode:                 false,
		},
		Cluster: ClusterConfig{
			AdminEndpoint:      "http://localhost:7070",
			RequestTimeout:     10 * time.Second,
			HealthProbeTimeout: 2 * time.Second,
			SeedMembers: []MemberConfig{
				{NodeID: "node-1", Address: "192.168.1.101:9401"},
				{NodeID: "node-2", Address: "192.168.1.102:9401"},
				{NodeID: "node-3", Address: "192.168.1.103:9401"},
				{NodeID: "node-4-unstable", Address: "192.168.1.104:9401"},
			},
		},
		Predictor: PredictorConfig{
			Mode:                  "heuristic",
			ModelName:             "gpt-4-turbo",
			APIBaseURL:            "https://api.openai.com/v1",
			MockWarningAfter:      3,
			MockCriticalAfter:     5,
			UnstableNodeSubstring: "unstable",
		},
		Healer: HealerConfig{
			NewNodeAddressTemplate: "192.168.1.2%02d:9401",
			HealthyWaitTimeout:     2 * time.Minute,
			HealthyPollInterval:    5 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "healing_agent",
			User:           "agent",
			Password:       "",
			MaxConnections: 10,
			MinConnections: 2,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			Password: "",
			DB:       0,
		},
		Alerting: AlertingConfig{
			Enabled:             true,
			WebhookURL:          "",
			FollowUpSuppression: 10 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
